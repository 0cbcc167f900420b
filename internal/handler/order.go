package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront-orders/internal/domain/order"
	"github.com/xenking/storefront-orders/internal/validation"
)

// PlaceOrder handles POST /orders. The response reports the pre-discount
// subtotal, the discount and the charged total, which is the value stored on
// the order.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var (
		customerID int64
		items      []order.RequestItem
	)
	v := validation.Violations{}
	item := func(d *jx.Decoder, i int) error {
		var productID, quantity int64
		prefix := "items[" + strconv.Itoa(i) + "]."
		err := object{
			fields: map[string]fieldDecoder{
				"product_id": intField(&productID),
				"quantity":   intField(&quantity),
			},
			required: []string{"product_id", "quantity"},
		}.decode(d, prefix, v)
		if err != nil {
			return err
		}
		if quantity > int64(maxQuantity) {
			v.Add(prefix+"quantity", "out_of_range")
		}
		items = append(items, order.RequestItem{ProductID: productID, Quantity: int(quantity)})
		return nil
	}

	err := readObject(w, r, object{
		fields: map[string]fieldDecoder{
			"customer_id": intField(&customerID),
			"items":       arrayField(item),
		},
		required: []string{"customer_id", "items"},
	})
	var verr *validation.Error
	switch {
	case err == nil:
		err = v.Err()
	case errors.As(err, &verr):
		for field, reason := range v {
			verr.Violations.Add(field, reason)
		}
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	res, err := h.orders.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		CustomerID: customerID,
		Items:      items,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("order_id", func(e *jx.Encoder) { e.Int64(res.Order.ID) })
			e.Field("subtotal", func(e *jx.Encoder) { encodeMoney(e, res.Subtotal) })
			e.Field("discount", func(e *jx.Encoder) { encodeMoney(e, res.Order.Discount) })
			e.Field("total", func(e *jx.Encoder) { encodeMoney(e, res.Order.Total) })
			e.Field("loyal", func(e *jx.Encoder) { e.Bool(res.Standing.Loyal) })
		})
	})
}

// maxQuantity is the largest value of the INTEGER quantity column.
const maxQuantity = 1<<31 - 1

// GetOrder handles GET /orders/{id}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	o, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("id", func(e *jx.Encoder) { e.Int64(o.ID) })
			e.Field("customer_id", func(e *jx.Encoder) { e.Int64(o.CustomerID) })
			e.Field("created_at", func(e *jx.Encoder) { encodeTime(e, o.CreatedAt) })
			e.Field("total", func(e *jx.Encoder) { encodeMoney(e, o.Total) })
			e.Field("discount", func(e *jx.Encoder) { encodeMoney(e, o.Discount) })
			e.Field("items", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, it := range o.Items {
						e.Obj(func(e *jx.Encoder) {
							e.Field("id", func(e *jx.Encoder) { e.Int64(it.ID) })
							e.Field("product_id", func(e *jx.Encoder) { e.Int64(it.ProductID) })
							e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
							e.Field("unit_price", func(e *jx.Encoder) { encodeMoney(e, it.UnitPrice) })
						})
					}
				})
			})
		})
	})
}
