package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-orders/internal/domain/product"
	"github.com/xenking/storefront-orders/internal/validation"
)

// CreateProduct handles POST /products.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var (
		d     product.Draft
		stock int64
	)
	err := readObject(w, r, object{
		fields: map[string]fieldDecoder{
			"name":        stringField(&d.Name),
			"description": stringField(&d.Description),
			"image":       stringField(&d.Image),
			"category":    stringField(&d.Category),
			"price":       decimalField(&d.Price),
			"stock":       intField(&stock),
		},
		required: []string{"name", "price"},
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if stock > int64(maxStock) {
		writeDomainError(w, r, &validation.Error{Violations: validation.Violations{"stock": "out_of_range"}})
		return
	}
	d.Stock = int(stock)

	p, err := h.products.Create(r.Context(), d)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("id", func(e *jx.Encoder) { e.Int64(p.ID) })
			e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
			e.Field("price", func(e *jx.Encoder) { encodeMoney(e, p.Price) })
		})
	})
}

// maxStock is the largest value of the INTEGER stock column.
const maxStock = 1<<31 - 1

// filterParams lists the accepted query keys per filter, English first.
var filterParams = struct {
	name, category, price, description []string
}{
	name:        []string{"name", "nome"},
	category:    []string{"category", "categoria"},
	price:       []string{"price", "preco"},
	description: []string{"description", "descricao"},
}

func firstParam(q url.Values, keys []string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			return v
		}
	}
	return ""
}

// parseFilter reads the listing filter from the query string.
func parseFilter(q url.Values) (product.Filter, error) {
	f := product.Filter{
		Name:        firstParam(q, filterParams.name),
		Category:    firstParam(q, filterParams.category),
		Description: firstParam(q, filterParams.description),
	}
	if raw := firstParam(q, filterParams.price); raw != "" {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return product.Filter{}, &validation.Error{Violations: validation.Violations{"price": "must_be_number"}}
		}
		f.MaxPrice = decimal.NewNullDecimal(price)
	}
	return f, nil
}

// ListProducts handles GET /products. Filters may be given under their
// English or Portuguese names.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	products, err := h.products.List(r.Context(), filter)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range products {
				encodeProduct(e, &products[i])
			}
		})
	})
}

// GetProduct handles GET /products/{id}.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	p, err := h.products.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeProduct(e, p) })
}

func encodeProduct(e *jx.Encoder, p *product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("description", func(e *jx.Encoder) { e.Str(p.Description) })
		e.Field("image", func(e *jx.Encoder) { e.Str(p.Image) })
		e.Field("category", func(e *jx.Encoder) { e.Str(p.Category) })
		e.Field("price", func(e *jx.Encoder) { encodeMoney(e, p.Price) })
		e.Field("stock", func(e *jx.Encoder) { e.Int(p.Stock) })
		e.Field("created_at", func(e *jx.Encoder) { encodeTime(e, p.CreatedAt) })
	})
}
