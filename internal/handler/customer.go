package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront-orders/internal/domain/customer"
)

// CreateCustomer handles POST /customers. Public registration always
// creates a regular customer; a "role" key is rejected as unknown.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	reg := customer.Registration{Role: customer.RoleRegular}
	err := readObject(w, r, object{
		fields: map[string]fieldDecoder{
			"name":     stringField(&reg.Name),
			"email":    stringField(&reg.Email),
			"password": stringField(&reg.Password),
		},
		required: []string{"name", "email", "password"},
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	c, err := h.customers.Register(r.Context(), reg)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("id", func(e *jx.Encoder) { e.Int64(c.ID) })
			e.Field("name", func(e *jx.Encoder) { e.Str(c.Name) })
			e.Field("email", func(e *jx.Encoder) { e.Str(c.Email) })
		})
	})
}

// ListCustomers handles GET /customers. Password hashes are never returned.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.customers.List(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range customers {
				encodeCustomer(e, &customers[i])
			}
		})
	})
}

// GetCustomer handles GET /customers/{id}.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	c, err := h.customers.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCustomer(e, c) })
}

func encodeCustomer(e *jx.Encoder, c *customer.Customer) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(c.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(c.Name) })
		e.Field("email", func(e *jx.Encoder) { e.Str(c.Email) })
		e.Field("role", func(e *jx.Encoder) { e.Str(string(c.Role)) })
		e.Field("created_at", func(e *jx.Encoder) { encodeTime(e, c.CreatedAt) })
		e.Field("total_spent", func(e *jx.Encoder) { encodeMoney(e, c.TotalSpent) })
		e.Field("loyal", func(e *jx.Encoder) { e.Bool(c.Loyal) })
	})
}
