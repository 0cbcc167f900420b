package handler

import (
	"net/http"
	"sort"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-orders/internal/domain/auth"
	"github.com/xenking/storefront-orders/internal/domain/customer"
	"github.com/xenking/storefront-orders/internal/domain/order"
	"github.com/xenking/storefront-orders/internal/domain/product"
	"github.com/xenking/storefront-orders/internal/validation"
)

// writeError writes {"error": msg, "details": {...}}. details may be nil.
func writeError(w http.ResponseWriter, status int, msg string, details map[string]string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("error", func(e *jx.Encoder) { e.Str(msg) })
			if len(details) == 0 {
				return
			}
			keys := make([]string, 0, len(details))
			for k := range details {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			e.Field("details", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					for _, k := range keys {
						e.Field(k, func(e *jx.Encoder) { e.Str(details[k]) })
					}
				})
			})
		})
	})
}

// writeDomainError maps err to an HTTP status and error body. Unexpected
// errors are logged and reported without their message.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr *validation.Error
		qerr *order.InvalidQuantityError
		ierr *order.InvalidIDError
		perr *order.ProductNotFoundError
		cerr *order.CustomerNotFoundError
	)
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, "invalid request", verr.Violations)
	case errors.Is(err, order.ErrEmptyItems):
		writeError(w, http.StatusBadRequest, err.Error(), map[string]string{"items": "required"})
	case errors.As(err, &qerr):
		writeError(w, http.StatusBadRequest, qerr.Error(), map[string]string{"quantity": "must_be_positive"})
	case errors.As(err, &ierr):
		writeError(w, http.StatusBadRequest, ierr.Error(), map[string]string{ierr.Field: "must_be_positive"})
	case errors.As(err, &perr):
		writeError(w, http.StatusNotFound, perr.Error(), nil)
	case errors.As(err, &cerr):
		writeError(w, http.StatusNotFound, cerr.Error(), nil)
	case errors.Is(err, customer.ErrNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, notFoundMessage(err), nil)
	case errors.Is(err, customer.ErrEmailTaken):
		writeError(w, http.StatusConflict, customer.ErrEmailTaken.Error(), map[string]string{"email": "taken"})
	case errors.Is(err, auth.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized", nil)
	default:
		zctx.From(r.Context()).Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal server error", nil)
	}
}

func notFoundMessage(err error) string {
	for _, target := range []error{customer.ErrNotFound, product.ErrNotFound, order.ErrNotFound} {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return "not found"
}
