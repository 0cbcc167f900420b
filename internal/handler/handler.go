// Package handler exposes the domain services over HTTP.
package handler

import (
	"net/http"

	"github.com/xenking/storefront-orders/internal/domain/auth"
	"github.com/xenking/storefront-orders/internal/domain/customer"
	"github.com/xenking/storefront-orders/internal/domain/order"
	"github.com/xenking/storefront-orders/internal/domain/product"
)

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// Authenticator protects the customer listing. A nil Authenticator
	// leaves it open.
	Authenticator *auth.Authenticator
}

// Handler maps HTTP requests onto the customer, product and order services.
type Handler struct {
	customers *customer.Service
	products  *product.Service
	orders    *order.Service
	auth      *auth.Authenticator
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg HandlerConfig,
	customers *customer.Service,
	products *product.Service,
	orders *order.Service,
) *Handler {
	return &Handler{
		customers: customers,
		products:  products,
		orders:    orders,
		auth:      cfg.Authenticator,
	}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /customers", h.CreateCustomer)
	mux.HandleFunc("GET /customers", h.requireScope(auth.ScopeReadCustomers, h.ListCustomers))
	mux.HandleFunc("GET /customers/{id}", h.requireScope(auth.ScopeReadCustomers, h.GetCustomer))

	mux.HandleFunc("POST /products", h.CreateProduct)
	mux.HandleFunc("GET /products", h.ListProducts)
	mux.HandleFunc("GET /products/{id}", h.GetProduct)

	mux.HandleFunc("POST /orders", h.PlaceOrder)
	mux.HandleFunc("GET /orders/{id}", h.GetOrder)
}
