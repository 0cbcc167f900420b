package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DefaultCategory is assigned to products created without a category.
const DefaultCategory = "geral"

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase. Stock is
// informational; order placement does not decrement it.
type Product struct {
	ID          int64
	Name        string
	Description string
	Image       string
	Category    string
	Price       decimal.Decimal
	Stock       int
	CreatedAt   time.Time
}

// Filter narrows a catalog listing. Zero values disable a criterion; set
// criteria are AND-combined.
type Filter struct {
	// Name matches products whose name contains the value, ignoring case.
	Name string
	// Category matches exactly.
	Category string
	// MaxPrice keeps products priced at or below the value.
	MaxPrice decimal.NullDecimal
	// Description matches products whose description contains the value, ignoring case.
	Description string
}

// Empty reports whether no criterion is set.
func (f Filter) Empty() bool {
	return f.Name == "" && f.Category == "" && !f.MaxPrice.Valid && f.Description == ""
}

// Repository defines catalog persistence.
type Repository interface {
	// Create inserts p and fills in ID and CreatedAt.
	Create(ctx context.Context, p *Product) error
	List(ctx context.Context, filter Filter) ([]Product, error)
	GetByID(ctx context.Context, id int64) (*Product, error)
}
