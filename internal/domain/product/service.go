package product

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-orders/internal/validation"
)

// maxPrice is the largest value a NUMERIC(10,2) price column holds.
var maxPrice = decimal.RequireFromString("99999999.99")

// Draft is the input for creating a product.
type Draft struct {
	Name        string
	Description string
	Image       string
	Category    string
	Price       decimal.Decimal
	Stock       int
}

// Validate checks a draft and applies defaults. It returns a
// *validation.Error describing every rejected field.
func (d *Draft) Validate() error {
	d.Name = strings.TrimSpace(d.Name)
	d.Category = strings.TrimSpace(d.Category)
	if d.Category == "" {
		d.Category = DefaultCategory
	}

	v := validation.Violations{}
	v.Required("name", d.Name)
	v.MaxLen("name", d.Name, 255)
	v.MaxLen("category", d.Category, 255)
	switch {
	case d.Price.IsNegative():
		v.Add("price", "must_not_be_negative")
	case d.Price.GreaterThan(maxPrice):
		v.Add("price", "out_of_range")
	case !d.Price.Equal(d.Price.Round(2)):
		v.Add("price", "too_many_decimals")
	}
	if d.Stock < 0 {
		v.Add("stock", "must_not_be_negative")
	}
	return v.Err()
}

// Service handles catalog writes and reads.
type Service struct {
	repo Repository
}

// NewService creates a product Service backed by repo.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create validates the draft and stores it.
func (s *Service) Create(ctx context.Context, d Draft) (*Product, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	p := &Product{
		Name:        d.Name,
		Description: d.Description,
		Image:       d.Image,
		Category:    d.Category,
		Price:       d.Price,
		Stock:       d.Stock,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create product")
	}
	return p, nil
}

// List returns the products matching filter ordered by ID.
func (s *Service) List(ctx context.Context, filter Filter) ([]Product, error) {
	products, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return products, nil
}

// Get returns a single product.
func (s *Service) Get(ctx context.Context, id int64) (*Product, error) {
	if id <= 0 {
		return nil, ErrNotFound
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get product")
	}
	return p, nil
}
