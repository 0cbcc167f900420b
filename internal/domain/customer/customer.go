package customer

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Role is the access level stored with a customer.
type Role string

const (
	// RoleAdmin marks store administrators.
	RoleAdmin Role = "admin"
	// RoleRegular is the default role for self-registered customers.
	RoleRegular Role = "regular"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleRegular
}

var (
	// ErrNotFound is returned when a customer does not exist.
	ErrNotFound = errors.New("customer not found")
	// ErrEmailTaken is returned when the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
)

// Customer is a registered buyer together with the loyalty aggregate that
// order placement maintains.
type Customer struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	TotalSpent   decimal.Decimal
	Loyal        bool
}

// Repository defines persistence operations for customers.
type Repository interface {
	// Create inserts c and fills in ID and CreatedAt.
	Create(ctx context.Context, c *Customer) error
	List(ctx context.Context) ([]Customer, error)
	GetByID(ctx context.Context, id int64) (*Customer, error)
}
