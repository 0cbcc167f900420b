package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// Order is a placed order. Total is the amount charged after Discount, and
// Total+Discount equals the sum of item lines.
type Order struct {
	ID         int64
	CustomerID int64
	CreatedAt  time.Time
	Total      decimal.Decimal
	Discount   decimal.Decimal
	Items      []Item
}

// Item is an order line. UnitPrice is the catalog price observed when the
// order was placed and does not follow later price changes.
type Item struct {
	ID        int64
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
}

// Line returns UnitPrice × Quantity.
func (i Item) Line() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Standing is the customer aggregate that order placement reads and updates.
type Standing struct {
	TotalSpent decimal.Decimal
	Loyal      bool
}

// Tx is the set of operations the placement workflow performs inside one
// database transaction.
type Tx interface {
	// LockCustomer reads the customer's standing and holds a row lock on it
	// until the transaction ends. Returns customer.ErrNotFound when missing.
	LockCustomer(ctx context.Context, customerID int64) (Standing, error)
	// ProductPrice returns the current catalog price. Returns
	// product.ErrNotFound when missing.
	ProductPrice(ctx context.Context, productID int64) (decimal.Decimal, error)
	// CreateOrder inserts an order with zero totals.
	CreateOrder(ctx context.Context, customerID int64) (id int64, createdAt time.Time, err error)
	AddItem(ctx context.Context, orderID int64, item Item) (int64, error)
	SetTotals(ctx context.Context, orderID int64, total, discount decimal.Decimal) error
	UpdateStanding(ctx context.Context, customerID int64, s Standing) error
}

// Store runs placement transactions and serves order reads.
type Store interface {
	// InTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	GetByID(ctx context.Context, id int64) (*Order, error)
}
