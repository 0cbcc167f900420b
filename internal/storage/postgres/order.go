package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-orders/internal/domain/customer"
	"github.com/xenking/storefront-orders/internal/domain/order"
	"github.com/xenking/storefront-orders/internal/domain/product"
)

const (
	lockCustomerSQL = `SELECT total_spent, loyal FROM customers WHERE id = $1 FOR UPDATE`

	productPriceSQL = `SELECT price FROM products WHERE id = $1`

	createOrderSQL = `INSERT INTO orders (customer_id, total, discount)
		VALUES ($1, 0, 0)
		RETURNING id, created_at`

	addOrderItemSQL = `INSERT INTO order_items (order_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	setOrderTotalsSQL = `UPDATE orders SET total = $2, discount = $3 WHERE id = $1`

	updateStandingSQL = `UPDATE customers SET total_spent = $2, loyal = $3 WHERE id = $1`

	getOrderByIDSQL = `SELECT id, customer_id, created_at, total, discount
		FROM orders WHERE id = $1`

	listOrderItemsSQL = `SELECT id, product_id, quantity, unit_price
		FROM order_items WHERE order_id = $1 ORDER BY id`
)

var (
	_ order.Store = (*OrderStore)(nil)
	_ order.Tx    = (*orderTx)(nil)
)

// OrderStore implements order.Store backed by PostgreSQL. Each InTx call runs
// on a single pooled connection at READ COMMITTED; the customer row lock taken
// by LockCustomer serializes concurrent placements for the same customer.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore returns an OrderStore that uses the given pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// InTx begins a transaction, runs fn and commits if fn returns nil. Otherwise
// the transaction is rolled back and fn's error returned.
func (s *OrderStore) InTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, &orderTx{tx: tx})
	})
}

// GetByID returns an order with its items.
func (s *OrderStore) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	var o order.Order
	err := s.pool.QueryRow(ctx, getOrderByIDSQL, id).Scan(
		&o.ID, &o.CustomerID, &o.CreatedAt, &o.Total, &o.Discount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}

	rows, err := s.pool.Query(ctx, listOrderItemsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("listing items of order %d: %w", id, err)
	}
	o.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Item, error) {
		var it order.Item
		err := row.Scan(&it.ID, &it.ProductID, &it.Quantity, &it.UnitPrice)
		return it, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning items of order %d: %w", id, err)
	}
	return &o, nil
}

type orderTx struct {
	tx pgx.Tx
}

func (t *orderTx) LockCustomer(ctx context.Context, customerID int64) (order.Standing, error) {
	var s order.Standing
	err := t.tx.QueryRow(ctx, lockCustomerSQL, customerID).Scan(&s.TotalSpent, &s.Loyal)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.Standing{}, customer.ErrNotFound
		}
		return order.Standing{}, fmt.Errorf("locking customer %d: %w", customerID, err)
	}
	return s, nil
}

func (t *orderTx) ProductPrice(ctx context.Context, productID int64) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := t.tx.QueryRow(ctx, productPriceSQL, productID).Scan(&price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, product.ErrNotFound
		}
		return decimal.Zero, fmt.Errorf("reading price of product %d: %w", productID, err)
	}
	return price, nil
}

func (t *orderTx) CreateOrder(ctx context.Context, customerID int64) (int64, time.Time, error) {
	var (
		id        int64
		createdAt time.Time
	)
	if err := t.tx.QueryRow(ctx, createOrderSQL, customerID).Scan(&id, &createdAt); err != nil {
		return 0, time.Time{}, fmt.Errorf("creating order for customer %d: %w", customerID, err)
	}
	return id, createdAt, nil
}

func (t *orderTx) AddItem(ctx context.Context, orderID int64, item order.Item) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, addOrderItemSQL,
		orderID, item.ProductID, item.Quantity, item.UnitPrice,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("adding item to order %d: %w", orderID, err)
	}
	return id, nil
}

func (t *orderTx) SetTotals(ctx context.Context, orderID int64, total, discount decimal.Decimal) error {
	tag, err := t.tx.Exec(ctx, setOrderTotalsSQL, orderID, total, discount)
	if err != nil {
		return fmt.Errorf("setting totals of order %d: %w", orderID, err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("setting totals of order %d: %w", orderID, order.ErrNotFound)
	}
	return nil
}

func (t *orderTx) UpdateStanding(ctx context.Context, customerID int64, s order.Standing) error {
	tag, err := t.tx.Exec(ctx, updateStandingSQL, customerID, s.TotalSpent, s.Loyal)
	if err != nil {
		return fmt.Errorf("updating standing of customer %d: %w", customerID, err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("updating standing of customer %d: %w", customerID, customer.ErrNotFound)
	}
	return nil
}
