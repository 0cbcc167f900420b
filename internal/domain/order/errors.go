package order

import (
	"fmt"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront-orders/internal/domain/customer"
	"github.com/xenking/storefront-orders/internal/domain/product"
)

// Validation errors, detected before a transaction is opened.
var (
	ErrEmptyItems = errors.New("items required")
)

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID int64
	Quantity  int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %d", e.ProductID)
}

// InvalidIDError indicates a non-positive customer or product identifier.
type InvalidIDError struct {
	Field string
	Value int64
}

func (e *InvalidIDError) Error() string {
	return fmt.Sprintf("%s must be a positive integer, got %d", e.Field, e.Value)
}

// CustomerNotFoundError indicates the ordering customer does not exist.
type CustomerNotFoundError struct {
	CustomerID int64
}

func (e *CustomerNotFoundError) Error() string {
	return fmt.Sprintf("customer %d not found", e.CustomerID)
}

func (e *CustomerNotFoundError) Unwrap() error { return customer.ErrNotFound }

// ProductNotFoundError indicates an ordered product does not exist.
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

func (e *ProductNotFoundError) Unwrap() error { return product.ErrNotFound }

// TransactionError wraps any failure that aborted the placement transaction.
// Nothing from the attempt is persisted.
type TransactionError struct {
	Err error
}

func (e *TransactionError) Error() string {
	return "order transaction failed: " + e.Err.Error()
}

func (e *TransactionError) Unwrap() error { return e.Err }
