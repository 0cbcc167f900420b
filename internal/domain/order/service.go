package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/storefront-orders/internal/domain/customer"
	"github.com/xenking/storefront-orders/internal/domain/loyalty"
	"github.com/xenking/storefront-orders/internal/domain/product"
	"github.com/xenking/storefront-orders/internal/validation"
)

const (
	instrumentationName = "github.com/xenking/storefront-orders/internal/domain/order"

	// DefaultTimeout bounds a single placement transaction.
	DefaultTimeout = 10 * time.Second
)

// maxAmount is the largest value the NUMERIC(12,2) order total and customer
// spend columns hold.
var maxAmount = decimal.RequireFromString("9999999999.99")

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	CustomerID int64
	Items      []RequestItem
}

// RequestItem is one requested line: a product and how many of it.
type RequestItem struct {
	ProductID int64
	Quantity  int
}

// PlaceOrderResult holds the output of a successfully placed order.
type PlaceOrderResult struct {
	Order *Order
	// Subtotal is the pre-discount sum of item lines.
	Subtotal decimal.Decimal
	// Standing is the customer aggregate after this order.
	Standing Standing
}

// Option configures a Service.
type Option func(*Service)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithTracerProvider sets the provider used for workflow spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracerProvider = tp }
}

// WithMeterProvider sets the provider used for order counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meterProvider = mp }
}

// Service encapsulates order placement business logic.
type Service struct {
	store   Store
	policy  loyalty.Policy
	timeout time.Duration

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	tracer         trace.Tracer
	placed         metric.Int64Counter
	failed         metric.Int64Counter
	revenue        metric.Float64Counter
}

// NewService creates an order Service.
func NewService(store Store, policy loyalty.Policy, opts ...Option) (*Service, error) {
	if err := policy.Validate(); err != nil {
		return nil, errors.Wrap(err, "loyalty policy")
	}
	s := &Service{
		store:          store,
		policy:         policy,
		timeout:        DefaultTimeout,
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
	}
	for _, o := range opts {
		o(s)
	}

	s.tracer = s.tracerProvider.Tracer(instrumentationName)
	meter := s.meterProvider.Meter(instrumentationName)

	var err error
	if s.placed, err = meter.Int64Counter("shop.orders.placed",
		metric.WithDescription("Orders committed"),
	); err != nil {
		return nil, errors.Wrap(err, "orders placed counter")
	}
	if s.failed, err = meter.Int64Counter("shop.orders.failed",
		metric.WithDescription("Order placements rolled back"),
	); err != nil {
		return nil, errors.Wrap(err, "orders failed counter")
	}
	if s.revenue, err = meter.Float64Counter("shop.orders.revenue",
		metric.WithDescription("Post-discount order totals"),
	); err != nil {
		return nil, errors.Wrap(err, "revenue counter")
	}
	return s, nil
}

// PlaceOrder validates the request and then, in a single transaction, prices
// every line from the catalog, applies the loyalty discount, persists the
// order with its items and updates the customer's spend and loyalty flag.
//
// The transaction is detached from ctx cancellation and bounded by the
// service timeout instead, so a disconnecting caller does not abort an order
// midway. Any failure inside the transaction is returned as a
// *TransactionError and leaves no trace in storage.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, "order.Place", trace.WithAttributes(
		attribute.Int64("customer.id", req.CustomerID),
		attribute.Int("order.lines", len(req.Items)),
	))
	defer span.End()

	var result *PlaceOrderResult
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		r, err := s.place(ctx, tx, req)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "placement failed")
		s.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", failureReason(err))))
		return nil, &TransactionError{Err: err}
	}

	span.SetAttributes(attribute.Int64("order.id", result.Order.ID))
	discounted := attribute.Bool("discounted", result.Order.Discount.IsPositive())
	s.placed.Add(ctx, 1, metric.WithAttributes(discounted))
	s.revenue.Add(ctx, result.Order.Total.InexactFloat64(), metric.WithAttributes(discounted))
	return result, nil
}

func (s *Service) place(ctx context.Context, tx Tx, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	standing, err := tx.LockCustomer(ctx, req.CustomerID)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			return nil, &CustomerNotFoundError{CustomerID: req.CustomerID}
		}
		return nil, errors.Wrap(err, "lock customer")
	}

	orderID, createdAt, err := tx.CreateOrder(ctx, req.CustomerID)
	if err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	items := make([]Item, 0, len(req.Items))
	subtotal := decimal.Zero
	for _, ri := range req.Items {
		price, err := tx.ProductPrice(ctx, ri.ProductID)
		if err != nil {
			if errors.Is(err, product.ErrNotFound) {
				return nil, &ProductNotFoundError{ProductID: ri.ProductID}
			}
			return nil, errors.Wrapf(err, "get price of product %d", ri.ProductID)
		}

		item := Item{ProductID: ri.ProductID, Quantity: ri.Quantity, UnitPrice: price}
		subtotal = subtotal.Add(item.Line())
		if subtotal.GreaterThan(maxAmount) {
			return nil, &validation.Error{Violations: validation.Violations{"items": "total_out_of_range"}}
		}

		if item.ID, err = tx.AddItem(ctx, orderID, item); err != nil {
			return nil, errors.Wrapf(err, "add item for product %d", ri.ProductID)
		}
		items = append(items, item)
	}

	pricing := s.policy.Apply(subtotal, standing.Loyal)
	if err := tx.SetTotals(ctx, orderID, pricing.Total, pricing.Discount); err != nil {
		return nil, errors.Wrap(err, "set order totals")
	}

	spent := standing.TotalSpent.Add(pricing.Total)
	if spent.GreaterThan(maxAmount) {
		return nil, &validation.Error{Violations: validation.Violations{"customer_id": "total_spent_out_of_range"}}
	}
	next := Standing{TotalSpent: spent, Loyal: s.policy.Qualifies(spent)}
	if err := tx.UpdateStanding(ctx, req.CustomerID, next); err != nil {
		return nil, errors.Wrap(err, "update customer standing")
	}

	return &PlaceOrderResult{
		Order: &Order{
			ID:         orderID,
			CustomerID: req.CustomerID,
			CreatedAt:  createdAt,
			Total:      pricing.Total,
			Discount:   pricing.Discount,
			Items:      items,
		},
		Subtotal: pricing.Subtotal,
		Standing: next,
	}, nil
}

// GetOrder returns a placed order with its items.
func (s *Service) GetOrder(ctx context.Context, id int64) (*Order, error) {
	if id <= 0 {
		return nil, ErrNotFound
	}
	o, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	return o, nil
}

func (r PlaceOrderRequest) validate() error {
	if r.CustomerID <= 0 {
		return &InvalidIDError{Field: "customer_id", Value: r.CustomerID}
	}
	if len(r.Items) == 0 {
		return ErrEmptyItems
	}
	for _, item := range r.Items {
		if item.ProductID <= 0 {
			return &InvalidIDError{Field: "product_id", Value: item.ProductID}
		}
		if item.Quantity <= 0 {
			return &InvalidQuantityError{ProductID: item.ProductID, Quantity: item.Quantity}
		}
	}
	return nil
}

func failureReason(err error) string {
	var (
		cnf  *CustomerNotFoundError
		pnf  *ProductNotFoundError
		verr *validation.Error
	)
	switch {
	case errors.As(err, &verr):
		return "out_of_range"
	case errors.As(err, &cnf):
		return "customer_not_found"
	case errors.As(err, &pnf):
		return "product_not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "storage"
	}
}
