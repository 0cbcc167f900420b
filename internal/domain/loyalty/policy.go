// Package loyalty implements the flat loyalty discount applied at order time.
package loyalty

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// DefaultRate is the discount granted to loyal customers (10%).
	DefaultRate = decimal.RequireFromString("0.10")
	// DefaultThreshold is the cumulative spend at which a customer becomes loyal.
	DefaultThreshold = decimal.NewFromInt(1000)
)

// Policy is a step function: loyal customers get Rate off the subtotal,
// everybody else pays full price.
type Policy struct {
	Rate      decimal.Decimal
	Threshold decimal.Decimal
}

// Default returns the standard 10% / 1000 policy.
func Default() Policy {
	return Policy{Rate: DefaultRate, Threshold: DefaultThreshold}
}

// Validate rejects rates outside [0, 1] and negative thresholds.
func (p Policy) Validate() error {
	if p.Rate.IsNegative() || p.Rate.GreaterThan(decimal.NewFromInt(1)) {
		return errors.Errorf("loyalty rate %s out of range [0, 1]", p.Rate)
	}
	if p.Threshold.IsNegative() {
		return errors.Errorf("loyalty threshold %s is negative", p.Threshold)
	}
	return nil
}

// RateFor returns the discount rate for a customer with the given flag.
func (p Policy) RateFor(loyal bool) decimal.Decimal {
	if loyal {
		return p.Rate
	}
	return decimal.Zero
}

// Pricing is the outcome of applying the policy to a subtotal.
type Pricing struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// Apply prices a subtotal for a customer. Discount is rounded to cents and
// Total is derived from it, so Total+Discount always equals Subtotal.
func (p Policy) Apply(subtotal decimal.Decimal, loyal bool) Pricing {
	discount := subtotal.Mul(p.RateFor(loyal)).Round(2)
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	return Pricing{
		Subtotal: subtotal,
		Discount: discount,
		Total:    subtotal.Sub(discount),
	}
}

// Qualifies reports whether a cumulative spend earns the loyalty flag.
func (p Policy) Qualifies(totalSpent decimal.Decimal) bool {
	return totalSpent.GreaterThanOrEqual(p.Threshold)
}
