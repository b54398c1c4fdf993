package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType selects how a discount value is applied.
type DiscountType string

// Discount types.
const (
	DiscountPercentage DiscountType = "PERCENTAGE"
	DiscountFixed      DiscountType = "FIXED"
)

// IsValid reports whether t is a known discount type.
func (t DiscountType) IsValid() bool {
	return t == DiscountPercentage || t == DiscountFixed
}

// Discount is a redeemable code. UsedCount only ever grows, by one per order.
type Discount struct {
	ID          string              `json:"id"`
	Code        string              `json:"code"`
	Type        DiscountType        `json:"type"`
	Value       decimal.Decimal     `json:"value"`
	MinAmount   decimal.NullDecimal `json:"minAmount"`
	MaxDiscount decimal.NullDecimal `json:"maxDiscount"`
	ValidFrom   time.Time           `json:"validFrom"`
	ValidUntil  time.Time           `json:"validUntil"`
	UsageLimit  *int                `json:"usageLimit,omitempty"`
	UsedCount   int                 `json:"usedCount"`
	IsActive    bool                `json:"isActive"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

// Discount rejection reasons, checked in this order.
var (
	ErrDiscountNotFound      = errors.New("discount code not found")
	ErrDiscountInactive      = errors.New("discount code is not active")
	ErrDiscountNotStarted    = errors.New("discount code is not valid yet")
	ErrDiscountExpired       = errors.New("discount code has expired")
	ErrDiscountLimitReached  = errors.New("discount code usage limit reached")
	ErrDiscountInvalidAmount = errors.New("order amount must be positive")
	ErrDiscountBelowMinimum  = errors.New("order amount is below the discount minimum")
)

// NormalizeDiscountCode trims and uppercases a user-entered code.
func NormalizeDiscountCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// HasUsesLeft reports whether the usage limit still allows a redemption.
func (d *Discount) HasUsesLeft() bool {
	return d.UsageLimit == nil || d.UsedCount < *d.UsageLimit
}

// Check validates d for amount at now. The first failing rule wins.
func (d *Discount) Check(amount decimal.Decimal, now time.Time) error {
	if !d.IsActive {
		return ErrDiscountInactive
	}
	if now.Before(d.ValidFrom) {
		return ErrDiscountNotStarted
	}
	if now.After(d.ValidUntil) {
		return ErrDiscountExpired
	}
	if !d.HasUsesLeft() {
		return ErrDiscountLimitReached
	}
	if !amount.IsPositive() {
		return ErrDiscountInvalidAmount
	}
	if d.MinAmount.Valid && amount.LessThan(d.MinAmount.Decimal) {
		return ErrDiscountBelowMinimum
	}
	return nil
}

// Amount computes the discount for amount. The result never exceeds amount,
// never exceeds MaxDiscount for percentage codes, and is rounded half-up to
// two decimals.
func (d *Discount) Amount(amount decimal.Decimal) decimal.Decimal {
	var off decimal.Decimal
	switch d.Type {
	case DiscountPercentage:
		off = amount.Mul(d.Value).Div(decimal.NewFromInt(100))
		if d.MaxDiscount.Valid && off.GreaterThan(d.MaxDiscount.Decimal) {
			off = d.MaxDiscount.Decimal
		}
	case DiscountFixed:
		off = d.Value
	}

	if off.GreaterThan(amount) {
		off = amount
	}
	if off.IsNegative() {
		off = decimal.Zero
	}
	return off.Round(2)
}

// Evaluate validates d and returns the discount amount for amount.
func (d *Discount) Evaluate(amount decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	if err := d.Check(amount, now); err != nil {
		return decimal.Zero, err
	}
	return d.Amount(amount), nil
}
