// Package money represents prices as integer minor units (paise).
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is a non-negative price in minor units.
type Amount int64

var (
	ErrNegative  = errors.New("amount must not be negative")
	ErrPrecision = errors.New("amount has more than two decimal places")
)

// FromDecimal converts a major-unit decimal such as 1499.50 into minor units.
func FromDecimal(d decimal.Decimal) (Amount, error) {
	if d.IsNegative() {
		return 0, ErrNegative
	}
	minor := d.Shift(2)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, ErrPrecision
	}
	if !minor.BigInt().IsInt64() {
		return 0, fmt.Errorf("amount %s out of range", d.String())
	}
	return Amount(minor.IntPart()), nil
}

// Decimal returns the amount in major units.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -2)
}

// Mul multiplies a unit price by a quantity.
func (a Amount) Mul(qty int) Amount {
	return a * Amount(qty)
}

func (a Amount) String() string {
	return a.Decimal().StringFixed(2)
}

// MarshalJSON writes the amount as a JSON number with two decimals.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts a JSON number or numeric string in major units.
func (a *Amount) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	v, err := FromDecimal(d)
	if err != nil {
		return err
	}
	*a = v
	return nil
}
