package money

import (
	"errors"

	"github.com/shopspring/decimal"
)

// MinorPlaces is the number of decimal places of the currency's minor unit.
const MinorPlaces = 2

var (
	ErrInvalidAmount = errors.New("amount cannot be negative")
	ErrInvalidParts  = errors.New("number of parts must be positive")
)

// FromFloat converts a float into a decimal amount.
func FromFloat(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

// Float converts a decimal amount to a float for the wire format.
func Float(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

// Round rounds an amount to the currency's minor unit (half up).
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(MinorPlaces)
}

// MulRatio returns amount * numerator / denominator without rounding.
// Returns zero when the denominator is zero.
func MulRatio(amount, numerator, denominator decimal.Decimal) decimal.Decimal {
	if denominator.IsZero() {
		return decimal.Zero
	}
	return amount.Mul(numerator).Div(denominator)
}

// DivideEvenly splits amount into n parts that sum exactly to amount.
// The amount is first rounded to the minor unit; any remainder cents go to
// the earliest-indexed parts.
func DivideEvenly(amount decimal.Decimal, n int) ([]decimal.Decimal, error) {
	if n <= 0 {
		return nil, ErrInvalidParts
	}
	if amount.IsNegative() {
		return nil, ErrInvalidAmount
	}

	cents := amount.Round(MinorPlaces).Shift(MinorPlaces).IntPart()
	base := cents / int64(n)
	remainder := cents - base*int64(n)

	parts := make([]decimal.Decimal, n)
	for i := range parts {
		c := base
		if int64(i) < remainder {
			c++
		}
		parts[i] = decimal.New(c, -MinorPlaces)
	}
	return parts, nil
}
