// Package money holds the fixed-point rules for monetary values.
//
// Every amount and balance is a decimal with exactly two fractional digits.
// Halfway values round away from zero (99.995 -> 100.00).
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits kept for every monetary value.
const Scale = 2

const (
	// maxInputLength bounds the textual form accepted by Parse.
	maxInputLength = 64
	// maxExponent bounds the decimal exponent of any value handed to
	// Normalize, so rounding never expands a short input into a huge one.
	maxExponent = 32
)

var (
	// Zero is 0.00.
	Zero = decimal.Zero
	// MaxAmount is the largest amount or balance a NUMERIC(12,2) column holds.
	MaxAmount = decimal.New(999999999999, -Scale)
)

// ErrOutOfRange is returned by Parse for values too large or too precise to
// be a monetary amount.
var ErrOutOfRange = errors.New("amount out of range")

// Normalize rounds d to Scale digits, half away from zero.
func Normalize(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// Bounded reports whether d can be normalized cheaply: its exponent and
// coefficient are both within the range a monetary value could use.
func Bounded(d decimal.Decimal) bool {
	exp := d.Exponent()
	if exp > maxExponent || exp < -maxExponent {
		return false
	}
	return d.Coefficient().BitLen() <= 4*maxExponent
}

// ParseExact reads a decimal string without rounding it. Inputs that are not
// Bounded fail with ErrOutOfRange.
func ParseExact(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	if len(s) > maxInputLength {
		return decimal.Zero, ErrOutOfRange
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if !Bounded(d) {
		return decimal.Zero, ErrOutOfRange
	}
	return d, nil
}

// Parse reads a decimal string and normalizes it.
func Parse(s string) (decimal.Decimal, error) {
	d, err := ParseExact(s)
	if err != nil {
		return decimal.Zero, err
	}
	return Normalize(d), nil
}

// WithinLimit reports whether |d| <= MaxAmount.
func WithinLimit(d decimal.Decimal) bool {
	return d.Abs().LessThanOrEqual(MaxAmount)
}

// Format renders d with exactly two decimals.
func Format(d decimal.Decimal) string {
	return Normalize(d).StringFixed(Scale)
}

// IsPositive reports whether the normalized value is > 0.
func IsPositive(d decimal.Decimal) bool {
	return Normalize(d).IsPositive()
}
