package entity

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var maxMinorUnits = decimal.NewFromInt(math.MaxInt64) //nolint:gochecknoglobals

// Bounds checked before any rescaling. Rounding cost grows with the distance
// between an amount's exponent and the currency exponent, and both come from
// the caller.
const (
	minAmountExponent    = -18
	maxAmountExponent    = 19
	maxCoefficientBits   = 128
	maxAmountInputLength = 64
)

// ToMinorUnits converts a decimal amount to a positive integer number of minor
// units: round(amount * 10^exp), rounding half away from zero. Every money
// path (topup, transfer, payment, card authorization) goes through here.
func ToMinorUnits(amount decimal.Decimal, currency Currency) (int64, error) {
	if exp := amount.Exponent(); exp < minAmountExponent || exp > maxAmountExponent {
		return 0, fmt.Errorf("%w: scale out of range", ErrInvalidAmount)
	}
	if amount.Coefficient().BitLen() > maxCoefficientBits {
		return 0, fmt.Errorf("%w: too many digits", ErrInvalidAmount)
	}

	minor := amount.Shift(currency.MinorUnitExponent()).Round(0)
	if !minor.IsPositive() {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	if minor.GreaterThan(maxMinorUnits) {
		return 0, fmt.Errorf("%w: out of range", ErrInvalidAmount)
	}
	return minor.IntPart(), nil
}

// ParseMinorUnits parses a decimal string ("27.50") into minor units.
func ParseMinorUnits(amount string, currency Currency) (int64, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return 0, ErrMissingAmount
	}
	if len(amount) > maxAmountInputLength {
		return 0, fmt.Errorf("%w: longer than %d characters", ErrInvalidAmount, maxAmountInputLength)
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	return ToMinorUnits(d, currency)
}

// FormatMinorUnits renders minor units as a fixed-point decimal string.
func FormatMinorUnits(minor int64, currency Currency) string {
	exp := currency.MinorUnitExponent()
	return decimal.New(minor, -exp).StringFixed(exp)
}
