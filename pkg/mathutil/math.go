package mathutil

import (
	"fmt"

	"github.com/shopspring/decimal"
)

func init() {
	decimal.DivisionPrecision = 8
}

// FromSmallestUnit converts an integer amount expressed in the smallest unit
// of an asset into its human readable decimal representation.
func FromSmallestUnit(amount string, precision uint32) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %s: %w", amount, err)
	}
	if !d.IsInteger() {
		return decimal.Zero, fmt.Errorf("amount %s is not in smallest unit", amount)
	}
	return d.Shift(-int32(precision)), nil
}

// ToSmallestUnit converts a human readable decimal amount into the integer
// string representation in the smallest unit of an asset. The amount is
// truncated, never rounded up.
func ToSmallestUnit(amount string, precision uint32) (string, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return "", fmt.Errorf("invalid amount %s: %w", amount, err)
	}
	return d.Shift(int32(precision)).Truncate(0).String(), nil
}

// ImpliedRate returns the destination/source exchange rate implied by a pair
// of amounts in smallest units, truncated to 8 decimal places.
func ImpliedRate(
	fromAmount string, fromPrecision uint32,
	toAmount string, toPrecision uint32,
) (decimal.Decimal, error) {
	from, err := FromSmallestUnit(fromAmount, fromPrecision)
	if err != nil {
		return decimal.Zero, err
	}
	to, err := FromSmallestUnit(toAmount, toPrecision)
	if err != nil {
		return decimal.Zero, err
	}
	if from.IsZero() {
		return decimal.Zero, fmt.Errorf("from amount must not be zero")
	}
	return to.Div(from).Truncate(8), nil
}
