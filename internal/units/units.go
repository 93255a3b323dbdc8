// Package units converts between human readable decimal amounts and the
// integer smallest-unit amounts the ledger works in.
package units

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultDecimals matches the 18 decimal places of ether.
const DefaultDecimals int32 = 18

// ErrTooPrecise is returned when an amount has more fractional digits than
// the unit can represent.
var ErrTooPrecise = errors.New("amount has more fractional digits than the unit supports")

// Parse converts a decimal string such as "0.00001" into smallest units.
func Parse(amount string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("amount %q is negative", amount)
	}
	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, ErrTooPrecise
	}
	return scaled.BigInt(), nil
}

// Format renders smallest units as a decimal string without trailing zeros.
func Format(amount *big.Int, decimals int32) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -decimals).String()
}

// ParseInteger parses a base-10 smallest-unit amount.
func ParseInteger(amount string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(amount), 10)
	if !ok {
		return nil, fmt.Errorf("amount %q is not a base-10 integer", amount)
	}
	return v, nil
}
