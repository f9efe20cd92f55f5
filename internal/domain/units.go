package domain

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Tokens converts a whole-token count to 18-decimal base units.
func Tokens(n int64) *big.Int {
	return decimal.NewFromInt(n).Shift(TokenDecimals).BigInt()
}

// ParseUnits parses a decimal string such as "69420.5" into 18-decimal base
// units, truncating excess precision.
func ParseUnits(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("parse units %q: %w", s, err)
	}
	return d.Shift(TokenDecimals).Truncate(0).BigInt(), nil
}

// FormatUnits renders 18-decimal base units as a decimal string with places
// digits after the point.
func FormatUnits(v *big.Int, places int32) string {
	return decimal.NewFromBigInt(orZero(v), -TokenDecimals).StringFixed(places)
}
