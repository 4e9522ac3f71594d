package util

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var amountShape = regexp.MustCompile(`^\d+(?:\.\d+)?$`)

// ParseAmount parses a currency amount as printed in the catalog,
// stripping thousands-separator commas ("1,250.50" -> 1250.50).
// A false second return means the token is not a usable amount.
func ParseAmount(token string) (decimal.Decimal, bool) {
	compact := strings.ReplaceAll(strings.TrimSpace(token), ",", "")
	if !amountShape.MatchString(compact) {
		return decimal.Zero, false
	}
	parsed, err := decimal.NewFromString(compact)
	if err != nil {
		return decimal.Zero, false
	}
	return parsed, true
}

// DivHalfUp divides price by qty rounding half-up to the given number
// of decimal places. Positive inputs only, which is all the catalog
// ever quotes.
func DivHalfUp(price decimal.Decimal, qty int64, places int32) decimal.Decimal {
	return price.DivRound(decimal.NewFromInt(qty), places)
}
