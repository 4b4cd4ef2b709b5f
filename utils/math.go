// utils/math.go
package utils

import (
	"github.com/shopspring/decimal"
)

// RoundPrice rounds a decimal price half away from zero to the instrument's price precision.
func RoundPrice(price decimal.Decimal, precision int) decimal.Decimal {
	return price.Round(int32(precision))
}

// TruncateSize cuts a quantity down to the size precision. Sizes are never rounded up,
// so an order never exceeds the notional it was computed from.
func TruncateSize(size decimal.Decimal, precision int) decimal.Decimal {
	return size.Truncate(int32(precision))
}
