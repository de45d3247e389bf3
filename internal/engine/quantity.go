package engine

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// QuantityError means no order quantity satisfying the exchange lot rules
// could be computed for the configured quote amount.
type QuantityError struct {
	Symbol string
	Reason string
}

func (e *QuantityError) Error() string {
	return fmt.Sprintf("quantity %s: %s", e.Symbol, e.Reason)
}

// ComputeQuantity converts a quote amount into a base quantity floored to
// the lot step, formatted to the step's decimal precision. All arithmetic is
// decimal; binary floating point would drift off the step grid.
func ComputeQuantity(symbol string, quoteAmount, price, stepSize, minQty decimal.Decimal) (string, decimal.Decimal, error) {
	if price.LessThanOrEqual(decimal.Zero) || stepSize.LessThanOrEqual(decimal.Zero) {
		return "", decimal.Zero, &QuantityError{Symbol: symbol, Reason: "invalid price or lot step"}
	}
	if price.Mul(minQty).GreaterThan(quoteAmount) {
		return "", decimal.Zero, &QuantityError{Symbol: symbol, Reason: "quote amount below exchange minimum"}
	}

	rawQty := quoteAmount.Div(price)
	qty := rawQty.Div(stepSize).Floor().Mul(stepSize)
	if qty.LessThan(minQty) {
		return "", decimal.Zero, &QuantityError{Symbol: symbol, Reason: "floored quantity below minQty"}
	}

	return qty.StringFixed(stepPrecision(stepSize)), qty, nil
}

// stepPrecision is the number of significant fractional digits of a lot
// step. The exchange reports steps with trailing zeros ("0.00100000"), so
// the decimal exponent alone over-counts.
func stepPrecision(step decimal.Decimal) int32 {
	s := step.String()
	i := strings.IndexByte(s, '.')
	if i < 0 {
		return 0
	}
	return int32(len(strings.TrimRight(s[i+1:], "0")))
}
