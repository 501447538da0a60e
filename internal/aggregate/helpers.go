package aggregate

import (
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

const ratioScale = 18

func toDecimal(value *uint256.Int, decimals uint8) decimal.Decimal {
	if value == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(value.ToBig(), -int32(decimals))
}

func formatTokenAmount(value *uint256.Int, decimals uint8) string {
	return toDecimal(value, decimals).StringFixed(int32(decimals))
}

// computeTurnover is the window quote volume over the closing quote reserve.
func computeTurnover(volume *uint256.Int, endQuote uint64) *string {
	if volume == nil || volume.IsZero() || endQuote == 0 {
		return nil
	}
	ratio := toDecimal(volume, 0).DivRound(toDecimal(uint256.NewInt(endQuote), 0), ratioScale)
	val := ratio.StringFixed(ratioScale)
	return &val
}
