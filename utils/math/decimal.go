package math

import (
	"fmt"

	"github.com/michaelpento.lv/swapquote/types"

	"github.com/shopspring/decimal"
)

// DivisionPrecision is the number of fractional digits kept by Div. Reported
// figures are truncated well below it.
const DivisionPrecision int32 = 36

// BasisPointsDenominator is the basis point scale for fees and slippage
const BasisPointsDenominator = 10000

// MaxBasisPoints is the largest meaningful fee or slippage, 100%
const MaxBasisPoints int64 = BasisPointsDenominator

var (
	hundred  = decimal.NewFromInt(100)
	two      = decimal.NewFromInt(2)
	bpsScale = decimal.NewFromInt(BasisPointsDenominator)
)

// Div divides a by b keeping DivisionPrecision fractional digits
func Div(a, b decimal.Decimal) decimal.Decimal {
	return a.DivRound(b, DivisionPrecision)
}

// FeeForTotal returns amount * feeBasisPoints / 10000.
// A zero fee yields an exact zero.
func FeeForTotal(amount decimal.Decimal, feeBasisPoints int64) (decimal.Decimal, error) {
	if feeBasisPoints < 0 {
		return decimal.Zero, fmt.Errorf("negative fee %d bps: %w", feeBasisPoints, types.ErrInvalidArgument)
	}
	if feeBasisPoints == 0 {
		return decimal.Zero, nil
	}

	// multiply first so the only rounding happens in the final division
	fee := amount.Mul(decimal.NewFromInt(feeBasisPoints))
	return Div(fee, bpsScale), nil
}

// Cmp compares x and y and returns:
//   - -1 if x < y
//   - 0 if x == y
//   - +1 if x > y
//
// Quote comparisons go through Cmp on values of like precision.
func Cmp(x, y decimal.Decimal) int {
	return x.Cmp(y)
}

// Greater reports whether x is strictly greater than y
func Greater(x, y decimal.Decimal) bool {
	return Cmp(x, y) > 0
}

// PriceImpact returns 100 * (before - after) / ((before + after) / 2).
// Both prices must be positive.
func PriceImpact(before, after decimal.Decimal) (decimal.Decimal, error) {
	if before.Sign() <= 0 || after.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("non-positive price: %w", types.ErrInvalidArgument)
	}

	midpoint := Div(before.Add(after), two)
	return Div(before.Sub(after), midpoint).Mul(hundred), nil
}

// ValidateBasisPoints checks that bps lies within [0, 10000]
func ValidateBasisPoints(bps int64) error {
	if bps < 0 || bps > MaxBasisPoints {
		return fmt.Errorf("basis points %d out of range [0, %d]: %w", bps, MaxBasisPoints, types.ErrInvalidArgument)
	}
	return nil
}
