package quote

import (
	"fmt"

	"github.com/michaelpento.lv/swapquote/types"
	qmath "github.com/michaelpento.lv/swapquote/utils/math"

	"github.com/shopspring/decimal"
)

// Calculator prices swaps on one constant product exchange.
// ExchangeFeeBasisPoints is the protocol fee taken once per trade,
// SwapFeeBasisPoints the pool fee taken on every hop.
type Calculator struct {
	ExchangeFeeBasisPoints int64
	SwapFeeBasisPoints     int64
}

// HopResult is the outcome of a single swap against one pair
type HopResult struct {
	Input          decimal.Decimal
	ExchangeFee    decimal.Decimal
	SwapFee        decimal.Decimal
	ExpectedOutput decimal.Decimal
	MinOutput      decimal.Decimal
	PriceImpact    decimal.Decimal
}

func (c Calculator) validate() error {
	if err := qmath.ValidateBasisPoints(c.ExchangeFeeBasisPoints); err != nil {
		return fmt.Errorf("exchange fee: %w", err)
	}
	if err := qmath.ValidateBasisPoints(c.SwapFeeBasisPoints); err != nil {
		return fmt.Errorf("swap fee: %w", err)
	}
	return nil
}

// Hop swaps input against the (from, to) reserves of snap. The exchange fee
// is only taken when deductFee is set. Outputs are truncated to outDecimals
// and the price impact to three digits.
func (c Calculator) Hop(snap types.ReserveSnapshot, input decimal.Decimal, slippageBasisPoints int64, deductFee bool, outDecimals int) (HopResult, error) {
	if err := c.validate(); err != nil {
		return HopResult{}, err
	}
	if err := qmath.ValidateBasisPoints(slippageBasisPoints); err != nil {
		return HopResult{}, fmt.Errorf("slippage: %w", err)
	}
	if input.Sign() <= 0 {
		return HopResult{}, fmt.Errorf("input %s must be positive: %w", input, types.ErrInvalidArgument)
	}
	if !snap.Found || snap.FromReserve.Sign() <= 0 || snap.ToReserve.Sign() <= 0 {
		return HopResult{}, types.ErrNoLiquidity
	}

	exchangeFee := decimal.Zero
	if deductFee {
		fee, err := qmath.FeeForTotal(input, c.ExchangeFeeBasisPoints)
		if err != nil {
			return HopResult{}, err
		}
		exchangeFee = fee
	}

	net := input.Sub(exchangeFee)
	swapFee, err := qmath.FeeForTotal(net, c.SwapFeeBasisPoints)
	if err != nil {
		return HopResult{}, err
	}

	k := snap.FromReserve.Mul(snap.ToReserve)
	newFrom := snap.FromReserve.Add(net.Sub(swapFee))
	if newFrom.Sign() <= 0 {
		return HopResult{}, fmt.Errorf("from reserve %s after swap: %w", newFrom, types.ErrInsufficientLiquidity)
	}

	digits := int(qmath.NormalizeDecimals(outDecimals))
	expected := qmath.TruncateDecimal(snap.ToReserve.Sub(qmath.Div(k, newFrom)), digits)
	if expected.Sign() <= 0 {
		return HopResult{}, fmt.Errorf("output %s rounds to nothing: %w", expected, types.ErrInsufficientLiquidity)
	}

	slippage, err := qmath.FeeForTotal(expected, slippageBasisPoints)
	if err != nil {
		return HopResult{}, err
	}
	minOutput := qmath.TruncateDecimal(expected.Sub(slippage), digits)

	// the post-swap price keeps the to reserve unchanged
	impact, err := qmath.PriceImpact(
		qmath.Div(snap.FromReserve, snap.ToReserve),
		qmath.Div(newFrom, snap.ToReserve),
	)
	if err != nil {
		return HopResult{}, err
	}

	return HopResult{
		Input:          input,
		ExchangeFee:    exchangeFee,
		SwapFee:        swapFee,
		ExpectedOutput: expected,
		MinOutput:      minOutput,
		PriceImpact:    qmath.TruncateDecimal(impact, qmath.PriceImpactDigits),
	}, nil
}

// Quote chains Hop along path, snaps[i] holding the reserves of
// (path[i], path[i+1]). The exchange fee and price impact come from the first
// hop; every later hop swaps the previous minimum output and applies the
// slippage again.
func (c Calculator) Quote(path types.SwapPath, snaps []types.ReserveSnapshot, input decimal.Decimal, slippageBasisPoints int64) (*types.SwapQuote, error) {
	if path.Hops() == 0 || len(snaps) != path.Hops() {
		return nil, fmt.Errorf("path %s with %d reserve snapshots: %w", path, len(snaps), types.ErrInvalidArgument)
	}

	firstSlippage := slippageBasisPoints
	if path.Hops() > 1 {
		firstSlippage = 0
	}

	first, err := c.Hop(snaps[0], input, firstSlippage, true, path[1].Decimals)
	if err != nil {
		return nil, fmt.Errorf("hop %s -> %s: %w", path[0], path[1], err)
	}

	last := first
	for i := 1; i < path.Hops(); i++ {
		last, err = c.Hop(snaps[i], last.MinOutput, slippageBasisPoints, false, path[i+1].Decimals)
		if err != nil {
			return nil, fmt.Errorf("hop %s -> %s: %w", path[i], path[i+1], err)
		}
	}

	return &types.SwapQuote{
		Input:          input,
		SwapFee:        first.SwapFee,
		ExchangeFee:    first.ExchangeFee,
		ExpectedOutput: last.ExpectedOutput,
		MinOutput:      last.MinOutput,
		PriceImpact:    first.PriceImpact,
		Path:           path,
	}, nil
}
