package quote

import (
	"errors"
	"testing"

	"github.com/michaelpento.lv/swapquote/types"
	"github.com/michaelpento.lv/swapquote/utils/testutils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func snapshot(from, to string) types.ReserveSnapshot {
	return types.ReserveSnapshot{Found: true, FromReserve: d(from), ToReserve: d(to)}
}

func TestHopBalancedPool(t *testing.T) {
	calc := Calculator{SwapFeeBasisPoints: 30}

	hop, err := calc.Hop(snapshot("1000", "1000"), d("10"), 50, true, 18)
	require.NoError(t, err)

	assert.True(t, hop.ExchangeFee.IsZero())
	assert.Equal(t, "0.03", hop.SwapFee.String())
	assert.Equal(t, "9.871580343970612988", hop.ExpectedOutput.String())
	assert.Equal(t, "9.822222442250759923", hop.MinOutput.String())
	assert.Equal(t, "-0.992", hop.PriceImpact.String())

	for _, v := range []decimal.Decimal{hop.ExpectedOutput, hop.MinOutput} {
		assert.True(t, v.GreaterThan(d("9.8")), v.String())
		assert.True(t, v.LessThan(d("9.94")), v.String())
	}
}

func TestHopTruncatesToOutputDecimals(t *testing.T) {
	calc := Calculator{SwapFeeBasisPoints: 30}

	hop, err := calc.Hop(snapshot("1000", "1000"), d("10"), 50, true, 6)
	require.NoError(t, err)
	assert.Equal(t, "9.87158", hop.ExpectedOutput.String())
	assert.Equal(t, "9.822222", hop.MinOutput.String())
}

func TestHopExchangeFee(t *testing.T) {
	calc := Calculator{ExchangeFeeBasisPoints: 25, SwapFeeBasisPoints: 30}

	hop, err := calc.Hop(snapshot("1000", "1000"), d("100"), 0, true, 18)
	require.NoError(t, err)
	assert.True(t, hop.ExchangeFee.Equal(d("0.25")), hop.ExchangeFee.String())
	assert.True(t, hop.SwapFee.Equal(d("0.29925")), hop.SwapFee.String())
	assert.True(t, hop.MinOutput.Equal(hop.ExpectedOutput))

	skipped, err := calc.Hop(snapshot("1000", "1000"), d("100"), 0, false, 18)
	require.NoError(t, err)
	assert.True(t, skipped.ExchangeFee.IsZero())
	assert.True(t, skipped.ExpectedOutput.GreaterThan(hop.ExpectedOutput))
}

func TestHopErrors(t *testing.T) {
	calc := Calculator{SwapFeeBasisPoints: 30}

	tests := []struct {
		name     string
		snap     types.ReserveSnapshot
		input    string
		slippage int64
		calc     Calculator
		want     error
	}{
		{"pair not found", types.ReserveSnapshot{}, "10", 50, calc, types.ErrNoLiquidity},
		{"empty from reserve", snapshot("0", "1000"), "10", 50, calc, types.ErrNoLiquidity},
		{"empty to reserve", snapshot("1000", "0"), "10", 50, calc, types.ErrNoLiquidity},
		{"dust output", snapshot("1000000000000", "1"), "0.000000001", 50, calc, types.ErrInsufficientLiquidity},
		{"zero input", snapshot("1000", "1000"), "0", 50, calc, types.ErrInvalidArgument},
		{"negative input", snapshot("1000", "1000"), "-1", 50, calc, types.ErrInvalidArgument},
		{"negative slippage", snapshot("1000", "1000"), "10", -1, calc, types.ErrInvalidArgument},
		{"slippage above 100%", snapshot("1000", "1000"), "10", 10001, calc, types.ErrInvalidArgument},
		{"negative exchange fee", snapshot("1000", "1000"), "10", 50, Calculator{ExchangeFeeBasisPoints: -5}, types.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.calc.Hop(tt.snap, d(tt.input), tt.slippage, true, 18)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), err.Error())
		})
	}
}

func TestHopProperties(t *testing.T) {
	calc := Calculator{ExchangeFeeBasisPoints: 10, SwapFeeBasisPoints: 30}
	snap := snapshot("5000", "1250")

	var prevOut, prevGain decimal.Decimal
	for i, in := range []string{"1", "2", "3", "4", "5", "6", "7", "8"} {
		hop, err := calc.Hop(snap, d(in), 100, true, 18)
		require.NoError(t, err)

		assert.True(t, hop.ExpectedOutput.IsPositive())
		assert.True(t, hop.ExpectedOutput.LessThan(snap.ToReserve))
		assert.True(t, hop.MinOutput.LessThan(hop.ExpectedOutput))

		if i > 0 {
			gain := hop.ExpectedOutput.Sub(prevOut)
			assert.True(t, gain.IsPositive(), "output must grow with input")
			if i > 1 {
				assert.True(t, gain.LessThan(prevGain), "marginal output must shrink")
			}
			prevGain = gain
		}
		prevOut = hop.ExpectedOutput
	}
}

func TestHopZeroSlippage(t *testing.T) {
	calc := Calculator{SwapFeeBasisPoints: 30}
	hop, err := calc.Hop(snapshot("1000", "3"), d("7"), 0, true, 18)
	require.NoError(t, err)
	assert.True(t, hop.MinOutput.Equal(hop.ExpectedOutput))
}

func TestQuoteSingleHop(t *testing.T) {
	a := testutils.MockToken(1, "A", 18)
	b := testutils.MockToken(2, "B", 18)
	calc := Calculator{SwapFeeBasisPoints: 30}

	q, err := calc.Quote(types.SwapPath{a, b}, []types.ReserveSnapshot{snapshot("1000", "1000")}, d("10"), 50)
	require.NoError(t, err)

	assert.Equal(t, "10", q.Input.String())
	assert.Equal(t, "9.871580343970612988", q.ExpectedOutput.String())
	assert.Equal(t, "9.822222442250759923", q.MinOutput.String())
	assert.Equal(t, types.SwapPath{a, b}, q.Path)
}

func TestQuoteMultiHop(t *testing.T) {
	a := testutils.MockToken(1, "A", 18)
	w := testutils.MockToken(2, "W", 18)
	b := testutils.MockToken(3, "B", 6)
	calc := Calculator{ExchangeFeeBasisPoints: 10, SwapFeeBasisPoints: 30}

	snaps := []types.ReserveSnapshot{snapshot("1000", "2000"), snapshot("2000", "1000")}
	q, err := calc.Quote(types.SwapPath{a, w, b}, snaps, d("10"), 50)
	require.NoError(t, err)

	// first hop: fees, impact, zero slippage
	assert.Equal(t, "0.01", q.ExchangeFee.String())
	assert.Equal(t, "0.02997", q.SwapFee.String())
	assert.Equal(t, "-0.991", q.PriceImpact.String())

	// last hop swaps the first hop's 19.723612230476091217 W
	assert.Equal(t, "9.736489", q.ExpectedOutput.String())
	assert.Equal(t, "9.687806", q.MinOutput.String())
	assert.Equal(t, "10", q.Input.String())
}

func TestQuoteRejectsMismatchedSnapshots(t *testing.T) {
	a := testutils.MockToken(1, "A", 18)
	b := testutils.MockToken(2, "B", 18)

	_, err := Calculator{}.Quote(types.SwapPath{a, b}, nil, d("1"), 0)
	assert.True(t, errors.Is(err, types.ErrInvalidArgument))

	_, err = Calculator{}.Quote(types.SwapPath{a}, nil, d("1"), 0)
	assert.True(t, errors.Is(err, types.ErrInvalidArgument))
}

func TestQuoteFailsOnAnyHop(t *testing.T) {
	a := testutils.MockToken(1, "A", 18)
	w := testutils.MockToken(2, "W", 18)
	b := testutils.MockToken(3, "B", 18)

	snaps := []types.ReserveSnapshot{snapshot("1000", "2000"), {}}
	_, err := Calculator{SwapFeeBasisPoints: 30}.Quote(types.SwapPath{a, w, b}, snaps, d("10"), 50)
	assert.True(t, errors.Is(err, types.ErrNoLiquidity))
}
