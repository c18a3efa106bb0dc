package quote

import (
	"context"
	"errors"
	"testing"

	"github.com/michaelpento.lv/swapquote/dex"
	"github.com/michaelpento.lv/swapquote/types"
	"github.com/michaelpento.lv/swapquote/utils/metrics"
	"github.com/michaelpento.lv/swapquote/utils/testutils"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var sushi = types.Exchange{ID: "sushiswap", Name: "SushiSwap", Family: types.ConstantProduct}

func newSelector(t *testing.T, market *testutils.Market, m *metrics.QuoteMetrics) *Selector {
	oracle := dex.NewReserveOracle(factory, market, market)
	calc := Calculator{SwapFeeBasisPoints: 30}
	return NewSelector(sushi, oracle, calc, []types.Token{weth, usdt}, zaptest.NewLogger(t), m)
}

func TestSelectorPicksGreatestMinOutput(t *testing.T) {
	market := testutils.NewMarket()
	market.AddPair(t, factory, tokA, weth, "1000", "1000")
	market.AddPair(t, factory, weth, tokB, "1000", "1000")
	market.AddPair(t, factory, tokA, usdt, "5000", "5000")
	market.AddPair(t, factory, usdt, tokB, "5000", "5000")

	q, err := newSelector(t, market, nil).Best(context.Background(), tokA, tokB, d("10"), 50)
	require.NoError(t, err)

	assert.Equal(t, types.SwapPath{tokA, usdt, tokB}, q.Path)
	assert.Equal(t, "sushiswap", q.ExchangeID)
	assert.Equal(t, "SushiSwap", q.ExchangeName)
	assert.Equal(t, types.ConstantProduct, q.Family)
}

func TestSelectorTieKeepsFirstBasePair(t *testing.T) {
	market := testutils.NewMarket()
	market.AddPair(t, factory, tokA, weth, "1000", "1000")
	market.AddPair(t, factory, weth, tokB, "1000", "1000")
	market.AddPair(t, factory, tokA, usdt, "1000", "1000")
	market.AddPair(t, factory, usdt, tokB, "1000", "1000")

	selector := newSelector(t, market, nil)
	for i := 0; i < 20; i++ {
		q, err := selector.Best(context.Background(), tokA, tokB, d("10"), 50)
		require.NoError(t, err)
		assert.Equal(t, types.SwapPath{tokA, weth, tokB}, q.Path)
	}
}

func TestSelectorDirectPathThroughEndpoint(t *testing.T) {
	market := testutils.NewMarket()
	market.AddPair(t, factory, weth, tokB, "1000", "1000")

	q, err := newSelector(t, market, nil).Best(context.Background(), weth, tokB, d("10"), 50)
	require.NoError(t, err)
	assert.Equal(t, types.SwapPath{weth, tokB}, q.Path)
	assert.Equal(t, "9.822222", q.MinOutput.String())
}

func TestSelectorContainsCandidateFailures(t *testing.T) {
	market := testutils.NewMarket()
	market.AddPair(t, factory, tokA, weth, "5000", "5000")
	broken := market.AddPair(t, factory, weth, tokB, "5000", "5000")
	market.AddPair(t, factory, tokA, usdt, "1000", "1000")
	market.AddPair(t, factory, usdt, tokB, "1000", "1000")
	market.FailReserves(broken, errors.New("header not found"))

	reg := prometheus.NewRegistry()
	m := metrics.NewQuoteMetrics("test", reg)

	q, err := newSelector(t, market, m).Best(context.Background(), tokA, tokB, d("10"), 50)
	require.NoError(t, err)
	assert.Equal(t, types.SwapPath{tokA, usdt, tokB}, q.Path)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Candidates.WithLabelValues("sushiswap", "quoted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Candidates.WithLabelValues("sushiswap", "error")))
}

func TestSelectorNoRoute(t *testing.T) {
	market := testutils.NewMarket()
	market.AddPair(t, factory, tokA, weth, "1000", "1000")

	_, err := newSelector(t, market, nil).Best(context.Background(), tokA, tokB, d("10"), 50)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrNoRouteFound))
	assert.True(t, errors.Is(err, types.ErrNoLiquidity))
}

func TestSelectorEmptyPool(t *testing.T) {
	market := testutils.NewMarket()
	market.AddPair(t, factory, weth, tokB, "0", "1000")

	_, err := newSelector(t, market, nil).Best(context.Background(), weth, tokB, d("10"), 50)
	assert.True(t, errors.Is(err, types.ErrNoRouteFound))
}
