package uniswap

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/michaelpento.lv/swapquote/dex"
	"github.com/michaelpento.lv/swapquote/types"
	"github.com/michaelpento.lv/swapquote/utils/testutils"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var testQuoter = testutils.MockAddress(0x9001)

type poolKey struct {
	in, out common.Address
	tier    uint32
}

// fakeQuoter prices every pool as a constant product curve of depth x, y
type fakeQuoter struct {
	pools map[poolKey][2]*big.Int
}

func (f *fakeQuoter) add(in, out common.Address, tier uint32, x, y int64) {
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	f.pools[poolKey{in, out, tier}] = [2]*big.Int{
		new(big.Int).Mul(big.NewInt(x), unit),
		new(big.Int).Mul(big.NewInt(y), unit),
	}
}

func (f *fakeQuoter) handle(args []interface{}) ([]interface{}, error) {
	params := *abi.ConvertType(args[0], new(QuoteParams)).(*QuoteParams)
	pool, ok := f.pools[poolKey{params.TokenIn, params.TokenOut, uint32(params.Fee.Uint64())}]
	if !ok {
		return nil, errors.New("execution reverted")
	}

	num := new(big.Int).Mul(pool[1], params.AmountIn)
	den := new(big.Int).Add(pool[0], params.AmountIn)
	out := new(big.Int).Div(num, den)
	return []interface{}{out, big.NewInt(0), uint32(1), big.NewInt(80000)}, nil
}

func newQuoterFixture(t *testing.T) (*QuoterRouter, *fakeQuoter, *testutils.FakeChain) {
	chain := testutils.NewFakeChain(1)
	quoter := &fakeQuoter{pools: make(map[poolKey][2]*big.Int)}
	chain.Handle(t, testQuoter, QuoterV2ABI, "quoteExactInputSingle", quoter.handle)
	return NewQuoterRouter(chain.Client(t), zaptest.NewLogger(t)), quoter, chain
}

var (
	tokA = testutils.MockToken(0xa, "AAA", 18)
	tokB = testutils.MockToken(0xb, "BBB", 18)
	tokW = testutils.MockToken(0xc, "WETH", 18)
)

func routeRequest(amount string) dex.RouteRequest {
	return dex.RouteRequest{
		ChainID:  1,
		Exchange: types.Exchange{ID: "uniswap-v3", Family: types.ConcentratedLiquidity},
		Deployment: types.ExchangeDeployment{
			Quoter:   testQuoter,
			FeeTiers: []uint32{500, 3000},
		},
		From:                tokA,
		To:                  tokB,
		Amount:              decimal.RequireFromString(amount),
		SlippageBasisPoints: 100,
		BasePairs:           []types.Token{tokW},
	}
}

func TestQuoterRouterPicksBestTier(t *testing.T) {
	router, quoter, _ := newQuoterFixture(t)
	quoter.add(tokA.Address, tokB.Address, 500, 100, 100)
	quoter.add(tokA.Address, tokB.Address, 3000, 1000, 1000)

	route, err := router.Route(context.Background(), routeRequest("10"))
	require.NoError(t, err)
	require.NotNil(t, route)

	// 1000*10/1010
	assert.Equal(t, "9.900990099009900990", route.Output.StringFixed(18))
	assert.Equal(t, types.SwapPath{tokA, tokB}, route.Path)
	assert.True(t, route.MinOutput.Equal(route.Output.Sub(route.Output.Mul(decimal.RequireFromString("0.01"))).Truncate(18)))
	// 3000 is 0.3%
	assert.Equal(t, "0.03", route.Fee.String())
	assert.True(t, route.PriceImpact.IsNegative())
}

func TestQuoterRouterPrefersBetterHopPath(t *testing.T) {
	router, quoter, _ := newQuoterFixture(t)
	quoter.add(tokA.Address, tokB.Address, 3000, 100, 100)
	quoter.add(tokA.Address, tokW.Address, 500, 1000, 2000)
	quoter.add(tokW.Address, tokB.Address, 500, 2000, 1000)

	route, err := router.Route(context.Background(), routeRequest("10"))
	require.NoError(t, err)
	require.NotNil(t, route)

	assert.Equal(t, types.SwapPath{tokA, tokW, tokB}, route.Path)
	assert.Equal(t, "0.005", route.Fee.String())
}

func TestQuoterRouterNoPool(t *testing.T) {
	router, _, _ := newQuoterFixture(t)

	route, err := router.Route(context.Background(), routeRequest("10"))
	require.NoError(t, err)
	assert.Nil(t, route)
}

func TestQuoterRouterRejectsRequests(t *testing.T) {
	router, _, chain := newQuoterFixture(t)
	ctx := context.Background()

	req := routeRequest("10")
	req.TradeType = dex.ExactOutput
	_, err := router.Route(ctx, req)
	assert.True(t, errors.Is(err, types.ErrInvalidArgument))

	req = routeRequest("0")
	_, err = router.Route(ctx, req)
	assert.True(t, errors.Is(err, types.ErrInvalidArgument))

	req = routeRequest("10")
	req.Deployment.Quoter = common.Address{}
	_, err = router.Route(ctx, req)
	assert.True(t, errors.Is(err, types.ErrInvalidArgument))

	req = routeRequest("10")
	req.Deadline = time.Now().Add(-time.Minute)
	_, err = router.Route(ctx, req)
	assert.True(t, errors.Is(err, types.ErrInvalidArgument))

	assert.Zero(t, chain.Calls.Load())
}

func TestCandidatePathsSkipEndpoints(t *testing.T) {
	paths := candidatePaths(tokA, tokW, []types.Token{tokW, tokB})
	require.Len(t, paths, 2)
	assert.Equal(t, types.SwapPath{tokA, tokW}, paths[0])
	assert.Equal(t, types.SwapPath{tokA, tokB, tokW}, paths[1])
}
