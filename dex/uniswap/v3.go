package uniswap

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/michaelpento.lv/swapquote/dex"
	"github.com/michaelpento.lv/swapquote/types"
	qmath "github.com/michaelpento.lv/swapquote/utils/math"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultDeadline is the validity window of a route without a deadline
const DefaultDeadline = 30 * time.Minute

// probeDivisor sizes the probe quote used as the pre-trade price
const probeDivisor = 1000

var feeTierScale = decimal.NewFromInt(100)

// QuoteParams mirrors IQuoterV2.QuoteExactInputSingleParams
type QuoteParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	AmountIn          *big.Int
	Fee               *big.Int
	SqrtPriceLimitX96 *big.Int
}

// QuoterRouter routes concentrated liquidity swaps through a Uniswap V3
// QuoterV2. It tries the direct pool and every base pair hop, picking the
// best fee tier of each hop.
type QuoterRouter struct {
	caller bind.ContractCaller
	logger *zap.Logger
	now    func() time.Time
}

var _ dex.ExternalRouter = (*QuoterRouter)(nil)

func NewQuoterRouter(caller bind.ContractCaller, logger *zap.Logger) *QuoterRouter {
	return &QuoterRouter{
		caller: caller,
		logger: logger.Named("quoter"),
		now:    time.Now,
	}
}

type tierQuote struct {
	out  *big.Int
	tier uint32
}

type pathQuote struct {
	path      types.SwapPath
	out       *big.Int
	firstTier uint32
}

// Route returns nil when no pool of any tier can fill the request
func (q *QuoterRouter) Route(ctx context.Context, req dex.RouteRequest) (*dex.Route, error) {
	if req.TradeType != dex.ExactInput {
		return nil, fmt.Errorf("%s routing is not supported: %w", req.TradeType, types.ErrInvalidArgument)
	}
	if req.Deployment.Quoter == (common.Address{}) {
		return nil, fmt.Errorf("exchange %s has no quoter: %w", req.Exchange.ID, types.ErrInvalidArgument)
	}
	if req.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive: %w", types.ErrInvalidArgument)
	}
	if err := qmath.ValidateBasisPoints(req.SlippageBasisPoints); err != nil {
		return nil, err
	}

	deadline := req.Deadline
	if deadline.IsZero() {
		deadline = q.now().Add(DefaultDeadline)
	}
	if !deadline.After(q.now()) {
		return nil, fmt.Errorf("deadline %s has passed: %w", deadline.Format(time.RFC3339), types.ErrInvalidArgument)
	}

	amountIn, err := qmath.ToAtomicBig(req.Amount, req.From.Decimals)
	if err != nil {
		return nil, err
	}
	if _, overflow := uint256.FromBig(amountIn); overflow {
		return nil, fmt.Errorf("amount %s overflows uint256: %w", req.Amount, types.ErrInvalidArgument)
	}
	if amountIn.Sign() == 0 {
		return nil, fmt.Errorf("amount %s is below one atomic unit: %w", req.Amount, types.ErrInvalidArgument)
	}

	quoter := bind.NewBoundContract(req.Deployment.Quoter, QuoterV2ABI, q.caller, nil, nil)
	tiers := req.Deployment.FeeTiers

	paths := candidatePaths(req.From, req.To, req.BasePairs)
	results := make([]*pathQuote, len(paths))
	errs := make([]error, len(paths))

	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		go func(i int, path types.SwapPath) {
			defer wg.Done()
			results[i], errs[i] = q.quotePath(ctx, quoter, path, amountIn, tiers)
		}(i, path)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var best *pathQuote
	for _, r := range results {
		if r != nil && (best == nil || r.out.Cmp(best.out) > 0) {
			best = r
		}
	}
	if best == nil {
		if err := errors.Join(errs...); err != nil {
			return nil, err
		}
		return nil, nil
	}

	output := qmath.FromAtomicUnits(best.out, req.To.Decimals)
	slippage, err := qmath.FeeForTotal(output, req.SlippageBasisPoints)
	if err != nil {
		return nil, err
	}
	tierFee, err := qmath.FeeForTotal(req.Amount, int64(best.firstTier))
	if err != nil {
		return nil, err
	}

	route := &dex.Route{
		Path:        best.path,
		Output:      qmath.TruncateDecimal(output, int(qmath.NormalizeDecimals(req.To.Decimals))),
		MinOutput:   qmath.TruncateDecimal(output.Sub(slippage), int(qmath.NormalizeDecimals(req.To.Decimals))),
		PriceImpact: q.priceImpact(ctx, quoter, best, amountIn, tiers),
		Fee:         qmath.Div(tierFee, feeTierScale),
	}

	q.logger.Debug("Routed through quoter",
		zap.String("exchange", req.Exchange.ID),
		zap.Stringer("path", best.path),
		zap.String("output", route.Output.String()),
		zap.Uint32("first_tier", best.firstTier))

	return route, nil
}

// candidatePaths returns the direct path followed by one path per usable base pair
func candidatePaths(from, to types.Token, basePairs []types.Token) []types.SwapPath {
	paths := []types.SwapPath{{from, to}}
	for _, mid := range basePairs {
		if mid.SameToken(from) || mid.SameToken(to) {
			continue
		}
		paths = append(paths, types.SwapPath{from, mid, to})
	}
	return paths
}

// quotePath chains the best tier of every hop. A path with a hop no pool can
// fill yields nil without error; transport failures are returned.
func (q *QuoterRouter) quotePath(ctx context.Context, quoter *bind.BoundContract, path types.SwapPath, amountIn *big.Int, tiers []uint32) (*pathQuote, error) {
	amount := amountIn
	var firstTier uint32

	for i := 0; i < path.Hops(); i++ {
		best, err := q.bestTier(ctx, quoter, path[i].Address, path[i+1].Address, amount, tiers)
		if err != nil {
			return nil, fmt.Errorf("path %s: %w", path, err)
		}
		if best == nil {
			return nil, nil
		}
		if i == 0 {
			firstTier = best.tier
		}
		amount = best.out
	}

	return &pathQuote{path: path, out: amount, firstTier: firstTier}, nil
}

// bestTier quotes every fee tier of a hop concurrently. Reverts mean the pool
// does not exist or cannot fill the amount.
func (q *QuoterRouter) bestTier(ctx context.Context, quoter *bind.BoundContract, tokenIn, tokenOut common.Address, amountIn *big.Int, tiers []uint32) (*tierQuote, error) {
	outs := make([]*big.Int, len(tiers))
	errs := make([]error, len(tiers))

	var wg sync.WaitGroup
	for i, tier := range tiers {
		wg.Add(1)
		go func(i int, tier uint32) {
			defer wg.Done()
			outs[i], errs[i] = q.quoteSingle(ctx, quoter, tokenIn, tokenOut, amountIn, tier)
		}(i, tier)
	}
	wg.Wait()

	var best *tierQuote
	var failures []error
	for i, out := range outs {
		if err := errs[i]; err != nil {
			if !isRevert(err) {
				failures = append(failures, err)
			}
			continue
		}
		if out.Sign() > 0 && (best == nil || out.Cmp(best.out) > 0) {
			best = &tierQuote{out: out, tier: tiers[i]}
		}
	}

	if best == nil && len(failures) > 0 {
		return nil, errors.Join(failures...)
	}
	return best, nil
}

func (q *QuoterRouter) quoteSingle(ctx context.Context, quoter *bind.BoundContract, tokenIn, tokenOut common.Address, amountIn *big.Int, tier uint32) (*big.Int, error) {
	params := QuoteParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		AmountIn:          amountIn,
		Fee:               new(big.Int).SetUint64(uint64(tier)),
		SqrtPriceLimitX96: big.NewInt(0),
	}

	var result []interface{}
	if err := quoter.Call(&bind.CallOpts{Context: ctx}, &result, "quoteExactInputSingle", params); err != nil {
		return nil, fmt.Errorf("quoteExactInputSingle tier %d: %w", tier, err)
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("empty quoteExactInputSingle result")
	}

	out, ok := result[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("failed to parse amountOut")
	}
	return out, nil
}

// priceImpact compares the execution price against a probe quote small
// enough to leave the pools' prices unmoved. Prices are input per output.
func (q *QuoterRouter) priceImpact(ctx context.Context, quoter *bind.BoundContract, best *pathQuote, amountIn *big.Int, tiers []uint32) decimal.Decimal {
	probeIn := new(big.Int).Div(amountIn, big.NewInt(probeDivisor))
	if probeIn.Sign() == 0 {
		return decimal.Zero
	}

	probe, err := q.quotePath(ctx, quoter, best.path, probeIn, tiers)
	if err != nil || probe == nil || probe.out.Sign() == 0 {
		q.logger.Debug("Probe quote unavailable", zap.Stringer("path", best.path), zap.Error(err))
		return decimal.Zero
	}

	before := qmath.Div(decimal.NewFromBigInt(probeIn, 0), decimal.NewFromBigInt(probe.out, 0))
	after := qmath.Div(decimal.NewFromBigInt(amountIn, 0), decimal.NewFromBigInt(best.out, 0))
	impact, err := qmath.PriceImpact(before, after)
	if err != nil {
		return decimal.Zero
	}
	return qmath.TruncateDecimal(impact, qmath.PriceImpactDigits)
}

func isRevert(err error) bool {
	return strings.Contains(err.Error(), "execution reverted")
}
