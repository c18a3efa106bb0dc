package quote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/michaelpento.lv/swapquote/dex"
	"github.com/michaelpento.lv/swapquote/types"
	qmath "github.com/michaelpento.lv/swapquote/utils/math"
	"github.com/michaelpento.lv/swapquote/utils/metrics"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Sources are the chain readers the aggregator quotes from. Router may be
// nil, in which case concentrated liquidity exchanges are skipped.
type Sources struct {
	Resolver dex.ExchangeResolver
	Pairs    dex.PairLookup
	Reserves dex.ReserveLookup
	Router   dex.ExternalRouter
}

// AggregateRequest is a quote request with resolved tokens
type AggregateRequest struct {
	Network             *types.Network
	From                types.Token
	To                  types.Token
	Amount              decimal.Decimal
	SlippageBasisPoints int64
	Recipient           common.Address
	Deadline            time.Time
	// Families restricts the evaluated exchanges, empty for all
	Families []types.ProtocolFamily
}

func (r AggregateRequest) allows(family types.ProtocolFamily) bool {
	if len(r.Families) == 0 {
		return true
	}
	for _, f := range r.Families {
		if f == family {
			return true
		}
	}
	return false
}

// Aggregator picks the best quote among the exchanges of a network
type Aggregator struct {
	sources Sources
	logger  *zap.Logger
	metrics *metrics.QuoteMetrics
}

func NewAggregator(sources Sources, logger *zap.Logger, m *metrics.QuoteMetrics) *Aggregator {
	return &Aggregator{
		sources: sources,
		logger:  logger.Named("aggregator"),
		metrics: m,
	}
}

// errSkipped marks an exchange that is not evaluated for this request
var errSkipped = errors.New("exchange skipped")

// Best evaluates every exchange of the network concurrently and keeps the
// quote with the strictly greatest minimum output, the earliest exchange in
// network order on a tie. Exchange failures are contained; when no exchange
// quotes the error wraps types.ErrNoRouteFound.
func (a *Aggregator) Best(ctx context.Context, req AggregateRequest) (*types.SwapQuote, error) {
	exchanges := req.Network.Exchanges
	quotes := make([]*types.SwapQuote, len(exchanges))
	errs := make([]error, len(exchanges))

	var wg sync.WaitGroup
	for i, ex := range exchanges {
		wg.Add(1)
		go func(i int, ex types.Exchange) {
			defer wg.Done()
			quotes[i], errs[i] = a.evaluate(ctx, req, ex)
		}(i, ex)
	}
	wg.Wait()

	var (
		best     *types.SwapQuote
		failures []error
	)
	for i, q := range quotes {
		ex := exchanges[i]
		if err := errs[i]; err != nil {
			if errors.Is(err, errSkipped) {
				a.metrics.ObserveExchange(string(ex.Family), "skipped")
				continue
			}
			a.metrics.ObserveExchange(string(ex.Family), outcome(err))
			a.logger.Debug("Exchange produced no quote",
				zap.String("exchange", ex.ID),
				zap.Error(err))
			failures = append(failures, err)
			continue
		}

		a.metrics.ObserveExchange(string(ex.Family), "quoted")
		if best == nil || qmath.Greater(q.MinOutput, best.MinOutput) {
			best = q
		}
	}

	if best == nil {
		return nil, errors.Join(append([]error{types.ErrNoRouteFound}, failures...)...)
	}
	return best, nil
}

func (a *Aggregator) evaluate(ctx context.Context, req AggregateRequest, ex types.Exchange) (*types.SwapQuote, error) {
	deployment, ok := req.Network.Deployment(ex.ID)
	if !ok || !req.allows(ex.Family) {
		return nil, errSkipped
	}

	switch ex.Family {
	case types.ConstantProduct:
		return a.constantProduct(ctx, req, ex)
	case types.ConcentratedLiquidity:
		if a.sources.Router == nil {
			return nil, errSkipped
		}
		return a.concentratedLiquidity(ctx, req, ex, deployment)
	default:
		return nil, errSkipped
	}
}

func (a *Aggregator) constantProduct(ctx context.Context, req AggregateRequest, ex types.Exchange) (*types.SwapQuote, error) {
	info, err := a.sources.Resolver.Resolve(ctx, req.Network, ex)
	if err != nil {
		// an exchange without a resolvable deployment is left out
		a.logger.Warn("Failed to resolve exchange",
			zap.String("exchange", ex.ID),
			zap.String("network", req.Network.ID),
			zap.Error(err))
		return nil, errSkipped
	}

	oracle := dex.NewReserveOracle(info.Factory, a.sources.Pairs, a.sources.Reserves)
	calc := Calculator{
		ExchangeFeeBasisPoints: info.FeeBasisPoints,
		SwapFeeBasisPoints:     info.SwapFeeBasisPoints,
	}

	selector := NewSelector(ex, oracle, calc, req.Network.BasePairs, a.logger, a.metrics)
	return selector.Best(ctx, req.From, req.To, req.Amount, req.SlippageBasisPoints)
}

func (a *Aggregator) concentratedLiquidity(ctx context.Context, req AggregateRequest, ex types.Exchange, deployment types.ExchangeDeployment) (*types.SwapQuote, error) {
	route, err := a.sources.Router.Route(ctx, dex.RouteRequest{
		ChainID:             req.Network.ChainID,
		Exchange:            ex,
		Deployment:          deployment,
		From:                req.From,
		To:                  req.To,
		Amount:              req.Amount,
		TradeType:           dex.ExactInput,
		Recipient:           req.Recipient,
		SlippageBasisPoints: req.SlippageBasisPoints,
		Deadline:            req.Deadline,
		BasePairs:           req.Network.BasePairs,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ex.ID, err)
	}
	if route == nil {
		return nil, fmt.Errorf("%s: %w", ex.ID, types.ErrNoRouteFound)
	}

	return &types.SwapQuote{
		Input:          req.Amount,
		SwapFee:        route.Fee,
		ExchangeFee:    decimal.Zero,
		ExpectedOutput: route.Output,
		MinOutput:      route.MinOutput,
		PriceImpact:    route.PriceImpact,
		Path:           route.Path,
		ExchangeID:     ex.ID,
		ExchangeName:   ex.Name,
		Family:         ex.Family,
	}, nil
}
