package quote

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/michaelpento.lv/swapquote/types"
	qmath "github.com/michaelpento.lv/swapquote/utils/math"
	"github.com/michaelpento.lv/swapquote/utils/metrics"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ReserveSource is the pair and reserve view of one exchange
type ReserveSource interface {
	PairChecker
	Reserves(ctx context.Context, from, to types.Token) (types.ReserveSnapshot, error)
}

// Selector picks the best path of one constant product exchange, trying one
// candidate per base pair token
type Selector struct {
	exchange  types.Exchange
	reserves  ReserveSource
	paths     *PathBuilder
	calc      Calculator
	basePairs []types.Token
	logger    *zap.Logger
	metrics   *metrics.QuoteMetrics
}

func NewSelector(exchange types.Exchange, reserves ReserveSource, calc Calculator, basePairs []types.Token, logger *zap.Logger, m *metrics.QuoteMetrics) *Selector {
	return &Selector{
		exchange:  exchange,
		reserves:  reserves,
		paths:     NewPathBuilder(reserves),
		calc:      calc,
		basePairs: basePairs,
		logger:    logger.Named("selector").With(zap.String("exchange", exchange.ID)),
		metrics:   m,
	}
}

// Best evaluates every candidate concurrently. Candidate failures are logged
// and dropped; the quote with the strictly greatest minimum output wins, the
// earliest base pair on a tie. With no successful candidate the error wraps
// types.ErrNoRouteFound.
func (s *Selector) Best(ctx context.Context, from, to types.Token, input decimal.Decimal, slippageBasisPoints int64) (*types.SwapQuote, error) {
	quotes := make([]*types.SwapQuote, len(s.basePairs))
	errs := make([]error, len(s.basePairs))

	var wg sync.WaitGroup
	for i, mid := range s.basePairs {
		wg.Add(1)
		go func(i int, mid types.Token) {
			defer wg.Done()
			quotes[i], errs[i] = s.candidate(ctx, from, to, mid, input, slippageBasisPoints)
		}(i, mid)
	}
	wg.Wait()

	var best *types.SwapQuote
	for i, q := range quotes {
		if errs[i] != nil {
			s.metrics.ObserveCandidate(s.exchange.ID, outcome(errs[i]))
			s.logger.Debug("Candidate dropped",
				zap.Stringer("via", s.basePairs[i]),
				zap.Error(errs[i]))
			continue
		}
		s.metrics.ObserveCandidate(s.exchange.ID, "quoted")
		if best == nil || qmath.Greater(q.MinOutput, best.MinOutput) {
			best = q
		}
	}

	if best == nil {
		return nil, fmt.Errorf("%s: %w", s.exchange.ID, errors.Join(append([]error{types.ErrNoRouteFound}, errs...)...))
	}
	return best, nil
}

func (s *Selector) candidate(ctx context.Context, from, to, mid types.Token, input decimal.Decimal, slippageBasisPoints int64) (*types.SwapQuote, error) {
	path, err := s.paths.Build(ctx, from, to, mid)
	if err != nil {
		return nil, fmt.Errorf("via %s: %w", mid, err)
	}
	if path == nil {
		return nil, fmt.Errorf("no path via %s: %w", mid, types.ErrNoLiquidity)
	}

	snaps, err := s.snapshots(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("path %s: %w", path, err)
	}

	q, err := s.calc.Quote(path, snaps, input, slippageBasisPoints)
	if err != nil {
		return nil, fmt.Errorf("path %s: %w", path, err)
	}

	q.ExchangeID = s.exchange.ID
	q.ExchangeName = s.exchange.Name
	q.Family = s.exchange.Family
	return q, nil
}

// snapshots reads the reserves of every hop concurrently
func (s *Selector) snapshots(ctx context.Context, path types.SwapPath) ([]types.ReserveSnapshot, error) {
	snaps := make([]types.ReserveSnapshot, path.Hops())
	errs := make([]error, path.Hops())

	var wg sync.WaitGroup
	for i := 0; i < path.Hops(); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snaps[i], errs[i] = s.reserves.Reserves(ctx, path[i], path[i+1])
		}(i)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return snaps, nil
}

// outcome labels a candidate or exchange failure for metrics
func outcome(err error) string {
	switch {
	case err == nil:
		return "quoted"
	case errors.Is(err, types.ErrNoRouteFound):
		return "no_route"
	case errors.Is(err, types.ErrNoLiquidity), errors.Is(err, types.ErrInsufficientLiquidity):
		return "no_liquidity"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
