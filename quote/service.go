package quote

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/michaelpento.lv/swapquote/dex/uniswap"
	"github.com/michaelpento.lv/swapquote/types"
	qmath "github.com/michaelpento.lv/swapquote/utils/math"
	"github.com/michaelpento.lv/swapquote/utils/metrics"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// NetworkCatalog resolves network ids
type NetworkCatalog interface {
	Network(id string) (*types.Network, error)
}

// BackendProvider hands out the chain readers of a network
type BackendProvider interface {
	Get(ctx context.Context, network *types.Network) (*uniswap.Backend, error)
}

// RawRequest carries the unparsed parameters of a quote request
type RawRequest struct {
	Network  string
	From     string
	To       string
	Amount   string
	Slippage string
	Sender   string
	Family   string
}

// Request is a validated quote request
type Request struct {
	NetworkID           string
	From                common.Address
	To                  common.Address
	Amount              decimal.Decimal
	SlippageBasisPoints int64
	Sender              common.Address
	Families            []types.ProtocolFamily
}

// ParseRequest validates raw parameters. An empty slippage takes
// defaultSlippage and an empty family allows every family.
func ParseRequest(raw RawRequest, defaultSlippage int64) (Request, error) {
	req := Request{
		NetworkID:           strings.ToLower(strings.TrimSpace(raw.Network)),
		SlippageBasisPoints: defaultSlippage,
	}
	if req.NetworkID == "" {
		return Request{}, fmt.Errorf("network is required: %w", types.ErrInvalidArgument)
	}

	var err error
	if req.From, err = parseAddress("from", raw.From); err != nil {
		return Request{}, err
	}
	if req.To, err = parseAddress("to", raw.To); err != nil {
		return Request{}, err
	}
	if req.From == req.To {
		return Request{}, fmt.Errorf("from and to are the same token: %w", types.ErrInvalidArgument)
	}

	req.Amount, err = decimal.NewFromString(strings.TrimSpace(raw.Amount))
	if err != nil {
		return Request{}, fmt.Errorf("invalid amount %q: %w", raw.Amount, types.ErrInvalidArgument)
	}
	if req.Amount.Sign() <= 0 {
		return Request{}, fmt.Errorf("amount must be positive: %w", types.ErrInvalidArgument)
	}

	if s := strings.TrimSpace(raw.Slippage); s != "" {
		req.SlippageBasisPoints, err = strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Request{}, fmt.Errorf("invalid slippage %q: %w", raw.Slippage, types.ErrInvalidArgument)
		}
	}
	if err := qmath.ValidateBasisPoints(req.SlippageBasisPoints); err != nil {
		return Request{}, fmt.Errorf("slippage: %w", err)
	}

	if s := strings.TrimSpace(raw.Sender); s != "" {
		if req.Sender, err = parseAddress("sender", s); err != nil {
			return Request{}, err
		}
	}

	if s := strings.TrimSpace(raw.Family); s != "" {
		for _, part := range strings.Split(s, ",") {
			family, err := types.ParseProtocolFamily(part)
			if err != nil {
				return Request{}, err
			}
			req.Families = append(req.Families, family)
		}
	}

	return req, nil
}

func parseAddress(field, s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid %s address %q: %w", field, s, types.ErrInvalidArgument)
	}
	return common.HexToAddress(s), nil
}

// Result is the answer to a quote request
type Result struct {
	Network         string           `json:"network"`
	From            types.Token      `json:"from"`
	To              types.Token      `json:"to"`
	Quote           *types.SwapQuote `json:"quote"`
	MinOutputAtomic string           `json:"min_output_atomic"`
	MinOutputHex    string           `json:"min_output_hex"`
}

// Service answers quote requests end to end: network and token resolution,
// aggregation across exchanges and the atomic output of the winner
type Service struct {
	catalog  NetworkCatalog
	backends BackendProvider
	logger   *zap.Logger
	metrics  *metrics.QuoteMetrics
}

func NewService(catalog NetworkCatalog, backends BackendProvider, logger *zap.Logger, m *metrics.QuoteMetrics) *Service {
	return &Service{
		catalog:  catalog,
		backends: backends,
		logger:   logger.Named("quote"),
		metrics:  m,
	}
}

// Quote fails with types.ErrUnknownNetwork, types.ErrTokenLookup or
// types.ErrNoRouteFound, or with a backend error when the network or a token
// read is unreachable
func (s *Service) Quote(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	result, err := s.quote(ctx, req)
	s.metrics.ObserveRequest(req.NetworkID, requestOutcome(err), time.Since(start))
	if err != nil {
		s.logger.Info("Quote failed",
			zap.String("network", req.NetworkID),
			zap.String("from", req.From.Hex()),
			zap.String("to", req.To.Hex()),
			zap.String("amount", req.Amount.String()),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("Quote served",
		zap.String("network", req.NetworkID),
		zap.String("exchange", result.Quote.ExchangeID),
		zap.Stringer("path", result.Quote.Path),
		zap.String("amount", req.Amount.String()),
		zap.String("min_output", result.Quote.MinOutput.String()),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}

func (s *Service) quote(ctx context.Context, req Request) (*Result, error) {
	network, err := s.catalog.Network(req.NetworkID)
	if err != nil {
		return nil, err
	}

	backend, err := s.backends.Get(ctx, network)
	if err != nil {
		return nil, err
	}

	from, to, err := s.tokens(ctx, network, backend, req.From, req.To)
	if err != nil {
		return nil, err
	}

	aggregator := NewAggregator(Sources{
		Resolver: backend.Resolver,
		Pairs:    backend.Pairs,
		Reserves: backend.Reserves,
		Router:   backend.Router,
	}, s.logger, s.metrics)

	best, err := aggregator.Best(ctx, AggregateRequest{
		Network:             network,
		From:                from,
		To:                  to,
		Amount:              req.Amount,
		SlippageBasisPoints: req.SlippageBasisPoints,
		Recipient:           req.Sender,
		Families:            req.Families,
	})
	if err != nil {
		return nil, err
	}

	atomic, err := qmath.ToAtomicUnits(best.MinOutput, to.Decimals)
	if err != nil {
		return nil, err
	}
	hex, err := qmath.ToAtomicHex(best.MinOutput, to.Decimals)
	if err != nil {
		return nil, err
	}

	return &Result{
		Network:         network.ID,
		From:            from,
		To:              to,
		Quote:           best,
		MinOutputAtomic: atomic,
		MinOutputHex:    hex,
	}, nil
}

// tokens resolves both tokens concurrently, answering base pairs with known
// decimals from the catalog
func (s *Service) tokens(ctx context.Context, network *types.Network, backend *uniswap.Backend, fromAddr, toAddr common.Address) (types.Token, types.Token, error) {
	var from, to types.Token

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		from, err = s.token(gctx, network, backend, fromAddr)
		return err
	})
	g.Go(func() error {
		var err error
		to, err = s.token(gctx, network, backend, toAddr)
		return err
	})
	if err := g.Wait(); err != nil {
		return types.Token{}, types.Token{}, err
	}
	return from, to, nil
}

func (s *Service) token(ctx context.Context, network *types.Network, backend *uniswap.Backend, address common.Address) (types.Token, error) {
	for _, t := range network.BasePairs {
		if t.Address == address && t.Decimals >= 0 {
			return t, nil
		}
	}

	return backend.Tokens.TokenMetadata(ctx, address)
}

func requestOutcome(err error) string {
	switch {
	case err == nil:
		return "quoted"
	case errors.Is(err, types.ErrNoRouteFound):
		return "no_route"
	case errors.Is(err, types.ErrInvalidArgument), errors.Is(err, types.ErrUnknownNetwork), errors.Is(err, types.ErrTokenLookup):
		return "rejected"
	default:
		return "error"
	}
}
