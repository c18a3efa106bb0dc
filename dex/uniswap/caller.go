package uniswap

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/michaelpento.lv/swapquote/utils/metrics"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"
)

// CallerConfig throttles the calls of one network
type CallerConfig struct {
	Network           string
	RequestsPerSecond float64
	BurstSize         int
	// WaitTimeout bounds the time spent waiting on the limiter
	WaitTimeout time.Duration
	// CallTimeout bounds a single call, zero for none
	CallTimeout time.Duration
}

// RateLimitedCaller is a bind.ContractCaller that throttles and measures the
// eth_call traffic sent to a node
type RateLimitedCaller struct {
	inner   bind.ContractCaller
	limiter *rate.Limiter
	cfg     CallerConfig
	metrics *metrics.RPCMetrics
}

var _ bind.ContractCaller = (*RateLimitedCaller)(nil)

func NewRateLimitedCaller(inner bind.ContractCaller, cfg CallerConfig, m *metrics.RPCMetrics) *RateLimitedCaller {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = 1
	}

	return &RateLimitedCaller{
		inner:   inner,
		limiter: rate.NewLimiter(limit, burst),
		cfg:     cfg,
		metrics: m,
	}
}

func (c *RateLimitedCaller) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	ctx, cancel, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	start := time.Now()
	code, err := c.inner.CodeAt(ctx, contract, blockNumber)
	c.metrics.ObserveCall(c.cfg.Network, err, time.Since(start))
	return code, err
}

func (c *RateLimitedCaller) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	ctx, cancel, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	start := time.Now()
	out, err := c.inner.CallContract(ctx, call, blockNumber)
	c.metrics.ObserveCall(c.cfg.Network, err, time.Since(start))
	return out, err
}

// acquire waits for a limiter token and derives the context of the call
func (c *RateLimitedCaller) acquire(ctx context.Context) (context.Context, context.CancelFunc, error) {
	waitCtx := ctx
	if c.cfg.WaitTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.cfg.WaitTimeout)
		defer cancel()
	}

	start := time.Now()
	if err := c.limiter.Wait(waitCtx); err != nil {
		return nil, nil, fmt.Errorf("rate limiter error: %w", err)
	}
	c.metrics.ObserveLimiterWait(time.Since(start))

	if c.cfg.CallTimeout > 0 {
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
		return callCtx, cancel, nil
	}
	return ctx, func() {}, nil
}
