package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/michaelpento.lv/swapquote/api"
	"github.com/michaelpento.lv/swapquote/config"
	"github.com/michaelpento.lv/swapquote/dex/cache"
	"github.com/michaelpento.lv/swapquote/dex/uniswap"
	"github.com/michaelpento.lv/swapquote/quote"
	"github.com/michaelpento.lv/swapquote/utils/metrics"
	"github.com/michaelpento.lv/swapquote/utils/monitor"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// App wires the quote service with its chain backends and HTTP server
type App struct {
	cfg      *config.Config
	Catalog  *config.Catalog
	Service  *quote.Service
	backends *uniswap.Backends
	store    *cache.RedisTokenStore
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	nodes    *monitor.NodeMonitor
	logger   *zap.Logger
	wg       sync.WaitGroup
}

// New builds the application. The Redis token store is optional and left
// out, with a warning, when it cannot be reached.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	catalog, err := config.LoadCatalog(cfg.NetworksFile, cfg.RPCOverrides)
	if err != nil {
		return nil, fmt.Errorf("failed to load network catalog: %w", err)
	}

	registry := metrics.NewRegistry()
	m := metrics.New(metrics.Namespace, registry)

	a := &App{
		cfg:      cfg,
		Catalog:  catalog,
		registry: registry,
		metrics:  m,
		logger:   logger,
	}

	opts := uniswap.BackendOptions{
		Caller: uniswap.CallerConfig{
			RequestsPerSecond: cfg.RPC.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.RPC.RateLimit.BurstSize,
			WaitTimeout:       cfg.RPC.RateLimit.WaitTimeout,
			CallTimeout:       cfg.RPC.CallTimeout,
		},
		TokenCacheSize:    cfg.Cache.TokenSize,
		PairCacheSize:     cfg.Cache.PairSize,
		ExchangeCacheSize: cfg.Cache.ExchangeSize,
		Metrics:           m.RPC,
		Logger:            logger,
	}

	if cfg.Cache.RedisAddr != "" {
		store := cache.NewRedisTokenStore(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB, cfg.Cache.RedisTTL)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := store.Ping(pingCtx)
		cancel()
		if err != nil {
			logger.Warn("Redis token cache unavailable, using in-memory cache only",
				zap.String("addr", cfg.Cache.RedisAddr),
				zap.Error(err))
			_ = store.Close()
		} else {
			a.store = store
			opts.Store = store
		}
	}

	a.backends = uniswap.NewBackends(opts)
	a.Service = quote.NewService(catalog, a.backends, logger, m.Quote)
	return a, nil
}

// Start serves the HTTP API in the background until ctx is canceled
func (a *App) Start(ctx context.Context) <-chan error {
	server := api.NewServer(api.ServerOptions{
		Config:          a.cfg.Server,
		DefaultSlippage: a.cfg.DefaultSlippageBasisPoints,
		Metrics:         a.metrics.HTTP,
		Gatherer:        a.registry,
		Logger:          a.logger,
	}, a.Service, a.Catalog)

	if interval := a.cfg.RPC.HealthCheckInterval; interval > 0 {
		a.nodes = monitor.NewNodeMonitor(ctx, a.backends, interval, metrics.Namespace, a.registry, a.logger)
	}

	errCh := make(chan error, 1)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := server.Run(ctx); err != nil {
			errCh <- err
		}
		close(errCh)
	}()

	a.logger.Info("Swap quote service started",
		zap.Strings("networks", a.Catalog.NetworkIDs()),
		zap.Bool("redis_cache", a.store != nil))
	return errCh
}

// Stop waits for the server to drain and releases node connections
func (a *App) Stop() {
	a.logger.Info("Stopping swap quote service...")
	a.wg.Wait()
	if a.nodes != nil {
		a.nodes.Cleanup()
	}
	a.backends.Close()
	if a.store != nil {
		_ = a.store.Close()
	}
}
