package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/michaelpento.lv/swapquote/config"
	"github.com/michaelpento.lv/swapquote/utils/metrics"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const APIVersion = "v1"

type ServerOptions struct {
	Config          config.ServerConfig
	DefaultSlippage int64
	Metrics         *metrics.HTTPMetrics
	// Gatherer backs /metrics, nil for the default registry
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// Server exposes the quote service over HTTP
type Server struct {
	cfg    config.ServerConfig
	engine *gin.Engine
	logger *zap.Logger
}

func NewServer(opts ServerOptions, service QuoteService, catalog NetworkCatalog) *Server {
	logger := opts.Logger.Named("http")

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(corsConfig(opts.Config.AllowedOrigins)))
	r.Use(RequestID())
	r.Use(Logger(logger))
	r.Use(MetricsMiddleware(opts.Metrics))

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/health", health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	limiter := NewRateLimiter(opts.Config.RateLimit)
	limited := r.Group("", limiter.RateLimitMiddleware(), Timeout(opts.Config.RequestTimeout))
	api := limited.Group("/api/" + APIVersion)

	NewQuoteHandler(service, opts.DefaultSlippage, logger).SetRoutes(limited, api)
	NewNetworkHandler(catalog).SetRoutes(api)

	return &Server{
		cfg:    opts.Config,
		engine: r,
		logger: logger,
	}
}

func corsConfig(origins []string) cors.Config {
	conf := cors.DefaultConfig()
	conf.AllowMethods = []string{http.MethodGet, http.MethodOptions}
	conf.AddExposeHeaders(RequestIDHeader)
	conf.AddAllowHeaders(RequestIDHeader)

	if len(origins) == 0 {
		conf.AllowAllOrigins = true
		return conf
	}
	for _, o := range origins {
		if o == "*" {
			conf.AllowAllOrigins = true
			return conf
		}
	}
	conf.AllowOrigins = origins
	return conf
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is canceled, then shuts down gracefully within the
// configured shutdown timeout
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.ListenAddr,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server started", zap.String("addr", s.cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to serve http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Failed to stop HTTP server", zap.Error(err))
		return err
	}
	s.logger.Info("HTTP server stopped gracefully")
	return nil
}
