package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Pinger checks the chain nodes in use, keyed by network id
type Pinger interface {
	Ping(ctx context.Context) map[string]error
}

// NodeMonitor periodically pings the chain nodes and exports their state
type NodeMonitor struct {
	ctx      context.Context
	cancel   context.CancelFunc
	pinger   Pinger
	interval time.Duration
	logger   *zap.Logger
	metrics  struct {
		up       *prometheus.GaugeVec
		failures *prometheus.CounterVec
	}

	mu     sync.RWMutex
	status map[string]error

	wg sync.WaitGroup
}

// NewNodeMonitor starts monitoring in the background until ctx is canceled
// or Cleanup is called
func NewNodeMonitor(ctx context.Context, pinger Pinger, interval time.Duration, namespace string, reg prometheus.Registerer, logger *zap.Logger) *NodeMonitor {
	ctx, cancel := context.WithCancel(ctx)
	m := &NodeMonitor{
		ctx:      ctx,
		cancel:   cancel,
		pinger:   pinger,
		interval: interval,
		logger:   logger.Named("node_monitor"),
		status:   make(map[string]error),
	}

	factory := promauto.With(reg)
	m.metrics.up = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "node",
		Name:      "up",
		Help:      "Whether the node of a network answered the last ping",
	}, []string{"network"})
	m.metrics.failures = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "node",
		Name:      "ping_failures_total",
		Help:      "Total number of failed node pings",
	}, []string{"network"})

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.monitor()
	}()

	return m
}

func (m *NodeMonitor) monitor() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.check()
		}
	}
}

func (m *NodeMonitor) check() {
	ctx, cancel := context.WithTimeout(m.ctx, m.interval)
	defer cancel()

	results := m.pinger.Ping(ctx)
	for network, err := range results {
		if err != nil {
			m.metrics.up.WithLabelValues(network).Set(0)
			m.metrics.failures.WithLabelValues(network).Inc()
			m.logger.Warn("Node ping failed", zap.String("network", network), zap.Error(err))
			continue
		}
		m.metrics.up.WithLabelValues(network).Set(1)
	}

	m.mu.Lock()
	m.status = results
	m.mu.Unlock()
}

// Status returns the result of the last ping per network
func (m *NodeMonitor) Status() map[string]error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := make(map[string]error, len(m.status))
	for k, v := range m.status {
		status[k] = v
	}
	return status
}

// Cleanup stops monitoring and waits for the loop to exit
func (m *NodeMonitor) Cleanup() {
	m.cancel()
	m.wg.Wait()
}
