package uniswap

import (
	"context"
	"fmt"
	"sync"

	"github.com/michaelpento.lv/swapquote/dex"
	"github.com/michaelpento.lv/swapquote/types"
	"github.com/michaelpento.lv/swapquote/utils/metrics"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// Backend groups the chain readers of one network
type Backend struct {
	Tokens   dex.TokenMetadataLookup
	Pairs    dex.PairLookup
	Reserves dex.ReserveLookup
	Resolver dex.ExchangeResolver
	Router   dex.ExternalRouter
}

type BackendOptions struct {
	Caller            CallerConfig
	TokenCacheSize    int
	PairCacheSize     int
	ExchangeCacheSize int
	// Store is an optional shared token metadata tier
	Store   TokenStore
	Metrics *metrics.RPCMetrics
	Logger  *zap.Logger
}

// NewBackend builds the readers of network on top of a node client
func NewBackend(network *types.Network, client bind.ContractCaller, opts BackendOptions) (*Backend, error) {
	callerCfg := opts.Caller
	callerCfg.Network = network.ID
	caller := NewRateLimitedCaller(client, callerCfg, opts.Metrics)
	logger := opts.Logger.With(zap.String("network", network.ID))

	tokens, err := NewTokenReader(network.ChainID, caller, opts.TokenCacheSize, opts.Store, opts.Metrics, logger)
	if err != nil {
		return nil, err
	}
	pairs, err := NewFactoryReader(caller, opts.PairCacheSize, opts.Metrics)
	if err != nil {
		return nil, err
	}
	resolver, err := NewTraderResolver(caller, opts.ExchangeCacheSize, opts.Metrics)
	if err != nil {
		return nil, err
	}

	return &Backend{
		Tokens:   tokens,
		Pairs:    pairs,
		Reserves: NewPairReader(caller),
		Resolver: resolver,
		Router:   NewQuoterRouter(caller, logger),
	}, nil
}

// Backends dials networks lazily and keeps one backend per network
type Backends struct {
	opts     BackendOptions
	mu       sync.Mutex
	backends map[string]*Backend
	nodes    map[string]node
}

type node struct {
	client  *ethclient.Client
	chainID uint64
}

func NewBackends(opts BackendOptions) *Backends {
	return &Backends{
		opts:     opts,
		backends: make(map[string]*Backend),
		nodes:    make(map[string]node),
	}
}

// Get returns the backend of network, dialing its RPC endpoint on first use
func (b *Backends) Get(ctx context.Context, network *types.Network) (*Backend, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if backend, ok := b.backends[network.ID]; ok {
		return backend, nil
	}

	client, err := ethclient.DialContext(ctx, network.RPCEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s node: %w", network.ID, err)
	}

	backend, err := NewBackend(network, client, b.opts)
	if err != nil {
		client.Close()
		return nil, err
	}

	b.opts.Logger.Info("Connected to network",
		zap.String("network", network.ID),
		zap.Uint64("chain_id", network.ChainID))

	b.nodes[network.ID] = node{client: client, chainID: network.ChainID}
	b.backends[network.ID] = backend
	return backend, nil
}

// Ping checks every dialed node, keyed by network id. A node answering with
// another chain id than its network's is reported as failed.
func (b *Backends) Ping(ctx context.Context) map[string]error {
	b.mu.Lock()
	nodes := make(map[string]node, len(b.nodes))
	for id, n := range b.nodes {
		nodes[id] = n
	}
	b.mu.Unlock()

	results := make(map[string]error, len(nodes))
	for id, n := range nodes {
		chainID, err := n.client.ChainID(ctx)
		switch {
		case err != nil:
			results[id] = fmt.Errorf("failed to get chain id: %w", err)
		case !chainID.IsUint64() || chainID.Uint64() != n.chainID:
			results[id] = fmt.Errorf("node reports chain id %s, want %d", chainID, n.chainID)
		default:
			results[id] = nil
		}
	}
	return results
}

// Close disconnects every dialed node
func (b *Backends) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, n := range b.nodes {
		n.client.Close()
	}
	b.nodes = make(map[string]node)
	b.backends = make(map[string]*Backend)
}
