package uniswap

import (
	"context"
	"fmt"
	"math/big"

	"github.com/michaelpento.lv/swapquote/dex"
	"github.com/michaelpento.lv/swapquote/types"
	"github.com/michaelpento.lv/swapquote/utils/metrics"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru"
)

// TraderResolver resolves constant product deployments of one network. A
// deployment with a static factory is used as is; otherwise the network's
// trader contract is asked for the exchange registered under the router id.
type TraderResolver struct {
	caller  bind.ContractCaller
	cache   *lru.Cache
	metrics *metrics.RPCMetrics
}

var _ dex.ExchangeResolver = (*TraderResolver)(nil)

func NewTraderResolver(caller bind.ContractCaller, cacheSize int, m *metrics.RPCMetrics) (*TraderResolver, error) {
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create exchange cache: %w", err)
	}

	return &TraderResolver{
		caller:  caller,
		cache:   cache,
		metrics: m,
	}, nil
}

func (r *TraderResolver) Resolve(ctx context.Context, network *types.Network, exchange types.Exchange) (dex.ExchangeInfo, error) {
	d, ok := network.Deployment(exchange.ID)
	if !ok {
		return dex.ExchangeInfo{}, fmt.Errorf("exchange %s is not deployed on %s", exchange.ID, network.ID)
	}

	if d.Factory != (common.Address{}) {
		return dex.ExchangeInfo{
			RouterID:           d.RouterID,
			Factory:            d.Factory,
			FeeBasisPoints:     d.FeeBasisPoints,
			SwapFeeBasisPoints: d.SwapFeeBasisPoints,
		}, nil
	}

	if network.Trader == (common.Address{}) {
		return dex.ExchangeInfo{}, fmt.Errorf("network %s has no trader to resolve %s", network.ID, exchange.ID)
	}

	key := fmt.Sprintf("%s:%d", network.Trader.Hex(), d.RouterID)
	if cached, ok := r.cache.Get(key); ok {
		r.metrics.ObserveCache("exchange", true)
		info := cached.(dex.ExchangeInfo)
		info.SwapFeeBasisPoints = d.SwapFeeBasisPoints
		return info, nil
	}
	r.metrics.ObserveCache("exchange", false)

	info, err := r.queryDex(ctx, network.Trader, d.RouterID)
	if err != nil {
		return dex.ExchangeInfo{}, fmt.Errorf("failed to resolve %s on %s: %w", exchange.ID, network.ID, err)
	}
	r.cache.Add(key, info)

	info.SwapFeeBasisPoints = d.SwapFeeBasisPoints
	return info, nil
}

func (r *TraderResolver) queryDex(ctx context.Context, trader common.Address, routerID uint64) (dex.ExchangeInfo, error) {
	contract := bind.NewBoundContract(trader, TraderABI, r.caller, nil, nil)

	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "queryDex", new(big.Int).SetUint64(routerID)); err != nil {
		return dex.ExchangeInfo{}, fmt.Errorf("queryDex(%d): %w", routerID, err)
	}
	if len(out) < 3 {
		return dex.ExchangeInfo{}, fmt.Errorf("short queryDex result")
	}

	id, ok := out[0].(*big.Int)
	if !ok || !id.IsUint64() {
		return dex.ExchangeInfo{}, fmt.Errorf("failed to parse dex id")
	}
	fee, ok := out[1].(*big.Int)
	if !ok || !fee.IsInt64() {
		return dex.ExchangeInfo{}, fmt.Errorf("failed to parse dex fee")
	}
	factory, ok := out[2].(common.Address)
	if !ok {
		return dex.ExchangeInfo{}, fmt.Errorf("failed to parse dex factory")
	}
	if factory == (common.Address{}) {
		return dex.ExchangeInfo{}, fmt.Errorf("dex %d is not registered", routerID)
	}

	return dex.ExchangeInfo{
		RouterID:       id.Uint64(),
		Factory:        factory,
		FeeBasisPoints: fee.Int64(),
	}, nil
}
