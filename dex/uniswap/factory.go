package uniswap

import (
	"bytes"
	"context"
	"fmt"

	"github.com/michaelpento.lv/swapquote/dex"
	"github.com/michaelpento.lv/swapquote/types"
	"github.com/michaelpento.lv/swapquote/utils/metrics"

	"github.com/cespare/xxhash/v2"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru"
)

// FactoryReader resolves pair addresses through Uniswap V2 style factories.
// Existing pairs are cached; a pair that does not exist yet may be created at
// any time, so absence is always asked again.
type FactoryReader struct {
	caller  bind.ContractCaller
	cache   *lru.Cache
	metrics *metrics.RPCMetrics
}

var _ dex.PairLookup = (*FactoryReader)(nil)

func NewFactoryReader(caller bind.ContractCaller, cacheSize int, m *metrics.RPCMetrics) (*FactoryReader, error) {
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create pair cache: %w", err)
	}

	return &FactoryReader{
		caller:  caller,
		cache:   cache,
		metrics: m,
	}, nil
}

// GetPair returns the pair of tokenA and tokenB on factory. The zero address
// answer of the factory is reported as a missing pair.
func (f *FactoryReader) GetPair(ctx context.Context, factory, tokenA, tokenB common.Address) (common.Address, bool, error) {
	key := pairCacheKey(factory, tokenA, tokenB)
	if cached, ok := f.cache.Get(key); ok {
		f.metrics.ObserveCache("pair", true)
		return cached.(common.Address), true, nil
	}
	f.metrics.ObserveCache("pair", false)

	contract := bind.NewBoundContract(factory, FactoryABI, f.caller, nil, nil)

	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "getPair", tokenA, tokenB); err != nil {
		return common.Address{}, false, fmt.Errorf("failed to get pair %s/%s: %v: %w", tokenA.Hex(), tokenB.Hex(), err, types.ErrPairLookup)
	}
	if len(out) == 0 {
		return common.Address{}, false, fmt.Errorf("empty getPair result: %w", types.ErrPairLookup)
	}

	pair, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, false, fmt.Errorf("failed to parse pair address: %w", types.ErrPairLookup)
	}
	if pair == (common.Address{}) {
		return common.Address{}, false, nil
	}

	f.cache.Add(key, pair)
	return pair, true, nil
}

// pairCacheKey hashes the factory and the sorted token pair
func pairCacheKey(factory, tokenA, tokenB common.Address) uint64 {
	if bytes.Compare(tokenA.Bytes(), tokenB.Bytes()) > 0 {
		tokenA, tokenB = tokenB, tokenA
	}

	var buf [3 * common.AddressLength]byte
	copy(buf[:], factory.Bytes())
	copy(buf[common.AddressLength:], tokenA.Bytes())
	copy(buf[2*common.AddressLength:], tokenB.Bytes())
	return xxhash.Sum64(buf[:])
}
