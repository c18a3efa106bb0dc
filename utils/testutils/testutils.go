package testutils

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/michaelpento.lv/swapquote/dex"
	"github.com/michaelpento.lv/swapquote/types"
	qmath "github.com/michaelpento.lv/swapquote/utils/math"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// MockAddress returns a deterministic address ending in n
func MockAddress(n uint64) common.Address {
	return common.BigToAddress(new(big.Int).SetUint64(n))
}

// MockToken creates a token with a deterministic address
func MockToken(n uint64, ticker string, decimals int) types.Token {
	return types.Token{
		Address:  MockAddress(n),
		Name:     ticker + " Token",
		Ticker:   ticker,
		Decimals: decimals,
	}
}

type pairKey struct {
	factory common.Address
	a, b    common.Address
}

func newPairKey(factory, a, b common.Address) pairKey {
	if b.Hex() < a.Hex() {
		a, b = b, a
	}
	return pairKey{factory: factory, a: a, b: b}
}

// Market is an in-memory chain of factories, pairs and tokens implementing
// the dex lookup interfaces. It is safe for concurrent use.
type Market struct {
	mu          sync.RWMutex
	pairs       map[pairKey]common.Address
	reserves    map[common.Address]*dex.PairReserves
	tokens      map[common.Address]types.Token
	exchanges   map[string]dex.ExchangeInfo
	pairErrs    map[pairKey]error
	reserveErrs map[common.Address]error
	resolveErrs map[string]error
	tokenErrs   map[common.Address]error
	nextPair    uint64

	PairCalls    atomic.Int64
	ReserveCalls atomic.Int64
}

func NewMarket() *Market {
	return &Market{
		pairs:       make(map[pairKey]common.Address),
		reserves:    make(map[common.Address]*dex.PairReserves),
		tokens:      make(map[common.Address]types.Token),
		exchanges:   make(map[string]dex.ExchangeInfo),
		pairErrs:    make(map[pairKey]error),
		reserveErrs: make(map[common.Address]error),
		resolveErrs: make(map[string]error),
		tokenErrs:   make(map[common.Address]error),
		nextPair:    0xf000,
	}
}

// AddPair registers a pair on factory with reserves given in token units.
// token0 is the lower address, as in Uniswap V2.
func (m *Market) AddPair(t *testing.T, factory common.Address, a, b types.Token, reserveA, reserveB string) common.Address {
	t.Helper()

	rawA, err := qmath.ToAtomicUnits(decimal.RequireFromString(reserveA), a.Decimals)
	require.NoError(t, err)
	rawB, err := qmath.ToAtomicUnits(decimal.RequireFromString(reserveB), b.Decimals)
	require.NoError(t, err)

	r0, _ := new(big.Int).SetString(rawA, 10)
	r1, _ := new(big.Int).SetString(rawB, 10)
	token0, token1 := a.Address, b.Address
	if b.Address.Hex() < a.Address.Hex() {
		token0, token1 = token1, token0
		r0, r1 = r1, r0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextPair++
	pair := MockAddress(m.nextPair)
	m.pairs[newPairKey(factory, a.Address, b.Address)] = pair
	m.reserves[pair] = &dex.PairReserves{Reserve0: r0, Reserve1: r1, Token0: token0, Token1: token1}
	m.tokens[a.Address] = a
	m.tokens[b.Address] = b
	return pair
}

// AddToken registers token metadata
func (m *Market) AddToken(token types.Token) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.Address] = token
}

// AddExchange registers the resolution of an exchange id
func (m *Market) AddExchange(id string, info dex.ExchangeInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exchanges[id] = info
}

// FailPair makes pair lookups of (a, b) on factory fail
func (m *Market) FailPair(factory, a, b common.Address, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pairErrs[newPairKey(factory, a, b)] = err
}

// FailReserves makes reserve reads of pair fail
func (m *Market) FailReserves(pair common.Address, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reserveErrs[pair] = err
}

// FailToken makes metadata reads of address fail with err
func (m *Market) FailToken(address common.Address, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokenErrs[address] = err
}

// FailResolve makes resolution of an exchange id fail
func (m *Market) FailResolve(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolveErrs[id] = err
}

func (m *Market) GetPair(ctx context.Context, factory, a, b common.Address) (common.Address, bool, error) {
	m.PairCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return common.Address{}, false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	key := newPairKey(factory, a, b)
	if err := m.pairErrs[key]; err != nil {
		return common.Address{}, false, fmt.Errorf("%w: %v", types.ErrPairLookup, err)
	}
	pair, ok := m.pairs[key]
	return pair, ok, nil
}

func (m *Market) GetReserves(ctx context.Context, pair common.Address) (*dex.PairReserves, error) {
	m.ReserveCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.reserveErrs[pair]; err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrReserveLookup, err)
	}
	r, ok := m.reserves[pair]
	if !ok {
		return nil, fmt.Errorf("%w: no contract at %s", types.ErrReserveLookup, pair.Hex())
	}
	copied := *r
	return &copied, nil
}

func (m *Market) TokenMetadata(ctx context.Context, address common.Address) (types.Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err, ok := m.tokenErrs[address]; ok {
		return types.Token{}, err
	}
	token, ok := m.tokens[address]
	if !ok {
		return types.Token{}, fmt.Errorf("%w: %s", types.ErrTokenLookup, address.Hex())
	}
	return token, nil
}

// Resolve answers from registered exchanges first, then from the static
// deployment of the network
func (m *Market) Resolve(ctx context.Context, network *types.Network, exchange types.Exchange) (dex.ExchangeInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.resolveErrs[exchange.ID]; err != nil {
		return dex.ExchangeInfo{}, err
	}
	if info, ok := m.exchanges[exchange.ID]; ok {
		return info, nil
	}

	d, ok := network.Deployment(exchange.ID)
	if !ok {
		return dex.ExchangeInfo{}, fmt.Errorf("exchange %s not deployed", exchange.ID)
	}
	return dex.ExchangeInfo{
		RouterID:           d.RouterID,
		Factory:            d.Factory,
		FeeBasisPoints:     d.FeeBasisPoints,
		SwapFeeBasisPoints: d.SwapFeeBasisPoints,
	}, nil
}

// Router is a canned dex.ExternalRouter keyed by exchange id
type Router struct {
	mu       sync.Mutex
	Routes   map[string]*dex.Route
	Errs     map[string]error
	Requests []dex.RouteRequest
}

func NewRouter() *Router {
	return &Router{
		Routes: make(map[string]*dex.Route),
		Errs:   make(map[string]error),
	}
}

func (r *Router) Route(ctx context.Context, req dex.RouteRequest) (*dex.Route, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Requests = append(r.Requests, req)
	if err := r.Errs[req.Exchange.ID]; err != nil {
		return nil, err
	}
	return r.Routes[req.Exchange.ID], nil
}
