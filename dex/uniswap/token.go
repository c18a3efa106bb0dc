package uniswap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/michaelpento.lv/swapquote/dex"
	"github.com/michaelpento.lv/swapquote/types"
	"github.com/michaelpento.lv/swapquote/utils/metrics"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// TokenStore is a shared second tier for token metadata
type TokenStore interface {
	// GetToken returns false when the token is not stored
	GetToken(ctx context.Context, chainID uint64, address common.Address) (types.Token, bool, error)
	SetToken(ctx context.Context, chainID uint64, token types.Token) error
}

// TokenReader reads ERC20 metadata. Metadata never changes once deployed, so
// every successful read is cached.
type TokenReader struct {
	chainID uint64
	caller  bind.ContractCaller
	cache   *lru.Cache
	store   TokenStore
	metrics *metrics.RPCMetrics
	logger  *zap.Logger
}

var _ dex.TokenMetadataLookup = (*TokenReader)(nil)

// NewTokenReader creates a reader for one chain. store may be nil.
func NewTokenReader(chainID uint64, caller bind.ContractCaller, cacheSize int, store TokenStore, m *metrics.RPCMetrics, logger *zap.Logger) (*TokenReader, error) {
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create token cache: %w", err)
	}

	return &TokenReader{
		chainID: chainID,
		caller:  caller,
		cache:   cache,
		store:   store,
		metrics: m,
		logger:  logger.Named("tokens"),
	}, nil
}

func (r *TokenReader) TokenMetadata(ctx context.Context, address common.Address) (types.Token, error) {
	if cached, ok := r.cache.Get(address); ok {
		r.metrics.ObserveCache("token", true)
		return cached.(types.Token), nil
	}
	r.metrics.ObserveCache("token", false)

	if r.store != nil {
		token, ok, err := r.store.GetToken(ctx, r.chainID, address)
		if err != nil {
			r.logger.Warn("Token store read failed",
				zap.String("token", address.Hex()),
				zap.Error(err))
		} else if ok {
			r.cache.Add(address, token)
			return token, nil
		}
	}

	token, err := r.fetch(ctx, address)
	if err != nil {
		return types.Token{}, err
	}

	r.cache.Add(address, token)
	if r.store != nil {
		if err := r.store.SetToken(ctx, r.chainID, token); err != nil {
			r.logger.Warn("Token store write failed",
				zap.String("token", address.Hex()),
				zap.Error(err))
		}
	}
	return token, nil
}

// fetch issues the name, symbol and decimals calls concurrently
func (r *TokenReader) fetch(ctx context.Context, address common.Address) (types.Token, error) {
	contract := bind.NewBoundContract(address, ERC20ABI, r.caller, nil, nil)
	token := types.Token{Address: address}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		name, err := callString(gctx, contract, "name")
		token.Name = name
		return err
	})
	g.Go(func() error {
		symbol, err := callString(gctx, contract, "symbol")
		token.Ticker = symbol
		return err
	})
	g.Go(func() error {
		var out []interface{}
		if err := contract.Call(&bind.CallOpts{Context: gctx}, &out, "decimals"); err != nil {
			return fmt.Errorf("failed to get decimals: %w", err)
		}
		if len(out) == 0 {
			return fmt.Errorf("empty decimals result: %w", errBadTokenResult)
		}
		decimals, ok := out[0].(uint8)
		if !ok {
			return fmt.Errorf("failed to parse decimals: %w", errBadTokenResult)
		}
		token.Decimals = int(decimals)
		return nil
	})

	if err := g.Wait(); err != nil {
		if notAToken(err) {
			return types.Token{}, fmt.Errorf("token %s: %v: %w", address.Hex(), err, types.ErrTokenLookup)
		}
		return types.Token{}, fmt.Errorf("token %s: %w", address.Hex(), err)
	}
	return token, nil
}

var errBadTokenResult = errors.New("unexpected token result")

// notAToken reports whether err says the address does not implement the
// ERC20 metadata calls. Transport failures are not.
func notAToken(err error) bool {
	return errors.Is(err, bind.ErrNoCode) ||
		errors.Is(err, errBadTokenResult) ||
		isRevert(err) ||
		strings.Contains(err.Error(), "abi: ")
}

func callString(ctx context.Context, contract *bind.BoundContract, method string) (string, error) {
	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, method); err != nil {
		return "", fmt.Errorf("failed to get %s: %w", method, err)
	}
	if len(out) == 0 {
		return "", fmt.Errorf("empty %s result: %w", method, errBadTokenResult)
	}
	s, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("failed to parse %s: %w", method, errBadTokenResult)
	}
	return s, nil
}
