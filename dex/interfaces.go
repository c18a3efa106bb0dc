package dex

import (
	"context"
	"math/big"
	"time"

	"github.com/michaelpento.lv/swapquote/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// TokenMetadataLookup resolves ERC20 metadata for an address
type TokenMetadataLookup interface {
	// TokenMetadata fails with types.ErrTokenLookup when the address is not a
	// token contract on the network. Transport failures are not tagged.
	TokenMetadata(ctx context.Context, address common.Address) (types.Token, error)
}

// PairLookup asks an exchange factory for the pair of two tokens
type PairLookup interface {
	// GetPair returns false when the factory has no pair for the tokens
	GetPair(ctx context.Context, factory, tokenA, tokenB common.Address) (common.Address, bool, error)
}

// ReserveLookup reads the raw reserves of a pair contract
type ReserveLookup interface {
	GetReserves(ctx context.Context, pair common.Address) (*PairReserves, error)
}

// ExchangeResolver turns a network deployment into the parameters needed to
// quote on a constant product exchange
type ExchangeResolver interface {
	Resolve(ctx context.Context, network *types.Network, exchange types.Exchange) (ExchangeInfo, error)
}

// ExternalRouter quotes on exchanges whose routing is delegated to a third
// party router
type ExternalRouter interface {
	// Route returns nil when the router found no route
	Route(ctx context.Context, req RouteRequest) (*Route, error)
}

// PairReserves represents the on-chain reserves of a pair, in atomic units
type PairReserves struct {
	Reserve0 *big.Int
	Reserve1 *big.Int
	Token0   common.Address
	Token1   common.Address
}

// ExchangeInfo is a resolved constant product deployment
type ExchangeInfo struct {
	RouterID           uint64
	Factory            common.Address
	FeeBasisPoints     int64
	SwapFeeBasisPoints int64
}

type TradeType int

const (
	ExactInput TradeType = iota
	ExactOutput
)

func (t TradeType) String() string {
	if t == ExactOutput {
		return "exact_output"
	}
	return "exact_input"
}

// RouteRequest is the input of an ExternalRouter
type RouteRequest struct {
	ChainID             uint64
	Exchange            types.Exchange
	Deployment          types.ExchangeDeployment
	From                types.Token
	To                  types.Token
	Amount              decimal.Decimal
	TradeType           TradeType
	Recipient           common.Address
	SlippageBasisPoints int64
	Deadline            time.Time
	BasePairs           []types.Token
}

// Route is the realized route of an ExternalRouter
type Route struct {
	Path        types.SwapPath
	Output      decimal.Decimal
	MinOutput   decimal.Decimal
	PriceImpact decimal.Decimal
	Fee         decimal.Decimal
}
