package types

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Token represents an ERC20 token on one network
type Token struct {
	Address  common.Address `json:"address" yaml:"-"`
	Name     string         `json:"name" yaml:"name"`
	Ticker   string         `json:"ticker" yaml:"ticker"`
	Decimals int            `json:"decimals" yaml:"decimals"`
}

// SameToken reports whether two tokens share an address. Hex parsing into
// common.Address already discards case.
func (t Token) SameToken(other Token) bool {
	return t.Address == other.Address
}

func (t Token) String() string {
	if t.Ticker != "" {
		return t.Ticker
	}
	return t.Address.Hex()
}

// ProtocolFamily tags how an exchange prices swaps
type ProtocolFamily string

const (
	ConstantProduct       ProtocolFamily = "constant_product"
	ConcentratedLiquidity ProtocolFamily = "concentrated_liquidity"
)

// ParseProtocolFamily accepts the catalog spelling and the short v2/v3 aliases
func ParseProtocolFamily(s string) (ProtocolFamily, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(ConstantProduct), "v2":
		return ConstantProduct, nil
	case string(ConcentratedLiquidity), "v3":
		return ConcentratedLiquidity, nil
	default:
		return "", fmt.Errorf("unknown protocol family %q: %w", s, ErrInvalidArgument)
	}
}

// Exchange is a network independent exchange definition
type Exchange struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Family ProtocolFamily `json:"family"`
}

// ExchangeDeployment holds the network specific identifiers of an exchange.
// RouterID is resolved through the network's trader contract unless Factory
// is set, in which case FeeBasisPoints is used as is.
type ExchangeDeployment struct {
	RouterID           uint64
	Factory            common.Address
	FeeBasisPoints     int64
	SwapFeeBasisPoints int64
	Quoter             common.Address
	FeeTiers           []uint32
}

// Network groups the exchanges and base pairs available on one chain
type Network struct {
	ID          string
	ChainID     uint64
	RPCEndpoint string
	Trader      common.Address
	BasePairs   []Token
	Exchanges   []Exchange
	Deployments map[string]ExchangeDeployment
}

// Deployment returns the deployment of an exchange on this network
func (n *Network) Deployment(exchangeID string) (ExchangeDeployment, bool) {
	d, ok := n.Deployments[exchangeID]
	return d, ok
}

// SwapPath is an ordered list of 2 or 3 tokens
type SwapPath []Token

func (p SwapPath) String() string {
	parts := make([]string, len(p))
	for i, t := range p {
		parts[i] = t.String()
	}
	return strings.Join(parts, " -> ")
}

// Hops returns the number of pairs traversed by the path
func (p SwapPath) Hops() int {
	if len(p) < 2 {
		return 0
	}
	return len(p) - 1
}

// ReserveSnapshot holds pair reserves ordered as (from, to), in token units
type ReserveSnapshot struct {
	Found       bool
	FromReserve decimal.Decimal
	ToReserve   decimal.Decimal
}

// SwapQuote is the outcome of quoting one path on one exchange
type SwapQuote struct {
	Input          decimal.Decimal `json:"input"`
	SwapFee        decimal.Decimal `json:"fee"`
	ExchangeFee    decimal.Decimal `json:"dex_fee"`
	ExpectedOutput decimal.Decimal `json:"expected_output"`
	MinOutput      decimal.Decimal `json:"min_output"`
	PriceImpact    decimal.Decimal `json:"price_impact"`
	Path           SwapPath        `json:"path"`
	ExchangeID     string          `json:"exchange_id"`
	ExchangeName   string          `json:"exchange_name"`
	Family         ProtocolFamily  `json:"family"`
}
