package config

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/michaelpento.lv/swapquote/types"
	qmath "github.com/michaelpento.lv/swapquote/utils/math"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v2"
)

//go:embed networks.yaml
var defaultCatalog []byte

// DefaultSwapFeeBasisPoints is the constant product pool fee used when a
// deployment does not name one
const DefaultSwapFeeBasisPoints int64 = 30

// DefaultFeeTiers are the concentrated liquidity pool fees tried by the router,
// in hundredths of a basis point
var DefaultFeeTiers = []uint32{100, 500, 3000, 10000}

type catalogFile struct {
	Exchanges []exchangeEntry `yaml:"exchanges"`
	Networks  []networkEntry  `yaml:"networks"`
}

type exchangeEntry struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Family string `yaml:"family"`
}

type networkEntry struct {
	ID          string                     `yaml:"id"`
	ChainID     uint64                     `yaml:"chain_id"`
	RPC         string                     `yaml:"rpc"`
	Trader      string                     `yaml:"trader"`
	BasePairs   []tokenEntry               `yaml:"base_pairs"`
	Deployments map[string]deploymentEntry `yaml:"exchanges"`
}

type tokenEntry struct {
	Address  string `yaml:"address"`
	Name     string `yaml:"name"`
	Ticker   string `yaml:"ticker"`
	Decimals *int   `yaml:"decimals"`
}

type deploymentEntry struct {
	RouterID   uint64   `yaml:"router_id"`
	Factory    string   `yaml:"factory"`
	FeeBps     int64    `yaml:"fee_bps"`
	SwapFeeBps *int64   `yaml:"swap_fee_bps"`
	Quoter     string   `yaml:"quoter"`
	FeeTiers   []uint32 `yaml:"fee_tiers"`
}

// Catalog is the immutable set of networks the service can quote on. It is
// built once at startup and hands out copies.
type Catalog struct {
	exchanges []types.Exchange
	networks  map[string]*types.Network
}

// LoadCatalog reads a YAML catalog from path, or the embedded catalog when
// path is empty, and applies RPC endpoint overrides keyed by network id.
func LoadCatalog(path string, rpcOverrides map[string]string) (*Catalog, error) {
	data := defaultCatalog
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read network catalog: %w", err)
		}
		data = b
	}

	return ParseCatalog(data, rpcOverrides)
}

// ParseCatalog decodes and validates a YAML catalog
func ParseCatalog(data []byte, rpcOverrides map[string]string) (*Catalog, error) {
	var file catalogFile
	if err := yaml.UnmarshalStrict(data, &file); err != nil {
		return nil, fmt.Errorf("failed to decode network catalog: %w", err)
	}

	var errors []string
	catalog := &Catalog{networks: make(map[string]*types.Network)}

	known := make(map[string]types.Exchange)
	for _, e := range file.Exchanges {
		family, err := types.ParseProtocolFamily(e.Family)
		switch {
		case e.ID == "":
			errors = append(errors, "exchange id must be specified")
			continue
		case err != nil:
			errors = append(errors, fmt.Sprintf("exchange %s: %v", e.ID, err))
			continue
		}
		if _, dup := known[e.ID]; dup {
			errors = append(errors, fmt.Sprintf("duplicate exchange %s", e.ID))
			continue
		}
		ex := types.Exchange{ID: e.ID, Name: e.Name, Family: family}
		if ex.Name == "" {
			ex.Name = e.ID
		}
		known[e.ID] = ex
		catalog.exchanges = append(catalog.exchanges, ex)
	}

	for _, n := range file.Networks {
		id := strings.ToLower(strings.TrimSpace(n.ID))
		if id == "" {
			errors = append(errors, "network id must be specified")
			continue
		}
		if _, dup := catalog.networks[id]; dup {
			errors = append(errors, fmt.Sprintf("duplicate network %s", id))
			continue
		}

		network, errs := buildNetwork(id, n, catalog.exchanges, known)
		if endpoint, ok := rpcOverrides[id]; ok && endpoint != "" {
			network.RPCEndpoint = endpoint
		}
		if network.RPCEndpoint == "" {
			errs = append(errs, "rpc must be specified")
		}
		for _, e := range errs {
			errors = append(errors, fmt.Sprintf("network %s: %s", id, e))
		}
		catalog.networks[id] = network
	}

	if len(catalog.networks) == 0 {
		errors = append(errors, "catalog defines no networks")
	}

	if len(errors) > 0 {
		return nil, fmt.Errorf("network catalog validation failed: %s", strings.Join(errors, "; "))
	}

	return catalog, nil
}

func buildNetwork(id string, n networkEntry, exchanges []types.Exchange, known map[string]types.Exchange) (*types.Network, []string) {
	var errs []string

	network := &types.Network{
		ID:          id,
		ChainID:     n.ChainID,
		RPCEndpoint: n.RPC,
		Exchanges:   append([]types.Exchange(nil), exchanges...),
		Deployments: make(map[string]types.ExchangeDeployment),
	}
	if n.ChainID == 0 {
		errs = append(errs, "chain_id must be specified")
	}
	if n.Trader != "" {
		addr, err := parseAddress(n.Trader)
		if err != nil {
			errs = append(errs, fmt.Sprintf("trader: %v", err))
		}
		network.Trader = addr
	}

	seen := make(map[common.Address]bool)
	for i, t := range n.BasePairs {
		addr, err := parseAddress(t.Address)
		if err != nil {
			errs = append(errs, fmt.Sprintf("base pair %d: %v", i, err))
			continue
		}
		if seen[addr] {
			errs = append(errs, fmt.Sprintf("duplicate base pair %s", addr.Hex()))
			continue
		}
		seen[addr] = true

		// intermediate hops are converted with these, never looked up
		if t.Decimals == nil || *t.Decimals < 0 {
			errs = append(errs, fmt.Sprintf("base pair %s: decimals must be specified", addr.Hex()))
			continue
		}
		network.BasePairs = append(network.BasePairs, types.Token{
			Address:  addr,
			Name:     t.Name,
			Ticker:   t.Ticker,
			Decimals: *t.Decimals,
		})
	}
	if len(network.BasePairs) == 0 {
		errs = append(errs, "at least one base pair must be specified")
	}

	// sorted for stable error messages
	ids := make([]string, 0, len(n.Deployments))
	for exID := range n.Deployments {
		ids = append(ids, exID)
	}
	sort.Strings(ids)

	for _, exID := range ids {
		ex, ok := known[exID]
		if !ok {
			errs = append(errs, fmt.Sprintf("deployment of unknown exchange %s", exID))
			continue
		}
		d, err := buildDeployment(ex, n.Deployments[exID], network.Trader)
		if err != nil {
			errs = append(errs, fmt.Sprintf("exchange %s: %v", exID, err))
			continue
		}
		network.Deployments[exID] = d
	}

	return network, errs
}

func buildDeployment(ex types.Exchange, e deploymentEntry, trader common.Address) (types.ExchangeDeployment, error) {
	d := types.ExchangeDeployment{
		RouterID:           e.RouterID,
		FeeBasisPoints:     e.FeeBps,
		SwapFeeBasisPoints: DefaultSwapFeeBasisPoints,
	}
	if e.SwapFeeBps != nil {
		d.SwapFeeBasisPoints = *e.SwapFeeBps
	}
	if err := qmath.ValidateBasisPoints(d.FeeBasisPoints); err != nil {
		return d, fmt.Errorf("fee_bps: %w", err)
	}
	if err := qmath.ValidateBasisPoints(d.SwapFeeBasisPoints); err != nil {
		return d, fmt.Errorf("swap_fee_bps: %w", err)
	}

	switch ex.Family {
	case types.ConstantProduct:
		if e.Factory != "" {
			addr, err := parseAddress(e.Factory)
			if err != nil {
				return d, fmt.Errorf("factory: %w", err)
			}
			d.Factory = addr
		} else if trader == (common.Address{}) {
			return d, fmt.Errorf("factory or network trader must be specified")
		}
	case types.ConcentratedLiquidity:
		addr, err := parseAddress(e.Quoter)
		if err != nil {
			return d, fmt.Errorf("quoter: %w", err)
		}
		d.Quoter = addr
		d.FeeTiers = append([]uint32(nil), DefaultFeeTiers...)
		if len(e.FeeTiers) > 0 {
			d.FeeTiers = append([]uint32(nil), e.FeeTiers...)
		}
	}

	return d, nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// Network returns a copy of the network with the given id
func (c *Catalog) Network(id string) (*types.Network, error) {
	n, ok := c.networks[strings.ToLower(id)]
	if !ok {
		return nil, fmt.Errorf("network %q: %w", id, types.ErrUnknownNetwork)
	}
	return cloneNetwork(n), nil
}

// NetworkIDs returns the ids of all networks, sorted
func (c *Catalog) NetworkIDs() []string {
	ids := make([]string, 0, len(c.networks))
	for id := range c.networks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Exchanges returns every exchange known to the catalog in declaration order
func (c *Catalog) Exchanges() []types.Exchange {
	return append([]types.Exchange(nil), c.exchanges...)
}

func cloneNetwork(n *types.Network) *types.Network {
	clone := *n
	clone.BasePairs = append([]types.Token(nil), n.BasePairs...)
	clone.Exchanges = append([]types.Exchange(nil), n.Exchanges...)
	clone.Deployments = make(map[string]types.ExchangeDeployment, len(n.Deployments))
	for id, d := range n.Deployments {
		d.FeeTiers = append([]uint32(nil), d.FeeTiers...)
		clone.Deployments[id] = d
	}
	return &clone
}
