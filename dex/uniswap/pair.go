package uniswap

import (
	"context"
	"fmt"
	"math/big"

	"github.com/michaelpento.lv/swapquote/dex"
	"github.com/michaelpento.lv/swapquote/types"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// PairReader reads Uniswap V2 pair contracts
type PairReader struct {
	caller bind.ContractCaller
}

var _ dex.ReserveLookup = (*PairReader)(nil)

// NewPairReader creates a new PairReader instance
func NewPairReader(caller bind.ContractCaller) *PairReader {
	return &PairReader{caller: caller}
}

func (p *PairReader) contract(pair common.Address) *bind.BoundContract {
	return bind.NewBoundContract(pair, PairABI, p.caller, nil, nil)
}

// GetReserves returns the current reserves of the pair with its token order
func (p *PairReader) GetReserves(ctx context.Context, pair common.Address) (*dex.PairReserves, error) {
	contract := p.contract(pair)
	opts := &bind.CallOpts{Context: ctx}

	var out []interface{}
	if err := contract.Call(opts, &out, "getReserves"); err != nil {
		return nil, fmt.Errorf("failed to get reserves of %s: %v: %w", pair.Hex(), err, types.ErrReserveLookup)
	}
	if len(out) < 2 {
		return nil, fmt.Errorf("short getReserves result from %s: %w", pair.Hex(), types.ErrReserveLookup)
	}

	reserve0, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("failed to parse reserve0: %w", types.ErrReserveLookup)
	}
	reserve1, ok := out[1].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("failed to parse reserve1: %w", types.ErrReserveLookup)
	}

	token0, err := p.token(ctx, contract, "token0")
	if err != nil {
		return nil, err
	}
	token1, err := p.token(ctx, contract, "token1")
	if err != nil {
		return nil, err
	}

	return &dex.PairReserves{
		Reserve0: reserve0,
		Reserve1: reserve1,
		Token0:   token0,
		Token1:   token1,
	}, nil
}

func (p *PairReader) token(ctx context.Context, contract *bind.BoundContract, method string) (common.Address, error) {
	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, method); err != nil {
		return common.Address{}, fmt.Errorf("failed to get %s: %v: %w", method, err, types.ErrReserveLookup)
	}
	if len(out) == 0 {
		return common.Address{}, fmt.Errorf("empty %s result: %w", method, types.ErrReserveLookup)
	}

	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("failed to parse %s address: %w", method, types.ErrReserveLookup)
	}
	return addr, nil
}
