package dex

import (
	"context"
	"fmt"

	"github.com/michaelpento.lv/swapquote/types"
	qmath "github.com/michaelpento.lv/swapquote/utils/math"

	"github.com/ethereum/go-ethereum/common"
)

// ReserveOracle answers pair and reserve questions for one constant product
// exchange, identified by its factory
type ReserveOracle struct {
	factory  common.Address
	pairs    PairLookup
	reserves ReserveLookup
}

func NewReserveOracle(factory common.Address, pairs PairLookup, reserves ReserveLookup) *ReserveOracle {
	return &ReserveOracle{
		factory:  factory,
		pairs:    pairs,
		reserves: reserves,
	}
}

// Factory returns the factory address the oracle queries
func (o *ReserveOracle) Factory() common.Address {
	return o.factory
}

// PairExists reports whether the factory has a pair for a and b
func (o *ReserveOracle) PairExists(ctx context.Context, a, b types.Token) (bool, error) {
	_, ok, err := o.pairs.GetPair(ctx, o.factory, a.Address, b.Address)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Reserves returns the reserves of the (from, to) pair ordered from -> to and
// converted to token units. A missing pair, or one whose token0 matches
// neither token, yields a snapshot with Found unset.
func (o *ReserveOracle) Reserves(ctx context.Context, from, to types.Token) (types.ReserveSnapshot, error) {
	pair, ok, err := o.pairs.GetPair(ctx, o.factory, to.Address, from.Address)
	if err != nil {
		return types.ReserveSnapshot{}, err
	}
	if !ok {
		return types.ReserveSnapshot{}, nil
	}

	r, err := o.reserves.GetReserves(ctx, pair)
	if err != nil {
		return types.ReserveSnapshot{}, err
	}
	if r == nil || r.Reserve0 == nil || r.Reserve1 == nil {
		return types.ReserveSnapshot{}, fmt.Errorf("empty reserves for pair %s: %w", pair.Hex(), types.ErrReserveLookup)
	}

	switch r.Token0 {
	case from.Address:
		return types.ReserveSnapshot{
			Found:       true,
			FromReserve: qmath.FromAtomicUnits(r.Reserve0, from.Decimals),
			ToReserve:   qmath.FromAtomicUnits(r.Reserve1, to.Decimals),
		}, nil
	case to.Address:
		return types.ReserveSnapshot{
			Found:       true,
			FromReserve: qmath.FromAtomicUnits(r.Reserve1, from.Decimals),
			ToReserve:   qmath.FromAtomicUnits(r.Reserve0, to.Decimals),
		}, nil
	default:
		return types.ReserveSnapshot{}, nil
	}
}
