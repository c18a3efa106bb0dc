package types

import "errors"

var (
	// ErrInvalidArgument marks malformed input to a computation or request
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnknownNetwork is returned for a network id missing from the catalog
	ErrUnknownNetwork = errors.New("unknown network")

	ErrTokenLookup   = errors.New("token lookup failed")
	ErrPairLookup    = errors.New("pair lookup failed")
	ErrReserveLookup = errors.New("reserve lookup failed")

	ErrNoLiquidity           = errors.New("no liquidity")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")

	// ErrNoRouteFound means no candidate produced a quote. It is an outcome,
	// not a fault.
	ErrNoRouteFound = errors.New("no route found")
)
