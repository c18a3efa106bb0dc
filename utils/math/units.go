package math

import (
	"fmt"
	"math/big"

	"github.com/michaelpento.lv/swapquote/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// DefaultDecimals is used when a token's precision is unknown
const DefaultDecimals = 18

// UnknownDecimals marks a token whose decimals could not be determined
const UnknownDecimals = -1

// PriceImpactDigits is the number of fractional digits reported for price impact
const PriceImpactDigits = 3

// NormalizeDecimals maps unknown (negative) precision to DefaultDecimals
func NormalizeDecimals(decimals int) int32 {
	if decimals < 0 {
		return DefaultDecimals
	}
	return int32(decimals)
}

// ToAtomicUnits converts a token amount into its integer atomic amount.
// The result is floored, never rounded up.
func ToAtomicUnits(amount decimal.Decimal, decimals int) (string, error) {
	atomic, err := toAtomic(amount, decimals)
	if err != nil {
		return "", err
	}
	return atomic.String(), nil
}

// ToAtomicBig is ToAtomicUnits returning the integer itself
func ToAtomicBig(amount decimal.Decimal, decimals int) (*big.Int, error) {
	return toAtomic(amount, decimals)
}

// ToAtomicHex returns the atomic amount as a 32 byte word in hex, zero padded
// to 64 characters and without 0x prefix
func ToAtomicHex(amount decimal.Decimal, decimals int) (string, error) {
	atomic, err := toAtomic(amount, decimals)
	if err != nil {
		return "", err
	}

	word, overflow := uint256.FromBig(atomic)
	if overflow {
		return "", fmt.Errorf("amount %s overflows uint256: %w", atomic, types.ErrInvalidArgument)
	}

	b := word.Bytes32()
	return common.Bytes2Hex(b[:]), nil
}

func toAtomic(amount decimal.Decimal, decimals int) (*big.Int, error) {
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %s: %w", amount, types.ErrInvalidArgument)
	}
	return amount.Shift(NormalizeDecimals(decimals)).Floor().BigInt(), nil
}

// FromAtomicUnits converts an atomic amount into token units
func FromAtomicUnits(raw *big.Int, decimals int) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -NormalizeDecimals(decimals))
}

// FromAtomicString parses a base 10 atomic amount and converts it into token units
func FromAtomicString(raw string, decimals int) (decimal.Decimal, error) {
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return decimal.Zero, fmt.Errorf("invalid atomic amount %q: %w", raw, types.ErrInvalidArgument)
	}
	return FromAtomicUnits(v, decimals), nil
}

// Truncate formats value with exactly digits fractional digits. Extra digits
// are dropped and missing ones padded with zeros.
func Truncate(value decimal.Decimal, digits int) string {
	d := clampDigits(digits)
	return value.Truncate(d).StringFixed(d)
}

// TruncateDecimal drops every fractional digit past digits
func TruncateDecimal(value decimal.Decimal, digits int) decimal.Decimal {
	return value.Truncate(clampDigits(digits))
}

func clampDigits(digits int) int32 {
	if digits < 0 {
		return 0
	}
	return int32(digits)
}
