package math

import (
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/michaelpento.lv/swapquote/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToAtomicUnits(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		decimals int
		want     string
	}{
		{"whole ether", "1", 18, "1000000000000000000"},
		{"usdc", "12.345678", 6, "12345678"},
		{"floors extra digits", "12.3456789", 6, "12345678"},
		{"never rounds up", "0.9999999", 6, "999999"},
		{"zero decimals", "42.9", 0, "42"},
		{"unknown decimals default to 18", "0.5", UnknownDecimals, "500000000000000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToAtomicUnits(decimal.RequireFromString(tt.amount), tt.decimals)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ToAtomicUnits(decimal.NewFromInt(-1), 18)
	assert.True(t, errors.Is(err, types.ErrInvalidArgument))
}

func TestToAtomicHex(t *testing.T) {
	got, err := ToAtomicHex(decimal.NewFromInt(1), 18)
	require.NoError(t, err)
	assert.Len(t, got, 64)
	assert.Equal(t, strings.Repeat("0", 49)+"de0b6b3a7640000", got)

	got, err = ToAtomicHex(decimal.Zero, 6)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("0", 64), got)

	huge := decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), 256), 0)
	_, err = ToAtomicHex(huge, 0)
	assert.True(t, errors.Is(err, types.ErrInvalidArgument))
}

func TestFromAtomicUnits(t *testing.T) {
	v := FromAtomicUnits(big.NewInt(1500000), 6)
	assert.Equal(t, "1.5", v.String())

	v = FromAtomicUnits(big.NewInt(1), UnknownDecimals)
	assert.Equal(t, "0.000000000000000001", v.String())

	assert.True(t, FromAtomicUnits(nil, 18).IsZero())

	v, err := FromAtomicString("123456789", 3)
	require.NoError(t, err)
	assert.Equal(t, "123456.789", v.String())

	_, err = FromAtomicString("12.5", 3)
	assert.True(t, errors.Is(err, types.ErrInvalidArgument))
}

func TestAtomicRoundTrip(t *testing.T) {
	amounts := []string{"0", "1", "0.1", "123.456789012345678", "987654321.000000000000000001", "0.0000001"}
	for _, decimals := range []int{0, 6, 8, 18} {
		for _, a := range amounts {
			d := decimal.RequireFromString(a)

			raw, err := ToAtomicUnits(d, decimals)
			require.NoError(t, err)
			back, err := FromAtomicString(raw, decimals)
			require.NoError(t, err)

			assert.False(t, back.GreaterThan(d), "round trip of %s at %d decimals grew to %s", a, decimals, back)
			assert.Equal(t, Truncate(d, decimals), Truncate(back, decimals))
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		value  string
		digits int
		want   string
	}{
		{"1.23456", 3, "1.234"},
		{"1.2399", 2, "1.23"},
		{"1.5", 4, "1.5000"},
		{"7", 2, "7.00"},
		{"-0.9929", 3, "-0.992"},
		{"3.99", 0, "3"},
		{"0.000000000000000000123", 18, "0.000000000000000000"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Truncate(decimal.RequireFromString(tt.value), tt.digits), "Truncate(%s, %d)", tt.value, tt.digits)
	}

	assert.Equal(t, "1.23", TruncateDecimal(decimal.RequireFromString("1.239"), 2).String())
}
