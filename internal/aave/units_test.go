package aave

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bi(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad int " + s)
	}
	return v
}

func TestToBaseUnits(t *testing.T) {
	tests := []struct {
		amount   string
		decimals int32
		want     string
	}{
		{"1", 18, "1000000000000000000"},
		{"0.5", 18, "500000000000000000"},
		{"1.5", 6, "1500000"},
		{"100", 6, "100000000"},
		{"0.000001", 6, "1"},
		{" 2 ", 6, "2000000"},
		{"1e2", 6, "100000000"},
	}
	for _, tt := range tests {
		got, err := ToBaseUnits(tt.amount, tt.decimals)
		require.NoError(t, err, tt.amount)
		assert.Equal(t, tt.want, got.String(), "%s @ %d", tt.amount, tt.decimals)
	}
}

func TestToBaseUnits_SixDecimalAssetIsNotScaledBy18(t *testing.T) {
	got, err := ToBaseUnits("10", 6)
	require.NoError(t, err)
	assert.Equal(t, "10000000", got.String())
	assert.NotEqual(t, "10000000000000000000", got.String())
}

func TestToBaseUnits_Rejects(t *testing.T) {
	for _, amount := range []string{"", "0", "-1", "-0.5", "abc", "NaN", "Infinity", "1.2.3"} {
		_, err := ToBaseUnits(amount, 18)
		assert.ErrorIs(t, err, ErrInvalidAmount, amount)
	}

	_, err := ToBaseUnits("0.0000001", 6)
	assert.ErrorIs(t, err, ErrTooPrecise)
}

func TestToBaseUnits_RejectsBeyondUint256(t *testing.T) {
	maxUint := "115792089237316195423570985008687907853269984665640564039457584007913129639935"

	got, err := ToBaseUnits(maxUint, 0)
	require.NoError(t, err)
	assert.Equal(t, maxUint, got.String())

	got, err = ToBaseUnits("115792089237316195423570985008687907853269984665640564039457.584007913129639935", 18)
	require.NoError(t, err)
	assert.Equal(t, maxUint, got.String())

	for _, tc := range []struct {
		amount   string
		decimals int32
	}{
		{"115792089237316195423570985008687907853269984665640564039457584007913129639936", 0},
		{"115792089237316195423570985008687907853269984665640564039457.584007913129639936", 18},
		{"1e60", 18},
		{"1e78", 0},
		{"1e400000000", 18},
	} {
		_, err := ToBaseUnits(tc.amount, tc.decimals)
		assert.ErrorIs(t, err, ErrAmountOverflow, "%s @ %d", tc.amount, tc.decimals)
	}
}

func TestToBaseUnits_HugeNegativeExponentIsTooPrecise(t *testing.T) {
	_, err := ToBaseUnits("1e-400000000", 18)
	assert.ErrorIs(t, err, ErrTooPrecise)

	got, err := ToBaseUnits("1000e-21", 18)
	require.NoError(t, err)
	assert.Equal(t, "1", got.String())
}

func TestToBaseUnits_RejectsOverlongInput(t *testing.T) {
	_, err := ToBaseUnits("1"+strings.Repeat("0", MaxAmountLength), 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestFormatUnits(t *testing.T) {
	assert.Equal(t, "0", FormatUnits(nil, 8))
	assert.Equal(t, "0", FormatUnits(big.NewInt(0), 8))
	assert.Equal(t, "1", FormatUnits(big.NewInt(100000000), 8))
	assert.Equal(t, "1.5", FormatUnits(big.NewInt(150000000), 8))
	assert.Equal(t, "0.00000001", FormatUnits(big.NewInt(1), 8))
	assert.Equal(t, "1.25", FormatUnits(bi("1250000000000000000"), 18))
}

func TestAssetLimit_ZeroPrice(t *testing.T) {
	for _, decimals := range []int32{0, 6, 8, 18} {
		assert.Equal(t, "0", AssetLimit(big.NewInt(123456789), big.NewInt(0), decimals))
		assert.Equal(t, "0", AssetLimitUnits(big.NewInt(123456789), big.NewInt(0), decimals).String())
	}
}

func TestAssetLimit_OneDollarAtOneDollarSixDecimals(t *testing.T) {
	units := AssetLimitUnits(big.NewInt(100000000), big.NewInt(100000000), 6)
	assert.Equal(t, "1000000", units.String())
	assert.Equal(t, "1", AssetLimit(big.NewInt(100000000), big.NewInt(100000000), 6))
}

func TestAssetLimit_WethAtTwoThousand(t *testing.T) {
	// $1000 of borrowing power at $2000/WETH is 0.5 WETH.
	got := AssetLimit(big.NewInt(1000_00000000), big.NewInt(2000_00000000), 18)
	assert.Equal(t, "0.5", got)
}

func TestAssetLimit_NoPrecisionLossBeyondInt64(t *testing.T) {
	available := bi("123456789012345678901234567890")
	got := AssetLimitUnits(available, big.NewInt(1), 0)
	assert.Equal(t, "123456789012345678901234567890", got.String())
}
