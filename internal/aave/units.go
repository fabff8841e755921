package aave

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/shopspring/decimal"
)

// MaxAmountLength bounds the textual amount accepted for scaling.
const MaxAmountLength = 100

// maxUint256Digits is the decimal length of 2^256-1.
const maxUint256Digits = 78

var (
	ErrInvalidAmount  = errors.New("aave: amount must be a positive decimal number")
	ErrTooPrecise     = errors.New("aave: amount has more fractional digits than the asset supports")
	ErrAmountOverflow = errors.New("aave: amount does not fit in uint256")
)

// ToBaseUnits scales a decimal amount string into the asset's smallest
// integer unit. Amounts finer than the asset's precision are rejected
// rather than silently truncated, and results above 2^256-1 are rejected.
func ToBaseUnits(amount string, decimals int32) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if len(amount) > MaxAmountLength {
		return nil, fmt.Errorf("%w: longer than %d characters", ErrInvalidAmount, MaxAmountLength)
	}
	d, err := decimal.NewFromString(amount)
	if err != nil || !d.IsPositive() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}

	// Exponent bounds are checked before Shift materializes the value.
	digits := int64(len(d.Coefficient().String()))
	exp := int64(d.Exponent()) + int64(decimals)
	if exp < -digits {
		return nil, fmt.Errorf("%w: %s (max %d)", ErrTooPrecise, amount, decimals)
	}
	if digits+exp > maxUint256Digits {
		return nil, fmt.Errorf("%w: %s", ErrAmountOverflow, amount)
	}

	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("%w: %s (max %d)", ErrTooPrecise, amount, decimals)
	}
	v := scaled.BigInt()
	if v.Sign() <= 0 || v.Cmp(math.MaxBig256) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrAmountOverflow, amount)
	}
	return v, nil
}

// FormatUnits renders a fixed-point integer as a decimal string without
// trailing zeros, e.g. FormatUnits(150000000, 8) == "1.5".
func FormatUnits(v *big.Int, decimals int32) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -decimals).String()
}

// AssetLimitUnits converts borrowing power in the base currency into token
// base units: availableBase * 10^decimals / price. Zero when price is zero.
func AssetLimitUnits(availableBase, price *big.Int, decimals int32) *big.Int {
	if availableBase == nil || price == nil || price.Sign() == 0 {
		return new(big.Int)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	out := new(big.Int).Mul(availableBase, scale)
	return out.Quo(out, price)
}

// AssetLimit is AssetLimitUnits formatted in the token's own precision.
func AssetLimit(availableBase, price *big.Int, decimals int32) string {
	if price == nil || price.Sign() == 0 {
		return "0"
	}
	return FormatUnits(AssetLimitUnits(availableBase, price, decimals), decimals)
}
