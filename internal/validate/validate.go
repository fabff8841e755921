// Package validate holds the pure input checks run before any network call.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/atmx/lending-gateway/internal/aave"
	"github.com/atmx/lending-gateway/internal/model"
)

// maxIntegerDigits is the decimal length of 2^256-1; a larger whole part
// cannot be a token amount at any precision.
const maxIntegerDigits = 78

// ErrInvalid is the sentinel every ValidationError unwraps to.
var ErrInvalid = errors.New("validate: invalid operation")

// ValidationError names the offending field and the rule it broke.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

var hexAddress = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Address accepts an all-lowercase or all-uppercase hex address, or a
// mixed-case one whose EIP-55 checksum is correct. The same rule applies
// to every operation.
func Address(field, s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return common.Address{}, &ValidationError{Field: field, Reason: "is required"}
	}
	if !hexAddress.MatchString(s) {
		return common.Address{}, &ValidationError{Field: field, Reason: "must be a 0x-prefixed 20-byte hex address"}
	}
	addr := common.HexToAddress(s)
	body := s[2:]
	mixed := strings.ToLower(body) != body && strings.ToUpper(body) != body
	if mixed && addr.Hex() != s {
		return common.Address{}, &ValidationError{Field: field, Reason: "has an invalid EIP-55 checksum"}
	}
	return addr, nil
}

// Amount requires a finite decimal number greater than zero whose whole
// part fits in uint256. When allowRepayAll is set the literal "-1" is also
// accepted.
func Amount(amount string, allowRepayAll bool) error {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return &ValidationError{Field: "amount", Reason: "is required"}
	}
	if allowRepayAll && amount == model.RepayAll {
		return nil
	}
	if len(amount) > aave.MaxAmountLength {
		return &ValidationError{Field: "amount", Reason: fmt.Sprintf("must be at most %d characters", aave.MaxAmountLength)}
	}
	d, err := decimal.NewFromString(amount)
	if err != nil || !d.IsPositive() {
		reason := "must be a number greater than zero"
		if allowRepayAll {
			reason += ` or "-1" to repay the full debt`
		}
		return &ValidationError{Field: "amount", Reason: reason}
	}
	if int64(len(d.Coefficient().String()))+int64(d.Exponent()) > maxIntegerDigits {
		return &ValidationError{Field: "amount", Reason: "is too large"}
	}
	return nil
}

// Operation checks a raw request for the given kind and returns the typed
// operation.
func Operation(kind model.Kind, req model.OperationRequest) (model.Operation, error) {
	if err := Amount(req.Amount, kind == model.KindRepay); err != nil {
		return model.Operation{}, err
	}
	asset, err := Address("assetAddress", req.AssetAddress)
	if err != nil {
		return model.Operation{}, err
	}
	user, err := Address("userAddress", req.UserAddress)
	if err != nil {
		return model.Operation{}, err
	}
	return model.Operation{
		Kind:    kind,
		Amount:  strings.TrimSpace(req.Amount),
		Asset:   asset,
		User:    user,
		ChainID: req.ChainID,
	}, nil
}
