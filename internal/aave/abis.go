// Package aave holds the Aave V3 contract ABIs, the per-network address book
// and the fixed-point unit conversions used by the gateway.
package aave

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Interest rate modes accepted by Pool.borrow and Pool.repay.
const (
	RateModeStable   int64 = 1
	RateModeVariable int64 = 2
)

// Fixed-point precision of Pool.getUserAccountData fields.
const (
	BaseCurrencyDecimals int32 = 8
	HealthFactorDecimals int32 = 18
	// ltv and liquidation threshold are basis points.
	PercentDecimals int32 = 2
)

const poolABIJSON = `[
  {"name":"supply","type":"function","stateMutability":"nonpayable","inputs":[
    {"name":"asset","type":"address"},
    {"name":"amount","type":"uint256"},
    {"name":"onBehalfOf","type":"address"},
    {"name":"referralCode","type":"uint16"}],"outputs":[]},
  {"name":"borrow","type":"function","stateMutability":"nonpayable","inputs":[
    {"name":"asset","type":"address"},
    {"name":"amount","type":"uint256"},
    {"name":"interestRateMode","type":"uint256"},
    {"name":"referralCode","type":"uint16"},
    {"name":"onBehalfOf","type":"address"}],"outputs":[]},
  {"name":"repay","type":"function","stateMutability":"nonpayable","inputs":[
    {"name":"asset","type":"address"},
    {"name":"amount","type":"uint256"},
    {"name":"interestRateMode","type":"uint256"},
    {"name":"onBehalfOf","type":"address"}],"outputs":[
    {"name":"","type":"uint256"}]},
  {"name":"getUserAccountData","type":"function","stateMutability":"view","inputs":[
    {"name":"user","type":"address"}],"outputs":[
    {"name":"totalCollateralBase","type":"uint256"},
    {"name":"totalDebtBase","type":"uint256"},
    {"name":"availableBorrowsBase","type":"uint256"},
    {"name":"currentLiquidationThreshold","type":"uint256"},
    {"name":"ltv","type":"uint256"},
    {"name":"healthFactor","type":"uint256"}]}
]`

const oracleABIJSON = `[
  {"name":"getAssetPrice","type":"function","stateMutability":"view","inputs":[
    {"name":"asset","type":"address"}],"outputs":[
    {"name":"","type":"uint256"}]}
]`

const erc20ABIJSON = `[
  {"name":"approve","type":"function","stateMutability":"nonpayable","inputs":[
    {"name":"spender","type":"address"},
    {"name":"amount","type":"uint256"}],"outputs":[
    {"name":"","type":"bool"}]},
  {"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[
    {"name":"","type":"uint8"}]}
]`

var (
	PoolABI   = mustParseABI("Pool", poolABIJSON)
	OracleABI = mustParseABI("AaveOracle", oracleABIJSON)
	ERC20ABI  = mustParseABI("ERC20", erc20ABIJSON)
)

func mustParseABI(name, raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("aave: parse %s ABI: %v", name, err))
	}
	return parsed
}
