// Package model defines the core domain types shared across the lending
// gateway. Chain integers crossing the HTTP boundary are decimal strings,
// never float64.
package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Kind names a write operation against the lending pool.
type Kind string

const (
	KindSupply Kind = "supply"
	KindBorrow Kind = "borrow"
	KindRepay  Kind = "repay"
)

// Outcome statuses. Status is derived from the mined receipt, never from
// submission alone.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusTimeout = "timeout" // submitted, receipt not seen before the deadline
)

// RepayAll is the amount sentinel that repays the entire debt.
const RepayAll = "-1"

// OperationRequest is the raw user intent as received at the boundary.
type OperationRequest struct {
	Amount       string `json:"amount"`
	AssetAddress string `json:"assetAddress"` // 0x address or symbol (USDC, USDC.BASE-SEPOLIA)
	UserAddress  string `json:"userAddress"`
	ChainID      int64  `json:"chainId"`
}

// Operation is a validated request ready for an executor.
type Operation struct {
	Kind    Kind
	Amount  string
	Asset   common.Address
	User    common.Address
	ChainID int64
}

// Outcome is the normalized result of one submitted write.
type Outcome struct {
	TxHash      string `json:"txHash"`
	Status      string `json:"status"`
	BlockNumber string `json:"blockNumber"`
	GasUsed     string `json:"gasUsed"`
	Message     string `json:"message"`
}

// Succeeded reports whether the transaction was mined successfully.
func (o Outcome) Succeeded() bool { return o.Status == StatusSuccess }

// AccountPosition is a user's aggregate standing in one lending pool.
// USD fields carry 8 fractional digits on-chain, the health factor 18.
type AccountPosition struct {
	User                 string `json:"userAddress"`
	HasPosition          bool   `json:"hasPosition"`
	TotalCollateralUSD   string `json:"totalCollateralUSD"`
	TotalDebtUSD         string `json:"totalDebtUSD"`
	AvailableBorrowsUSD  string `json:"availableBorrowsUSD"`
	LiquidationThreshold string `json:"liquidationThreshold"` // percent
	LTV                  string `json:"ltv"`                  // percent
	HealthFactor         string `json:"healthFactor"`
}

// CollateralInfo is the supply-side view of a position.
type CollateralInfo struct {
	HasCollateral       bool   `json:"hasCollateral"`
	TotalCollateralUSD  string `json:"totalCollateralUSD"`
	AvailableBorrowsUSD string `json:"availableBorrowsUSD"`
	HealthFactor        string `json:"healthFactor"`
}

// DebtInfo is the repay-side view of a position.
type DebtInfo struct {
	HasDebt      bool   `json:"hasDebt"`
	TotalDebtUSD string `json:"totalDebtUSD"`
	HealthFactor string `json:"healthFactor"`
}

// AssetLimit translates available borrowing power into one token's quantity.
type AssetLimit struct {
	Symbol   string `json:"symbol"`
	Token    string `json:"tokenAddress"`
	Decimals int32  `json:"decimals"`
	Amount   string `json:"amount"`
}

// BorrowLimits is an account position plus per-asset borrowable quantities.
type BorrowLimits struct {
	HasCollateral       bool         `json:"hasCollateral"`
	TotalCollateralUSD  string       `json:"totalCollateralUSD"`
	TotalDebtUSD        string       `json:"totalDebtUSD"`
	AvailableBorrowsUSD string       `json:"availableBorrowsUSD"`
	HealthFactor        string       `json:"healthFactor"`
	AssetLimits         []AssetLimit `json:"assetLimits"`
}

// JournalEntry is an immutable record of one executed operation.
// Once created, entries are never modified or deleted.
type JournalEntry struct {
	ID          string    `json:"id" db:"id"`
	Kind        Kind      `json:"kind" db:"kind"`
	ChainID     int64     `json:"chainId" db:"chain_id"`
	Asset       string    `json:"assetAddress" db:"asset"`
	User        string    `json:"userAddress" db:"user_address"`
	Amount      string    `json:"amount" db:"amount"`
	TxHash      string    `json:"txHash" db:"tx_hash"`
	Status      string    `json:"status" db:"status"`
	BlockNumber string    `json:"blockNumber" db:"block_number"`
	GasUsed     string    `json:"gasUsed" db:"gas_used"`
	Message     string    `json:"message" db:"message"`
	Timestamp   time.Time `json:"timestamp" db:"timestamp"`
}
