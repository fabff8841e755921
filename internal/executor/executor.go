// Package executor turns validated operations into signed lending pool
// transactions and maps their receipts to outcomes.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/atmx/lending-gateway/internal/aave"
	"github.com/atmx/lending-gateway/internal/chain"
	"github.com/atmx/lending-gateway/internal/metrics"
	"github.com/atmx/lending-gateway/internal/model"
)

// noTx fills the hash of an outcome whose transaction was never sent.
const noTx = "0x0"

// Executor runs supply, borrow and repay against one network's pool.
// Execute never returns an error: every failure becomes an outcome.
type Executor struct {
	writer  chain.Writer
	reader  chain.Reader
	network aave.Network
	logger  *slog.Logger
}

// New creates an executor. reader resolves decimals for assets missing
// from the network's address book.
func New(writer chain.Writer, reader chain.Reader, network aave.Network, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		writer:  writer,
		reader:  reader,
		network: network,
		logger:  logger.With("component", "executor", "network", network.Name),
	}
}

// Network is the network this executor submits to.
func (e *Executor) Network() aave.Network { return e.network }

// Execute dispatches op by kind.
func (e *Executor) Execute(ctx context.Context, op model.Operation) (out model.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("executor panic", "kind", op.Kind, "panic", r)
			out = failed(fmt.Errorf("internal error: %v", r))
		}
	}()

	switch op.Kind {
	case model.KindSupply:
		return e.Supply(ctx, op)
	case model.KindBorrow:
		return e.Borrow(ctx, op)
	case model.KindRepay:
		return e.Repay(ctx, op)
	default:
		return failed(fmt.Errorf("unknown operation kind %q", op.Kind))
	}
}

// Supply deposits op.Amount of op.Asset on behalf of op.User.
func (e *Executor) Supply(ctx context.Context, op model.Operation) model.Outcome {
	amount, err := e.baseUnits(ctx, op.Asset, op.Amount)
	if err != nil {
		return failed(err)
	}
	out := e.submit(ctx, call{
		to:       e.network.Pool,
		contract: aave.PoolABI,
		method:   "supply",
		args:     []interface{}{op.Asset, amount, op.User, uint16(0)},
	})
	if out.Succeeded() {
		out.Message = fmt.Sprintf("Supplied %s of %s to the pool", op.Amount, e.label(op.Asset))
	}
	return out
}

// Borrow draws op.Amount of op.Asset at the variable rate, with op.User
// carrying the debt.
func (e *Executor) Borrow(ctx context.Context, op model.Operation) model.Outcome {
	amount, err := e.baseUnits(ctx, op.Asset, op.Amount)
	if err != nil {
		return failed(err)
	}
	out := e.submit(ctx, call{
		to:       e.network.Pool,
		contract: aave.PoolABI,
		method:   "borrow",
		args:     []interface{}{op.Asset, amount, big.NewInt(aave.RateModeVariable), uint16(0), op.User},
	})
	if out.Succeeded() {
		out.Message = fmt.Sprintf("Borrowed %s of %s at the variable rate", op.Amount, e.label(op.Asset))
	}
	return out
}

// Repay approves the pool to pull the asset, then repays with the variable
// rate mode and, if that fails, once more with the stable mode. A
// confirmation timeout ends the sequence without a retry.
func (e *Executor) Repay(ctx context.Context, op model.Operation) model.Outcome {
	var amount *big.Int
	if op.Amount == model.RepayAll {
		amount = new(big.Int).Set(math.MaxBig256)
	} else {
		var err error
		if amount, err = e.baseUnits(ctx, op.Asset, op.Amount); err != nil {
			return failed(err)
		}
	}

	approval := e.submit(ctx, call{
		to:       op.Asset,
		contract: aave.ERC20ABI,
		method:   "approve",
		args:     []interface{}{e.network.Pool, amount},
	})
	if !approval.Succeeded() {
		approval.Message = "approve: " + approval.Message
		return approval
	}

	var last model.Outcome
	for _, mode := range []int64{aave.RateModeVariable, aave.RateModeStable} {
		last = e.submit(ctx, call{
			to:       e.network.Pool,
			contract: aave.PoolABI,
			method:   "repay",
			args:     []interface{}{op.Asset, amount, big.NewInt(mode), op.User},
		})
		switch last.Status {
		case model.StatusSuccess:
			last.Message = fmt.Sprintf("Repaid %s of %s (interestRateMode=%d)", op.Amount, e.label(op.Asset), mode)
			return last
		case model.StatusTimeout:
			return last
		}
		e.logger.Warn("repay attempt failed", "mode", mode, "tx", last.TxHash, "reason", last.Message)
		if mode == aave.RateModeVariable {
			metrics.RepayFallbacks.Inc()
		}
	}

	last.Message = fmt.Sprintf("repay failed with interestRateMode=2 (variable) and interestRateMode=1 (stable): %s", last.Message)
	return last
}

// call is one contract write.
type call struct {
	to       common.Address
	contract abi.ABI
	method   string
	args     []interface{}
}

// submit sends c and waits for its receipt. It is the single place where
// receipts become outcomes.
func (e *Executor) submit(ctx context.Context, c call) model.Outcome {
	hash, err := e.writer.Transact(ctx, c.to, c.contract, c.method, c.args...)
	if err != nil {
		return failed(err)
	}

	receipt, err := e.writer.WaitMined(ctx, hash)
	if err != nil {
		out := failed(err)
		out.TxHash = hash.Hex()
		if errors.Is(err, chain.ErrConfirmationTimeout) {
			out.Status = model.StatusTimeout
		}
		return out
	}
	return fromReceipt(hash, c.method, receipt)
}

func fromReceipt(hash common.Hash, method string, r *types.Receipt) model.Outcome {
	out := model.Outcome{
		TxHash:      hash.Hex(),
		BlockNumber: "0",
		GasUsed:     new(big.Int).SetUint64(r.GasUsed).String(),
	}
	if r.BlockNumber != nil {
		out.BlockNumber = r.BlockNumber.String()
	}
	if r.Status == types.ReceiptStatusSuccessful {
		out.Status = model.StatusSuccess
		out.Message = method + " confirmed"
		return out
	}
	out.Status = model.StatusFailed
	out.Message = fmt.Sprintf("%s: %v", method, chain.ErrReverted)
	return out
}

func failed(err error) model.Outcome {
	msg := "unknown error"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return model.Outcome{
		TxHash:      noTx,
		Status:      model.StatusFailed,
		BlockNumber: "0",
		GasUsed:     "0",
		Message:     msg,
	}
}

// label is the asset symbol when known, else its address.
func (e *Executor) label(asset common.Address) string {
	if a, ok := e.network.AssetByAddress(asset); ok {
		return a.Symbol
	}
	return asset.Hex()
}
