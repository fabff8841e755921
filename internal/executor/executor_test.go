package executor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/lending-gateway/internal/aave"
	"github.com/atmx/lending-gateway/internal/chain"
	"github.com/atmx/lending-gateway/internal/model"
)

// step scripts one Transact/WaitMined pair.
type step struct {
	sendErr error
	waitErr error
	receipt *types.Receipt
	panics  bool
}

type sentCall struct {
	to     common.Address
	method string
	args   []interface{}
}

// fakeWriter replays steps in order and records every submitted call.
type fakeWriter struct {
	mu    sync.Mutex
	steps []step
	calls []sentCall
	cur   step
}

func (f *fakeWriter) Transact(_ context.Context, to common.Address, _ abi.ABI, method string, args ...interface{}) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sentCall{to: to, method: method, args: args})
	if len(f.steps) == 0 {
		return common.Hash{}, errors.New("no scripted step")
	}
	f.cur, f.steps = f.steps[0], f.steps[1:]
	if f.cur.panics {
		panic("boom")
	}
	if f.cur.sendErr != nil {
		return common.Hash{}, &chain.WriteError{Contract: to, Method: method, Err: f.cur.sendErr}
	}
	return common.BigToHash(big.NewInt(int64(len(f.calls)))), nil
}

func (f *fakeWriter) WaitMined(context.Context, common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cur.receipt, f.cur.waitErr
}

// fakeReader answers decimals() for tokens outside the address book.
type fakeReader struct {
	decimals uint8
	err      error
	calls    int
}

func (f *fakeReader) Call(context.Context, common.Address, abi.ABI, string, ...interface{}) ([]interface{}, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []interface{}{f.decimals}, nil
}

func ok(block int64, gas uint64) step {
	return step{receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(block), GasUsed: gas}}
}

func reverted() step {
	return step{receipt: &types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(9), GasUsed: 21000}}
}

var (
	network = aave.BaseSepolia()
	user    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
)

func asset(t *testing.T, symbol string) common.Address {
	t.Helper()
	a, found := network.AssetBySymbol(symbol)
	require.True(t, found)
	return a.Underlying
}

func newExecutor(w *fakeWriter, r *fakeReader) *Executor {
	if r == nil {
		return New(w, nil, network, nil)
	}
	return New(w, r, network, nil)
}

func op(kind model.Kind, a common.Address, amount string) model.Operation {
	return model.Operation{Kind: kind, Amount: amount, Asset: a, User: user, ChainID: aave.BaseSepoliaChainID}
}

func TestSupply_MapsReceiptToOutcome(t *testing.T) {
	w := &fakeWriter{steps: []step{ok(123, 45000)}}
	out := newExecutor(w, nil).Execute(context.Background(), op(model.KindSupply, asset(t, "WETH"), "1.5"))

	assert.Equal(t, model.StatusSuccess, out.Status)
	assert.Equal(t, "123", out.BlockNumber)
	assert.Equal(t, "45000", out.GasUsed)
	assert.NotEqual(t, noTx, out.TxHash)
	assert.NotEmpty(t, out.Message)

	require.Len(t, w.calls, 1)
	c := w.calls[0]
	assert.Equal(t, "supply", c.method)
	assert.Equal(t, network.Pool, c.to)
	assert.Equal(t, asset(t, "WETH"), c.args[0])
	assert.Equal(t, "1500000000000000000", c.args[1].(*big.Int).String())
	assert.Equal(t, user, c.args[2])
	assert.Equal(t, uint16(0), c.args[3])
}

func TestOutcome_LargeIntegersStayExact(t *testing.T) {
	block, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	w := &fakeWriter{steps: []step{{receipt: &types.Receipt{
		Status: types.ReceiptStatusSuccessful, BlockNumber: block, GasUsed: ^uint64(0),
	}}}}
	out := newExecutor(w, nil).Execute(context.Background(), op(model.KindSupply, asset(t, "WETH"), "1"))

	assert.Equal(t, "123456789012345678901234567890", out.BlockNumber)
	assert.Equal(t, "18446744073709551615", out.GasUsed)
}

func TestBorrow_UsesAssetDecimalsAndVariableMode(t *testing.T) {
	w := &fakeWriter{steps: []step{ok(1, 1)}}
	out := newExecutor(w, nil).Execute(context.Background(), op(model.KindBorrow, asset(t, "USDC"), "2.5"))
	require.Equal(t, model.StatusSuccess, out.Status)

	c := w.calls[0]
	assert.Equal(t, "borrow", c.method)
	assert.Equal(t, "2500000", c.args[1].(*big.Int).String())
	assert.Equal(t, int64(aave.RateModeVariable), c.args[2].(*big.Int).Int64())
	assert.Equal(t, uint16(0), c.args[3])
	assert.Equal(t, user, c.args[4])
}

func TestSupply_UnlistedAssetReadsDecimals(t *testing.T) {
	token := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	r := &fakeReader{decimals: 8}
	w := &fakeWriter{steps: []step{ok(1, 1)}}
	out := newExecutor(w, r).Execute(context.Background(), op(model.KindSupply, token, "1"))

	require.Equal(t, model.StatusSuccess, out.Status)
	assert.Equal(t, 1, r.calls)
	assert.Equal(t, "100000000", w.calls[0].args[1].(*big.Int).String())
}

func TestExecute_NeverFaults(t *testing.T) {
	token := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	cases := []struct {
		name   string
		op     model.Operation
		steps  []step
		reader *fakeReader
	}{
		{"send fails", op(model.KindSupply, asset(t, "WETH"), "1"), []step{{sendErr: errors.New("insufficient funds")}}, nil},
		{"receipt wait fails", op(model.KindBorrow, asset(t, "WETH"), "1"), []step{{waitErr: errors.New("connection reset")}}, nil},
		{"receipt reverted", op(model.KindSupply, asset(t, "USDC"), "1"), []step{reverted()}, nil},
		{"approve send fails", op(model.KindRepay, asset(t, "WETH"), "1"), []step{{sendErr: errors.New("nonce too low")}}, nil},
		{"amount too precise", op(model.KindBorrow, asset(t, "USDC"), "0.0000001"), nil, nil},
		{"decimals read fails", op(model.KindSupply, token, "1"), nil, &fakeReader{err: errors.New("no contract")}},
		{"panic in writer", op(model.KindSupply, asset(t, "WETH"), "1"), []step{{panics: true}}, nil},
		{"unknown kind", op(model.Kind("withdraw"), asset(t, "WETH"), "1"), nil, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := &fakeWriter{steps: tc.steps}
			var out model.Outcome
			require.NotPanics(t, func() {
				out = newExecutor(w, tc.reader).Execute(context.Background(), tc.op)
			})
			assert.Equal(t, model.StatusFailed, out.Status)
			assert.NotEmpty(t, out.Message)
		})
	}
}

func TestExecute_ConfirmationTimeoutIsDistinct(t *testing.T) {
	timeout := fmt.Errorf("%w: not mined", chain.ErrConfirmationTimeout)
	w := &fakeWriter{steps: []step{{waitErr: timeout}}}
	out := newExecutor(w, nil).Execute(context.Background(), op(model.KindBorrow, asset(t, "WETH"), "1"))

	assert.Equal(t, model.StatusTimeout, out.Status)
	assert.NotEqual(t, noTx, out.TxHash)
	assert.False(t, out.Succeeded())
}

func TestRepay_ApprovesRepaidAssetThenVariableMode(t *testing.T) {
	usdc := asset(t, "USDC")
	w := &fakeWriter{steps: []step{ok(1, 1), ok(2, 2)}}
	out := newExecutor(w, nil).Execute(context.Background(), op(model.KindRepay, usdc, "10"))

	require.Equal(t, model.StatusSuccess, out.Status)
	require.Len(t, w.calls, 2)

	approve := w.calls[0]
	assert.Equal(t, "approve", approve.method)
	assert.Equal(t, usdc, approve.to)
	assert.Equal(t, network.Pool, approve.args[0])
	assert.Equal(t, "10000000", approve.args[1].(*big.Int).String())

	repay := w.calls[1]
	assert.Equal(t, "repay", repay.method)
	assert.Equal(t, int64(2), repay.args[2].(*big.Int).Int64())
	assert.Contains(t, out.Message, "interestRateMode=2")
}

func TestRepay_FallsBackToStableExactlyOnce(t *testing.T) {
	w := &fakeWriter{steps: []step{ok(1, 1), reverted(), ok(3, 3)}}
	out := newExecutor(w, nil).Execute(context.Background(), op(model.KindRepay, asset(t, "WETH"), "1"))

	require.Equal(t, model.StatusSuccess, out.Status)
	require.Len(t, w.calls, 3)
	assert.Equal(t, int64(2), w.calls[1].args[2].(*big.Int).Int64())
	assert.Equal(t, int64(1), w.calls[2].args[2].(*big.Int).Int64())
	assert.Equal(t, "3", out.BlockNumber)
}

func TestRepay_BothModesFailNamesBoth(t *testing.T) {
	w := &fakeWriter{steps: []step{ok(1, 1), reverted(), {sendErr: errors.New("execution reverted")}}}
	out := newExecutor(w, nil).Execute(context.Background(), op(model.KindRepay, asset(t, "WETH"), "1"))

	assert.Equal(t, model.StatusFailed, out.Status)
	assert.Len(t, w.calls, 3, "approve plus exactly two repay attempts")
	assert.True(t, strings.Contains(out.Message, "interestRateMode=2"))
	assert.True(t, strings.Contains(out.Message, "interestRateMode=1"))
}

func TestRepay_TimeoutDoesNotRetry(t *testing.T) {
	timeout := fmt.Errorf("%w: not mined", chain.ErrConfirmationTimeout)
	w := &fakeWriter{steps: []step{ok(1, 1), {waitErr: timeout}}}
	out := newExecutor(w, nil).Execute(context.Background(), op(model.KindRepay, asset(t, "WETH"), "1"))

	assert.Equal(t, model.StatusTimeout, out.Status)
	assert.Len(t, w.calls, 2)
}

func TestRepay_FailedApprovalStops(t *testing.T) {
	w := &fakeWriter{steps: []step{reverted()}}
	out := newExecutor(w, nil).Execute(context.Background(), op(model.KindRepay, asset(t, "WETH"), "1"))

	assert.Equal(t, model.StatusFailed, out.Status)
	assert.Len(t, w.calls, 1)
	assert.True(t, strings.HasPrefix(out.Message, "approve: "))
}

func TestRepay_AllUsesMaxAmount(t *testing.T) {
	r := &fakeReader{decimals: 18}
	w := &fakeWriter{steps: []step{ok(1, 1), ok(2, 2)}}
	out := newExecutor(w, r).Execute(context.Background(), op(model.KindRepay, asset(t, "WETH"), model.RepayAll))

	require.Equal(t, model.StatusSuccess, out.Status)
	assert.Zero(t, r.calls)
	assert.Equal(t, 0, math.MaxBig256.Cmp(w.calls[0].args[1].(*big.Int)))
	assert.Equal(t, 0, math.MaxBig256.Cmp(w.calls[1].args[1].(*big.Int)))
}

func TestExecute_AmountBeyondUint256IsNeverSent(t *testing.T) {
	for _, kind := range []model.Kind{model.KindSupply, model.KindBorrow, model.KindRepay} {
		w := &fakeWriter{steps: []step{ok(1, 1), ok(2, 1)}}
		out := newExecutor(w, nil).Execute(context.Background(), op(kind, asset(t, "WETH"), "1e60"))

		assert.Equal(t, model.StatusFailed, out.Status, kind)
		assert.Equal(t, noTx, out.TxHash, kind)
		assert.Contains(t, out.Message, aave.ErrAmountOverflow.Error(), kind)
		assert.Empty(t, w.calls, kind)
	}
}
