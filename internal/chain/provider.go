// Package chain provides the process-wide EVM client set: view calls, signed
// writes from the server key, and time-boxed receipt confirmation.
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/atmx/lending-gateway/internal/metrics"
)

// Client is the subset of the Ethereum JSON-RPC used by the provider.
// *ethclient.Client satisfies it.
type Client interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Reader issues view calls.
type Reader interface {
	Call(ctx context.Context, to common.Address, contract abi.ABI, method string, args ...interface{}) ([]interface{}, error)
}

// Writer submits signed transactions and waits for their receipts.
type Writer interface {
	Transact(ctx context.Context, to common.Address, contract abi.ABI, method string, args ...interface{}) (common.Hash, error)
	WaitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Options tune receipt confirmation.
type Options struct {
	PollInterval   time.Duration
	ConfirmTimeout time.Duration
	Logger         *slog.Logger
}

func (o *Options) defaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = 2 * time.Second
	}
	if o.ConfirmTimeout <= 0 {
		o.ConfirmTimeout = 90 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Provider holds one RPC connection and the server signing key. It is safe
// for concurrent use; writes are serialized around nonce assignment.
type Provider struct {
	client  Client
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int
	signer  types.Signer
	opts    Options
	logger  *slog.Logger

	mu sync.Mutex
}

// Dial connects to rpcURL and binds the provider to privateKeyHex. The
// endpoint must serve expectedChainID.
func Dial(ctx context.Context, rpcURL, privateKeyHex string, expectedChainID int64, opts Options) (*Provider, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}
	client, err := ethclient.DialContext(ctx, strings.TrimSpace(rpcURL))
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	p, err := NewProvider(ctx, client, key, expectedChainID, opts)
	if err != nil {
		client.Close()
		return nil, err
	}
	return p, nil
}

// NewProvider binds an existing client to the signing key after checking
// the endpoint's chain id.
func NewProvider(ctx context.Context, client Client, key *ecdsa.PrivateKey, expectedChainID int64, opts Options) (*Provider, error) {
	if client == nil || key == nil {
		return nil, errors.New("chain: client and key are required")
	}
	opts.defaults()

	id, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("read chain id: %w", err)
	}
	if id.Int64() != expectedChainID {
		return nil, fmt.Errorf("%w: got %s, want %d", ErrChainMismatch, id, expectedChainID)
	}

	from := crypto.PubkeyToAddress(key.PublicKey)
	p := &Provider{
		client:  client,
		key:     key,
		from:    from,
		chainID: id,
		signer:  types.LatestSignerForChainID(id),
		opts:    opts,
		logger:  opts.Logger.With("component", "chain", "signer", from.Hex()),
	}
	return p, nil
}

// From is the address of the server signing key.
func (p *Provider) From() common.Address { return p.from }

// ChainID is the chain id the provider was verified against.
func (p *Provider) ChainID() int64 { return p.chainID.Int64() }

// Close releases the RPC connection when the client supports it.
func (p *Provider) Close() {
	if c, ok := p.client.(interface{ Close() }); ok {
		c.Close()
	}
}

// Call executes a view function at the latest block and decodes its outputs.
func (p *Provider) Call(ctx context.Context, to common.Address, contract abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	out, err := p.call(ctx, to, contract, method, args...)
	result := "ok"
	if err != nil {
		result = "error"
		err = &ReadError{Contract: to, Method: method, Err: err}
	}
	metrics.ChainReads.WithLabelValues(method, result).Inc()
	return out, err
}

func (p *Provider) call(ctx context.Context, to common.Address, contract abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack: %w", err)
	}
	raw, err := p.client.CallContract(ctx, ethereum.CallMsg{From: p.from, To: &to, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	values, err := contract.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack: %w", err)
	}
	return values, nil
}

// Transact signs and sends an EIP-1559 transaction calling method on to.
// Gas is estimated first, so a call that would revert fails here.
func (p *Provider) Transact(ctx context.Context, to common.Address, contract abi.ABI, method string, args ...interface{}) (common.Hash, error) {
	hash, err := p.transact(ctx, to, contract, method, args...)
	if err != nil {
		return common.Hash{}, &WriteError{Contract: to, Method: method, Err: err}
	}
	p.logger.Info("transaction sent", "method", method, "to", to.Hex(), "tx", hash.Hex())
	return hash, nil
}

func (p *Provider) transact(ctx context.Context, to common.Address, contract abi.ABI, method string, args ...interface{}) (common.Hash, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	nonce, err := p.client.PendingNonceAt(ctx, p.from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("nonce: %w", err)
	}
	tip, err := p.client.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("gas tip: %w", err)
	}
	head, err := p.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("head: %w", err)
	}
	feeCap := new(big.Int).Set(tip)
	if head != nil && head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}

	gas, err := p.client.EstimateGas(ctx, ethereum.CallMsg{
		From:      p.from,
		To:        &to,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Data:      data,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}
	gas += gas / 5

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   p.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     new(big.Int),
		Data:      data,
	})
	signed, err := types.SignTx(tx, p.signer, p.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign: %w", err)
	}
	if err := p.client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, err
	}
	return signed.Hash(), nil
}

// WaitMined polls for the receipt of hash until it exists or the
// confirmation deadline passes. A receipt with a failed status is returned
// as-is; callers decide what a revert means.
func (p *Provider) WaitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, p.opts.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := p.client.TransactionReceipt(ctx, hash)
		switch {
		case err == nil && receipt != nil:
			metrics.ConfirmationSeconds.WithLabelValues("mined").Observe(time.Since(start).Seconds())
			return receipt, nil
		case err != nil && !errors.Is(err, ethereum.NotFound) && ctx.Err() == nil:
			metrics.ConfirmationSeconds.WithLabelValues("error").Observe(time.Since(start).Seconds())
			return nil, fmt.Errorf("receipt %s: %w", hash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			metrics.ConfirmationSeconds.WithLabelValues("timeout").Observe(time.Since(start).Seconds())
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %s not mined after %s", ErrConfirmationTimeout, hash.Hex(), time.Since(start).Round(time.Millisecond))
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
