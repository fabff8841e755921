package executor

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/atmx/lending-gateway/internal/aave"
	"github.com/atmx/lending-gateway/internal/chain"
)

// decimals returns the asset's precision from the address book, falling
// back to the token's own decimals() view.
func (e *Executor) decimals(ctx context.Context, asset common.Address) (int32, error) {
	if a, ok := e.network.AssetByAddress(asset); ok {
		return a.Decimals, nil
	}
	if e.reader == nil {
		return 0, fmt.Errorf("asset %s is not listed and no reader is configured", asset.Hex())
	}
	out, err := e.reader.Call(ctx, asset, aave.ERC20ABI, "decimals")
	if err != nil {
		return 0, err
	}
	if len(out) != 1 {
		return 0, &chain.ReadError{Contract: asset, Method: "decimals", Err: fmt.Errorf("expected 1 output, got %d", len(out))}
	}
	d, ok := out[0].(uint8)
	if !ok {
		return 0, &chain.ReadError{Contract: asset, Method: "decimals", Err: fmt.Errorf("unexpected type %T", out[0])}
	}
	return int32(d), nil
}

func (e *Executor) baseUnits(ctx context.Context, asset common.Address, amount string) (*big.Int, error) {
	d, err := e.decimals(ctx, asset)
	if err != nil {
		return nil, err
	}
	v, err := aave.ToBaseUnits(amount, d)
	if err != nil {
		return nil, fmt.Errorf("amount %q: %w", amount, err)
	}
	return v, nil
}
