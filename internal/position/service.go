// Package position reads a user's aggregate standing in the lending pool and
// translates available borrowing power into per-asset token quantities.
package position

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/atmx/lending-gateway/internal/aave"
	"github.com/atmx/lending-gateway/internal/chain"
	"github.com/atmx/lending-gateway/internal/model"
)

// Service answers account metrics queries. Read failures surface as
// *chain.ReadError and are not retried here.
type Service struct {
	reader  chain.Reader
	network aave.Network
	logger  *slog.Logger
}

// NewService creates a metrics service for one network.
func NewService(reader chain.Reader, network aave.Network, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		reader:  reader,
		network: network,
		logger:  logger.With("component", "position"),
	}
}

// accountData mirrors Pool.getUserAccountData, in return order.
type accountData struct {
	totalCollateral      *big.Int
	totalDebt            *big.Int
	availableBorrows     *big.Int
	liquidationThreshold *big.Int
	ltv                  *big.Int
	healthFactor         *big.Int
}

func (s *Service) readAccountData(ctx context.Context, pool, user common.Address) (accountData, error) {
	const method = "getUserAccountData"
	out, err := s.reader.Call(ctx, pool, aave.PoolABI, method, user)
	if err != nil {
		return accountData{}, err
	}
	vals, err := bigInts(out, 6)
	if err != nil {
		return accountData{}, &chain.ReadError{Contract: pool, Method: method, Err: err}
	}
	return accountData{
		totalCollateral:      vals[0],
		totalDebt:            vals[1],
		availableBorrows:     vals[2],
		liquidationThreshold: vals[3],
		ltv:                  vals[4],
		healthFactor:         vals[5],
	}, nil
}

// AccountPosition reads the user's aggregate record from pool. Zero
// collateral means no active position and every field reports zero.
func (s *Service) AccountPosition(ctx context.Context, pool, user common.Address) (*model.AccountPosition, error) {
	data, err := s.readAccountData(ctx, pool, user)
	if err != nil {
		return nil, err
	}
	if data.totalCollateral.Sign() == 0 {
		return &model.AccountPosition{
			User:                 user.Hex(),
			TotalCollateralUSD:   "0",
			TotalDebtUSD:         "0",
			AvailableBorrowsUSD:  "0",
			LiquidationThreshold: "0",
			LTV:                  "0",
			HealthFactor:         "0",
		}, nil
	}
	return &model.AccountPosition{
		User:                 user.Hex(),
		HasPosition:          true,
		TotalCollateralUSD:   aave.FormatUnits(data.totalCollateral, aave.BaseCurrencyDecimals),
		TotalDebtUSD:         aave.FormatUnits(data.totalDebt, aave.BaseCurrencyDecimals),
		AvailableBorrowsUSD:  aave.FormatUnits(data.availableBorrows, aave.BaseCurrencyDecimals),
		LiquidationThreshold: aave.FormatUnits(data.liquidationThreshold, aave.PercentDecimals),
		LTV:                  aave.FormatUnits(data.ltv, aave.PercentDecimals),
		HealthFactor:         aave.FormatUnits(data.healthFactor, aave.HealthFactorDecimals),
	}, nil
}

// Position is AccountPosition against the network's pool.
func (s *Service) Position(ctx context.Context, user common.Address) (*model.AccountPosition, error) {
	return s.AccountPosition(ctx, s.network.Pool, user)
}

// Collateral is the supply-side view of the user's position.
func (s *Service) Collateral(ctx context.Context, user common.Address) (*model.CollateralInfo, error) {
	data, err := s.readAccountData(ctx, s.network.Pool, user)
	if err != nil {
		return nil, err
	}
	if data.totalCollateral.Sign() == 0 {
		return &model.CollateralInfo{TotalCollateralUSD: "0", AvailableBorrowsUSD: "0", HealthFactor: "0"}, nil
	}
	return &model.CollateralInfo{
		HasCollateral:       true,
		TotalCollateralUSD:  aave.FormatUnits(data.totalCollateral, aave.BaseCurrencyDecimals),
		AvailableBorrowsUSD: aave.FormatUnits(data.availableBorrows, aave.BaseCurrencyDecimals),
		HealthFactor:        aave.FormatUnits(data.healthFactor, aave.HealthFactorDecimals),
	}, nil
}

// Debt is the repay-side view; it keys off total debt, not collateral.
func (s *Service) Debt(ctx context.Context, user common.Address) (*model.DebtInfo, error) {
	data, err := s.readAccountData(ctx, s.network.Pool, user)
	if err != nil {
		return nil, err
	}
	if data.totalDebt.Sign() == 0 {
		return &model.DebtInfo{TotalDebtUSD: "0", HealthFactor: "0"}, nil
	}
	return &model.DebtInfo{
		HasDebt:      true,
		TotalDebtUSD: aave.FormatUnits(data.totalDebt, aave.BaseCurrencyDecimals),
		HealthFactor: aave.FormatUnits(data.healthFactor, aave.HealthFactorDecimals),
	}, nil
}

// BorrowLimits reads the position and, when collateral exists, the oracle
// price of every listed asset. The price reads run concurrently.
func (s *Service) BorrowLimits(ctx context.Context, user common.Address) (*model.BorrowLimits, error) {
	data, err := s.readAccountData(ctx, s.network.Pool, user)
	if err != nil {
		return nil, err
	}

	limits := make([]model.AssetLimit, len(s.network.Assets))
	for i, a := range s.network.Assets {
		limits[i] = model.AssetLimit{Symbol: a.Symbol, Token: a.Underlying.Hex(), Decimals: a.Decimals, Amount: "0"}
	}

	if data.totalCollateral.Sign() == 0 {
		return &model.BorrowLimits{
			TotalCollateralUSD:  "0",
			TotalDebtUSD:        "0",
			AvailableBorrowsUSD: "0",
			HealthFactor:        "0",
			AssetLimits:         limits,
		}, nil
	}

	prices := make([]*big.Int, len(s.network.Assets))
	g, gctx := errgroup.WithContext(ctx)
	for i, a := range s.network.Assets {
		g.Go(func() error {
			price, err := s.AssetPrice(gctx, a.Underlying)
			if err != nil {
				return err
			}
			prices[i] = price
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, a := range s.network.Assets {
		limits[i].Amount = aave.AssetLimit(data.availableBorrows, prices[i], a.Decimals)
	}
	s.logger.Debug("borrow limits computed", "user", user.Hex(), "available_usd", aave.FormatUnits(data.availableBorrows, aave.BaseCurrencyDecimals))

	return &model.BorrowLimits{
		HasCollateral:       true,
		TotalCollateralUSD:  aave.FormatUnits(data.totalCollateral, aave.BaseCurrencyDecimals),
		TotalDebtUSD:        aave.FormatUnits(data.totalDebt, aave.BaseCurrencyDecimals),
		AvailableBorrowsUSD: aave.FormatUnits(data.availableBorrows, aave.BaseCurrencyDecimals),
		HealthFactor:        aave.FormatUnits(data.healthFactor, aave.HealthFactorDecimals),
		AssetLimits:         limits,
	}, nil
}

// AssetPrice reads the oracle price of asset in the base currency (8 decimals).
func (s *Service) AssetPrice(ctx context.Context, asset common.Address) (*big.Int, error) {
	const method = "getAssetPrice"
	out, err := s.reader.Call(ctx, s.network.Oracle, aave.OracleABI, method, asset)
	if err != nil {
		return nil, err
	}
	vals, err := bigInts(out, 1)
	if err != nil {
		return nil, &chain.ReadError{Contract: s.network.Oracle, Method: method, Err: err}
	}
	return vals[0], nil
}

func bigInts(out []interface{}, n int) ([]*big.Int, error) {
	if len(out) != n {
		return nil, fmt.Errorf("expected %d outputs, got %d", n, len(out))
	}
	vals := make([]*big.Int, n)
	for i, v := range out {
		b, ok := v.(*big.Int)
		if !ok || b == nil {
			return nil, fmt.Errorf("output %d: unexpected type %T", i, v)
		}
		vals[i] = b
	}
	return vals, nil
}
