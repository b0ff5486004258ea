package activity

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"github.com/stackingdao/points-engine/pkg/points/types"
	"github.com/stackingdao/points-engine/pkg/retry"
)

// RefreshWalletBalances re-reads every registered wallet's live STX balance and
// stores it as the wallet's current balance. Snapshot balances are never
// touched here; only the "current" side of the bonus spread moves.
func (ac *Context) RefreshWalletBalances(ctx context.Context) (types.RefreshBalancesOutput, error) {
	start := time.Now()

	addresses, err := ac.Wallets.ListWalletAddresses(ctx)
	if err != nil {
		return types.RefreshBalancesOutput{}, fmt.Errorf("list wallet addresses: %w", err)
	}

	balances := xsync.NewMap[string, uint64]()
	var skipped atomic.Int64

	pool := ac.WorkerPool()
	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	for _, address := range addresses {
		addr := address
		group.Submit(func() {
			if err := groupCtx.Err(); err != nil {
				return
			}

			var balance uint64
			err := retry.WithBackoff(groupCtx, retry.QueryConfig(), ac.Logger, "stx-balance", func() error {
				var fetchErr error
				balance, fetchErr = ac.Oracle.StxBalance(groupCtx, addr)
				return fetchErr
			})
			if err != nil {
				skipped.Add(1)
				ac.Logger.Warn("skipping wallet balance refresh",
					zap.String("address", addr),
					zap.Error(err),
				)
				return
			}

			balances.Store(addr, balance)
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		ac.Logger.Warn("parallel balance refresh encountered error", zap.Error(err))
	}
	if err := ctx.Err(); err != nil {
		return types.RefreshBalancesOutput{}, err
	}

	updates := make(map[string]uint64, balances.Size())
	balances.Range(func(address string, balance uint64) bool {
		updates[address] = balance
		return true
	})

	wallets, err := ac.Wallets.UpsertCurrentBalances(ctx, updates)
	if err != nil {
		return types.RefreshBalancesOutput{}, fmt.Errorf("upsert current balances: %w", err)
	}

	out := types.RefreshBalancesOutput{
		Wallets:  wallets,
		Skipped:  int(skipped.Load()),
		Duration: time.Since(start).Seconds(),
	}

	ac.Logger.Info("refreshed wallet balances",
		zap.Int("wallets", out.Wallets),
		zap.Int("skipped", out.Skipped),
		zap.Float64("duration", out.Duration),
	)

	return out, nil
}
