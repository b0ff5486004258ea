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

	"github.com/stackingdao/points-engine/pkg/db/models"
	"github.com/stackingdao/points-engine/pkg/points"
	"github.com/stackingdao/points-engine/pkg/points/types"
	"github.com/stackingdao/points-engine/pkg/retry"
	"github.com/stackingdao/points-engine/pkg/stacks"
)

// ResolveBlock pins the block every balance read in the run will use. A zero
// height resolves the current chain tip; a non-zero height replays history.
func (ac *Context) ResolveBlock(ctx context.Context, input types.ResolveBlockInput) (types.ResolveBlockOutput, error) {
	height := input.Height
	if height == 0 {
		tip, err := ac.Oracle.TipHeight(ctx)
		if err != nil {
			return types.ResolveBlockOutput{}, fmt.Errorf("resolve tip height: %w", err)
		}
		height = tip
	}

	block, err := ac.Oracle.BlockByHeight(ctx, height)
	if err != nil {
		return types.ResolveBlockOutput{}, fmt.Errorf("resolve block %d: %w", height, err)
	}

	ac.Logger.Info("resolved accrual block",
		zap.Uint64("height", block.Height),
		zap.String("hash", block.Hash),
	)

	return types.ResolveBlockOutput{Block: block}, nil
}

// LoadWalletAddresses returns every registered wallet address in ascending
// order, so the workflow's chunking is stable across runs.
func (ac *Context) LoadWalletAddresses(ctx context.Context) (types.LoadWalletsOutput, error) {
	addresses, err := ac.Wallets.ListWalletAddresses(ctx)
	if err != nil {
		return types.LoadWalletsOutput{}, fmt.Errorf("list wallet addresses: %w", err)
	}

	return types.LoadWalletsOutput{Addresses: addresses}, nil
}

// AccrueChunk fetches balances at the pinned block for one chunk of wallets and
// writes the resulting ledger entries in a single batch. An address whose
// fetch keeps failing is skipped and counted, not fatal: the rest of the chunk
// still accrues, and the address catches up on the next run.
func (ac *Context) AccrueChunk(ctx context.Context, input types.AccrueChunkInput) (types.AccrueChunkOutput, error) {
	start := time.Now()

	vectors := xsync.NewMap[string, stacks.BalanceVector]()
	var skipped atomic.Int64

	pool := ac.WorkerPool()
	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	for _, address := range input.Addresses {
		addr := address
		group.Submit(func() {
			if err := groupCtx.Err(); err != nil {
				return
			}

			var vector stacks.BalanceVector
			err := retry.WithBackoff(groupCtx, retry.QueryConfig(), ac.Logger, "balances-at-block", func() error {
				var fetchErr error
				vector, fetchErr = ac.Oracle.BalancesAtBlock(groupCtx, addr, input.Block.Height)
				return fetchErr
			})
			if err != nil {
				skipped.Add(1)
				ac.Logger.Warn("skipping wallet after exhausted retries",
					zap.String("address", addr),
					zap.Uint64("height", input.Block.Height),
					zap.Error(err),
				)
				return
			}

			vectors.Store(addr, vector)
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		ac.Logger.Warn("parallel balance fetch encountered error",
			zap.Uint64("height", input.Block.Height),
			zap.Error(err),
		)
	}
	if err := ctx.Err(); err != nil {
		return types.AccrueChunkOutput{}, err
	}

	// Fold chunk results in address order so entry batches are deterministic.
	entries := make([]*models.LedgerEntry, 0, len(input.Addresses))
	for _, address := range input.Addresses {
		vector, ok := vectors.Load(address)
		if !ok {
			continue
		}

		walletEntries, skippedBalances := points.BuildEntries(address, input.Block.Hash, vector)
		for _, sb := range skippedBalances {
			ac.Logger.Warn("skipping malformed balance",
				zap.String("address", address),
				zap.String("source", sb.Source.String()),
				zap.String("amount", sb.Amount),
				zap.String("reason", sb.Reason),
			)
		}
		entries = append(entries, walletEntries...)
	}

	rows, err := ac.Ledger.InsertLedgerEntries(ctx, entries)
	if err != nil {
		return types.AccrueChunkOutput{}, fmt.Errorf("insert ledger entries at block %d: %w", input.Block.Height, err)
	}

	out := types.AccrueChunkOutput{
		Wallets:  len(input.Addresses) - int(skipped.Load()),
		Rows:     rows,
		Skipped:  int(skipped.Load()),
		Duration: time.Since(start).Seconds(),
	}

	ac.Logger.Info("accrued chunk",
		zap.Uint64("height", input.Block.Height),
		zap.Int("wallets", out.Wallets),
		zap.Int("rows", out.Rows),
		zap.Int("skipped", out.Skipped),
		zap.Float64("duration", out.Duration),
	)

	return out, nil
}
