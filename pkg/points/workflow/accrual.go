package workflow

import (
	"time"

	sdktemporal "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/stackingdao/points-engine/pkg/points/types"
)

// DailyAccrualWorkflow runs one accrual pass: pin a block, load the registry,
// and fan wallet chunks out to activities. Every chunk observes the same block,
// so a run interrupted and retried produces the same ledger rows it would have
// produced the first time.
func (wc *Context) DailyAccrualWorkflow(ctx workflow.Context, input types.AccrualInput) (types.AccrualSummary, error) {
	logger := workflow.GetLogger(ctx)

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &sdktemporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    5,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	// 1. Pin the block the whole run reads at.
	var resolved types.ResolveBlockOutput
	if err := workflow.ExecuteActivity(ctx, wc.ActivityContext.ResolveBlock, types.ResolveBlockInput{
		Height: input.Height,
	}).Get(ctx, &resolved); err != nil {
		return types.AccrualSummary{}, err
	}

	// 2. Load the registry in its stable order.
	var loaded types.LoadWalletsOutput
	if err := workflow.ExecuteActivity(ctx, wc.ActivityContext.LoadWalletAddresses).Get(ctx, &loaded); err != nil {
		return types.AccrualSummary{}, err
	}

	chunks := chunkAddresses(loaded.Addresses, wc.batchSize(input.BatchSize))

	summary := types.AccrualSummary{
		BlockHeight: resolved.Block.Height,
		BlockHash:   resolved.Block.Hash,
		Wallets:     len(loaded.Addresses),
		Chunks:      len(chunks),
	}

	logger.Info("accrual run started",
		"height", summary.BlockHeight,
		"wallets", summary.Wallets,
		"chunks", summary.Chunks,
	)

	// 3. Fan chunks out, bounded to keep pressure on the upstream API sane.
	maxParallel := wc.maxParallelChunks()
	futures := make([]workflow.Future, 0, maxParallel)

	collect := func() error {
		for _, future := range futures {
			var out types.AccrueChunkOutput
			if err := future.Get(ctx, &out); err != nil {
				return err
			}
			summary.Rows += out.Rows
			summary.Skipped += out.Skipped
		}
		futures = futures[:0]
		return nil
	}

	for _, chunk := range chunks {
		futures = append(futures, workflow.ExecuteActivity(ctx, wc.ActivityContext.AccrueChunk, types.AccrueChunkInput{
			Block:     resolved.Block,
			Addresses: chunk,
		}))

		if len(futures) == maxParallel {
			if err := collect(); err != nil {
				return types.AccrualSummary{}, err
			}
		}
	}
	if err := collect(); err != nil {
		return types.AccrualSummary{}, err
	}

	logger.Info("accrual run finished",
		"height", summary.BlockHeight,
		"rows", summary.Rows,
		"skipped", summary.Skipped,
	)

	return summary, nil
}
