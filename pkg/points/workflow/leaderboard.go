package workflow

import (
	"time"

	sdktemporal "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/stackingdao/points-engine/pkg/points/types"
)

// RecalculateLeaderboardWorkflow rebuilds the full ranking from the ledger and
// publishes it. Writes go rank-ascending in batches, then ranks past the new
// tail are truncated, so a shrinking wallet set never leaves stale rows.
func (wc *Context) RecalculateLeaderboardWorkflow(ctx workflow.Context, input types.RecalcInput) (types.RecalcSummary, error) {
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

	var built types.BuildLeaderboardOutput
	if err := workflow.ExecuteActivity(ctx, wc.ActivityContext.BuildLeaderboard).Get(ctx, &built); err != nil {
		return types.RecalcSummary{}, err
	}

	summary := types.RecalcSummary{
		BlockHash: input.BlockHash,
		Wallets:   len(built.Ranks),
	}

	logger.Info("leaderboard recalculation started",
		"blockHash", input.BlockHash,
		"wallets", summary.Wallets,
	)

	writeSize := wc.writeBatchSize()
	for start := 0; start < len(built.Ranks); start += writeSize {
		end := start + writeSize
		if end > len(built.Ranks) {
			end = len(built.Ranks)
		}

		batch := built.Ranks[start:end]
		var written types.WriteRanksOutput
		if err := workflow.ExecuteActivity(ctx, wc.ActivityContext.WriteLeaderboardRanks, types.WriteRanksInput{
			Ranks: batch,
		}).Get(ctx, &written); err != nil {
			return types.RecalcSummary{}, err
		}
		summary.Rows += written.Rows
	}

	if err := workflow.ExecuteActivity(ctx, wc.ActivityContext.TruncateStaleRanks, types.TruncateRanksInput{
		MaxRank: uint32(len(built.Ranks)),
	}).Get(ctx, nil); err != nil {
		return types.RecalcSummary{}, err
	}
	summary.Truncated = true

	logger.Info("leaderboard recalculation finished",
		"blockHash", input.BlockHash,
		"rows", summary.Rows,
	)

	return summary, nil
}
