package activity

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/stackingdao/points-engine/pkg/points"
	"github.com/stackingdao/points-engine/pkg/points/types"
)

// BuildLeaderboard aggregates the full ledger and the wallet registry into a
// fresh, deterministically ordered ranking. It never touches the leaderboard
// table; writing is a separate activity so a failed build leaves the published
// ranking intact.
func (ac *Context) BuildLeaderboard(ctx context.Context) (types.BuildLeaderboardOutput, error) {
	start := time.Now()

	groups, err := ac.Ledger.AggregateBySourceAndWallet(ctx)
	if err != nil {
		return types.BuildLeaderboardOutput{}, fmt.Errorf("aggregate ledger: %w", err)
	}

	wallets, err := ac.Wallets.ReadWallets(ctx)
	if err != nil {
		return types.BuildLeaderboardOutput{}, fmt.Errorf("read wallets: %w", err)
	}

	ranks := points.BuildLeaderboard(groups, wallets)

	out := types.BuildLeaderboardOutput{
		Ranks:    ranks,
		Duration: time.Since(start).Seconds(),
	}

	ac.Logger.Info("built leaderboard",
		zap.Int("wallets", len(ranks)),
		zap.Int("ledgerGroups", len(groups)),
		zap.Float64("duration", out.Duration),
	)

	return out, nil
}

// WriteLeaderboardRanks publishes one batch of ranks.
func (ac *Context) WriteLeaderboardRanks(ctx context.Context, input types.WriteRanksInput) (types.WriteRanksOutput, error) {
	rows, err := ac.Leaderboard.UpsertRanks(ctx, input.Ranks)
	if err != nil {
		return types.WriteRanksOutput{}, fmt.Errorf("upsert ranks: %w", err)
	}

	return types.WriteRanksOutput{Rows: rows}, nil
}

// TruncateStaleRanks drops ranks past the end of the new ordering, so a
// shrinking wallet set cannot leave stale trailing rows behind.
func (ac *Context) TruncateStaleRanks(ctx context.Context, input types.TruncateRanksInput) error {
	if err := ac.Leaderboard.TruncateRanksBeyond(ctx, input.MaxRank); err != nil {
		return fmt.Errorf("truncate ranks beyond %d: %w", input.MaxRank, err)
	}

	ac.Logger.Info("truncated stale ranks", zap.Uint32("maxRank", input.MaxRank))

	return nil
}
