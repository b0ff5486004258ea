package db

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/stackingdao/points-engine/pkg/db/clickhouse"
	"github.com/stackingdao/points-engine/pkg/db/models"
	"go.uber.org/zap"
)

// initLeaderboard creates the leaderboard table, keyed by rank.
func (db *DB) initLeaderboard(ctx context.Context) error {
	schemaSQL := models.ColumnsToSchemaSQL(models.LeaderboardColumns)

	query := fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS "%s"."%s" (
			%s
		) ENGINE = %s
		ORDER BY rank
	`, db.Name, models.LeaderboardTableName, schemaSQL, clickhouse.Engine(clickhouse.ReplacingMergeTree, "updated_at"))

	return db.Exec(ctx, query)
}

// UpsertRanks writes one bounded batch of leaderboard rows, replacing whatever
// wallet previously held each rank. Returns the number of rows written.
func (db *DB) UpsertRanks(ctx context.Context, ranks []*models.LeaderboardRank) (int, error) {
	if len(ranks) == 0 {
		return 0, nil
	}

	query := fmt.Sprintf(`INSERT INTO "%s"."%s" (%s) VALUES`,
		db.Name, models.LeaderboardTableName, models.ColumnsToNameList(models.LeaderboardColumns))
	batch, err := db.PrepareBatch(ctx, query)
	if err != nil {
		return 0, err
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	now := time.Now().UTC()
	for _, r := range ranks {
		err = batch.Append(
			r.Rank,
			r.Wallet,
			r.DailyPoints,
			r.ReferralPoints,
			r.BonusPoints,
			now,
		)
		if err != nil {
			return 0, err
		}
	}

	if err := batch.Send(); err != nil {
		return 0, err
	}
	return len(ranks), nil
}

// TruncateRanksBeyond removes ranks past the new leaderboard's length.
// Without this, a recompute over a shrunken wallet set would leave stale tail
// ranks from the previous, larger leaderboard in place. Uses lightweight
// DELETE for instant, non-blocking deletion (ClickHouse 23.3+).
func (db *DB) TruncateRanksBeyond(ctx context.Context, maxRank uint32) error {
	query := fmt.Sprintf(`DELETE FROM "%s"."%s" WHERE rank > ?`, db.Name, models.LeaderboardTableName)

	if err := db.Exec(ctx, query, maxRank); err != nil {
		return fmt.Errorf("truncate leaderboard beyond rank %d: %w", maxRank, err)
	}

	db.Logger.Debug("Truncated stale leaderboard ranks",
		zap.Uint32("max_rank", maxRank))
	return nil
}
