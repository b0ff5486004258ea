package db

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/shopspring/decimal"
	"github.com/stackingdao/points-engine/pkg/db/clickhouse"
	"github.com/stackingdao/points-engine/pkg/db/models"
	"go.uber.org/zap"
)

// initLedger creates the append-only points ledger.
// The sorting key (wallet, source, block) is the ledger uniqueness key:
// ReplacingMergeTree collapses any row re-inserted under the same key, so a
// replayed accrual cannot double-count even if two writers race.
func (db *DB) initLedger(ctx context.Context) error {
	schemaSQL := models.ColumnsToSchemaSQL(models.LedgerColumns)

	query := fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS "%s"."%s" (
			%s
		) ENGINE = %s
		ORDER BY (wallet, source, block)
	`, db.Name, models.LedgerTableName, schemaSQL, clickhouse.Engine(clickhouse.ReplacingMergeTree, ""))

	return db.Exec(ctx, query)
}

// InsertLedgerEntries persists a batch of ledger entries, skipping any whose
// (wallet, source, block) key already exists. Returns the number of rows
// actually inserted, excluding skipped duplicates.
//
// The existence check makes the returned count accurate; the ReplacingMergeTree
// sorting key keeps the ledger correct even when two runs race past the check.
func (db *DB) InsertLedgerEntries(ctx context.Context, entries []*models.LedgerEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	existing, err := db.existingLedgerKeys(ctx, entries)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	fresh := make([]*models.LedgerEntry, 0, len(entries))
	for _, e := range entries {
		if existing[e.Key()] {
			continue
		}
		row := *e
		row.CreatedAt = now
		fresh = append(fresh, &row)
	}

	if len(fresh) == 0 {
		db.Logger.Debug("All ledger entries already present, nothing to insert",
			zap.Int("batch", len(entries)))
		return 0, nil
	}

	query := fmt.Sprintf(`INSERT INTO "%s"."%s" (%s) VALUES`,
		db.Name, models.LedgerTableName, models.ColumnsToNameList(models.LedgerColumns))
	batch, err := db.PrepareBatch(ctx, query)
	if err != nil {
		return 0, err
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	for _, e := range fresh {
		err = batch.Append(
			e.Wallet,
			e.Source,
			e.Block,
			e.Amount,
			e.Multiplier,
			e.CreatedAt,
		)
		if err != nil {
			return 0, err
		}
	}

	if err := batch.Send(); err != nil {
		return 0, err
	}
	return len(fresh), nil
}

// existingLedgerKeys returns the set of (wallet, source, block) keys from the
// batch that are already present in the ledger.
func (db *DB) existingLedgerKeys(ctx context.Context, entries []*models.LedgerEntry) (map[string]bool, error) {
	walletSet := map[string]bool{}
	blockSet := map[string]bool{}
	for _, e := range entries {
		walletSet[e.Wallet] = true
		blockSet[e.Block] = true
	}
	wallets := make([]string, 0, len(walletSet))
	for w := range walletSet {
		wallets = append(wallets, w)
	}
	blocks := make([]string, 0, len(blockSet))
	for b := range blockSet {
		blocks = append(blocks, b)
	}

	query := fmt.Sprintf(
		`SELECT wallet, source, block FROM "%s"."%s" WHERE block IN (?) AND wallet IN (?)`,
		db.Name, models.LedgerTableName,
	)

	var rows []struct {
		Wallet string `ch:"wallet"`
		Source string `ch:"source"`
		Block  string `ch:"block"`
	}
	if err := db.Select(ctx, &rows, query, blocks, wallets); err != nil {
		return nil, fmt.Errorf("query existing ledger keys: %w", err)
	}

	existing := make(map[string]bool, len(rows))
	for _, r := range rows {
		existing[r.Wallet+"|"+r.Source+"|"+r.Block] = true
	}
	return existing, nil
}

// GroupTotal is the weighted point total of one (wallet, source) ledger group.
type GroupTotal struct {
	Wallet string
	Source string
	Total  decimal.Decimal
}

// AggregateBySourceAndWallet folds the entire ledger into per-(wallet, source)
// totals of amount x multiplier. The arithmetic runs in arbitrary-precision
// decimal; rows with unparseable amounts are skipped and logged rather than
// poisoning the whole recompute. Results are sorted by (wallet, source) so two
// recomputes over the same ledger always agree.
func (db *DB) AggregateBySourceAndWallet(ctx context.Context) ([]GroupTotal, error) {
	query := fmt.Sprintf(
		`SELECT wallet, source, amount, multiplier FROM "%s"."%s" FINAL`,
		db.Name, models.LedgerTableName,
	)

	var rows []struct {
		Wallet     string `ch:"wallet"`
		Source     string `ch:"source"`
		Amount     string `ch:"amount"`
		Multiplier string `ch:"multiplier"`
	}
	if err := db.Select(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("aggregate ledger: %w", err)
	}

	totals := map[string]*GroupTotal{}
	for _, r := range rows {
		amount, err := decimal.NewFromString(r.Amount)
		if err != nil {
			db.Logger.Warn("Skipping ledger row with malformed amount",
				zap.String("wallet", r.Wallet),
				zap.String("source", r.Source),
				zap.String("amount", r.Amount))
			continue
		}
		multiplier, err := decimal.NewFromString(r.Multiplier)
		if err != nil {
			db.Logger.Warn("Skipping ledger row with malformed multiplier",
				zap.String("wallet", r.Wallet),
				zap.String("source", r.Source),
				zap.String("multiplier", r.Multiplier))
			continue
		}

		key := r.Wallet + "|" + r.Source
		group, ok := totals[key]
		if !ok {
			group = &GroupTotal{Wallet: r.Wallet, Source: r.Source}
			totals[key] = group
		}
		group.Total = group.Total.Add(amount.Mul(multiplier))
	}

	out := make([]GroupTotal, 0, len(totals))
	for _, g := range totals {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Wallet != out[j].Wallet {
			return out[i].Wallet < out[j].Wallet
		}
		return out[i].Source < out[j].Source
	})
	return out, nil
}
