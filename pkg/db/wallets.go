package db

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/stackingdao/points-engine/pkg/db/clickhouse"
	"github.com/stackingdao/points-engine/pkg/db/models"
)

// initWallets creates the wallet registry table.
// ReplacingMergeTree(updated_at) keyed by address: upserts insert a newer
// version and FINAL reads observe the latest row per address.
func (db *DB) initWallets(ctx context.Context) error {
	schemaSQL := models.ColumnsToSchemaSQL(models.WalletColumns)

	query := fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS "%s"."%s" (
			%s
		) ENGINE = %s
		ORDER BY address
	`, db.Name, models.WalletsTableName, schemaSQL, clickhouse.Engine(clickhouse.ReplacingMergeTree, "updated_at"))

	return db.Exec(ctx, query)
}

// ListWalletAddresses returns every registered wallet address.
func (db *DB) ListWalletAddresses(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`SELECT address FROM "%s"."%s" FINAL ORDER BY address`, db.Name, models.WalletsTableName)

	var rows []struct {
		Address string `ch:"address"`
	}
	if err := db.Select(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list wallet addresses: %w", err)
	}

	addresses := make([]string, 0, len(rows))
	for _, r := range rows {
		addresses = append(addresses, r.Address)
	}
	return addresses, nil
}

// ReadWallets returns the latest version of every wallet row.
func (db *DB) ReadWallets(ctx context.Context) ([]*models.Wallet, error) {
	query := fmt.Sprintf(`SELECT * FROM "%s"."%s" FINAL ORDER BY address`, db.Name, models.WalletsTableName)

	var wallets []*models.Wallet
	if err := db.Select(ctx, &wallets, query); err != nil {
		return nil, fmt.Errorf("read wallets: %w", err)
	}
	return wallets, nil
}

// readWalletsByAddress returns the latest wallet rows for the given addresses.
func (db *DB) readWalletsByAddress(ctx context.Context, addresses []string) (map[string]*models.Wallet, error) {
	if len(addresses) == 0 {
		return map[string]*models.Wallet{}, nil
	}

	query := fmt.Sprintf(`SELECT * FROM "%s"."%s" FINAL WHERE address IN (?)`, db.Name, models.WalletsTableName)

	var rows []*models.Wallet
	if err := db.Select(ctx, &rows, query, addresses); err != nil {
		return nil, fmt.Errorf("read wallets by address: %w", err)
	}

	existing := make(map[string]*models.Wallet, len(rows))
	for _, w := range rows {
		existing[w.Address] = w
	}
	return existing, nil
}

// RegisterWallets inserts wallets for addresses not seen before and returns the
// number of new rows. Existing addresses are left untouched, so first_seen_block
// and created_at are set exactly once.
func (db *DB) RegisterWallets(ctx context.Context, wallets []*models.Wallet) (int, error) {
	if len(wallets) == 0 {
		return 0, nil
	}

	addresses := make([]string, 0, len(wallets))
	for _, w := range wallets {
		addresses = append(addresses, w.Address)
	}

	existing, err := db.readWalletsByAddress(ctx, addresses)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	fresh := make([]*models.Wallet, 0, len(wallets))
	for _, w := range wallets {
		if _, ok := existing[w.Address]; ok {
			continue
		}
		row := *w
		row.CreatedAt = now
		row.UpdatedAt = now
		fresh = append(fresh, &row)
	}

	if err := db.insertWallets(ctx, fresh); err != nil {
		return 0, err
	}
	return len(fresh), nil
}

// UpsertCurrentBalances refreshes current_balance for the given addresses,
// preserving each wallet's snapshot_balance and first-seen fields. Unknown
// addresses are registered with a zero snapshot.
func (db *DB) UpsertCurrentBalances(ctx context.Context, balances map[string]uint64) (int, error) {
	return db.upsertBalances(ctx, balances, false)
}

// SnapshotBalances opens a new bonus-accrual window: both current_balance and
// snapshot_balance are set to the supplied balance, zeroing the growth term
// until the balance moves again.
func (db *DB) SnapshotBalances(ctx context.Context, balances map[string]uint64) (int, error) {
	return db.upsertBalances(ctx, balances, true)
}

func (db *DB) upsertBalances(ctx context.Context, balances map[string]uint64, snapshot bool) (int, error) {
	if len(balances) == 0 {
		return 0, nil
	}

	addresses := make([]string, 0, len(balances))
	for address := range balances {
		addresses = append(addresses, address)
	}

	existing, err := db.readWalletsByAddress(ctx, addresses)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	rows := make([]*models.Wallet, 0, len(balances))
	for address, balance := range balances {
		row := &models.Wallet{
			Address:        address,
			CurrentBalance: balance,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if prev, ok := existing[address]; ok {
			row.FirstSeenBlock = prev.FirstSeenBlock
			row.SnapshotBalance = prev.SnapshotBalance
			row.CreatedAt = prev.CreatedAt
		}
		if snapshot {
			row.SnapshotBalance = balance
		}
		rows = append(rows, row)
	}

	if err := db.insertWallets(ctx, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (db *DB) insertWallets(ctx context.Context, wallets []*models.Wallet) error {
	if len(wallets) == 0 {
		return nil
	}

	query := fmt.Sprintf(`INSERT INTO "%s"."%s" (%s) VALUES`,
		db.Name, models.WalletsTableName, models.ColumnsToNameList(models.WalletColumns))
	batch, err := db.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	for _, w := range wallets {
		err = batch.Append(
			w.Address,
			w.FirstSeenBlock,
			w.SnapshotBalance,
			w.CurrentBalance,
			w.CreatedAt,
			w.UpdatedAt,
		)
		if err != nil {
			return err
		}
	}

	return batch.Send()
}
