package db

import (
	"context"

	"github.com/stackingdao/points-engine/pkg/db/models"
)

// WalletRegistry is the narrow wallet-store surface the drivers depend on.
type WalletRegistry interface {
	ListWalletAddresses(ctx context.Context) ([]string, error)
	ReadWallets(ctx context.Context) ([]*models.Wallet, error)
	RegisterWallets(ctx context.Context, wallets []*models.Wallet) (int, error)
	UpsertCurrentBalances(ctx context.Context, balances map[string]uint64) (int, error)
	SnapshotBalances(ctx context.Context, balances map[string]uint64) (int, error)
}

// LedgerStore persists and aggregates point-ledger entries.
type LedgerStore interface {
	InsertLedgerEntries(ctx context.Context, entries []*models.LedgerEntry) (int, error)
	AggregateBySourceAndWallet(ctx context.Context) ([]GroupTotal, error)
}

// LeaderboardStore owns the leaderboard table.
type LeaderboardStore interface {
	UpsertRanks(ctx context.Context, ranks []*models.LeaderboardRank) (int, error)
	TruncateRanksBeyond(ctx context.Context, maxRank uint32) error
}

var (
	_ WalletRegistry   = (*DB)(nil)
	_ LedgerStore      = (*DB)(nil)
	_ LeaderboardStore = (*DB)(nil)
)
