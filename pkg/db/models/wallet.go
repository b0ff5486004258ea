package models

import "time"

const WalletsTableName = "wallets"

// WalletColumns defines the schema for the wallets table.
var WalletColumns = []ColumnDef{
	{Name: "address", Type: "String", Codec: "ZSTD(1)"},
	{Name: "first_seen_block", Type: "String", Codec: "ZSTD(1)"},
	{Name: "snapshot_balance", Type: "UInt64", Codec: "Delta, ZSTD(1)"},
	{Name: "current_balance", Type: "UInt64", Codec: "Delta, ZSTD(1)"},
	{Name: "created_at", Type: "DateTime64(6)", Codec: "DoubleDelta, LZ4"},
	{Name: "updated_at", Type: "DateTime64(6)", Codec: "DoubleDelta, LZ4"},
}

// Wallet is one registered on-chain address and its bonus-window balances.
//
// snapshot_balance is the balance captured at the start of the current bonus
// window; it only moves when a new window opens (SnapshotBalances). Ordinary
// refreshes touch current_balance alone, so the growth term
// current_balance - snapshot_balance accumulates between windows.
//
// The table uses ReplacingMergeTree(updated_at) keyed by address: an upsert is
// an insert of a newer version, and reads use FINAL to observe the latest one.
type Wallet struct {
	Address         string    `ch:"address" json:"address"`
	FirstSeenBlock  string    `ch:"first_seen_block" json:"first_seen_block"`
	SnapshotBalance uint64    `ch:"snapshot_balance" json:"snapshot_balance"`
	CurrentBalance  uint64    `ch:"current_balance" json:"current_balance"`
	CreatedAt       time.Time `ch:"created_at" json:"created_at"`
	UpdatedAt       time.Time `ch:"updated_at" json:"updated_at"`
}
