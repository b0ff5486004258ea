package models

import "time"

const LedgerTableName = "points_ledger"

// LedgerColumns defines the schema for the points_ledger table.
var LedgerColumns = []ColumnDef{
	{Name: "wallet", Type: "String", Codec: "ZSTD(1)"},
	{Name: "source", Type: "LowCardinality(String)"},
	{Name: "block", Type: "String", Codec: "ZSTD(1)"},
	{Name: "amount", Type: "String", Codec: "ZSTD(1)"},
	{Name: "multiplier", Type: "String"},
	{Name: "created_at", Type: "DateTime64(6)", Codec: "DoubleDelta, LZ4"},
}

// LedgerEntry is one weighted observation of a wallet's balance in one
// integrated protocol at one block.
//
// The ledger is append-only and keyed by (wallet, source, block): the table
// uses ReplacingMergeTree with that sorting key, so a re-inserted key collapses
// to a single row and a re-run accrual can never double-count. Amount and
// multiplier are decimal strings end to end; token balances routinely exceed
// what a float64 can carry without truncation.
type LedgerEntry struct {
	Wallet     string    `ch:"wallet" json:"wallet"`
	Source     string    `ch:"source" json:"source"`
	Block      string    `ch:"block" json:"block"`
	Amount     string    `ch:"amount" json:"amount"`
	Multiplier string    `ch:"multiplier" json:"multiplier"`
	CreatedAt  time.Time `ch:"created_at" json:"created_at"`
}

// Key returns the ledger uniqueness key for dedup checks.
func (e *LedgerEntry) Key() string {
	return e.Wallet + "|" + e.Source + "|" + e.Block
}
