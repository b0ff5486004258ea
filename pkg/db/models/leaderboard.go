package models

import "time"

const LeaderboardTableName = "leaderboard"

// LeaderboardColumns defines the schema for the leaderboard table.
var LeaderboardColumns = []ColumnDef{
	{Name: "rank", Type: "UInt32", Codec: "Delta, ZSTD(1)"},
	{Name: "wallet", Type: "String", Codec: "ZSTD(1)"},
	{Name: "daily_points", Type: "String"},
	{Name: "referral_points", Type: "String"},
	{Name: "bonus_points", Type: "String"},
	{Name: "updated_at", Type: "DateTime64(6)", Codec: "DoubleDelta, LZ4"},
}

// LeaderboardRank is one wallet's position in the fully recomputed leaderboard.
// The table is keyed by rank with ReplacingMergeTree(updated_at): each recompute
// upserts every rank it produces and then truncates ranks beyond the new length,
// so a shrinking wallet set cannot leave stale tail ranks behind.
type LeaderboardRank struct {
	Rank           uint32    `ch:"rank" json:"rank"`
	Wallet         string    `ch:"wallet" json:"wallet"`
	DailyPoints    string    `ch:"daily_points" json:"daily_points"`
	ReferralPoints string    `ch:"referral_points" json:"referral_points"`
	BonusPoints    string    `ch:"bonus_points" json:"bonus_points"`
	UpdatedAt      time.Time `ch:"updated_at" json:"updated_at"`
}
