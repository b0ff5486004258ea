package types

import (
	"github.com/stackingdao/points-engine/pkg/db/models"
	"github.com/stackingdao/points-engine/pkg/stacks"
)

// Workflow inputs.

// AccrualInput parameterizes a daily accrual run. Height zero means
// "resolve the current chain tip".
type AccrualInput struct {
	Height    uint64 `json:"height,omitempty"`
	BatchSize int    `json:"batchSize,omitempty"`
}

// RecalcInput parameterizes a leaderboard recalculation. BlockHash is
// informational and carried through for traceability.
type RecalcInput struct {
	BlockHash string `json:"blockHash,omitempty"`
}

// Workflow outputs.

type AccrualSummary struct {
	BlockHeight uint64 `json:"blockHeight"`
	BlockHash   string `json:"blockHash"`
	Wallets     int    `json:"wallets"`
	Chunks      int    `json:"chunks"`
	Rows        int    `json:"rows"`
	Skipped     int    `json:"skipped"`
}

type RecalcSummary struct {
	BlockHash string `json:"blockHash,omitempty"`
	Wallets   int    `json:"wallets"`
	Rows      int    `json:"rows"`
	Truncated bool   `json:"truncated"`
}

// Activity inputs/outputs.

type ResolveBlockInput struct {
	Height uint64 `json:"height,omitempty"`
}

type ResolveBlockOutput struct {
	Block stacks.Block `json:"block"`
}

type LoadWalletsOutput struct {
	Addresses []string `json:"addresses"`
}

type AccrueChunkInput struct {
	Block     stacks.Block `json:"block"`
	Addresses []string     `json:"addresses"`
}

type AccrueChunkOutput struct {
	Wallets  int     `json:"wallets"`
	Rows     int     `json:"rows"`
	Skipped  int     `json:"skipped"`
	Duration float64 `json:"duration"`
}

type BuildLeaderboardOutput struct {
	Ranks    []*models.LeaderboardRank `json:"ranks"`
	Duration float64                   `json:"duration"`
}

type WriteRanksInput struct {
	Ranks []*models.LeaderboardRank `json:"ranks"`
}

type WriteRanksOutput struct {
	Rows int `json:"rows"`
}

type TruncateRanksInput struct {
	MaxRank uint32 `json:"maxRank"`
}

type RefreshBalancesOutput struct {
	Wallets  int     `json:"wallets"`
	Skipped  int     `json:"skipped"`
	Duration float64 `json:"duration"`
}
