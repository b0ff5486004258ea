package points

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackingdao/points-engine/pkg/db"
	"github.com/stackingdao/points-engine/pkg/db/models"
)

func TestBonusPoints(t *testing.T) {
	// 1 STX of growth (1e6 base units) at rate 20 is 20 points.
	assert.Equal(t, "20", BonusPoints(0, 1_000_000).String())

	// Sub-unit growth keeps its fractional part.
	assert.Equal(t, "0.00002", BonusPoints(0, 1).String())

	// Shrinking or flat balances never go negative.
	assert.Equal(t, "0", BonusPoints(1_000_000, 500_000).String())
	assert.Equal(t, "0", BonusPoints(1_000_000, 1_000_000).String())
}

func TestBuildLeaderboard_Buckets(t *testing.T) {
	groups := []db.GroupTotal{
		{Wallet: "SP1AAA", Source: "ststx", Total: decimal.RequireFromString("7")},
		{Wallet: "SP1AAA", Source: "migration", Total: decimal.RequireFromString("3")},
		{Wallet: "SP1AAA", Source: "referral", Total: decimal.RequireFromString("5")},
	}
	wallets := []*models.Wallet{
		{Address: "SP1AAA", SnapshotBalance: 0, CurrentBalance: 1_000_000},
	}

	ranks := BuildLeaderboard(groups, wallets)
	require.Len(t, ranks, 1)

	// Migrated history counts as daily; referral stays its own bucket; bonus
	// comes from the registry alone.
	assert.Equal(t, uint32(1), ranks[0].Rank)
	assert.Equal(t, "10", ranks[0].DailyPoints)
	assert.Equal(t, "5", ranks[0].ReferralPoints)
	assert.Equal(t, "20", ranks[0].BonusPoints)
}

func TestBuildLeaderboard_OrderingAndTieBreak(t *testing.T) {
	groups := []db.GroupTotal{
		{Wallet: "SP1ZZZ", Source: "ststx", Total: decimal.RequireFromString("100")},
		{Wallet: "SP1BBB", Source: "ststx", Total: decimal.RequireFromString("50")},
		{Wallet: "SP1AAA", Source: "ststx", Total: decimal.RequireFromString("50")},
	}

	ranks := BuildLeaderboard(groups, nil)
	require.Len(t, ranks, 3)

	assert.Equal(t, "SP1ZZZ", ranks[0].Wallet)
	// Equal totals break ties by address ascending.
	assert.Equal(t, "SP1AAA", ranks[1].Wallet)
	assert.Equal(t, "SP1BBB", ranks[2].Wallet)

	for i, r := range ranks {
		assert.Equal(t, uint32(i+1), r.Rank)
	}
}

func TestBuildLeaderboard_Deterministic(t *testing.T) {
	groups := []db.GroupTotal{
		{Wallet: "SP1CCC", Source: "ststx", Total: decimal.RequireFromString("10")},
		{Wallet: "SP1AAA", Source: "velar", Total: decimal.RequireFromString("10")},
		{Wallet: "SP1BBB", Source: "bitflow", Total: decimal.RequireFromString("10")},
	}
	wallets := []*models.Wallet{
		{Address: "SP1BBB"},
		{Address: "SP1AAA"},
		{Address: "SP1CCC"},
	}

	first := BuildLeaderboard(groups, wallets)

	// Reversed input ordering must not change the published ranking.
	reversedGroups := []db.GroupTotal{groups[2], groups[1], groups[0]}
	reversedWallets := []*models.Wallet{wallets[2], wallets[1], wallets[0]}
	second := BuildLeaderboard(reversedGroups, reversedWallets)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Rank, second[i].Rank)
		assert.Equal(t, first[i].Wallet, second[i].Wallet)
	}
}

func TestBuildLeaderboard_RegistryWalletWithoutLedgerRows(t *testing.T) {
	wallets := []*models.Wallet{
		{Address: "SP1NEW", SnapshotBalance: 1_000_000, CurrentBalance: 3_000_000},
	}

	ranks := BuildLeaderboard(nil, wallets)
	require.Len(t, ranks, 1)

	assert.Equal(t, "SP1NEW", ranks[0].Wallet)
	assert.Equal(t, "0", ranks[0].DailyPoints)
	assert.Equal(t, "0", ranks[0].ReferralPoints)
	assert.Equal(t, "40", ranks[0].BonusPoints)
}

func TestBuildLeaderboard_LedgerWalletMissingFromRegistry(t *testing.T) {
	// A seeded wallet can have ledger rows before the registry catches up; it
	// still ranks, with no bonus.
	groups := []db.GroupTotal{
		{Wallet: "SP1SEEDED", Source: "migration", Total: decimal.RequireFromString("123")},
	}

	ranks := BuildLeaderboard(groups, nil)
	require.Len(t, ranks, 1)
	assert.Equal(t, "123", ranks[0].DailyPoints)
	assert.Equal(t, "0", ranks[0].BonusPoints)
}

func TestBuildLeaderboard_Empty(t *testing.T) {
	assert.Empty(t, BuildLeaderboard(nil, nil))
}
