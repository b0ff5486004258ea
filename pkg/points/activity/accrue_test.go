package activity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stackingdao/points-engine/pkg/db"
	"github.com/stackingdao/points-engine/pkg/db/models"
	"github.com/stackingdao/points-engine/pkg/points/types"
	"github.com/stackingdao/points-engine/pkg/stacks"
)

// fakeOracle serves canned balance vectors and fails on demand.
type fakeOracle struct {
	tip      uint64
	vectors  map[string]stacks.BalanceVector
	failing  map[string]bool
	balances map[string]uint64
}

func (f *fakeOracle) TipHeight(context.Context) (uint64, error) {
	return f.tip, nil
}

func (f *fakeOracle) BlockByHeight(_ context.Context, height uint64) (stacks.Block, error) {
	return stacks.Block{Height: height, Hash: fmt.Sprintf("0x%x", height)}, nil
}

func (f *fakeOracle) BalancesAtBlock(_ context.Context, address string, height uint64) (stacks.BalanceVector, error) {
	if f.failing[address] {
		return stacks.BalanceVector{}, &stacks.QueryError{Op: "balances", Address: address, Height: height, Err: errors.New("timeout")}
	}
	return f.vectors[address], nil
}

func (f *fakeOracle) StxBalance(_ context.Context, address string) (uint64, error) {
	if f.failing[address] {
		return 0, &stacks.QueryError{Op: "stx_balance", Address: address, Err: errors.New("timeout")}
	}
	return f.balances[address], nil
}

// fakeStore records writes in memory behind the store interfaces.
type fakeStore struct {
	mu        sync.Mutex
	addresses []string
	wallets   []*models.Wallet
	entries   []*models.LedgerEntry
	keys      map[string]bool
	current   map[string]uint64
	ranks     []*models.LeaderboardRank
	truncated []uint32
	groups    []db.GroupTotal
}

func newFakeStore(addresses ...string) *fakeStore {
	return &fakeStore{
		addresses: addresses,
		keys:      map[string]bool{},
		current:   map[string]uint64{},
	}
}

func (f *fakeStore) ListWalletAddresses(context.Context) ([]string, error) {
	return f.addresses, nil
}

func (f *fakeStore) ReadWallets(context.Context) ([]*models.Wallet, error) {
	return f.wallets, nil
}

func (f *fakeStore) RegisterWallets(_ context.Context, wallets []*models.Wallet) (int, error) {
	f.wallets = append(f.wallets, wallets...)
	return len(wallets), nil
}

func (f *fakeStore) UpsertCurrentBalances(_ context.Context, balances map[string]uint64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for address, balance := range balances {
		f.current[address] = balance
	}
	return len(balances), nil
}

func (f *fakeStore) SnapshotBalances(_ context.Context, balances map[string]uint64) (int, error) {
	return len(balances), nil
}

func (f *fakeStore) InsertLedgerEntries(_ context.Context, entries []*models.LedgerEntry) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inserted := 0
	for _, e := range entries {
		if f.keys[e.Key()] {
			continue
		}
		f.keys[e.Key()] = true
		f.entries = append(f.entries, e)
		inserted++
	}
	return inserted, nil
}

func (f *fakeStore) AggregateBySourceAndWallet(context.Context) ([]db.GroupTotal, error) {
	return f.groups, nil
}

func (f *fakeStore) UpsertRanks(_ context.Context, ranks []*models.LeaderboardRank) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ranks = append(f.ranks, ranks...)
	return len(ranks), nil
}

func (f *fakeStore) TruncateRanksBeyond(_ context.Context, maxRank uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.truncated = append(f.truncated, maxRank)
	return nil
}

func newTestContext(oracle *fakeOracle, store *fakeStore) *Context {
	return &Context{
		Logger:              zap.NewNop(),
		Oracle:              oracle,
		Wallets:             store,
		Ledger:              store,
		Leaderboard:         store,
		FetchMaxParallelism: 4,
	}
}

func TestResolveBlock_TipWhenHeightZero(t *testing.T) {
	ac := newTestContext(&fakeOracle{tip: 500}, newFakeStore())

	out, err := ac.ResolveBlock(context.Background(), types.ResolveBlockInput{})
	require.NoError(t, err)
	assert.Equal(t, uint64(500), out.Block.Height)
	assert.NotEmpty(t, out.Block.Hash)
}

func TestResolveBlock_PinnedHeight(t *testing.T) {
	ac := newTestContext(&fakeOracle{tip: 500}, newFakeStore())

	out, err := ac.ResolveBlock(context.Background(), types.ResolveBlockInput{Height: 123})
	require.NoError(t, err)
	assert.Equal(t, uint64(123), out.Block.Height)
}

func TestAccrueChunk_WritesSparseEntries(t *testing.T) {
	oracle := &fakeOracle{
		vectors: map[string]stacks.BalanceVector{
			"SP1AAA": {StSTX: "100", Arkadiko: "50"},
			"SP1BBB": {Bitflow: "10"},
			"SP1CCC": {}, // holds nothing, writes nothing
		},
	}
	store := newFakeStore("SP1AAA", "SP1BBB", "SP1CCC")
	ac := newTestContext(oracle, store)

	out, err := ac.AccrueChunk(context.Background(), types.AccrueChunkInput{
		Block:     stacks.Block{Height: 42, Hash: "0x2a"},
		Addresses: []string{"SP1AAA", "SP1BBB", "SP1CCC"},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, out.Wallets)
	assert.Equal(t, 3, out.Rows)
	assert.Equal(t, 0, out.Skipped)

	require.Len(t, store.entries, 3)
	for _, e := range store.entries {
		assert.Equal(t, "0x2a", e.Block)
	}
}

func TestAccrueChunk_RerunWritesNothingNew(t *testing.T) {
	oracle := &fakeOracle{
		vectors: map[string]stacks.BalanceVector{
			"SP1AAA": {StSTX: "100"},
		},
	}
	store := newFakeStore("SP1AAA")
	ac := newTestContext(oracle, store)

	input := types.AccrueChunkInput{
		Block:     stacks.Block{Height: 42, Hash: "0x2a"},
		Addresses: []string{"SP1AAA"},
	}

	first, err := ac.AccrueChunk(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Rows)

	second, err := ac.AccrueChunk(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Rows)
	assert.Len(t, store.entries, 1)
}

func TestAccrueChunk_FailingAddressIsSkippedNotFatal(t *testing.T) {
	oracle := &fakeOracle{
		vectors: map[string]stacks.BalanceVector{
			"SP1AAA": {StSTX: "100"},
			"SP1CCC": {StSTX: "300"},
		},
		failing: map[string]bool{"SP1BBB": true},
	}
	store := newFakeStore("SP1AAA", "SP1BBB", "SP1CCC")
	ac := newTestContext(oracle, store)

	out, err := ac.AccrueChunk(context.Background(), types.AccrueChunkInput{
		Block:     stacks.Block{Height: 42, Hash: "0x2a"},
		Addresses: []string{"SP1AAA", "SP1BBB", "SP1CCC"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, out.Wallets)
	assert.Equal(t, 1, out.Skipped)
	assert.Len(t, store.entries, 2)
}

func TestRefreshWalletBalances(t *testing.T) {
	oracle := &fakeOracle{
		balances: map[string]uint64{
			"SP1AAA": 1_000_000,
			"SP1BBB": 2_000_000,
		},
		failing: map[string]bool{"SP1CCC": true},
	}
	store := newFakeStore("SP1AAA", "SP1BBB", "SP1CCC")
	ac := newTestContext(oracle, store)

	out, err := ac.RefreshWalletBalances(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, out.Wallets)
	assert.Equal(t, 1, out.Skipped)
	assert.Equal(t, uint64(1_000_000), store.current["SP1AAA"])
	assert.Equal(t, uint64(2_000_000), store.current["SP1BBB"])
}

func TestBuildLeaderboardActivity(t *testing.T) {
	store := newFakeStore()
	store.wallets = []*models.Wallet{
		{Address: "SP1AAA", SnapshotBalance: 0, CurrentBalance: 1_000_000},
	}
	ac := newTestContext(&fakeOracle{}, store)

	out, err := ac.BuildLeaderboard(context.Background())
	require.NoError(t, err)

	require.Len(t, out.Ranks, 1)
	assert.Equal(t, "SP1AAA", out.Ranks[0].Wallet)
	assert.Equal(t, "20", out.Ranks[0].BonusPoints)
}

func TestTruncateStaleRanks(t *testing.T) {
	store := newFakeStore()
	ac := newTestContext(&fakeOracle{}, store)

	require.NoError(t, ac.TruncateStaleRanks(context.Background(), types.TruncateRanksInput{MaxRank: 7}))
	assert.Equal(t, []uint32{7}, store.truncated)
}
