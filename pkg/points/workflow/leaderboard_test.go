package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/stackingdao/points-engine/pkg/db/models"
	"github.com/stackingdao/points-engine/pkg/points/activity"
	"github.com/stackingdao/points-engine/pkg/points/types"
)

type mockLeaderboardActivities struct {
	ranks     []*models.LeaderboardRank
	failWrite bool

	buildCalls    atomic.Int32
	truncateCalls atomic.Int32

	mu          sync.Mutex
	writeSizes  []int
	truncatedAt uint32
}

func (m *mockLeaderboardActivities) BuildLeaderboard(_ context.Context) (types.BuildLeaderboardOutput, error) {
	m.buildCalls.Add(1)
	return types.BuildLeaderboardOutput{Ranks: m.ranks}, nil
}

func (m *mockLeaderboardActivities) WriteLeaderboardRanks(_ context.Context, input types.WriteRanksInput) (types.WriteRanksOutput, error) {
	if m.failWrite {
		return types.WriteRanksOutput{}, errors.New("clickhouse unavailable")
	}
	m.mu.Lock()
	m.writeSizes = append(m.writeSizes, len(input.Ranks))
	m.mu.Unlock()
	return types.WriteRanksOutput{Rows: len(input.Ranks)}, nil
}

func (m *mockLeaderboardActivities) TruncateStaleRanks(_ context.Context, input types.TruncateRanksInput) error {
	m.truncateCalls.Add(1)
	m.mu.Lock()
	m.truncatedAt = input.MaxRank
	m.mu.Unlock()
	return nil
}

func testRanks(n int) []*models.LeaderboardRank {
	ranks := make([]*models.LeaderboardRank, 0, n)
	for i := 0; i < n; i++ {
		ranks = append(ranks, &models.LeaderboardRank{
			Rank:   uint32(i + 1),
			Wallet: fmt.Sprintf("SP1WALLET%04d", i),
		})
	}
	return ranks
}

func newLeaderboardTestEnv(t *testing.T, mock *mockLeaderboardActivities, cfg Config) (*testsuite.TestWorkflowEnvironment, *Context) {
	t.Helper()
	suite := testsuite.WorkflowTestSuite{}
	env := suite.NewTestWorkflowEnvironment()

	wfCtx := &Context{
		ActivityContext: &activity.Context{},
		Config:          cfg,
	}

	env.RegisterWorkflow(wfCtx.RecalculateLeaderboardWorkflow)
	env.RegisterActivity(mock.BuildLeaderboard)
	env.RegisterActivity(mock.WriteLeaderboardRanks)
	env.RegisterActivity(mock.TruncateStaleRanks)

	return env, wfCtx
}

func TestRecalculateLeaderboardWorkflow_WritesInBatchesThenTruncates(t *testing.T) {
	mock := &mockLeaderboardActivities{ranks: testRanks(120)}
	env, wfCtx := newLeaderboardTestEnv(t, mock, Config{})

	env.ExecuteWorkflow(wfCtx.RecalculateLeaderboardWorkflow, types.RecalcInput{BlockHash: "0xdeadbeef"})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var summary types.RecalcSummary
	require.NoError(t, env.GetWorkflowResult(&summary))

	assert.Equal(t, "0xdeadbeef", summary.BlockHash)
	assert.Equal(t, 120, summary.Wallets)
	assert.Equal(t, 120, summary.Rows)
	assert.True(t, summary.Truncated)

	assert.Equal(t, int32(1), mock.buildCalls.Load())
	assert.Equal(t, []int{50, 50, 20}, mock.writeSizes)

	// Ranks past the new tail are dropped.
	assert.Equal(t, int32(1), mock.truncateCalls.Load())
	assert.Equal(t, uint32(120), mock.truncatedAt)
}

func TestRecalculateLeaderboardWorkflow_EmptyLedgerStillTruncates(t *testing.T) {
	mock := &mockLeaderboardActivities{}
	env, wfCtx := newLeaderboardTestEnv(t, mock, Config{})

	env.ExecuteWorkflow(wfCtx.RecalculateLeaderboardWorkflow, types.RecalcInput{})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var summary types.RecalcSummary
	require.NoError(t, env.GetWorkflowResult(&summary))

	assert.Equal(t, 0, summary.Wallets)
	assert.Equal(t, 0, summary.Rows)
	assert.Empty(t, mock.writeSizes)

	// An empty rebuild must still clear every previously published rank.
	assert.Equal(t, int32(1), mock.truncateCalls.Load())
	assert.Equal(t, uint32(0), mock.truncatedAt)
}

func TestRecalculateLeaderboardWorkflow_WriteFailureFailsTheRun(t *testing.T) {
	mock := &mockLeaderboardActivities{ranks: testRanks(10), failWrite: true}
	env, wfCtx := newLeaderboardTestEnv(t, mock, Config{})

	env.ExecuteWorkflow(wfCtx.RecalculateLeaderboardWorkflow, types.RecalcInput{})

	require.True(t, env.IsWorkflowCompleted())
	assert.Error(t, env.GetWorkflowError())

	// The truncate never runs when a write fails, so the previous ranking
	// stays intact.
	assert.Equal(t, int32(0), mock.truncateCalls.Load())
}

func TestRecalculateLeaderboardWorkflow_WriteBatchSizeConfig(t *testing.T) {
	mock := &mockLeaderboardActivities{ranks: testRanks(25)}
	env, wfCtx := newLeaderboardTestEnv(t, mock, Config{WriteBatchSize: 10})

	env.ExecuteWorkflow(wfCtx.RecalculateLeaderboardWorkflow, types.RecalcInput{})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	assert.Equal(t, []int{10, 10, 5}, mock.writeSizes)
}
