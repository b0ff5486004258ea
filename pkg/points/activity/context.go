package activity

import (
	"context"
	"runtime"
	"sync"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/stackingdao/points-engine/pkg/db"
	"github.com/stackingdao/points-engine/pkg/stacks"
)

// Oracle is the slice of the Stacks API client the activities need.
type Oracle interface {
	TipHeight(ctx context.Context) (uint64, error)
	BlockByHeight(ctx context.Context, height uint64) (stacks.Block, error)
	BalancesAtBlock(ctx context.Context, address string, height uint64) (stacks.BalanceVector, error)
	StxBalance(ctx context.Context, address string) (uint64, error)
}

// Context carries the dependencies shared by every activity. The worker
// registers a single instance, so the fetch pool is shared across runs.
type Context struct {
	Logger      *zap.Logger
	Oracle      Oracle
	Wallets     db.WalletRegistry
	Ledger      db.LedgerStore
	Leaderboard db.LeaderboardStore

	// FetchMaxParallelism overrides the default per-chunk fetch pool size.
	FetchMaxParallelism int
	fetchPoolOnce       sync.Once
	fetchPool           pond.Pool
	fetchPoolSize       int
}

// WorkerPool returns the shared pool used for parallel oracle fetches.
func (ac *Context) WorkerPool() pond.Pool {
	ac.fetchPoolOnce.Do(func() {
		maxWorkers := FetchParallelism(ac.FetchMaxParallelism)
		ac.fetchPoolSize = maxWorkers
		ac.fetchPool = pond.NewPool(
			maxWorkers,
			pond.WithQueueSize(maxWorkers*64),
		)
	})

	return ac.fetchPool
}

// WorkerPoolSize exposes the configured pool size for logging purposes.
func (ac *Context) WorkerPoolSize() int {
	if ac.fetchPoolSize != 0 {
		return ac.fetchPoolSize
	}
	return FetchParallelism(ac.FetchMaxParallelism)
}

// FetchParallelism calculates the fetch pool size: 4x CPU, capped so a
// single worker cannot monopolize the upstream API rate limit.
func FetchParallelism(override int) int {
	if override > 0 {
		if override > 64 {
			return 64
		}
		return override
	}

	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}

	parallelism := n * 4
	if parallelism < 2 {
		parallelism = 2
	}
	if parallelism > 64 {
		parallelism = 64
	}

	return parallelism
}
