package workflow

import (
	"github.com/stackingdao/points-engine/pkg/points/activity"
)

// Config holds the workflow tuning knobs. Zero values fall back to defaults
// inside each workflow, so a bare Context is usable in tests.
type Config struct {
	// BatchSize is the number of wallets per accrual chunk.
	BatchSize int
	// MaxParallelChunks bounds how many accrual chunks run at once.
	MaxParallelChunks int
	// WriteBatchSize is the number of leaderboard ranks per insert batch.
	WriteBatchSize int
}

const (
	DefaultBatchSize         = 50
	DefaultMaxParallelChunks = 4
	DefaultWriteBatchSize    = 50
)

// Context holds the workflow context.
type Context struct {
	ActivityContext *activity.Context
	Config          Config
}

func (wc *Context) batchSize(override int) int {
	if override > 0 {
		return override
	}
	if wc.Config.BatchSize > 0 {
		return wc.Config.BatchSize
	}
	return DefaultBatchSize
}

func (wc *Context) maxParallelChunks() int {
	if wc.Config.MaxParallelChunks > 0 {
		return wc.Config.MaxParallelChunks
	}
	return DefaultMaxParallelChunks
}

func (wc *Context) writeBatchSize() int {
	if wc.Config.WriteBatchSize > 0 {
		return wc.Config.WriteBatchSize
	}
	return DefaultWriteBatchSize
}

// chunkAddresses splits addresses into fixed-size chunks; only the final chunk
// may be short. A 137-address registry with size 50 yields 50/50/37.
func chunkAddresses(addresses []string, size int) [][]string {
	if size <= 0 || len(addresses) == 0 {
		return nil
	}

	chunks := make([][]string, 0, (len(addresses)+size-1)/size)
	for start := 0; start < len(addresses); start += size {
		end := start + size
		if end > len(addresses) {
			end = len(addresses)
		}
		chunks = append(chunks, addresses[start:end])
	}

	return chunks
}
