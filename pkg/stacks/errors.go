package stacks

import "fmt"

// QueryError wraps a failed chain query with the context needed to skip or retry it.
// Callers retry these with bounded backoff; a still-failing address is skipped for the
// run rather than aborting the whole chunk.
type QueryError struct {
	Op      string
	Address string
	Height  uint64
	Err     error
}

func (e *QueryError) Error() string {
	if e.Address != "" {
		return fmt.Sprintf("stacks %s query for %s at height %d: %v", e.Op, e.Address, e.Height, e.Err)
	}
	return fmt.Sprintf("stacks %s query: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }
