package stacks

import (
	"context"
	"fmt"
)

// Block identifies a single Stacks block.
type Block struct {
	Height uint64 `json:"height"`
	Hash   string `json:"hash"`
}

type coreInfoResponse struct {
	StacksTipHeight uint64 `json:"stacks_tip_height"`
	StacksTip       string `json:"stacks_tip"`
}

// TipHeight returns the current Stacks chain tip height.
func (c *Client) TipHeight(ctx context.Context) (uint64, error) {
	var info coreInfoResponse
	if err := c.getJSON(ctx, "/v2/info", &info); err != nil {
		return 0, &QueryError{Op: "core_info", Err: err}
	}
	if info.StacksTipHeight == 0 {
		return 0, &QueryError{Op: "core_info", Err: fmt.Errorf("node reports zero tip height")}
	}
	return info.StacksTipHeight, nil
}

// BlockByHeight returns the identity (height, hash) of the block at the given height.
func (c *Client) BlockByHeight(ctx context.Context, height uint64) (Block, error) {
	var block Block
	path := fmt.Sprintf("/extended/v2/blocks/%d", height)
	if err := c.getJSON(ctx, path, &block); err != nil {
		return Block{}, &QueryError{Op: "block", Height: height, Err: err}
	}
	if block.Hash == "" {
		return Block{}, &QueryError{Op: "block", Height: height, Err: fmt.Errorf("empty block hash")}
	}
	return block, nil
}
