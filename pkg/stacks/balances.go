package stacks

import (
	"context"
	"fmt"
)

// BalanceVector holds one wallet's balances across the integrated protocols at a single
// block height. Amounts are base-unit decimal strings as returned by the API; they are
// never parsed into native floats (token balances can exceed float precision).
type BalanceVector struct {
	StSTX     string `json:"ststx_balance"`
	Bitflow   string `json:"bitflow"`
	Arkadiko  string `json:"arkadiko"`
	Velar     string `json:"velar"`
	Hermetica string `json:"hermetica"`
}

// BalancesAtBlock returns the per-protocol balance vector for an address at a block height.
func (c *Client) BalancesAtBlock(ctx context.Context, address string, height uint64) (BalanceVector, error) {
	var vector BalanceVector
	path := fmt.Sprintf("/v1/points/balances/%s?height=%d", address, height)
	if err := c.getJSON(ctx, path, &vector); err != nil {
		return BalanceVector{}, &QueryError{Op: "balances", Address: address, Height: height, Err: err}
	}
	return vector, nil
}

// StxBalance returns an address's STX balance (base units) at the chain tip.
// Used by the wallet balance refresher, independent of point accrual.
func (c *Client) StxBalance(ctx context.Context, address string) (uint64, error) {
	var out struct {
		Balance uint64 `json:"balance,string"`
	}
	path := fmt.Sprintf("/extended/v1/address/%s/stx", address)
	if err := c.getJSON(ctx, path, &out); err != nil {
		return 0, &QueryError{Op: "stx_balance", Address: address, Err: err}
	}
	return out.Balance, nil
}
