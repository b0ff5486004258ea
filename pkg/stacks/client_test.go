package stacks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(endpoints ...string) *Client {
	return NewWithOpts(Opts{
		Endpoints:       endpoints,
		RPS:             1000,
		Burst:           1000,
		BreakerFailures: 2,
		BreakerCooldown: 100 * time.Millisecond,
	})
}

func TestTipHeight(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/info", r.URL.Path)
		fmt.Fprint(w, `{"stacks_tip_height": 149167, "stacks_tip": "0xabc"}`)
	}))
	defer srv.Close()

	height, err := testClient(srv.URL).TipHeight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(149167), height)
}

func TestTipHeight_ZeroTipIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).TipHeight(context.Background())
	require.Error(t, err)

	var qerr *QueryError
	require.True(t, errors.As(err, &qerr))
	assert.Equal(t, "core_info", qerr.Op)
}

func TestBlockByHeight(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/extended/v2/blocks/123", r.URL.Path)
		fmt.Fprint(w, `{"height": 123, "hash": "0xdeadbeef"}`)
	}))
	defer srv.Close()

	block, err := testClient(srv.URL).BlockByHeight(context.Background(), 123)
	require.NoError(t, err)
	assert.Equal(t, Block{Height: 123, Hash: "0xdeadbeef"}, block)
}

func TestBalancesAtBlock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/points/balances/SP1WALLET", r.URL.Path)
		require.Equal(t, "42", r.URL.Query().Get("height"))
		fmt.Fprint(w, `{"ststx_balance": "1000000", "bitflow": "250"}`)
	}))
	defer srv.Close()

	vector, err := testClient(srv.URL).BalancesAtBlock(context.Background(), "SP1WALLET", 42)
	require.NoError(t, err)
	assert.Equal(t, "1000000", vector.StSTX)
	assert.Equal(t, "250", vector.Bitflow)
	assert.Empty(t, vector.Arkadiko)
}

func TestStxBalance_StringEncodedNumber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/extended/v1/address/SP1WALLET/stx", r.URL.Path)
		fmt.Fprint(w, `{"balance": "123456789"}`)
	}))
	defer srv.Close()

	balance, err := testClient(srv.URL).StxBalance(context.Background(), "SP1WALLET")
	require.NoError(t, err)
	assert.Equal(t, uint64(123456789), balance)
}

func TestGetJSON_FailsOverToSecondaryEndpoint(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"stacks_tip_height": 99, "stacks_tip": "0x1"}`)
	}))
	defer good.Close()

	height, err := testClient(bad.URL, good.URL).TipHeight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(99), height)
}

func TestGetJSON_BreakerSkipsFailingEndpoint(t *testing.T) {
	var badHits atomic.Int32
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		badHits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"stacks_tip_height": 99, "stacks_tip": "0x1"}`)
	}))
	defer good.Close()

	c := testClient(bad.URL, good.URL)

	// Trip the breaker (threshold 2), then confirm the bad endpoint stops
	// receiving traffic while the breaker is open.
	for i := 0; i < 4; i++ {
		_, err := c.TipHeight(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, int32(2), badHits.Load())
}

func TestGetJSON_ClientErrorDoesNotTripBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	for i := 0; i < 4; i++ {
		_, err := c.BlockByHeight(context.Background(), 1)
		require.Error(t, err)
	}

	// 404s are the caller's problem, not the endpoint's; every attempt still
	// reaches the server.
	assert.Equal(t, int32(4), hits.Load())
}

func TestQueryError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &QueryError{Op: "balances", Address: "SP1WALLET", Height: 7, Err: inner}

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "SP1WALLET")
	assert.Contains(t, err.Error(), "balances")
}
