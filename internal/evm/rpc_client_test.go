package evm

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	testFactory = common.HexToAddress("0x420DD381b31aEf6683db6B902084cB0FFECe40Da")
	testRouter  = common.HexToAddress("0xcF77a3Ba9A5CA399B7c97c74d54e5b1Beb874E43")
	testPool    = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

// rpcWord hex-encodes a big.Int as one 32-byte result word.
func rpcWord(n *big.Int) string {
	var w [32]byte
	n.FillBytes(w[:])
	return hex.EncodeToString(w[:])
}

// newRPCServer serves canned eth_call results keyed by selector.
func newRPCServer(t *testing.T, results map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		call, ok := req.Params[0].(map[string]interface{})
		if !ok {
			t.Errorf("unexpected params: %v", req.Params)
			return
		}
		data := call["data"].(string)
		sel := data[2:10] // strip 0x, take 4-byte selector
		result, ok := results[sel]
		if !ok {
			t.Errorf("no canned result for selector %s", sel)
			return
		}
		resp := rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: json.RawMessage(`"0x` + result + `"`)}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestRPCClient_GetReserves(t *testing.T) {
	r0 := big.NewInt(5_000_000)
	r1 := big.NewInt(360_000)
	ts := big.NewInt(1_700_000_000)

	srv := newRPCServer(t, map[string]string{
		hex.EncodeToString(selGetReserves): rpcWord(r0) + rpcWord(r1) + rpcWord(ts),
	})
	defer srv.Close()

	client, err := NewRPCClient([]string{srv.URL}, testFactory)
	if err != nil {
		t.Fatalf("NewRPCClient failed: %v", err)
	}

	res, err := client.GetReserves(context.Background(), testPool)
	if err != nil {
		t.Fatalf("GetReserves failed: %v", err)
	}
	if res.Reserve0.Cmp(r0) != 0 || res.Reserve1.Cmp(r1) != 0 {
		t.Errorf("reserves = (%s, %s), want (%s, %s)", res.Reserve0, res.Reserve1, r0, r1)
	}
	if res.UpdatedAt != ts.Int64() {
		t.Errorf("UpdatedAt = %d, want %d", res.UpdatedAt, ts.Int64())
	}
}

func TestRPCClient_GetPool_ZeroAddressWhenAbsent(t *testing.T) {
	srv := newRPCServer(t, map[string]string{
		hex.EncodeToString(selGetPool): rpcWord(big.NewInt(0)),
	})
	defer srv.Close()

	client, err := NewRPCClient([]string{srv.URL}, testFactory)
	if err != nil {
		t.Fatalf("NewRPCClient failed: %v", err)
	}

	pool, err := client.GetPool(context.Background(), testPool, testRouter, false)
	if err != nil {
		t.Fatalf("GetPool failed: %v", err)
	}
	if pool != (common.Address{}) {
		t.Errorf("pool = %s, want zero address", pool.Hex())
	}
}

func TestRPCClient_QuoteWithoutRouter(t *testing.T) {
	client, err := NewRPCClient([]string{"http://localhost:0"}, testFactory)
	if err != nil {
		t.Fatalf("NewRPCClient failed: %v", err)
	}

	_, err = client.QuoteAmountOut(context.Background(), big.NewInt(1), testPool, testRouter)
	if !errors.Is(err, ErrQuoteUnsupported) {
		t.Errorf("expected ErrQuoteUnsupported, got %v", err)
	}
}

func TestRPCClient_EndpointFailover(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer failing.Close()

	working := newRPCServer(t, map[string]string{
		hex.EncodeToString(selToken0): rpcWord(new(big.Int).SetBytes(testPool.Bytes())),
	})
	defer working.Close()

	client, err := NewRPCClient(
		[]string{failing.URL, working.URL},
		testFactory,
		WithMaxRetries(3),
		WithRetryDelay(time.Millisecond),
	)
	if err != nil {
		t.Fatalf("NewRPCClient failed: %v", err)
	}

	// The rotation guarantees the working endpoint is reached within the
	// retry budget even when attempts land on the failing one.
	got, err := client.Token0(context.Background(), testPool)
	if err != nil {
		t.Fatalf("Token0 failed despite healthy endpoint in pool: %v", err)
	}
	if got != testPool {
		t.Errorf("token0 = %s, want %s", got.Hex(), testPool.Hex())
	}
}

func TestRPCClient_Timeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server detects the client disconnect and
		// cancels the request context; otherwise Close() deadlocks.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer slow.Close()

	client, err := NewRPCClient([]string{slow.URL}, testFactory, WithMaxRetries(0))
	if err != nil {
		t.Fatalf("NewRPCClient failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = client.Token0(ctx, testPool)
	if !errors.Is(err, ErrUpstreamTimeout) {
		t.Errorf("expected ErrUpstreamTimeout, got %v", err)
	}
}
