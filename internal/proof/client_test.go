package proof

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fracvault/internal/platform/logger"
	"fracvault/pkg/platform/backoff"
	"fracvault/pkg/platform/sentinel"
)

func fastRetry() backoff.Policy {
	return backoff.Policy{InitialDelay: time.Millisecond, MaxAttempts: 3}
}

func TestGetAssetProof(t *testing.T) {
	root := solana.NewWallet().PublicKey()
	nodeA := solana.NewWallet().PublicKey()
	nodeB := solana.NewWallet().PublicKey()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "getAssetProof", req["method"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"result": map[string]any{
				"root":  root.String(),
				"proof": []string{nodeA.String(), nodeB.String()},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, logger.New(), WithRetryPolicy(fastRetry()))
	got, err := c.GetAssetProof(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.Equal(t, [32]byte(root), got.Root)
	assert.Equal(t, []solana.PublicKey{nodeA, nodeB}, got.Nodes)
}

func TestGetAsset_PopulatesMetadata(t *testing.T) {
	owner := solana.NewWallet().PublicKey()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"result": map[string]any{
				"ownership": map[string]any{"owner": owner.String()},
				"compression": map[string]any{
					"data_hash":    solana.NewWallet().PublicKey().String(),
					"creator_hash": solana.NewWallet().PublicKey().String(),
					"leaf_id":      7,
				},
				"content": map[string]any{
					"metadata": map[string]any{
						"name":        "Mona Lisa Shard",
						"symbol":      "MONA",
						"description": "fractionalized",
					},
					"links": map[string]any{"image": "https://img.example/mona.png"},
				},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, logger.New(), WithRetryPolicy(fastRetry()))
	got, err := c.GetAsset(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.Equal(t, owner, got.Owner)
	assert.Equal(t, uint64(7), got.LeafID)
	assert.Equal(t, "Mona Lisa Shard", got.Name)
	assert.Equal(t, "MONA", got.Symbol)
	assert.Equal(t, "https://img.example/mona.png", got.Image)
}

func TestCall_RetriesOnRateLimit(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"result":  map[string]any{"root": solana.NewWallet().PublicKey().String(), "proof": []string{}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, logger.New(), WithRetryPolicy(fastRetry()))
	got, err := c.GetAssetProof(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Empty(t, got.Nodes)
}

func TestCall_IndexerErrorMapsToNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"error":   map[string]any{"code": -32000, "message": "asset not found"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, logger.New(), WithRetryPolicy(fastRetry()))
	_, err := c.GetAsset(context.Background(), solana.NewWallet().PublicKey())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestCall_BreakerFailsFastWhenOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, logger.New(), WithRetryPolicy(backoff.Policy{InitialDelay: time.Millisecond, MaxAttempts: 1}))
	// Trip the breaker (default threshold 5).
	for i := 0; i < 5; i++ {
		_, err := c.GetAsset(context.Background(), solana.NewWallet().PublicKey())
		require.Error(t, err)
	}
	// Pretend a probe just happened so the next call cannot reach the server.
	c.probeMu.Lock()
	c.lastProbe = time.Now()
	c.probeMu.Unlock()

	_, err := c.GetAsset(context.Background(), solana.NewWallet().PublicKey())
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
}
