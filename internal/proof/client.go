// Package proof talks to the DAS-style asset API: ownership, compression
// hashes, display metadata, and merkle inclusion proofs for compressed assets.
package proof

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	"fracvault/pkg/platform/backoff"
	"fracvault/pkg/platform/circuit"
	"fracvault/pkg/platform/sentinel"
)

// AssetProof is a merkle inclusion proof for one compressed asset.
type AssetProof struct {
	Root  [32]byte
	Nodes []solana.PublicKey
}

// Asset is the ownership, compression, and display slice of a DAS asset
// record.
type Asset struct {
	ID          solana.PublicKey
	Owner       solana.PublicKey
	Delegate    solana.PublicKey
	DataHash    [32]byte
	CreatorHash [32]byte
	LeafID      uint64

	Name        string
	Symbol      string
	Description string
	Image       string
}

// Client is a JSON-RPC client for the asset API. Calls use a bounded timeout,
// retry with backoff only on rate limiting, and fail fast behind a breaker
// when the endpoint is down.
type Client struct {
	url     string
	http    *http.Client
	breaker *circuit.Breaker
	retry   backoff.Policy
	log     *log.Logger

	probeMu   sync.Mutex
	lastProbe time.Time
}

// probeInterval is how often one request is let through a tripped breaker to
// test whether the endpoint recovered.
const probeInterval = 30 * time.Second

func (c *Client) allowProbe() bool {
	c.probeMu.Lock()
	defer c.probeMu.Unlock()
	if time.Since(c.lastProbe) < probeInterval {
		return false
	}
	c.lastProbe = time.Now()
	return true
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the per-call timeout (default 5s).
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithRetryPolicy overrides the rate-limit retry policy.
func WithRetryPolicy(p backoff.Policy) Option {
	return func(c *Client) { c.retry = p }
}

func NewClient(url string, logger *log.Logger, opts ...Option) *Client {
	c := &Client{
		url:     url,
		http:    &http.Client{Timeout: 5 * time.Second},
		breaker: circuit.New("proof-provider"),
		retry:   backoff.Default,
		log:     logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// GetAssetProof fetches the inclusion proof for an asset. An empty proof set
// is returned as-is; the caller decides whether that is fatal.
func (c *Client) GetAssetProof(ctx context.Context, assetID solana.PublicKey) (AssetProof, error) {
	var raw assetProofResult
	if err := c.call(ctx, "getAssetProof", assetID, &raw); err != nil {
		return AssetProof{}, err
	}

	root, err := decodeHash(raw.Root)
	if err != nil {
		return AssetProof{}, fmt.Errorf("proof root: %w", err)
	}
	nodes := make([]solana.PublicKey, 0, len(raw.Proof))
	for _, n := range raw.Proof {
		pk, err := solana.PublicKeyFromBase58(n)
		if err != nil {
			return AssetProof{}, fmt.Errorf("proof node %q: %w", n, err)
		}
		nodes = append(nodes, pk)
	}
	return AssetProof{Root: root, Nodes: nodes}, nil
}

// GetAsset fetches ownership, compression hashes, and display metadata.
func (c *Client) GetAsset(ctx context.Context, assetID solana.PublicKey) (Asset, error) {
	var raw assetResult
	if err := c.call(ctx, "getAsset", assetID, &raw); err != nil {
		return Asset{}, err
	}

	asset := Asset{
		ID:          assetID,
		LeafID:      raw.Compression.LeafID,
		Name:        raw.Content.Metadata.Name,
		Symbol:      raw.Content.Metadata.Symbol,
		Description: raw.Content.Metadata.Description,
		Image:       raw.Content.Links.Image,
	}
	if raw.Ownership.Owner != "" {
		pk, err := solana.PublicKeyFromBase58(raw.Ownership.Owner)
		if err != nil {
			return Asset{}, fmt.Errorf("asset owner: %w", err)
		}
		asset.Owner = pk
	}
	if raw.Ownership.Delegate != "" {
		if pk, err := solana.PublicKeyFromBase58(raw.Ownership.Delegate); err == nil {
			asset.Delegate = pk
		}
	}
	if raw.Compression.DataHash != "" {
		h, err := decodeHash(raw.Compression.DataHash)
		if err != nil {
			return Asset{}, fmt.Errorf("asset data hash: %w", err)
		}
		asset.DataHash = h
	}
	if raw.Compression.CreatorHash != "" {
		h, err := decodeHash(raw.Compression.CreatorHash)
		if err != nil {
			return Asset{}, fmt.Errorf("asset creator hash: %w", err)
		}
		asset.CreatorHash = h
	}
	return asset, nil
}

type rpcRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      int            `json:"id"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type assetProofResult struct {
	Root   string   `json:"root"`
	Proof  []string `json:"proof"`
	TreeID string   `json:"tree_id"`
}

type assetResult struct {
	Ownership struct {
		Owner    string `json:"owner"`
		Delegate string `json:"delegate"`
	} `json:"ownership"`
	Compression struct {
		DataHash    string `json:"data_hash"`
		CreatorHash string `json:"creator_hash"`
		LeafID      uint64 `json:"leaf_id"`
	} `json:"compression"`
	Content struct {
		JSONURI  string `json:"json_uri"`
		Metadata struct {
			Name        string `json:"name"`
			Symbol      string `json:"symbol"`
			Description string `json:"description"`
		} `json:"metadata"`
		Links struct {
			Image string `json:"image"`
		} `json:"links"`
	} `json:"content"`
}

func (c *Client) call(ctx context.Context, method string, assetID solana.PublicKey, out any) error {
	if c.breaker.IsOpen() && !c.allowProbe() {
		return fmt.Errorf("proof provider %s: %w", method, sentinel.ErrUnavailable)
	}

	err := backoff.Retry(ctx, c.retry, func(ctx context.Context) error {
		return c.doCall(ctx, method, assetID, out)
	})
	if err != nil {
		if _, change := c.breaker.RecordFailure(); change.Opened {
			c.log.Printf("proof provider circuit opened after repeated failures")
		}
		return err
	}
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.log.Printf("proof provider circuit closed")
	}
	return nil
}

func (c *Client) doCall(ctx context.Context, method string, assetID solana.PublicKey, out any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  map[string]any{"id": assetID.String()},
	})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%s: %w", method, sentinel.ErrRateLimited)
	}
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d", method, res.StatusCode)
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}

	var parsed rpcResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("parse %s response: %w", method, err)
	}
	if parsed.Error != nil {
		// The indexer answers "not found" for assets it has not seen yet;
		// that is retry-shortly territory, not a hard failure.
		return fmt.Errorf("%s: %s: %w", method, parsed.Error.Message, sentinel.ErrNotFound)
	}
	if err := json.Unmarshal(parsed.Result, out); err != nil {
		return fmt.Errorf("parse %s result: %w", method, err)
	}
	return nil
}

func decodeHash(raw string) ([32]byte, error) {
	pk, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return [32]byte{}, err
	}
	return [32]byte(pk), nil
}
