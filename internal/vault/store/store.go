// Package store is the authoritative client-side cache of the vault
// collection: full scans, staleness, targeted refresh, lazy metadata
// enrichment, and user position aggregation. All other components read vaults
// through it and mutate only via its fetch operations.
package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"fracvault/internal/ledger"
	"fracvault/internal/platform/metrics"
	"fracvault/internal/proof"
	"fracvault/internal/vault"
	"fracvault/internal/vault/codec"
	"fracvault/internal/vault/metadata"
	"fracvault/pkg/platform/backoff"
	"fracvault/pkg/platform/sentinel"
)

// ChainReader is the slice of the ledger gateway the store consumes.
type ChainReader interface {
	ProgramAccounts(ctx context.Context, dataSize uint64) ([]ledger.KeyedAccount, error)
	AccountData(ctx context.Context, address solana.PublicKey) ([]byte, error)
	TokenAccountsByOwner(ctx context.Context, owner solana.PublicKey) ([]ledger.KeyedAccount, error)
}

// AssetFetcher provides display metadata for enrichment.
type AssetFetcher interface {
	GetAsset(ctx context.Context, assetID solana.PublicKey) (proof.Asset, error)
}

const (
	// metadataBatchSize bounds one enrichment round trip burst.
	metadataBatchSize = 20
	// metadataBatchPause paces consecutive batches against indexer rate
	// limits.
	metadataBatchPause = 200 * time.Millisecond
	// metadataBatchWorkers bounds concurrency inside one batch.
	metadataBatchWorkers = 5
)

// Store holds the vault collection. Readers always see a consistent snapshot;
// redundant concurrent fetches of the same kind are coalesced.
type Store struct {
	log     *log.Logger
	metrics *metrics.Metrics
	chain   ChainReader
	assets  AssetFetcher
	meta    metadata.Store
	ttl     time.Duration
	retry   backoff.Policy

	mu        sync.RWMutex
	vaults    []vault.Vault // newest-first by CreatedAt
	loading   bool
	lastErr   error
	lastFetch time.Time

	pendingMeta map[solana.PublicKey]struct{}

	// One in-flight guard per operation kind: full scans, metadata batches,
	// and position scans never run twice concurrently.
	flights singleflight.Group
}

func New(chain ChainReader, assets AssetFetcher, meta metadata.Store, ttl time.Duration, logger *log.Logger, m *metrics.Metrics, opts ...Option) *Store {
	s := &Store{
		log:         logger,
		metrics:     m,
		chain:       chain,
		assets:      assets,
		meta:        meta,
		ttl:         ttl,
		retry:       backoff.Default,
		pendingMeta: make(map[solana.PublicKey]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Option customizes a Store.
type Option func(*Store)

// WithRetryPolicy overrides the rate-limit backoff applied to ledger reads.
func WithRetryPolicy(p backoff.Policy) Option {
	return func(s *Store) { s.retry = p }
}

// Snapshot is the observable store state for callers that render it.
type Snapshot struct {
	Vaults    []vault.Vault
	Loading   bool
	Err       error
	LastFetch time.Time
}

// Snapshot returns a copy of the collection plus load/error state. Stale data
// stays visible; LastFetch tells the caller how stale.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]vault.Vault, len(s.vaults))
	copy(out, s.vaults)
	return Snapshot{
		Vaults:    out,
		Loading:   s.loading,
		Err:       s.lastErr,
		LastFetch: s.lastFetch,
	}
}

// ByAddress returns one vault from the current snapshot, no network.
func (s *Store) ByAddress(address solana.PublicKey) (vault.Vault, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.vaults {
		if v.Address == address {
			return v, true
		}
	}
	return vault.Vault{}, false
}

// VaultsByStatus filters the current snapshot.
func (s *Store) VaultsByStatus(status vault.Status) []vault.Vault {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []vault.Vault
	for _, v := range s.vaults {
		if v.Status == status {
			out = append(out, v)
		}
	}
	return out
}

// LatestVaults returns up to limit newest vaults.
func (s *Store) LatestVaults(limit int) []vault.Vault {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.vaults) {
		limit = len(s.vaults)
	}
	out := make([]vault.Vault, limit)
	copy(out, s.vaults[:limit])
	return out
}

// Invalidate resets freshness so the next FetchIfStale rescans.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFetch = time.Time{}
}

// FetchIfStale runs a full scan unless the collection is fresh or a scan is
// already in flight. At most one scan runs at a time.
func (s *Store) FetchIfStale(ctx context.Context) error {
	s.mu.RLock()
	fresh := !s.lastFetch.IsZero() && time.Since(s.lastFetch) < s.ttl
	s.mu.RUnlock()
	if fresh {
		return nil
	}
	return s.FetchAll(ctx)
}

// FetchAll scans the program's account space and atomically replaces the
// collection. On failure the previous collection is retained and the error
// recorded (stale-but-available).
func (s *Store) FetchAll(ctx context.Context) error {
	_, err, _ := s.flights.Do("full-scan", func() (any, error) {
		return nil, s.fetchAll(ctx)
	})
	return err
}

func (s *Store) fetchAll(ctx context.Context) error {
	s.setLoading(true)
	defer s.setLoading(false)

	scanStart := time.Now()
	s.metrics.FullScans.Inc()

	// Public RPC endpoints rate-limit program scans aggressively; a 429 is
	// retried with doubling delay before the scan counts as failed.
	var accounts []ledger.KeyedAccount
	err := backoff.Retry(ctx, s.retry, func(ctx context.Context) error {
		var err error
		accounts, err = s.chain.ProgramAccounts(ctx, codec.AccountSize)
		return err
	})
	if err != nil {
		s.metrics.FullScanFailures.Inc()
		s.recordError(fmt.Errorf("full scan: %w", err))
		return err
	}

	fresh := make([]vault.Vault, 0, len(accounts))
	for _, acc := range accounts {
		v, err := codec.DecodeVault(acc.Address, acc.Data)
		if err != nil {
			// Malformed entries are skipped, never fatal for the scan.
			s.log.Printf("skipping undecodable account %s: %v", acc.Address, err)
			continue
		}
		v.FetchedAt = time.Now()
		v.Meta = s.cachedMeta(ctx, v.AssetID)
		fresh = append(fresh, v)
	}

	s.mu.Lock()
	// A targeted refresh that completed after this scan started is newer
	// than the scan's view; keep it.
	existing := make(map[solana.PublicKey]vault.Vault, len(s.vaults))
	for _, v := range s.vaults {
		existing[v.Address] = v
	}
	for i, v := range fresh {
		if prev, ok := existing[v.Address]; ok && prev.FetchedAt.After(scanStart) {
			fresh[i] = prev
		}
	}
	sortNewestFirst(fresh)
	s.vaults = fresh
	s.lastErr = nil
	s.lastFetch = time.Now()
	s.mu.Unlock()

	s.metrics.ScanDuration.Observe(time.Since(scanStart).Seconds())
	return nil
}

// FetchByID refreshes one vault from the ledger and upserts it, keeping the
// newest-first order. Used after confirmed transactions and event
// notifications instead of a full rescan.
func (s *Store) FetchByID(ctx context.Context, address solana.PublicKey) error {
	s.metrics.TargetedRefresh.Inc()

	var data []byte
	err := backoff.Retry(ctx, s.retry, func(ctx context.Context) error {
		var err error
		data, err = s.chain.AccountData(ctx, address)
		return err
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// Vaults are never deleted client-side; a missing account means
			// the ledger pruned it, so the cached record stays.
			return nil
		}
		s.recordError(fmt.Errorf("refresh %s: %w", address, err))
		return err
	}

	v, err := codec.DecodeVault(address, data)
	if err != nil {
		s.recordError(fmt.Errorf("refresh %s: %w", address, err))
		return err
	}
	v.FetchedAt = time.Now()
	v.Meta = s.cachedMeta(ctx, v.AssetID)

	s.mu.Lock()
	defer s.mu.Unlock()
	replaced := false
	for i := range s.vaults {
		if s.vaults[i].Address == address {
			s.vaults[i] = v
			replaced = true
			break
		}
	}
	if !replaced {
		s.vaults = append(s.vaults, v)
	}
	sortNewestFirst(s.vaults)
	s.lastErr = nil
	return nil
}

// FetchMetadataFor enriches vaults lacking display metadata. Requested ids
// join a pending set; overlapping concurrent calls share one in-flight batch
// operation.
func (s *Store) FetchMetadataFor(ctx context.Context, assetIDs []solana.PublicKey) error {
	s.mu.Lock()
	for _, id := range assetIDs {
		s.pendingMeta[id] = struct{}{}
	}
	s.mu.Unlock()

	_, err, _ := s.flights.Do("metadata", func() (any, error) {
		return nil, s.drainMetadata(ctx)
	})
	return err
}

func (s *Store) drainMetadata(ctx context.Context) error {
	for {
		batch := s.takeMetadataBatch()
		if len(batch) == 0 {
			return nil
		}
		s.metrics.MetadataBatches.Inc()

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(metadataBatchWorkers)
		results := make([]*vault.Metadata, len(batch))
		for i, id := range batch {
			g.Go(func() error {
				asset, err := s.assets.GetAsset(gctx, id)
				if err != nil {
					// Not-yet-indexed assets come around on a later pass.
					s.log.Printf("metadata fetch for %s failed: %v", id, err)
					return nil
				}
				results[i] = &vault.Metadata{
					AssetID:     id,
					Name:        asset.Name,
					Symbol:      asset.Symbol,
					Image:       asset.Image,
					Description: asset.Description,
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		for _, meta := range results {
			if meta == nil {
				continue
			}
			if err := s.meta.Save(ctx, *meta); err != nil {
				s.log.Printf("metadata cache save for %s failed: %v", meta.AssetID, err)
			}
			s.attachMeta(*meta)
		}

		// Pace consecutive batches.
		if s.hasPendingMetadata() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(metadataBatchPause):
			}
		}
	}
}

// takeMetadataBatch pops up to metadataBatchSize pending asset ids, skipping
// ones already enriched in the collection.
func (s *Store) takeMetadataBatch() []solana.PublicKey {
	s.mu.Lock()
	defer s.mu.Unlock()

	enriched := make(map[solana.PublicKey]bool, len(s.vaults))
	for _, v := range s.vaults {
		if v.Meta != nil {
			enriched[v.AssetID] = true
		}
	}

	batch := make([]solana.PublicKey, 0, metadataBatchSize)
	for id := range s.pendingMeta {
		delete(s.pendingMeta, id)
		if enriched[id] {
			continue
		}
		batch = append(batch, id)
		if len(batch) == metadataBatchSize {
			break
		}
	}
	return batch
}

func (s *Store) hasPendingMetadata() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pendingMeta) > 0
}

// attachMeta updates the long-lived cache's view inside matching vault
// records.
func (s *Store) attachMeta(meta vault.Metadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.vaults {
		if s.vaults[i].AssetID == meta.AssetID {
			m := meta
			s.vaults[i].Meta = &m
		}
	}
}

// FetchUserPositions aggregates the owner's balances across all fraction
// mints in one bulk token-account pass. Concurrent scans for the same owner
// are coalesced.
func (s *Store) FetchUserPositions(ctx context.Context, owner solana.PublicKey) (vault.UserPosition, error) {
	res, err, _ := s.flights.Do("positions:"+owner.String(), func() (any, error) {
		return s.fetchUserPositions(ctx, owner)
	})
	if err != nil {
		return nil, err
	}
	return res.(vault.UserPosition), nil
}

func (s *Store) fetchUserPositions(ctx context.Context, owner solana.PublicKey) (vault.UserPosition, error) {
	var accounts []ledger.KeyedAccount
	err := backoff.Retry(ctx, s.retry, func(ctx context.Context) error {
		var err error
		accounts, err = s.chain.TokenAccountsByOwner(ctx, owner)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("position scan for %s: %w", owner, err)
	}

	balances := make(map[solana.PublicKey]uint64, len(accounts))
	for _, acc := range accounts {
		tok, err := codec.DecodeTokenAccount(acc.Data)
		if err != nil {
			s.log.Printf("skipping undecodable token account %s: %v", acc.Address, err)
			continue
		}
		balances[tok.Mint] += tok.Amount
	}

	// Match against the current collection so callers only see fraction
	// mints, not the wallet's unrelated tokens.
	s.mu.RLock()
	defer s.mu.RUnlock()
	positions := make(vault.UserPosition)
	for _, v := range s.vaults {
		if amount, ok := balances[v.FractionMint]; ok {
			positions[v.FractionMint] = amount
		}
	}
	return positions, nil
}

func (s *Store) cachedMeta(ctx context.Context, assetID solana.PublicKey) *vault.Metadata {
	meta, err := s.meta.Find(ctx, assetID)
	if err != nil {
		return nil
	}
	return &meta
}

func (s *Store) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

func (s *Store) recordError(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

func sortNewestFirst(vaults []vault.Vault) {
	sort.SliceStable(vaults, func(i, j int) bool {
		if !vaults[i].CreatedAt.Equal(vaults[j].CreatedAt) {
			return vaults[i].CreatedAt.After(vaults[j].CreatedAt)
		}
		return vaults[i].Address.String() < vaults[j].Address.String()
	})
}
