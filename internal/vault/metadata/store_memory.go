package metadata

import (
	"context"
	"sync"

	"github.com/gagliardetto/solana-go"

	"fracvault/internal/vault"
	"fracvault/pkg/platform/sentinel"
)

// InMemoryStore keeps the initial implementation lightweight and testable.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[solana.PublicKey]vault.Metadata
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{records: make(map[solana.PublicKey]vault.Metadata)}
}

func (s *InMemoryStore) Find(_ context.Context, assetID solana.PublicKey) (vault.Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if meta, ok := s.records[assetID]; ok {
		return meta, nil
	}
	return vault.Metadata{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) Save(_ context.Context, meta vault.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[meta.AssetID] = meta
	return nil
}
