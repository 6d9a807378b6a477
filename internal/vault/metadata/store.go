// Package metadata is the long-lived display metadata cache, keyed by asset
// id. It outlives vault collection refreshes so enrichment work is never
// repeated for known assets.
package metadata

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"fracvault/internal/vault"
)

// Store is interface-driven so the in-memory and Redis implementations can be
// swapped without rewiring the cache store.
type Store interface {
	Find(ctx context.Context, assetID solana.PublicKey) (vault.Metadata, error)
	Save(ctx context.Context, meta vault.Metadata) error
}
