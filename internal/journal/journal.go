// Package journal is the append-only record of observed reclaim activity:
// actions this client confirmed and lifecycle events seen on the ledger. It
// exists for operators; the cache never reads from it.
package journal

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind labels a journal entry.
type Kind string

const (
	KindReclaimInitialized Kind = "reclaim_initialized"
	KindReclaimInstant     Kind = "reclaim_instant"
	KindReclaimCancelled   Kind = "reclaim_cancelled"
	KindReclaimFinalized   Kind = "reclaim_finalized"
	KindLedgerEvent        Kind = "ledger_event"
)

// Event is one journal entry.
type Event struct {
	ID        uuid.UUID
	Kind      Kind
	Vault     string
	Signature string
	Detail    string
	Timestamp time.Time
}

// Store is append-only and interface-driven so tests and deployments can swap
// sinks.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByVault(ctx context.Context, vault string) ([]Event, error)
}

// Publisher stamps and persists journal events.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

func (p *Publisher) Record(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return p.store.Append(ctx, event)
}

func (p *Publisher) ListByVault(ctx context.Context, vault string) ([]Event, error) {
	return p.store.ListByVault(ctx, vault)
}
