// Package events keeps the vault cache current between TTL refreshes by
// watching the program's log stream. Structured events carry the affected
// vault address and trigger a targeted refresh; when program activity is
// visible but not decodable, the listener falls back to a full rescan rather
// than serve stale state.
package events

import (
	"context"
	"encoding/base64"
	"log"
	"strings"
	"sync"

	"github.com/gagliardetto/solana-go"

	"fracvault/internal/journal"
	"fracvault/internal/ledger"
	"fracvault/internal/platform/metrics"
	"fracvault/internal/vault/codec"
)

// logDataPrefix introduces a base64 event payload in a program log line.
const logDataPrefix = "Program data: "

// activityMarkers are instruction traces that indicate vault activity even
// when no structured event payload could be decoded from the batch.
var activityMarkers = []string{
	"Instruction: CreateVault",
	"Instruction: InitializeReclaim",
	"Instruction: ReclaimInstant",
	"Instruction: CancelReclaim",
	"Instruction: FinalizeReclaim",
	"Instruction: Redeem",
	"Instruction: CloseVault",
}

// Subscriber opens program log subscriptions.
type Subscriber interface {
	SubscribeLogs(ctx context.Context) (ledger.LogSubscription, error)
}

// Refresher is the cache surface the listener drives.
type Refresher interface {
	FetchByID(ctx context.Context, address solana.PublicKey) error
	FetchAll(ctx context.Context) error
}

// Recorder receives journal entries for observed ledger events; may be nil.
type Recorder interface {
	Record(ctx context.Context, event journal.Event) error
}

// Listener consumes the program log stream and refreshes the cache.
type Listener struct {
	log     *log.Logger
	metrics *metrics.Metrics
	sub     Subscriber
	store   Refresher
	journal Recorder

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Option customizes a Listener.
type Option func(*Listener)

// WithJournal records observed ledger events to the given sink.
func WithJournal(r Recorder) Option {
	return func(l *Listener) { l.journal = r }
}

func New(sub Subscriber, store Refresher, logger *log.Logger, m *metrics.Metrics, opts ...Option) *Listener {
	l := &Listener{
		log:     logger,
		metrics: m,
		sub:     sub,
		store:   store,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start launches the listener goroutine. A second call while running is a
// no-op, so at most one subscription is ever open. A failed subscribe is
// logged and absorbed; the cache still converges through its TTL refresh.
func (l *Listener) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return
	}
	l.running = true
	ctx, l.cancel = context.WithCancel(ctx)
	l.done = make(chan struct{})
	go l.run(ctx, l.done)
}

// Close stops the listener and waits for the goroutine to exit. Safe to call
// more than once.
func (l *Listener) Close() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	cancel, done := l.cancel, l.done
	l.mu.Unlock()

	cancel()
	<-done
}

func (l *Listener) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	sub, err := l.sub.SubscribeLogs(ctx)
	if err != nil {
		l.log.Printf("log subscription unavailable, relying on periodic refresh: %v", err)
		return
	}
	defer sub.Unsubscribe()

	for {
		lines, err := sub.Recv(ctx)
		if err != nil {
			if ctx.Err() == nil {
				l.log.Printf("log subscription closed: %v", err)
			}
			return
		}
		l.process(ctx, lines)
	}
}

// process handles one transaction's log batch. Each decoded event refreshes
// its vault; a batch that shows activity markers but yielded no decodable
// event forces a full rescan.
func (l *Listener) process(ctx context.Context, lines []string) {
	decoded := false
	sawActivity := false

	for _, line := range lines {
		if !sawActivity && hasActivityMarker(line) {
			sawActivity = true
		}

		payload, ok := strings.CutPrefix(line, logDataPrefix)
		if !ok {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			continue
		}
		event, err := codec.DecodeEvent(raw)
		if err != nil {
			// Payload from a CPI of another program, or a schema we do not
			// know. The marker check decides whether to rescan.
			continue
		}

		decoded = true
		l.metrics.EventsDecoded.Inc()
		if err := l.store.FetchByID(ctx, event.Vault); err != nil {
			l.log.Printf("refresh after %s event for vault %s failed: %v", event.Kind, event.Vault, err)
		}
		l.record(ctx, event)
	}

	if !decoded && sawActivity {
		l.metrics.EventsFallback.Inc()
		if err := l.store.FetchAll(ctx); err != nil {
			l.log.Printf("fallback rescan failed: %v", err)
		}
	}
}

func (l *Listener) record(ctx context.Context, event codec.Event) {
	if l.journal == nil {
		return
	}
	err := l.journal.Record(ctx, journal.Event{
		Kind:   journal.KindLedgerEvent,
		Vault:  event.Vault.String(),
		Detail: string(event.Kind),
	})
	if err != nil {
		l.log.Printf("journal record for %s event failed: %v", event.Kind, err)
	}
}

func hasActivityMarker(line string) bool {
	for _, marker := range activityMarkers {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}
