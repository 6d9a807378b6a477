package codec

import (
	"bytes"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// EventKind identifies a program lifecycle event.
type EventKind string

const (
	EventVaultCreated     EventKind = "vault_created"
	EventReclaimInitiated EventKind = "reclaim_initiated"
	EventReclaimFinalized EventKind = "reclaim_finalized"
	EventReclaimCancelled EventKind = "reclaim_cancelled"
	EventRedeemed         EventKind = "redeemed"
	EventVaultClosed      EventKind = "vault_closed"
)

// ErrUnknownEvent is returned for payloads whose discriminator matches no
// known event schema.
var ErrUnknownEvent = errors.New("unknown event discriminator")

// eventDiscriminators follow the anchor convention for events:
// sha256("event:<Name>")[:8].
var eventDiscriminators = map[[8]byte]EventKind{
	discriminator("event:VaultCreated"):     EventVaultCreated,
	discriminator("event:ReclaimInitiated"): EventReclaimInitiated,
	discriminator("event:ReclaimFinalized"): EventReclaimFinalized,
	discriminator("event:ReclaimCancelled"): EventReclaimCancelled,
	discriminator("event:Redeemed"):         EventRedeemed,
	discriminator("event:VaultClosed"):      EventVaultClosed,
}

// Event is a decoded program log event. Every event carries the affected vault
// address first, which is what targeted cache refresh needs.
type Event struct {
	Kind  EventKind
	Vault solana.PublicKey
}

type eventPayload struct {
	Discriminator [8]byte
	Vault         solana.PublicKey
}

// DecodeEvent parses a binary event payload emitted via the program's log
// stream.
func DecodeEvent(data []byte) (Event, error) {
	if len(data) < 40 {
		return Event{}, fmt.Errorf("%w: got %d, want at least 40", ErrBadSize, len(data))
	}
	var raw eventPayload
	if err := bin.NewBorshDecoder(data).Decode(&raw); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	kind, ok := eventDiscriminators[raw.Discriminator]
	if !ok {
		return Event{}, ErrUnknownEvent
	}
	return Event{Kind: kind, Vault: raw.Vault}, nil
}

// EncodeEvent builds an event payload; used by the listener tests.
func EncodeEvent(e Event) ([]byte, error) {
	var disc [8]byte
	found := false
	for d, kind := range eventDiscriminators {
		if kind == e.Kind {
			disc, found = d, true
			break
		}
	}
	if !found {
		return nil, ErrUnknownEvent
	}
	buf := new(bytes.Buffer)
	if err := bin.NewBorshEncoder(buf).Encode(eventPayload{Discriminator: disc, Vault: e.Vault}); err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return buf.Bytes(), nil
}
