package vault

import (
	"math/bits"
	"time"

	"github.com/gagliardetto/solana-go"
)

// AmountScale is the fixed-point scale of fractional token amounts: one whole
// token is 1e9 base units. All uint64 amounts in this package are base units.
const AmountScale = 1_000_000_000

// Status is the reclaim lifecycle state of a vault. Transitions are
// one-directional except Cancel (ReclaimInitiated back to Active).
type Status uint8

const (
	StatusActive Status = iota
	StatusReclaimInitiated
	StatusReclaimedFinalized
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusReclaimInitiated:
		return "reclaim_initiated"
	case StatusReclaimedFinalized:
		return "reclaimed_finalized"
	case StatusClosed:
		return "closed"
	}
	return "unknown"
}

// ParseStatus maps the wire/status-query representation back to a Status.
func ParseStatus(raw string) (Status, bool) {
	switch raw {
	case "active":
		return StatusActive, true
	case "reclaim_initiated":
		return StatusReclaimInitiated, true
	case "reclaimed_finalized":
		return StatusReclaimedFinalized, true
	case "closed":
		return StatusClosed, true
	}
	return 0, false
}

// Vault is one fractionalized asset and its reclaim policy as decoded from the
// ledger, plus client-side bookkeeping.
type Vault struct {
	Address      solana.PublicKey
	AssetID      solana.PublicKey
	FractionMint solana.PublicKey
	Creator      solana.PublicKey

	// TotalSupply never changes after creation.
	TotalSupply uint64
	Status      Status
	CreatedAt   time.Time

	// Reclaim bookkeeping; zero values outside an active reclaim.
	Initiator             solana.PublicKey
	InitiatedAt           time.Time
	TokensInEscrow        uint64
	TotalCompensation     uint64
	RemainingCompensation uint64
	PriceSnapshot         uint64

	// Policy thresholds, basis points unless noted.
	MinReclaimBps   uint16
	MinLiquidityBps uint16
	MinVolume30dBps uint16
	MinPoolAge      time.Duration

	// FetchedAt is when this record was read from the ledger. A full-scan
	// merge keeps the cached record when its FetchedAt is newer than the
	// scan's start (see store).
	FetchedAt time.Time

	// Meta is nil until lazily enriched from the asset API.
	Meta *Metadata
}

// Metadata is the display record for an asset, cached separately because it
// costs an extra external round trip.
type Metadata struct {
	AssetID     solana.PublicKey
	Name        string
	Symbol      string
	Image       string
	Description string
}

// UserPosition maps fraction mints to the connected wallet's balances. Derived
// per connection, never persisted.
type UserPosition map[solana.PublicKey]uint64

// MeetsShare reports whether balance/TotalSupply reaches the given basis-point
// threshold. Exact integer comparison via 128-bit cross multiplication, so the
// 80%-of-1M boundary lands on the right side.
func (v Vault) MeetsShare(balance uint64, thresholdBps uint64) bool {
	if v.TotalSupply == 0 {
		return false
	}
	lhsHi, lhsLo := bits.Mul64(balance, 10_000)
	rhsHi, rhsLo := bits.Mul64(v.TotalSupply, thresholdBps)
	if lhsHi != rhsHi {
		return lhsHi > rhsHi
	}
	return lhsLo >= rhsLo
}

// Share returns the holder's fraction of total supply for display purposes.
func (v Vault) Share(balance uint64) float64 {
	if v.TotalSupply == 0 {
		return 0
	}
	return float64(balance) / float64(v.TotalSupply)
}
