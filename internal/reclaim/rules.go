// Package reclaim holds the lifecycle rules for recovering a vaulted asset:
// which transitions are legal, who may perform them, and whether a holding
// qualifies for the instant or the escrow path. The rules are pure; the
// orchestrator applies them against fresh balances at submission time.
package reclaim

import (
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"

	"fracvault/internal/platform/config"
	"fracvault/internal/vault"
)

// Path selects the transaction variant for an initiation.
type Path int

const (
	// PathEscrow locks the holding for the escrow period before the asset is
	// released.
	PathEscrow Path = iota
	// PathInstant burns the holding and releases the asset in one step,
	// available to effectively-complete holders.
	PathInstant
)

func (p Path) String() string {
	if p == PathInstant {
		return "instant"
	}
	return "escrow"
}

// instantThresholdBps is the share at which the client prepares the instant
// path: 99.99%, absorbing fixed-point dust from transfers and fees. This is a
// pre-submission policy decision, not a separate ledger state.
const instantThresholdBps = 9_999

// SelectPath decides instant versus escrow from the holder's share. Callers
// must pass a balance fetched at submission time; a race against a concurrent
// transfer surfaces as an on-chain rejection, not here.
func SelectPath(v vault.Vault, balance uint64) (Path, error) {
	if !v.MeetsShare(balance, uint64(v.MinReclaimBps)) {
		return 0, fmt.Errorf("%w: have %.2f%%, need %.2f%%",
			ErrNotEligible, v.Share(balance)*100, float64(v.MinReclaimBps)/100)
	}
	if v.MeetsShare(balance, instantThresholdBps) {
		return PathInstant, nil
	}
	return PathEscrow, nil
}

// CanInitialize checks the Active → ReclaimInitiated precondition on status
// only; share eligibility is SelectPath's job.
func CanInitialize(v vault.Vault) error {
	if v.Status != vault.StatusActive {
		return fmt.Errorf("%w: status %s", ErrInvalidVaultState, v.Status)
	}
	return nil
}

// CanCancel checks ReclaimInitiated → Active: only the original initiator may
// back out.
func CanCancel(v vault.Vault, wallet solana.PublicKey) error {
	if v.Status != vault.StatusReclaimInitiated {
		return fmt.Errorf("%w: status %s", ErrInvalidVaultState, v.Status)
	}
	if v.Initiator != wallet {
		return ErrUnauthorized
	}
	return nil
}

// CanFinalize checks ReclaimInitiated → ReclaimedFinalized: initiator only,
// and only once the escrow period has fully elapsed.
func CanFinalize(v vault.Vault, wallet solana.PublicKey, now time.Time) error {
	if v.Status != vault.StatusReclaimInitiated {
		return fmt.Errorf("%w: status %s", ErrInvalidVaultState, v.Status)
	}
	if v.Initiator != wallet {
		return ErrUnauthorized
	}
	if elapsed := now.Sub(v.InitiatedAt); elapsed < config.EscrowPeriod {
		return fmt.Errorf("%w: %s of %s elapsed",
			ErrEscrowPeriodActive, elapsed.Truncate(time.Minute), config.EscrowPeriod)
	}
	return nil
}
