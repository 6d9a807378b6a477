package reclaim

import (
	"errors"
	"fmt"
)

// Typed errors the orchestrator rejects with. Callers render these; none of
// them are retried internally except transient I/O at the gateway edge.
var (
	// ErrWalletNotConnected: no signer is configured.
	ErrWalletNotConnected = errors.New("wallet not connected")

	// ErrProofUnavailable: the proof provider returned an empty proof set for
	// the asset. Retry shortly once the indexer catches up.
	ErrProofUnavailable = errors.New("asset proof unavailable")

	// ErrTransactionTooLarge: the assembled transaction exceeds the network
	// ceiling even after the lookup table fallback.
	ErrTransactionTooLarge = errors.New("transaction exceeds size limit")

	// ErrUnauthorized: the connected wallet is not allowed to perform the
	// action (wrong initiator).
	ErrUnauthorized = errors.New("wallet is not the reclaim initiator")

	// ErrInvalidVaultState: the vault's current status does not admit the
	// requested transition.
	ErrInvalidVaultState = errors.New("vault state does not allow this action")

	// ErrNotEligible: the holder's share is below the vault's minimum reclaim
	// percentage.
	ErrNotEligible = errors.New("holding below minimum reclaim share")

	// ErrEscrowPeriodActive: finalize attempted before the escrow period
	// elapsed.
	ErrEscrowPeriodActive = errors.New("escrow period has not elapsed")

	// ErrSubmissionFailed: the ledger refused the transaction at submission.
	ErrSubmissionFailed = errors.New("transaction submission failed")

	// ErrConfirmationTimeout: the bounded confirmation wait expired and the
	// follow-up status poll found neither success nor an explicit error. The
	// transaction may still land; the store is reconciled via refresh either
	// way.
	ErrConfirmationTimeout = errors.New("confirmation timed out; outcome ambiguous")
)

// RejectedError carries an explicit on-chain program error verbatim. Fatal, no
// retry.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("transaction rejected on-chain: %s", e.Reason)
}
