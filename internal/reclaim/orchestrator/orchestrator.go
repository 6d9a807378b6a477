// Package orchestrator drives a reclaim action end to end: validate against
// the cached vault and a fresh balance, fetch the inclusion proof, assemble
// and sign the transaction, submit it, wait for confirmation, and reconcile
// the cache. Rule checks run before any network call so obviously doomed
// requests fail locally.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gagliardetto/solana-go"

	"fracvault/internal/journal"
	"fracvault/internal/ledger"
	"fracvault/internal/platform/config"
	"fracvault/internal/platform/metrics"
	"fracvault/internal/proof"
	"fracvault/internal/reclaim"
	"fracvault/internal/vault"
	"fracvault/pkg/platform/sentinel"
)

const (
	defaultConfirmTimeout = 60 * time.Second
	defaultPollInterval   = 2 * time.Second
)

// VaultCache is the slice of the vault store the orchestrator reads and
// reconciles.
type VaultCache interface {
	ByAddress(address solana.PublicKey) (vault.Vault, bool)
	FetchByID(ctx context.Context, address solana.PublicKey) error
	FetchUserPositions(ctx context.Context, owner solana.PublicKey) (vault.UserPosition, error)
}

// ProofProvider serves merkle proofs and asset records for vaulted assets.
type ProofProvider interface {
	GetAssetProof(ctx context.Context, assetID solana.PublicKey) (proof.AssetProof, error)
	GetAsset(ctx context.Context, assetID solana.PublicKey) (proof.Asset, error)
}

// Gateway is the ledger surface the orchestrator needs: blockhash, submission,
// status polling, block height, and raw account reads for the lookup table.
type Gateway interface {
	LatestBlockhash(ctx context.Context) (ledger.Blockhash, error)
	BlockHeight(ctx context.Context) (uint64, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	SignatureStatus(ctx context.Context, sig solana.Signature) (ledger.TxStatus, error)
	AccountData(ctx context.Context, address solana.PublicKey) ([]byte, error)
}

// Recorder receives journal entries for confirmed actions.
type Recorder interface {
	Record(ctx context.Context, event journal.Event) error
}

// Receipt reports a confirmed initiation.
type Receipt struct {
	Signature solana.Signature
	Path      reclaim.Path
}

// Orchestrator executes reclaim actions against the ledger.
type Orchestrator struct {
	log     *log.Logger
	metrics *metrics.Metrics
	cache   VaultCache
	proofs  ProofProvider
	gateway Gateway
	binding *ledger.Binding
	signer  ledger.Signer
	program solana.PublicKey

	lookupTable    solana.PublicKey
	journal        Recorder
	now            func() time.Time
	confirmTimeout time.Duration
	pollInterval   time.Duration
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithLookupTable enables the address lookup table fallback for oversized
// transactions.
func WithLookupTable(table solana.PublicKey) Option {
	return func(o *Orchestrator) { o.lookupTable = table }
}

// WithJournal records confirmed actions to the given sink.
func WithJournal(r Recorder) Option {
	return func(o *Orchestrator) { o.journal = r }
}

// WithConfirmTimeout bounds the confirmation wait.
func WithConfirmTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.confirmTimeout = d }
}

// WithPollInterval sets the spacing between status polls.
func WithPollInterval(d time.Duration) Option {
	return func(o *Orchestrator) { o.pollInterval = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New wires an Orchestrator. The signer may be nil; actions then fail with
// ErrWalletNotConnected until a wallet is configured.
func New(
	cache VaultCache,
	proofs ProofProvider,
	gateway Gateway,
	binding *ledger.Binding,
	signer ledger.Signer,
	program solana.PublicKey,
	logger *log.Logger,
	m *metrics.Metrics,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		log:            logger,
		metrics:        m,
		cache:          cache,
		proofs:         proofs,
		gateway:        gateway,
		binding:        binding,
		signer:         signer,
		program:        program,
		now:            time.Now,
		confirmTimeout: defaultConfirmTimeout,
		pollInterval:   defaultPollInterval,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// InitializeReclaim starts a reclaim for the connected wallet. The path is
// chosen from the wallet's balance fetched now, not from any cached position.
func (o *Orchestrator) InitializeReclaim(ctx context.Context, vaultID, assetID solana.PublicKey) (Receipt, error) {
	if o.signer == nil {
		return Receipt{}, reclaim.ErrWalletNotConnected
	}
	wallet := o.signer.PublicKey()

	v, err := o.vault(ctx, vaultID)
	if err != nil {
		return Receipt{}, err
	}
	if err := reclaim.CanInitialize(v); err != nil {
		return Receipt{}, err
	}

	positions, err := o.cache.FetchUserPositions(ctx, wallet)
	if err != nil {
		return Receipt{}, fmt.Errorf("fetch holder balance: %w", err)
	}
	balance := positions[v.FractionMint]

	path, err := reclaim.SelectPath(v, balance)
	if err != nil {
		return Receipt{}, err
	}

	proofArgs, err := o.proofFor(ctx, assetID)
	if err != nil {
		return Receipt{}, err
	}
	accounts, err := o.accountsFor(v, wallet)
	if err != nil {
		return Receipt{}, err
	}

	var ix solana.Instruction
	if path == reclaim.PathInstant {
		ix, err = o.binding.ReclaimInstant(accounts, balance, proofArgs)
	} else {
		ix, err = o.binding.InitializeReclaim(accounts, balance, proofArgs)
	}
	if err != nil {
		return Receipt{}, err
	}

	kind := journal.KindReclaimInitialized
	if path == reclaim.PathInstant {
		kind = journal.KindReclaimInstant
	}
	sig, err := o.execute(ctx, vaultID, ix, kind, fmt.Sprintf("amount=%d path=%s", balance, path))
	return Receipt{Signature: sig, Path: path}, err
}

// CancelReclaim backs out of an initiated reclaim. Only the initiator may
// cancel, and the fixed cancellation fee applies.
func (o *Orchestrator) CancelReclaim(ctx context.Context, vaultID solana.PublicKey) (solana.Signature, error) {
	if o.signer == nil {
		return solana.Signature{}, reclaim.ErrWalletNotConnected
	}
	wallet := o.signer.PublicKey()

	v, err := o.vault(ctx, vaultID)
	if err != nil {
		return solana.Signature{}, err
	}
	if err := reclaim.CanCancel(v, wallet); err != nil {
		return solana.Signature{}, err
	}

	accounts, err := o.accountsFor(v, wallet)
	if err != nil {
		return solana.Signature{}, err
	}
	ix, err := o.binding.CancelReclaim(accounts, config.CancelFee)
	if err != nil {
		return solana.Signature{}, err
	}

	return o.execute(ctx, vaultID, ix, journal.KindReclaimCancelled, fmt.Sprintf("fee=%d", config.CancelFee))
}

// FinalizeReclaim completes an escrow-path reclaim after the escrow period.
// The elapsed-time check runs locally first so early attempts never reach the
// ledger.
func (o *Orchestrator) FinalizeReclaim(ctx context.Context, vaultID, assetID solana.PublicKey) (solana.Signature, error) {
	if o.signer == nil {
		return solana.Signature{}, reclaim.ErrWalletNotConnected
	}
	wallet := o.signer.PublicKey()

	v, err := o.vault(ctx, vaultID)
	if err != nil {
		return solana.Signature{}, err
	}
	if err := reclaim.CanFinalize(v, wallet, o.now()); err != nil {
		return solana.Signature{}, err
	}

	proofArgs, err := o.proofFor(ctx, assetID)
	if err != nil {
		return solana.Signature{}, err
	}
	accounts, err := o.accountsFor(v, wallet)
	if err != nil {
		return solana.Signature{}, err
	}
	ix, err := o.binding.FinalizeReclaim(accounts, v.RemainingCompensation, proofArgs)
	if err != nil {
		return solana.Signature{}, err
	}

	return o.execute(ctx, vaultID, ix, journal.KindReclaimFinalized, fmt.Sprintf("compensation=%d", v.RemainingCompensation))
}

// execute runs the shared submission tail: send and confirm, journal the
// confirmed action, reconcile the cache. An ambiguous timeout still refreshes;
// the transaction may have landed.
func (o *Orchestrator) execute(ctx context.Context, vaultID solana.PublicKey, ix solana.Instruction, kind journal.Kind, detail string) (solana.Signature, error) {
	sig, err := o.submit(ctx, ix)
	if err != nil {
		if errors.Is(err, reclaim.ErrConfirmationTimeout) {
			o.refresh(ctx, vaultID)
		}
		return sig, err
	}
	o.record(ctx, kind, vaultID, sig, detail)
	o.refresh(ctx, vaultID)
	return sig, nil
}

// vault reads the cached record, falling back to a targeted fetch only when
// the vault has never been seen.
func (o *Orchestrator) vault(ctx context.Context, vaultID solana.PublicKey) (vault.Vault, error) {
	if v, ok := o.cache.ByAddress(vaultID); ok {
		return v, nil
	}
	if err := o.cache.FetchByID(ctx, vaultID); err != nil {
		return vault.Vault{}, fmt.Errorf("fetch vault %s: %w", vaultID, err)
	}
	v, ok := o.cache.ByAddress(vaultID)
	if !ok {
		return vault.Vault{}, fmt.Errorf("vault %s: %w", vaultID, sentinel.ErrNotFound)
	}
	return v, nil
}

// proofFor assembles the merkle proof arguments. An empty node set means the
// indexer has not caught up; the action is rejected rather than submitted with
// a proof the program will refuse.
func (o *Orchestrator) proofFor(ctx context.Context, assetID solana.PublicKey) (ledger.ProofArgs, error) {
	pr, err := o.proofs.GetAssetProof(ctx, assetID)
	if err != nil {
		return ledger.ProofArgs{}, fmt.Errorf("%w: %v", reclaim.ErrProofUnavailable, err)
	}
	if len(pr.Nodes) == 0 {
		return ledger.ProofArgs{}, reclaim.ErrProofUnavailable
	}
	asset, err := o.proofs.GetAsset(ctx, assetID)
	if err != nil {
		return ledger.ProofArgs{}, fmt.Errorf("%w: %v", reclaim.ErrProofUnavailable, err)
	}
	return ledger.ProofArgs{
		Root:        pr.Root,
		DataHash:    asset.DataHash,
		CreatorHash: asset.CreatorHash,
		Nonce:       asset.LeafID,
		Index:       uint32(asset.LeafID),
		Nodes:       pr.Nodes,
	}, nil
}

func (o *Orchestrator) accountsFor(v vault.Vault, holder solana.PublicKey) (ledger.ReclaimAccounts, error) {
	escrowAuthority, err := ledger.EscrowAuthority(o.program, v.Address)
	if err != nil {
		return ledger.ReclaimAccounts{}, err
	}
	escrowToken, err := ledger.TokenAccountFor(escrowAuthority, v.FractionMint)
	if err != nil {
		return ledger.ReclaimAccounts{}, err
	}
	holderToken, err := ledger.TokenAccountFor(holder, v.FractionMint)
	if err != nil {
		return ledger.ReclaimAccounts{}, err
	}
	return ledger.ReclaimAccounts{
		Vault:              v.Address,
		FractionMint:       v.FractionMint,
		Holder:             holder,
		EscrowAuthority:    escrowAuthority,
		EscrowTokenAccount: escrowToken,
		HolderTokenAccount: holderToken,
	}, nil
}

// submit assembles, signs, sends, and confirms one instruction. A duplicate
// submission of an identical payload counts as success; the signature is ours
// either way.
func (o *Orchestrator) submit(ctx context.Context, ix solana.Instruction) (solana.Signature, error) {
	tx, bh, err := o.assemble(ctx, ix)
	if err != nil {
		return solana.Signature{}, err
	}
	sig := tx.Signatures[0]

	sent, err := o.gateway.SendTransaction(ctx, tx)
	switch {
	case err == nil:
		sig = sent
	case errors.Is(err, sentinel.ErrAlreadyProcessed):
		o.log.Printf("transaction %s already processed, confirming existing submission", sig)
	default:
		o.metrics.TxFailed.Inc()
		return solana.Signature{}, fmt.Errorf("%w: %v", reclaim.ErrSubmissionFailed, err)
	}
	o.metrics.TxSubmitted.Inc()

	if err := o.awaitConfirmation(ctx, sig, bh.LastValidBlockHeight); err != nil {
		return sig, err
	}
	return sig, nil
}

// assemble builds and signs the transaction, retrying once through the address
// lookup table when the serialized form exceeds the network ceiling. The
// blockhash is returned alongside so the confirmation wait knows its validity
// horizon.
func (o *Orchestrator) assemble(ctx context.Context, ix solana.Instruction) (*solana.Transaction, ledger.Blockhash, error) {
	bh, err := o.gateway.LatestBlockhash(ctx)
	if err != nil {
		return nil, ledger.Blockhash{}, fmt.Errorf("fetch blockhash: %w", err)
	}

	tx, err := o.buildAndSign(ix, bh.Hash, nil)
	if err != nil {
		return nil, ledger.Blockhash{}, err
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, ledger.Blockhash{}, fmt.Errorf("serialize transaction: %w", err)
	}
	if len(raw) <= ledger.MaxTransactionBytes {
		return tx, bh, nil
	}

	if o.lookupTable.IsZero() {
		return nil, ledger.Blockhash{}, fmt.Errorf("%w: %d bytes, no lookup table configured", reclaim.ErrTransactionTooLarge, len(raw))
	}
	tables, err := ledger.FetchLookupTable(ctx, o.gateway, o.lookupTable)
	if err != nil {
		return nil, ledger.Blockhash{}, fmt.Errorf("%w: lookup table fallback failed: %v", reclaim.ErrTransactionTooLarge, err)
	}
	tx, err = o.buildAndSign(ix, bh.Hash, tables)
	if err != nil {
		return nil, ledger.Blockhash{}, err
	}
	raw, err = tx.MarshalBinary()
	if err != nil {
		return nil, ledger.Blockhash{}, fmt.Errorf("serialize transaction: %w", err)
	}
	if len(raw) > ledger.MaxTransactionBytes {
		return nil, ledger.Blockhash{}, fmt.Errorf("%w: %d bytes after lookup table compression", reclaim.ErrTransactionTooLarge, len(raw))
	}
	return tx, bh, nil
}

func (o *Orchestrator) buildAndSign(ix solana.Instruction, bh solana.Hash, tables map[solana.PublicKey]solana.PublicKeySlice) (*solana.Transaction, error) {
	opts := []solana.TransactionOption{solana.TransactionPayer(o.signer.PublicKey())}
	if tables != nil {
		opts = append(opts, solana.TransactionAddressTables(tables))
	}
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, bh, opts...)
	if err != nil {
		return nil, fmt.Errorf("build transaction: %w", err)
	}
	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("serialize message: %w", err)
	}
	sig, err := o.signer.Sign(msg)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	tx.Signatures = []solana.Signature{sig}
	return tx, nil
}

// awaitConfirmation polls signature status until the transaction confirms,
// fails, the blockhash passes its validity horizon, or the bounded wait
// expires. Either way one final poll distinguishes a late landing or rejection
// from a genuinely ambiguous outcome.
func (o *Orchestrator) awaitConfirmation(ctx context.Context, sig solana.Signature, lastValid uint64) error {
	start := o.now()
	deadline := start.Add(o.confirmTimeout)

	expired := false
	for {
		done, err := o.checkStatus(ctx, sig, start)
		if done || err != nil {
			return err
		}
		if o.blockhashExpired(ctx, lastValid) {
			expired = true
			break
		}
		if !o.now().Before(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.pollInterval):
		}
	}

	done, err := o.checkStatus(ctx, sig, start)
	if done || err != nil {
		return err
	}
	o.metrics.TxFailed.Inc()
	if expired {
		return fmt.Errorf("blockhash expired past height %d: %w", lastValid, reclaim.ErrConfirmationTimeout)
	}
	return reclaim.ErrConfirmationTimeout
}

// blockhashExpired reports whether the chain moved past the transaction's
// validity horizon, meaning it can no longer land. Height read failures are
// transient; the wall-clock deadline still bounds the wait.
func (o *Orchestrator) blockhashExpired(ctx context.Context, lastValid uint64) bool {
	if lastValid == 0 {
		return false
	}
	height, err := o.gateway.BlockHeight(ctx)
	if err != nil {
		o.log.Printf("block height poll failed: %v", err)
		return false
	}
	return height > lastValid
}

// checkStatus returns done=true once the transaction reached a terminal state.
// Poll errors are transient and swallowed; the deadline bounds them.
func (o *Orchestrator) checkStatus(ctx context.Context, sig solana.Signature, start time.Time) (bool, error) {
	st, err := o.gateway.SignatureStatus(ctx, sig)
	if err != nil {
		o.log.Printf("status poll for %s failed: %v", sig, err)
		return false, nil
	}
	if st.Found && st.TxErr != "" {
		o.metrics.TxFailed.Inc()
		return true, &reclaim.RejectedError{Reason: st.TxErr}
	}
	if st.Confirmed {
		o.metrics.TxConfirmed.Inc()
		o.metrics.ObserveConfirm(o.now().Sub(start))
		return true, nil
	}
	return false, nil
}

func (o *Orchestrator) record(ctx context.Context, kind journal.Kind, vaultID solana.PublicKey, sig solana.Signature, detail string) {
	if o.journal == nil {
		return
	}
	err := o.journal.Record(ctx, journal.Event{
		Kind:      kind,
		Vault:     vaultID.String(),
		Signature: sig.String(),
		Detail:    detail,
	})
	if err != nil {
		o.log.Printf("journal record failed for vault %s: %v", vaultID, err)
	}
}

// refresh reconciles the cached vault after a confirmed action. Best effort;
// the event listener and TTL refresh converge regardless.
func (o *Orchestrator) refresh(ctx context.Context, vaultID solana.PublicKey) {
	if err := o.cache.FetchByID(ctx, vaultID); err != nil {
		o.log.Printf("post-action refresh of vault %s failed: %v", vaultID, err)
	}
}
