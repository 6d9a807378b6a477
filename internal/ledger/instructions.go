package ledger

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Binding constructs instructions for the vault program. It encodes method
// discriminators and borsh arguments; it does not validate business rules,
// the program does.
type Binding struct {
	program  solana.PublicKey
	treasury solana.PublicKey
	feeMint  solana.PublicKey
}

func NewBinding(program, treasury, feeMint solana.PublicKey) *Binding {
	return &Binding{program: program, treasury: treasury, feeMint: feeMint}
}

// ProofArgs carries the merkle inclusion proof for the vaulted asset. Nodes
// ride along as read-only non-signer accounts.
type ProofArgs struct {
	Root        [32]byte
	DataHash    [32]byte
	CreatorHash [32]byte
	Nonce       uint64
	Index       uint32
	Nodes       []solana.PublicKey
}

// ReclaimAccounts are the derived accounts shared by the reclaim instructions.
type ReclaimAccounts struct {
	Vault              solana.PublicKey
	FractionMint       solana.PublicKey
	Holder             solana.PublicKey
	EscrowAuthority    solana.PublicKey
	EscrowTokenAccount solana.PublicKey
	HolderTokenAccount solana.PublicKey
}

type initializeReclaimArgs struct {
	Amount      uint64
	Root        [32]byte
	DataHash    [32]byte
	CreatorHash [32]byte
	Nonce       uint64
	Index       uint32
}

type cancelReclaimArgs struct {
	Fee uint64
}

type finalizeReclaimArgs struct {
	Compensation uint64
	Root         [32]byte
	DataHash     [32]byte
	CreatorHash  [32]byte
	Nonce        uint64
	Index        uint32
}

// InitializeReclaim builds the escrow-path initiation: amount tokens move into
// escrow and the vault enters ReclaimInitiated.
func (b *Binding) InitializeReclaim(acc ReclaimAccounts, amount uint64, proof ProofArgs) (solana.Instruction, error) {
	metas := b.reclaimMetas(acc, proof.Nodes)
	return b.build("initialize_reclaim", metas, initializeReclaimArgs{
		Amount:      amount,
		Root:        proof.Root,
		DataHash:    proof.DataHash,
		CreatorHash: proof.CreatorHash,
		Nonce:       proof.Nonce,
		Index:       proof.Index,
	})
}

// ReclaimInstant builds the 100%-holder variant: tokens burn immediately and
// the vault goes straight to ReclaimedFinalized, no escrow period.
func (b *Binding) ReclaimInstant(acc ReclaimAccounts, amount uint64, proof ProofArgs) (solana.Instruction, error) {
	metas := b.reclaimMetas(acc, proof.Nodes)
	return b.build("reclaim_instant", metas, initializeReclaimArgs{
		Amount:      amount,
		Root:        proof.Root,
		DataHash:    proof.DataHash,
		CreatorHash: proof.CreatorHash,
		Nonce:       proof.Nonce,
		Index:       proof.Index,
	})
}

// CancelReclaim builds the initiator's back-out: escrow returns to the holder
// and the fixed stable-denominated fee moves to the treasury.
func (b *Binding) CancelReclaim(acc ReclaimAccounts, fee uint64) (solana.Instruction, error) {
	holderFeeAccount, err := TokenAccountFor(acc.Holder, b.feeMint)
	if err != nil {
		return nil, err
	}
	treasuryFeeAccount, err := TokenAccountFor(b.treasury, b.feeMint)
	if err != nil {
		return nil, err
	}

	metas := solana.AccountMetaSlice{
		solana.Meta(acc.Vault).WRITE(),
		solana.Meta(acc.FractionMint).WRITE(),
		solana.Meta(acc.Holder).WRITE().SIGNER(),
		solana.Meta(acc.EscrowAuthority),
		solana.Meta(acc.EscrowTokenAccount).WRITE(),
		solana.Meta(acc.HolderTokenAccount).WRITE(),
		solana.Meta(holderFeeAccount).WRITE(),
		solana.Meta(treasuryFeeAccount).WRITE(),
		solana.Meta(solana.TokenProgramID),
	}
	return b.build("cancel_reclaim", metas, cancelReclaimArgs{Fee: fee})
}

// FinalizeReclaim builds the post-escrow-period completion: escrowed tokens
// burn, the initiator funds minority compensation, the asset leaves the tree.
func (b *Binding) FinalizeReclaim(acc ReclaimAccounts, compensation uint64, proof ProofArgs) (solana.Instruction, error) {
	metas := b.reclaimMetas(acc, proof.Nodes)
	return b.build("finalize_reclaim", metas, finalizeReclaimArgs{
		Compensation: compensation,
		Root:         proof.Root,
		DataHash:     proof.DataHash,
		CreatorHash:  proof.CreatorHash,
		Nonce:        proof.Nonce,
		Index:        proof.Index,
	})
}

func (b *Binding) reclaimMetas(acc ReclaimAccounts, proofNodes []solana.PublicKey) solana.AccountMetaSlice {
	metas := solana.AccountMetaSlice{
		solana.Meta(acc.Vault).WRITE(),
		solana.Meta(acc.FractionMint).WRITE(),
		solana.Meta(acc.Holder).WRITE().SIGNER(),
		solana.Meta(acc.EscrowAuthority),
		solana.Meta(acc.EscrowTokenAccount).WRITE(),
		solana.Meta(acc.HolderTokenAccount).WRITE(),
		solana.Meta(solana.TokenProgramID),
		solana.Meta(solana.SystemProgramID),
	}
	// Proof nodes are auxiliary: never writable, never signing.
	for _, node := range proofNodes {
		metas = append(metas, solana.Meta(node))
	}
	return metas
}

func (b *Binding) build(method string, metas solana.AccountMetaSlice, args any) (solana.Instruction, error) {
	data := new(bytes.Buffer)
	disc := methodDiscriminator(method)
	data.Write(disc[:])
	if args != nil {
		if err := bin.NewBorshEncoder(data).Encode(args); err != nil {
			return nil, fmt.Errorf("encode %s args: %w", method, err)
		}
	}
	return solana.NewInstruction(b.program, metas, data.Bytes()), nil
}

// methodDiscriminator follows the anchor convention:
// sha256("global:<method>")[:8].
func methodDiscriminator(method string) [8]byte {
	sum := sha256.Sum256([]byte("global:" + method))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}
