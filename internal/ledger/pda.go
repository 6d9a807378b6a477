package ledger

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Program-derived addresses are pure functions of fixed seeds; nothing here
// touches the network.

// VaultAddress derives the vault account for an asset.
func VaultAddress(program, assetID solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("vault"), assetID.Bytes()},
		program,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive vault address: %w", err)
	}
	return addr, nil
}

// EscrowAuthority derives the PDA that owns a vault's escrow token account.
func EscrowAuthority(program, vault solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("escrow"), vault.Bytes()},
		program,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive escrow authority: %w", err)
	}
	return addr, nil
}

// TokenAccountFor derives the associated token account of wallet for mint.
func TokenAccountFor(wallet, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindAssociatedTokenAddress(wallet, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive token account: %w", err)
	}
	return addr, nil
}
