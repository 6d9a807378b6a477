// Package codec owns every fixed-layout byte decode in the client: vault
// accounts, SPL token accounts, and program log events. Decoding either yields
// a fully-populated typed value or an error, never a partial record.
package codec

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"fracvault/internal/vault"
)

// AccountSize is the exact byte length of a vault account. The program
// allocates vaults at a fixed size, so the full-collection scan filters on it.
const AccountSize = 203

// TokenAccountSize is the SPL token account layout length.
const TokenAccountSize = 165

var (
	ErrBadSize          = errors.New("unexpected account data length")
	ErrBadDiscriminator = errors.New("unexpected account discriminator")
	ErrBadStatus        = errors.New("status byte out of range")
)

// vaultDiscriminator follows the anchor convention: first 8 bytes of
// sha256("account:<Name>").
var vaultDiscriminator = discriminator("account:Vault")

func discriminator(preimage string) [8]byte {
	sum := sha256.Sum256([]byte(preimage))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}

// vaultAccount mirrors the on-chain layout field for field, in order. Keep in
// sync with AccountSize.
type vaultAccount struct {
	Discriminator         [8]byte
	AssetID               solana.PublicKey
	FractionMint          solana.PublicKey
	Creator               solana.PublicKey
	Initiator             solana.PublicKey
	TotalSupply           uint64
	TokensInEscrow        uint64
	TotalCompensation     uint64
	RemainingCompensation uint64
	PriceSnapshot         uint64
	CreatedAt             int64
	InitiatedAt           int64
	MinReclaimBps         uint16
	MinLiquidityBps       uint16
	MinVolume30dBps       uint16
	MinPoolAgeSecs        uint32
	Status                uint8
}

// DecodeVault deserializes one vault account. The address is the account key,
// not part of the stored data.
func DecodeVault(address solana.PublicKey, data []byte) (vault.Vault, error) {
	if len(data) != AccountSize {
		return vault.Vault{}, fmt.Errorf("%w: got %d, want %d", ErrBadSize, len(data), AccountSize)
	}

	var raw vaultAccount
	if err := bin.NewBorshDecoder(data).Decode(&raw); err != nil {
		return vault.Vault{}, fmt.Errorf("decode vault %s: %w", address, err)
	}
	if raw.Discriminator != vaultDiscriminator {
		return vault.Vault{}, fmt.Errorf("%w: account %s", ErrBadDiscriminator, address)
	}
	if raw.Status > uint8(vault.StatusClosed) {
		return vault.Vault{}, fmt.Errorf("%w: %d", ErrBadStatus, raw.Status)
	}

	v := vault.Vault{
		Address:               address,
		AssetID:               raw.AssetID,
		FractionMint:          raw.FractionMint,
		Creator:               raw.Creator,
		Initiator:             raw.Initiator,
		TotalSupply:           raw.TotalSupply,
		TokensInEscrow:        raw.TokensInEscrow,
		TotalCompensation:     raw.TotalCompensation,
		RemainingCompensation: raw.RemainingCompensation,
		PriceSnapshot:         raw.PriceSnapshot,
		Status:                vault.Status(raw.Status),
		CreatedAt:             time.Unix(raw.CreatedAt, 0).UTC(),
		MinReclaimBps:         raw.MinReclaimBps,
		MinLiquidityBps:       raw.MinLiquidityBps,
		MinVolume30dBps:       raw.MinVolume30dBps,
		MinPoolAge:            time.Duration(raw.MinPoolAgeSecs) * time.Second,
	}
	if raw.InitiatedAt != 0 {
		v.InitiatedAt = time.Unix(raw.InitiatedAt, 0).UTC()
	}
	return v, nil
}

// EncodeVault is the inverse of DecodeVault. Production code never writes
// accounts; this exists for fixtures and the decode determinism tests.
func EncodeVault(v vault.Vault) ([]byte, error) {
	raw := vaultAccount{
		Discriminator:         vaultDiscriminator,
		AssetID:               v.AssetID,
		FractionMint:          v.FractionMint,
		Creator:               v.Creator,
		Initiator:             v.Initiator,
		TotalSupply:           v.TotalSupply,
		TokensInEscrow:        v.TokensInEscrow,
		TotalCompensation:     v.TotalCompensation,
		RemainingCompensation: v.RemainingCompensation,
		PriceSnapshot:         v.PriceSnapshot,
		CreatedAt:             v.CreatedAt.Unix(),
		MinReclaimBps:         v.MinReclaimBps,
		MinLiquidityBps:       v.MinLiquidityBps,
		MinVolume30dBps:       v.MinVolume30dBps,
		MinPoolAgeSecs:        uint32(v.MinPoolAge / time.Second),
		Status:                uint8(v.Status),
	}
	if !v.InitiatedAt.IsZero() {
		raw.InitiatedAt = v.InitiatedAt.Unix()
	}

	buf := new(bytes.Buffer)
	if err := bin.NewBorshEncoder(buf).Encode(raw); err != nil {
		return nil, fmt.Errorf("encode vault: %w", err)
	}
	out := buf.Bytes()
	if len(out) != AccountSize {
		return nil, fmt.Errorf("%w: encoded %d bytes", ErrBadSize, len(out))
	}
	return out, nil
}

// TokenAccount is the slice of an SPL token account the position scan needs.
type TokenAccount struct {
	Mint   solana.PublicKey
	Owner  solana.PublicKey
	Amount uint64
}

type splTokenAccount struct {
	Mint   solana.PublicKey
	Owner  solana.PublicKey
	Amount uint64
	// Remaining 93 bytes (delegate option, state, native option, delegated
	// amount, close authority) are not needed here.
	Rest [93]byte
}

// DecodeTokenAccount extracts mint, owner, and balance from raw SPL token
// account data.
func DecodeTokenAccount(data []byte) (TokenAccount, error) {
	if len(data) != TokenAccountSize {
		return TokenAccount{}, fmt.Errorf("%w: got %d, want %d", ErrBadSize, len(data), TokenAccountSize)
	}
	var raw splTokenAccount
	if err := bin.NewBorshDecoder(data).Decode(&raw); err != nil {
		return TokenAccount{}, fmt.Errorf("decode token account: %w", err)
	}
	return TokenAccount{Mint: raw.Mint, Owner: raw.Owner, Amount: raw.Amount}, nil
}
