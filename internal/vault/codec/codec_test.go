package codec

import (
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fracvault/internal/vault"
)

func fixtureVault() vault.Vault {
	return vault.Vault{
		Address:        solana.NewWallet().PublicKey(),
		AssetID:        solana.NewWallet().PublicKey(),
		FractionMint:   solana.NewWallet().PublicKey(),
		Creator:        solana.NewWallet().PublicKey(),
		Initiator:      solana.NewWallet().PublicKey(),
		TotalSupply:    1_000_000 * vault.AmountScale,
		TokensInEscrow: 850_000 * vault.AmountScale,
		PriceSnapshot:  42_000_000,
		Status:         vault.StatusReclaimInitiated,
		CreatedAt:      time.Unix(1700000000, 0).UTC(),
		InitiatedAt:    time.Unix(1700600000, 0).UTC(),
		MinReclaimBps:  8000,
		MinPoolAge:     30 * 24 * time.Hour,
	}
}

func TestDecodeVault_Deterministic(t *testing.T) {
	v := fixtureVault()
	data, err := EncodeVault(v)
	require.NoError(t, err)
	require.Len(t, data, AccountSize)

	first, err := DecodeVault(v.Address, data)
	require.NoError(t, err)
	second, err := DecodeVault(v.Address, data)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, v, first)
}

func TestDecodeVault_RejectsWrongLength(t *testing.T) {
	_, err := DecodeVault(solana.PublicKey{}, make([]byte, AccountSize-1))
	assert.ErrorIs(t, err, ErrBadSize)

	_, err = DecodeVault(solana.PublicKey{}, make([]byte, AccountSize+1))
	assert.ErrorIs(t, err, ErrBadSize)
}

func TestDecodeVault_RejectsForeignDiscriminator(t *testing.T) {
	data, err := EncodeVault(fixtureVault())
	require.NoError(t, err)
	data[0] ^= 0xff

	_, err = DecodeVault(solana.PublicKey{}, data)
	assert.ErrorIs(t, err, ErrBadDiscriminator)
}

func TestDecodeVault_RejectsUnknownStatus(t *testing.T) {
	data, err := EncodeVault(fixtureVault())
	require.NoError(t, err)
	data[AccountSize-1] = 9 // status is the final byte of the layout

	_, err = DecodeVault(solana.PublicKey{}, data)
	assert.ErrorIs(t, err, ErrBadStatus)
}

func TestDecodeVault_ZeroInitiatedAtStaysZero(t *testing.T) {
	v := fixtureVault()
	v.Status = vault.StatusActive
	v.Initiator = solana.PublicKey{}
	v.InitiatedAt = time.Time{}
	v.TokensInEscrow = 0

	data, err := EncodeVault(v)
	require.NoError(t, err)
	got, err := DecodeVault(v.Address, data)
	require.NoError(t, err)
	assert.True(t, got.InitiatedAt.IsZero())
}

func TestDecodeTokenAccount(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	owner := solana.NewWallet().PublicKey()

	data := make([]byte, TokenAccountSize)
	copy(data[0:32], mint[:])
	copy(data[32:64], owner[:])
	// amount u64 little-endian at offset 64
	amount := uint64(123_456_789)
	for i := 0; i < 8; i++ {
		data[64+i] = byte(amount >> (8 * i))
	}

	got, err := DecodeTokenAccount(data)
	require.NoError(t, err)
	assert.Equal(t, mint, got.Mint)
	assert.Equal(t, owner, got.Owner)
	assert.Equal(t, amount, got.Amount)

	_, err = DecodeTokenAccount(data[:100])
	assert.ErrorIs(t, err, ErrBadSize)
}

func TestEventRoundTrip(t *testing.T) {
	addr := solana.NewWallet().PublicKey()
	for _, kind := range []EventKind{
		EventVaultCreated, EventReclaimInitiated, EventReclaimFinalized,
		EventReclaimCancelled, EventRedeemed, EventVaultClosed,
	} {
		data, err := EncodeEvent(Event{Kind: kind, Vault: addr})
		require.NoError(t, err)

		got, err := DecodeEvent(data)
		require.NoError(t, err)
		assert.Equal(t, kind, got.Kind)
		assert.Equal(t, addr, got.Vault)
	}
}

func TestDecodeEvent_UnknownDiscriminator(t *testing.T) {
	data := make([]byte, 40)
	_, err := DecodeEvent(data)
	assert.ErrorIs(t, err, ErrUnknownEvent)

	_, err = DecodeEvent(data[:10])
	assert.ErrorIs(t, err, ErrBadSize)
}
