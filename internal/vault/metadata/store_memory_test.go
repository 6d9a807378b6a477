package metadata

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fracvault/internal/vault"
	"fracvault/pkg/platform/sentinel"
)

func TestInMemoryStore_RoundTrip(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	assetID := solana.NewWallet().PublicKey()

	_, err := store.Find(ctx, assetID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	meta := vault.Metadata{
		AssetID: assetID,
		Name:    "Mona Lisa Shard",
		Symbol:  "MONA",
		Image:   "https://img.example/mona.png",
	}
	require.NoError(t, store.Save(ctx, meta))

	got, err := store.Find(ctx, assetID)
	require.NoError(t, err)
	assert.Equal(t, meta, got)
}

func TestInMemoryStore_SaveOverwrites(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	assetID := solana.NewWallet().PublicKey()

	require.NoError(t, store.Save(ctx, vault.Metadata{AssetID: assetID, Name: "old"}))
	require.NoError(t, store.Save(ctx, vault.Metadata{AssetID: assetID, Name: "new"}))

	got, err := store.Find(ctx, assetID)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Name)
}
