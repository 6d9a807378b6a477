//go:build integration

package metadata_test

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/suite"

	"fracvault/internal/vault"
	"fracvault/internal/vault/metadata"
	"fracvault/pkg/platform/sentinel"
	"fracvault/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *metadata.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = metadata.NewRedis(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	assetID := solana.NewWallet().PublicKey()

	_, err := s.store.Find(ctx, assetID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	meta := vault.Metadata{
		AssetID:     assetID,
		Name:        "Mona Lisa Shard",
		Symbol:      "MONA",
		Image:       "https://img.example/mona.png",
		Description: "fractionalized",
	}
	s.Require().NoError(s.store.Save(ctx, meta))

	got, err := s.store.Find(ctx, assetID)
	s.Require().NoError(err)
	s.Equal(meta, got)
}

func (s *RedisStoreSuite) TestRecordsAreIsolatedByAsset() {
	ctx := context.Background()
	a := solana.NewWallet().PublicKey()
	b := solana.NewWallet().PublicKey()

	s.Require().NoError(s.store.Save(ctx, vault.Metadata{AssetID: a, Name: "A"}))
	s.Require().NoError(s.store.Save(ctx, vault.Metadata{AssetID: b, Name: "B"}))

	got, err := s.store.Find(ctx, a)
	s.Require().NoError(err)
	s.Equal("A", got.Name)
}
