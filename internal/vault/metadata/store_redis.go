package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/redis/go-redis/v9"

	"fracvault/internal/vault"
	"fracvault/pkg/platform/sentinel"
)

const (
	// Redis key prefix for asset display metadata.
	metadataKeyPrefix = "vmeta:asset:"

	// Display metadata is effectively immutable; the TTL only bounds storage
	// for assets that fall out of use.
	metadataTTL = 30 * 24 * time.Hour
)

// RedisStore is the Redis-backed metadata cache, for deployments where several
// instances should share enrichment work.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

type redisRecord struct {
	AssetID     string `json:"asset_id"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Image       string `json:"image"`
	Description string `json:"description"`
}

func (s *RedisStore) Find(ctx context.Context, assetID solana.PublicKey) (vault.Metadata, error) {
	raw, err := s.client.Get(ctx, metadataKeyPrefix+assetID.String()).Result()
	if errors.Is(err, redis.Nil) {
		return vault.Metadata{}, sentinel.ErrNotFound
	}
	if err != nil {
		return vault.Metadata{}, fmt.Errorf("redis get metadata: %w", err)
	}

	var rec redisRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return vault.Metadata{}, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return vault.Metadata{
		AssetID:     assetID,
		Name:        rec.Name,
		Symbol:      rec.Symbol,
		Image:       rec.Image,
		Description: rec.Description,
	}, nil
}

func (s *RedisStore) Save(ctx context.Context, meta vault.Metadata) error {
	raw, err := json.Marshal(redisRecord{
		AssetID:     meta.AssetID.String(),
		Name:        meta.Name,
		Symbol:      meta.Symbol,
		Image:       meta.Image,
		Description: meta.Description,
	})
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := s.client.Set(ctx, metadataKeyPrefix+meta.AssetID.String(), raw, metadataTTL).Err(); err != nil {
		return fmt.Errorf("redis set metadata: %w", err)
	}
	return nil
}
