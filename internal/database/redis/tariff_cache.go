package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tariff-service/internal/config"
	"tariff-service/internal/models"

	"github.com/redis/go-redis/v9"
)

const tariffKeyPrefix = "tariff-service--TariffEntry"

// TariffCache keeps (published date, category) lookups in Redis so repeated
// cost calculations skip the join query.
type TariffCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTariffCache connects to Redis and fails when the server does not answer
// a ping within five seconds.
func NewTariffCache(cfg config.RedisConfig) (*TariffCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &TariffCache{client: client, ttl: cfg.TTL}, nil
}

func (t *TariffCache) Close() error {
	return t.client.Close()
}

func TariffKey(publishedAt models.Date, category string) string {
	return fmt.Sprintf("%s--%s--%s", tariffKeyPrefix, publishedAt.String(), category)
}

func (t *TariffCache) GetEntry(ctx context.Context, publishedAt models.Date, category string) (*models.TariffEntry, bool, error) {
	data, err := t.client.Get(ctx, TariffKey(publishedAt, category)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached tariff: %w", err)
	}

	var entry models.TariffEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		slog.Warn("dropping undecodable cached tariff", "key", TariffKey(publishedAt, category), "error", err)
		return nil, false, nil
	}
	return &entry, true, nil
}

func (t *TariffCache) SetEntry(ctx context.Context, entry *models.TariffEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode tariff for cache: %w", err)
	}
	if err := t.client.Set(ctx, TariffKey(entry.PublishedAt, entry.CategoryType), data, t.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache tariff: %w", err)
	}
	return nil
}

func (t *TariffCache) Invalidate(ctx context.Context, publishedAt models.Date, categories ...string) error {
	if len(categories) == 0 {
		return nil
	}
	keys := make([]string, 0, len(categories))
	for _, category := range categories {
		keys = append(keys, TariffKey(publishedAt, category))
	}
	if err := t.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached tariffs: %w", err)
	}
	return nil
}
