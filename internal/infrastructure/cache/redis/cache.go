package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kirillkom/sports-support-rag/internal/core/domain"
)

const defaultHotKey = "hot_queries"

type Options struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	HotKey    string
}

// Cache stores answers under KeyPrefix+fingerprint and popularity in a sorted set.
type Cache struct {
	client *goredis.Client
	prefix string
	hotKey string
}

func New(opts Options) *Cache {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewWithClient(client, opts.KeyPrefix, opts.HotKey)
}

func NewWithClient(client *goredis.Client, prefix, hotKey string) *Cache {
	if hotKey == "" {
		hotKey = defaultHotKey
	}
	return &Cache{client: client, prefix: prefix, hotKey: hotKey}
}

func (c *Cache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}

type cachedPair struct {
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Category   string    `json:"category,omitempty"`
	Confidence float64   `json:"confidence"`
	CachedAt   time.Time `json:"cached_at"`
}

// Get returns nil without error on a miss. Undecodable entries are deleted and
// treated as misses.
func (c *Cache) Get(ctx context.Context, fingerprint string) (*domain.QAPair, error) {
	key := c.prefix + fingerprint
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry cachedPair
	if err := json.Unmarshal(data, &entry); err != nil {
		slog.Warn("cache_entry_corrupt", "key", key, "error", err)
		_ = c.client.Del(ctx, key).Err()
		return nil, nil
	}
	return &domain.QAPair{
		Question:   entry.Question,
		Answer:     entry.Answer,
		Category:   entry.Category,
		Confidence: entry.Confidence,
		UpdatedAt:  entry.CachedAt,
	}, nil
}

func (c *Cache) Set(ctx context.Context, fingerprint string, pair domain.QAPair, ttl time.Duration) error {
	data, err := json.Marshal(cachedPair{
		Question:   pair.Question,
		Answer:     pair.Answer,
		Category:   pair.Category,
		Confidence: pair.Confidence,
		CachedAt:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+fingerprint, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *Cache) IncrementCount(ctx context.Context, normalizedQuery string) (int64, error) {
	score, err := c.client.ZIncrBy(ctx, c.hotKey, 1, normalizedQuery).Result()
	if err != nil {
		return 0, fmt.Errorf("redis zincrby: %w", err)
	}
	return int64(score), nil
}

func (c *Cache) HotQueries(ctx context.Context, limit int) ([]domain.HotQuery, error) {
	if limit <= 0 {
		return []domain.HotQuery{}, nil
	}
	members, err := c.client.ZRevRangeWithScores(ctx, c.hotKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrevrange: %w", err)
	}
	out := make([]domain.HotQuery, 0, len(members))
	for _, m := range members {
		query, ok := m.Member.(string)
		if !ok {
			continue
		}
		out = append(out, domain.HotQuery{Query: query, Count: int64(m.Score)})
	}
	return out, nil
}

func (c *Cache) Stats(ctx context.Context) (domain.CacheStats, error) {
	var stats domain.CacheStats
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if iter.Val() == c.hotKey {
			continue
		}
		stats.Entries++
	}
	if err := iter.Err(); err != nil {
		return domain.CacheStats{}, fmt.Errorf("redis scan: %w", err)
	}

	hot, err := c.client.ZCard(ctx, c.hotKey).Result()
	if err != nil {
		return domain.CacheStats{}, fmt.Errorf("redis zcard: %w", err)
	}
	stats.HotQueries = hot
	return stats, nil
}
