// Package cache stores computed price-action metrics in Redis so repeated
// analysis requests for the same round skip the candle fetch.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trogers1052/trade-journal/internal/models"
)

const keyPrefix = "journal:metrics"

// MetricsCache is a Redis-backed cache of analysis results
type MetricsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewMetricsCache connects to Redis and verifies the connection
func NewMetricsCache(ctx context.Context, addr, password string, db int, ttl time.Duration) (*MetricsCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &MetricsCache{client: client, ttl: ttl}, nil
}

// NewMetricsCacheWithClient wraps an existing client
func NewMetricsCacheWithClient(client *redis.Client, ttl time.Duration) *MetricsCache {
	return &MetricsCache{client: client, ttl: ttl}
}

// Key identifies one analysis result. Round ids are opening fill ids, so the
// symbol and open time are part of the identity.
type Key struct {
	Account   string
	Symbol    string
	RoundID   string
	OpenTime  time.Time
	Timeframe string
	Risk      float64
}

// KeyForRound builds the key for a round analyzed with the given settings
func KeyForRound(r *models.Round, timeframe string, risk float64) Key {
	return Key{
		Account:   r.Account,
		Symbol:    r.Symbol,
		RoundID:   r.RoundID,
		OpenTime:  r.OpenTime,
		Timeframe: timeframe,
		Risk:      risk,
	}
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%s:%s:%d:%s:%s", keyPrefix, k.Account, k.Symbol, k.RoundID,
		k.OpenTime.UnixMilli(), k.Timeframe, strconv.FormatFloat(k.Risk, 'f', -1, 64))
}

// Get returns the cached metrics, or nil with no error on a miss
func (c *MetricsCache) Get(ctx context.Context, key Key) (*models.PriceActionMetrics, error) {
	data, err := c.client.Get(ctx, key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached metrics: %w", err)
	}

	var m models.PriceActionMetrics
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode cached metrics: %w", err)
	}
	return &m, nil
}

// Set stores metrics under key with the configured TTL
func (c *MetricsCache) Set(ctx context.Context, key Key, m *models.PriceActionMetrics) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode metrics: %w", err)
	}
	if err := c.client.Set(ctx, key.String(), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache metrics: %w", err)
	}
	return nil
}

// InvalidateAccount drops every cached result for an account. Called after
// rounds are recomputed since round ids may now cover different fills.
func (c *MetricsCache) InvalidateAccount(ctx context.Context, account string) error {
	pattern := fmt.Sprintf("%s:%s:*", keyPrefix, account)
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cached metrics: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached metrics: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (c *MetricsCache) Close() error {
	return c.client.Close()
}
