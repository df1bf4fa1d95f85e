package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cacheVersionKey = "upstream:version"
	// BumpChannel carries cache version bumps between replicas.
	BumpChannel = "upstream.bump"
)

// Cache stores upstream responses in Redis under a global version. Bumping
// the version orphans every entry at once; orphans expire with their TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache returns a cache over client. A nil client or non-positive ttl
// disables it.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

// Version returns the current generation, creating it on first use.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if !c.enabled() {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	switch {
	case errors.Is(err, redis.Nil):
		if err := c.client.SetNX(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, fmt.Errorf("upstream: init cache version: %w", err)
		}
		return c.client.Get(ctx, cacheVersionKey).Int64()
	case err != nil:
		return 0, fmt.Errorf("upstream: read cache version: %w", err)
	case ver <= 0:
		if err := c.client.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, fmt.Errorf("upstream: reset cache version: %w", err)
		}
		return 1, nil
	}
	return ver, nil
}

// BuildKey joins parts and appends the current version.
func (c *Cache) BuildKey(ctx context.Context, parts ...string) (string, error) {
	joined := strings.Join(parts, ":")
	if !c.enabled() {
		return joined, nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return joined + ":" + strconv.FormatInt(ver, 10), nil
}

// Bump starts a new generation and tells the other replicas.
func (c *Cache) Bump(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	ver, err := c.client.Incr(ctx, cacheVersionKey).Result()
	if err != nil {
		return fmt.Errorf("upstream: bump cache version: %w", err)
	}
	return c.client.Publish(ctx, BumpChannel, strconv.FormatInt(ver, 10)).Err()
}

// ListenForInvalidation subscribes to channel (BumpChannel when empty) and
// raises the local version to any higher one announced. It returns once the
// subscription is confirmed; the listener stops with ctx.
func (c *Cache) ListenForInvalidation(ctx context.Context, channel string) error {
	if !c.enabled() {
		return nil
	}
	if channel == "" {
		channel = BumpChannel
	}
	sub := c.client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("upstream: subscribe %s: %w", channel, err)
	}
	go func() {
		defer func() { _ = sub.Close() }()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				c.applyBump(ctx, msg.Payload)
			}
		}
	}()
	return nil
}

// applyBump adopts an announced version if it is newer. Payloads that are not
// a version number are ignored; the publisher has already bumped the key.
func (c *Cache) applyBump(ctx context.Context, payload string) {
	announced, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return
	}
	if current, _ := c.client.Get(ctx, cacheVersionKey).Int64(); announced > current {
		_ = c.client.Set(ctx, cacheVersionKey, announced, 0).Err()
	}
}

// through serves key from Redis, or calls load and stores its result.
// Redis failures fall back to load; load errors are returned uncached.
func through[T any](ctx context.Context, c *Cache, key string, load func(context.Context) (T, error)) (T, error) {
	if !c.enabled() {
		return load(ctx)
	}
	versioned, err := c.BuildKey(ctx, key)
	if err != nil {
		return load(ctx)
	}
	if raw, err := c.client.Get(ctx, versioned).Bytes(); err == nil {
		var cached T
		if json.Unmarshal(raw, &cached) == nil {
			return cached, nil
		}
	}
	value, err := load(ctx)
	if err != nil {
		return value, err
	}
	if raw, err := json.Marshal(value); err == nil {
		_ = c.client.Set(ctx, versioned, raw, c.ttl).Err()
	}
	return value, nil
}
