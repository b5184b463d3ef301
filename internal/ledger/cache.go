package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	versionKeyPrefix = "parkyard:ledger:version"
	totalsKeyPrefix  = "parkyard:ledger:totals"
	// BumpChannel carries "sessionID:version" whenever a session's totals change.
	BumpChannel = "ledger.bump"
)

// Cache stores session totals in Redis under a per-session version. Bumping
// the version orphans every cached entry for that session.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

func versionKey(sessionID int64) string {
	return versionKeyPrefix + ":" + strconv.FormatInt(sessionID, 10)
}

// Version returns the session's cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context, sessionID int64) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	key := versionKey(sessionID)
	ver, err := c.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, key, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, key).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// BuildKey composes the totals key with the current version.
func (c *Cache) BuildKey(ctx context.Context, sessionID int64) (string, error) {
	ver, err := c.Version(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return totalsKeyPrefix + ":" + strconv.FormatInt(sessionID, 10) + ":" + strconv.FormatInt(ver, 10), nil
}

// FetchJSON loads a cached value or populates it using the loader.
func (c *Cache) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("ledger cache: loader required")
	}
	if c != nil && c.client != nil {
		payload, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			return json.Unmarshal(payload, dest)
		}
		if !errors.Is(err, redis.Nil) {
			return err
		}
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if c != nil && c.client != nil {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			return err
		}
	}
	return json.Unmarshal(raw, dest)
}

// Bump invalidates the session's cached totals and publishes the new version.
func (c *Cache) Bump(ctx context.Context, sessionID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	ver, err := c.client.Incr(ctx, versionKey(sessionID)).Result()
	if err != nil {
		return err
	}
	payload := strconv.FormatInt(sessionID, 10) + ":" + strconv.FormatInt(ver, 10)
	return c.client.Publish(ctx, BumpChannel, payload).Err()
}
