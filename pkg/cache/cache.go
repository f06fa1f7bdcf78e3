// Package cache is a nil-safe Redis wrapper: every operation no-ops (rather
// than panicking or erroring the caller) when Redis hasn't been configured
// or is unreachable, so a single-process deployment works with zero
// configuration and a horizontally-scaled one gets best-effort
// coordination on top.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oit-uog/solr-federator/config"
)

// RebindChannel is the Redis pub/sub channel the Coordinator publishes to
// whenever it re-merges and rebinds the combined schema, so other replicas
// can drop their own combined cache without independently polling every
// backend for staleness.
const RebindChannel = "schema:rebind"

// SettingsCacheTTL is how long a Coordinator.Settings() response is cached
// in Redis, so N replicas behind a load balancer don't each fan out to
// every backend's settings.json on every scrape.
const SettingsCacheTTL = 30 * time.Second

var RDB *redis.Client
var Ctx = context.Background()

// Connect initialises the Redis client and verifies the connection with a
// ping. Returns an error so the caller can react (log a warning, fall back,
// or abort) — but every other function in this package degrades to a no-op
// if Connect was never called or failed, rather than requiring Redis.
func Connect() error {
	addr := config.RedisAddr()
	if addr == "" {
		return nil
	}

	RDB = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: config.RedisPassword(),
		DB:       0,
	})

	if err := RDB.Ping(Ctx).Err(); err != nil {
		RDB = nil
		return fmt.Errorf("cache: redis ping: %w", err)
	}
	return nil
}

// Get retrieves a cached value by key and unmarshals into dest. Returns
// true on a cache hit, false on miss, error, or when Redis is unavailable.
func Get(key string, dest interface{}) bool {
	if RDB == nil {
		return false
	}

	val, err := RDB.Get(Ctx, key).Result()
	if err != nil {
		return false
	}

	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false
	}

	return true
}

// Set stores value in Redis under key for the given TTL. A no-op when
// Redis is unavailable.
func Set(key string, value interface{}, ttl time.Duration) error {
	if RDB == nil {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return RDB.Set(Ctx, key, data, ttl).Err()
}

// Del removes one or more keys from Redis. A no-op when Redis is
// unavailable.
func Del(keys ...string) error {
	if RDB == nil {
		return nil
	}
	return RDB.Del(Ctx, keys...).Err()
}

// Forget is an alias for Del.
func Forget(key string) error {
	return Del(key)
}

// PublishRebind announces a combined-schema rebind carrying checksum (an
// opaque fingerprint of the new merged schema) on RebindChannel. A no-op
// when Redis is unavailable.
func PublishRebind(checksum string) error {
	if RDB == nil {
		return nil
	}
	return RDB.Publish(Ctx, RebindChannel, checksum).Err()
}

// SubscribeRebind returns a subscription to RebindChannel, which delivers the
// schema checksums sent via PublishRebind, or nil if Redis is unavailable. Callers
// should range over Channel() on the returned *redis.PubSub; see
// internal/coordinator.Coordinator.WatchRebind for the consumer.
func SubscribeRebind(ctx context.Context) *redis.PubSub {
	if RDB == nil {
		return nil
	}
	return RDB.Subscribe(ctx, RebindChannel)
}

// GetSettings retrieves a cached Coordinator.Settings() response for
// cacheKey, unmarshalling into dest. Returns true on a hit.
func GetSettings(cacheKey string, dest interface{}) bool {
	return Get("settings:"+cacheKey, dest)
}

// SetSettings caches a Coordinator.Settings() response under cacheKey for
// SettingsCacheTTL.
func SetSettings(cacheKey string, value interface{}) error {
	return Set("settings:"+cacheKey, value, SettingsCacheTTL)
}
