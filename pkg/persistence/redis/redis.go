// Package redis provides a Redis-backed EnvelopeStore for distributed,
// cloud-native deployments.
package redis

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/merklekit/merkle-engine-go/pkg/persistence"
)

// Key namespacing in Redis. Redis has no native prefix iteration, so stored
// names are additionally tracked in an index set.
const (
	keyPrefixEnvelope    = "merkle:envelope:"
	keySetEnvelopes      = "merkle:envelopes:index"
	keySchemaVersion     = "merkle:metadata:schema_version"
	currentSchemaVersion = "v1"

	opTimeout = 5 * time.Second
)

// RedisStore is an envelope store over a Redis server.
type RedisStore struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
	mu        sync.RWMutex
	closed    bool
}

var _ persistence.EnvelopeStore = (*RedisStore)(nil)

// RedisConfig holds the connection configuration.
type RedisConfig struct {
	// Address is the Redis server address (host:port).
	Address string
	// Password is the optional Redis password.
	Password string
	// DB is the Redis database number (0-15).
	DB int
	// KeyPrefix is an optional extra prefix for all keys, for multi-tenant
	// setups. "myapp:" results in keys like "myapp:merkle:envelope:x".
	KeyPrefix string
}

// NewRedisStore connects to Redis, verifies the connection and initializes
// the schema version key.
func NewRedisStore(cfg *RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rs := &RedisStore{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rs.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Sugar().Infow("Redis envelope store initialized", "address", cfg.Address, "db", cfg.DB)

	return rs, nil
}

func (r *RedisStore) initSchema(ctx context.Context) error {
	key := r.key(keySchemaVersion)

	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return r.client.Set(ctx, key, currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return err
	}
	if val != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version %q (want %q)", val, currentSchemaVersion)
	}
	return nil
}

func (r *RedisStore) key(suffix string) string {
	return r.keyPrefix + suffix
}

func (r *RedisStore) envelopeKey(name string) string {
	return r.key(keyPrefixEnvelope + name)
}

// SaveEnvelope stores the serialized envelope under name.
func (r *RedisStore) SaveEnvelope(name string, data []byte) error {
	if name == "" {
		return fmt.Errorf("envelope name cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("envelope store is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.envelopeKey(name), data, 0)
	pipe.SAdd(ctx, r.key(keySetEnvelopes), name)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save envelope %q: %w", name, err)
	}
	return nil
}

// LoadEnvelope retrieves the envelope stored under name, or nil if unknown.
func (r *RedisStore) LoadEnvelope(name string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("envelope store is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	data, err := r.client.Get(ctx, r.envelopeKey(name)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load envelope %q: %w", name, err)
	}
	return data, nil
}

// ListEnvelopes returns all stored names sorted ascending.
func (r *RedisStore) ListEnvelopes() ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("envelope store is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	names, err := r.client.SMembers(ctx, r.key(keySetEnvelopes)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list envelopes: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// DeleteEnvelope removes the envelope stored under name. Idempotent.
func (r *RedisStore) DeleteEnvelope(name string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("envelope store is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.envelopeKey(name))
	pipe.SRem(ctx, r.key(keySetEnvelopes), name)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete envelope %q: %w", name, err)
	}
	return nil
}

// Close closes the Redis client. Idempotent.
func (r *RedisStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}
	return nil
}

// HealthCheck pings the server.
func (r *RedisStore) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("envelope store is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}
