package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	lferrors "github.com/logflow/textsniff/pkg/errors"
)

// RedisConfig configures the Redis cache backend.
type RedisConfig struct {
	// Address is the Redis server address (e.g., "localhost:6379")
	Address string

	// Password for Redis authentication (optional)
	Password string

	// Database number to use (default: 0)
	Database int

	// Prefix is prepended to all verdict keys
	Prefix string

	// TTL is the time-to-live for verdicts (0 = no expiration)
	TTL time.Duration

	// Timeout for Redis operations
	Timeout time.Duration

	// PoolSize is the maximum number of connections
	PoolSize int
}

// DefaultRedisConfig returns sensible defaults.
func DefaultRedisConfig(address string) RedisConfig {
	return RedisConfig{
		Address:  address,
		Prefix:   "textsniff:verdict:",
		TTL:      7 * 24 * time.Hour,
		Timeout:  2 * time.Second,
		PoolSize: 10,
	}
}

// Redis shares verdicts between processes.
type Redis struct {
	cfg    RedisConfig
	client *redis.Client
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.Database,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, lferrors.Wrap(err, lferrors.CodeCache, "connect to redis").
			WithContext("address", cfg.Address)
	}
	return &Redis{cfg: cfg, client: client}, nil
}

func (r *Redis) key(k string) string {
	return r.cfg.Prefix + k
}

func (r *Redis) Get(ctx context.Context, key string) (Entry, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, false, nil
		}
		return Entry{}, false, lferrors.Wrap(err, lferrors.CodeCache, "redis get")
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, false, lferrors.Wrap(err, lferrors.CodeCache, "decode cached verdict")
	}
	return e, true, nil
}

func (r *Redis) Put(ctx context.Context, key string, e Entry) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	data, err := json.Marshal(e)
	if err != nil {
		return lferrors.Wrap(err, lferrors.CodeCache, "encode verdict")
	}
	if err := r.client.Set(ctx, r.key(key), data, r.cfg.TTL).Err(); err != nil {
		return lferrors.Wrap(err, lferrors.CodeCache, "redis set")
	}
	return nil
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
