package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/roach88/buyflow/internal/order"
)

// DefaultRedisKey is the key the Redis store writes when none is configured.
const DefaultRedisKey = "buyflow:snapshot:" + DefaultKey

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// Redis keeps the snapshot under a single Redis key, for deployments where
// several processes resume the same flow.
type Redis struct {
	client *redis.Client
	key    string
	log    *zap.Logger
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, cfg RedisConfig, log *zap.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "connect to redis at %s", cfg.Addr)
	}
	return NewRedisWithClient(client, cfg.Key, log), nil
}

// NewRedisWithClient creates a store with an existing client.
func NewRedisWithClient(client *redis.Client, key string, log *zap.Logger) *Redis {
	if key == "" {
		key = DefaultRedisKey
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Redis{client: client, key: key, log: log.Named("store")}
}

// Load returns the persisted snapshot. A corrupt snapshot is deleted and
// reported as absent.
func (r *Redis) Load(ctx context.Context) (order.State, bool, error) {
	body, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return order.State{}, false, nil
	}
	if err != nil {
		return order.State{}, false, errors.Wrap(err, "load snapshot")
	}

	st, err := order.DecodeSnapshot(body)
	if err != nil {
		r.log.Warn("discarding corrupt snapshot", zap.String("key", r.key), zap.Error(err))
		if cerr := r.Clear(ctx); cerr != nil {
			return order.State{}, false, cerr
		}
		return order.State{}, false, nil
	}
	return st, true, nil
}

// Save replaces the persisted snapshot. The key does not expire.
func (r *Redis) Save(ctx context.Context, st order.State) error {
	body, err := order.EncodeSnapshot(st)
	if err != nil {
		return errors.Wrap(err, "save snapshot")
	}
	if err := r.client.Set(ctx, r.key, body, 0).Err(); err != nil {
		return errors.Wrap(err, "save snapshot")
	}
	return nil
}

// Clear deletes the snapshot key.
func (r *Redis) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return errors.Wrap(err, "clear snapshot")
	}
	return nil
}

// Close closes the Redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}
