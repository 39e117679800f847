package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/anchor-indexer/internal/config"
	apperrors "github.com/anchor-indexer/internal/errors"
)

// orderedAddScript adds a member to a sorted set with a score one above the current
// maximum, so ZRANGE returns members in insertion order.
var orderedAddScript = redis.NewScript(`
if redis.call('ZSCORE', KEYS[1], ARGV[1]) then
	return 0
end
local last = redis.call('ZRANGE', KEYS[1], -1, -1, 'WITHSCORES')
local seq = 1
if #last > 0 then
	seq = tonumber(last[2]) + 1
end
redis.call('ZADD', KEYS[1], seq, ARGV[1])
return 1
`)

// appendTxScript adds one reverse index entry. Members carry a per-key sequence
// after a NUL byte so repeated writes of the same transaction are all kept; the
// index is append-only, so ZCARD+1 is unused.
var appendTxScript = redis.NewScript(`
local seq = redis.call('ZCARD', KEYS[1]) + 1
redis.call('ZADD', KEYS[1], ARGV[1], ARGV[2] .. '\0' .. seq)
return seq
`)

// RedisDriver stores everything in Redis. Sets are sorted sets scored by insertion
// sequence; transaction indexes are sorted sets scored by timestamp.
type RedisDriver struct {
	client    redis.UniversalClient
	namespace string
}

// NewRedisDriver wraps an existing client
func NewRedisDriver(client redis.UniversalClient, namespace string) *RedisDriver {
	return &RedisDriver{client: client, namespace: namespace}
}

// NewRedisClient builds a single-node or cluster client from configuration
func NewRedisClient(cfg *config.RedisConfig) (redis.UniversalClient, error) {
	if cfg.URL != "" {
		opts, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, apperrors.NewConfigurationError("REDIS_URL", err.Error())
		}
		if cfg.MaxConnections > 0 {
			opts.PoolSize = cfg.MaxConnections
		}
		return redis.NewClient(opts), nil
	}

	addrs := cfg.Cluster
	if len(addrs) == 0 {
		addrs = []string{cfg.Host + ":" + cfg.Port}
	}

	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        addrs,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.MaxConnections,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}), nil
}

// Client returns the underlying Redis client
func (r *RedisDriver) Client() redis.UniversalClient {
	return r.client
}

func (r *RedisDriver) wrap(op string, key string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return apperrors.NewNotFoundError(key)
	}
	return apperrors.NewBackendError(op, err)
}

func (r *RedisDriver) GetValue(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return "", r.wrap("get", key, err)
	}
	return value, nil
}

// GetValues uses a single MGET on one node. A cluster client pipelines GETs
// instead, since the keys of a window usually live in different hash slots.
func (r *RedisDriver) GetValues(ctx context.Context, keys []string) ([]string, error) {
	if len(keys) == 0 {
		return []string{}, nil
	}
	if _, ok := r.client.(*redis.ClusterClient); ok {
		return r.getValuesPipelined(ctx, keys)
	}

	raw, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, r.wrap("mget", "", err)
	}

	values := make([]string, len(raw))
	for i, v := range raw {
		if s, ok := v.(string); ok {
			values[i] = s
		}
	}
	return values, nil
}

func (r *RedisDriver) getValuesPipelined(ctx context.Context, keys []string) ([]string, error) {
	cmds := make([]*redis.StringCmd, len(keys))
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, key := range keys {
			cmds[i] = pipe.Get(ctx, key)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, r.wrap("mget", "", err)
	}

	values := make([]string, len(keys))
	for i, cmd := range cmds {
		value, err := cmd.Result()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return nil, r.wrap("mget", keys[i], err)
		default:
			values[i] = value
		}
	}
	return values, nil
}

func (r *RedisDriver) SetValue(ctx context.Context, key string, value string) error {
	return r.wrap("set", key, r.client.Set(ctx, key, value, 0).Err())
}

func (r *RedisDriver) DelValue(ctx context.Context, key string) error {
	return r.wrap("del", key, r.client.Del(ctx, key).Err())
}

func (r *RedisDriver) IncrValue(ctx context.Context, key string) (int64, error) {
	value, err := r.client.Incr(ctx, key).Result()
	return value, r.wrap("incr", key, err)
}

func (r *RedisDriver) GetObject(ctx context.Context, key string, out interface{}) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return r.wrap("get", key, err)
	}
	return decodeObject(key, data, out)
}

func (r *RedisDriver) SetObject(ctx context.Context, key string, value interface{}) error {
	data, err := encodeObject(key, value)
	if err != nil {
		return err
	}
	return r.wrap("set", key, r.client.Set(ctx, key, data, 0).Err())
}

func (r *RedisDriver) AddObject(ctx context.Context, key string, value interface{}) error {
	return r.SetObject(ctx, key, value)
}

func (r *RedisDriver) SAdd(ctx context.Context, key string, member string) error {
	return r.wrap("sadd", key, orderedAddScript.Run(ctx, r.client, []string{key}, member).Err())
}

func (r *RedisDriver) SRem(ctx context.Context, key string, member string) error {
	return r.wrap("srem", key, r.client.ZRem(ctx, key, member).Err())
}

func (r *RedisDriver) GetArray(ctx context.Context, key string) ([]string, error) {
	members, err := r.client.ZRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, r.wrap("getarray", key, err)
	}
	if members == nil {
		members = []string{}
	}
	return members, nil
}

func (r *RedisDriver) IndexTx(ctx context.Context, txType string, address string, txID string, timestamp int64) error {
	key := txIndexKey(r.namespace, txType, address)
	err := appendTxScript.Run(ctx, r.client, []string{key}, timestamp, txID).Err()
	return r.wrap("indextx", key, err)
}

func (r *RedisDriver) GetTx(ctx context.Context, txType string, address string, limit int, offset int) ([]string, error) {
	start, stop, ok := pageBounds(limit, offset)
	if !ok {
		return []string{}, nil
	}

	key := txIndexKey(r.namespace, txType, address)
	members, err := r.client.ZRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, r.wrap("gettx", key, err)
	}

	ids := make([]string, len(members))
	for i, m := range members {
		if sep := strings.LastIndexByte(m, txSeqSeparator); sep >= 0 {
			m = m[:sep]
		}
		ids[i] = m
	}
	return ids, nil
}

func (r *RedisDriver) CountTx(ctx context.Context, txType string, address string) (int64, error) {
	key := txIndexKey(r.namespace, txType, address)
	count, err := r.client.ZCard(ctx, key).Result()
	return count, r.wrap("counttx", key, err)
}

// Ping checks if Redis is reachable
func (r *RedisDriver) Ping(ctx context.Context) error {
	return r.wrap("ping", "", r.client.Ping(ctx).Err())
}

// Close closes the Redis connection
func (r *RedisDriver) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
