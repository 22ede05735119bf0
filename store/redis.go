package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/etnz/backtest"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

// Redis stores each run as a json string and keeps a sorted set of run ids
// scored by save time.
type Redis struct {
	client redis.Cmdable
	prefix string
	// Now returns the save time; time.Now when nil.
	Now func() time.Time
}

// DefaultRedisPrefix prefixes every key written by the redis store.
const DefaultRedisPrefix = "backtest:"

// OpenRedis connects to the redis server at url, like redis://localhost:6379/0.
func OpenRedis(url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return NewRedis(rdb, DefaultRedisPrefix), nil
}

// NewRedis returns a store using client with keys under prefix.
func NewRedis(client redis.Cmdable, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) index() string        { return r.prefix + "runs" }
func (r *Redis) key(id string) string { return r.prefix + "run:" + id }

func (r *Redis) Save(ctx context.Context, runID string, p backtest.Payload) (string, error) {
	rec, err := record(runID, p, r.Now)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("cannot encode run %q: %w", rec.RunID, err)
	}
	if err := r.client.Set(ctx, r.key(rec.RunID), string(data), 0).Err(); err != nil {
		return "", fmt.Errorf("redis set: %w", err)
	}
	z := &redis.Z{Score: float64(rec.SavedAt.UnixMilli()), Member: rec.RunID}
	if err := r.client.ZAdd(ctx, r.index(), z).Err(); err != nil {
		return "", fmt.Errorf("redis zadd: %w", err)
	}
	return rec.RunID, nil
}

func (r *Redis) Load(ctx context.Context, runID string) (*backtest.Record, error) {
	val, err := r.client.Get(ctx, r.key(runID)).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return decode(runID, val)
}

func decode(runID, val string) (*backtest.Record, error) {
	rec := new(backtest.Record)
	if err := json.Unmarshal([]byte(val), rec); err != nil {
		return nil, fmt.Errorf("cannot decode run %q: %w", runID, err)
	}
	if rec.RunID == "" {
		rec.RunID = runID
	}
	return rec, nil
}

// List drops index entries whose run is missing or unreadable.
func (r *Redis) List(ctx context.Context) ([]Summary, error) {
	ids, err := r.client.ZRevRange(ctx, r.index(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrevrange: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(id)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}
	list := make([]Summary, 0, len(ids))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		rec, err := decode(ids[i], s)
		if err != nil {
			log.Warn().Err(err).Str("run_id", ids[i]).Msg("skipping run")
			continue
		}
		list = append(list, summarize(rec))
	}
	return list, nil
}

func (r *Redis) Delete(ctx context.Context, runID string) (bool, error) {
	n, err := r.client.Del(ctx, r.key(runID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis delete: %w", err)
	}
	if err := r.client.ZRem(ctx, r.index(), runID).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("redis zrem: %w", err)
	}
	return n > 0, nil
}
