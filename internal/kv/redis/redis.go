// Package redis implements kv.KV on a Redis server using go-redis.
// Optimistic updates map onto WATCH/MULTI/EXEC; batched reads onto a
// single pipelined round trip.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/salonflow/salonflow-sessions/internal/kv"
	"github.com/salonflow/salonflow-sessions/internal/model"
)

// Options configures the Redis client.
type Options struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
	OpTimeout   time.Duration
}

// Store is a Redis-backed kv.KV.
type Store struct {
	rdb *goredis.Client
}

var _ kv.KV = (*Store)(nil)

// New builds a Store and verifies connectivity with one ping.
func New(ctx context.Context, opts Options) (*Store, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.OpTimeout,
		WriteTimeout: opts.OpTimeout,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return &Store{rdb: rdb}, nil
}

// NewWithClient wraps an existing client (tests, shared pools).
func NewWithClient(rdb *goredis.Client) *Store { return &Store{rdb: rdb} }

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return b, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration, invalidate ...string) error {
	if len(invalidate) == 0 {
		if err := s.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
			return fmt.Errorf("redis set %s: %w", key, err)
		}
		return nil
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, key, value, ttl)
		pipe.Del(ctx, invalidate...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set+invalidate %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", key, err)
	}
	return n > 0, nil
}

func (s *Store) BatchGet(ctx context.Context, req kv.BatchGet) (*kv.BatchResult, error) {
	pipe := s.rdb.Pipeline()
	gets := make([]*goredis.StringCmd, len(req.Keys))
	for i, k := range req.Keys {
		gets[i] = pipe.Get(ctx, k)
	}
	var list *goredis.StringSliceCmd
	if req.ListKey != "" {
		end := req.ListCount - 1
		if req.ListCount <= 0 {
			end = -1
		}
		list = pipe.LRange(ctx, req.ListKey, 0, end)
	}
	// Exec reports the first command error, which for a sparse read is
	// routinely goredis.Nil; per-command results are inspected below.
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("redis batch get: %w", err)
	}

	res := &kv.BatchResult{Values: make(map[string][]byte, len(req.Keys))}
	for i, cmd := range gets {
		b, err := cmd.Bytes()
		if err != nil {
			if errors.Is(err, goredis.Nil) {
				continue
			}
			return nil, fmt.Errorf("redis batch get %s: %w", req.Keys[i], err)
		}
		res.Values[req.Keys[i]] = b
	}
	if list != nil {
		items, err := list.Result()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("redis batch lrange %s: %w", req.ListKey, err)
		}
		res.List = make([][]byte, 0, len(items))
		for _, it := range items {
			res.List = append(res.List, []byte(it))
		}
	}
	return res, nil
}

func (s *Store) PushCapped(ctx context.Context, listKey string, value []byte, max int64, ttl time.Duration, invalidate ...string) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.LPush(ctx, listKey, value)
		pipe.LTrim(ctx, listKey, 0, max-1)
		pipe.Expire(ctx, listKey, ttl)
		if len(invalidate) > 0 {
			pipe.Del(ctx, invalidate...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis push capped %s: %w", listKey, err)
	}
	return nil
}

func (s *Store) Range(ctx context.Context, listKey string, n int64) ([][]byte, error) {
	end := n - 1
	if n <= 0 {
		end = -1
	}
	items, err := s.rdb.LRange(ctx, listKey, 0, end).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange %s: %w", listKey, err)
	}
	out := make([][]byte, 0, len(items))
	for _, it := range items {
		out = append(out, []byte(it))
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, key string, fn kv.UpdateFunc) error {
	err := s.rdb.Watch(ctx, func(tx *goredis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		found := true
		if err != nil {
			if !errors.Is(err, goredis.Nil) {
				return err
			}
			found, cur = false, nil
		}
		mut, err := fn(cur, found)
		if err != nil {
			return err
		}
		if mut == nil {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, mut.Value, mut.TTL)
			if len(mut.Invalidate) > 0 {
				pipe.Del(ctx, mut.Invalidate...)
			}
			return nil
		})
		return err
	}, key)
	if err != nil {
		if errors.Is(err, goredis.TxFailedErr) {
			return model.ErrWriteConflict
		}
		return err
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.rdb.Close() }
