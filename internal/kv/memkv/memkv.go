// Package memkv is an in-process kv.KV used by dev mode and unit
// tests. It reproduces the semantics the session store depends on:
// per-key TTLs, capped newest-first lists, batched invalidation, and
// watch-style optimistic updates (an Update whose base version changed
// before commit fails with model.ErrWriteConflict, exactly like a
// WATCH-ed Redis transaction).
package memkv

import (
	"context"
	"sync"
	"time"

	"github.com/salonflow/salonflow-sessions/internal/kv"
	"github.com/salonflow/salonflow-sessions/internal/model"
)

type entry struct {
	value     []byte
	list      [][]byte // newest first
	version   uint64
	expiresAt time.Time // zero = no expiry
}

// Store is an in-memory kv.KV. Safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	data map[string]*entry

	// now is replaceable in tests to exercise TTL expiry.
	now func() time.Time
}

var _ kv.KV = (*Store)(nil)

func New() *Store {
	return &Store{data: make(map[string]*entry), now: time.Now}
}

// SetClock overrides the time source. Test hook only.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// live returns the entry for key if present and unexpired. Caller holds mu.
func (s *Store) live(key string) *entry {
	e, ok := s.data[key]
	if !ok {
		return nil
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.data, key)
		return nil
	}
	return e
}

func (s *Store) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.live(key)
	if e == nil || e.value == nil {
		return nil, model.ErrNotFound
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration, invalidate ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key, value, ttl)
	for _, k := range invalidate {
		delete(s.data, k)
	}
	return nil
}

func (s *Store) setLocked(key string, value []byte, ttl time.Duration) {
	v := make([]byte, len(value))
	copy(v, value)
	e := s.data[key]
	if e == nil {
		e = &entry{}
		s.data[key] = e
	}
	e.value = v
	e.list = nil
	e.version++
	e.expiresAt = s.expiry(ttl)
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live(key) != nil, nil
}

func (s *Store) BatchGet(ctx context.Context, req kv.BatchGet) (*kv.BatchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	res := &kv.BatchResult{Values: make(map[string][]byte, len(req.Keys))}
	for _, k := range req.Keys {
		if e := s.live(k); e != nil && e.value != nil {
			v := make([]byte, len(e.value))
			copy(v, e.value)
			res.Values[k] = v
		}
	}
	if req.ListKey != "" {
		res.List = s.rangeLocked(req.ListKey, req.ListCount)
	}
	return res, nil
}

func (s *Store) rangeLocked(listKey string, n int64) [][]byte {
	e := s.live(listKey)
	if e == nil {
		return nil
	}
	items := e.list
	if n > 0 && int64(len(items)) > n {
		items = items[:n]
	}
	out := make([][]byte, len(items))
	for i, it := range items {
		v := make([]byte, len(it))
		copy(v, it)
		out[i] = v
	}
	return out
}

func (s *Store) PushCapped(ctx context.Context, listKey string, value []byte, max int64, ttl time.Duration, invalidate ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.live(listKey)
	if e == nil {
		e = &entry{}
		s.data[listKey] = e
	}
	v := make([]byte, len(value))
	copy(v, value)
	e.list = append([][]byte{v}, e.list...)
	if max > 0 && int64(len(e.list)) > max {
		e.list = e.list[:max]
	}
	e.version++
	e.expiresAt = s.expiry(ttl)
	for _, k := range invalidate {
		delete(s.data, k)
	}
	return nil
}

func (s *Store) Range(ctx context.Context, listKey string, n int64) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rangeLocked(listKey, n), nil
}

func (s *Store) Update(ctx context.Context, key string, fn kv.UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Snapshot the watched key, then run fn outside the lock so
	// concurrent writers genuinely race, as they would against Redis.
	s.mu.Lock()
	var (
		base    uint64
		current []byte
		found   bool
	)
	// The version is snapshotted whenever the entry exists at all, even
	// as a bare list: fn only sees a value, but the conflict check has
	// to cover every write to the watched key.
	if e := s.live(key); e != nil {
		base = e.version
		if e.value != nil {
			current = make([]byte, len(e.value))
			copy(current, e.value)
			found = true
		}
	}
	s.mu.Unlock()

	mut, err := fn(current, found)
	if err != nil {
		return err
	}
	if mut == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var cur uint64
	if e := s.live(key); e != nil {
		cur = e.version
	}
	if cur != base {
		return model.ErrWriteConflict
	}
	s.setLocked(key, mut.Value, mut.TTL)
	for _, k := range mut.Invalidate {
		delete(s.data, k)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }
