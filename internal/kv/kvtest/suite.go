// Package kvtest holds a compliance suite every kv.KV driver must pass.
package kvtest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/salonflow/salonflow-sessions/internal/kv"
	"github.com/salonflow/salonflow-sessions/internal/model"
)

// Run exercises the kv.KV contract against a fresh driver instance.
// makeKV should return a clean, isolated store.
func Run(t *testing.T, makeKV func(t *testing.T) kv.KV) {
	t.Helper()

	s := makeKV(t)
	ctx := context.Background()
	prefix := "kvtest:" + uuid.New().String() + ":"

	// Get on an absent key.
	if _, err := s.Get(ctx, prefix+"missing"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Get missing: want ErrNotFound, got %v", err)
	}

	// Set / Get round trip.
	k1 := prefix + "a"
	if err := s.Set(ctx, k1, []byte("one"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got, err := s.Get(ctx, k1); err != nil || string(got) != "one" {
		t.Fatalf("Get: got=%q err=%v", got, err)
	}
	if ok, err := s.Exists(ctx, k1); err != nil || !ok {
		t.Fatalf("Exists: ok=%v err=%v", ok, err)
	}

	// Set with invalidation deletes the side keys in the same batch.
	k2 := prefix + "b"
	if err := s.Set(ctx, k2, []byte("stale"), time.Minute); err != nil {
		t.Fatalf("Set k2: %v", err)
	}
	if err := s.Set(ctx, k1, []byte("two"), time.Minute, k2); err != nil {
		t.Fatalf("Set invalidate: %v", err)
	}
	if _, err := s.Get(ctx, k2); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("invalidated key still present: %v", err)
	}

	// Capped list: push 7, cap 5, newest first.
	lk := prefix + "list"
	for i := 0; i < 7; i++ {
		if err := s.PushCapped(ctx, lk, []byte(fmt.Sprintf("m%d", i)), 5, time.Minute); err != nil {
			t.Fatalf("PushCapped %d: %v", i, err)
		}
	}
	items, err := s.Range(ctx, lk, 0)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(items) != 5 {
		t.Fatalf("Range: want 5 entries after trim, got %d", len(items))
	}
	if string(items[0]) != "m6" || string(items[4]) != "m2" {
		t.Fatalf("Range order: got %q..%q, want m6..m2", items[0], items[4])
	}
	if items, err = s.Range(ctx, lk, 2); err != nil || len(items) != 2 || string(items[0]) != "m6" {
		t.Fatalf("Range limit: n=%d err=%v", len(items), err)
	}

	// BatchGet covers present keys, absent keys and the list in one call.
	res, err := s.BatchGet(ctx, kv.BatchGet{
		Keys:      []string{k1, prefix + "missing"},
		ListKey:   lk,
		ListCount: 3,
	})
	if err != nil {
		t.Fatalf("BatchGet: %v", err)
	}
	if string(res.Values[k1]) != "two" {
		t.Fatalf("BatchGet value: %q", res.Values[k1])
	}
	if _, ok := res.Values[prefix+"missing"]; ok {
		t.Fatalf("BatchGet returned a value for an absent key")
	}
	if len(res.List) != 3 || string(res.List[0]) != "m6" {
		t.Fatalf("BatchGet list: n=%d first=%q", len(res.List), res.List)
	}

	// Optimistic update creates, then merges against the current value.
	uk := prefix + "upd"
	err = s.Update(ctx, uk, func(cur []byte, found bool) (*kv.Mutation, error) {
		if found {
			t.Fatalf("Update: key should not exist yet")
		}
		return &kv.Mutation{Value: []byte("v1"), TTL: time.Minute}, nil
	})
	if err != nil {
		t.Fatalf("Update create: %v", err)
	}
	err = s.Update(ctx, uk, func(cur []byte, found bool) (*kv.Mutation, error) {
		if !found || string(cur) != "v1" {
			t.Fatalf("Update read: found=%v cur=%q", found, cur)
		}
		return &kv.Mutation{Value: []byte("v2"), TTL: time.Minute, Invalidate: []string{k1}}, nil
	})
	if err != nil {
		t.Fatalf("Update merge: %v", err)
	}
	if got, _ := s.Get(ctx, uk); string(got) != "v2" {
		t.Fatalf("Update result: %q", got)
	}
	if _, err := s.Get(ctx, k1); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Update invalidation: key survived: %v", err)
	}

	// A nil mutation aborts without writing.
	err = s.Update(ctx, uk, func(cur []byte, found bool) (*kv.Mutation, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Update abort: %v", err)
	}
	if got, _ := s.Get(ctx, uk); string(got) != "v2" {
		t.Fatalf("Update abort wrote: %q", got)
	}

	// Delete is multi-key.
	if err := s.Delete(ctx, uk, lk); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := s.Exists(ctx, uk); ok {
		t.Fatalf("Delete left key behind")
	}

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
