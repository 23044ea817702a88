// Package session implements the layered conversational-session state
// store: pipelined context aggregation, transactional dialog updates,
// the capped message log, the preference accumulator and the
// processing-status flag, all keyed by (tenant, canonical subject).
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/salonflow/salonflow-sessions/internal/backend"
	"github.com/salonflow/salonflow-sessions/internal/identity"
	"github.com/salonflow/salonflow-sessions/internal/keyspace"
	"github.com/salonflow/salonflow-sessions/internal/kv"
	"github.com/salonflow/salonflow-sessions/internal/model"
)

const (
	// messageLogCap bounds the per-identity message log.
	messageLogCap = 50
	// contextMessageCount is how many recent messages the aggregator
	// folds into a full context.
	contextMessageCount = 20

	// Optimistic write budget.
	maxUpdateAttempts = 3
	retryBaseDelay    = 50 * time.Millisecond

	defaultOpTimeout = 3 * time.Second
)

// TTLConfig carries the bounded lifetime of each data class.
type TTLConfig struct {
	Dialog      time.Duration
	ClientCache time.Duration
	Preferences time.Duration
	Messages    time.Duration
	FullContext time.Duration
	Processing  time.Duration
}

// DefaultTTLs returns the production lifetimes. Preferences live far
// longer than dialog state; the full-context cache is deliberately
// short so invalidation bugs cannot hide behind it.
func DefaultTTLs() TTLConfig {
	return TTLConfig{
		Dialog:      24 * time.Hour,
		ClientCache: time.Hour,
		Preferences: 90 * 24 * time.Hour,
		Messages:    7 * 24 * time.Hour,
		FullContext: 5 * time.Minute,
		Processing:  2 * time.Minute,
	}
}

// Config tunes a Store.
type Config struct {
	TTL TTLConfig
	// OpTimeout bounds every store round trip.
	OpTimeout time.Duration
}

// Store is the session state store. It owns no ambient globals: the kv
// client and business backend are injected, and Close releases them.
type Store struct {
	kv        kv.KV
	backend   backend.BusinessBackend // may be nil
	log       zerolog.Logger
	ttl       TTLConfig
	opTimeout time.Duration

	// now is replaceable in tests.
	now func() time.Time
}

// New builds a Store. bb may be nil when no business backend is
// reachable from this deployment; the client cache is then populated
// only by explicit RefreshClientCache calls.
func New(store kv.KV, bb backend.BusinessBackend, log zerolog.Logger, cfg Config) *Store {
	if cfg.TTL == (TTLConfig{}) {
		cfg.TTL = DefaultTTLs()
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = defaultOpTimeout
	}
	return &Store{
		kv:        store,
		backend:   bb,
		log:       log,
		ttl:       cfg.TTL,
		opTimeout: cfg.OpTimeout,
		now:       time.Now,
	}
}

// Close releases the underlying store client.
func (s *Store) Close() error { return s.kv.Close() }

// normalize canonicalizes rawIdentity or fails with ErrInvalidIdentity.
func (s *Store) normalize(rawIdentity string) (string, error) {
	return identity.Normalize(rawIdentity)
}

// opCtx bounds one store round trip.
func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

// withOptimisticRetry runs fn through the kv optimistic-update cycle,
// retrying lost races with increasing delay up to the attempt budget.
// Exhausting the budget surfaces model.ErrWriteConflict; losers always
// retry against the freshly read base state, never a stale one.
func (s *Store) withOptimisticRetry(ctx context.Context, key string, fn kv.UpdateFunc) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = retryBaseDelay
	exp.Multiplier = 2
	exp.Reset()

	for attempt := 1; ; attempt++ {
		err := s.kv.Update(ctx, key, fn)
		if !errors.Is(err, model.ErrWriteConflict) {
			return err
		}
		writeConflictsTotal.Inc()
		if attempt >= maxUpdateAttempts {
			s.log.Warn().Str("key", key).Int("attempts", attempt).Msg("optimistic update exhausted retry budget")
			return model.ErrWriteConflict
		}
		writeRetriesTotal.Inc()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(exp.NextBackOff()):
		}
	}
}

// storeErr maps driver failures onto the typed error taxonomy. Sentinel
// errors pass through; anything else is a connectivity-class failure.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, model.ErrNotFound) || errors.Is(err, model.ErrWriteConflict) || errors.Is(err, model.ErrInvalidIdentity) {
		return err
	}
	return fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
}

func (s *Store) keys(tenantID int64, subject string) (dialog, client, prefs, msgs, full string) {
	dialog = keyspace.Key(keyspace.Dialog, tenantID, subject)
	client = keyspace.Key(keyspace.ClientCache, tenantID, subject)
	prefs = keyspace.Key(keyspace.Preferences, tenantID, subject)
	msgs = keyspace.Key(keyspace.Messages, tenantID, subject)
	full = keyspace.Key(keyspace.FullContext, tenantID, subject)
	return
}
