package session

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/salonflow/salonflow-sessions/internal/keyspace"
	"github.com/salonflow/salonflow-sessions/internal/model"
)

// SetProcessing marks the identity as mid-processing. The flag's short
// TTL is the safety net against a crashed worker leaving it behind.
func (s *Store) SetProcessing(ctx context.Context, rawIdentity string, tenantID int64, status string) error {
	subject, err := s.normalize(rawIdentity)
	if err != nil {
		return err
	}
	b, err := json.Marshal(model.ProcessingStatus{Status: status, StartedAt: s.now()})
	if err != nil {
		return err
	}
	cctx, cancel := s.opCtx(ctx)
	defer cancel()

	key := keyspace.Key(keyspace.Processing, tenantID, subject)
	return storeErr(s.kv.Set(cctx, key, b, s.ttl.Processing))
}

// GetProcessingStatus returns the in-flight marker, or nil when none is
// set.
func (s *Store) GetProcessingStatus(ctx context.Context, rawIdentity string, tenantID int64) (*model.ProcessingStatus, error) {
	subject, err := s.normalize(rawIdentity)
	if err != nil {
		return nil, err
	}
	cctx, cancel := s.opCtx(ctx)
	defer cancel()

	key := keyspace.Key(keyspace.Processing, tenantID, subject)
	b, err := s.kv.Get(cctx, key)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, nil
		}
		return nil, storeErr(err)
	}
	var st model.ProcessingStatus
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, nil
	}
	return &st, nil
}

// IsProcessing reports whether a turn for this identity is already in
// flight, the idempotency check against duplicate inbound triggers.
func (s *Store) IsProcessing(ctx context.Context, rawIdentity string, tenantID int64) (bool, error) {
	st, err := s.GetProcessingStatus(ctx, rawIdentity, tenantID)
	if err != nil {
		return false, err
	}
	return st != nil, nil
}

// ClearProcessing removes the in-flight marker.
func (s *Store) ClearProcessing(ctx context.Context, rawIdentity string, tenantID int64) error {
	subject, err := s.normalize(rawIdentity)
	if err != nil {
		return err
	}
	cctx, cancel := s.opCtx(ctx)
	defer cancel()

	key := keyspace.Key(keyspace.Processing, tenantID, subject)
	return storeErr(s.kv.Delete(cctx, key))
}
