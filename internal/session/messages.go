package session

import (
	"context"
	"encoding/json"

	"github.com/salonflow/salonflow-sessions/internal/model"
)

// AddMessage appends one entry to the identity's capped message log.
// The push, the trim to the newest 50 entries, the TTL refresh and the
// full-context invalidation are applied as one batch, so a crash
// between steps cannot leave an untrimmed or TTL-less list. A missing
// timestamp is assigned server-side.
func (s *Store) AddMessage(ctx context.Context, rawIdentity string, tenantID int64, entry model.MessageLogEntry) error {
	subject, err := s.normalize(rawIdentity)
	if err != nil {
		return err
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}
	if entry.Sender == "" {
		entry.Sender = model.SenderUser
	}

	b, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	cctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, _, _, msgsKey, fullKey := s.keys(tenantID, subject)
	if err := s.kv.PushCapped(cctx, msgsKey, b, messageLogCap, s.ttl.Messages, fullKey); err != nil {
		return storeErr(err)
	}
	messagesAppendedTotal.Inc()
	return nil
}

// GetMessages returns up to limit entries in chronological order.
// Storage is newest first; the reversal here is part of the contract,
// not an implementation detail.
func (s *Store) GetMessages(ctx context.Context, rawIdentity string, tenantID int64, limit int) ([]model.MessageLogEntry, error) {
	subject, err := s.normalize(rawIdentity)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > messageLogCap {
		limit = messageLogCap
	}

	cctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, _, _, msgsKey, _ := s.keys(tenantID, subject)
	raw, err := s.kv.Range(cctx, msgsKey, int64(limit))
	if err != nil {
		return nil, storeErr(err)
	}
	return s.decodeMessages(raw), nil
}
