package session

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/salonflow/salonflow-sessions/internal/kv"
	"github.com/salonflow/salonflow-sessions/internal/model"
)

// batchGetRequest covers the three structured records plus the newest
// slice of the message log in one round trip.
func batchGetRequest(dialogKey, clientKey, prefsKey, msgsKey string) kv.BatchGet {
	return kv.BatchGet{
		Keys:      []string{dialogKey, clientKey, prefsKey},
		ListKey:   msgsKey,
		ListCount: contextMessageCount,
	}
}

// GetFullContext assembles the derived context for one identity. It
// never fails: an invalid identity or an unreachable store yields a
// minimal context with the Error field set, which callers should treat
// as a fresh session. The dominant fast path is a cache hit on the
// full-context key; on a miss, the four underlying data classes are
// fetched in a single pipelined round trip and merged.
func (s *Store) GetFullContext(ctx context.Context, rawIdentity string, tenantID int64) *model.FullContext {
	subject, err := s.normalize(rawIdentity)
	if err != nil {
		// Subject stays empty: the raw input is not a canonical subject
		// and must not look like a usable key fragment.
		return s.degraded(tenantID, "", "invalid_identity")
	}

	cctx, cancel := s.opCtx(ctx)
	defer cancel()

	dialogKey, clientKey, prefsKey, msgsKey, fullKey := s.keys(tenantID, subject)

	// Fast path: cached full context.
	if b, err := s.kv.Get(cctx, fullKey); err == nil {
		var fc model.FullContext
		if jsonErr := json.Unmarshal(b, &fc); jsonErr == nil {
			cacheHitsTotal.Inc()
			return &fc
		}
		// Corrupt cache entry: drop it and rebuild.
		s.log.Warn().Str("key", fullKey).Msg("discarding undecodable full-context cache entry")
		_ = s.kv.Delete(cctx, fullKey)
	} else if !errors.Is(err, model.ErrNotFound) {
		degradedReadsTotal.Inc()
		s.log.Error().Err(err).Str("subject", subject).Msg("full-context cache read failed")
		return s.degraded(tenantID, subject, "store_unavailable")
	}
	cacheMissesTotal.Inc()

	res, err := s.kv.BatchGet(cctx, batchGetRequest(dialogKey, clientKey, prefsKey, msgsKey))
	if err != nil {
		degradedReadsTotal.Inc()
		s.log.Error().Err(err).Str("subject", subject).Msg("pipelined context read failed")
		return s.degraded(tenantID, subject, "store_unavailable")
	}

	dialog := decodeDialog(s, res.Values[dialogKey])
	client := decodeClient(s, res.Values[clientKey])
	prefs := decodePreferences(s, res.Values[prefsKey])
	messages := s.decodeMessages(res.List)

	// Client-cache read-through: a missing mirror is filled from the
	// business backend when one is wired; failures leave it empty
	// (missing data is never fatal here).
	if client == nil && s.backend != nil {
		if rec, err := s.backend.FetchClient(cctx, tenantID, subject); err == nil {
			client = rec
			if b, mErr := json.Marshal(rec); mErr == nil {
				if setErr := s.kv.Set(cctx, clientKey, b, s.ttl.ClientCache); setErr != nil {
					s.log.Warn().Err(setErr).Str("subject", subject).Msg("client cache fill failed")
				}
			}
		} else if !errors.Is(err, model.ErrNotFound) {
			s.log.Warn().Err(err).Str("subject", subject).Msg("business backend lookup failed")
		}
	}

	fc := s.assemble(tenantID, subject, dialog, client, prefs, messages)

	// Write-back is best effort; the assembled context is correct
	// either way and the next read simply rebuilds.
	if b, err := json.Marshal(fc); err == nil {
		if err := s.kv.Set(cctx, fullKey, b, s.ttl.FullContext); err != nil {
			s.log.Warn().Err(err).Str("subject", subject).Msg("full-context cache write failed")
		}
	}
	return fc
}

// assemble applies the aggregation priority rules.
func (s *Store) assemble(tenantID int64, subject string, dialog *model.DialogContext, client *model.ClientRecord, prefs *model.Preferences, messages []model.MessageLogEntry) *model.FullContext {
	fc := &model.FullContext{
		TenantID:    tenantID,
		Subject:     subject,
		Client:      client,
		Dialog:      dialog,
		Preferences: prefs,
		Messages:    messages,
		IsNewClient: client == nil && prefs == nil,
		DialogState: model.DialogStateNew,
		Timestamp:   s.now(),
	}
	if fc.Messages == nil {
		fc.Messages = []model.MessageLogEntry{}
	}

	if dialog != nil {
		fc.HasActiveDialog = true
		fc.DialogState = dialog.State
		fc.CurrentSelection = dialog.Selection
	}

	// Dialog-supplied name wins over the cached client record.
	switch {
	case dialog != nil && dialog.ClientName != nil:
		fc.ClientName = *dialog.ClientName
	case client != nil:
		fc.ClientName = client.Name
	}

	// Favorites only surface when the dialog does not already imply a
	// different active choice.
	if fc.CurrentSelection.Service == nil {
		if prefs != nil && prefs.FavoriteServiceID != nil {
			fc.FavoriteServiceID = prefs.FavoriteServiceID
		} else if client != nil && client.FavoriteServiceID != nil {
			fc.FavoriteServiceID = client.FavoriteServiceID
		}
	}
	if fc.CurrentSelection.Staff == nil {
		if prefs != nil && prefs.FavoriteStaffID != nil {
			fc.FavoriteStaffID = prefs.FavoriteStaffID
		} else if client != nil && client.FavoriteStaffID != nil {
			fc.FavoriteStaffID = client.FavoriteStaffID
		}
	}
	return fc
}

func (s *Store) degraded(tenantID int64, subject, tag string) *model.FullContext {
	return &model.FullContext{
		TenantID:    tenantID,
		Subject:     subject,
		Messages:    []model.MessageLogEntry{},
		IsNewClient: true,
		DialogState: model.DialogStateNew,
		Timestamp:   s.now(),
		Error:       tag,
	}
}

// InvalidateFullContext drops the cached aggregate so the next read
// rebuilds from the underlying data classes. Reports whether an entry
// was (or may have been) removed.
func (s *Store) InvalidateFullContext(ctx context.Context, rawIdentity string, tenantID int64) (bool, error) {
	subject, err := s.normalize(rawIdentity)
	if err != nil {
		return false, err
	}
	cctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, _, _, _, fullKey := s.keys(tenantID, subject)
	had, err := s.kv.Exists(cctx, fullKey)
	if err != nil {
		return false, storeErr(err)
	}
	if err := s.kv.Delete(cctx, fullKey); err != nil {
		return false, storeErr(err)
	}
	return had, nil
}

// RefreshClientCache re-mirrors the client record from the business
// backend and invalidates the full-context cache in the same batch.
func (s *Store) RefreshClientCache(ctx context.Context, rawIdentity string, tenantID int64) (*model.ClientRecord, error) {
	subject, err := s.normalize(rawIdentity)
	if err != nil {
		return nil, err
	}
	if s.backend == nil {
		return nil, model.ErrNotFound
	}
	cctx, cancel := s.opCtx(ctx)
	defer cancel()

	rec, err := s.backend.FetchClient(cctx, tenantID, subject)
	if err != nil {
		return nil, storeErr(err)
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	_, clientKey, _, _, fullKey := s.keys(tenantID, subject)
	if err := s.kv.Set(cctx, clientKey, b, s.ttl.ClientCache, fullKey); err != nil {
		return nil, storeErr(err)
	}
	return rec, nil
}

// --- decoding helpers: a blob that is missing or undecodable is
// treated as absent, never fatal. ---

func decodeDialog(s *Store, b []byte) *model.DialogContext {
	if b == nil {
		return nil
	}
	var d model.DialogContext
	if err := json.Unmarshal(b, &d); err != nil {
		s.log.Warn().Err(err).Msg("undecodable dialog record treated as empty")
		return nil
	}
	return &d
}

func decodeClient(s *Store, b []byte) *model.ClientRecord {
	if b == nil {
		return nil
	}
	var c model.ClientRecord
	if err := json.Unmarshal(b, &c); err != nil {
		s.log.Warn().Err(err).Msg("undecodable client-cache record treated as empty")
		return nil
	}
	return &c
}

func decodePreferences(s *Store, b []byte) *model.Preferences {
	if b == nil {
		return nil
	}
	var p model.Preferences
	if err := json.Unmarshal(b, &p); err != nil {
		s.log.Warn().Err(err).Msg("undecodable preferences record treated as empty")
		return nil
	}
	return &p
}

// decodeMessages converts the newest-first storage order into the
// chronological order callers consume.
func (s *Store) decodeMessages(raw [][]byte) []model.MessageLogEntry {
	out := make([]model.MessageLogEntry, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var m model.MessageLogEntry
		if err := json.Unmarshal(raw[i], &m); err != nil {
			s.log.Warn().Err(err).Msg("skipping undecodable message-log entry")
			continue
		}
		out = append(out, m)
	}
	return out
}
