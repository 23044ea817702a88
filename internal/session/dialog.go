package session

import (
	"context"
	"encoding/json"

	"github.com/salonflow/salonflow-sessions/internal/kv"
	"github.com/salonflow/salonflow-sessions/internal/model"
)

// UpdateDialogContext applies a partial update to the dialog record
// under optimistic concurrency. The merged value, its refreshed TTL and
// the full-context cache invalidation commit as one transaction; a
// concurrent writer forces a retry against the new base state. After
// the retry budget the caller gets model.ErrWriteConflict and must not
// assume the update applied.
func (s *Store) UpdateDialogContext(ctx context.Context, rawIdentity string, tenantID int64, upd model.DialogUpdate) error {
	subject, err := s.normalize(rawIdentity)
	if err != nil {
		return err
	}
	cctx, cancel := s.opCtx(ctx)
	defer cancel()

	dialogKey, _, _, _, fullKey := s.keys(tenantID, subject)

	err = s.withOptimisticRetry(cctx, dialogKey, func(cur []byte, found bool) (*kv.Mutation, error) {
		prev := model.DialogContext{State: model.DialogStateNew}
		if found {
			if jsonErr := json.Unmarshal(cur, &prev); jsonErr != nil {
				s.log.Warn().Err(jsonErr).Str("key", dialogKey).Msg("undecodable dialog record, starting fresh")
				prev = model.DialogContext{State: model.DialogStateNew}
			}
		}
		merged := s.mergeDialog(prev, upd)
		b, mErr := json.Marshal(merged)
		if mErr != nil {
			return nil, mErr
		}
		return &kv.Mutation{Value: b, TTL: s.ttl.Dialog, Invalidate: []string{fullKey}}, nil
	})
	return storeErr(err)
}

// mergeDialog folds upd into prev. Selection fields follow the
// tri-state contract: absent keeps the previous value verbatim,
// explicit null clears, a value replaces. Everything else is
// "update wins if present, else keep previous".
func (s *Store) mergeDialog(prev model.DialogContext, upd model.DialogUpdate) model.DialogContext {
	out := prev

	if upd.Selection != nil {
		out.Selection.Service = upd.Selection.Service.Apply(prev.Selection.Service)
		out.Selection.Staff = upd.Selection.Staff.Apply(prev.Selection.Staff)
		out.Selection.Date = upd.Selection.Date.Apply(prev.Selection.Date)
		out.Selection.Time = upd.Selection.Time.Apply(prev.Selection.Time)
	}

	if upd.PendingAction.Set {
		if upd.PendingAction.Value == nil {
			out.PendingAction = nil
		} else {
			out.PendingAction = *upd.PendingAction.Value
		}
	}

	out.ClientName = upd.ClientName.Apply(prev.ClientName)

	if upd.State.Set && upd.State.Value != nil {
		out.State = *upd.State.Value
	}
	if out.State == "" {
		out.State = model.DialogStateNew
	}

	if upd.AskedForTimeSelection.Set {
		if upd.AskedForTimeSelection.Value != nil && *upd.AskedForTimeSelection.Value {
			out.AskedForTimeSelection = true
			t := s.now()
			out.AskedForTimeAt = &t
		} else {
			out.AskedForTimeSelection = false
			out.AskedForTimeAt = nil
		}
	}

	if upd.ShownSlots.Set {
		if upd.ShownSlots.Value != nil && *upd.ShownSlots.Value {
			t := s.now()
			out.ShownSlotsAt = &t
		} else {
			out.ShownSlotsAt = nil
		}
	}

	out.LastUpdated = s.now()
	return out
}

// ClearDialogContext drops the dialog record after a terminal event
// (booking confirmed, conversation reset) together with the cached
// full context, so stale selections cannot leak into the next request.
func (s *Store) ClearDialogContext(ctx context.Context, rawIdentity string, tenantID int64) error {
	subject, err := s.normalize(rawIdentity)
	if err != nil {
		return err
	}
	cctx, cancel := s.opCtx(ctx)
	defer cancel()

	dialogKey, _, _, _, fullKey := s.keys(tenantID, subject)
	return storeErr(s.kv.Delete(cctx, dialogKey, fullKey))
}
