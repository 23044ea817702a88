package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/salonflow/salonflow-sessions/internal/api/respond"
	"github.com/salonflow/salonflow-sessions/internal/model"
	"github.com/salonflow/salonflow-sessions/internal/session"
)

// SessionHandler exposes the session store over HTTP.
type SessionHandler struct {
	store *session.Store
	log   zerolog.Logger
}

// NewSessionHandler creates the handler set for the given store.
func NewSessionHandler(store *session.Store, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{store: store, log: log}
}

func pathParams(r *http.Request) (int64, string, error) {
	vars := mux.Vars(r)
	tenantID, err := strconv.ParseInt(vars["tenantID"], 10, 64)
	if err != nil {
		return 0, "", errors.New("invalid tenant id")
	}
	return tenantID, vars["identity"], nil
}

// writeOpError maps store errors onto HTTP status codes.
func (h *SessionHandler) writeOpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidIdentity):
		respond.WriteError(w, http.StatusBadRequest, "invalid_identity")
	case errors.Is(err, model.ErrNotFound):
		respond.WriteError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, model.ErrWriteConflict):
		respond.WriteError(w, http.StatusConflict, "conflict")
	case errors.Is(err, model.ErrStoreUnavailable):
		respond.WriteError(w, http.StatusServiceUnavailable, "store_unavailable")
	default:
		h.log.Error().Err(err).Msg("unhandled session store error")
		respond.WriteError(w, http.StatusInternalServerError, "internal")
	}
}

// GetFullContext handles GET /v1/tenants/{tenantID}/sessions/{identity}/context.
func (h *SessionHandler) GetFullContext(w http.ResponseWriter, r *http.Request) {
	tenantID, identity, err := pathParams(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "invalid_tenant")
		return
	}
	fc := h.store.GetFullContext(r.Context(), identity, tenantID)
	respond.WriteJSON(w, http.StatusOK, fc)
}

// InvalidateContext handles DELETE .../context/cache.
func (h *SessionHandler) InvalidateContext(w http.ResponseWriter, r *http.Request) {
	tenantID, identity, err := pathParams(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "invalid_tenant")
		return
	}
	removed, err := h.store.InvalidateFullContext(r.Context(), identity, tenantID)
	if err != nil {
		h.writeOpError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true, "removed": removed})
}

// RefreshClientCache handles POST .../client-cache/refresh.
func (h *SessionHandler) RefreshClientCache(w http.ResponseWriter, r *http.Request) {
	tenantID, identity, err := pathParams(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "invalid_tenant")
		return
	}
	rec, err := h.store.RefreshClientCache(r.Context(), identity, tenantID)
	if err != nil {
		h.writeOpError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true, "client": rec})
}

// UpdateDialog handles PATCH .../dialog.
func (h *SessionHandler) UpdateDialog(w http.ResponseWriter, r *http.Request) {
	tenantID, identity, err := pathParams(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "invalid_tenant")
		return
	}
	var upd model.DialogUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	if err := h.store.UpdateDialogContext(r.Context(), identity, tenantID, upd); err != nil {
		h.writeOpError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// ClearDialog handles DELETE .../dialog.
func (h *SessionHandler) ClearDialog(w http.ResponseWriter, r *http.Request) {
	tenantID, identity, err := pathParams(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "invalid_tenant")
		return
	}
	if err := h.store.ClearDialogContext(r.Context(), identity, tenantID); err != nil {
		h.writeOpError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// AddMessage handles POST .../messages.
func (h *SessionHandler) AddMessage(w http.ResponseWriter, r *http.Request) {
	tenantID, identity, err := pathParams(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "invalid_tenant")
		return
	}
	var entry model.MessageLogEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	if entry.Text == "" {
		respond.WriteError(w, http.StatusBadRequest, "empty_text")
		return
	}
	if err := h.store.AddMessage(r.Context(), identity, tenantID, entry); err != nil {
		h.writeOpError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, map[string]interface{}{"success": true})
}

// GetMessages handles GET .../messages?limit=N.
func (h *SessionHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	tenantID, identity, err := pathParams(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "invalid_tenant")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			respond.WriteError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
	}
	msgs, err := h.store.GetMessages(r.Context(), identity, tenantID, limit)
	if err != nil {
		h.writeOpError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"messages": msgs})
}

// GetPreferences handles GET .../preferences.
func (h *SessionHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	tenantID, identity, err := pathParams(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "invalid_tenant")
		return
	}
	prefs, err := h.store.GetPreferences(r.Context(), identity, tenantID)
	if err != nil {
		h.writeOpError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"preferences": prefs})
}

// SavePreferences handles PUT .../preferences.
func (h *SessionHandler) SavePreferences(w http.ResponseWriter, r *http.Request) {
	tenantID, identity, err := pathParams(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "invalid_tenant")
		return
	}
	var partial model.Preferences
	if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	prefs, err := h.store.SavePreferences(r.Context(), identity, tenantID, partial)
	if err != nil {
		h.writeOpError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true, "preferences": prefs})
}

// RecordBooking handles POST .../bookings.
func (h *SessionHandler) RecordBooking(w http.ResponseWriter, r *http.Request) {
	tenantID, identity, err := pathParams(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "invalid_tenant")
		return
	}
	var facts model.BookingFacts
	if err := json.NewDecoder(r.Body).Decode(&facts); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	prefs, err := h.store.RecordSuccessfulBooking(r.Context(), identity, tenantID, facts)
	if err != nil {
		h.writeOpError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true, "preferences": prefs})
}

// SweepPreferences handles POST .../preferences/sweep. It resets the
// preference counters for an identity that has been idle longer than
// the given duration, keeping the derived favorites.
func (h *SessionHandler) SweepPreferences(w http.ResponseWriter, r *http.Request) {
	tenantID, identity, err := pathParams(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "invalid_tenant")
		return
	}
	var body struct {
		IdleSeconds int64 `json:"idleSeconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	swept, err := h.store.SweepStalePreferences(r.Context(), identity, tenantID, time.Duration(body.IdleSeconds)*time.Second)
	if err != nil {
		h.writeOpError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true, "swept": swept})
}

// SetProcessing handles POST .../processing.
func (h *SessionHandler) SetProcessing(w http.ResponseWriter, r *http.Request) {
	tenantID, identity, err := pathParams(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "invalid_tenant")
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	if err := h.store.SetProcessing(r.Context(), identity, tenantID, body.Status); err != nil {
		h.writeOpError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// GetProcessing handles GET .../processing.
func (h *SessionHandler) GetProcessing(w http.ResponseWriter, r *http.Request) {
	tenantID, identity, err := pathParams(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "invalid_tenant")
		return
	}
	status, err := h.store.GetProcessingStatus(r.Context(), identity, tenantID)
	if err != nil {
		h.writeOpError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"processing": status != nil,
		"status":     status,
	})
}

// ClearProcessing handles DELETE .../processing.
func (h *SessionHandler) ClearProcessing(w http.ResponseWriter, r *http.Request) {
	tenantID, identity, err := pathParams(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "invalid_tenant")
		return
	}
	if err := h.store.ClearProcessing(r.Context(), identity, tenantID); err != nil {
		h.writeOpError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}
