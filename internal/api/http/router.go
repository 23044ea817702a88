package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// NewRouter assembles the full HTTP routing table for the session service.
func NewRouter(sh *SessionHandler, hh *HealthHandler, log zerolog.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(requestLogger(log))

	r.HandleFunc("/v1/health", hh.Deep).Methods(http.MethodGet)
	r.HandleFunc("/v1/health/live", hh.Live).Methods(http.MethodGet)
	r.HandleFunc("/v1/health/ready", hh.Ready).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	s := r.PathPrefix("/v1/tenants/{tenantID}/sessions/{identity}").Subrouter()
	s.HandleFunc("/context", sh.GetFullContext).Methods(http.MethodGet)
	s.HandleFunc("/context/cache", sh.InvalidateContext).Methods(http.MethodDelete)
	s.HandleFunc("/client-cache/refresh", sh.RefreshClientCache).Methods(http.MethodPost)
	s.HandleFunc("/dialog", sh.UpdateDialog).Methods(http.MethodPatch)
	s.HandleFunc("/dialog", sh.ClearDialog).Methods(http.MethodDelete)
	s.HandleFunc("/messages", sh.AddMessage).Methods(http.MethodPost)
	s.HandleFunc("/messages", sh.GetMessages).Methods(http.MethodGet)
	s.HandleFunc("/preferences", sh.GetPreferences).Methods(http.MethodGet)
	s.HandleFunc("/preferences", sh.SavePreferences).Methods(http.MethodPut)
	s.HandleFunc("/preferences/sweep", sh.SweepPreferences).Methods(http.MethodPost)
	s.HandleFunc("/bookings", sh.RecordBooking).Methods(http.MethodPost)
	s.HandleFunc("/processing", sh.SetProcessing).Methods(http.MethodPost)
	s.HandleFunc("/processing", sh.GetProcessing).Methods(http.MethodGet)
	s.HandleFunc("/processing", sh.ClearProcessing).Methods(http.MethodDelete)

	return r
}

func requestLogger(log zerolog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Dur("duration", time.Since(start)).
				Msg("request handled")
		})
	}
}
