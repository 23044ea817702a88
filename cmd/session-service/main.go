package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/salonflow/salonflow-sessions/internal/api/http"
	"github.com/salonflow/salonflow-sessions/internal/backend"
	backendpg "github.com/salonflow/salonflow-sessions/internal/backend/postgres"
	backendrest "github.com/salonflow/salonflow-sessions/internal/backend/rest"
	"github.com/salonflow/salonflow-sessions/internal/config"
	"github.com/salonflow/salonflow-sessions/internal/health"
	"github.com/salonflow/salonflow-sessions/internal/kv"
	"github.com/salonflow/salonflow-sessions/internal/kv/memkv"
	kvredis "github.com/salonflow/salonflow-sessions/internal/kv/redis"
	"github.com/salonflow/salonflow-sessions/internal/platform/logger"
	"github.com/salonflow/salonflow-sessions/internal/session"
)

const shutdownTimeout = 15 * time.Second

func main() {
	log := logger.New("session-service")

	cfg, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := buildKV(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open session store")
	}

	bb, err := buildBackend(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Backend).Msg("failed to open business backend")
	}

	sessions := session.New(store, bb, log, session.Config{
		OpTimeout: cfg.OpTimeout,
		TTL: session.TTLConfig{
			Dialog:      cfg.DialogTTL,
			ClientCache: cfg.ClientCacheTTL,
			Preferences: cfg.PreferencesTTL,
			Messages:    cfg.MessagesTTL,
			FullContext: cfg.FullContextTTL,
			Processing:  cfg.ProcessingTTL,
		},
	})
	defer func() {
		if err := sessions.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing session store")
		}
	}()

	checks := health.NewService()
	storeCheck := health.NewChecker("store", store, 10*time.Second, log)
	storeCheck.Start(ctx)
	checks.Register(storeCheck)

	router := api.NewRouter(
		api.NewSessionHandler(sessions, log),
		api.NewHealthHandler(sessions, checks),
		log,
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("session service listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("http server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown incomplete")
	}
	log.Info().Msg("session service stopped")
}

func buildKV(ctx context.Context, cfg *config.Config) (kv.KV, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		return memkv.New(), nil
	case config.DriverRedis:
		return kvredis.New(ctx, kvredis.Options{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			OpTimeout: cfg.OpTimeout,
		})
	default:
		return nil, fmt.Errorf("unsupported store driver: %q", cfg.StoreDriver)
	}
}

func buildBackend(cfg *config.Config) (backend.BusinessBackend, error) {
	switch cfg.Backend {
	case config.BackendNone:
		return nil, nil
	case config.BackendREST:
		return backendrest.New(cfg.BackendBaseURL, cfg.BackendToken, cfg.BackendTimeout), nil
	case config.BackendPostgres:
		db, err := backendpg.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return backendpg.NewWithDB(db), nil
	default:
		return nil, fmt.Errorf("unsupported backend: %q", cfg.Backend)
	}
}
