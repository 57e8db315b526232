// Package app wires the chatty runtime: configuration, logging, storage,
// the auth core and the operational HTTP surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"chatty/cmd/internal/auth/audit"
	"chatty/cmd/internal/auth/core"
	"chatty/cmd/internal/auth/tokens"
	"chatty/cmd/internal/clock"
	"chatty/cmd/internal/metrics"
	"chatty/cmd/internal/storage"
	"chatty/cmd/internal/storage/memory"
	"chatty/cmd/internal/storage/migrations"
	"chatty/cmd/internal/storage/postgres"
	"chatty/cmd/security/password"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// App owns the process-wide dependencies.
type App struct {
	cfg Config
	log *slog.Logger

	pool *pgxpool.Pool
	uow  storage.UnitOfWork
	auth *core.Service

	registry    *prometheus.Registry
	httpMetrics *metrics.HTTP
}

// deps are the collaborators loaded from the environment by New.
type deps struct {
	hasher core.PasswordHasher
	signer core.TokenSigner
	clock  clock.Clock
}

// New loads password and token settings from the environment, opens storage and builds the auth core.
func New(ctx context.Context, cfg Config, log *slog.Logger) (*App, error) {
	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	hasher, err := password.NewHasherFromEnv()
	if err != nil {
		return nil, fmt.Errorf("password config: %w", err)
	}

	tcfg, err := tokens.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	signer, err := tokens.New(tcfg)
	if err != nil {
		return nil, err
	}
	log.Info("auth.signer.ready", "alg", string(signer.Algorithm()), "issuer", tcfg.Issuer, "refresh_hmac", len(tcfg.RefreshHMACKey) > 0)

	return build(ctx, cfg, log, deps{hasher: hasher, signer: signer, clock: clock.System{}})
}

func build(ctx context.Context, cfg Config, log *slog.Logger, d deps) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	a := &App{
		cfg:      cfg,
		log:      log,
		registry: metrics.NewRegistry(),
	}
	a.httpMetrics = metrics.NewHTTP(a.registry)

	var recorder audit.Recorder = audit.Nop{}

	switch cfg.Store {
	case StorePostgres:
		pool, err := NewDBPool(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("db: %w", err)
		}
		a.pool = pool
		log.Info("db.enabled.postgres_store", "schema", cfg.Database.Schema)

		if cfg.Database.MigrateOnStart {
			res, err := migrations.Up(ctx, pool, cfg.Database.Schema)
			if err != nil {
				pool.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
			log.Info("db.migrate.ok", "applied", len(res))
		}

		uow, err := postgres.NewUnitOfWork(pool, cfg.Database.Schema)
		if err != nil {
			pool.Close()
			return nil, err
		}
		a.uow = uow

		rec, err := audit.NewPostgresRecorder(pool, cfg.Database.Schema, log)
		if err != nil {
			pool.Close()
			return nil, err
		}
		recorder = rec

	default:
		log.Info("db.disabled.inmemory_store")
		a.uow = memory.NewUnitOfWork()
	}

	svc, err := core.New(a.uow, d.hasher, d.signer, d.clock, core.Options{
		Config: core.Config{
			RevokeSessionsOnPasswordChange: cfg.Auth.RevokeSessionsOnPasswordChange,
		},
		Logger:  log,
		Metrics: metrics.NewAuth(a.registry),
		Audit:   recorder,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.auth = svc

	return a, nil
}

// Auth returns the auth core.
func (a *App) Auth() *core.Service { return a.auth }

// Pool returns the database pool, or nil in memory mode.
func (a *App) Pool() *pgxpool.Pool { return a.pool }

// Close releases storage resources.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}

// Run serves the ops HTTP surface until ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.HTTP.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.HTTP.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.HTTP.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.HTTP.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.HTTP.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTP.Addr, "store", a.cfg.Store)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
