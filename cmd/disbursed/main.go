// Command disbursed runs the scheduled-payment disbursement daemon: it loads
// an optional bootstrap schedule, opens the obligation store, and serves the
// engine's operations over HTTP.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/castellan-labs/disburse/pkg/api"
	"github.com/castellan-labs/disburse/pkg/auth"
	"github.com/castellan-labs/disburse/pkg/config"
	"github.com/castellan-labs/disburse/pkg/engine"
	"github.com/castellan-labs/disburse/pkg/schedule"
	"github.com/castellan-labs/disburse/pkg/store"
	"github.com/castellan-labs/disburse/pkg/transfer"

	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		slog.Error("disbursed exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	st, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	opts := []engine.Option{engine.WithLogger(slog.Default())}
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		opts = append(opts, engine.WithSweepLock(
			engine.NewRedisSweepLock(client, "disburse:sweep", 30*time.Second)))
	}
	eng := engine.New(st, opts...)

	if cfg.ScheduleFile != "" {
		if err := bootstrap(eng, st, cfg.ScheduleFile); err != nil {
			return err
		}
	}

	validator := auth.NewJWTValidator([]byte(cfg.JWTSecret))
	if validator == nil {
		slog.Warn("JWT_SECRET not set; owner operations will be rejected")
	}

	blocks := engine.NewSystemBlockSource(0)
	server := api.NewServer(eng, blocks, transfer.NewRecorder(), validator, slog.Default())
	limiter := api.NewSweepLimiter(cfg.SweepRPS, cfg.SweepBurst)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Handler(limiter),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("disbursed listening", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		slog.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func openStore(cfg *config.Config) (store.ObligationStore, func(), error) {
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		pg := store.NewPostgresStore(db)
		if err := pg.Migrate(context.Background()); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return pg, func() { _ = db.Close() }, nil
	}

	db, err := sql.Open("sqlite", cfg.SQLitePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}
	sl, err := store.NewSQLiteStore(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return sl, func() { _ = db.Close() }, nil
}

// bootstrap runs Initialize from the schedule file, once. A store that
// already carries a config keeps it; re-running the daemon must not reset
// ownership or re-append the bootstrap schedule.
func bootstrap(eng *engine.Engine, st store.ObligationStore, path string) error {
	if _, err := st.GetConfig(context.Background()); err == nil {
		slog.Info("store already initialized; skipping bootstrap schedule")
		return nil
	} else if !errors.Is(err, store.ErrNotInitialized) {
		return fmt.Errorf("probe config: %w", err)
	}

	owner, entries, err := schedule.Load(path)
	if err != nil {
		return err
	}
	if err := eng.Initialize(context.Background(), owner, entries); err != nil {
		return fmt.Errorf("initialize engine: %w", err)
	}
	return nil
}
