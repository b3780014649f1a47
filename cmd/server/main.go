package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Simplici0/precifica/internal/config"
	"github.com/Simplici0/precifica/internal/db"
	"github.com/Simplici0/precifica/internal/fees"
	"github.com/Simplici0/precifica/internal/logging"
	"github.com/Simplici0/precifica/internal/migrations"
	"github.com/Simplici0/precifica/internal/pricing"
	"github.com/Simplici0/precifica/internal/seed"
	"github.com/Simplici0/precifica/internal/store"
)

func main() {
	boot := logging.New(os.Getenv("LOG_LEVEL"), true)
	cfg := config.Load(boot)
	logger := logging.New(cfg.LogLevel, cfg.IsDev())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	database, err := db.Open(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := migrations.Up(ctx, database, logger); err != nil {
		return err
	}

	stats, err := seed.Run(ctx, database, fees.DefaultTable())
	if err != nil {
		return err
	}
	logger.Info().Int("inserts", stats.Inserts).Int("updates", stats.Updates).Msg("fee schedules seeded")

	srv := newServer(store.New(database), pricing.NewSolver(cfg.SolverOptions()), logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Str("env", cfg.AppEnv).Msg("listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
