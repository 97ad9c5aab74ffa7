// Package cli provides common initialization utilities shared by
// cmd/despesas and cmd/despesas-api.
package cli

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"despesas/internal/config"
	"despesas/internal/log"
	"despesas/internal/storage"
)

// ShutdownTimeout bounds how long a server gets to drain on shutdown.
const ShutdownTimeout = 30 * time.Second

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// Bootstrap loads .env and the configuration, builds the logger at the
// configured level and validates the configuration. It exits the process on
// validation failure.
func Bootstrap() (*config.Config, *log.Logger) {
	LoadEnvFile()

	cfg := config.Load()
	logger := log.New(log.Config{Level: log.ParseLevel(cfg.LogLevel), Component: log.ComponentApp})
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg, logger
}

// InitSQLite opens the SQLite database at dbPath.
// Returns the repository or exits the process on failure.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath, logger)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// Server is what Serve runs.
type Server interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// Serve runs srv in g and shuts it down once ctx is done.
func Serve(ctx context.Context, g *errgroup.Group, srv Server, logger *log.Logger, timeout time.Duration) {
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down", log.FieldOperation, log.OpShutdown)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// IgnoreCanceled turns the context.Canceled returned by loops that stop on
// shutdown into a clean exit.
func IgnoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Wait waits for g and then closes closers in order, whatever g returned.
// Close failures are logged; the returned error is the one from g.
func Wait(g *errgroup.Group, logger *log.Logger, closers ...io.Closer) error {
	err := g.Wait()
	for _, c := range closers {
		if cerr := c.Close(); cerr != nil {
			logger.Error("Failed to close resource", log.FieldError, cerr)
		}
	}
	return err
}
