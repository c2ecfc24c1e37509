// Package cli provides the initialization steps shared by the fintrack
// binaries.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fintrack/internal/config"
	"fintrack/internal/log"
)

// SetupLogger builds the process logger from configuration and installs it
// as the slog default.
func SetupLogger(cfg *config.Config) *log.Logger {
	lc := log.DefaultConfig()
	if cfg != nil {
		lc.Level = log.ParseLevel(cfg.LogLevel)
		lc.Format = cfg.LogFormat
	}
	logger := log.New(lc)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// ShutdownStep is one named unit of graceful shutdown.
type ShutdownStep struct {
	Name string
	Run  func(ctx context.Context) error
}

// GracefulShutdown runs steps in order under a single deadline. Every step
// runs even if an earlier one fails; the failures are joined.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, steps ...ShutdownStep) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	for _, step := range steps {
		if err := step.Run(ctx); err != nil {
			logger.Error("Shutdown step failed",
				log.FieldOperation, log.OpShutdown, "step", step.Name, log.FieldError, err)
			errs = append(errs, fmt.Errorf("%s: %w", step.Name, err))
			continue
		}
		logger.Debug("Shutdown step complete", "step", step.Name)
	}

	if ctx.Err() != nil {
		logger.Warn("Shutdown timeout reached", "timeout", timeout)
	}
	return errors.Join(errs...)
}
