// Package cli holds the start-up steps shared by cmd/ledger and
// cmd/ledger-worker.
package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"familyledger/internal/config"
	"familyledger/internal/log"
)

// LoadEnvFile loads .env for local development. A missing file is not an
// error.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadConfig decodes and validates the environment and builds the process
// logger from LOG_LEVEL.
func LoadConfig(component string, out io.Writer) (*config.Config, *log.Logger, error) {
	if out == nil {
		out = os.Stdout
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, log.New(log.Config{Component: component, Output: out}), err
	}
	logger := log.New(log.Config{Level: log.ParseLevel(cfg.LogLevel), Component: component, Output: out})
	if err := cfg.Validate(); err != nil {
		return nil, logger, err
	}
	return cfg, logger, nil
}

// MustLoadConfig is LoadConfig for main: it installs the logger as default
// and exits the process on failure.
func MustLoadConfig(component string) (*config.Config, *log.Logger) {
	cfg, logger, err := LoadConfig(component, os.Stdout)
	log.SetDefault(logger)
	if err != nil {
		logger.ErrorContext(context.Background(), "Configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	return cfg, logger
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
