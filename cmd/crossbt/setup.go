package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/newthinker/crossbt/internal/app"
	"github.com/newthinker/crossbt/internal/config"
	"github.com/newthinker/crossbt/internal/logger"
	"go.uber.org/zap"
)

// loadConfig reads the config file, or the defaults when none is given.
func loadConfig(log *zap.Logger) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if cfgFile == "" {
		log.Debug("no config file specified, using defaults")
	}
	if debug {
		cfg.Log.Development = true
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// withApp handles common setup and teardown. fn runs under a context that
// is cancelled on SIGINT or SIGTERM.
func withApp(override func(*config.Config), fn func(ctx context.Context, a *app.App, cfg *config.Config, log *zap.Logger) error) error {
	boot := logger.Must(logger.Options{Development: debug})
	cfg, err := loadConfig(boot)
	if err != nil {
		return err
	}
	if override != nil {
		override(cfg)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}

	log, err := logger.New(logger.Options{
		Development: cfg.Log.Development,
		Level:       cfg.Log.Level,
		OutputPaths: cfg.Log.OutputPaths,
	})
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Sync()

	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := fn(ctx, a, cfg, log); err != nil {
		return err
	}
	if err := a.WriteMetrics(); err != nil {
		log.Warn("metrics export failed", zap.Error(err))
	}
	return nil
}
