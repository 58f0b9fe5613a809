package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/vamon/internal/app"
	"codeberg.org/mutker/vamon/internal/config"
	"codeberg.org/mutker/vamon/internal/errors"
	"codeberg.org/mutker/vamon/internal/logger"
	"codeberg.org/mutker/vamon/internal/pid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.LogLevel, logger.IsService()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug().Msg("Config loaded")

	if err := run(cfg); err != nil {
		logger.ErrorWithCode(errors.Wrap(errors.ErrMainLoop, err)).Msg("exiting")
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	if err := pid.Write(); err != nil {
		return errors.Wrap(errors.ErrInitApp, err)
	}
	defer func() {
		if err := pid.Remove(); err != nil {
			logger.Warn().Err(err).Msg("failed to remove PID file")
		}
	}()

	instrument, err := app.New(cfg)
	if err != nil {
		return errors.Wrap(errors.ErrInitApp, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	return instrument.Run(ctx)
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}
