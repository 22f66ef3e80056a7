package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"songmill/internal/logging"
	"songmill/internal/storage"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the processing daemon until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			lockPath := filepath.Join(cfg.Paths.LogDir, "songmill.lock")
			lock := flock.New(lockPath)
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire daemon lock: %w", err)
			}
			if !locked {
				return errors.New("another songmill daemon is already running")
			}
			defer func() { _ = lock.Unlock() }()

			logger, err := ctx.newLogger(true)
			if err != nil {
				return err
			}
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			objects, err := storage.New(cfg.Storage)
			if err != nil {
				return err
			}
			if err := objects.EnsureBucket(cmd.Context()); err != nil {
				logger.Warn("object storage bucket check failed", logging.Error(err))
			}

			manager, _, err := ctx.buildManager(store, logger)
			if err != nil {
				return err
			}

			runCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			manager.Start(runCtx)
			logger.Info("daemon running", logging.String("lock", lockPath))
			<-runCtx.Done()
			manager.Stop()
			return nil
		},
	}
}
