package main

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"songmill/internal/config"
	"songmill/internal/logging"
	"songmill/internal/queue"
	"songmill/internal/stage"
	"songmill/internal/stages"
	"songmill/internal/storage"
	"songmill/internal/workflow"
)

// commandContext lazily resolves the configuration and shared dependencies so
// each subcommand only pays for what it uses.
type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolvedPath, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolvedPath
	})
	return c.config, c.configErr
}

func (c *commandContext) newLogger(toFile bool) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	opts := logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format}
	if toFile {
		opts.Paths = []string{filepath.Join(cfg.Paths.LogDir, "songmill.log")}
	}
	return logging.New(opts)
}

func (c *commandContext) openStore() (*queue.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return queue.Open(cfg)
}

// buildManager assembles the full pipeline: storage, clients, handlers, and
// the workflow manager over them.
func (c *commandContext) buildManager(store *queue.Store, logger *slog.Logger) (*workflow.Manager, map[queue.TaskType]stage.Handler, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	objects, err := storage.New(cfg.Storage)
	if err != nil {
		return nil, nil, err
	}
	handlers, err := stages.Build(store, objects, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return workflow.NewManager(cfg, store, handlers, logger), handlers, nil
}
