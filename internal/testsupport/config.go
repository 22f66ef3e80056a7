package testsupport

import (
	"path/filepath"
	"testing"

	"songmill/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Storage.Endpoint = "127.0.0.1:0"
	cfg.Storage.AccessKey = "test"
	cfg.Storage.SecretKey = "test"
	cfg.Workflow.Workers = 1
	cfg.Workflow.PollIntervalSecs = 1
	cfg.Workflow.HeartbeatSecs = 1

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithRetryPolicy overrides the global retry ceiling and backoff.
func WithRetryPolicy(limit, backoffSecs int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.RetryLimit = limit
		cfg.Workflow.RetryBackoffSecs = backoffSecs
	}
}

// WithChunking overrides the enhancement chunking parameters.
func WithChunking(ceiling, overlap float64) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Fal.CeilingSeconds = ceiling
		cfg.Fal.OverlapSeconds = overlap
	}
}
