package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"songmill/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, _, exists, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected missing config file")
	}
	if cfg.Fal.CeilingSeconds != 190 {
		t.Fatalf("expected default ceiling 190, got %v", cfg.Fal.CeilingSeconds)
	}
	if cfg.Workflow.RetryLimit != 3 {
		t.Fatalf("expected default retry limit 3, got %d", cfg.Workflow.RetryLimit)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + dir + `/data"
work_dir = "` + dir + `/work"
log_dir = "` + dir + `/logs"

[fal]
ceiling_seconds = 120.0
overlap_seconds = 1.5

[workflow]
retry_limit = 2

[workflow.retry_limit_override]
fal_enhancement = 5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved == "" {
		t.Fatal("expected config file to be found")
	}
	if cfg.Fal.CeilingSeconds != 120 || cfg.Fal.OverlapSeconds != 1.5 {
		t.Fatalf("unexpected fal settings: %+v", cfg.Fal)
	}
	if got := cfg.RetryLimitFor("fal_enhancement"); got != 5 {
		t.Fatalf("RetryLimitFor(fal_enhancement) = %d, want 5", got)
	}
	if got := cfg.RetryLimitFor("download"); got != 2 {
		t.Fatalf("RetryLimitFor(download) = %d, want 2", got)
	}
}

func TestValidateRejectsOverlapAboveCeiling(t *testing.T) {
	cfg := config.Default()
	cfg.Fal.OverlapSeconds = cfg.Fal.CeilingSeconds + 1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for overlap >= ceiling")
	}
}

func TestValidateRejectsBadThreshold(t *testing.T) {
	cfg := config.Default()
	cfg.Match.Threshold = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for threshold > 1")
	}
}
