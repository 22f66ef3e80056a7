package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	WorkDir string `toml:"work_dir"`
	LogDir  string `toml:"log_dir"`
}

// Storage contains object storage (S3-compatible) connection settings.
type Storage struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	Region    string `toml:"region"`
	UseSSL    bool   `toml:"use_ssl"`
}

// Fal contains settings for the external audio enhancement processor.
type Fal struct {
	APIKey             string  `toml:"api_key"`
	BaseURL            string  `toml:"base_url"`
	CeilingSeconds     float64 `toml:"ceiling_seconds"`
	OverlapSeconds     float64 `toml:"overlap_seconds"`
	ChunkParallelism   int     `toml:"chunk_parallelism"`
	PollIntervalMS     int     `toml:"poll_interval_ms"`
	RequestTimeoutSecs int     `toml:"request_timeout_seconds"`
}

// Quansic contains settings for the primary ISWC enrichment provider.
type Quansic struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// MusicBrainz contains settings for the fallback ISWC enrichment provider.
type MusicBrainz struct {
	BaseURL        string `toml:"base_url"`
	UserAgent      string `toml:"user_agent"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Whisper contains settings for the transcription service.
type Whisper struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Demucs contains settings for the stem separation service.
type Demucs struct {
	BaseURL        string `toml:"base_url"`
	TwoStem        bool   `toml:"two_stem"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// LLM contains the chat-completion settings used for match disambiguation.
// Optional: when unset the matcher falls back to its deterministic ranking.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Match contains fragment matcher thresholds.
type Match struct {
	Threshold       float64 `toml:"threshold"`
	ConfidenceFloor float64 `toml:"confidence_floor"`
}

// Workflow contains worker pool timing and retry policy.
type Workflow struct {
	Workers            int            `toml:"workers"`
	PollIntervalSecs   int            `toml:"poll_interval_seconds"`
	ErrorRetrySecs     int            `toml:"error_retry_seconds"`
	RetryLimit         int            `toml:"retry_limit"`
	RetryBackoffSecs   int            `toml:"retry_backoff_seconds"`
	StaleTimeoutSecs   int            `toml:"stale_timeout_seconds"`
	HeartbeatSecs      int            `toml:"heartbeat_seconds"`
	RetryLimitOverride map[string]int `toml:"retry_limit_override"`
}

// Logging contains log output configuration.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for songmill.
type Config struct {
	Paths       Paths       `toml:"paths"`
	Storage     Storage     `toml:"storage"`
	Fal         Fal         `toml:"fal"`
	Quansic     Quansic     `toml:"quansic"`
	MusicBrainz MusicBrainz `toml:"musicbrainz"`
	Whisper     Whisper     `toml:"whisper"`
	Demucs      Demucs      `toml:"demucs"`
	LLM         LLM         `toml:"llm"`
	Match       Match       `toml:"match"`
	Workflow    Workflow    `toml:"workflow"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/songmill/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("songmill.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.WorkDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "songmill.db")
}

// RetryLimitFor returns the retry ceiling for a task type, honoring
// per-task-type overrides.
func (c *Config) RetryLimitFor(taskType string) int {
	if limit, ok := c.Workflow.RetryLimitOverride[taskType]; ok && limit > 0 {
		return limit
	}
	return c.Workflow.RetryLimit
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
