package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks configuration consistency. It is called by Load after
// normalization; callers constructing configs by hand should call it too.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.DataDir) == "" {
		problems = append(problems, "paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		problems = append(problems, "paths.work_dir must be set")
	}

	if c.Fal.CeilingSeconds <= 0 {
		problems = append(problems, "fal.ceiling_seconds must be positive")
	}
	if c.Fal.OverlapSeconds < 0 {
		problems = append(problems, "fal.overlap_seconds must not be negative")
	}
	if c.Fal.OverlapSeconds >= c.Fal.CeilingSeconds {
		problems = append(problems, "fal.overlap_seconds must be smaller than fal.ceiling_seconds")
	}
	if c.Fal.ChunkParallelism < 1 {
		problems = append(problems, "fal.chunk_parallelism must be at least 1")
	}

	if c.Match.Threshold <= 0 || c.Match.Threshold > 1 {
		problems = append(problems, "match.threshold must be in (0, 1]")
	}
	if c.Match.ConfidenceFloor < 0 || c.Match.ConfidenceFloor > 1 {
		problems = append(problems, "match.confidence_floor must be in [0, 1]")
	}

	if c.Workflow.Workers < 1 {
		problems = append(problems, "workflow.workers must be at least 1")
	}
	if c.Workflow.RetryLimit < 1 {
		problems = append(problems, "workflow.retry_limit must be at least 1")
	}
	for taskType, limit := range c.Workflow.RetryLimitOverride {
		if limit < 1 {
			problems = append(problems, fmt.Sprintf("workflow.retry_limit_override[%s] must be at least 1", taskType))
		}
	}

	switch c.Logging.Format {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not supported", c.Logging.Format))
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New("invalid configuration: " + strings.Join(problems, "; "))
}
