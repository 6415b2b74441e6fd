package config

import (
	"fmt"
	"strings"
)

// Validate reports configuration values the pipeline cannot run with.
// Provider credentials are checked by preflight, not here, so read-only
// commands work without API keys.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.ProjectsDir) == "" {
		problems = append(problems, "paths.projects_dir is required")
	}
	if strings.TrimSpace(c.Paths.QueueDir) == "" {
		problems = append(problems, "paths.queue_dir is required")
	}
	if c.Retry.MaxAttempts < 1 {
		problems = append(problems, "retry.max_attempts must be at least 1")
	}
	if c.Retry.BaseDelaySeconds <= 0 {
		problems = append(problems, "retry.base_delay_seconds must be positive")
	}
	if c.Retry.MaxDelaySeconds < c.Retry.BaseDelaySeconds {
		problems = append(problems, "retry.max_delay_seconds must be >= retry.base_delay_seconds")
	}
	if c.Limits.MaxProjectAttempts < 1 {
		problems = append(problems, "limits.max_project_attempts must be at least 1")
	}
	if c.Limits.MaxTrackAttempts < 1 {
		problems = append(problems, "limits.max_track_attempts must be at least 1")
	}
	if c.Limits.VariantsPerJob < 1 {
		problems = append(problems, "limits.variants_per_job must be at least 1")
	}
	if c.Suno.PollIntervalSeconds < 1 {
		problems = append(problems, "suno.poll_interval_seconds must be at least 1")
	}
	if c.Suno.PollTimeoutSeconds < c.Suno.PollIntervalSeconds {
		problems = append(problems, "suno.poll_timeout_seconds must be >= suno.poll_interval_seconds")
	}
	if c.QC.MinTrackSeconds < 0 {
		problems = append(problems, "qc.min_track_seconds must not be negative")
	}
	if c.Video.Width < 1 || c.Video.Height < 1 || c.Video.FPS < 1 {
		problems = append(problems, "video dimensions and fps must be positive")
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
}
