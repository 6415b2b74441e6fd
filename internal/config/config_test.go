package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"tracksmith/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("TRACKSMITH_CONFIG", "")
	t.Setenv("HOME", t.TempDir())

	cfg, used, err := config.Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if used != "" {
		t.Fatalf("expected defaults, got file %q", used)
	}
	if cfg.Limits.VariantsPerJob != 2 {
		t.Fatalf("unexpected default variants per job: %d", cfg.Limits.VariantsPerJob)
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Fatalf("unexpected default retry attempts: %d", cfg.Retry.MaxAttempts)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[paths]
projects_dir = "` + filepath.Join(dir, "work") + `"

[limits]
max_track_attempts = 5

[retry]
max_attempts = 7
base_delay_seconds = 0.5
max_delay_seconds = 10.0
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, used, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if used != path {
		t.Fatalf("expected %q to be used, got %q", path, used)
	}
	if cfg.Limits.MaxTrackAttempts != 5 {
		t.Fatalf("override not applied: %d", cfg.Limits.MaxTrackAttempts)
	}
	if cfg.Retry.MaxAttempts != 7 {
		t.Fatalf("override not applied: %d", cfg.Retry.MaxAttempts)
	}
	// Untouched sections keep defaults.
	if cfg.Suno.PollIntervalSeconds != 10 {
		t.Fatalf("default lost: %d", cfg.Suno.PollIntervalSeconds)
	}
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	if _, _, err := config.Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("expected error for explicit missing config path")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := config.Default()
	cfg.Retry.MaxAttempts = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation failure for zero retry attempts")
	}

	cfg = config.Default()
	cfg.Limits.VariantsPerJob = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation failure for zero variants per job")
	}

	cfg = config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestSampleConfigParses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.toml")
	if err := os.WriteFile(path, []byte(config.SampleConfig()), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	cfg, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config must parse: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sample config must validate: %v", err)
	}
}
