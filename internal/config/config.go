// Package config loads and validates the tracksmith configuration file.
//
// Configuration lives in a single TOML document. Load searches the explicit
// path, then $TRACKSMITH_CONFIG, then ~/.config/tracksmith/config.toml, and
// falls back to defaults when no file exists. There is no ambient global
// config; callers pass the loaded *Config into constructors.
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
	ProjectsDir string `toml:"projects_dir"`
	QueueDir    string `toml:"queue_dir"`
	ChannelsDir string `toml:"channels_dir"`
	LogDir      string `toml:"log_dir"`
}

// Logging contains logger construction settings.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Gemini contains configuration for the planning LLM.
type Gemini struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Suno contains configuration for the music-generation provider.
type Suno struct {
	APIKey              string `toml:"api_key"`
	BaseURL             string `toml:"base_url"`
	Model               string `toml:"model"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
	PollTimeoutSeconds  int    `toml:"poll_timeout_seconds"`
}

// YouTube contains configuration for the upload destination.
type YouTube struct {
	AccessToken    string `toml:"access_token"`
	BaseURL        string `toml:"base_url"`
	UploadURL      string `toml:"upload_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Media contains local media tool configuration.
type Media struct {
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
}

// Retry contains the shared provider retry policy knobs.
type Retry struct {
	MaxAttempts      int     `toml:"max_attempts"`
	BaseDelaySeconds float64 `toml:"base_delay_seconds"`
	MaxDelaySeconds  float64 `toml:"max_delay_seconds"`
}

// Limits contains attempt caps and generation fan-out settings.
type Limits struct {
	MaxProjectAttempts int `toml:"max_project_attempts"`
	MaxTrackAttempts   int `toml:"max_track_attempts"`
	VariantsPerJob     int `toml:"variants_per_job"`
}

// QC contains review thresholds.
type QC struct {
	MinTrackSeconds          float64 `toml:"min_track_seconds"`
	MaxLeadingSilenceSeconds float64 `toml:"max_leading_silence_seconds"`
}

// Video contains rendered output settings.
type Video struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`
	FPS    int `toml:"fps"`
}

// Notifications contains ntfy push settings.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Config is the root configuration document.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Logging       Logging       `toml:"logging"`
	Gemini        Gemini        `toml:"gemini"`
	Suno          Suno          `toml:"suno"`
	YouTube       YouTube       `toml:"youtube"`
	Media         Media         `toml:"media"`
	Retry         Retry         `toml:"retry"`
	Limits        Limits        `toml:"limits"`
	QC            QC            `toml:"qc"`
	Video         Video         `toml:"video"`
	Notifications Notifications `toml:"notifications"`
}

// Load reads configuration from path, or from the default locations when path
// is empty. A missing file yields the defaults. The second return value is
// the path actually used ("" when defaults were applied).
func Load(path string) (*Config, string, error) {
	cfg := Default()

	resolved, err := resolvePath(path)
	if err != nil {
		return nil, "", err
	}
	if resolved == "" {
		return &cfg, "", nil
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && path == "" {
			return &cfg, "", nil
		}
		return nil, "", fmt.Errorf("read config %s: %w", resolved, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, "", fmt.Errorf("parse config %s: %w", resolved, err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", err
	}
	return &cfg, resolved, nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) != "" {
		return ExpandPath(path)
	}
	if env := strings.TrimSpace(os.Getenv("TRACKSMITH_CONFIG")); env != "" {
		return ExpandPath(env)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", nil
	}
	candidate := filepath.Join(home, ".config", "tracksmith", "config.toml")
	if _, err := os.Stat(candidate); err != nil {
		return "", nil
	}
	return candidate, nil
}

// ExpandPath resolves a leading ~ and returns an absolute path.
func ExpandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}

func (c *Config) normalize() error {
	for _, field := range []*string{&c.Paths.ProjectsDir, &c.Paths.QueueDir, &c.Paths.ChannelsDir, &c.Paths.LogDir} {
		expanded, err := ExpandPath(*field)
		if err != nil {
			return err
		}
		if expanded != "" {
			*field = expanded
		}
	}
	return nil
}

// EnsureDirectories creates the working directories the pipeline needs.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.ProjectsDir, c.Paths.QueueDir, c.Paths.ChannelsDir, c.Paths.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure directory %s: %w", dir, err)
		}
	}
	return nil
}

// LogFilePath returns the shared log file path, or "" when no log dir is set.
func (c *Config) LogFilePath() string {
	if c.Paths.LogDir == "" {
		return ""
	}
	return filepath.Join(c.Paths.LogDir, "tracksmith.log")
}

// SampleConfig returns the embedded annotated sample configuration.
func SampleConfig() string {
	return sampleConfig
}
