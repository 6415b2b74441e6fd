package preflight

import (
	"context"

	"tracksmith/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Projects directory", cfg.Paths.ProjectsDir))
	results = append(results, CheckDirectoryAccess("Queue directory", cfg.Paths.QueueDir))
	if cfg.Paths.ChannelsDir != "" {
		results = append(results, CheckDirectoryAccess("Channels directory", cfg.Paths.ChannelsDir))
	}

	results = append(results, CheckBinaries(cfg)...)
	results = append(results, CheckAPIKey("Suno API key", cfg.Suno.APIKey))
	results = append(results, CheckAPIKey("YouTube access token", cfg.YouTube.AccessToken))
	results = append(results, CheckGemini(ctx, cfg.Gemini))

	return results
}

// Passed reports whether every result passed.
func Passed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
