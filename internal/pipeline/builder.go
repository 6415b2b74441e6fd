package pipeline

import (
	"context"
	"log/slog"
	"time"

	"tracksmith/internal/channel"
	"tracksmith/internal/config"
	"tracksmith/internal/generate"
	"tracksmith/internal/media/ffmpeg"
	"tracksmith/internal/media/ffprobe"
	"tracksmith/internal/plan"
	"tracksmith/internal/project"
	"tracksmith/internal/render"
	"tracksmith/internal/retry"
	"tracksmith/internal/review"
	"tracksmith/internal/services/gemini"
	"tracksmith/internal/services/suno"
	"tracksmith/internal/services/youtube"
	"tracksmith/internal/upload"
)

// Build assembles the provider-backed step set, runner, and controller from
// configuration. This is the composition root the CLI uses.
func Build(cfg *config.Config, store *project.Store, logger *slog.Logger) (*Controller, *Runner) {
	catalog := channel.NewCatalog(cfg.Paths.ChannelsDir)
	policy := retry.FromConfig(cfg.Retry)

	probe := func(ctx context.Context, path string) (float64, error) {
		result, err := ffprobe.Inspect(ctx, cfg.Media.FFprobeBinary, path)
		if err != nil {
			return 0, err
		}
		return result.DurationSeconds(), nil
	}

	media := ffmpeg.NewRunner(cfg.Media.FFmpegBinary)
	silence := func(ctx context.Context, path string) (float64, bool, error) {
		window := cfg.QC.MaxLeadingSilenceSeconds * 4
		if window < 10 {
			window = 10
		}
		return media.LeadingSilence(ctx, path, -40, window)
	}

	planStage := plan.NewStage(
		&plan.GeminiPlanner{Client: gemini.New(cfg.Gemini)},
		catalog, policy, logger, cfg.Limits.VariantsPerJob)

	generateStage := generate.NewStage(store,
		&generate.SunoGenerator{Client: suno.New(suno.Config{
			APIKey:         cfg.Suno.APIKey,
			BaseURL:        cfg.Suno.BaseURL,
			Model:          cfg.Suno.Model,
			TimeoutSeconds: cfg.Suno.TimeoutSeconds,
		})},
		probe, policy, logger, generate.Options{
			VariantsPerJob:   cfg.Limits.VariantsPerJob,
			MaxTrackAttempts: cfg.Limits.MaxTrackAttempts,
			PollInterval:     time.Duration(cfg.Suno.PollIntervalSeconds) * time.Second,
			PollTimeout:      time.Duration(cfg.Suno.PollTimeoutSeconds) * time.Second,
		})

	reviewStage := review.NewStage(store, review.Prober(probe), silence, review.Thresholds{
		MinTrackSeconds:          cfg.QC.MinTrackSeconds,
		MaxLeadingSilenceSeconds: cfg.QC.MaxLeadingSilenceSeconds,
	}, logger)

	renderStage := render.NewStage(store, media, catalog, logger, render.Options{
		Width:  cfg.Video.Width,
		Height: cfg.Video.Height,
		FPS:    cfg.Video.FPS,
	})

	uploadStage := upload.NewStage(store,
		youtube.New(youtube.Config{
			AccessToken:    cfg.YouTube.AccessToken,
			BaseURL:        cfg.YouTube.BaseURL,
			UploadURL:      cfg.YouTube.UploadURL,
			TimeoutSeconds: cfg.YouTube.TimeoutSeconds,
		}),
		catalog, logger, upload.Options{})

	steps := StepSet{
		project.StepPlan:     planStage.Run,
		project.StepGenerate: generateStage.Run,
		project.StepReview:   reviewStage.Run,
		project.StepRender:   renderStage.Run,
		project.StepUpload:   uploadStage.Run,
	}
	runner := NewRunner(store, steps, logger, cfg.Limits.MaxProjectAttempts)
	return NewController(runner, logger), runner
}
