// Package plan implements the planning step. It turns a project theme into a
// list of generation jobs with stable job indexes, optional per-job lyrics,
// and upload metadata, then records the result on the project document.
package plan

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"tracksmith/internal/channel"
	"tracksmith/internal/logging"
	"tracksmith/internal/project"
	"tracksmith/internal/retry"
	"tracksmith/internal/services"
	"tracksmith/internal/services/gemini"
)

// JobDraft is one planned track job from the planner.
type JobDraft struct {
	Style  string
	Title  string
	Prompt string
}

// Metadata is the planned upload metadata.
type Metadata struct {
	Title       string
	Description string
	Tags        []string
}

// Request carries the planner inputs derived from project and channel.
type Request struct {
	Theme         string
	JobCount      int
	VocalsEnabled bool
	StyleGuidance string
	EnergyLevel   string
	BannedTerms   []string
}

// Planner produces job drafts, lyrics, and metadata for a theme.
type Planner interface {
	PlanJobs(ctx context.Context, req Request) ([]JobDraft, error)
	Lyrics(ctx context.Context, style, title, theme string) (string, error)
	Metadata(ctx context.Context, theme string, trackCount int) (Metadata, error)
}

// GeminiPlanner adapts the Gemini client to the Planner interface.
type GeminiPlanner struct {
	Client *gemini.Client
}

func (g *GeminiPlanner) PlanJobs(ctx context.Context, req Request) ([]JobDraft, error) {
	drafts, err := g.Client.GeneratePlan(ctx, gemini.PlanRequest{
		Theme:         req.Theme,
		JobCount:      req.JobCount,
		VocalsEnabled: req.VocalsEnabled,
		StyleGuidance: req.StyleGuidance,
		EnergyLevel:   req.EnergyLevel,
		BannedTerms:   req.BannedTerms,
	})
	if err != nil {
		return nil, err
	}
	out := make([]JobDraft, len(drafts))
	for i, d := range drafts {
		out[i] = JobDraft{Style: d.Style, Title: d.Title, Prompt: d.Prompt}
	}
	return out, nil
}

func (g *GeminiPlanner) Lyrics(ctx context.Context, style, title, theme string) (string, error) {
	return g.Client.GenerateLyrics(ctx, style, title, theme)
}

func (g *GeminiPlanner) Metadata(ctx context.Context, theme string, trackCount int) (Metadata, error) {
	meta, err := g.Client.GenerateMetadata(ctx, theme, trackCount)
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{Title: meta.Title, Description: meta.Description, Tags: meta.Tags}, nil
}

// Stage runs the planning step for one project.
type Stage struct {
	planner        Planner
	catalog        *channel.Catalog
	policy         retry.Policy
	logger         *slog.Logger
	variantsPerJob int
}

// NewStage builds the planning stage. catalog may be nil when channel
// profiles are not in use.
func NewStage(planner Planner, catalog *channel.Catalog, policy retry.Policy, logger *slog.Logger, variantsPerJob int) *Stage {
	if variantsPerJob < 1 {
		variantsPerJob = 2
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Stage{
		planner:        planner,
		catalog:        catalog,
		policy:         policy,
		logger:         logger,
		variantsPerJob: variantsPerJob,
	}
}

// Run plans jobs and metadata and writes them onto p.Plan. Job indexes are
// contiguous from zero regardless of what the planner returned.
func (s *Stage) Run(ctx context.Context, p *project.Project) error {
	log := logging.WithContext(ctx, s.logger)

	if p.TrackCount < 1 {
		return services.Wrap(services.ErrValidation, "plan", "validate", "project track_count must be positive", nil)
	}
	jobCount := (p.TrackCount + s.variantsPerJob - 1) / s.variantsPerJob

	req := Request{
		Theme:         p.Theme,
		JobCount:      jobCount,
		VocalsEnabled: p.Vocals.Enabled,
	}

	var profile *channel.Profile
	if s.catalog != nil && strings.TrimSpace(p.ChannelID) != "" {
		loaded, err := s.catalog.Load(p.ChannelID)
		if err != nil {
			return services.Wrap(services.ErrValidation, "plan", "load_channel", "", err)
		}
		profile = loaded
		req.StyleGuidance = profile.PromptConstraints.StyleGuidance
		req.EnergyLevel = profile.PromptConstraints.EnergyLevel
		req.BannedTerms = profile.PromptConstraints.BannedTerms
		if !profile.PromptConstraints.DefaultVocals {
			req.VocalsEnabled = req.VocalsEnabled && !profile.PromptConstraints.DefaultInstrumental
		}
	}

	log.Info("planning generation jobs",
		logging.String(logging.FieldEventType, "plan_start"),
		logging.Int("job_count", jobCount),
		logging.Bool("vocals", req.VocalsEnabled))

	var drafts []JobDraft
	err := s.policy.Do(ctx, log, "plan jobs", func(ctx context.Context) error {
		var planErr error
		drafts, planErr = s.planner.PlanJobs(ctx, req)
		return planErr
	})
	if err != nil {
		return err
	}

	jobs := make([]project.JobSpec, len(drafts))
	for i, draft := range drafts {
		jobs[i] = project.JobSpec{
			JobIndex:      i,
			Style:         draft.Style,
			Title:         draft.Title,
			Prompt:        draft.Prompt,
			VocalsEnabled: req.VocalsEnabled,
		}
	}

	if req.VocalsEnabled && p.Lyrics.Enabled {
		for i := range jobs {
			job := &jobs[i]
			err := s.policy.Do(ctx, log, fmt.Sprintf("lyrics for job %d", job.JobIndex), func(ctx context.Context) error {
				lyrics, lyricsErr := s.planner.Lyrics(ctx, job.Style, job.Title, p.Theme)
				if lyricsErr != nil {
					return lyricsErr
				}
				job.LyricsText = lyrics
				return nil
			})
			if err != nil {
				return err
			}
		}
	}

	var metadata *project.VideoMetadata
	err = s.policy.Do(ctx, log, "plan metadata", func(ctx context.Context) error {
		meta, metaErr := s.planner.Metadata(ctx, p.Theme, p.TrackCount)
		if metaErr != nil {
			return metaErr
		}
		tags := meta.Tags
		if profile != nil {
			tags = profile.AllowedTags(tags)
		}
		metadata = &project.VideoMetadata{
			Title:       meta.Title,
			Description: meta.Description,
			Tags:        tags,
		}
		return nil
	})
	if err != nil {
		return err
	}

	p.Plan = &project.PlanData{Jobs: jobs, Metadata: metadata}

	log.Info("plan complete",
		logging.String(logging.FieldEventType, "plan_complete"),
		logging.Int("jobs", len(jobs)))
	return nil
}
