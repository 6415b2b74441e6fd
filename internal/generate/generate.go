// Package generate implements the generation step. Planned jobs are
// submitted to the music provider, polled to completion, and their variant
// artifacts downloaded into the project's tracks directory. The step is
// resumable: finished artifacts are skipped, failed slots are retried until
// the per-artifact attempt cap, and exhausted slots become permanent gaps
// instead of blocking the pipeline.
package generate

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"tracksmith/internal/logging"
	"tracksmith/internal/project"
	"tracksmith/internal/retry"
	"tracksmith/internal/services"
	"tracksmith/internal/textutil"
)

// State is a provider job's lifecycle state.
type State string

const (
	StatePending  State = "pending"
	StateComplete State = "complete"
	StateFailed   State = "failed"
)

// SubmitRequest describes one generation job for the provider.
type SubmitRequest struct {
	Style        string
	Title        string
	Lyrics       string
	Instrumental bool
}

// Variant is one generated artifact reported by the provider.
type Variant struct {
	ID              string
	Title           string
	AudioURL        string
	DurationSeconds float64
}

// PollResult is one poll observation of a provider task.
type PollResult struct {
	State    State
	Variants []Variant
	Message  string
	Raw      string
}

// Generator is the music provider surface the stage drives. All calls are
// single-shot; the stage owns polling cadence and retries.
type Generator interface {
	Submit(ctx context.Context, req SubmitRequest) (taskID string, err error)
	Poll(ctx context.Context, taskID string) (PollResult, error)
	Download(ctx context.Context, audioURL, outputPath string) error
}

// DurationFunc measures an audio file's duration in seconds.
type DurationFunc func(ctx context.Context, path string) (float64, error)

// Options configure the stage.
type Options struct {
	VariantsPerJob   int
	MaxTrackAttempts int
	PollInterval     time.Duration
	PollTimeout      time.Duration

	// Sleep is injectable for tests. Nil means a context-aware sleep.
	Sleep func(context.Context, time.Duration) error
}

// Stage runs the generation step for one project.
type Stage struct {
	store    *project.Store
	gen      Generator
	duration DurationFunc
	policy   retry.Policy
	logger   *slog.Logger
	opts     Options
}

// NewStage builds the generation stage. duration may be nil when only
// provider-reported durations are available.
func NewStage(store *project.Store, gen Generator, duration DurationFunc, policy retry.Policy, logger *slog.Logger, opts Options) *Stage {
	if opts.VariantsPerJob < 1 {
		opts.VariantsPerJob = 2
	}
	if opts.MaxTrackAttempts < 1 {
		opts.MaxTrackAttempts = 2
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 20 * time.Minute
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Stage{
		store:    store,
		gen:      gen,
		duration: duration,
		policy:   policy,
		logger:   logger,
		opts:     opts,
	}
}

// Run resumes or starts generation for every planned job. The project
// document is saved after every artifact so a crash never loses finished
// work. The step fails while any slot is still failed under the attempt cap;
// it succeeds once every slot is either complete or exhausted, even when the
// ok count is zero.
func (s *Stage) Run(ctx context.Context, p *project.Project) error {
	log := logging.WithContext(ctx, s.logger)

	if p.Plan == nil || len(p.Plan.Jobs) == 0 {
		return services.Wrap(services.ErrValidation, "generate", "validate", "project has no plan; run the plan step first", nil)
	}

	attemptCap := s.opts.MaxTrackAttempts
	if p.MaxTrackAttempts > 0 {
		attemptCap = p.MaxTrackAttempts
	}
	projectDir := s.store.Dir(p.ID)

	plans := planJobs(p, projectDir, s.opts.VariantsPerJob, attemptCap)
	log.Info("resuming generation",
		logging.String(logging.FieldEventType, "generate_start"),
		logging.Int("planned_jobs", len(p.Plan.Jobs)),
		logging.Int("jobs_to_run", len(plans)),
		logging.Int("attempt_cap", attemptCap))

	var lastErr error
	for _, jp := range plans {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.runJob(ctx, log, p, projectDir, jp, attemptCap); err != nil {
			lastErr = err
		}
	}

	if pending := pendingAfterRun(p, projectDir, s.opts.VariantsPerJob, attemptCap); pending > 0 {
		return services.Wrap(nil, "generate", "resume",
			fmt.Sprintf("%d artifact slots still incomplete under the attempt cap", pending), lastErr)
	}

	log.Info("generation settled",
		logging.String(logging.FieldEventType, "generate_complete"),
		logging.Int("ok_tracks", len(p.OKTracks())),
		logging.Int("total_slots", len(p.Plan.Jobs)*s.opts.VariantsPerJob))
	return nil
}

// runJob drives one provider job: reuse or submit a task, poll it to a
// terminal state, then download and record each pending variant. Failures
// are recorded on the touched slots; they never abort the remaining jobs.
func (s *Stage) runJob(ctx context.Context, log *slog.Logger, p *project.Project, projectDir string, jp jobPlan, attemptCap int) error {
	taskID := jp.taskID
	if taskID == "" {
		err := s.policy.Do(ctx, log, fmt.Sprintf("submit job %d", jp.spec.JobIndex), func(ctx context.Context) error {
			id, submitErr := s.gen.Submit(ctx, SubmitRequest{
				Style:        jp.spec.Style,
				Title:        jp.spec.Title,
				Lyrics:       jp.spec.LyricsText,
				Instrumental: !jp.spec.VocalsEnabled,
			})
			if submitErr != nil {
				return submitErr
			}
			taskID = id
			return nil
		})
		if err != nil {
			s.failSlots(p, jp, "", err.Error(), "")
			s.save(log, p)
			return err
		}
		log.Info("submitted generation job",
			logging.String(logging.FieldEventType, "job_submitted"),
			logging.Int("job_index", jp.spec.JobIndex),
			logging.String("task_id", taskID))
	} else {
		log.Info("resuming recorded provider task",
			logging.Int("job_index", jp.spec.JobIndex),
			logging.String("task_id", taskID))
	}

	result, err := s.pollTask(ctx, log, taskID)
	if err != nil {
		s.failSlots(p, jp, taskID, err.Error(), "")
		s.save(log, p)
		return err
	}
	if result.State == StateFailed {
		message := result.Message
		if message == "" {
			message = "provider reported generation failure"
		}
		s.failSlots(p, jp, taskID, message, result.Raw)
		s.save(log, p)
		return services.Wrap(services.ErrProviderHTTP, "generate",
			fmt.Sprintf("job %d", jp.spec.JobIndex), message, nil)
	}

	var jobErr error
	for _, variant := range jp.pending {
		if err := s.fetchVariant(ctx, log, p, projectDir, jp, taskID, variant, result); err != nil {
			jobErr = err
		}
	}
	return jobErr
}

func (s *Stage) pollTask(ctx context.Context, log *slog.Logger, taskID string) (PollResult, error) {
	deadline := time.Now().Add(s.opts.PollTimeout)
	for {
		var result PollResult
		err := s.policy.Do(ctx, log, "poll task "+taskID, func(ctx context.Context) error {
			var pollErr error
			result, pollErr = s.gen.Poll(ctx, taskID)
			return pollErr
		})
		if err != nil {
			return PollResult{}, err
		}
		if result.State != StatePending {
			return result, nil
		}
		if time.Now().After(deadline) {
			return PollResult{}, services.Wrap(services.ErrTimeout, "generate", "poll",
				fmt.Sprintf("task %s not complete after %s", taskID, s.opts.PollTimeout), nil)
		}
		if err := s.sleep(ctx, s.opts.PollInterval); err != nil {
			return PollResult{}, err
		}
	}
}

// fetchVariant downloads and records one pending variant slot, saving the
// document afterwards regardless of outcome.
func (s *Stage) fetchVariant(ctx context.Context, log *slog.Logger, p *project.Project, projectDir string, jp jobPlan, taskID string, variantIndex int, result PollResult) error {
	trackIndex := TrackIndex(jp.spec.JobIndex, variantIndex, s.opts.VariantsPerJob)
	title := fmt.Sprintf("%s %s", jp.spec.Title, textutil.RomanSuffix(variantIndex))

	record := func(failure string, raw string) {
		s.recordFailure(p, jp.spec, taskID, variantIndex, title, failure, raw)
		s.save(log, p)
	}

	if variantIndex >= len(result.Variants) {
		msg := fmt.Sprintf("provider returned %d variants, slot %d missing", len(result.Variants), variantIndex)
		record(msg, result.Raw)
		return services.Wrap(services.ErrProviderHTTP, "generate", "fetch", msg, nil)
	}
	variant := result.Variants[variantIndex]
	if strings.TrimSpace(variant.AudioURL) == "" {
		msg := fmt.Sprintf("variant %d has no audio url", variantIndex)
		record(msg, result.Raw)
		return services.Wrap(services.ErrProviderHTTP, "generate", "fetch", msg, nil)
	}

	relPath := filepath.Join("tracks", fmt.Sprintf("track_%02d%s", trackIndex, audioExtension(variant.AudioURL)))
	absPath := filepath.Join(projectDir, relPath)

	err := s.policy.Do(ctx, log, fmt.Sprintf("download track %d", trackIndex), func(ctx context.Context) error {
		return s.gen.Download(ctx, variant.AudioURL, absPath)
	})
	if err != nil {
		record("download failed: "+err.Error(), "")
		return err
	}

	duration := variant.DurationSeconds
	if s.duration != nil {
		if measured, probeErr := s.duration(ctx, absPath); probeErr == nil && measured > 0 {
			duration = measured
		} else if probeErr != nil {
			log.Warn("duration probe failed, using provider-reported duration",
				logging.Int("track_index", trackIndex),
				logging.Error(probeErr))
		}
	}
	if duration <= 0 {
		msg := "could not determine track duration"
		record(msg, "")
		return services.Wrap(services.ErrEncoding, "generate", "probe", msg, nil)
	}

	p.UpsertTrack(project.Track{
		TrackIndex:      trackIndex,
		Title:           title,
		Style:           jp.spec.Style,
		Prompt:          jp.spec.Prompt,
		Provider:        services.ProviderSuno,
		JobID:           taskID,
		JobIndex:        jp.spec.JobIndex,
		VariantIndex:    variantIndex,
		AudioURL:        variant.AudioURL,
		AudioPath:       relPath,
		DurationSeconds: duration,
		Status:          project.TrackOK,
	})
	s.save(log, p)

	log.Info("track artifact stored",
		logging.String(logging.FieldEventType, "track_complete"),
		logging.Int("track_index", trackIndex),
		logging.Float64("duration_seconds", duration),
		logging.String("audio_path", relPath))
	return nil
}

// failSlots records a job-wide failure on every pending slot, incrementing
// each slot's attempt count.
func (s *Stage) failSlots(p *project.Project, jp jobPlan, taskID, message, raw string) {
	for _, variant := range jp.pending {
		title := fmt.Sprintf("%s %s", jp.spec.Title, textutil.RomanSuffix(variant))
		s.recordFailure(p, jp.spec, taskID, variant, title, message, raw)
	}
}

func (s *Stage) recordFailure(p *project.Project, spec project.JobSpec, taskID string, variantIndex int, title, message, raw string) {
	existing := p.TrackAt(spec.JobIndex, variantIndex)
	attempts := existing.AttemptCount() + 1
	p.UpsertTrack(project.Track{
		TrackIndex:   TrackIndex(spec.JobIndex, variantIndex, s.opts.VariantsPerJob),
		Title:        title,
		Style:        spec.Style,
		Prompt:       spec.Prompt,
		Provider:     services.ProviderSuno,
		JobID:        taskID,
		JobIndex:     spec.JobIndex,
		VariantIndex: variantIndex,
		Status:       project.TrackFailed,
		Error: &project.TrackError{
			Message:      message,
			Raw:          textutil.Truncate(raw, services.RawDiagnosticLimit),
			AttemptCount: attempts,
		},
	})
}

func (s *Stage) save(log *slog.Logger, p *project.Project) {
	if err := s.store.Save(p); err != nil {
		log.Error("failed to persist project document", logging.Error(err))
	}
}

func (s *Stage) sleep(ctx context.Context, d time.Duration) error {
	if s.opts.Sleep != nil {
		return s.opts.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func audioExtension(audioURL string) string {
	base := audioURL
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	if idx := strings.Index(base, "?"); idx >= 0 {
		base = base[:idx]
	}
	if idx := strings.LastIndex(base, "."); idx >= 0 && idx < len(base)-1 {
		return base[idx:]
	}
	return ".mp3"
}
