package project

import (
	"strings"
	"time"
)

// Step identifies one stage of the fixed pipeline order.
type Step string

const (
	StepCreated  Step = "created"
	StepPlan     Step = "plan"
	StepGenerate Step = "generate"
	StepReview   Step = "review"
	StepRender   Step = "render"
	StepUpload   Step = "upload"
	StepDone     Step = "done"
)

var stepOrder = []Step{StepPlan, StepGenerate, StepReview, StepRender, StepUpload}

// StepOrder returns the executable steps in pipeline order.
func StepOrder() []Step {
	cp := make([]Step, len(stepOrder))
	copy(cp, stepOrder)
	return cp
}

// ParseStep converts a string into a known executable Step.
func ParseStep(value string) (Step, bool) {
	normalized := Step(strings.ToLower(strings.TrimSpace(value)))
	for _, step := range stepOrder {
		if step == normalized {
			return step, true
		}
	}
	return "", false
}

// Index returns the position of s in the pipeline order, or -1 for
// non-executable markers (created, done).
func (s Step) Index() int {
	for i, step := range stepOrder {
		if step == s {
			return i
		}
	}
	return -1
}

// TrackStatus is the lifecycle state of a generated artifact.
type TrackStatus string

const (
	TrackOK     TrackStatus = "ok"
	TrackFailed TrackStatus = "failed"
)

// LastError is the persisted record of the most recent step failure.
type LastError struct {
	Step     Step      `json:"step"`
	Message  string    `json:"message"`
	Kind     string    `json:"kind,omitempty"`
	Provider string    `json:"provider,omitempty"`
	Raw      string    `json:"raw,omitempty"`
	At       time.Time `json:"at"`
}

// Status tracks pipeline progress for a project.
type Status struct {
	CurrentStep        Step         `json:"current_step"`
	LastSuccessfulStep Step         `json:"last_successful_step,omitempty"`
	LastError          *LastError   `json:"last_error,omitempty"`
	Attempts           map[Step]int `json:"attempts,omitempty"`
}

// VocalsConfig toggles vocal generation.
type VocalsConfig struct {
	Enabled bool `json:"enabled"`
}

// LyricsConfig toggles lyric generation and its source.
type LyricsConfig struct {
	Enabled bool   `json:"enabled"`
	Source  string `json:"source,omitempty"`
}

// VideoConfig holds rendered output settings.
type VideoConfig struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	FPS    int `json:"fps"`
}

// UploadConfig holds upload destination settings.
type UploadConfig struct {
	Privacy         string `json:"privacy"`
	CategoryID      string `json:"category_id"`
	MadeForKids     bool   `json:"made_for_kids"`
	DefaultLanguage string `json:"default_language"`
}

// JobSpec is one planned generation job. Each job yields a fixed number of
// variant artifacts.
type JobSpec struct {
	JobIndex      int    `json:"job_index"`
	Style         string `json:"style"`
	Title         string `json:"title"`
	Prompt        string `json:"prompt"`
	SeedHint      string `json:"seed_hint,omitempty"`
	VocalsEnabled bool   `json:"vocals_enabled"`
	LyricsText    string `json:"lyrics_text,omitempty"`
}

// VideoMetadata is the planned upload metadata.
type VideoMetadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
}

// PlanData is the planning step output.
type PlanData struct {
	Jobs     []JobSpec      `json:"jobs"`
	Metadata *VideoMetadata `json:"metadata,omitempty"`
}

// TrackError records why an artifact failed, with its attempt count.
type TrackError struct {
	Message      string `json:"message"`
	Raw          string `json:"raw,omitempty"`
	AttemptCount int    `json:"attempt_count"`
}

// QCIssue is a single quality problem found on a track.
type QCIssue struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Value   float64 `json:"value,omitempty"`
}

// TrackQC holds the review verdict for one track.
type TrackQC struct {
	Passed   bool               `json:"passed"`
	Issues   []QCIssue          `json:"issues,omitempty"`
	Measured map[string]float64 `json:"measured,omitempty"`
}

// Track is one generated artifact tied to a (job_index, variant_index) slot.
type Track struct {
	TrackIndex      int         `json:"track_index"`
	Title           string      `json:"title,omitempty"`
	Style           string      `json:"style,omitempty"`
	Prompt          string      `json:"prompt,omitempty"`
	Provider        string      `json:"provider,omitempty"`
	JobID           string      `json:"job_id,omitempty"`
	JobIndex        int         `json:"job_index"`
	VariantIndex    int         `json:"variant_index"`
	AudioURL        string      `json:"audio_url,omitempty"`
	AudioPath       string      `json:"audio_path,omitempty"`
	DurationSeconds float64     `json:"duration_seconds"`
	Status          TrackStatus `json:"status"`
	Error           *TrackError `json:"error,omitempty"`
	QC              *TrackQC    `json:"qc,omitempty"`
}

// AttemptCount returns the recorded attempt count for the track's slot.
func (t *Track) AttemptCount() int {
	if t == nil || t.Error == nil {
		return 0
	}
	return t.Error.AttemptCount
}

// ReviewData is the review step output.
type ReviewData struct {
	ReportJSONPath string         `json:"qc_report_json_path,omitempty"`
	ReportTextPath string         `json:"qc_report_txt_path,omitempty"`
	Approved       []int          `json:"approved_track_indices"`
	Rejected       []int          `json:"rejected_track_indices"`
	Summary        map[string]int `json:"qc_summary,omitempty"`
}

// RenderData is the render step output.
type RenderData struct {
	BackgroundPath  string `json:"background_path,omitempty"`
	ThumbnailPath   string `json:"thumbnail_path,omitempty"`
	SelectedTracks  []int  `json:"selected_track_indices"`
	OutputPath      string `json:"output_mp4_path,omitempty"`
	ChaptersPath    string `json:"chapters_path,omitempty"`
	DescriptionPath string `json:"description_path,omitempty"`
}

// UploadData is the upload step output.
type UploadData struct {
	VideoID           string     `json:"video_id,omitempty"`
	UploadedAt        *time.Time `json:"uploaded_at,omitempty"`
	Privacy           string     `json:"privacy,omitempty"`
	Title             string     `json:"title,omitempty"`
	ThumbnailUploaded bool       `json:"thumbnail_uploaded"`
	ThumbnailPath     string     `json:"thumbnail_path,omitempty"`
}

// Project is the root state document, one per pipeline run.
type Project struct {
	ID            string       `json:"project_id"`
	CreatedAt     time.Time    `json:"created_at"`
	Theme         string       `json:"theme"`
	ChannelID     string       `json:"channel_id,omitempty"`
	Intent        string       `json:"intent,omitempty"`
	TargetMinutes int          `json:"target_minutes"`
	TrackCount    int          `json:"track_count"`
	Vocals        VocalsConfig `json:"vocals"`
	Lyrics        LyricsConfig `json:"lyrics"`
	Video         VideoConfig  `json:"video"`
	Upload        UploadConfig `json:"upload"`
	Status        Status       `json:"status"`
	Plan          *PlanData    `json:"plan,omitempty"`
	Tracks        []Track      `json:"tracks"`
	Review        *ReviewData  `json:"review,omitempty"`
	Render        *RenderData  `json:"render,omitempty"`
	YouTube       *UploadData  `json:"youtube,omitempty"`

	// MaxTrackAttempts overrides the configured per-artifact cap when set by
	// the queue item that created this project.
	MaxTrackAttempts int `json:"max_track_attempts,omitempty"`
}

// Uploaded reports whether the project already carries an assigned video id.
func (p *Project) Uploaded() bool {
	return p.YouTube != nil && strings.TrimSpace(p.YouTube.VideoID) != ""
}

// TrackAt returns the track occupying the (jobIndex, variantIndex) slot.
func (p *Project) TrackAt(jobIndex, variantIndex int) *Track {
	for i := range p.Tracks {
		t := &p.Tracks[i]
		if t.JobIndex == jobIndex && t.VariantIndex == variantIndex {
			return t
		}
	}
	return nil
}

// UpsertTrack merges a track at its stable slot, preserving ordering by
// ascending (job_index, variant_index).
func (p *Project) UpsertTrack(track Track) {
	for i := range p.Tracks {
		if p.Tracks[i].JobIndex == track.JobIndex && p.Tracks[i].VariantIndex == track.VariantIndex {
			p.Tracks[i] = track
			return
		}
	}
	insert := len(p.Tracks)
	for i := range p.Tracks {
		if track.JobIndex < p.Tracks[i].JobIndex ||
			(track.JobIndex == p.Tracks[i].JobIndex && track.VariantIndex < p.Tracks[i].VariantIndex) {
			insert = i
			break
		}
	}
	p.Tracks = append(p.Tracks, Track{})
	copy(p.Tracks[insert+1:], p.Tracks[insert:])
	p.Tracks[insert] = track
}

// OKTracks returns the tracks with status ok, in stored order.
func (p *Project) OKTracks() []Track {
	var out []Track
	for _, t := range p.Tracks {
		if t.Status == TrackOK {
			out = append(out, t)
		}
	}
	return out
}
