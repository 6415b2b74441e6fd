package pipeline

import (
	"strings"
	"time"

	"tracksmith/internal/channel"
	"tracksmith/internal/config"
	"tracksmith/internal/project"
	"tracksmith/internal/services"
)

// ProjectParams are the caller-supplied fields for a new project. Zero
// values fall back to the channel profile and then the configuration.
type ProjectParams struct {
	Theme            string
	ChannelID        string
	Intent           string
	TrackCount       int
	TargetMinutes    int
	MaxTrackAttempts int
	Vocals           *bool
}

// CreateProject builds and persists a new project document, layering channel
// profile defaults under the explicit parameters.
func CreateProject(store *project.Store, catalog *channel.Catalog, cfg *config.Config, params ProjectParams) (*project.Project, error) {
	theme := strings.TrimSpace(params.Theme)
	if theme == "" {
		return nil, services.Wrap(services.ErrValidation, "create", "validate", "theme is required", nil)
	}

	p := project.New(theme, time.Now())
	p.ChannelID = strings.TrimSpace(params.ChannelID)
	p.Intent = strings.TrimSpace(params.Intent)
	p.TrackCount = params.TrackCount
	p.TargetMinutes = params.TargetMinutes
	p.MaxTrackAttempts = params.MaxTrackAttempts
	p.Video = project.VideoConfig{
		Width:  cfg.Video.Width,
		Height: cfg.Video.Height,
		FPS:    cfg.Video.FPS,
	}

	if p.ChannelID != "" && catalog != nil {
		profile, err := catalog.Load(p.ChannelID)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "create", "load_channel", "", err)
		}
		if p.Intent == "" {
			p.Intent = profile.Intent
		}
		if p.TrackCount <= 0 {
			p.TrackCount = profile.DurationRules.TrackCount
		}
		if p.TargetMinutes <= 0 {
			p.TargetMinutes = profile.DurationRules.TargetMinutes
		}
		if params.Vocals == nil {
			p.Vocals.Enabled = profile.PromptConstraints.DefaultVocals && !profile.PromptConstraints.DefaultInstrumental
		}
		p.Upload = project.UploadConfig{
			Privacy:         profile.UploadDefaults.Privacy,
			CategoryID:      profile.UploadDefaults.CategoryID,
			MadeForKids:     profile.UploadDefaults.MadeForKids,
			DefaultLanguage: profile.UploadDefaults.DefaultLanguage,
		}
	}
	if params.Vocals != nil {
		p.Vocals.Enabled = *params.Vocals
	}
	p.Lyrics.Enabled = p.Vocals.Enabled
	if p.TrackCount <= 0 {
		p.TrackCount = 25
	}
	if p.TargetMinutes < 0 {
		p.TargetMinutes = 0
	}

	if err := store.Create(p); err != nil {
		return nil, err
	}
	return p, nil
}
