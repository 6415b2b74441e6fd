// Package upload implements the upload step. The rendered MP4 is pushed to
// the video platform together with the description, tags, and thumbnail, and
// the resulting video id is recorded on the project so a re-run never uploads
// twice.
package upload

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tracksmith/internal/channel"
	"tracksmith/internal/logging"
	"tracksmith/internal/project"
	"tracksmith/internal/services"
	"tracksmith/internal/services/youtube"
)

// Uploader is the platform surface the stage drives. *youtube.Client
// satisfies it; tests substitute a fake.
type Uploader interface {
	Upload(ctx context.Context, req youtube.UploadRequest) (youtube.UploadResult, error)
}

// Options configure the stage.
type Options struct {
	// Privacy used when the channel profile does not dictate one.
	DefaultPrivacy string
	// Now stamps UploadData.UploadedAt. Defaults to time.Now.
	Now func() time.Time
}

// Stage runs the upload step for one project.
type Stage struct {
	store    *project.Store
	uploader Uploader
	catalog  *channel.Catalog
	logger   *slog.Logger
	opts     Options
}

// NewStage builds the upload stage. catalog may be nil.
func NewStage(store *project.Store, uploader Uploader, catalog *channel.Catalog, logger *slog.Logger, opts Options) *Stage {
	if opts.DefaultPrivacy == "" {
		opts.DefaultPrivacy = "private"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Stage{store: store, uploader: uploader, catalog: catalog, logger: logger, opts: opts}
}

// Run uploads the rendered video. A project that already carries a video id
// is left untouched; the caller decides whether reaching that state counts
// as success.
func (s *Stage) Run(ctx context.Context, p *project.Project) error {
	log := logging.WithContext(ctx, s.logger)
	projectDir := s.store.Dir(p.ID)

	if p.Uploaded() {
		log.Info("upload already recorded, skipping",
			logging.String(logging.FieldEventType, "upload_skipped"),
			logging.String("video_id", p.YouTube.VideoID))
		return nil
	}
	if p.Render == nil || p.Render.OutputPath == "" {
		return services.Wrap(services.ErrValidation, "upload", "validate", "no rendered video; run the render step first", nil)
	}
	videoPath := filepath.Join(projectDir, p.Render.OutputPath)
	if _, err := os.Stat(videoPath); err != nil {
		return services.Wrap(services.ErrValidation, "upload", "validate", "rendered video missing: "+p.Render.OutputPath, err)
	}

	var profile *channel.Profile
	if s.catalog != nil && strings.TrimSpace(p.ChannelID) != "" {
		loaded, err := s.catalog.Load(p.ChannelID)
		if err != nil {
			return services.Wrap(services.ErrValidation, "upload", "load_channel", "", err)
		}
		profile = loaded
	}

	req := s.buildRequest(p, profile, projectDir, videoPath)

	log.Info("uploading video",
		logging.String(logging.FieldEventType, "upload_start"),
		logging.String("title", req.Title),
		logging.String("privacy", req.Privacy))

	result, err := s.uploader.Upload(ctx, req)
	if err != nil {
		return err
	}

	uploadedAt := s.opts.Now().UTC()
	p.YouTube = &project.UploadData{
		VideoID:           result.VideoID,
		UploadedAt:        &uploadedAt,
		Privacy:           req.Privacy,
		Title:             req.Title,
		ThumbnailUploaded: result.ThumbnailUploaded,
		ThumbnailPath:     p.Render.ThumbnailPath,
	}
	if err := s.store.Save(p); err != nil {
		return err
	}

	log.Info("upload complete",
		logging.String(logging.FieldEventType, "upload_complete"),
		logging.String("video_id", result.VideoID),
		logging.Bool("thumbnail", result.ThumbnailUploaded))
	return nil
}

func (s *Stage) buildRequest(p *project.Project, profile *channel.Profile, projectDir, videoPath string) youtube.UploadRequest {
	req := youtube.UploadRequest{
		VideoPath: videoPath,
		Privacy:   s.opts.DefaultPrivacy,
	}

	if p.Plan != nil && p.Plan.Metadata != nil {
		req.Title = p.Plan.Metadata.Title
		req.Description = p.Plan.Metadata.Description
		req.Tags = p.Plan.Metadata.Tags
	}
	if req.Title == "" {
		req.Title = p.Theme
	}

	// The rendered description carries the chapter list, so it wins over
	// the bare metadata description.
	if p.Render.DescriptionPath != "" {
		if data, err := os.ReadFile(filepath.Join(projectDir, p.Render.DescriptionPath)); err == nil {
			req.Description = string(data)
		}
	}
	if p.Render.ThumbnailPath != "" {
		thumbnail := filepath.Join(projectDir, p.Render.ThumbnailPath)
		if _, err := os.Stat(thumbnail); err == nil {
			req.ThumbnailPath = thumbnail
		}
	}

	if profile != nil {
		defaults := profile.UploadDefaults
		if defaults.Privacy != "" {
			req.Privacy = defaults.Privacy
		}
		req.CategoryID = defaults.CategoryID
		req.DefaultLanguage = defaults.DefaultLanguage
		req.MadeForKids = defaults.MadeForKids
		req.Tags = profile.AllowedTags(req.Tags)
	}

	// Per-project settings win over channel defaults.
	if p.Upload.Privacy != "" {
		req.Privacy = p.Upload.Privacy
	}
	if p.Upload.CategoryID != "" {
		req.CategoryID = p.Upload.CategoryID
	}
	if p.Upload.DefaultLanguage != "" {
		req.DefaultLanguage = p.Upload.DefaultLanguage
	}
	if p.Upload.MadeForKids {
		req.MadeForKids = true
	}
	return req
}
