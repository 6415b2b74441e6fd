// Package render implements the render step. Approved tracks are selected in
// ascending order until the target duration is reached, concatenated,
// loudness-normalized, and muxed with a static background into the upload
// MP4. The step also produces chapters.txt, description.txt, and the
// thumbnail image.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"tracksmith/internal/channel"
	"tracksmith/internal/fileutil"
	"tracksmith/internal/logging"
	"tracksmith/internal/media/ffmpeg"
	"tracksmith/internal/project"
	"tracksmith/internal/services"
)

// Renderer is the media surface the stage drives. *ffmpeg.Runner satisfies
// it; tests substitute a fake.
type Renderer interface {
	GenerateBackground(ctx context.Context, outputPath string, width, height int) error
	ConcatAudio(ctx context.Context, inputs []string, outputPath string) error
	NormalizeLoudness(ctx context.Context, inputPath, outputPath string, targetLUFS float64) error
	CreateVideo(ctx context.Context, imagePath, audioPath, outputPath string, opts ffmpeg.VideoOptions) error
	OverlayText(ctx context.Context, imagePath, outputPath string, opts ffmpeg.OverlayOptions) error
}

// Options configure the stage.
type Options struct {
	Width      int
	Height     int
	FPS        int
	TargetLUFS float64
}

// Stage runs the render step for one project.
type Stage struct {
	store    *project.Store
	renderer Renderer
	catalog  *channel.Catalog
	logger   *slog.Logger
	opts     Options
}

// NewStage builds the render stage. catalog may be nil.
func NewStage(store *project.Store, renderer Renderer, catalog *channel.Catalog, logger *slog.Logger, opts Options) *Stage {
	if opts.Width <= 0 {
		opts.Width = 1920
	}
	if opts.Height <= 0 {
		opts.Height = 1080
	}
	if opts.FPS <= 0 {
		opts.FPS = 30
	}
	if opts.TargetLUFS == 0 {
		opts.TargetLUFS = -16
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Stage{store: store, renderer: renderer, catalog: catalog, logger: logger, opts: opts}
}

// Run renders the final video and its companion artifacts.
func (s *Stage) Run(ctx context.Context, p *project.Project) error {
	log := logging.WithContext(ctx, s.logger)
	projectDir := s.store.Dir(p.ID)

	if p.Review == nil || len(p.Review.Approved) == 0 {
		return services.Wrap(services.ErrValidation, "render", "validate", "no approved tracks; run the review step first", nil)
	}

	var profile *channel.Profile
	if s.catalog != nil && strings.TrimSpace(p.ChannelID) != "" {
		loaded, err := s.catalog.Load(p.ChannelID)
		if err != nil {
			return services.Wrap(services.ErrValidation, "render", "load_channel", "", err)
		}
		profile = loaded
	}

	selected := SelectTracks(p, p.Review.Approved, float64(p.TargetMinutes)*60)
	if len(selected) == 0 {
		return services.Wrap(services.ErrValidation, "render", "select", "track selection is empty", nil)
	}
	log.Info("selected tracks for render",
		logging.String(logging.FieldEventType, "render_start"),
		logging.Int("selected", len(selected)),
		logging.Int("approved", len(p.Review.Approved)))

	outputDir := filepath.Join(projectDir, "output")
	if err := fileutil.EnsureDir(outputDir); err != nil {
		return err
	}

	inputs := make([]string, len(selected))
	for i, track := range selected {
		inputs[i] = filepath.Join(projectDir, track.AudioPath)
	}
	concatPath := filepath.Join(outputDir, "mix_raw.mp3")
	if err := s.renderer.ConcatAudio(ctx, inputs, concatPath); err != nil {
		return err
	}
	mixPath := filepath.Join(outputDir, "mix.mp3")
	if err := s.renderer.NormalizeLoudness(ctx, concatPath, mixPath, s.opts.TargetLUFS); err != nil {
		return err
	}

	backgroundPath, err := s.resolveBackground(ctx, projectDir)
	if err != nil {
		return err
	}

	finalPath := filepath.Join(outputDir, "final.mp4")
	err = s.renderer.CreateVideo(ctx, backgroundPath, mixPath, finalPath, ffmpeg.VideoOptions{
		Width:  s.opts.Width,
		Height: s.opts.Height,
		FPS:    s.opts.FPS,
	})
	if err != nil {
		return err
	}

	chaptersRel := filepath.Join("output", "chapters.txt")
	chapters := BuildChapters(selected)
	if err := fileutil.WriteFileAtomic(filepath.Join(projectDir, chaptersRel), []byte(chapters), 0o644); err != nil {
		return err
	}

	descriptionRel := filepath.Join("output", "description.txt")
	description := buildDescription(p, profile, chapters)
	if err := fileutil.WriteFileAtomic(filepath.Join(projectDir, descriptionRel), []byte(description), 0o644); err != nil {
		return err
	}

	thumbnailRel := filepath.Join("output", "thumbnail.png")
	if err := s.renderThumbnail(ctx, p, profile, backgroundPath, filepath.Join(projectDir, thumbnailRel)); err != nil {
		return err
	}

	indices := make([]int, len(selected))
	for i, track := range selected {
		indices[i] = track.TrackIndex
	}
	p.Render = &project.RenderData{
		BackgroundPath:  relativeTo(projectDir, backgroundPath),
		ThumbnailPath:   thumbnailRel,
		SelectedTracks:  indices,
		OutputPath:      filepath.Join("output", "final.mp4"),
		ChaptersPath:    chaptersRel,
		DescriptionPath: descriptionRel,
	}
	if err := s.store.Save(p); err != nil {
		return err
	}

	log.Info("render complete",
		logging.String(logging.FieldEventType, "render_complete"),
		logging.String("output", p.Render.OutputPath))
	return nil
}

// resolveBackground prefers a project-supplied background asset and
// generates a plain one otherwise.
func (s *Stage) resolveBackground(ctx context.Context, projectDir string) (string, error) {
	for _, name := range []string{"background.png", "background.jpg"} {
		candidate := filepath.Join(projectDir, "assets", name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	generated := filepath.Join(projectDir, "assets", "background.png")
	if err := s.renderer.GenerateBackground(ctx, generated, s.opts.Width, s.opts.Height); err != nil {
		return "", err
	}
	return generated, nil
}

func (s *Stage) renderThumbnail(ctx context.Context, p *project.Project, profile *channel.Profile, backgroundPath, outputPath string) error {
	title := p.Theme
	if p.Plan != nil && p.Plan.Metadata != nil && p.Plan.Metadata.Title != "" {
		title = p.Plan.Metadata.Title
	}
	opts := ffmpeg.OverlayOptions{Title: strings.ToUpper(title)}
	if profile != nil {
		opts.Subtitle = strings.ToUpper(profile.Name)
		opts.TextColor = profile.ThumbnailStyle.TextColor
		opts.TitleSize = profile.ThumbnailStyle.FontSizeTitle
	}
	return s.renderer.OverlayText(ctx, backgroundPath, outputPath, opts)
}

// SelectTracks walks candidates in ascending track order, accumulating until
// the target duration is met. The track that crosses the target is included;
// with no positive target every approved track is used.
func SelectTracks(p *project.Project, approved []int, targetSeconds float64) []project.Track {
	approvedSet := make(map[int]bool, len(approved))
	for _, idx := range approved {
		approvedSet[idx] = true
	}
	var selected []project.Track
	total := 0.0
	for _, track := range p.Tracks {
		if !approvedSet[track.TrackIndex] || track.Status != project.TrackOK {
			continue
		}
		if targetSeconds > 0 && total >= targetSeconds {
			break
		}
		selected = append(selected, track)
		total += track.DurationSeconds
	}
	return selected
}

// BuildChapters renders a YouTube-style chapter list with cumulative
// timestamps, one line per track.
func BuildChapters(tracks []project.Track) string {
	var b strings.Builder
	offset := 0.0
	for _, track := range tracks {
		b.WriteString(formatTimestamp(offset))
		b.WriteString(" ")
		if track.Title != "" {
			b.WriteString(track.Title)
		} else {
			fmt.Fprintf(&b, "Track %d", track.TrackIndex+1)
		}
		b.WriteString("\n")
		offset += track.DurationSeconds
	}
	return b.String()
}

func buildDescription(p *project.Project, profile *channel.Profile, chapters string) string {
	intro := ""
	if p.Plan != nil && p.Plan.Metadata != nil {
		intro = p.Plan.Metadata.Description
	}
	cta := ""
	if profile != nil && len(profile.CTAVariants) > 0 {
		cta = profile.CTAVariants[0].LongText
		if cta == "" {
			cta = profile.CTAVariants[0].ShortText
		}
	}

	if profile != nil && profile.DescriptionTemplate.Template != "" {
		replacer := strings.NewReplacer(
			"{intro}", intro,
			"{chapters}", "Chapters:\n"+chapters,
			"{cta}", cta,
		)
		return replacer.Replace(profile.DescriptionTemplate.Template) + "\n"
	}

	var b strings.Builder
	if intro != "" {
		b.WriteString(intro)
		b.WriteString("\n\n")
	}
	b.WriteString("Chapters:\n")
	b.WriteString(chapters)
	if cta != "" {
		b.WriteString("\n")
		b.WriteString(cta)
		b.WriteString("\n")
	}
	return b.String()
}

func formatTimestamp(seconds float64) string {
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	sec := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%02d:%02d", m, sec)
}

func relativeTo(base, path string) string {
	if rel, err := filepath.Rel(base, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}
