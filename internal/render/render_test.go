package render_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tracksmith/internal/media/ffmpeg"
	"tracksmith/internal/project"
	"tracksmith/internal/render"
	"tracksmith/internal/services"
)

// fakeRenderer records calls and writes placeholder outputs.
type fakeRenderer struct {
	concatInputs []string
	normalized   bool
	videoMade    bool
	overlay      ffmpeg.OverlayOptions
	background   bool
}

func (f *fakeRenderer) GenerateBackground(ctx context.Context, outputPath string, width, height int) error {
	f.background = true
	return write(outputPath)
}

func (f *fakeRenderer) ConcatAudio(ctx context.Context, inputs []string, outputPath string) error {
	f.concatInputs = inputs
	return write(outputPath)
}

func (f *fakeRenderer) NormalizeLoudness(ctx context.Context, inputPath, outputPath string, targetLUFS float64) error {
	f.normalized = true
	return write(outputPath)
}

func (f *fakeRenderer) CreateVideo(ctx context.Context, imagePath, audioPath, outputPath string, opts ffmpeg.VideoOptions) error {
	f.videoMade = true
	return write(outputPath)
}

func (f *fakeRenderer) OverlayText(ctx context.Context, imagePath, outputPath string, opts ffmpeg.OverlayOptions) error {
	f.overlay = opts
	return write(outputPath)
}

func write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("x"), 0o644)
}

func renderableProject(t *testing.T, store *project.Store, durations []float64) *project.Project {
	t.Helper()
	p := project.New("deep focus", time.Now())
	p.TargetMinutes = 10
	p.Plan = &project.PlanData{Metadata: &project.VideoMetadata{Title: "Deep Focus Mix", Description: "An hour of calm."}}
	if err := store.Create(p); err != nil {
		t.Fatal(err)
	}
	var approved []int
	for i, d := range durations {
		rel := filepath.Join("tracks", "t"+string(rune('0'+i))+".mp3")
		if err := os.WriteFile(filepath.Join(store.Dir(p.ID), rel), []byte("a"), 0o644); err != nil {
			t.Fatal(err)
		}
		p.UpsertTrack(project.Track{
			TrackIndex:      i,
			Title:           "Track " + string(rune('A'+i)),
			JobIndex:        i / 2,
			VariantIndex:    i % 2,
			AudioPath:       rel,
			DurationSeconds: d,
			Status:          project.TrackOK,
		})
		approved = append(approved, i)
	}
	p.Review = &project.ReviewData{Approved: approved}
	return p
}

func TestRunRendersEverything(t *testing.T) {
	store := project.NewStore(t.TempDir())
	p := renderableProject(t, store, []float64{300, 300, 300})
	renderer := &fakeRenderer{}
	stage := render.NewStage(store, renderer, nil, nil, render.Options{})

	if err := stage.Run(context.Background(), p); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// 10 minute target at 300s each: first two tracks reach 600s.
	if len(renderer.concatInputs) != 2 {
		t.Fatalf("expected 2 concatenated tracks, got %v", renderer.concatInputs)
	}
	if !renderer.normalized || !renderer.videoMade || !renderer.background {
		t.Fatalf("render pipeline incomplete: %+v", renderer)
	}
	if p.Render == nil || p.Render.OutputPath != filepath.Join("output", "final.mp4") {
		t.Fatalf("render data not recorded: %+v", p.Render)
	}
	if len(p.Render.SelectedTracks) != 2 {
		t.Fatalf("selected tracks not recorded: %v", p.Render.SelectedTracks)
	}

	chapters, err := os.ReadFile(filepath.Join(store.Dir(p.ID), p.Render.ChaptersPath))
	if err != nil {
		t.Fatalf("chapters missing: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(chapters)), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "00:00 ") || !strings.HasPrefix(lines[1], "05:00 ") {
		t.Fatalf("unexpected chapters: %q", chapters)
	}

	description, err := os.ReadFile(filepath.Join(store.Dir(p.ID), p.Render.DescriptionPath))
	if err != nil {
		t.Fatalf("description missing: %v", err)
	}
	if !strings.Contains(string(description), "An hour of calm.") || !strings.Contains(string(description), "Chapters:") {
		t.Fatalf("unexpected description: %q", description)
	}

	if renderer.overlay.Title != "DEEP FOCUS MIX" {
		t.Fatalf("thumbnail title wrong: %+v", renderer.overlay)
	}
}

func TestRunUsesProvidedBackground(t *testing.T) {
	store := project.NewStore(t.TempDir())
	p := renderableProject(t, store, []float64{700})
	custom := filepath.Join(store.Dir(p.ID), "assets", "background.png")
	if err := write(custom); err != nil {
		t.Fatal(err)
	}
	renderer := &fakeRenderer{}
	stage := render.NewStage(store, renderer, nil, nil, render.Options{})

	if err := stage.Run(context.Background(), p); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if renderer.background {
		t.Fatal("must not generate a background when one is provided")
	}
	if p.Render.BackgroundPath != filepath.Join("assets", "background.png") {
		t.Fatalf("background path wrong: %s", p.Render.BackgroundPath)
	}
}

func TestRunRequiresApprovedTracks(t *testing.T) {
	store := project.NewStore(t.TempDir())
	p := project.New("focus", time.Now())
	if err := store.Create(p); err != nil {
		t.Fatal(err)
	}
	stage := render.NewStage(store, &fakeRenderer{}, nil, nil, render.Options{})
	err := stage.Run(context.Background(), p)
	if services.KindOf(err) != services.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSelectTracksStopsAfterCrossingTarget(t *testing.T) {
	p := project.New("focus", time.Now())
	for i, d := range []float64{200, 200, 200, 200} {
		p.UpsertTrack(project.Track{TrackIndex: i, JobIndex: i, DurationSeconds: d, Status: project.TrackOK})
	}
	selected := render.SelectTracks(p, []int{0, 1, 2, 3}, 500)
	if len(selected) != 3 {
		t.Fatalf("expected 3 tracks to cross 500s, got %d", len(selected))
	}
	// No positive target selects everything.
	if got := render.SelectTracks(p, []int{0, 1, 2, 3}, 0); len(got) != 4 {
		t.Fatalf("zero target should select all: %d", len(got))
	}
	// Unapproved tracks are skipped.
	if got := render.SelectTracks(p, []int{1, 3}, 0); len(got) != 2 || got[0].TrackIndex != 1 {
		t.Fatalf("approval filter broken: %+v", got)
	}
}

func TestBuildChaptersTimestamps(t *testing.T) {
	chapters := render.BuildChapters([]project.Track{
		{Title: "Opening", DurationSeconds: 3700},
		{Title: "Second", DurationSeconds: 60},
	})
	lines := strings.Split(strings.TrimSpace(chapters), "\n")
	if lines[0] != "00:00 Opening" {
		t.Fatalf("first chapter wrong: %q", lines[0])
	}
	if lines[1] != "1:01:40 Second" {
		t.Fatalf("hour rollover wrong: %q", lines[1])
	}
}
