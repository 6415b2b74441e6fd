package project_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tracksmith/internal/project"
)

func TestStoreCreateLoadSave(t *testing.T) {
	store := project.NewStore(t.TempDir())

	p := project.New("deep focus", time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC))
	p.TargetMinutes = 60
	p.TrackCount = 6
	if err := store.Create(p); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for _, sub := range []string{"tracks", "assets", "output", "logs"} {
		if _, err := os.Stat(filepath.Join(store.Dir(p.ID), sub)); err != nil {
			t.Fatalf("missing project subdirectory %s: %v", sub, err)
		}
	}

	loaded, err := store.Load(p.ID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Theme != "deep focus" || loaded.TrackCount != 6 {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}
	if loaded.Status.CurrentStep != project.StepCreated {
		t.Fatalf("unexpected initial step: %s", loaded.Status.CurrentStep)
	}

	loaded.MarkStepSucceeded(project.StepPlan)
	if err := store.Save(loaded); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	again, err := store.Load(p.ID)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if again.Status.LastSuccessfulStep != project.StepPlan {
		t.Fatalf("status not persisted: %+v", again.Status)
	}
}

func TestStoreLoadMissing(t *testing.T) {
	store := project.NewStore(t.TempDir())
	if _, err := store.Load("20260101_000000_absent"); !errors.Is(err, project.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreSaveLeavesNoPartialDocument(t *testing.T) {
	store := project.NewStore(t.TempDir())
	p := project.New("focus", time.Now())
	if err := store.Create(p); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	entries, err := os.ReadDir(store.Dir(p.ID))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, entry := range entries {
		if strings.Contains(entry.Name(), ".tmp-") {
			t.Fatalf("temp document left behind: %s", entry.Name())
		}
	}
}

func TestStoreListNewestFirst(t *testing.T) {
	store := project.NewStore(t.TempDir())
	older := project.New("first", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	newer := project.New("second", time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	for _, p := range []*project.Project{older, newer} {
		if err := store.Create(p); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	ids, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != newer.ID || ids[1] != older.ID {
		t.Fatalf("unexpected listing: %v", ids)
	}
}

func TestStoreResolvePath(t *testing.T) {
	store := project.NewStore("/data/projects")
	got := store.ResolvePath("20260101_000000_x", "tracks/track_00.mp3")
	want := filepath.Join("/data/projects", "20260101_000000_x", "tracks", "track_00.mp3")
	if got != want {
		t.Fatalf("ResolvePath = %s, want %s", got, want)
	}
	if store.ResolvePath("id", "/abs/path.mp3") != "/abs/path.mp3" {
		t.Fatal("absolute paths must pass through")
	}
}
