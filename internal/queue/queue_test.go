package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tracksmith/internal/queue"
	"tracksmith/internal/services"
)

func TestEnqueueAndClaimFIFO(t *testing.T) {
	store := queue.NewStore(t.TempDir())
	first, err := store.Enqueue(queue.Item{Theme: "first theme", ChannelID: "deepfocus"})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if first.ID == "" || first.EnqueuedAt.IsZero() {
		t.Fatalf("enqueue must assign id and timestamp: %+v", first)
	}
	second, err := store.Enqueue(queue.Item{Theme: "second theme"})
	if err != nil {
		t.Fatal(err)
	}

	claim, err := store.Claim()
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if claim.Item.ID != first.ID {
		t.Fatalf("claims must be FIFO: got %s want %s", claim.Item.ID, first.ID)
	}

	counts, err := store.Counts()
	if err != nil {
		t.Fatal(err)
	}
	if counts[queue.StatePending] != 1 || counts[queue.StateInProgress] != 1 {
		t.Fatalf("unexpected counts after claim: %v", counts)
	}

	if err := store.Release(claim, true); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	done, err := store.List(queue.StateDone)
	if err != nil {
		t.Fatal(err)
	}
	if len(done) != 1 || done[0].ID != first.ID || done[0].CompletedAt == nil {
		t.Fatalf("done item wrong: %+v", done)
	}

	// Remaining item still claimable.
	claim2, err := store.Claim()
	if err != nil || claim2.Item.ID != second.ID {
		t.Fatalf("second claim wrong: %+v, %v", claim2, err)
	}
}

func TestClaimEmptyQueue(t *testing.T) {
	store := queue.NewStore(t.TempDir())
	if err := store.Init(); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Claim(); !errors.Is(err, queue.ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestEnqueueValidation(t *testing.T) {
	store := queue.NewStore(t.TempDir())
	if _, err := store.Enqueue(queue.Item{}); err == nil {
		t.Fatal("empty theme must be rejected")
	}
	if _, err := store.Enqueue(queue.Item{Theme: "x", TerminalStep: "teleport"}); err == nil {
		t.Fatal("unknown terminal step must be rejected")
	}
	if _, err := store.Enqueue(queue.Item{Theme: "x", TerminalStep: "review"}); err != nil {
		t.Fatalf("valid terminal step rejected: %v", err)
	}
}

func TestDrainContinuesPastFailures(t *testing.T) {
	store := queue.NewStore(t.TempDir())
	for _, theme := range []string{"ok one", "broken", "ok two"} {
		if _, err := store.Enqueue(queue.Item{Theme: theme}); err != nil {
			t.Fatal(err)
		}
	}

	exec := func(ctx context.Context, item queue.Item) (string, error) {
		if item.Theme == "broken" {
			return "", services.TagProvider(services.ProviderSuno,
				services.Wrap(services.ErrRateLimit, "generate", "submit", "slow down", nil))
		}
		return "proj-" + item.Theme, nil
	}
	runner := queue.NewRunner(store, exec, nil)

	summary, err := runner.Drain(context.Background(), 0)
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if summary.Processed != 3 || summary.Succeeded != 2 || summary.Failed != 1 {
		t.Fatalf("summary wrong: %+v", summary)
	}
	if summary.ErrorsByKind["rate_limit"] != 1 {
		t.Fatalf("errors by kind wrong: %v", summary.ErrorsByKind)
	}
	if summary.ErrorsByProvider["suno"] != 1 {
		t.Fatalf("errors by provider wrong: %v", summary.ErrorsByProvider)
	}

	counts, err := store.Counts()
	if err != nil {
		t.Fatal(err)
	}
	if counts[queue.StateDone] != 2 || counts[queue.StateFailed] != 1 || counts[queue.StatePending] != 0 {
		t.Fatalf("lifecycle folders wrong: %v", counts)
	}

	failed, err := store.List(queue.StateFailed)
	if err != nil {
		t.Fatal(err)
	}
	if failed[0].ErrorKind != "rate_limit" || failed[0].Error == "" {
		t.Fatalf("failure not recorded on item: %+v", failed[0])
	}

	// The run summary lands in runs/.
	entries, err := os.ReadDir(filepath.Join(store.Root(), "runs"))
	if err != nil || len(entries) != 1 {
		t.Fatalf("run summary not written: %v, %v", entries, err)
	}
	data, err := os.ReadFile(filepath.Join(store.Root(), "runs", entries[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	var onDisk queue.Summary
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("run summary not valid JSON: %v", err)
	}
	if onDisk.RunID != summary.RunID || len(onDisk.Items) != 3 {
		t.Fatalf("persisted summary wrong: %+v", onDisk)
	}
}

func TestDrainHonorsLimit(t *testing.T) {
	store := queue.NewStore(t.TempDir())
	for i := 0; i < 3; i++ {
		if _, err := store.Enqueue(queue.Item{Theme: "theme"}); err != nil {
			t.Fatal(err)
		}
	}
	runner := queue.NewRunner(store, func(ctx context.Context, item queue.Item) (string, error) {
		return "p", nil
	}, nil)

	summary, err := runner.Drain(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Processed != 2 {
		t.Fatalf("limit ignored: %+v", summary)
	}
	counts, _ := store.Counts()
	if counts[queue.StatePending] != 1 {
		t.Fatalf("one item should remain pending: %v", counts)
	}
}

func TestDrainRecordsProjectID(t *testing.T) {
	store := queue.NewStore(t.TempDir())
	if _, err := store.Enqueue(queue.Item{Theme: "theme"}); err != nil {
		t.Fatal(err)
	}
	runner := queue.NewRunner(store, func(ctx context.Context, item queue.Item) (string, error) {
		return "proj-42", nil
	}, nil)
	if _, err := runner.Drain(context.Background(), 0); err != nil {
		t.Fatal(err)
	}
	done, err := store.List(queue.StateDone)
	if err != nil {
		t.Fatal(err)
	}
	if done[0].ProjectID != "proj-42" {
		t.Fatalf("project id not recorded: %+v", done[0])
	}
}

func TestWatchDrainsNewItems(t *testing.T) {
	store := queue.NewStore(t.TempDir())
	processed := make(chan string, 4)
	runner := queue.NewRunner(store, func(ctx context.Context, item queue.Item) (string, error) {
		processed <- item.Theme
		return "p", nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watchErr := make(chan error, 1)
	go func() { watchErr <- runner.Watch(ctx, 10*time.Millisecond) }()

	// Give the watcher time to register, then enqueue.
	time.Sleep(100 * time.Millisecond)
	if _, err := store.Enqueue(queue.Item{Theme: "late arrival"}); err != nil {
		t.Fatal(err)
	}

	select {
	case theme := <-processed:
		if theme != "late arrival" {
			t.Fatalf("unexpected item: %s", theme)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watched item never processed")
	}
	cancel()
	if err := <-watchErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("watch exit: %v", err)
	}
}
