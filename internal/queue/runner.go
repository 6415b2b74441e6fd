package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"tracksmith/internal/fileutil"
	"tracksmith/internal/logging"
	"tracksmith/internal/services"
)

// ExecFunc runs the pipeline for one claimed item and returns the project id
// it created or resumed.
type ExecFunc func(ctx context.Context, item Item) (string, error)

// ItemResult is the per-item record inside a run summary.
type ItemResult struct {
	ItemID    string `json:"item_id"`
	Theme     string `json:"theme"`
	ProjectID string `json:"project_id,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	Provider  string `json:"provider,omitempty"`
}

// Summary aggregates one drain of the queue.
type Summary struct {
	RunID            string         `json:"run_id"`
	StartedAt        time.Time      `json:"started_at"`
	FinishedAt       time.Time      `json:"finished_at"`
	Processed        int            `json:"processed"`
	Succeeded        int            `json:"succeeded"`
	Failed           int            `json:"failed"`
	ErrorsByKind     map[string]int `json:"errors_by_kind,omitempty"`
	ErrorsByProvider map[string]int `json:"errors_by_provider,omitempty"`
	Items            []ItemResult   `json:"items"`
}

// Runner drains pending items through an ExecFunc. A file lock under the
// queue root keeps concurrent drains out; one item failing never stops the
// drain.
type Runner struct {
	store  *Store
	exec   ExecFunc
	logger *slog.Logger
}

// NewRunner builds a queue runner.
func NewRunner(store *Store, exec ExecFunc, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{store: store, exec: exec, logger: logger}
}

// Drain claims and executes pending items until the queue is empty, the
// limit is reached (limit <= 0 means unlimited), or ctx is cancelled. The
// summary is also written to runs/<run_id>.json under the queue root.
func (r *Runner) Drain(ctx context.Context, limit int) (Summary, error) {
	if err := r.store.Init(); err != nil {
		return Summary{}, err
	}
	lock := flock.New(filepath.Join(r.store.Root(), "queue.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return Summary{}, fmt.Errorf("acquire queue lock: %w", err)
	}
	if !locked {
		return Summary{}, fmt.Errorf("another queue runner holds the lock")
	}
	defer lock.Unlock()

	summary := Summary{
		RunID:            uuid.NewString(),
		StartedAt:        time.Now().UTC(),
		ErrorsByKind:     map[string]int{},
		ErrorsByProvider: map[string]int{},
	}
	log := logging.WithContext(ctx, r.logger).With(logging.String(logging.FieldRequestID, summary.RunID))
	log.Info("queue drain started", logging.String(logging.FieldEventType, "queue_drain_started"))

	for limit <= 0 || summary.Processed < limit {
		if ctx.Err() != nil {
			break
		}
		claim, err := r.store.Claim()
		if err != nil {
			if err == ErrEmpty {
				break
			}
			return summary, err
		}
		summary.Processed++
		result := r.runItem(ctx, log, claim)
		summary.Items = append(summary.Items, result)
		if result.Error == "" {
			summary.Succeeded++
		} else {
			summary.Failed++
			summary.ErrorsByKind[result.ErrorKind]++
			if result.Provider != "" {
				summary.ErrorsByProvider[result.Provider]++
			}
		}
	}

	summary.FinishedAt = time.Now().UTC()
	if err := r.writeSummary(summary); err != nil {
		log.Error("failed to write run summary", logging.Error(err))
	}
	log.Info("queue drain finished",
		logging.String(logging.FieldEventType, "queue_drain_finished"),
		logging.Int("processed", summary.Processed),
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("failed", summary.Failed))
	return summary, nil
}

func (r *Runner) runItem(ctx context.Context, log *slog.Logger, claim *Claim) ItemResult {
	result := ItemResult{ItemID: claim.Item.ID, Theme: claim.Item.Theme}
	log.Info("queue item started",
		logging.String(logging.FieldEventType, "queue_item_started"),
		logging.String("item_id", claim.Item.ID),
		logging.String("theme", claim.Item.Theme))

	projectID, err := r.exec(ctx, claim.Item)
	claim.Item.ProjectID = projectID
	result.ProjectID = projectID

	if err != nil {
		details := services.Classify(err)
		result.Error = details.Message
		result.ErrorKind = string(details.Kind)
		result.Provider = details.Provider
		claim.Item.Error = details.Message
		claim.Item.ErrorKind = string(details.Kind)
		if releaseErr := r.store.Release(claim, false); releaseErr != nil {
			log.Error("failed to move item to failed", logging.Error(releaseErr))
		}
		log.Error("queue item failed",
			logging.String(logging.FieldEventType, "queue_item_failed"),
			logging.String("item_id", claim.Item.ID),
			logging.String(logging.FieldErrorKind, result.ErrorKind),
			logging.Error(err))
		return result
	}

	if releaseErr := r.store.Release(claim, true); releaseErr != nil {
		log.Error("failed to move item to done", logging.Error(releaseErr))
	}
	log.Info("queue item done",
		logging.String(logging.FieldEventType, "queue_item_done"),
		logging.String("item_id", claim.Item.ID),
		logging.String(logging.FieldProjectID, projectID))
	return result
}

func (r *Runner) writeSummary(summary Summary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run summary: %w", err)
	}
	path := filepath.Join(r.store.Root(), runsDir, summary.RunID+".json")
	return fileutil.WriteFileAtomic(path, append(data, '\n'), 0o644)
}
