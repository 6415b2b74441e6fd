// Package queue implements the file-based work queue. Each queued item is a
// JSON document that moves between lifecycle folders: pending, in_progress,
// done, and failed. Claiming is an atomic rename, so concurrent runners never
// process the same item twice, and the folder an item sits in is the full
// truth about its state.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"tracksmith/internal/fileutil"
	"tracksmith/internal/project"
)

// ErrEmpty reports that no pending item is available.
var ErrEmpty = errors.New("queue is empty")

// Lifecycle states, each backed by a folder under the queue root.
const (
	StatePending    = "pending"
	StateInProgress = "in_progress"
	StateDone       = "done"
	StateFailed     = "failed"
)

const runsDir = "runs"

// Item is one queued pipeline request.
type Item struct {
	ID            string    `json:"id"`
	ChannelID     string    `json:"channel_id"`
	Theme         string    `json:"theme"`
	Intent        string    `json:"intent,omitempty"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
	TerminalStep  string    `json:"terminal_step,omitempty"`
	TrackCount    int       `json:"track_count,omitempty"`
	TargetMinutes int       `json:"target_minutes,omitempty"`

	// MaxTrackAttempts overrides the configured per-artifact cap for the
	// project created from this item.
	MaxTrackAttempts int `json:"max_track_attempts,omitempty"`

	// Result fields, populated when the item leaves in_progress.
	ProjectID   string     `json:"project_id,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	ErrorKind   string     `json:"error_kind,omitempty"`
}

// Validate checks the fields required before enqueueing.
func (i *Item) Validate() error {
	if strings.TrimSpace(i.Theme) == "" {
		return errors.New("queue item theme is required")
	}
	if i.TerminalStep != "" {
		if _, ok := project.ParseStep(i.TerminalStep); !ok {
			return fmt.Errorf("queue item terminal_step %q is not a pipeline step", i.TerminalStep)
		}
	}
	return nil
}

// Claim is a pending item moved to in_progress, owned by one runner until
// released.
type Claim struct {
	Item Item
	path string
}

// Store is the on-disk queue rooted at one directory.
type Store struct {
	root string
}

// NewStore builds a store over the queue root directory.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// Root returns the queue root directory.
func (s *Store) Root() string { return s.root }

// Init creates the lifecycle folders.
func (s *Store) Init() error {
	for _, dir := range []string{StatePending, StateInProgress, StateDone, StateFailed, runsDir} {
		if err := fileutil.EnsureDir(filepath.Join(s.root, dir)); err != nil {
			return err
		}
	}
	return nil
}

// Enqueue assigns an id and timestamp and writes the item into pending.
func (s *Store) Enqueue(item Item) (Item, error) {
	if err := item.Validate(); err != nil {
		return Item{}, err
	}
	if err := s.Init(); err != nil {
		return Item{}, err
	}
	item.ID = uuid.NewString()
	item.EnqueuedAt = time.Now().UTC()

	// The nanosecond prefix keeps lexical directory order equal to FIFO
	// order.
	name := fmt.Sprintf("%020d_%s.json", item.EnqueuedAt.UnixNano(), item.ID)
	if err := s.write(filepath.Join(s.root, StatePending, name), item); err != nil {
		return Item{}, err
	}
	return item, nil
}

// Claim moves the oldest pending item into in_progress and returns it. The
// rename is atomic; losing a race for one file just moves on to the next.
func (s *Store) Claim() (*Claim, error) {
	names, err := s.listNames(StatePending)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		src := filepath.Join(s.root, StatePending, name)
		dst := filepath.Join(s.root, StateInProgress, name)
		if err := os.Rename(src, dst); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("claim %s: %w", name, err)
		}
		item, err := s.read(dst)
		if err != nil {
			return nil, err
		}
		return &Claim{Item: item, path: dst}, nil
	}
	return nil, ErrEmpty
}

// Release finishes a claim, moving the item to done or failed with its
// result fields filled in.
func (s *Store) Release(claim *Claim, success bool) error {
	state := StateDone
	if !success {
		state = StateFailed
	}
	now := time.Now().UTC()
	claim.Item.CompletedAt = &now

	dst := filepath.Join(s.root, state, filepath.Base(claim.path))
	if err := s.write(claim.path, claim.Item); err != nil {
		return err
	}
	if err := os.Rename(claim.path, dst); err != nil {
		return fmt.Errorf("release %s: %w", claim.Item.ID, err)
	}
	return nil
}

// List returns the items in one lifecycle state, oldest first.
func (s *Store) List(state string) ([]Item, error) {
	names, err := s.listNames(state)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(names))
	for _, name := range names {
		item, err := s.read(filepath.Join(s.root, state, name))
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// Counts returns the number of items per lifecycle state.
func (s *Store) Counts() (map[string]int, error) {
	counts := make(map[string]int, 4)
	for _, state := range []string{StatePending, StateInProgress, StateDone, StateFailed} {
		names, err := s.listNames(state)
		if err != nil {
			return nil, err
		}
		counts[state] = len(names)
	}
	return counts, nil
}

// PendingDir returns the folder watched for new work.
func (s *Store) PendingDir() string {
	return filepath.Join(s.root, StatePending)
}

func (s *Store) listNames(state string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, state))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", state, err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) read(path string) (Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Item{}, fmt.Errorf("read queue item %s: %w", path, err)
	}
	var item Item
	if err := json.Unmarshal(data, &item); err != nil {
		return Item{}, fmt.Errorf("parse queue item %s: %w", path, err)
	}
	return item, nil
}

func (s *Store) write(path string, item Item) error {
	data, err := json.MarshalIndent(item, "", "  ")
	if err != nil {
		return fmt.Errorf("encode queue item %s: %w", item.ID, err)
	}
	return fileutil.WriteFileAtomic(path, append(data, '\n'), 0o644)
}
