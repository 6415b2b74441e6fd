package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"tracksmith/internal/fileutil"
)

// ErrNotFound reports a project id with no document on disk.
var ErrNotFound = errors.New("project not found")

const documentName = "project.json"

// Store reads and writes project documents under a root directory.
// Saves are atomic (write-temp-then-rename) so a crash mid-save never leaves
// a torn document.
type Store struct {
	root string
}

// NewStore builds a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the projects root directory.
func (s *Store) Root() string { return s.root }

// Dir returns the directory for a project id.
func (s *Store) Dir(id string) string {
	return filepath.Join(s.root, id)
}

// ResolvePath turns a project-relative artifact path into an absolute one.
func (s *Store) ResolvePath(id, rel string) string {
	if rel == "" || filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(s.Dir(id), rel)
}

// Create initializes the project directory layout and persists the document.
func (s *Store) Create(p *Project) error {
	if p.ID == "" {
		return errors.New("project id is required")
	}
	dir := s.Dir(p.ID)
	for _, sub := range []string{"tracks", "assets", "output", "logs"} {
		if err := fileutil.EnsureDir(filepath.Join(dir, sub)); err != nil {
			return err
		}
	}
	return s.Save(p)
}

// Load reads and decodes the document for id.
func (s *Store) Load(id string) (*Project, error) {
	path := filepath.Join(s.Dir(id), documentName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("read project %s: %w", id, err)
	}
	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode project %s: %w", id, err)
	}
	if p.ID == "" {
		p.ID = id
	}
	return &p, nil
}

// Save atomically persists the document.
func (s *Store) Save(p *Project) error {
	if p.ID == "" {
		return errors.New("project id is required")
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode project %s: %w", p.ID, err)
	}
	data = append(data, '\n')
	path := filepath.Join(s.Dir(p.ID), documentName)
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("save project %s: %w", p.ID, err)
	}
	return nil
}

// List returns known project ids, newest first. The time-ordered id format
// makes lexical order chronological.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list projects: %w", err)
	}
	var ids []string
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.root, entry.Name(), documentName)); err != nil {
			continue
		}
		ids = append(ids, entry.Name())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids, nil
}

// New builds a fresh project document with status created. It does not touch
// disk; call Create to persist it.
func New(theme string, now time.Time) *Project {
	return &Project{
		ID:        NewID(theme, now),
		CreatedAt: now.UTC(),
		Theme:     theme,
		Status:    Status{CurrentStep: StepCreated},
	}
}
