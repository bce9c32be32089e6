package task

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// MetaFileName is the metadata file written inside a task directory.
const MetaFileName = "meta.json"

// MetaStore persists a single task's Meta.
type MetaStore interface {
	Load(ctx context.Context) (Meta, error)
	Save(ctx context.Context, meta Meta) error
	Reset(ctx context.Context) error
}

// FileMetaStore keeps Meta in <dir>/meta.json. Writes go to a temp file that
// is renamed over the target, so a crash never leaves a torn file.
type FileMetaStore struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// NewFileMetaStore returns a store rooted at dir. The directory is created on
// first write.
func NewFileMetaStore(dir string) *FileMetaStore {
	return &FileMetaStore{dir: dir, now: time.Now}
}

// Dir returns the task directory.
func (s *FileMetaStore) Dir() string { return s.dir }

// Path returns the metadata file path.
func (s *FileMetaStore) Path() string { return filepath.Join(s.dir, MetaFileName) }

// Load reads the metadata. A missing or empty file reads as pending.
func (s *FileMetaStore) Load(_ context.Context) (Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return Meta{Status: StatusPending, AllJobs: []string{}}, nil
		}
		return Meta{}, fmt.Errorf("read %s: %w", s.Path(), err)
	}
	if strings.TrimSpace(string(b)) == "" {
		return Meta{Status: StatusPending, AllJobs: []string{}}, nil
	}

	var m Meta
	if err := json.Unmarshal(b, &m); err != nil {
		return Meta{}, fmt.Errorf("parse %s: %w", s.Path(), err)
	}
	if m.Status == "" {
		m.Status = StatusPending
	}
	if m.AllJobs == nil {
		m.AllJobs = []string{}
	}
	return m, nil
}

// Save atomically replaces the metadata file.
func (s *FileMetaStore) Save(_ context.Context, meta Meta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if meta.AllJobs == nil {
		meta.AllJobs = []string{}
	}
	meta.UpdatedAt = s.now().UTC()

	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}
	b = append(b, '\n')

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", s.dir, err)
	}
	tmp, err := os.CreateTemp(s.dir, MetaFileName+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp meta: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp meta: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp meta: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp meta: %w", err)
	}
	if err := os.Rename(tmpName, s.Path()); err != nil {
		return fmt.Errorf("replace meta: %w", err)
	}
	return nil
}

// Reset removes the metadata file so the task reads as pending again.
func (s *FileMetaStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.Path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", s.Path(), err)
	}
	return nil
}

var _ MetaStore = (*FileMetaStore)(nil)
