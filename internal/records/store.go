// Package records persists annotation records, one JSON document per
// ingested file, and keeps an in-memory index for listing and lookup.
package records

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/excel-reporter/backend/internal/models"
)

// ErrNotFound is returned when a record identifier does not exist.
var ErrNotFound = errors.New("record not found")

// Store defines the durable record interface. Every Create/Update is
// persisted before it returns success; readers never observe a
// partially-written record. Concurrent updates to the same identifier are
// last-write-wins with a full-record overwrite; single-writer-per-record
// usage is assumed.
type Store interface {
	Create(rec *models.AnnotationRecord) (string, error)
	Get(id string) (*models.AnnotationRecord, error)
	Update(id string, mutate func(*models.AnnotationRecord) error) (*models.AnnotationRecord, error)
	List() ([]*models.AnnotationRecord, error)
}

// FileStore implements Store on the local filesystem.
type FileStore struct {
	mu      sync.RWMutex
	dir     string
	records map[string]*models.AnnotationRecord
}

// NewFileStore opens (or creates) a record directory and rebuilds the index
// from the JSON documents already present, so records survive restarts.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating records directory: %w", err)
	}

	s := &FileStore{
		dir:     dir,
		records: make(map[string]*models.AnnotationRecord),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading records directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		rec, err := s.readFile(filepath.Join(dir, e.Name()))
		if err != nil {
			fmt.Printf("[Records] skipping unreadable record %s: %v\n", e.Name(), err)
			continue
		}
		s.records[rec.ID] = rec
	}
	return s, nil
}

// Create allocates a fresh identifier and durably writes the initial record.
func (s *FileStore) Create(rec *models.AnnotationRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := newRecordID()
	for _, taken := s.records[id]; taken; _, taken = s.records[id] {
		id = newRecordID()
	}

	cp := rec.Clone()
	cp.ID = id
	if err := s.writeFile(cp); err != nil {
		return "", err
	}
	s.records[id] = cp
	return id, nil
}

// Get returns a copy of the record, or ErrNotFound.
func (s *FileStore) Get(id string) (*models.AnnotationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

// Update applies mutate to a copy of the record and persists the result. If
// mutate returns an error, nothing is written and the stored record is
// unchanged. The whole read-modify-write runs under the store lock.
func (s *FileStore) Update(id string, mutate func(*models.AnnotationRecord) error) (*models.AnnotationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}

	cp := rec.Clone()
	if err := mutate(cp); err != nil {
		return nil, err
	}
	if err := s.writeFile(cp); err != nil {
		return nil, err
	}
	s.records[id] = cp
	return cp.Clone(), nil
}

// List returns all records ordered newest-first by upload time.
func (s *FileStore) List() ([]*models.AnnotationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*models.AnnotationRecord, 0, len(s.records))
	for _, rec := range s.records {
		list = append(list, rec.Clone())
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].UploadedAt.After(list[j].UploadedAt)
	})
	return list, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// writeFile persists atomically: write a temp file, fsync, then rename over
// the final path so a crash never leaves a truncated record on disk.
func (s *FileStore) writeFile(rec *models.AnnotationRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode record %s: %w", rec.ID, err)
	}

	tmp, err := os.CreateTemp(s.dir, "rec-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp record: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write record %s: %w", rec.ID, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("sync record %s: %w", rec.ID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp record: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(rec.ID)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("persist record %s: %w", rec.ID, err)
	}
	return nil
}

func (s *FileStore) readFile(path string) (*models.AnnotationRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec models.AnnotationRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	if rec.ID == "" {
		return nil, fmt.Errorf("record in %s has no id", filepath.Base(path))
	}
	return &rec, nil
}

// newRecordID generates a filename-safe identifier.
func newRecordID() string {
	return uuid.New().String()
}
