// Package storage keeps unsaved entity drafts on the local file system, one JSON file per
// draft plus an index.json for name and prefix resolution.
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/n1rna/invadmin/internal/config"
)

const (
	indexFile     = "index.json"
	fileExtension = ".json"
)

// ErrDraftNotFound is returned when a draft reference cannot be resolved.
var ErrDraftNotFound = errors.New("draft not found")

// DraftStore stores drafts under <base>/drafts.
type DraftStore struct {
	dir   string
	index *Index // cached after first load
}

// NewDraftStore creates a draft store and its directory
func NewDraftStore(cfg *config.Config) (*DraftStore, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return &DraftStore{dir: cfg.DraftsDir()}, nil
}

// Dir returns the drafts directory.
func (s *DraftStore) Dir() string {
	return s.dir
}

func (s *DraftStore) indexPath() string {
	return filepath.Join(s.dir, indexFile)
}

func (s *DraftStore) draftPath(id string) string {
	return filepath.Join(s.dir, id+fileExtension)
}

// LoadIndex loads index.json, returning an empty index when it does not exist yet
func (s *DraftStore) LoadIndex() (*Index, error) {
	if s.index != nil {
		return s.index, nil
	}

	data, err := os.ReadFile(s.indexPath())
	if errors.Is(err, os.ErrNotExist) {
		s.index = NewIndex()
		return s.index, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read index file: %w", err)
	}

	var index Index
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to parse index file: %w", err)
	}

	// Ensure maps are initialized
	if index.NameToID == nil {
		index.NameToID = make(map[string]string)
	}
	if index.Summaries == nil {
		index.Summaries = make(map[string]DraftSummary)
	}

	s.index = &index
	return s.index, nil
}

// SaveIndex writes index.json
func (s *DraftStore) SaveIndex(index *Index) error {
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}
	if err := os.WriteFile(s.indexPath(), data, 0644); err != nil {
		return fmt.Errorf("failed to write index file: %w", err)
	}
	s.index = index
	return nil
}

// Resolve resolves a draft name, UUID or UUID prefix to a UUID
func (s *DraftStore) Resolve(ref string) (string, error) {
	index, err := s.LoadIndex()
	if err != nil {
		return "", err
	}
	id, ok := index.Resolve(ref)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrDraftNotFound, ref)
	}
	return id, nil
}

// Save writes the draft file and updates the index. UpdatedAt is refreshed.
func (s *DraftStore) Save(d *Draft) error {
	index, err := s.LoadIndex()
	if err != nil {
		return err
	}
	if d.Name != "" {
		if other, taken := index.NameToID[d.Name]; taken && other != d.ID {
			return fmt.Errorf("draft name %q is already used by %s", d.Name, other)
		}
	}

	d.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal draft: %w", err)
	}
	if err := os.WriteFile(s.draftPath(d.ID), data, 0644); err != nil {
		return fmt.Errorf("failed to write draft file: %w", err)
	}

	index.AddDraft(d)
	if err := s.SaveIndex(index); err != nil {
		return fmt.Errorf("failed to save drafts index: %w", err)
	}
	return nil
}

// Load reads a draft by name, UUID or UUID prefix. Numbers in the stored values are kept
// as json.Number so they decode exactly.
func (s *DraftStore) Load(ref string) (*Draft, error) {
	id, err := s.Resolve(ref)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.draftPath(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s (file missing)", ErrDraftNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read draft file: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var d Draft
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("failed to parse draft file: %w", err)
	}
	return &d, nil
}

// List returns summaries of all drafts
func (s *DraftStore) List() ([]DraftSummary, error) {
	index, err := s.LoadIndex()
	if err != nil {
		return nil, fmt.Errorf("failed to load drafts index: %w", err)
	}
	return index.List(), nil
}

// Delete removes a draft file and its index entry
func (s *DraftStore) Delete(ref string) error {
	id, err := s.Resolve(ref)
	if err != nil {
		return err
	}

	if err := os.Remove(s.draftPath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete draft file: %w", err)
	}

	index, err := s.LoadIndex()
	if err != nil {
		return err
	}
	index.RemoveDraft(id)
	return s.SaveIndex(index)
}
