package storage

import (
	"sort"
	"strings"
)

// Index represents the structure of index.json
// Provides fast name-to-UUID resolution and draft summaries
type Index struct {
	NameToID  map[string]string       `json:"name_to_id"` // Map name -> UUID
	Summaries map[string]DraftSummary `json:"summaries"`  // Map UUID -> DraftSummary
}

// NewIndex creates a new empty index
func NewIndex() *Index {
	return &Index{
		NameToID:  make(map[string]string),
		Summaries: make(map[string]DraftSummary),
	}
}

// AddDraft adds a draft to the index, replacing an older entry with the same ID
func (idx *Index) AddDraft(d *Draft) {
	idx.RemoveDraft(d.ID)
	if d.Name != "" {
		idx.NameToID[d.Name] = d.ID
	}
	idx.Summaries[d.ID] = DraftSummary{
		ID:        d.ID,
		Name:      d.Name,
		Entity:    d.Entity,
		RecordID:  d.RecordID,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// RemoveDraft removes a draft from the index
func (idx *Index) RemoveDraft(nameOrUUID string) {
	id, ok := idx.Resolve(nameOrUUID)
	if !ok {
		return
	}
	delete(idx.Summaries, id)

	// Remove any name mappings to this UUID
	for name, mapped := range idx.NameToID {
		if mapped == id {
			delete(idx.NameToID, name)
		}
	}
}

// Resolve resolves a name, a UUID or an unambiguous UUID prefix to a UUID
func (idx *Index) Resolve(ref string) (string, bool) {
	if _, exists := idx.Summaries[ref]; exists {
		return ref, true
	}
	if id, exists := idx.NameToID[ref]; exists {
		return id, true
	}
	if ref == "" {
		return "", false
	}

	match := ""
	for id := range idx.Summaries {
		if strings.HasPrefix(id, ref) {
			if match != "" {
				return "", false
			}
			match = id
		}
	}
	return match, match != ""
}

// List returns all draft summaries, most recently updated first
func (idx *Index) List() []DraftSummary {
	summaries := make([]DraftSummary, 0, len(idx.Summaries))
	for _, summary := range idx.Summaries {
		summaries = append(summaries, summary)
	}
	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].UpdatedAt.Equal(summaries[j].UpdatedAt) {
			return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
		}
		return summaries[i].ID < summaries[j].ID
	})
	return summaries
}
