package storage

import (
	"time"

	"github.com/google/uuid"

	"github.com/n1rna/invadmin/internal/entity"
)

// Draft is an unsaved form state kept on disk between commands. Values hold the wire form
// of the form value, so a draft is re-hydrated through the codec like any backend record.
type Draft struct {
	ID            string            `json:"id"`                  // UUID of the draft
	Name          string            `json:"name,omitempty"`      // Optional human-readable alias
	Entity        string            `json:"entity"`              // Manifest name
	RecordID      *int64            `json:"record_id,omitempty"` // Backend identity when editing
	Session       string            `json:"session"`             // Form session id
	InitializedAt time.Time         `json:"initialized_at"`
	Values        entity.WireRecord `json:"values"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// NewDraft creates a draft with a generated UUID and current timestamps
func NewDraft(entityName, session string, initializedAt time.Time, values entity.WireRecord) *Draft {
	now := time.Now().UTC()
	return &Draft{
		ID:            uuid.New().String(),
		Entity:        entityName,
		Session:       session,
		InitializedAt: initializedAt,
		Values:        values,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Mode is "edit" for drafts of an existing record and "create" otherwise.
func (d *Draft) Mode() string {
	if d.RecordID != nil {
		return "edit"
	}
	return "create"
}

// DraftSummary represents a lightweight summary of a draft for index.json
type DraftSummary struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name,omitempty" yaml:"name,omitempty"`
	Entity    string    `json:"entity" yaml:"entity"`
	RecordID  *int64    `json:"record_id,omitempty" yaml:"record_id,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Mode mirrors Draft.Mode.
func (s DraftSummary) Mode() string {
	if s.RecordID != nil {
		return "edit"
	}
	return "create"
}
