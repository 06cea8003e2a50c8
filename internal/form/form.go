// Package form holds the editable state of a single entity instance and bridges it to
// domain records. A state is in create mode while its identity is unset and in edit mode
// once the identity is set; nothing else distinguishes the two.
package form

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/n1rna/invadmin/internal/codec"
	"github.com/n1rna/invadmin/internal/entity"
	"github.com/n1rna/invadmin/internal/schema"
)

var (
	ErrUnknownField    = errors.New("unknown field")
	ErrImmutableField  = errors.New("field is immutable")
	ErrReadOnlyField   = errors.New("field is read-only")
	ErrKindMismatch    = errors.New("value does not match field kind")
	ErrRequiredMissing = errors.New("required fields missing")
)

// Mode is the logical mode of a form state.
type Mode int

const (
	ModeCreate Mode = iota
	ModeEdit
)

func (m Mode) String() string {
	if m == ModeEdit {
		return "edit"
	}
	return "create"
}

// Manager applies defaults and seeds for one entity type.
type Manager struct {
	manifest *schema.Manifest
	defaults map[string]any
	now      func() time.Time
}

// Option configures a Manager
type Option func(*Manager)

// WithClock overrides the clock used for "now" defaults.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a form manager for a resolved manifest. Literal defaults declared in
// the manifest are parsed once here.
func NewManager(manifest *schema.Manifest, opts ...Option) (*Manager, error) {
	m := &Manager{
		manifest: manifest,
		defaults: make(map[string]any),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	for _, f := range manifest.Fields {
		if f.Default == nil {
			continue
		}
		v, err := codec.ParseText(f, *f.Default)
		if err != nil {
			return nil, fmt.Errorf("invalid default for %s.%s: %w", manifest.Name, f.Name, err)
		}
		m.defaults[f.Name] = v
	}

	return m, nil
}

// Manifest returns the manifest the manager was built for.
func (m *Manager) Manifest() *schema.Manifest {
	return m.manifest
}

// Initialize builds a new state. Defaults are applied first and seed is overlaid on top, so
// every field present in seed wins, explicit nils included. A nil seed starts a pure create.
func (m *Manager) Initialize(seed entity.Record) *State {
	s := &State{
		manifest: m.manifest,
		session:  uuid.New(),
	}
	m.apply(s, seed)
	return s
}

// Reset re-applies Initialize semantics to an existing state, keeping its session.
func (m *Manager) Reset(s *State, seed entity.Record) {
	m.apply(s, seed)
}

// Value returns a copy of the current field values. The identity field is always present.
func (m *Manager) Value(s *State) entity.Record {
	out := s.values.Clone()
	idField := m.manifest.IDField()
	if _, ok := out[idField]; !ok {
		out[idField] = nil
	}
	return out
}

// Restore rebuilds a state from previously captured values without applying defaults.
func (m *Manager) Restore(session uuid.UUID, values entity.Record, initializedAt time.Time) *State {
	s := &State{
		manifest:      m.manifest,
		session:       session,
		values:        values.Clone(),
		initializedAt: initializedAt,
	}
	if s.values == nil {
		s.values = make(entity.Record)
	}
	return s
}

func (m *Manager) apply(s *State, seed entity.Record) {
	// captured once so every "now" default agrees
	now := m.now().UTC().Truncate(time.Millisecond)

	values := make(entity.Record, len(m.manifest.Fields)+len(seed))
	for _, f := range m.manifest.Fields {
		values[f.Name] = m.defaultFor(f, now)
	}
	for k, v := range seed.Clone() {
		values[k] = v
	}

	s.values = values
	s.initializedAt = now
}

func (m *Manager) defaultFor(f schema.Field, now time.Time) any {
	switch {
	case f.Kind == schema.KindIdentity:
		return nil
	case f.DefaultNow:
		return now
	case f.Default != nil:
		v := m.defaults[f.Name]
		if refs, ok := v.([]entity.Ref); ok {
			return append([]entity.Ref(nil), refs...)
		}
		return v
	case f.Kind == schema.KindBoolean:
		return false
	default:
		return nil
	}
}

// State is the editable representation of one entity instance. It is owned by a single
// caller and is not safe for concurrent use.
type State struct {
	manifest      *schema.Manifest
	session       uuid.UUID
	values        entity.Record
	initializedAt time.Time
}

// Session identifies the edit session the state belongs to.
func (s *State) Session() uuid.UUID {
	return s.session
}

// InitializedAt returns the instant captured for "now" defaults.
func (s *State) InitializedAt() time.Time {
	return s.initializedAt
}

// Manifest returns the entity manifest
func (s *State) Manifest() *schema.Manifest {
	return s.manifest
}

// ID returns the identity, if set.
func (s *State) ID() (int64, bool) {
	return s.values.ID(s.manifest.IDField())
}

// Mode reports create while the identity is unset, edit otherwise.
func (s *State) Mode() Mode {
	if _, ok := s.ID(); ok {
		return ModeEdit
	}
	return ModeCreate
}

// Get returns the current value of a field.
func (s *State) Get(field string) (any, bool) {
	v, ok := s.values[field]
	return v, ok
}

// Set changes a field value. The identity and read-only fields cannot be set; the value must
// match the field kind (nil clears the field).
func (s *State) Set(field string, value any) error {
	f, ok := s.manifest.Field(field)
	if !ok {
		return fmt.Errorf("%s.%s: %w", s.manifest.Name, field, ErrUnknownField)
	}
	if f.Kind == schema.KindIdentity {
		return fmt.Errorf("%s.%s: %w", s.manifest.Name, field, ErrImmutableField)
	}
	if f.ReadOnly {
		return fmt.Errorf("%s.%s: %w", s.manifest.Name, field, ErrReadOnlyField)
	}
	if err := codec.CheckValue(f, value); err != nil {
		return fmt.Errorf("%s.%s: %w: %v", s.manifest.Name, field, ErrKindMismatch, err)
	}

	s.values[field] = value
	return nil
}

// SetRaw parses text according to the field kind and sets the result.
func (s *State) SetRaw(field, text string) error {
	f, ok := s.manifest.Field(field)
	if !ok {
		return fmt.Errorf("%s.%s: %w", s.manifest.Name, field, ErrUnknownField)
	}
	v, err := codec.ParseText(f, text)
	if err != nil {
		return &entity.FieldError{Entity: s.manifest.Name, Field: field, Value: text, Err: err}
	}
	return s.Set(field, v)
}

// Missing lists required, user-editable fields that are unset or blank, in manifest order.
func (s *State) Missing() []string {
	var missing []string
	for _, f := range s.manifest.Fields {
		if !f.Required || f.ReadOnly || f.Kind == schema.KindIdentity {
			continue
		}
		if isBlank(s.values[f.Name]) {
			missing = append(missing, f.Name)
		}
	}
	return missing
}

// Validate checks presence constraints only.
func (s *State) Validate() error {
	missing := s.Missing()
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("%s: %w: %s", s.manifest.Name, ErrRequiredMissing, strings.Join(missing, ", "))
}

func isBlank(v any) bool {
	switch tv := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(tv) == ""
	case []entity.Ref:
		return len(tv) == 0
	}
	return false
}
