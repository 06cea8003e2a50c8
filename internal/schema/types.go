// Package schema describes entity shapes as declarative manifests: which fields exist,
// which one is the identity, which are temporal and which point at other entities.
package schema

import (
	"fmt"

	"github.com/n1rna/invadmin/internal/entity"
)

// Kind tags a field with the representation it has on the wire and in memory.
type Kind string

const (
	KindIdentity         Kind = "identity"
	KindScalar           Kind = "scalar"
	KindBoolean          Kind = "boolean"
	KindInstant          Kind = "instant"
	KindDate             Kind = "date"
	KindDecimal          Kind = "decimal"
	KindRelationship     Kind = "relationship"
	KindRelationshipList Kind = "relationship-list"
)

// Kinds lists every supported kind.
var Kinds = []Kind{
	KindIdentity, KindScalar, KindBoolean, KindInstant,
	KindDate, KindDecimal, KindRelationship, KindRelationshipList,
}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindIdentity, KindScalar, KindBoolean, KindInstant,
		KindDate, KindDecimal, KindRelationship, KindRelationshipList:
		return true
	}
	return false
}

// IsTemporal reports whether values of this kind are ISO-8601 strings on the wire.
func (k Kind) IsTemporal() bool {
	return k == KindInstant || k == KindDate
}

// IsRelationship reports whether values of this kind reference other entities.
func (k Kind) IsRelationship() bool {
	return k == KindRelationship || k == KindRelationshipList
}

// Field describes a single entity field
type Field struct {
	Name       string  `yaml:"name" json:"name"`
	Kind       Kind    `yaml:"kind" json:"kind"`
	Required   bool    `yaml:"required,omitempty" json:"required,omitempty"`
	ReadOnly   bool    `yaml:"readOnly,omitempty" json:"readOnly,omitempty"`     // system-assigned, never set from a form
	DefaultNow bool    `yaml:"defaultNow,omitempty" json:"defaultNow,omitempty"` // defaults to the form's initialization time
	Default    *string `yaml:"default,omitempty" json:"default,omitempty"`       // literal default, parsed per kind
	Target     string  `yaml:"target,omitempty" json:"target,omitempty"`         // related manifest for relationship kinds
	Title      string  `yaml:"title,omitempty" json:"title,omitempty"`
}

// DisplayName returns the field title, falling back to its name.
func (f Field) DisplayName() string {
	if f.Title != "" {
		return f.Title
	}
	return f.Name
}

// Manifest is the field schema of one entity type.
type Manifest struct {
	Name     string   `yaml:"name" json:"name"`
	Resource string   `yaml:"resource,omitempty" json:"resource,omitempty"` // REST collection path, e.g. "brands"
	Display  string   `yaml:"display,omitempty" json:"display,omitempty"`   // field used to label picker choices
	Abstract bool     `yaml:"abstract,omitempty" json:"abstract,omitempty"` // only usable through extends
	Extends  []string `yaml:"extends,omitempty" json:"extends,omitempty"`
	Fields   []Field  `yaml:"fields" json:"fields"`

	index map[string]int
}

// Field looks up a field by name.
func (m *Manifest) Field(name string) (Field, bool) {
	if m.index == nil {
		m.reindex()
	}
	i, ok := m.index[name]
	if !ok {
		return Field{}, false
	}
	return m.Fields[i], true
}

// IDField returns the name of the identity field.
func (m *Manifest) IDField() string {
	for _, f := range m.Fields {
		if f.Kind == KindIdentity {
			return f.Name
		}
	}
	return entity.DefaultIDField
}

// Relationships returns the relationship and relationship-list fields in declaration order.
func (m *Manifest) Relationships() []Field {
	var out []Field
	for _, f := range m.Fields {
		if f.Kind.IsRelationship() {
			out = append(out, f)
		}
	}
	return out
}

// Names returns field names in declaration order.
func (m *Manifest) Names() []string {
	names := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		names[i] = f.Name
	}
	return names
}

// CollectionPath returns the REST collection path for the entity.
func (m *Manifest) CollectionPath() string {
	if m.Resource != "" {
		return m.Resource
	}
	return m.Name + "s"
}

// DisplayField returns the field used to label this entity in pickers.
func (m *Manifest) DisplayField() string {
	if m.Display != "" {
		return m.Display
	}
	if _, ok := m.Field("name"); ok {
		return "name"
	}
	return m.IDField()
}

func (m *Manifest) reindex() {
	m.index = make(map[string]int, len(m.Fields))
	for i, f := range m.Fields {
		m.index[f.Name] = i
	}
}

// validateField checks if a field definition is valid
func validateField(f *Field) error {
	if f.Name == "" {
		return fmt.Errorf("field name cannot be empty")
	}

	if !f.Kind.Valid() {
		return fmt.Errorf("unsupported kind: %s", f.Kind)
	}

	if f.Kind.IsRelationship() && f.Target == "" {
		return fmt.Errorf("relationship field requires a target")
	}
	if !f.Kind.IsRelationship() && f.Target != "" {
		return fmt.Errorf("target is only allowed on relationship fields")
	}

	if f.DefaultNow && f.Kind != KindInstant {
		return fmt.Errorf("defaultNow is only allowed on instant fields")
	}
	if f.DefaultNow && f.Default != nil {
		return fmt.Errorf("defaultNow and default are mutually exclusive")
	}

	if f.Kind == KindIdentity && (f.Default != nil || f.ReadOnly) {
		return fmt.Errorf("identity field cannot declare defaults or readOnly")
	}

	return nil
}

// ValidateManifest checks a resolved manifest: field definitions, name uniqueness and a
// single identity field.
func ValidateManifest(m *Manifest) error {
	if m.Name == "" {
		return fmt.Errorf("manifest name cannot be empty")
	}

	seen := make(map[string]bool, len(m.Fields))
	identities := 0
	for i := range m.Fields {
		f := &m.Fields[i]
		if err := validateField(f); err != nil {
			return fmt.Errorf("invalid field %s: %w", f.Name, err)
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate field %s", f.Name)
		}
		seen[f.Name] = true
		if f.Kind == KindIdentity {
			identities++
		}
	}

	if m.Abstract {
		if identities > 1 {
			return fmt.Errorf("manifest %s declares %d identity fields", m.Name, identities)
		}
		return nil
	}
	if identities != 1 {
		return fmt.Errorf("manifest %s must have exactly one identity field, has %d", m.Name, identities)
	}

	return nil
}
