package entity

import (
	"fmt"
	"strconv"
)

// Ref is a relationship reference: the identity of a related entity plus whatever display
// attributes the backend sent along with it. Attrs are carried through untouched and never
// take part in equality.
type Ref struct {
	ID    int64
	Attrs map[string]any
}

// NewRef returns a reference holding only an identity.
func NewRef(id int64) Ref {
	return Ref{ID: id}
}

// Clone copies the reference and its attribute map.
func (r Ref) Clone() Ref {
	if r.Attrs == nil {
		return Ref{ID: r.ID}
	}
	attrs := make(map[string]any, len(r.Attrs))
	for k, v := range r.Attrs {
		attrs[k] = v
	}
	return Ref{ID: r.ID, Attrs: attrs}
}

// Label returns a human readable name for the reference, using the first of the given
// attribute names that holds a non-empty value.
func (r Ref) Label(attrs ...string) string {
	for _, name := range attrs {
		if v, ok := r.Attrs[name]; ok && v != nil {
			if s := fmt.Sprint(v); s != "" {
				return s
			}
		}
	}
	return "#" + strconv.FormatInt(r.ID, 10)
}

// RefFromRecord projects a record onto a reference. Attributes listed in keep are copied;
// the identity field is always excluded from Attrs.
func RefFromRecord(rec Record, idField string, keep ...string) (Ref, bool) {
	id, ok := rec.ID(idField)
	if !ok {
		return Ref{}, false
	}
	ref := Ref{ID: id}
	for _, name := range keep {
		if name == idField {
			continue
		}
		if v, present := rec[name]; present {
			if ref.Attrs == nil {
				ref.Attrs = make(map[string]any, len(keep))
			}
			ref.Attrs[name] = v
		}
	}
	return ref, true
}
