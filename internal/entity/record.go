// Package entity defines the record shapes exchanged between the REST backend and the
// editing layer: wire records, domain records and relationship references.
package entity

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// DefaultIDField is the identity field name used when a manifest does not name one.
const DefaultIDField = "id"

// Record is the in-memory (domain) form of an entity.
//
// A key mapped to nil is an explicit null; a missing key is an absent field.
type Record map[string]any

// WireRecord is the JSON form of an entity as exchanged with the backend.
// Temporal fields are ISO-8601 strings and relationships are nested objects.
type WireRecord map[string]any

// Clone returns a shallow copy of the record. Ref values and slices of Ref are copied too.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		switch tv := v.(type) {
		case Ref:
			out[k] = tv.Clone()
		case []Ref:
			refs := make([]Ref, len(tv))
			for i, ref := range tv {
				refs[i] = ref.Clone()
			}
			out[k] = refs
		default:
			out[k] = v
		}
	}
	return out
}

// Has reports whether the field is present (null counts as present).
func (r Record) Has(field string) bool {
	_, ok := r[field]
	return ok
}

// Fields returns the record's field names in sorted order.
func (r Record) Fields() []string {
	names := make([]string, 0, len(r))
	for k := range r {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ID returns the identity value stored under idField.
// ok is false when the field is absent, null or not an integer.
func (r Record) ID(idField string) (int64, bool) {
	v, present := r[idField]
	if !present || v == nil {
		return 0, false
	}
	id, err := ToID(v)
	if err != nil {
		return 0, false
	}
	return id, true
}

// IsNew reports whether the record carries the new-entity marker, i.e. has no identity.
func IsNew(r Record, idField string) bool {
	_, ok := r.ID(idField)
	return !ok
}

// ToID converts the numeric representations produced by encoding/json (and plain Go
// integers) to an int64 identity. Strings are rejected: a quoted id is not a wire identity.
func ToID(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case json.Number:
		id, err := strconv.ParseInt(string(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("identity %q is not an integer: %w", n, ErrMalformedValue)
		}
		return id, nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.IsNaN(n) {
			return 0, fmt.Errorf("identity %v is not an integer: %w", n, ErrMalformedValue)
		}
		return int64(n), nil
	default:
		return 0, fmt.Errorf("identity of type %T: %w", v, ErrMalformedValue)
	}
}

// ParseID parses an identity typed by a user, e.g. a CLI argument.
func ParseID(text string) (int64, error) {
	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("identity %q is not an integer: %w", text, ErrMalformedValue)
	}
	return id, nil
}
