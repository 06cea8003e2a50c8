// Package picker keeps relationship choice collections complete and free of duplicates.
// Identity is the only basis for equality; other field values are never compared.
package picker

import (
	"github.com/n1rna/invadmin/internal/entity"
	"github.com/n1rna/invadmin/internal/schema"
)

// IdentityFunc projects a value onto its identity. ok is false for null values.
type IdentityFunc[T any] func(T) (id int64, ok bool)

// Reconciler merges candidates into picker collections of T.
type Reconciler[T any] struct {
	identity IdentityFunc[T]
}

// New creates a reconciler using the given identity projection.
func New[T any](identity IdentityFunc[T]) *Reconciler[T] {
	return &Reconciler[T]{identity: identity}
}

// Refs returns a reconciler for relationship references.
func Refs() *Reconciler[entity.Ref] {
	return New[entity.Ref](func(r entity.Ref) (int64, bool) { return r.ID, true })
}

// RefPointers returns a reconciler for optional references, treating nil as null.
func RefPointers() *Reconciler[*entity.Ref] {
	return New[*entity.Ref](func(r *entity.Ref) (int64, bool) {
		if r == nil {
			return 0, false
		}
		return r.ID, true
	})
}

// Records returns a reconciler for records keyed by idField. A nil record or one without
// identity counts as null.
func Records(idField string) *Reconciler[entity.Record] {
	return New[entity.Record](func(r entity.Record) (int64, bool) {
		if r == nil {
			return 0, false
		}
		return r.ID(idField)
	})
}

// Identity returns the identity of v.
func (r *Reconciler[T]) Identity(v T) (int64, bool) {
	return r.identity(v)
}

// Equal is true when both values are null, or both are non-null with the same identity.
func (r *Reconciler[T]) Equal(a, b T) bool {
	ida, oka := r.identity(a)
	idb, okb := r.identity(b)
	if !oka || !okb {
		return oka == okb
	}
	return ida == idb
}

// Merge prepends the candidates not yet present in base, by identity, keeping their
// relative order; base follows in its original order. Null candidates are dropped. When no
// candidate survives, base is returned unchanged.
func (r *Reconciler[T]) Merge(base []T, candidates ...T) []T {
	seen := make(map[int64]struct{}, len(base)+len(candidates))
	for _, v := range base {
		if id, ok := r.identity(v); ok {
			seen[id] = struct{}{}
		}
	}

	var accepted []T
	for _, c := range candidates {
		id, ok := r.identity(c)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		accepted = append(accepted, c)
	}

	if len(accepted) == 0 {
		return base
	}

	out := make([]T, 0, len(accepted)+len(base))
	out = append(out, accepted...)
	return append(out, base...)
}

// Contains reports whether some element of collection has the identity of v.
func (r *Reconciler[T]) Contains(collection []T, v T) bool {
	id, ok := r.identity(v)
	if !ok {
		return false
	}
	for _, item := range collection {
		if other, ok := r.identity(item); ok && other == id {
			return true
		}
	}
	return false
}

// Selected returns the relationship references currently held by a record's field.
func Selected(f schema.Field, rec entity.Record) []entity.Ref {
	switch v := rec[f.Name].(type) {
	case entity.Ref:
		return []entity.Ref{v}
	case *entity.Ref:
		if v != nil {
			return []entity.Ref{*v}
		}
	case []entity.Ref:
		return v
	}
	return nil
}

// Reconcile merges the current relationship values of rec into the matching pages, one
// per relationship field of the manifest. Pages for fields without a page are built from
// the selected values alone. The input map is not modified.
func Reconcile(m *schema.Manifest, pages map[string][]entity.Ref, rec entity.Record) map[string][]entity.Ref {
	refs := Refs()
	out := make(map[string][]entity.Ref, len(pages))
	for name, page := range pages {
		out[name] = page
	}

	for _, f := range m.Relationships() {
		out[f.Name] = refs.Merge(out[f.Name], Selected(f, rec)...)
	}
	return out
}
