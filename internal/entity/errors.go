package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedTemporalValue is returned when a temporal field cannot be parsed.
	ErrMalformedTemporalValue = errors.New("malformed temporal value")
	// ErrMalformedValue is returned when a field has the wrong shape for its kind.
	ErrMalformedValue = errors.New("malformed value")
	// ErrMissingIdentity is returned when an update is routed for a record without identity.
	ErrMissingIdentity = errors.New("missing identity")
	// ErrIdentityAssigned is returned when a create is routed for a record that already
	// has an identity.
	ErrIdentityAssigned = errors.New("identity already assigned")
)

// FieldError attaches the entity and field name to a conversion failure.
type FieldError struct {
	Entity string
	Field  string
	Value  any
	Err    error
}

func (e *FieldError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("%s.%s: %v (got %v)", e.Entity, e.Field, e.Err, e.Value)
	}
	return fmt.Sprintf("%s.%s: %v", e.Entity, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
