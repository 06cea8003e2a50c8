// Package codec converts entity records between their wire form (JSON with ISO-8601
// strings and nested relationship objects) and their domain form (time.Time,
// decimal.Decimal, entity.Ref). All temporal format knowledge lives here.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/n1rna/invadmin/internal/entity"
	"github.com/n1rna/invadmin/internal/schema"
)

const (
	// InstantLayout is the fixed wire format for instants, always rendered in UTC.
	InstantLayout = "2006-01-02T15:04:05.000Z07:00"
	// DateLayout is the wire format for calendar dates.
	DateLayout = "2006-01-02"
)

// Codec translates records of one entity type. It holds no mutable state and is safe for
// concurrent use.
type Codec struct {
	manifest *schema.Manifest
}

// New creates a codec for the given resolved manifest
func New(m *schema.Manifest) *Codec {
	return &Codec{manifest: m}
}

// Manifest returns the manifest the codec was built for.
func (c *Codec) Manifest() *schema.Manifest {
	return c.manifest
}

// ToDomain converts a wire record into a domain record. Absent fields stay absent, null
// fields stay null, fields unknown to the manifest pass through unchanged.
func (c *Codec) ToDomain(w entity.WireRecord) (entity.Record, error) {
	if w == nil {
		return nil, nil
	}

	out := make(entity.Record, len(w))
	var errs []error
	for k, v := range w {
		out[k] = v
	}

	for _, f := range c.manifest.Fields {
		raw, present := w[f.Name]
		if !present || raw == nil {
			continue
		}
		v, err := decodeValue(f.Kind, raw)
		if err != nil {
			errs = append(errs, c.fieldError(f.Name, raw, err))
			continue
		}
		out[f.Name] = v
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// ToWire converts a domain record back to its wire form. A present nil value serializes as
// JSON null; an absent field is omitted.
func (c *Codec) ToWire(r entity.Record) (entity.WireRecord, error) {
	if r == nil {
		return nil, nil
	}

	out := make(entity.WireRecord, len(r))
	var errs []error
	for k, v := range r {
		out[k] = v
	}

	for _, f := range c.manifest.Fields {
		v, present := r[f.Name]
		if !present || v == nil {
			continue
		}
		raw, err := encodeValue(f.Kind, v)
		if err != nil {
			errs = append(errs, c.fieldError(f.Name, v, err))
			continue
		}
		out[f.Name] = raw
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// ToDomainList converts a page of wire records.
func (c *Codec) ToDomainList(page []entity.WireRecord) ([]entity.Record, error) {
	out := make([]entity.Record, 0, len(page))
	for i, w := range page {
		rec, err := c.ToDomain(w)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Decode parses a JSON object and converts it to a domain record.
func (c *Codec) Decode(data []byte) (entity.Record, error) {
	w, err := DecodeWire(data)
	if err != nil {
		return nil, err
	}
	return c.ToDomain(w)
}

// Encode converts a domain record to wire form and marshals it.
func (c *Codec) Encode(r entity.Record) ([]byte, error) {
	w, err := c.ToWire(r)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// DecodeWire unmarshals a JSON object keeping numbers as json.Number so identities and
// amounts keep their exact textual form.
func DecodeWire(data []byte) (entity.WireRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var w entity.WireRecord
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("failed to parse wire record: %w", err)
	}
	return w, nil
}

// DecodeWireList unmarshals a JSON array of objects.
func DecodeWireList(data []byte) ([]entity.WireRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var page []entity.WireRecord
	if err := dec.Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to parse wire records: %w", err)
	}
	return page, nil
}

func (c *Codec) fieldError(field string, value any, err error) error {
	return &entity.FieldError{Entity: c.manifest.Name, Field: field, Value: value, Err: err}
}

func decodeValue(kind schema.Kind, raw any) (any, error) {
	switch kind {
	case schema.KindIdentity:
		return entity.ToID(raw)
	case schema.KindScalar:
		return raw, nil
	case schema.KindBoolean:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("expected boolean, got %T: %w", raw, entity.ErrMalformedValue)
		}
		return b, nil
	case schema.KindInstant:
		return parseTemporal(raw, time.RFC3339Nano)
	case schema.KindDate:
		return parseTemporal(raw, DateLayout)
	case schema.KindDecimal:
		return decodeDecimal(raw)
	case schema.KindRelationship:
		return decodeRef(raw)
	case schema.KindRelationshipList:
		items, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("expected array, got %T: %w", raw, entity.ErrMalformedValue)
		}
		refs := make([]entity.Ref, 0, len(items))
		for _, item := range items {
			ref, err := decodeRef(item)
			if err != nil {
				return nil, err
			}
			refs = append(refs, ref)
		}
		return refs, nil
	default:
		return nil, fmt.Errorf("unsupported kind %q", kind)
	}
}

func encodeValue(kind schema.Kind, v any) (any, error) {
	switch kind {
	case schema.KindIdentity:
		return entity.ToID(v)
	case schema.KindScalar:
		return v, nil
	case schema.KindBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T: %w", v, entity.ErrMalformedValue)
		}
		return b, nil
	case schema.KindInstant:
		t, err := asTime(v)
		if err != nil {
			return nil, err
		}
		return FormatInstant(t), nil
	case schema.KindDate:
		t, err := asTime(v)
		if err != nil {
			return nil, err
		}
		return FormatDate(t), nil
	case schema.KindDecimal:
		d, ok := v.(decimal.Decimal)
		if !ok {
			return nil, fmt.Errorf("expected decimal.Decimal, got %T: %w", v, entity.ErrMalformedValue)
		}
		return json.Number(FormatDecimal(d)), nil
	case schema.KindRelationship:
		switch ref := v.(type) {
		case entity.Ref:
			return encodeRef(ref), nil
		case *entity.Ref:
			if ref == nil {
				return nil, nil
			}
			return encodeRef(*ref), nil
		default:
			return nil, fmt.Errorf("expected entity.Ref, got %T: %w", v, entity.ErrMalformedValue)
		}
	case schema.KindRelationshipList:
		refs, ok := v.([]entity.Ref)
		if !ok {
			return nil, fmt.Errorf("expected []entity.Ref, got %T: %w", v, entity.ErrMalformedValue)
		}
		items := make([]any, len(refs))
		for i, ref := range refs {
			items[i] = encodeRef(ref)
		}
		return items, nil
	default:
		return nil, fmt.Errorf("unsupported kind %q", kind)
	}
}

func parseTemporal(raw any, layout string) (time.Time, error) {
	s, ok := raw.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("expected string, got %T: %w", raw, entity.ErrMalformedTemporalValue)
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", entity.ErrMalformedTemporalValue, err)
	}
	return t, nil
}

func asTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case *time.Time:
		if t != nil {
			return *t, nil
		}
	}
	return time.Time{}, fmt.Errorf("expected time.Time, got %T: %w", v, entity.ErrMalformedValue)
}

func decodeDecimal(raw any) (decimal.Decimal, error) {
	var (
		d   decimal.Decimal
		err error
	)
	switch n := raw.(type) {
	case json.Number:
		d, err = decimal.NewFromString(string(n))
	case float64:
		d = decimal.NewFromFloat(n)
	case int64:
		d = decimal.NewFromInt(n)
	case int:
		d = decimal.NewFromInt(int64(n))
	default:
		return decimal.Decimal{}, fmt.Errorf("expected number, got %T: %w", raw, entity.ErrMalformedValue)
	}
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %v", entity.ErrMalformedValue, err)
	}
	return d, nil
}

func decodeRef(raw any) (entity.Ref, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return entity.Ref{}, fmt.Errorf("expected object, got %T: %w", raw, entity.ErrMalformedValue)
	}
	idRaw, ok := obj[entity.DefaultIDField]
	if !ok || idRaw == nil {
		return entity.Ref{}, fmt.Errorf("relationship without id: %w", entity.ErrMalformedValue)
	}
	id, err := entity.ToID(idRaw)
	if err != nil {
		return entity.Ref{}, err
	}

	ref := entity.Ref{ID: id}
	for k, v := range obj {
		if k == entity.DefaultIDField {
			continue
		}
		if ref.Attrs == nil {
			ref.Attrs = make(map[string]any, len(obj)-1)
		}
		ref.Attrs[k] = v
	}
	return ref, nil
}

func encodeRef(ref entity.Ref) map[string]any {
	obj := make(map[string]any, len(ref.Attrs)+1)
	for k, v := range ref.Attrs {
		obj[k] = v
	}
	obj[entity.DefaultIDField] = ref.ID
	return obj
}

// FormatInstant renders an instant in the fixed wire format.
func FormatInstant(t time.Time) string {
	return t.UTC().Format(InstantLayout)
}

// FormatDate renders a calendar date.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// FormatDecimal keeps the scale the value was parsed with, so "12.50" stays "12.50".
// Exponent notation is normalized: "1e3" is rendered as "1000".
func FormatDecimal(d decimal.Decimal) string {
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp)
	}
	return d.String()
}

// CheckValue reports whether v is an acceptable domain value for the field's kind.
// nil is always accepted.
func CheckValue(f schema.Field, v any) error {
	if v == nil {
		return nil
	}
	_, err := encodeValue(f.Kind, v)
	return err
}
