package codec

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/n1rna/invadmin/internal/entity"
	"github.com/n1rna/invadmin/internal/schema"
)

// NullText is the literal accepted by ParseText to clear a field.
const NullText = "null"

// ParseText parses user input (CLI flags, manifest defaults) into the domain value for the
// field's kind. "null" yields nil for every kind; an empty string yields nil for every kind
// except scalars.
func ParseText(f schema.Field, text string) (any, error) {
	text = strings.TrimSpace(text)
	if text == NullText {
		return nil, nil
	}
	if text == "" && f.Kind != schema.KindScalar && f.Kind != schema.KindRelationshipList {
		return nil, nil
	}

	switch f.Kind {
	case schema.KindIdentity:
		return entity.ParseID(text)
	case schema.KindScalar:
		return text, nil
	case schema.KindBoolean:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return nil, fmt.Errorf("%q is not a boolean: %w", text, entity.ErrMalformedValue)
		}
		return b, nil
	case schema.KindInstant:
		t, err := time.Parse(time.RFC3339Nano, text)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", entity.ErrMalformedTemporalValue, err)
		}
		return t, nil
	case schema.KindDate:
		t, err := time.Parse(DateLayout, text)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", entity.ErrMalformedTemporalValue, err)
		}
		return t, nil
	case schema.KindDecimal:
		d, err := decimal.NewFromString(text)
		if err != nil {
			return nil, fmt.Errorf("%q is not a decimal: %w", text, entity.ErrMalformedValue)
		}
		return d, nil
	case schema.KindRelationship:
		id, err := entity.ParseID(text)
		if err != nil {
			return nil, err
		}
		return entity.NewRef(id), nil
	case schema.KindRelationshipList:
		refs := []entity.Ref{}
		for _, part := range strings.Split(text, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := entity.ParseID(part)
			if err != nil {
				return nil, err
			}
			refs = append(refs, entity.NewRef(id))
		}
		return refs, nil
	default:
		return nil, fmt.Errorf("unsupported kind %q", f.Kind)
	}
}

// FormatText renders a domain value for display. label is used to name relationship
// references; nil falls back to "#<id>".
func FormatText(f schema.Field, v any, label func(entity.Ref) string) string {
	if v == nil {
		return ""
	}
	if label == nil {
		label = func(r entity.Ref) string { return r.Label() }
	}

	switch f.Kind {
	case schema.KindInstant:
		if t, err := asTime(v); err == nil {
			return FormatInstant(t)
		}
	case schema.KindDate:
		if t, err := asTime(v); err == nil {
			return FormatDate(t)
		}
	case schema.KindDecimal:
		if d, ok := v.(decimal.Decimal); ok {
			return FormatDecimal(d)
		}
	case schema.KindRelationship:
		if ref, ok := v.(entity.Ref); ok {
			return label(ref)
		}
	case schema.KindRelationshipList:
		if refs, ok := v.([]entity.Ref); ok {
			parts := make([]string, len(refs))
			for i, ref := range refs {
				parts[i] = label(ref)
			}
			return strings.Join(parts, ", ")
		}
	}
	return fmt.Sprint(v)
}
