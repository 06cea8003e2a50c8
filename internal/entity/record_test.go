package entity

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestToID(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    int64
		wantErr bool
	}{
		{"int64", int64(42), 42, false},
		{"int", 7, 7, false},
		{"json number", json.Number("7763"), 7763, false},
		{"integral float", float64(12), 12, false},
		{"numeric string", "99", 0, true},
		{"fractional float", 1.5, 0, true},
		{"decimal json number", json.Number("1.5"), 0, true},
		{"word", "abc", 0, true},
		{"bool", true, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToID(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedValue) {
					t.Errorf("ToID(%v) error = %v, want ErrMalformedValue", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ToID(%v) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ToID(%v) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		text    string
		want    int64
		wantErr bool
	}{
		{"42", 42, false},
		{"-1", -1, false},
		{"4.2", 0, true},
		{"", 0, true},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := ParseID(tt.text)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedValue) {
					t.Errorf("ParseID(%q) error = %v, want ErrMalformedValue", tt.text, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseID(%q) = %d, %v, want %d", tt.text, got, err, tt.want)
			}
		})
	}
}

func TestIsNew(t *testing.T) {
	if !IsNew(Record{"id": nil}, "id") {
		t.Error("Record with null id should be new")
	}
	if !IsNew(Record{"name": "x"}, "id") {
		t.Error("Record without id should be new")
	}
	if IsNew(Record{"id": 42}, "id") {
		t.Error("Record with id 42 should not be new")
	}
}

func TestCloneCopiesRefs(t *testing.T) {
	orig := Record{
		"brand":     Ref{ID: 1, Attrs: map[string]any{"name": "Acme"}},
		"suppliers": []Ref{{ID: 2}},
		"name":      "Bolt",
	}
	clone := orig.Clone()

	clone["brand"].(Ref).Attrs["name"] = "Changed"
	clone["suppliers"].([]Ref)[0] = Ref{ID: 3}
	clone["name"] = "Nut"

	if orig["brand"].(Ref).Attrs["name"] != "Acme" {
		t.Error("Clone shares ref attributes with the original")
	}
	if orig["suppliers"].([]Ref)[0].ID != 2 {
		t.Error("Clone shares the ref slice with the original")
	}
	if orig["name"] != "Bolt" {
		t.Error("Clone shares scalar values with the original")
	}
	if Record(nil).Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}

func TestRefFromRecord(t *testing.T) {
	rec := Record{"id": json.Number("5"), "name": "North", "phone": "123"}

	ref, ok := RefFromRecord(rec, "id", "name", "id")
	if !ok {
		t.Fatal("Expected a reference")
	}
	if ref.ID != 5 {
		t.Errorf("Expected id 5, got %d", ref.ID)
	}
	if len(ref.Attrs) != 1 || ref.Attrs["name"] != "North" {
		t.Errorf("Expected only the name attribute, got %v", ref.Attrs)
	}
	if got := ref.Label("name"); got != "North" {
		t.Errorf("Label() = %q, want North", got)
	}
	if got := NewRef(9).Label("name"); got != "#9" {
		t.Errorf("Label() without attrs = %q, want #9", got)
	}

	if _, ok := RefFromRecord(Record{"name": "x"}, "id"); ok {
		t.Error("Expected no reference for a record without identity")
	}
}

func TestFieldError(t *testing.T) {
	err := error(&FieldError{Entity: "bill", Field: "date", Value: "nope", Err: ErrMalformedTemporalValue})

	if !errors.Is(err, ErrMalformedTemporalValue) {
		t.Error("FieldError should unwrap to its cause")
	}
	var fe *FieldError
	if !errors.As(err, &fe) || fe.Field != "date" {
		t.Error("errors.As should find the FieldError")
	}
	if msg := err.Error(); !strings.Contains(msg, "bill.date") || !strings.Contains(msg, "nope") {
		t.Errorf("Unexpected message %q", msg)
	}
}
