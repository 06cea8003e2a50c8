package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/n1rna/invadmin/internal/entity"
	"github.com/n1rna/invadmin/internal/schema"
	"github.com/n1rna/invadmin/internal/storage"
)

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := schema.Builtin()
	if err != nil {
		t.Fatalf("Failed to load manifests: %v", err)
	}
	return reg
}

func testProduct() entity.Record {
	return entity.Record{
		"id":          int64(42),
		"name":        "Hex bolt",
		"sku":         "HB-8",
		"salePrice":   decimal.RequireFromString("2.50"),
		"active":      true,
		"brand":       entity.Ref{ID: 7763, Attrs: map[string]any{"name": "Zeta"}},
		"suppliers":   []entity.Ref{{ID: 5, Attrs: map[string]any{"name": "North"}}},
		"createdDate": time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		"description": nil,
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"csv", FormatCSV, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStatusMessages(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinterWithWriter(&buf, FormatTable, false)
	p.Success("saved")
	p.Warning("careful")
	p.Info("note")
	p.Error("failed")

	out := buf.String()
	for _, want := range []string{"✓", "saved", "⚠", "careful", "ℹ", "note", "✗", "failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}

	buf.Reset()
	quiet := NewPrinterWithWriter(&buf, FormatTable, true)
	quiet.Success("hidden")
	quiet.Error("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("Quiet printer should only print errors, got:\n%s", buf.String())
	}
}

func TestPrintRecordTable(t *testing.T) {
	reg := testRegistry(t)
	m, _ := reg.Get("product")

	var buf bytes.Buffer
	p := NewPrinterWithWriter(&buf, FormatTable, false)
	p.SetRegistry(reg)
	if err := p.PrintRecord(m, testProduct()); err != nil {
		t.Fatalf("PrintRecord failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"product #42", "Hex bolt", "2.50", "Zeta", "North", "2024-01-02T03:04:05.000Z", "null", "(absent)"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected table to contain %q, got:\n%s", want, out)
		}
	}

	// fields follow manifest order
	if strings.Index(out, "Hex bolt") > strings.Index(out, "HB-8") {
		t.Error("Expected name before sku")
	}
}

func TestPrintRecordJSON(t *testing.T) {
	reg := testRegistry(t)
	m, _ := reg.Get("product")

	var buf bytes.Buffer
	p := NewPrinterWithWriter(&buf, FormatJSON, false)
	if err := p.PrintRecord(m, testProduct()); err != nil {
		t.Fatalf("PrintRecord failed: %v", err)
	}

	var got map[string]any
	dec := json.NewDecoder(&buf)
	dec.UseNumber()
	if err := dec.Decode(&got); err != nil {
		t.Fatalf("Output is not JSON: %v", err)
	}
	if got["salePrice"] != json.Number("2.50") {
		t.Errorf("Expected salePrice 2.50, got %v", got["salePrice"])
	}
	if got["createdDate"] != "2024-01-02T03:04:05.000Z" {
		t.Errorf("Expected wire instant, got %v", got["createdDate"])
	}
	brand, ok := got["brand"].(map[string]any)
	if !ok || brand["id"] != json.Number("7763") {
		t.Errorf("Expected nested brand reference, got %v", got["brand"])
	}
}

func TestPrintRecordsYAML(t *testing.T) {
	reg := testRegistry(t)
	m, _ := reg.Get("product")

	var buf bytes.Buffer
	p := NewPrinterWithWriter(&buf, FormatYAML, false)
	if err := p.PrintRecords(m, []entity.Record{testProduct()}); err != nil {
		t.Fatalf("PrintRecords failed: %v", err)
	}

	if !strings.Contains(buf.String(), "salePrice: 2.50") {
		t.Errorf("Expected unquoted decimal, got:\n%s", buf.String())
	}

	var got []map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("Output is not YAML: %v", err)
	}
	if len(got) != 1 || got[0]["sku"] != "HB-8" {
		t.Errorf("Unexpected YAML content: %v", got)
	}
}

func TestPrintRecordsTableAndCSV(t *testing.T) {
	reg := testRegistry(t)
	m, _ := reg.Get("product")
	recs := []entity.Record{testProduct(), {"id": int64(43), "name": "Nut", "sku": "N-1"}}

	var buf bytes.Buffer
	p := NewPrinterWithWriter(&buf, FormatTable, false)
	if err := p.PrintRecords(m, recs); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "NAME") || !strings.Contains(out, "Nut") {
		t.Errorf("Unexpected table:\n%s", out)
	}
	if strings.Contains(out, "CREATEDDATE") {
		t.Error("Read-only fields should not be listed")
	}

	buf.Reset()
	p = NewPrinterWithWriter(&buf, FormatCSV, false)
	if err := p.PrintRecords(m, recs); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected header plus 2 rows, got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "id,name,sku") {
		t.Errorf("Unexpected CSV header %q", lines[0])
	}

	buf.Reset()
	p = NewPrinterWithWriter(&buf, FormatTable, false)
	if err := p.PrintRecords(m, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No products found") {
		t.Errorf("Expected empty message, got %q", buf.String())
	}
}

func TestPrintChoices(t *testing.T) {
	reg := testRegistry(t)
	m, _ := reg.Get("product")
	f, _ := m.Field("brand")

	choices := []entity.Ref{
		{ID: 7763, Attrs: map[string]any{"name": "Zeta"}},
		{ID: 1, Attrs: map[string]any{"name": "Acme"}},
	}

	var buf bytes.Buffer
	p := NewPrinterWithWriter(&buf, FormatJSON, false)
	p.SetRegistry(reg)
	if err := p.PrintChoices(f, choices, []entity.Ref{{ID: 7763}}); err != nil {
		t.Fatal(err)
	}

	var got []Choice
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("Output is not JSON: %v", err)
	}
	want := []Choice{{ID: 7763, Label: "Zeta", Selected: true}, {ID: 1, Label: "Acme"}}
	if len(got) != len(want) {
		t.Fatalf("Expected %d choices, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("choice %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestPrintManifest(t *testing.T) {
	reg := testRegistry(t)
	m, _ := reg.Get("bill")

	var buf bytes.Buffer
	p := NewPrinterWithWriter(&buf, FormatTable, false)
	if err := p.PrintManifest(m); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Entity: bill", "/api/bills", "supplier", "now", "read-only"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected manifest table to contain %q, got:\n%s", want, out)
		}
	}

	buf.Reset()
	p = NewPrinterWithWriter(&buf, FormatYAML, false)
	if err := p.PrintManifest(m); err != nil {
		t.Fatal(err)
	}
	decoded, err := schema.Decode(&buf)
	if err != nil {
		t.Fatalf("YAML manifest does not decode: %v", err)
	}
	if decoded.Name != "bill" || len(decoded.Fields) != len(m.Fields) {
		t.Errorf("Unexpected decoded manifest: %s with %d fields", decoded.Name, len(decoded.Fields))
	}
}

func TestPrintDrafts(t *testing.T) {
	id := int64(42)
	summaries := []storage.DraftSummary{
		{ID: "0b7e1c9a-4c1e-4a8b-9d6f-2f0f6f7e1a11", Name: "bolt", Entity: "product", RecordID: &id, UpdatedAt: time.Now()},
		{ID: "1c8f2dab-5d2f-4b9c-8e70-3a1a7a8f2b22", Entity: "brand", UpdatedAt: time.Now()},
	}

	var buf bytes.Buffer
	p := NewPrinterWithWriter(&buf, FormatTable, false)
	if err := p.PrintDrafts(summaries); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"0b7e1c9a", "bolt", "edit", "42", "1c8f2dab", "create"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected drafts table to contain %q, got:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := p.PrintDrafts(nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No drafts found") {
		t.Errorf("Expected empty message, got %q", buf.String())
	}
}
