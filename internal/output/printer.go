// Package output provides formatted terminal output for entity records, manifests and drafts.
// This centralizes all printing and formatting logic away from command modules.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/n1rna/invadmin/internal/codec"
	"github.com/n1rna/invadmin/internal/entity"
	"github.com/n1rna/invadmin/internal/schema"
	"github.com/n1rna/invadmin/internal/storage"
)

// Format represents different output formats
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatCSV   Format = "csv"
)

// ParseFormat validates a --format value
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatTable, FormatJSON, FormatYAML, FormatCSV:
		return f, nil
	}
	return "", fmt.Errorf("unsupported format: %s (use table, json, yaml or csv)", s)
}

// Printer handles formatted output to the terminal
type Printer struct {
	writer   io.Writer
	status   io.Writer // status lines; defaults to writer
	format   Format
	quiet    bool
	registry *schema.Registry
}

// NewPrinterWithWriter creates a new printer with a custom writer
func NewPrinterWithWriter(writer io.Writer, format Format, quiet bool) *Printer {
	return &Printer{
		writer: writer,
		status: writer,
		format: format,
		quiet:  quiet,
	}
}

// SetStatusWriter redirects status lines to w.
func (p *Printer) SetStatusWriter(w io.Writer) {
	p.status = w
}

// SetRegistry lets the printer label relationship references with the display field of
// their target manifest.
func (p *Printer) SetRegistry(reg *schema.Registry) {
	p.registry = reg
}

// Format returns the output format
func (p *Printer) Format() Format {
	return p.format
}

// Success prints a success message
func (p *Printer) Success(message string) {
	if !p.quiet {
		fmt.Fprintf(p.status, "%s %s\n", successStyle.Render("✓"), message)
	}
}

// Error prints an error message
func (p *Printer) Error(message string) {
	fmt.Fprintf(p.status, "%s %s\n", errorStyle.Render("✗"), message)
}

// Warning prints a warning message
func (p *Printer) Warning(message string) {
	if !p.quiet {
		fmt.Fprintf(p.status, "%s %s\n", warningStyle.Render("⚠"), message)
	}
}

// Info prints an informational message
func (p *Printer) Info(message string) {
	if !p.quiet {
		fmt.Fprintf(p.status, "%s %s\n", infoStyle.Render("ℹ"), message)
	}
}

// PrintRecord prints a single entity in the specified format
func (p *Printer) PrintRecord(m *schema.Manifest, rec entity.Record) error {
	switch p.format {
	case FormatTable:
		return p.printRecordTable(m, rec)
	case FormatJSON, FormatYAML:
		wire, err := codec.New(m).ToWire(rec)
		if err != nil {
			return err
		}
		return p.printStructured(wire)
	case FormatCSV:
		return p.printRecordsCSV(m, []entity.Record{rec})
	default:
		return fmt.Errorf("unsupported format: %s", p.format)
	}
}

// PrintRecords prints a page of entities
func (p *Printer) PrintRecords(m *schema.Manifest, recs []entity.Record) error {
	switch p.format {
	case FormatTable:
		return p.printRecordsTable(m, recs)
	case FormatJSON, FormatYAML:
		c := codec.New(m)
		wire := make([]entity.WireRecord, 0, len(recs))
		for _, rec := range recs {
			w, err := c.ToWire(rec)
			if err != nil {
				return err
			}
			wire = append(wire, w)
		}
		return p.printStructured(wire)
	case FormatCSV:
		return p.printRecordsCSV(m, recs)
	default:
		return fmt.Errorf("unsupported format: %s", p.format)
	}
}

// Choice is one entry of a printed picker collection.
type Choice struct {
	ID       int64  `json:"id" yaml:"id"`
	Label    string `json:"label" yaml:"label"`
	Selected bool   `json:"selected" yaml:"selected"`
}

// PrintChoices prints a reconciled picker collection, marking the selected references
func (p *Printer) PrintChoices(f schema.Field, choices, selected []entity.Ref) error {
	chosen := make(map[int64]bool, len(selected))
	for _, ref := range selected {
		chosen[ref.ID] = true
	}
	label := p.labeler(f)

	items := make([]Choice, len(choices))
	for i, ref := range choices {
		items[i] = Choice{ID: ref.ID, Label: label(ref), Selected: chosen[ref.ID]}
	}

	switch p.format {
	case FormatTable:
		if len(items) == 0 {
			fmt.Fprintf(p.writer, "No choices for %s\n", f.Name)
			return nil
		}
		w := tabwriter.NewWriter(p.writer, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, " \tID\tLABEL\n")
		fmt.Fprintf(w, " \t--\t-----\n")
		for _, item := range items {
			mark := " "
			if item.Selected {
				mark = "*"
			}
			fmt.Fprintf(w, "%s\t%d\t%s\n", mark, item.ID, item.Label)
		}
		return w.Flush()
	case FormatJSON, FormatYAML:
		return p.printStructured(items)
	default:
		return fmt.Errorf("unsupported format: %s", p.format)
	}
}

// PrintManifest prints a manifest in the specified format
func (p *Printer) PrintManifest(m *schema.Manifest) error {
	switch p.format {
	case FormatTable:
		return p.printManifestTable(m)
	case FormatJSON:
		return p.printJSON(m)
	case FormatYAML:
		return schema.Encode(p.writer, m)
	default:
		return fmt.Errorf("unsupported format: %s", p.format)
	}
}

// ManifestSummary is the list view of a manifest.
type ManifestSummary struct {
	Name     string `json:"name" yaml:"name"`
	Resource string `json:"resource" yaml:"resource"`
	Fields   int    `json:"fields" yaml:"fields"`
}

// PrintManifestList prints the registered entity types
func (p *Printer) PrintManifestList(manifests []*schema.Manifest) error {
	summaries := make([]ManifestSummary, len(manifests))
	for i, m := range manifests {
		summaries[i] = ManifestSummary{Name: m.Name, Resource: m.CollectionPath(), Fields: len(m.Fields)}
	}

	switch p.format {
	case FormatTable:
		if len(summaries) == 0 {
			fmt.Fprintf(p.writer, "No entities found\n")
			return nil
		}
		w := tabwriter.NewWriter(p.writer, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "ENTITY\tRESOURCE\tFIELDS\n")
		fmt.Fprintf(w, "------\t--------\t------\n")
		for _, s := range summaries {
			fmt.Fprintf(w, "%s\t/api/%s\t%d\n", s.Name, s.Resource, s.Fields)
		}
		return w.Flush()
	case FormatJSON, FormatYAML:
		return p.printStructured(summaries)
	default:
		return fmt.Errorf("unsupported format: %s", p.format)
	}
}

// PrintDrafts prints a list of draft summaries
func (p *Printer) PrintDrafts(summaries []storage.DraftSummary) error {
	switch p.format {
	case FormatTable:
		if len(summaries) == 0 {
			fmt.Fprintf(p.writer, "No drafts found\n")
			return nil
		}
		w := tabwriter.NewWriter(p.writer, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "ID\tNAME\tENTITY\tMODE\tRECORD\tUPDATED\n")
		fmt.Fprintf(w, "--\t----\t------\t----\t------\t-------\n")
		for _, s := range summaries {
			record := "-"
			if s.RecordID != nil {
				record = strconv.FormatInt(*s.RecordID, 10)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				shortID(s.ID),
				s.Name,
				s.Entity,
				s.Mode(),
				record,
				s.UpdatedAt.Local().Format("2006-01-02 15:04"),
			)
		}
		return w.Flush()
	case FormatJSON, FormatYAML:
		return p.printStructured(summaries)
	default:
		return fmt.Errorf("unsupported format: %s", p.format)
	}
}

// PrintDraft prints a draft header followed by its current values
func (p *Printer) PrintDraft(d *storage.Draft, m *schema.Manifest, rec entity.Record) error {
	switch p.format {
	case FormatTable:
		fmt.Fprintf(p.writer, "%s\n", titleStyle.Render(fmt.Sprintf("Draft: %s", d.ID)))
		if d.Name != "" {
			fmt.Fprintf(p.writer, "Name: %s\n", d.Name)
		}
		fmt.Fprintf(p.writer, "Entity: %s\n", d.Entity)
		fmt.Fprintf(p.writer, "Mode: %s\n", d.Mode())
		fmt.Fprintf(p.writer, "Session: %s\n", d.Session)
		fmt.Fprintf(p.writer, "Initialized: %s\n", d.InitializedAt.Format(time.RFC3339))
		fmt.Fprintf(p.writer, "Updated: %s\n\n", d.UpdatedAt.Format(time.RFC3339))
		return p.printRecordTable(m, rec)
	case FormatJSON, FormatYAML:
		return p.printStructured(d)
	default:
		return fmt.Errorf("unsupported format: %s", p.format)
	}
}

// printRecordTable prints one entity as FIELD/VALUE rows in manifest order
func (p *Printer) printRecordTable(m *schema.Manifest, rec entity.Record) error {
	fmt.Fprintf(p.writer, "%s\n", titleStyle.Render(recordTitle(m, rec)))

	w := tabwriter.NewWriter(p.writer, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "FIELD\tKIND\tVALUE\n")
	fmt.Fprintf(w, "-----\t----\t-----\n")
	for _, f := range m.Fields {
		v, present := rec[f.Name]
		value := codec.FormatText(f, v, p.labeler(f))
		switch {
		case !present:
			value = mutedStyle.Render("(absent)")
		case v == nil:
			value = mutedStyle.Render(codec.NullText)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", f.DisplayName(), f.Kind, truncate(value, 80))
	}
	return w.Flush()
}

// printRecordsTable prints a page of entities, one row each
func (p *Printer) printRecordsTable(m *schema.Manifest, recs []entity.Record) error {
	if len(recs) == 0 {
		fmt.Fprintf(p.writer, "No %s found\n", m.CollectionPath())
		return nil
	}

	fields := listFields(m)
	w := tabwriter.NewWriter(p.writer, 0, 0, 2, ' ', 0)

	header := make([]string, len(fields))
	rule := make([]string, len(fields))
	for i, f := range fields {
		header[i] = strings.ToUpper(f.DisplayName())
		rule[i] = strings.Repeat("-", len(header[i]))
	}
	fmt.Fprintln(w, strings.Join(header, "\t"))
	fmt.Fprintln(w, strings.Join(rule, "\t"))

	for _, rec := range recs {
		fmt.Fprintln(w, strings.Join(p.row(fields, rec, 40), "\t"))
	}
	return w.Flush()
}

// printRecordsCSV prints entities as CSV with the list columns
func (p *Printer) printRecordsCSV(m *schema.Manifest, recs []entity.Record) error {
	fields := listFields(m)
	w := csv.NewWriter(p.writer)

	header := make([]string, len(fields))
	for i, f := range fields {
		header[i] = f.Name
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, rec := range recs {
		if err := w.Write(p.row(fields, rec, 0)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// printManifestTable prints a manifest in table format
func (p *Printer) printManifestTable(m *schema.Manifest) error {
	fmt.Fprintf(p.writer, "%s\n", titleStyle.Render(fmt.Sprintf("Entity: %s", m.Name)))
	fmt.Fprintf(p.writer, "Resource: /api/%s\n", m.CollectionPath())
	fmt.Fprintf(p.writer, "Display: %s\n", m.DisplayField())
	if len(m.Extends) > 0 {
		fmt.Fprintf(p.writer, "Extends: %s\n", strings.Join(m.Extends, ", "))
	}

	fmt.Fprintf(p.writer, "\nFields:\n")
	w := tabwriter.NewWriter(p.writer, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "  NAME\tKIND\tREQUIRED\tDEFAULT\tTARGET\n")
	fmt.Fprintf(w, "  ----\t----\t--------\t-------\t------\n")

	for _, f := range m.Fields {
		required := "No"
		if f.Required {
			required = "Yes"
		}
		def := ""
		switch {
		case f.DefaultNow:
			def = "now"
		case f.Default != nil:
			def = *f.Default
		}
		kind := string(f.Kind)
		if f.ReadOnly {
			kind += " (read-only)"
		}

		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\n", f.Name, kind, required, def, f.Target)
	}

	return w.Flush()
}

func (p *Printer) row(fields []schema.Field, rec entity.Record, width int) []string {
	cells := make([]string, len(fields))
	for i, f := range fields {
		cells[i] = codec.FormatText(f, rec[f.Name], p.labeler(f))
		if width > 0 {
			cells[i] = truncate(cells[i], width)
		}
	}
	return cells
}

// labeler names references of f by the display field of its target
func (p *Printer) labeler(f schema.Field) func(entity.Ref) string {
	display := "name"
	if p.registry != nil && f.Target != "" {
		if target, err := p.registry.Get(f.Target); err == nil {
			display = target.DisplayField()
		}
	}
	return func(r entity.Ref) string {
		return r.Label(display)
	}
}

// printStructured prints JSON or YAML depending on the format
func (p *Printer) printStructured(obj interface{}) error {
	if p.format == FormatYAML {
		return p.printYAML(obj)
	}
	return p.printJSON(obj)
}

// printJSON prints any object as JSON
func (p *Printer) printJSON(obj interface{}) error {
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(obj)
}

// printYAML prints any object as YAML. Wire numbers keep their exact text.
func (p *Printer) printYAML(obj interface{}) error {
	encoder := yaml.NewEncoder(p.writer)
	encoder.SetIndent(2)
	if err := encoder.Encode(yamlValue(obj)); err != nil {
		return err
	}
	return encoder.Close()
}

// yamlNumber renders a json.Number as an untagged YAML number instead of a string
type yamlNumber json.Number

func (n yamlNumber) MarshalYAML() (interface{}, error) {
	tag := "!!float"
	if _, err := json.Number(n).Int64(); err == nil {
		tag = "!!int"
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: string(n)}, nil
}

func yamlValue(v interface{}) interface{} {
	switch tv := v.(type) {
	case json.Number:
		return yamlNumber(tv)
	case entity.WireRecord:
		return yamlValue(map[string]any(tv))
	case []entity.WireRecord:
		out := make([]interface{}, len(tv))
		for i, item := range tv {
			out[i] = yamlValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]interface{}, len(tv))
		for k, item := range tv {
			out[k] = yamlValue(item)
		}
		return out
	case []any:
		out := make([]interface{}, len(tv))
		for i, item := range tv {
			out[i] = yamlValue(item)
		}
		return out
	case *storage.Draft:
		// re-shape through JSON so the draft keeps its JSON field names
		raw, err := json.Marshal(tv)
		if err != nil {
			return tv
		}
		dec := json.NewDecoder(strings.NewReader(string(raw)))
		dec.UseNumber()
		var m map[string]any
		if err := dec.Decode(&m); err != nil {
			return tv
		}
		return yamlValue(m)
	}
	return v
}

// listFields picks the columns of a list view: everything except read-only audit fields
// and relationship lists
func listFields(m *schema.Manifest) []schema.Field {
	var fields []schema.Field
	for _, f := range m.Fields {
		if f.ReadOnly || f.Kind == schema.KindRelationshipList {
			continue
		}
		fields = append(fields, f)
	}
	return fields
}

func recordTitle(m *schema.Manifest, rec entity.Record) string {
	id, ok := rec.ID(m.IDField())
	if !ok {
		return fmt.Sprintf("%s (new)", m.Name)
	}
	return fmt.Sprintf("%s #%d", m.Name, id)
}

func truncate(s string, width int) string {
	if len(s) <= width {
		return s
	}
	return s[:width-3] + "..."
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
