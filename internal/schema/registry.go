package schema

import (
	"embed"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed manifests/*.yaml
var builtinManifests embed.FS

// Registry holds manifests by name and resolves their inheritance.
type Registry struct {
	declared map[string]*Manifest
	resolved map[string]*Manifest
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		declared: make(map[string]*Manifest),
		resolved: make(map[string]*Manifest),
	}
}

// Builtin returns a resolved registry holding the embedded inventory manifests.
func Builtin() (*Registry, error) {
	return Load()
}

// Load returns a resolved registry of the embedded manifests plus the manifests found in
// dirs. Later files replace earlier manifests of the same name.
func Load(dirs ...string) (*Registry, error) {
	reg := NewRegistry()
	if err := reg.LoadFS(builtinManifests, "manifests"); err != nil {
		return nil, err
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := reg.LoadDir(dir); err != nil {
			return nil, err
		}
	}
	if err := reg.Resolve(); err != nil {
		return nil, err
	}
	return reg, nil
}

// Register adds or replaces declared manifests. Call Resolve afterwards.
func (r *Registry) Register(manifests ...*Manifest) {
	for _, m := range manifests {
		r.declared[m.Name] = m
	}
	r.resolved = make(map[string]*Manifest)
}

// LoadFS registers every .yaml/.yml file found directly under dir.
func (r *Registry) LoadFS(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("failed to read manifest directory %s: %w", dir, err)
	}

	for _, e := range entries {
		if e.IsDir() || !isManifestFile(e.Name()) {
			continue
		}
		f, err := fsys.Open(path.Join(dir, e.Name()))
		if err != nil {
			return fmt.Errorf("failed to open manifest %s: %w", e.Name(), err)
		}
		m, err := Decode(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to parse manifest %s: %w", e.Name(), err)
		}
		r.Register(m)
	}

	return nil
}

// LoadDir registers the manifests stored in a directory on disk.
func (r *Registry) LoadDir(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve manifest directory: %w", err)
	}
	return r.LoadFS(os.DirFS(abs), ".")
}

// Decode reads a single YAML manifest. Unknown keys are rejected.
func Decode(rd io.Reader) (*Manifest, error) {
	dec := yaml.NewDecoder(rd)
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Encode writes a manifest as YAML.
func Encode(w io.Writer, m *Manifest) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return err
	}
	return enc.Close()
}

// Resolve flattens inheritance for every declared manifest and validates the result.
func (r *Registry) Resolve() error {
	resolved := make(map[string]*Manifest, len(r.declared))
	for _, name := range r.declaredNames() {
		m, err := r.resolveManifest(r.declared[name], make(map[string]bool))
		if err != nil {
			return fmt.Errorf("failed to resolve manifest inheritance: %w", err)
		}
		if err := ValidateManifest(m); err != nil {
			return err
		}
		resolved[name] = m
	}

	for _, m := range resolved {
		for _, f := range m.Relationships() {
			target, ok := resolved[f.Target]
			if !ok {
				return fmt.Errorf("manifest %s: field %s targets unknown entity %s", m.Name, f.Name, f.Target)
			}
			if target.Abstract {
				return fmt.Errorf("manifest %s: field %s targets abstract entity %s", m.Name, f.Name, f.Target)
			}
		}
	}

	r.resolved = resolved
	return nil
}

// resolveManifest resolves a manifest with all its inherited fields. Inherited fields come
// first; redeclared fields override the inherited definition in place.
func (r *Registry) resolveManifest(m *Manifest, visited map[string]bool) (*Manifest, error) {
	if visited[m.Name] {
		return nil, fmt.Errorf("circular dependency detected in manifest %s", m.Name)
	}
	visited[m.Name] = true

	out := &Manifest{
		Name:     m.Name,
		Resource: m.Resource,
		Display:  m.Display,
		Abstract: m.Abstract,
		Extends:  m.Extends,
	}

	for _, parentName := range m.Extends {
		parent, ok := r.declared[parentName]
		if !ok {
			return nil, fmt.Errorf("manifest %s extends unknown manifest %s", m.Name, parentName)
		}
		resolvedParent, err := r.resolveManifest(parent, visited)
		if err != nil {
			return nil, err
		}
		out.Fields = mergeFields(out.Fields, resolvedParent.Fields)
		if out.Display == "" {
			out.Display = resolvedParent.Display
		}
	}
	out.Fields = mergeFields(out.Fields, m.Fields)

	// siblings may share ancestors, only the current path matters for cycles
	delete(visited, m.Name)

	out.reindex()
	return out, nil
}

func mergeFields(base, overlay []Field) []Field {
	out := make([]Field, len(base), len(base)+len(overlay))
	copy(out, base)
	pos := make(map[string]int, len(out))
	for i, f := range out {
		pos[f.Name] = i
	}
	for _, f := range overlay {
		if i, ok := pos[f.Name]; ok {
			out[i] = f
			continue
		}
		pos[f.Name] = len(out)
		out = append(out, f)
	}
	return out
}

// Get returns the resolved manifest for an entity name. Abstract manifests are not returned.
func (r *Registry) Get(name string) (*Manifest, error) {
	m, ok := r.resolved[name]
	if !ok || m.Abstract {
		return nil, fmt.Errorf("entity '%s' not found", name)
	}
	return m, nil
}

// List returns all concrete manifests sorted by name.
func (r *Registry) List() []*Manifest {
	out := make([]*Manifest, 0, len(r.resolved))
	for _, m := range r.resolved {
		if !m.Abstract {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) declaredNames() []string {
	names := make([]string, 0, len(r.declared))
	for name := range r.declared {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func isManifestFile(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}
