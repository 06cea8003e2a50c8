// Package entitysync drives the load, edit and save cycle of an entity screen: it fetches
// the entity and its picker pages through the transport, converts them with the codec,
// initializes form state and keeps the pickers reconciled with the current values.
package entitysync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/n1rna/invadmin/internal/api"
	"github.com/n1rna/invadmin/internal/codec"
	"github.com/n1rna/invadmin/internal/entity"
	"github.com/n1rna/invadmin/internal/form"
	"github.com/n1rna/invadmin/internal/logger"
	"github.com/n1rna/invadmin/internal/picker"
	"github.com/n1rna/invadmin/internal/schema"
)

// DefaultPageSize is the number of choices fetched per relationship picker.
const DefaultPageSize = 20

// Screen is everything an entity screen needs after a load.
type Screen struct {
	Manifest *schema.Manifest
	State    *form.State
	Choices  map[string][]entity.Ref
}

// Service orchestrates the codec, form manager and picker reconciliation over a transport.
type Service struct {
	registry  *schema.Registry
	transport api.Transport
	log       *logger.Logger
	pageSize  int
	clock     func() time.Time

	mu       sync.Mutex
	managers map[string]*form.Manager
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Service) {
		s.log = l
	}
}

// WithPageSize sets how many choices are fetched per picker.
func WithPageSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

// WithClock overrides the clock handed to form managers.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.clock = now
	}
}

// NewService creates a service over a resolved registry.
func NewService(registry *schema.Registry, transport api.Transport, opts ...Option) *Service {
	s := &Service{
		registry:  registry,
		transport: transport,
		log:       logger.GetLogger().Named("sync"),
		pageSize:  DefaultPageSize,
		clock:     time.Now,
		managers:  make(map[string]*form.Manager),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the manifest registry.
func (s *Service) Registry() *schema.Registry {
	return s.registry
}

// Manager returns the form manager of an entity type, creating it on first use.
func (s *Service) Manager(name string) (*form.Manager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.managers[name]; ok {
		return m, nil
	}
	manifest, err := s.registry.Get(name)
	if err != nil {
		return nil, err
	}
	m, err := form.NewManager(manifest, form.WithClock(s.clock))
	if err != nil {
		return nil, err
	}
	s.managers[name] = m
	return m, nil
}

// Codec returns the codec of an entity type.
func (s *Service) Codec(name string) (*codec.Codec, error) {
	manifest, err := s.registry.Get(name)
	if err != nil {
		return nil, err
	}
	return codec.New(manifest), nil
}

// OpenCreate prepares a create screen. seed may carry prefilled values; it is applied over
// the defaults.
func (s *Service) OpenCreate(ctx context.Context, name string, seed entity.Record) (*Screen, error) {
	mgr, err := s.Manager(name)
	if err != nil {
		return nil, err
	}
	manifest := mgr.Manifest()

	pages, err := s.loadPages(ctx, manifest)
	if err != nil {
		return nil, err
	}

	state := mgr.Initialize(seed)
	return &Screen{
		Manifest: manifest,
		State:    state,
		Choices:  picker.Reconcile(manifest, pages, mgr.Value(state)),
	}, nil
}

// OpenEdit loads an entity and its picker pages concurrently and prepares an edit screen.
// Transport failures are returned unchanged and no form state is built.
func (s *Service) OpenEdit(ctx context.Context, name string, id int64) (*Screen, error) {
	mgr, err := s.Manager(name)
	if err != nil {
		return nil, err
	}
	manifest := mgr.Manifest()

	var (
		wire  entity.WireRecord
		pages map[string][]entity.Ref
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		wire, err = s.transport.Find(gctx, manifest.CollectionPath(), id)
		return err
	})
	g.Go(func() error {
		var err error
		pages, err = s.loadPages(gctx, manifest)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rec, err := codec.New(manifest).ToDomain(wire)
	if err != nil {
		return nil, fmt.Errorf("failed to convert %s %d: %w", name, id, err)
	}

	state := mgr.Initialize(rec)
	s.log.Debug("opened %s %d for edit (session %s)", name, id, state.Session())

	return &Screen{
		Manifest: manifest,
		State:    state,
		Choices:  picker.Reconcile(manifest, pages, mgr.Value(state)),
	}, nil
}

// Resume rebuilds form state from a stored wire value without applying defaults.
func (s *Service) Resume(name string, session uuid.UUID, wire entity.WireRecord, initializedAt time.Time) (*form.State, error) {
	mgr, err := s.Manager(name)
	if err != nil {
		return nil, err
	}
	rec, err := codec.New(mgr.Manifest()).ToDomain(wire)
	if err != nil {
		return nil, err
	}
	return mgr.Restore(session, rec, initializedAt), nil
}

// Wire returns the current form value in wire form.
func (s *Service) Wire(state *form.State) (entity.WireRecord, error) {
	mgr, err := s.Manager(state.Manifest().Name)
	if err != nil {
		return nil, err
	}
	return codec.New(state.Manifest()).ToWire(mgr.Value(state))
}

// Pickers fetches the first page of every relationship picker of the state's entity and
// reconciles the current values into them.
func (s *Service) Pickers(ctx context.Context, state *form.State) (map[string][]entity.Ref, error) {
	manifest := state.Manifest()
	pages, err := s.loadPages(ctx, manifest)
	if err != nil {
		return nil, err
	}
	mgr, err := s.Manager(manifest.Name)
	if err != nil {
		return nil, err
	}
	return picker.Reconcile(manifest, pages, mgr.Value(state)), nil
}

// Choices fetches one page of candidates for a single relationship field and reconciles
// the field's current value into it.
func (s *Service) Choices(ctx context.Context, state *form.State, field string, params api.QueryParams) ([]entity.Ref, error) {
	manifest := state.Manifest()
	f, ok := manifest.Field(field)
	if !ok {
		return nil, fmt.Errorf("%w: %s", form.ErrUnknownField, field)
	}
	if !f.Kind.IsRelationship() {
		return nil, fmt.Errorf("field %s is not a relationship", field)
	}

	page, err := s.loadPage(ctx, f, params)
	if err != nil {
		return nil, err
	}
	current, _ := state.Get(field)
	return picker.Refs().Merge(page, picker.Selected(f, entity.Record{field: current})...), nil
}

// Save persists the state, routing by identity: a state without identity is created, one
// with identity is updated. patch sends a partial update instead of a full one.
func (s *Service) Save(ctx context.Context, state *form.State, patch bool) (entity.Record, error) {
	if _, ok := state.ID(); ok {
		return s.Update(ctx, state, patch)
	}
	return s.Create(ctx, state)
}

// Create posts the state as a new entity. The state must not carry an identity.
func (s *Service) Create(ctx context.Context, state *form.State) (entity.Record, error) {
	manifest := state.Manifest()
	if id, ok := state.ID(); ok {
		return nil, &entity.FieldError{Entity: manifest.Name, Field: manifest.IDField(), Value: id, Err: entity.ErrIdentityAssigned}
	}

	body, err := s.prepare(state)
	if err != nil {
		return nil, err
	}
	resp, err := s.transport.Create(ctx, manifest.CollectionPath(), body)
	if err != nil {
		return nil, err
	}
	return s.settle(state, resp)
}

// Update sends the state as an update of the existing entity. The state must carry an identity.
func (s *Service) Update(ctx context.Context, state *form.State, patch bool) (entity.Record, error) {
	manifest := state.Manifest()
	id, ok := state.ID()
	if !ok {
		return nil, &entity.FieldError{Entity: manifest.Name, Field: manifest.IDField(), Err: entity.ErrMissingIdentity}
	}

	body, err := s.prepare(state)
	if err != nil {
		return nil, err
	}

	var resp entity.WireRecord
	if patch {
		resp, err = s.transport.PartialUpdate(ctx, manifest.CollectionPath(), id, body)
	} else {
		resp, err = s.transport.Update(ctx, manifest.CollectionPath(), id, body)
	}
	if err != nil {
		return nil, err
	}
	return s.settle(state, resp)
}

// Delete removes an entity by identity.
func (s *Service) Delete(ctx context.Context, name string, id int64) error {
	manifest, err := s.registry.Get(name)
	if err != nil {
		return err
	}
	return s.transport.Delete(ctx, manifest.CollectionPath(), id)
}

// Get fetches and converts a single entity.
func (s *Service) Get(ctx context.Context, name string, id int64) (entity.Record, error) {
	manifest, err := s.registry.Get(name)
	if err != nil {
		return nil, err
	}
	wire, err := s.transport.Find(ctx, manifest.CollectionPath(), id)
	if err != nil {
		return nil, err
	}
	return codec.New(manifest).ToDomain(wire)
}

// List fetches and converts one page of entities.
func (s *Service) List(ctx context.Context, name string, params api.QueryParams) ([]entity.Record, error) {
	manifest, err := s.registry.Get(name)
	if err != nil {
		return nil, err
	}
	page, err := s.transport.Query(ctx, manifest.CollectionPath(), params)
	if err != nil {
		return nil, err
	}
	return codec.New(manifest).ToDomainList(page)
}

func (s *Service) prepare(state *form.State) (entity.WireRecord, error) {
	if err := state.Validate(); err != nil {
		return nil, err
	}
	return s.Wire(state)
}

// settle converts the saved entity and re-seeds the state with it, so a created entity
// continues in edit mode.
func (s *Service) settle(state *form.State, resp entity.WireRecord) (entity.Record, error) {
	manifest := state.Manifest()
	if resp == nil {
		mgr, err := s.Manager(manifest.Name)
		if err != nil {
			return nil, err
		}
		return mgr.Value(state), nil
	}

	saved, err := codec.New(manifest).ToDomain(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to convert saved %s: %w", manifest.Name, err)
	}

	mgr, err := s.Manager(manifest.Name)
	if err != nil {
		return nil, err
	}
	mgr.Reset(state, saved)

	id, _ := saved.ID(manifest.IDField())
	s.log.Info("saved %s %d", manifest.Name, id)
	return saved, nil
}

// loadPages fetches the first page of every relationship target concurrently, keyed by
// field name.
func (s *Service) loadPages(ctx context.Context, manifest *schema.Manifest) (map[string][]entity.Ref, error) {
	fields := manifest.Relationships()
	results := make([][]entity.Ref, len(fields))

	g, gctx := errgroup.WithContext(ctx)
	for i, f := range fields {
		g.Go(func() error {
			page, err := s.loadPage(gctx, f, api.QueryParams{Size: s.pageSize})
			if err != nil {
				return err
			}
			results[i] = page
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pages := make(map[string][]entity.Ref, len(fields))
	for i, f := range fields {
		pages[f.Name] = results[i]
	}
	return pages, nil
}

func (s *Service) loadPage(ctx context.Context, f schema.Field, params api.QueryParams) ([]entity.Ref, error) {
	target, err := s.registry.Get(f.Target)
	if err != nil {
		return nil, err
	}
	if params.Size == 0 {
		params.Size = s.pageSize
	}

	records, err := s.transport.Query(ctx, target.CollectionPath(), params)
	if err != nil {
		return nil, err
	}

	refs := make([]entity.Ref, 0, len(records))
	for _, w := range records {
		ref, ok := entity.RefFromRecord(entity.Record(w), target.IDField(), target.DisplayField())
		if !ok {
			return nil, &entity.FieldError{Entity: target.Name, Field: target.IDField(), Value: w[target.IDField()], Err: entity.ErrMalformedValue}
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// IsNotFound reports whether err is a missing-entity transport error.
func IsNotFound(err error) bool {
	return errors.Is(err, api.ErrNotFound)
}
