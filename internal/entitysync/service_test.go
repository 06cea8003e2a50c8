package entitysync

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/n1rna/invadmin/internal/api"
	"github.com/n1rna/invadmin/internal/apitest"
	"github.com/n1rna/invadmin/internal/entity"
	"github.com/n1rna/invadmin/internal/form"
	"github.com/n1rna/invadmin/internal/logger"
	"github.com/n1rna/invadmin/internal/schema"
)

var fixedNow = time.Date(2024, 3, 9, 10, 30, 15, 123456789, time.UTC)

func newTestService(t *testing.T) (*Service, *apitest.Backend) {
	t.Helper()

	registry, err := schema.Builtin()
	if err != nil {
		t.Fatalf("Failed to load manifests: %v", err)
	}

	backend := apitest.NewBackend()
	t.Cleanup(backend.Close)

	client := api.NewClient(backend.URL(), "", 5*time.Second, api.WithLogger(logger.Nop()))
	svc := NewService(registry, client,
		WithLogger(logger.Nop()),
		WithPageSize(2),
		WithClock(func() time.Time { return fixedNow }),
	)
	return svc, backend
}

func seedProduct(backend *apitest.Backend) {
	backend.Seed("brands", 1, map[string]any{"name": "Acme"})
	backend.Seed("brands", 2, map[string]any{"name": "Bolt Co"})
	backend.Seed("brands", 7763, map[string]any{"name": "Zeta"})
	backend.Seed("suppliers", 5, map[string]any{"name": "North"})
	backend.Seed("products", 42, map[string]any{
		"name":        "Hex bolt",
		"sku":         "HB-8",
		"salePrice":   json.Number("2.50"),
		"brand":       map[string]any{"id": 7763, "name": "Zeta"},
		"suppliers":   []any{map[string]any{"id": 5, "name": "North"}},
		"createdDate": "2024-01-02T03:04:05.000Z",
	})
}

func refIDs(refs []entity.Ref) []int64 {
	ids := make([]int64, len(refs))
	for i, r := range refs {
		ids[i] = r.ID
	}
	return ids
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestOpenEdit(t *testing.T) {
	svc, backend := newTestService(t)
	seedProduct(backend)

	screen, err := svc.OpenEdit(context.Background(), "product", 42)
	if err != nil {
		t.Fatalf("OpenEdit failed: %v", err)
	}

	if screen.State.Mode() != form.ModeEdit {
		t.Errorf("Expected edit mode, got %s", screen.State.Mode())
	}
	if id, _ := screen.State.ID(); id != 42 {
		t.Errorf("Expected id 42, got %d", id)
	}

	created, _ := screen.State.Get("createdDate")
	want := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	if ts, ok := created.(time.Time); !ok || !ts.Equal(want) {
		t.Errorf("Expected loaded createdDate %v, got %v", want, created)
	}
	modified, _ := screen.State.Get("lastModifiedDate")
	if ts, ok := modified.(time.Time); !ok || !ts.Equal(fixedNow.Truncate(time.Millisecond)) {
		t.Errorf("Expected defaulted lastModifiedDate, got %v", modified)
	}

	// brand 7763 is not on the first page and must be merged in front
	if got := refIDs(screen.Choices["brand"]); !equalIDs(got, []int64{7763, 1, 2}) {
		t.Errorf("Expected brand choices [7763 1 2], got %v", got)
	}
	if got := refIDs(screen.Choices["suppliers"]); !equalIDs(got, []int64{5}) {
		t.Errorf("Expected supplier choices [5], got %v", got)
	}
	if got := screen.Choices["brand"][1].Label("name"); got != "Acme" {
		t.Errorf("Expected label Acme, got %q", got)
	}
	if _, ok := screen.Choices["category"]; !ok {
		t.Error("Expected an entry for every relationship field")
	}
}

func TestOpenEditNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.OpenEdit(context.Background(), "product", 99)
	if !IsNotFound(err) {
		t.Fatalf("Expected not found error, got %v", err)
	}
}

func TestOpenEditTransportFailure(t *testing.T) {
	svc, backend := newTestService(t)
	seedProduct(backend)
	backend.FailNext(1)

	screen, err := svc.OpenEdit(context.Background(), "product", 42)
	if err == nil {
		t.Fatal("Expected an error when one fetch fails")
	}
	if screen != nil {
		t.Error("Expected no screen on failure")
	}
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		t.Errorf("Expected the transport error to be returned, got %v", err)
	}
}

func TestOpenEditMalformedEntity(t *testing.T) {
	svc, backend := newTestService(t)
	backend.Seed("bills", 3, map[string]any{"number": "B-3", "date": "not-a-date"})

	_, err := svc.OpenEdit(context.Background(), "bill", 3)
	if !errors.Is(err, entity.ErrMalformedTemporalValue) {
		t.Fatalf("Expected ErrMalformedTemporalValue, got %v", err)
	}
}

func TestCreateThenUpdate(t *testing.T) {
	svc, backend := newTestService(t)
	ctx := context.Background()

	screen, err := svc.OpenCreate(ctx, "brand", nil)
	if err != nil {
		t.Fatalf("OpenCreate failed: %v", err)
	}
	if screen.State.Mode() != form.ModeCreate {
		t.Fatalf("Expected create mode, got %s", screen.State.Mode())
	}

	if _, err := svc.Save(ctx, screen.State, false); !errors.Is(err, form.ErrRequiredMissing) {
		t.Fatalf("Expected ErrRequiredMissing before name is set, got %v", err)
	}

	if err := screen.State.Set("name", "Acme"); err != nil {
		t.Fatal(err)
	}
	saved, err := svc.Save(ctx, screen.State, false)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	id, ok := saved.ID("id")
	if !ok {
		t.Fatal("Expected created entity to carry an id")
	}
	if screen.State.Mode() != form.ModeEdit {
		t.Error("Expected state to switch to edit mode after create")
	}

	stored, ok := backend.Get("brands", id)
	if !ok {
		t.Fatal("Expected brand to be stored")
	}
	if stored["createdDate"] != "2024-03-09T10:30:15.123Z" {
		t.Errorf("Expected createdDate sent in canonical form, got %v", stored["createdDate"])
	}
	if stored["active"] != false {
		t.Errorf("Expected boolean default false, got %v", stored["active"])
	}

	if err := screen.State.Set("description", "tools"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Save(ctx, screen.State, true); err != nil {
		t.Fatalf("Patch save failed: %v", err)
	}

	reqs := backend.Requests()
	last := reqs[len(reqs)-1]
	if last.Method != "PATCH" {
		t.Errorf("Expected PATCH for an existing entity, got %s", last.Method)
	}
	stored, _ = backend.Get("brands", id)
	if stored["description"] != "tools" {
		t.Errorf("Expected description to be updated, got %v", stored["description"])
	}
}

func TestRoutingErrors(t *testing.T) {
	svc, backend := newTestService(t)
	seedProduct(backend)
	ctx := context.Background()

	edit, err := svc.OpenEdit(ctx, "product", 42)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Create(ctx, edit.State); !errors.Is(err, entity.ErrIdentityAssigned) {
		t.Errorf("Expected ErrIdentityAssigned, got %v", err)
	}

	create, err := svc.OpenCreate(ctx, "brand", entity.Record{"name": "New"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Update(ctx, create.State, false); !errors.Is(err, entity.ErrMissingIdentity) {
		t.Errorf("Expected ErrMissingIdentity, got %v", err)
	}
}

func TestChoices(t *testing.T) {
	svc, backend := newTestService(t)
	seedProduct(backend)
	ctx := context.Background()

	screen, err := svc.OpenEdit(ctx, "product", 42)
	if err != nil {
		t.Fatal(err)
	}

	refs, err := svc.Choices(ctx, screen.State, "brand", api.QueryParams{Page: 1, Size: 2})
	if err != nil {
		t.Fatalf("Choices failed: %v", err)
	}
	// second page holds only 7763 itself, so nothing is prepended
	if got := refIDs(refs); !equalIDs(got, []int64{7763}) {
		t.Errorf("Expected [7763], got %v", got)
	}

	if _, err := svc.Choices(ctx, screen.State, "name", api.QueryParams{}); err == nil {
		t.Error("Expected an error for a non-relationship field")
	}
	if _, err := svc.Choices(ctx, screen.State, "nope", api.QueryParams{}); !errors.Is(err, form.ErrUnknownField) {
		t.Errorf("Expected ErrUnknownField, got %v", err)
	}
}

func TestResume(t *testing.T) {
	svc, backend := newTestService(t)
	seedProduct(backend)
	ctx := context.Background()

	screen, err := svc.OpenEdit(ctx, "product", 42)
	if err != nil {
		t.Fatal(err)
	}
	wire, err := svc.Wire(screen.State)
	if err != nil {
		t.Fatalf("Wire failed: %v", err)
	}

	resumed, err := svc.Resume("product", screen.State.Session(), wire, screen.State.InitializedAt())
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if resumed.Session() != screen.State.Session() {
		t.Error("Expected session to be preserved")
	}
	again, err := svc.Wire(resumed)
	if err != nil {
		t.Fatal(err)
	}

	a, _ := json.Marshal(wire)
	b, _ := json.Marshal(again)
	if string(a) != string(b) {
		t.Errorf("Resumed wire differs:\n%s\n%s", a, b)
	}
}

func TestGetListDelete(t *testing.T) {
	svc, backend := newTestService(t)
	seedProduct(backend)
	ctx := context.Background()

	rec, err := svc.Get(ctx, "brand", 7763)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec["name"] != "Zeta" {
		t.Errorf("Expected Zeta, got %v", rec["name"])
	}

	list, err := svc.List(ctx, "brand", api.QueryParams{Size: 10})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 3 {
		t.Errorf("Expected 3 brands, got %d", len(list))
	}

	if err := svc.Delete(ctx, "brand", 7763); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := svc.Get(ctx, "brand", 7763); !IsNotFound(err) {
		t.Errorf("Expected not found after delete, got %v", err)
	}
}
