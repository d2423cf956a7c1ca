package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/AlfRonDon/neurareport/internal/cache"
	"github.com/AlfRonDon/neurareport/internal/logging"
	"github.com/AlfRonDon/neurareport/internal/models"
	"github.com/AlfRonDon/neurareport/internal/registry"
	"github.com/AlfRonDon/neurareport/internal/upstream"
)

// fakeRegistry is an in-memory registry.Manager for service tests
type fakeRegistry struct {
	templates   map[string]*registry.Template
	connections map[string]*registry.Connection
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		templates:   map[string]*registry.Template{},
		connections: map[string]*registry.Connection{},
	}
}

func (f *fakeRegistry) CreateTemplate(ctx context.Context, tpl *registry.Template) error {
	f.templates[tpl.ID] = tpl
	return nil
}

func (f *fakeRegistry) GetTemplate(ctx context.Context, id string) (*registry.Template, error) {
	tpl, ok := f.templates[id]
	if !ok {
		return nil, fmt.Errorf("template %s not found", id)
	}
	return tpl, nil
}

func (f *fakeRegistry) ListTemplates(ctx context.Context) ([]*registry.Template, error) {
	var out []*registry.Template
	for _, tpl := range f.templates {
		out = append(out, tpl)
	}
	return out, nil
}

func (f *fakeRegistry) DeleteTemplate(ctx context.Context, id string) error {
	delete(f.templates, id)
	return nil
}

func (f *fakeRegistry) TemplateExists(ctx context.Context, id string) (bool, error) {
	_, ok := f.templates[id]
	return ok, nil
}

func (f *fakeRegistry) ValidateTemplate(ctx context.Context, id string) error {
	if _, ok := f.templates[id]; !ok {
		return fmt.Errorf("template %s not found", id)
	}
	return nil
}

func (f *fakeRegistry) CreateConnection(ctx context.Context, conn *registry.Connection) error {
	f.connections[conn.ID] = conn
	return nil
}

func (f *fakeRegistry) GetConnection(ctx context.Context, id string) (*registry.Connection, error) {
	conn, ok := f.connections[id]
	if !ok {
		return nil, fmt.Errorf("connection %s not found", id)
	}
	return conn, nil
}

func (f *fakeRegistry) ListConnections(ctx context.Context) ([]*registry.Connection, error) {
	var out []*registry.Connection
	for _, conn := range f.connections {
		out = append(out, conn)
	}
	return out, nil
}

func (f *fakeRegistry) DeleteConnection(ctx context.Context, id string) error {
	delete(f.connections, id)
	return nil
}

func (f *fakeRegistry) Close() error { return nil }

// fakeDiscoverer returns canned payloads per template id
type fakeDiscoverer struct {
	payloads map[string][]byte
	errs     map[string]error
	calls    []string
}

func (f *fakeDiscoverer) DiscoverBatches(ctx context.Context, req upstream.DiscoverRequest) ([]byte, error) {
	f.calls = append(f.calls, req.TemplateID)
	if err, ok := f.errs[req.TemplateID]; ok {
		return nil, err
	}
	return f.payloads[req.TemplateID], nil
}

func newTestDiscoveryService(t *testing.T) (*DiscoveryService, *fakeRegistry, *fakeDiscoverer, *cache.Store) {
	t.Helper()
	logger := logging.NewDevelopment()
	reg := newFakeRegistry()
	client := &fakeDiscoverer{payloads: map[string][]byte{}, errs: map[string]error{}}
	store := cache.NewStore(cache.NewMemoryBackend(0), 2*1024*1024, 50, cache.Options{Logger: logger})
	return NewDiscoveryService(logger, reg, client, store), reg, client, store
}

func TestDiscoveryService_Run(t *testing.T) {
	svc, reg, client, store := newTestDiscoveryService(t)
	ctx := context.Background()

	reg.templates["tpl-1"] = &registry.Template{ID: "tpl-1", Name: "Production", Kind: "docx"}
	client.payloads["tpl-1"] = []byte(`{"batches":[{"id":"b1","rows":10},{"id":"b2","rows":20}]}`)

	resp, err := svc.Run(ctx, &models.DiscoveryRunRequest{
		TemplateIDs: []string{"tpl-1"},
		StartDate:   "2026-07-01",
		EndDate:     "2026-07-31",
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(resp.Outcomes) != 1 {
		t.Fatalf("Expected 1 outcome, got %d", len(resp.Outcomes))
	}
	o := resp.Outcomes[0]
	if o.Status != "ok" || o.BatchesCount != 2 || o.RowsTotal != 30 {
		t.Errorf("Unexpected outcome: %+v", o)
	}

	res, ok := store.Get("tpl-1")
	if !ok {
		t.Fatal("Expected result cached")
	}
	if res.Name != "Production" || len(res.AllBatches) != 2 {
		t.Errorf("Unexpected cached result: %+v", res)
	}

	meta := store.Meta()
	if meta == nil || meta.StartDate != "2026-07-01" || len(meta.Templates) != 1 {
		t.Errorf("Unexpected meta: %+v", meta)
	}
}

func TestDiscoveryService_Run_Validation(t *testing.T) {
	svc, _, _, _ := newTestDiscoveryService(t)
	ctx := context.Background()

	if _, err := svc.Run(ctx, &models.DiscoveryRunRequest{StartDate: "a", EndDate: "b"}); err == nil {
		t.Error("Expected error for missing template_ids")
	}
	if _, err := svc.Run(ctx, &models.DiscoveryRunRequest{TemplateIDs: []string{"t"}}); err == nil {
		t.Error("Expected error for missing date range")
	}
}

func TestDiscoveryService_Run_UnknownTemplateFailsWholeRun(t *testing.T) {
	svc, reg, client, store := newTestDiscoveryService(t)
	ctx := context.Background()

	reg.templates["tpl-1"] = &registry.Template{ID: "tpl-1", Name: "Known"}
	client.payloads["tpl-1"] = []byte(`{"batches":[]}`)

	_, err := svc.Run(ctx, &models.DiscoveryRunRequest{
		TemplateIDs: []string{"tpl-1", "tpl-ghost"},
		StartDate:   "2026-07-01",
		EndDate:     "2026-07-31",
	})
	if err == nil {
		t.Fatal("Expected error for unknown template")
	}

	var svcErr *ServiceError
	if !errors.As(err, &svcErr) || svcErr.Code != "TEMPLATE_NOT_FOUND" {
		t.Errorf("Expected TEMPLATE_NOT_FOUND, got %v", err)
	}

	// Nothing was fetched or cached
	if len(client.calls) != 0 {
		t.Error("Expected no upstream calls when resolution fails")
	}
	if _, ok := store.Get("tpl-1"); ok {
		t.Error("Expected nothing cached when resolution fails")
	}
}

func TestDiscoveryService_Run_PerTemplateFailure(t *testing.T) {
	svc, reg, client, store := newTestDiscoveryService(t)
	ctx := context.Background()

	reg.templates["tpl-ok"] = &registry.Template{ID: "tpl-ok", Name: "OK"}
	reg.templates["tpl-bad"] = &registry.Template{ID: "tpl-bad", Name: "Bad"}
	client.payloads["tpl-ok"] = []byte(`{"batches":[{"id":"b1","rows":5}]}`)
	client.errs["tpl-bad"] = errors.New("upstream 502")

	resp, err := svc.Run(ctx, &models.DiscoveryRunRequest{
		TemplateIDs: []string{"tpl-ok", "tpl-bad"},
		StartDate:   "2026-07-01",
		EndDate:     "2026-07-31",
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	byID := map[string]models.DiscoveryOutcome{}
	for _, o := range resp.Outcomes {
		byID[o.TemplateID] = o
	}

	if byID["tpl-ok"].Status != "ok" {
		t.Errorf("Expected tpl-ok to succeed: %+v", byID["tpl-ok"])
	}
	if byID["tpl-bad"].Status != "failed" || byID["tpl-bad"].Error == "" {
		t.Errorf("Expected tpl-bad to fail with an error: %+v", byID["tpl-bad"])
	}

	if _, ok := store.Get("tpl-ok"); !ok {
		t.Error("Expected successful template cached")
	}
	if _, ok := store.Get("tpl-bad"); ok {
		t.Error("Failed template must not populate the cache")
	}
}

func TestDiscoveryService_Run_ContextChangeClearsCache(t *testing.T) {
	svc, reg, client, store := newTestDiscoveryService(t)
	ctx := context.Background()

	reg.templates["tpl-1"] = &registry.Template{ID: "tpl-1", Name: "One"}
	reg.templates["tpl-2"] = &registry.Template{ID: "tpl-2", Name: "Two"}
	client.payloads["tpl-1"] = []byte(`{"batches":[{"id":"b1"}]}`)
	client.payloads["tpl-2"] = []byte(`{"batches":[{"id":"b1"}]}`)

	run := func(ids []string, start, end string) {
		t.Helper()
		if _, err := svc.Run(ctx, &models.DiscoveryRunRequest{
			TemplateIDs: ids, StartDate: start, EndDate: end,
		}); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
	}

	run([]string{"tpl-1"}, "2026-07-01", "2026-07-31")

	// Same context: previous entries survive
	run([]string{"tpl-1"}, "2026-07-01", "2026-07-31")
	if _, ok := store.Get("tpl-1"); !ok {
		t.Fatal("Expected entry to survive same-context rerun")
	}

	// Different date range: cache cleared before the new run
	run([]string{"tpl-2"}, "2026-08-01", "2026-08-31")
	if _, ok := store.Get("tpl-1"); ok {
		t.Error("Expected old entry cleared on date-range change")
	}
	if _, ok := store.Get("tpl-2"); !ok {
		t.Error("Expected new entry cached")
	}
}

func TestDiscoveryService_Toggle(t *testing.T) {
	svc, reg, client, _ := newTestDiscoveryService(t)
	ctx := context.Background()

	reg.templates["tpl-1"] = &registry.Template{ID: "tpl-1", Name: "One"}
	client.payloads["tpl-1"] = []byte(`{"batches":[{"id":"b1"},{"id":"b2"}]}`)
	if _, err := svc.Run(ctx, &models.DiscoveryRunRequest{
		TemplateIDs: []string{"tpl-1"}, StartDate: "a", EndDate: "b",
	}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	sel := false
	id := "b2"
	res, ok, err := svc.Toggle(ctx, "tpl-1", &models.ToggleSelectionRequest{BatchID: &id, Selected: &sel})
	if err != nil || !ok {
		t.Fatalf("Toggle failed: ok=%v err=%v", ok, err)
	}
	if res.AllBatches[1].Selected {
		t.Error("Expected b2 deselected")
	}

	// selected is required
	if _, _, err := svc.Toggle(ctx, "tpl-1", &models.ToggleSelectionRequest{BatchID: &id}); err == nil {
		t.Error("Expected error without selected flag")
	}

	// one of batch_id / batch_index is required
	if _, _, err := svc.Toggle(ctx, "tpl-1", &models.ToggleSelectionRequest{Selected: &sel}); err == nil {
		t.Error("Expected error without batch address")
	}

	// index addressing
	idx := 0
	if _, ok, err := svc.Toggle(ctx, "tpl-1", &models.ToggleSelectionRequest{BatchIndex: &idx, Selected: &sel}); err != nil || !ok {
		t.Errorf("Index toggle failed: ok=%v err=%v", ok, err)
	}

	// unknown template is a silent no-op
	if _, ok, err := svc.Toggle(ctx, "tpl-ghost", &models.ToggleSelectionRequest{BatchID: &id, Selected: &sel}); err != nil || ok {
		t.Errorf("Expected silent no-op, got ok=%v err=%v", ok, err)
	}
}
