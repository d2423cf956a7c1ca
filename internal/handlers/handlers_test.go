package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/AlfRonDon/neurareport/internal/bus"
	"github.com/AlfRonDon/neurareport/internal/cache"
	"github.com/AlfRonDon/neurareport/internal/logging"
	"github.com/AlfRonDon/neurareport/internal/middleware"
	"github.com/AlfRonDon/neurareport/internal/registry"
	"github.com/AlfRonDon/neurareport/internal/upstream"
)

// stubRegistry is an in-memory registry.Manager for handler tests
type stubRegistry struct {
	templates   map[string]*registry.Template
	connections map[string]*registry.Connection
	nextID      int
}

func newStubRegistry() *stubRegistry {
	return &stubRegistry{
		templates:   map[string]*registry.Template{},
		connections: map[string]*registry.Connection{},
	}
}

func (s *stubRegistry) CreateTemplate(ctx context.Context, tpl *registry.Template) error {
	if tpl.ID == "" {
		s.nextID++
		tpl.ID = fmt.Sprintf("tpl-%d", s.nextID)
	}
	s.templates[tpl.ID] = tpl
	return nil
}

func (s *stubRegistry) GetTemplate(ctx context.Context, id string) (*registry.Template, error) {
	tpl, ok := s.templates[id]
	if !ok {
		return nil, fmt.Errorf("template %s not found", id)
	}
	return tpl, nil
}

func (s *stubRegistry) ListTemplates(ctx context.Context) ([]*registry.Template, error) {
	out := make([]*registry.Template, 0, len(s.templates))
	for _, tpl := range s.templates {
		out = append(out, tpl)
	}
	return out, nil
}

func (s *stubRegistry) DeleteTemplate(ctx context.Context, id string) error {
	if _, ok := s.templates[id]; !ok {
		return fmt.Errorf("template %s not found", id)
	}
	delete(s.templates, id)
	return nil
}

func (s *stubRegistry) TemplateExists(ctx context.Context, id string) (bool, error) {
	_, ok := s.templates[id]
	return ok, nil
}

func (s *stubRegistry) ValidateTemplate(ctx context.Context, id string) error {
	if _, ok := s.templates[id]; !ok {
		return fmt.Errorf("template %s not found", id)
	}
	return nil
}

func (s *stubRegistry) CreateConnection(ctx context.Context, conn *registry.Connection) error {
	if conn.ID == "" {
		s.nextID++
		conn.ID = fmt.Sprintf("conn-%d", s.nextID)
	}
	s.connections[conn.ID] = conn
	return nil
}

func (s *stubRegistry) GetConnection(ctx context.Context, id string) (*registry.Connection, error) {
	conn, ok := s.connections[id]
	if !ok {
		return nil, fmt.Errorf("connection %s not found", id)
	}
	return conn, nil
}

func (s *stubRegistry) ListConnections(ctx context.Context) ([]*registry.Connection, error) {
	out := make([]*registry.Connection, 0, len(s.connections))
	for _, conn := range s.connections {
		out = append(out, conn)
	}
	return out, nil
}

func (s *stubRegistry) DeleteConnection(ctx context.Context, id string) error {
	if _, ok := s.connections[id]; !ok {
		return fmt.Errorf("connection %s not found", id)
	}
	delete(s.connections, id)
	return nil
}

func (s *stubRegistry) Close() error { return nil }

// stubDiscoverer returns one canned payload per template id
type stubDiscoverer struct {
	payloads map[string][]byte
}

func (s *stubDiscoverer) DiscoverBatches(ctx context.Context, req upstream.DiscoverRequest) ([]byte, error) {
	payload, ok := s.payloads[req.TemplateID]
	if !ok {
		return nil, fmt.Errorf("no upstream data for %s", req.TemplateID)
	}
	return payload, nil
}

type testEnv struct {
	app      *fiber.App
	registry *stubRegistry
	upstream *stubDiscoverer
	store    *cache.Store
	bus      *bus.MemoryBus
}

// setupTestApp wires the full handler stack over in-memory collaborators,
// auth disabled
func setupTestApp(t *testing.T) *testEnv {
	t.Helper()

	logger := logging.NewDevelopment()
	reg := newStubRegistry()
	client := &stubDiscoverer{payloads: map[string][]byte{}}
	memBus := bus.NewMemoryBus()
	store := cache.NewStore(cache.NewMemoryBackend(0), 2*1024*1024, 50, cache.Options{
		Publisher: memBus,
		Logger:    logger,
	})

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	h := New(logger, reg, client, store, memBus, "jobs.report.generate")

	app.Get("/health", h.Health)

	v1 := app.Group("/v1")
	v1.Post("/templates", h.CreateTemplate)
	v1.Get("/templates", h.ListTemplates)
	v1.Get("/templates/:template_id", h.GetTemplate)
	v1.Delete("/templates/:template_id", h.DeleteTemplate)
	v1.Post("/connections", h.CreateConnection)
	v1.Get("/connections", h.ListConnections)
	v1.Delete("/connections/:connection_id", h.DeleteConnection)
	v1.Post("/discovery/run", h.RunDiscovery)
	v1.Get("/discovery/results", h.DiscoveryResults)
	v1.Get("/discovery/results/:template_id", h.DiscoveryResult)
	v1.Post("/discovery/results/:template_id/selection", h.ToggleSelection)
	v1.Post("/discovery/results/:template_id/resample", h.ApplyResample)
	v1.Delete("/discovery/results", h.ClearDiscovery)
	v1.Post("/reports/generate", h.Generate)

	admin := app.Group("/admin")
	admin.Get("/cache/stats", h.CacheStats)

	app.Use(h.NotFound)

	return &testEnv{app: app, registry: reg, upstream: client, store: store, bus: memBus}
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	data, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, data
}

func decodeJSON(t *testing.T, data []byte, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("Failed to unmarshal response %s: %v", data, err)
	}
}
