package services

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/AlfRonDon/neurareport/internal/cache"
	"github.com/AlfRonDon/neurareport/internal/discovery"
	"github.com/AlfRonDon/neurareport/internal/logging"
	"github.com/AlfRonDon/neurareport/internal/models"
	"github.com/AlfRonDon/neurareport/internal/registry"
	"github.com/AlfRonDon/neurareport/internal/upstream"
)

// BatchDiscoverer issues one discovery query against the data backend
type BatchDiscoverer interface {
	DiscoverBatches(ctx context.Context, req upstream.DiscoverRequest) ([]byte, error)
}

// DiscoveryService orchestrates batch discovery: validate templates, fetch
// sequentially, normalize, cache. Fetches are issued one awaited request per
// template, not concurrently, which bounds backend load per user action at
// the cost of total wait time scaling with template count.
type DiscoveryService struct {
	logger   *logging.Logger
	registry registry.Manager
	client   BatchDiscoverer
	store    *cache.Store
}

// NewDiscoveryService creates a new DiscoveryService
func NewDiscoveryService(
	logger *logging.Logger,
	reg registry.Manager,
	client BatchDiscoverer,
	store *cache.Store,
) *DiscoveryService {
	return &DiscoveryService{
		logger:   logger,
		registry: reg,
		client:   client,
		store:    store,
	}
}

// Run executes a discovery over the requested templates and date range.
// A changed query context (template set or date range) clears the cache
// first: results are meaningless outside the context that produced them.
// Per-template failures do not abort the run; failed templates simply never
// populate a cache entry and are reported in their outcome.
func (s *DiscoveryService) Run(ctx context.Context, input *models.DiscoveryRunRequest) (*models.DiscoveryRunResponse, error) {
	if len(input.TemplateIDs) == 0 {
		return nil, NewServiceError(CodeInvalidRequest, "template_ids is required")
	}
	if input.StartDate == "" || input.EndDate == "" {
		return nil, NewServiceError(CodeInvalidRequest, "start_date and end_date are required")
	}

	// Resolve templates up front; an unknown template fails the whole run
	// rather than silently discovering a subset the client did not ask for
	refs := make([]discovery.TemplateRef, 0, len(input.TemplateIDs))
	templates := make([]*registry.Template, 0, len(input.TemplateIDs))
	for _, id := range input.TemplateIDs {
		tpl, err := s.registry.GetTemplate(ctx, id)
		if err != nil {
			return nil, &ServiceError{
				Code:    CodeTemplateNotFound,
				Message: err.Error(),
			}
		}
		templates = append(templates, tpl)
		refs = append(refs, discovery.TemplateRef{ID: tpl.ID, Name: tpl.Name, Kind: tpl.Kind})
	}

	meta := &cache.Meta{
		StartDate: input.StartDate,
		EndDate:   input.EndDate,
		Templates: refs,
		FetchedAt: time.Now().UnixMilli(),
	}
	if input.ConnectionID != "" {
		meta.ConnectionID = input.ConnectionID
		if conn, err := s.registry.GetConnection(ctx, input.ConnectionID); err == nil {
			meta.ConnectionName = conn.Name
		}
	}

	if s.contextChanged(meta) {
		s.logger.Info("Query context changed, clearing discovery cache",
			"start_date", meta.StartDate, "end_date", meta.EndDate, "templates", len(refs))
		s.store.Clear(ctx)
	}

	requestID := uuid.New().String()
	outcomes := make([]models.DiscoveryOutcome, 0, len(templates))

	for i, tpl := range templates {
		outcome := models.DiscoveryOutcome{TemplateID: tpl.ID, Name: tpl.Name}

		data, err := s.client.DiscoverBatches(ctx, upstream.DiscoverRequest{
			TemplateID:   tpl.ID,
			TemplateKind: tpl.Kind,
			StartDate:    input.StartDate,
			EndDate:      input.EndDate,
			KeyFilters:   input.KeyFilters,
			ConnectionID: input.ConnectionID,
		})
		if err != nil {
			s.logger.Error("Discovery fetch failed",
				"template_id", tpl.ID, "request_id", requestID, "error", err)
			outcome.Status = "failed"
			outcome.Error = err.Error()
			outcomes = append(outcomes, outcome)
			continue
		}

		result := discovery.Normalize(discovery.ParseResponse(data), refs[i])
		s.store.Put(ctx, result)

		outcome.Status = "ok"
		outcome.BatchesCount = result.BatchesCount
		outcome.RowsTotal = result.RowsTotal
		outcomes = append(outcomes, outcome)

		s.logger.Debug("Discovery result cached",
			"template_id", tpl.ID, "batches", result.BatchesCount, "rows", result.RowsTotal)
	}

	s.store.SetMeta(ctx, meta)

	return &models.DiscoveryRunResponse{RequestID: requestID, Outcomes: outcomes}, nil
}

// contextChanged reports whether the new request context differs from the one
// the cached results were discovered under
func (s *DiscoveryService) contextChanged(next *cache.Meta) bool {
	prev := s.store.Meta()
	if prev == nil {
		return false
	}
	if prev.StartDate != next.StartDate || prev.EndDate != next.EndDate {
		return true
	}
	if prev.ConnectionID != next.ConnectionID {
		return true
	}
	return !sameTemplateSet(prev.Templates, next.Templates)
}

func sameTemplateSet(a, b []discovery.TemplateRef) bool {
	if len(a) != len(b) {
		return false
	}
	aIDs := make([]string, len(a))
	bIDs := make([]string, len(b))
	for i := range a {
		aIDs[i] = a[i].ID
		bIDs[i] = b[i].ID
	}
	sort.Strings(aIDs)
	sort.Strings(bIDs)
	for i := range aIDs {
		if aIDs[i] != bIDs[i] {
			return false
		}
	}
	return true
}

// Toggle flips one batch's selection flag. A missing template or batch is a
// no-op returning ok=false, never an error: toggles race against
// re-discovery by design.
func (s *DiscoveryService) Toggle(ctx context.Context, templateID string, input *models.ToggleSelectionRequest) (*discovery.Result, bool, error) {
	if input.Selected == nil {
		return nil, false, NewServiceError(CodeInvalidRequest, "selected is required")
	}

	if input.BatchID != nil {
		res, ok := s.store.ToggleByID(ctx, templateID, *input.BatchID, *input.Selected)
		return res, ok, nil
	}
	if input.BatchIndex != nil {
		res, ok := s.store.ToggleByIndex(ctx, templateID, *input.BatchIndex, *input.Selected)
		return res, ok, nil
	}

	return nil, false, NewServiceError(CodeInvalidRequest, "batch_id or batch_index is required")
}

// Resample applies a resample filter/config update to one template's result.
// A missing template is a no-op returning ok=false.
func (s *DiscoveryService) Resample(ctx context.Context, templateID string, input *models.ResampleRequest) (*discovery.Result, bool) {
	return s.store.Resample(ctx, templateID, discovery.ResamplePayload{
		AllowedBatchIDs: input.AllowedBatchIDs,
		Config:          input.Config,
	})
}

// Results returns the full cached envelope
func (s *DiscoveryService) Results() cache.Envelope {
	return s.store.Snapshot()
}

// Result returns the cached result for one template
func (s *DiscoveryService) Result(templateID string) (*discovery.Result, bool) {
	return s.store.Get(templateID)
}

// ClearCache drops all cached results, used when the client abandons the
// current query context
func (s *DiscoveryService) ClearCache(ctx context.Context) {
	s.store.Clear(ctx)
}
