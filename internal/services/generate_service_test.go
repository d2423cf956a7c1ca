package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/AlfRonDon/neurareport/internal/cache"
	"github.com/AlfRonDon/neurareport/internal/discovery"
	"github.com/AlfRonDon/neurareport/internal/logging"
	"github.com/AlfRonDon/neurareport/internal/models"
)

type capturePublisher struct {
	subjects []string
	payloads [][]byte
	fail     bool
}

func (p *capturePublisher) Publish(ctx context.Context, subject string, data []byte) error {
	if p.fail {
		return errors.New("broker unavailable")
	}
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func seedResult(t *testing.T, store *cache.Store, templateID string, batchIDs []string) {
	t.Helper()
	raw := discovery.RawResponse{}
	for i := range batchIDs {
		raw.Batches = append(raw.Batches, discovery.RawBatch{ID: &batchIDs[i], Rows: 10})
	}
	res := discovery.Normalize(raw, discovery.TemplateRef{ID: templateID, Name: "Report " + templateID})
	store.Put(context.Background(), res)
}

func newTestGenerateService(t *testing.T) (*GenerateService, *cache.Store, *capturePublisher) {
	t.Helper()
	logger := logging.NewDevelopment()
	store := cache.NewStore(cache.NewMemoryBackend(0), 2*1024*1024, 50, cache.Options{Logger: logger})
	pub := &capturePublisher{}
	return NewGenerateService(logger, store, pub, "jobs.report.generate"), store, pub
}

func TestGenerateService_Submit(t *testing.T) {
	svc, store, pub := newTestGenerateService(t)
	ctx := context.Background()

	seedResult(t, store, "tpl-1", []string{"b1", "b2", "b3"})
	store.SetMeta(ctx, &cache.Meta{StartDate: "2026-07-01", EndDate: "2026-07-31", ConnectionID: "conn-1"})

	// Deselect one batch; only selected ones go into the job
	store.ToggleByID(ctx, "tpl-1", "b2", false)

	resp, err := svc.Submit(ctx, &models.GenerateRequest{TemplateIDs: []string{"tpl-1"}})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if len(resp.Jobs) != 1 {
		t.Fatalf("Expected 1 job, got %d", len(resp.Jobs))
	}
	if resp.Jobs[0].Batches != 2 {
		t.Errorf("Expected 2 batches in job, got %d", resp.Jobs[0].Batches)
	}

	if len(pub.subjects) != 1 || pub.subjects[0] != "jobs.report.generate" {
		t.Fatalf("Unexpected publish subjects: %v", pub.subjects)
	}

	var job GenerateJob
	if err := json.Unmarshal(pub.payloads[0], &job); err != nil {
		t.Fatalf("Job payload unparseable: %v", err)
	}
	if job.TemplateID != "tpl-1" || job.JobID == "" {
		t.Errorf("Unexpected job: %+v", job)
	}
	if len(job.BatchIDs) != 2 || job.BatchIDs[0] != "b1" || job.BatchIDs[1] != "b3" {
		t.Errorf("Unexpected batch ids: %v", job.BatchIDs)
	}
	if job.StartDate != "2026-07-01" || job.ConnectionID != "conn-1" {
		t.Errorf("Expected meta carried into job: %+v", job)
	}
}

func TestGenerateService_Submit_Validation(t *testing.T) {
	svc, _, _ := newTestGenerateService(t)
	ctx := context.Background()

	if _, err := svc.Submit(ctx, &models.GenerateRequest{}); err == nil {
		t.Error("Expected error for empty template_ids")
	}

	if _, err := svc.Submit(ctx, &models.GenerateRequest{
		TemplateIDs: []string{"tpl-1"},
		ScheduleAt:  "tomorrow-ish",
	}); err == nil {
		t.Error("Expected error for non-RFC3339 schedule_at")
	}
}

func TestGenerateService_Submit_NoCachedResult(t *testing.T) {
	svc, _, pub := newTestGenerateService(t)

	_, err := svc.Submit(context.Background(), &models.GenerateRequest{TemplateIDs: []string{"tpl-none"}})

	var svcErr *ServiceError
	if !errors.As(err, &svcErr) || svcErr.Code != "NO_DISCOVERY_RESULT" {
		t.Errorf("Expected NO_DISCOVERY_RESULT, got %v", err)
	}
	if len(pub.payloads) != 0 {
		t.Error("Expected nothing published")
	}
}

func TestGenerateService_Submit_NothingSelected(t *testing.T) {
	svc, store, pub := newTestGenerateService(t)
	ctx := context.Background()

	seedResult(t, store, "tpl-1", []string{"b1"})
	store.ToggleByID(ctx, "tpl-1", "b1", false)

	_, err := svc.Submit(ctx, &models.GenerateRequest{TemplateIDs: []string{"tpl-1"}})

	var svcErr *ServiceError
	if !errors.As(err, &svcErr) || svcErr.Code != "NO_BATCHES_SELECTED" {
		t.Errorf("Expected NO_BATCHES_SELECTED, got %v", err)
	}
	if len(pub.payloads) != 0 {
		t.Error("Expected nothing published")
	}
}

func TestGenerateService_Submit_AllOrNothingGate(t *testing.T) {
	// One template with selections and one without: the whole submission is
	// rejected before anything publishes.
	svc, store, pub := newTestGenerateService(t)
	ctx := context.Background()

	seedResult(t, store, "tpl-1", []string{"b1"})
	seedResult(t, store, "tpl-2", []string{"c1"})
	store.ToggleByID(ctx, "tpl-2", "c1", false)

	_, err := svc.Submit(ctx, &models.GenerateRequest{TemplateIDs: []string{"tpl-1", "tpl-2"}})
	if err == nil {
		t.Fatal("Expected submission rejected")
	}
	if len(pub.payloads) != 0 {
		t.Error("Expected nothing published when one template fails the gate")
	}
}

func TestGenerateService_Submit_PublishFailure(t *testing.T) {
	svc, store, pub := newTestGenerateService(t)
	ctx := context.Background()

	seedResult(t, store, "tpl-1", []string{"b1"})
	pub.fail = true

	_, err := svc.Submit(ctx, &models.GenerateRequest{TemplateIDs: []string{"tpl-1"}})

	var svcErr *ServiceError
	if !errors.As(err, &svcErr) || svcErr.Code != "JOB_SUBMIT_FAILED" {
		t.Errorf("Expected JOB_SUBMIT_FAILED, got %v", err)
	}
}

func TestGenerateService_Submit_ScheduleAt(t *testing.T) {
	svc, store, pub := newTestGenerateService(t)
	ctx := context.Background()

	seedResult(t, store, "tpl-1", []string{"b1"})

	_, err := svc.Submit(ctx, &models.GenerateRequest{
		TemplateIDs: []string{"tpl-1"},
		ScheduleAt:  "2026-09-01T06:00:00Z",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	var job GenerateJob
	if err := json.Unmarshal(pub.payloads[0], &job); err != nil {
		t.Fatalf("Job payload unparseable: %v", err)
	}
	if job.ScheduleAt != "2026-09-01T06:00:00Z" {
		t.Errorf("Expected schedule_at carried, got %q", job.ScheduleAt)
	}
}
