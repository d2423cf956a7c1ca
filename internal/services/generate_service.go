package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/AlfRonDon/neurareport/internal/bus"
	"github.com/AlfRonDon/neurareport/internal/cache"
	"github.com/AlfRonDon/neurareport/internal/logging"
	"github.com/AlfRonDon/neurareport/internal/models"
)

// GenerateJob is the payload published for one report-generation job.
// Rendering and delivery happen in the backend worker fleet; this service
// only gates and submits.
type GenerateJob struct {
	JobID        string   `json:"job_id"`
	TemplateID   string   `json:"template_id"`
	TemplateName string   `json:"template_name,omitempty"`
	BatchIDs     []string `json:"batch_ids"`
	StartDate    string   `json:"start_date,omitempty"`
	EndDate      string   `json:"end_date,omitempty"`
	ConnectionID string   `json:"connection_id,omitempty"`
	ScheduleAt   string   `json:"schedule_at,omitempty"`
	SubmittedAt  int64    `json:"submitted_at"`
}

// GenerateService submits report-generation jobs for selected batches
type GenerateService struct {
	logger  *logging.Logger
	store   *cache.Store
	pub     bus.Publisher
	subject string
}

// NewGenerateService creates a new GenerateService
func NewGenerateService(logger *logging.Logger, store *cache.Store, pub bus.Publisher, subject string) *GenerateService {
	return &GenerateService{
		logger:  logger,
		store:   store,
		pub:     pub,
		subject: subject,
	}
}

// Submit publishes one job per requested template that has a cached
// discovery result with at least one selected batch. Templates without a
// cached result or without selections are rejected: generation is gated on
// the client having discovered and kept something selected.
func (s *GenerateService) Submit(ctx context.Context, input *models.GenerateRequest) (*models.GenerateResponse, error) {
	if len(input.TemplateIDs) == 0 {
		return nil, NewServiceError(CodeInvalidRequest, "template_ids is required")
	}

	if input.ScheduleAt != "" {
		if _, err := time.Parse(time.RFC3339, input.ScheduleAt); err != nil {
			return nil, NewServiceErrorWithDetails(CodeInvalidRequest,
				"schedule_at must be RFC3339",
				map[string]interface{}{"schedule_at": input.ScheduleAt})
		}
	}

	meta := s.store.Meta()

	jobs := make([]GenerateJob, 0, len(input.TemplateIDs))
	for _, templateID := range input.TemplateIDs {
		result, ok := s.store.Get(templateID)
		if !ok {
			return nil, NewServiceErrorWithDetails(CodeNoDiscoveryResult,
				"no discovery result cached for template, run discovery first",
				map[string]interface{}{"template_id": templateID})
		}

		selected := result.SelectedBatches()
		if len(selected) == 0 {
			return nil, NewServiceErrorWithDetails(CodeNoBatchesSelected,
				"no batches selected for template",
				map[string]interface{}{"template_id": templateID})
		}

		job := GenerateJob{
			JobID:        uuid.New().String(),
			TemplateID:   templateID,
			TemplateName: result.Name,
			ScheduleAt:   input.ScheduleAt,
			SubmittedAt:  time.Now().UnixMilli(),
		}
		for _, b := range selected {
			job.BatchIDs = append(job.BatchIDs, b.ID)
		}
		if meta != nil {
			job.StartDate = meta.StartDate
			job.EndDate = meta.EndDate
			job.ConnectionID = meta.ConnectionID
		}
		jobs = append(jobs, job)
	}

	requestID := uuid.New().String()
	response := &models.GenerateResponse{RequestID: requestID}

	for _, job := range jobs {
		data, err := json.Marshal(job)
		if err != nil {
			return nil, NewServiceError(CodeJobSubmitFailed, "failed to serialize job")
		}

		if err := s.pub.Publish(ctx, s.subject, data); err != nil {
			s.logger.Error("Failed to publish generation job",
				"job_id", job.JobID, "template_id", job.TemplateID, "error", err)
			return nil, NewServiceErrorWithDetails(CodeJobSubmitFailed,
				"failed to publish generation job",
				map[string]interface{}{"template_id": job.TemplateID})
		}

		s.logger.Info("Generation job submitted",
			"job_id", job.JobID, "template_id", job.TemplateID,
			"batches", len(job.BatchIDs), "request_id", requestID)

		response.Jobs = append(response.Jobs, models.JobRef{
			JobID:      job.JobID,
			TemplateID: job.TemplateID,
			Batches:    len(job.BatchIDs),
		})
	}

	return response, nil
}
