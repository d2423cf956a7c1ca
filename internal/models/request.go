package models

// CreateTemplateRequest represents create template request
type CreateTemplateRequest struct {
	Name      string                `json:"name" validate:"required,min=1,max=128"`
	Kind      string                `json:"kind,omitempty" validate:"omitempty,oneof=docx xlsx pdf-form"`
	Fields    []FieldMappingRequest `json:"fields,omitempty"`
	KeyTokens []string              `json:"key_tokens,omitempty"`
}

// FieldMappingRequest binds one template token to a database column
type FieldMappingRequest struct {
	Token  string `json:"token" validate:"required"`
	Column string `json:"column" validate:"required"`
	Kind   string `json:"kind,omitempty"`
}

// CreateConnectionRequest represents create connection request
type CreateConnectionRequest struct {
	Name   string `json:"name" validate:"required,min=1,max=128"`
	Driver string `json:"driver,omitempty"`
	DSN    string `json:"dsn,omitempty"`
}

// DiscoveryRunRequest represents a batch-discovery run over a set of
// templates and a date range
type DiscoveryRunRequest struct {
	TemplateIDs  []string          `json:"template_ids" validate:"required,min=1"`
	StartDate    string            `json:"start_date" validate:"required"`
	EndDate      string            `json:"end_date" validate:"required"`
	KeyFilters   map[string]string `json:"key_filters,omitempty"`
	ConnectionID string            `json:"connection_id,omitempty"`
}

// ToggleSelectionRequest flips the selection flag of one batch, addressed by
// id (preferred) or by index into the currently visible list
type ToggleSelectionRequest struct {
	BatchID    *string `json:"batch_id,omitempty"`
	BatchIndex *int    `json:"batch_index,omitempty"`
	Selected   *bool   `json:"selected" validate:"required"`
}

// ResampleRequest updates the resample view of one template's result.
// AllowedBatchIDs null retains the current filter; the request can carry a
// config update alone.
type ResampleRequest struct {
	AllowedBatchIDs []string               `json:"allowed_batch_ids,omitempty"`
	Config          map[string]interface{} `json:"config,omitempty"`
}

// GenerateRequest submits report-generation jobs for the selected batches of
// the given templates. ScheduleAt defers the run (RFC3339); empty runs now.
type GenerateRequest struct {
	TemplateIDs []string `json:"template_ids" validate:"required,min=1"`
	ScheduleAt  string   `json:"schedule_at,omitempty"`
}
