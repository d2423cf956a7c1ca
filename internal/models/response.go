package models

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// TemplateResponse represents template metadata response
type TemplateResponse struct {
	ID        string                `json:"id"`
	Name      string                `json:"name"`
	Kind      string                `json:"kind,omitempty"`
	Fields    []FieldMappingRequest `json:"fields,omitempty"`
	KeyTokens []string              `json:"key_tokens,omitempty"`
	CreatedAt string                `json:"created_at"`
}

// TemplateListResponse represents list templates response
type TemplateListResponse struct {
	Templates []TemplateResponse `json:"templates"`
}

// ConnectionResponse represents connection metadata response.
// The DSN never leaves the server.
type ConnectionResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Driver    string `json:"driver,omitempty"`
	CreatedAt string `json:"created_at"`
}

// ConnectionListResponse represents list connections response
type ConnectionListResponse struct {
	Connections []ConnectionResponse `json:"connections"`
}

// DiscoveryOutcome summarizes the discovery result for one template
type DiscoveryOutcome struct {
	TemplateID   string `json:"template_id"`
	Name         string `json:"name,omitempty"`
	Status       string `json:"status"` // ok, failed
	BatchesCount int64  `json:"batches_count,omitempty"`
	RowsTotal    int64  `json:"rows_total,omitempty"`
	Error        string `json:"error,omitempty"`
}

// DiscoveryRunResponse represents the outcome of a discovery run
type DiscoveryRunResponse struct {
	RequestID string             `json:"request_id"`
	Outcomes  []DiscoveryOutcome `json:"outcomes"`
}

// JobRef identifies one submitted generation job
type JobRef struct {
	JobID      string `json:"job_id"`
	TemplateID string `json:"template_id"`
	Batches    int    `json:"batches"`
}

// GenerateResponse represents the outcome of a job submission
type GenerateResponse struct {
	RequestID string   `json:"request_id"`
	Jobs      []JobRef `json:"jobs"`
}

// ErrorResponse represents error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Path    string                 `json:"path,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}
