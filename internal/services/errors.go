// Package services provides the business logic layer between handlers and
// the cache, registry, and upstream collaborators.
package services

// Error codes surfaced to API clients. The HTTP status each maps to is
// decided in the middleware layer, not here.
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeInvalidName        = "INVALID_NAME"
	CodeInvalidKind        = "INVALID_KIND"
	CodeTemplateNotFound   = "TEMPLATE_NOT_FOUND"
	CodeConnectionNotFound = "CONNECTION_NOT_FOUND"
	CodeBatchNotFound      = "BATCH_NOT_FOUND"
	CodeNoDiscoveryResult  = "NO_DISCOVERY_RESULT"
	CodeNoBatchesSelected  = "NO_BATCHES_SELECTED"
	CodeJobSubmitFailed    = "JOB_SUBMIT_FAILED"
)

// ServiceError represents a service layer error
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// NewServiceError creates a new ServiceError
func NewServiceError(code, message string) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: message,
	}
}

// NewServiceErrorWithDetails creates a new ServiceError with details
func NewServiceErrorWithDetails(code, message string, details map[string]interface{}) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: message,
		Details: details,
	}
}
