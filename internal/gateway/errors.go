package gateway

// Error codes returned in the uniform error envelope.
const (
	CodeAuthRequired       = "AUTH_REQUIRED"
	CodeInvalidAPIKey      = "INVALID_API_KEY"
	CodeRateLimited        = "RATE_LIMITED"
	CodeQuotaExceeded      = "QUOTA_EXCEEDED"
	CodeQuotaUnavailable   = "QUOTA_UNAVAILABLE"
	CodeMissingParam       = "MISSING_PARAM"
	CodeInvalidAction      = "INVALID_ACTION"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeNotFound           = "NOT_FOUND"
	CodeSearchFailed       = "SEARCH_FAILED"
	CodeCreateFailed       = "CREATE_FAILED"
	CodeListFailed         = "LIST_FAILED"
	CodeRevokeFailed       = "REVOKE_FAILED"
	CodeRotateFailed       = "ROTATE_FAILED"
)

// Error is the uniform error envelope: {error, code, details?}.
// Validation failures are returned as values, never panicked across the
// orchestrator boundary.
type Error struct {
	Message string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}
