package models

import "fmt"

// Error codes used in logs, metrics and internal error handling.
const (
	ErrCodeTimeout           = "PAGE_TIMEOUT"
	ErrCodeDomainNotFound    = "DOMAIN_NOT_FOUND"
	ErrCodeConnectionRefused = "CONNECTION_REFUSED"
	ErrCodeCertificate       = "SSL_CERTIFICATE"
	ErrCodeBlockedByClient   = "BLOCKED_BY_CLIENT"
	ErrCodeUnknown           = "UNKNOWN"
	ErrCodeBrowserCrash      = "BROWSER_CRASH"
	ErrCodeInvalidInput      = "INVALID_INPUT"
)

// Caller-facing messages. These strings are part of the public API.
const (
	MsgTimeout           = "Page load timed out after 30 seconds"
	MsgDomainNotFound    = "Domain does not exist"
	MsgConnectionRefused = "Connection refused by server"
	MsgCertificate       = "SSL certificate error"
	MsgBlockedByClient   = "Request blocked by client"
	MsgUnknown           = "Unknown error during audit"

	MsgURLRequired      = "URL is required and must be a string"
	MsgInvalidURL       = "Invalid URL format"
	MsgMethodNotAllowed = "Method not allowed. Use POST."
	MsgNotFound         = "Endpoint not found"
	MsgInternal         = "Internal server error"
	MsgRateLimited      = "Rate limit exceeded"
)

// AuditError is the internal error type carrying an error code and the
// message shown to callers. It supports error wrapping via Unwrap.
type AuditError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *AuditError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AuditError) Unwrap() error {
	return e.Err
}

// NewAuditError creates a new AuditError.
func NewAuditError(code, message string, err error) *AuditError {
	return &AuditError{Code: code, Message: message, Err: err}
}
