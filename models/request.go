package models

// AuditRequest is the payload for POST /audit.
//
// URL is decoded as an arbitrary JSON value so the handler can reject
// non-string values with a stable message instead of a decoder error.
type AuditRequest struct {
	URL any `json:"url"`
}
