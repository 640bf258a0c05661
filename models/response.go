package models

// AuditResponse is the response for POST /audit.
type AuditResponse struct {
	// Success reports whether the target page could be assessed.
	Success bool `json:"success"`

	// Data is populated only when Success is true.
	Data *AuditResult `json:"data,omitempty"`

	// Error is a human-readable message, populated only when Success is false.
	Error string `json:"error,omitempty"`
}

// AuditResult holds the page-level signals collected by one audit.
type AuditResult struct {
	// Emails are the distinct addresses found in the rendered markup,
	// in document order, at most five.
	Emails []string `json:"emails"`

	// LoadTime is the navigation time in seconds, rounded to 2 decimals.
	LoadTime float64 `json:"load_time"`

	// SSL reports whether the page was served over valid HTTPS.
	SSL bool `json:"ssl"`

	// H1Count is the number of h1 elements in the rendered DOM.
	H1Count int `json:"h1_count"`
}

// ErrorResponse is the bare error body used for 404 and 429 responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status         string `json:"status"`
	Service        string `json:"service"`
	Uptime         string `json:"uptime"`
	ActiveSessions int    `json:"active_sessions"`
}
