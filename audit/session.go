package audit

import (
	"context"
	"time"
)

// Spawner hands out isolated, single-use page sessions.
// Implementations must be safe for concurrent use.
type Spawner interface {
	Spawn(ctx context.Context) (Session, error)
}

// Session is one isolated browsing context bound to a single audit.
// It is owned by exactly one Run call and closed before Run returns.
type Session interface {
	// SetUserAgent overrides the UA string presented to the target.
	SetUserAgent(ua string) error

	// Intercept enables request interception. Every request is observed
	// and continued unchanged.
	Intercept() error

	// OnRequestFailed registers fn for every failed sub-request for the
	// rest of the session's life. fn runs on the session's event goroutine.
	OnRequestFailed(fn func(errorText string))

	// Navigate loads url and blocks until the network has been quiet for
	// idle, or ctx is done.
	Navigate(ctx context.Context, url string, idle time.Duration) (Response, error)

	// HTML returns the rendered page markup.
	HTML() (string, error)

	// Close releases the session. Only the first call has any effect.
	Close() error
}

// Response is the top-level navigation response.
type Response interface {
	// SecurityDetails returns the TLS details of the response, nil when
	// the response carried none, or an error when they cannot be read.
	SecurityDetails() (*SecurityDetails, error)
}

// SecurityDetails is the TLS metadata of an HTTPS response.
type SecurityDetails struct {
	Protocol    string
	SubjectName string
	Issuer      string
	ValidTo     time.Time
}

// NavigationOutcome is what Navigate produced for one audit.
type NavigationOutcome struct {
	Response Response
	LoadTime time.Duration

	// SSLFailure is the error text of the first sub-request that failed
	// with an SSL error, or "" when none did.
	SSLFailure string
}
