// Package audit drives a browser session through a single-page audit and
// turns every failure into a stable, caller-facing category.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/use-agent/pageaudit/config"
	"github.com/use-agent/pageaudit/extract"
	"github.com/use-agent/pageaudit/models"
)

// Orchestrator runs audits against sessions obtained from a Spawner.
// It holds no per-audit state and is safe for concurrent use.
type Orchestrator struct {
	spawner Spawner
	cfg     config.AuditConfig
	now     func() time.Time
}

// New creates an Orchestrator.
func New(spawner Spawner, cfg config.AuditConfig) *Orchestrator {
	return &Orchestrator{
		spawner: spawner,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Run audits rawURL.
//
// Every returned error is a *models.AuditError. An invalid URL yields
// ErrCodeInvalidInput before any browser work; everything after that is
// classified into one of the Kind categories.
//
// Lifecycle:
//
//  1. Normalize        – trim, default to https://, validate
//  2. Spawn            – isolated page session
//  3. DEFER: Close     – exactly once, on every path
//  4. Configure        – desktop UA + request interception
//  5. Observe          – latch the first SSL sub-request failure
//  6. Navigate         – wait for network idle, bounded by NavigationTimeout
//  7. SSL status       – scheme + security details of the response
//  8. Extract          – emails and h1 count from the rendered markup
func (o *Orchestrator) Run(ctx context.Context, rawURL string) (result *models.AuditResult, err error) {
	// ── 1. Normalize ─────────────────────────────────────────────────
	target, nerr := Normalize(rawURL)
	if nerr != nil {
		return nil, models.NewAuditError(models.ErrCodeInvalidInput, models.MsgInvalidURL, nerr)
	}

	log := slog.With("url", target)
	if id, ok := ctx.Value(RequestIDKey).(string); ok && id != "" {
		log = log.With("request_id", id)
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("audit panicked", "panic", r)
			result, err = nil, models.NewAuditError(models.ErrCodeUnknown, models.MsgUnknown, fmt.Errorf("panic: %v", r))
		}
	}()

	// ── 2. Spawn session ─────────────────────────────────────────────
	sess, serr := o.spawner.Spawn(ctx)
	if serr != nil {
		log.Error("failed to spawn page session", "error", serr)
		return nil, classifyError(serr)
	}

	// ── 3. Release on every path ─────────────────────────────────────
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			log.Warn("failed to close page session", "error", cerr)
		}
	}()

	// ── 4. Configure ─────────────────────────────────────────────────
	if uerr := sess.SetUserAgent(o.cfg.UserAgent); uerr != nil {
		log.Warn("failed to set user agent", "error", uerr)
		return nil, classifyError(uerr)
	}
	if ierr := sess.Intercept(); ierr != nil {
		log.Warn("failed to enable request interception", "error", ierr)
		return nil, classifyError(ierr)
	}

	// ── 5. Observe failed sub-requests ───────────────────────────────
	var sslFailure latch
	sess.OnRequestFailed(func(errorText string) {
		if strings.Contains(errorText, "SSL") {
			sslFailure.Set(errorText)
		}
	})

	// ── 6. Navigate ──────────────────────────────────────────────────
	outcome, navErr := o.navigate(ctx, sess, target)
	if navErr != nil {
		ae := classifyError(navErr)
		log.Info("audit navigation failed", "kind", ae.Code, "error", navErr)
		return nil, ae
	}
	outcome.SSLFailure, _ = sslFailure.Get()

	// ── 7. SSL status ────────────────────────────────────────────────
	ssl := o.sslStatus(log, target, outcome)

	// ── 8. Extract ───────────────────────────────────────────────────
	rawHTML, herr := sess.HTML()
	if herr != nil {
		ae := classifyError(herr)
		log.Warn("failed to read rendered HTML", "kind", ae.Code, "error", herr)
		return nil, ae
	}

	result = &models.AuditResult{
		Emails:   extract.Emails(rawHTML, o.cfg.MaxEmails),
		LoadTime: roundSeconds(outcome.LoadTime),
		SSL:      ssl,
		H1Count:  extract.HeadingCount(rawHTML),
	}
	log.Info("audit completed",
		"load_time", result.LoadTime,
		"ssl", result.SSL,
		"h1_count", result.H1Count,
		"emails", len(result.Emails),
	)
	return result, nil
}

// navigate loads target under its own timeout. The deadline is detached
// from the caller's cancellation: once started, navigation runs until it
// settles or NavigationTimeout elapses.
func (o *Orchestrator) navigate(ctx context.Context, sess Session, target string) (*NavigationOutcome, error) {
	navCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.NavigationTimeout)
	defer cancel()

	start := o.now()
	resp, err := sess.Navigate(navCtx, target, o.cfg.IdleWindow)
	elapsed := o.now().Sub(start)
	if err != nil {
		return nil, err
	}
	if elapsed < 0 {
		elapsed = 0
	}
	return &NavigationOutcome{Response: resp, LoadTime: elapsed}, nil
}

// sslStatus decides the ssl flag. Plain HTTP is never SSL. For HTTPS the
// response's security details decide, failing open when they cannot be
// read. A latched sub-request SSL failure skips the details check and
// leaves ssl true.
func (o *Orchestrator) sslStatus(log *slog.Logger, target string, outcome *NavigationOutcome) bool {
	isSSL := strings.HasPrefix(target, "https://")
	if !isSSL {
		return false
	}

	if outcome.SSLFailure != "" {
		log.Warn("sub-request failed with SSL error", "error_text", outcome.SSLFailure)
		return isSSL
	}

	if outcome.Response == nil {
		log.Debug("no navigation response, assuming valid SSL")
		return true
	}
	details, err := outcome.Response.SecurityDetails()
	if err != nil {
		log.Debug("security details unavailable, assuming valid SSL", "error", err)
		return true
	}
	return details != nil
}

func roundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}

type ctxKey struct{}

// RequestIDKey is the context key under which the HTTP layer stores the
// request id; Run adds it to its log lines.
var RequestIDKey = ctxKey{}
