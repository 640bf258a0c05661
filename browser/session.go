package browser

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/pageaudit/audit"
	"github.com/ysmood/gson"
)

// errNoResponse is returned by SecurityDetails when no main document
// response was observed during navigation.
var errNoResponse = errors.New("browser: no document response observed")

// session is one incognito context + page, used for exactly one audit.
type session struct {
	mgr       *Manager
	incognito *rod.Browser
	page      *rod.Page

	// events is the page bound to a context cancelled on Close, so every
	// listener goroutine ends with the session.
	events     *rod.Page
	stopEvents context.CancelFunc

	// releaseNetwork disables the Network domain pinned by newSession.
	releaseNetwork func()

	router   *rod.HijackRouter
	requests atomic.Int64
	document atomic.Pointer[proto.NetworkResponse]

	closeOnce sync.Once
	closeErr  error
}

// newSession wires the document-response listener and the per-session
// extras (stealth, extra headers). Listeners must exist before Navigate.
//
// The Network domain is enabled once, here, before Intercept enables Fetch,
// and stays enabled until Close. rod's EachEvent and WaitRequestIdle only
// toggle a domain they enabled themselves, so no listener can disable
// Network while Fetch holds a paused request. Disabling it mid-navigation
// is what fails requests with ERR_BLOCKED_BY_CLIENT.
func newSession(m *Manager, incognito *rod.Browser, page *rod.Page) *session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		mgr:            m,
		incognito:      incognito,
		page:           page,
		events:         page.Context(ctx),
		stopEvents:     cancel,
		releaseNetwork: page.EnableDomain(&proto.NetworkEnable{}),
	}

	if m.cfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}

	if m.cfg.AcceptLanguage != "" {
		if err := (proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(map[string]string{"Accept-Language": m.cfg.AcceptLanguage}),
		}).Call(page); err != nil {
			slog.Warn("failed to set extra headers", "error", err)
		}
	}

	go s.events.EachEvent(func(e *proto.NetworkResponseReceived) {
		if e.Type == proto.NetworkResourceTypeDocument && e.FrameID == page.FrameID {
			s.document.Store(e.Response)
		}
	})()

	return s
}

func (s *session) SetUserAgent(ua string) error {
	return s.page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua})
}

// Intercept mounts a hijack router that counts and continues every request.
func (s *session) Intercept() error {
	router := s.page.HijackRequests()
	if err := router.Add("*", "", func(h *rod.Hijack) {
		s.requests.Add(1)
		h.ContinueRequest(&proto.FetchContinueRequest{})
	}); err != nil {
		return err
	}

	// router.Run() blocks until router.Stop().
	go router.Run()
	s.router = router
	return nil
}

func (s *session) OnRequestFailed(fn func(errorText string)) {
	go s.events.EachEvent(func(e *proto.NetworkLoadingFailed) {
		fn(e.ErrorText)
	})()
}

// Navigate loads url and waits for the network to go quiet for idle.
// The idle waiter is registered before navigation so that in-flight
// requests started by the load are not missed.
func (s *session) Navigate(ctx context.Context, url string, idle time.Duration) (audit.Response, error) {
	p := s.page.Context(ctx)

	waitIdle := p.WaitRequestIdle(idle, nil, nil, nil)
	if err := p.Navigate(url); err != nil {
		return nil, err
	}
	waitIdle()

	// waitIdle returns silently when ctx expires.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slog.Debug("navigation settled", "url", url, "requests", s.requests.Load())
	return &response{raw: s.document.Load()}, nil
}

func (s *session) HTML() (string, error) {
	return s.page.HTML()
}

// Close stops listeners and the hijack router, closes the page and
// disposes the incognito context. Only the first call has any effect.
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		s.stopEvents()
		var errs []error
		if s.router != nil {
			if err := s.router.Stop(); err != nil {
				errs = append(errs, err)
			}
		}
		s.releaseNetwork()
		if err := s.page.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := s.incognito.Close(); err != nil {
			errs = append(errs, err)
		}
		s.mgr.active.Add(-1)
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

// response adapts the observed main document response.
type response struct {
	raw *proto.NetworkResponse
}

func (r *response) SecurityDetails() (*audit.SecurityDetails, error) {
	if r.raw == nil {
		return nil, errNoResponse
	}
	sd := r.raw.SecurityDetails
	if sd == nil {
		return nil, nil
	}
	return &audit.SecurityDetails{
		Protocol:    sd.Protocol,
		SubjectName: sd.SubjectName,
		Issuer:      sd.Issuer,
		ValidTo:     sd.ValidTo.Time(),
	}, nil
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
