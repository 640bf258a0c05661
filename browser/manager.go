// Package browser owns the process-wide headless browser and spawns
// isolated page sessions from it.
package browser

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/pageaudit/audit"
	"github.com/use-agent/pageaudit/config"
	"github.com/use-agent/pageaudit/models"
)

// ErrClosed is returned by Spawn after Close.
var ErrClosed = errors.New("browser: manager is closed")

// Manager holds the single shared browser for the process lifetime.
// It is safe for concurrent use.
type Manager struct {
	mu       sync.RWMutex
	browser  *rod.Browser
	launcher *launcher.Launcher
	cfg      config.BrowserConfig
	active   atomic.Int32
}

// compatFlags are required to run Chromium inside a restricted container.
var compatFlags = []flags.Flag{
	"disable-dev-shm-usage",
	"disable-gpu",
	"disable-accelerated-2d-canvas",
	"no-first-run",
	"no-default-browser-check",
	"no-zygote",
}

// Launch starts the browser and connects to it. Launching and connecting
// together are bounded by cfg.StartupTimeout.
func Launch(ctx context.Context, cfg config.BrowserConfig) (*Manager, error) {
	if cfg.StartupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.StartupTimeout)
		defer cancel()
	}

	l := newLauncher(cfg).Context(ctx)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewAuditError(
			models.ErrCodeBrowserCrash,
			"failed to launch browser",
			err,
		)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	// The browser's event bus lives as long as its context, so the startup
	// deadline is applied around Connect rather than bound to the browser.
	b := rod.New().ControlURL(controlURL)
	connected := make(chan error, 1)
	go func() { connected <- b.Connect() }()

	select {
	case err = <-connected:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		l.Kill()
		return nil, models.NewAuditError(
			models.ErrCodeBrowserCrash,
			"failed to connect to browser",
			err,
		)
	}

	return &Manager{
		browser:  b,
		launcher: l,
		cfg:      cfg,
	}, nil
}

// newLauncher builds the launcher with sandboxing and compatibility flags.
func newLauncher(cfg config.BrowserConfig) *launcher.Launcher {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.NoSandbox {
		l.Set(flags.Flag("disable-setuid-sandbox"))
	}
	for _, f := range compatFlags {
		l.Set(f)
	}
	l.Delete(flags.Flag("enable-automation"))
	return l
}

// Spawn creates an isolated incognito context with one page in it.
func (m *Manager) Spawn(ctx context.Context) (audit.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	b := m.browser
	m.mu.RUnlock()
	if b == nil {
		return nil, ErrClosed
	}

	incognito, err := b.Incognito()
	if err != nil {
		return nil, models.NewAuditError(
			models.ErrCodeBrowserCrash,
			"failed to create browser context",
			err,
		)
	}

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = incognito.Close()
		return nil, models.NewAuditError(
			models.ErrCodeBrowserCrash,
			"failed to create page",
			err,
		)
	}

	m.active.Add(1)
	return newSession(m, incognito, page), nil
}

// ActiveSessions reports how many sessions are currently open.
func (m *Manager) ActiveSessions() int {
	if m == nil {
		return 0
	}
	return int(m.active.Load())
}

// Close closes the browser and cleans up the launcher. It is safe to call
// on a nil Manager and more than once.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	b, l := m.browser, m.launcher
	m.browser, m.launcher = nil, nil
	m.mu.Unlock()

	if b == nil {
		return nil
	}

	slog.Info("browser shutting down", "activeSessions", m.active.Load())
	err := b.Close()
	if l != nil {
		if err != nil {
			l.Kill()
		}
		l.Cleanup()
	}
	slog.Info("browser shutdown complete")
	return err
}
