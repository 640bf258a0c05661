package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/pageaudit/audit"
	"github.com/use-agent/pageaudit/config"
	"github.com/use-agent/pageaudit/models"
)

// launchLocal starts a browser from a locally installed Chrome/Chromium.
// Tests using it are skipped when none is installed or in -short mode.
func launchLocal(t *testing.T) *Manager {
	t.Helper()
	if testing.Short() {
		t.Skip("real browser tests are skipped in -short mode")
	}
	bin, found := launcher.LookPath()
	if !found {
		t.Skip("no local Chrome/Chromium binary")
	}

	m, err := Launch(context.Background(), config.BrowserConfig{
		Headless:       true,
		NoSandbox:      true,
		BrowserBin:     bin,
		StartupTimeout: 30 * time.Second,
	})
	if err != nil {
		t.Skipf("browser could not be launched: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func testAuditConfig(timeout time.Duration) config.AuditConfig {
	return config.AuditConfig{
		NavigationTimeout: timeout,
		IdleWindow:        500 * time.Millisecond,
		UserAgent:         config.DefaultUserAgent,
		MaxEmails:         5,
	}
}

func newSiteServer(t *testing.T) *httptest.Server {
	t.Helper()
	release := make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<!doctype html><html><body>
<h1>Welcome</h1><section><h1>About</h1></section>
<a href="mailto:info@example.com">info@example.com</a>
<p>sales@example.com, info@example.com</p>
</body></html>`)
	})
	mux.HandleFunc("/broken-image", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<!doctype html><html><body><img src="http://127.0.0.1:1/pixel.png"></body></html>`)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })
	return srv
}

func TestRealBrowser_Audit(t *testing.T) {
	m := launchLocal(t)
	site := newSiteServer(t)

	t.Run("rendered page", func(t *testing.T) {
		res, err := audit.New(m, testAuditConfig(15*time.Second)).Run(context.Background(), site.URL)
		require.NoError(t, err)

		assert.Equal(t, []string{"info@example.com", "sales@example.com"}, res.Emails)
		assert.Equal(t, 2, res.H1Count)
		assert.False(t, res.SSL)
		assert.GreaterOrEqual(t, res.LoadTime, 0.0)
	})

	failures := []struct {
		name    string
		url     string
		timeout time.Duration
		want    string
	}{
		{"connection refused", "http://127.0.0.1:1", 15 * time.Second, models.MsgConnectionRefused},
		{"unresolvable host", "http://pageaudit-test.invalid", 15 * time.Second, models.MsgDomainNotFound},
		{"navigation timeout", site.URL + "/slow", time.Second, models.MsgTimeout},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			_, err := audit.New(m, testAuditConfig(tt.timeout)).Run(context.Background(), tt.url)

			var ae *models.AuditError
			require.True(t, errors.As(err, &ae), "got %v", err)
			assert.Equal(t, tt.want, ae.Message)
		})
	}

	assert.Zero(t, m.ActiveSessions())
}

func TestRealBrowser_SessionObservesNetwork(t *testing.T) {
	m := launchLocal(t)
	site := newSiteServer(t)

	sess, err := m.Spawn(context.Background())
	require.NoError(t, err)
	defer sess.Close()

	require.NoError(t, sess.Intercept())
	failed := make(chan string, 8)
	sess.OnRequestFailed(func(errorText string) {
		select {
		case failed <- errorText:
		default:
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	resp, err := sess.Navigate(ctx, site.URL+"/broken-image", 500*time.Millisecond)
	require.NoError(t, err)

	// The document response was captured while interception was active.
	details, err := resp.SecurityDetails()
	require.NoError(t, err)
	assert.Nil(t, details)
	assert.Positive(t, sess.(*session).requests.Load())

	select {
	case text := <-failed:
		assert.Contains(t, text, "ERR_CONNECTION_REFUSED")
	case <-time.After(5 * time.Second):
		t.Fatal("failed sub-request was not reported")
	}
}
