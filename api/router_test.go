package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/pageaudit/audit"
	"github.com/use-agent/pageaudit/config"
	"github.com/use-agent/pageaudit/models"
)

type fakeAuditor struct {
	run   func(ctx context.Context, rawURL string) (*models.AuditResult, error)
	calls atomic.Int32
}

func (f *fakeAuditor) Run(ctx context.Context, rawURL string) (*models.AuditResult, error) {
	f.calls.Add(1)
	return f.run(ctx, rawURL)
}

type fakeSessions struct{ n int }

func (f fakeSessions) ActiveSessions() int { return f.n }

func testConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{Mode: gin.TestMode},
		RateLimit: config.RateLimitConfig{Requests: 100, Window: 15 * time.Minute},
		CORS:      config.CORSConfig{AllowedOrigins: []string{"*"}},
	}
}

func newTestRouter(a *fakeAuditor, cfg *config.Config) *gin.Engine {
	return NewRouter(a, fakeSessions{n: 1}, cfg, time.Now())
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func successAuditor(result *models.AuditResult) *fakeAuditor {
	return &fakeAuditor{run: func(context.Context, string) (*models.AuditResult, error) {
		return result, nil
	}}
}

func TestHealth(t *testing.T) {
	r := newTestRouter(successAuditor(nil), testConfig())

	rec := do(r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "puppeteer-audit-api", body["service"])
	assert.EqualValues(t, 1, body["active_sessions"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestAudit_Success(t *testing.T) {
	a := successAuditor(&models.AuditResult{
		Emails:   []string{},
		LoadTime: 1.27,
		SSL:      true,
		H1Count:  2,
	})
	r := newTestRouter(a, testConfig())

	rec := do(r, http.MethodPost, "/audit", `{"url":"example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"success":true,"data":{"emails":[],"load_time":1.27,"ssl":true,"h1_count":2}}`,
		rec.Body.String(),
	)
}

func TestAudit_PassesRawURLAndRequestID(t *testing.T) {
	var gotURL, gotID string
	a := &fakeAuditor{run: func(ctx context.Context, rawURL string) (*models.AuditResult, error) {
		gotURL = rawURL
		gotID, _ = ctx.Value(audit.RequestIDKey).(string)
		return &models.AuditResult{Emails: []string{}}, nil
	}}
	r := newTestRouter(a, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/audit", strings.NewReader(`{"url":"  example.com "}`))
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "  example.com ", gotURL)
	assert.Equal(t, "req-42", gotID)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}

func TestAudit_MissingOrNonStringURL(t *testing.T) {
	for _, body := range []string{``, `{}`, `{"url":""}`, `{"url":42}`, `{"url":null}`, `{"url":["a"]}`, `not json`} {
		t.Run(body, func(t *testing.T) {
			a := successAuditor(nil)
			r := newTestRouter(a, testConfig())

			rec := do(r, http.MethodPost, "/audit", body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"success":false,"error":"URL is required and must be a string"}`, rec.Body.String())
			assert.Zero(t, a.calls.Load())
		})
	}
}

func TestAudit_InvalidURLFormat(t *testing.T) {
	a := &fakeAuditor{run: func(context.Context, string) (*models.AuditResult, error) {
		return nil, models.NewAuditError(models.ErrCodeInvalidInput, models.MsgInvalidURL, audit.ErrInvalidURL)
	}}
	r := newTestRouter(a, testConfig())

	rec := do(r, http.MethodPost, "/audit", `{"url":"exa mple.com"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"Invalid URL format"}`, rec.Body.String())
}

func TestAudit_ClassifiedFailuresAre200(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"dns", models.NewAuditError(models.ErrCodeDomainNotFound, models.MsgDomainNotFound, nil), "Domain does not exist"},
		{"refused", models.NewAuditError(models.ErrCodeConnectionRefused, models.MsgConnectionRefused, nil), "Connection refused by server"},
		{"timeout", models.NewAuditError(models.ErrCodeTimeout, models.MsgTimeout, nil), "Page load timed out after 30 seconds"},
		{"unwrapped", errors.New("boom"), "Unknown error during audit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &fakeAuditor{run: func(context.Context, string) (*models.AuditResult, error) {
				return nil, tt.err
			}}
			r := newTestRouter(a, testConfig())

			rec := do(r, http.MethodPost, "/audit", `{"url":"https://example.com"}`)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, `{"success":false,"error":"`+tt.want+`"}`, rec.Body.String())
		})
	}
}

func TestAudit_MethodNotAllowed(t *testing.T) {
	r := newTestRouter(successAuditor(nil), testConfig())

	for _, method := range []string{
		http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodPatch,
		http.MethodOptions, http.MethodTrace, http.MethodConnect, "PROPFIND",
	} {
		rec := do(r, method, "/audit", "")
		require.Equal(t, http.StatusMethodNotAllowed, rec.Code, method)
		assert.JSONEq(t, `{"success":false,"error":"Method not allowed. Use POST."}`, rec.Body.String())
	}

	rec := do(r, http.MethodHead, "/audit", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMethodMismatchElsewhereIsNotFound(t *testing.T) {
	r := newTestRouter(successAuditor(nil), testConfig())

	for _, path := range []string{"/health", "/metrics"} {
		rec := do(r, http.MethodPost, path, "")
		require.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.JSONEq(t, `{"error":"Endpoint not found"}`, rec.Body.String())
	}
}

func TestNotFound(t *testing.T) {
	r := newTestRouter(successAuditor(nil), testConfig())

	for _, path := range []string{"/", "/nope", "/audit/extra"} {
		rec := do(r, http.MethodGet, path, "")
		require.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.JSONEq(t, `{"error":"Endpoint not found"}`, rec.Body.String())
	}
}

func TestPanicIs500(t *testing.T) {
	a := &fakeAuditor{run: func(context.Context, string) (*models.AuditResult, error) {
		panic("unexpected")
	}}
	r := newTestRouter(a, testConfig())

	rec := do(r, http.MethodPost, "/audit", `{"url":"https://example.com"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"Internal server error"}`, rec.Body.String())
}

func TestAudit_RateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{Requests: 2, Window: time.Hour}
	a := successAuditor(&models.AuditResult{Emails: []string{}})
	r := newTestRouter(a, cfg)

	for i := 0; i < 2; i++ {
		rec := do(r, http.MethodPost, "/audit", `{"url":"example.com"}`)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := do(r, http.MethodPost, "/audit", `{"url":"example.com"}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error":"Rate limit exceeded"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.EqualValues(t, 2, a.calls.Load())

	// Health is not rate limited.
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health", "").Code)
}

func TestAudit_AuthWhenKeysConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.APIKeys = []string{"secret"}
	r := newTestRouter(successAuditor(&models.AuditResult{Emails: []string{}}), cfg)

	rec := do(r, http.MethodPost, "/audit", `{"url":"example.com"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/audit", strings.NewReader(`{"url":"example.com"}`))
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(successAuditor(nil), testConfig())

	req := httptest.NewRequest(http.MethodOptions, "/audit", nil)
	req.Header.Set("Origin", "https://dashboard.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
