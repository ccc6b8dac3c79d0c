package middleware

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "eexcot/internal/errors"
	"eexcot/internal/infrastructure"
	"eexcot/internal/shared/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRequestID(t *testing.T) {
	long := strings.Repeat("x", 129)

	tests := []struct {
		name     string
		header   string
		wantSame bool
	}{
		{name: "generated when absent"},
		{name: "caller id kept", header: "run-42", wantSame: true},
		{name: "oversized id replaced", header: long},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen, traceID string
			handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetRequestID(r.Context())
				traceID = infrastructure.GetTraceID(r.Context())
			}))

			r := httptest.NewRequest(http.MethodGet, "/api/instruments", nil)
			if tt.header != "" {
				r.Header.Set(RequestIDHeader, tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)

			require.NotEmpty(t, seen)
			assert.Equal(t, seen, traceID)
			assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
			if tt.wantSame {
				assert.Equal(t, tt.header, seen)
			} else {
				assert.NotEqual(t, tt.header, seen)
				assert.LessOrEqual(t, len(seen), 128)
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	rl := NewRateLimiter(0.5, 1, logger)

	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/instruments/DEBM/snapshots", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/instruments/DEBM/snapshots", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, apierrors.TypeRateLimit, body["type"])
	assert.EqualValues(t, http.StatusTooManyRequests, body["status"])

	testutil.AssertLogContains(t, logs, slog.LevelWarn, "rate limit exceeded")
	testutil.AssertLogAttr(t, logs, "component", "rate_limiter")
}

func TestTimeout(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)

	var deadline time.Time
	var ok bool
	handler := Timeout(10*time.Millisecond, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
		<-r.Context().Done()
		w.WriteHeader(http.StatusGatewayTimeout)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/instruments", nil))

	assert.True(t, ok)
	assert.False(t, deadline.IsZero())
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	testutil.AssertLogContains(t, logs, slog.LevelWarn, "request exceeded its deadline")
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		origins    []string
		method     string
		origin     string
		wantStatus int
		wantAllow  string
	}{
		{
			name:       "no configured origins",
			method:     http.MethodGet,
			origin:     "http://example.com",
			wantStatus: http.StatusOK,
		},
		{
			name:       "allowed origin",
			origins:    []string{"http://localhost:8080"},
			method:     http.MethodGet,
			origin:     "http://localhost:8080",
			wantStatus: http.StatusOK,
			wantAllow:  "http://localhost:8080",
		},
		{
			name:       "rejected origin",
			origins:    []string{"http://localhost:8080"},
			method:     http.MethodGet,
			origin:     "http://evil.example",
			wantStatus: http.StatusOK,
		},
		{
			name:       "preflight",
			origins:    []string{"*"},
			method:     http.MethodOptions,
			origin:     "http://dashboard.local",
			wantStatus: http.StatusNoContent,
			wantAllow:  "http://dashboard.local",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := CORS(CORSConfig{AllowedOrigins: tt.origins, Logger: quietLogger()})(next)

			r := httptest.NewRequest(tt.method, "/api/instruments", nil)
			r.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantAllow, w.Header().Get("Access-Control-Allow-Origin"))
			if tt.wantAllow != "" {
				assert.Equal(t, "Origin", w.Header().Get("Vary"))
				assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), RequestIDHeader)
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
}

func TestOTelMiddlewareRecordsRoute(t *testing.T) {
	providers, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { providers.Shutdown(context.Background()) })

	metrics, err := infrastructure.NewIngestMetrics(providers.Meter)
	require.NoError(t, err)

	mw, err := NewOTelMiddleware(providers, metrics)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(mw.Handler)
	r.Get("/api/instruments/{code}/series", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[]"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/instruments/DEBM/series", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	assert.Contains(t, body, "http_requests_total")
	assert.Contains(t, body, `route="/api/instruments/{code}/series"`)
	assert.NotContains(t, body, "/api/instruments/DEBM/series")
}

func TestNewOTelMiddlewareRequiresProviders(t *testing.T) {
	_, err := NewOTelMiddleware(nil, nil)
	assert.Error(t, err)
}

func TestGetRealIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1:1234", GetRealIP(r))

	r.Header.Set("X-Real-IP", "192.0.2.7")
	assert.Equal(t, "192.0.2.7", GetRealIP(r))

	r.Header.Set("X-Forwarded-For", "198.51.100.3")
	assert.Equal(t, "198.51.100.3", GetRealIP(r))
}
