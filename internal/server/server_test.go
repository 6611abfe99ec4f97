package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"funnel-coach/internal/common/config"
	"funnel-coach/internal/common/logger"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "funnel-coach", Version: "test", Environment: "development"},
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            0,
			ReadTimeout:     1000,
			WriteTimeout:    1000,
			ShutdownTimeout: 1000,
		},
	}
}

func setupServer(t *testing.T, deps Deps) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.NewRegistry()
	}
	return New(testConfig(), deps, logger.NewTestLogger(t))
}

func do(s *Server, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestIndex(t *testing.T) {
	s := setupServer(t, Deps{})

	w := do(s, http.MethodGet, "/", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "<h1>Funnel Coach</h1>")
	assert.Contains(t, w.Body.String(), "funnel-coach test")
}

func TestHealth(t *testing.T) {
	s := setupServer(t, Deps{})

	w := do(s, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReady(t *testing.T) {
	tests := []struct {
		name   string
		deps   Deps
		status int
		cache  string
	}{
		{name: "cache disabled", deps: Deps{AIConfigured: true}, status: http.StatusOK, cache: "disabled"},
		{
			name:   "cache reachable",
			deps:   Deps{Cache: pingerFunc(func(context.Context) error { return nil })},
			status: http.StatusOK,
			cache:  "ok",
		},
		{
			name:   "cache unreachable",
			deps:   Deps{Cache: pingerFunc(func(context.Context) error { return errors.New("connection refused") })},
			status: http.StatusServiceUnavailable,
			cache:  "unreachable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupServer(t, tt.deps)

			w := do(s, http.MethodGet, "/ready", nil)

			assert.Equal(t, tt.status, w.Code)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.cache, body["cache"])
			assert.Equal(t, tt.deps.AIConfigured, body["aiConfigured"])
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_events_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	s := setupServer(t, Deps{Gatherer: reg})

	w := do(s, http.MethodGet, "/metrics", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test_events_total 1")
}

func TestRequestID(t *testing.T) {
	s := setupServer(t, Deps{})

	w := do(s, http.MethodGet, "/health", map[string]string{HeaderRequestID: "abc-123"})
	assert.Equal(t, "abc-123", w.Header().Get(HeaderRequestID))

	w = do(s, http.MethodGet, "/health", nil)
	_, err := uuid.Parse(w.Header().Get(HeaderRequestID))
	assert.NoError(t, err)

	w = do(s, http.MethodGet, "/health", map[string]string{HeaderRequestID: strings.Repeat("x", 500)})
	_, err = uuid.Parse(w.Header().Get(HeaderRequestID))
	assert.NoError(t, err, "oversized ids are replaced")
}

func TestAnalyzeRouteDispatches(t *testing.T) {
	var gotRequestID string
	s := setupServer(t, Deps{Analyze: func(c *gin.Context) {
		gotRequestID = c.GetString(ContextKeyID)
		c.JSON(http.StatusOK, gin.H{"analysis_text": "Success text"})
	}})

	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"analysis_text":"Success text"}`, w.Body.String())
	assert.NotEmpty(t, gotRequestID)
}

func TestErrorPages(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		path    string
		headers map[string]string
		status  int
		json    bool
	}{
		{name: "404 html for browsers", method: http.MethodGet, path: "/nope", headers: map[string]string{"Accept": "text/html,application/xhtml+xml,*/*;q=0.8"}, status: http.StatusNotFound},
		{name: "404 html without accept", method: http.MethodGet, path: "/nope", status: http.StatusNotFound},
		{name: "404 json when preferred", method: http.MethodGet, path: "/nope", headers: map[string]string{"Accept": "application/json"}, status: http.StatusNotFound, json: true},
		{name: "404 json for json body", method: http.MethodPost, path: "/nope", headers: map[string]string{"Content-Type": "application/json"}, status: http.StatusNotFound, json: true},
		{name: "405 json under analyze", method: http.MethodGet, path: "/analyze", status: http.StatusMethodNotAllowed, json: true},
		{name: "405 html elsewhere", method: http.MethodPost, path: "/health", headers: map[string]string{"Accept": "text/html"}, status: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupServer(t, Deps{Analyze: func(c *gin.Context) { c.Status(http.StatusOK) }})

			w := do(s, tt.method, tt.path, tt.headers)

			assert.Equal(t, tt.status, w.Code)
			if tt.json {
				var body map[string]interface{}
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
				assert.NotEmpty(t, body["error"])
				return
			}
			assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
			assert.Contains(t, w.Body.String(), http.StatusText(tt.status))
		})
	}
}

func TestPanicRecovery(t *testing.T) {
	s := setupServer(t, Deps{})
	s.router.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w := do(s, http.MethodGet, "/boom", map[string]string{"Accept": "application/json"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "kaboom")

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body["error"])

	w = do(s, http.MethodGet, "/boom", map[string]string{"Accept": "text/html"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Internal Server Error")
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	s := setupServer(t, Deps{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
