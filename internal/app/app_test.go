package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmasight/pharmasight/internal/observability"
	"github.com/pharmasight/pharmasight/jobs"
	_ "github.com/pharmasight/pharmasight/testing"
)

func TestTestModeFromBlankImport(t *testing.T) {
	RefreshTestMode()
	assert.True(t, InTestMode())

	t.Cleanup(RefreshTestMode)
	t.Setenv(testModeEnv, "0")
	RefreshTestMode()
	assert.False(t, InTestMode())
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DIGEST_USERS", "thandi, ,sipho")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 30*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, 8, cfg.GroupConcurrency)
	assert.Equal(t, []string{"thandi", "sipho"}, cfg.DigestUsers)
	assert.False(t, cfg.CacheEnabled(), "caching is opt-in")
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRequiresAPIKey(t *testing.T) {
	t.Setenv("UPSTREAM_API_KEY", "")
	_, err := LoadConfig()
	require.Error(t, err)

	t.Setenv("UPSTREAM_API_KEY", "secret")
	t.Setenv("UPSTREAM_BASE_URL", "not a url")
	_, err = LoadConfig()
	require.Error(t, err)
}

func TestQueueRedis(t *testing.T) {
	opt, err := (&Config{RedisAddr: "10.0.0.5:6379"}).QueueRedis()
	require.NoError(t, err)
	assert.Equal(t, asynq.RedisClientOpt{Addr: "10.0.0.5:6379"}, opt)

	opt, err = (&Config{RedisAddr: "redis://:pw@cache:6380/2"}).QueueRedis()
	require.NoError(t, err)
	client, ok := opt.(asynq.RedisClientOpt)
	require.True(t, ok)
	assert.Equal(t, "cache:6380", client.Addr)
	assert.Equal(t, 2, client.DB)

	_, err = (&Config{}).QueueRedis()
	require.Error(t, err)
}

func TestCacheEnabled(t *testing.T) {
	cfg := &Config{RedisAddr: "127.0.0.1:6379", UpstreamCacheTTL: time.Minute}
	assert.True(t, cfg.CacheEnabled())
	cfg.RedisAddr = ""
	assert.False(t, cfg.CacheEnabled())
}

func TestNewLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogFormat: "json", AppEnv: "test"}, &buf)
	logger.Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "test", entry["env"])

	buf.Reset()
	newLogger(&Config{LogFormat: "pretty"}, &buf).Info("plain")
	assert.Contains(t, buf.String(), "msg=plain")
}

func TestRouterServesHealthMetricsAndJobs(t *testing.T) {
	cfg := &Config{AppEnv: "production", AppRequestTimeout: time.Second, AllowedOrigins: []string{"https://dash.example"}}
	router := NewRouter(RouterParams{
		Config:     cfg,
		JobHandler: jobs.NewHandler(nil, nil),
		Metrics:    observability.NewMetrics(),
	})

	req := httptest.NewRequest(http.MethodGet, "https://pharmasight.local/healthz", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, strings.TrimSpace(rr.Body.String()))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))

	req = httptest.NewRequest(http.MethodGet, "https://pharmasight.local/jobs/health", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"queue":"default"`)

	req = httptest.NewRequest(http.MethodGet, "https://pharmasight.local/metrics", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "pharmasight_http_requests_total")

	req = httptest.NewRequest(http.MethodGet, "https://pharmasight.local/nope", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
}

func TestRouterCORSExposesViewHeader(t *testing.T) {
	router := NewRouter(RouterParams{Config: &Config{AllowedOrigins: []string{"https://dash.example"}}})

	req := httptest.NewRequest(http.MethodOptions, "/healthz", nil)
	req.Header.Set("Origin", "https://dash.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", "X-View-ID")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, "https://dash.example", rr.Header().Get("Access-Control-Allow-Origin"))
}
