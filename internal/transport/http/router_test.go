package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surveykit/internal/config"
	"surveykit/internal/pathmodel"
	"surveykit/internal/pipeline"
	"surveykit/internal/survey"
)

func serverConfig() config.ServerConfig {
	return config.ServerConfig{
		Port: 8080,
		RateLimit: config.RateLimitConfig{
			Enabled: true,
			RPS:     100,
			Burst:   50,
		},
	}
}

func sampleResults() *pipeline.Results {
	return &pipeline.Results{
		RunID:       "run-123",
		Study:       "wave 12",
		GeneratedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		Respondents: 400,
		Reliability: []survey.ReliabilityResult{
			{Index: "brand_image", Alpha: 0.84, N: 390, Items: 4, Acceptable: true},
		},
		Model: &pathmodel.FitResult{
			ModelName: "full",
			Edges: []pathmodel.EdgeResult{{
				Outcome: "q2_opinion",
				Status:  pathmodel.StatusOK,
				N:       390,
				Coefficients: []pathmodel.Coefficient{
					{Predictor: "q1_familiarity", Beta: 0.61, SE: 0.04},
				},
			}},
		},
	}
}

func newTestServer(t *testing.T, store *ResultsStore) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewRouter(serverConfig(), store, slog.Default()))
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestRunMetadata(t *testing.T) {
	store := NewResultsStore()
	store.Publish(sampleResults())
	srv := newTestServer(t, store)

	var body map[string]any
	status := getJSON(t, srv.URL+"/api/results/", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "run-123", body["run_id"])
	assert.Equal(t, float64(400), body["respondents"])
}

func TestPathsEndpoint(t *testing.T) {
	store := NewResultsStore()
	store.Publish(sampleResults())
	srv := newTestServer(t, store)

	var fit pathmodel.FitResult
	status := getJSON(t, srv.URL+"/api/results/paths", &fit)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, fit.Edges, 1)
	assert.Equal(t, "q2_opinion", fit.Edges[0].Outcome)
}

func TestReliabilityEndpoint(t *testing.T) {
	store := NewResultsStore()
	store.Publish(sampleResults())
	srv := newTestServer(t, store)

	var rel []survey.ReliabilityResult
	status := getJSON(t, srv.URL+"/api/results/reliability", &rel)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, rel, 1)
	assert.Equal(t, "brand_image", rel[0].Index)
}

func TestNoRunYet(t *testing.T) {
	srv := newTestServer(t, NewResultsStore())

	for _, path := range []string{
		"/api/results/", "/api/results/paths", "/api/results/mediation",
	} {
		status := getJSON(t, srv.URL+path, nil)
		assert.Equal(t, http.StatusNotFound, status, path)
	}
}

func TestFactorsAbsent(t *testing.T) {
	store := NewResultsStore()
	store.Publish(sampleResults())
	srv := newTestServer(t, store)

	status := getJSON(t, srv.URL+"/api/results/factors", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHealthEndpoint(t *testing.T) {
	store := NewResultsStore()
	srv := newTestServer(t, store)

	var body map[string]any
	status := getJSON(t, srv.URL+"/api/health", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "no_run", body["status"])

	store.Publish(sampleResults())
	status = getJSON(t, srv.URL+"/api/health", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "run-123", body["run_id"])
}

func TestRateLimitRejects(t *testing.T) {
	cfg := serverConfig()
	cfg.RateLimit.RPS = 1
	cfg.RateLimit.Burst = 1
	store := NewResultsStore()
	store.Publish(sampleResults())
	srv := httptest.NewServer(NewRouter(cfg, store, slog.Default()))
	t.Cleanup(srv.Close)

	first := getJSON(t, srv.URL+"/api/health", nil)
	assert.Equal(t, http.StatusOK, first)

	limited := false
	for i := 0; i < 5; i++ {
		if getJSON(t, srv.URL+"/api/health", nil) == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	assert.True(t, limited, "burst of requests should hit the limiter")
}
