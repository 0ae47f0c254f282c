package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleister1102/envdrift/internal/config"
	"github.com/aleister1102/envdrift/internal/datastore"
	"github.com/aleister1102/envdrift/internal/models"
	"github.com/aleister1102/envdrift/internal/orchestrator"
)

// recordingRunner captures the request the gateway hands off and lets
// tests decide what state to leave in the store.
type recordingRunner struct {
	mu       sync.Mutex
	requests []orchestrator.CompareRequest
	done     chan struct{}
}

func newRecordingRunner() *recordingRunner {
	return &recordingRunner{done: make(chan struct{}, 8)}
}

func (r *recordingRunner) Run(_ context.Context, req orchestrator.CompareRequest) error {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()
	r.done <- struct{}{}
	return nil
}

func (r *recordingRunner) wait(t *testing.T) orchestrator.CompareRequest {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("orchestrator was never invoked")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requests[len(r.requests)-1]
}

type testGateway struct {
	handler http.Handler
	stores  *datastore.Manager
	runner  *recordingRunner
}

func newTestGateway(t *testing.T) *testGateway {
	t.Helper()

	storageCfg := config.NewDefaultStorageConfig()
	storageCfg.RootPath = t.TempDir()
	stores := datastore.NewManager(storageCfg, zerolog.Nop())
	t.Cleanup(func() { _ = stores.Close() })

	runner := newRecordingRunner()
	server := NewServer(config.NewDefaultServerConfig(), stores, runner, zerolog.Nop())
	return &testGateway{handler: server.Routes(), stores: stores, runner: runner}
}

func (g *testGateway) post(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/compare", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	g.handler.ServeHTTP(rec, req)
	return rec
}

func (g *testGateway) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	g.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) models.CompareError {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestHealth(t *testing.T) {
	rec := newTestGateway(t).get(t, "/api/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok": true}`, rec.Body.String())
}

func TestStartCompare_Accepted(t *testing.T) {
	g := newTestGateway(t)

	rec := g.post(t, `{"leftUrl": "https://staging.example.com/api", "rightUrl": "https://prod.example.com/api", "leftLabel": "staging"}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp startResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ComparisonID)

	pairKey, ok := models.PairKeyFromComparisonID(resp.ComparisonID)
	require.True(t, ok)

	run := g.runner.wait(t)
	assert.Equal(t, resp.ComparisonID, run.ComparisonID)
	assert.Equal(t, pairKey, run.PairKey)
	assert.Equal(t, "staging", run.LeftLabel)
	assert.Equal(t, "https://prod.example.com/api", run.RightURL)
}

func TestStartCompare_MissingFields(t *testing.T) {
	rec := newTestGateway(t).post(t, `{"leftUrl": "https://a.example.com/"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	cerr := decodeError(t, rec)
	assert.Equal(t, models.CompareErrInvalidRequest, cerr.Code)
	assert.Contains(t, cerr.Message, "rightUrl")
}

func TestStartCompare_MalformedBody(t *testing.T) {
	rec := newTestGateway(t).post(t, `{not json`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, models.CompareErrInvalidRequest, decodeError(t, rec).Code)
}

func TestStartCompare_SSRFBlocked(t *testing.T) {
	g := newTestGateway(t)

	rec := g.post(t, `{"leftUrl": "http://169.254.169.254/latest/meta-data/", "rightUrl": "https://prod.example.com/api"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	cerr := decodeError(t, rec)
	assert.Equal(t, models.CompareErrSSRFBlocked, cerr.Code)
	assert.True(t, strings.HasPrefix(cerr.Message, "Invalid leftUrl:"), cerr.Message)
	assert.Empty(t, g.runner.requests)
}

func TestStartCompare_InvalidScheme(t *testing.T) {
	rec := newTestGateway(t).post(t, `{"leftUrl": "ftp://a.example.com/", "rightUrl": "https://prod.example.com/api"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, models.CompareErrInvalidURL, decodeError(t, rec).Code)
}

func TestPollCompare_Lifecycle(t *testing.T) {
	g := newTestGateway(t)

	fingerprint := models.PairFingerprint("https://a.example.com/", "https://b.example.com/")
	comparisonID := models.NewComparisonID(fingerprint)
	pairKey, _ := models.PairKeyFromComparisonID(comparisonID)

	store, err := g.stores.StoreFor(pairKey)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.CreateComparison(ctx, models.Comparison{
		ID:        comparisonID,
		CreatedAt: time.Now().UnixMilli(),
		LeftURL:   "https://a.example.com/",
		RightURL:  "https://b.example.com/",
		Status:    models.StatusRunning,
	}))

	rec := g.get(t, "/api/compare/"+comparisonID)
	require.Equal(t, http.StatusOK, rec.Code)
	var running pollResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &running))
	assert.Equal(t, "running", running.Status)
	assert.Nil(t, running.Result)

	require.NoError(t, store.SaveResult(ctx, comparisonID, &models.CompareResult{
		ComparisonID: comparisonID,
		LeftURL:      "https://a.example.com/",
		RightURL:     "https://b.example.com/",
	}))

	rec = g.get(t, "/api/compare/"+comparisonID)
	require.Equal(t, http.StatusOK, rec.Code)
	var completed pollResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &completed))
	assert.Equal(t, "completed", completed.Status)
	assert.NotEmpty(t, completed.Result)
}

func TestPollCompare_FailedCarriesError(t *testing.T) {
	g := newTestGateway(t)

	fingerprint := models.PairFingerprint("https://a.example.com/", "https://b.example.com/")
	comparisonID := models.NewComparisonID(fingerprint)
	pairKey, _ := models.PairKeyFromComparisonID(comparisonID)

	store, err := g.stores.StoreFor(pairKey)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.CreateComparison(ctx, models.Comparison{
		ID: comparisonID, CreatedAt: time.Now().UnixMilli(),
		LeftURL: "https://a.example.com/", RightURL: "https://b.example.com/",
		Status: models.StatusRunning,
	}))
	require.NoError(t, store.FailComparison(ctx, comparisonID, models.CompareError{
		Code: models.CompareErrDNS, Message: "left endpoint did not resolve",
	}))

	rec := g.get(t, "/api/compare/"+comparisonID)
	require.Equal(t, http.StatusOK, rec.Code)
	var failed pollResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &failed))
	assert.Equal(t, "failed", failed.Status)
	require.NotNil(t, failed.Error)
	assert.Equal(t, models.CompareErrDNS, failed.Error.Code)
}

func TestPollCompare_UnknownAndMalformedIDs(t *testing.T) {
	g := newTestGateway(t)

	fingerprint := models.PairFingerprint("https://a.example.com/", "https://b.example.com/")
	unknown := models.NewComparisonID(fingerprint)

	rec := g.get(t, "/api/compare/"+unknown)
	require.Equal(t, http.StatusNotFound, rec.Code)
	cerr := decodeError(t, rec)
	assert.Equal(t, models.CompareErrInvalidRequest, cerr.Code)
	assert.Equal(t, "Comparison not found", cerr.Message)

	rec = g.get(t, "/api/compare/not-a-real-id")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOptionsRequest(t *testing.T) {
	g := newTestGateway(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/compare", nil)
	rec := httptest.NewRecorder()
	g.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	g := newTestGateway(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/compare", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	g.handler.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
