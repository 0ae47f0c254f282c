package datastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleister1102/envdrift/internal/config"
	"github.com/aleister1102/envdrift/internal/models"
)

func newTestStore(t *testing.T, cfg config.StorageConfig) *PairStore {
	t.Helper()
	store, err := NewPairStore(filepath.Join(t.TempDir(), "pair.sqlite"), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func runningComparison(id string, createdAt int64) models.Comparison {
	return models.Comparison{
		ID:        id,
		CreatedAt: createdAt,
		LeftURL:   "https://a.example.com/",
		RightURL:  "https://b.example.com/",
		Status:    models.StatusRunning,
	}
}

func TestCreateAndGetComparison(t *testing.T) {
	store := newTestStore(t, config.NewDefaultStorageConfig())
	ctx := context.Background()

	created := runningComparison("cmp-1", time.Now().UnixMilli())
	require.NoError(t, store.CreateComparison(ctx, created))

	cmp, err := store.GetComparison(ctx, "cmp-1")
	require.NoError(t, err)
	require.NotNil(t, cmp)
	assert.Equal(t, models.StatusRunning, cmp.Status)
	assert.Equal(t, "https://a.example.com/", cmp.LeftURL)
	assert.Nil(t, cmp.Error)

	missing, err := store.GetComparison(ctx, "cmp-unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCreateComparisonIsIdempotent(t *testing.T) {
	store := newTestStore(t, config.NewDefaultStorageConfig())
	ctx := context.Background()

	cmp := runningComparison("cmp-1", time.Now().UnixMilli())
	require.NoError(t, store.CreateComparison(ctx, cmp))
	require.NoError(t, store.CreateComparison(ctx, cmp))

	count, err := store.CountComparisons(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRingBufferRetention(t *testing.T) {
	cfg := config.NewDefaultStorageConfig()
	cfg.RingSize = 20
	store := newTestStore(t, cfg)
	ctx := context.Background()

	base := time.Now().UnixMilli()
	for i := 0; i < 21; i++ {
		id := modelID(i)
		require.NoError(t, store.CreateComparison(ctx, runningComparison(id, base+int64(i))))
		env := models.NewSignalEnvelope(id, models.SideLeft, "https://a.example.com/", nil,
			models.NewNetworkFailureResult(models.ProbeErrTimeout, "x", "", nil))
		require.NoError(t, store.SaveProbe(ctx, &env))
	}

	count, err := store.CountComparisons(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, count)

	// The oldest entry and its probes are gone; the newest survives.
	oldest, err := store.GetComparison(ctx, modelID(0))
	require.NoError(t, err)
	assert.Nil(t, oldest)
	probe, err := store.GetProbe(ctx, modelID(0), models.SideLeft)
	require.NoError(t, err)
	assert.Nil(t, probe)

	newest, err := store.GetComparison(ctx, modelID(20))
	require.NoError(t, err)
	assert.NotNil(t, newest)
}

func modelID(i int) string {
	return "cmp-" + string(rune('a'+i/10)) + string(rune('0'+i%10))
}

func TestSaveProbeIsIdempotent(t *testing.T) {
	store := newTestStore(t, config.NewDefaultStorageConfig())
	ctx := context.Background()

	require.NoError(t, store.CreateComparison(ctx, runningComparison("cmp-1", time.Now().UnixMilli())))

	first := models.NewSignalEnvelope("cmp-1", models.SideLeft, "https://a.example.com/", nil,
		models.NewNetworkFailureResult(models.ProbeErrTimeout, "first attempt", "", nil))
	require.NoError(t, store.SaveProbe(ctx, &first))

	second := models.NewSignalEnvelope("cmp-1", models.SideLeft, "https://a.example.com/", nil,
		models.NewNetworkFailureResult(models.ProbeErrDNS, "second attempt", "", nil))
	require.NoError(t, store.SaveProbe(ctx, &second))

	loaded, err := store.GetProbe(ctx, "cmp-1", models.SideLeft)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, models.ProbeErrDNS, loaded.Result.ErrorCode())

	var count int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM probes`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestStaleRunningComparisonRewrittenToFailed(t *testing.T) {
	cfg := config.NewDefaultStorageConfig()
	store := newTestStore(t, cfg)
	ctx := context.Background()

	created := time.Now().Add(-10 * time.Minute).UnixMilli()
	require.NoError(t, store.CreateComparison(ctx, runningComparison("cmp-1", created)))

	cmp, err := store.GetComparison(ctx, "cmp-1")
	require.NoError(t, err)
	require.NotNil(t, cmp)
	assert.Equal(t, models.StatusFailed, cmp.Status)
	require.NotNil(t, cmp.Error)
	assert.Equal(t, models.CompareErrTimeout, cmp.Error.Code)
	assert.Equal(t, "Stale comparison (workflow terminated or lost)", cmp.Error.Message)

	// The rewrite is persisted, not just surfaced.
	again, err := store.GetComparison(ctx, "cmp-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, again.Status)
}

func TestStaleRewriteClearsResult(t *testing.T) {
	store := newTestStore(t, config.NewDefaultStorageConfig())
	ctx := context.Background()

	created := time.Now().Add(-10 * time.Minute).UnixMilli()
	require.NoError(t, store.CreateComparison(ctx, runningComparison("cmp-1", created)))

	// A crashed workflow can leave a partial result behind a running
	// status; the stale rewrite must not surface it.
	_, err := store.db.Exec(`UPDATE comparisons SET result_json = ? WHERE id = ?`,
		`{"comparison_id":"cmp-1"}`, "cmp-1")
	require.NoError(t, err)

	cmp, err := store.GetComparison(ctx, "cmp-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, cmp.Status)
	assert.Nil(t, cmp.Result)

	// Cleared in storage too, not just on the returned value.
	var stored sql.NullString
	require.NoError(t, store.db.QueryRow(`SELECT result_json FROM comparisons WHERE id = ?`, "cmp-1").Scan(&stored))
	assert.False(t, stored.Valid)
}

func TestFreshRunningComparisonStaysRunning(t *testing.T) {
	store := newTestStore(t, config.NewDefaultStorageConfig())
	ctx := context.Background()

	require.NoError(t, store.CreateComparison(ctx, runningComparison("cmp-1", time.Now().UnixMilli())))

	cmp, err := store.GetComparison(ctx, "cmp-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, cmp.Status)
}

func TestSaveResultCompletes(t *testing.T) {
	store := newTestStore(t, config.NewDefaultStorageConfig())
	ctx := context.Background()

	require.NoError(t, store.CreateComparison(ctx, runningComparison("cmp-1", time.Now().UnixMilli())))
	require.NoError(t, store.SaveResult(ctx, "cmp-1", &models.CompareResult{
		ComparisonID: "cmp-1",
		LeftURL:      "https://a.example.com/",
		RightURL:     "https://b.example.com/",
		Timestamp:    "2026-08-25T00:00:00Z",
	}))

	cmp, err := store.GetComparison(ctx, "cmp-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, cmp.Status)
	require.NotEmpty(t, cmp.Result)

	var result models.CompareResult
	require.NoError(t, json.Unmarshal(cmp.Result, &result))
	assert.Equal(t, "cmp-1", result.ComparisonID)
}

func TestFailComparisonStoresStructuredError(t *testing.T) {
	store := newTestStore(t, config.NewDefaultStorageConfig())
	ctx := context.Background()

	require.NoError(t, store.CreateComparison(ctx, runningComparison("cmp-1", time.Now().UnixMilli())))
	require.NoError(t, store.FailComparison(ctx, "cmp-1", models.CompareError{
		Code:    models.CompareErrDNS,
		Message: "left endpoint did not resolve",
	}))

	cmp, err := store.GetComparison(ctx, "cmp-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, cmp.Status)
	require.NotNil(t, cmp.Error)
	assert.Equal(t, models.CompareErrDNS, cmp.Error.Code)
}

func TestFailComparisonClearsResult(t *testing.T) {
	store := newTestStore(t, config.NewDefaultStorageConfig())
	ctx := context.Background()

	require.NoError(t, store.CreateComparison(ctx, runningComparison("cmp-1", time.Now().UnixMilli())))
	require.NoError(t, store.SaveResult(ctx, "cmp-1", &models.CompareResult{ComparisonID: "cmp-1"}))
	require.NoError(t, store.FailComparison(ctx, "cmp-1", models.CompareError{
		Code:    models.CompareErrInternal,
		Message: "workflow retried and failed",
	}))

	cmp, err := store.GetComparison(ctx, "cmp-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, cmp.Status)
	assert.Nil(t, cmp.Result)
	require.NotNil(t, cmp.Error)
}

func TestLegacyPlainStringErrorDecodes(t *testing.T) {
	store := newTestStore(t, config.NewDefaultStorageConfig())
	ctx := context.Background()

	require.NoError(t, store.CreateComparison(ctx, runningComparison("cmp-1", time.Now().UnixMilli())))
	_, err := store.db.Exec(`UPDATE comparisons SET status = 'failed', error = ? WHERE id = ?`,
		"something broke", "cmp-1")
	require.NoError(t, err)

	cmp, err := store.GetComparison(ctx, "cmp-1")
	require.NoError(t, err)
	require.NotNil(t, cmp.Error)
	assert.Equal(t, models.CompareErrInternal, cmp.Error.Code)
	assert.Equal(t, "something broke", cmp.Error.Message)
}

func TestHistoryReturnsCompletedNewestFirst(t *testing.T) {
	store := newTestStore(t, config.NewDefaultStorageConfig())
	ctx := context.Background()

	base := time.Now().UnixMilli()
	for i := 0; i < 5; i++ {
		id := modelID(i)
		require.NoError(t, store.CreateComparison(ctx, runningComparison(id, base+int64(i))))
		if i != 2 { // leave one running
			require.NoError(t, store.SaveResult(ctx, id, &models.CompareResult{ComparisonID: id}))
		}
	}

	history, err := store.GetComparisonsForHistory(ctx, 3)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, modelID(4), history[0].ID)
	assert.Equal(t, modelID(3), history[1].ID)
	assert.Equal(t, modelID(1), history[2].ID)
	for _, cmp := range history {
		assert.Equal(t, models.StatusCompleted, cmp.Status)
	}
}

func TestManagerCachesStoresPerPair(t *testing.T) {
	cfg := config.NewDefaultStorageConfig()
	cfg.RootPath = t.TempDir()
	manager := NewManager(cfg, zerolog.Nop())
	defer func() { _ = manager.Close() }()

	keyA := models.PairFingerprint("https://a.example.com/", "https://b.example.com/")[:40]
	keyB := models.PairFingerprint("https://c.example.com/", "https://d.example.com/")[:40]

	storeA1, err := manager.StoreFor(keyA)
	require.NoError(t, err)
	storeA2, err := manager.StoreFor(keyA)
	require.NoError(t, err)
	storeB, err := manager.StoreFor(keyB)
	require.NoError(t, err)

	assert.Same(t, storeA1, storeA2)
	assert.NotSame(t, storeA1, storeB)

	// Writes to one pair are invisible to the other.
	ctx := context.Background()
	require.NoError(t, storeA1.CreateComparison(ctx, runningComparison("cmp-1", time.Now().UnixMilli())))
	fromB, err := storeB.GetComparison(ctx, "cmp-1")
	require.NoError(t, err)
	assert.Nil(t, fromB)
}
