// Package datastore persists comparison state in one sqlite database
// per URL pair. Each store owns a single file; isolation between
// pairs is physical, not row-level.
package datastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/aleister1102/envdrift/internal/config"
	"github.com/aleister1102/envdrift/internal/models"
)

// staleError is stored when a running comparison outlives the stale
// threshold, meaning its workflow terminated or was lost.
var staleError = models.CompareError{
	Code:    models.CompareErrTimeout,
	Message: "Stale comparison (workflow terminated or lost)",
}

// PairStore is the state store for one URL pair.
type PairStore struct {
	db     *sql.DB
	config config.StorageConfig
	logger zerolog.Logger
	// mu serializes write units of work (create + retention).
	mu  sync.Mutex
	now func() time.Time
}

// NewPairStore opens (creating if needed) the sqlite database at the
// given path and ensures the schema exists.
func NewPairStore(path string, cfg config.StorageConfig, logger zerolog.Logger) (*PairStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory %s: %w", dir, err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open failed for %s: %w", path, err)
	}

	store := &PairStore{
		db:     db,
		config: cfg,
		logger: logger.With().Str("component", "PairStore").Logger(),
		now:    time.Now,
	}

	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	store.logger.Debug().Str("path", path).Msg("Pair store opened")
	return store, nil
}

// Close closes the underlying database.
func (s *PairStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *PairStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS comparisons (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		left_url TEXT NOT NULL,
		right_url TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('running','completed','failed')),
		result_json TEXT,
		error TEXT
	);
	CREATE TABLE IF NOT EXISTS probes (
		id TEXT PRIMARY KEY,
		comparison_id TEXT NOT NULL REFERENCES comparisons(id) ON DELETE CASCADE,
		created_at INTEGER NOT NULL,
		side TEXT NOT NULL CHECK (side IN ('left','right')),
		url TEXT NOT NULL,
		envelope_json TEXT NOT NULL,
		UNIQUE (comparison_id, side)
	);
	CREATE INDEX IF NOT EXISTS idx_comparisons_created_at ON comparisons(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_comparisons_status ON comparisons(status);
	CREATE INDEX IF NOT EXISTS idx_probes_comparison ON probes(comparison_id, side);
	`
	if _, err := s.db.Exec(query); err != nil {
		s.logger.Error().Err(err).Msg("Failed to initialize pair store schema")
		return err
	}
	return nil
}

// CreateComparison inserts a new running comparison and applies the
// ring-buffer retention in the same transaction, so a crash between
// the two cannot leave the store over capacity. INSERT OR REPLACE
// makes the step safe to retry under the same id.
func (s *PairStore) CreateComparison(ctx context.Context, cmp models.Comparison) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO comparisons (id, created_at, left_url, right_url, status) VALUES (?, ?, ?, ?, ?)`,
		cmp.ID, cmp.CreatedAt, cmp.LeftURL, cmp.RightURL, string(models.StatusRunning))
	if err != nil {
		return fmt.Errorf("failed to insert comparison %s: %w", cmp.ID, err)
	}

	if err := s.applyRetention(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit comparison %s: %w", cmp.ID, err)
	}

	s.logger.Debug().Str("comparison_id", cmp.ID).Msg("Comparison created")
	return nil
}

// applyRetention keeps the newest RingSize comparisons and deletes
// the rest. Probe rows are deleted explicitly rather than trusting
// cascade, since older store files may predate the FK pragma.
func (s *PairStore) applyRetention(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM comparisons ORDER BY created_at DESC, id DESC LIMIT -1 OFFSET ?`,
		s.config.RingSize)
	if err != nil {
		return fmt.Errorf("failed to select expired comparisons: %w", err)
	}
	defer rows.Close()

	var expired []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("failed to scan expired comparison id: %w", err)
		}
		expired = append(expired, id)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate expired comparisons: %w", err)
	}

	for _, id := range expired {
		if _, err := tx.ExecContext(ctx, `DELETE FROM probes WHERE comparison_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete probes of %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM comparisons WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete comparison %s: %w", id, err)
		}
	}

	if len(expired) > 0 {
		s.logger.Debug().Int("evicted", len(expired)).Msg("Ring buffer retention applied")
	}
	return nil
}

// SaveProbe upserts one probe envelope. The (comparison_id, side)
// uniqueness plus INSERT OR REPLACE makes retries converge on a
// single row.
func (s *PairStore) SaveProbe(ctx context.Context, env *models.SignalEnvelope) error {
	encoded, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode envelope %s: %w", env.ProbeID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO probes (id, comparison_id, created_at, side, url, envelope_json) VALUES (?, ?, ?, ?, ?, ?)`,
		env.ProbeID, env.ComparisonID, s.now().UnixMilli(), string(env.Side), env.StorageURL(), string(encoded))
	if err != nil {
		return fmt.Errorf("failed to save probe %s: %w", env.ProbeID, err)
	}
	return nil
}

// GetProbe loads one side's envelope, or nil when it was never saved.
func (s *PairStore) GetProbe(ctx context.Context, comparisonID string, side models.Side) (*models.SignalEnvelope, error) {
	var encoded string
	err := s.db.QueryRowContext(ctx,
		`SELECT envelope_json FROM probes WHERE comparison_id = ? AND side = ?`,
		comparisonID, string(side)).Scan(&encoded)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load probe %s:%s: %w", comparisonID, side, err)
	}

	var env models.SignalEnvelope
	if err := json.Unmarshal([]byte(encoded), &env); err != nil {
		return nil, fmt.Errorf("failed to decode probe %s:%s: %w", comparisonID, side, err)
	}
	return &env, nil
}

// SaveResult marks a comparison completed with its result payload.
func (s *PairStore) SaveResult(ctx context.Context, comparisonID string, result *models.CompareResult) error {
	encoded, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result for %s: %w", comparisonID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE comparisons SET status = ?, result_json = ?, error = NULL WHERE id = ?`,
		string(models.StatusCompleted), string(encoded), comparisonID)
	if err != nil {
		return fmt.Errorf("failed to save result for %s: %w", comparisonID, err)
	}

	s.logger.Debug().Str("comparison_id", comparisonID).Msg("Result saved")
	return nil
}

// FailComparison marks a comparison failed with a structured error.
// Any previously stored result is cleared so a failed row never
// carries a stale payload.
func (s *PairStore) FailComparison(ctx context.Context, comparisonID string, cerr models.CompareError) error {
	encoded, err := json.Marshal(cerr)
	if err != nil {
		return fmt.Errorf("failed to encode error for %s: %w", comparisonID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE comparisons SET status = ?, result_json = NULL, error = ? WHERE id = ?`,
		string(models.StatusFailed), string(encoded), comparisonID)
	if err != nil {
		return fmt.Errorf("failed to mark comparison %s failed: %w", comparisonID, err)
	}

	s.logger.Debug().Str("comparison_id", comparisonID).Str("code", string(cerr.Code)).Msg("Comparison failed")
	return nil
}

// GetComparison loads one comparison, or nil when unknown. A running
// comparison older than the stale threshold is rewritten to failed
// before being returned: pollers never see a running state that no
// workflow is advancing.
func (s *PairStore) GetComparison(ctx context.Context, comparisonID string) (*models.Comparison, error) {
	cmp, err := s.loadComparison(ctx, comparisonID)
	if err != nil || cmp == nil {
		return cmp, err
	}

	if cmp.Status == models.StatusRunning && s.isStale(cmp.CreatedAt) {
		s.logger.Warn().Str("comparison_id", comparisonID).Msg("Rewriting stale running comparison to failed")
		if err := s.FailComparison(ctx, comparisonID, staleError); err != nil {
			return nil, err
		}
		cmp.Status = models.StatusFailed
		cmp.Result = nil
		stale := staleError
		cmp.Error = &stale
	}

	return cmp, nil
}

func (s *PairStore) loadComparison(ctx context.Context, comparisonID string) (*models.Comparison, error) {
	var (
		cmp        models.Comparison
		status     string
		resultJSON sql.NullString
		errText    sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, left_url, right_url, status, result_json, error FROM comparisons WHERE id = ?`,
		comparisonID).Scan(&cmp.ID, &cmp.CreatedAt, &cmp.LeftURL, &cmp.RightURL, &status, &resultJSON, &errText)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load comparison %s: %w", comparisonID, err)
	}

	cmp.Status = models.ComparisonStatus(status)
	if resultJSON.Valid && resultJSON.String != "" {
		cmp.Result = json.RawMessage(resultJSON.String)
	}
	cmp.Error = decodeStoredError(errText)
	return &cmp, nil
}

func (s *PairStore) isStale(createdAtMs int64) bool {
	age := s.now().UnixMilli() - createdAtMs
	return age > int64(s.config.StaleAfterMins)*60_000
}

// GetComparisonsForHistory returns the newest completed comparisons,
// newest first, for explanation context.
func (s *PairStore) GetComparisonsForHistory(ctx context.Context, limit int) ([]models.Comparison, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, left_url, right_url, status, result_json, error
		 FROM comparisons WHERE status = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		string(models.StatusCompleted), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var history []models.Comparison
	for rows.Next() {
		var (
			cmp        models.Comparison
			status     string
			resultJSON sql.NullString
			errText    sql.NullString
		)
		if err := rows.Scan(&cmp.ID, &cmp.CreatedAt, &cmp.LeftURL, &cmp.RightURL, &status, &resultJSON, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		cmp.Status = models.ComparisonStatus(status)
		if resultJSON.Valid && resultJSON.String != "" {
			cmp.Result = json.RawMessage(resultJSON.String)
		}
		cmp.Error = decodeStoredError(errText)
		history = append(history, cmp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}
	return history, nil
}

// CountComparisons returns the number of stored comparisons.
func (s *PairStore) CountComparisons(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM comparisons`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count comparisons: %w", err)
	}
	return count, nil
}

// decodeStoredError parses the error column. Older rows stored plain
// strings; those decode as internal errors with the raw text as
// message.
func decodeStoredError(raw sql.NullString) *models.CompareError {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var cerr models.CompareError
	if err := json.Unmarshal([]byte(raw.String), &cerr); err == nil && cerr.Code != "" {
		return &cerr
	}
	return &models.CompareError{Code: models.CompareErrInternal, Message: raw.String}
}
