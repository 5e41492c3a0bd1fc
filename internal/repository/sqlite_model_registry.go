package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"FinSignal/internal/domain/models"

	_ "modernc.org/sqlite"
)

// SQLiteModelRegistry records saved artifact triads in a local SQLite file.
type SQLiteModelRegistry struct {
	db *sql.DB
}

// NewSQLiteModelRegistry opens or creates the registry at path. ":memory:"
// yields a throwaway database.
func NewSQLiteModelRegistry(path string) (*SQLiteModelRegistry, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create registry dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	r := &SQLiteModelRegistry{db: db}
	if err := r.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return r, nil
}

func (r *SQLiteModelRegistry) Close() error {
	return r.db.Close()
}

func (r *SQLiteModelRegistry) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS model_versions (
			version_id  TEXT PRIMARY KEY,
			run_id      TEXT NOT NULL,
			model_type  TEXT NOT NULL,
			model_path  TEXT NOT NULL,
			trained_at  INTEGER NOT NULL,
			val_loss    REAL,
			val_acc     REAL,
			samples     INTEGER NOT NULL DEFAULT 0,
			recorded_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_model_versions_recorded_at ON model_versions(recorded_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Record upserts a version row.
func (r *SQLiteModelRegistry) Record(ctx context.Context, v models.ModelVersion) error {
	if v.VersionID == "" {
		return fmt.Errorf("version id is required")
	}
	if v.RecordedAt.IsZero() {
		v.RecordedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO model_versions
			(version_id, run_id, model_type, model_path, trained_at, val_loss, val_acc, samples, recorded_at)
		VALUES (?,?,?,?,?,?,?,?,?)
		ON CONFLICT(version_id) DO UPDATE SET
			run_id      = excluded.run_id,
			model_type  = excluded.model_type,
			model_path  = excluded.model_path,
			trained_at  = excluded.trained_at,
			val_loss    = excluded.val_loss,
			val_acc     = excluded.val_acc,
			samples     = excluded.samples,
			recorded_at = excluded.recorded_at`,
		v.VersionID, v.RunID, v.ModelType, v.ModelPath,
		nanos(v.TrainedAt), v.ValLoss, v.ValAcc, v.Samples, nanos(v.RecordedAt),
	)
	if err != nil {
		return fmt.Errorf("insert model version: %w", err)
	}
	return nil
}

// Remove deletes a version row. Unknown versions are not an error.
func (r *SQLiteModelRegistry) Remove(ctx context.Context, versionID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM model_versions WHERE version_id = ?`, versionID); err != nil {
		return fmt.Errorf("delete model version: %w", err)
	}
	return nil
}

// Recent returns up to limit versions, most recently recorded first.
func (r *SQLiteModelRegistry) Recent(ctx context.Context, limit int) ([]models.ModelVersion, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT version_id, run_id, model_type, model_path, trained_at, val_loss, val_acc, samples, recorded_at
		FROM model_versions
		ORDER BY recorded_at DESC, version_id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query model versions: %w", err)
	}
	defer rows.Close()

	var out []models.ModelVersion
	for rows.Next() {
		var (
			v                   models.ModelVersion
			trainedAt, recorded int64
		)
		if err := rows.Scan(&v.VersionID, &v.RunID, &v.ModelType, &v.ModelPath,
			&trainedAt, &v.ValLoss, &v.ValAcc, &v.Samples, &recorded); err != nil {
			return nil, fmt.Errorf("scan model version: %w", err)
		}
		v.TrainedAt = fromNanos(trainedAt)
		v.RecordedAt = fromNanos(recorded)
		out = append(out, v)
	}
	return out, rows.Err()
}

// nanos stores the zero time as 0, which fromNanos maps back.
func nanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
