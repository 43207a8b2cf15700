package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresRecorder writes events to Postgres.
type PostgresRecorder struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error
}

// NewPostgres opens the recorder and verifies connectivity.
func NewPostgres(dsn string) (*PostgresRecorder, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresRecorder{db: db}, nil
}

// Close releases the underlying connection pool.
func (r *PostgresRecorder) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *PostgresRecorder) ensureSchema() error {
	if r == nil || r.db == nil {
		return nil
	}
	r.schemaOnce.Do(func() {
		_, r.schemaErr = r.db.Exec(`
CREATE TABLE IF NOT EXISTS undrm_events (
  event_id TEXT PRIMARY KEY,
  item_id TEXT NOT NULL,
  bucket TEXT NOT NULL,
  object_key TEXT NOT NULL,
  reason TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  failure_reason TEXT NOT NULL DEFAULT '',
  drm_type TEXT NOT NULL DEFAULT '',
  started_at TIMESTAMP WITH TIME ZONE NOT NULL,
  finished_at TIMESTAMP WITH TIME ZONE
);
CREATE INDEX IF NOT EXISTS idx_undrm_events_item_id ON undrm_events (item_id);
`)
	})
	return r.schemaErr
}

func (r *PostgresRecorder) Create(ctx context.Context, ev Event) error {
	if err := r.ensureSchema(); err != nil {
		return fmt.Errorf("audit schema: %w", err)
	}
	// Aborted pipelines create terminal FAILURE events directly, so the
	// insert must carry the outcome columns too, not just identity.
	finished := sql.NullTime{Time: ev.FinishedAt, Valid: !ev.FinishedAt.IsZero()}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO undrm_events (
  event_id, item_id, bucket, object_key, reason, status, failure_reason, drm_type, started_at, finished_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		ev.EventID, ev.ItemID, ev.Bucket, ev.ObjectKey, ev.Reason, ev.Status,
		ev.FailureReason, ev.DRMType, ev.StartedAt, finished)
	if err != nil {
		return fmt.Errorf("audit create: %w", err)
	}
	return nil
}

func (r *PostgresRecorder) Update(ctx context.Context, ev Event) error {
	if err := r.ensureSchema(); err != nil {
		return fmt.Errorf("audit schema: %w", err)
	}
	finished := sql.NullTime{Time: ev.FinishedAt, Valid: !ev.FinishedAt.IsZero()}
	_, err := r.db.ExecContext(ctx, `
UPDATE undrm_events
SET status=$2, failure_reason=$3, drm_type=$4, finished_at=$5
WHERE event_id=$1`,
		ev.EventID, ev.Status, ev.FailureReason, ev.DRMType, finished)
	if err != nil {
		return fmt.Errorf("audit update: %w", err)
	}
	return nil
}
