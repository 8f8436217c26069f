// internal/analysis/report/store.go
package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Get for an unknown report id.
var ErrNotFound = errors.New("report not found")

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Record is the persisted outcome of one settled analysis run.
type Record struct {
	ID            string    `json:"id"`
	RunID         string    `json:"runId"`
	ModelID       string    `json:"modelId"`
	AppOverview   string    `json:"appOverview"`
	UserTask      string    `json:"userTask"`
	HasImage      bool      `json:"hasImage"`
	HasSourceCode bool      `json:"hasSourceCode"`
	Status        string    `json:"status"`
	Result        string    `json:"result,omitempty"`
	TokenCount    int       `json:"tokenCount"`
	ErrorCode     string    `json:"errorCode,omitempty"`
	ErrorMessage  string    `json:"errorMessage,omitempty"`
	StartedAt     time.Time `json:"startedAt"`
	FinishedAt    time.Time `json:"finishedAt"`
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS analysis_reports (
	id              UUID PRIMARY KEY,
	run_id          UUID NOT NULL UNIQUE,
	model_id        TEXT NOT NULL,
	app_overview    TEXT NOT NULL,
	user_task       TEXT NOT NULL,
	has_image       BOOLEAN NOT NULL DEFAULT FALSE,
	has_source_code BOOLEAN NOT NULL DEFAULT FALSE,
	status          TEXT NOT NULL,
	result          TEXT NOT NULL DEFAULT '',
	token_count     INTEGER NOT NULL DEFAULT 0,
	error_code      TEXT NOT NULL DEFAULT '',
	error_message   TEXT NOT NULL DEFAULT '',
	started_at      TIMESTAMPTZ NOT NULL,
	finished_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_analysis_reports_finished_at ON analysis_reports (finished_at DESC);
`

const selectColumns = `id, run_id, model_id, app_overview, user_task, has_image, has_source_code,
	status, result, token_count, error_code, error_message, started_at, finished_at`

// Store persists analysis reports in PostgreSQL.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure report schema: %w", err)
	}
	return nil
}

// Save inserts rec. A second save for the same run is ignored.
func (s *Store) Save(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analysis_reports (`+selectColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (run_id) DO NOTHING`,
		rec.ID, rec.RunID, rec.ModelID, rec.AppOverview, rec.UserTask, rec.HasImage, rec.HasSourceCode,
		rec.Status, rec.Result, rec.TokenCount, rec.ErrorCode, rec.ErrorMessage, rec.StartedAt, rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("save report %s: %w", rec.RunID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM analysis_reports WHERE id = $1`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report %s: %w", id, err)
	}
	return rec, nil
}

// ListRecent returns the newest reports first. limit is clamped to [1, MaxListLimit].
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM analysis_reports ORDER BY finished_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (*Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID, &rec.RunID, &rec.ModelID, &rec.AppOverview, &rec.UserTask, &rec.HasImage, &rec.HasSourceCode,
		&rec.Status, &rec.Result, &rec.TokenCount, &rec.ErrorCode, &rec.ErrorMessage, &rec.StartedAt, &rec.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
