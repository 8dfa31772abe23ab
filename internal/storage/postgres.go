/**
 * PostgreSQL Lineage Store for the PDF extraction worker
 *
 * Records every delivered invocation and the parent -> child links of the
 * records it produced. Optional: the worker runs without it.
 */

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	apperrors "github.com/adverant/nexus/pdfextract-worker/internal/errors"
	"github.com/adverant/nexus/pdfextract-worker/internal/flow"
	"github.com/adverant/nexus/pdfextract-worker/internal/stage"
)

const schemaSQL = `
CREATE SCHEMA IF NOT EXISTS pdfextract;

CREATE TABLE IF NOT EXISTS pdfextract.invocations (
	id                 BIGSERIAL PRIMARY KEY,
	record_id          TEXT NOT NULL,
	status             TEXT NOT NULL,
	operation          TEXT,
	error_code         TEXT,
	error_message      TEXT,
	output_count       INTEGER NOT NULL DEFAULT 0,
	processing_time_ms BIGINT NOT NULL DEFAULT 0,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS invocations_record_id_idx ON pdfextract.invocations (record_id);

CREATE TABLE IF NOT EXISTS pdfextract.lineage (
	parent_id    TEXT NOT NULL,
	child_id     TEXT NOT NULL,
	relationship TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (parent_id, child_id)
);
`

// LineageStore handles lineage persistence
type LineageStore struct {
	db *sql.DB
}

// Invocation is one row of pdfextract.invocations.
type Invocation struct {
	RecordID         string
	Status           string
	Operation        string
	ErrorCode        string
	ErrorMessage     string
	OutputCount      int
	ProcessingTimeMs int64
	CreatedAt        time.Time
}

// NewLineageStore connects to databaseURL and makes sure the schema exists.
func NewLineageStore(databaseURL string) (*LineageStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create lineage schema: %w", err)
	}

	return &LineageStore{db: db}, nil
}

// invocationRow flattens an outcome into column values.
func invocationRow(outcome stage.Outcome) Invocation {
	row := Invocation{
		RecordID:         outcome.RecordID,
		Status:           string(outcome.Status),
		Operation:        string(outcome.Operation),
		OutputCount:      len(outcome.Outputs),
		ProcessingTimeMs: outcome.Duration.Milliseconds(),
	}
	if outcome.Err != nil {
		row.ErrorCode = string(apperrors.CodeOf(outcome.Err))
		row.ErrorMessage = outcome.Err.Error()
	}
	return row
}

// lineageColumns returns parallel child ID and relationship slices for every
// transferred record derived from parentID.
func lineageColumns(parentID string, transfers []flow.Transfer) (children, relationships []string) {
	for _, t := range transfers {
		if t.Record.ParentID != parentID || t.Record.ID == parentID {
			continue
		}
		children = append(children, t.Record.ID)
		relationships = append(relationships, string(t.Relationship))
	}
	return children, relationships
}

// RecordInvocation stores one outcome and its lineage in a single transaction.
func (s *LineageStore) RecordInvocation(ctx context.Context, outcome stage.Outcome, transfers []flow.Transfer) error {
	if outcome.RecordID == "" {
		return fmt.Errorf("record ID is required")
	}

	row := invocationRow(outcome)
	children, relationships := lineageColumns(outcome.RecordID, transfers)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO pdfextract.invocations (
			record_id, status, operation, error_code, error_message,
			output_count, processing_time_ms
		) VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6, $7)`,
		row.RecordID, row.Status, row.Operation, row.ErrorCode, row.ErrorMessage,
		row.OutputCount, row.ProcessingTimeMs,
	)
	if err != nil {
		return fmt.Errorf("failed to insert invocation: %w", err)
	}

	if len(children) > 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO pdfextract.lineage (parent_id, child_id, relationship)
			SELECT $1, c.child_id, c.relationship
			FROM unnest($2::text[], $3::text[]) AS c(child_id, relationship)
			ON CONFLICT (parent_id, child_id) DO NOTHING`,
			outcome.RecordID, pq.Array(children), pq.Array(relationships),
		)
		if err != nil {
			return fmt.Errorf("failed to insert lineage: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit lineage: %w", err)
	}
	return nil
}

// Invocations returns every recorded invocation of recordID, oldest first.
func (s *LineageStore) Invocations(ctx context.Context, recordID string) ([]Invocation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record_id, status, COALESCE(operation, ''), COALESCE(error_code, ''),
		       COALESCE(error_message, ''), output_count, processing_time_ms, created_at
		FROM pdfextract.invocations
		WHERE record_id = $1
		ORDER BY id`, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to query invocations: %w", err)
	}
	defer rows.Close()

	var out []Invocation
	for rows.Next() {
		var inv Invocation
		if err := rows.Scan(&inv.RecordID, &inv.Status, &inv.Operation, &inv.ErrorCode,
			&inv.ErrorMessage, &inv.OutputCount, &inv.ProcessingTimeMs, &inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan invocation: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// Children returns the IDs of records derived from parentID.
func (s *LineageStore) Children(ctx context.Context, parentID string) ([]string, error) {
	var children pq.StringArray
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(array_agg(child_id ORDER BY created_at, child_id), '{}')
		FROM pdfextract.lineage
		WHERE parent_id = $1`, parentID).Scan(&children)
	if err != nil {
		return nil, fmt.Errorf("failed to query lineage: %w", err)
	}
	return children, nil
}

// Ping checks database connectivity
func (s *LineageStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *LineageStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
