package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
)

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresSink persists audit records in PostgreSQL. The table rejects
// UPDATE and DELETE through a trigger.
type PostgresSink struct {
	db *sql.DB
}

// OpenPostgresSink connects through the pgx driver and ensures the schema.
func OpenPostgresSink(ctx context.Context, databaseURL string) (*PostgresSink, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := NewPostgresSink(db)
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func NewPostgresSink(db *sql.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS audit_records (
			id TEXT PRIMARY KEY,
			recorded_at TIMESTAMPTZ NOT NULL,
			session_id TEXT NOT NULL,
			action TEXT NOT NULL,
			details JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audit_records_session ON audit_records (session_id, recorded_at);`,
		`CREATE OR REPLACE FUNCTION audit_records_append_only() RETURNS trigger AS $$
		BEGIN
			RAISE EXCEPTION 'audit_records is append-only';
		END;
		$$ LANGUAGE plpgsql;`,
		`DROP TRIGGER IF EXISTS audit_records_no_mutation ON audit_records;`,
		`CREATE TRIGGER audit_records_no_mutation BEFORE UPDATE OR DELETE ON audit_records
			FOR EACH ROW EXECUTE FUNCTION audit_records_append_only();`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init audit schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

// Write inserts r. Re-delivery of the same record id is a no-op.
func (s *PostgresSink) Write(ctx context.Context, r Record) error {
	details := []byte("{}")
	if r.Details != nil {
		b, err := json.Marshal(r.Details)
		if err != nil {
			return fmt.Errorf("encoding audit details: %w", err)
		}
		details = b
	}

	query, args, err := psq.Insert("audit_records").
		Columns("id", "recorded_at", "session_id", "action", "details").
		Values(r.ID, r.Timestamp, r.SessionID, string(r.Action), details).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("building audit insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting audit record: %w", err)
	}
	return nil
}

func (s *PostgresSink) Close() error {
	return s.db.Close()
}
