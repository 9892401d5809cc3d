//go:build integration

package audit

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestPostgresSinkAppendOnly(t *testing.T) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx, "postgres:16",
		postgres.WithDatabase("audit"),
		postgres.WithUsername("audit"),
		postgres.WithPassword("audit"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	defer func() { _ = pgContainer.Terminate(ctx) }()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("ConnectionString() error = %v", err)
	}

	sink, err := OpenPostgresSink(ctx, connStr)
	if err != nil {
		t.Fatalf("OpenPostgresSink() error = %v", err)
	}
	defer func() { _ = sink.Close() }()

	rec := Record{
		ID:        "rec-int-1",
		Timestamp: time.Now().UTC(),
		SessionID: "sess-int",
		Action:    ActionSessionCreated,
		Details:   map[string]any{"consent_provided": true},
	}
	if err := sink.Write(ctx, rec); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	// Redelivery is absorbed by the primary key.
	if err := sink.Write(ctx, rec); err != nil {
		t.Fatalf("second Write() error = %v", err)
	}

	var count int
	if err := sink.db.QueryRowContext(ctx,
		`SELECT count(*) FROM audit_records WHERE session_id = $1`, "sess-int").Scan(&count); err != nil {
		t.Fatalf("count query: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}

	if _, err := sink.db.ExecContext(ctx, `UPDATE audit_records SET action = 'TAMPERED' WHERE id = $1`, rec.ID); err == nil {
		t.Fatalf("UPDATE on audit_records succeeded")
	}
	if _, err := sink.db.ExecContext(ctx, `DELETE FROM audit_records WHERE id = $1`, rec.ID); err == nil {
		t.Fatalf("DELETE on audit_records succeeded")
	}
}
