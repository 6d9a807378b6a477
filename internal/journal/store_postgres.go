package journal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// PostgresStore persists journal entries for deployments that outlive one
// process. Schema:
//
//	CREATE TABLE IF NOT EXISTS reclaim_journal (
//	    id         UUID PRIMARY KEY,
//	    kind       TEXT NOT NULL,
//	    vault      TEXT NOT NULL,
//	    signature  TEXT NOT NULL DEFAULT '',
//	    detail     TEXT NOT NULL DEFAULT '',
//	    created_at TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX IF NOT EXISTS reclaim_journal_vault_idx ON reclaim_journal (vault, created_at);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reclaim_journal (id, kind, vault, signature, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, string(event.Kind), event.Vault, event.Signature, event.Detail, event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append journal event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByVault(ctx context.Context, vault string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, vault, signature, detail, created_at
		FROM reclaim_journal
		WHERE vault = $1
		ORDER BY created_at ASC`,
		vault,
	)
	if err != nil {
		return nil, fmt.Errorf("list journal events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e    Event
			id   string
			kind string
		)
		if err := rows.Scan(&id, &kind, &e.Vault, &e.Signature, &e.Detail, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan journal event: %w", err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse journal event id: %w", err)
		}
		e.ID = parsed
		e.Kind = Kind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}
