package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBQuerier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx
type DBQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresPersister keeps one row per storage key in client_sessions
type PostgresPersister struct {
	db DBQuerier
}

var _ Persister = (*PostgresPersister)(nil)

func NewPostgresPersister(db DBQuerier) *PostgresPersister {
	return &PostgresPersister{db: db}
}

func (p *PostgresPersister) Load(ctx context.Context, key string) ([]byte, error) {
	query := `SELECT blob FROM client_sessions WHERE storage_key = $1`

	var blob []byte
	err := p.db.QueryRow(ctx, query, key).Scan(&blob)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select session: %w", err)
	}
	return blob, nil
}

// Save upserts the blob under key
func (p *PostgresPersister) Save(ctx context.Context, key string, blob []byte) error {
	query := `
		INSERT INTO client_sessions (storage_key, blob)
		VALUES ($1, $2)
		ON CONFLICT (storage_key)
		DO UPDATE SET
			blob = EXCLUDED.blob,
			updated_at = now()
	`

	if _, err := p.db.Exec(ctx, query, key, string(blob)); err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}
	return nil
}
