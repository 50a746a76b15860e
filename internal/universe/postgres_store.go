package universe

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/marketscan/backend/pkg/database"
)

// Schema owned by PostgresStore
var storeSchema = []string{
	`CREATE TABLE IF NOT EXISTS universe_overrides (
		universe_id TEXT PRIMARY KEY,
		symbols     TEXT[] NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// PostgresStore keeps overrides in the universe_overrides table
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore migrates the table and returns the store
func NewPostgresStore(ctx context.Context, db *database.DB) (*PostgresStore, error) {
	if err := db.Migrate(ctx, storeSchema...); err != nil {
		return nil, fmt.Errorf("migrate universe store: %w", err)
	}
	return &PostgresStore{db: db.Pool}, nil
}

// Load returns the stored override
func (s *PostgresStore) Load(ctx context.Context, universeID string) ([]string, bool, error) {
	query := `SELECT symbols FROM universe_overrides WHERE universe_id = $1`

	var symbols []string
	err := s.db.QueryRow(ctx, query, universeID).Scan(&symbols)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query universe %s: %w", universeID, err)
	}
	if symbols == nil {
		symbols = []string{}
	}
	return symbols, true, nil
}

// Save upserts the override
func (s *PostgresStore) Save(ctx context.Context, universeID string, symbols []string) error {
	query := `
		INSERT INTO universe_overrides (universe_id, symbols, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (universe_id) DO UPDATE SET
			symbols = EXCLUDED.symbols,
			updated_at = NOW()
	`

	if _, err := s.db.Exec(ctx, query, universeID, symbols); err != nil {
		return fmt.Errorf("upsert universe %s: %w", universeID, err)
	}
	return nil
}
