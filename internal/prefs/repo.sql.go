package prefs

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ruokavalitys/rv-update-backend/internal/shared"
)

// RepositoryPort defines persistence for preference values. Absent keys fall
// back to their declared default at the service layer.
type RepositoryPort interface {
	GetValue(ctx context.Context, key string) (string, error)
	SetValue(ctx context.Context, key, value string) error
}

// Repository stores preference values in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetValue(ctx context.Context, key string) (string, error) {
	var value string
	err := r.pool.QueryRow(ctx,
		`SELECT prefvalue FROM preferences WHERE prefkey = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", shared.ErrNotFound
		}
		return "", fmt.Errorf("get preference: %w", err)
	}
	return value, nil
}

func (r *Repository) SetValue(ctx context.Context, key, value string) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO preferences (prefkey, prefvalue) VALUES ($1, $2)
ON CONFLICT (prefkey) DO UPDATE SET prefvalue = EXCLUDED.prefvalue`, key, value)
	if err != nil {
		return fmt.Errorf("set preference: %w", err)
	}
	return nil
}
