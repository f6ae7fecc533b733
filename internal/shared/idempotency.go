package shared

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Kiosk terminals retry deposits when the network flakes mid-request, so the
// deposit endpoint accepts an Idempotency-Key header and records each
// processed key here.
const (
	// IdempotencyModuleDeposit scopes keys recorded by the deposit endpoint.
	IdempotencyModuleDeposit = "deposit"

	// IdempotencyRetention is how long processed keys are kept before the
	// nightly integrity job sweeps them. Well past any realistic client
	// retry horizon.
	IdempotencyRetention = 30 * 24 * time.Hour
)

// ErrIdempotencyConflict reports that a request with the same key was
// already processed.
var ErrIdempotencyConflict = errors.New("request with this idempotency key was already processed")

// IdempotencyStore persists processed request keys in Postgres. A nil store
// is usable; methods degrade to no-ops or errors as appropriate, so handlers
// can treat idempotency as optional wiring.
type IdempotencyStore struct {
	pool *pgxpool.Pool
}

func NewIdempotencyStore(pool *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{pool: pool}
}

// CheckAndInsert records the key, returning ErrIdempotencyConflict when it
// was already recorded for the same module.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, key, module string) error {
	if s == nil {
		return errors.New("idempotency store not initialised")
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	if module == "" {
		return errors.New("idempotency module required")
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO idempotency_keys (key, module, created_at) VALUES ($1, $2, $3)`, key, module, time.Now())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrIdempotencyConflict
		}
		return err
	}
	return nil
}

// Cleanup removes keys older than the retention window.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if s == nil {
		return nil
	}
	cutoff := time.Now().Add(-olderThan)
	_, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff)
	return err
}

// Delete releases a key so the client's retry can go through, used when the
// guarded operation itself failed after the key was recorded.
func (s *IdempotencyStore) Delete(ctx context.Context, key string) error {
	if s == nil {
		return nil
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE key=$1`, key)
	return err
}
