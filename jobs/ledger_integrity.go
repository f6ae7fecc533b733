package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ruokavalitys/rv-update-backend/internal/shared"
)

// NewLedgerIntegrityHandler builds the handler for TaskLedgerIntegrity.
// Balances are compared against the sum of their balance-history deltas,
// and each open price row's stock against the newest item-history count.
// Drift is logged, never corrected: the history streams are the record of
// truth and any mismatch needs a human.
func NewLedgerIntegrityHandler(pool *pgxpool.Pool, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		drift, err := checkBalances(ctx, pool, logger)
		if err != nil {
			return fmt.Errorf("check balances: %w", err)
		}
		stockDrift, err := checkStock(ctx, pool, logger)
		if err != nil {
			return fmt.Errorf("check stock: %w", err)
		}
		if err := shared.NewIdempotencyStore(pool).Cleanup(ctx, shared.IdempotencyRetention); err != nil {
			logger.Warn("idempotency cleanup", slog.Any("error", err))
		}
		logger.Info("ledger integrity check finished",
			slog.Int("balance_drift", drift), slog.Int("stock_drift", stockDrift))
		return nil
	}
}

func checkBalances(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) (int, error) {
	rows, err := pool.Query(ctx, `SELECT u.userid, u.saldo, COALESCE(SUM(sh.difference), 0)
FROM rvperson u
LEFT JOIN saldohistory sh ON sh.userid = u.userid
GROUP BY u.userid, u.saldo
HAVING u.saldo <> COALESCE(SUM(sh.difference), 0)`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	drift := 0
	for rows.Next() {
		var userID, balance, recomputed int64
		if err := rows.Scan(&userID, &balance, &recomputed); err != nil {
			return drift, err
		}
		drift++
		logger.Warn("account balance drifts from history",
			slog.Int64("user_id", userID), slog.Int64("balance", balance), slog.Int64("recomputed", recomputed))
	}
	return drift, rows.Err()
}

func checkStock(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) (int, error) {
	rows, err := pool.Query(ctx, `SELECT p.barcode, p.count, latest.count
FROM price p
JOIN LATERAL (
	SELECT ih.count FROM itemhistory ih
	WHERE ih.itemid = p.itemid
	ORDER BY ih.time DESC, ih.itemhistid DESC
	LIMIT 1
) latest ON true
WHERE p.endtime IS NULL AND p.count <> latest.count`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	drift := 0
	for rows.Next() {
		var barcode string
		var stock, recorded int64
		if err := rows.Scan(&barcode, &stock, &recorded); err != nil {
			return drift, err
		}
		drift++
		logger.Warn("product stock drifts from history",
			slog.String("barcode", barcode), slog.Int64("stock", stock), slog.Int64("last_recorded", recorded))
	}
	return drift, rows.Err()
}
