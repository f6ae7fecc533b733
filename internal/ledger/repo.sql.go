package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ruokavalitys/rv-update-backend/internal/platform/db"
)

// Repository persists ledger data in PostgreSQL using the legacy RV schema.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a single database transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *txRepository) FindOpenPriceRow(ctx context.Context, barcode string) (PriceRowRef, error) {
	var ref PriceRowRef
	err := r.tx.QueryRow(ctx, `SELECT priceid, itemid, sellprice, count
FROM price WHERE barcode=$1 AND endtime IS NULL`, barcode).
		Scan(&ref.PriceID, &ref.ProductID, &ref.SellPrice, &ref.Stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PriceRowRef{}, ErrNotFound
		}
		return PriceRowRef{}, err
	}
	return ref, nil
}

func (r *txRepository) AdjustOpenPriceRowStock(ctx context.Context, barcode string, delta int64) (PriceRowRef, error) {
	var ref PriceRowRef
	err := r.tx.QueryRow(ctx, `UPDATE price SET count = count + $2
WHERE barcode=$1 AND endtime IS NULL
RETURNING priceid, itemid, sellprice, count`, barcode, delta).
		Scan(&ref.PriceID, &ref.ProductID, &ref.SellPrice, &ref.Stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PriceRowRef{}, ErrNotFound
		}
		return PriceRowRef{}, err
	}
	return ref, nil
}

func (r *txRepository) AdjustBalance(ctx context.Context, userID, delta int64) (int64, error) {
	var balance int64
	err := r.tx.QueryRow(ctx, `UPDATE rvperson SET saldo = saldo + $2
WHERE userid=$1 RETURNING saldo`, userID, delta).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return balance, nil
}

func (r *txRepository) FindReversiblePurchase(ctx context.Context, userID, productID int64, since time.Time) (ReversiblePurchase, error) {
	var rp ReversiblePurchase
	err := r.tx.QueryRow(ctx, `SELECT ih.itemhistid, sh.difference
FROM itemhistory ih
JOIN saldohistory sh ON sh.saldhistid = ih.saldhistid
LEFT JOIN itemhistory rev ON rev.itemhistid2 = ih.itemhistid
WHERE ih.actionid=$1 AND ih.userid=$2 AND ih.itemid=$3 AND ih.time >= $4
  AND rev.itemhistid IS NULL
ORDER BY ih.time DESC, ih.itemhistid DESC
LIMIT 1`, int(ActionBoughtBy), userID, productID, since).
		Scan(&rp.ItemEventID, &rp.Difference)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ReversiblePurchase{}, ErrNotFound
		}
		return ReversiblePurchase{}, err
	}
	return rp, nil
}

func (r *txRepository) FindBoxForBuyIn(ctx context.Context, boxBarcode string) (BoxRef, error) {
	var ref BoxRef
	err := r.tx.QueryRow(ctx, `SELECT b.itembarcode, b.itemcount
FROM rvbox b
JOIN price p ON p.barcode = b.itembarcode AND p.endtime IS NULL
WHERE b.barcode=$1`, boxBarcode).
		Scan(&ref.ProductBarcode, &ref.ItemsPerBox)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BoxRef{}, ErrNotFound
		}
		return BoxRef{}, err
	}
	return ref, nil
}

func (r *txRepository) InsertBalanceEvent(ctx context.Context, ev BalanceEvent) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO saldohistory (userid, time, saldo, difference)
VALUES ($1,$2,$3,$4) RETURNING saldhistid`, ev.UserID, ev.Time, ev.Balance, ev.Difference).Scan(&id)
	return id, err
}

func (r *txRepository) InsertItemEvent(ctx context.Context, ev ItemEvent) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO itemhistory (time, count, actionid, itemid, userid, priceid1, saldhistid, itemhistid2)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING itemhistid`,
		ev.Time, ev.Stock, int(ev.Action), ev.ProductID, ev.UserID, ev.PriceID,
		nullID(ev.BalanceEventID), nullID(ev.ReversesID)).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			// Two returns raced for the same purchase; the reversal link is
			// unique so the loser aborts here.
			return 0, ErrConflict
		}
		return 0, err
	}
	return id, nil
}

func (r *txRepository) InsertPersonEvent(ctx context.Context, ev PersonEvent) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO personhist (time, actionid, userid1, userid2, saldhistid)
VALUES ($1,$2,$3,$4,$5) RETURNING pershistid`,
		ev.Time, int(ev.Action), ev.ActorID, ev.TargetID, nullID(ev.BalanceEventID)).Scan(&id)
	return id, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
