package history

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ruokavalitys/rv-update-backend/internal/ledger"
	"github.com/Ruokavalitys/rv-update-backend/internal/shared"
)

// Repository reads history projections from PostgreSQL. All queries are
// read-only and run outside transactions.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// purchaseSelect projects one unit purchase with its reversal flag. The
// LEFT JOIN back onto itemhistory finds the return event whose back-link
// points at this row.
const purchaseSelect = `SELECT ih.itemhistid, ih.time, p.barcode, i.descr,
	-sh.difference, sh.saldo, ih.count,
	rev.itemhistid IS NOT NULL,
	u.userid, u.name, u.realname
FROM itemhistory ih
JOIN saldohistory sh ON sh.saldhistid = ih.saldhistid
JOIN price p ON p.priceid = ih.priceid1
JOIN rvitem i ON i.itemid = ih.itemid
JOIN rvperson u ON u.userid = ih.userid
LEFT JOIN itemhistory rev ON rev.itemhistid2 = ih.itemhistid`

func scanPurchase(row pgx.CollectableRow) (PurchaseEvent, error) {
	var ev PurchaseEvent
	err := row.Scan(&ev.PurchaseID, &ev.Time, &ev.Product.Barcode, &ev.Product.Name,
		&ev.Price, &ev.BalanceAfter, &ev.StockAfter, &ev.Returned,
		&ev.User.UserID, &ev.User.Username, &ev.User.FullName)
	return ev, err
}

func (r *Repository) ListPurchases(ctx context.Context, f Filter, page shared.Keyset) ([]PurchaseEvent, error) {
	conds := []string{fmt.Sprintf("ih.actionid = %d", ledger.ActionBoughtBy)}
	args := []any{}
	if f.UserID != 0 {
		args = append(args, f.UserID)
		conds = append(conds, fmt.Sprintf("ih.userid = $%d", len(args)))
	}
	if f.Barcode != "" {
		args = append(args, f.Barcode)
		conds = append(conds, fmt.Sprintf("p.barcode = $%d", len(args)))
	}
	if page.Before > 0 {
		args = append(args, page.Before)
		conds = append(conds, fmt.Sprintf("ih.itemhistid < $%d", len(args)))
	}
	args = append(args, page.Limit)
	query := fmt.Sprintf(`%s
WHERE %s
ORDER BY ih.time DESC, ih.itemhistid DESC
LIMIT $%d`, purchaseSelect, strings.Join(conds, " AND "), len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	return pgx.CollectRows(rows, scanPurchase)
}

func (r *Repository) FindPurchaseByID(ctx context.Context, purchaseID, userID int64) (PurchaseEvent, error) {
	conds := []string{fmt.Sprintf("ih.actionid = %d", ledger.ActionBoughtBy), "ih.itemhistid = $1"}
	args := []any{purchaseID}
	if userID != 0 {
		args = append(args, userID)
		conds = append(conds, "ih.userid = $2")
	}
	query := fmt.Sprintf("%s\nWHERE %s", purchaseSelect, strings.Join(conds, " AND "))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return PurchaseEvent{}, fmt.Errorf("find purchase: %w", err)
	}
	ev, err := pgx.CollectOneRow(rows, scanPurchase)
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseEvent{}, shared.ErrNotFound
	}
	return ev, err
}

const depositSelect = `SELECT ph.pershistid, ph.time, sh.difference, sh.saldo, ph.actionid,
	u.userid, u.name, u.realname
FROM personhist ph
JOIN saldohistory sh ON sh.saldhistid = ph.saldhistid
JOIN rvperson u ON u.userid = ph.userid1`

func scanDeposit(row pgx.CollectableRow) (DepositEvent, error) {
	var (
		ev     DepositEvent
		action ledger.Action
	)
	err := row.Scan(&ev.DepositID, &ev.Time, &ev.Amount, &ev.BalanceAfter, &action,
		&ev.User.UserID, &ev.User.Username, &ev.User.FullName)
	if err != nil {
		return DepositEvent{}, err
	}
	switch action {
	case ledger.ActionDepositBankTransfer:
		ev.Type = string(ledger.DepositBankTransfer)
	default:
		ev.Type = string(ledger.DepositCash)
	}
	return ev, nil
}

func (r *Repository) ListDeposits(ctx context.Context, f Filter, page shared.Keyset) ([]DepositEvent, error) {
	conds := []string{fmt.Sprintf("ph.actionid IN (%d, %d)",
		ledger.ActionDepositCash, ledger.ActionDepositBankTransfer)}
	args := []any{}
	if f.UserID != 0 {
		args = append(args, f.UserID)
		conds = append(conds, fmt.Sprintf("ph.userid1 = $%d", len(args)))
	}
	if page.Before > 0 {
		args = append(args, page.Before)
		conds = append(conds, fmt.Sprintf("ph.pershistid < $%d", len(args)))
	}
	args = append(args, page.Limit)
	query := fmt.Sprintf(`%s
WHERE %s
ORDER BY ph.time DESC, ph.pershistid DESC
LIMIT $%d`, depositSelect, strings.Join(conds, " AND "), len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list deposits: %w", err)
	}
	return pgx.CollectRows(rows, scanDeposit)
}

func (r *Repository) FindDepositByID(ctx context.Context, depositID, userID int64) (DepositEvent, error) {
	conds := []string{fmt.Sprintf("ph.actionid IN (%d, %d)",
		ledger.ActionDepositCash, ledger.ActionDepositBankTransfer), "ph.pershistid = $1"}
	args := []any{depositID}
	if userID != 0 {
		args = append(args, userID)
		conds = append(conds, "ph.userid1 = $2")
	}
	query := fmt.Sprintf("%s\nWHERE %s", depositSelect, strings.Join(conds, " AND "))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return DepositEvent{}, fmt.Errorf("find deposit: %w", err)
	}
	ev, err := pgx.CollectOneRow(rows, scanDeposit)
	if errors.Is(err, pgx.ErrNoRows) {
		return DepositEvent{}, shared.ErrNotFound
	}
	return ev, err
}
