package ledger

import (
	"context"
	"time"
)

// TxRepository exposes the transactional operations the ledger composes.
// Every method runs against the same database transaction; stock and balance
// adjustments are single atomic statements, not read-then-write.
type TxRepository interface {
	// FindOpenPriceRow resolves the currently open price row for barcode
	// without mutating it. Returns ErrNotFound when no open row exists.
	FindOpenPriceRow(ctx context.Context, barcode string) (PriceRowRef, error)

	// AdjustOpenPriceRowStock applies delta to the open price row's stock in
	// one statement and returns the row after the update. Returns ErrNotFound
	// when no open row exists. Stock may go negative.
	AdjustOpenPriceRowStock(ctx context.Context, barcode string, delta int64) (PriceRowRef, error)

	// AdjustBalance applies delta to the user's balance in one statement and
	// returns the resulting balance. Returns ErrNotFound for unknown users.
	AdjustBalance(ctx context.Context, userID, delta int64) (int64, error)

	// FindReversiblePurchase returns the newest purchase by userID of
	// productID at or after since that no other event reverses. Returns
	// ErrNotFound when there is none.
	FindReversiblePurchase(ctx context.Context, userID, productID int64, since time.Time) (ReversiblePurchase, error)

	// FindBoxForBuyIn resolves a box barcode to its product barcode and
	// per-box item count. Returns ErrNotFound for unknown boxes or boxes
	// whose product has no open price row.
	FindBoxForBuyIn(ctx context.Context, boxBarcode string) (BoxRef, error)

	InsertBalanceEvent(ctx context.Context, ev BalanceEvent) (int64, error)
	InsertItemEvent(ctx context.Context, ev ItemEvent) (int64, error)
	InsertPersonEvent(ctx context.Context, ev PersonEvent) (int64, error)
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}
