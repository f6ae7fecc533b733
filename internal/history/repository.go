package history

import (
	"context"

	"github.com/Ruokavalitys/rv-update-backend/internal/shared"
)

// RepositoryPort abstracts the read-side history queries. All listings run
// newest-first with keyset pagination by event id.
type RepositoryPort interface {
	// ListPurchases returns unit purchase events matching the filter.
	ListPurchases(ctx context.Context, f Filter, page shared.Keyset) ([]PurchaseEvent, error)

	// FindPurchaseByID resolves one purchase event. A non-zero userID scopes
	// the lookup to that account. Returns shared.ErrNotFound when absent.
	FindPurchaseByID(ctx context.Context, purchaseID, userID int64) (PurchaseEvent, error)

	// ListDeposits returns deposit events matching the filter.
	ListDeposits(ctx context.Context, f Filter, page shared.Keyset) ([]DepositEvent, error)

	// FindDepositByID resolves one deposit event, scoped like
	// FindPurchaseByID.
	FindDepositByID(ctx context.Context, depositID, userID int64) (DepositEvent, error)
}
