package catalog

import (
	"context"
	"time"
)

// TxRepository exposes the transactional catalog operations. The price-row
// lifecycle lives in ClosePriceRow/OpenPriceRow so the "at most one open row
// per barcode" invariant is maintained in one place.
type TxRepository interface {
	// GetOpenPriceRow returns the open price row for barcode, or
	// shared.ErrNotFound.
	GetOpenPriceRow(ctx context.Context, barcode string) (PriceRow, error)

	// UpdateOpenPriceRowInPlace edits stock and/or buy price of the open row
	// without creating a new version.
	UpdateOpenPriceRowInPlace(ctx context.Context, barcode string, stock, buyPrice *int64) error

	// ClosePriceRow stamps the open row's closing time and returns the row as
	// it was closed.
	ClosePriceRow(ctx context.Context, barcode string, at time.Time) (PriceRow, error)

	// OpenPriceRow inserts a new open row. At most one open row may exist per
	// barcode; callers close the previous row first.
	OpenPriceRow(ctx context.Context, row PriceRow, userID int64, at time.Time) error

	UpdateProductFields(ctx context.Context, productID int64, name *string, categoryID *int64) error
	InsertProduct(ctx context.Context, name string, categoryID int64) (int64, error)
	SoftDeleteProduct(ctx context.Context, productID int64) error

	GetCategory(ctx context.Context, categoryID int64) (Category, error)

	InsertBox(ctx context.Context, input BoxInput) error
	UpdateBoxFields(ctx context.Context, boxBarcode string, upd BoxUpdate) error
	DeleteBox(ctx context.Context, boxBarcode string) error
	InsertBoxEvent(ctx context.Context, ev BoxEvent) (int64, error)
}

// RepositoryPort abstracts the repository for the service: read-side queries
// run outside transactions, write paths compose TxRepository calls.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	ListProducts(ctx context.Context) ([]Product, error)
	SearchProducts(ctx context.Context, query string) ([]Product, error)
	FindProductByBarcode(ctx context.Context, barcode string) (Product, error)

	ListCategories(ctx context.Context) ([]Category, error)
	FindCategoryByID(ctx context.Context, categoryID int64) (Category, error)
	InsertCategory(ctx context.Context, description string) (Category, error)
	UpdateCategory(ctx context.Context, categoryID int64, description string) error
	DeleteCategory(ctx context.Context, categoryID, moveProductsTo int64) (CategoryDeletion, error)

	ListBoxes(ctx context.Context, productBarcode string) ([]Box, error)
	FindBoxByBarcode(ctx context.Context, boxBarcode string) (Box, error)
}
