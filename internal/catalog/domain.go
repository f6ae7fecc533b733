package catalog

import (
	"time"

	"github.com/Ruokavalitys/rv-update-backend/internal/ledger"
)

// Category groups products.
type Category struct {
	ID          int64  `json:"categoryId"`
	Description string `json:"description"`
}

// Product is the joined projection of a product and its open price row.
type Product struct {
	Barcode   string   `json:"barcode"`
	Name      string   `json:"name"`
	Category  Category `json:"category"`
	BuyPrice  int64    `json:"buyPrice"`
	SellPrice int64    `json:"sellPrice"`
	Stock     int64    `json:"stock"`
}

// ProductInput describes a product to create, including its first price row.
type ProductInput struct {
	Barcode    string
	Name       string
	CategoryID int64
	BuyPrice   int64
	SellPrice  int64
	Stock      int64
}

// ProductUpdate carries optional field edits. Nil means "leave unchanged".
// A changed sell price versions the price row; other price-group fields are
// edited in place.
type ProductUpdate struct {
	Name       *string
	CategoryID *int64
	BuyPrice   *int64
	SellPrice  *int64
	Stock      *int64
}

// PriceRow is one version of a product's pricing over a time interval.
// ClosedAt nil marks the currently open row.
type PriceRow struct {
	PriceID   int64
	Barcode   string
	ProductID int64
	BuyPrice  int64
	SellPrice int64
	Stock     int64
	OpenedAt  time.Time
	ClosedAt  *time.Time
}

// Box is a secondary barcode representing a pack of its product.
type Box struct {
	BoxBarcode  string  `json:"boxBarcode"`
	ItemsPerBox int64   `json:"itemsPerBox"`
	Product     Product `json:"product"`
}

// BoxInput describes a box to create.
type BoxInput struct {
	BoxBarcode     string
	ProductBarcode string
	ItemsPerBox    int64
}

// BoxUpdate carries optional box edits.
type BoxUpdate struct {
	ProductBarcode *string
	ItemsPerBox    *int64
}

// BoxEvent is one append-only box history row.
type BoxEvent struct {
	ID          int64
	Time        time.Time
	BoxBarcode  string
	ProductID   int64
	ItemsPerBox int64
	UserID      int64
	Action      ledger.Action
}

// CategoryDeletion reports the outcome of deleting a category.
type CategoryDeletion struct {
	Category      Category `json:"category"`
	MovedProducts []string `json:"movedProducts"`
}
