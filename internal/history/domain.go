package history

import "time"

// ProductRef identifies the product a purchase event concerns.
type ProductRef struct {
	Barcode string `json:"barcode"`
	Name    string `json:"name"`
}

// UserRef identifies the account an event belongs to.
type UserRef struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
}

// PurchaseEvent is one unit purchase as read back from the item history.
// Price is the amount charged, positive. Returned reports whether a later
// return event reverses this purchase.
type PurchaseEvent struct {
	PurchaseID   int64      `json:"purchaseId"`
	Time         time.Time  `json:"time"`
	Product      ProductRef `json:"product"`
	Price        int64      `json:"price"`
	BalanceAfter int64      `json:"balanceAfter"`
	StockAfter   int64      `json:"stockAfter"`
	Returned     bool       `json:"returned"`
	User         UserRef    `json:"user"`
}

// DepositEvent is one deposit as read back from the account history.
type DepositEvent struct {
	DepositID    int64     `json:"depositId"`
	Time         time.Time `json:"time"`
	Amount       int64     `json:"amount"`
	BalanceAfter int64     `json:"balanceAfter"`
	Type         string    `json:"type"`
	User         UserRef   `json:"user"`
}

// Filter narrows history listings. Zero values mean "no restriction".
type Filter struct {
	UserID  int64
	Barcode string
}
