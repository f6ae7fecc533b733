package ledger

import (
	"errors"
	"time"
)

// Action enumerates history event kinds. The numeric values are the legacy
// RV action ids and must not be renumbered: history rows referencing them
// date back to the original register.
type Action int

const (
	ActionItemCreated         Action = 1
	ActionDescriptionChanged  Action = 2
	ActionCategoryChanged     Action = 4
	ActionBoughtBy            Action = 5
	ActionBuyPriceChanged     Action = 6
	ActionSellPriceChanged    Action = 7
	ActionStockChanged        Action = 8
	ActionUserCreated         Action = 9
	ActionMoneyWithdrawn      Action = 16
	ActionMoneyDeposited      Action = 17
	ActionRoleChanged         Action = 18
	ActionBoxCreated          Action = 24
	ActionBoxItemCountChanged Action = 25
	ActionDepositCash         Action = 26
	ActionDepositBankTransfer Action = 27
	ActionProductReturned     Action = 28
	ActionProductBuyIn        Action = 29
)

// DepositKind selects the account-history action recorded for a deposit.
type DepositKind string

const (
	DepositCash         DepositKind = "cash"
	DepositBankTransfer DepositKind = "banktransfer"
)

// Action maps the deposit kind to its history action.
func (k DepositKind) Action() (Action, bool) {
	switch k {
	case DepositCash:
		return ActionDepositCash, true
	case DepositBankTransfer:
		return ActionDepositBankTransfer, true
	default:
		return 0, false
	}
}

// PriceRowRef captures the open price row touched by a ledger operation,
// with Stock reflecting the row after the operation's stock adjustment.
type PriceRowRef struct {
	PriceID   int64
	ProductID int64
	SellPrice int64
	Stock     int64
}

// BalanceEvent is one append-only balance history row. Balance is the
// account balance after applying Difference.
type BalanceEvent struct {
	ID         int64
	UserID     int64
	Time       time.Time
	Balance    int64
	Difference int64
}

// ItemEvent is one append-only item history row. Stock is the product stock
// after the event. BalanceEventID links to the balance mutation the event
// caused, if any. ReversesID back-links a return to the purchase it undoes.
type ItemEvent struct {
	ID             int64
	Time           time.Time
	Stock          int64
	Action         Action
	ProductID      int64
	UserID         int64
	PriceID        int64
	BalanceEventID int64
	ReversesID     int64
}

// PersonEvent is one append-only account history row (deposits, registration,
// role changes). ActorID is the user who performed the action, TargetID the
// user it affected.
type PersonEvent struct {
	ID             int64
	Time           time.Time
	Action         Action
	ActorID        int64
	TargetID       int64
	BalanceEventID int64
}

// ReversiblePurchase identifies the purchase a return would undo.
type ReversiblePurchase struct {
	ItemEventID int64
	Difference  int64
}

// BoxRef resolves a box barcode for buy-in.
type BoxRef struct {
	ProductBarcode string
	ItemsPerBox    int64
}

// PurchaseReceipt is returned for each unit of a (multi-)purchase, in the
// order the units were recorded.
type PurchaseReceipt struct {
	PurchaseID   int64     `json:"purchaseId"`
	Time         time.Time `json:"time"`
	Price        int64     `json:"price"`
	BalanceAfter int64     `json:"balanceAfter"`
	StockAfter   int64     `json:"stockAfter"`
}

// DepositReceipt summarises a completed deposit.
type DepositReceipt struct {
	DepositID    int64     `json:"depositId"`
	Time         time.Time `json:"time"`
	Amount       int64     `json:"amount"`
	BalanceAfter int64     `json:"balanceAfter"`
}

// ErrNotFound indicates the referenced product, box or user does not exist.
var ErrNotFound = errors.New("ledger: not found")

// ErrConflict indicates a concurrent update broke an invariant, e.g. two
// returns racing for the same purchase.
var ErrConflict = errors.New("ledger: conflicting concurrent update")

// ErrInvalidCount indicates a non-positive purchase or buy-in count.
var ErrInvalidCount = errors.New("ledger: count must be positive")

// ErrInvalidAmount indicates a non-positive deposit amount.
var ErrInvalidAmount = errors.New("ledger: amount must be positive")

// ErrInvalidDepositKind indicates an unsupported deposit kind.
var ErrInvalidDepositKind = errors.New("ledger: unknown deposit kind")
