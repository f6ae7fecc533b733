package ledger

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryProduct struct {
	priceID   int64
	productID int64
	sellPrice int64
	stock     int64
}

type memoryAccount struct {
	balance int64
}

type memoryRepo struct {
	products map[string]*memoryProduct
	accounts map[int64]*memoryAccount
	boxes    map[string]BoxRef

	balanceEvents []BalanceEvent
	itemEvents    []ItemEvent
	personEvents  []PersonEvent
	nextID        int64

	failAfterStock bool
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		products: make(map[string]*memoryProduct),
		accounts: make(map[int64]*memoryAccount),
		boxes:    make(map[string]BoxRef),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := r.clone()
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		*r = *snapshot
		return err
	}
	return nil
}

func (r *memoryRepo) clone() *memoryRepo {
	c := newMemoryRepo()
	for k, v := range r.products {
		p := *v
		c.products[k] = &p
	}
	for k, v := range r.accounts {
		a := *v
		c.accounts[k] = &a
	}
	for k, v := range r.boxes {
		c.boxes[k] = v
	}
	c.balanceEvents = append([]BalanceEvent(nil), r.balanceEvents...)
	c.itemEvents = append([]ItemEvent(nil), r.itemEvents...)
	c.personEvents = append([]PersonEvent(nil), r.personEvents...)
	c.nextID = r.nextID
	c.failAfterStock = r.failAfterStock
	return c
}

func (tx *memoryTx) FindOpenPriceRow(ctx context.Context, barcode string) (PriceRowRef, error) {
	p, ok := tx.repo.products[barcode]
	if !ok {
		return PriceRowRef{}, ErrNotFound
	}
	return PriceRowRef{PriceID: p.priceID, ProductID: p.productID, SellPrice: p.sellPrice, Stock: p.stock}, nil
}

func (tx *memoryTx) AdjustOpenPriceRowStock(ctx context.Context, barcode string, delta int64) (PriceRowRef, error) {
	p, ok := tx.repo.products[barcode]
	if !ok {
		return PriceRowRef{}, ErrNotFound
	}
	p.stock += delta
	return PriceRowRef{PriceID: p.priceID, ProductID: p.productID, SellPrice: p.sellPrice, Stock: p.stock}, nil
}

func (tx *memoryTx) AdjustBalance(ctx context.Context, userID, delta int64) (int64, error) {
	a, ok := tx.repo.accounts[userID]
	if !ok {
		return 0, ErrNotFound
	}
	if tx.repo.failAfterStock {
		return 0, context.DeadlineExceeded
	}
	a.balance += delta
	return a.balance, nil
}

func (tx *memoryTx) FindReversiblePurchase(ctx context.Context, userID, productID int64, since time.Time) (ReversiblePurchase, error) {
	reversed := make(map[int64]bool)
	for _, ev := range tx.repo.itemEvents {
		if ev.ReversesID != 0 {
			reversed[ev.ReversesID] = true
		}
	}
	for i := len(tx.repo.itemEvents) - 1; i >= 0; i-- {
		ev := tx.repo.itemEvents[i]
		if ev.Action != ActionBoughtBy || ev.UserID != userID || ev.ProductID != productID {
			continue
		}
		if ev.Time.Before(since) || reversed[ev.ID] {
			continue
		}
		var diff int64
		for _, be := range tx.repo.balanceEvents {
			if be.ID == ev.BalanceEventID {
				diff = be.Difference
			}
		}
		return ReversiblePurchase{ItemEventID: ev.ID, Difference: diff}, nil
	}
	return ReversiblePurchase{}, ErrNotFound
}

func (tx *memoryTx) FindBoxForBuyIn(ctx context.Context, boxBarcode string) (BoxRef, error) {
	ref, ok := tx.repo.boxes[boxBarcode]
	if !ok {
		return BoxRef{}, ErrNotFound
	}
	if _, ok := tx.repo.products[ref.ProductBarcode]; !ok {
		return BoxRef{}, ErrNotFound
	}
	return ref, nil
}

func (tx *memoryTx) InsertBalanceEvent(ctx context.Context, ev BalanceEvent) (int64, error) {
	tx.repo.nextID++
	ev.ID = tx.repo.nextID
	tx.repo.balanceEvents = append(tx.repo.balanceEvents, ev)
	return ev.ID, nil
}

func (tx *memoryTx) InsertItemEvent(ctx context.Context, ev ItemEvent) (int64, error) {
	if ev.ReversesID != 0 {
		for _, existing := range tx.repo.itemEvents {
			if existing.ReversesID == ev.ReversesID {
				return 0, ErrConflict
			}
		}
	}
	tx.repo.nextID++
	ev.ID = tx.repo.nextID
	tx.repo.itemEvents = append(tx.repo.itemEvents, ev)
	return ev.ID, nil
}

func (tx *memoryTx) InsertPersonEvent(ctx context.Context, ev PersonEvent) (int64, error) {
	tx.repo.nextID++
	ev.ID = tx.repo.nextID
	tx.repo.personEvents = append(tx.repo.personEvents, ev)
	return ev.ID, nil
}

func newTestService(repo *memoryRepo) *Service {
	return NewService(repo, slog.Default(), ServiceConfig{})
}

func seedProduct(repo *memoryRepo, barcode string, sellPrice, stock int64) {
	repo.products[barcode] = &memoryProduct{priceID: 100, productID: 7, sellPrice: sellPrice, stock: stock}
}

func TestPurchaseMultiBuy(t *testing.T) {
	repo := newMemoryRepo()
	seedProduct(repo, "6415600001234", 150, 10)
	repo.accounts[1] = &memoryAccount{balance: 200}
	svc := newTestService(repo)

	receipts, err := svc.Purchase(context.Background(), "6415600001234", 1, 2)
	require.NoError(t, err)
	require.Len(t, receipts, 2)

	require.Equal(t, int64(9), receipts[0].StockAfter)
	require.Equal(t, int64(50), receipts[0].BalanceAfter)
	require.Equal(t, int64(8), receipts[1].StockAfter)
	require.Equal(t, int64(-100), receipts[1].BalanceAfter)
	require.Equal(t, receipts[0].Time, receipts[1].Time)
	require.Greater(t, receipts[1].PurchaseID, receipts[0].PurchaseID)

	require.Equal(t, int64(-100), repo.accounts[1].balance)
	require.Equal(t, int64(8), repo.products["6415600001234"].stock)
	require.Len(t, repo.balanceEvents, 2)
	require.Len(t, repo.itemEvents, 2)
	for i, ev := range repo.itemEvents {
		require.Equal(t, ActionBoughtBy, ev.Action)
		require.Equal(t, repo.balanceEvents[i].ID, ev.BalanceEventID)
	}
}

func TestPurchaseUnknownBarcode(t *testing.T) {
	repo := newMemoryRepo()
	repo.accounts[1] = &memoryAccount{balance: 500}
	svc := newTestService(repo)

	_, err := svc.Purchase(context.Background(), "404", 1, 1)
	require.ErrorIs(t, err, ErrNotFound)
	require.Empty(t, repo.balanceEvents)
	require.Empty(t, repo.itemEvents)
}

func TestPurchaseRollsBackOnFailure(t *testing.T) {
	repo := newMemoryRepo()
	seedProduct(repo, "123", 100, 5)
	repo.accounts[1] = &memoryAccount{balance: 500}
	repo.failAfterStock = true
	svc := newTestService(repo)

	_, err := svc.Purchase(context.Background(), "123", 1, 3)
	require.Error(t, err)
	require.Equal(t, int64(5), repo.products["123"].stock)
	require.Equal(t, int64(500), repo.accounts[1].balance)
	require.Empty(t, repo.itemEvents)
}

func TestReturnRestoresBalanceAndStock(t *testing.T) {
	repo := newMemoryRepo()
	seedProduct(repo, "123", 150, 10)
	repo.accounts[1] = &memoryAccount{balance: 200}
	svc := newTestService(repo)

	_, err := svc.Purchase(context.Background(), "123", 1, 1)
	require.NoError(t, err)
	require.Equal(t, int64(50), repo.accounts[1].balance)

	ok, err := svc.ReturnPurchase(context.Background(), "123", 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(200), repo.accounts[1].balance)
	require.Equal(t, int64(10), repo.products["123"].stock)

	returnEvent := repo.itemEvents[len(repo.itemEvents)-1]
	require.Equal(t, ActionProductReturned, returnEvent.Action)
	require.Equal(t, repo.itemEvents[0].ID, returnEvent.ReversesID)
	require.NotZero(t, returnEvent.BalanceEventID)

	// The same purchase cannot be reversed twice.
	ok, err = svc.ReturnPurchase(context.Background(), "123", 1)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, int64(200), repo.accounts[1].balance)
	require.Equal(t, int64(10), repo.products["123"].stock)
}

func TestReturnWithoutPurchase(t *testing.T) {
	repo := newMemoryRepo()
	seedProduct(repo, "123", 150, 10)
	repo.accounts[1] = &memoryAccount{balance: 200}
	svc := newTestService(repo)

	ok, err := svc.ReturnPurchase(context.Background(), "123", 1)
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, repo.itemEvents)
	require.Empty(t, repo.balanceEvents)
}

func TestReturnOutsideWindow(t *testing.T) {
	repo := newMemoryRepo()
	seedProduct(repo, "123", 150, 10)
	repo.accounts[1] = &memoryAccount{balance: 200}
	svc := newTestService(repo)

	_, err := svc.Purchase(context.Background(), "123", 1, 1)
	require.NoError(t, err)

	// Shift the clock past the return window.
	svc.now = func() time.Time { return time.Now().UTC().Add(10 * time.Minute) }

	ok, err := svc.ReturnPurchase(context.Background(), "123", 1)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, int64(50), repo.accounts[1].balance)
	require.Equal(t, int64(9), repo.products["123"].stock)
}

func TestReturnReversesOriginalPriceAfterPriceChange(t *testing.T) {
	repo := newMemoryRepo()
	seedProduct(repo, "123", 150, 10)
	repo.accounts[1] = &memoryAccount{balance: 200}
	svc := newTestService(repo)

	_, err := svc.Purchase(context.Background(), "123", 1, 1)
	require.NoError(t, err)

	// Sell price changes between purchase and return; the reversal still
	// credits the price paid.
	repo.products["123"].sellPrice = 999

	ok, err := svc.ReturnPurchase(context.Background(), "123", 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(200), repo.accounts[1].balance)
}

func TestDeposit(t *testing.T) {
	repo := newMemoryRepo()
	repo.accounts[4] = &memoryAccount{balance: 120}
	svc := newTestService(repo)

	receipt, err := svc.Deposit(context.Background(), 4, 1000, DepositBankTransfer)
	require.NoError(t, err)
	require.Equal(t, int64(1000), receipt.Amount)
	require.Equal(t, int64(1120), receipt.BalanceAfter)
	require.Equal(t, int64(1120), repo.accounts[4].balance)

	require.Len(t, repo.balanceEvents, 1)
	require.Len(t, repo.personEvents, 1)
	require.Equal(t, ActionDepositBankTransfer, repo.personEvents[0].Action)
	require.Equal(t, repo.balanceEvents[0].ID, repo.personEvents[0].BalanceEventID)
	require.Empty(t, repo.itemEvents)
}

func TestDepositValidation(t *testing.T) {
	repo := newMemoryRepo()
	repo.accounts[4] = &memoryAccount{balance: 0}
	svc := newTestService(repo)

	_, err := svc.Deposit(context.Background(), 4, 0, DepositCash)
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.Deposit(context.Background(), 4, 100, DepositKind("cheque"))
	require.ErrorIs(t, err, ErrInvalidDepositKind)

	_, err = svc.Deposit(context.Background(), 99, 100, DepositCash)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBuyIn(t *testing.T) {
	repo := newMemoryRepo()
	seedProduct(repo, "123", 150, -3)
	svc := newTestService(repo)

	stock, err := svc.BuyIn(context.Background(), "123", 10, 2)
	require.NoError(t, err)
	require.Equal(t, int64(7), stock)

	require.Len(t, repo.itemEvents, 1)
	require.Equal(t, ActionProductBuyIn, repo.itemEvents[0].Action)
	require.Zero(t, repo.itemEvents[0].BalanceEventID)
	require.Empty(t, repo.balanceEvents)

	_, err = svc.BuyIn(context.Background(), "404", 1, 2)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBoxBuyIn(t *testing.T) {
	repo := newMemoryRepo()
	seedProduct(repo, "123", 150, 4)
	repo.products["other"] = &memoryProduct{priceID: 101, productID: 8, sellPrice: 90, stock: 2}
	repo.boxes["bx1"] = BoxRef{ProductBarcode: "123", ItemsPerBox: 24}
	svc := newTestService(repo)

	stock, err := svc.BuyInBox(context.Background(), "bx1", 3, 2)
	require.NoError(t, err)
	require.Equal(t, int64(4+3*24), stock)
	require.Equal(t, int64(2), repo.products["other"].stock)

	_, err = svc.BuyInBox(context.Background(), "nope", 1, 2)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentDoubleReturnConflict(t *testing.T) {
	repo := newMemoryRepo()
	seedProduct(repo, "123", 150, 10)
	repo.accounts[1] = &memoryAccount{balance: 200}
	svc := newTestService(repo)

	_, err := svc.Purchase(context.Background(), "123", 1, 1)
	require.NoError(t, err)

	// Forge a competing reversal row as a second transaction would leave it,
	// then verify the insert path surfaces the conflict.
	purchaseID := repo.itemEvents[0].ID
	tx := &memoryTx{repo: repo}
	_, err = tx.InsertItemEvent(context.Background(), ItemEvent{Action: ActionProductReturned, ReversesID: purchaseID})
	require.NoError(t, err)
	_, err = tx.InsertItemEvent(context.Background(), ItemEvent{Action: ActionProductReturned, ReversesID: purchaseID})
	require.ErrorIs(t, err, ErrConflict)
}

func TestAdjustBalanceRecordsHistory(t *testing.T) {
	repo := newMemoryRepo()
	repo.accounts[3] = &memoryAccount{balance: 250}
	svc := newTestService(repo)

	balance, err := svc.AdjustBalance(context.Background(), 3, 750, 1)
	require.NoError(t, err)
	require.Equal(t, int64(1000), balance)

	require.Len(t, repo.balanceEvents, 1)
	require.Equal(t, int64(750), repo.balanceEvents[0].Difference)
	require.Len(t, repo.personEvents, 1)
	require.Equal(t, ActionMoneyDeposited, repo.personEvents[0].Action)
	require.Equal(t, int64(1), repo.personEvents[0].ActorID)
	require.Equal(t, repo.balanceEvents[0].ID, repo.personEvents[0].BalanceEventID)
}

func TestAdjustBalanceWithdrawal(t *testing.T) {
	repo := newMemoryRepo()
	repo.accounts[3] = &memoryAccount{balance: 250}
	svc := newTestService(repo)

	balance, err := svc.AdjustBalance(context.Background(), 3, -100, 1)
	require.NoError(t, err)
	require.Equal(t, int64(150), balance)
	require.Equal(t, ActionMoneyWithdrawn, repo.personEvents[0].Action)
}

func TestAdjustBalanceRejectsZeroDelta(t *testing.T) {
	repo := newMemoryRepo()
	repo.accounts[3] = &memoryAccount{balance: 250}
	svc := newTestService(repo)

	_, err := svc.AdjustBalance(context.Background(), 3, 0, 1)
	require.ErrorIs(t, err, ErrInvalidAmount)
	require.Empty(t, repo.personEvents)
}
