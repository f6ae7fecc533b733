package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Service implements the balance- and stock-affecting operations. Every
// operation runs as one transaction: on error nothing is written.
type Service struct {
	repo         RepositoryPort
	logger       *slog.Logger
	returnWindow time.Duration
	invalidate   func(ctx context.Context)
	now          func() time.Time
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	// ReturnWindow bounds how old a purchase may be and still be returned.
	// Defaults to five minutes.
	ReturnWindow time.Duration
	// Invalidate, when set, is called after every committed write so read-side
	// caches can drop stale listings.
	Invalidate func(ctx context.Context)
}

// DefaultReturnWindow is applied when ServiceConfig leaves ReturnWindow zero.
const DefaultReturnWindow = 5 * time.Minute

// NewService builds Service.
func NewService(repo RepositoryPort, logger *slog.Logger, cfg ServiceConfig) *Service {
	window := cfg.ReturnWindow
	if window <= 0 {
		window = DefaultReturnWindow
	}
	return &Service{
		repo:         repo,
		logger:       logger,
		returnWindow: window,
		invalidate:   cfg.Invalidate,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Purchase records a purchase of count units of the product identified by
// barcode, decrementing stock and the user's balance once and appending one
// balance-history and one item-history row per unit. All units share a
// timestamp; ordering between them is carried by their monotonic event ids.
// Affordability is the caller's concern and is not re-checked here.
func (s *Service) Purchase(ctx context.Context, barcode string, userID int64, count int64) ([]PurchaseReceipt, error) {
	if count < 1 {
		return nil, ErrInvalidCount
	}

	now := s.now()
	receipts := make([]PurchaseReceipt, 0, count)

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		row, err := tx.AdjustOpenPriceRowStock(ctx, barcode, -count)
		if err != nil {
			return err
		}

		balance, err := tx.AdjustBalance(ctx, userID, -count*row.SellPrice)
		if err != nil {
			return err
		}

		// Per-unit history fold: each iteration depends on the previous
		// unit's derived stock and balance, so this stays sequential.
		stock := row.Stock + count
		running := balance + count*row.SellPrice
		for i := int64(0); i < count; i++ {
			stock--
			running -= row.SellPrice

			saldID, err := tx.InsertBalanceEvent(ctx, BalanceEvent{
				UserID:     userID,
				Time:       now,
				Balance:    running,
				Difference: -row.SellPrice,
			})
			if err != nil {
				return err
			}
			itemID, err := tx.InsertItemEvent(ctx, ItemEvent{
				Time:           now,
				Stock:          stock,
				Action:         ActionBoughtBy,
				ProductID:      row.ProductID,
				UserID:         userID,
				PriceID:        row.PriceID,
				BalanceEventID: saldID,
			})
			if err != nil {
				return err
			}

			receipts = append(receipts, PurchaseReceipt{
				PurchaseID:   itemID,
				Time:         now,
				Price:        row.SellPrice,
				BalanceAfter: running,
				StockAfter:   stock,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx)
	return receipts, nil
}

// ReturnPurchase reverses the user's most recent unreturned purchase of the
// product within the return window. A false result means no eligible purchase
// existed; that is an expected outcome, not an error, and causes no writes.
func (s *Service) ReturnPurchase(ctx context.Context, barcode string, userID int64) (bool, error) {
	now := s.now()
	success := false

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		row, err := tx.FindOpenPriceRow(ctx, barcode)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return err
		}

		purchase, err := tx.FindReversiblePurchase(ctx, userID, row.ProductID, now.Add(-s.returnWindow))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return err
		}

		updated, err := tx.AdjustOpenPriceRowStock(ctx, barcode, 1)
		if err != nil {
			return err
		}
		// The original decrement is reversed exactly, whatever the product's
		// current sell price is.
		balance, err := tx.AdjustBalance(ctx, userID, -purchase.Difference)
		if err != nil {
			return err
		}

		saldID, err := tx.InsertBalanceEvent(ctx, BalanceEvent{
			UserID:     userID,
			Time:       now,
			Balance:    balance,
			Difference: -purchase.Difference,
		})
		if err != nil {
			return err
		}
		if _, err := tx.InsertItemEvent(ctx, ItemEvent{
			Time:           now,
			Stock:          updated.Stock,
			Action:         ActionProductReturned,
			ProductID:      updated.ProductID,
			UserID:         userID,
			PriceID:        updated.PriceID,
			BalanceEventID: saldID,
			ReversesID:     purchase.ItemEventID,
		}); err != nil {
			return err
		}

		success = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if success {
		s.afterWrite(ctx)
	}
	return success, nil
}

// Deposit credits the user's account and records linked balance- and
// account-history rows.
func (s *Service) Deposit(ctx context.Context, userID, amount int64, kind DepositKind) (DepositReceipt, error) {
	if amount < 1 {
		return DepositReceipt{}, ErrInvalidAmount
	}
	action, ok := kind.Action()
	if !ok {
		return DepositReceipt{}, ErrInvalidDepositKind
	}

	now := s.now()
	var receipt DepositReceipt

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		balance, err := tx.AdjustBalance(ctx, userID, amount)
		if err != nil {
			return err
		}
		saldID, err := tx.InsertBalanceEvent(ctx, BalanceEvent{
			UserID:     userID,
			Time:       now,
			Balance:    balance,
			Difference: amount,
		})
		if err != nil {
			return err
		}
		depositID, err := tx.InsertPersonEvent(ctx, PersonEvent{
			Time:           now,
			Action:         action,
			ActorID:        userID,
			TargetID:       userID,
			BalanceEventID: saldID,
		})
		if err != nil {
			return err
		}
		receipt = DepositReceipt{DepositID: depositID, Time: now, Amount: amount, BalanceAfter: balance}
		return nil
	})
	if err != nil {
		return DepositReceipt{}, err
	}

	s.afterWrite(ctx)
	return receipt, nil
}

// AdjustBalance applies an administrative balance correction of delta and
// records it like a money movement: one balance-history row plus one
// account-history row naming the acting admin. Returns the new balance.
func (s *Service) AdjustBalance(ctx context.Context, userID, delta, actorID int64) (int64, error) {
	if delta == 0 {
		return 0, ErrInvalidAmount
	}
	action := ActionMoneyDeposited
	if delta < 0 {
		action = ActionMoneyWithdrawn
	}

	now := s.now()
	var newBalance int64

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		balance, err := tx.AdjustBalance(ctx, userID, delta)
		if err != nil {
			return err
		}
		saldID, err := tx.InsertBalanceEvent(ctx, BalanceEvent{
			UserID:     userID,
			Time:       now,
			Balance:    balance,
			Difference: delta,
		})
		if err != nil {
			return err
		}
		if _, err := tx.InsertPersonEvent(ctx, PersonEvent{
			Time:           now,
			Action:         action,
			ActorID:        actorID,
			TargetID:       userID,
			BalanceEventID: saldID,
		}); err != nil {
			return err
		}
		newBalance = balance
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.afterWrite(ctx)
	return newBalance, nil
}

// BuyIn restocks a product by count units and records one item-history row.
// Balances are never touched. Returns the new stock.
func (s *Service) BuyIn(ctx context.Context, barcode string, count, userID int64) (int64, error) {
	if count < 1 {
		return 0, ErrInvalidCount
	}
	return s.buyIn(ctx, barcode, count, userID)
}

// BuyInBox restocks via a box barcode, crediting itemsPerBox stock units per
// box to the underlying product. Returns the product's new stock.
func (s *Service) BuyInBox(ctx context.Context, boxBarcode string, boxCount, userID int64) (int64, error) {
	if boxCount < 1 {
		return 0, ErrInvalidCount
	}

	now := s.now()
	var stock int64

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		box, err := tx.FindBoxForBuyIn(ctx, boxBarcode)
		if err != nil {
			return err
		}
		row, err := tx.AdjustOpenPriceRowStock(ctx, box.ProductBarcode, box.ItemsPerBox*boxCount)
		if err != nil {
			return err
		}
		if _, err := tx.InsertItemEvent(ctx, ItemEvent{
			Time:      now,
			Stock:     row.Stock,
			Action:    ActionProductBuyIn,
			ProductID: row.ProductID,
			UserID:    userID,
			PriceID:   row.PriceID,
		}); err != nil {
			return err
		}
		stock = row.Stock
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.afterWrite(ctx)
	return stock, nil
}

func (s *Service) buyIn(ctx context.Context, barcode string, count, userID int64) (int64, error) {
	now := s.now()
	var stock int64

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		row, err := tx.AdjustOpenPriceRowStock(ctx, barcode, count)
		if err != nil {
			return err
		}
		if _, err := tx.InsertItemEvent(ctx, ItemEvent{
			Time:      now,
			Stock:     row.Stock,
			Action:    ActionProductBuyIn,
			ProductID: row.ProductID,
			UserID:    userID,
			PriceID:   row.PriceID,
		}); err != nil {
			return err
		}
		stock = row.Stock
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.afterWrite(ctx)
	return stock, nil
}

func (s *Service) afterWrite(ctx context.Context) {
	if s.invalidate != nil {
		s.invalidate(ctx)
	}
}
