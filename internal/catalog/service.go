package catalog

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/Ruokavalitys/rv-update-backend/internal/ledger"
	"github.com/Ruokavalitys/rv-update-backend/internal/shared"
)

// MarginSource supplies the configured default margin for deriving a sell
// price when a new product is created without one.
type MarginSource interface {
	DefaultMargin(ctx context.Context) (float64, error)
}

// Service coordinates catalog reads and the price-versioned write paths.
type Service struct {
	repo    RepositoryPort
	logger  *slog.Logger
	cache   *ListCache
	margins MarginSource
	now     func() time.Time
}

// NewService builds Service. cache may be nil.
func NewService(repo RepositoryPort, logger *slog.Logger, cache *ListCache) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		cache:  cache,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithMargins enables sell-price derivation on product creation.
func (s *Service) WithMargins(margins MarginSource) *Service {
	s.margins = margins
	return s
}

// ListProducts returns all products with an open price row, cached.
func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	if s.cache == nil {
		return s.repo.ListProducts(ctx)
	}
	return s.cache.Products(ctx, s.repo.ListProducts)
}

// SearchProducts matches the query against product names and barcodes.
func (s *Service) SearchProducts(ctx context.Context, query string) ([]Product, error) {
	return s.repo.SearchProducts(ctx, query)
}

// FindByBarcode resolves one product, or shared.ErrNotFound.
func (s *Service) FindByBarcode(ctx context.Context, barcode string) (Product, error) {
	return s.repo.FindProductByBarcode(ctx, barcode)
}

// OpenSellPrice reports the current sell price of the product's open price
// row. Used by the purchase route's credit check.
func (s *Service) OpenSellPrice(ctx context.Context, barcode string) (int64, error) {
	p, err := s.repo.FindProductByBarcode(ctx, barcode)
	if err != nil {
		return 0, err
	}
	return p.SellPrice, nil
}

// CreateProduct inserts a product and opens its first price row. When the
// input leaves the sell price unset, it is derived from the buy price and
// the configured default margin, rounded up to the next cent.
func (s *Service) CreateProduct(ctx context.Context, input ProductInput, actorID int64) (Product, error) {
	if input.SellPrice == 0 && input.BuyPrice > 0 && s.margins != nil {
		margin, err := s.margins.DefaultMargin(ctx)
		if err != nil {
			return Product{}, err
		}
		input.SellPrice = int64(math.Ceil(float64(input.BuyPrice) * (1 + margin)))
	}
	now := s.now()
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetOpenPriceRow(ctx, input.Barcode); err == nil {
			return shared.ErrDuplicate
		} else if !errors.Is(err, shared.ErrNotFound) {
			return err
		}
		if _, err := tx.GetCategory(ctx, input.CategoryID); err != nil {
			return err
		}
		productID, err := tx.InsertProduct(ctx, input.Name, input.CategoryID)
		if err != nil {
			return err
		}
		return tx.OpenPriceRow(ctx, PriceRow{
			Barcode:   input.Barcode,
			ProductID: productID,
			BuyPrice:  input.BuyPrice,
			SellPrice: input.SellPrice,
			Stock:     input.Stock,
		}, actorID, now)
	})
	if err != nil {
		return Product{}, err
	}
	s.invalidate(ctx)
	return s.repo.FindProductByBarcode(ctx, input.Barcode)
}

// UpdateProduct applies field edits. A changed sell price closes the open
// price row and opens a new one carrying over the unchanged fields; other
// price-group edits mutate the open row in place.
func (s *Service) UpdateProduct(ctx context.Context, barcode string, upd ProductUpdate, actorID int64) (Product, error) {
	now := s.now()
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		row, err := tx.GetOpenPriceRow(ctx, barcode)
		if err != nil {
			return err
		}

		if upd.Name != nil || upd.CategoryID != nil {
			if upd.CategoryID != nil {
				if _, err := tx.GetCategory(ctx, *upd.CategoryID); err != nil {
					return err
				}
			}
			if err := tx.UpdateProductFields(ctx, row.ProductID, upd.Name, upd.CategoryID); err != nil {
				return err
			}
		}

		if upd.Stock == nil && upd.BuyPrice == nil && upd.SellPrice == nil {
			return nil
		}

		if upd.SellPrice == nil || *upd.SellPrice == row.SellPrice {
			return tx.UpdateOpenPriceRowInPlace(ctx, barcode, upd.Stock, upd.BuyPrice)
		}

		// Sell price changed: version the row so past purchases keep pointing
		// at the price they were made under.
		closed, err := tx.ClosePriceRow(ctx, barcode, now)
		if err != nil {
			return err
		}
		next := PriceRow{
			Barcode:   closed.Barcode,
			ProductID: closed.ProductID,
			BuyPrice:  closed.BuyPrice,
			SellPrice: *upd.SellPrice,
			Stock:     closed.Stock,
		}
		if upd.BuyPrice != nil {
			next.BuyPrice = *upd.BuyPrice
		}
		if upd.Stock != nil {
			next.Stock = *upd.Stock
		}
		return tx.OpenPriceRow(ctx, next, actorID, now)
	})
	if err != nil {
		return Product{}, err
	}
	s.invalidate(ctx)
	return s.repo.FindProductByBarcode(ctx, barcode)
}

// UpdatePrices applies buy/sell price edits only. Satisfies the ledger
// handler's PriceUpdater port for price changes bundled with a buy-in.
func (s *Service) UpdatePrices(ctx context.Context, barcode string, buyPrice, sellPrice *int64, actorID int64) error {
	if buyPrice == nil && sellPrice == nil {
		return nil
	}
	_, err := s.UpdateProduct(ctx, barcode, ProductUpdate{BuyPrice: buyPrice, SellPrice: sellPrice}, actorID)
	return err
}

// DeleteProduct flags the product deleted. History keeps referencing it.
func (s *Service) DeleteProduct(ctx context.Context, barcode string) (Product, error) {
	product, err := s.repo.FindProductByBarcode(ctx, barcode)
	if err != nil {
		return Product{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		row, err := tx.GetOpenPriceRow(ctx, barcode)
		if err != nil {
			return err
		}
		return tx.SoftDeleteProduct(ctx, row.ProductID)
	})
	if err != nil {
		return Product{}, err
	}
	s.invalidate(ctx)
	return product, nil
}

// ListCategories returns all categories.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}

// FindCategoryByID resolves one category, or shared.ErrNotFound.
func (s *Service) FindCategoryByID(ctx context.Context, categoryID int64) (Category, error) {
	return s.repo.FindCategoryByID(ctx, categoryID)
}

// CreateCategory inserts a category.
func (s *Service) CreateCategory(ctx context.Context, description string) (Category, error) {
	return s.repo.InsertCategory(ctx, description)
}

// UpdateCategory renames a category.
func (s *Service) UpdateCategory(ctx context.Context, categoryID int64, description string) (Category, error) {
	if err := s.repo.UpdateCategory(ctx, categoryID, description); err != nil {
		return Category{}, err
	}
	return Category{ID: categoryID, Description: description}, nil
}

// DeleteCategory moves its products to another category and soft-deletes it.
func (s *Service) DeleteCategory(ctx context.Context, categoryID, moveProductsTo int64) (CategoryDeletion, error) {
	if _, err := s.repo.FindCategoryByID(ctx, moveProductsTo); err != nil {
		return CategoryDeletion{}, err
	}
	result, err := s.repo.DeleteCategory(ctx, categoryID, moveProductsTo)
	if err != nil {
		return CategoryDeletion{}, err
	}
	s.invalidate(ctx)
	return result, nil
}

// ListBoxes returns boxes, optionally filtered by product barcode.
func (s *Service) ListBoxes(ctx context.Context, productBarcode string) ([]Box, error) {
	return s.repo.ListBoxes(ctx, productBarcode)
}

// FindBoxByBarcode resolves one box, or shared.ErrNotFound.
func (s *Service) FindBoxByBarcode(ctx context.Context, boxBarcode string) (Box, error) {
	return s.repo.FindBoxByBarcode(ctx, boxBarcode)
}

// CreateBox inserts a box and records its creation event.
func (s *Service) CreateBox(ctx context.Context, input BoxInput, actorID int64) (Box, error) {
	now := s.now()
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		row, err := tx.GetOpenPriceRow(ctx, input.ProductBarcode)
		if err != nil {
			return err
		}
		if err := tx.InsertBox(ctx, input); err != nil {
			return err
		}
		_, err = tx.InsertBoxEvent(ctx, BoxEvent{
			Time:        now,
			BoxBarcode:  input.BoxBarcode,
			ProductID:   row.ProductID,
			ItemsPerBox: input.ItemsPerBox,
			UserID:      actorID,
			Action:      ledger.ActionBoxCreated,
		})
		return err
	})
	if err != nil {
		return Box{}, err
	}
	return s.repo.FindBoxByBarcode(ctx, input.BoxBarcode)
}

// UpdateBox edits a box; an items-per-box change records a box event.
func (s *Service) UpdateBox(ctx context.Context, boxBarcode string, upd BoxUpdate, actorID int64) (Box, error) {
	current, err := s.repo.FindBoxByBarcode(ctx, boxBarcode)
	if err != nil {
		return Box{}, err
	}
	now := s.now()
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		productBarcode := current.Product.Barcode
		if upd.ProductBarcode != nil {
			productBarcode = *upd.ProductBarcode
		}
		row, err := tx.GetOpenPriceRow(ctx, productBarcode)
		if err != nil {
			return err
		}
		if err := tx.UpdateBoxFields(ctx, boxBarcode, upd); err != nil {
			return err
		}
		if upd.ItemsPerBox != nil && *upd.ItemsPerBox != current.ItemsPerBox {
			if _, err := tx.InsertBoxEvent(ctx, BoxEvent{
				Time:        now,
				BoxBarcode:  boxBarcode,
				ProductID:   row.ProductID,
				ItemsPerBox: *upd.ItemsPerBox,
				UserID:      actorID,
				Action:      ledger.ActionBoxItemCountChanged,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Box{}, err
	}
	return s.repo.FindBoxByBarcode(ctx, boxBarcode)
}

// DeleteBox removes a box. Box history rows are kept.
func (s *Service) DeleteBox(ctx context.Context, boxBarcode string) (Box, error) {
	box, err := s.repo.FindBoxByBarcode(ctx, boxBarcode)
	if err != nil {
		return Box{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeleteBox(ctx, boxBarcode)
	})
	if err != nil {
		return Box{}, err
	}
	return box, nil
}

// Invalidate drops cached listings. Wired into the ledger service so stock
// shown to kiosks follows purchases promptly.
func (s *Service) Invalidate(ctx context.Context) {
	s.invalidate(ctx)
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}
