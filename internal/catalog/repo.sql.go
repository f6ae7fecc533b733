package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ruokavalitys/rv-update-backend/internal/platform/db"
	"github.com/Ruokavalitys/rv-update-backend/internal/shared"
)

// Repository persists catalog data in PostgreSQL using the legacy RV schema.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a single database transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("catalog repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const productSelect = `SELECT p.barcode, i.descr, i.pgrpid, COALESCE(g.descr, ''), p.buyprice, p.sellprice, p.count
FROM price p
JOIN rvitem i ON i.itemid = p.itemid
LEFT JOIN prodgroup g ON g.pgrpid = i.pgrpid
WHERE p.endtime IS NULL AND i.deleted IS NOT TRUE`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.Barcode, &p.Name, &p.Category.ID, &p.Category.Description, &p.BuyPrice, &p.SellPrice, &p.Stock)
	return p, err
}

func (r *Repository) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.pool.Query(ctx, productSelect+` ORDER BY i.descr`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProducts(rows)
}

func (r *Repository) SearchProducts(ctx context.Context, query string) ([]Product, error) {
	rows, err := r.pool.Query(ctx, productSelect+` AND (i.descr ILIKE '%'||$1||'%' OR p.barcode ILIKE '%'||$1||'%') ORDER BY i.descr`, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProducts(rows)
}

func (r *Repository) FindProductByBarcode(ctx context.Context, barcode string) (Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, productSelect+` AND p.barcode=$1`, barcode))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, shared.ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}

func collectProducts(rows pgx.Rows) ([]Product, error) {
	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *Repository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT pgrpid, descr FROM prodgroup WHERE deleted IS NOT TRUE ORDER BY pgrpid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	categories := []Category{}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Description); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *Repository) FindCategoryByID(ctx context.Context, categoryID int64) (Category, error) {
	var c Category
	err := r.pool.QueryRow(ctx, `SELECT pgrpid, descr FROM prodgroup WHERE pgrpid=$1 AND deleted IS NOT TRUE`, categoryID).
		Scan(&c.ID, &c.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Category{}, shared.ErrNotFound
		}
		return Category{}, err
	}
	return c, nil
}

func (r *Repository) InsertCategory(ctx context.Context, description string) (Category, error) {
	var c Category
	c.Description = description
	err := r.pool.QueryRow(ctx, `INSERT INTO prodgroup (descr) VALUES ($1) RETURNING pgrpid`, description).Scan(&c.ID)
	return c, err
}

func (r *Repository) UpdateCategory(ctx context.Context, categoryID int64, description string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE prodgroup SET descr=$2 WHERE pgrpid=$1 AND deleted IS NOT TRUE`, categoryID, description)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeleteCategory moves the category's products elsewhere, soft-deletes the
// category and reports the moved barcodes, all in one transaction.
func (r *Repository) DeleteCategory(ctx context.Context, categoryID, moveProductsTo int64) (CategoryDeletion, error) {
	var result CategoryDeletion
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `UPDATE rvitem SET pgrpid=$2 WHERE pgrpid=$1 RETURNING itemid`, categoryID, moveProductsTo)
		if err != nil {
			return err
		}
		movedIDs, err := pgx.CollectRows(rows, pgx.RowTo[int64])
		if err != nil {
			return err
		}

		if len(movedIDs) > 0 {
			barcodeRows, err := tx.Query(ctx, `SELECT barcode FROM price WHERE itemid = ANY($1) AND endtime IS NULL`, movedIDs)
			if err != nil {
				return err
			}
			result.MovedProducts, err = pgx.CollectRows(barcodeRows, pgx.RowTo[string])
			if err != nil {
				return err
			}
		}

		var descr string
		err = tx.QueryRow(ctx, `UPDATE prodgroup SET deleted=TRUE WHERE pgrpid=$1 AND deleted IS NOT TRUE RETURNING descr`, categoryID).Scan(&descr)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return shared.ErrNotFound
			}
			return err
		}
		result.Category = Category{ID: categoryID, Description: descr}
		return nil
	})
	if err != nil {
		return CategoryDeletion{}, err
	}
	if result.MovedProducts == nil {
		result.MovedProducts = []string{}
	}
	return result, nil
}

const boxSelect = `SELECT b.barcode, b.itemcount, p.barcode, i.descr, i.pgrpid, COALESCE(g.descr, ''), p.buyprice, p.sellprice, p.count
FROM rvbox b
JOIN price p ON p.barcode = b.itembarcode AND p.endtime IS NULL
JOIN rvitem i ON i.itemid = p.itemid
LEFT JOIN prodgroup g ON g.pgrpid = i.pgrpid`

func scanBox(row pgx.Row) (Box, error) {
	var b Box
	err := row.Scan(&b.BoxBarcode, &b.ItemsPerBox, &b.Product.Barcode, &b.Product.Name,
		&b.Product.Category.ID, &b.Product.Category.Description,
		&b.Product.BuyPrice, &b.Product.SellPrice, &b.Product.Stock)
	return b, err
}

func (r *Repository) ListBoxes(ctx context.Context, productBarcode string) ([]Box, error) {
	query := boxSelect + ` ORDER BY b.barcode`
	args := []any{}
	if productBarcode != "" {
		query = boxSelect + ` WHERE b.itembarcode=$1 ORDER BY b.barcode`
		args = append(args, productBarcode)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	boxes := []Box{}
	for rows.Next() {
		b, err := scanBox(rows)
		if err != nil {
			return nil, err
		}
		boxes = append(boxes, b)
	}
	return boxes, rows.Err()
}

func (r *Repository) FindBoxByBarcode(ctx context.Context, boxBarcode string) (Box, error) {
	b, err := scanBox(r.pool.QueryRow(ctx, boxSelect+` WHERE b.barcode=$1`, boxBarcode))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Box{}, shared.ErrNotFound
		}
		return Box{}, err
	}
	return b, nil
}

func (r *txRepository) GetOpenPriceRow(ctx context.Context, barcode string) (PriceRow, error) {
	var row PriceRow
	err := r.tx.QueryRow(ctx, `SELECT priceid, barcode, itemid, buyprice, sellprice, count, starttime, endtime
FROM price WHERE barcode=$1 AND endtime IS NULL`, barcode).
		Scan(&row.PriceID, &row.Barcode, &row.ProductID, &row.BuyPrice, &row.SellPrice, &row.Stock, &row.OpenedAt, &row.ClosedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PriceRow{}, shared.ErrNotFound
		}
		return PriceRow{}, err
	}
	return row, nil
}

func (r *txRepository) UpdateOpenPriceRowInPlace(ctx context.Context, barcode string, stock, buyPrice *int64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE price SET
count = COALESCE($2, count),
buyprice = COALESCE($3, buyprice)
WHERE barcode=$1 AND endtime IS NULL`, barcode, stock, buyPrice)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) ClosePriceRow(ctx context.Context, barcode string, at time.Time) (PriceRow, error) {
	var row PriceRow
	err := r.tx.QueryRow(ctx, `UPDATE price SET endtime=$2 WHERE barcode=$1 AND endtime IS NULL
RETURNING priceid, barcode, itemid, buyprice, sellprice, count, starttime, endtime`, barcode, at).
		Scan(&row.PriceID, &row.Barcode, &row.ProductID, &row.BuyPrice, &row.SellPrice, &row.Stock, &row.OpenedAt, &row.ClosedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PriceRow{}, shared.ErrNotFound
		}
		return PriceRow{}, err
	}
	return row, nil
}

func (r *txRepository) OpenPriceRow(ctx context.Context, row PriceRow, userID int64, at time.Time) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO price (barcode, itemid, buyprice, sellprice, count, userid, starttime, endtime)
VALUES ($1,$2,$3,$4,$5,$6,$7,NULL)`, row.Barcode, row.ProductID, row.BuyPrice, row.SellPrice, row.Stock, userID, at)
	return err
}

func (r *txRepository) UpdateProductFields(ctx context.Context, productID int64, name *string, categoryID *int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE rvitem SET
descr = COALESCE($2, descr),
pgrpid = COALESCE($3, pgrpid)
WHERE itemid=$1`, productID, name, categoryID)
	return err
}

func (r *txRepository) InsertProduct(ctx context.Context, name string, categoryID int64) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO rvitem (descr, pgrpid, deleted) VALUES ($1,$2,FALSE) RETURNING itemid`, name, categoryID).Scan(&id)
	return id, err
}

func (r *txRepository) SoftDeleteProduct(ctx context.Context, productID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE rvitem SET deleted=TRUE WHERE itemid=$1`, productID)
	return err
}

func (r *txRepository) GetCategory(ctx context.Context, categoryID int64) (Category, error) {
	var c Category
	err := r.tx.QueryRow(ctx, `SELECT pgrpid, descr FROM prodgroup WHERE pgrpid=$1 AND deleted IS NOT TRUE`, categoryID).
		Scan(&c.ID, &c.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Category{}, shared.ErrNotFound
		}
		return Category{}, err
	}
	return c, nil
}

func (r *txRepository) InsertBox(ctx context.Context, input BoxInput) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO rvbox (barcode, itembarcode, itemcount) VALUES ($1,$2,$3)`,
		input.BoxBarcode, input.ProductBarcode, input.ItemsPerBox)
	if err != nil && isUniqueViolation(err) {
		return shared.ErrDuplicate
	}
	return err
}

func (r *txRepository) UpdateBoxFields(ctx context.Context, boxBarcode string, upd BoxUpdate) error {
	tag, err := r.tx.Exec(ctx, `UPDATE rvbox SET
itembarcode = COALESCE($2, itembarcode),
itemcount = COALESCE($3, itemcount)
WHERE barcode=$1`, boxBarcode, upd.ProductBarcode, upd.ItemsPerBox)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) DeleteBox(ctx context.Context, boxBarcode string) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM rvbox WHERE barcode=$1`, boxBarcode)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) InsertBoxEvent(ctx context.Context, ev BoxEvent) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO boxhistory (time, barcode, itemid, itemcount, userid, actionid)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING boxhistid`,
		ev.Time, ev.BoxBarcode, ev.ProductID, ev.ItemsPerBox, ev.UserID, int(ev.Action)).Scan(&id)
	return id, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
