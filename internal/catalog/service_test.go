package catalog

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Ruokavalitys/rv-update-backend/internal/ledger"
	"github.com/Ruokavalitys/rv-update-backend/internal/shared"
)

type productRecord struct {
	ID         int64
	Name       string
	CategoryID int64
	Deleted    bool
}

// catalogMemoryRepo implements RepositoryPort and TxRepository in memory,
// with price rows kept append-only the way the price table is.
type catalogMemoryRepo struct {
	products   map[int64]*productRecord
	categories map[int64]Category
	rows       []PriceRow
	boxes      map[string]BoxInput
	boxEvents  []BoxEvent
	nextID     int64
}

func newCatalogMemoryRepo() *catalogMemoryRepo {
	return &catalogMemoryRepo{
		products:   map[int64]*productRecord{},
		categories: map[int64]Category{},
		boxes:      map[string]BoxInput{},
		nextID:     1000,
	}
}

func (m *catalogMemoryRepo) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *catalogMemoryRepo) addCategory(id int64, description string) {
	m.categories[id] = Category{ID: id, Description: description}
}

func (m *catalogMemoryRepo) addProduct(barcode, name string, categoryID, buyPrice, sellPrice, stock int64) int64 {
	productID := m.id()
	m.products[productID] = &productRecord{ID: productID, Name: name, CategoryID: categoryID}
	m.rows = append(m.rows, PriceRow{
		PriceID:   m.id(),
		Barcode:   barcode,
		ProductID: productID,
		BuyPrice:  buyPrice,
		SellPrice: sellPrice,
		Stock:     stock,
		OpenedAt:  time.Now().UTC(),
	})
	return productID
}

func (m *catalogMemoryRepo) openRowIndex(barcode string) int {
	for i := range m.rows {
		if m.rows[i].Barcode == barcode && m.rows[i].ClosedAt == nil {
			return i
		}
	}
	return -1
}

func (m *catalogMemoryRepo) rowsFor(barcode string) []PriceRow {
	var out []PriceRow
	for _, row := range m.rows {
		if row.Barcode == barcode {
			out = append(out, row)
		}
	}
	return out
}

func (m *catalogMemoryRepo) clone() *catalogMemoryRepo {
	c := newCatalogMemoryRepo()
	c.nextID = m.nextID
	for id, p := range m.products {
		cp := *p
		c.products[id] = &cp
	}
	for id, cat := range m.categories {
		c.categories[id] = cat
	}
	c.rows = append(c.rows, m.rows...)
	for bc, b := range m.boxes {
		c.boxes[bc] = b
	}
	c.boxEvents = append(c.boxEvents, m.boxEvents...)
	return c
}

func (m *catalogMemoryRepo) restore(from *catalogMemoryRepo) {
	m.products = from.products
	m.categories = from.categories
	m.rows = from.rows
	m.boxes = from.boxes
	m.boxEvents = from.boxEvents
	m.nextID = from.nextID
}

func (m *catalogMemoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := m.clone()
	if err := fn(ctx, m); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

func (m *catalogMemoryRepo) GetOpenPriceRow(_ context.Context, barcode string) (PriceRow, error) {
	i := m.openRowIndex(barcode)
	if i < 0 {
		return PriceRow{}, shared.ErrNotFound
	}
	return m.rows[i], nil
}

func (m *catalogMemoryRepo) UpdateOpenPriceRowInPlace(_ context.Context, barcode string, stock, buyPrice *int64) error {
	i := m.openRowIndex(barcode)
	if i < 0 {
		return shared.ErrNotFound
	}
	if stock != nil {
		m.rows[i].Stock = *stock
	}
	if buyPrice != nil {
		m.rows[i].BuyPrice = *buyPrice
	}
	return nil
}

func (m *catalogMemoryRepo) ClosePriceRow(_ context.Context, barcode string, at time.Time) (PriceRow, error) {
	i := m.openRowIndex(barcode)
	if i < 0 {
		return PriceRow{}, shared.ErrNotFound
	}
	closedAt := at
	m.rows[i].ClosedAt = &closedAt
	return m.rows[i], nil
}

func (m *catalogMemoryRepo) OpenPriceRow(_ context.Context, row PriceRow, _ int64, at time.Time) error {
	row.PriceID = m.id()
	row.OpenedAt = at
	row.ClosedAt = nil
	m.rows = append(m.rows, row)
	return nil
}

func (m *catalogMemoryRepo) UpdateProductFields(_ context.Context, productID int64, name *string, categoryID *int64) error {
	p, ok := m.products[productID]
	if !ok {
		return shared.ErrNotFound
	}
	if name != nil {
		p.Name = *name
	}
	if categoryID != nil {
		p.CategoryID = *categoryID
	}
	return nil
}

func (m *catalogMemoryRepo) InsertProduct(_ context.Context, name string, categoryID int64) (int64, error) {
	productID := m.id()
	m.products[productID] = &productRecord{ID: productID, Name: name, CategoryID: categoryID}
	return productID, nil
}

func (m *catalogMemoryRepo) SoftDeleteProduct(_ context.Context, productID int64) error {
	p, ok := m.products[productID]
	if !ok {
		return shared.ErrNotFound
	}
	p.Deleted = true
	return nil
}

func (m *catalogMemoryRepo) GetCategory(_ context.Context, categoryID int64) (Category, error) {
	cat, ok := m.categories[categoryID]
	if !ok {
		return Category{}, shared.ErrNotFound
	}
	return cat, nil
}

func (m *catalogMemoryRepo) InsertBox(_ context.Context, input BoxInput) error {
	if _, ok := m.boxes[input.BoxBarcode]; ok {
		return shared.ErrDuplicate
	}
	m.boxes[input.BoxBarcode] = input
	return nil
}

func (m *catalogMemoryRepo) UpdateBoxFields(_ context.Context, boxBarcode string, upd BoxUpdate) error {
	box, ok := m.boxes[boxBarcode]
	if !ok {
		return shared.ErrNotFound
	}
	if upd.ProductBarcode != nil {
		box.ProductBarcode = *upd.ProductBarcode
	}
	if upd.ItemsPerBox != nil {
		box.ItemsPerBox = *upd.ItemsPerBox
	}
	m.boxes[boxBarcode] = box
	return nil
}

func (m *catalogMemoryRepo) DeleteBox(_ context.Context, boxBarcode string) error {
	if _, ok := m.boxes[boxBarcode]; !ok {
		return shared.ErrNotFound
	}
	delete(m.boxes, boxBarcode)
	return nil
}

func (m *catalogMemoryRepo) InsertBoxEvent(_ context.Context, ev BoxEvent) (int64, error) {
	ev.ID = m.id()
	m.boxEvents = append(m.boxEvents, ev)
	return ev.ID, nil
}

func (m *catalogMemoryRepo) ListProducts(ctx context.Context) ([]Product, error) {
	var out []Product
	for i := range m.rows {
		row := m.rows[i]
		if row.ClosedAt != nil {
			continue
		}
		p, ok := m.products[row.ProductID]
		if !ok || p.Deleted {
			continue
		}
		out = append(out, m.project(row, p))
	}
	return out, nil
}

func (m *catalogMemoryRepo) SearchProducts(ctx context.Context, query string) ([]Product, error) {
	return m.ListProducts(ctx)
}

func (m *catalogMemoryRepo) FindProductByBarcode(_ context.Context, barcode string) (Product, error) {
	i := m.openRowIndex(barcode)
	if i < 0 {
		return Product{}, shared.ErrNotFound
	}
	p, ok := m.products[m.rows[i].ProductID]
	if !ok || p.Deleted {
		return Product{}, shared.ErrNotFound
	}
	return m.project(m.rows[i], p), nil
}

func (m *catalogMemoryRepo) project(row PriceRow, p *productRecord) Product {
	return Product{
		Barcode:   row.Barcode,
		Name:      p.Name,
		Category:  m.categories[p.CategoryID],
		BuyPrice:  row.BuyPrice,
		SellPrice: row.SellPrice,
		Stock:     row.Stock,
	}
}

func (m *catalogMemoryRepo) ListCategories(_ context.Context) ([]Category, error) {
	var out []Category
	for _, cat := range m.categories {
		out = append(out, cat)
	}
	return out, nil
}

func (m *catalogMemoryRepo) FindCategoryByID(ctx context.Context, categoryID int64) (Category, error) {
	return m.GetCategory(ctx, categoryID)
}

func (m *catalogMemoryRepo) InsertCategory(_ context.Context, description string) (Category, error) {
	cat := Category{ID: m.id(), Description: description}
	m.categories[cat.ID] = cat
	return cat, nil
}

func (m *catalogMemoryRepo) UpdateCategory(_ context.Context, categoryID int64, description string) error {
	cat, ok := m.categories[categoryID]
	if !ok {
		return shared.ErrNotFound
	}
	cat.Description = description
	m.categories[categoryID] = cat
	return nil
}

func (m *catalogMemoryRepo) DeleteCategory(_ context.Context, categoryID, moveProductsTo int64) (CategoryDeletion, error) {
	cat, ok := m.categories[categoryID]
	if !ok {
		return CategoryDeletion{}, shared.ErrNotFound
	}
	var moved []string
	for _, p := range m.products {
		if p.CategoryID != categoryID || p.Deleted {
			continue
		}
		p.CategoryID = moveProductsTo
		for _, row := range m.rows {
			if row.ProductID == p.ID && row.ClosedAt == nil {
				moved = append(moved, row.Barcode)
			}
		}
	}
	delete(m.categories, categoryID)
	return CategoryDeletion{Category: cat, MovedProducts: moved}, nil
}

func (m *catalogMemoryRepo) ListBoxes(ctx context.Context, productBarcode string) ([]Box, error) {
	var out []Box
	for _, b := range m.boxes {
		if productBarcode != "" && b.ProductBarcode != productBarcode {
			continue
		}
		product, err := m.FindProductByBarcode(ctx, b.ProductBarcode)
		if err != nil {
			return nil, err
		}
		out = append(out, Box{BoxBarcode: b.BoxBarcode, ItemsPerBox: b.ItemsPerBox, Product: product})
	}
	return out, nil
}

func (m *catalogMemoryRepo) FindBoxByBarcode(ctx context.Context, boxBarcode string) (Box, error) {
	b, ok := m.boxes[boxBarcode]
	if !ok {
		return Box{}, shared.ErrNotFound
	}
	product, err := m.FindProductByBarcode(ctx, b.ProductBarcode)
	if err != nil {
		return Box{}, err
	}
	return Box{BoxBarcode: b.BoxBarcode, ItemsPerBox: b.ItemsPerBox, Product: product}, nil
}

func newCatalogService(repo *catalogMemoryRepo) *Service {
	return NewService(repo, slog.Default(), nil)
}

func ptr[T any](v T) *T { return &v }

func TestUpdateProductSellPriceChangeOpensNewPriceRow(t *testing.T) {
	repo := newCatalogMemoryRepo()
	repo.addCategory(1, "Drinks")
	repo.addProduct("5029396297837", "Club-Mate", 1, 120, 150, 10)
	svc := newCatalogService(repo)

	oldRow, err := repo.GetOpenPriceRow(context.Background(), "5029396297837")
	require.NoError(t, err)

	product, err := svc.UpdateProduct(context.Background(), "5029396297837", ProductUpdate{SellPrice: ptr(int64(175))}, 42)
	require.NoError(t, err)
	require.Equal(t, int64(175), product.SellPrice)

	rows := repo.rowsFor("5029396297837")
	require.Len(t, rows, 2)
	require.NotNil(t, rows[0].ClosedAt, "previous row must be closed")
	require.Equal(t, oldRow.PriceID, rows[0].PriceID)
	require.Nil(t, rows[1].ClosedAt)
	// Unchanged fields carry over to the new row.
	require.Equal(t, int64(120), rows[1].BuyPrice)
	require.Equal(t, int64(10), rows[1].Stock)
	require.Equal(t, oldRow.ProductID, rows[1].ProductID)
}

func TestUpdateProductSamePriceEditsInPlace(t *testing.T) {
	repo := newCatalogMemoryRepo()
	repo.addCategory(1, "Drinks")
	repo.addProduct("5029396297837", "Club-Mate", 1, 120, 150, 10)
	svc := newCatalogService(repo)

	oldRow, err := repo.GetOpenPriceRow(context.Background(), "5029396297837")
	require.NoError(t, err)

	product, err := svc.UpdateProduct(context.Background(), "5029396297837",
		ProductUpdate{BuyPrice: ptr(int64(130)), Stock: ptr(int64(25)), SellPrice: ptr(int64(150))}, 42)
	require.NoError(t, err)
	require.Equal(t, int64(130), product.BuyPrice)
	require.Equal(t, int64(25), product.Stock)

	rows := repo.rowsFor("5029396297837")
	require.Len(t, rows, 1, "matching sell price must not open a new row")
	require.Equal(t, oldRow.PriceID, rows[0].PriceID)
}

func TestUpdateProductNameAndCategoryKeepPriceRow(t *testing.T) {
	repo := newCatalogMemoryRepo()
	repo.addCategory(1, "Drinks")
	repo.addCategory(2, "Snacks")
	repo.addProduct("5029396297837", "Club-Mate", 1, 120, 150, 10)
	svc := newCatalogService(repo)

	product, err := svc.UpdateProduct(context.Background(), "5029396297837",
		ProductUpdate{Name: ptr("Club-Mate 0.5l"), CategoryID: ptr(int64(2))}, 42)
	require.NoError(t, err)
	require.Equal(t, "Club-Mate 0.5l", product.Name)
	require.Equal(t, int64(2), product.Category.ID)
	require.Len(t, repo.rowsFor("5029396297837"), 1)
}

func TestUpdateProductUnknownCategory(t *testing.T) {
	repo := newCatalogMemoryRepo()
	repo.addCategory(1, "Drinks")
	repo.addProduct("5029396297837", "Club-Mate", 1, 120, 150, 10)
	svc := newCatalogService(repo)

	_, err := svc.UpdateProduct(context.Background(), "5029396297837", ProductUpdate{CategoryID: ptr(int64(99))}, 42)
	require.ErrorIs(t, err, shared.ErrNotFound)
	// Rollback leaves the product untouched.
	product, err := svc.FindByBarcode(context.Background(), "5029396297837")
	require.NoError(t, err)
	require.Equal(t, int64(1), product.Category.ID)
}

func TestCreateProductRejectsDuplicateBarcode(t *testing.T) {
	repo := newCatalogMemoryRepo()
	repo.addCategory(1, "Drinks")
	repo.addProduct("5029396297837", "Club-Mate", 1, 120, 150, 10)
	svc := newCatalogService(repo)

	_, err := svc.CreateProduct(context.Background(), ProductInput{
		Barcode:    "5029396297837",
		Name:       "Other",
		CategoryID: 1,
	}, 42)
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestCreateProductOpensFirstPriceRow(t *testing.T) {
	repo := newCatalogMemoryRepo()
	repo.addCategory(1, "Drinks")
	svc := newCatalogService(repo)

	product, err := svc.CreateProduct(context.Background(), ProductInput{
		Barcode:    "6417901011105",
		Name:       "Coffee",
		CategoryID: 1,
		BuyPrice:   80,
		SellPrice:  100,
		Stock:      30,
	}, 42)
	require.NoError(t, err)
	require.Equal(t, int64(100), product.SellPrice)
	require.Equal(t, int64(30), product.Stock)

	rows := repo.rowsFor("6417901011105")
	require.Len(t, rows, 1)
	require.Nil(t, rows[0].ClosedAt)
}

type fixedMargin float64

func (m fixedMargin) DefaultMargin(ctx context.Context) (float64, error) {
	return float64(m), nil
}

func TestCreateProductDerivesSellPriceFromMargin(t *testing.T) {
	repo := newCatalogMemoryRepo()
	repo.addCategory(1, "Drinks")
	svc := newCatalogService(repo).WithMargins(fixedMargin(0.05))

	product, err := svc.CreateProduct(context.Background(), ProductInput{
		Barcode:    "6417901011105",
		Name:       "Coffee",
		CategoryID: 1,
		BuyPrice:   95,
		Stock:      30,
	}, 42)
	require.NoError(t, err)
	// ceil(95 * 1.05) = 100
	require.Equal(t, int64(100), product.SellPrice)
}

func TestCreateProductKeepsExplicitSellPrice(t *testing.T) {
	repo := newCatalogMemoryRepo()
	repo.addCategory(1, "Drinks")
	svc := newCatalogService(repo).WithMargins(fixedMargin(0.50))

	product, err := svc.CreateProduct(context.Background(), ProductInput{
		Barcode:    "6417901011105",
		Name:       "Coffee",
		CategoryID: 1,
		BuyPrice:   80,
		SellPrice:  90,
		Stock:      30,
	}, 42)
	require.NoError(t, err)
	require.Equal(t, int64(90), product.SellPrice)
}

func TestDeleteProductHidesFromListing(t *testing.T) {
	repo := newCatalogMemoryRepo()
	repo.addCategory(1, "Drinks")
	repo.addProduct("5029396297837", "Club-Mate", 1, 120, 150, 10)
	svc := newCatalogService(repo)

	deleted, err := svc.DeleteProduct(context.Background(), "5029396297837")
	require.NoError(t, err)
	require.Equal(t, "Club-Mate", deleted.Name)

	_, err = svc.FindByBarcode(context.Background(), "5029396297837")
	require.ErrorIs(t, err, shared.ErrNotFound)
	products, err := svc.ListProducts(context.Background())
	require.NoError(t, err)
	require.Empty(t, products)
}

func TestDeleteCategoryMovesProducts(t *testing.T) {
	repo := newCatalogMemoryRepo()
	repo.addCategory(1, "Drinks")
	repo.addCategory(2, "Misc")
	repo.addProduct("5029396297837", "Club-Mate", 1, 120, 150, 10)
	svc := newCatalogService(repo)

	result, err := svc.DeleteCategory(context.Background(), 1, 2)
	require.NoError(t, err)
	require.Equal(t, int64(1), result.Category.ID)
	require.Equal(t, []string{"5029396297837"}, result.MovedProducts)

	product, err := svc.FindByBarcode(context.Background(), "5029396297837")
	require.NoError(t, err)
	require.Equal(t, int64(2), product.Category.ID)
}

func TestDeleteCategoryUnknownTarget(t *testing.T) {
	repo := newCatalogMemoryRepo()
	repo.addCategory(1, "Drinks")
	svc := newCatalogService(repo)

	_, err := svc.DeleteCategory(context.Background(), 1, 99)
	require.ErrorIs(t, err, shared.ErrNotFound)
	_, err = svc.FindCategoryByID(context.Background(), 1)
	require.NoError(t, err)
}

func TestCreateBoxRecordsCreationEvent(t *testing.T) {
	repo := newCatalogMemoryRepo()
	repo.addCategory(1, "Drinks")
	productID := repo.addProduct("5029396297837", "Club-Mate", 1, 120, 150, 10)
	svc := newCatalogService(repo)

	box, err := svc.CreateBox(context.Background(), BoxInput{
		BoxBarcode:     "10000000000017",
		ProductBarcode: "5029396297837",
		ItemsPerBox:    20,
	}, 42)
	require.NoError(t, err)
	require.Equal(t, int64(20), box.ItemsPerBox)
	require.Equal(t, "5029396297837", box.Product.Barcode)

	require.Len(t, repo.boxEvents, 1)
	ev := repo.boxEvents[0]
	require.Equal(t, ledger.ActionBoxCreated, ev.Action)
	require.Equal(t, productID, ev.ProductID)
	require.Equal(t, int64(20), ev.ItemsPerBox)
	require.Equal(t, int64(42), ev.UserID)
}

func TestCreateBoxUnknownProduct(t *testing.T) {
	repo := newCatalogMemoryRepo()
	svc := newCatalogService(repo)

	_, err := svc.CreateBox(context.Background(), BoxInput{
		BoxBarcode:     "10000000000017",
		ProductBarcode: "0000000000000",
		ItemsPerBox:    20,
	}, 42)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Empty(t, repo.boxes)
	require.Empty(t, repo.boxEvents)
}

func TestUpdateBoxItemCountRecordsEvent(t *testing.T) {
	repo := newCatalogMemoryRepo()
	repo.addCategory(1, "Drinks")
	repo.addProduct("5029396297837", "Club-Mate", 1, 120, 150, 10)
	svc := newCatalogService(repo)

	_, err := svc.CreateBox(context.Background(), BoxInput{
		BoxBarcode:     "10000000000017",
		ProductBarcode: "5029396297837",
		ItemsPerBox:    20,
	}, 42)
	require.NoError(t, err)

	box, err := svc.UpdateBox(context.Background(), "10000000000017", BoxUpdate{ItemsPerBox: ptr(int64(24))}, 42)
	require.NoError(t, err)
	require.Equal(t, int64(24), box.ItemsPerBox)

	require.Len(t, repo.boxEvents, 2)
	require.Equal(t, ledger.ActionBoxItemCountChanged, repo.boxEvents[1].Action)
	require.Equal(t, int64(24), repo.boxEvents[1].ItemsPerBox)
}

func TestUpdateBoxProductOnlySkipsCountEvent(t *testing.T) {
	repo := newCatalogMemoryRepo()
	repo.addCategory(1, "Drinks")
	repo.addProduct("5029396297837", "Club-Mate", 1, 120, 150, 10)
	repo.addProduct("6417901011105", "Coffee", 1, 80, 100, 30)
	svc := newCatalogService(repo)

	_, err := svc.CreateBox(context.Background(), BoxInput{
		BoxBarcode:     "10000000000017",
		ProductBarcode: "5029396297837",
		ItemsPerBox:    20,
	}, 42)
	require.NoError(t, err)

	box, err := svc.UpdateBox(context.Background(), "10000000000017", BoxUpdate{ProductBarcode: ptr("6417901011105")}, 42)
	require.NoError(t, err)
	require.Equal(t, "6417901011105", box.Product.Barcode)
	require.Len(t, repo.boxEvents, 1, "re-pointing a box is not an item count change")
}
