package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azrion/storefront/internal/dto"
	"github.com/azrion/storefront/internal/model"
)

func newTestCatalogService(t *testing.T, products *mockProductRepo, categories *mockCategoryRepo) *CatalogService {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCatalogService(products, categories, client)
}

func seedCategory(t *testing.T, categories *mockCategoryRepo) *model.Category {
	t.Helper()
	category := &model.Category{Name: "Watches"}
	require.NoError(t, categories.Create(context.Background(), category))
	return category
}

func TestCatalogService_CreateProduct_OfferBounds(t *testing.T) {
	products := newMockProductRepo()
	categories := newMockCategoryRepo()
	svc := newTestCatalogService(t, products, categories)
	category := seedCategory(t, categories)

	_, err := svc.CreateProduct(context.Background(), dto.CreateProductRequest{
		CategoryID: category.ID, Name: "Chrono", Price: 1000,
		ProductOffer: decimal.NewFromInt(120),
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Product offer must be between 0 and 100.", verr.Reason)
}

func TestCatalogService_GetProduct_DiscountedPrice(t *testing.T) {
	products := newMockProductRepo()
	categories := newMockCategoryRepo()
	svc := newTestCatalogService(t, products, categories)
	category := seedCategory(t, categories)

	resp, err := svc.CreateProduct(context.Background(), dto.CreateProductRequest{
		CategoryID: category.ID, Name: "Chrono", Price: 1000,
		ProductOffer: decimal.NewFromInt(10),
	})
	require.NoError(t, err)

	got, err := svc.GetProduct(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got.Price)
	assert.Equal(t, int64(900), got.DiscountedPrice)
	assert.Equal(t, "product", got.OfferType)
}

func TestCatalogService_GetProduct_ServedFromCache(t *testing.T) {
	products := newMockProductRepo()
	categories := newMockCategoryRepo()
	svc := newTestCatalogService(t, products, categories)
	category := seedCategory(t, categories)

	created, err := svc.CreateProduct(context.Background(), dto.CreateProductRequest{
		CategoryID: category.ID, Name: "Chrono", Price: 1000,
	})
	require.NoError(t, err)

	_, err = svc.GetProduct(context.Background(), created.ID)
	require.NoError(t, err)

	// drop the backing row; the cached entry still serves
	delete(products.products, created.ID)

	got, err := svc.GetProduct(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Chrono", got.Name)
}

func TestCatalogService_UpdateProduct_InvalidatesCache(t *testing.T) {
	products := newMockProductRepo()
	categories := newMockCategoryRepo()
	svc := newTestCatalogService(t, products, categories)
	category := seedCategory(t, categories)

	created, err := svc.CreateProduct(context.Background(), dto.CreateProductRequest{
		CategoryID: category.ID, Name: "Chrono", Price: 1000,
	})
	require.NoError(t, err)

	_, err = svc.GetProduct(context.Background(), created.ID)
	require.NoError(t, err)

	newPrice := int64(1200)
	_, err = svc.UpdateProduct(context.Background(), created.ID, dto.UpdateProductRequest{Price: &newPrice})
	require.NoError(t, err)

	got, err := svc.GetProduct(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1200), got.Price)
}

func TestCatalogService_CreateCategoryOffer_DateOrder(t *testing.T) {
	products := newMockProductRepo()
	categories := newMockCategoryRepo()
	svc := newTestCatalogService(t, products, categories)
	category := seedCategory(t, categories)

	now := time.Now()
	_, err := svc.CreateCategoryOffer(context.Background(), category.ID, dto.CategoryOfferRequest{
		Name: "Monsoon sale", DiscountPercentage: decimal.NewFromInt(20),
		ValidFrom: now, ValidUntil: now.Add(-time.Hour), IsActive: true,
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Offer end date must be after the start date.", verr.Reason)
}

func TestCatalogService_AdjustStock_NeverNegative(t *testing.T) {
	products := newMockProductRepo()
	categories := newMockCategoryRepo()
	svc := newTestCatalogService(t, products, categories)
	_, variant := seedProduct(t, products, 1000, 3)

	require.NoError(t, svc.AdjustStock(context.Background(), variant.ID, -2))
	assert.Equal(t, 1, variant.StockQuantity)

	err := svc.AdjustStock(context.Background(), variant.ID, -5)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Stock adjustment would make stock negative.", verr.Reason)
	assert.Equal(t, 1, variant.StockQuantity)
}
