package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/azrion/storefront/internal/dto"
	"github.com/azrion/storefront/internal/model"
	"github.com/azrion/storefront/internal/pricing"
	"github.com/azrion/storefront/internal/repository"
)

const productCacheTTL = 60 * time.Second

// CatalogService serves the browsable catalog and its admin CRUD. Single
// product reads go through redis; any write to a product or its variants
// invalidates the entry.
type CatalogService struct {
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
	redisClient  *redis.Client
}

func NewCatalogService(productRepo repository.ProductRepository, categoryRepo repository.CategoryRepository, redisClient *redis.Client) *CatalogService {
	return &CatalogService{productRepo: productRepo, categoryRepo: categoryRepo, redisClient: redisClient}
}

// --- Categories ---

func (s *CatalogService) CreateCategory(ctx context.Context, req dto.CreateCategoryRequest) (*dto.CategoryResponse, error) {
	category := &model.Category{Name: req.Name, Description: req.Description}
	if err := s.categoryRepo.Create(ctx, category); err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	resp := toCategoryResponse(category)
	return &resp, nil
}

func (s *CatalogService) ListCategories(ctx context.Context, includeDeleted bool) ([]dto.CategoryResponse, error) {
	categories, err := s.categoryRepo.List(ctx, includeDeleted)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	resp := make([]dto.CategoryResponse, 0, len(categories))
	for i := range categories {
		resp = append(resp, toCategoryResponse(&categories[i]))
	}
	return resp, nil
}

func (s *CatalogService) UpdateCategory(ctx context.Context, id uuid.UUID, req dto.CreateCategoryRequest) (*dto.CategoryResponse, error) {
	category, err := s.categoryRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	if category == nil {
		return nil, ErrCategoryNotFound
	}
	category.Name = req.Name
	category.Description = req.Description
	if err := s.categoryRepo.Update(ctx, category); err != nil {
		return nil, fmt.Errorf("update category: %w", err)
	}
	resp := toCategoryResponse(category)
	return &resp, nil
}

// DeleteCategory soft-deletes: products under it stop being purchasable but
// their order history stays intact.
func (s *CatalogService) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	if err := s.categoryRepo.SoftDelete(ctx, id); err != nil {
		return ErrCategoryNotFound
	}
	return nil
}

func (s *CatalogService) CreateCategoryOffer(ctx context.Context, categoryID uuid.UUID, req dto.CategoryOfferRequest) (*model.CategoryOffer, error) {
	category, err := s.categoryRepo.GetByID(ctx, categoryID)
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	if category == nil {
		return nil, ErrCategoryNotFound
	}
	if req.DiscountPercentage.IsNegative() || req.DiscountPercentage.GreaterThan(hundredPercent) {
		return nil, validationErr("Discount percentage must be between 0 and 100.")
	}
	if !req.ValidUntil.After(req.ValidFrom) {
		return nil, validationErr("Offer end date must be after the start date.")
	}

	offer := &model.CategoryOffer{
		CategoryID: categoryID, Name: req.Name, DiscountPercentage: req.DiscountPercentage,
		ValidFrom: req.ValidFrom, ValidUntil: req.ValidUntil, IsActive: req.IsActive,
	}
	if err := s.categoryRepo.CreateOffer(ctx, offer); err != nil {
		return nil, fmt.Errorf("create category offer: %w", err)
	}
	return offer, nil
}

func (s *CatalogService) UpdateCategoryOffer(ctx context.Context, offerID uuid.UUID, req dto.CategoryOfferRequest) (*model.CategoryOffer, error) {
	offer, err := s.categoryRepo.GetOffer(ctx, offerID)
	if err != nil {
		return nil, fmt.Errorf("get category offer: %w", err)
	}
	if offer == nil {
		return nil, ErrCategoryNotFound
	}
	if req.DiscountPercentage.IsNegative() || req.DiscountPercentage.GreaterThan(hundredPercent) {
		return nil, validationErr("Discount percentage must be between 0 and 100.")
	}

	offer.Name = req.Name
	offer.DiscountPercentage = req.DiscountPercentage
	offer.ValidFrom = req.ValidFrom
	offer.ValidUntil = req.ValidUntil
	offer.IsActive = req.IsActive
	if err := s.categoryRepo.UpdateOffer(ctx, offer); err != nil {
		return nil, fmt.Errorf("update category offer: %w", err)
	}
	return offer, nil
}

// --- Products ---

func (s *CatalogService) CreateProduct(ctx context.Context, req dto.CreateProductRequest) (*dto.ProductResponse, error) {
	category, err := s.categoryRepo.GetByID(ctx, req.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	if category == nil || category.IsDeleted {
		return nil, ErrCategoryNotFound
	}
	if req.ProductOffer.IsNegative() || req.ProductOffer.GreaterThan(hundredPercent) {
		return nil, validationErr("Product offer must be between 0 and 100.")
	}

	product := &model.Product{
		CategoryID: req.CategoryID, Name: req.Name, Description: req.Description,
		Price: req.Price, ProductOffer: req.ProductOffer,
	}
	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	resp := toProductResponse(product, time.Now())
	return &resp, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*dto.ProductResponse, error) {
	cacheKey := "product:" + id.String()

	if s.redisClient != nil {
		if cached, err := s.redisClient.Get(ctx, cacheKey).Result(); err == nil {
			var resp dto.ProductResponse
			if json.Unmarshal([]byte(cached), &resp) == nil {
				return &resp, nil
			}
		}
	}

	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil || product.IsDeleted {
		return nil, ErrProductNotFound
	}

	resp := toProductResponse(product, time.Now())

	if s.redisClient != nil {
		if data, err := json.Marshal(resp); err == nil {
			s.redisClient.Set(ctx, cacheKey, data, productCacheTTL)
		}
	}
	return &resp, nil
}

func (s *CatalogService) ListProducts(ctx context.Context, req dto.ListProductsRequest) (*dto.ProductListResponse, error) {
	offset := (req.Page - 1) * req.Limit
	products, total, err := s.productRepo.List(ctx, req.Limit, offset, req.Search, req.Sort, req.Order)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	now := time.Now()
	var items []dto.ProductResponse
	for i := range products {
		items = append(items, toProductResponse(&products[i], now))
	}
	return &dto.ProductListResponse{Products: items, Total: total, Page: req.Page, Limit: req.Limit}, nil
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id uuid.UUID, req dto.UpdateProductRequest) (*dto.ProductResponse, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	if req.CategoryID != nil {
		product.CategoryID = *req.CategoryID
	}
	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Price != nil {
		if *req.Price <= 0 {
			return nil, validationErr("Price must be positive.")
		}
		product.Price = *req.Price
	}
	if req.ProductOffer != nil {
		if req.ProductOffer.IsNegative() || req.ProductOffer.GreaterThan(hundredPercent) {
			return nil, validationErr("Product offer must be between 0 and 100.")
		}
		product.ProductOffer = *req.ProductOffer
	}

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	s.invalidateCache(ctx, id)
	resp := toProductResponse(product, time.Now())
	return &resp, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := s.productRepo.SoftDelete(ctx, id); err != nil {
		return ErrProductNotFound
	}
	s.invalidateCache(ctx, id)
	return nil
}

// --- Variants ---

func (s *CatalogService) CreateVariant(ctx context.Context, productID uuid.UUID, req dto.CreateVariantRequest) (*dto.VariantResponse, error) {
	product, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	variant := &model.Variant{
		ProductID: productID, Color: req.Color,
		StockQuantity: req.StockQuantity, IsActive: req.IsActive,
	}
	if err := s.productRepo.CreateVariant(ctx, variant); err != nil {
		return nil, fmt.Errorf("create variant: %w", err)
	}
	s.invalidateCache(ctx, productID)
	resp := toVariantResponse(variant)
	return &resp, nil
}

func (s *CatalogService) UpdateVariant(ctx context.Context, variantID uuid.UUID, req dto.UpdateVariantRequest) (*dto.VariantResponse, error) {
	variant, err := s.productRepo.GetVariant(ctx, variantID)
	if err != nil {
		return nil, fmt.Errorf("get variant: %w", err)
	}
	if variant == nil {
		return nil, ErrVariantNotFound
	}

	if req.Color != nil {
		variant.Color = *req.Color
	}
	if req.StockQuantity != nil {
		if *req.StockQuantity < 0 {
			return nil, validationErr("Stock quantity cannot be negative.")
		}
		variant.StockQuantity = *req.StockQuantity
	}
	if req.IsActive != nil {
		variant.IsActive = *req.IsActive
	}

	if err := s.productRepo.UpdateVariant(ctx, variant); err != nil {
		return nil, fmt.Errorf("update variant: %w", err)
	}
	s.invalidateCache(ctx, variant.ProductID)
	resp := toVariantResponse(variant)
	return &resp, nil
}

// AdjustStock applies a signed admin correction; the repository guard rejects
// a delta that would take stock negative.
func (s *CatalogService) AdjustStock(ctx context.Context, variantID uuid.UUID, delta int) error {
	variant, err := s.productRepo.GetVariant(ctx, variantID)
	if err != nil {
		return fmt.Errorf("get variant: %w", err)
	}
	if variant == nil {
		return ErrVariantNotFound
	}

	if err := s.productRepo.AdjustStock(ctx, variantID, delta); err != nil {
		if err == repository.ErrConflict {
			return validationErr("Stock adjustment would make stock negative.")
		}
		return fmt.Errorf("adjust stock: %w", err)
	}
	s.invalidateCache(ctx, variant.ProductID)
	return nil
}

func (s *CatalogService) invalidateCache(ctx context.Context, productID uuid.UUID) {
	if s.redisClient != nil {
		s.redisClient.Del(ctx, "product:"+productID.String())
	}
}

var hundredPercent = decimal.NewFromInt(100)

func toCategoryResponse(c *model.Category) dto.CategoryResponse {
	return dto.CategoryResponse{ID: c.ID, Name: c.Name, Description: c.Description, IsDeleted: c.IsDeleted}
}

func toVariantResponse(v *model.Variant) dto.VariantResponse {
	return dto.VariantResponse{ID: v.ID, Color: v.Color, StockQuantity: v.StockQuantity, IsActive: v.IsActive}
}

func toProductResponse(p *model.Product, now time.Time) dto.ProductResponse {
	source := pricing.ResolveOffer(p, now)
	resp := dto.ProductResponse{
		ID:              p.ID,
		CategoryID:      p.CategoryID,
		Name:            p.Name,
		Description:     p.Description,
		Price:           p.Price,
		DiscountedPrice: pricing.DiscountedPrice(p, now),
		OfferType:       source.Type,
		OfferPercentage: source.Percentage,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
	for i := range p.Variants {
		resp.Variants = append(resp.Variants, toVariantResponse(&p.Variants[i]))
	}
	return resp
}
