package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/azrion/storefront/internal/dto"
	"github.com/azrion/storefront/internal/model"
	"github.com/azrion/storefront/internal/pricing"
	"github.com/azrion/storefront/internal/repository"
)

// CartService owns the cart and its coupon. Every read re-prices with the
// current offers and re-validates the applied coupon, detaching it when the
// validation fails.
type CartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	couponRepo  repository.CouponRepository
	rates       pricing.ShippingRates
	maxQty      int
}

func NewCartService(
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	couponRepo repository.CouponRepository,
	rates pricing.ShippingRates,
	maxQty int,
) *CartService {
	return &CartService{cartRepo: cartRepo, productRepo: productRepo, couponRepo: couponRepo, rates: rates, maxQty: maxQty}
}

// View prices the cart. A coupon that no longer validates is detached from
// the persisted cart, with the reason surfaced once in the response.
func (s *CartService) View(ctx context.Context, userID uuid.UUID) (*dto.CartResponse, error) {
	cart, err := s.cartRepo.GetWithItems(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}

	quote, coupon, err := s.quote(ctx, userID, cart)
	if err != nil {
		return nil, err
	}

	if quote.CouponDropped != "" {
		if err := s.cartRepo.SetCoupon(ctx, cart.ID, nil); err != nil {
			return nil, fmt.Errorf("detach coupon: %w", err)
		}
	}

	resp := toCartResponse(cart, quote, coupon)
	return &resp, nil
}

// quote loads the applied coupon (if any) and prices the cart against it.
func (s *CartService) quote(ctx context.Context, userID uuid.UUID, cart *model.Cart) (pricing.Quote, *model.Coupon, error) {
	var coupon *model.Coupon
	hasUsed := false
	if cart.AppliedCouponID != nil {
		var err error
		coupon, err = s.couponRepo.GetByID(ctx, *cart.AppliedCouponID)
		if err != nil {
			return pricing.Quote{}, nil, fmt.Errorf("get coupon: %w", err)
		}
		if coupon != nil {
			hasUsed, err = s.couponRepo.HasUsed(ctx, userID, coupon.ID)
			if err != nil {
				return pricing.Quote{}, nil, fmt.Errorf("check coupon usage: %w", err)
			}
		}
	}
	return pricing.QuoteCart(cart, coupon, hasUsed, s.rates, time.Now()), coupon, nil
}

func (s *CartService) AddItem(ctx context.Context, userID uuid.UUID, req dto.AddCartItemRequest) (*dto.CartResponse, error) {
	product, err := s.productRepo.GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil || product.IsDeleted {
		return nil, ErrProductNotFound
	}
	if product.Category != nil && product.Category.IsDeleted {
		return nil, ErrProductNotFound
	}

	variant, err := s.productRepo.GetVariant(ctx, req.VariantID)
	if err != nil {
		return nil, fmt.Errorf("get variant: %w", err)
	}
	if variant == nil || variant.ProductID != product.ID || !variant.IsActive {
		return nil, ErrVariantNotFound
	}

	cart, err := s.cartRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}

	// the line may already exist; caps apply to the merged quantity
	existing := 0
	loaded, err := s.cartRepo.GetWithItems(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart items: %w", err)
	}
	for _, item := range loaded.Items {
		if item.ProductID == req.ProductID && item.VariantID == req.VariantID {
			existing = item.Quantity
		}
	}

	if err := s.checkQuantity(existing+req.Quantity, variant.StockQuantity); err != nil {
		return nil, err
	}

	item := &model.CartItem{
		CartID: cart.ID, ProductID: req.ProductID, VariantID: req.VariantID, Quantity: req.Quantity,
	}
	if err := s.cartRepo.AddItem(ctx, item); err != nil {
		return nil, fmt.Errorf("add cart item: %w", err)
	}
	return s.View(ctx, userID)
}

func (s *CartService) UpdateItem(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*dto.CartResponse, error) {
	item, _, err := s.ownedItem(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}

	variant, err := s.productRepo.GetVariant(ctx, item.VariantID)
	if err != nil {
		return nil, fmt.Errorf("get variant: %w", err)
	}
	if variant == nil {
		return nil, ErrVariantNotFound
	}
	if err := s.checkQuantity(quantity, variant.StockQuantity); err != nil {
		return nil, err
	}

	if err := s.cartRepo.UpdateItemQuantity(ctx, itemID, quantity); err != nil {
		return nil, fmt.Errorf("update cart item: %w", err)
	}
	return s.View(ctx, userID)
}

func (s *CartService) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*dto.CartResponse, error) {
	if _, _, err := s.ownedItem(ctx, userID, itemID); err != nil {
		return nil, err
	}
	if err := s.cartRepo.DeleteItem(ctx, itemID); err != nil {
		return nil, fmt.Errorf("delete cart item: %w", err)
	}
	return s.View(ctx, userID)
}

func (s *CartService) ownedItem(ctx context.Context, userID, itemID uuid.UUID) (*model.CartItem, *model.Cart, error) {
	cart, err := s.cartRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("get cart: %w", err)
	}
	item, err := s.cartRepo.GetItem(ctx, itemID)
	if err != nil {
		return nil, nil, fmt.Errorf("get cart item: %w", err)
	}
	if item == nil || item.CartID != cart.ID {
		return nil, nil, ErrCartItemNotFound
	}
	return item, cart, nil
}

func (s *CartService) checkQuantity(quantity, stock int) error {
	if quantity < 1 {
		return validationErr("Quantity must be at least 1.")
	}
	if quantity > s.maxQty {
		return validationErr(fmt.Sprintf("Maximum %d items allowed per product.", s.maxQty))
	}
	if quantity > stock {
		return validationErr(fmt.Sprintf("Only %d items available in stock.", stock))
	}
	return nil
}

// ApplyCoupon validates the code against the current cart total and attaches
// it. Validation failures come back verbatim as the rejection reason.
func (s *CartService) ApplyCoupon(ctx context.Context, userID uuid.UUID, code string) (*dto.CartResponse, error) {
	coupon, err := s.couponRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("get coupon: %w", err)
	}
	if coupon == nil {
		return nil, ErrCouponNotFound
	}

	cart, err := s.cartRepo.GetWithItems(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	if len(cart.Items) == 0 {
		return nil, ErrEmptyCart
	}

	// price without the candidate coupon to get the subtotal it must clear
	bare := pricing.QuoteCart(cart, nil, false, s.rates, time.Now())

	hasUsed, err := s.couponRepo.HasUsed(ctx, userID, coupon.ID)
	if err != nil {
		return nil, fmt.Errorf("check coupon usage: %w", err)
	}

	if ok, reason := pricing.ValidateCoupon(coupon, hasUsed, bare.Subtotal, time.Now()); !ok {
		return nil, validationErr(reason)
	}

	if err := s.cartRepo.SetCoupon(ctx, cart.ID, &coupon.ID); err != nil {
		return nil, fmt.Errorf("apply coupon: %w", err)
	}
	return s.View(ctx, userID)
}

func (s *CartService) RemoveCoupon(ctx context.Context, userID uuid.UUID) (*dto.CartResponse, error) {
	cart, err := s.cartRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	if err := s.cartRepo.SetCoupon(ctx, cart.ID, nil); err != nil {
		return nil, fmt.Errorf("remove coupon: %w", err)
	}
	return s.View(ctx, userID)
}

// AvailableCoupons lists the public coupons this user could apply to the
// current cart, plus their unredeemed referral rewards.
func (s *CartService) AvailableCoupons(ctx context.Context, userID uuid.UUID) ([]dto.CouponResponse, error) {
	cart, err := s.cartRepo.GetWithItems(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	quote := pricing.QuoteCart(cart, nil, false, s.rates, time.Now())

	now := time.Now()
	public, err := s.couponRepo.ListPublicLive(ctx, userID, quote.Subtotal, now)
	if err != nil {
		return nil, fmt.Errorf("list public coupons: %w", err)
	}
	referral, err := s.couponRepo.ListReferralForUser(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("list referral coupons: %w", err)
	}

	resp := make([]dto.CouponResponse, 0, len(public)+len(referral))
	for i := range public {
		resp = append(resp, toCouponResponse(&public[i]))
	}
	for i := range referral {
		resp = append(resp, toCouponResponse(&referral[i]))
	}
	return resp, nil
}

func toCouponResponse(c *model.Coupon) dto.CouponResponse {
	return dto.CouponResponse{
		ID: c.ID, Code: c.Code, Description: c.Description,
		DiscountType: c.DiscountType, DiscountValue: c.DiscountValue,
		MinimumAmount: c.MinimumAmount, MaximumDiscount: c.MaximumDiscount,
		ValidUntil: c.ValidUntil,
	}
}

func toCartResponse(cart *model.Cart, quote pricing.Quote, coupon *model.Coupon) dto.CartResponse {
	resp := dto.CartResponse{
		ID:             cart.ID,
		Subtotal:       quote.Subtotal,
		CouponDiscount: quote.CouponDiscount,
		CouponDropped:  quote.CouponDropped,
		ShippingCharge: quote.ShippingCharge,
		TotalAmount:    quote.TotalAmount,
	}
	if coupon != nil && quote.CouponDropped == "" {
		resp.CouponCode = coupon.Code
	}
	for _, line := range quote.Available {
		resp.Items = append(resp.Items, toCartItemResponse(line.Item, line.UnitPrice, line.LineTotal, true))
	}
	for _, item := range quote.Unavailable {
		resp.UnavailableItems = append(resp.UnavailableItems, toCartItemResponse(item, 0, decimal.Zero, false))
	}
	return resp
}

func toCartItemResponse(item model.CartItem, unitPrice int64, lineTotal decimal.Decimal, available bool) dto.CartItemResponse {
	resp := dto.CartItemResponse{
		ID: item.ID, ProductID: item.ProductID, VariantID: item.VariantID,
		UnitPrice: unitPrice, Quantity: item.Quantity, LineTotal: lineTotal.IntPart(),
		Available: available,
	}
	if item.Product != nil {
		resp.ProductName = item.Product.Name
	}
	if item.Variant != nil {
		resp.Color = item.Variant.Color
	}
	return resp
}
