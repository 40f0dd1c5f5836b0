package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/azrion/storefront/internal/dto"
	"github.com/azrion/storefront/internal/model"
	"github.com/azrion/storefront/internal/repository"
)

// CouponService is the admin side of coupons and the referral program.
type CouponService struct {
	couponRepo   repository.CouponRepository
	referralRepo repository.ReferralRepository
}

func NewCouponService(couponRepo repository.CouponRepository, referralRepo repository.ReferralRepository) *CouponService {
	return &CouponService{couponRepo: couponRepo, referralRepo: referralRepo}
}

func (s *CouponService) Create(ctx context.Context, req dto.CreateCouponRequest) (*model.Coupon, error) {
	if err := validateCouponRequest(req); err != nil {
		return nil, err
	}

	existing, err := s.couponRepo.GetByCode(ctx, strings.ToUpper(req.Code))
	if err != nil {
		return nil, fmt.Errorf("check coupon code: %w", err)
	}
	if existing != nil {
		return nil, validationErr("A coupon with this code already exists.")
	}

	coupon := &model.Coupon{
		Code:            strings.ToUpper(req.Code),
		Description:     req.Description,
		DiscountType:    req.DiscountType,
		DiscountValue:   req.DiscountValue,
		MinimumAmount:   req.MinimumAmount,
		MaximumDiscount: req.MaximumDiscount,
		UsageLimit:      req.UsageLimit,
		ValidFrom:       req.ValidFrom,
		ValidUntil:      req.ValidUntil,
		IsActive:        req.IsActive,
		Visibility:      model.VisibilityPublic,
	}
	if err := s.couponRepo.Create(ctx, coupon); err != nil {
		return nil, fmt.Errorf("create coupon: %w", err)
	}
	return coupon, nil
}

func (s *CouponService) Update(ctx context.Context, id uuid.UUID, req dto.CreateCouponRequest) (*model.Coupon, error) {
	if err := validateCouponRequest(req); err != nil {
		return nil, err
	}

	coupon, err := s.couponRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get coupon: %w", err)
	}
	if coupon == nil {
		return nil, ErrCouponNotFound
	}

	coupon.Description = req.Description
	coupon.DiscountType = req.DiscountType
	coupon.DiscountValue = req.DiscountValue
	coupon.MinimumAmount = req.MinimumAmount
	coupon.MaximumDiscount = req.MaximumDiscount
	coupon.UsageLimit = req.UsageLimit
	coupon.ValidFrom = req.ValidFrom
	coupon.ValidUntil = req.ValidUntil
	coupon.IsActive = req.IsActive

	if err := s.couponRepo.Update(ctx, coupon); err != nil {
		return nil, fmt.Errorf("update coupon: %w", err)
	}
	return coupon, nil
}

func (s *CouponService) List(ctx context.Context, page, limit int) ([]model.Coupon, int, error) {
	return s.couponRepo.List(ctx, limit, (page-1)*limit)
}

func validateCouponRequest(req dto.CreateCouponRequest) error {
	if !req.DiscountValue.IsPositive() {
		return validationErr("Discount value must be positive.")
	}
	if req.DiscountType == model.DiscountPercentage && req.DiscountValue.GreaterThan(hundredPercent) {
		return validationErr("Percentage discount cannot exceed 100.")
	}
	if req.MinimumAmount.IsNegative() {
		return validationErr("Minimum amount cannot be negative.")
	}
	if !req.ValidUntil.After(req.ValidFrom) {
		return validationErr("Coupon end date must be after the start date.")
	}
	if req.UsageLimit != nil && *req.UsageLimit < 1 {
		return validationErr("Usage limit must be at least 1.")
	}
	return nil
}

// --- Referral program ---

func (s *CouponService) CreateReferralOffer(ctx context.Context, req dto.ReferralOfferRequest) (*model.ReferralOffer, error) {
	if !req.RewardValue.IsPositive() {
		return nil, validationErr("Reward value must be positive.")
	}

	offer := &model.ReferralOffer{
		Name:               req.Name,
		Description:        req.Description,
		RewardType:         req.RewardType,
		RewardValue:        req.RewardValue,
		MinimumOrderAmount: req.MinimumOrderAmount,
		MaxReferrals:       req.MaxReferrals,
		IsActive:           req.IsActive,
	}
	if err := s.referralRepo.CreateOffer(ctx, offer); err != nil {
		return nil, fmt.Errorf("create referral offer: %w", err)
	}
	return offer, nil
}

func (s *CouponService) UpdateReferralOffer(ctx context.Context, id uuid.UUID, req dto.ReferralOfferRequest) (*model.ReferralOffer, error) {
	offer := &model.ReferralOffer{
		ID:                 id,
		Name:               req.Name,
		Description:        req.Description,
		RewardType:         req.RewardType,
		RewardValue:        req.RewardValue,
		MinimumOrderAmount: req.MinimumOrderAmount,
		MaxReferrals:       req.MaxReferrals,
		IsActive:           req.IsActive,
	}
	if err := s.referralRepo.UpdateOffer(ctx, offer); err != nil {
		return nil, ErrCouponNotFound
	}
	return offer, nil
}

// MyRewards lists the referral rewards a user earned as referrer.
func (s *CouponService) MyRewards(ctx context.Context, userID uuid.UUID) ([]model.ReferralReward, error) {
	return s.referralRepo.ListRewards(ctx, userID)
}
