package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azrion/storefront/internal/dto"
	"github.com/azrion/storefront/internal/model"
)

func validCouponRequest() dto.CreateCouponRequest {
	return dto.CreateCouponRequest{
		Code: "save10", DiscountType: model.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(10),
		ValidFrom:     time.Now(), ValidUntil: time.Now().Add(24 * time.Hour),
		IsActive: true,
	}
}

func TestCouponService_Create(t *testing.T) {
	coupons := newMockCouponRepo()
	svc := NewCouponService(coupons, newMockReferralRepo())

	coupon, err := svc.Create(context.Background(), validCouponRequest())
	require.NoError(t, err)

	// codes are stored uppercased, admin coupons are always public
	assert.Equal(t, "SAVE10", coupon.Code)
	assert.Equal(t, model.VisibilityPublic, coupon.Visibility)
}

func TestCouponService_Create_DuplicateCode(t *testing.T) {
	coupons := newMockCouponRepo()
	svc := NewCouponService(coupons, newMockReferralRepo())

	_, err := svc.Create(context.Background(), validCouponRequest())
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), validCouponRequest())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "A coupon with this code already exists.", verr.Reason)
}

func TestCouponService_Create_Validation(t *testing.T) {
	svc := NewCouponService(newMockCouponRepo(), newMockReferralRepo())
	var verr *ValidationError

	req := validCouponRequest()
	req.DiscountValue = decimal.NewFromInt(150)
	_, err := svc.Create(context.Background(), req)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Percentage discount cannot exceed 100.", verr.Reason)

	req = validCouponRequest()
	req.ValidUntil = req.ValidFrom.Add(-time.Hour)
	_, err = svc.Create(context.Background(), req)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Coupon end date must be after the start date.", verr.Reason)

	zero := 0
	req = validCouponRequest()
	req.UsageLimit = &zero
	_, err = svc.Create(context.Background(), req)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Usage limit must be at least 1.", verr.Reason)
}

func TestCouponService_CreateReferralOffer(t *testing.T) {
	referrals := newMockReferralRepo()
	svc := NewCouponService(newMockCouponRepo(), referrals)

	offer, err := svc.CreateReferralOffer(context.Background(), dto.ReferralOfferRequest{
		Name: "Invite a friend", RewardType: model.DiscountFixed,
		RewardValue: decimal.NewFromInt(100), IsActive: true,
	})
	require.NoError(t, err)
	assert.Equal(t, offer, referrals.offer)

	_, err = svc.CreateReferralOffer(context.Background(), dto.ReferralOfferRequest{
		Name: "Broken", RewardType: model.DiscountFixed, RewardValue: decimal.Zero,
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Reward value must be positive.", verr.Reason)
}
