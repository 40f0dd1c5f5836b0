package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/azrion/storefront/internal/dto"
	"github.com/azrion/storefront/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAuthService(users *mockUserRepo, referrals *mockReferralRepo, coupons *mockCouponRepo) *AuthService {
	return NewAuthService(users, referrals, coupons, "test-secret", time.Hour, testLogger())
}

func TestAuthService_Register(t *testing.T) {
	users := newMockUserRepo()
	svc := newTestAuthService(users, newMockReferralRepo(), newMockCouponRepo())

	resp, err := svc.Register(context.Background(), dto.RegisterRequest{
		Email: "test@example.com", Password: "password123", FullName: "John Doe",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "customer", resp.User.Role)
	assert.Len(t, resp.User.ReferralCode, 8)
}

func TestAuthService_Register_Duplicate(t *testing.T) {
	users := newMockUserRepo()
	users.byEmail["test@example.com"] = &model.User{Email: "test@example.com"}
	svc := newTestAuthService(users, newMockReferralRepo(), newMockCouponRepo())

	_, err := svc.Register(context.Background(), dto.RegisterRequest{
		Email: "test@example.com", Password: "password123", FullName: "John Doe",
	})
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
}

func TestAuthService_Register_InvalidReferralCode(t *testing.T) {
	svc := newTestAuthService(newMockUserRepo(), newMockReferralRepo(), newMockCouponRepo())

	_, err := svc.Register(context.Background(), dto.RegisterRequest{
		Email: "new@example.com", Password: "password123", FullName: "New User",
		ReferralCode: "NOPE1234",
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Invalid referral code.", verr.Reason)
}

func TestAuthService_Register_GrantsReferralReward(t *testing.T) {
	users := newMockUserRepo()
	referrals := newMockReferralRepo()
	coupons := newMockCouponRepo()
	svc := newTestAuthService(users, referrals, coupons)

	referrer := &model.User{Email: "ref@example.com", ReferralCode: "FRIEND12", Role: "customer"}
	require.NoError(t, users.Create(context.Background(), referrer))

	referrals.offer = &model.ReferralOffer{
		ID: uuid.New(), Name: "Invite a friend",
		RewardType: model.DiscountPercentage, RewardValue: decimal.NewFromInt(10),
		MinimumOrderAmount: decimal.NewFromInt(200), IsActive: true,
	}

	_, err := svc.Register(context.Background(), dto.RegisterRequest{
		Email: "friend@example.com", Password: "password123", FullName: "Friend",
		ReferralCode: "FRIEND12",
	})
	require.NoError(t, err)

	require.Len(t, referrals.rewards, 1)
	assert.Equal(t, referrer.ID, referrals.rewards[0].ReferrerID)
	require.NotNil(t, referrals.rewards[0].CouponID)

	coupon := coupons.byID[*referrals.rewards[0].CouponID]
	require.NotNil(t, coupon)
	assert.Equal(t, model.VisibilityReferral, coupon.Visibility)
	require.NotNil(t, coupon.UsageLimit)
	assert.Equal(t, 1, *coupon.UsageLimit)
}

func TestAuthService_Register_ReferralCapReached(t *testing.T) {
	users := newMockUserRepo()
	referrals := newMockReferralRepo()
	coupons := newMockCouponRepo()
	svc := newTestAuthService(users, referrals, coupons)

	referrer := &model.User{Email: "ref@example.com", ReferralCode: "FRIEND12", Role: "customer"}
	require.NoError(t, users.Create(context.Background(), referrer))

	maxReferrals := 1
	referrals.offer = &model.ReferralOffer{
		ID:         uuid.New(),
		RewardType: model.DiscountFixed, RewardValue: decimal.NewFromInt(100),
		MaxReferrals: &maxReferrals, IsActive: true,
	}
	referrals.rewards = append(referrals.rewards, model.ReferralReward{ReferrerID: referrer.ID})

	_, err := svc.Register(context.Background(), dto.RegisterRequest{
		Email: "friend@example.com", Password: "password123", FullName: "Friend",
		ReferralCode: "FRIEND12",
	})
	require.NoError(t, err)
	// the signup succeeds but no second reward is created
	assert.Len(t, referrals.rewards, 1)
}

func TestAuthService_Login(t *testing.T) {
	users := newMockUserRepo()
	hashed, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	users.byEmail["test@example.com"] = &model.User{
		Email: "test@example.com", Password: string(hashed), Role: "customer",
	}
	svc := newTestAuthService(users, newMockReferralRepo(), newMockCouponRepo())

	resp, err := svc.Login(context.Background(), dto.LoginRequest{
		Email: "test@example.com", Password: "password123",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	users := newMockUserRepo()
	hashed, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	users.byEmail["test@example.com"] = &model.User{
		Email: "test@example.com", Password: string(hashed),
	}
	svc := newTestAuthService(users, newMockReferralRepo(), newMockCouponRepo())

	_, err := svc.Login(context.Background(), dto.LoginRequest{
		Email: "test@example.com", Password: "wrong",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
