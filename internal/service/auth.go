package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/azrion/storefront/internal/dto"
	"github.com/azrion/storefront/internal/model"
	"github.com/azrion/storefront/internal/repository"
)

type AuthService struct {
	userRepo     repository.UserRepository
	referralRepo repository.ReferralRepository
	couponRepo   repository.CouponRepository
	jwtSecret    []byte
	jwtExpiry    time.Duration
	logger       *slog.Logger
}

func NewAuthService(
	userRepo repository.UserRepository,
	referralRepo repository.ReferralRepository,
	couponRepo repository.CouponRepository,
	jwtSecret string, jwtExpiry time.Duration,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		userRepo: userRepo, referralRepo: referralRepo, couponRepo: couponRepo,
		jwtSecret: []byte(jwtSecret), jwtExpiry: jwtExpiry, logger: logger,
	}
}

func (s *AuthService) Register(ctx context.Context, req dto.RegisterRequest) (*dto.AuthResponse, error) {
	existing, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if existing != nil {
		return nil, ErrUserAlreadyExists
	}

	var referrer *model.User
	if req.ReferralCode != "" {
		referrer, err = s.userRepo.GetByReferralCode(ctx, strings.ToUpper(req.ReferralCode))
		if err != nil {
			return nil, fmt.Errorf("look up referrer: %w", err)
		}
		if referrer == nil {
			return nil, validationErr("Invalid referral code.")
		}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Email: req.Email, Password: string(hashed),
		FullName: req.FullName, Phone: req.Phone, Role: "customer",
		ReferralCode: newReferralCode(),
	}
	if referrer != nil {
		user.ReferredBy = &referrer.ID
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	// The referrer's reward is best-effort: a failed reward never fails the
	// signup that triggered it.
	if referrer != nil {
		if err := s.grantReferralReward(ctx, referrer, user); err != nil {
			s.logger.Warn("referral reward not granted",
				"referrer_id", referrer.ID, "referred_user_id", user.ID, "error", err)
		}
	}

	token, err := s.generateToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &dto.AuthResponse{Token: token, User: toUserResponse(user)}, nil
}

// grantReferralReward creates a single-use referral-visibility coupon for the
// referrer under the active referral program, respecting its referral cap.
func (s *AuthService) grantReferralReward(ctx context.Context, referrer, referred *model.User) error {
	offer, err := s.referralRepo.GetActiveOffer(ctx)
	if err != nil {
		return err
	}
	if offer == nil {
		return nil
	}

	if offer.MaxReferrals != nil {
		count, err := s.referralRepo.CountRewardsForReferrer(ctx, referrer.ID)
		if err != nil {
			return err
		}
		if count >= *offer.MaxReferrals {
			return nil
		}
	}

	limit := 1
	now := time.Now()
	coupon := &model.Coupon{
		Code:          "REF" + newReferralCode(),
		Description:   fmt.Sprintf("Referral reward for inviting %s", referred.FullName),
		DiscountType:  offer.RewardType,
		DiscountValue: offer.RewardValue,
		MinimumAmount: offer.MinimumOrderAmount,
		UsageLimit:    &limit,
		ValidFrom:     now,
		ValidUntil:    now.AddDate(0, 0, 30),
		IsActive:      true,
		Visibility:    model.VisibilityReferral,
	}
	if err := s.couponRepo.Create(ctx, coupon); err != nil {
		return err
	}

	reward := &model.ReferralReward{
		ReferrerID:     referrer.ID,
		ReferredUserID: referred.ID,
		OfferID:        offer.ID,
		CouponID:       &coupon.ID,
		RewardAmount:   offer.RewardValue,
	}
	if err := s.referralRepo.CreateReward(ctx, reward); err != nil {
		return err
	}

	s.logger.Info("referral reward granted",
		"referrer_id", referrer.ID, "coupon_code", coupon.Code)
	return nil
}

func (s *AuthService) Login(ctx context.Context, req dto.LoginRequest) (*dto.AuthResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.generateToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &dto.AuthResponse{Token: token, User: toUserResponse(user)}, nil
}

func (s *AuthService) generateToken(user *model.User) (string, error) {
	claims := jwt.MapClaims{
		"sub":  user.ID.String(),
		"role": user.Role,
		"exp":  time.Now().Add(s.jwtExpiry).Unix(),
		"iat":  time.Now().Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

const referralAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func newReferralCode() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = referralAlphabet[int(b[i])%len(referralAlphabet)]
	}
	return string(b)
}

func toUserResponse(user *model.User) dto.UserResponse {
	return dto.UserResponse{
		ID: user.ID, Email: user.Email,
		FullName: user.FullName, Phone: user.Phone, Role: user.Role,
		ReferralCode: user.ReferralCode,
	}
}
