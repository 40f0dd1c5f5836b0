package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/azrion/storefront/internal/model"
)

type ReferralRepository interface {
	// GetActiveOffer returns the current referral program, nil when none is
	// running.
	GetActiveOffer(ctx context.Context) (*model.ReferralOffer, error)
	CreateOffer(ctx context.Context, offer *model.ReferralOffer) error
	UpdateOffer(ctx context.Context, offer *model.ReferralOffer) error

	CountRewardsForReferrer(ctx context.Context, referrerID uuid.UUID) (int, error)
	// CreateReward inserts the (referrer, referred) link row; ErrConflict on
	// the unique pair.
	CreateReward(ctx context.Context, reward *model.ReferralReward) error
	ListRewards(ctx context.Context, referrerID uuid.UUID) ([]model.ReferralReward, error)
}

type pgReferralRepo struct{ pool *pgxpool.Pool }

func NewReferralRepository(pool *pgxpool.Pool) ReferralRepository {
	return &pgReferralRepo{pool: pool}
}

const referralOfferColumns = `id, name, description, reward_type, reward_value, minimum_order_amount,
	max_referrals, is_active, created_at, updated_at`

func (r *pgReferralRepo) GetActiveOffer(ctx context.Context) (*model.ReferralOffer, error) {
	o := &model.ReferralOffer{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+referralOfferColumns+` FROM referral_offers WHERE is_active ORDER BY created_at DESC LIMIT 1`,
	).Scan(&o.ID, &o.Name, &o.Description, &o.RewardType, &o.RewardValue, &o.MinimumOrderAmount,
		&o.MaxReferrals, &o.IsActive, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get referral offer: %w", err)
	}
	return o, nil
}

func (r *pgReferralRepo) CreateOffer(ctx context.Context, offer *model.ReferralOffer) error {
	offer.ID = uuid.New()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO referral_offers (id, name, description, reward_type, reward_value, minimum_order_amount,
		                              max_referrals, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW()) RETURNING created_at, updated_at`,
		offer.ID, offer.Name, offer.Description, offer.RewardType, offer.RewardValue,
		offer.MinimumOrderAmount, offer.MaxReferrals, offer.IsActive,
	).Scan(&offer.CreatedAt, &offer.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create referral offer: %w", err)
	}
	return nil
}

func (r *pgReferralRepo) UpdateOffer(ctx context.Context, offer *model.ReferralOffer) error {
	err := r.pool.QueryRow(ctx,
		`UPDATE referral_offers SET name = $2, description = $3, reward_type = $4, reward_value = $5,
		        minimum_order_amount = $6, max_referrals = $7, is_active = $8, updated_at = NOW()
		 WHERE id = $1 RETURNING updated_at`,
		offer.ID, offer.Name, offer.Description, offer.RewardType, offer.RewardValue,
		offer.MinimumOrderAmount, offer.MaxReferrals, offer.IsActive,
	).Scan(&offer.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pgx.ErrNoRows
		}
		return fmt.Errorf("update referral offer: %w", err)
	}
	return nil
}

func (r *pgReferralRepo) CountRewardsForReferrer(ctx context.Context, referrerID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM referral_rewards WHERE referrer_id = $1`, referrerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count referral rewards: %w", err)
	}
	return count, nil
}

func (r *pgReferralRepo) CreateReward(ctx context.Context, reward *model.ReferralReward) error {
	reward.ID = uuid.New()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO referral_rewards (id, referrer_id, referred_user_id, offer_id, coupon_id, reward_amount, is_claimed, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, false, NOW()) RETURNING created_at`,
		reward.ID, reward.ReferrerID, reward.ReferredUserID, reward.OfferID, reward.CouponID, reward.RewardAmount,
	).Scan(&reward.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("create referral reward: %w", err)
	}
	return nil
}

func (r *pgReferralRepo) ListRewards(ctx context.Context, referrerID uuid.UUID) ([]model.ReferralReward, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, referrer_id, referred_user_id, offer_id, coupon_id, reward_amount, is_claimed, created_at
		 FROM referral_rewards WHERE referrer_id = $1 ORDER BY created_at DESC`, referrerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list referral rewards: %w", err)
	}
	defer rows.Close()

	var rewards []model.ReferralReward
	for rows.Next() {
		var rw model.ReferralReward
		if err := rows.Scan(&rw.ID, &rw.ReferrerID, &rw.ReferredUserID, &rw.OfferID, &rw.CouponID, &rw.RewardAmount, &rw.IsClaimed, &rw.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan referral reward: %w", err)
		}
		rewards = append(rewards, rw)
	}
	return rewards, nil
}
