package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/azrion/storefront/internal/model"
)

type CouponRepository interface {
	Create(ctx context.Context, coupon *model.Coupon) error
	Update(ctx context.Context, coupon *model.Coupon) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Coupon, error)
	GetByCode(ctx context.Context, code string) (*model.Coupon, error)
	List(ctx context.Context, limit, offset int) ([]model.Coupon, int, error)

	// HasUsed reports whether a CouponUsage row exists for the pair.
	HasUsed(ctx context.Context, userID, couponID uuid.UUID) (bool, error)

	// Redeem commits a redemption inside the caller's transaction: the
	// used_count increment is guarded by the usage limit (ErrConflict when
	// the limit was hit concurrently) and the usage row insert is guarded by
	// the unique (user, coupon) constraint (ErrCouponAlreadyUsed).
	Redeem(ctx context.Context, tx pgx.Tx, couponID, userID, orderID uuid.UUID) error

	// ListPublicLive returns live public coupons whose minimum is met,
	// excluding ones the user already redeemed.
	ListPublicLive(ctx context.Context, userID uuid.UUID, cartTotal decimal.Decimal, now time.Time) ([]model.Coupon, error)
	// ListReferralForUser returns live referral-reward coupons locked to this
	// user as referrer and not yet redeemed.
	ListReferralForUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]model.Coupon, error)
}

type pgCouponRepo struct{ pool *pgxpool.Pool }

func NewCouponRepository(pool *pgxpool.Pool) CouponRepository {
	return &pgCouponRepo{pool: pool}
}

const couponColumns = `id, code, description, discount_type, discount_value, minimum_amount, maximum_discount,
	usage_limit, used_count, valid_from, valid_until, is_active, visibility, created_at, updated_at`

func scanCoupon(row pgx.Row) (*model.Coupon, error) {
	c := &model.Coupon{}
	err := row.Scan(
		&c.ID, &c.Code, &c.Description, &c.DiscountType, &c.DiscountValue, &c.MinimumAmount, &c.MaximumDiscount,
		&c.UsageLimit, &c.UsedCount, &c.ValidFrom, &c.ValidUntil, &c.IsActive, &c.Visibility, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *pgCouponRepo) Create(ctx context.Context, coupon *model.Coupon) error {
	coupon.ID = uuid.New()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO coupons (id, code, description, discount_type, discount_value, minimum_amount, maximum_discount,
		                      usage_limit, used_count, valid_from, valid_until, is_active, visibility, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, $10, $11, $12, NOW(), NOW()) RETURNING created_at, updated_at`,
		coupon.ID, coupon.Code, coupon.Description, coupon.DiscountType, coupon.DiscountValue,
		coupon.MinimumAmount, coupon.MaximumDiscount, coupon.UsageLimit,
		coupon.ValidFrom, coupon.ValidUntil, coupon.IsActive, coupon.Visibility,
	).Scan(&coupon.CreatedAt, &coupon.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create coupon: %w", err)
	}
	return nil
}

func (r *pgCouponRepo) Update(ctx context.Context, coupon *model.Coupon) error {
	err := r.pool.QueryRow(ctx,
		`UPDATE coupons SET description = $2, discount_type = $3, discount_value = $4, minimum_amount = $5,
		        maximum_discount = $6, usage_limit = $7, valid_from = $8, valid_until = $9, is_active = $10, updated_at = NOW()
		 WHERE id = $1 RETURNING updated_at`,
		coupon.ID, coupon.Description, coupon.DiscountType, coupon.DiscountValue, coupon.MinimumAmount,
		coupon.MaximumDiscount, coupon.UsageLimit, coupon.ValidFrom, coupon.ValidUntil, coupon.IsActive,
	).Scan(&coupon.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pgx.ErrNoRows
		}
		return fmt.Errorf("update coupon: %w", err)
	}
	return nil
}

func (r *pgCouponRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Coupon, error) {
	c, err := scanCoupon(r.pool.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get coupon: %w", err)
	}
	return c, nil
}

func (r *pgCouponRepo) GetByCode(ctx context.Context, code string) (*model.Coupon, error) {
	c, err := scanCoupon(r.pool.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = $1`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get coupon by code: %w", err)
	}
	return c, nil
}

func (r *pgCouponRepo) List(ctx context.Context, limit, offset int) ([]model.Coupon, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM coupons`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count coupons: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+couponColumns+` FROM coupons ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list coupons: %w", err)
	}
	defer rows.Close()

	coupons, err := collectCoupons(rows)
	if err != nil {
		return nil, 0, err
	}
	return coupons, total, nil
}

func collectCoupons(rows pgx.Rows) ([]model.Coupon, error) {
	var coupons []model.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("scan coupon: %w", err)
		}
		coupons = append(coupons, *c)
	}
	return coupons, nil
}

func (r *pgCouponRepo) HasUsed(ctx context.Context, userID, couponID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM coupon_usages WHERE user_id = $1 AND coupon_id = $2)`,
		userID, couponID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check coupon usage: %w", err)
	}
	return exists, nil
}

func (r *pgCouponRepo) Redeem(ctx context.Context, tx pgx.Tx, couponID, userID, orderID uuid.UUID) error {
	ct, err := tx.Exec(ctx,
		`UPDATE coupons SET used_count = used_count + 1, updated_at = NOW()
		 WHERE id = $1 AND (usage_limit IS NULL OR used_count < usage_limit)`,
		couponID,
	)
	if err != nil {
		return fmt.Errorf("increment coupon usage: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrConflict
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO coupon_usages (id, user_id, coupon_id, order_id, used_at) VALUES ($1, $2, $3, $4, NOW())`,
		uuid.New(), userID, couponID, orderID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCouponAlreadyUsed
		}
		return fmt.Errorf("record coupon usage: %w", err)
	}
	return nil
}

func (r *pgCouponRepo) ListPublicLive(ctx context.Context, userID uuid.UUID, cartTotal decimal.Decimal, now time.Time) ([]model.Coupon, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+couponColumns+` FROM coupons c
		 WHERE c.visibility = 'public' AND c.is_active
		   AND c.valid_from <= $2 AND c.valid_until >= $2
		   AND c.minimum_amount <= $3
		   AND (c.usage_limit IS NULL OR c.used_count < c.usage_limit)
		   AND NOT EXISTS (SELECT 1 FROM coupon_usages u WHERE u.coupon_id = c.id AND u.user_id = $1)
		 ORDER BY c.created_at DESC`,
		userID, now, cartTotal,
	)
	if err != nil {
		return nil, fmt.Errorf("list public coupons: %w", err)
	}
	defer rows.Close()
	return collectCoupons(rows)
}

func (r *pgCouponRepo) ListReferralForUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]model.Coupon, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+couponColumns+` FROM coupons c
		 JOIN referral_rewards rr ON rr.coupon_id = c.id
		 WHERE rr.referrer_id = $1 AND NOT rr.is_claimed
		   AND c.visibility = 'referral' AND c.is_active
		   AND c.valid_from <= $2 AND c.valid_until >= $2
		   AND NOT EXISTS (SELECT 1 FROM coupon_usages u WHERE u.coupon_id = c.id AND u.user_id = $1)
		 ORDER BY c.created_at DESC`,
		userID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("list referral coupons: %w", err)
	}
	defer rows.Close()
	return collectCoupons(rows)
}
