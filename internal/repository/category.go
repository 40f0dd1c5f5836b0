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

type CategoryRepository interface {
	Create(ctx context.Context, category *model.Category) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Category, error)
	List(ctx context.Context, includeDeleted bool) ([]model.Category, error)
	Update(ctx context.Context, category *model.Category) error
	SoftDelete(ctx context.Context, id uuid.UUID) error

	CreateOffer(ctx context.Context, offer *model.CategoryOffer) error
	UpdateOffer(ctx context.Context, offer *model.CategoryOffer) error
	GetOffer(ctx context.Context, id uuid.UUID) (*model.CategoryOffer, error)
	ListOffers(ctx context.Context, categoryID uuid.UUID) ([]model.CategoryOffer, error)
}

type pgCategoryRepo struct{ pool *pgxpool.Pool }

func NewCategoryRepository(pool *pgxpool.Pool) CategoryRepository {
	return &pgCategoryRepo{pool: pool}
}

func (r *pgCategoryRepo) Create(ctx context.Context, category *model.Category) error {
	category.ID = uuid.New()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO categories (id, name, description, is_deleted, created_at)
		 VALUES ($1, $2, $3, false, NOW()) RETURNING created_at`,
		category.ID, category.Name, category.Description,
	).Scan(&category.CreatedAt)
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

func (r *pgCategoryRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Category, error) {
	c := &model.Category{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, description, is_deleted, created_at FROM categories WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Description, &c.IsDeleted, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (r *pgCategoryRepo) List(ctx context.Context, includeDeleted bool) ([]model.Category, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, description, is_deleted, created_at FROM categories
		 WHERE ($1 OR NOT is_deleted) ORDER BY name`, includeDeleted,
	)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.IsDeleted, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, nil
}

func (r *pgCategoryRepo) Update(ctx context.Context, category *model.Category) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE categories SET name = $2, description = $3 WHERE id = $1`,
		category.ID, category.Name, category.Description,
	)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return nil
}

func (r *pgCategoryRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `UPDATE categories SET is_deleted = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *pgCategoryRepo) CreateOffer(ctx context.Context, offer *model.CategoryOffer) error {
	offer.ID = uuid.New()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO category_offers (id, category_id, name, discount_percentage, valid_from, valid_until, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW()) RETURNING created_at, updated_at`,
		offer.ID, offer.CategoryID, offer.Name, offer.DiscountPercentage, offer.ValidFrom, offer.ValidUntil, offer.IsActive,
	).Scan(&offer.CreatedAt, &offer.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create category offer: %w", err)
	}
	return nil
}

func (r *pgCategoryRepo) UpdateOffer(ctx context.Context, offer *model.CategoryOffer) error {
	err := r.pool.QueryRow(ctx,
		`UPDATE category_offers
		 SET name = $2, discount_percentage = $3, valid_from = $4, valid_until = $5, is_active = $6, updated_at = NOW()
		 WHERE id = $1 RETURNING updated_at`,
		offer.ID, offer.Name, offer.DiscountPercentage, offer.ValidFrom, offer.ValidUntil, offer.IsActive,
	).Scan(&offer.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pgx.ErrNoRows
		}
		return fmt.Errorf("update category offer: %w", err)
	}
	return nil
}

func (r *pgCategoryRepo) GetOffer(ctx context.Context, id uuid.UUID) (*model.CategoryOffer, error) {
	o := &model.CategoryOffer{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, category_id, name, discount_percentage, valid_from, valid_until, is_active, created_at, updated_at
		 FROM category_offers WHERE id = $1`, id,
	).Scan(&o.ID, &o.CategoryID, &o.Name, &o.DiscountPercentage, &o.ValidFrom, &o.ValidUntil, &o.IsActive, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get category offer: %w", err)
	}
	return o, nil
}

func (r *pgCategoryRepo) ListOffers(ctx context.Context, categoryID uuid.UUID) ([]model.CategoryOffer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, category_id, name, discount_percentage, valid_from, valid_until, is_active, created_at, updated_at
		 FROM category_offers WHERE category_id = $1 ORDER BY created_at DESC`, categoryID,
	)
	if err != nil {
		return nil, fmt.Errorf("list category offers: %w", err)
	}
	defer rows.Close()

	var offers []model.CategoryOffer
	for rows.Next() {
		var o model.CategoryOffer
		if err := rows.Scan(&o.ID, &o.CategoryID, &o.Name, &o.DiscountPercentage, &o.ValidFrom, &o.ValidUntil, &o.IsActive, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan category offer: %w", err)
		}
		offers = append(offers, o)
	}
	return offers, nil
}
