package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/azrion/storefront/internal/model"
)

type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	// GetByID loads the product with its category, the category's offers and
	// the product's variants, so pricing can run without further reads.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	List(ctx context.Context, limit, offset int, search, sort, order string) ([]model.Product, int, error)
	Update(ctx context.Context, product *model.Product) error
	SoftDelete(ctx context.Context, id uuid.UUID) error

	CreateVariant(ctx context.Context, variant *model.Variant) error
	GetVariant(ctx context.Context, id uuid.UUID) (*model.Variant, error)
	UpdateVariant(ctx context.Context, variant *model.Variant) error
	AdjustStock(ctx context.Context, variantID uuid.UUID, delta int) error

	// DecrementStock runs the guarded decrement inside the caller's
	// transaction; ErrInsufficientStock when the guard matches no row.
	DecrementStock(ctx context.Context, tx pgx.Tx, variantID uuid.UUID, quantity int) error
	// RestoreStock increments a variant's stock inside the caller's
	// transaction (cancellations, approved returns).
	RestoreStock(ctx context.Context, tx pgx.Tx, variantID uuid.UUID, quantity int) error
}

type pgProductRepo struct{ pool *pgxpool.Pool }

func NewProductRepository(pool *pgxpool.Pool) ProductRepository {
	return &pgProductRepo{pool: pool}
}

func (r *pgProductRepo) Create(ctx context.Context, product *model.Product) error {
	product.ID = uuid.New()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO products (id, category_id, name, description, price, product_offer, is_deleted, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, false, NOW(), NOW()) RETURNING created_at, updated_at`,
		product.ID, product.CategoryID, product.Name, product.Description, product.Price, product.ProductOffer,
	).Scan(&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

func (r *pgProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	p := &model.Product{Category: &model.Category{}}
	err := r.pool.QueryRow(ctx,
		`SELECT p.id, p.category_id, p.name, p.description, p.price, p.product_offer, p.is_deleted, p.created_at, p.updated_at,
		        c.id, c.name, c.description, c.is_deleted, c.created_at
		 FROM products p JOIN categories c ON c.id = p.category_id
		 WHERE p.id = $1`, id,
	).Scan(
		&p.ID, &p.CategoryID, &p.Name, &p.Description, &p.Price, &p.ProductOffer, &p.IsDeleted, &p.CreatedAt, &p.UpdatedAt,
		&p.Category.ID, &p.Category.Name, &p.Category.Description, &p.Category.IsDeleted, &p.Category.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	if err := r.loadOffers(ctx, p, time.Now()); err != nil {
		return nil, err
	}
	if err := r.loadVariants(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *pgProductRepo) loadOffers(ctx context.Context, p *model.Product, now time.Time) error {
	rows, err := r.pool.Query(ctx,
		`SELECT id, category_id, name, discount_percentage, valid_from, valid_until, is_active, created_at, updated_at
		 FROM category_offers
		 WHERE category_id = $1 AND is_active AND valid_from <= $2 AND valid_until >= $2
		 ORDER BY created_at`, p.CategoryID, now,
	)
	if err != nil {
		return fmt.Errorf("load category offers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var o model.CategoryOffer
		if err := rows.Scan(&o.ID, &o.CategoryID, &o.Name, &o.DiscountPercentage, &o.ValidFrom, &o.ValidUntil, &o.IsActive, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return fmt.Errorf("scan category offer: %w", err)
		}
		p.CategoryOffers = append(p.CategoryOffers, o)
	}
	return nil
}

func (r *pgProductRepo) loadVariants(ctx context.Context, p *model.Product) error {
	rows, err := r.pool.Query(ctx,
		`SELECT id, product_id, color, stock_quantity, is_active, created_at, updated_at
		 FROM variants WHERE product_id = $1 ORDER BY created_at`, p.ID,
	)
	if err != nil {
		return fmt.Errorf("load variants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v model.Variant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Color, &v.StockQuantity, &v.IsActive, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return fmt.Errorf("scan variant: %w", err)
		}
		p.Variants = append(p.Variants, v)
	}
	return nil
}

func (r *pgProductRepo) List(ctx context.Context, limit, offset int, search, sort, order string) ([]model.Product, int, error) {
	allowedSorts := map[string]bool{"name": true, "price": true, "created_at": true}
	if !allowedSorts[sort] {
		sort = "created_at"
	}
	if order != "asc" && order != "desc" {
		order = "desc"
	}

	var total int
	countQ := `SELECT COUNT(*) FROM products p JOIN categories c ON c.id = p.category_id
		WHERE NOT p.is_deleted AND NOT c.is_deleted
		AND ($1 = '' OR p.name ILIKE '%' || $1 || '%' OR p.description ILIKE '%' || $1 || '%')`
	if err := r.pool.QueryRow(ctx, countQ, search).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	query := fmt.Sprintf(`SELECT p.id, p.category_id, p.name, p.description, p.price, p.product_offer, p.is_deleted, p.created_at, p.updated_at
		FROM products p JOIN categories c ON c.id = p.category_id
		WHERE NOT p.is_deleted AND NOT c.is_deleted
		AND ($1 = '' OR p.name ILIKE '%%' || $1 || '%%' OR p.description ILIKE '%%' || $1 || '%%')
		ORDER BY p.%s %s LIMIT $2 OFFSET $3`, sort, order)

	rows, err := r.pool.Query(ctx, query, search, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.CategoryID, &p.Name, &p.Description, &p.Price, &p.ProductOffer, &p.IsDeleted, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, total, nil
}

func (r *pgProductRepo) Update(ctx context.Context, product *model.Product) error {
	err := r.pool.QueryRow(ctx,
		`UPDATE products SET category_id = $2, name = $3, description = $4, price = $5, product_offer = $6, updated_at = NOW()
		 WHERE id = $1 RETURNING updated_at`,
		product.ID, product.CategoryID, product.Name, product.Description, product.Price, product.ProductOffer,
	).Scan(&product.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pgx.ErrNoRows
		}
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

func (r *pgProductRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `UPDATE products SET is_deleted = true, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *pgProductRepo) CreateVariant(ctx context.Context, variant *model.Variant) error {
	variant.ID = uuid.New()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO variants (id, product_id, color, stock_quantity, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW(), NOW()) RETURNING created_at, updated_at`,
		variant.ID, variant.ProductID, variant.Color, variant.StockQuantity, variant.IsActive,
	).Scan(&variant.CreatedAt, &variant.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create variant: %w", err)
	}
	return nil
}

func (r *pgProductRepo) GetVariant(ctx context.Context, id uuid.UUID) (*model.Variant, error) {
	v := &model.Variant{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, product_id, color, stock_quantity, is_active, created_at, updated_at FROM variants WHERE id = $1`, id,
	).Scan(&v.ID, &v.ProductID, &v.Color, &v.StockQuantity, &v.IsActive, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get variant: %w", err)
	}
	return v, nil
}

func (r *pgProductRepo) UpdateVariant(ctx context.Context, variant *model.Variant) error {
	err := r.pool.QueryRow(ctx,
		`UPDATE variants SET color = $2, stock_quantity = $3, is_active = $4, updated_at = NOW()
		 WHERE id = $1 RETURNING updated_at`,
		variant.ID, variant.Color, variant.StockQuantity, variant.IsActive,
	).Scan(&variant.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pgx.ErrNoRows
		}
		return fmt.Errorf("update variant: %w", err)
	}
	return nil
}

// AdjustStock applies a signed stock delta with the non-negative guard, for
// admin inventory corrections.
func (r *pgProductRepo) AdjustStock(ctx context.Context, variantID uuid.UUID, delta int) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE variants SET stock_quantity = stock_quantity + $2, updated_at = NOW()
		 WHERE id = $1 AND stock_quantity + $2 >= 0`,
		variantID, delta,
	)
	if err != nil {
		return fmt.Errorf("adjust stock: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (r *pgProductRepo) DecrementStock(ctx context.Context, tx pgx.Tx, variantID uuid.UUID, quantity int) error {
	ct, err := tx.Exec(ctx,
		`UPDATE variants SET stock_quantity = stock_quantity - $2, updated_at = NOW()
		 WHERE id = $1 AND stock_quantity >= $2`,
		variantID, quantity,
	)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrInsufficientStock
	}
	return nil
}

func (r *pgProductRepo) RestoreStock(ctx context.Context, tx pgx.Tx, variantID uuid.UUID, quantity int) error {
	_, err := tx.Exec(ctx,
		`UPDATE variants SET stock_quantity = stock_quantity + $2, updated_at = NOW() WHERE id = $1`,
		variantID, quantity,
	)
	if err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}
	return nil
}
