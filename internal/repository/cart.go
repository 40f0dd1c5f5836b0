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

type CartRepository interface {
	// GetOrCreate returns the user's cart, creating an empty one on first use.
	// Items are not loaded.
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*model.Cart, error)
	// GetWithItems loads the cart with every line's product (plus category and
	// live category offers) and variant, ready for pricing.
	GetWithItems(ctx context.Context, userID uuid.UUID) (*model.Cart, error)

	AddItem(ctx context.Context, item *model.CartItem) error
	UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error
	GetItem(ctx context.Context, itemID uuid.UUID) (*model.CartItem, error)
	DeleteItem(ctx context.Context, itemID uuid.UUID) error

	SetCoupon(ctx context.Context, cartID uuid.UUID, couponID *uuid.UUID) error
	// Clear removes every line and the applied coupon inside the caller's
	// transaction (checkout).
	Clear(ctx context.Context, tx pgx.Tx, cartID uuid.UUID) error
}

type pgCartRepo struct{ pool *pgxpool.Pool }

func NewCartRepository(pool *pgxpool.Pool) CartRepository {
	return &pgCartRepo{pool: pool}
}

func (r *pgCartRepo) GetOrCreate(ctx context.Context, userID uuid.UUID) (*model.Cart, error) {
	c := &model.Cart{}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO carts (id, user_id, created_at, updated_at) VALUES ($1, $2, NOW(), NOW())
		 ON CONFLICT (user_id) DO UPDATE SET updated_at = carts.updated_at
		 RETURNING id, user_id, applied_coupon_id, created_at, updated_at`,
		uuid.New(), userID,
	).Scan(&c.ID, &c.UserID, &c.AppliedCouponID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get or create cart: %w", err)
	}
	return c, nil
}

func (r *pgCartRepo) GetWithItems(ctx context.Context, userID uuid.UUID) (*model.Cart, error) {
	cart, err := r.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT ci.id, ci.cart_id, ci.product_id, ci.variant_id, ci.quantity, ci.added_at, ci.updated_at,
		        p.id, p.category_id, p.name, p.description, p.price, p.product_offer, p.is_deleted, p.created_at, p.updated_at,
		        c.id, c.name, c.description, c.is_deleted, c.created_at,
		        v.id, v.product_id, v.color, v.stock_quantity, v.is_active, v.created_at, v.updated_at
		 FROM cart_items ci
		 JOIN products p ON p.id = ci.product_id
		 JOIN categories c ON c.id = p.category_id
		 JOIN variants v ON v.id = ci.variant_id
		 WHERE ci.cart_id = $1
		 ORDER BY ci.added_at`, cart.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("load cart items: %w", err)
	}
	defer rows.Close()

	categoryIDs := make(map[uuid.UUID]bool)
	for rows.Next() {
		item := model.CartItem{Product: &model.Product{Category: &model.Category{}}, Variant: &model.Variant{}}
		p, cat, v := item.Product, item.Product.Category, item.Variant
		err := rows.Scan(
			&item.ID, &item.CartID, &item.ProductID, &item.VariantID, &item.Quantity, &item.AddedAt, &item.UpdatedAt,
			&p.ID, &p.CategoryID, &p.Name, &p.Description, &p.Price, &p.ProductOffer, &p.IsDeleted, &p.CreatedAt, &p.UpdatedAt,
			&cat.ID, &cat.Name, &cat.Description, &cat.IsDeleted, &cat.CreatedAt,
			&v.ID, &v.ProductID, &v.Color, &v.StockQuantity, &v.IsActive, &v.CreatedAt, &v.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		categoryIDs[p.CategoryID] = true
		cart.Items = append(cart.Items, item)
	}

	if len(categoryIDs) > 0 {
		if err := r.attachLiveOffers(ctx, cart, time.Now()); err != nil {
			return nil, err
		}
	}
	return cart, nil
}

// attachLiveOffers loads the live offers for every category in the cart in one
// query and fans them out to the lines.
func (r *pgCartRepo) attachLiveOffers(ctx context.Context, cart *model.Cart, now time.Time) error {
	ids := make([]uuid.UUID, 0, len(cart.Items))
	seen := make(map[uuid.UUID]bool)
	for _, item := range cart.Items {
		if !seen[item.Product.CategoryID] {
			seen[item.Product.CategoryID] = true
			ids = append(ids, item.Product.CategoryID)
		}
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, category_id, name, discount_percentage, valid_from, valid_until, is_active, created_at, updated_at
		 FROM category_offers
		 WHERE category_id = ANY($1) AND is_active AND valid_from <= $2 AND valid_until >= $2
		 ORDER BY created_at`, ids, now,
	)
	if err != nil {
		return fmt.Errorf("load category offers: %w", err)
	}
	defer rows.Close()

	byCategory := make(map[uuid.UUID][]model.CategoryOffer)
	for rows.Next() {
		var o model.CategoryOffer
		if err := rows.Scan(&o.ID, &o.CategoryID, &o.Name, &o.DiscountPercentage, &o.ValidFrom, &o.ValidUntil, &o.IsActive, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return fmt.Errorf("scan category offer: %w", err)
		}
		byCategory[o.CategoryID] = append(byCategory[o.CategoryID], o)
	}

	for i := range cart.Items {
		cart.Items[i].Product.CategoryOffers = byCategory[cart.Items[i].Product.CategoryID]
	}
	return nil
}

// AddItem upserts the (cart, product, variant) line, merging quantities when
// the line already exists.
func (r *pgCartRepo) AddItem(ctx context.Context, item *model.CartItem) error {
	item.ID = uuid.New()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO cart_items (id, cart_id, product_id, variant_id, quantity, added_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		 ON CONFLICT (cart_id, product_id, variant_id)
		 DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()
		 RETURNING id, quantity, added_at, updated_at`,
		item.ID, item.CartID, item.ProductID, item.VariantID, item.Quantity,
	).Scan(&item.ID, &item.Quantity, &item.AddedAt, &item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("add cart item: %w", err)
	}
	return nil
}

func (r *pgCartRepo) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE cart_items SET quantity = $2, updated_at = NOW() WHERE id = $1`, itemID, quantity,
	)
	if err != nil {
		return fmt.Errorf("update cart item: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *pgCartRepo) GetItem(ctx context.Context, itemID uuid.UUID) (*model.CartItem, error) {
	item := &model.CartItem{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, cart_id, product_id, variant_id, quantity, added_at, updated_at FROM cart_items WHERE id = $1`, itemID,
	).Scan(&item.ID, &item.CartID, &item.ProductID, &item.VariantID, &item.Quantity, &item.AddedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cart item: %w", err)
	}
	return item, nil
}

func (r *pgCartRepo) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *pgCartRepo) SetCoupon(ctx context.Context, cartID uuid.UUID, couponID *uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE carts SET applied_coupon_id = $2, updated_at = NOW() WHERE id = $1`, cartID, couponID,
	)
	if err != nil {
		return fmt.Errorf("set cart coupon: %w", err)
	}
	return nil
}

func (r *pgCartRepo) Clear(ctx context.Context, tx pgx.Tx, cartID uuid.UUID) error {
	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("clear cart items: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE carts SET applied_coupon_id = NULL, updated_at = NOW() WHERE id = $1`, cartID); err != nil {
		return fmt.Errorf("clear cart coupon: %w", err)
	}
	return nil
}
