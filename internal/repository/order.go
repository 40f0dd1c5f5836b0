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

type OrderRepository interface {
	// BeginTx opens the transaction checkout and refund flows run in.
	BeginTx(ctx context.Context) (pgx.Tx, error)

	Create(ctx context.Context, tx pgx.Tx, order *model.Order) error
	CreateItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error

	// GetByID loads the order with its items, each annotated with whether a
	// pending-or-processed return request exists for it.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	// GetItemWithOrder loads one line and its parent order (with all sibling
	// lines), for per-line cancel and return decisions.
	GetItemWithOrder(ctx context.Context, itemID uuid.UUID) (*model.OrderItem, *model.Order, error)

	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Order, int, error)
	List(ctx context.Context, status OrderFilter, limit, offset int) ([]model.Order, int, error)

	// UpdateStatus runs inside the caller's transaction: lifecycle transitions
	// couple the status write with stock and wallet side effects.
	UpdateStatus(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, status model.OrderStatus) error
	UpdateItemStatus(ctx context.Context, tx pgx.Tx, itemID uuid.UUID, status model.ItemStatus) error

	SetGatewayOrder(ctx context.Context, orderID uuid.UUID, gatewayOrderID string) error
	// SetPaid records the verified payment and confirms the order inside the
	// caller's transaction.
	SetPaid(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, gatewayPayID string) error
}

// OrderFilter narrows admin listings; empty Status means all orders.
type OrderFilter struct {
	Status model.OrderStatus
}

type pgOrderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &pgOrderRepo{pool: pool}
}

func (r *pgOrderRepo) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return tx, nil
}

const orderColumns = `id, user_id, order_number, status, payment_method, subtotal, coupon_discount,
	shipping_charge, total_amount, coupon_id, gateway_order_id, gateway_pay_id, created_at, updated_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	o := &model.Order{}
	err := row.Scan(
		&o.ID, &o.UserID, &o.OrderNumber, &o.Status, &o.PaymentMethod, &o.Subtotal, &o.CouponDiscount,
		&o.ShippingCharge, &o.TotalAmount, &o.CouponID, &o.GatewayOrderID, &o.GatewayPayID, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *pgOrderRepo) Create(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	order.ID = uuid.New()
	err := tx.QueryRow(ctx,
		`INSERT INTO orders (id, user_id, order_number, status, payment_method, subtotal, coupon_discount,
		                     shipping_charge, total_amount, coupon_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW()) RETURNING created_at, updated_at`,
		order.ID, order.UserID, order.OrderNumber, order.Status, order.PaymentMethod,
		order.Subtotal, order.CouponDiscount, order.ShippingCharge, order.TotalAmount, order.CouponID,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (r *pgOrderRepo) CreateItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error {
	for i := range items {
		items[i].ID = uuid.New()
		items[i].Status = model.ItemStatusActive
		_, err := tx.Exec(ctx,
			`INSERT INTO order_items (id, order_id, product_id, variant_id, quantity, price, status,
			                          product_name, variant_color, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())`,
			items[i].ID, items[i].OrderID, items[i].ProductID, items[i].VariantID,
			items[i].Quantity, items[i].Price, items[i].Status, items[i].ProductName, items[i].VariantColor,
		)
		if err != nil {
			return fmt.Errorf("create order item: %w", err)
		}
	}
	return nil
}

const orderItemColumns = `oi.id, oi.order_id, oi.product_id, oi.variant_id, oi.quantity, oi.price, oi.status,
	oi.product_name, oi.variant_color, oi.created_at, oi.updated_at,
	EXISTS (SELECT 1 FROM item_return_requests irr WHERE irr.order_item_id = oi.id)`

func scanOrderItem(rows pgx.Rows) (model.OrderItem, error) {
	var it model.OrderItem
	err := rows.Scan(
		&it.ID, &it.OrderID, &it.ProductID, &it.VariantID, &it.Quantity, &it.Price, &it.Status,
		&it.ProductName, &it.VariantColor, &it.CreatedAt, &it.UpdatedAt, &it.HasReturnRequest,
	)
	return it, err
}

func (r *pgOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if err := r.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *pgOrderRepo) loadItems(ctx context.Context, o *model.Order) error {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderItemColumns+` FROM order_items oi WHERE oi.order_id = $1 ORDER BY oi.created_at`, o.ID,
	)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		it, err := scanOrderItem(rows)
		if err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	return nil
}

func (r *pgOrderRepo) GetItemWithOrder(ctx context.Context, itemID uuid.UUID) (*model.OrderItem, *model.Order, error) {
	var orderID uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT order_id FROM order_items WHERE id = $1`, itemID).Scan(&orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("get order item: %w", err)
	}

	order, err := r.GetByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	for i := range order.Items {
		if order.Items[i].ID == itemID {
			return &order.Items[i], order, nil
		}
	}
	return nil, nil, nil
}

func (r *pgOrderRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Order, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders, err := r.collectWithItems(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *pgOrderRepo) List(ctx context.Context, filter OrderFilter, limit, offset int) ([]model.Order, int, error) {
	var total int
	countQ := `SELECT COUNT(*) FROM orders WHERE ($1 = '' OR status = $1)`
	if err := r.pool.QueryRow(ctx, countQ, string(filter.Status)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE ($1 = '' OR status = $1)
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		string(filter.Status), limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders, err := r.collectWithItems(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *pgOrderRepo) collectWithItems(ctx context.Context, rows pgx.Rows) ([]model.Order, error) {
	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	rows.Close()

	for i := range orders {
		if err := r.loadItems(ctx, &orders[i]); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *pgOrderRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, status model.OrderStatus) error {
	ct, err := tx.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`, orderID, status,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *pgOrderRepo) UpdateItemStatus(ctx context.Context, tx pgx.Tx, itemID uuid.UUID, status model.ItemStatus) error {
	ct, err := tx.Exec(ctx,
		`UPDATE order_items SET status = $2, updated_at = NOW() WHERE id = $1`, itemID, status,
	)
	if err != nil {
		return fmt.Errorf("update order item status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *pgOrderRepo) SetGatewayOrder(ctx context.Context, orderID uuid.UUID, gatewayOrderID string) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE orders SET gateway_order_id = $2, updated_at = NOW() WHERE id = $1`, orderID, gatewayOrderID,
	)
	if err != nil {
		return fmt.Errorf("set gateway order: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *pgOrderRepo) SetPaid(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, gatewayPayID string) error {
	ct, err := tx.Exec(ctx,
		`UPDATE orders SET gateway_pay_id = $2, status = $3, updated_at = NOW() WHERE id = $1 AND status = $4`,
		orderID, gatewayPayID, model.OrderStatusConfirmed, model.OrderStatusPending,
	)
	if err != nil {
		return fmt.Errorf("mark order paid: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}
