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

type ReturnRepository interface {
	CreateOrderReturn(ctx context.Context, req *model.ReturnRequest) error
	CreateItemReturn(ctx context.Context, req *model.ItemReturnRequest) error

	OrderReturnExists(ctx context.Context, orderID uuid.UUID) (bool, error)
	ItemReturnExists(ctx context.Context, orderItemID uuid.UUID) (bool, error)

	GetOrderReturn(ctx context.Context, id uuid.UUID) (*model.ReturnRequest, error)
	GetItemReturn(ctx context.Context, id uuid.UUID) (*model.ItemReturnRequest, error)

	// MarkOrderReturnProcessed transitions a pending whole-order request to
	// its terminal status inside the caller's transaction; ErrConflict when
	// the request was already processed.
	MarkOrderReturnProcessed(ctx context.Context, tx pgx.Tx, id uuid.UUID, status model.ReturnStatus, notes string, adminID uuid.UUID) error
	MarkItemReturnProcessed(ctx context.Context, tx pgx.Tx, id uuid.UUID, status model.ReturnStatus, notes string, adminID uuid.UUID) error

	ListOrderReturns(ctx context.Context, status model.ReturnStatus, limit, offset int) ([]model.ReturnRequest, int, error)
	ListItemReturns(ctx context.Context, status model.ReturnStatus, limit, offset int) ([]model.ItemReturnRequest, int, error)
}

type pgReturnRepo struct{ pool *pgxpool.Pool }

func NewReturnRepository(pool *pgxpool.Pool) ReturnRepository {
	return &pgReturnRepo{pool: pool}
}

func (r *pgReturnRepo) CreateOrderReturn(ctx context.Context, req *model.ReturnRequest) error {
	req.ID = uuid.New()
	req.Status = model.ReturnPending
	err := r.pool.QueryRow(ctx,
		`INSERT INTO return_requests (id, order_id, reason, status, admin_notes, requested_at)
		 VALUES ($1, $2, $3, $4, '', NOW()) RETURNING requested_at`,
		req.ID, req.OrderID, req.Reason, req.Status,
	).Scan(&req.RequestedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("create return request: %w", err)
	}
	return nil
}

func (r *pgReturnRepo) CreateItemReturn(ctx context.Context, req *model.ItemReturnRequest) error {
	req.ID = uuid.New()
	req.Status = model.ReturnPending
	err := r.pool.QueryRow(ctx,
		`INSERT INTO item_return_requests (id, order_item_id, reason, status, admin_notes, requested_at)
		 VALUES ($1, $2, $3, $4, '', NOW()) RETURNING requested_at`,
		req.ID, req.OrderItemID, req.Reason, req.Status,
	).Scan(&req.RequestedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("create item return request: %w", err)
	}
	return nil
}

func (r *pgReturnRepo) OrderReturnExists(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM return_requests WHERE order_id = $1)`, orderID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check return request: %w", err)
	}
	return exists, nil
}

func (r *pgReturnRepo) ItemReturnExists(ctx context.Context, orderItemID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM item_return_requests WHERE order_item_id = $1)`, orderItemID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check item return request: %w", err)
	}
	return exists, nil
}

const orderReturnColumns = `id, order_id, reason, status, admin_notes, requested_at, processed_at, processed_by`

func (r *pgReturnRepo) GetOrderReturn(ctx context.Context, id uuid.UUID) (*model.ReturnRequest, error) {
	req := &model.ReturnRequest{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+orderReturnColumns+` FROM return_requests WHERE id = $1`, id,
	).Scan(&req.ID, &req.OrderID, &req.Reason, &req.Status, &req.AdminNotes, &req.RequestedAt, &req.ProcessedAt, &req.ProcessedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get return request: %w", err)
	}
	return req, nil
}

const itemReturnColumns = `id, order_item_id, reason, status, admin_notes, requested_at, processed_at, processed_by`

func (r *pgReturnRepo) GetItemReturn(ctx context.Context, id uuid.UUID) (*model.ItemReturnRequest, error) {
	req := &model.ItemReturnRequest{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+itemReturnColumns+` FROM item_return_requests WHERE id = $1`, id,
	).Scan(&req.ID, &req.OrderItemID, &req.Reason, &req.Status, &req.AdminNotes, &req.RequestedAt, &req.ProcessedAt, &req.ProcessedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get item return request: %w", err)
	}
	return req, nil
}

func (r *pgReturnRepo) MarkOrderReturnProcessed(ctx context.Context, tx pgx.Tx, id uuid.UUID, status model.ReturnStatus, notes string, adminID uuid.UUID) error {
	ct, err := tx.Exec(ctx,
		`UPDATE return_requests SET status = $2, admin_notes = $3, processed_at = NOW(), processed_by = $4
		 WHERE id = $1 AND status = $5`,
		id, status, notes, adminID, model.ReturnPending,
	)
	if err != nil {
		return fmt.Errorf("process return request: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (r *pgReturnRepo) MarkItemReturnProcessed(ctx context.Context, tx pgx.Tx, id uuid.UUID, status model.ReturnStatus, notes string, adminID uuid.UUID) error {
	ct, err := tx.Exec(ctx,
		`UPDATE item_return_requests SET status = $2, admin_notes = $3, processed_at = NOW(), processed_by = $4
		 WHERE id = $1 AND status = $5`,
		id, status, notes, adminID, model.ReturnPending,
	)
	if err != nil {
		return fmt.Errorf("process item return request: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (r *pgReturnRepo) ListOrderReturns(ctx context.Context, status model.ReturnStatus, limit, offset int) ([]model.ReturnRequest, int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM return_requests WHERE ($1 = '' OR status = $1)`, string(status),
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count return requests: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+orderReturnColumns+` FROM return_requests WHERE ($1 = '' OR status = $1)
		 ORDER BY requested_at DESC LIMIT $2 OFFSET $3`,
		string(status), limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list return requests: %w", err)
	}
	defer rows.Close()

	var reqs []model.ReturnRequest
	for rows.Next() {
		var req model.ReturnRequest
		if err := rows.Scan(&req.ID, &req.OrderID, &req.Reason, &req.Status, &req.AdminNotes, &req.RequestedAt, &req.ProcessedAt, &req.ProcessedBy); err != nil {
			return nil, 0, fmt.Errorf("scan return request: %w", err)
		}
		reqs = append(reqs, req)
	}
	return reqs, total, nil
}

func (r *pgReturnRepo) ListItemReturns(ctx context.Context, status model.ReturnStatus, limit, offset int) ([]model.ItemReturnRequest, int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM item_return_requests WHERE ($1 = '' OR status = $1)`, string(status),
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count item return requests: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+itemReturnColumns+` FROM item_return_requests WHERE ($1 = '' OR status = $1)
		 ORDER BY requested_at DESC LIMIT $2 OFFSET $3`,
		string(status), limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list item return requests: %w", err)
	}
	defer rows.Close()

	var reqs []model.ItemReturnRequest
	for rows.Next() {
		var req model.ItemReturnRequest
		if err := rows.Scan(&req.ID, &req.OrderItemID, &req.Reason, &req.Status, &req.AdminNotes, &req.RequestedAt, &req.ProcessedAt, &req.ProcessedBy); err != nil {
			return nil, 0, fmt.Errorf("scan item return request: %w", err)
		}
		reqs = append(reqs, req)
	}
	return reqs, total, nil
}
