package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/azrion/storefront/internal/dto"
	"github.com/azrion/storefront/internal/model"
	"github.com/azrion/storefront/internal/repository"
)

// OrderService drives the post-placement lifecycle: cancellations, returns
// and staff status updates, with their stock and wallet side effects. Each
// transition runs its precondition checks first and couples every side effect
// in one transaction.
type OrderService struct {
	orderRepo    repository.OrderRepository
	productRepo  repository.ProductRepository
	walletRepo   repository.WalletRepository
	returnRepo   repository.ReturnRepository
	returnWindow time.Duration
	logger       *slog.Logger
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	walletRepo repository.WalletRepository,
	returnRepo repository.ReturnRepository,
	returnWindow time.Duration,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		orderRepo: orderRepo, productRepo: productRepo,
		walletRepo: walletRepo, returnRepo: returnRepo,
		returnWindow: returnWindow, logger: logger,
	}
}

func (s *OrderService) Get(ctx context.Context, userID, orderID uuid.UUID) (*dto.OrderResponse, error) {
	order, err := s.ownedOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	resp := toOrderResponse(order)
	return &resp, nil
}

func (s *OrderService) ListByUser(ctx context.Context, userID uuid.UUID, page, limit int) (*dto.OrderListResponse, error) {
	orders, total, err := s.orderRepo.ListByUser(ctx, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return toOrderListResponse(orders, total, page, limit), nil
}

func (s *OrderService) ListAll(ctx context.Context, status model.OrderStatus, page, limit int) (*dto.OrderListResponse, error) {
	if status != "" && !model.ValidOrderStatus(status) {
		return nil, validationErr("Unknown order status.")
	}
	orders, total, err := s.orderRepo.List(ctx, repository.OrderFilter{Status: status}, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return toOrderListResponse(orders, total, page, limit), nil
}

// CancelOrder cancels the whole order. Stock is not restored on this path;
// only the item-level cancel and the staff transition into cancelled restore
// stock. Online-paid, undelivered orders get the full total credited to the
// wallet once.
func (s *OrderService) CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*dto.OrderResponse, error) {
	order, err := s.ownedOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if !order.CanBeCancelled() {
		return nil, validationErr("This order can no longer be cancelled.")
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	for i := range order.Items {
		if order.Items[i].CanBeCancelled(order) {
			if err := s.orderRepo.UpdateItemStatus(ctx, tx, order.Items[i].ID, model.ItemStatusCancelled); err != nil {
				return nil, err
			}
			order.Items[i].Status = model.ItemStatusCancelled
		}
	}
	if err := s.orderRepo.UpdateStatus(ctx, tx, orderID, model.OrderStatusCancelled); err != nil {
		return nil, err
	}

	if order.PaymentMethod == model.PaymentOnline && order.Status != model.OrderStatusDelivered {
		err := s.walletRepo.Credit(ctx, tx, userID, order.TotalAmount, "Refund for cancelled order "+order.OrderNumber)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit cancel: %w", err)
	}

	order.Status = model.OrderStatusCancelled
	s.logger.Info("order cancelled", "order_id", orderID, "order_number", order.OrderNumber)
	resp := toOrderResponse(order)
	return &resp, nil
}

// CancelItem cancels one line: the line's stock goes back to its variant, and
// for online-paid undelivered orders the line total is refunded to the wallet.
func (s *OrderService) CancelItem(ctx context.Context, userID, itemID uuid.UUID) (*dto.OrderResponse, error) {
	item, order, err := s.orderRepo.GetItemWithOrder(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("get order item: %w", err)
	}
	if item == nil {
		return nil, ErrOrderNotFound
	}
	if order.UserID != userID {
		return nil, ErrOrderAccessDenied
	}
	if !item.CanBeCancelled(order) {
		return nil, validationErr("This item can no longer be cancelled.")
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := s.orderRepo.UpdateItemStatus(ctx, tx, itemID, model.ItemStatusCancelled); err != nil {
		return nil, err
	}
	if err := s.productRepo.RestoreStock(ctx, tx, item.VariantID, item.Quantity); err != nil {
		return nil, err
	}

	if order.PaymentMethod == model.PaymentOnline && order.Status != model.OrderStatusDelivered {
		desc := fmt.Sprintf("Refund for cancelled item %s (order %s)", item.ProductName, order.OrderNumber)
		if err := s.walletRepo.Credit(ctx, tx, userID, item.LineTotal(), desc); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit item cancel: %w", err)
	}

	item.Status = model.ItemStatusCancelled
	s.logger.Info("order item cancelled", "order_id", order.ID, "item_id", itemID)
	resp := toOrderResponse(order)
	return &resp, nil
}

// RequestReturn opens a whole-order return. The window runs from order
// creation, not delivery.
func (s *OrderService) RequestReturn(ctx context.Context, userID, orderID uuid.UUID, reason string) (*dto.ReturnResponse, error) {
	order, err := s.ownedOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.OrderStatusDelivered {
		return nil, validationErr("Only delivered orders can be returned.")
	}
	if time.Now().After(order.CreatedAt.Add(s.returnWindow)) {
		return nil, validationErr("The return window for this order has closed.")
	}
	exists, err := s.returnRepo.OrderReturnExists(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("check return request: %w", err)
	}
	if exists {
		return nil, validationErr("A return request already exists for this order.")
	}

	req := &model.ReturnRequest{OrderID: orderID, Reason: reason}
	if err := s.returnRepo.CreateOrderReturn(ctx, req); err != nil {
		if err == repository.ErrConflict {
			return nil, validationErr("A return request already exists for this order.")
		}
		return nil, fmt.Errorf("create return request: %w", err)
	}
	return toReturnResponse(req.ID, req.Status, req.Reason, req.AdminNotes, req.RequestedAt, req.ProcessedAt), nil
}

func (s *OrderService) RequestItemReturn(ctx context.Context, userID, itemID uuid.UUID, reason string) (*dto.ReturnResponse, error) {
	item, order, err := s.orderRepo.GetItemWithOrder(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("get order item: %w", err)
	}
	if item == nil {
		return nil, ErrOrderNotFound
	}
	if order.UserID != userID {
		return nil, ErrOrderAccessDenied
	}
	if !item.CanBeReturned(order, s.returnWindow, time.Now()) {
		return nil, validationErr("This item is not eligible for return.")
	}

	req := &model.ItemReturnRequest{OrderItemID: itemID, Reason: reason}
	if err := s.returnRepo.CreateItemReturn(ctx, req); err != nil {
		if err == repository.ErrConflict {
			return nil, validationErr("A return request already exists for this item.")
		}
		return nil, fmt.Errorf("create item return request: %w", err)
	}
	return toReturnResponse(req.ID, req.Status, req.Reason, req.AdminNotes, req.RequestedAt, req.ProcessedAt), nil
}

// ProcessOrderReturn approves or rejects a whole-order return. Approval
// restores every line's stock and credits the full order total; both requests
// and their outcomes are immutable once processed.
func (s *OrderService) ProcessOrderReturn(ctx context.Context, adminID, requestID uuid.UUID, approve bool, notes string) (*dto.ReturnResponse, error) {
	req, err := s.returnRepo.GetOrderReturn(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get return request: %w", err)
	}
	if req == nil {
		return nil, ErrReturnNotFound
	}
	if !approve && notes == "" {
		return nil, validationErr("Admin notes are required to reject a return.")
	}

	order, err := s.orderRepo.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	status := model.ReturnRejected
	if approve {
		status = model.ReturnApproved
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := s.returnRepo.MarkOrderReturnProcessed(ctx, tx, requestID, status, notes, adminID); err != nil {
		if err == repository.ErrConflict {
			return nil, validationErr("This return request has already been processed.")
		}
		return nil, err
	}

	if approve {
		if err := s.orderRepo.UpdateStatus(ctx, tx, order.ID, model.OrderStatusReturned); err != nil {
			return nil, err
		}
		for _, item := range order.Items {
			if err := s.productRepo.RestoreStock(ctx, tx, item.VariantID, item.Quantity); err != nil {
				return nil, err
			}
		}
		err := s.walletRepo.Credit(ctx, tx, order.UserID, order.TotalAmount, "Refund for returned order "+order.OrderNumber)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit return processing: %w", err)
	}

	s.logger.Info("return request processed", "request_id", requestID, "status", status)
	now := time.Now()
	return toReturnResponse(req.ID, status, req.Reason, notes, req.RequestedAt, &now), nil
}

func (s *OrderService) ProcessItemReturn(ctx context.Context, adminID, requestID uuid.UUID, approve bool, notes string) (*dto.ReturnResponse, error) {
	req, err := s.returnRepo.GetItemReturn(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get item return request: %w", err)
	}
	if req == nil {
		return nil, ErrReturnNotFound
	}
	if !approve && notes == "" {
		return nil, validationErr("Admin notes are required to reject a return.")
	}

	item, order, err := s.orderRepo.GetItemWithOrder(ctx, req.OrderItemID)
	if err != nil {
		return nil, fmt.Errorf("get order item: %w", err)
	}
	if item == nil {
		return nil, ErrOrderNotFound
	}

	status := model.ReturnRejected
	if approve {
		status = model.ReturnApproved
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := s.returnRepo.MarkItemReturnProcessed(ctx, tx, requestID, status, notes, adminID); err != nil {
		if err == repository.ErrConflict {
			return nil, validationErr("This return request has already been processed.")
		}
		return nil, err
	}

	if approve {
		if err := s.orderRepo.UpdateItemStatus(ctx, tx, item.ID, model.ItemStatusReturned); err != nil {
			return nil, err
		}
		if err := s.productRepo.RestoreStock(ctx, tx, item.VariantID, item.Quantity); err != nil {
			return nil, err
		}
		desc := fmt.Sprintf("Refund for returned item %s (order %s)", item.ProductName, order.OrderNumber)
		if err := s.walletRepo.Credit(ctx, tx, order.UserID, item.LineTotal(), desc); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit item return processing: %w", err)
	}

	s.logger.Info("item return request processed", "request_id", requestID, "status", status)
	now := time.Now()
	return toReturnResponse(req.ID, status, req.Reason, notes, req.RequestedAt, &now), nil
}

// UpdateStatus is the staff transition. Moving an order into cancelled
// restores stock for all of its lines; no other transition touches stock.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, status model.OrderStatus) (*dto.OrderResponse, error) {
	if !model.ValidOrderStatus(status) {
		return nil, validationErr("Unknown order status.")
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if status == model.OrderStatusCancelled && order.Status != model.OrderStatusCancelled {
		for _, item := range order.Items {
			if err := s.productRepo.RestoreStock(ctx, tx, item.VariantID, item.Quantity); err != nil {
				return nil, err
			}
		}
	}
	if err := s.orderRepo.UpdateStatus(ctx, tx, orderID, status); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit status update: %w", err)
	}

	order.Status = status
	s.logger.Info("order status updated", "order_id", orderID, "status", status)
	resp := toOrderResponse(order)
	return &resp, nil
}

func (s *OrderService) ListOrderReturns(ctx context.Context, status model.ReturnStatus, page, limit int) ([]model.ReturnRequest, int, error) {
	return s.returnRepo.ListOrderReturns(ctx, status, limit, (page-1)*limit)
}

func (s *OrderService) ListItemReturns(ctx context.Context, status model.ReturnStatus, page, limit int) ([]model.ItemReturnRequest, int, error) {
	return s.returnRepo.ListItemReturns(ctx, status, limit, (page-1)*limit)
}

func (s *OrderService) ownedOrder(ctx context.Context, userID, orderID uuid.UUID) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.UserID != userID {
		return nil, ErrOrderAccessDenied
	}
	return order, nil
}

func toOrderListResponse(orders []model.Order, total, page, limit int) *dto.OrderListResponse {
	resp := &dto.OrderListResponse{Total: total, Page: page, Limit: limit}
	for i := range orders {
		resp.Orders = append(resp.Orders, toOrderResponse(&orders[i]))
	}
	return resp
}

func toReturnResponse(id uuid.UUID, status model.ReturnStatus, reason, notes string, requestedAt time.Time, processedAt *time.Time) *dto.ReturnResponse {
	return &dto.ReturnResponse{
		ID: id, Status: status, Reason: reason, AdminNotes: notes,
		RequestedAt: requestedAt, ProcessedAt: processedAt,
	}
}
