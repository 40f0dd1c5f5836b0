package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"

	"github.com/azrion/storefront/internal/dto"
	"github.com/azrion/storefront/internal/model"
	"github.com/azrion/storefront/internal/payment"
	"github.com/azrion/storefront/internal/pricing"
	"github.com/azrion/storefront/internal/repository"
)

// OrderEventsQueue receives a message for every placed order and every
// verified payment; the notification worker consumes it.
const OrderEventsQueue = "order_events"

// CheckoutService turns a cart into an order. Stock leaves inventory at
// placement for COD and wallet orders, and only at payment verification for
// online orders. The wallet debit is the last write before commit, so a
// failed debit rolls back everything.
type CheckoutService struct {
	orderRepo   repository.OrderRepository
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	couponRepo  repository.CouponRepository
	walletRepo  repository.WalletRepository
	gateway     payment.Gateway
	amqpCh      *amqp.Channel
	rates       pricing.ShippingRates
	keyID       string
	currency    string
	logger      *slog.Logger
}

func NewCheckoutService(
	orderRepo repository.OrderRepository,
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	couponRepo repository.CouponRepository,
	walletRepo repository.WalletRepository,
	gateway payment.Gateway,
	amqpCh *amqp.Channel,
	rates pricing.ShippingRates,
	keyID, currency string,
	logger *slog.Logger,
) *CheckoutService {
	return &CheckoutService{
		orderRepo: orderRepo, cartRepo: cartRepo, productRepo: productRepo,
		couponRepo: couponRepo, walletRepo: walletRepo, gateway: gateway,
		amqpCh: amqpCh, rates: rates,
		keyID: keyID, currency: currency,
		logger: logger,
	}
}

func (s *CheckoutService) PlaceOrder(ctx context.Context, userID uuid.UUID, method model.PaymentMethod) (*dto.OrderResponse, error) {
	cart, err := s.cartRepo.GetWithItems(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	if len(cart.Items) == 0 {
		return nil, ErrEmptyCart
	}

	var coupon *model.Coupon
	hasUsed := false
	if cart.AppliedCouponID != nil {
		coupon, err = s.couponRepo.GetByID(ctx, *cart.AppliedCouponID)
		if err != nil {
			return nil, fmt.Errorf("get coupon: %w", err)
		}
		if coupon != nil {
			hasUsed, err = s.couponRepo.HasUsed(ctx, userID, coupon.ID)
			if err != nil {
				return nil, fmt.Errorf("check coupon usage: %w", err)
			}
		}
	}

	// unavailable lines are skipped, not blocking: the order covers whatever
	// can still be bought
	now := time.Now()
	quote := pricing.QuoteCart(cart, coupon, hasUsed, s.rates, now)
	if len(quote.Available) == 0 {
		return nil, validationErr("No available items in cart.")
	}
	if quote.CouponDropped != "" {
		if err := s.cartRepo.SetCoupon(ctx, cart.ID, nil); err != nil {
			return nil, fmt.Errorf("detach coupon: %w", err)
		}
		return nil, validationErr(quote.CouponDropped)
	}
	if method == model.PaymentOnline && !s.gateway.Enabled() {
		return nil, validationErr("Online payment is not available right now.")
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// online orders hold no stock until the payment is verified
	if method != model.PaymentOnline {
		for _, line := range quote.Available {
			if err := s.productRepo.DecrementStock(ctx, tx, line.Item.VariantID, line.Item.Quantity); err != nil {
				if err == repository.ErrInsufficientStock {
					return nil, validationErr(fmt.Sprintf("%s is out of stock.", line.Item.Product.Name))
				}
				return nil, err
			}
		}
	}

	status := model.OrderStatusPending
	if method == model.PaymentWallet {
		status = model.OrderStatusConfirmed
	}

	order := &model.Order{
		UserID:         userID,
		OrderNumber:    newOrderNumber(now),
		Status:         status,
		PaymentMethod:  method,
		Subtotal:       quote.Subtotal,
		CouponDiscount: quote.CouponDiscount,
		ShippingCharge: quote.ShippingCharge,
		TotalAmount:    quote.TotalAmount,
	}
	if coupon != nil {
		order.CouponID = &coupon.ID
	}
	if err := s.orderRepo.Create(ctx, tx, order); err != nil {
		return nil, err
	}

	items := make([]model.OrderItem, 0, len(quote.Available))
	for _, line := range quote.Available {
		items = append(items, model.OrderItem{
			OrderID:      order.ID,
			ProductID:    line.Item.ProductID,
			VariantID:    line.Item.VariantID,
			Quantity:     line.Item.Quantity,
			Price:        decimal.NewFromInt(line.UnitPrice),
			ProductName:  line.Item.Product.Name,
			VariantColor: line.Item.Variant.Color,
		})
	}
	if err := s.orderRepo.CreateItems(ctx, tx, items); err != nil {
		return nil, err
	}
	order.Items = items

	if coupon != nil {
		if err := s.couponRepo.Redeem(ctx, tx, coupon.ID, userID, order.ID); err != nil {
			switch err {
			case repository.ErrConflict:
				return nil, validationErr("This coupon has reached its usage limit.")
			case repository.ErrCouponAlreadyUsed:
				return nil, validationErr("You have already used this coupon.")
			}
			return nil, err
		}
	}

	// all-or-nothing: an insufficient balance rolls back the stock decrements,
	// the order and the coupon redemption
	if method == model.PaymentWallet {
		err := s.walletRepo.Debit(ctx, tx, userID, order.TotalAmount, "Payment for order "+order.OrderNumber)
		if err != nil {
			if err == repository.ErrConflict {
				return nil, validationErr("Insufficient wallet balance.")
			}
			return nil, err
		}
	}

	if err := s.cartRepo.Clear(ctx, tx, cart.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit order: %w", err)
	}

	s.publishEvent(ctx, order, "placed")
	s.logger.Info("order placed",
		"order_id", order.ID, "order_number", order.OrderNumber,
		"payment_method", method, "total", order.TotalAmount,
		"skipped_lines", len(quote.Unavailable))

	resp := toOrderResponse(order)
	return &resp, nil
}

// CreatePayment registers the order with the gateway and returns what the
// client needs to open the payment widget. Retries reuse the same path: a
// fresh gateway order replaces the stored one.
func (s *CheckoutService) CreatePayment(ctx context.Context, userID, orderID uuid.UUID) (*dto.CreatePaymentResponse, error) {
	order, err := s.ownedOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != model.PaymentOnline || order.Status != model.OrderStatusPending {
		return nil, validationErr("This order is not awaiting payment.")
	}

	// gateway amounts are in minor units
	paise := order.TotalAmount.Mul(decimal.NewFromInt(100)).IntPart()
	gatewayOrderID, err := s.gateway.CreateOrder(ctx, paise, s.currency)
	if err != nil {
		return nil, fmt.Errorf("create gateway order: %w", err)
	}

	if err := s.orderRepo.SetGatewayOrder(ctx, orderID, gatewayOrderID); err != nil {
		return nil, err
	}

	return &dto.CreatePaymentResponse{
		GatewayOrderID: gatewayOrderID,
		Amount:         order.TotalAmount,
		Currency:       s.currency,
		KeyID:          s.keyID,
	}, nil
}

// VerifyPayment checks the gateway signature and, inside one transaction,
// decrements stock for every line and confirms the order. A signature that
// does not verify changes nothing.
func (s *CheckoutService) VerifyPayment(ctx context.Context, userID, orderID uuid.UUID, req dto.VerifyPaymentRequest) (*dto.OrderResponse, error) {
	order, err := s.ownedOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != model.PaymentOnline || order.Status != model.OrderStatusPending {
		return nil, validationErr("This order is not awaiting payment.")
	}
	if order.GatewayOrderID == nil || *order.GatewayOrderID != req.GatewayOrderID {
		return nil, validationErr("Payment verification failed.")
	}
	if !s.gateway.VerifySignature(req.GatewayOrderID, req.GatewayPayID, req.Signature) {
		return nil, validationErr("Payment verification failed.")
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	for _, item := range order.Items {
		if item.Status != model.ItemStatusActive {
			continue
		}
		if err := s.productRepo.DecrementStock(ctx, tx, item.VariantID, item.Quantity); err != nil {
			if err == repository.ErrInsufficientStock {
				return nil, validationErr(fmt.Sprintf("%s went out of stock while you were paying.", item.ProductName))
			}
			return nil, err
		}
	}

	if err := s.orderRepo.SetPaid(ctx, tx, orderID, req.GatewayPayID); err != nil {
		if err == repository.ErrConflict {
			return nil, validationErr("This order is not awaiting payment.")
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit payment: %w", err)
	}

	order.Status = model.OrderStatusConfirmed
	order.GatewayPayID = &req.GatewayPayID

	s.publishEvent(ctx, order, "paid")
	s.logger.Info("payment verified", "order_id", order.ID, "gateway_pay_id", req.GatewayPayID)

	resp := toOrderResponse(order)
	return &resp, nil
}

func (s *CheckoutService) ownedOrder(ctx context.Context, userID, orderID uuid.UUID) (*model.Order, error) {
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

func (s *CheckoutService) publishEvent(ctx context.Context, order *model.Order, kind string) {
	if s.amqpCh == nil {
		return
	}
	msg, _ := json.Marshal(model.OrderEvent{
		OrderID: order.ID, UserID: order.UserID, OrderNumber: order.OrderNumber, Kind: kind,
	})
	err := s.amqpCh.PublishWithContext(ctx, "", OrderEventsQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    order.ID.String() + ":" + kind,
		Body:         msg,
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		s.logger.Warn("order event not published", "order_id", order.ID, "kind", kind, "error", err)
	}
}

func newOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD%d%03d", now.UnixMilli(), rand.Intn(1000))
}

func toOrderResponse(o *model.Order) dto.OrderResponse {
	resp := dto.OrderResponse{
		ID:             o.ID,
		OrderNumber:    o.OrderNumber,
		Status:         o.DerivedStatus(),
		PaymentMethod:  o.PaymentMethod,
		Subtotal:       o.Subtotal,
		CouponDiscount: o.CouponDiscount,
		ShippingCharge: o.ShippingCharge,
		TotalAmount:    o.TotalAmount,
		CreatedAt:      o.CreatedAt,
	}
	for _, item := range o.Items {
		resp.Items = append(resp.Items, dto.OrderItemResponse{
			ID: item.ID, ProductID: item.ProductID, VariantID: item.VariantID,
			ProductName: item.ProductName, Color: item.VariantColor,
			Quantity: item.Quantity, Price: item.Price, Status: item.Status,
		})
	}
	return resp
}
