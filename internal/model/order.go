package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusReturned   OrderStatus = "returned"
)

func ValidOrderStatus(s OrderStatus) bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled, OrderStatusReturned:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentCOD    PaymentMethod = "cod"
	PaymentOnline PaymentMethod = "online"
	PaymentWallet PaymentMethod = "wallet"
)

type ItemStatus string

const (
	ItemStatusActive    ItemStatus = "active"
	ItemStatusCancelled ItemStatus = "cancelled"
	ItemStatusReturned  ItemStatus = "returned"
)

// Order is an immutable pricing snapshot taken at placement. Subtotal,
// CouponDiscount, ShippingCharge and TotalAmount are the durable contract
// downstream reporting reconciles against.
type Order struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	OrderNumber    string
	Status         OrderStatus
	PaymentMethod  PaymentMethod
	Subtotal       decimal.Decimal
	CouponDiscount decimal.Decimal
	ShippingCharge decimal.Decimal
	TotalAmount    decimal.Decimal
	CouponID       *uuid.UUID
	GatewayOrderID *string
	GatewayPayID   *string
	Items          []OrderItem
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DerivedStatus is the read-time aggregate view. Line status is authoritative:
// once every line is cancelled or returned, the order displays as cancelled if
// cancelled lines outnumber returned ones, else returned. The stored status
// field is not overwritten by this derivation.
func (o *Order) DerivedStatus() OrderStatus {
	if len(o.Items) == 0 {
		return o.Status
	}
	var cancelled, returned int
	for _, item := range o.Items {
		switch item.Status {
		case ItemStatusCancelled:
			cancelled++
		case ItemStatusReturned:
			returned++
		}
	}
	if cancelled+returned < len(o.Items) {
		return o.Status
	}
	if cancelled > returned {
		return OrderStatusCancelled
	}
	return OrderStatusReturned
}

// CanBeCancelled reports whether at least one line is still cancellable.
func (o *Order) CanBeCancelled() bool {
	for _, item := range o.Items {
		if item.CanBeCancelled(o) {
			return true
		}
	}
	return false
}

type OrderItem struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	ProductID uuid.UUID
	VariantID uuid.UUID
	Quantity  int
	Price     decimal.Decimal // unit price snapshot at purchase time
	Status    ItemStatus
	CreatedAt time.Time
	UpdatedAt time.Time

	ProductName  string
	VariantColor string

	HasReturnRequest bool
}

func (i *OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (i *OrderItem) CanBeCancelled(o *Order) bool {
	return i.Status == ItemStatusActive &&
		(o.Status == OrderStatusPending || o.Status == OrderStatusConfirmed) &&
		!i.HasReturnRequest
}

// CanBeReturned uses the return window measured from order creation, not from
// the delivery event. A slow shipment can therefore exhaust the window before
// the order even arrives; kept deliberately to match billing history.
func (i *OrderItem) CanBeReturned(o *Order, window time.Duration, now time.Time) bool {
	return i.Status == ItemStatusActive &&
		o.Status == OrderStatusDelivered &&
		!i.HasReturnRequest &&
		!now.After(o.CreatedAt.Add(window))
}

type Wallet struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Balance   decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

type TransactionType string

const (
	TransactionCredit TransactionType = "credit"
	TransactionDebit  TransactionType = "debit"
)

type WalletTransaction struct {
	ID          uuid.UUID
	WalletID    uuid.UUID
	Type        TransactionType
	Amount      decimal.Decimal
	Description string
	CreatedAt   time.Time
}

type ReturnStatus string

const (
	ReturnPending  ReturnStatus = "pending"
	ReturnApproved ReturnStatus = "approved"
	ReturnRejected ReturnStatus = "rejected"
)

// ReturnRequest is a whole-order return. One per order; immutable once
// processed.
type ReturnRequest struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	Reason      string
	Status      ReturnStatus
	AdminNotes  string
	RequestedAt time.Time
	ProcessedAt *time.Time
	ProcessedBy *uuid.UUID
}

// ItemReturnRequest is a single-line return. One per order item; immutable
// once processed.
type ItemReturnRequest struct {
	ID          uuid.UUID
	OrderItemID uuid.UUID
	Reason      string
	Status      ReturnStatus
	AdminNotes  string
	RequestedAt time.Time
	ProcessedAt *time.Time
	ProcessedBy *uuid.UUID
}

type ReferralOffer struct {
	ID                 uuid.UUID
	Name               string
	Description        string
	RewardType         DiscountType // discount type of the generated coupon
	RewardValue        decimal.Decimal
	MinimumOrderAmount decimal.Decimal
	MaxReferrals       *int
	IsActive           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ReferralReward links a referrer to the coupon generated when someone signed
// up with their code. The (referrer, referred user) pair is unique.
type ReferralReward struct {
	ID             uuid.UUID
	ReferrerID     uuid.UUID
	ReferredUserID uuid.UUID
	OfferID        uuid.UUID
	CouponID       *uuid.UUID
	RewardAmount   decimal.Decimal
	IsClaimed      bool
	CreatedAt      time.Time
}

// OrderEvent is published to the notification exchange when an order is
// placed or a payment is verified.
type OrderEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	UserID      uuid.UUID `json:"user_id"`
	OrderNumber string    `json:"order_number"`
	Kind        string    `json:"kind"` // "placed" or "paid"
}
