package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/azrion/storefront/internal/model"
)

// --- Auth ---

type RegisterRequest struct {
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=8"`
	FullName     string `json:"full_name" binding:"required"`
	Phone        string `json:"phone"`
	ReferralCode string `json:"referral_code"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type UserResponse struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	Phone        string    `json:"phone"`
	Role         string    `json:"role"`
	ReferralCode string    `json:"referral_code"`
}

// --- Catalog ---

type CreateCategoryRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type CategoryResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsDeleted   bool      `json:"is_deleted"`
}

type CategoryOfferRequest struct {
	Name               string          `json:"name" binding:"required"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage" binding:"required"`
	ValidFrom          time.Time       `json:"valid_from" binding:"required"`
	ValidUntil         time.Time       `json:"valid_until" binding:"required"`
	IsActive           bool            `json:"is_active"`
}

type CreateProductRequest struct {
	CategoryID   uuid.UUID       `json:"category_id" binding:"required"`
	Name         string          `json:"name" binding:"required"`
	Description  string          `json:"description"`
	Price        int64           `json:"price" binding:"required,min=1"`
	ProductOffer decimal.Decimal `json:"product_offer"`
}

type UpdateProductRequest struct {
	CategoryID   *uuid.UUID       `json:"category_id"`
	Name         *string          `json:"name"`
	Description  *string          `json:"description"`
	Price        *int64           `json:"price"`
	ProductOffer *decimal.Decimal `json:"product_offer"`
}

type CreateVariantRequest struct {
	Color         string `json:"color" binding:"required"`
	StockQuantity int    `json:"stock_quantity" binding:"min=0"`
	IsActive      bool   `json:"is_active"`
}

type UpdateVariantRequest struct {
	Color         *string `json:"color"`
	StockQuantity *int    `json:"stock_quantity"`
	IsActive      *bool   `json:"is_active"`
}

type AdjustStockRequest struct {
	Delta int `json:"delta" binding:"required"`
}

type ListProductsRequest struct {
	Page   int    `form:"page,default=1" binding:"min=1"`
	Limit  int    `form:"limit,default=20" binding:"min=1,max=100"`
	Search string `form:"search"`
	Sort   string `form:"sort,default=created_at" binding:"oneof=name price created_at"`
	Order  string `form:"order,default=desc" binding:"oneof=asc desc"`
}

type VariantResponse struct {
	ID            uuid.UUID `json:"id"`
	Color         string    `json:"color"`
	StockQuantity int       `json:"stock_quantity"`
	IsActive      bool      `json:"is_active"`
}

// ProductResponse carries the effective price so storefront pages never
// recompute discounts client-side.
type ProductResponse struct {
	ID              uuid.UUID         `json:"id"`
	CategoryID      uuid.UUID         `json:"category_id"`
	Name            string            `json:"name"`
	Description     string            `json:"description"`
	Price           int64             `json:"price"`
	DiscountedPrice int64             `json:"discounted_price"`
	OfferType       string            `json:"offer_type"`
	OfferPercentage decimal.Decimal   `json:"offer_percentage"`
	Variants        []VariantResponse `json:"variants,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

type ProductListResponse struct {
	Products []ProductResponse `json:"products"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	Limit    int               `json:"limit"`
}

// --- Coupons ---

type CreateCouponRequest struct {
	Code            string             `json:"code" binding:"required"`
	Description     string             `json:"description"`
	DiscountType    model.DiscountType `json:"discount_type" binding:"required,oneof=percentage fixed"`
	DiscountValue   decimal.Decimal    `json:"discount_value" binding:"required"`
	MinimumAmount   decimal.Decimal    `json:"minimum_amount"`
	MaximumDiscount *decimal.Decimal   `json:"maximum_discount"`
	UsageLimit      *int               `json:"usage_limit"`
	ValidFrom       time.Time          `json:"valid_from" binding:"required"`
	ValidUntil      time.Time          `json:"valid_until" binding:"required"`
	IsActive        bool               `json:"is_active"`
}

type CouponResponse struct {
	ID              uuid.UUID          `json:"id"`
	Code            string             `json:"code"`
	Description     string             `json:"description"`
	DiscountType    model.DiscountType `json:"discount_type"`
	DiscountValue   decimal.Decimal    `json:"discount_value"`
	MinimumAmount   decimal.Decimal    `json:"minimum_amount"`
	MaximumDiscount *decimal.Decimal   `json:"maximum_discount,omitempty"`
	ValidUntil      time.Time          `json:"valid_until"`
}

type ApplyCouponRequest struct {
	Code string `json:"code" binding:"required"`
}

// --- Cart ---

type AddCartItemRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	VariantID uuid.UUID `json:"variant_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1"`
}

type CartItemResponse struct {
	ID          uuid.UUID `json:"id"`
	ProductID   uuid.UUID `json:"product_id"`
	VariantID   uuid.UUID `json:"variant_id"`
	ProductName string    `json:"product_name"`
	Color       string    `json:"color"`
	UnitPrice   int64     `json:"unit_price"`
	Quantity    int       `json:"quantity"`
	LineTotal   int64     `json:"line_total"`
	Available   bool      `json:"available"`
}

// CartResponse is the priced view of the cart: the same quote checkout will
// charge, so the two screens can never disagree.
type CartResponse struct {
	ID                uuid.UUID          `json:"id"`
	Items             []CartItemResponse `json:"items"`
	UnavailableItems  []CartItemResponse `json:"unavailable_items,omitempty"`
	Subtotal          decimal.Decimal    `json:"subtotal"`
	CouponCode        string             `json:"coupon_code,omitempty"`
	CouponDiscount    decimal.Decimal    `json:"coupon_discount"`
	CouponDropped     string             `json:"coupon_dropped,omitempty"`
	ShippingCharge    decimal.Decimal    `json:"shipping_charge"`
	TotalAmount       decimal.Decimal    `json:"total_amount"`
}

// --- Checkout / Orders ---

type PlaceOrderRequest struct {
	PaymentMethod model.PaymentMethod `json:"payment_method" binding:"required,oneof=cod online wallet"`
}

type OrderItemResponse struct {
	ID          uuid.UUID        `json:"id"`
	ProductID   uuid.UUID        `json:"product_id"`
	VariantID   uuid.UUID        `json:"variant_id"`
	ProductName string           `json:"product_name"`
	Color       string           `json:"color"`
	Quantity    int              `json:"quantity"`
	Price       decimal.Decimal  `json:"price"`
	Status      model.ItemStatus `json:"status"`
}

type OrderResponse struct {
	ID             uuid.UUID           `json:"id"`
	OrderNumber    string              `json:"order_number"`
	Status         model.OrderStatus   `json:"status"`
	PaymentMethod  model.PaymentMethod `json:"payment_method"`
	Subtotal       decimal.Decimal     `json:"subtotal"`
	CouponDiscount decimal.Decimal     `json:"coupon_discount"`
	ShippingCharge decimal.Decimal     `json:"shipping_charge"`
	TotalAmount    decimal.Decimal     `json:"total_amount"`
	Items          []OrderItemResponse `json:"items"`
	CreatedAt      time.Time           `json:"created_at"`
}

type OrderListResponse struct {
	Orders []OrderResponse `json:"orders"`
	Total  int             `json:"total"`
	Page   int             `json:"page"`
	Limit  int             `json:"limit"`
}

type UpdateOrderStatusRequest struct {
	Status model.OrderStatus `json:"status" binding:"required"`
}

// --- Payment ---

type CreatePaymentResponse struct {
	GatewayOrderID string          `json:"gateway_order_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	KeyID          string          `json:"key_id"`
}

type VerifyPaymentRequest struct {
	GatewayOrderID string `json:"gateway_order_id" binding:"required"`
	GatewayPayID   string `json:"gateway_payment_id" binding:"required"`
	Signature      string `json:"signature" binding:"required"`
}

// --- Returns ---

type ReturnRequestBody struct {
	Reason string `json:"reason" binding:"required"`
}

type ProcessReturnRequest struct {
	Approve bool   `json:"approve"`
	Notes   string `json:"notes"`
}

type ReturnResponse struct {
	ID          uuid.UUID          `json:"id"`
	Status      model.ReturnStatus `json:"status"`
	Reason      string             `json:"reason"`
	AdminNotes  string             `json:"admin_notes,omitempty"`
	RequestedAt time.Time          `json:"requested_at"`
	ProcessedAt *time.Time         `json:"processed_at,omitempty"`
}

// --- Wallet ---

type WalletResponse struct {
	Balance decimal.Decimal `json:"balance"`
}

type WalletTransactionResponse struct {
	ID          uuid.UUID             `json:"id"`
	Type        model.TransactionType `json:"type"`
	Amount      decimal.Decimal       `json:"amount"`
	Description string                `json:"description"`
	CreatedAt   time.Time             `json:"created_at"`
}

type WalletTransactionsResponse struct {
	Transactions []WalletTransactionResponse `json:"transactions"`
	Total        int                         `json:"total"`
	Page         int                         `json:"page"`
	Limit        int                         `json:"limit"`
}

// --- Referral ---

type ReferralOfferRequest struct {
	Name               string             `json:"name" binding:"required"`
	Description        string             `json:"description"`
	RewardType         model.DiscountType `json:"reward_type" binding:"required,oneof=percentage fixed"`
	RewardValue        decimal.Decimal    `json:"reward_value" binding:"required"`
	MinimumOrderAmount decimal.Decimal    `json:"minimum_order_amount"`
	MaxReferrals       *int               `json:"max_referrals"`
	IsActive           bool               `json:"is_active"`
}
