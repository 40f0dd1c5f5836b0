package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type User struct {
	ID           uuid.UUID
	Email        string
	Password     string
	FullName     string
	Phone        string
	Role         string
	ReferralCode string
	ReferredBy   *uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Category struct {
	ID          uuid.UUID
	Name        string
	Description string
	IsDeleted   bool
	CreatedAt   time.Time
}

// CategoryOffer is a time-bounded percentage discount on every product in a
// category. Both interval bounds are inclusive.
type CategoryOffer struct {
	ID                 uuid.UUID
	CategoryID         uuid.UUID
	Name               string
	DiscountPercentage decimal.Decimal
	ValidFrom          time.Time
	ValidUntil         time.Time
	IsActive           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Live reports whether the offer applies at the given instant.
func (o *CategoryOffer) Live(now time.Time) bool {
	return o.IsActive && !now.Before(o.ValidFrom) && !now.After(o.ValidUntil)
}

type Product struct {
	ID           uuid.UUID
	CategoryID   uuid.UUID
	Name         string
	Description  string
	Price        int64           // whole-rupee price, always > 0
	ProductOffer decimal.Decimal // flat always-active percentage, 0-100
	IsDeleted    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Category       *Category
	CategoryOffers []CategoryOffer
	Variants       []Variant
}

// Variant carries stock; availability is tracked per variant, not per product.
type Variant struct {
	ID            uuid.UUID
	ProductID     uuid.UUID
	Color         string
	StockQuantity int
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type CouponVisibility string

const (
	// VisibilityPublic coupons are listed to every customer.
	VisibilityPublic CouponVisibility = "public"
	// VisibilityReferral coupons are referral rewards, listed only to the
	// referrer they were generated for.
	VisibilityReferral CouponVisibility = "referral"
)

type Coupon struct {
	ID              uuid.UUID
	Code            string
	Description     string
	DiscountType    DiscountType
	DiscountValue   decimal.Decimal
	MinimumAmount   decimal.Decimal
	MaximumDiscount *decimal.Decimal // caps percentage discounts when set
	UsageLimit      *int
	UsedCount       int
	ValidFrom       time.Time
	ValidUntil      time.Time
	IsActive        bool
	Visibility      CouponVisibility
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CouponUsage records a redemption. The (user, coupon) pair is unique: one
// redemption per user per coupon, ever.
type CouponUsage struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	CouponID uuid.UUID
	OrderID  *uuid.UUID
	UsedAt   time.Time
}

type Cart struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	AppliedCouponID *uuid.UUID
	Items           []CartItem
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type CartItem struct {
	ID        uuid.UUID
	CartID    uuid.UUID
	ProductID uuid.UUID
	VariantID uuid.UUID
	Quantity  int
	AddedAt   time.Time
	UpdatedAt time.Time

	Product *Product
	Variant *Variant
}

// Available reports whether the line can be bought right now: product and
// category not soft-deleted, variant active, enough stock for the quantity.
func (i *CartItem) Available() bool {
	if i.Product == nil || i.Variant == nil {
		return false
	}
	if i.Product.IsDeleted {
		return false
	}
	if i.Product.Category != nil && i.Product.Category.IsDeleted {
		return false
	}
	return i.Variant.IsActive && i.Variant.StockQuantity >= i.Quantity
}
