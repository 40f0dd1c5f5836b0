package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/azrion/storefront/internal/model"
)

// ShippingRates are the configured shipping constants: a flat fee below the
// free-shipping threshold, nothing at or above it.
type ShippingRates struct {
	FlatFee       decimal.Decimal
	FreeThreshold decimal.Decimal
}

// Quote is the priced view of a cart at one instant.
type Quote struct {
	Subtotal       decimal.Decimal
	CouponDiscount decimal.Decimal
	ShippingCharge decimal.Decimal
	TotalAmount    decimal.Decimal

	// Available are the lines the totals cover, with their discounted unit
	// prices resolved. Unavailable lines stay in the cart's persisted state
	// but contribute nothing here.
	Available   []QuotedLine
	Unavailable []model.CartItem

	// CouponDropped is the validation failure that detached a previously
	// applied coupon, empty when the coupon held (or none was applied). The
	// caller persists the detachment.
	CouponDropped string
}

type QuotedLine struct {
	Item      model.CartItem
	UnitPrice int64 // discounted unit price, whole rupees
	LineTotal decimal.Decimal
}

// QuoteCart prices a cart: availability filter, per-line offer resolution,
// coupon re-validation against the fresh subtotal, shipping, total.
// Total is never negative; CouponDiscount is clamped to the subtotal.
func QuoteCart(cart *model.Cart, coupon *model.Coupon, hasUsedCoupon bool, rates ShippingRates, now time.Time) Quote {
	q := Quote{
		Subtotal:       decimal.Zero,
		CouponDiscount: decimal.Zero,
	}

	for _, item := range cart.Items {
		if !item.Available() {
			q.Unavailable = append(q.Unavailable, item)
			continue
		}
		unit := DiscountedPrice(item.Product, now)
		lineTotal := decimal.NewFromInt(unit * int64(item.Quantity))
		q.Available = append(q.Available, QuotedLine{Item: item, UnitPrice: unit, LineTotal: lineTotal})
		q.Subtotal = q.Subtotal.Add(lineTotal)
	}

	if coupon != nil {
		ok, reason := ValidateCoupon(coupon, hasUsedCoupon, q.Subtotal, now)
		if ok {
			q.CouponDiscount = CouponDiscount(coupon, q.Subtotal)
		} else {
			q.CouponDropped = reason
		}
	}

	discounted := q.Subtotal.Sub(q.CouponDiscount)
	if discounted.LessThan(rates.FreeThreshold) {
		q.ShippingCharge = rates.FlatFee
	} else {
		q.ShippingCharge = decimal.Zero
	}
	q.TotalAmount = discounted.Add(q.ShippingCharge)
	return q
}
