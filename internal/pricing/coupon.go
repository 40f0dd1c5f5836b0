package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/azrion/storefront/internal/model"
)

// ValidateCoupon runs the ordered eligibility checks for a coupon against a
// cart total. hasUsed is whether this user already redeemed the coupon.
// The first failing check wins; the reason string is displayable verbatim.
func ValidateCoupon(c *model.Coupon, hasUsed bool, cartTotal decimal.Decimal, now time.Time) (bool, string) {
	if !c.IsActive {
		return false, "This coupon is not active."
	}
	if now.Before(c.ValidFrom) {
		return false, "This coupon is not yet valid."
	}
	if now.After(c.ValidUntil) {
		return false, "This coupon has expired."
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return false, "This coupon has reached its usage limit."
	}
	if cartTotal.LessThan(c.MinimumAmount) {
		return false, fmt.Sprintf("Minimum order amount of ₹%s required.", c.MinimumAmount.StringFixed(2))
	}
	if hasUsed {
		return false, "You have already used this coupon."
	}
	return true, "Coupon is valid."
}

// CouponDiscount computes the discount a coupon yields on a cart total.
// Percentage discounts are capped by MaximumDiscount when set; no coupon ever
// discounts more than the total it applies to.
func CouponDiscount(c *model.Coupon, cartTotal decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	if c.DiscountType == model.DiscountPercentage {
		discount = cartTotal.Mul(c.DiscountValue).Div(hundred)
		if c.MaximumDiscount != nil && discount.GreaterThan(*c.MaximumDiscount) {
			discount = *c.MaximumDiscount
		}
	} else {
		discount = c.DiscountValue
	}
	if discount.GreaterThan(cartTotal) {
		discount = cartTotal
	}
	return discount
}
