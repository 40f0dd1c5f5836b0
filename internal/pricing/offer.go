// Package pricing holds the pure pricing rules: offer resolution, coupon
// validation and discount calculation, and cart quoting. Nothing here touches
// storage; callers load the data and persist the outcome.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/azrion/storefront/internal/model"
)

var hundred = decimal.NewFromInt(100)

// BestOffer resolves the discount percentage for a product at the given
// instant: the greater of the product's own flat offer and the best live
// category offer. Product and category offers never stack.
func BestOffer(p *model.Product, now time.Time) decimal.Decimal {
	best := p.ProductOffer
	if p.Category != nil && p.Category.IsDeleted {
		// a soft-deleted category contributes no live offers
		return best
	}
	for i := range p.CategoryOffers {
		o := &p.CategoryOffers[i]
		if o.Live(now) && o.DiscountPercentage.GreaterThan(best) {
			best = o.DiscountPercentage
		}
	}
	return best
}

// DiscountedPrice applies the best offer to the product's whole-rupee price.
// The discount amount truncates toward zero, so the result never loses more
// than the exact percentage.
func DiscountedPrice(p *model.Product, now time.Time) int64 {
	best := BestOffer(p, now)
	if !best.IsPositive() {
		return p.Price
	}
	discount := decimal.NewFromInt(p.Price).Mul(best).Div(hundred).Truncate(0)
	return p.Price - discount.IntPart()
}

// OfferSource describes which offer won for display purposes.
type OfferSource struct {
	Type       string // "product", "category" or "none"
	Percentage decimal.Decimal
	OfferName  string // set for category offers
}

// ResolveOffer reports which offer DiscountedPrice would apply.
func ResolveOffer(p *model.Product, now time.Time) OfferSource {
	var bestCategory *model.CategoryOffer
	if p.Category == nil || !p.Category.IsDeleted {
		for i := range p.CategoryOffers {
			o := &p.CategoryOffers[i]
			if !o.Live(now) {
				continue
			}
			if bestCategory == nil || o.DiscountPercentage.GreaterThan(bestCategory.DiscountPercentage) {
				bestCategory = o
			}
		}
	}

	if bestCategory != nil && bestCategory.DiscountPercentage.GreaterThan(p.ProductOffer) {
		return OfferSource{Type: "category", Percentage: bestCategory.DiscountPercentage, OfferName: bestCategory.Name}
	}
	if p.ProductOffer.IsPositive() {
		return OfferSource{Type: "product", Percentage: p.ProductOffer}
	}
	return OfferSource{Type: "none", Percentage: decimal.Zero}
}
