package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azrion/storefront/internal/dto"
	"github.com/azrion/storefront/internal/model"
)

type fakeGateway struct {
	enabled     bool
	nextOrderID string
	createErr   error
	validSig    string
}

func (g *fakeGateway) Enabled() bool { return g.enabled }

func (g *fakeGateway) CreateOrder(context.Context, int64, string) (string, error) {
	return g.nextOrderID, g.createErr
}

func (g *fakeGateway) VerifySignature(_, _, signature string) bool {
	return signature == g.validSig
}

type checkoutFixture struct {
	products *mockProductRepo
	carts    *mockCartRepo
	coupons  *mockCouponRepo
	orders   *mockOrderRepo
	wallets  *mockWalletRepo
	gateway  *fakeGateway
	svc      *CheckoutService
}

func newCheckoutFixture() *checkoutFixture {
	f := &checkoutFixture{
		products: newMockProductRepo(),
		coupons:  newMockCouponRepo(),
		orders:   newMockOrderRepo(),
		wallets:  newMockWalletRepo(),
		gateway:  &fakeGateway{enabled: true, nextOrderID: "gw_order_1", validSig: "good-signature"},
	}
	f.carts = newMockCartRepo(f.products)
	f.svc = NewCheckoutService(
		f.orders, f.carts, f.products, f.coupons, f.wallets,
		f.gateway, nil, testShippingRates(), "key_test", "INR", testLogger(),
	)
	return f
}

func (f *checkoutFixture) addToCart(t *testing.T, userID uuid.UUID, product *model.Product, variant *model.Variant, qty int) {
	t.Helper()
	cart, err := f.carts.GetOrCreate(context.Background(), userID)
	require.NoError(t, err)
	require.NoError(t, f.carts.AddItem(context.Background(), &model.CartItem{
		CartID: cart.ID, ProductID: product.ID, VariantID: variant.ID, Quantity: qty,
	}))
}

func TestCheckoutService_PlaceOrder_EmptyCart(t *testing.T) {
	f := newCheckoutFixture()

	_, err := f.svc.PlaceOrder(context.Background(), uuid.New(), model.PaymentCOD)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckoutService_PlaceOrder_COD(t *testing.T) {
	f := newCheckoutFixture()
	product, variant := seedProduct(t, f.products, 600, 5)
	userID := uuid.New()
	f.addToCart(t, userID, product, variant, 2)

	resp, err := f.svc.PlaceOrder(context.Background(), userID, model.PaymentCOD)
	require.NoError(t, err)

	assert.Equal(t, model.OrderStatusPending, resp.Status)
	assert.True(t, resp.Subtotal.Equal(decimal.NewFromInt(1200)))
	assert.True(t, resp.ShippingCharge.IsZero())
	assert.True(t, resp.TotalAmount.Equal(decimal.NewFromInt(1200)))

	// stock leaves inventory at placement for COD
	assert.Equal(t, 3, variant.StockQuantity)

	cart, err := f.carts.GetWithItems(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestCheckoutService_PlaceOrder_Wallet(t *testing.T) {
	f := newCheckoutFixture()
	product, variant := seedProduct(t, f.products, 600, 5)
	userID := uuid.New()
	f.addToCart(t, userID, product, variant, 1)
	f.wallets.balances[userID] = decimal.NewFromInt(1000)

	resp, err := f.svc.PlaceOrder(context.Background(), userID, model.PaymentWallet)
	require.NoError(t, err)

	assert.Equal(t, model.OrderStatusConfirmed, resp.Status)
	assert.Equal(t, 4, variant.StockQuantity)
	assert.True(t, f.wallets.balances[userID].Equal(decimal.NewFromInt(400)))
}

func TestCheckoutService_PlaceOrder_WalletInsufficient(t *testing.T) {
	f := newCheckoutFixture()
	product, variant := seedProduct(t, f.products, 600, 5)
	userID := uuid.New()
	f.addToCart(t, userID, product, variant, 1)
	f.wallets.balances[userID] = decimal.NewFromInt(100)

	_, err := f.svc.PlaceOrder(context.Background(), userID, model.PaymentWallet)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Insufficient wallet balance.", verr.Reason)
	assert.True(t, f.wallets.balances[userID].Equal(decimal.NewFromInt(100)))
}

func TestCheckoutService_PlaceOrder_OnlineHoldsNoStock(t *testing.T) {
	f := newCheckoutFixture()
	product, variant := seedProduct(t, f.products, 600, 5)
	userID := uuid.New()
	f.addToCart(t, userID, product, variant, 2)

	resp, err := f.svc.PlaceOrder(context.Background(), userID, model.PaymentOnline)
	require.NoError(t, err)

	assert.Equal(t, model.OrderStatusPending, resp.Status)
	// stock is only decremented once the payment verifies
	assert.Equal(t, 5, variant.StockQuantity)
}

func TestCheckoutService_PlaceOrder_GatewayDisabled(t *testing.T) {
	f := newCheckoutFixture()
	f.gateway.enabled = false
	product, variant := seedProduct(t, f.products, 600, 5)
	userID := uuid.New()
	f.addToCart(t, userID, product, variant, 1)

	_, err := f.svc.PlaceOrder(context.Background(), userID, model.PaymentOnline)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Online payment is not available right now.", verr.Reason)
}

func TestCheckoutService_PlaceOrder_SkipsUnavailableLines(t *testing.T) {
	f := newCheckoutFixture()
	good, goodVariant := seedProduct(t, f.products, 600, 5)
	gone, goneVariant := seedProduct(t, f.products, 400, 5)
	gone.IsDeleted = true
	userID := uuid.New()
	f.addToCart(t, userID, good, goodVariant, 1)
	f.addToCart(t, userID, gone, goneVariant, 1)

	resp, err := f.svc.PlaceOrder(context.Background(), userID, model.PaymentCOD)
	require.NoError(t, err)

	// the order covers only the line that can still be bought
	require.Len(t, resp.Items, 1)
	assert.Equal(t, good.ID, resp.Items[0].ProductID)
	assert.True(t, resp.TotalAmount.Equal(decimal.NewFromInt(600)))
	assert.Equal(t, 4, goodVariant.StockQuantity)
	assert.Equal(t, 5, goneVariant.StockQuantity)

	// the skipped line does not survive in the cart either
	cart, err := f.carts.GetWithItems(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestCheckoutService_PlaceOrder_NothingAvailable(t *testing.T) {
	f := newCheckoutFixture()
	product, variant := seedProduct(t, f.products, 600, 2)
	userID := uuid.New()
	f.addToCart(t, userID, product, variant, 2)

	// stock drains between viewing the cart and placing the order
	variant.StockQuantity = 1

	_, err := f.svc.PlaceOrder(context.Background(), userID, model.PaymentCOD)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "No available items in cart.", verr.Reason)
}

func TestCheckoutService_PlaceOrder_WithCoupon(t *testing.T) {
	f := newCheckoutFixture()
	product, variant := seedProduct(t, f.products, 600, 5)
	userID := uuid.New()
	f.addToCart(t, userID, product, variant, 1)

	coupon := &model.Coupon{
		Code: "SAVE10", DiscountType: model.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(10),
		IsActive:  true, Visibility: model.VisibilityPublic,
		ValidFrom: time.Now().Add(-time.Hour), ValidUntil: time.Now().Add(time.Hour),
	}
	f.coupons.add(coupon)
	cart, err := f.carts.GetOrCreate(context.Background(), userID)
	require.NoError(t, err)
	require.NoError(t, f.carts.SetCoupon(context.Background(), cart.ID, &coupon.ID))

	resp, err := f.svc.PlaceOrder(context.Background(), userID, model.PaymentCOD)
	require.NoError(t, err)

	assert.True(t, resp.CouponDiscount.Equal(decimal.NewFromInt(60)))
	assert.True(t, resp.TotalAmount.Equal(decimal.NewFromInt(540)))
	assert.Equal(t, 1, coupon.UsedCount)

	used, err := f.coupons.HasUsed(context.Background(), userID, coupon.ID)
	require.NoError(t, err)
	assert.True(t, used)
}

func TestCheckoutService_PlaceOrder_DeadCouponDetached(t *testing.T) {
	f := newCheckoutFixture()
	product, variant := seedProduct(t, f.products, 600, 5)
	userID := uuid.New()
	f.addToCart(t, userID, product, variant, 1)

	coupon := &model.Coupon{
		Code: "GONE", DiscountType: model.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(10),
		IsActive:  true, Visibility: model.VisibilityPublic,
		ValidFrom: time.Now().Add(-2 * time.Hour), ValidUntil: time.Now().Add(-time.Hour),
	}
	f.coupons.add(coupon)
	cart, err := f.carts.GetOrCreate(context.Background(), userID)
	require.NoError(t, err)
	require.NoError(t, f.carts.SetCoupon(context.Background(), cart.ID, &coupon.ID))

	_, err = f.svc.PlaceOrder(context.Background(), userID, model.PaymentCOD)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "This coupon has expired.", verr.Reason)
	assert.Nil(t, f.carts.carts[userID].AppliedCouponID)
}

func TestCheckoutService_CreatePayment(t *testing.T) {
	f := newCheckoutFixture()
	product, variant := seedProduct(t, f.products, 600, 5)
	userID := uuid.New()
	f.addToCart(t, userID, product, variant, 1)

	placed, err := f.svc.PlaceOrder(context.Background(), userID, model.PaymentOnline)
	require.NoError(t, err)

	resp, err := f.svc.CreatePayment(context.Background(), userID, placed.ID)
	require.NoError(t, err)
	assert.Equal(t, "gw_order_1", resp.GatewayOrderID)
	assert.Equal(t, "INR", resp.Currency)
	assert.Equal(t, "key_test", resp.KeyID)
	assert.True(t, resp.Amount.Equal(decimal.NewFromInt(600)))

	stored, err := f.orders.GetByID(context.Background(), placed.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.GatewayOrderID)
	assert.Equal(t, "gw_order_1", *stored.GatewayOrderID)
}

func TestCheckoutService_CreatePayment_NotOnline(t *testing.T) {
	f := newCheckoutFixture()
	product, variant := seedProduct(t, f.products, 600, 5)
	userID := uuid.New()
	f.addToCart(t, userID, product, variant, 1)

	placed, err := f.svc.PlaceOrder(context.Background(), userID, model.PaymentCOD)
	require.NoError(t, err)

	_, err = f.svc.CreatePayment(context.Background(), userID, placed.ID)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "This order is not awaiting payment.", verr.Reason)
}

func TestCheckoutService_CreatePayment_WrongUser(t *testing.T) {
	f := newCheckoutFixture()
	product, variant := seedProduct(t, f.products, 600, 5)
	userID := uuid.New()
	f.addToCart(t, userID, product, variant, 1)

	placed, err := f.svc.PlaceOrder(context.Background(), userID, model.PaymentOnline)
	require.NoError(t, err)

	_, err = f.svc.CreatePayment(context.Background(), uuid.New(), placed.ID)
	assert.ErrorIs(t, err, ErrOrderAccessDenied)
}

func TestCheckoutService_VerifyPayment(t *testing.T) {
	f := newCheckoutFixture()
	product, variant := seedProduct(t, f.products, 600, 5)
	userID := uuid.New()
	f.addToCart(t, userID, product, variant, 2)

	placed, err := f.svc.PlaceOrder(context.Background(), userID, model.PaymentOnline)
	require.NoError(t, err)
	_, err = f.svc.CreatePayment(context.Background(), userID, placed.ID)
	require.NoError(t, err)
	require.Equal(t, 5, variant.StockQuantity)

	resp, err := f.svc.VerifyPayment(context.Background(), userID, placed.ID, dto.VerifyPaymentRequest{
		GatewayOrderID: "gw_order_1", GatewayPayID: "gw_pay_1", Signature: "good-signature",
	})
	require.NoError(t, err)

	assert.Equal(t, model.OrderStatusConfirmed, resp.Status)
	assert.Equal(t, 3, variant.StockQuantity)

	stored, err := f.orders.GetByID(context.Background(), placed.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.GatewayPayID)
	assert.Equal(t, "gw_pay_1", *stored.GatewayPayID)
}

func TestCheckoutService_VerifyPayment_BadSignature(t *testing.T) {
	f := newCheckoutFixture()
	product, variant := seedProduct(t, f.products, 600, 5)
	userID := uuid.New()
	f.addToCart(t, userID, product, variant, 1)

	placed, err := f.svc.PlaceOrder(context.Background(), userID, model.PaymentOnline)
	require.NoError(t, err)
	_, err = f.svc.CreatePayment(context.Background(), userID, placed.ID)
	require.NoError(t, err)

	_, err = f.svc.VerifyPayment(context.Background(), userID, placed.ID, dto.VerifyPaymentRequest{
		GatewayOrderID: "gw_order_1", GatewayPayID: "gw_pay_1", Signature: "forged",
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Payment verification failed.", verr.Reason)

	// nothing changes on a failed verification
	assert.Equal(t, 5, variant.StockQuantity)
	stored, err := f.orders.GetByID(context.Background(), placed.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, stored.Status)
}

func TestCheckoutService_VerifyPayment_WrongGatewayOrder(t *testing.T) {
	f := newCheckoutFixture()
	product, variant := seedProduct(t, f.products, 600, 5)
	userID := uuid.New()
	f.addToCart(t, userID, product, variant, 1)

	placed, err := f.svc.PlaceOrder(context.Background(), userID, model.PaymentOnline)
	require.NoError(t, err)
	_, err = f.svc.CreatePayment(context.Background(), userID, placed.ID)
	require.NoError(t, err)

	_, err = f.svc.VerifyPayment(context.Background(), userID, placed.ID, dto.VerifyPaymentRequest{
		GatewayOrderID: "gw_order_other", GatewayPayID: "gw_pay_1", Signature: "good-signature",
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Payment verification failed.", verr.Reason)
}

func TestCheckoutService_VerifyPayment_AlreadyConfirmed(t *testing.T) {
	f := newCheckoutFixture()
	product, variant := seedProduct(t, f.products, 600, 5)
	userID := uuid.New()
	f.addToCart(t, userID, product, variant, 1)

	placed, err := f.svc.PlaceOrder(context.Background(), userID, model.PaymentOnline)
	require.NoError(t, err)
	_, err = f.svc.CreatePayment(context.Background(), userID, placed.ID)
	require.NoError(t, err)

	req := dto.VerifyPaymentRequest{
		GatewayOrderID: "gw_order_1", GatewayPayID: "gw_pay_1", Signature: "good-signature",
	}
	_, err = f.svc.VerifyPayment(context.Background(), userID, placed.ID, req)
	require.NoError(t, err)

	_, err = f.svc.VerifyPayment(context.Background(), userID, placed.ID, req)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "This order is not awaiting payment.", verr.Reason)
}
