package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/azrion/storefront/internal/model"
	"github.com/azrion/storefront/internal/repository"
)

// fakeTx satisfies pgx.Tx for services that orchestrate transactional repo
// calls; the mocks apply their writes immediately, so commit and rollback are
// no-ops here.
type fakeTx struct{}

func (fakeTx) Begin(context.Context) (pgx.Tx, error) { return fakeTx{}, nil }
func (fakeTx) Commit(context.Context) error          { return nil }
func (fakeTx) Rollback(context.Context) error        { return nil }
func (fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (fakeTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (fakeTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (fakeTx) Conn() *pgx.Conn                                         { return nil }

// --- users ---

type mockUserRepo struct {
	byEmail map[string]*model.User
	byID    map[uuid.UUID]*model.User
	byCode  map[string]*model.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		byEmail: make(map[string]*model.User),
		byID:    make(map[uuid.UUID]*model.User),
		byCode:  make(map[string]*model.User),
	}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	m.byEmail[user.Email] = user
	m.byID[user.ID] = user
	m.byCode[user.ReferralCode] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	return m.byID[id], nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	return m.byEmail[email], nil
}

func (m *mockUserRepo) GetByReferralCode(_ context.Context, code string) (*model.User, error) {
	return m.byCode[code], nil
}

// --- products / variants ---

type mockProductRepo struct {
	products map[uuid.UUID]*model.Product
	variants map[uuid.UUID]*model.Variant
}

func newMockProductRepo() *mockProductRepo {
	return &mockProductRepo{
		products: make(map[uuid.UUID]*model.Product),
		variants: make(map[uuid.UUID]*model.Variant),
	}
}

func (m *mockProductRepo) Create(_ context.Context, p *model.Product) error {
	p.ID = uuid.New()
	m.products[p.ID] = p
	return nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	return m.products[id], nil
}

func (m *mockProductRepo) List(_ context.Context, limit, offset int, _, _, _ string) ([]model.Product, int, error) {
	var out []model.Product
	for _, p := range m.products {
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (m *mockProductRepo) Update(_ context.Context, p *model.Product) error {
	m.products[p.ID] = p
	return nil
}

func (m *mockProductRepo) SoftDelete(_ context.Context, id uuid.UUID) error {
	if p, ok := m.products[id]; ok {
		p.IsDeleted = true
		return nil
	}
	return pgx.ErrNoRows
}

func (m *mockProductRepo) CreateVariant(_ context.Context, v *model.Variant) error {
	v.ID = uuid.New()
	m.variants[v.ID] = v
	return nil
}

func (m *mockProductRepo) GetVariant(_ context.Context, id uuid.UUID) (*model.Variant, error) {
	return m.variants[id], nil
}

func (m *mockProductRepo) UpdateVariant(_ context.Context, v *model.Variant) error {
	m.variants[v.ID] = v
	return nil
}

func (m *mockProductRepo) AdjustStock(_ context.Context, id uuid.UUID, delta int) error {
	v, ok := m.variants[id]
	if !ok || v.StockQuantity+delta < 0 {
		return repository.ErrConflict
	}
	v.StockQuantity += delta
	return nil
}

func (m *mockProductRepo) DecrementStock(_ context.Context, _ pgx.Tx, id uuid.UUID, qty int) error {
	v, ok := m.variants[id]
	if !ok || v.StockQuantity < qty {
		return repository.ErrInsufficientStock
	}
	v.StockQuantity -= qty
	return nil
}

func (m *mockProductRepo) RestoreStock(_ context.Context, _ pgx.Tx, id uuid.UUID, qty int) error {
	if v, ok := m.variants[id]; ok {
		v.StockQuantity += qty
	}
	return nil
}

// --- categories ---

type mockCategoryRepo struct {
	categories map[uuid.UUID]*model.Category
	offers     map[uuid.UUID]*model.CategoryOffer
}

func newMockCategoryRepo() *mockCategoryRepo {
	return &mockCategoryRepo{
		categories: make(map[uuid.UUID]*model.Category),
		offers:     make(map[uuid.UUID]*model.CategoryOffer),
	}
}

func (m *mockCategoryRepo) Create(_ context.Context, c *model.Category) error {
	c.ID = uuid.New()
	m.categories[c.ID] = c
	return nil
}

func (m *mockCategoryRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Category, error) {
	return m.categories[id], nil
}

func (m *mockCategoryRepo) List(_ context.Context, includeDeleted bool) ([]model.Category, error) {
	var out []model.Category
	for _, c := range m.categories {
		if c.IsDeleted && !includeDeleted {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (m *mockCategoryRepo) Update(_ context.Context, c *model.Category) error {
	m.categories[c.ID] = c
	return nil
}

func (m *mockCategoryRepo) SoftDelete(_ context.Context, id uuid.UUID) error {
	if c, ok := m.categories[id]; ok {
		c.IsDeleted = true
		return nil
	}
	return pgx.ErrNoRows
}

func (m *mockCategoryRepo) CreateOffer(_ context.Context, o *model.CategoryOffer) error {
	o.ID = uuid.New()
	m.offers[o.ID] = o
	return nil
}

func (m *mockCategoryRepo) UpdateOffer(_ context.Context, o *model.CategoryOffer) error {
	m.offers[o.ID] = o
	return nil
}

func (m *mockCategoryRepo) GetOffer(_ context.Context, id uuid.UUID) (*model.CategoryOffer, error) {
	return m.offers[id], nil
}

func (m *mockCategoryRepo) ListOffers(_ context.Context, categoryID uuid.UUID) ([]model.CategoryOffer, error) {
	var out []model.CategoryOffer
	for _, o := range m.offers {
		if o.CategoryID == categoryID {
			out = append(out, *o)
		}
	}
	return out, nil
}

// --- coupons ---

type mockCouponRepo struct {
	byID   map[uuid.UUID]*model.Coupon
	byCode map[string]*model.Coupon
	usages map[uuid.UUID]map[uuid.UUID]bool // couponID -> userID
}

func newMockCouponRepo() *mockCouponRepo {
	return &mockCouponRepo{
		byID:   make(map[uuid.UUID]*model.Coupon),
		byCode: make(map[string]*model.Coupon),
		usages: make(map[uuid.UUID]map[uuid.UUID]bool),
	}
}

func (m *mockCouponRepo) add(c *model.Coupon) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	m.byID[c.ID] = c
	m.byCode[c.Code] = c
}

func (m *mockCouponRepo) Create(_ context.Context, c *model.Coupon) error {
	m.add(c)
	return nil
}

func (m *mockCouponRepo) Update(_ context.Context, c *model.Coupon) error {
	m.add(c)
	return nil
}

func (m *mockCouponRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Coupon, error) {
	return m.byID[id], nil
}

func (m *mockCouponRepo) GetByCode(_ context.Context, code string) (*model.Coupon, error) {
	return m.byCode[code], nil
}

func (m *mockCouponRepo) List(_ context.Context, _, _ int) ([]model.Coupon, int, error) {
	var out []model.Coupon
	for _, c := range m.byID {
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *mockCouponRepo) HasUsed(_ context.Context, userID, couponID uuid.UUID) (bool, error) {
	return m.usages[couponID][userID], nil
}

func (m *mockCouponRepo) Redeem(_ context.Context, _ pgx.Tx, couponID, userID, _ uuid.UUID) error {
	c, ok := m.byID[couponID]
	if !ok {
		return pgx.ErrNoRows
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return repository.ErrConflict
	}
	if m.usages[couponID][userID] {
		return repository.ErrCouponAlreadyUsed
	}
	c.UsedCount++
	if m.usages[couponID] == nil {
		m.usages[couponID] = make(map[uuid.UUID]bool)
	}
	m.usages[couponID][userID] = true
	return nil
}

func (m *mockCouponRepo) ListPublicLive(_ context.Context, userID uuid.UUID, cartTotal decimal.Decimal, now time.Time) ([]model.Coupon, error) {
	var out []model.Coupon
	for _, c := range m.byID {
		if c.Visibility != model.VisibilityPublic || !c.IsActive {
			continue
		}
		if now.Before(c.ValidFrom) || now.After(c.ValidUntil) {
			continue
		}
		if cartTotal.LessThan(c.MinimumAmount) || m.usages[c.ID][userID] {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (m *mockCouponRepo) ListReferralForUser(_ context.Context, _ uuid.UUID, _ time.Time) ([]model.Coupon, error) {
	return nil, nil
}

// --- carts ---

type mockCartRepo struct {
	carts    map[uuid.UUID]*model.Cart // by userID
	items    map[uuid.UUID]*model.CartItem
	products *mockProductRepo // joined onto items by GetWithItems
}

func newMockCartRepo(products *mockProductRepo) *mockCartRepo {
	return &mockCartRepo{
		carts:    make(map[uuid.UUID]*model.Cart),
		items:    make(map[uuid.UUID]*model.CartItem),
		products: products,
	}
}

func (m *mockCartRepo) GetOrCreate(_ context.Context, userID uuid.UUID) (*model.Cart, error) {
	if c, ok := m.carts[userID]; ok {
		return &model.Cart{ID: c.ID, UserID: c.UserID, AppliedCouponID: c.AppliedCouponID}, nil
	}
	c := &model.Cart{ID: uuid.New(), UserID: userID}
	m.carts[userID] = c
	return &model.Cart{ID: c.ID, UserID: c.UserID}, nil
}

func (m *mockCartRepo) GetWithItems(ctx context.Context, userID uuid.UUID) (*model.Cart, error) {
	cart, _ := m.GetOrCreate(ctx, userID)
	for _, item := range m.items {
		if item.CartID != cart.ID {
			continue
		}
		cp := *item
		cp.Product = m.products.products[item.ProductID]
		cp.Variant = m.products.variants[item.VariantID]
		cart.Items = append(cart.Items, cp)
	}
	return cart, nil
}

func (m *mockCartRepo) AddItem(_ context.Context, item *model.CartItem) error {
	for _, existing := range m.items {
		if existing.CartID == item.CartID && existing.ProductID == item.ProductID && existing.VariantID == item.VariantID {
			existing.Quantity += item.Quantity
			*item = *existing
			return nil
		}
	}
	item.ID = uuid.New()
	m.items[item.ID] = item
	return nil
}

func (m *mockCartRepo) UpdateItemQuantity(_ context.Context, itemID uuid.UUID, quantity int) error {
	if item, ok := m.items[itemID]; ok {
		item.Quantity = quantity
		return nil
	}
	return pgx.ErrNoRows
}

func (m *mockCartRepo) GetItem(_ context.Context, itemID uuid.UUID) (*model.CartItem, error) {
	return m.items[itemID], nil
}

func (m *mockCartRepo) DeleteItem(_ context.Context, itemID uuid.UUID) error {
	if _, ok := m.items[itemID]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.items, itemID)
	return nil
}

func (m *mockCartRepo) SetCoupon(_ context.Context, cartID uuid.UUID, couponID *uuid.UUID) error {
	for _, c := range m.carts {
		if c.ID == cartID {
			c.AppliedCouponID = couponID
		}
	}
	return nil
}

func (m *mockCartRepo) Clear(_ context.Context, _ pgx.Tx, cartID uuid.UUID) error {
	for id, item := range m.items {
		if item.CartID == cartID {
			delete(m.items, id)
		}
	}
	return m.SetCoupon(context.Background(), cartID, nil)
}

// --- orders ---

type mockOrderRepo struct {
	orders map[uuid.UUID]*model.Order
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[uuid.UUID]*model.Order)}
}

func (m *mockOrderRepo) BeginTx(context.Context) (pgx.Tx, error) { return fakeTx{}, nil }

func (m *mockOrderRepo) Create(_ context.Context, _ pgx.Tx, order *model.Order) error {
	order.ID = uuid.New()
	order.CreatedAt = time.Now()
	m.orders[order.ID] = order
	return nil
}

func (m *mockOrderRepo) CreateItems(_ context.Context, _ pgx.Tx, items []model.OrderItem) error {
	for i := range items {
		items[i].ID = uuid.New()
		items[i].Status = model.ItemStatusActive
		if o, ok := m.orders[items[i].OrderID]; ok {
			o.Items = append(o.Items, items[i])
		}
	}
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	cp.Items = append([]model.OrderItem(nil), o.Items...)
	return &cp, nil
}

func (m *mockOrderRepo) GetItemWithOrder(ctx context.Context, itemID uuid.UUID) (*model.OrderItem, *model.Order, error) {
	for _, o := range m.orders {
		for i := range o.Items {
			if o.Items[i].ID == itemID {
				cp, _ := m.GetByID(ctx, o.ID)
				for j := range cp.Items {
					if cp.Items[j].ID == itemID {
						return &cp.Items[j], cp, nil
					}
				}
			}
		}
	}
	return nil, nil, nil
}

func (m *mockOrderRepo) ListByUser(_ context.Context, userID uuid.UUID, _, _ int) ([]model.Order, int, error) {
	var out []model.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, len(out), nil
}

func (m *mockOrderRepo) List(_ context.Context, filter repository.OrderFilter, _, _ int) ([]model.Order, int, error) {
	var out []model.Order
	for _, o := range m.orders {
		if filter.Status == "" || o.Status == filter.Status {
			out = append(out, *o)
		}
	}
	return out, len(out), nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, _ pgx.Tx, orderID uuid.UUID, status model.OrderStatus) error {
	o, ok := m.orders[orderID]
	if !ok {
		return pgx.ErrNoRows
	}
	o.Status = status
	return nil
}

func (m *mockOrderRepo) UpdateItemStatus(_ context.Context, _ pgx.Tx, itemID uuid.UUID, status model.ItemStatus) error {
	for _, o := range m.orders {
		for i := range o.Items {
			if o.Items[i].ID == itemID {
				o.Items[i].Status = status
				return nil
			}
		}
	}
	return pgx.ErrNoRows
}

func (m *mockOrderRepo) SetGatewayOrder(_ context.Context, orderID uuid.UUID, gatewayOrderID string) error {
	o, ok := m.orders[orderID]
	if !ok {
		return pgx.ErrNoRows
	}
	o.GatewayOrderID = &gatewayOrderID
	return nil
}

func (m *mockOrderRepo) SetPaid(_ context.Context, _ pgx.Tx, orderID uuid.UUID, gatewayPayID string) error {
	o, ok := m.orders[orderID]
	if !ok || o.Status != model.OrderStatusPending {
		return repository.ErrConflict
	}
	o.GatewayPayID = &gatewayPayID
	o.Status = model.OrderStatusConfirmed
	return nil
}

// --- wallets ---

type mockWalletRepo struct {
	balances map[uuid.UUID]decimal.Decimal // by userID
	txs      []model.WalletTransaction
}

func newMockWalletRepo() *mockWalletRepo {
	return &mockWalletRepo{balances: make(map[uuid.UUID]decimal.Decimal)}
}

func (m *mockWalletRepo) GetOrCreate(_ context.Context, userID uuid.UUID) (*model.Wallet, error) {
	return &model.Wallet{ID: uuid.New(), UserID: userID, Balance: m.balances[userID]}, nil
}

func (m *mockWalletRepo) Credit(_ context.Context, _ pgx.Tx, userID uuid.UUID, amount decimal.Decimal, description string) error {
	m.balances[userID] = m.balances[userID].Add(amount)
	m.txs = append(m.txs, model.WalletTransaction{Type: model.TransactionCredit, Amount: amount, Description: description})
	return nil
}

func (m *mockWalletRepo) Debit(_ context.Context, _ pgx.Tx, userID uuid.UUID, amount decimal.Decimal, description string) error {
	if m.balances[userID].LessThan(amount) {
		return repository.ErrConflict
	}
	m.balances[userID] = m.balances[userID].Sub(amount)
	m.txs = append(m.txs, model.WalletTransaction{Type: model.TransactionDebit, Amount: amount, Description: description})
	return nil
}

func (m *mockWalletRepo) Transactions(_ context.Context, _ uuid.UUID, _, _ int) ([]model.WalletTransaction, int, error) {
	return m.txs, len(m.txs), nil
}

// --- returns ---

type mockReturnRepo struct {
	orderReturns map[uuid.UUID]*model.ReturnRequest
	itemReturns  map[uuid.UUID]*model.ItemReturnRequest
}

func newMockReturnRepo() *mockReturnRepo {
	return &mockReturnRepo{
		orderReturns: make(map[uuid.UUID]*model.ReturnRequest),
		itemReturns:  make(map[uuid.UUID]*model.ItemReturnRequest),
	}
}

func (m *mockReturnRepo) CreateOrderReturn(_ context.Context, req *model.ReturnRequest) error {
	for _, r := range m.orderReturns {
		if r.OrderID == req.OrderID {
			return repository.ErrConflict
		}
	}
	req.ID = uuid.New()
	req.Status = model.ReturnPending
	req.RequestedAt = time.Now()
	m.orderReturns[req.ID] = req
	return nil
}

func (m *mockReturnRepo) CreateItemReturn(_ context.Context, req *model.ItemReturnRequest) error {
	for _, r := range m.itemReturns {
		if r.OrderItemID == req.OrderItemID {
			return repository.ErrConflict
		}
	}
	req.ID = uuid.New()
	req.Status = model.ReturnPending
	req.RequestedAt = time.Now()
	m.itemReturns[req.ID] = req
	return nil
}

func (m *mockReturnRepo) OrderReturnExists(_ context.Context, orderID uuid.UUID) (bool, error) {
	for _, r := range m.orderReturns {
		if r.OrderID == orderID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockReturnRepo) ItemReturnExists(_ context.Context, orderItemID uuid.UUID) (bool, error) {
	for _, r := range m.itemReturns {
		if r.OrderItemID == orderItemID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockReturnRepo) GetOrderReturn(_ context.Context, id uuid.UUID) (*model.ReturnRequest, error) {
	return m.orderReturns[id], nil
}

func (m *mockReturnRepo) GetItemReturn(_ context.Context, id uuid.UUID) (*model.ItemReturnRequest, error) {
	return m.itemReturns[id], nil
}

func (m *mockReturnRepo) MarkOrderReturnProcessed(_ context.Context, _ pgx.Tx, id uuid.UUID, status model.ReturnStatus, notes string, adminID uuid.UUID) error {
	r, ok := m.orderReturns[id]
	if !ok || r.Status != model.ReturnPending {
		return repository.ErrConflict
	}
	now := time.Now()
	r.Status = status
	r.AdminNotes = notes
	r.ProcessedAt = &now
	r.ProcessedBy = &adminID
	return nil
}

func (m *mockReturnRepo) MarkItemReturnProcessed(_ context.Context, _ pgx.Tx, id uuid.UUID, status model.ReturnStatus, notes string, adminID uuid.UUID) error {
	r, ok := m.itemReturns[id]
	if !ok || r.Status != model.ReturnPending {
		return repository.ErrConflict
	}
	now := time.Now()
	r.Status = status
	r.AdminNotes = notes
	r.ProcessedAt = &now
	r.ProcessedBy = &adminID
	return nil
}

func (m *mockReturnRepo) ListOrderReturns(_ context.Context, _ model.ReturnStatus, _, _ int) ([]model.ReturnRequest, int, error) {
	var out []model.ReturnRequest
	for _, r := range m.orderReturns {
		out = append(out, *r)
	}
	return out, len(out), nil
}

func (m *mockReturnRepo) ListItemReturns(_ context.Context, _ model.ReturnStatus, _, _ int) ([]model.ItemReturnRequest, int, error) {
	var out []model.ItemReturnRequest
	for _, r := range m.itemReturns {
		out = append(out, *r)
	}
	return out, len(out), nil
}

// --- referrals ---

type mockReferralRepo struct {
	offer   *model.ReferralOffer
	rewards []model.ReferralReward
}

func newMockReferralRepo() *mockReferralRepo { return &mockReferralRepo{} }

func (m *mockReferralRepo) GetActiveOffer(context.Context) (*model.ReferralOffer, error) {
	return m.offer, nil
}

func (m *mockReferralRepo) CreateOffer(_ context.Context, offer *model.ReferralOffer) error {
	offer.ID = uuid.New()
	m.offer = offer
	return nil
}

func (m *mockReferralRepo) UpdateOffer(_ context.Context, offer *model.ReferralOffer) error {
	m.offer = offer
	return nil
}

func (m *mockReferralRepo) CountRewardsForReferrer(_ context.Context, referrerID uuid.UUID) (int, error) {
	count := 0
	for _, r := range m.rewards {
		if r.ReferrerID == referrerID {
			count++
		}
	}
	return count, nil
}

func (m *mockReferralRepo) CreateReward(_ context.Context, reward *model.ReferralReward) error {
	for _, r := range m.rewards {
		if r.ReferrerID == reward.ReferrerID && r.ReferredUserID == reward.ReferredUserID {
			return repository.ErrConflict
		}
	}
	reward.ID = uuid.New()
	m.rewards = append(m.rewards, *reward)
	return nil
}

func (m *mockReferralRepo) ListRewards(_ context.Context, referrerID uuid.UUID) ([]model.ReferralReward, error) {
	var out []model.ReferralReward
	for _, r := range m.rewards {
		if r.ReferrerID == referrerID {
			out = append(out, r)
		}
	}
	return out, nil
}
