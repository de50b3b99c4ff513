package order_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"storefront/internal/metrics"
	"storefront/internal/model"
	"storefront/internal/notify"
	"storefront/internal/order"
	"storefront/internal/payment"
	"storefront/internal/shipping"
	"storefront/internal/store"
	"storefront/internal/store/storetest"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const secret = "rzp_test_secret"

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeGateway struct {
	mu     sync.Mutex
	fail   error
	calls  int
	verify *payment.Razorpay
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{verify: payment.NewRazorpay("rzp_test_key", secret, "")}
}

func (g *fakeGateway) CreateOrder(_ context.Context, amount int64, currency, receipt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail != nil {
		return "", g.fail
	}
	g.calls++
	return fmt.Sprintf("order_%s_%d", receipt, amount), nil
}

func (g *fakeGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return g.verify.VerifySignature(orderID, paymentID, signature)
}

type recNotifier struct {
	mu    sync.Mutex
	kinds map[string][]notify.Kind // order_no → kinds
}

func (n *recNotifier) Notify(_ context.Context, kind notify.Kind, o *model.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.kinds == nil {
		n.kinds = map[string][]notify.Kind{}
	}
	n.kinds[o.OrderNo] = append(n.kinds[o.OrderNo], kind)
}

func (n *recNotifier) count(orderNo string, kind notify.Kind) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, k := range n.kinds[orderNo] {
		if k == kind {
			c++
		}
	}
	return c
}

type env struct {
	db       *gorm.DB
	products *store.Products
	orders   *store.Orders
	coupons  *store.Coupons
	admins   *store.Admins
	gw       *fakeGateway
	notes    *recNotifier
	svc      *order.Service
	sweeper  *order.Sweeper

	mu  sync.Mutex
	now time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvDB(storetest.New(t))
}

func newEnvDB(db *gorm.DB) *env {
	e := &env{
		db:       db,
		products: store.NewProducts(db),
		orders:   store.NewOrders(db),
		coupons:  store.NewCoupons(db),
		admins:   store.NewAdmins(db),
		gw:       newFakeGateway(),
		notes:    &recNotifier{},
		now:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	e.svc = order.NewService(order.Deps{
		Products: e.products,
		Orders:   e.orders,
		Coupons:  e.coupons,
		Gateway:  e.gw,
		Shipping: shipping.TableRates{FreeAbove: 299900, FlatRate: 9900, InternationalRate: 250000, CODFee: 4900},
		Notifier: e.notes,
		Activity: e.admins,
		Metrics:  metrics.New(prometheus.NewRegistry()),
		Logger:   discard,
	}, order.Config{GraceWindow: 5 * time.Minute})
	e.svc.SetClock(e.clock)
	e.sweeper = order.NewSweeper(e.svc, nil, time.Minute)
	return e
}

func (e *env) clock() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

func (e *env) advance(d time.Duration) {
	e.mu.Lock()
	e.now = e.now.Add(d)
	e.mu.Unlock()
}

func (e *env) product(t *testing.T, price, stock int64) *model.Product {
	t.Helper()
	p := &model.Product{Name: "Air Max 90", Brand: "Nike", Price: price, Stock: stock, IsActive: true, Images: []string{"https://img.example/1.jpg"}}
	require.NoError(t, e.products.Create(context.Background(), p))
	return p
}

func (e *env) stock(t *testing.T, id uint) int64 {
	t.Helper()
	p, err := e.products.FindByID(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func (e *env) orderCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&model.Order{}).Count(&n).Error)
	return n
}

func address() model.ShippingAddress {
	return model.ShippingAddress{
		FullName: "Asha Rao", Email: "asha@example.com", Phone: "9876543210",
		AddressLine1: "12 MG Road", City: "Bengaluru", State: "KA", Pincode: "560001",
	}
}

func input(method model.PaymentMethod, items ...order.LineItem) order.CreateInput {
	return order.CreateInput{Items: items, ShippingAddress: address(), PaymentMethod: method}
}

func TestCreateCOD(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.product(t, 1000, 10)

	o, err := e.svc.Create(ctx, input(model.PaymentCOD, order.LineItem{ProductID: p.ID, Quantity: 2}))
	require.NoError(t, err)

	assert.Equal(t, int64(2000), o.Subtotal)
	assert.Equal(t, model.PaymentCODPending, o.PaymentStatus)
	assert.Equal(t, model.OrderProcessing, o.OrderStatus)
	assert.Equal(t, int64(9900), o.ShippingCost)
	assert.Equal(t, int64(4900), o.CODFee)
	assert.Equal(t, o.ComputedTotal(), o.Total)
	assert.Regexp(t, `^ORD[0-9A-F]{8}$`, o.OrderNo)
	assert.Equal(t, int64(8), e.stock(t, p.ID))
	assert.Zero(t, e.gw.calls)
	assert.Equal(t, 1, e.notes.count(o.OrderNo, notify.KindOrderConfirmed))

	stored, err := e.svc.Get(ctx, o.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, stored.ComputedTotal(), stored.Total)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, "https://img.example/1.jpg", stored.Items[0].Image)
}

func TestCreateUsesServerPrice(t *testing.T) {
	e := newEnv(t)
	sale := int64(800)
	p := &model.Product{Name: "Jordan 1", Price: 1000, SalePrice: &sale, Stock: 5, IsActive: true}
	require.NoError(t, e.products.Create(context.Background(), p))

	o, err := e.svc.Create(context.Background(), input(model.PaymentRazorpay, order.LineItem{ProductID: p.ID, Quantity: 3}))
	require.NoError(t, err)
	assert.Equal(t, int64(2400), o.Subtotal)
	assert.Equal(t, model.PaymentPending, o.PaymentStatus)
	assert.Equal(t, model.OrderPending, o.OrderStatus)
	assert.NotEmpty(t, o.GatewayOrderID)
	assert.Zero(t, o.CODFee)
	assert.Equal(t, 1, e.notes.count(o.OrderNo, notify.KindPaymentPending))
}

func TestCreateInsufficientStock(t *testing.T) {
	e := newEnv(t)
	p := e.product(t, 1000, 1)

	_, err := e.svc.Create(context.Background(), input(model.PaymentRazorpay, order.LineItem{ProductID: p.ID, Quantity: 2}))
	require.ErrorIs(t, err, order.ErrInsufficientStock)

	var oe *order.Error
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, int64(1), oe.Available)
	assert.Equal(t, p.ID, oe.ProductID)

	assert.Equal(t, int64(1), e.stock(t, p.ID))
	assert.Zero(t, e.orderCount(t))
	assert.Zero(t, e.gw.calls)
}

func TestCreateCouponBelowMinimum(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.product(t, 1000, 5)
	require.NoError(t, e.coupons.Create(ctx, &model.Coupon{Code: "flat500", DiscountType: model.DiscountFlat, DiscountValue: 500, MinCartValue: 3000, IsActive: true}))

	in := input(model.PaymentCOD, order.LineItem{ProductID: p.ID, Quantity: 2})
	in.CouponCode = "FLAT500"
	_, err := e.svc.Create(ctx, in)
	require.ErrorIs(t, err, order.ErrInvalidCoupon)
	assert.ErrorIs(t, err, &order.Error{Kind: order.KindInvalidCoupon, Reason: "below_minimum"})
	assert.Contains(t, err.Error(), "minimum cart value of 30.00 required")

	assert.Equal(t, int64(5), e.stock(t, p.ID))
	assert.Zero(t, e.orderCount(t))
}

func TestCreateRejectsUnknownAndInactiveProducts(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.Create(ctx, input(model.PaymentCOD, order.LineItem{ProductID: 999, Quantity: 1}))
	assert.ErrorIs(t, err, order.ErrNotFound)

	p := e.product(t, 1000, 5)
	_, err = e.products.Update(ctx, p.ID, map[string]any{"is_active": false})
	require.NoError(t, err)
	_, err = e.svc.Create(ctx, input(model.PaymentCOD, order.LineItem{ProductID: p.ID, Quantity: 1}))
	assert.ErrorIs(t, err, order.ErrNotFound)

	_, err = e.svc.Create(ctx, input("upi", order.LineItem{ProductID: p.ID, Quantity: 1}))
	assert.ErrorIs(t, err, order.ErrInvalidRequest)

	_, err = e.svc.Create(ctx, input(model.PaymentCOD))
	assert.ErrorIs(t, err, order.ErrInvalidRequest)
}

func TestCreateCODInternationalRejected(t *testing.T) {
	e := newEnv(t)
	p := e.product(t, 1000, 5)

	in := input(model.PaymentCOD, order.LineItem{ProductID: p.ID, Quantity: 1})
	in.ShippingAddress.Country = "United Arab Emirates"
	_, err := e.svc.Create(context.Background(), in)
	assert.ErrorIs(t, err, order.ErrInvalidRequest)
	assert.Equal(t, int64(5), e.stock(t, p.ID))
}

func TestCreateGatewayFailureRestoresStock(t *testing.T) {
	e := newEnv(t)
	p := e.product(t, 1000, 3)
	e.gw.fail = errors.New("connection refused")

	_, err := e.svc.Create(context.Background(), input(model.PaymentRazorpay, order.LineItem{ProductID: p.ID, Quantity: 2}))
	require.ErrorIs(t, err, order.ErrGatewayUnavailable)
	assert.NotContains(t, err.(*order.Error).Message, "connection refused")

	assert.Equal(t, int64(3), e.stock(t, p.ID))
	assert.Zero(t, e.orderCount(t))
}

// shortProducts 让指定商品的扣减失败，模拟校验之后被并发订单抢走库存。
type shortProducts struct {
	*store.Products
	shortID uint
}

func (s shortProducts) DecrementStock(ctx context.Context, id uint, qty int64) (bool, error) {
	if id == s.shortID {
		return false, nil
	}
	return s.Products.DecrementStock(ctx, id, qty)
}

func TestCreateRollsBackEarlierReservations(t *testing.T) {
	e := newEnv(t)
	a := e.product(t, 1000, 5)
	b := e.product(t, 2000, 5)

	svc := order.NewService(order.Deps{
		Products: shortProducts{Products: e.products, shortID: b.ID},
		Orders:   e.orders,
		Coupons:  e.coupons,
		Gateway:  e.gw,
		Shipping: shipping.TableRates{FlatRate: 100},
		Notifier: e.notes,
		Activity: e.admins,
		Metrics:  metrics.New(prometheus.NewRegistry()),
		Logger:   discard,
	}, order.Config{})

	_, err := svc.Create(context.Background(), input(model.PaymentCOD,
		order.LineItem{ProductID: a.ID, Quantity: 2},
		order.LineItem{ProductID: b.ID, Quantity: 1}))
	require.ErrorIs(t, err, order.ErrInsufficientStock)

	assert.Equal(t, int64(5), e.stock(t, a.ID))
	assert.Equal(t, int64(5), e.stock(t, b.ID))
	assert.Zero(t, e.orderCount(t))
}

func TestCreateCODCountsCouponOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.product(t, 100000, 10)
	maxUses := int64(1)
	require.NoError(t, e.coupons.Create(ctx, &model.Coupon{Code: "WELCOME10", DiscountType: model.DiscountPercentage, DiscountValue: 10, MaxUses: &maxUses, IsActive: true}))

	in := input(model.PaymentCOD, order.LineItem{ProductID: p.ID, Quantity: 1})
	in.CouponCode = " welcome10 "
	o, err := e.svc.Create(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "WELCOME10", o.CouponCode)
	assert.Equal(t, int64(10000), o.CouponDiscount)
	assert.Equal(t, o.ComputedTotal(), o.Total)

	c, err := e.coupons.FindByCode(ctx, "WELCOME10")
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.CurrentUses)

	_, err = e.svc.Create(ctx, in)
	assert.ErrorIs(t, err, &order.Error{Kind: order.KindInvalidCoupon, Reason: "usage_exhausted"})
	assert.Equal(t, int64(9), e.stock(t, p.ID))
}

func TestConcurrentCODNeverOversells(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.product(t, 1000, 5)
	maxUses := int64(3)
	require.NoError(t, e.coupons.Create(ctx, &model.Coupon{Code: "LIMITED", DiscountType: model.DiscountFlat, DiscountValue: 100, MaxUses: &maxUses, IsActive: true}))

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, withCoupon := 0, 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := input(model.PaymentCOD, order.LineItem{ProductID: p.ID, Quantity: 1})
			if i%2 == 0 {
				in.CouponCode = "LIMITED"
			}
			o, err := e.svc.Create(ctx, in)
			if err != nil {
				return
			}
			mu.Lock()
			ok++
			if o.CouponCode != "" {
				withCoupon++
			}
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, ok)
	assert.Zero(t, e.stock(t, p.ID))
	assert.Equal(t, int64(5), e.orderCount(t))

	c, err := e.coupons.FindByCode(ctx, "LIMITED")
	require.NoError(t, err)
	assert.LessOrEqual(t, c.CurrentUses, maxUses)
	assert.Equal(t, int64(withCoupon), c.CurrentUses)
}

func TestVerifyPaymentIdempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.product(t, 100000, 5)
	require.NoError(t, e.coupons.Create(ctx, &model.Coupon{Code: "SAVE10", DiscountType: model.DiscountPercentage, DiscountValue: 10, IsActive: true}))

	in := input(model.PaymentRazorpay, order.LineItem{ProductID: p.ID, Quantity: 1})
	in.CouponCode = "SAVE10"
	o, err := e.svc.Create(ctx, in)
	require.NoError(t, err)

	c, err := e.coupons.FindByCode(ctx, "SAVE10")
	require.NoError(t, err)
	assert.Zero(t, c.CurrentUses, "online orders count the coupon only after payment")

	vin := order.VerifyInput{GatewayOrderID: o.GatewayOrderID, PaymentID: "pay_1", Signature: payment.Sign(secret, o.GatewayOrderID, "pay_1")}
	paid, err := e.svc.VerifyPayment(ctx, vin)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPaid, paid.PaymentStatus)
	assert.Equal(t, model.OrderProcessing, paid.OrderStatus)

	again, err := e.svc.VerifyPayment(ctx, vin)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPaid, again.PaymentStatus)
	assert.Equal(t, "pay_1", again.GatewayPaymentID)

	c, err = e.coupons.FindByCode(ctx, "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.CurrentUses)
	assert.Equal(t, int64(4), e.stock(t, p.ID))
	assert.Equal(t, 1, e.notes.count(o.OrderNo, notify.KindPaymentConfirmed))
}

func TestVerifyPaymentTamperedSignature(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.product(t, 1000, 5)

	o, err := e.svc.Create(ctx, input(model.PaymentRazorpay, order.LineItem{ProductID: p.ID, Quantity: 2}))
	require.NoError(t, err)

	_, err = e.svc.VerifyPayment(ctx, order.VerifyInput{GatewayOrderID: o.GatewayOrderID, PaymentID: "pay_1", Signature: payment.Sign("wrong", o.GatewayOrderID, "pay_1")})
	require.ErrorIs(t, err, order.ErrPaymentVerificationFailed)

	stored, err := e.svc.Get(ctx, o.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentFailed, stored.PaymentStatus)
	assert.Equal(t, model.OrderPending, stored.OrderStatus)
	assert.Equal(t, 1, e.notes.count(o.OrderNo, notify.KindPaymentFailed))
	assert.Equal(t, int64(3), e.stock(t, p.ID), "stock stays reserved until the sweep")

	_, err = e.svc.VerifyPayment(ctx, order.VerifyInput{GatewayOrderID: o.GatewayOrderID, PaymentID: "pay_1", Signature: "00"})
	require.ErrorIs(t, err, order.ErrPaymentVerificationFailed)
	assert.Equal(t, 1, e.notes.count(o.OrderNo, notify.KindPaymentFailed), "repeated failures notify once")

	// 失败后可以重新支付
	_, err = e.svc.VerifyPayment(ctx, order.VerifyInput{GatewayOrderID: o.GatewayOrderID, PaymentID: "pay_2", Signature: payment.Sign(secret, o.GatewayOrderID, "pay_2")})
	require.NoError(t, err)

	// 支付失败且未重试的订单由清理任务回收
	o2, err := e.svc.Create(ctx, input(model.PaymentRazorpay, order.LineItem{ProductID: p.ID, Quantity: 1}))
	require.NoError(t, err)
	_, err = e.svc.VerifyPayment(ctx, order.VerifyInput{GatewayOrderID: o2.GatewayOrderID, PaymentID: "pay_3", Signature: "deadbeef"})
	require.Error(t, err)
	e.advance(6 * time.Minute)
	n, err := e.sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(3), e.stock(t, p.ID))
}

func TestVerifyPaymentUnknownAndCancelled(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.VerifyPayment(ctx, order.VerifyInput{GatewayOrderID: "order_missing", PaymentID: "pay", Signature: "sig"})
	assert.ErrorIs(t, err, order.ErrNotFound)

	p := e.product(t, 1000, 5)
	o, err := e.svc.Create(ctx, input(model.PaymentRazorpay, order.LineItem{ProductID: p.ID, Quantity: 1}))
	require.NoError(t, err)
	e.advance(10 * time.Minute)
	_, err = e.sweeper.RunOnce(ctx)
	require.NoError(t, err)

	_, err = e.svc.VerifyPayment(ctx, order.VerifyInput{GatewayOrderID: o.GatewayOrderID, PaymentID: "pay", Signature: payment.Sign(secret, o.GatewayOrderID, "pay")})
	assert.ErrorIs(t, err, order.ErrConflict)
	assert.Equal(t, int64(5), e.stock(t, p.ID))
}

func TestSweepCancelsExpiredOrders(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.product(t, 1000, 5)

	online, err := e.svc.Create(ctx, input(model.PaymentRazorpay, order.LineItem{ProductID: p.ID, Quantity: 2}))
	require.NoError(t, err)
	cod, err := e.svc.Create(ctx, input(model.PaymentCOD, order.LineItem{ProductID: p.ID, Quantity: 1}))
	require.NoError(t, err)
	assert.Equal(t, int64(2), e.stock(t, p.ID))

	e.advance(4 * time.Minute)
	n, err := e.sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "still inside the grace window")

	e.advance(2 * time.Minute)
	n, err = e.sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err := e.svc.Get(ctx, online.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, model.OrderCancelled, stored.OrderStatus)
	assert.Equal(t, int64(4), e.stock(t, p.ID))
	assert.Equal(t, 1, e.notes.count(online.OrderNo, notify.KindAutoCancelled))

	codStored, err := e.svc.Get(ctx, cod.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, model.OrderProcessing, codStored.OrderStatus)

	n, err = e.sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, int64(4), e.stock(t, p.ID))
	assert.Equal(t, 1, e.notes.count(online.OrderNo, notify.KindAutoCancelled))

	acts, err := e.admins.ListActivity(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, model.ActorSystem, acts[0].Actor)
	assert.Equal(t, online.OrderNo, acts[0].OrderNo)
}

func TestSweepAndVerifyRace(t *testing.T) {
	for i := 0; i < 10; i++ {
		e := newEnv(t)
		ctx := context.Background()
		p := e.product(t, 1000, 5)

		o, err := e.svc.Create(ctx, input(model.PaymentRazorpay, order.LineItem{ProductID: p.ID, Quantity: 2}))
		require.NoError(t, err)
		e.advance(6 * time.Minute)

		var wg sync.WaitGroup
		var verifyErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, verifyErr = e.svc.VerifyPayment(ctx, order.VerifyInput{GatewayOrderID: o.GatewayOrderID, PaymentID: "pay", Signature: payment.Sign(secret, o.GatewayOrderID, "pay")})
		}()
		go func() {
			defer wg.Done()
			_, _ = e.sweeper.RunOnce(ctx)
		}()
		wg.Wait()

		stored, err := e.svc.Get(ctx, o.OrderNo)
		require.NoError(t, err)
		if stored.OrderStatus == model.OrderCancelled {
			assert.ErrorIs(t, verifyErr, order.ErrConflict)
			assert.Equal(t, int64(5), e.stock(t, p.ID))
		} else {
			require.NoError(t, verifyErr)
			assert.Equal(t, model.PaymentPaid, stored.PaymentStatus)
			assert.Equal(t, int64(3), e.stock(t, p.ID))
		}
	}
}

func TestAdminUpdateStatus(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.product(t, 1000, 5)

	o, err := e.svc.Create(ctx, input(model.PaymentCOD, order.LineItem{ProductID: p.ID, Quantity: 2}))
	require.NoError(t, err)

	_, err = e.svc.UpdateStatus(ctx, o.OrderNo, "lost", "admin@example.com")
	assert.ErrorIs(t, err, order.ErrInvalidRequest)
	_, err = e.svc.UpdateStatus(ctx, "ORDMISSING", model.OrderShipped, "admin@example.com")
	assert.ErrorIs(t, err, order.ErrNotFound)

	// 非取消状态之间可以任意跳转
	got, err := e.svc.UpdateStatus(ctx, o.OrderNo, model.OrderDelivered, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.OrderDelivered, got.OrderStatus)
	assert.Equal(t, 1, e.notes.count(o.OrderNo, notify.KindDelivered))
	got, err = e.svc.UpdateStatus(ctx, o.OrderNo, model.OrderProcessing, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.OrderProcessing, got.OrderStatus)

	// 管理员取消归还库存
	got, err = e.svc.UpdateStatus(ctx, o.OrderNo, model.OrderCancelled, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.OrderCancelled, got.OrderStatus)
	assert.Equal(t, int64(5), e.stock(t, p.ID))
	assert.Equal(t, 1, e.notes.count(o.OrderNo, notify.KindManualCancelled))
	assert.Zero(t, e.notes.count(o.OrderNo, notify.KindAutoCancelled))

	// cancelled 为终态，重复取消不会再次归还库存
	_, err = e.svc.UpdateStatus(ctx, o.OrderNo, model.OrderCancelled, "admin@example.com")
	assert.ErrorIs(t, err, order.ErrConflict)
	_, err = e.svc.UpdateStatus(ctx, o.OrderNo, model.OrderProcessing, "admin@example.com")
	assert.ErrorIs(t, err, order.ErrConflict)
	assert.Equal(t, int64(5), e.stock(t, p.ID))

	acts, err := e.admins.ListActivity(ctx, 0, 10)
	require.NoError(t, err)
	assert.Len(t, acts, 3)
}

func TestAdminCancelThenSweepRestoresOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.product(t, 1000, 5)

	o, err := e.svc.Create(ctx, input(model.PaymentRazorpay, order.LineItem{ProductID: p.ID, Quantity: 3}))
	require.NoError(t, err)
	_, err = e.svc.UpdateStatus(ctx, o.OrderNo, model.OrderCancelled, "admin@example.com")
	require.NoError(t, err)

	e.advance(time.Hour)
	n, err := e.sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, int64(5), e.stock(t, p.ID))
}

func TestUpdateTracking(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.product(t, 1000, 5)

	o, err := e.svc.Create(ctx, input(model.PaymentCOD, order.LineItem{ProductID: p.ID, Quantity: 1}))
	require.NoError(t, err)

	_, err = e.svc.UpdateTracking(ctx, o.OrderNo, order.TrackingInput{CourierName: "DTDC"}, "admin@example.com")
	assert.ErrorIs(t, err, order.ErrInvalidRequest)

	got, err := e.svc.UpdateTracking(ctx, o.OrderNo, order.TrackingInput{CourierName: "DTDC", TrackingNumber: "D1234", TrackingURL: "https://track.example/D1234"}, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.OrderShipped, got.OrderStatus)
	assert.Equal(t, 1, e.notes.count(o.OrderNo, notify.KindShipped))

	stored, err := e.svc.Get(ctx, o.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, "D1234", stored.TrackingNumber)

	_, err = e.svc.UpdateStatus(ctx, o.OrderNo, model.OrderCancelled, "admin@example.com")
	require.NoError(t, err)
	_, err = e.svc.UpdateTracking(ctx, o.OrderNo, order.TrackingInput{CourierName: "DTDC", TrackingNumber: "D9"}, "admin@example.com")
	assert.ErrorIs(t, err, order.ErrConflict)
}
