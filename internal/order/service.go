// Package order manages the order lifecycle: creation with stock
// reservation, payment verification, the expiry sweep and admin status
// transitions.
package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"storefront/internal/coupon"
	"storefront/internal/metrics"
	"storefront/internal/model"
	"storefront/internal/notify"
	"storefront/internal/shipping"
	"storefront/internal/store"

	"github.com/google/uuid"
)

type ProductStore interface {
	FindByID(ctx context.Context, id uint) (*model.Product, error)
	DecrementStock(ctx context.Context, id uint, qty int64) (bool, error)
	IncrementStock(ctx context.Context, id uint, qty int64) error
}

type OrderStore interface {
	Insert(ctx context.Context, o *model.Order) error
	FindByOrderNo(ctx context.Context, orderNo string) (*model.Order, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*model.Order, error)
	TransitionStatus(ctx context.Context, id uint, from, to model.OrderStatus) (bool, error)
	MarkPaid(ctx context.Context, id uint, paymentID string) (bool, error)
	MarkPaymentFailed(ctx context.Context, id uint) (bool, error)
	ClaimCoupon(ctx context.Context, id uint) (bool, error)
	SetTracking(ctx context.Context, id uint, courier, number, url string) (bool, error)
	FindExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]model.Order, error)
}

type CouponStore interface {
	FindByCode(ctx context.Context, code string) (*model.Coupon, error)
	IncrementUsage(ctx context.Context, code string) (bool, error)
	DecrementUsage(ctx context.Context, code string) error
}

type Gateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (string, error)
	VerifySignature(gatewayOrderID, paymentID, signature string) bool
}

type Notifier interface {
	Notify(ctx context.Context, kind notify.Kind, o *model.Order)
}

type ActivityLog interface {
	RecordActivity(ctx context.Context, a *model.Activity) error
}

type Deps struct {
	Products ProductStore
	Orders   OrderStore
	Coupons  CouponStore
	Gateway  Gateway
	Shipping shipping.Provider
	Notifier Notifier
	Activity ActivityLog
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

type Config struct {
	Currency    string
	GraceWindow time.Duration // 在线支付订单的保留时长，超时由清理任务取消
	SweepBatch  int
}

type Service struct {
	products ProductStore
	orders   OrderStore
	coupons  CouponStore
	gateway  Gateway
	shipping shipping.Provider
	notifier Notifier
	activity ActivityLog
	metrics  *metrics.Metrics
	logger   *slog.Logger
	cfg      Config

	now func() time.Time
}

func NewService(d Deps, cfg Config) *Service {
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	if cfg.GraceWindow <= 0 {
		cfg.GraceWindow = 5 * time.Minute
	}
	if cfg.SweepBatch <= 0 {
		cfg.SweepBatch = 100
	}
	return &Service{
		products: d.Products,
		orders:   d.Orders,
		coupons:  d.Coupons,
		gateway:  d.Gateway,
		shipping: d.Shipping,
		notifier: d.Notifier,
		activity: d.Activity,
		metrics:  d.Metrics,
		logger:   d.Logger,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock 替换时间源，测试中用于模拟宽限期到期。
func (s *Service) SetClock(now func() time.Time) { s.now = now }

type LineItem struct {
	ProductID uint   `json:"product_id" binding:"required"`
	Quantity  int64  `json:"quantity" binding:"required,min=1"`
	Size      string `json:"size"`
}

type CreateInput struct {
	Items           []LineItem            `json:"items" binding:"required,min=1,dive"`
	ShippingAddress model.ShippingAddress `json:"shipping_address" binding:"required"`
	CouponCode      string                `json:"coupon_code"`
	PaymentMethod   model.PaymentMethod   `json:"payment_method" binding:"required"`
}

// Create 下单：校验商品与库存 → 计算小计 → 校验优惠券 → 运费报价 → 预占库存 →
// （在线支付）创建网关订单 → （货到付款）计入优惠券次数 → 落库 → 通知。
// 预占之后的任何失败都会显式回滚库存。
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Order, error) {
	if len(in.Items) == 0 {
		return nil, invalidRequest("order must contain at least one item")
	}
	if !in.PaymentMethod.Valid() {
		return nil, invalidRequest(fmt.Sprintf("unsupported payment method %q", in.PaymentMethod))
	}
	cod := in.PaymentMethod == model.PaymentCOD

	// 价格与库存均以服务端商品记录为准，忽略客户端传入的价格。
	items := make([]model.OrderItem, 0, len(in.Items))
	var subtotal int64
	for _, li := range in.Items {
		if li.Quantity <= 0 {
			return nil, invalidRequest("quantity must be > 0")
		}
		p, err := s.products.FindByID(ctx, li.ProductID)
		if errors.Is(err, store.ErrNotFound) || (err == nil && !p.IsActive) {
			return nil, notFound(fmt.Sprintf("product %d", li.ProductID))
		}
		if err != nil {
			return nil, fmt.Errorf("find product %d: %w", li.ProductID, err)
		}
		if p.Stock < li.Quantity {
			return nil, insufficient(p.ID, p.Name, p.Stock)
		}
		item := model.OrderItem{
			ProductID:   p.ID,
			Name:        p.Name,
			Size:        li.Size,
			Quantity:    li.Quantity,
			Price:       p.Price,
			SalePrice:   p.SalePrice,
			WeightGrams: p.WeightGrams,
		}
		if len(p.Images) > 0 {
			item.Image = p.Images[0]
		}
		items = append(items, item)
		subtotal += item.UnitPrice() * item.Quantity
	}

	code := model.NormalizeCode(in.CouponCode)
	var discount int64
	if code != "" {
		c, err := s.coupons.FindByCode(ctx, code)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("find coupon: %w", err)
		}
		discount, err = coupon.Evaluate(c, code, subtotal, s.now())
		if err != nil {
			return nil, fromCoupon(err)
		}
	}

	quote, err := s.quote(ctx, in.ShippingAddress, items, subtotal, cod)
	if err != nil {
		return nil, err
	}

	o := &model.Order{
		OrderNo:         newOrderNo(),
		Items:           items,
		ShippingAddress: in.ShippingAddress,
		Subtotal:        subtotal,
		CouponCode:      code,
		CouponDiscount:  discount,
		ShippingCost:    quote.Cost,
		CODFee:          quote.CODFee,
		PaymentMethod:   in.PaymentMethod,
		ShippingCarrier: quote.Carrier,
	}
	o.Total = o.ComputedTotal()
	log := s.logger.With("order_no", o.OrderNo)

	if err := s.reserve(ctx, items); err != nil {
		return nil, err
	}

	if cod {
		o.PaymentStatus = model.PaymentCODPending
		o.OrderStatus = model.OrderProcessing
		if code != "" {
			ok, err := s.coupons.IncrementUsage(ctx, code)
			if err != nil || !ok {
				s.release(ctx, o.OrderNo, items)
				if err != nil {
					return nil, fmt.Errorf("claim coupon: %w", err)
				}
				return nil, fromCoupon(coupon.Invalid(code, coupon.ReasonUsageExhausted))
			}
			o.CouponCounted = true
		}
	} else {
		gatewayOrderID, err := s.gateway.CreateOrder(ctx, o.Total, s.cfg.Currency, o.OrderNo)
		if err != nil {
			s.release(ctx, o.OrderNo, items)
			log.Warn("gateway order creation failed, stock released", "err", err)
			return nil, gatewayUnavailable("payment gateway unavailable, please retry", err)
		}
		o.GatewayOrderID = gatewayOrderID
		o.PaymentStatus = model.PaymentPending
		o.OrderStatus = model.OrderPending
	}

	now := s.now()
	o.CreatedAt, o.UpdatedAt = now, now
	if err := s.orders.Insert(ctx, o); err != nil {
		s.release(ctx, o.OrderNo, items)
		if o.CouponCounted {
			if derr := s.coupons.DecrementUsage(ctx, code); derr != nil {
				log.Error("coupon usage rollback failed", "coupon", code, "err", derr)
			}
		}
		return nil, fmt.Errorf("insert order: %w", err)
	}

	s.metrics.OrdersCreated.WithLabelValues(string(o.PaymentMethod)).Inc()
	log.Info("order created", "payment_method", o.PaymentMethod, "total", o.Total)
	if cod {
		s.notifier.Notify(ctx, notify.KindOrderConfirmed, o)
	} else {
		s.notifier.Notify(ctx, notify.KindPaymentPending, o)
	}
	return o, nil
}

// Get 按订单号查询。
func (s *Service) Get(ctx context.Context, orderNo string) (*model.Order, error) {
	o, err := s.orders.FindByOrderNo(ctx, orderNo)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("order")
	}
	return o, err
}

func (s *Service) quote(ctx context.Context, addr model.ShippingAddress, items []model.OrderItem, subtotal int64, cod bool) (shipping.Quote, error) {
	req := shipping.QuoteRequest{
		Country:  addr.Country,
		Pincode:  addr.Pincode,
		Subtotal: subtotal,
		COD:      cod,
		Items:    make([]shipping.Item, 0, len(items)),
	}
	for _, it := range items {
		req.Items = append(req.Items, shipping.Item{WeightGrams: it.WeightGrams, Quantity: it.Quantity})
	}
	q, err := s.shipping.Quote(ctx, req)
	switch {
	case errors.Is(err, shipping.ErrCODUnavailable):
		return shipping.Quote{}, invalidRequest(err.Error())
	case err != nil:
		return shipping.Quote{}, gatewayUnavailable("shipping rates unavailable, please retry", err)
	}
	return q, nil
}

// reserve 逐项条件扣减库存；任一项失败则回滚已扣减的项。
func (s *Service) reserve(ctx context.Context, items []model.OrderItem) error {
	for i, it := range items {
		ok, err := s.products.DecrementStock(ctx, it.ProductID, it.Quantity)
		if err == nil && ok {
			continue
		}
		s.release(ctx, "", items[:i])
		if err != nil {
			return fmt.Errorf("reserve product %d: %w", it.ProductID, err)
		}
		// 并发下单抢先扣减，重新读取当前库存用于提示
		var available int64
		if p, ferr := s.products.FindByID(ctx, it.ProductID); ferr == nil {
			available = p.Stock
		}
		return insufficient(it.ProductID, it.Name, available)
	}
	return nil
}

// release 归还库存。失败只能记日志：调用方已处于失败路径。
func (s *Service) release(ctx context.Context, orderNo string, items []model.OrderItem) {
	for _, it := range items {
		if err := s.products.IncrementStock(ctx, it.ProductID, it.Quantity); err != nil {
			s.logger.Error("restore stock failed", "order_no", orderNo, "product_id", it.ProductID, "quantity", it.Quantity, "err", err)
		}
	}
}

func (s *Service) record(ctx context.Context, actor, action string, o *model.Order, detail string) {
	a := &model.Activity{Actor: actor, Action: action, OrderNo: o.OrderNo, Detail: detail}
	if err := s.activity.RecordActivity(ctx, a); err != nil {
		s.logger.Warn("record activity failed", "order_no", o.OrderNo, "action", action, "err", err)
	}
}

func newOrderNo() string {
	return "ORD" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
