package store

import (
	"context"
	"time"

	"storefront/internal/model"

	"gorm.io/gorm"
)

type Orders struct {
	db *gorm.DB
}

func NewOrders(db *gorm.DB) *Orders {
	return &Orders{db: db}
}

func (s *Orders) Insert(ctx context.Context, o *model.Order) error {
	return s.db.WithContext(ctx).Create(o).Error
}

func (s *Orders) FindByOrderNo(ctx context.Context, orderNo string) (*model.Order, error) {
	var o model.Order
	if err := s.db.WithContext(ctx).Where("order_no = ?", orderNo).First(&o).Error; err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

func (s *Orders) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*model.Order, error) {
	var o model.Order
	if err := s.db.WithContext(ctx).Where("gateway_order_id = ?", gatewayOrderID).First(&o).Error; err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

// TransitionStatus 条件更新订单状态：仅当当前状态为 from 时改为 to。
// 返回 false 表示订单已被其他流程（支付校验 / 过期清理 / 管理员）抢先迁移。
func (s *Orders) TransitionStatus(ctx context.Context, id uint, from, to model.OrderStatus) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND order_status = ?", id, from).
		Updates(map[string]any{"order_status": to, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkPaid 支付成功：pending → processing / paid，失败过的支付可以重试成功。
func (s *Orders) MarkPaid(ctx context.Context, id uint, paymentID string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND order_status = ? AND payment_status IN ?", id, model.OrderPending,
			[]model.PaymentStatus{model.PaymentPending, model.PaymentFailed}).
		Updates(map[string]any{
			"payment_status":     model.PaymentPaid,
			"order_status":       model.OrderProcessing,
			"gateway_payment_id": paymentID,
			"updated_at":         time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkPaymentFailed 仅把仍在等待支付的订单标记为失败，order_status 不变。
func (s *Orders) MarkPaymentFailed(ctx context.Context, id uint) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND order_status = ? AND payment_status = ?", id, model.OrderPending, model.PaymentPending).
		Updates(map[string]any{"payment_status": model.PaymentFailed, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ClaimCoupon flips coupon_counted once; only the caller that wins may
// increment the coupon's usage counter.
func (s *Orders) ClaimCoupon(ctx context.Context, id uint) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND coupon_counted = ? AND coupon_code <> ''", id, false).
		UpdateColumn("coupon_counted", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SetTracking 写入物流信息并置为 shipped；已取消订单不可发货。
func (s *Orders) SetTracking(ctx context.Context, id uint, courier, number, url string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND order_status <> ?", id, model.OrderCancelled).
		Updates(map[string]any{
			"courier_name":    courier,
			"tracking_number": number,
			"tracking_url":    url,
			"order_status":    model.OrderShipped,
			"updated_at":      time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// FindExpiredPending 查找超过宽限期仍未支付的在线支付订单。
func (s *Orders) FindExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]model.Order, error) {
	var list []model.Order
	err := s.db.WithContext(ctx).
		Where("payment_method <> ? AND order_status = ? AND payment_status IN ? AND created_at < ?",
			model.PaymentCOD, model.OrderPending,
			[]model.PaymentStatus{model.PaymentPending, model.PaymentFailed}, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

type OrderFilter struct {
	OrderStatus   model.OrderStatus
	PaymentStatus model.PaymentStatus
	Skip          int
	Limit         int
}

func (s *Orders) List(ctx context.Context, f OrderFilter) ([]model.Order, int64, error) {
	q := s.db.WithContext(ctx).Model(&model.Order{})
	if f.OrderStatus != "" {
		q = q.Where("order_status = ?", f.OrderStatus)
	}
	if f.PaymentStatus != "" {
		q = q.Where("payment_status = ?", f.PaymentStatus)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var list []model.Order
	err := q.Order("created_at DESC").Offset(f.Skip).Limit(limit).Find(&list).Error
	return list, total, err
}

type OrderStats struct {
	Total      int64
	Pending    int64
	Processing int64
	Revenue    int64
}

// Stats 汇总仪表盘数据；收入统计已支付与货到付款且未取消的订单。
func (s *Orders) Stats(ctx context.Context) (OrderStats, error) {
	var st OrderStats
	db := s.db.WithContext(ctx).Model(&model.Order{})
	if err := db.Count(&st.Total).Error; err != nil {
		return st, err
	}
	if err := s.db.WithContext(ctx).Model(&model.Order{}).
		Where("order_status = ?", model.OrderPending).Count(&st.Pending).Error; err != nil {
		return st, err
	}
	if err := s.db.WithContext(ctx).Model(&model.Order{}).
		Where("order_status = ?", model.OrderProcessing).Count(&st.Processing).Error; err != nil {
		return st, err
	}
	err := s.db.WithContext(ctx).Model(&model.Order{}).
		Where("payment_status IN ? AND order_status <> ?",
			[]model.PaymentStatus{model.PaymentPaid, model.PaymentCODPending}, model.OrderCancelled).
		Select("COALESCE(SUM(total), 0)").Scan(&st.Revenue).Error
	return st, err
}

func (s *Orders) Recent(ctx context.Context, n int) ([]model.Order, error) {
	var list []model.Order
	err := s.db.WithContext(ctx).Order("created_at DESC").Limit(n).Find(&list).Error
	return list, err
}
