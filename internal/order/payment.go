package order

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/model"
	"storefront/internal/notify"
	"storefront/internal/store"
)

type VerifyInput struct {
	GatewayOrderID string `json:"razorpay_order_id" binding:"required"`
	PaymentID      string `json:"razorpay_payment_id" binding:"required"`
	Signature      string `json:"razorpay_signature" binding:"required"`
}

// VerifyPayment 校验网关签名并确认订单。
// 已支付订单重复校验直接返回；签名失败只标记 payment_status=failed，
// 库存留给过期清理任务回收。
func (s *Service) VerifyPayment(ctx context.Context, in VerifyInput) (*model.Order, error) {
	o, err := s.orders.FindByGatewayOrderID(ctx, in.GatewayOrderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("order")
	}
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	log := s.logger.With("order_no", o.OrderNo)

	if o.PaymentStatus == model.PaymentPaid {
		s.metrics.PaymentsVerified.WithLabelValues("duplicate").Inc()
		return o, nil
	}
	if o.OrderStatus == model.OrderCancelled {
		return nil, conflict("order has been cancelled")
	}

	if !s.gateway.VerifySignature(in.GatewayOrderID, in.PaymentID, in.Signature) {
		s.metrics.PaymentsVerified.WithLabelValues("failed").Inc()
		marked, err := s.orders.MarkPaymentFailed(ctx, o.ID)
		if err != nil {
			log.Error("mark payment failed", "err", err)
		}
		log.Warn("payment signature verification failed", "first_failure", marked)
		// 同一订单重复失败只通知一次
		if marked {
			o.PaymentStatus = model.PaymentFailed
			s.notifier.Notify(ctx, notify.KindPaymentFailed, o)
		}
		return nil, &Error{Kind: KindPaymentVerificationFailed, Message: "payment verification failed"}
	}

	ok, err := s.orders.MarkPaid(ctx, o.ID, in.PaymentID)
	if err != nil {
		return nil, fmt.Errorf("mark paid: %w", err)
	}
	if !ok {
		// 与并发校验或过期清理竞争失败，按最新状态返回
		cur, err := s.orders.FindByOrderNo(ctx, o.OrderNo)
		if err != nil {
			return nil, fmt.Errorf("reload order: %w", err)
		}
		if cur.PaymentStatus == model.PaymentPaid {
			s.metrics.PaymentsVerified.WithLabelValues("duplicate").Inc()
			return cur, nil
		}
		log.Error("payment captured for an order no longer pending, refund required",
			"order_status", cur.OrderStatus, "payment_id", in.PaymentID)
		return nil, conflict("order is no longer awaiting payment")
	}
	o.PaymentStatus = model.PaymentPaid
	o.OrderStatus = model.OrderProcessing
	o.GatewayPaymentID = in.PaymentID
	s.metrics.PaymentsVerified.WithLabelValues("paid").Inc()

	if o.CouponCode != "" {
		s.countCoupon(ctx, o)
	}

	log.Info("payment verified", "payment_id", in.PaymentID)
	s.notifier.Notify(ctx, notify.KindPaymentConfirmed, o)
	return o, nil
}

// countCoupon 每个订单最多计一次优惠券使用次数。
func (s *Service) countCoupon(ctx context.Context, o *model.Order) {
	claimed, err := s.orders.ClaimCoupon(ctx, o.ID)
	if err != nil {
		s.logger.Error("claim coupon", "order_no", o.OrderNo, "err", err)
		return
	}
	if !claimed {
		return
	}
	o.CouponCounted = true
	ok, err := s.coupons.IncrementUsage(ctx, o.CouponCode)
	if err != nil {
		s.logger.Error("increment coupon usage", "order_no", o.OrderNo, "coupon", o.CouponCode, "err", err)
		return
	}
	if !ok {
		// 已付款，不回滚订单；仅记录超额使用
		s.logger.Warn("coupon usage limit reached at payment time", "order_no", o.OrderNo, "coupon", o.CouponCode)
	}
}
