package order

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/model"
	"storefront/internal/notify"
	"storefront/internal/store"
)

// UpdateStatus 管理员直接设置订单状态。
// 非取消状态之间允许任意跳转；cancelled 为终态，不可恢复（恢复需要重新预占库存）。
// 管理员取消与过期清理一样归还库存，且只归还一次。
func (s *Service) UpdateStatus(ctx context.Context, orderNo string, status model.OrderStatus, actor string) (*model.Order, error) {
	if !status.Valid() {
		return nil, invalidRequest(fmt.Sprintf("invalid order status %q", status))
	}
	o, err := s.orders.FindByOrderNo(ctx, orderNo)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("order")
	}
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	if o.OrderStatus == model.OrderCancelled {
		return nil, conflict("cancelled orders cannot change status")
	}
	if o.OrderStatus == status {
		return o, nil
	}

	if status == model.OrderCancelled {
		ok, err := s.cancel(ctx, o, o.OrderStatus, actor, notify.KindManualCancelled, "admin")
		if err != nil {
			return nil, fmt.Errorf("cancel order: %w", err)
		}
		if !ok {
			return nil, conflict("order status changed concurrently, reload and retry")
		}
		return o, nil
	}

	from := o.OrderStatus
	ok, err := s.orders.TransitionStatus(ctx, o.ID, from, status)
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	if !ok {
		return nil, conflict("order status changed concurrently, reload and retry")
	}
	o.OrderStatus = status
	s.logger.Info("order status updated", "order_no", o.OrderNo, "from", from, "to", status, "actor", actor)
	s.record(ctx, actor, "status_update", o, fmt.Sprintf("%s -> %s", from, status))

	if status == model.OrderDelivered {
		s.notifier.Notify(ctx, notify.KindDelivered, o)
	}
	return o, nil
}

type TrackingInput struct {
	CourierName    string `json:"courier_name" binding:"required"`
	TrackingNumber string `json:"tracking_number" binding:"required"`
	TrackingURL    string `json:"tracking_url"`
}

// UpdateTracking 录入物流信息，订单置为 shipped 并通知客户。
func (s *Service) UpdateTracking(ctx context.Context, orderNo string, in TrackingInput, actor string) (*model.Order, error) {
	if in.CourierName == "" || in.TrackingNumber == "" {
		return nil, invalidRequest("courier_name and tracking_number are required")
	}
	o, err := s.orders.FindByOrderNo(ctx, orderNo)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("order")
	}
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	ok, err := s.orders.SetTracking(ctx, o.ID, in.CourierName, in.TrackingNumber, in.TrackingURL)
	if err != nil {
		return nil, fmt.Errorf("set tracking: %w", err)
	}
	if !ok {
		return nil, conflict("cancelled orders cannot be shipped")
	}
	o.CourierName = in.CourierName
	o.TrackingNumber = in.TrackingNumber
	o.TrackingURL = in.TrackingURL
	o.OrderStatus = model.OrderShipped

	s.logger.Info("order shipped", "order_no", o.OrderNo, "courier", in.CourierName, "actor", actor)
	s.record(ctx, actor, "tracking_update", o, in.CourierName+" "+in.TrackingNumber)
	s.notifier.Notify(ctx, notify.KindShipped, o)
	return o, nil
}
