package notify

import (
	"context"
	"log/slog"

	"storefront/internal/model"
)

// Notifier 渲染订单通知并交给 Sender 投递。失败只记日志，不影响订单流程。
type Notifier struct {
	sender Sender
	logger *slog.Logger
}

func NewNotifier(sender Sender, logger *slog.Logger) *Notifier {
	return &Notifier{sender: sender, logger: logger}
}

func (n *Notifier) Notify(ctx context.Context, kind Kind, o *model.Order) {
	to := o.ShippingAddress.Email
	if to == "" {
		n.logger.Warn("notification skipped, no recipient", "order_no", o.OrderNo, "kind", kind)
		return
	}
	subject, html, err := Render(kind, o)
	if err != nil {
		n.logger.Error("render notification", "order_no", o.OrderNo, "kind", kind, "err", err)
		return
	}
	if err := n.sender.Send(ctx, to, subject, html); err != nil {
		n.logger.Warn("send notification", "order_no", o.OrderNo, "kind", kind, "err", err)
	}
}
