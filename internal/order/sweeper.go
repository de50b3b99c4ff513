package order

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"storefront/internal/model"
	"storefront/internal/notify"
	rediskey "storefront/pkg/redis"

	"github.com/google/uuid"
	rd "github.com/redis/go-redis/v9"
)

// Sweeper 周期性取消超过宽限期仍未支付的在线订单并归还库存。
// 单实例内各轮串行执行；多实例部署时通过 Redis 锁保证同一时刻只有一个实例在清理。
type Sweeper struct {
	svc      *Service
	rdb      *rd.Client // nil 时不加分布式锁
	interval time.Duration
	lockTTL  time.Duration
	owner    string
	logger   *slog.Logger

	mu sync.Mutex
}

func NewSweeper(svc *Service, rdb *rd.Client, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		svc:      svc,
		rdb:      rdb,
		interval: interval,
		lockTTL:  interval + 30*time.Second,
		owner:    uuid.NewString(),
		logger:   svc.logger.With("component", "sweeper"),
	}
}

// Run 启动后立即执行一轮，之后按 interval 执行，直到 ctx 取消。
func (w *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("sweep failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// RunOnce 执行一轮清理，返回本轮取消的订单数。
// 单个订单处理失败不影响其余订单。
func (w *Sweeper) RunOnce(ctx context.Context) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.rdb != nil {
		ok, err := rediskey.AcquireLock(ctx, w.rdb, rediskey.SweepLockKey(), w.owner, w.lockTTL)
		switch {
		case err != nil:
			// Redis 不可用时不加锁继续清理，重复取消由条件状态迁移挡住
			w.logger.Warn("sweep lock unavailable, sweeping without lock", "err", err)
		case !ok:
			w.svc.metrics.SweepRuns.WithLabelValues("skipped").Inc()
			return 0, nil
		default:
			defer func() {
				if err := rediskey.ReleaseLock(context.WithoutCancel(ctx), w.rdb, rediskey.SweepLockKey(), w.owner); err != nil {
					w.logger.Warn("release sweep lock", "err", err)
				}
			}()
		}
	}

	cutoff := w.svc.now().Add(-w.svc.cfg.GraceWindow)
	expired, err := w.svc.orders.FindExpiredPending(ctx, cutoff, w.svc.cfg.SweepBatch)
	if err != nil {
		w.svc.metrics.SweepRuns.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("find expired orders: %w", err)
	}

	cancelled := 0
	for i := range expired {
		o := &expired[i]
		ok, err := w.svc.cancel(ctx, o, model.OrderPending, model.ActorSystem, notify.KindAutoCancelled, "expired")
		if err != nil {
			w.logger.Error("cancel expired order", "order_no", o.OrderNo, "err", err)
			continue
		}
		if ok {
			cancelled++
		}
	}
	w.svc.metrics.SweepRuns.WithLabelValues("ok").Inc()
	if cancelled > 0 {
		w.logger.Info("expired orders cancelled", "count", cancelled, "cutoff", cutoff)
	}
	return cancelled, nil
}

// cancel 以 from → cancelled 的条件更新抢占订单，成功后才归还库存，
// 保证与支付校验、管理员操作竞争时库存只归还一次。
func (s *Service) cancel(ctx context.Context, o *model.Order, from model.OrderStatus, actor string, kind notify.Kind, reason string) (bool, error) {
	ok, err := s.orders.TransitionStatus(ctx, o.ID, from, model.OrderCancelled)
	if err != nil || !ok {
		return false, err
	}
	o.OrderStatus = model.OrderCancelled
	s.release(ctx, o.OrderNo, o.Items)
	s.metrics.OrdersCancelled.WithLabelValues(reason).Inc()
	s.logger.Info("order cancelled, stock restored", "order_no", o.OrderNo, "actor", actor, "reason", reason)

	s.record(ctx, actor, "order_cancelled", o, reason)
	s.notifier.Notify(ctx, kind, o)
	return true, nil
}
