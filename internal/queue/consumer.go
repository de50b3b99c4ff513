package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"storefront/internal/notify"
	rediskey "storefront/pkg/redis"

	rd "github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
)

// dedupeTTL 去重标记保留时长，覆盖 Kafka 重投递窗口即可。
const dedupeTTL = 24 * time.Hour

type Consumer struct {
	r      *kafka.Reader
	rdb    *rd.Client
	sender notify.Sender
	logger *slog.Logger
}

func NewConsumer(brokers []string, topic, groupID string, rdb *rd.Client, sender notify.Sender, logger *slog.Logger) *Consumer {
	return &Consumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1e3,
			MaxBytes: 1e6,
		}),
		rdb:    rdb,
		sender: sender,
		logger: logger,
	}
}

func (c *Consumer) Close() error { return c.r.Close() }

func (c *Consumer) Run(ctx context.Context) {
	for {
		m, err := c.r.ReadMessage(ctx)
		if err != nil {
			return // ctx cancel / 连接断开等
		}
		c.handle(ctx, m.Value)
	}
}

// handle 投递一条通知；同一 event_id 只发送一次，发送失败撤销标记。
func (c *Consumer) handle(ctx context.Context, value []byte) {
	var msg NotificationMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		c.logger.Warn("consumer unmarshal", "err", err)
		return
	}
	if err := msg.Validate(); err != nil {
		c.logger.Warn("consumer drop invalid message", "err", err)
		return
	}

	key := rediskey.NotificationSentKey(msg.EventID)
	first, err := rediskey.MarkOnce(ctx, c.rdb, key, dedupeTTL)
	if err != nil {
		// Redis 不可用时宁可重复发送也不丢
		c.logger.Warn("consumer dedupe check failed", "event_id", msg.EventID, "err", err)
		first = true
	}
	if !first {
		return
	}

	if err := c.sender.Send(ctx, msg.To, msg.Subject, msg.HTML); err != nil {
		c.logger.Error("send notification failed", "event_id", msg.EventID, "to", msg.To, "err", err)
		if uerr := rediskey.Unmark(ctx, c.rdb, key); uerr != nil {
			c.logger.Warn("consumer unmark failed", "event_id", msg.EventID, "err", uerr)
		}
		return
	}
	c.logger.Info("notification sent", "event_id", msg.EventID, "to", msg.To, "subject", msg.Subject)
}
