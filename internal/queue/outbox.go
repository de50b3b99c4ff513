package queue

import (
	"context"

	"github.com/google/uuid"
	rd "github.com/redis/go-redis/v9"
)

// Outbox 实现 notify.Sender：只把通知写入 Redis Stream，由 Relay 异步转发到 Kafka。
// 请求路径只承担一次 XADD 的开销。
type Outbox struct {
	rdb    *rd.Client
	stream string
	maxLen int64
}

func NewOutbox(rdb *rd.Client, stream string) *Outbox {
	return &Outbox{rdb: rdb, stream: stream, maxLen: 100000}
}

func (o *Outbox) Send(ctx context.Context, to, subject, html string) error {
	msg := NotificationMessage{EventID: uuid.NewString(), To: to, Subject: subject, HTML: html}
	if err := msg.Validate(); err != nil {
		return err
	}
	return o.rdb.XAdd(ctx, &rd.XAddArgs{
		Stream: o.stream,
		MaxLen: o.maxLen,
		Approx: true,
		Values: msg.values(),
	}).Err()
}
