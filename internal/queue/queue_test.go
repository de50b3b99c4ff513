package queue

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	rediskey "storefront/pkg/redis"

	"github.com/alicebob/miniredis/v2"
	rd "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakePublisher struct {
	mu   sync.Mutex
	err  error
	sent []NotificationMessage
}

func (f *fakePublisher) Publish(_ context.Context, msg NotificationMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeSender struct {
	err   error
	calls int
	to    []string
}

func (f *fakeSender) Send(_ context.Context, to, _, _ string) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.to = append(f.to, to)
	return nil
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *rd.Client) {
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestOutboxRelayForwardsAndAcks(t *testing.T) {
	_, rdb := newRedis(t)
	ctx := context.Background()

	pub := &fakePublisher{}
	relay := &Relay{rdb: rdb, producer: pub, logger: testLogger, stream: "notify", group: "g", consumer: "c1"}
	require.NoError(t, relay.ensureGroup(ctx))
	require.NoError(t, relay.ensureGroup(ctx)) // BUSYGROUP 视为成功

	out := NewOutbox(rdb, "notify")
	require.NoError(t, out.Send(ctx, "a@example.com", "Order Confirmed - ORD1", "<p>hi</p>"))

	msgs, err := relay.readGroup(ctx, ">", -1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.NoError(t, relay.processOne(ctx, msgs[0]))

	require.Len(t, pub.sent, 1)
	assert.Equal(t, "a@example.com", pub.sent[0].To)
	assert.NotEmpty(t, pub.sent[0].EventID)

	n, err := rdb.XLen(ctx, "notify").Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRelayKeepsMessageWhenPublishFails(t *testing.T) {
	_, rdb := newRedis(t)
	ctx := context.Background()

	pub := &fakePublisher{err: errors.New("kafka down")}
	relay := &Relay{rdb: rdb, producer: pub, logger: testLogger, stream: "notify", group: "g", consumer: "c1"}
	require.NoError(t, relay.ensureGroup(ctx))
	require.NoError(t, NewOutbox(rdb, "notify").Send(ctx, "a@example.com", "s", "h"))

	msgs, err := relay.readGroup(ctx, ">", -1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Error(t, relay.processOne(ctx, msgs[0]))

	// 仍在 pending 列表中，下一轮可重试
	pending, err := relay.readGroup(ctx, "0", -1)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	pub.err = nil
	require.NoError(t, relay.processOne(ctx, pending[0]))
	assert.Len(t, pub.sent, 1)
}

func TestRelayDropsInvalidMessage(t *testing.T) {
	_, rdb := newRedis(t)
	ctx := context.Background()

	pub := &fakePublisher{}
	relay := &Relay{rdb: rdb, producer: pub, logger: testLogger, stream: "notify", group: "g", consumer: "c1"}
	require.NoError(t, relay.ensureGroup(ctx))
	require.NoError(t, rdb.XAdd(ctx, &rd.XAddArgs{Stream: "notify", Values: map[string]any{"to": "x"}}).Err())

	msgs, err := relay.readGroup(ctx, ">", -1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.NoError(t, relay.processOne(ctx, msgs[0]))
	assert.Empty(t, pub.sent)
}

func TestConsumerDeliversOnce(t *testing.T) {
	_, rdb := newRedis(t)
	ctx := context.Background()
	sender := &fakeSender{}
	c := &Consumer{rdb: rdb, sender: sender, logger: testLogger}

	b, err := json.Marshal(NotificationMessage{EventID: "e1", To: "a@example.com", Subject: "s", HTML: "h"})
	require.NoError(t, err)

	c.handle(ctx, b)
	c.handle(ctx, b)
	assert.Equal(t, 1, sender.calls)

	c.handle(ctx, []byte("not json"))
	assert.Equal(t, 1, sender.calls)
}

func TestConsumerRetriesAfterSendFailure(t *testing.T) {
	mr, rdb := newRedis(t)
	ctx := context.Background()
	sender := &fakeSender{err: errors.New("resend 500")}
	c := &Consumer{rdb: rdb, sender: sender, logger: testLogger}

	b, err := json.Marshal(NotificationMessage{EventID: "e2", To: "a@example.com", Subject: "s"})
	require.NoError(t, err)

	c.handle(ctx, b)
	assert.False(t, mr.Exists(rediskey.NotificationSentKey("e2")))

	sender.err = nil
	c.handle(ctx, b)
	assert.Equal(t, 2, sender.calls)
	assert.Equal(t, []string{"a@example.com"}, sender.to)
}
