package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplyhub/internal/domain/events"
	"supplyhub/internal/infrastructure/storage/postgres"
)

type published struct {
	channel string
	message []byte
}

type fakeClient struct {
	sent []published
	err  error
}

func (f *fakeClient) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx, "publish", channel, message)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.sent = append(f.sent, published{channel: channel, message: message.([]byte)})
	cmd.SetVal(1)
	return cmd
}

func TestRedisPublisher_Send(t *testing.T) {
	client := &fakeClient{}
	p := newRedisPublisher(client, "")
	assert.Equal(t, DefaultChannel, p.Channel())

	e := events.New(events.OrderStatusChanged, "supplier_order", "order-1", map[string]any{"new_status": "CONFIRMED"})
	require.NoError(t, p.Send(context.Background(), e))

	require.Len(t, client.sent, 1)
	assert.Equal(t, DefaultChannel, client.sent[0].channel)

	var got events.Event
	require.NoError(t, json.Unmarshal(client.sent[0].message, &got))
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, events.OrderStatusChanged, got.Type)
	assert.Equal(t, "CONFIRMED", got.Payload["new_status"])
}

func TestRedisPublisher_HandleOutboxMessage(t *testing.T) {
	client := &fakeClient{}
	p := newRedisPublisher(client, "orders")

	msg := &postgres.OutboxMessage{
		AggregateType: "product",
		AggregateID:   "7",
		EventType:     string(events.StockChanged),
		Payload:       []byte(`{"stock":"12"}`),
	}
	require.NoError(t, p.Handle(context.Background(), msg))
	require.Len(t, client.sent, 1)
	assert.Equal(t, "orders", client.sent[0].channel)
	assert.Contains(t, string(client.sent[0].message), `"stock":"12"`)

	msg.Payload = []byte(`{broken`)
	assert.Error(t, p.Handle(context.Background(), msg))
}

func TestRedisPublisher_PublishError(t *testing.T) {
	client := &fakeClient{err: errors.New("connection refused")}
	p := newRedisPublisher(client, "orders")

	err := p.Send(context.Background(), events.New(events.OrderCreated, "supplier_order", "x", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
