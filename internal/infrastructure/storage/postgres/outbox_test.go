package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplyhub/internal/core/id"
	"supplyhub/internal/domain/events"
)

func TestOutboxMessage_Event(t *testing.T) {
	created := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	msg := &OutboxMessage{
		ID:            id.New(),
		AggregateType: "product",
		AggregateID:   "7",
		EventType:     string(events.StockChanged),
		Payload:       []byte(`{"stock":"12.0000","action":"ADD_STOCK"}`),
		CreatedAt:     created,
	}

	e, err := msg.Event()
	require.NoError(t, err)

	assert.Equal(t, msg.ID, e.ID)
	assert.Equal(t, events.StockChanged, e.Type)
	assert.Equal(t, "7", e.AggregateID)
	assert.Equal(t, "12.0000", e.Payload["stock"])
	assert.Equal(t, created, e.OccurredAt)
}

func TestOutboxMessage_EventBadPayload(t *testing.T) {
	msg := &OutboxMessage{ID: id.New(), Payload: []byte(`{`)}

	_, err := msg.Event()
	assert.Error(t, err)
}
