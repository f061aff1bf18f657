// Package events replaces ambient "refresh the other page" calls with an
// explicit observer. Services publish after their transaction commits;
// the host application subscribes.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"supplyhub/internal/core/id"
	"supplyhub/pkg/logger"
)

// Type identifies an event kind.
type Type string

const (
	OrderCreated         Type = "supplier_order.created"
	OrderUpdated         Type = "supplier_order.updated"
	OrderDeleted         Type = "supplier_order.deleted"
	OrderStatusChanged   Type = "supplier_order.status_changed"
	StockChanged         Type = "stock.changed"
	ReconciliationNeeded Type = "stock.reconciliation_needed"
)

// Event is a domain notification.
type Event struct {
	ID            id.ID          `json:"id"`
	Type          Type           `json:"type"`
	AggregateType string         `json:"aggregate_type"`
	AggregateID   string         `json:"aggregate_id"`
	Payload       map[string]any `json:"payload,omitempty"`
	OccurredAt    time.Time      `json:"occurred_at"`
}

// New creates an event stamped with a fresh id and the current time.
func New(t Type, aggregateType, aggregateID string, payload map[string]any) Event {
	return Event{
		ID:            id.New(),
		Type:          t,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Payload:       payload,
		OccurredAt:    time.Now().UTC(),
	}
}

// PayloadJSON encodes the payload for durable sinks.
func (e Event) PayloadJSON() ([]byte, error) {
	return json.Marshal(e.Payload)
}

// Recorder durably records events inside the caller's transaction
// (transactional outbox, audit trail).
type Recorder interface {
	Record(ctx context.Context, evts ...Event) error
}

// Handler reacts to a published event.
type Handler func(ctx context.Context, e Event) error

// Publisher is what services depend on.
type Publisher interface {
	Publish(ctx context.Context, evts ...Event)
}

// Bus is an in-process synchronous observer.
// Handler errors are logged and never reach the publisher.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Type][]Handler
	all      []Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[Type][]Handler)}
}

// Subscribe registers h for events of type t.
func (b *Bus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], h)
}

// SubscribeAll registers h for every event.
func (b *Bus) SubscribeAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, h)
}

// Publish delivers events in order.
func (b *Bus) Publish(ctx context.Context, evts ...Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, e := range evts {
		for _, h := range b.handlers[e.Type] {
			b.deliver(ctx, h, e)
		}
		for _, h := range b.all {
			b.deliver(ctx, h, e)
		}
	}
}

func (b *Bus) deliver(ctx context.Context, h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "event handler panicked", "event_type", e.Type, "panic", r)
		}
	}()
	if err := h(ctx, e); err != nil {
		logger.Warn(ctx, "event handler failed", "event_type", e.Type, "aggregate_id", e.AggregateID, "error", err)
	}
}

// NopRecorder discards events.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, ...Event) error { return nil }

// MultiRecorder fans out to several recorders, stopping at the first error.
type MultiRecorder []Recorder

func (m MultiRecorder) Record(ctx context.Context, evts ...Event) error {
	for _, r := range m {
		if err := r.Record(ctx, evts...); err != nil {
			return err
		}
	}
	return nil
}

var (
	_ Publisher = (*Bus)(nil)
	_ Recorder  = NopRecorder{}
	_ Recorder  = MultiRecorder(nil)
)
