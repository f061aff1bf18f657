package orders

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"supplyhub/internal/core/apperror"
	appctx "supplyhub/internal/core/context"
	"supplyhub/internal/core/id"
	"supplyhub/internal/core/lock"
	"supplyhub/internal/core/numerator"
	"supplyhub/internal/core/tx"
	"supplyhub/internal/core/types"
	"supplyhub/internal/domain"
	"supplyhub/internal/domain/events"
	"supplyhub/internal/domain/inventory"
	"supplyhub/pkg/logger"
)

var tracer = otel.Tracer("supplyhub/orders")

// aggregateType names orders in events and audit records.
const aggregateType = "supplier_order"

// Deps are the collaborators of the order service.
type Deps struct {
	Repo       Repository
	TxManager  tx.Manager
	Numerator  numerator.Generator
	Suppliers  inventory.SupplierDirectory
	Products   inventory.ProductCatalog
	Movements  MovementReader
	Reconciler Reconciler
	// Locker serialises mutations of one order. Defaults to lock.Nop.
	Locker lock.Locker
	// Recorder receives events inside the transaction. Optional.
	Recorder events.Recorder
	// Publisher receives events after commit. Optional.
	Publisher events.Publisher
}

// Service provides business operations for supplier orders.
type Service struct {
	repo       Repository
	txManager  tx.Manager
	numerator  numerator.Generator
	suppliers  inventory.SupplierDirectory
	products   inventory.ProductCatalog
	movements  MovementReader
	reconciler Reconciler
	locker     lock.Locker
	recorder   events.Recorder
	publisher  events.Publisher
	hooks      *domain.HookRegistry[*Order]
	cfg        Config
	now        func() time.Time
}

// NewService creates a new supplier order service.
func NewService(deps Deps, cfg Config) *Service {
	s := &Service{
		repo:       deps.Repo,
		txManager:  deps.TxManager,
		numerator:  deps.Numerator,
		suppliers:  deps.Suppliers,
		products:   deps.Products,
		movements:  deps.Movements,
		reconciler: deps.Reconciler,
		locker:     deps.Locker,
		recorder:   deps.Recorder,
		publisher:  deps.Publisher,
		hooks:      domain.NewHookRegistry[*Order](),
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}
	if s.locker == nil {
		s.locker = lock.Nop{}
	}
	if s.recorder == nil {
		s.recorder = events.NopRecorder{}
	}
	if s.cfg.NumberPrefix == "" {
		s.cfg.NumberPrefix = DefaultConfig().NumberPrefix
	}
	if s.cfg.StatisticsWindow <= 0 {
		s.cfg.StatisticsWindow = DefaultConfig().StatisticsWindow
	}
	return s
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*Order] {
	return s.hooks
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// CreateInput is the content of a new order.
type CreateInput struct {
	SupplierID           inventory.SupplierID `json:"supplier_id"`
	OrderDate            *time.Time           `json:"order_date,omitempty"`
	ExpectedDeliveryDate *time.Time           `json:"expected_delivery_date,omitempty"`
	Notes                string               `json:"notes,omitempty"`
	CreatedBy            string               `json:"created_by,omitempty"`
	Items                []ItemInput          `json:"items"`
}

// CreatedOrder identifies a freshly created order.
type CreatedOrder struct {
	ID          id.ID  `json:"id"`
	OrderNumber string `json:"order_number"`
}

// UpdateInput patches an order. Nil fields are left unchanged; a non-nil
// Items slice replaces every line of the order.
type UpdateInput struct {
	SupplierID           *inventory.SupplierID `json:"supplier_id,omitempty"`
	OrderDate            *time.Time            `json:"order_date,omitempty"`
	ExpectedDeliveryDate *time.Time            `json:"expected_delivery_date,omitempty"`
	Notes                *string               `json:"notes,omitempty"`
	Items                []ItemInput           `json:"items,omitempty"`
}

// CreateOrder persists a PENDING order with its items and total.
func (s *Service) CreateOrder(ctx context.Context, in CreateInput) (*CreatedOrder, error) {
	order := NewOrder(in.SupplierID)
	if in.OrderDate != nil {
		order.OrderDate = DateOnly(*in.OrderDate)
	}
	order.ExpectedDeliveryDate = in.ExpectedDeliveryDate
	order.Notes = in.Notes
	order.CreatedBy = in.CreatedBy
	if order.CreatedBy == "" {
		order.CreatedBy = appctx.GetActorName(ctx)
	}

	if err := order.Validate(ctx); err != nil {
		return nil, err
	}
	for i, it := range in.Items {
		if err := it.Validate(i + 1); err != nil {
			return nil, err
		}
	}

	// Cached ranges are reserved outside the order transaction: a rollback
	// must not return a range the numerator still holds in memory.
	if s.cfg.NumberStrategy == numerator.StrategyCached {
		if err := s.assignNumber(ctx, order); err != nil {
			return nil, err
		}
	}

	var evt events.Event
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.hooks.Run(ctx, domain.BeforeCreate, order); err != nil {
			return err
		}

		if order.OrderNumber == "" {
			if err := s.assignNumber(ctx, order); err != nil {
				return err
			}
		}

		if err := s.repo.Create(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		items := make([]OrderItem, 0, len(in.Items))
		for i, it := range in.Items {
			item, err := s.addItem(ctx, order.ID, it, i+1)
			if err != nil {
				return err
			}
			items = append(items, *item)
		}

		order.ApplyTotal(items)
		if err := s.repo.Update(ctx, order); err != nil {
			return fmt.Errorf("update order total: %w", err)
		}

		evt = events.New(events.OrderCreated, aggregateType, order.ID.String(), map[string]any{
			"order_number": order.OrderNumber,
			"supplier_id":  order.SupplierID,
			"total_amount": order.TotalAmount.String(),
			"items":        len(items),
		})
		return s.recorder.Record(ctx, evt)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, evt)

	logger.Info(ctx, "supplier order created",
		"id", order.ID,
		"number", order.OrderNumber,
		"items", len(in.Items),
		"total", order.TotalAmount.String())

	return &CreatedOrder{ID: order.ID, OrderNumber: order.OrderNumber}, nil
}

func (s *Service) assignNumber(ctx context.Context, order *Order) error {
	number, err := s.numerator.GetNextNumber(ctx, s.cfg.numberConfig(), s.cfg.numberOptions(), order.OrderDate)
	if err != nil {
		return fmt.Errorf("generate number: %w", err)
	}
	order.OrderNumber = number
	return nil
}

// addItem computes the line total and persists it. The product is not
// checked: lines may carry only a name until reconciliation resolves it.
func (s *Service) addItem(ctx context.Context, orderID id.ID, in ItemInput, lineNo int) (*OrderItem, error) {
	item := in.toItem(orderID, lineNo)
	if err := s.repo.AddItem(ctx, item); err != nil {
		return nil, fmt.Errorf("add order item: %w", err)
	}
	return item, nil
}

// AddOrderItem appends a line to an open order and refreshes the total.
func (s *Service) AddOrderItem(ctx context.Context, orderID id.ID, in ItemInput) (*OrderItem, error) {
	var item *OrderItem
	var evt events.Event

	err := s.withOrderLock(ctx, orderID, func(ctx context.Context) error {
		return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			order, err := s.repo.GetForUpdate(ctx, orderID)
			if err != nil {
				return err
			}
			if err := order.CanModify(); err != nil {
				return err
			}

			items, err := s.repo.GetItems(ctx, orderID)
			if err != nil {
				return fmt.Errorf("get items: %w", err)
			}
			lineNo := nextLineNo(items)
			if err := in.Validate(lineNo); err != nil {
				return err
			}

			item, err = s.addItem(ctx, orderID, in, lineNo)
			if err != nil {
				return err
			}

			order.ApplyTotal(append(items, *item))
			if err := s.repo.Update(ctx, order); err != nil {
				return fmt.Errorf("update order total: %w", err)
			}

			evt = events.New(events.OrderUpdated, aggregateType, orderID.String(), map[string]any{
				"item_added":   item.ID.String(),
				"total_amount": order.TotalAmount.String(),
			})
			return s.recorder.Record(ctx, evt)
		})
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, evt)
	return item, nil
}

// UpdateOrderTotal recomputes total_amount from the items.
func (s *Service) UpdateOrderTotal(ctx context.Context, orderID id.ID) (*Order, error) {
	var order *Order
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.repo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		items, err := s.repo.GetItems(ctx, orderID)
		if err != nil {
			return fmt.Errorf("get items: %w", err)
		}
		order.ApplyTotal(items)
		if err := s.repo.Update(ctx, order); err != nil {
			return fmt.Errorf("update order total: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// UpdateOrder patches an open order. Received and cancelled orders are
// rejected and left untouched.
func (s *Service) UpdateOrder(ctx context.Context, orderID id.ID, in UpdateInput) (*Order, error) {
	var order *Order
	var evt events.Event

	err := s.withOrderLock(ctx, orderID, func(ctx context.Context) error {
		return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			var err error
			order, err = s.repo.GetForUpdate(ctx, orderID)
			if err != nil {
				return err
			}
			if err := order.CanModify(); err != nil {
				return err
			}

			if in.SupplierID != nil {
				order.SupplierID = *in.SupplierID
			}
			if in.OrderDate != nil {
				order.OrderDate = DateOnly(*in.OrderDate)
			}
			if in.ExpectedDeliveryDate != nil {
				order.ExpectedDeliveryDate = in.ExpectedDeliveryDate
			}
			if in.Notes != nil {
				order.Notes = *in.Notes
			}
			if err := order.Validate(ctx); err != nil {
				return err
			}
			if err := s.hooks.Run(ctx, domain.BeforeUpdate, order); err != nil {
				return err
			}

			var items []OrderItem
			if in.Items != nil {
				for i, it := range in.Items {
					if err := it.Validate(i + 1); err != nil {
						return err
					}
				}
				if err := s.repo.DeleteItems(ctx, orderID); err != nil {
					return fmt.Errorf("delete items: %w", err)
				}
				items = make([]OrderItem, 0, len(in.Items))
				for i, it := range in.Items {
					item, err := s.addItem(ctx, orderID, it, i+1)
					if err != nil {
						return err
					}
					items = append(items, *item)
				}
			} else {
				items, err = s.repo.GetItems(ctx, orderID)
				if err != nil {
					return fmt.Errorf("get items: %w", err)
				}
			}

			order.ApplyTotal(items)
			if err := s.repo.Update(ctx, order); err != nil {
				return fmt.Errorf("update order: %w", err)
			}

			evt = events.New(events.OrderUpdated, aggregateType, orderID.String(), map[string]any{
				"items_replaced": in.Items != nil,
				"total_amount":   order.TotalAmount.String(),
			})
			return s.recorder.Record(ctx, evt)
		})
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, evt)
	logger.Info(ctx, "supplier order updated", "id", orderID, "items_replaced", in.Items != nil)
	return order, nil
}

// DeleteOrder removes the order and its items. Lots and movements the
// order produced stay as history.
func (s *Service) DeleteOrder(ctx context.Context, orderID id.ID) error {
	var evt events.Event

	err := s.withOrderLock(ctx, orderID, func(ctx context.Context) error {
		return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			order, err := s.repo.GetForUpdate(ctx, orderID)
			if err != nil {
				return err
			}
			if err := s.hooks.Run(ctx, domain.BeforeDelete, order); err != nil {
				return err
			}
			if err := s.repo.Delete(ctx, orderID); err != nil {
				return fmt.Errorf("delete order: %w", err)
			}

			evt = events.New(events.OrderDeleted, aggregateType, orderID.String(), map[string]any{
				"order_number": order.OrderNumber,
				"status":       order.Status,
			})
			return s.recorder.Record(ctx, evt)
		})
	})
	if err != nil {
		return err
	}

	s.publish(ctx, evt)
	logger.Info(ctx, "supplier order deleted", "id", orderID)
	return nil
}

// StatusChange is the result of UpdateOrderStatus.
type StatusChange struct {
	Order     *Order   `json:"order"`
	OldStatus Status   `json:"old_status"`
	NewStatus Status   `json:"new_status"`
	Outcome   *Outcome `json:"outcome"`
}

// UpdateOrderStatus moves the order to newStatus and reconciles inventory
// in the same transaction. Reconciliation only runs when the status
// actually changes; if it fails the status change is rolled back.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID id.ID, newStatus Status, notes string) (*StatusChange, error) {
	if !newStatus.IsValid() {
		return nil, apperror.NewValidation("unknown order status").
			WithDetail("field", "status").
			WithDetail("value", string(newStatus))
	}

	var change *StatusChange
	var evts []events.Event

	err := s.withOrderLock(ctx, orderID, func(ctx context.Context) error {
		return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			order, err := s.repo.GetForUpdate(ctx, orderID)
			if err != nil {
				return err
			}
			change, evts, err = s.changeStatus(ctx, order, newStatus, notes)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, evts...)
	return change, nil
}

// changeStatus runs under the order lock inside a transaction.
func (s *Service) changeStatus(ctx context.Context, order *Order, newStatus Status, notes string) (*StatusChange, []events.Event, error) {
	ctx, span := tracer.Start(ctx, "orders.changeStatus", trace.WithAttributes(
		attribute.String("order.id", order.ID.String()),
		attribute.String("order.status.old", string(order.Status)),
		attribute.String("order.status.new", string(newStatus)),
	))
	defer span.End()

	oldStatus := order.Status
	order.Status = newStatus
	order.AppendNotes(notes)
	if newStatus == StatusReceived && oldStatus != StatusReceived {
		now := s.now()
		order.ActualDeliveryDate = &now
	}
	if err := s.repo.Update(ctx, order); err != nil {
		return nil, nil, fmt.Errorf("update order status: %w", err)
	}

	change := &StatusChange{Order: order, OldStatus: oldStatus, NewStatus: newStatus, Outcome: NoOutcome()}
	if newStatus == oldStatus {
		return change, nil, nil
	}

	items, err := s.repo.GetItems(ctx, order.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("get items: %w", err)
	}

	outcome, err := s.reconciler.Reconcile(ctx, order, items, oldStatus, newStatus)
	if err != nil {
		span.RecordError(err)
		logger.Warn(ctx, "status change rolled back",
			"order_id", order.ID,
			"from", oldStatus,
			"to", newStatus,
			"error", err)
		return nil, nil, err
	}
	change.Outcome = outcome

	evts := append([]events.Event{
		events.New(events.OrderStatusChanged, aggregateType, order.ID.String(), map[string]any{
			"order_number": order.OrderNumber,
			"old_status":   oldStatus,
			"new_status":   newStatus,
			"action":       outcome.Action,
		}),
	}, stockEvents(order, outcome)...)
	if err := s.recorder.Record(ctx, evts...); err != nil {
		return nil, nil, fmt.Errorf("record events: %w", err)
	}

	logger.Info(ctx, "supplier order status changed",
		"id", order.ID,
		"from", oldStatus,
		"to", newStatus,
		"action", outcome.Action,
		"lots", len(outcome.Lots),
		"direct_patches", len(outcome.DirectPatches))

	return change, evts, nil
}

// stockEvents describes the inventory side effects of a transition.
func stockEvents(order *Order, outcome *Outcome) []events.Event {
	if outcome == nil || outcome.Action == ActionNone {
		return nil
	}

	var evts []events.Event
	for _, productID := range slices.Sorted(maps.Keys(outcome.StockAfter)) {
		stock := outcome.StockAfter[productID]
		evts = append(evts, events.New(events.StockChanged, "product", productID.String(), map[string]any{
			"stock":        stock.String(),
			"order_id":     order.ID.String(),
			"order_number": order.OrderNumber,
			"action":       outcome.Action,
		}))
	}
	if outcome.ReconciliationNeeded {
		evts = append(evts, events.New(events.ReconciliationNeeded, aggregateType, order.ID.String(), map[string]any{
			"order_number":   order.OrderNumber,
			"direct_patches": outcome.DirectPatches,
			"shortfalls":     outcome.Shortfalls,
			"skipped_items":  outcome.SkippedItems,
		}))
	}
	return evts
}

// Receipt is the received quantity of one line.
type Receipt struct {
	ItemID   id.ID          `json:"item_id"`
	Quantity types.Quantity `json:"quantity_received"`
}

// ReceiveOrder records received quantities and moves the order to RECEIVED.
// Lines without an explicit receipt are received in full.
func (s *Service) ReceiveOrder(ctx context.Context, orderID id.ID, receipts []Receipt, notes string) (*StatusChange, error) {
	var change *StatusChange
	var evts []events.Event

	err := s.withOrderLock(ctx, orderID, func(ctx context.Context) error {
		return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			order, err := s.repo.GetForUpdate(ctx, orderID)
			if err != nil {
				return err
			}
			if err := order.CanModify(); err != nil {
				return err
			}

			items, err := s.repo.GetItems(ctx, orderID)
			if err != nil {
				return fmt.Errorf("get items: %w", err)
			}

			known := make(map[id.ID]bool, len(items))
			for _, it := range items {
				known[it.ID] = true
			}
			byItem := make(map[id.ID]types.Quantity, len(receipts))
			for _, r := range receipts {
				if !known[r.ItemID] {
					return apperror.NewNotFound("supplier_order_item", r.ItemID.String())
				}
				if r.Quantity.IsNegative() {
					return apperror.NewValidation("received quantity cannot be negative").
						WithDetail("item_id", r.ItemID.String())
				}
				byItem[r.ItemID] = r.Quantity
			}

			for i := range items {
				item := &items[i]
				item.QuantityReceived = item.QuantityOrdered
				if qty, ok := byItem[item.ID]; ok {
					item.QuantityReceived = qty
				}
				if err := s.repo.UpdateItem(ctx, item); err != nil {
					return fmt.Errorf("update item: %w", err)
				}
			}

			change, evts, err = s.changeStatus(ctx, order, StatusReceived, notes)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, evts...)
	return change, nil
}

// DuplicateOrder creates a new PENDING order with the same supplier,
// notes and lines.
func (s *Service) DuplicateOrder(ctx context.Context, orderID id.ID) (*CreatedOrder, error) {
	src, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.GetItems(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get items: %w", err)
	}

	in := CreateInput{
		SupplierID: src.SupplierID,
		Notes:      src.Notes,
		Items:      make([]ItemInput, 0, len(items)),
	}
	for _, it := range items {
		in.Items = append(in.Items, it.toInput())
	}

	created, err := s.CreateOrder(ctx, in)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "supplier order duplicated", "source_id", orderID, "id", created.ID)
	return created, nil
}

// GetOrderMovements lists the stock movements the order produced.
func (s *Service) GetOrderMovements(ctx context.Context, orderID id.ID) ([]inventory.StockMovement, error) {
	if _, err := s.repo.GetByID(ctx, orderID); err != nil {
		return nil, err
	}
	movements, err := s.movements.GetMovementsByReference(ctx, inventory.ReferenceSupplierOrder, orderID.String())
	if err != nil {
		return nil, fmt.Errorf("get movements: %w", err)
	}
	return movements, nil
}

// withOrderLock runs fn while holding the order's lock.
func (s *Service) withOrderLock(ctx context.Context, orderID id.ID, fn func(ctx context.Context) error) error {
	release, err := s.locker.Acquire(ctx, lock.OrderKey(orderID))
	if err != nil {
		if errors.Is(err, lock.ErrNotObtained) {
			return apperror.NewOrderLocked(orderID.String())
		}
		return apperror.NewInternal(fmt.Errorf("acquire order lock: %w", err))
	}
	defer release()
	return fn(ctx)
}

func (s *Service) publish(ctx context.Context, evts ...events.Event) {
	if s.publisher == nil || len(evts) == 0 {
		return
	}
	s.publisher.Publish(ctx, evts...)
}

func nextLineNo(items []OrderItem) int {
	last := 0
	for _, it := range items {
		if it.LineNo > last {
			last = it.LineNo
		}
	}
	return last + 1
}
