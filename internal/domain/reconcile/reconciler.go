package reconcile

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"supplyhub/internal/core/apperror"
	"supplyhub/internal/core/id"
	"supplyhub/internal/core/tx"
	"supplyhub/internal/core/types"
	"supplyhub/internal/domain/inventory"
	"supplyhub/internal/domain/orders"
	"supplyhub/pkg/logger"
)

var tracer = otel.Tracer("supplyhub/reconcile")

// Reconciler applies the stock effect of order status transitions to the
// lot ledger. It implements orders.Reconciler.
type Reconciler struct {
	ledger    inventory.LotLedger
	txManager tx.Manager
	policy    Policy
	resolver  *ProductResolver
	patcher   *DirectPatcher
	cfg       Config
	now       func() time.Time
}

// Deps are the collaborators of a Reconciler.
type Deps struct {
	Products  inventory.ProductCatalog
	Ledger    inventory.LotLedger
	Items     ItemWriter
	TxManager tx.Manager
	// Policy defaults to DefaultPolicy.
	Policy Policy
}

// New creates a Reconciler.
func New(deps Deps, cfg Config) *Reconciler {
	policy := deps.Policy
	if policy == nil {
		policy = DefaultPolicy{}
	}
	return &Reconciler{
		ledger:    deps.Ledger,
		txManager: deps.TxManager,
		policy:    policy,
		resolver:  NewProductResolver(deps.Products, deps.Items, cfg),
		patcher:   NewDirectPatcher(deps.Products),
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the clock used for lot purchase dates.
func (r *Reconciler) SetClock(now func() time.Time) {
	r.now = now
}

// Reconcile implements orders.Reconciler.
func (r *Reconciler) Reconcile(ctx context.Context, order *orders.Order, items []orders.OrderItem, from, to orders.Status) (*orders.Outcome, error) {
	action, err := r.policy.Decide(from, to)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	if action == orders.ActionNone {
		return orders.NoOutcome(), nil
	}

	ctx, span := tracer.Start(ctx, "reconcile."+string(action), trace.WithAttributes(
		attribute.String("order.id", order.ID.String()),
		attribute.Int("order.items", len(items)),
	))
	defer span.End()

	var outcome *orders.Outcome
	switch action {
	case orders.ActionAddStock:
		outcome, err = r.addStock(ctx, order, items)
	case orders.ActionRemoveStock:
		outcome, err = r.removeStock(ctx, order, items)
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return outcome, nil
}

func newOutcome(action orders.Action) *orders.Outcome {
	return &orders.Outcome{
		Action:     action,
		StockAfter: make(map[inventory.ProductID]types.Quantity),
	}
}

// addStock opens one lot per bound line, priced at the line's unit price.
func (r *Reconciler) addStock(ctx context.Context, order *orders.Order, items []orders.OrderItem) (*orders.Outcome, error) {
	out := newOutcome(orders.ActionAddStock)

	if _, err := r.resolver.EnsureProductIDs(ctx, order, items); err != nil {
		return nil, err
	}

	for i := range items {
		item := &items[i]
		if !item.HasProduct() {
			out.SkippedItems = append(out.SkippedItems, item.ID)
			logger.Warn(ctx, "order line without product skipped", "order_id", order.ID, "item_id", item.ID)
			continue
		}
		productID := *item.ProductID

		var change orders.LotChange
		var movement inventory.StockMovement
		var stock types.Quantity
		err := r.txManager.RunNested(ctx, func(ctx context.Context) error {
			var err error
			change, movement, stock, err = r.openLot(ctx, order, item)
			return err
		})
		switch {
		case err == nil:
			out.Lots = append(out.Lots, change)
			out.Movements = append(out.Movements, movement)
			out.StockAfter[productID] = stock
		case apperror.IsNotFound(err):
			out.SkippedItems = append(out.SkippedItems, item.ID)
			out.ReconciliationNeeded = true
			logger.Warn(ctx, "order line product no longer exists", "order_id", order.ID, "product_id", productID)
		default:
			if err := r.fallback(ctx, out, order, productID, item.QuantityOrdered, err); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func (r *Reconciler) openLot(ctx context.Context, order *orders.Order, item *orders.OrderItem) (orders.LotChange, inventory.StockMovement, types.Quantity, error) {
	productID := *item.ProductID
	if err := r.ledger.EnsureProductHasLots(ctx, productID); err != nil {
		return orders.LotChange{}, inventory.StockMovement{}, 0, err
	}

	now := r.now()
	supplierID := order.SupplierID
	lot := &inventory.StockLot{
		ID:              id.New(),
		ProductID:       productID,
		LotNumber:       inventory.LotNumber(now, order.Reference(), productID),
		Quantity:        item.QuantityOrdered,
		InitialQuantity: item.QuantityOrdered,
		PurchasePrice:   item.UnitPrice,
		PurchaseDate:    now,
		SupplierID:      &supplierID,
		Status:          inventory.LotAvailable,
		Notes:           "Supplier order " + order.Reference(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := r.ledger.CreateLot(ctx, lot); err != nil {
		return orders.LotChange{}, inventory.StockMovement{}, 0, fmt.Errorf("create lot: %w", err)
	}

	lotID := lot.ID
	movement := inventory.StockMovement{
		ID:            id.New(),
		ProductID:     productID,
		LotID:         &lotID,
		MovementType:  inventory.MovementIn,
		Quantity:      item.QuantityOrdered,
		UnitCost:      item.UnitPrice,
		ReferenceType: inventory.ReferenceSupplierOrder,
		ReferenceID:   order.ID.String(),
		Notes:         "Receipt for order " + order.Reference(),
		CreatedAt:     now,
	}
	if err := r.ledger.RecordMovement(ctx, &movement); err != nil {
		return orders.LotChange{}, inventory.StockMovement{}, 0, fmt.Errorf("record movement: %w", err)
	}

	stock, err := r.ledger.SyncProductStock(ctx, productID)
	if err != nil {
		return orders.LotChange{}, inventory.StockMovement{}, 0, fmt.Errorf("sync stock: %w", err)
	}

	change := orders.LotChange{
		LotID:     lot.ID,
		LotNumber: lot.LotNumber,
		ProductID: productID,
		Delta:     item.QuantityOrdered,
		Remaining: lot.Quantity,
	}
	return change, movement, stock, nil
}

// removeStock takes back, oldest lot first, what the order added. Lines
// sharing a product are removed together. A shortfall on any product
// aborts the whole transition unless partial removal is enabled.
func (r *Reconciler) removeStock(ctx context.Context, order *orders.Order, items []orders.OrderItem) (*orders.Outcome, error) {
	out := newOutcome(orders.ActionRemoveStock)

	var productIDs []inventory.ProductID
	requested := make(map[inventory.ProductID]types.Quantity)
	for i := range items {
		item := &items[i]
		if !item.HasProduct() {
			out.SkippedItems = append(out.SkippedItems, item.ID)
			continue
		}
		pid := *item.ProductID
		if _, seen := requested[pid]; !seen {
			productIDs = append(productIDs, pid)
		}
		requested[pid] += item.QuantityOrdered
	}

	for _, pid := range productIDs {
		qty := requested[pid]

		var lots []orders.LotChange
		var movements []inventory.StockMovement
		var stock, missing types.Quantity
		err := r.txManager.RunNested(ctx, func(ctx context.Context) error {
			var err error
			lots, movements, stock, missing, err = r.drainLots(ctx, order, pid, qty)
			return err
		})
		switch {
		case err == nil:
			out.Lots = append(out.Lots, lots...)
			out.Movements = append(out.Movements, movements...)
			out.StockAfter[pid] = stock
			if missing.IsPositive() {
				out.Shortfalls = append(out.Shortfalls, orders.Shortfall{
					ProductID: pid,
					Requested: qty,
					Removed:   qty - missing,
					Missing:   missing,
				})
				out.ReconciliationNeeded = true
				logger.Warn(ctx, "stock removal committed short",
					"order_id", order.ID,
					"product_id", pid,
					"requested", qty.String(),
					"shortfall", missing.String())
			}
		case apperror.IsInsufficientStock(err):
			return nil, err
		case apperror.IsNotFound(err):
			out.ReconciliationNeeded = true
			logger.Warn(ctx, "order line product no longer exists", "order_id", order.ID, "product_id", pid)
		default:
			if err := r.fallback(ctx, out, order, pid, qty.Neg(), err); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func (r *Reconciler) drainLots(ctx context.Context, order *orders.Order, productID inventory.ProductID, qty types.Quantity) ([]orders.LotChange, []inventory.StockMovement, types.Quantity, types.Quantity, error) {
	if err := r.ledger.EnsureProductHasLots(ctx, productID); err != nil {
		return nil, nil, 0, 0, err
	}

	lots, err := r.ledger.GetProductLots(ctx, productID, inventory.LotQuery{ForUpdate: true})
	if err != nil {
		return nil, nil, 0, 0, fmt.Errorf("get lots: %w", err)
	}

	plan := inventory.PlanRemoval(productID, lots, qty)
	if !plan.Satisfied() && !r.cfg.PartialRemoval {
		return nil, nil, 0, 0, apperror.NewInsufficientStock(productID, plan.Requested.Float64(), plan.Available.Float64()).
			WithDetail("order_id", order.ID.String())
	}

	now := r.now()
	changes := make([]orders.LotChange, 0, len(plan.Draws))
	movements := make([]inventory.StockMovement, 0, len(plan.Draws))
	for _, d := range plan.Draws {
		lot, err := r.ledger.ConsumeLot(ctx, d.Lot.ID, d.Quantity)
		if err != nil {
			return nil, nil, 0, 0, fmt.Errorf("consume lot %s: %w", d.Lot.LotNumber, err)
		}

		lotID := lot.ID
		m := inventory.StockMovement{
			ID:            id.New(),
			ProductID:     productID,
			LotID:         &lotID,
			MovementType:  inventory.MovementOut,
			Quantity:      d.Quantity,
			UnitCost:      lot.PurchasePrice,
			ReferenceType: inventory.ReferenceSupplierOrder,
			ReferenceID:   order.ID.String(),
			Notes:         "Reversal for order " + order.Reference(),
			CreatedAt:     now,
		}
		if err := r.ledger.RecordMovement(ctx, &m); err != nil {
			return nil, nil, 0, 0, fmt.Errorf("record movement: %w", err)
		}

		movements = append(movements, m)
		changes = append(changes, orders.LotChange{
			LotID:     lot.ID,
			LotNumber: lot.LotNumber,
			ProductID: productID,
			Delta:     d.Quantity.Neg(),
			Remaining: lot.Quantity,
		})
	}

	stock, err := r.ledger.SyncProductStock(ctx, productID)
	if err != nil {
		return nil, nil, 0, 0, fmt.Errorf("sync stock: %w", err)
	}
	return changes, movements, stock, plan.Shortfall(), nil
}

// fallback patches product stock after the ledger failed, or returns the
// ledger error when patching is disabled or the error is a domain one.
func (r *Reconciler) fallback(ctx context.Context, out *orders.Outcome, order *orders.Order, productID inventory.ProductID, delta types.Quantity, cause error) error {
	if !r.cfg.DirectPatchFallback || apperror.IsBusiness(cause) {
		return cause
	}

	logger.Error(ctx, "lot ledger failed, patching product stock",
		"order_id", order.ID,
		"product_id", productID,
		"error", cause)

	patch, err := r.patcher.UpdateProductStockDirectly(ctx, productID, delta,
		fmt.Sprintf("order %s: %v", order.Reference(), cause))
	if err != nil {
		return fmt.Errorf("direct stock patch after ledger failure (%v): %w", cause, err)
	}

	out.DirectPatches = append(out.DirectPatches, *patch)
	out.StockAfter[productID] = patch.NewStock
	out.ReconciliationNeeded = true
	return nil
}

var _ orders.Reconciler = (*Reconciler)(nil)
