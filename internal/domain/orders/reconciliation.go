package orders

import (
	"context"

	"supplyhub/internal/core/id"
	"supplyhub/internal/core/types"
	"supplyhub/internal/domain/inventory"
)

// Action is the inventory effect of a status transition.
type Action string

const (
	ActionNone        Action = "NONE"
	ActionAddStock    Action = "ADD_STOCK"
	ActionRemoveStock Action = "REMOVE_STOCK"
)

// Reconciler keeps inventory consistent with an order's status.
// It runs inside the status-change transaction: an error rolls the
// status change back.
type Reconciler interface {
	Reconcile(ctx context.Context, order *Order, items []OrderItem, from, to Status) (*Outcome, error)
}

// LotChange describes one lot touched by reconciliation.
type LotChange struct {
	LotID     id.ID               `json:"lot_id"`
	LotNumber string              `json:"lot_number"`
	ProductID inventory.ProductID `json:"product_id"`
	// Delta is positive for additions, negative for consumption.
	Delta     types.Quantity `json:"delta"`
	Remaining types.Quantity `json:"remaining"`
}

// DirectPatch records a stock change that bypassed the lot ledger.
type DirectPatch struct {
	ProductID     inventory.ProductID `json:"product_id"`
	Delta         types.Quantity      `json:"delta"`
	PreviousStock types.Quantity      `json:"previous_stock"`
	NewStock      types.Quantity      `json:"new_stock"`
	Reason        string              `json:"reason"`
}

// Shortfall records a removal the lots could only partly cover.
type Shortfall struct {
	ProductID inventory.ProductID `json:"product_id"`
	Requested types.Quantity      `json:"requested"`
	Removed   types.Quantity      `json:"removed"`
	Missing   types.Quantity      `json:"shortfall"`
}

// Outcome is the result of reconciling one status transition.
type Outcome struct {
	Action        Action                    `json:"action"`
	Lots          []LotChange               `json:"lots,omitempty"`
	Movements     []inventory.StockMovement `json:"movements,omitempty"`
	DirectPatches []DirectPatch             `json:"direct_patches,omitempty"`
	// Shortfalls are removals committed short of the requested quantity.
	Shortfalls []Shortfall `json:"shortfalls,omitempty"`
	// SkippedItems are lines without a product that could not be reconciled.
	SkippedItems []id.ID `json:"skipped_items,omitempty"`
	// StockAfter is the product stock once reconciliation finished.
	StockAfter map[inventory.ProductID]types.Quantity `json:"stock_after,omitempty"`
	// ReconciliationNeeded is set when product stock no longer matches
	// the lot ledger and an operator has to look at it.
	ReconciliationNeeded bool `json:"reconciliation_needed"`
}

// NoOutcome is returned for transitions without inventory effect.
func NoOutcome() *Outcome {
	return &Outcome{Action: ActionNone}
}

// MovementReader lists the stock movements an order produced.
type MovementReader interface {
	GetMovementsByReference(ctx context.Context, refType, refID string) ([]inventory.StockMovement, error)
}
