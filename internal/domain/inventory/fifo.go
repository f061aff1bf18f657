package inventory

import (
	"sort"

	"supplyhub/internal/core/types"
)

// Draw is one step of a FIFO removal: take Quantity from Lot.
type Draw struct {
	Lot      StockLot
	Quantity types.Quantity
}

// RemovalPlan is the outcome of planning a FIFO removal.
// Nothing is written while planning; callers apply Draws only when
// Shortfall is zero.
type RemovalPlan struct {
	ProductID ProductID
	Requested types.Quantity
	Available types.Quantity
	Draws     []Draw
}

// Shortfall is requested minus what the plan can draw.
func (p RemovalPlan) Shortfall() types.Quantity {
	return p.Requested.SubClamped(p.Available)
}

// Satisfied reports whether the lots cover the requested quantity.
func (p RemovalPlan) Satisfied() bool {
	return p.Shortfall().IsZero()
}

// SortFIFO orders lots oldest first: purchase date, then creation time,
// then lot number so that the order is total.
func SortFIFO(lots []StockLot) {
	sort.SliceStable(lots, func(i, j int) bool {
		a, b := lots[i], lots[j]
		if !a.PurchaseDate.Equal(b.PurchaseDate) {
			return a.PurchaseDate.Before(b.PurchaseDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.LotNumber < b.LotNumber
	})
}

// PlanRemoval consumes lots oldest-first until qty is covered.
// Lots that are depleted or empty are ignored.
func PlanRemoval(productID ProductID, lots []StockLot, qty types.Quantity) RemovalPlan {
	usable := make([]StockLot, 0, len(lots))
	for _, l := range lots {
		if l.IsConsumable() {
			usable = append(usable, l)
		}
	}
	SortFIFO(usable)

	plan := RemovalPlan{ProductID: productID, Requested: qty}
	remaining := qty
	for _, l := range usable {
		plan.Available += l.Quantity
		if remaining.IsZero() {
			continue
		}
		take := remaining.Min(l.Quantity)
		plan.Draws = append(plan.Draws, Draw{Lot: l, Quantity: take})
		remaining -= take
	}
	return plan
}

// SumAvailable is the total quantity of consumable lots.
func SumAvailable(lots []StockLot) types.Quantity {
	var total types.Quantity
	for _, l := range lots {
		if l.IsConsumable() {
			total += l.Quantity
		}
	}
	return total
}

// AverageCost is the quantity-weighted purchase price of consumable lots.
func AverageCost(lots []StockLot) types.Money {
	totalQty := types.Zero()
	totalCost := types.Zero()
	for _, l := range lots {
		if !l.IsConsumable() {
			continue
		}
		q := l.Quantity.Decimal()
		totalQty = totalQty.Add(q)
		totalCost = totalCost.Add(l.PurchasePrice.Mul(q))
	}
	if totalQty.IsZero() {
		return types.Zero()
	}
	return totalCost.Div(totalQty).Round(2)
}
