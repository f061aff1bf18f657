package inventory

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplyhub/internal/core/id"
	"supplyhub/internal/core/types"
)

func lot(number string, date time.Time, qty int64, price string) StockLot {
	return StockLot{
		ID:            id.New(),
		ProductID:     7,
		LotNumber:     number,
		Quantity:      types.NewQuantity(qty),
		PurchasePrice: types.MustMoney(price),
		PurchaseDate:  date,
		Status:        LotAvailable,
	}
}

func TestPlanRemoval_OldestLotFirst(t *testing.T) {
	d1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 5)
	// newer lot listed first to make sure ordering comes from the planner
	lots := []StockLot{lot("B", d2, 5, "2"), lot("A", d1, 3, "1")}

	plan := PlanRemoval(7, lots, types.NewQuantity(4))

	require.True(t, plan.Satisfied())
	require.Len(t, plan.Draws, 2)
	assert.Equal(t, "A", plan.Draws[0].Lot.LotNumber)
	assert.Equal(t, types.NewQuantity(3), plan.Draws[0].Quantity)
	assert.Equal(t, "B", plan.Draws[1].Lot.LotNumber)
	assert.Equal(t, types.NewQuantity(1), plan.Draws[1].Quantity)
}

func TestPlanRemoval_Shortfall(t *testing.T) {
	d := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	lots := []StockLot{lot("A", d, 3, "1"), lot("B", d.AddDate(0, 0, 1), 2, "1")}

	plan := PlanRemoval(7, lots, types.NewQuantity(10))

	assert.False(t, plan.Satisfied())
	assert.Equal(t, types.NewQuantity(5), plan.Available)
	assert.Equal(t, types.NewQuantity(5), plan.Shortfall())
	assert.Len(t, plan.Draws, 2)
}

func TestPlanRemoval_SkipsDepletedAndEmpty(t *testing.T) {
	d := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	depleted := lot("OLD", d.AddDate(0, 0, -10), 4, "1")
	depleted.Status = LotDepleted
	empty := lot("EMPTY", d.AddDate(0, 0, -5), 0, "1")
	fresh := lot("NEW", d, 6, "1")

	plan := PlanRemoval(7, []StockLot{depleted, empty, fresh}, types.NewQuantity(2))

	require.Len(t, plan.Draws, 1)
	assert.Equal(t, "NEW", plan.Draws[0].Lot.LotNumber)
	assert.Equal(t, types.NewQuantity(6), plan.Available)
}

func TestSortFIFO_TieBreaks(t *testing.T) {
	d := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	a := lot("LOT-2", d, 1, "1")
	b := lot("LOT-1", d, 1, "1")
	c := lot("LOT-0", d, 1, "1")
	c.CreatedAt = d.Add(time.Hour)

	lots := []StockLot{c, a, b}
	SortFIFO(lots)

	assert.Equal(t, []string{"LOT-1", "LOT-2", "LOT-0"},
		[]string{lots[0].LotNumber, lots[1].LotNumber, lots[2].LotNumber})
}

func TestStockLot_Consume(t *testing.T) {
	l := lot("A", time.Now(), 3, "1")

	l.Consume(types.NewQuantity(1))
	assert.Equal(t, LotAvailable, l.Status)
	assert.Equal(t, types.NewQuantity(2), l.Quantity)

	l.Consume(types.NewQuantity(2))
	assert.Equal(t, LotDepleted, l.Status)
	assert.False(t, l.IsConsumable())
}

func TestAverageCost(t *testing.T) {
	d := time.Now()
	lots := []StockLot{lot("A", d, 2, "10"), lot("B", d, 6, "20")}

	assert.True(t, types.MustMoney("17.5").Equal(AverageCost(lots)))
	assert.True(t, AverageCost(nil).IsZero())
	assert.Equal(t, types.NewQuantity(8), SumAvailable(lots))
}

func TestLotNumber(t *testing.T) {
	d := time.Date(2026, 5, 9, 14, 0, 0, 0, time.UTC)

	assert.Equal(t, "LOT-20260509-000042-007", LotNumber(d, "PO-2026-000042", 7))
	assert.Equal(t, "LOT-20260509-AB-1234", LotNumber(d, "AB", 1234))
}

func TestProductID_UnmarshalJSON(t *testing.T) {
	var payload struct {
		A ProductID  `json:"a"`
		B ProductID  `json:"b"`
		S SupplierID `json:"s"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 7, "b": " 12 ", "s": "3"}`), &payload))

	assert.Equal(t, ProductID(7), payload.A)
	assert.Equal(t, ProductID(12), payload.B)
	assert.Equal(t, SupplierID(3), payload.S)

	var bad ProductID
	assert.Error(t, json.Unmarshal([]byte(`"seven"`), &bad))
}
