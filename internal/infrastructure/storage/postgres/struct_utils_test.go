package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"supplyhub/internal/core/types"
	"supplyhub/internal/domain/inventory"
	"supplyhub/internal/domain/orders"
)

func TestColumns_FlattensEmbedded(t *testing.T) {
	cols := Columns[orders.Order]()

	assert.Equal(t, []string{"id", "version", "created_at", "updated_at", "created_by"}, cols[:5])
	assert.Contains(t, cols, "order_number")
	assert.Contains(t, cols, "total_amount")
	assert.NotContains(t, cols, "BaseDocument")
}

func TestStructToMap(t *testing.T) {
	o := orders.NewOrder(3)
	o.OrderNumber = "PO-2026-000001"
	o.TotalAmount = types.MustMoney("12.50")

	m := StructToMap(o)

	assert.Equal(t, o.ID, m["id"])
	assert.Equal(t, 1, m["version"])
	assert.Equal(t, inventory.SupplierID(3), m["supplier_id"])
	assert.Equal(t, "PO-2026-000001", m["order_number"])
	assert.True(t, types.MustMoney("12.5").Equal(m["total_amount"].(types.Money)))
	assert.Nil(t, m["expected_delivery_date"])
}

func TestStructToMap_Only(t *testing.T) {
	p := inventory.Product{ID: 7, Name: "Miel", Stock: types.NewQuantity(2), CreatedAt: time.Now()}

	m := StructToMap(&p, "name", "stock")

	assert.Len(t, m, 2)
	assert.Equal(t, "Miel", m["name"])
	assert.Equal(t, types.NewQuantity(2), m["stock"])
}

func TestWithout(t *testing.T) {
	assert.Equal(t, []string{"a", "c"}, without([]string{"a", "b", "c"}, "b"))
}
