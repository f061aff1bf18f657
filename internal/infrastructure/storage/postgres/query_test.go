package postgres

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplyhub/internal/domain"
	"supplyhub/internal/domain/inventory"
	"supplyhub/internal/domain/orders"
)

func TestListOrdersQuery(t *testing.T) {
	cols := strings.Join(orderColumns, ", ")
	supplier := inventory.SupplierID(3)
	status := orders.StatusConfirmed
	from := time.Date(2026, 3, 1, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		filter   orders.ListFilter
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "no filter",
			filter:  orders.ListFilter{},
			wantSQL: "SELECT " + cols + " FROM supplier_orders ORDER BY order_date DESC, created_at DESC",
		},
		{
			name:     "supplier and status",
			filter:   orders.ListFilter{SupplierID: &supplier, Status: &status},
			wantSQL:  "SELECT " + cols + " FROM supplier_orders WHERE supplier_id = $1 AND status = $2 ORDER BY order_date DESC, created_at DESC",
			wantArgs: []any{supplier, status},
		},
		{
			name:     "date from is truncated to the day",
			filter:   orders.ListFilter{DateFrom: &from},
			wantSQL:  "SELECT " + cols + " FROM supplier_orders WHERE order_date >= $1 ORDER BY order_date DESC, created_at DESC",
			wantArgs: []any{time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		},
		{
			name:    "paging",
			filter:  orders.ListFilter{ListFilter: domain.ListFilter{Limit: 10, Offset: 20}},
			wantSQL: "SELECT " + cols + " FROM supplier_orders ORDER BY order_date DESC, created_at DESC LIMIT 10 OFFSET 20",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := listOrdersQuery(tt.filter).ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			if len(tt.wantArgs) == 0 {
				assert.Empty(t, args)
				return
			}
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestProductLotsQuery(t *testing.T) {
	cols := strings.Join(lotColumns, ", ")

	sql, args, err := productLotsQuery(7, inventory.LotQuery{ForUpdate: true}).ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT "+cols+" FROM stock_lots WHERE product_id = $1 AND (status = $2 AND quantity > $3) "+
			"ORDER BY purchase_date, created_at, lot_number FOR UPDATE",
		sql)
	assert.Equal(t, []any{inventory.ProductID(7), inventory.LotAvailable, 0}, args)

	sql, args, err = productLotsQuery(7, inventory.LotQuery{IncludeEmpty: true}).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT "+cols+" FROM stock_lots WHERE product_id = $1 ORDER BY purchase_date, created_at, lot_number", sql)
	assert.Equal(t, []any{inventory.ProductID(7)}, args)
}
