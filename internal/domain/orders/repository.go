package orders

import (
	"context"
	"time"

	"supplyhub/internal/core/id"
	"supplyhub/internal/domain"
	"supplyhub/internal/domain/inventory"
)

// Repository defines storage operations for supplier orders and their items.
type Repository interface {
	Create(ctx context.Context, order *Order) error
	GetByID(ctx context.Context, orderID id.ID) (*Order, error)
	// GetForUpdate locks the order row until the transaction ends.
	GetForUpdate(ctx context.Context, orderID id.ID) (*Order, error)
	// Update writes the order if order.Version still matches storage and
	// advances order.Version on success.
	Update(ctx context.Context, order *Order) error
	// Delete removes the order and all of its items.
	Delete(ctx context.Context, orderID id.ID) error
	// List returns orders matching the filter, order_date descending.
	List(ctx context.Context, filter ListFilter) ([]*Order, error)

	GetItems(ctx context.Context, orderID id.ID) ([]OrderItem, error)
	AddItem(ctx context.Context, item *OrderItem) error
	UpdateItem(ctx context.Context, item *OrderItem) error
	DeleteItems(ctx context.Context, orderID id.ID) error
}

// ListFilter for filtering supplier orders.
// DateFrom and DateTo are inclusive calendar days.
type ListFilter struct {
	domain.ListFilter

	SupplierID *inventory.SupplierID
	Status     *Status
	DateFrom   *time.Time
	DateTo     *time.Time
}

// Matches applies the filter to a single order. Storage backends that
// cannot push the filter down use it directly.
func (f ListFilter) Matches(o *Order) bool {
	if f.SupplierID != nil && o.SupplierID != *f.SupplierID {
		return false
	}
	if f.Status != nil && o.Status != *f.Status {
		return false
	}
	day := DateOnly(o.OrderDate)
	if f.DateFrom != nil && day.Before(DateOnly(*f.DateFrom)) {
		return false
	}
	if f.DateTo != nil && day.After(DateOnly(*f.DateTo)) {
		return false
	}
	return true
}

// Less orders by order_date descending, newest creation first on ties.
func Less(a, b *Order) bool {
	if !a.OrderDate.Equal(b.OrderDate) {
		return a.OrderDate.After(b.OrderDate)
	}
	return a.CreatedAt.After(b.CreatedAt)
}
