package local

import (
	"context"
	"slices"
	"time"

	"supplyhub/internal/core/apperror"
	"supplyhub/internal/core/id"
	"supplyhub/internal/domain"
	"supplyhub/internal/domain/orders"
)

// OrderRepo implements orders.Repository over the local store.
type OrderRepo struct {
	store *Store
}

// NewOrderRepo creates an order repository.
func NewOrderRepo(store *Store) *OrderRepo {
	return &OrderRepo{store: store}
}

var _ orders.Repository = (*OrderRepo)(nil)

const orderEntity = "supplier_order"

func (r *OrderRepo) Create(ctx context.Context, order *orders.Order) error {
	return r.store.write(ctx, func(st *state) error {
		if _, exists := st.orders[order.ID]; exists {
			return apperror.NewDuplicate(orderEntity, "id", order.ID.String())
		}
		if order.OrderNumber != "" {
			for _, o := range st.orders {
				if o.OrderNumber == order.OrderNumber {
					return apperror.NewDuplicate(orderEntity, "order_number", order.OrderNumber)
				}
			}
		}
		st.orders[order.ID] = *order
		return nil
	})
}

func (r *OrderRepo) GetByID(ctx context.Context, orderID id.ID) (*orders.Order, error) {
	var out orders.Order
	err := r.store.read(ctx, func(st *state) error {
		o, ok := st.orders[orderID]
		if !ok {
			return apperror.NewNotFound(orderEntity, orderID.String())
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetForUpdate is GetByID: transactions are already serialised.
func (r *OrderRepo) GetForUpdate(ctx context.Context, orderID id.ID) (*orders.Order, error) {
	return r.GetByID(ctx, orderID)
}

func (r *OrderRepo) Update(ctx context.Context, order *orders.Order) error {
	return r.store.write(ctx, func(st *state) error {
		stored, ok := st.orders[order.ID]
		if !ok {
			return apperror.NewNotFound(orderEntity, order.ID.String())
		}
		if stored.Version != order.Version {
			return apperror.NewConcurrentModification(orderEntity, order.ID.String())
		}

		order.Version++
		order.UpdatedAt = time.Now().UTC()
		st.orders[order.ID] = *order
		return nil
	})
}

func (r *OrderRepo) Delete(ctx context.Context, orderID id.ID) error {
	return r.store.write(ctx, func(st *state) error {
		if _, ok := st.orders[orderID]; !ok {
			return apperror.NewNotFound(orderEntity, orderID.String())
		}
		delete(st.orders, orderID)
		for itemID, it := range st.items {
			if it.OrderID == orderID {
				delete(st.items, itemID)
			}
		}
		return nil
	})
}

func (r *OrderRepo) List(ctx context.Context, filter orders.ListFilter) ([]*orders.Order, error) {
	var out []*orders.Order
	err := r.store.read(ctx, func(st *state) error {
		for _, o := range st.orders {
			if filter.Matches(&o) {
				out = append(out, &o)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(out, func(a, b *orders.Order) int {
		switch {
		case orders.Less(a, b):
			return -1
		case orders.Less(b, a):
			return 1
		}
		return 0
	})

	return domain.Page(out, filter.ListFilter), nil
}

func (r *OrderRepo) GetItems(ctx context.Context, orderID id.ID) ([]orders.OrderItem, error) {
	var out []orders.OrderItem
	err := r.store.read(ctx, func(st *state) error {
		for _, it := range st.items {
			if it.OrderID == orderID {
				out = append(out, it)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, b orders.OrderItem) int { return a.LineNo - b.LineNo })
	return out, nil
}

func (r *OrderRepo) AddItem(ctx context.Context, item *orders.OrderItem) error {
	if id.IsNil(item.ID) {
		item.ID = id.New()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	return r.store.write(ctx, func(st *state) error {
		if _, ok := st.orders[item.OrderID]; !ok {
			return apperror.NewNotFound(orderEntity, item.OrderID.String())
		}
		st.items[item.ID] = *item
		return nil
	})
}

func (r *OrderRepo) UpdateItem(ctx context.Context, item *orders.OrderItem) error {
	return r.store.write(ctx, func(st *state) error {
		if _, ok := st.items[item.ID]; !ok {
			return apperror.NewNotFound("supplier_order_item", item.ID.String())
		}
		st.items[item.ID] = *item
		return nil
	})
}

func (r *OrderRepo) DeleteItems(ctx context.Context, orderID id.ID) error {
	return r.store.write(ctx, func(st *state) error {
		for itemID, it := range st.items {
			if it.OrderID == orderID {
				delete(st.items, itemID)
			}
		}
		return nil
	})
}
