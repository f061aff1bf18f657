package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"supplyhub/internal/core/apperror"
	"supplyhub/internal/core/id"
	"supplyhub/internal/domain/orders"
)

const (
	ordersTable     = "supplier_orders"
	orderItemsTable = "supplier_order_items"
)

var (
	orderColumns = Columns[orders.Order]()
	itemColumns  = Columns[orders.OrderItem]()
)

var _ orders.Repository = (*OrderRepo)(nil)

// OrderRepo implements orders.Repository.
type OrderRepo struct {
	txm *TxManager
}

func NewOrderRepo(txm *TxManager) *OrderRepo {
	return &OrderRepo{txm: txm}
}

func (r *OrderRepo) Create(ctx context.Context, order *orders.Order) error {
	q := builder().Insert(ordersTable).SetMap(StructToMap(order))

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return translate(err, ordersTable, "insert")
	}
	return nil
}

func (r *OrderRepo) GetByID(ctx context.Context, orderID id.ID) (*orders.Order, error) {
	return r.get(ctx, orderID, false)
}

func (r *OrderRepo) GetForUpdate(ctx context.Context, orderID id.ID) (*orders.Order, error) {
	return r.get(ctx, orderID, true)
}

func (r *OrderRepo) get(ctx context.Context, orderID id.ID, forUpdate bool) (*orders.Order, error) {
	q := builder().
		Select(orderColumns...).
		From(ordersTable).
		Where(squirrel.Eq{"id": orderID})
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var order orders.Order
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &order, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("supplier_order", orderID.String())
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &order, nil
}

// Update writes the order under optimistic locking and advances its version.
func (r *OrderRepo) Update(ctx context.Context, order *orders.Order) error {
	now := time.Now().UTC()
	data := StructToMap(order, without(orderColumns, "id", "version", "created_at", "created_by")...)
	data["updated_at"] = now

	q := builder().
		Update(ordersTable).
		SetMap(data).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": order.ID}).
		Where(squirrel.Eq{"version": order.Version})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return translate(err, ordersTable, "update")
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("supplier_order", order.ID.String())
	}

	order.Version++
	order.UpdatedAt = now
	return nil
}

// Delete removes the order; items go with it through ON DELETE CASCADE.
func (r *OrderRepo) Delete(ctx context.Context, orderID id.ID) error {
	sql, args, err := builder().Delete(ordersTable).Where(squirrel.Eq{"id": orderID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return translate(err, ordersTable, "delete")
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("supplier_order", orderID.String())
	}
	return nil
}

func (r *OrderRepo) List(ctx context.Context, filter orders.ListFilter) ([]*orders.Order, error) {
	sql, args, err := listOrdersQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var list []*orders.Order
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &list, sql, args...); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return list, nil
}

// listOrdersQuery pushes the filter down; dates compare as calendar days.
func listOrdersQuery(filter orders.ListFilter) squirrel.SelectBuilder {
	q := builder().
		Select(orderColumns...).
		From(ordersTable).
		OrderBy("order_date DESC", "created_at DESC")

	if filter.SupplierID != nil {
		q = q.Where(squirrel.Eq{"supplier_id": *filter.SupplierID})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"order_date": orders.DateOnly(*filter.DateFrom)})
	}
	if filter.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"order_date": orders.DateOnly(*filter.DateTo)})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}
	return q
}

// --- Items ---

func (r *OrderRepo) GetItems(ctx context.Context, orderID id.ID) ([]orders.OrderItem, error) {
	sql, args, err := builder().
		Select(itemColumns...).
		From(orderItemsTable).
		Where(squirrel.Eq{"order_id": orderID}).
		OrderBy("line_no").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []orders.OrderItem
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("get items: %w", err)
	}
	return items, nil
}

func (r *OrderRepo) AddItem(ctx context.Context, item *orders.OrderItem) error {
	if id.IsNil(item.ID) {
		item.ID = id.New()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	sql, args, err := builder().Insert(orderItemsTable).SetMap(StructToMap(item)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return translate(err, orderItemsTable, "insert")
	}
	return nil
}

func (r *OrderRepo) UpdateItem(ctx context.Context, item *orders.OrderItem) error {
	data := StructToMap(item, without(itemColumns, "id", "order_id", "created_at")...)

	sql, args, err := builder().
		Update(orderItemsTable).
		SetMap(data).
		Where(squirrel.Eq{"id": item.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return translate(err, orderItemsTable, "update")
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("supplier_order_item", item.ID.String())
	}
	return nil
}

func (r *OrderRepo) DeleteItems(ctx context.Context, orderID id.ID) error {
	sql, args, err := builder().Delete(orderItemsTable).Where(squirrel.Eq{"order_id": orderID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return translate(err, orderItemsTable, "delete")
	}
	return nil
}
