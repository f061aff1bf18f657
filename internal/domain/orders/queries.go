package orders

import (
	"context"
	"fmt"
	"time"

	"supplyhub/internal/core/apperror"
	"supplyhub/internal/core/id"
	"supplyhub/internal/core/types"
	"supplyhub/internal/domain/inventory"
	"supplyhub/pkg/logger"
)

// OrderView is an order enriched with supplier display fields.
type OrderView struct {
	*Order
	SupplierName    string `json:"supplier_name,omitempty"`
	SupplierContact string `json:"supplier_contact,omitempty"`
	SupplierPhone   string `json:"supplier_phone,omitempty"`
	SupplierEmail   string `json:"supplier_email,omitempty"`
}

// ItemView is an order line enriched with product display fields.
type ItemView struct {
	OrderItem
	ProductBarcode  string          `json:"product_barcode,omitempty"`
	ProductCategory string          `json:"product_category,omitempty"`
	CurrentStock    *types.Quantity `json:"current_stock,omitempty"`
}

// OrderDetails is a single order with its lines.
type OrderDetails struct {
	OrderView
	Items []ItemView `json:"items"`
}

// GetOrders lists orders matching the filter, newest order date first,
// with supplier display fields attached.
func (s *Service) GetOrders(ctx context.Context, filter ListFilter) ([]OrderView, error) {
	list, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	suppliers := s.supplierIndex(ctx)
	views := make([]OrderView, 0, len(list))
	for _, o := range list {
		views = append(views, newOrderView(o, suppliers))
	}
	return views, nil
}

// GetOrderDetails returns the order with its items. Items bound to a known
// product carry its display fields and current stock.
func (s *Service) GetOrderDetails(ctx context.Context, orderID id.ID) (*OrderDetails, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.GetItems(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get items: %w", err)
	}

	var supplier map[inventory.SupplierID]inventory.Supplier
	if sup, err := s.suppliers.GetByID(ctx, order.SupplierID); err == nil {
		supplier = map[inventory.SupplierID]inventory.Supplier{sup.ID: *sup}
	} else if !apperror.IsNotFound(err) {
		logger.Warn(ctx, "supplier lookup failed", "supplier_id", order.SupplierID, "error", err)
	}

	details := &OrderDetails{
		OrderView: newOrderView(order, supplier),
		Items:     make([]ItemView, 0, len(items)),
	}
	for _, it := range items {
		details.Items = append(details.Items, s.itemView(ctx, it))
	}
	return details, nil
}

func (s *Service) itemView(ctx context.Context, it OrderItem) ItemView {
	view := ItemView{OrderItem: it}
	if !it.HasProduct() {
		return view
	}

	p, err := s.products.GetByID(ctx, *it.ProductID)
	if err != nil {
		if !apperror.IsNotFound(err) {
			logger.Warn(ctx, "product lookup failed", "product_id", *it.ProductID, "error", err)
		}
		return view
	}

	if view.ProductName == "" {
		view.ProductName = p.Name
	}
	if view.ProductReference == "" {
		view.ProductReference = p.Reference
	}
	view.ProductBarcode = p.Barcode
	view.ProductCategory = p.Category
	stock := p.Stock
	view.CurrentStock = &stock
	return view
}

// supplierIndex loads the supplier directory once per listing. A failing
// directory only costs the display fields.
func (s *Service) supplierIndex(ctx context.Context) map[inventory.SupplierID]inventory.Supplier {
	all, err := s.suppliers.GetAll(ctx, inventory.SupplierFilter{})
	if err != nil {
		logger.Warn(ctx, "supplier directory unavailable", "error", err)
		return nil
	}
	idx := make(map[inventory.SupplierID]inventory.Supplier, len(all))
	for _, sup := range all {
		idx[sup.ID] = sup
	}
	return idx
}

func newOrderView(o *Order, suppliers map[inventory.SupplierID]inventory.Supplier) OrderView {
	view := OrderView{Order: o}
	if sup, ok := suppliers[o.SupplierID]; ok {
		view.SupplierName = sup.Name
		view.SupplierContact = sup.ContactName
		view.SupplierPhone = sup.Phone
		view.SupplierEmail = sup.Email
	}
	return view
}

// Statistics aggregates the orders of the trailing window.
type Statistics struct {
	PeriodStart time.Time      `json:"period_start"`
	PeriodEnd   time.Time      `json:"period_end"`
	TotalOrders int            `json:"total_orders"`
	ByStatus    map[Status]int `json:"by_status"`
	// TotalValue excludes cancelled orders.
	TotalValue types.Money `json:"total_value"`
	// PendingValue covers orders not yet received: PENDING, CONFIRMED, SHIPPED.
	PendingValue types.Money `json:"pending_value"`
}

// GetOrdersStatistics counts orders per status and sums their value over
// the trailing statistics window.
func (s *Service) GetOrdersStatistics(ctx context.Context) (*Statistics, error) {
	end := s.now()
	start := DateOnly(end.Add(-s.cfg.StatisticsWindow))

	list, err := s.repo.List(ctx, ListFilter{DateFrom: &start, DateTo: &end})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return computeStatistics(list, start, end), nil
}

func computeStatistics(list []*Order, start, end time.Time) *Statistics {
	stats := &Statistics{
		PeriodStart:  start,
		PeriodEnd:    end,
		ByStatus:     make(map[Status]int, len(Statuses)),
		TotalValue:   types.Zero(),
		PendingValue: types.Zero(),
	}
	for _, st := range Statuses {
		stats.ByStatus[st] = 0
	}

	for _, o := range list {
		stats.TotalOrders++
		stats.ByStatus[o.Status]++
		if o.Status != StatusCancelled {
			stats.TotalValue = stats.TotalValue.Add(o.TotalAmount)
		}
		switch o.Status {
		case StatusPending, StatusConfirmed, StatusShipped:
			stats.PendingValue = stats.PendingValue.Add(o.TotalAmount)
		}
	}
	return stats
}
