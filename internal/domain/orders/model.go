// Package orders provides supplier purchase orders: the order/item store,
// status transitions and the statistics derived from them.
package orders

import (
	"context"
	"strings"
	"time"

	"supplyhub/internal/core/apperror"
	"supplyhub/internal/core/entity"
	"supplyhub/internal/core/id"
	"supplyhub/internal/core/types"
	"supplyhub/internal/domain/inventory"
)

// Status is the lifecycle state of a supplier order.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusShipped   Status = "SHIPPED"
	StatusReceived  Status = "RECEIVED"
	StatusCancelled Status = "CANCELLED"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusPending, StatusConfirmed, StatusShipped, StatusReceived, StatusCancelled}

// ParseStatus accepts any letter case.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", apperror.NewValidation("unknown order status").
			WithDetail("field", "status").
			WithDetail("value", s)
	}
	return st, nil
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusShipped, StatusReceived, StatusCancelled:
		return true
	}
	return false
}

// IsClosed reports whether the order no longer accepts edits.
func (s Status) IsClosed() bool {
	return s == StatusReceived || s == StatusCancelled
}

// Order is a supplier purchase order.
type Order struct {
	entity.BaseDocument

	OrderNumber          string               `db:"order_number" json:"order_number"`
	SupplierID           inventory.SupplierID `db:"supplier_id" json:"supplier_id"`
	Status               Status               `db:"status" json:"status"`
	OrderDate            time.Time            `db:"order_date" json:"order_date"`
	ExpectedDeliveryDate *time.Time           `db:"expected_delivery_date" json:"expected_delivery_date,omitempty"`
	ActualDeliveryDate   *time.Time           `db:"actual_delivery_date" json:"actual_delivery_date,omitempty"`
	TotalAmount          types.Money          `db:"total_amount" json:"total_amount"`
	Notes                string               `db:"notes" json:"notes,omitempty"`
}

// NewOrder creates a PENDING order dated today.
func NewOrder(supplierID inventory.SupplierID) *Order {
	return &Order{
		BaseDocument: entity.NewBaseDocument(),
		SupplierID:   supplierID,
		Status:       StatusPending,
		OrderDate:    today(),
		TotalAmount:  types.Zero(),
	}
}

// Reference is what lot numbers and movements point back to.
func (o *Order) Reference() string {
	if o.OrderNumber != "" {
		return o.OrderNumber
	}
	return o.ID.String()
}

// CanModify rejects edits to received or cancelled orders.
func (o *Order) CanModify() error {
	if o.Status.IsClosed() {
		return apperror.NewInvalidTransition("supplier_order", string(o.Status)).
			WithDetail("order_id", o.ID.String())
	}
	return nil
}

// Validate implements entity.Validatable.
func (o *Order) Validate(ctx context.Context) error {
	if o.SupplierID <= 0 {
		return apperror.NewValidation("supplier is required").
			WithDetail("field", "supplier_id")
	}
	if !o.Status.IsValid() {
		return apperror.NewValidation("unknown order status").
			WithDetail("field", "status")
	}
	if o.OrderDate.IsZero() {
		return apperror.NewValidation("order date is required").
			WithDetail("field", "order_date")
	}
	if o.ExpectedDeliveryDate != nil && o.ExpectedDeliveryDate.Before(o.OrderDate) {
		return apperror.NewValidation("expected delivery date precedes order date").
			WithDetail("field", "expected_delivery_date")
	}
	return nil
}

// ApplyTotal sets TotalAmount to the sum of the item totals.
func (o *Order) ApplyTotal(items []OrderItem) types.Money {
	o.TotalAmount = SumTotals(items)
	return o.TotalAmount
}

// AppendNotes adds a note line, keeping previous notes.
func (o *Order) AppendNotes(note string) {
	note = strings.TrimSpace(note)
	if note == "" {
		return
	}
	if o.Notes == "" {
		o.Notes = note
		return
	}
	o.Notes = o.Notes + "\n" + note
}

// OrderItem is a line of a supplier order.
type OrderItem struct {
	ID               id.ID                `db:"id" json:"id"`
	OrderID          id.ID                `db:"order_id" json:"order_id"`
	LineNo           int                  `db:"line_no" json:"line_no"`
	ProductID        *inventory.ProductID `db:"product_id" json:"product_id,omitempty"`
	ProductName      string               `db:"product_name" json:"product_name,omitempty"`
	ProductReference string               `db:"product_reference" json:"product_reference,omitempty"`
	QuantityOrdered  types.Quantity       `db:"quantity_ordered" json:"quantity_ordered"`
	QuantityReceived types.Quantity       `db:"quantity_received" json:"quantity_received"`
	UnitPrice        types.Money          `db:"unit_price" json:"unit_price"`
	TotalPrice       types.Money          `db:"total_price" json:"total_price"`
	Notes            string               `db:"notes" json:"notes,omitempty"`
	CreatedAt        time.Time            `db:"created_at" json:"created_at"`
}

// Recalculate sets TotalPrice = QuantityOrdered * UnitPrice.
func (i *OrderItem) Recalculate() {
	i.TotalPrice = i.QuantityOrdered.Times(i.UnitPrice)
}

// HasProduct reports whether the item is bound to a catalog product.
func (i *OrderItem) HasProduct() bool {
	return i.ProductID != nil && *i.ProductID > 0
}

// SumTotals is the order total for a set of items.
func SumTotals(items []OrderItem) types.Money {
	total := types.Zero()
	for _, it := range items {
		total = total.Add(it.TotalPrice)
	}
	return total
}

// ItemInput is the caller-supplied content of an order line.
type ItemInput struct {
	ProductID        *inventory.ProductID `json:"product_id,omitempty"`
	ProductName      string               `json:"product_name,omitempty"`
	ProductReference string               `json:"product_reference,omitempty"`
	QuantityOrdered  types.Quantity       `json:"quantity_ordered"`
	UnitPrice        types.Money          `json:"unit_price"`
	Notes            string               `json:"notes,omitempty"`
}

// Validate checks the line in isolation; the product is not looked up.
func (in ItemInput) Validate(lineNo int) error {
	if (in.ProductID == nil || *in.ProductID <= 0) && strings.TrimSpace(in.ProductName) == "" {
		return apperror.NewValidation("product or product name is required").
			WithDetail("field", "items").
			WithDetail("line_no", lineNo)
	}
	if !in.QuantityOrdered.IsPositive() {
		return apperror.NewValidation("quantity must be positive").
			WithDetail("field", "items").
			WithDetail("line_no", lineNo)
	}
	if in.UnitPrice.IsNegative() {
		return apperror.NewValidation("unit price cannot be negative").
			WithDetail("field", "items").
			WithDetail("line_no", lineNo)
	}
	return nil
}

// toItem builds a new persisted line.
func (in ItemInput) toItem(orderID id.ID, lineNo int) *OrderItem {
	item := &OrderItem{
		ID:               id.New(),
		OrderID:          orderID,
		LineNo:           lineNo,
		ProductID:        in.ProductID,
		ProductName:      strings.TrimSpace(in.ProductName),
		ProductReference: strings.TrimSpace(in.ProductReference),
		QuantityOrdered:  in.QuantityOrdered,
		UnitPrice:        in.UnitPrice,
		Notes:            in.Notes,
		CreatedAt:        time.Now().UTC(),
	}
	if item.ProductID != nil && *item.ProductID <= 0 {
		item.ProductID = nil
	}
	item.Recalculate()
	return item
}

// toInput is used when duplicating an order.
func (i OrderItem) toInput() ItemInput {
	return ItemInput{
		ProductID:        i.ProductID,
		ProductName:      i.ProductName,
		ProductReference: i.ProductReference,
		QuantityOrdered:  i.QuantityOrdered,
		UnitPrice:        i.UnitPrice,
		Notes:            i.Notes,
	}
}

// today is the current UTC calendar day.
func today() time.Time {
	return DateOnly(time.Now().UTC())
}

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
