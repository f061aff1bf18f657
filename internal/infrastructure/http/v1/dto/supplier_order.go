package dto

import (
	"supplyhub/internal/core/id"
	"supplyhub/internal/core/types"
	"supplyhub/internal/domain/inventory"
	"supplyhub/internal/domain/orders"
)

// OrderItemRequest is one order line in a request body. product_id may be
// a number or a numeric string.
type OrderItemRequest struct {
	ProductID        *inventory.ProductID `json:"product_id"`
	ProductName      string               `json:"product_name"`
	ProductReference string               `json:"product_reference"`
	QuantityOrdered  types.Quantity       `json:"quantity_ordered"`
	UnitPrice        types.Money          `json:"unit_price"`
	Notes            string               `json:"notes"`
}

// ToInput converts to the domain input.
func (r OrderItemRequest) ToInput() orders.ItemInput {
	return orders.ItemInput{
		ProductID:        r.ProductID,
		ProductName:      r.ProductName,
		ProductReference: r.ProductReference,
		QuantityOrdered:  r.QuantityOrdered,
		UnitPrice:        r.UnitPrice,
		Notes:            r.Notes,
	}
}

func itemInputs(items []OrderItemRequest) []orders.ItemInput {
	if items == nil {
		return nil
	}
	out := make([]orders.ItemInput, 0, len(items))
	for _, it := range items {
		out = append(out, it.ToInput())
	}
	return out
}

// CreateSupplierOrderRequest for creating an order.
type CreateSupplierOrderRequest struct {
	SupplierID           inventory.SupplierID `json:"supplier_id" binding:"required"`
	OrderDate            *Date                `json:"order_date"`
	ExpectedDeliveryDate *Date                `json:"expected_delivery_date"`
	Notes                string               `json:"notes"`
	CreatedBy            string               `json:"created_by"`
	Items                []OrderItemRequest   `json:"items"`
}

// ToInput converts to the domain input.
func (r CreateSupplierOrderRequest) ToInput() orders.CreateInput {
	in := orders.CreateInput{
		SupplierID:           r.SupplierID,
		OrderDate:            r.OrderDate.Ptr(),
		ExpectedDeliveryDate: r.ExpectedDeliveryDate.Ptr(),
		Notes:                r.Notes,
		CreatedBy:            r.CreatedBy,
		Items:                itemInputs(r.Items),
	}
	if in.Items == nil {
		in.Items = []orders.ItemInput{}
	}
	return in
}

// UpdateSupplierOrderRequest patches an order. An items array, even an
// empty one, replaces every line.
type UpdateSupplierOrderRequest struct {
	SupplierID           *inventory.SupplierID `json:"supplier_id"`
	OrderDate            *Date                 `json:"order_date"`
	ExpectedDeliveryDate *Date                 `json:"expected_delivery_date"`
	Notes                *string               `json:"notes"`
	Items                *[]OrderItemRequest   `json:"items"`
}

// ToInput converts to the domain input.
func (r UpdateSupplierOrderRequest) ToInput() orders.UpdateInput {
	in := orders.UpdateInput{
		SupplierID:           r.SupplierID,
		OrderDate:            r.OrderDate.Ptr(),
		ExpectedDeliveryDate: r.ExpectedDeliveryDate.Ptr(),
		Notes:                r.Notes,
	}
	if r.Items != nil {
		in.Items = itemInputs(*r.Items)
		if in.Items == nil {
			in.Items = []orders.ItemInput{}
		}
	}
	return in
}

// UpdateStatusRequest moves an order to another status.
// Status is matched case-insensitively.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}

// ReceiptRequest is the received quantity of one line.
type ReceiptRequest struct {
	ItemID           id.ID          `json:"item_id" binding:"required"`
	QuantityReceived types.Quantity `json:"quantity_received"`
}

// ReceiveOrderRequest records a delivery. Lines not listed are received in full.
type ReceiveOrderRequest struct {
	Items []ReceiptRequest `json:"items"`
	Notes string           `json:"notes"`
}

// ToReceipts converts to the domain receipts.
func (r ReceiveOrderRequest) ToReceipts() []orders.Receipt {
	out := make([]orders.Receipt, 0, len(r.Items))
	for _, it := range r.Items {
		out = append(out, orders.Receipt{ItemID: it.ItemID, Quantity: it.QuantityReceived})
	}
	return out
}

// CreatedOrderResponse identifies a new order.
type CreatedOrderResponse struct {
	ID          string `json:"id"`
	OrderNumber string `json:"order_number"`
}

// FromCreatedOrder maps the domain result.
func FromCreatedOrder(c *orders.CreatedOrder) CreatedOrderResponse {
	return CreatedOrderResponse{ID: c.ID.String(), OrderNumber: c.OrderNumber}
}
