package dto

import (
	"supplyhub/internal/core/types"
	"supplyhub/internal/domain/inventory"
)

// CreateProductRequest adds a catalog product. A positive id keeps the
// host catalog's numbering.
type CreateProductRequest struct {
	ID            inventory.ProductID   `json:"id"`
	Name          string                `json:"name" binding:"required"`
	Reference     string                `json:"reference"`
	Barcode       string                `json:"barcode"`
	Category      string                `json:"category"`
	PurchasePrice types.Money           `json:"purchase_price"`
	SalePrice     types.Money           `json:"sale_price"`
	Stock         types.Quantity        `json:"stock"`
	MinStock      types.Quantity        `json:"min_stock"`
	SupplierID    *inventory.SupplierID `json:"supplier_id"`
}

// ToEntity converts the request to a product.
func (r CreateProductRequest) ToEntity() *inventory.Product {
	return &inventory.Product{
		ID:            r.ID,
		Name:          r.Name,
		Reference:     r.Reference,
		Barcode:       r.Barcode,
		Category:      r.Category,
		PurchasePrice: r.PurchasePrice,
		SalePrice:     r.SalePrice,
		Stock:         r.Stock,
		MinStock:      r.MinStock,
		SupplierID:    r.SupplierID,
	}
}

// SaveSupplierRequest creates or replaces a supplier.
type SaveSupplierRequest struct {
	Name        string `json:"name" binding:"required"`
	ContactName string `json:"contact_name"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	Address     string `json:"address"`
	Active      *bool  `json:"active"`
}

// ToEntity converts the request to a supplier with the given id.
// Suppliers are active unless stated otherwise.
func (r SaveSupplierRequest) ToEntity(supplierID inventory.SupplierID) *inventory.Supplier {
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return &inventory.Supplier{
		ID:          supplierID,
		Name:        r.Name,
		ContactName: r.ContactName,
		Phone:       r.Phone,
		Email:       r.Email,
		Address:     r.Address,
		Active:      active,
	}
}

// AverageCostResponse is the weighted purchase price of available lots.
type AverageCostResponse struct {
	ProductID   inventory.ProductID `json:"product_id"`
	AverageCost types.Money         `json:"average_cost"`
}

// StockSyncResponse reports product stock after realignment with its lots.
type StockSyncResponse struct {
	ProductID inventory.ProductID `json:"product_id"`
	Stock     types.Quantity      `json:"stock"`
}
