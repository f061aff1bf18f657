// Package inventory holds the product, supplier and stock-lot model that
// supplier orders reconcile against, together with the collaborator
// contracts the order domain consumes.
package inventory

import (
	"fmt"
	"strconv"
	"time"

	"supplyhub/internal/core/id"
	"supplyhub/internal/core/types"
)

// ProductID is the catalog identifier of a product.
// JSON input may carry it as a number or a numeric string; it is always
// normalised to int64 before reaching the domain.
type ProductID int64

// SupplierID is the directory identifier of a supplier.
type SupplierID int64

func (p ProductID) String() string  { return strconv.FormatInt(int64(p), 10) }
func (s SupplierID) String() string { return strconv.FormatInt(int64(s), 10) }

// UnmarshalJSON accepts 7, "7" and " 7 ".
func (p *ProductID) UnmarshalJSON(data []byte) error {
	v, err := id.SerialFromJSON(data)
	if err != nil {
		return fmt.Errorf("product id: %w", err)
	}
	*p = ProductID(v)
	return nil
}

// UnmarshalJSON accepts 3, "3" and " 3 ".
func (s *SupplierID) UnmarshalJSON(data []byte) error {
	v, err := id.SerialFromJSON(data)
	if err != nil {
		return fmt.Errorf("supplier id: %w", err)
	}
	*s = SupplierID(v)
	return nil
}

// ParseProductID parses a path or query parameter.
func ParseProductID(s string) (ProductID, error) {
	v, err := id.ParseSerial(s)
	if err != nil {
		return 0, err
	}
	return ProductID(v), nil
}

// ParseSupplierID parses a path or query parameter.
func ParseSupplierID(s string) (SupplierID, error) {
	v, err := id.ParseSerial(s)
	if err != nil {
		return 0, err
	}
	return SupplierID(v), nil
}

// Product is a catalog entry. Stock mirrors the sum of available lots.
type Product struct {
	ID            ProductID      `db:"id" json:"id"`
	Name          string         `db:"name" json:"name"`
	Reference     string         `db:"reference" json:"reference,omitempty"`
	Barcode       string         `db:"barcode" json:"barcode,omitempty"`
	Category      string         `db:"category" json:"category,omitempty"`
	PurchasePrice types.Money    `db:"purchase_price" json:"purchase_price"`
	SalePrice     types.Money    `db:"sale_price" json:"sale_price"`
	Stock         types.Quantity `db:"stock" json:"stock"`
	MinStock      types.Quantity `db:"min_stock" json:"min_stock"`
	SupplierID    *SupplierID    `db:"supplier_id" json:"supplier_id,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// Supplier is a directory entry; orders only read its display fields.
type Supplier struct {
	ID          SupplierID `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	ContactName string     `db:"contact_name" json:"contact_name,omitempty"`
	Phone       string     `db:"phone" json:"phone,omitempty"`
	Email       string     `db:"email" json:"email,omitempty"`
	Address     string     `db:"address" json:"address,omitempty"`
	Active      bool       `db:"active" json:"active"`
}

// SupplierFilter narrows SupplierDirectory.GetAll.
type SupplierFilter struct {
	ActiveOnly bool
	Search     string
}

// LotStatus is the availability state of a stock lot.
type LotStatus string

const (
	LotAvailable LotStatus = "AVAILABLE"
	LotDepleted  LotStatus = "DEPLETED"
)

// StockLot is a batch of units purchased together.
type StockLot struct {
	ID              id.ID          `db:"id" json:"id"`
	ProductID       ProductID      `db:"product_id" json:"product_id"`
	LotNumber       string         `db:"lot_number" json:"lot_number"`
	Quantity        types.Quantity `db:"quantity" json:"quantity"`
	InitialQuantity types.Quantity `db:"initial_quantity" json:"initial_quantity"`
	PurchasePrice   types.Money    `db:"purchase_price" json:"purchase_price"`
	PurchaseDate    time.Time      `db:"purchase_date" json:"purchase_date"`
	SupplierID      *SupplierID    `db:"supplier_id" json:"supplier_id,omitempty"`
	Status          LotStatus      `db:"status" json:"status"`
	Notes           string         `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// IsConsumable reports whether FIFO removal may draw from the lot.
func (l *StockLot) IsConsumable() bool {
	return l.Status == LotAvailable && l.Quantity.IsPositive()
}

// Consume removes qty from the lot, marking it depleted when it reaches zero.
func (l *StockLot) Consume(qty types.Quantity) {
	l.Quantity = l.Quantity.SubClamped(qty)
	if l.Quantity.IsZero() {
		l.Status = LotDepleted
	}
	l.UpdatedAt = time.Now().UTC()
}

// LotNumber builds LOT-<YYYYMMDD>-<last 6 chars of ref>-<product id padded to 3>.
// ref is the order number, or the order id when no number exists.
func LotNumber(date time.Time, ref string, productID ProductID) string {
	if len(ref) > 6 {
		ref = ref[len(ref)-6:]
	}
	return fmt.Sprintf("LOT-%s-%s-%03d", date.Format("20060102"), ref, int64(productID))
}

// MovementType is the direction of a stock movement.
type MovementType string

const (
	MovementIn  MovementType = "IN"
	MovementOut MovementType = "OUT"
)

// ReferenceSupplierOrder tags movements created by order reconciliation.
const ReferenceSupplierOrder = "SUPPLIER_ORDER"

// StockMovement is an append-only record of a lot-level stock change.
type StockMovement struct {
	ID            id.ID          `db:"id" json:"id"`
	ProductID     ProductID      `db:"product_id" json:"product_id"`
	LotID         *id.ID         `db:"lot_id" json:"lot_id,omitempty"`
	MovementType  MovementType   `db:"movement_type" json:"movement_type"`
	Quantity      types.Quantity `db:"quantity" json:"quantity"`
	UnitCost      types.Money    `db:"unit_cost" json:"unit_cost"`
	ReferenceType string         `db:"reference_type" json:"reference_type,omitempty"`
	ReferenceID   string         `db:"reference_id" json:"reference_id,omitempty"`
	Notes         string         `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}

// OpeningLot is the lot that carries stock recorded before lot tracking
// existed. It is dated at product creation so FIFO consumes it first.
func OpeningLot(p *Product) StockLot {
	now := time.Now().UTC()
	purchased := p.CreatedAt
	if purchased.IsZero() {
		purchased = now
	}
	return StockLot{
		ID:              id.New(),
		ProductID:       p.ID,
		LotNumber:       fmt.Sprintf("LOT-INIT-%03d", int64(p.ID)),
		Quantity:        p.Stock,
		InitialQuantity: p.Stock,
		PurchasePrice:   p.PurchasePrice,
		PurchaseDate:    purchased,
		SupplierID:      p.SupplierID,
		Status:          LotAvailable,
		Notes:           "Opening balance",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
