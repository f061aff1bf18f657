package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"supplyhub/internal/core/apperror"
	"supplyhub/internal/domain/inventory"
	"supplyhub/internal/domain/orders"
	"supplyhub/pkg/logger"
)

// ItemWriter persists order lines after their product has been bound.
type ItemWriter interface {
	UpdateItem(ctx context.Context, item *orders.OrderItem) error
}

// ProductResolver binds name-only order lines to catalog products.
type ProductResolver struct {
	products inventory.ProductCatalog
	items    ItemWriter
	cfg      Config
}

// NewProductResolver creates a resolver.
func NewProductResolver(products inventory.ProductCatalog, items ItemWriter, cfg Config) *ProductResolver {
	return &ProductResolver{products: products, items: items, cfg: cfg}
}

// EnsureProductIDs binds every line lacking a product id but carrying a
// name, matching existing products by name (case-insensitive) or by
// reference. Unmatched lines get an auto-created product when enabled.
// Lines already bound are left alone, so calling it again is a no-op.
// It returns the number of lines it bound.
func (r *ProductResolver) EnsureProductIDs(ctx context.Context, order *orders.Order, items []orders.OrderItem) (int, error) {
	pending := make([]int, 0, len(items))
	for i := range items {
		if !items[i].HasProduct() && strings.TrimSpace(items[i].ProductName) != "" {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return 0, nil
	}

	catalog, err := r.products.GetAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load products: %w", err)
	}

	bound := 0
	for _, i := range pending {
		item := &items[i]

		product := findProduct(catalog, item.ProductName, item.ProductReference)
		if product == nil {
			if !r.cfg.AutoCreateProducts {
				return bound, apperror.NewValidation("order line references an unknown product").
					WithDetail("line_no", item.LineNo).
					WithDetail("product_name", item.ProductName)
			}
			product, err = r.createProduct(ctx, order, item)
			if err != nil {
				return bound, err
			}
			catalog = append(catalog, *product)
		}

		productID := product.ID
		item.ProductID = &productID
		if err := r.items.UpdateItem(ctx, item); err != nil {
			return bound, fmt.Errorf("bind product to item: %w", err)
		}
		bound++
	}

	logger.Info(ctx, "order lines bound to products", "order_id", order.ID, "bound", bound)
	return bound, nil
}

func (r *ProductResolver) createProduct(ctx context.Context, order *orders.Order, item *orders.OrderItem) (*inventory.Product, error) {
	now := time.Now().UTC()
	supplierID := order.SupplierID
	p := &inventory.Product{
		Name:          strings.TrimSpace(item.ProductName),
		Reference:     strings.TrimSpace(item.ProductReference),
		Category:      r.cfg.AutoProductCategory,
		PurchasePrice: item.UnitPrice,
		SalePrice:     item.UnitPrice.Mul(r.cfg.AutoProductMargin.Add(decimalOne)).Round(2),
		SupplierID:    &supplierID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := r.products.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("auto-create product %q: %w", p.Name, err)
	}

	logger.Warn(ctx, "product auto-created from supplier order",
		"order_id", order.ID,
		"product_id", p.ID,
		"name", p.Name)
	return p, nil
}

// findProduct matches by trimmed case-insensitive name, or by reference.
func findProduct(catalog []inventory.Product, name, reference string) *inventory.Product {
	name = strings.TrimSpace(name)
	reference = strings.TrimSpace(reference)
	for i := range catalog {
		p := &catalog[i]
		if strings.EqualFold(strings.TrimSpace(p.Name), name) {
			return p
		}
		if reference != "" && strings.EqualFold(strings.TrimSpace(p.Reference), reference) {
			return p
		}
	}
	return nil
}
