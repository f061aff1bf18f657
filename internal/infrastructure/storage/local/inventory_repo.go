package local

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"supplyhub/internal/core/apperror"
	"supplyhub/internal/core/id"
	"supplyhub/internal/core/types"
	"supplyhub/internal/domain/inventory"
)

var (
	_ inventory.ProductCatalog    = (*ProductRepo)(nil)
	_ inventory.SupplierDirectory = (*SupplierRepo)(nil)
	_ inventory.LotLedger         = (*LedgerRepo)(nil)
)

// --- Products ---

// ProductRepo implements inventory.ProductCatalog.
type ProductRepo struct {
	store *Store
}

func NewProductRepo(store *Store) *ProductRepo {
	return &ProductRepo{store: store}
}

func (r *ProductRepo) GetAll(ctx context.Context) ([]inventory.Product, error) {
	var out []inventory.Product
	err := r.store.read(ctx, func(st *state) error {
		out = sortedValues(st.products, func(a, b inventory.Product) int { return cmp.Compare(a.ID, b.ID) })
		return nil
	})
	return out, err
}

func (r *ProductRepo) GetByID(ctx context.Context, productID inventory.ProductID) (*inventory.Product, error) {
	var out inventory.Product
	err := r.store.read(ctx, func(st *state) error {
		p, ok := st.products[productID]
		if !ok {
			return apperror.NewNotFound("product", int64(productID))
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Create assigns the next free id unless p.ID is set.
func (r *ProductRepo) Create(ctx context.Context, p *inventory.Product) error {
	return r.store.write(ctx, func(st *state) error {
		if p.ID <= 0 {
			var maxID inventory.ProductID
			for pid := range st.products {
				maxID = max(maxID, pid)
			}
			p.ID = maxID + 1
		} else if _, exists := st.products[p.ID]; exists {
			return apperror.NewDuplicate("product", "id", p.ID.String())
		}

		now := time.Now().UTC()
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		p.UpdatedAt = now
		st.products[p.ID] = *p
		return nil
	})
}

func (r *ProductRepo) Update(ctx context.Context, p *inventory.Product) error {
	return r.store.write(ctx, func(st *state) error {
		if _, ok := st.products[p.ID]; !ok {
			return apperror.NewNotFound("product", int64(p.ID))
		}
		st.products[p.ID] = *p
		return nil
	})
}

// --- Suppliers ---

// SupplierRepo implements inventory.SupplierDirectory.
type SupplierRepo struct {
	store *Store
}

func NewSupplierRepo(store *Store) *SupplierRepo {
	return &SupplierRepo{store: store}
}

// GetAll lists suppliers by name.
func (r *SupplierRepo) GetAll(ctx context.Context, f inventory.SupplierFilter) ([]inventory.Supplier, error) {
	var out []inventory.Supplier
	search := strings.ToLower(strings.TrimSpace(f.Search))
	err := r.store.read(ctx, func(st *state) error {
		for _, s := range st.suppliers {
			if f.ActiveOnly && !s.Active {
				continue
			}
			if search != "" && !strings.Contains(strings.ToLower(s.Name), search) {
				continue
			}
			out = append(out, s)
		}
		return nil
	})
	slices.SortFunc(out, func(a, b inventory.Supplier) int { return strings.Compare(a.Name, b.Name) })
	return out, err
}

func (r *SupplierRepo) GetByID(ctx context.Context, supplierID inventory.SupplierID) (*inventory.Supplier, error) {
	var out inventory.Supplier
	err := r.store.read(ctx, func(st *state) error {
		s, ok := st.suppliers[supplierID]
		if !ok {
			return apperror.NewNotFound("supplier", int64(supplierID))
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Save inserts or replaces a supplier. The directory is owned by the host
// application; Save exists for seeding.
func (r *SupplierRepo) Save(ctx context.Context, s *inventory.Supplier) error {
	if s.ID <= 0 {
		return apperror.NewValidation("supplier id is required").WithDetail("field", "id")
	}
	return r.store.write(ctx, func(st *state) error {
		st.suppliers[s.ID] = *s
		return nil
	})
}

// --- Lots and movements ---

// LedgerRepo implements inventory.LotLedger.
type LedgerRepo struct {
	store *Store
}

func NewLedgerRepo(store *Store) *LedgerRepo {
	return &LedgerRepo{store: store}
}

func productLots(st *state, productID inventory.ProductID, includeEmpty bool) []inventory.StockLot {
	var lots []inventory.StockLot
	for _, l := range st.lots {
		if l.ProductID != productID {
			continue
		}
		if !includeEmpty && !l.IsConsumable() {
			continue
		}
		lots = append(lots, l)
	}
	inventory.SortFIFO(lots)
	return lots
}

// GetProductLots returns lots oldest first. ForUpdate needs no extra work:
// transactions are already serialised.
func (r *LedgerRepo) GetProductLots(ctx context.Context, productID inventory.ProductID, q inventory.LotQuery) ([]inventory.StockLot, error) {
	var out []inventory.StockLot
	err := r.store.read(ctx, func(st *state) error {
		out = productLots(st, productID, q.IncludeEmpty)
		return nil
	})
	return out, err
}

func (r *LedgerRepo) CreateLot(ctx context.Context, lot *inventory.StockLot) error {
	if id.IsNil(lot.ID) {
		lot.ID = id.New()
	}
	return r.store.write(ctx, func(st *state) error {
		if _, ok := st.products[lot.ProductID]; !ok {
			return apperror.NewNotFound("product", int64(lot.ProductID))
		}
		st.lots[lot.ID] = *lot
		return nil
	})
}

func (r *LedgerRepo) ConsumeLot(ctx context.Context, lotID id.ID, qty types.Quantity) (*inventory.StockLot, error) {
	var out inventory.StockLot
	err := r.store.write(ctx, func(st *state) error {
		lot, ok := st.lots[lotID]
		if !ok {
			return apperror.NewNotFound("stock_lot", lotID.String())
		}
		if !lot.IsConsumable() || lot.Quantity < qty {
			return apperror.NewInsufficientStock(int64(lot.ProductID), qty.Float64(), lot.Quantity.Float64()).
				WithDetail("lot_number", lot.LotNumber)
		}
		lot.Consume(qty)
		st.lots[lotID] = lot
		out = lot
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *LedgerRepo) RecordMovement(ctx context.Context, m *inventory.StockMovement) error {
	if id.IsNil(m.ID) {
		m.ID = id.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return r.store.write(ctx, func(st *state) error {
		st.movements = append(st.movements, *m)
		return nil
	})
}

func (r *LedgerRepo) CalculateAverageCost(ctx context.Context, productID inventory.ProductID) (types.Money, error) {
	var cost types.Money
	err := r.store.read(ctx, func(st *state) error {
		if _, ok := st.products[productID]; !ok {
			return apperror.NewNotFound("product", int64(productID))
		}
		cost = inventory.AverageCost(productLots(st, productID, false))
		return nil
	})
	return cost, err
}

func (r *LedgerRepo) AdjustStockDirectly(ctx context.Context, productID inventory.ProductID, stock types.Quantity) error {
	return r.store.write(ctx, func(st *state) error {
		p, ok := st.products[productID]
		if !ok {
			return apperror.NewNotFound("product", int64(productID))
		}
		p.Stock = stock
		p.UpdatedAt = time.Now().UTC()
		st.products[productID] = p
		return nil
	})
}

// EnsureProductHasLots opens a lot for stock held by a product that has
// never had one.
func (r *LedgerRepo) EnsureProductHasLots(ctx context.Context, productID inventory.ProductID) error {
	return r.store.write(ctx, func(st *state) error {
		p, ok := st.products[productID]
		if !ok {
			return apperror.NewNotFound("product", int64(productID))
		}
		if !p.Stock.IsPositive() || len(productLots(st, productID, true)) > 0 {
			return nil
		}
		lot := inventory.OpeningLot(&p)
		st.lots[lot.ID] = lot
		return nil
	})
}

func (r *LedgerRepo) SyncProductStock(ctx context.Context, productID inventory.ProductID) (types.Quantity, error) {
	var stock types.Quantity
	err := r.store.write(ctx, func(st *state) error {
		p, ok := st.products[productID]
		if !ok {
			return apperror.NewNotFound("product", int64(productID))
		}
		stock = inventory.SumAvailable(productLots(st, productID, false))
		p.Stock = stock
		p.UpdatedAt = time.Now().UTC()
		st.products[productID] = p
		return nil
	})
	return stock, err
}

func (r *LedgerRepo) GetMovementsByReference(ctx context.Context, refType, refID string) ([]inventory.StockMovement, error) {
	var out []inventory.StockMovement
	err := r.store.read(ctx, func(st *state) error {
		for _, m := range st.movements {
			if m.ReferenceType == refType && m.ReferenceID == refID {
				out = append(out, m)
			}
		}
		return nil
	})
	return out, err
}
