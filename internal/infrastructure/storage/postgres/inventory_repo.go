package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"supplyhub/internal/core/apperror"
	"supplyhub/internal/core/id"
	"supplyhub/internal/core/types"
	"supplyhub/internal/domain/inventory"
)

const (
	productsTable  = "products"
	suppliersTable = "suppliers"
	lotsTable      = "stock_lots"
	movementsTable = "stock_movements"
)

var (
	productColumns  = Columns[inventory.Product]()
	supplierColumns = Columns[inventory.Supplier]()
	lotColumns      = Columns[inventory.StockLot]()
	movementColumns = Columns[inventory.StockMovement]()
)

var (
	_ inventory.ProductCatalog    = (*ProductRepo)(nil)
	_ inventory.SupplierDirectory = (*SupplierRepo)(nil)
	_ inventory.LotLedger         = (*LedgerRepo)(nil)
)

// --- Products ---

// ProductRepo implements inventory.ProductCatalog.
type ProductRepo struct {
	txm *TxManager
}

func NewProductRepo(txm *TxManager) *ProductRepo {
	return &ProductRepo{txm: txm}
}

func (r *ProductRepo) GetAll(ctx context.Context) ([]inventory.Product, error) {
	sql, args, err := builder().Select(productColumns...).From(productsTable).OrderBy("id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []inventory.Product
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return out, nil
}

func (r *ProductRepo) GetByID(ctx context.Context, productID inventory.ProductID) (*inventory.Product, error) {
	sql, args, err := builder().
		Select(productColumns...).
		From(productsTable).
		Where(squirrel.Eq{"id": productID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var p inventory.Product
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("product", int64(productID))
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

// Create lets the database assign the id unless p.ID is set.
func (r *ProductRepo) Create(ctx context.Context, p *inventory.Product) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	explicitID := p.ID > 0
	cols := productColumns
	if !explicitID {
		cols = without(productColumns, "id")
	}

	sql, args, err := builder().
		Insert(productsTable).
		SetMap(StructToMap(p, cols...)).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	q := r.txm.GetQuerier(ctx)
	if err := q.QueryRow(ctx, sql, args...).Scan(&p.ID); err != nil {
		return translate(err, productsTable, "insert")
	}

	// Imported ids must not collide with later serial values.
	if explicitID {
		_, err := q.Exec(ctx, `
			SELECT setval(pg_get_serial_sequence('products', 'id'), GREATEST((SELECT MAX(id) FROM products), 1))
		`)
		if err != nil {
			return fmt.Errorf("advance product sequence: %w", err)
		}
	}
	return nil
}

func (r *ProductRepo) Update(ctx context.Context, p *inventory.Product) error {
	p.UpdatedAt = time.Now().UTC()

	sql, args, err := builder().
		Update(productsTable).
		SetMap(StructToMap(p, without(productColumns, "id", "created_at")...)).
		Where(squirrel.Eq{"id": p.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return translate(err, productsTable, "update")
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("product", int64(p.ID))
	}
	return nil
}

// --- Suppliers ---

// SupplierRepo implements inventory.SupplierDirectory.
type SupplierRepo struct {
	txm *TxManager
}

func NewSupplierRepo(txm *TxManager) *SupplierRepo {
	return &SupplierRepo{txm: txm}
}

func (r *SupplierRepo) GetAll(ctx context.Context, f inventory.SupplierFilter) ([]inventory.Supplier, error) {
	q := builder().Select(supplierColumns...).From(suppliersTable).OrderBy("name")
	if f.ActiveOnly {
		q = q.Where(squirrel.Eq{"active": true})
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		q = q.Where(squirrel.ILike{"name": "%" + search + "%"})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []inventory.Supplier
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	return out, nil
}

func (r *SupplierRepo) GetByID(ctx context.Context, supplierID inventory.SupplierID) (*inventory.Supplier, error) {
	sql, args, err := builder().
		Select(supplierColumns...).
		From(suppliersTable).
		Where(squirrel.Eq{"id": supplierID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var s inventory.Supplier
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &s, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("supplier", int64(supplierID))
		}
		return nil, fmt.Errorf("get supplier: %w", err)
	}
	return &s, nil
}

// Save upserts a supplier. The directory is owned by the host application;
// Save exists for seeding.
func (r *SupplierRepo) Save(ctx context.Context, s *inventory.Supplier) error {
	if s.ID <= 0 {
		return apperror.NewValidation("supplier id is required").WithDetail("field", "id")
	}

	updates := make([]string, 0, len(supplierColumns))
	for _, c := range without(supplierColumns, "id") {
		updates = append(updates, c+" = EXCLUDED."+c)
	}

	sql, args, err := builder().
		Insert(suppliersTable).
		SetMap(StructToMap(s)).
		Suffix("ON CONFLICT (id) DO UPDATE SET " + strings.Join(updates, ", ")).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return translate(err, suppliersTable, "upsert")
	}
	return nil
}

// --- Lots and movements ---

// LedgerRepo implements inventory.LotLedger.
type LedgerRepo struct {
	txm *TxManager
}

func NewLedgerRepo(txm *TxManager) *LedgerRepo {
	return &LedgerRepo{txm: txm}
}

// consumable restricts a lot query to lots FIFO removal may draw from.
var consumable = squirrel.And{
	squirrel.Eq{"status": inventory.LotAvailable},
	squirrel.Gt{"quantity": 0},
}

// productLotsQuery selects lots oldest first, matching inventory.SortFIFO.
func productLotsQuery(productID inventory.ProductID, lq inventory.LotQuery) squirrel.SelectBuilder {
	q := builder().
		Select(lotColumns...).
		From(lotsTable).
		Where(squirrel.Eq{"product_id": productID}).
		OrderBy("purchase_date", "created_at", "lot_number")
	if !lq.IncludeEmpty {
		q = q.Where(consumable)
	}
	if lq.ForUpdate {
		q = q.Suffix("FOR UPDATE")
	}
	return q
}

func (r *LedgerRepo) GetProductLots(ctx context.Context, productID inventory.ProductID, lq inventory.LotQuery) ([]inventory.StockLot, error) {
	sql, args, err := productLotsQuery(productID, lq).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lots []inventory.StockLot
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &lots, sql, args...); err != nil {
		return nil, translate(err, lotsTable, "select")
	}
	return lots, nil
}

func (r *LedgerRepo) CreateLot(ctx context.Context, lot *inventory.StockLot) error {
	now := time.Now().UTC()
	if id.IsNil(lot.ID) {
		lot.ID = id.New()
	}
	if lot.CreatedAt.IsZero() {
		lot.CreatedAt = now
	}
	lot.UpdatedAt = now

	sql, args, err := builder().Insert(lotsTable).SetMap(StructToMap(lot)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return apperror.NewNotFound("product", int64(lot.ProductID)).WithCause(err)
		}
		return translate(err, lotsTable, "insert")
	}
	return nil
}

// ConsumeLot decrements the lot in one statement so that concurrent
// removals cannot overdraw it.
func (r *LedgerRepo) ConsumeLot(ctx context.Context, lotID id.ID, qty types.Quantity) (*inventory.StockLot, error) {
	sql, args, err := builder().
		Update(lotsTable).
		Set("quantity", squirrel.Expr("quantity - ?", qty)).
		Set("status", squirrel.Expr("CASE WHEN quantity - ? = 0 THEN ? ELSE status END", qty, inventory.LotDepleted)).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": lotID, "status": inventory.LotAvailable}).
		Where(squirrel.GtOrEq{"quantity": qty}).
		Suffix("RETURNING " + strings.Join(lotColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update: %w", err)
	}

	var lot inventory.StockLot
	err = pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &lot, sql, args...)
	if err == nil {
		return &lot, nil
	}
	if !pgxscan.NotFound(err) {
		return nil, translate(err, lotsTable, "consume")
	}

	current, err := r.getLot(ctx, lotID)
	if err != nil {
		return nil, err
	}
	return nil, apperror.NewInsufficientStock(int64(current.ProductID), qty.Float64(), current.Quantity.Float64()).
		WithDetail("lot_number", current.LotNumber)
}

func (r *LedgerRepo) getLot(ctx context.Context, lotID id.ID) (*inventory.StockLot, error) {
	sql, args, err := builder().Select(lotColumns...).From(lotsTable).Where(squirrel.Eq{"id": lotID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lot inventory.StockLot
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &lot, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("stock_lot", lotID.String())
		}
		return nil, fmt.Errorf("get lot: %w", err)
	}
	return &lot, nil
}

func (r *LedgerRepo) RecordMovement(ctx context.Context, m *inventory.StockMovement) error {
	if id.IsNil(m.ID) {
		m.ID = id.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	sql, args, err := builder().Insert(movementsTable).SetMap(StructToMap(m)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return translate(err, movementsTable, "insert")
	}
	return nil
}

func (r *LedgerRepo) CalculateAverageCost(ctx context.Context, productID inventory.ProductID) (types.Money, error) {
	if err := r.productExists(ctx, productID); err != nil {
		return types.Zero(), err
	}

	sql, args, err := builder().
		Select("COALESCE(ROUND(SUM(quantity::numeric * purchase_price) / NULLIF(SUM(quantity), 0), 2), 0)").
		From(lotsTable).
		Where(squirrel.Eq{"product_id": productID}).
		Where(consumable).
		ToSql()
	if err != nil {
		return types.Zero(), fmt.Errorf("build query: %w", err)
	}

	var cost types.Money
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&cost); err != nil {
		return types.Zero(), fmt.Errorf("average cost: %w", err)
	}
	return cost, nil
}

func (r *LedgerRepo) AdjustStockDirectly(ctx context.Context, productID inventory.ProductID, stock types.Quantity) error {
	sql, args, err := builder().
		Update(productsTable).
		Set("stock", stock).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": productID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return translate(err, productsTable, "update")
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("product", int64(productID))
	}
	return nil
}

// EnsureProductHasLots opens a lot for stock held by a product that has
// never had one. The product row is locked so two transactions cannot
// both open it.
func (r *LedgerRepo) EnsureProductHasLots(ctx context.Context, productID inventory.ProductID) error {
	sql, args, err := builder().
		Select(productColumns...).
		From(productsTable).
		Where(squirrel.Eq{"id": productID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	q := r.txm.GetQuerier(ctx)
	var p inventory.Product
	if err := pgxscan.Get(ctx, q, &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return apperror.NewNotFound("product", int64(productID))
		}
		return fmt.Errorf("lock product: %w", err)
	}
	if !p.Stock.IsPositive() {
		return nil
	}

	var hasLots bool
	err = q.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM "+lotsTable+" WHERE product_id = $1)", productID).Scan(&hasLots)
	if err != nil {
		return fmt.Errorf("check lots: %w", err)
	}
	if hasLots {
		return nil
	}

	lot := inventory.OpeningLot(&p)
	return r.CreateLot(ctx, &lot)
}

func (r *LedgerRepo) SyncProductStock(ctx context.Context, productID inventory.ProductID) (types.Quantity, error) {
	sum, sumArgs, err := builder().
		Select("COALESCE(SUM(quantity), 0)::bigint").
		From(lotsTable).
		Where(squirrel.Eq{"product_id": productID}).
		Where(consumable).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var stock types.Quantity
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sum, sumArgs...).Scan(&stock); err != nil {
		return 0, fmt.Errorf("sum lots: %w", err)
	}
	if err := r.AdjustStockDirectly(ctx, productID, stock); err != nil {
		return 0, err
	}
	return stock, nil
}

func (r *LedgerRepo) GetMovementsByReference(ctx context.Context, refType, refID string) ([]inventory.StockMovement, error) {
	sql, args, err := builder().
		Select(movementColumns...).
		From(movementsTable).
		Where(squirrel.Eq{"reference_type": refType, "reference_id": refID}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []inventory.StockMovement
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	return out, nil
}

func (r *LedgerRepo) productExists(ctx context.Context, productID inventory.ProductID) error {
	query := "SELECT EXISTS (SELECT 1 FROM " + productsTable + " WHERE id = $1)"
	var ok bool
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, query, productID).Scan(&ok); err != nil {
		return fmt.Errorf("check product: %w", err)
	}
	if !ok {
		return apperror.NewNotFound("product", int64(productID))
	}
	return nil
}
