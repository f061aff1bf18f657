// Package local is the single-process storage backend: all collections live
// in memory and, when a data directory is configured, are written back to
// one JSON file per collection after every committed transaction.
package local

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"supplyhub/internal/core/id"
	"supplyhub/internal/domain/inventory"
	"supplyhub/internal/domain/orders"
	"supplyhub/pkg/logger"
)

// Collection file names inside the data directory.
const (
	fileOrders    = "supplier_orders.json"
	fileItems     = "supplier_order_items.json"
	fileProducts  = "products.json"
	fileSuppliers = "suppliers.json"
	fileLots      = "stock_lots.json"
	fileMovements = "stock_movements.json"
	fileSequences = "sequences.json"
)

type state struct {
	orders    map[id.ID]orders.Order
	items     map[id.ID]orders.OrderItem
	products  map[inventory.ProductID]inventory.Product
	suppliers map[inventory.SupplierID]inventory.Supplier
	lots      map[id.ID]inventory.StockLot
	movements []inventory.StockMovement
	sequences map[string]int64
}

func newState() *state {
	return &state{
		orders:    make(map[id.ID]orders.Order),
		items:     make(map[id.ID]orders.OrderItem),
		products:  make(map[inventory.ProductID]inventory.Product),
		suppliers: make(map[inventory.SupplierID]inventory.Supplier),
		lots:      make(map[id.ID]inventory.StockLot),
		sequences: make(map[string]int64),
	}
}

// clone copies every collection. Records are values; the pointer fields
// they carry are never mutated in place, so a shallow copy per map is a
// full snapshot.
func (s *state) clone() *state {
	return &state{
		orders:    maps.Clone(s.orders),
		items:     maps.Clone(s.items),
		products:  maps.Clone(s.products),
		suppliers: maps.Clone(s.suppliers),
		lots:      maps.Clone(s.lots),
		movements: slices.Clone(s.movements),
		sequences: maps.Clone(s.sequences),
	}
}

// Store holds every collection of the local backend.
type Store struct {
	// txMu serialises transactions and standalone writes; reads outside a
	// transaction share it so they only observe committed state.
	txMu sync.RWMutex
	// mu guards st for individual reads and writes.
	mu sync.RWMutex
	st *state

	dir        string
	createTemp func(dir, pattern string) (*os.File, error)
}

// New creates an empty store that is never written to disk.
func New() *Store {
	return &Store{st: newState(), createTemp: os.CreateTemp}
}

// Open loads the store from dir, creating the directory when needed.
// Missing collection files start empty.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	s := &Store{st: newState(), dir: dir, createTemp: os.CreateTemp}

	var (
		orderList    []orders.Order
		itemList     []orders.OrderItem
		productList  []inventory.Product
		supplierList []inventory.Supplier
		lotList      []inventory.StockLot
	)
	loads := []struct {
		name string
		dst  any
	}{
		{fileOrders, &orderList},
		{fileItems, &itemList},
		{fileProducts, &productList},
		{fileSuppliers, &supplierList},
		{fileLots, &lotList},
		{fileMovements, &s.st.movements},
		{fileSequences, &s.st.sequences},
	}
	for _, l := range loads {
		if err := readJSON(filepath.Join(dir, l.name), l.dst); err != nil {
			return nil, err
		}
	}
	if s.st.sequences == nil {
		s.st.sequences = make(map[string]int64)
	}

	for _, o := range orderList {
		s.st.orders[o.ID] = o
	}
	for _, it := range itemList {
		s.st.items[it.ID] = it
	}
	for _, p := range productList {
		s.st.products[p.ID] = p
	}
	for _, sup := range supplierList {
		s.st.suppliers[sup.ID] = sup
	}
	for _, l := range lotList {
		s.st.lots[l.ID] = l
	}

	return s, nil
}

// Dir is the data directory, empty for a memory-only store.
func (s *Store) Dir() string {
	return s.dir
}

// Ping implements the readiness check.
func (s *Store) Ping(ctx context.Context) error {
	if s.dir == "" {
		return nil
	}
	_, err := os.Stat(s.dir)
	return err
}

// read runs fn under the read lock. Outside a transaction it waits for the
// running transaction to commit or roll back.
func (s *Store) read(ctx context.Context, fn func(st *state) error) error {
	if !inTx(ctx) {
		s.txMu.RLock()
		defer s.txMu.RUnlock()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.st)
}

// write applies fn to the state. Inside a transaction the write becomes
// part of it; otherwise fn runs as its own transaction and is persisted.
// fn must leave the state untouched when it returns an error.
func (s *Store) write(ctx context.Context, fn func(st *state) error) error {
	if inTx(ctx) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return fn(s.st)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	var snap *state
	if s.dir != "" {
		snap = s.snapshot()
	}

	s.mu.Lock()
	err := fn(s.st)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if err := s.persist(ctx); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *Store) snapshot() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.clone()
}

func (s *Store) restore(st *state) {
	s.mu.Lock()
	s.st = st
	s.mu.Unlock()
}

// persist writes every collection to disk. Callers hold txMu.
func (s *Store) persist(ctx context.Context) error {
	if s.dir == "" {
		return nil
	}

	s.mu.RLock()
	files := map[string]any{
		fileOrders:    sortedValues(s.st.orders, func(a, b orders.Order) int { return a.CreatedAt.Compare(b.CreatedAt) }),
		fileItems:     sortedValues(s.st.items, compareItems),
		fileProducts:  sortedValues(s.st.products, func(a, b inventory.Product) int { return cmp.Compare(a.ID, b.ID) }),
		fileSuppliers: sortedValues(s.st.suppliers, func(a, b inventory.Supplier) int { return cmp.Compare(a.ID, b.ID) }),
		fileLots:      sortedValues(s.st.lots, func(a, b inventory.StockLot) int { return a.CreatedAt.Compare(b.CreatedAt) }),
		fileMovements: s.st.movements,
		fileSequences: s.st.sequences,
	}
	encoded := make(map[string][]byte, len(files))
	for name, v := range files {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			s.mu.RUnlock()
			return fmt.Errorf("encode %s: %w", name, err)
		}
		encoded[name] = data
	}
	s.mu.RUnlock()

	// Every temp file is written before the first rename, so a failed write
	// leaves all collection files as they were.
	temps := make(map[string]string, len(encoded))
	for _, name := range slices.Sorted(maps.Keys(encoded)) {
		tmp, err := s.writeTemp(name, encoded[name])
		if err != nil {
			removeTemps(temps)
			logger.Error(ctx, "local store write failed", "file", name, "error", err)
			return fmt.Errorf("write %s: %w", name, err)
		}
		temps[name] = tmp
	}

	for _, name := range slices.Sorted(maps.Keys(temps)) {
		if err := os.Rename(temps[name], filepath.Join(s.dir, name)); err != nil {
			removeTemps(temps)
			logger.Error(ctx, "local store rename failed", "file", name, "error", err)
			return fmt.Errorf("rename %s: %w", name, err)
		}
		delete(temps, name)
	}
	return nil
}

func compareItems(a, b orders.OrderItem) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return a.LineNo - b.LineNo
}

func sortedValues[K comparable, V any](m map[K]V, compare func(a, b V) int) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	slices.SortFunc(out, compare)
	return out
}

func readJSON(path string, dst any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeTemp writes data next to the collection file and returns the temp
// file path.
func (s *Store) writeTemp(name string, data []byte) (string, error) {
	tmp, err := s.createTemp(s.dir, name+".*.tmp")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func removeTemps(temps map[string]string) {
	for _, path := range temps {
		os.Remove(path)
	}
}
