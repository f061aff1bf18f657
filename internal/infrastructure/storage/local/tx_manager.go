package local

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"supplyhub/internal/core/tx"
	"supplyhub/pkg/logger"
)

var tracer = otel.Tracer("supplyhub/local/tx")

// Compile-time check that TxManager implements tx.Manager interface.
var _ tx.Manager = (*TxManager)(nil)

// TxManager runs transactions over a Store. Transactions are serialised;
// a failing transaction restores the snapshot taken when it began, and a
// failing nested scope restores the snapshot taken when the scope began.
type TxManager struct {
	store *Store
}

// NewTxManager creates a transaction manager for store.
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// txKey is the context key for the active transaction.
type txKey struct{}

type txState struct {
	depth int
}

func inTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*txState)
	return ok
}

// RunInTransaction executes fn within a transaction.
// If a transaction already exists in ctx, it is reused.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	ctx, span := tracer.Start(ctx, "transaction", trace.WithAttributes(
		attribute.String("tx.backend", "local"),
	))
	defer span.End()

	s := m.store
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	txCtx := context.WithValue(ctx, txKey{}, &txState{})

	if err := fn(txCtx); err != nil {
		s.restore(snap)
		span.RecordError(err)
		return err
	}

	if err := s.persist(ctx); err != nil {
		s.restore(snap)
		span.RecordError(err)
		return err
	}
	return nil
}

// RunNested executes fn in a nested scope: on error only the writes made
// by fn are undone.
func (m *TxManager) RunNested(ctx context.Context, fn func(ctx context.Context) error) error {
	st, ok := ctx.Value(txKey{}).(*txState)
	if !ok {
		return m.RunInTransaction(ctx, fn)
	}

	snap := m.store.snapshot()
	nestedCtx := context.WithValue(ctx, txKey{}, &txState{depth: st.depth + 1})

	if err := fn(nestedCtx); err != nil {
		m.store.restore(snap)
		logger.Debug(ctx, "nested scope rolled back", "depth", st.depth+1, "error", err)
		return err
	}
	return nil
}
