// Package tx provides transaction management abstractions.
// Domain services depend on these interfaces; the storage backends
// (postgres, local) provide the implementations.
package tx

import (
	"context"
)

// Manager defines the contract for transaction management.
type Manager interface {
	// RunInTransaction executes fn within a transaction.
	// If fn returns an error, everything written inside fn is discarded.
	//
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// RunNested executes fn in a nested scope of the current transaction.
	// On error only the writes made inside fn are undone and the outer
	// transaction stays usable. Outside a transaction it behaves like
	// RunInTransaction.
	RunNested(ctx context.Context, fn func(ctx context.Context) error) error
}
