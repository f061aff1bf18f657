// Package lock defines the keyed mutual-exclusion contract used to
// serialise mutations of the same supplier order.
package lock

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotObtained is returned when the lock is held elsewhere and could not
// be acquired before the context or retry budget ran out.
var ErrNotObtained = errors.New("lock: not obtained")

// Release frees a held lock. It is safe to call more than once.
type Release func()

// Locker hands out exclusive locks by key.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// OrderKey is the lock key for a supplier order.
func OrderKey(orderID fmt.Stringer) string {
	return "supplyhub:order:" + orderID.String()
}

// Nop never blocks. It is the default for single-operator deployments.
type Nop struct{}

func (Nop) Acquire(context.Context, string) (Release, error) {
	return func() {}, nil
}
