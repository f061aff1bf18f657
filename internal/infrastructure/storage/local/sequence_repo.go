package local

import (
	"context"

	"supplyhub/internal/infrastructure/numerator"
)

// SequenceRepo stores numerator counters in sequences.json.
type SequenceRepo struct {
	store *Store
}

func NewSequenceRepo(store *Store) *SequenceRepo {
	return &SequenceRepo{store: store}
}

var _ numerator.Sequencer = (*SequenceRepo)(nil)

func (r *SequenceRepo) Advance(ctx context.Context, key string, n int64) (int64, error) {
	var next int64
	err := r.store.write(ctx, func(st *state) error {
		next = st.sequences[key] + n
		st.sequences[key] = next
		return nil
	})
	return next, err
}

func (r *SequenceRepo) Reset(ctx context.Context, key string, value int64) error {
	return r.store.write(ctx, func(st *state) error {
		st.sequences[key] = value
		return nil
	})
}
