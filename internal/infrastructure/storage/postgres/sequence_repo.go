package postgres

import (
	"context"
	"fmt"

	"supplyhub/internal/infrastructure/numerator"
)

var _ numerator.Sequencer = (*SequenceRepo)(nil)

// SequenceRepo keeps numerator counters in sys_sequences. Inside a
// transaction the counter row stays locked until commit, so a rolled back
// order gives its number back.
type SequenceRepo struct {
	txm *TxManager
}

func NewSequenceRepo(txm *TxManager) *SequenceRepo {
	return &SequenceRepo{txm: txm}
}

func (r *SequenceRepo) Advance(ctx context.Context, key string, n int64) (int64, error) {
	var value int64
	err := r.txm.GetQuerier(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = sys_sequences.value + EXCLUDED.value, updated_at = NOW()
		RETURNING value
	`, key, n).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("advance sequence %s: %w", key, err)
	}
	return value, nil
}

func (r *SequenceRepo) Reset(ctx context.Context, key string, value int64) error {
	_, err := r.txm.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO sys_sequences (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = NOW()
	`, key, value)
	if err != nil {
		return fmt.Errorf("reset sequence %s: %w", key, err)
	}
	return nil
}
