package numerator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corenumerator "supplyhub/internal/core/numerator"
)

// mockSequencer simulates the sys_sequences counter.
type mockSequencer struct {
	mu       sync.Mutex
	values   map[string]int64
	advances int
	err      error
}

func newMockSequencer() *mockSequencer {
	return &mockSequencer{values: make(map[string]int64)}
}

func (m *mockSequencer) Advance(ctx context.Context, key string, n int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.advances++
	m.values[key] += n
	return m.values[key], nil
}

func (m *mockSequencer) Reset(ctx context.Context, key string, value int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

var period = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

func TestGetNextNumber_Strict(t *testing.T) {
	seq := newMockSequencer()
	svc := New(seq)
	ctx := context.Background()
	cfg := corenumerator.Config{Prefix: "PO", IncludeYear: true, PadWidth: 6, ResetPeriod: "year"}

	num, err := svc.GetNextNumber(ctx, cfg, nil, period)
	require.NoError(t, err)
	assert.Equal(t, "PO-2026-000001", num)

	num, err = svc.GetNextNumber(ctx, cfg, nil, period)
	require.NoError(t, err)
	assert.Equal(t, "PO-2026-000002", num)

	// a new year starts a new counter
	num, err = svc.GetNextNumber(ctx, cfg, nil, period.AddDate(1, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, "PO-2027-000001", num)
}

func TestGetNextNumber_Cached(t *testing.T) {
	seq := newMockSequencer()
	svc := New(seq)
	ctx := context.Background()
	cfg := corenumerator.DefaultConfig("ORD")
	opts := &corenumerator.Options{Strategy: corenumerator.StrategyCached, RangeSize: 10}

	num, err := svc.GetNextNumber(ctx, cfg, opts, period)
	require.NoError(t, err)
	assert.Equal(t, "ORD-2026-00001", num)
	assert.Equal(t, int64(10), seq.values["ORD_2026"])

	for i := 0; i < 9; i++ {
		_, err = svc.GetNextNumber(ctx, cfg, opts, period)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, seq.advances, "range of 10 is served from memory")

	num, err = svc.GetNextNumber(ctx, cfg, opts, period)
	require.NoError(t, err)
	assert.Equal(t, "ORD-2026-00011", num)
	assert.Equal(t, int64(20), seq.values["ORD_2026"])
}

func TestSetNextNumber_InvalidatesCache(t *testing.T) {
	seq := newMockSequencer()
	svc := New(seq)
	ctx := context.Background()
	cfg := corenumerator.DefaultConfig("PO")
	opts := &corenumerator.Options{Strategy: corenumerator.StrategyCached, RangeSize: 10}

	_, err := svc.GetNextNumber(ctx, cfg, opts, period)
	require.NoError(t, err)

	require.NoError(t, svc.SetNextNumber(ctx, cfg, period, 100))

	num, err := svc.GetNextNumber(ctx, cfg, opts, period)
	require.NoError(t, err)
	assert.Equal(t, "PO-2026-00101", num)
}

func TestGetNextNumber_StorageError(t *testing.T) {
	seq := newMockSequencer()
	seq.err = errors.New("connection refused")
	svc := New(seq)

	_, err := svc.GetNextNumber(context.Background(), corenumerator.DefaultConfig("PO"), nil, period)

	assert.ErrorContains(t, err, "strict next")
}
