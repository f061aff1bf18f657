package idempotency

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplyhub/internal/core/apperror"
)

func TestMemory_Lifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Hour)

	replay, err := m.AcquireKey(ctx, "k1", "POST /orders", "h1")
	require.NoError(t, err)
	assert.Nil(t, replay)

	_, err = m.AcquireKey(ctx, "k1", "POST /orders", "h1")
	assert.True(t, apperror.HasCode(err, apperror.CodeIdempotency), "in-flight key must conflict")

	require.NoError(t, m.CompleteKey(ctx, "k1", http.StatusCreated, "application/json", map[string]string{"id": "x"}))

	replay, err = m.AcquireKey(ctx, "k1", "POST /orders", "h1")
	require.NoError(t, err)
	require.NotNil(t, replay)
	assert.Equal(t, http.StatusCreated, replay.StatusCode)
	assert.JSONEq(t, `{"id":"x"}`, string(replay.Body))
}

func TestMemory_Mismatch(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Hour)

	_, err := m.AcquireKey(ctx, "k1", "POST /orders", "h1")
	require.NoError(t, err)

	_, err = m.AcquireKey(ctx, "k1", "POST /orders", "other-body")
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "Idempotency key mismatch", appErr.Message)
}

func TestMemory_StaleAndExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory(time.Hour)
	m.now = func() time.Time { return now }

	_, err := m.AcquireKey(ctx, "k1", "POST /orders", "h1")
	require.NoError(t, err)

	now = now.Add(2 * StaleAfter)
	replay, err := m.AcquireKey(ctx, "k1", "POST /orders", "h1")
	require.NoError(t, err, "stale pending key is reclaimed")
	assert.Nil(t, replay)

	require.NoError(t, m.FailKey(ctx, "k1", http.StatusUnprocessableEntity, "", nil))
	now = now.Add(2 * time.Hour)
	replay, err = m.AcquireKey(ctx, "k1", "POST /orders", "different")
	require.NoError(t, err, "expired key starts over")
	assert.Nil(t, replay)
}

func TestMemory_ReleaseKey(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Hour)

	_, err := m.AcquireKey(ctx, "k1", "POST /orders", "h1")
	require.NoError(t, err)
	require.NoError(t, m.ReleaseKey(ctx, "k1"))

	replay, err := m.AcquireKey(ctx, "k1", "POST /orders", "h1")
	require.NoError(t, err, "released key is free again")
	assert.Nil(t, replay)

	// Finished keys are kept.
	require.NoError(t, m.CompleteKey(ctx, "k1", http.StatusCreated, "application/json", nil))
	require.NoError(t, m.ReleaseKey(ctx, "k1"))
	replay, err = m.AcquireKey(ctx, "k1", "POST /orders", "h1")
	require.NoError(t, err)
	require.NotNil(t, replay)
	assert.Equal(t, http.StatusCreated, replay.StatusCode)
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{http.StatusBadRequest, false},
		{http.StatusNotFound, false},
		{http.StatusUnprocessableEntity, false},
		{http.StatusConflict, true},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusServiceUnavailable, true},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, Retryable(tt.status))
		})
	}
}
