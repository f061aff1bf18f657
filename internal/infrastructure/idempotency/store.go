// Package idempotency lets clients retry mutating requests (creating an
// order, changing its status) without applying them twice.
package idempotency

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"supplyhub/internal/core/apperror"
)

// Status represents the state of an idempotent operation.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// StaleAfter is how long a pending key blocks retries before it is
// considered abandoned by a crashed request.
const StaleAfter = time.Minute

// Replay is the cached HTTP response of a finished operation.
type Replay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Store manages idempotency keys.
type Store interface {
	// AcquireKey returns (nil, nil) when the caller owns the key and should
	// run the operation, a Replay when it already finished, or an error
	// when the key is in use or was issued for a different request.
	AcquireKey(ctx context.Context, key, operation, requestHash string) (*Replay, error)
	CompleteKey(ctx context.Context, key string, statusCode int, contentType string, response any) error
	FailKey(ctx context.Context, key string, statusCode int, contentType string, response any) error
	// ReleaseKey forgets a pending key so the same request can run again.
	ReleaseKey(ctx context.Context, key string) error
}

// Retryable reports whether a failed response may succeed when retried:
// conflicts such as a locked order, throttling and server errors. Those
// responses are not stored for replay.
func Retryable(statusCode int) bool {
	switch {
	case statusCode == http.StatusConflict,
		statusCode == http.StatusRequestTimeout,
		statusCode == http.StatusTooManyRequests:
		return true
	default:
		return statusCode >= http.StatusInternalServerError
	}
}

// Record is the stored state of one key.
type Record struct {
	Key         string    `db:"idempotency_key"`
	Operation   string    `db:"operation"`
	Status      Status    `db:"status"`
	RequestHash string    `db:"request_hash"`
	Response    []byte    `db:"response"`
	StatusCode  int       `db:"response_status"`
	ContentType string    `db:"response_content_type"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
	ExpiresAt   time.Time `db:"expires_at"`
}

// Resolve decides what a request presenting an existing record gets.
// reclaim is true when a stale pending record may be taken over.
func (r *Record) Resolve(operation, requestHash string, now time.Time) (replay *Replay, reclaim bool, err error) {
	if r.Operation != operation || r.RequestHash != requestHash {
		return nil, false, apperror.NewIdempotencyMismatch(r.Key).
			WithDetail("stored_operation", r.Operation).
			WithDetail("request_operation", operation)
	}

	switch r.Status {
	case StatusSuccess, StatusFailed:
		return &Replay{
			StatusCode:  normalizeStatus(r.StatusCode),
			ContentType: normalizeContentType(r.ContentType),
			Body:        r.Response,
		}, false, nil
	default:
		if now.Sub(r.UpdatedAt) > StaleAfter {
			return nil, true, nil
		}
		return nil, false, apperror.NewIdempotencyConflict(r.Key)
	}
}

// EncodeResponse marshals a response body; nil stays empty.
func EncodeResponse(response any) ([]byte, error) {
	if response == nil {
		return nil, nil
	}
	return json.Marshal(response)
}

func normalizeStatus(status int) int {
	if status == 0 {
		return http.StatusOK
	}
	return status
}

func normalizeContentType(ct string) string {
	if ct == "" {
		return "application/json"
	}
	return ct
}

// Memory keeps keys in process memory. It backs the local storage driver.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	records map[string]*Record
	now     func() time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory creates an in-memory store whose keys expire after ttl.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:     ttl,
		records: make(map[string]*Record),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) AcquireKey(ctx context.Context, key, operation, requestHash string) (*Replay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	rec, ok := m.records[key]
	if ok && now.After(rec.ExpiresAt) {
		delete(m.records, key)
		ok = false
	}
	if !ok {
		m.records[key] = &Record{
			Key:         key,
			Operation:   operation,
			Status:      StatusPending,
			RequestHash: requestHash,
			CreatedAt:   now,
			UpdatedAt:   now,
			ExpiresAt:   now.Add(m.ttl),
		}
		return nil, nil
	}

	replay, reclaim, err := rec.Resolve(operation, requestHash, now)
	if reclaim {
		rec.UpdatedAt = now
	}
	return replay, err
}

func (m *Memory) CompleteKey(ctx context.Context, key string, statusCode int, contentType string, response any) error {
	return m.finish(key, StatusSuccess, statusCode, contentType, response)
}

func (m *Memory) FailKey(ctx context.Context, key string, statusCode int, contentType string, response any) error {
	return m.finish(key, StatusFailed, statusCode, contentType, response)
}

func (m *Memory) ReleaseKey(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[key]; ok && rec.Status == StatusPending {
		delete(m.records, key)
	}
	return nil
}

func (m *Memory) finish(key string, status Status, statusCode int, contentType string, response any) error {
	body, err := EncodeResponse(response)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		return nil
	}
	rec.Status = status
	rec.Response = body
	rec.StatusCode = statusCode
	rec.ContentType = contentType
	rec.UpdatedAt = m.now()
	return nil
}
