package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplyhub/internal/core/apperror"
	"supplyhub/internal/infrastructure/idempotency"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newIdempotentEngine serves POST /orders, answering with the errors in
// fails before succeeding.
func newIdempotentEngine(fails ...error) (*gin.Engine, *int) {
	calls := 0
	engine := gin.New()
	engine.Use(ErrorHandler(), Idempotency(idempotency.NewMemory(time.Hour)))
	engine.POST("/orders", func(c *gin.Context) {
		calls++
		if calls <= len(fails) {
			_ = c.Error(fails[calls-1])
			return
		}
		c.JSON(http.StatusCreated, gin.H{"call": calls})
	})
	return engine, &calls
}

func post(engine http.Handler, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"supplier_id":3}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderIdempotencyKey, key)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestErrorHandler_RetryableFailureReleasesKey(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"order locked", apperror.NewOrderLocked("o-1")},
		{"internal", apperror.NewInternal(assert.AnError)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, calls := newIdempotentEngine(tt.err)

			first := post(engine, "k1")
			require.GreaterOrEqual(t, first.Code, http.StatusConflict)

			second := post(engine, "k1")
			require.Equal(t, http.StatusCreated, second.Code, second.Body.String())
			assert.Empty(t, second.Header().Get("Idempotent-Replayed"))
			assert.Equal(t, 2, *calls)
		})
	}
}

func TestErrorHandler_DeterministicFailureIsReplayed(t *testing.T) {
	engine, calls := newIdempotentEngine(apperror.NewValidation("supplier_id is required"))

	first := post(engine, "k1")
	require.Equal(t, http.StatusBadRequest, first.Code)

	second := post(engine, "k1")
	assert.Equal(t, http.StatusBadRequest, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, *calls)
}
