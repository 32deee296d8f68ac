package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribeworks/backend/internal/store"
)

func TestError_Is(t *testing.T) {
	err := conflictError("task %d is LOCKED", 4)
	assert.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrNotFound)

	wrapped := fmt.Errorf("lock: %w", err)
	assert.ErrorIs(t, wrapped, ErrConflict)
	assert.Equal(t, KindConflict, KindOf(wrapped))
}

func TestNotFoundOr(t *testing.T) {
	err := notFoundOr(store.ErrNotFound, "task %d not found", 3)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, "task 3 not found: record not found", err.Error())

	other := errors.New("connection reset")
	assert.Same(t, other, notFoundOr(other, "ignored"))
	assert.Nil(t, notFoundOr(nil, "ignored"))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{validationError("bad"), http.StatusBadRequest},
		{ErrNotFound, http.StatusNotFound},
		{conflictError("taken"), http.StatusConflict},
		{policyError("trainee"), http.StatusForbidden},
		{insufficientFunds("broke"), http.StatusPaymentRequired},
		{adapterError(errors.New("timeout")), http.StatusServiceUnavailable},
		{fmt.Errorf("%w: deadlock detected", store.ErrContention), http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), tt.err.Error())
	}
}

func TestSendError(t *testing.T) {
	t.Run("classified", func(t *testing.T) {
		w := httptest.NewRecorder()
		SendError(w, adapterError(errors.New("deadline exceeded")))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "5", w.Header().Get("Retry-After"))

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, KindAdapter, resp.Kind)
		assert.NotContains(t, resp.Error, "deadline")
	})

	t.Run("unclassified hides details", func(t *testing.T) {
		w := httptest.NewRecorder()
		SendError(w, errors.New("pq: relation does not exist"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "internal server error", resp.Error)
	})

	t.Run("contention is a conflict", func(t *testing.T) {
		w := httptest.NewRecorder()
		SendError(w, fmt.Errorf("%w: pq: deadlock detected", store.ErrContention))

		assert.Equal(t, http.StatusConflict, w.Code)
		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, KindConflict, resp.Kind)
		assert.NotContains(t, resp.Error, "pq:")
	})
}
