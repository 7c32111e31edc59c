package handlers_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BradenHooton/subsignature/internal/handlers"
)

func TestHealth(t *testing.T) {
	t.Run("database up", func(t *testing.T) {
		w := httptest.NewRecorder()
		handlers.NewHealthHandler(&MockPinger{}, testLogger()).Health(w, newTestRequest(t, http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	})

	t.Run("database down", func(t *testing.T) {
		w := httptest.NewRecorder()
		handlers.NewHealthHandler(&MockPinger{Err: errors.New("refused")}, testLogger()).Health(w, newTestRequest(t, http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.JSONEq(t, `{"status":"unavailable"}`, w.Body.String())
	})
}
