package handlers_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/subsignature/internal/handlers"
	"github.com/BradenHooton/subsignature/internal/middleware"
	"github.com/BradenHooton/subsignature/internal/models"
	"github.com/BradenHooton/subsignature/internal/services"
)

func decodeStream(t *testing.T, body string) []models.ProgressEvent {
	t.Helper()
	var events []models.ProgressEvent
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		var e models.ProgressEvent
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e), scanner.Text())
		events = append(events, e)
	}
	return events
}

func sendRequest(t *testing.T, body any) *http.Request {
	req := withSession(newTestRequest(t, http.MethodPost, "/admin/notifications/send", body), adminAccount, "csrf-admin")
	req.Header.Set(middleware.CSRFHeader, "csrf-presented")
	return req
}

func TestSend_StreamsProgress(t *testing.T) {
	dispatcher := &MockDispatcher{
		DispatchFunc: func(_ context.Context, req services.BatchRequest, emit services.EmitFunc) (services.BatchResult, error) {
			assert.Equal(t, adminAccount.ID, req.Actor.ID)
			assert.Equal(t, "csrf-admin", req.SessionToken)
			assert.Equal(t, "csrf-presented", req.PresentedToken)
			assert.Equal(t, []string{"sig-1", "sig-2"}, req.IDs)
			assert.Equal(t, "203.0.113.7", req.Requester.IPAddress)

			events := []models.ProgressEvent{
				{Status: models.ProgressStart, Message: "Starting batch of 2", Progress: &models.Progress{Current: 0, Total: 2}},
				{Status: models.ProgressSuccess, Message: "Sent", SignatureID: "sig-1", Progress: &models.Progress{Current: 1, Total: 2}},
				{Status: models.ProgressError, Message: "Invalid Email", SignatureID: "sig-2", Progress: &models.Progress{Current: 2, Total: 2}},
				{Status: models.ProgressFinished, Message: "Completed. Success: 1, Failed: 1", Summary: "Completed. Success: 1, Failed: 1", Progress: &models.Progress{Current: 2, Total: 2}},
			}
			for _, e := range events {
				require.NoError(t, emit(e))
			}
			return services.BatchResult{Total: 2, Succeeded: 1, Failed: 1}, nil
		},
	}

	w := httptest.NewRecorder()
	handlers.NewNotificationHandler(dispatcher, nil, testLogger()).Send(w, sendRequest(t, handlers.SendRequest{IDs: []string{"sig-1", "sig-2"}}))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/x-ndjson", w.Header().Get("Content-Type"))
	assert.True(t, w.Flushed)

	events := decodeStream(t, w.Body.String())
	require.Len(t, events, 4)
	assert.Equal(t, models.ProgressStart, events[0].Status)
	assert.Equal(t, "sig-1", events[1].SignatureID)
	assert.Equal(t, models.ProgressError, events[2].Status)
	assert.Equal(t, 2, events[3].Progress.Current)
	assert.True(t, events[3].IsTerminal())
}

func TestSend_FatalErrorInStream(t *testing.T) {
	dispatcher := &MockDispatcher{
		DispatchFunc: func(_ context.Context, _ services.BatchRequest, emit services.EmitFunc) (services.BatchResult, error) {
			_ = emit(models.ProgressEvent{Status: models.ProgressFatalError, Message: "Invalid CSRF token"})
			return services.BatchResult{}, &services.SecurityError{Reason: "Invalid CSRF token", Err: models.ErrCSRFInvalid}
		},
	}

	w := httptest.NewRecorder()
	handlers.NewNotificationHandler(dispatcher, nil, testLogger()).Send(w, sendRequest(t, handlers.SendRequest{IDs: []string{"sig-1"}}))

	assert.Equal(t, http.StatusOK, w.Code)
	events := decodeStream(t, w.Body.String())
	require.Len(t, events, 1)
	assert.Equal(t, models.ProgressFatalError, events[0].Status)
	assert.Nil(t, events[0].Progress)
	assert.Contains(t, w.Body.String(), `"progress":null`)
}

func TestSend_InvalidBody(t *testing.T) {
	dispatcher := &MockDispatcher{
		DispatchFunc: func(context.Context, services.BatchRequest, services.EmitFunc) (services.BatchResult, error) {
			t.Fatal("dispatcher must not be called")
			return services.BatchResult{}, nil
		},
	}

	w := httptest.NewRecorder()
	handlers.NewNotificationHandler(dispatcher, nil, testLogger()).Send(w, sendRequest(t, `{"ids":"sig-1"}`))

	assertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
}
