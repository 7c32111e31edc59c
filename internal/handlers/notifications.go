package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/subsignature/internal/auth"
	"github.com/BradenHooton/subsignature/internal/middleware"
	"github.com/BradenHooton/subsignature/internal/models"
	"github.com/BradenHooton/subsignature/internal/services"
	pkghttp "github.com/BradenHooton/subsignature/pkg/http"
)

// BatchDispatcher runs bulk notification sends
type BatchDispatcher interface {
	Dispatch(ctx context.Context, req services.BatchRequest, emit services.EmitFunc) (services.BatchResult, error)
}

// NotificationHandler streams bulk send progress as newline-delimited JSON
type NotificationHandler struct {
	dispatcher BatchDispatcher
	ipConfig   *pkghttp.IPConfig
	logger     *slog.Logger
}

func NewNotificationHandler(dispatcher BatchDispatcher, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		dispatcher: dispatcher,
		ipConfig:   ipConfig,
		logger:     logger,
	}
}

// SendRequest selects the signatures to send
type SendRequest struct {
	IDs []string `json:"ids"`
}

// Send handles POST /admin/notifications/send.
//
// The dispatcher itself checks the X-CSRF-Token header and the selection, so those
// failures arrive as a fatal_error event in the stream rather than as an HTTP
// error. The request context is the cancellation signal: a client that hangs up
// stops the batch before its next item.
func (h *NotificationHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	session := auth.SessionFromContext(r.Context())
	batch := services.BatchRequest{
		PresentedToken: r.Header.Get(middleware.CSRFHeader),
		IDs:            req.IDs,
		Requester:      requester(r, h.ipConfig),
	}
	if session != nil {
		batch.Actor = session.Account
		batch.SessionToken = session.CSRFToken
	}

	rc := http.NewResponseController(w)
	// batches outlive the server write timeout
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.logger.WarnContext(r.Context(), "failed to clear write deadline", slog.Any("error", err))
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	emit := func(event models.ProgressEvent) error {
		if err := enc.Encode(event); err != nil {
			return err
		}
		return rc.Flush()
	}

	result, err := h.dispatcher.Dispatch(r.Context(), batch, emit)
	if err != nil {
		h.logger.WarnContext(r.Context(), "notification batch rejected", slog.Any("error", err))
		return
	}
	if result.Cancelled {
		h.logger.InfoContext(r.Context(), "notification stream closed by client",
			slog.Int("processed", result.Processed()),
			slog.Int("total", result.Total),
		)
	}
}
