package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/BradenHooton/subsignature/internal/models"
	"github.com/BradenHooton/subsignature/pkg/logger"
)

const (
	DefaultItemDelay  = 500 * time.Millisecond
	DefaultBurstEvery = 10
	DefaultBurstDelay = 2 * time.Second

	msgSignatureNotFound = "Signature not found"
	msgInvalidEmail      = "Invalid Email"
	msgTemplateInvalid   = "Template missing/invalid"
	msgSent              = "Sent"
)

// SignatureReader resolves the records a batch is rendered from
type SignatureReader interface {
	GetByID(ctx context.Context, id string) (*models.Signature, error)
}

// TokenVerifier checks a presented anti-forgery token against the session's
type TokenVerifier interface {
	Verify(expected, presented string) error
}

// EmitFunc receives progress events in order. An error means the caller is gone
// and the batch stops at the next item boundary.
type EmitFunc func(models.ProgressEvent) error

// DispatchConfig paces outbound mail
type DispatchConfig struct {
	ItemDelay  time.Duration
	BurstEvery int
	BurstDelay time.Duration
}

// BatchRequest is one admin-triggered bulk send
type BatchRequest struct {
	Actor          *models.Account
	SessionToken   string
	PresentedToken string
	IDs            []string
	Requester      models.Requester
}

// BatchResult summarizes what a batch did before it ended. Unrecorded counts
// processed items whose notification log row failed to persist.
type BatchResult struct {
	Total      int
	Succeeded  int
	Failed     int
	Unrecorded int
	Cancelled  bool
}

// Processed is the number of items that were attempted
func (r BatchResult) Processed() int {
	return r.Succeeded + r.Failed
}

// NotificationDispatcher sends signature notifications one item at a time and
// streams progress. At most one batch runs per dispatcher.
type NotificationDispatcher struct {
	signatures SignatureReader
	templates  TemplateProvider
	dialer     Dialer
	csrf       TokenVerifier
	audit      Auditor
	validate   *validator.Validate
	logger     *slog.Logger
	cfg        DispatchConfig

	gate  sync.Mutex
	sleep func(ctx context.Context, d time.Duration)
}

func NewNotificationDispatcher(
	signatures SignatureReader,
	templates TemplateProvider,
	dialer Dialer,
	csrf TokenVerifier,
	audit Auditor,
	logger *slog.Logger,
	cfg DispatchConfig,
) *NotificationDispatcher {
	if cfg.ItemDelay < 0 {
		cfg.ItemDelay = 0
	}
	if cfg.BurstEvery <= 0 {
		cfg.BurstEvery = DefaultBurstEvery
	}
	return &NotificationDispatcher{
		signatures: signatures,
		templates:  templates,
		dialer:     dialer,
		csrf:       csrf,
		audit:      audit,
		validate:   validator.New(),
		logger:     logger,
		cfg:        cfg,
		sleep:      sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Dispatch runs a batch. A rejected precondition emits a single fatal_error event
// and returns a *SecurityError (or ErrBatchInProgress wrapped in one). Item failures
// never abort the batch. Cancelling ctx stops the loop before the next item; the
// finished event is only emitted when every item was processed.
func (d *NotificationDispatcher) Dispatch(ctx context.Context, req BatchRequest, emit EmitFunc) (BatchResult, error) {
	if err := d.preflight(req); err != nil {
		return d.reject(ctx, req, err, emit)
	}
	if !d.gate.TryLock() {
		return d.reject(ctx, req, &SecurityError{
			Reason: "Another batch is already running",
			Err:    models.ErrBatchInProgress,
		}, emit)
	}
	defer d.gate.Unlock()

	result := BatchResult{Total: len(req.IDs)}

	var transport Transport
	defer func() {
		if transport != nil {
			if err := transport.Close(); err != nil {
				d.logger.WarnContext(ctx, "failed to close mail transport", slog.Any("error", err))
			}
		}
	}()

	d.logger.InfoContext(ctx, "notification batch started",
		slog.String("actor_id", req.Actor.ID),
		slog.Int("total", result.Total),
	)

	if err := emit(models.ProgressEvent{
		Status:   models.ProgressStart,
		Message:  fmt.Sprintf("Starting batch of %d", result.Total),
		Progress: &models.Progress{Current: 0, Total: result.Total},
	}); err != nil {
		result.Cancelled = true
		return result, nil
	}

	// in-flight work and its audit rows outlive a disconnect
	work := context.WithoutCancel(ctx)

	for i, id := range req.IDs {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}

		recipient, err := d.processItem(work, id, &transport)

		status, message := models.NotificationSuccess, msgSent
		if err != nil {
			status, message = models.NotificationError, itemMessage(err)
			result.Failed++
		} else {
			result.Succeeded++
		}
		auditFailed := d.audit.RecordNotification(work, id, recipient, status, message) != nil
		if auditFailed {
			result.Unrecorded++
		}

		if emitErr := emit(models.ProgressEvent{
			Status:      status,
			Message:     message,
			Progress:    &models.Progress{Current: i + 1, Total: result.Total},
			SignatureID: id,
			AuditFailed: auditFailed,
		}); emitErr != nil {
			result.Cancelled = true
			break
		}

		d.sleep(ctx, d.cfg.ItemDelay)
		if err == nil && result.Succeeded%d.cfg.BurstEvery == 0 {
			d.sleep(ctx, d.cfg.BurstDelay)
		}
	}

	if result.Cancelled {
		d.logger.WarnContext(ctx, "notification batch cancelled",
			slog.Int("processed", result.Processed()),
			slog.Int("total", result.Total),
		)
		return result, nil
	}

	summary := fmt.Sprintf("Completed. Success: %d, Failed: %d", result.Succeeded, result.Failed)
	if result.Unrecorded > 0 {
		summary += fmt.Sprintf(", Unrecorded: %d", result.Unrecorded)
	}
	d.logger.InfoContext(ctx, "notification batch finished",
		slog.Int("succeeded", result.Succeeded),
		slog.Int("failed", result.Failed),
		slog.Int("unrecorded", result.Unrecorded),
	)
	_ = emit(models.ProgressEvent{
		Status:   models.ProgressFinished,
		Message:  summary,
		Progress: &models.Progress{Current: result.Processed(), Total: result.Total},
		Summary:  summary,
	})
	return result, nil
}

func (d *NotificationDispatcher) preflight(req BatchRequest) error {
	if !req.Actor.IsAdmin() {
		return &SecurityError{Reason: "Unauthorized", Err: models.ErrForbidden}
	}
	if err := d.csrf.Verify(req.SessionToken, req.PresentedToken); err != nil {
		return &SecurityError{Reason: "Invalid CSRF token", Err: err}
	}
	if len(req.IDs) == 0 {
		return &SecurityError{Reason: "No signatures selected", Err: models.ErrBadRequest}
	}
	return nil
}

func (d *NotificationDispatcher) reject(ctx context.Context, req BatchRequest, err error, emit EmitFunc) (BatchResult, error) {
	var secErr *SecurityError
	errors.As(err, &secErr)

	kind := models.EventBatchRejected
	if errors.Is(err, models.ErrCSRFInvalid) {
		kind = models.EventCSRFFailed
	}
	var actorID *string
	if req.Actor != nil {
		actorID = &req.Actor.ID
	}
	d.audit.RecordSecurityEvent(ctx, kind, actorID, req.Requester, "Bulk notification rejected: "+secErr.Reason)

	_ = emit(models.ProgressEvent{Status: models.ProgressFatalError, Message: secErr.Reason})
	return BatchResult{Total: len(req.IDs)}, err
}

// processItem renders and sends one record. It returns the recipient it resolved,
// which may be empty when the record could not be loaded.
func (d *NotificationDispatcher) processItem(ctx context.Context, id string, transport *Transport) (string, error) {
	sig, err := d.signatures.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			d.logger.ErrorContext(ctx, "failed to load signature", slog.String("signature_id", id), slog.Any("error", err))
		}
		return "", &ValidationError{SignatureID: id, Reason: msgSignatureNotFound}
	}

	if err := d.validate.Var(sig.Email, "required,email"); err != nil {
		return sig.Email, &ValidationError{SignatureID: id, Reason: msgInvalidEmail}
	}

	result, err := d.templates.Resolve(ctx, sig.Template)
	if err != nil {
		d.logger.ErrorContext(ctx, "template backend failed",
			slog.String("template", sig.Template),
			slog.Any("error", err),
		)
	}
	tpl, ok := result.Content()
	if !ok {
		return sig.Email, &ValidationError{SignatureID: id, Reason: msgTemplateInvalid}
	}

	if *transport == nil {
		t, err := d.dialer.Dial(ctx)
		if err != nil {
			return sig.Email, asTransportError("dial", err)
		}
		*transport = t
	}

	if err := (*transport).Send(ctx, BuildNotification(sig, tpl)); err != nil {
		// the connection state is unknown after a failed send
		if closeErr := (*transport).Close(); closeErr != nil {
			d.logger.DebugContext(ctx, "failed to close broken transport", slog.Any("error", closeErr))
		}
		*transport = nil
		d.logger.WarnContext(ctx, "notification send failed",
			slog.String("signature_id", id),
			slog.String("recipient", logger.SanitizedEmail(sig.Email)),
			slog.Any("error", err),
		)
		return sig.Email, asTransportError("send", err)
	}

	return sig.Email, nil
}

func asTransportError(op string, err error) *TransportError {
	var te *TransportError
	if errors.As(err, &te) {
		return te
	}
	return &TransportError{Op: op, Err: err}
}

func itemMessage(err error) string {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Diagnostic()
	}
	return err.Error()
}
