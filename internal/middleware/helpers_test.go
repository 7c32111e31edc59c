package middleware

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/BradenHooton/subsignature/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordedEvent struct {
	Kind      models.SecurityEventKind
	AccountID *string
	Who       models.Requester
}

// mockEventRecorder implements auth.EventRecorder for testing
type mockEventRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (m *mockEventRecorder) RecordSecurityEvent(_ context.Context, kind models.SecurityEventKind, accountID *string, who models.Requester, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, recordedEvent{Kind: kind, AccountID: accountID, Who: who})
}
