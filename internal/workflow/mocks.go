package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/finanze/finanze-sub000/internal/service"
)

// MockNotifier records toasts for verification in tests.
type MockNotifier struct {
	notes []MockNotification
	mu    sync.Mutex
}

// MockNotification is one recorded toast.
type MockNotification struct {
	Message string
	Level   service.NotificationLevel
}

// Notify records the toast.
func (m *MockNotifier) Notify(message string, level service.NotificationLevel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes = append(m.notes, MockNotification{Message: message, Level: level})
}

// Notifications returns all recorded toasts.
func (m *MockNotifier) Notifications() []MockNotification {
	m.mu.Lock()
	defer m.mu.Unlock()
	notes := make([]MockNotification, len(m.notes))
	copy(notes, m.notes)
	return notes
}

// Count returns the number of recorded toasts.
func (m *MockNotifier) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.notes)
}

var _ service.Notifier = (*MockNotifier)(nil)

// MockBridge is a test implementation of the external login bridge.
type MockBridge struct {
	OpenErr     error
	opens       []string
	Unavailable bool
	AckFailure  bool
	mu          sync.Mutex
}

// Available reports the scripted availability.
func (m *MockBridge) Available() bool {
	return !m.Unavailable
}

// Open records the hand-off and returns the scripted ack.
func (m *MockBridge) Open(_ context.Context, entityID string, _ map[string]string) (service.BridgeAck, error) {
	m.mu.Lock()
	m.opens = append(m.opens, entityID)
	m.mu.Unlock()
	if m.OpenErr != nil {
		return service.BridgeAck{}, m.OpenErr
	}
	return service.BridgeAck{Success: !m.AckFailure}, nil
}

// Opens returns the entity ids handed off so far.
func (m *MockBridge) Opens() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.opens))
	copy(out, m.opens)
	return out
}

var _ service.ExternalLoginBridge = (*MockBridge)(nil)

// MockRecorder records auto-refresh attempt outcomes.
type MockRecorder struct {
	Successes map[string]time.Time
	Failures  map[string]int
	mu        sync.Mutex
}

// NewMockRecorder creates an empty recorder.
func NewMockRecorder() *MockRecorder {
	return &MockRecorder{
		Successes: make(map[string]time.Time),
		Failures:  make(map[string]int),
	}
}

// RecordSuccess notes a successful silent attempt.
func (m *MockRecorder) RecordSuccess(entityID string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Successes[entityID] = at
}

// RecordFailure notes a failed silent attempt with its HTTP status, if any.
func (m *MockRecorder) RecordFailure(entityID string, httpStatus int, _ time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Failures[entityID] = httpStatus
}

var _ AttemptRecorder = (*MockRecorder)(nil)
