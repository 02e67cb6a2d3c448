package alerts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockAlerter records every alert it receives
type MockAlerter struct {
	mu     sync.Mutex
	alerts []Alert
	err    error
}

func NewMockAlerter(err error) *MockAlerter {
	return &MockAlerter{err: err}
}

func (m *MockAlerter) Send(_ context.Context, alert Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, alert)
	return m.err
}

func (m *MockAlerter) Alerts() []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Alert(nil), m.alerts...)
}

func TestNewManager(t *testing.T) {
	manager := NewManager(NewMockAlerter(nil), NewMockAlerter(nil))
	require.NotNil(t, manager)
	assert.Equal(t, 2, manager.Len())

	manager.Add(NewLogAlerter())
	assert.Equal(t, 3, manager.Len())
}

func TestManager_SendSetsTimestamp(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	mock := NewMockAlerter(nil)
	manager := NewManager(mock)
	manager.now = func() time.Time { return now }

	require.NoError(t, manager.Send(context.Background(), Alert{Title: "t", Severity: SeverityInfo}))

	got := mock.Alerts()
	require.Len(t, got, 1)
	assert.Equal(t, now, got[0].Timestamp)
}

func TestManager_SendKeepsTimestamp(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock := NewMockAlerter(nil)

	require.NoError(t, NewManager(mock).Send(context.Background(), Alert{Title: "t", Timestamp: ts}))
	assert.Equal(t, ts, mock.Alerts()[0].Timestamp)
}

func TestManager_FailingChannelDoesNotStopOthers(t *testing.T) {
	errA := errors.New("channel a down")
	errB := errors.New("channel b down")
	a := NewMockAlerter(errA)
	ok := NewMockAlerter(nil)
	b := NewMockAlerter(errB)

	err := NewManager(a, ok, b).Send(context.Background(), Alert{Title: "t"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)

	assert.Len(t, a.Alerts(), 1)
	assert.Len(t, ok.Alerts(), 1)
	assert.Len(t, b.Alerts(), 1)
}

func TestManager_NoAlerters(t *testing.T) {
	assert.NoError(t, NewManager().Send(context.Background(), Alert{Title: "t"}))
}

func TestLogAlerter_Send(t *testing.T) {
	alerter := NewLogAlerter()

	for _, sev := range []Severity{SeverityCritical, SeverityWarning, SeverityInfo, Severity("OTHER")} {
		t.Run(string(sev), func(t *testing.T) {
			err := alerter.Send(context.Background(), Alert{
				Title:     "Log Test",
				Message:   "Log test message",
				Severity:  sev,
				UserID:    "user-1",
				Timestamp: time.Now(),
				Metadata:  map[string]any{"test_key": "test_value"},
			})
			assert.NoError(t, err)
		})
	}
}
