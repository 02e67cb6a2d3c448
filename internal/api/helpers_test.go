package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/finsphere/finsphere/internal/advisor"
	"github.com/finsphere/finsphere/internal/audit"
	"github.com/finsphere/finsphere/internal/db"
	"github.com/finsphere/finsphere/internal/intervention"
	"github.com/finsphere/finsphere/internal/market"
	"github.com/finsphere/finsphere/internal/profile"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// fakeStore is an in-memory Store
type fakeStore struct {
	mu            sync.Mutex
	users         map[string]*db.User
	biometrics    []profile.BiometricReading
	transactions  []profile.Transaction
	interventions []profile.InterventionRecord
	history       profile.History
	historyErr    error
	healthErr     error
	insertErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: map[string]*db.User{}}
}

func (f *fakeStore) UpsertUser(_ context.Context, u *db.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.users[u.ID] = u
	return nil
}

func (f *fakeStore) GetUser(_ context.Context, id string) (*db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) InsertBiometric(_ context.Context, r *profile.BiometricReading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	r.ID = uuid.NewString()
	f.biometrics = append(f.biometrics, *r)
	return nil
}

func (f *fakeStore) LatestBiometric(_ context.Context, userID string) (*profile.BiometricReading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.biometrics) - 1; i >= 0; i-- {
		if f.biometrics[i].UserID == userID {
			r := f.biometrics[i]
			return &r, nil
		}
	}
	return nil, db.ErrNotFound
}

func (f *fakeStore) InsertTransaction(_ context.Context, t *profile.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	t.ID = uuid.NewString()
	f.transactions = append(f.transactions, *t)
	return nil
}

func (f *fakeStore) InsertIntervention(_ context.Context, r *profile.InterventionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	r.ID = uuid.NewString()
	f.interventions = append(f.interventions, *r)
	return nil
}

func (f *fakeStore) RecordOutcome(_ context.Context, userID, interventionID, action, effectiveness string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.interventions {
		r := &f.interventions[i]
		if r.ID == interventionID && r.UserID == userID {
			r.UserAction = action
			r.Effectiveness = effectiveness
			return nil
		}
	}
	return db.ErrNotFound
}

func (f *fakeStore) LoadHistory(_ context.Context, _ string) (profile.History, error) {
	return f.history, f.historyErr
}

func (f *fakeStore) Health(context.Context) error {
	return f.healthErr
}

// fakeAdvisor returns canned results
type fakeAdvisor struct {
	assessment     *advisor.Assessment
	recommendation *advisor.Recommendation
	err            error
	explain        bool
}

func (f *fakeAdvisor) Assess(_ context.Context, _ string, explain bool) (*advisor.Assessment, error) {
	f.explain = explain
	return f.assessment, f.err
}

func (f *fakeAdvisor) Recommend(context.Context, string) (*advisor.Recommendation, error) {
	return f.recommendation, f.err
}

// recordingAudit keeps every event
type recordingAudit struct {
	mu          sync.Mutex
	events      []audit.Event
	evaluations []audit.EvaluationRecord
	evalLimit   int
}

func (r *recordingAudit) Log(_ context.Context, e *audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *e)
	return nil
}

func (r *recordingAudit) LogIntervention(ctx context.Context, userID, interventionID, severity, contextURL string, delayMinutes int) error {
	return r.Log(ctx, &audit.Event{
		EventType: audit.EventTypeInterventionTriggered,
		UserID:    userID,
		Resource:  interventionID,
		Success:   true,
		Metadata:  map[string]any{"severity": severity, "delay_minutes": delayMinutes},
	})
}

func (r *recordingAudit) LogOutcome(ctx context.Context, userID, interventionID, action, effectiveness string, success bool, errorMsg string) error {
	return r.Log(ctx, &audit.Event{
		EventType: audit.EventTypeInterventionOutcome,
		UserID:    userID,
		Resource:  interventionID,
		Success:   success,
		ErrorMsg:  errorMsg,
	})
}

func (r *recordingAudit) LogSecurityEvent(ctx context.Context, eventType audit.EventType, userID, ipAddress, resource, action string, metadata map[string]any) error {
	return r.Log(ctx, &audit.Event{
		EventType: eventType,
		UserID:    userID,
		IPAddress: ipAddress,
		Resource:  resource,
		Action:    action,
		Metadata:  metadata,
	})
}

func (r *recordingAudit) Evaluations(_ context.Context, _ string, limit int) ([]audit.EvaluationRecord, error) {
	r.evalLimit = limit
	return r.evaluations, nil
}

func (r *recordingAudit) types() []audit.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]audit.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventType
	}
	return out
}

// fakeEvents records published interventions
type fakeEvents struct {
	interventions []intervention.Decision
	outcomes      []string
}

func (f *fakeEvents) PublishIntervention(_ context.Context, _, _, _ string, d intervention.Decision) error {
	f.interventions = append(f.interventions, d)
	return nil
}

func (f *fakeEvents) PublishOutcome(_ context.Context, _, _, action, _ string) error {
	f.outcomes = append(f.outcomes, action)
	return nil
}

type testServer struct {
	*Server
	store   *fakeStore
	advisor *fakeAdvisor
	audit   *recordingAudit
	events  *fakeEvents
}

func newTestServer(t *testing.T, opts ...func(*Config)) *testServer {
	t.Helper()

	ts := &testServer{
		store:   newFakeStore(),
		advisor: &fakeAdvisor{},
		audit:   &recordingAudit{},
		events:  &fakeEvents{},
	}

	cfg := Config{
		Version:       "test",
		RateLimit:     1000,
		RateBurst:     1000,
		Store:         ts.store,
		Advisor:       ts.advisor,
		Interventions: intervention.NewEngine(intervention.WithClock(func() time.Time { return testNow })),
		Market: market.ProviderFunc(func(context.Context) (market.Snapshot, error) {
			return market.Default(testNow), nil
		}),
		Audit:  ts.audit,
		Events: ts.events,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	ts.Server = NewServer(cfg)
	ts.Server.now = func() time.Time { return testNow }
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.Router().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}
