package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/llmsync/internal/core/domain"
	"github.com/custodia-labs/llmsync/internal/core/ports/driving"
	"github.com/custodia-labs/llmsync/internal/core/services"
)

type mockCoordinator struct {
	mu       sync.Mutex
	ack      domain.TriggerAck
	result   *domain.RunResult
	triggers int
	submits  int
	reasons  []domain.TriggerReason
	status   driving.CoordinatorStatus
}

func (m *mockCoordinator) Trigger(_ context.Context, _ string, reason domain.TriggerReason) (domain.TriggerAck, *domain.RunResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggers++
	m.reasons = append(m.reasons, reason)
	if m.ack == domain.AckPending {
		return m.ack, nil
	}
	return domain.AckRan, m.result
}

func (m *mockCoordinator) Submit(_ string, reason domain.TriggerReason) domain.TriggerAck {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submits++
	m.reasons = append(m.reasons, reason)
	if m.ack == "" {
		return domain.AckRan
	}
	return m.ack
}

func (m *mockCoordinator) Status(string) driving.CoordinatorStatus {
	return m.status
}

func (m *mockCoordinator) Wait() {}

func (m *mockCoordinator) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.triggers + m.submits
}

func testConfig() domain.WebhookConfig {
	return domain.WebhookConfig{
		Host:       "127.0.0.1",
		Port:       0,
		Secret:     "s3cret",
		AllowedIPs: []string{"127.0.0.1", "10.0.0.0/8"},
	}
}

func newTestServer(t *testing.T, coord *mockCoordinator) *Server {
	t.Helper()
	s, err := New(testConfig(), "example.com", coord)
	require.NoError(t, err)
	return s
}

func post(t *testing.T, s *Server, target, remote string, body io.Reader, headers map[string]string) (*httptest.ResponseRecorder, response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, body)
	req.RemoteAddr = remote
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestNew_RefusesPlaceholderSecret(t *testing.T) {
	for _, secret := range []string{"", domain.PlaceholderSecret} {
		cfg := testConfig()
		cfg.Secret = secret
		_, err := New(cfg, "example.com", &mockCoordinator{})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	}
}

func TestNew_BadAllowList(t *testing.T) {
	cfg := testConfig()
	cfg.AllowedIPs = []string{"not-an-ip"}
	_, err := New(cfg, "example.com", &mockCoordinator{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUpdate_SecretLocations(t *testing.T) {
	form := url.Values{"secret": {"s3cret"}}.Encode()
	tests := []struct {
		name    string
		body    string
		headers map[string]string
	}{
		{"json body", `{"secret":"s3cret"}`, map[string]string{"Content-Type": "application/json"}},
		{"form field", form, map[string]string{"Content-Type": "application/x-www-form-urlencoded"}},
		{"header", "", map[string]string{SecretHeader: "s3cret"}},
		{"bearer", "", map[string]string{"Authorization": "Bearer s3cret"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coord := &mockCoordinator{}
			s := newTestServer(t, coord)

			rec, resp := post(t, s, "/update", "127.0.0.1:40000", strings.NewReader(tt.body), tt.headers)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, domain.AckRan, resp.Status)
			assert.Equal(t, 1, coord.submits)
			assert.Equal(t, []domain.TriggerReason{domain.ReasonWebhook}, coord.reasons)
		})
	}
}

func TestUpdate_RejectedAuth(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		headers map[string]string
	}{
		{"wrong secret", `{"secret":"nope"}`, map[string]string{"Content-Type": "application/json"}},
		{"missing secret", "", nil},
		{"malformed json", `{"secret":`, map[string]string{"Content-Type": "application/json"}},
		{"prefix of secret", "", map[string]string{SecretHeader: "s3c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coord := &mockCoordinator{}
			s := newTestServer(t, coord)

			rec, resp := post(t, s, "/update", "127.0.0.1:40000", strings.NewReader(tt.body), tt.headers)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, domain.AckRejectedAuth, resp.Status)
			assert.Zero(t, coord.calls(), "rejected requests must not reach the coordinator")
		})
	}
}

func TestUpdate_RejectedIP(t *testing.T) {
	coord := &mockCoordinator{}
	s := newTestServer(t, coord)

	rec, resp := post(t, s, "/update", "192.0.2.7:40000", nil, map[string]string{SecretHeader: "s3cret"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, domain.AckRejectedIP, resp.Status)
	assert.Zero(t, coord.calls())

	rec, _ = post(t, s, "/update", "10.1.2.3:40000", nil, map[string]string{SecretHeader: "s3cret"})
	assert.Equal(t, http.StatusOK, rec.Code, "CIDR entries match")

	rec, _ = post(t, s, "/update", "[::ffff:127.0.0.1]:40000", nil, map[string]string{SecretHeader: "s3cret"})
	assert.Equal(t, http.StatusOK, rec.Code, "mapped IPv4 addresses match")
}

func TestUpdate_EmptyAllowListAllowsAll(t *testing.T) {
	cfg := testConfig()
	cfg.AllowedIPs = nil
	coord := &mockCoordinator{}
	s, err := New(cfg, "example.com", coord)
	require.NoError(t, err)

	rec, _ := post(t, s, "/update", "203.0.113.9:1", nil, map[string]string{SecretHeader: "s3cret"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdate_Pending(t *testing.T) {
	coord := &mockCoordinator{ack: domain.AckPending}
	s := newTestServer(t, coord)

	rec, resp := post(t, s, "/update", "127.0.0.1:1", nil, map[string]string{SecretHeader: "s3cret"})
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, domain.AckPending, resp.Status)
}

func TestUpdate_UnknownSource(t *testing.T) {
	s, err := New(testConfig(), "missing.example", services.NewCoordinator(0))
	require.NoError(t, err)

	rec, resp := post(t, s, "/update", "127.0.0.1:1", nil, map[string]string{SecretHeader: "s3cret"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, domain.AckUnknownSource, resp.Status)

	rec, resp = post(t, s, "/update?wait=1", "127.0.0.1:1", nil, map[string]string{SecretHeader: "s3cret"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, resp.Run)
	assert.Equal(t, domain.OutcomeFailed, resp.Run.Outcome)
}

func TestUpdate_Wait(t *testing.T) {
	now := time.Now()
	t.Run("updated", func(t *testing.T) {
		coord := &mockCoordinator{result: &domain.RunResult{
			ID: "run-1", SourceID: "example.com", Reason: domain.ReasonWebhook,
			Outcome: domain.OutcomeUpdated, ItemsExtracted: 3, ItemsRendered: 3,
			StartedAt: now, EndedAt: now,
		}}
		s := newTestServer(t, coord)

		rec, resp := post(t, s, "/update?wait=1", "127.0.0.1:1", nil, map[string]string{SecretHeader: "s3cret"})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, coord.triggers)
		assert.Zero(t, coord.submits)
		require.NotNil(t, resp.Run)
		assert.Equal(t, domain.OutcomeUpdated, resp.Run.Outcome)
		assert.Equal(t, 3, resp.Run.ItemsRendered)
	})

	t.Run("failed", func(t *testing.T) {
		result := &domain.RunResult{ID: "run-2", StartedAt: now, EndedAt: now}
		result.Fail(errors.Join(domain.ErrExtraction, errors.New("sitemap unreachable")))
		coord := &mockCoordinator{result: result}
		s := newTestServer(t, coord)

		rec, resp := post(t, s, "/update?wait=true", "127.0.0.1:1", nil, map[string]string{SecretHeader: "s3cret"})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		require.NotNil(t, resp.Run)
		assert.Equal(t, domain.OutcomeFailed, resp.Run.Outcome)
		assert.Contains(t, resp.Run.Error, "sitemap unreachable")
	})
}

func TestUpdate_MethodNotAllowed(t *testing.T) {
	coord := &mockCoordinator{}
	s := newTestServer(t, coord)

	req := httptest.NewRequest(http.MethodGet, "/update", nil)
	req.RemoteAddr = "127.0.0.1:1"
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Zero(t, coord.calls())
}

func TestStatusAndHealth(t *testing.T) {
	coord := &mockCoordinator{status: driving.CoordinatorStatus{
		SourceID: "example.com",
		Running:  true,
		Runs:     2,
		LastResult: &domain.RunResult{
			ID: "run-9", Outcome: domain.OutcomeSkippedUnchanged,
		},
	}}
	s := newTestServer(t, coord)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var st statusView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.True(t, st.Running)
	assert.Equal(t, 2, st.Runs)
	require.NotNil(t, st.LastRun)
	assert.Equal(t, domain.OutcomeSkippedUnchanged, st.LastRun.Outcome)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestServer_StartStop(t *testing.T) {
	coord := &mockCoordinator{}
	s := newTestServer(t, coord)
	require.NoError(t, s.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	req, err := http.NewRequest(http.MethodPost, "http://"+s.Addr()+"/update", nil)
	require.NoError(t, err)
	req.Header.Set(SecretHeader, "s3cret")

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.DefaultClient.Do(req)
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, coord.calls())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
