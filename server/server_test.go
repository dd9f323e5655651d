package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/slotsense/ai/agents/scheduler"
	"github.com/hrygo/slotsense/ai/intent"
	"github.com/hrygo/slotsense/ai/metrics"
	"github.com/hrygo/slotsense/internal/profile"
	"github.com/hrygo/slotsense/server/service/schedule"
)

type resolverFunc func(ctx context.Context, req scheduler.ResolveRequest) (*scheduler.Decision, error)

func (f resolverFunc) Resolve(ctx context.Context, req scheduler.ResolveRequest) (*scheduler.Decision, error) {
	return f(ctx, req)
}

func newTestServer(t *testing.T, maxConcurrent int, r Resolver) *Server {
	t.Helper()
	p := &profile.Profile{Mode: "dev", Version: "0.1.0-dev", MaxConcurrent: maxConcurrent}
	return NewServer(p, r, metrics.NewPrometheusExporter(metrics.DefaultConfig()))
}

func postResolve(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/resolve", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestResolve_OK(t *testing.T) {
	var got scheduler.ResolveRequest
	s := newTestServer(t, 0, resolverFunc(func(_ context.Context, req scheduler.ResolveRequest) (*scheduler.Decision, error) {
		got = req
		return &scheduler.Decision{
			Kind:           scheduler.KindNeedsFollowUp,
			Operation:      intent.OpSchedule,
			Message:        "When should it take place?",
			ConversationID: "conv-1",
		}, nil
	}))

	rec := postResolve(t, s, `{"query":"schedule a sync","conversationId":"abc"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "schedule a sync", got.Query)
	assert.Equal(t, "abc", got.ConversationID)

	var d scheduler.Decision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, scheduler.KindNeedsFollowUp, d.Kind)
	assert.Equal(t, "conv-1", d.ConversationID)
}

func TestResolve_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
		field  string
		convID string
	}{
		{
			name:   "validation",
			err:    &scheduler.Error{Err: &schedule.ValidationError{Field: "query", Reason: "must not be empty"}},
			status: http.StatusBadRequest,
			code:   "invalid_argument",
			field:  "query",
		},
		{
			name:   "upstream timeout",
			err:    &scheduler.Error{Err: &schedule.UpstreamError{Op: "checkBusy", Err: context.DeadlineExceeded, Timeout: true}, ConversationID: "conv-7"},
			status: http.StatusGatewayTimeout,
			code:   "upstream_timeout",
			convID: "conv-7",
		},
		{
			name:   "upstream failure",
			err:    &scheduler.Error{Err: &schedule.UpstreamError{Op: "createEvent", Err: errors.New("boom")}},
			status: http.StatusServiceUnavailable,
			code:   "upstream_unavailable",
		},
		{
			name:   "unknown",
			err:    errors.New("unexpected"),
			status: http.StatusInternalServerError,
			code:   "internal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, 0, resolverFunc(func(context.Context, scheduler.ResolveRequest) (*scheduler.Decision, error) {
				return nil, tt.err
			}))
			rec := postResolve(t, s, `{"query":"x"}`)
			require.Equal(t, tt.status, rec.Code)

			var body ErrorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Error)
			assert.Equal(t, tt.field, body.Field)
			assert.Equal(t, tt.convID, body.ConversationID)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestResolve_MalformedBody(t *testing.T) {
	s := newTestServer(t, 0, resolverFunc(func(context.Context, scheduler.ResolveRequest) (*scheduler.Decision, error) {
		t.Fatal("resolver must not be called")
		return nil, nil
	}))
	rec := postResolve(t, s, `{"query":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "invalid_argument", body.Error)
	assert.Equal(t, "body", body.Field)
	assert.Contains(t, body.Message, "JSON object")
}

func TestResolve_ConcurrencyLimit(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	s := newTestServer(t, 1, resolverFunc(func(context.Context, scheduler.ResolveRequest) (*scheduler.Decision, error) {
		close(entered)
		<-release
		return &scheduler.Decision{Kind: scheduler.KindEvents}, nil
	}))

	first := make(chan int, 1)
	go func() {
		first <- postResolve(t, s, `{"query":"what do I have today"}`).Code
	}()

	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("first request never reached the resolver")
	}

	rec := postResolve(t, s, `{"query":"what do I have tomorrow"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	close(release)
	assert.Equal(t, http.StatusOK, <-first)
}

func TestHealthzAndMetrics(t *testing.T) {
	s := newTestServer(t, 0, resolverFunc(func(context.Context, scheduler.ResolveRequest) (*scheduler.Decision, error) {
		return &scheduler.Decision{Kind: scheduler.KindEvents}, nil
	}))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	require.Equal(t, http.StatusOK, postResolve(t, s, `{"query":"today"}`).Code)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "slotsense_scheduler_requests_in_flight")
}
