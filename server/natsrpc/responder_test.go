package natsrpc

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/slotsense/ai/agents/scheduler"
	"github.com/hrygo/slotsense/server/service/schedule"
)

type stubResolver struct {
	decision *scheduler.Decision
	err      error
	got      scheduler.ResolveRequest
	deadline bool
}

func (s *stubResolver) Resolve(ctx context.Context, req scheduler.ResolveRequest) (*scheduler.Decision, error) {
	s.got = req
	_, s.deadline = ctx.Deadline()
	return s.decision, s.err
}

func decodeReply(t *testing.T, data []byte) Reply {
	t.Helper()
	var reply Reply
	require.NoError(t, json.Unmarshal(data, &reply))
	return reply
}

func TestHandle_Decision(t *testing.T) {
	stub := &stubResolver{decision: &scheduler.Decision{Kind: scheduler.KindReadyToCreate, Message: "Scheduled"}}
	r := NewResponder(Config{Subject: "slotsense.resolve"}, stub)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	reply := decodeReply(t, r.handle(ctx, []byte(`{"query":"book a sync tomorrow at 10am","conversationId":"c1"}`)))

	assert.Equal(t, http.StatusOK, reply.Status)
	require.NotNil(t, reply.Decision)
	assert.Equal(t, scheduler.KindReadyToCreate, reply.Decision.Kind)
	assert.Nil(t, reply.Error)
	assert.Equal(t, "book a sync tomorrow at 10am", stub.got.Query)
	assert.Equal(t, "c1", stub.got.ConversationID)
	assert.True(t, stub.deadline)
}

func TestHandle_MalformedRequest(t *testing.T) {
	stub := &stubResolver{}
	r := NewResponder(Config{}, stub)

	reply := decodeReply(t, r.handle(context.Background(), []byte(`not json`)))
	assert.Equal(t, http.StatusBadRequest, reply.Status)
	require.NotNil(t, reply.Error)
	assert.Equal(t, "body", reply.Error.Field)
	assert.Contains(t, reply.Error.Message, "JSON object")
	assert.Empty(t, stub.got.Query)
}

func TestHandle_UpstreamError(t *testing.T) {
	stub := &stubResolver{err: &scheduler.Error{
		Err:            &schedule.UpstreamError{Op: "checkBusy", Err: context.DeadlineExceeded, Timeout: true},
		ConversationID: "c9",
	}}
	r := NewResponder(Config{}, stub)

	reply := decodeReply(t, r.handle(context.Background(), []byte(`{"query":"move it","conversationId":"c9"}`)))
	assert.Equal(t, http.StatusGatewayTimeout, reply.Status)
	require.NotNil(t, reply.Error)
	assert.Equal(t, "upstream_timeout", reply.Error.Error)
	assert.Equal(t, "c9", reply.Error.ConversationID)
	assert.Contains(t, reply.Error.Message, "took too long")
}

func TestNewResponder_Defaults(t *testing.T) {
	r := NewResponder(Config{}, &stubResolver{})
	assert.Equal(t, defaultRequestTimeout, r.cfg.RequestTimeout)
	assert.Equal(t, "slotsense", r.cfg.Name)
	assert.NoError(t, r.Close())
}
