package intent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/slotsense/ai/core/llm"
)

type stubExtractor struct {
	intent *Intent
	err    error
	calls  int
}

func (s *stubExtractor) Extract(context.Context, string, *Hint) (*Intent, error) {
	s.calls++
	return s.intent, s.err
}

type stubLLM struct {
	reply    string
	err      error
	messages []llm.Message
}

func (s *stubLLM) Chat(_ context.Context, messages []llm.Message) (string, *llm.CallStats, error) {
	s.messages = messages
	return s.reply, &llm.CallStats{}, s.err
}

func TestFallbackChain_PrimarySucceeds(t *testing.T) {
	want := &Intent{Operation: OpQuery, Source: SourceModel, Confidence: 0.9}
	chain := NewFallbackChain(&stubExtractor{intent: want}, NewKeywordParser(newTestNormalizer()))

	got, err := chain.Extract(context.Background(), "what's on today", &Hint{Now: testNow})
	require.NoError(t, err)
	assert.Same(t, want, got)
}

func TestFallbackChain_FallsBack(t *testing.T) {
	primary := &stubExtractor{err: errors.New("model down")}
	chain := NewFallbackChain(primary, NewKeywordParser(newTestNormalizer()))

	got, err := chain.Extract(context.Background(), "Cancel Weekly Sync", &Hint{Now: testNow})
	require.NoError(t, err)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, SourceFallback, got.Source)
	assert.Equal(t, OpCancel, got.Operation)
	assert.True(t, got.LowConfidence())
}

func TestFallbackChain_NoPrimary(t *testing.T) {
	chain := NewFallbackChain(nil, NewKeywordParser(newTestNormalizer()))
	got, err := chain.Extract(context.Background(), "Schedule a meeting", &Hint{Now: testNow})
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, got.Source)
}

func TestFallbackChain_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	primary := &stubExtractor{}
	chain := NewFallbackChain(primary, NewKeywordParser(newTestNormalizer()))

	_, err := chain.Extract(ctx, "Schedule a meeting", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, primary.calls)
}

func TestModelExtractor(t *testing.T) {
	svc := &stubLLM{reply: `{"operation":"schedule","confidence":0.8,"entities":{"title":"Team sync","dateTime":"2026-10-15T10:00","duration":30}}`}
	m := NewModelExtractor(svc, newTestNormalizer(), 0, 0)

	hint := &Hint{Now: testNow, Operation: OpSchedule, MissingFields: []string{EntityDuration}, OriginalQuery: "Schedule team sync"}
	in, err := m.Extract(context.Background(), "for 30 minutes", hint)
	require.NoError(t, err)
	assert.Equal(t, OpSchedule, in.Operation)
	assert.Equal(t, "for 30 minutes", in.Query)
	assert.False(t, in.LowConfidence())

	require.Len(t, svc.messages, 2)
	system := svc.messages[0].Content
	assert.True(t, strings.Contains(system, "2026-10-14T15:04 (Wednesday)"))
	assert.True(t, strings.Contains(system, "pending schedule request"))
	assert.True(t, strings.Contains(system, "Still missing: duration"))
	assert.Equal(t, "for 30 minutes", svc.messages[1].Content)
}

func TestModelExtractor_Errors(t *testing.T) {
	_, err := NewModelExtractor(&stubLLM{err: errors.New("timeout")}, newTestNormalizer(), 0, 0).
		Extract(context.Background(), "hi", &Hint{Now: testNow})
	assert.Error(t, err)

	_, err = NewModelExtractor(&stubLLM{reply: "no idea"}, newTestNormalizer(), 0, 0).
		Extract(context.Background(), "hi", &Hint{Now: testNow})
	assert.ErrorIs(t, err, ErrNoJSON)
}

func TestModelExtractor_RateLimited(t *testing.T) {
	svc := &stubLLM{reply: `{"operation":"query"}`}
	m := NewModelExtractor(svc, newTestNormalizer(), 0.001, 1)

	_, err := m.Extract(context.Background(), "today", &Hint{Now: testNow})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = m.Extract(ctx, "today", &Hint{Now: testNow})
	assert.ErrorIs(t, err, ErrRateLimited)
}
