package intent

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/hrygo/slotsense/ai/core/llm"
	"github.com/hrygo/slotsense/ai/timeparse"
)

// ModelExtractor asks a language model for a JSON intent and validates the
// answer through Decode.
type ModelExtractor struct {
	llm        llm.Service
	normalizer *timeparse.Normalizer
	limiter    *rate.Limiter
}

// NewModelExtractor creates a ModelExtractor. A non-positive limit disables
// rate limiting.
func NewModelExtractor(svc llm.Service, n *timeparse.Normalizer, limit rate.Limit, burst int) *ModelExtractor {
	m := &ModelExtractor{llm: svc, normalizer: n}
	if limit > 0 {
		if burst < 1 {
			burst = 1
		}
		m.limiter = rate.NewLimiter(limit, burst)
	}
	return m
}

// Extract implements Extractor.
func (m *ModelExtractor) Extract(ctx context.Context, text string, hint *Hint) (*Intent, error) {
	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(ErrRateLimited, err.Error())
		}
	}

	now := time.Now()
	if hint != nil && !hint.Now.IsZero() {
		now = hint.Now
	}

	content, _, err := m.llm.Chat(ctx, buildMessages(text, hint, now, m.normalizer.Location()))
	if err != nil {
		return nil, errors.Wrap(err, "model extraction failed")
	}
	in, err := Decode(content, m.normalizer, now)
	if err != nil {
		return nil, err
	}
	in.Query = text
	return in, nil
}
