package intent

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
)

// Hint carries conversation context into an extraction.
type Hint struct {
	Now time.Time
	// Operation is the pending operation when the text answers a follow-up.
	Operation     Operation
	MissingFields []string
	OriginalQuery string
	// LastQuestion is the follow-up question the user is answering.
	LastQuestion string
}

// Extractor turns free text into an Intent.
type Extractor interface {
	Extract(ctx context.Context, text string, hint *Hint) (*Intent, error)
}

// FallbackChain runs the primary extractor and falls back to keyword
// parsing whenever it fails. Every fallback result is marked with
// SourceFallback and a confidence below ActionableConfidence.
type FallbackChain struct {
	primary  Extractor
	fallback *KeywordParser
}

// NewFallbackChain creates a chain. primary may be nil, in which case every
// request is served by the keyword parser.
func NewFallbackChain(primary Extractor, fallback *KeywordParser) *FallbackChain {
	return &FallbackChain{primary: primary, fallback: fallback}
}

// Extract implements Extractor. It only fails when ctx is done.
func (c *FallbackChain) Extract(ctx context.Context, text string, hint *Hint) (*Intent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.primary != nil {
		in, err := c.primary.Extract(ctx, text, hint)
		if err == nil && in != nil {
			return in, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		slog.Warn("intent: model extraction failed, using keyword fallback", "error", err)
	}

	in := c.fallback.Parse(text, hint)
	slog.Info("intent: low confidence parse",
		"operation", in.Operation,
		"confidence", in.Confidence,
		"entities", in.Entities.Count(),
	)
	return in, nil
}

// ErrRateLimited is returned when the model extractor could not get a slot
// before the context deadline.
var ErrRateLimited = errors.New("intent extraction rate limited")
