package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrUpstreamUnavailable matches every *UpstreamError.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrNotFound is returned by calendars when an event id does not exist.
	ErrNotFound = errors.New("not found")
)

// ValidationError reports malformed or missing input for a named field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// UserMessage explains the problem and what to do next.
func (e *ValidationError) UserMessage() string {
	return fmt.Sprintf("I couldn't use the %s you gave me (%s). Could you rephrase it?", e.Field, e.Reason)
}

// UpstreamError reports a failed or timed-out collaborator call.
type UpstreamError struct {
	Err     error
	Op      string
	Timeout bool
}

func (e *UpstreamError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("calendar %s timed out: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("calendar %s failed: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrUpstreamUnavailable) true for any UpstreamError.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamUnavailable
}

// UserMessage explains the problem and what to do next.
func (e *UpstreamError) UserMessage() string {
	if e.Timeout {
		return fmt.Sprintf("The calendar took too long to answer (%s). Nothing was changed, please try again.", e.Op)
	}
	return fmt.Sprintf("The calendar is unavailable right now (%s). Nothing was changed, please try again.", e.Op)
}

// Call runs one outbound collaborator operation with its own timeout.
// Failures come back as *UpstreamError naming op. If ctx itself is done,
// its error is returned so abandoned requests stop without a typed failure.
func Call(ctx context.Context, op string, timeout time.Duration, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	err := fn(callCtx)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	timedOut := errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded)
	return &UpstreamError{Op: op, Err: err, Timeout: timedOut}
}
