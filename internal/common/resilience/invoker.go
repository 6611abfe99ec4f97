// Package resilience wraps a single downstream call with a per-attempt
// deadline, bounded retries and exponential backoff.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrTimeout marks an attempt abandoned because its deadline elapsed.
	ErrTimeout = errors.New("call timed out")
	// ErrRetriesExhausted marks a failure after the last permitted attempt.
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// Defaults used by DefaultPolicy.
const (
	DefaultMaxAttempts    = 3
	DefaultAttemptTimeout = 300 * time.Second
	DefaultBackoffFactor  = time.Second
)

var tracer = otel.Tracer("funnel-coach/resilience")

// ExhaustedError is returned when every permitted attempt failed. It matches
// both ErrRetriesExhausted and the last cause under errors.Is.
type ExhaustedError struct {
	Name     string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: %s after %d attempts: %v", e.Name, ErrRetriesExhausted, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrRetriesExhausted, e.Last}
}

// TimeoutError is returned when an attempt's deadline elapsed. It matches
// ErrTimeout under errors.Is.
type TimeoutError struct {
	Name    string
	Attempt int
	Timeout time.Duration
	Cause   error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s attempt %d: %s after %s: %v", e.Name, e.Attempt, ErrTimeout, e.Timeout, e.Cause)
}

func (e *TimeoutError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrTimeout}
	}
	return []error{ErrTimeout, e.Cause}
}

// Policy controls one Invoke call.
type Policy struct {
	// MaxAttempts bounds the number of calls, including the first.
	MaxAttempts int
	// AttemptTimeout bounds each call independently. Zero disables the deadline.
	AttemptTimeout time.Duration
	// BackoffFactor is the wait after the first failure; it doubles per retry.
	BackoffFactor time.Duration
	// IsPermanent reports errors that must not be retried.
	IsPermanent func(error) bool
	// OnRetry, when set, is told about every scheduled retry.
	OnRetry func(attempt int, delay time.Duration, err error)
	// Name labels spans and errors.
	Name string
}

// DefaultPolicy mirrors the generic retry decorator: three attempts, one second
// base backoff, five minute deadline per attempt.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    DefaultMaxAttempts,
		AttemptTimeout: DefaultAttemptTimeout,
		BackoffFactor:  DefaultBackoffFactor,
	}
}

// Func is the call under protection. attempt starts at 1.
type Func[T any] func(ctx context.Context, attempt int) (T, error)

type result[T any] struct {
	value T
	err   error
}

// Invoke runs fn until it succeeds, fails permanently, times out or runs out of
// attempts. A timed-out attempt is abandoned, not awaited, and ends the loop.
// Waits between attempts are BackoffFactor * 2^(attempt-1).
func Invoke[T any](ctx context.Context, p Policy, fn Func[T]) (T, error) {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BackoffFactor <= 0 {
		p.BackoffFactor = time.Millisecond
	}
	name := p.Name
	if name == "" {
		name = "call"
	}

	var (
		out     T
		attempt int
		lastErr error
	)

	backoff := retry.WithMaxRetries(uint64(p.MaxAttempts-1), retry.NewExponential(p.BackoffFactor)) // #nosec G115 -- MaxAttempts >= 1
	backoff = observe(backoff, &attempt, &lastErr, p.OnRetry)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		value, err := runAttempt(ctx, p, name, attempt, fn)
		if err == nil {
			out = value
			return nil
		}
		lastErr = err

		if errors.Is(err, ErrTimeout) {
			return err
		}
		if p.IsPermanent != nil && p.IsPermanent(err) {
			return err
		}
		if attempt >= p.MaxAttempts {
			return &ExhaustedError{Name: name, Attempts: attempt, Last: err}
		}
		return retry.RetryableError(err)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// runAttempt executes fn on its own goroutine so the deadline is honoured even
// when fn ignores its context.
func runAttempt[T any](parent context.Context, p Policy, name string, attempt int, fn Func[T]) (T, error) {
	ctx, span := tracer.Start(parent, name+".attempt", trace.WithAttributes(
		attribute.Int("attempt", attempt),
		attribute.Int("max_attempts", p.MaxAttempts),
	))
	defer span.End()

	cancel := context.CancelFunc(func() {})
	if p.AttemptTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, p.AttemptTimeout)
	}
	defer cancel()

	done := make(chan result[T], 1)
	go func() {
		v, err := fn(ctx, attempt)
		done <- result[T]{value: v, err: err}
	}()

	var zero T
	select {
	case r := <-done:
		if r.err != nil {
			if ctx.Err() == context.DeadlineExceeded && parent.Err() == nil {
				return zero, timeoutError(span, name, attempt, p.AttemptTimeout, r.err)
			}
			span.RecordError(r.err)
			span.SetStatus(codes.Error, r.err.Error())
			return zero, r.err
		}
		return r.value, nil
	case <-ctx.Done():
		if parent.Err() != nil {
			span.SetStatus(codes.Error, parent.Err().Error())
			return zero, parent.Err()
		}
		return zero, timeoutError(span, name, attempt, p.AttemptTimeout, ctx.Err())
	}
}

func timeoutError(span trace.Span, name string, attempt int, d time.Duration, cause error) error {
	err := &TimeoutError{Name: name, Attempt: attempt, Timeout: d, Cause: cause}
	span.RecordError(err)
	span.SetStatus(codes.Error, "timeout")
	return err
}

// observe reports each scheduled retry before the backoff sleep.
func observe(b retry.Backoff, attempt *int, lastErr *error, onRetry func(int, time.Duration, error)) retry.Backoff {
	if onRetry == nil {
		return b
	}
	return retry.BackoffFunc(func() (time.Duration, bool) {
		next, stop := b.Next()
		if !stop {
			onRetry(*attempt, next, *lastErr)
		}
		return next, stop
	})
}
