package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jonboulle/clockwork"
)

type Action int

const (
	Stop     Action = iota // permanent error, abort immediately
	Retry                  // transient error, use normal backoff
	Throttle               // server is saturated, use the longer throttle backoff
)

type Policy struct {
	MaxAttempts     int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration // zero caps at maxBackoff
	ThrottleBackoff time.Duration
	Clock           clockwork.Clock
	OnRetry         func(attempt int, err error, backoff time.Duration)
}

type Classify func(err error) Action
type Operation[T any] func(ctx context.Context) (T, error)

// maxBackoff bounds an uncapped policy so repeated doubling cannot overflow.
const maxBackoff = time.Duration(math.MaxInt64)

var ErrInvalidPolicy = errors.New("retry policy needs at least one attempt")

func (p Policy) clock() clockwork.Clock {
	if p.Clock == nil {
		return clockwork.NewRealClock()
	}
	return p.Clock
}

func Do[T any](ctx context.Context, p Policy, classify Classify, op Operation[T]) (T, error) {
	var zero T
	if p.MaxAttempts < 1 {
		return zero, ErrInvalidPolicy
	}

	clock := p.clock()
	backoff := p.InitialBackoff

	for attempt := 1; ; attempt++ {
		val, err := op(ctx)
		if err == nil {
			return val, nil
		}

		action := classify(err)
		if action == Stop {
			return zero, &PermanentError{Err: err}
		}

		if attempt == p.MaxAttempts {
			return zero, fmt.Errorf("failed after %d attempts: %w", p.MaxAttempts, err)
		}

		wait := backoff
		if action == Throttle && p.ThrottleBackoff > wait {
			wait = p.ThrottleBackoff
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}

		select {
		case <-clock.After(wait):
		case <-ctx.Done():
			return zero, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}

		backoff = nextBackoff(backoff, p.MaxBackoff)
	}
}

// nextBackoff doubles b, saturating at limit, or at maxBackoff when limit is zero.
func nextBackoff(b, limit time.Duration) time.Duration {
	if limit <= 0 {
		limit = maxBackoff
	}
	if b > limit/2 {
		return limit
	}
	return b * 2
}

func DoVoid(ctx context.Context, p Policy, classify Classify, op func(ctx context.Context) error) error {
	_, err := Do(ctx, p, classify, func(ctx context.Context) (struct{}, error) { return struct{}{}, op(ctx) })
	return err
}

type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }
