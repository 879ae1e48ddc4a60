package transport

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/rescrv/claudius/xerrors"
)

// RetryPolicy retries a transient failure according to a rate-limited
// exponential backoff. Unlike the teacher's middleware, which derives
// backoff purely from attempt count (InitialBackoff * Factor^attempt),
// this policy's steady-state spacing is additionally capped by a
// rate.Limiter: MaxRetries bounds attempt count, while the limiter built
// from NewRetryPolicy's steadyRate/burst bounds how fast retries may be
// issued by all Do calls, concurrent ones included, that use this policy.
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64

	// limiter paces retry attempts for every Do call made with this
	// policy value or its copies: NewRetryPolicy's steadyRate is the
	// sustained attempts/sec it allows, burst the instantaneous
	// allowance on top of that.
	limiter *rate.Limiter
}

// DefaultRetryPolicy bounds attempts at 2 retries (3 total attempts),
// 1s initial backoff doubling up to 30s, with admission paced by a 5
// req/s, burst-10 limiter. The retry count follows the upstream default
// of 2, not the teacher's RetryConfig default of 3.
func DefaultRetryPolicy() RetryPolicy {
	return NewRetryPolicy(2, time.Second, 30*time.Second, 2.0, 5, 10)
}

// NewRetryPolicy builds a RetryPolicy. steadyRate and burst parameterize
// the rate.Limiter used to pace retry attempts.
func NewRetryPolicy(maxRetries int, initial, max time.Duration, factor float64, steadyRate float64, burst int) RetryPolicy {
	return RetryPolicy{
		MaxRetries:     maxRetries,
		InitialBackoff: initial,
		MaxBackoff:     max,
		BackoffFactor:  factor,
		limiter:        rate.NewLimiter(rate.Limit(steadyRate), burst),
	}
}

// Do calls fn, retrying while the returned error is retryable, up to
// MaxRetries additional attempts. Each retry waits the server-supplied
// Retry-After value communicated back through retryAfter when it is
// positive; otherwise it waits the greater of the exponential backoff for
// that attempt and whatever delay the shared rate.Limiter reservation
// imposes. It respects ctx cancellation while waiting.
//
// retryAfter is reset to 0 before each call to fn; fn should set it (via
// the pointer it closes over) when the failing response carried a
// Retry-After header.
func (p RetryPolicy) Do(ctx context.Context, fn func(retryAfter *time.Duration) error) error {
	limiter := p.limiter
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Limit(5), 10)
	}

	var lastErr error
	var retryAfter time.Duration
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := p.backoff(attempt - 1)
			reservation := limiter.Reserve()
			if rd := reservation.Delay(); rd > delay {
				delay = rd
			}
			if retryAfter > 0 {
				delay = retryAfter
			}
			select {
			case <-ctx.Done():
				reservation.Cancel()
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		retryAfter = 0
		err := fn(&retryAfter)
		if err == nil {
			return nil
		}
		lastErr = err

		var xerr *xerrors.Error
		if !errors.As(err, &xerr) || !xerr.Retryable() {
			return err
		}
	}
	exhausted := xerrors.Timeout("exhausted retries: " + lastErr.Error())
	exhausted.Cause = lastErr
	return exhausted
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	base := float64(p.InitialBackoff)
	for i := 0; i < attempt; i++ {
		base *= p.BackoffFactor
	}
	if max := float64(p.MaxBackoff); base > max {
		base = max
	}
	return time.Duration(base)
}
