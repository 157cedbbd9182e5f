package llm

import (
	"context"
	"math"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/utec-cdia-v4/web-chat-ia-v3/internal/domain"
	"github.com/utec-cdia-v4/web-chat-ia-v3/internal/observability"
)

const (
	DefaultMaxRetries  = 3
	DefaultBackoffBase = 500 * time.Millisecond
	DefaultBackoffCap  = 8 * time.Second
	DefaultJitter      = 200 * time.Millisecond
)

// IsTransientStatus reports whether a provider status is worth retrying.
func IsTransientStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Backoff computes the wait before retry k (0-indexed):
// min(Base*2^k, Cap) plus a uniform jitter in [0, Jitter).
type Backoff struct {
	Base   time.Duration
	Cap    time.Duration
	Jitter time.Duration

	rand func() float64
}

func NewBackoff(base, cap time.Duration) Backoff {
	return Backoff{Base: base, Cap: cap, Jitter: DefaultJitter}
}

// WithRand returns a copy of b drawing jitter from r, which must return values in [0, 1).
func (b Backoff) WithRand(r func() float64) Backoff {
	b.rand = r
	return b
}

func (b Backoff) Delay(k int) time.Duration {
	if k < 0 {
		k = 0
	}
	d := b.Cap
	if exp := float64(b.Base) * math.Pow(2, float64(k)); exp < float64(b.Cap) {
		d = time.Duration(exp)
	}

	if b.Jitter > 0 {
		r := b.rand
		if r == nil {
			r = rand.Float64
		}
		d += time.Duration(r() * float64(b.Jitter))
	}
	return d
}

type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	outcomeRetryable
	outcomeTerminal
)

func (k outcomeKind) String() string {
	switch k {
	case outcomeSuccess:
		return "success"
	case outcomeRetryable:
		return "retryable"
	default:
		return "terminal"
	}
}

// attemptOutcome is the tagged result of one request attempt.
type attemptOutcome struct {
	kind       outcomeKind
	completion domain.Completion
	err        error
}

func succeeded(c domain.Completion) attemptOutcome {
	return attemptOutcome{kind: outcomeSuccess, completion: c}
}

func retryable(err error) attemptOutcome {
	return attemptOutcome{kind: outcomeRetryable, err: err}
}

func terminal(err error) attemptOutcome {
	return attemptOutcome{kind: outcomeTerminal, err: err}
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type retrier struct {
	provider   string
	maxRetries int
	backoff    Backoff
	sleep      Sleeper
}

// do runs attempt until it succeeds, fails terminally, or the retry budget
// (maxRetries attempts after the first) is spent.
func (r retrier) do(ctx context.Context, attempt func(context.Context) attemptOutcome) (domain.Completion, error) {
	log := observability.LoggerFromContext(ctx).With("provider", r.provider)

	sleep := r.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var last error
	for n := 0; ; n++ {
		out := attempt(ctx)
		log.Debug("completion attempt finished", "attempt", n+1, "outcome", out.kind.String())

		switch out.kind {
		case outcomeSuccess:
			return out.completion, nil
		case outcomeTerminal:
			log.Error("completion failed", "attempt", n+1, "error", out.err)
			return domain.Completion{}, out.err
		}

		last = out.err
		if n >= r.maxRetries {
			log.Error("completion retries exhausted", "attempts", n+1, "error", last)
			return domain.Completion{}, &domain.RetriesExhaustedError{Attempts: n + 1, Last: last}
		}

		delay := r.backoff.Delay(n)
		log.Warn("transient completion failure, retrying",
			"attempt", n+1,
			"delay_ms", delay.Milliseconds(),
			"error", last,
		)
		if err := sleep(ctx, delay); err != nil {
			return domain.Completion{}, err
		}
	}
}
