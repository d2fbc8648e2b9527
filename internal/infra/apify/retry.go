package apify

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"social-pulse/internal/domain"
	"social-pulse/internal/infra/metrics"
)

// RetryPolicy описывает повторы одного HTTP-вызова.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Jitter — доля случайного отклонения задержки, 0.2 даёт ±20%.
	Jitter float64
}

// DefaultRetryPolicy: 4 попытки, 1s с удвоением, ±20%, не более 60s на паузу.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 4,
		BaseDelay:   time.Second,
		MaxDelay:    60 * time.Second,
		Jitter:      0.2,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.Jitter < 0 || p.Jitter >= 1 {
		p.Jitter = def.Jitter
	}
	return p
}

func (p RetryPolicy) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.RandomizationFactor = p.Jitter
	b.Multiplier = 2
	b.MaxInterval = p.MaxDelay
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

type retryState int

const (
	stateAttempting retryState = iota
	stateBackoff
	stateSucceeded
	stateFailedTerminal
)

func (s retryState) String() string {
	switch s {
	case stateAttempting:
		return "attempting"
	case stateBackoff:
		return "backoff"
	case stateSucceeded:
		return "succeeded"
	case stateFailedTerminal:
		return "failed_terminal"
	}
	return "unknown"
}

// retrier проводит один вызов через состояния Attempting → Backoff → … →
// Succeeded | FailedTerminal. Живёт в пределах одного вызова.
type retrier struct {
	policy  RetryPolicy
	backoff *backoff.ExponentialBackOff
	state   retryState
	attempt int
	lastErr *domain.ActorError
	onRetry func(attempt int, delay time.Duration, err *domain.ActorError)
}

func newRetrier(p RetryPolicy) *retrier {
	p = p.normalized()
	return &retrier{policy: p, backoff: p.newBackOff(), state: stateAttempting}
}

// run возвращает число выполненных попыток и ActorError при неуспехе.
func (r *retrier) run(ctx context.Context, call func(ctx context.Context) error) (int, error) {
	for {
		switch r.state {
		case stateAttempting:
			r.attempt++
			err := call(ctx)
			if err == nil {
				r.state = stateSucceeded
				continue
			}
			r.lastErr = toActorError(ctx, err)
			if !r.lastErr.Retriable || r.attempt >= r.policy.MaxAttempts {
				r.state = stateFailedTerminal
				continue
			}
			r.state = stateBackoff

		case stateBackoff:
			delay := r.backoff.NextBackOff()
			if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= delay {
				ae := domain.NewActorError(domain.KindTimeout, "deadline leaves no room for retry after: "+r.lastErr.Detail, r.lastErr)
				ae.Retriable = false
				r.lastErr = ae
				r.state = stateFailedTerminal
				continue
			}
			if r.onRetry != nil {
				r.onRetry(r.attempt, delay, r.lastErr)
			}
			if err := sleepCtx(ctx, delay); err != nil {
				r.lastErr = contextError(err)
				r.state = stateFailedTerminal
				continue
			}
			r.state = stateAttempting

		case stateSucceeded:
			return r.attempt, nil

		case stateFailedTerminal:
			return r.attempt, r.lastErr
		}
	}
}

func (c *Client) withRetry(ctx context.Context, op string, call func(ctx context.Context) error) (int, error) {
	r := newRetrier(c.policy)
	r.onRetry = func(attempt int, delay time.Duration, err *domain.ActorError) {
		metrics.IncRetry(string(err.Kind))
		c.log.Debug().
			Str("op", op).
			Int("attempt", attempt).
			Dur("delay", delay).
			Str("kind", string(err.Kind)).
			Msg("apify: повтор запроса")
	}
	return r.run(ctx, call)
}
