package scheduler

import (
	"context"
	"math/rand/v2"
	"time"

	"board-tiler/internal/logger"

	"github.com/cenkalti/backoff/v4"
)

// jitterBackOff waits base*2^(n-1) plus a uniform jitter in [0, jitter]
// before the n-th retry.
type jitterBackOff struct {
	base    time.Duration
	jitter  time.Duration
	attempt int
}

func (b *jitterBackOff) NextBackOff() time.Duration {
	b.attempt++
	d := b.base << min(b.attempt-1, 30)
	if b.jitter > 0 {
		d += time.Duration(rand.Int64N(int64(b.jitter) + 1))
	}
	return d
}

func (b *jitterBackOff) Reset() { b.attempt = 0 }

// Retrier retries a failing call with exponential backoff. Errors wrapped
// with backoff.Permanent are returned at once.
type Retrier struct {
	maxRetries int
	base       time.Duration
	jitter     time.Duration
}

func NewRetrier(cfg Config) *Retrier {
	return &Retrier{
		maxRetries: max(0, cfg.MaxRetries),
		base:       cfg.BaseDelay,
		jitter:     cfg.MaxJitter,
	}
}

// Do runs op until it succeeds, fails permanently, the retries run out or
// ctx is done. It returns how many retries were made and the last error.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) (int, error) {
	attempts := 0
	b := backoff.WithContext(
		backoff.WithMaxRetries(&jitterBackOff{base: r.base, jitter: r.jitter}, uint64(r.maxRetries)),
		ctx,
	)
	err := backoff.RetryNotify(func() error {
		attempts++
		return op(ctx)
	}, b, func(err error, wait time.Duration) {
		logger.Debug.Printf("Attempt %d failed, retrying in %s: %v", attempts, wait.Round(time.Millisecond), err)
	})
	return max(0, attempts-1), err
}
