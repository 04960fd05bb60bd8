// Package collab holds the adapters for gest's external collaborators and
// the helpers they share.
package collab

import (
	"context"
	"math/rand"
	"time"
)

// Backoff is an exponential delay with jitter for reconnect loops.
type Backoff struct {
	base time.Duration
	max  time.Duration
	cur  time.Duration
}

func NewBackoff(base, max time.Duration) *Backoff { return &Backoff{base: base, max: max} }

// Next advances the delay and returns it, jittered by +/-20%.
func (b *Backoff) Next() time.Duration {
	if b.cur <= 0 {
		b.cur = b.base
	} else {
		b.cur *= 2
		if b.cur > b.max {
			b.cur = b.max
		}
	}
	j := 0.8 + 0.4*rand.Float64()
	return time.Duration(float64(b.cur) * j)
}

// Sleep waits for the next delay or until ctx is done.
func (b *Backoff) Sleep(ctx context.Context) error {
	t := time.NewTimer(b.Next())
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (b *Backoff) Reset() { b.cur = 0 }

// Retry calls fn up to attempts times, sleeping between failures. It returns
// the last error, or ctx.Err() if the context ends first.
func Retry(ctx context.Context, attempts int, b *Backoff, fn func(ctx context.Context) error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		if serr := b.Sleep(ctx); serr != nil {
			return serr
		}
	}
	return err
}
