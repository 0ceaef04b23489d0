// Package ratelimit schedules calls against an external API with a minimum
// spacing between call starts and a ceiling on calls in flight.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// DefaultFallback is the delay used when a throttled response carries no
// usable retry hint.
const DefaultFallback = 400 * time.Millisecond

type Config struct {
	// Interval is the minimum time between the start of two calls.
	Interval time.Duration
	// MaxConcurrent is the number of calls allowed in flight at once.
	MaxConcurrent int
	// Fallback is the delay after a throttled response without a hint.
	Fallback time.Duration
	// MaxThrottled bounds how often one job is rescheduled after being
	// throttled. Zero means no bound.
	MaxThrottled int
}

// Throttled is implemented by errors that tell the caller to back off.
type Throttled interface {
	error
	RetryAfter() time.Duration
}

// Job identifies the unit of work being scheduled, so that handlers can
// report on it.
type Job struct {
	ID   string
	Kind string
}

func (j Job) String() string {
	return fmt.Sprintf("%s %s", j.Kind, j.ID)
}

// ThrottleHandler is called each time job gets throttled, before waiting
// delay and scheduling it again.
type ThrottleHandler func(job Job, err error, delay time.Duration)

type Limiter struct {
	name       string
	cfg        Config
	spacing    *rate.Limiter
	slots      *semaphore.Weighted
	onThrottle ThrottleHandler
}

func New(name string, cfg Config) *Limiter {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.Fallback <= 0 {
		cfg.Fallback = DefaultFallback
	}
	limit := rate.Inf
	if cfg.Interval > 0 {
		limit = rate.Every(cfg.Interval)
	}

	return &Limiter{
		name:    name,
		cfg:     cfg,
		spacing: rate.NewLimiter(limit, 1),
		slots:   semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
	}
}

func (l *Limiter) OnThrottle(h ThrottleHandler) {
	l.onThrottle = h
}

func (l *Limiter) Config() Config {
	return l.cfg
}

// Schedule waits for a free slot and for the spacing interval, then runs fn.
// When fn fails with a Throttled error the job is put back after the
// suggested delay. Those reschedules do not count against any retries fn
// does on its own.
func (l *Limiter) Schedule(ctx context.Context, job Job, fn func(context.Context) error) error {
	for throttled := 0; ; throttled++ {
		err := l.run(ctx, fn)
		var te Throttled
		if err == nil || !errors.As(err, &te) {
			return err
		}
		if l.cfg.MaxThrottled > 0 && throttled >= l.cfg.MaxThrottled {
			return fmt.Errorf("%s: %s still throttled after %d delays: %w", l.name, job, throttled, err)
		}

		delay := te.RetryAfter()
		if delay <= 0 {
			delay = l.cfg.Fallback
		}
		if l.onThrottle != nil {
			l.onThrottle(job, err, delay)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *Limiter) run(ctx context.Context, fn func(context.Context) error) error {
	if err := l.slots.Acquire(ctx, 1); err != nil {
		return err
	}
	defer l.slots.Release(1)

	if err := l.spacing.Wait(ctx); err != nil {
		return err
	}

	return fn(ctx)
}
