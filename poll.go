package webdrill

import (
	"context"
	"time"
)

// Predicate reports whether an eventually-consistent condition holds yet.
// Returning an error means "not yet": Poll retries an erroring predicate
// until its timeout instead of aborting.
type Predicate func(ctx context.Context) (bool, error)

// clock abstracts time for the poll loop so tests can run it
// deterministically.
type clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Waiter is a bounded-time polling primitive: it repeatedly evaluates a
// predicate with a fixed interval until the predicate holds or a timeout
// elapses. The zero value uses the package defaults (100ms interval, 20s
// timeout).
type Waiter struct {
	Interval time.Duration
	Timeout  time.Duration

	clk clock
}

// NewWaiter returns a Waiter with the given interval and timeout.
// Zero values fall back to the package defaults.
func NewWaiter(interval, timeout time.Duration) *Waiter {
	return &Waiter{Interval: interval, Timeout: timeout}
}

// Poll sleeps one interval, evaluates pred, and repeats until pred returns
// true or the timeout elapses. It returns true as soon as pred holds and
// false on timeout; it never returns an error. A canceled context ends the
// poll early with false.
//
// Callers layer their own assertion with a descriptive message on top of
// the boolean result; a false return must never pass silently.
func (w *Waiter) Poll(ctx context.Context, pred Predicate) bool {
	interval := w.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	timeout := w.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	clk := w.clk
	if clk == nil {
		clk = realClock{}
	}

	start := clk.Now()
	for {
		if err := clk.Sleep(ctx, interval); err != nil {
			return false
		}
		ok, err := pred(ctx)
		if err == nil && ok {
			return true
		}
		if clk.Now().Sub(start) >= timeout {
			return false
		}
	}
}
