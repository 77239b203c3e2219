package publish

import (
	"context"
	"sync"
	"time"

	"git.home.luguber.info/inful/docpublish/internal/foundation/errors"
)

// CodePublishBusy is returned when the lock could not be taken in time.
const CodePublishBusy = "publish_busy"

// Lock admits one transaction at a time to the remote. Waiters queue until
// the holder releases, their context ends, or the wait timeout expires.
type Lock struct {
	sem     chan struct{}
	timeout time.Duration
}

// NewLock creates a lock. A zero timeout waits as long as the context allows.
func NewLock(timeout time.Duration) *Lock {
	return &Lock{sem: make(chan struct{}, 1), timeout: timeout}
}

// Acquire blocks until the lock is held and returns an idempotent release
// function together with the time spent waiting.
func (l *Lock) Acquire(ctx context.Context) (func(), time.Duration, error) {
	start := time.Now()
	waitCtx := ctx
	if l.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	select {
	case l.sem <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-l.sem }) }, time.Since(start), nil
	case <-waitCtx.Done():
		waited := time.Since(start)
		return nil, waited, errors.NewError(errors.CategoryRuntime, "timed out waiting for the publish lock").
			WithCode(CodePublishBusy).
			Retryable().
			WithCause(waitCtx.Err()).
			WithContext("waited", waited.Round(time.Millisecond).String()).
			Build()
	}
}
