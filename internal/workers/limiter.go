package workers

import "context"

// Limiter is a counting semaphore bounding concurrent work.
type Limiter struct {
	slots chan struct{}
	// OnChange, if set, is called with the delta (+1 or -1) on every
	// acquire and release.
	OnChange func(delta int)
}

// NewLimiter returns a limiter admitting n concurrent holders. n < 1 is
// treated as 1.
func NewLimiter(n int) *Limiter {
	if n < 1 {
		n = 1
	}
	return &Limiter{slots: make(chan struct{}, n)}
}

// Acquire blocks until a slot is free or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	select {
	case l.slots <- struct{}{}:
		if l.OnChange != nil {
			l.OnChange(1)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot taken by Acquire.
func (l *Limiter) Release() {
	<-l.slots
	if l.OnChange != nil {
		l.OnChange(-1)
	}
}

// Do runs fn while holding a slot.
func (l *Limiter) Do(ctx context.Context, fn func() error) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	defer l.Release()
	return fn()
}

// Cap returns the number of slots.
func (l *Limiter) Cap() int {
	return cap(l.slots)
}

// InUse returns the number of slots currently held.
func (l *Limiter) InUse() int {
	return len(l.slots)
}
