package geo

import (
	"context"
	"sync"
	"time"
)

// Fix is a resolved coordinate and the time it was resolved.
type Fix struct {
	Coordinate Coordinate `json:"coordinate"`
	AcquiredAt time.Time  `json:"acquired_at"`
}

// Age returns how long ago the fix was resolved.
func (f Fix) Age() time.Duration {
	return time.Since(f.AcquiredAt)
}

// LastKnown holds the most recent successful fix.
//
// A failed acquisition never clears it, so a stale fix keeps being used
// until a newer one resolves. No staleness bound is applied.
type LastKnown struct {
	mu      sync.Mutex
	fix     *Fix
	pending int
	changed chan struct{}
	now     func() time.Time
}

// NewLastKnown returns an empty holder.
func NewLastKnown() *LastKnown {
	return &LastKnown{
		changed: make(chan struct{}),
		now:     time.Now,
	}
}

// Get returns the current fix without blocking.
func (l *LastKnown) Get() (Fix, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fix == nil {
		return Fix{}, false
	}
	return *l.fix, true
}

// Set replaces the current fix.
func (l *LastKnown) Set(c Coordinate) Fix {
	l.mu.Lock()
	defer l.mu.Unlock()
	f := Fix{Coordinate: c, AcquiredAt: l.now()}
	l.fix = &f
	l.broadcastLocked()
	return f
}

// Pending reports whether an acquisition is in flight.
func (l *LastKnown) Pending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending > 0
}

// Begin marks an acquisition as in flight. The returned func must be called
// exactly once when the acquisition settles.
func (l *LastKnown) Begin() (done func()) {
	l.mu.Lock()
	l.pending++
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			l.pending--
			l.broadcastLocked()
			l.mu.Unlock()
		})
	}
}

// Acquire asks p for a fix and records it on success. On failure the
// previous fix is left untouched.
func (l *LastKnown) Acquire(ctx context.Context, p Provider, opts Options) (Coordinate, error) {
	return l.settle(ctx, p, opts, l.Begin())
}

// AcquireAsync is Acquire in the background. The acquisition counts as
// pending before AcquireAsync returns, so an Await issued right after it
// waits for the result. then, if non-nil, runs after the fix is recorded.
func (l *LastKnown) AcquireAsync(ctx context.Context, p Provider, opts Options, then func(Coordinate, error)) {
	done := l.Begin()
	go func() {
		c, err := l.settle(ctx, p, opts, done)
		if then != nil {
			then(c, err)
		}
	}()
}

func (l *LastKnown) settle(ctx context.Context, p Provider, opts Options, done func()) (Coordinate, error) {
	defer done()

	c, err := p.AcquireFix(ctx, opts)
	if err != nil {
		return Coordinate{}, err
	}
	if !c.Valid() {
		return Coordinate{}, unavailable("provider returned out-of-range coordinate %v", c)
	}
	l.Set(c)
	return c, nil
}

// Await returns the current fix, suspending while an acquisition is in flight
// and no fix exists yet. With no fix and nothing pending it fails with ErrNoFix.
func (l *LastKnown) Await(ctx context.Context) (Fix, error) {
	for {
		l.mu.Lock()
		if l.fix != nil {
			f := *l.fix
			l.mu.Unlock()
			return f, nil
		}
		if l.pending == 0 {
			l.mu.Unlock()
			return Fix{}, ErrNoFix
		}
		ch := l.changed
		l.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return Fix{}, ctx.Err()
		}
	}
}

// broadcastLocked wakes every Await caller. l.mu must be held.
func (l *LastKnown) broadcastLocked() {
	close(l.changed)
	l.changed = make(chan struct{})
}
