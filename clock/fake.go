package clock

import (
	"math/rand"
	"sort"
	"sync"
	"time"
)

// Fake is a manually-advanced Clock for deterministic tests. It is safe for
// concurrent use since production code schedules and advances from
// different goroutines in tests that exercise the event-loop model.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	rng     *rand.Rand
	pending []*fakeTimer
	seq     uint64
}

type fakeTimer struct {
	mu      *sync.Mutex // the owning Fake's mutex, guarding stopped
	at      time.Time
	fn      func()
	stopped bool
	seq     uint64
}

func (t *fakeTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

// NewFake creates a Fake clock starting at the given time with a seeded
// random source, so Float64 sequences are reproducible across test runs.
func NewFake(start time.Time, seed int64) *Fake {
	return &Fake{now: start, rng: rand.New(rand.NewSource(seed))}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Float64() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rng.Float64()
}

func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	t := &fakeTimer{mu: &f.mu, at: f.now.Add(d), fn: fn, seq: f.seq}
	f.pending = append(f.pending, t)
	return t
}

// Advance moves the clock forward by d, firing any timers whose deadline
// falls at or before the new time, in deadline order (ties broken by
// scheduling order).
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	target := f.now
	due := f.dueLocked(target)
	f.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
}

// dueLocked removes and returns, in fire order, all non-stopped timers
// whose deadline is at or before target. Caller holds f.mu.
func (f *Fake) dueLocked(target time.Time) []*fakeTimer {
	var due []*fakeTimer
	var remaining []*fakeTimer
	for _, t := range f.pending {
		if !t.stopped && !t.at.After(target) {
			due = append(due, t)
		} else if !t.stopped {
			remaining = append(remaining, t)
		}
	}
	f.pending = remaining
	sort.Slice(due, func(i, j int) bool {
		if due[i].at.Equal(due[j].at) {
			return due[i].seq < due[j].seq
		}
		return due[i].at.Before(due[j].at)
	})
	return due
}

// PendingCount returns the number of unstopped, unfired timers.
func (f *Fake) PendingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.pending {
		if !t.stopped {
			n++
		}
	}
	return n
}
