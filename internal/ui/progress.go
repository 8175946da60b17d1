package ui

import (
	"sync"
	"time"
)

// Tracker accumulates progress events. It is safe for concurrent use.
type Tracker struct {
	mu       sync.RWMutex
	start    time.Time
	done     int
	total    int
	path     string
	counts   map[string]int
	failures []ProgressEvent

	// smoothed files per second
	rate     float64
	lastDone int
	lastCalc time.Time
}

// Snapshot is a point-in-time copy of a Tracker.
type Snapshot struct {
	Done     int
	Total    int
	Path     string
	Added    int
	Updated  int
	Skipped  int
	Failed   int
	Rate     float64
	Elapsed  time.Duration
	ETA      time.Duration
	Failures []ProgressEvent
}

// Percent returns the completed fraction in [0, 1].
func (s Snapshot) Percent() float64 {
	if s.Total <= 0 {
		return 0
	}
	p := float64(s.Done) / float64(s.Total)
	if p > 1 {
		return 1
	}
	return p
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	now := time.Now()
	return &Tracker{start: now, lastCalc: now, counts: make(map[string]int)}
}

// Update records ev.
func (t *Tracker) Update(ev ProgressEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.done = ev.Done
	t.total = ev.Total
	t.path = ev.Path
	t.counts[ev.Outcome]++
	if ev.Outcome == OutcomeFailed {
		t.failures = append(t.failures, ev)
	}

	// Sample every 500ms so the rate does not jitter.
	now := time.Now()
	if elapsed := now.Sub(t.lastCalc); elapsed >= 500*time.Millisecond {
		speed := float64(t.done-t.lastDone) / elapsed.Seconds()
		if t.rate == 0 {
			t.rate = speed
		} else {
			t.rate = 0.2*speed + 0.8*t.rate
		}
		t.lastDone = t.done
		t.lastCalc = now
	}
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Snapshot{
		Done:     t.done,
		Total:    t.total,
		Path:     t.path,
		Added:    t.counts[OutcomeAdded],
		Updated:  t.counts[OutcomeUpdated],
		Skipped:  t.counts[OutcomeSkipped],
		Failed:   t.counts[OutcomeFailed],
		Rate:     t.rate,
		Elapsed:  time.Since(t.start),
		Failures: append([]ProgressEvent(nil), t.failures...),
	}
	if t.rate > 0 && t.total > t.done {
		s.ETA = time.Duration(float64(t.total-t.done) / t.rate * float64(time.Second))
	}
	return s
}
