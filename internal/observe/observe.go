// Package observe records timing events for named operations.
//
// Components that want to report timings take an Observer at construction;
// nothing in timedeck reaches for a process-wide instance.
package observe

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Observer receives timing events.
type Observer interface {
	// Start begins timing name and returns a function that ends the timing
	// and reports the elapsed duration.
	Start(name string) func() time.Duration
}

// Nop is an Observer that measures nothing.
type Nop struct{}

// Start implements Observer.
func (Nop) Start(string) func() time.Duration {
	return func() time.Duration { return 0 }
}

// Timing is the last recorded duration for one operation.
type Timing struct {
	Name     string        `json:"name"`
	Count    int           `json:"count"`
	Last     time.Duration `json:"last"`
	Total    time.Duration `json:"total"`
	Recorded time.Time     `json:"recorded"`
}

// Recorder logs each timing at Debug and keeps per-name totals so a command
// can report them after it finishes.
type Recorder struct {
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	timings map[string]*Timing
}

// NewRecorder returns a Recorder logging to logger (slog.Default when nil).
func NewRecorder(logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		logger:  logger,
		now:     time.Now,
		timings: make(map[string]*Timing),
	}
}

// Start implements Observer.
func (r *Recorder) Start(name string) func() time.Duration {
	start := r.now()
	var once sync.Once
	var elapsed time.Duration
	return func() time.Duration {
		once.Do(func() {
			end := r.now()
			elapsed = end.Sub(start)
			r.record(name, elapsed, end)
		})
		return elapsed
	}
}

func (r *Recorder) record(name string, d time.Duration, at time.Time) {
	r.mu.Lock()
	t, ok := r.timings[name]
	if !ok {
		t = &Timing{Name: name}
		r.timings[name] = t
	}
	t.Count++
	t.Last = d
	t.Total += d
	t.Recorded = at
	r.mu.Unlock()

	r.logger.Debug("timing", "op", name, "duration_ms", float64(d.Microseconds())/1000)
}

// Snapshot returns a copy of all timings sorted by name.
func (r *Recorder) Snapshot() []Timing {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Timing, 0, len(r.timings))
	for _, t := range r.timings {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Total returns the accumulated duration across every recorded operation.
func (r *Recorder) Total() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum time.Duration
	for _, t := range r.timings {
		sum += t.Total
	}
	return sum
}
