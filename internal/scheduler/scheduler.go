// Package scheduler drives clock readings from one shared ticker.
//
// Each tick formats every distinct timezone once, compares the result with
// the last published reading for that zone, and publishes only the zones
// whose reading changed. Replacing the timezone set tears the previous loop
// down, and waits for it, before the next one starts.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/derickschaefer/timedeck/internal/model"
	"github.com/derickschaefer/timedeck/internal/observe"
)

// DefaultInterval is the refresh period.
const DefaultInterval = time.Second

// Formatter produces the reading for one zone; *clock.Engine satisfies it.
type Formatter interface {
	Format(tz string, at time.Time) model.ClockReading
}

// PublishFunc receives the readings that changed on a tick, in zone order.
// It runs on the ticking goroutine and must not call Start or Stop.
type PublishFunc func([]model.ZoneReading)

// Clock is the time source the loop ticks from.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers ticks until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Stats counts work done since the scheduler was created.
type Stats struct {
	Ticks        int64 `json:"ticks"`
	Computations int64 `json:"computations"`
	Publishes    int64 `json:"publishes"`
}

// Scheduler is safe for concurrent use.
type Scheduler struct {
	formatter Formatter
	publish   PublishFunc
	interval  time.Duration
	clock     Clock
	logger    *slog.Logger
	observer  observe.Observer

	// startMu serializes Start and Stop; pubMu is held while publishing.
	startMu sync.Mutex
	pubMu   sync.Mutex

	mu      sync.Mutex
	gen     uint64
	running bool
	zones   []string
	last    map[string]model.ClockReading
	cancel  context.CancelFunc
	done    chan struct{}
	stats   Stats
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval sets the tick period. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the logger (slog.Default otherwise).
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithObserver reports tick timings to o.
func WithObserver(o observe.Observer) Option {
	return func(s *Scheduler) {
		if o != nil {
			s.observer = o
		}
	}
}

// New returns a stopped Scheduler. publish may be nil when callers only poll
// Readings.
func New(formatter Formatter, publish PublishFunc, opts ...Option) *Scheduler {
	s := &Scheduler{
		formatter: formatter,
		publish:   publish,
		interval:  DefaultInterval,
		clock:     systemClock{},
		logger:    slog.Default(),
		observer:  observe.Nop{},
		last:      make(map[string]model.ClockReading),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start replaces the timezone set and begins ticking. Any previous loop is
// stopped first. Readings are reset and every zone is published once
// immediately. The loop also ends when ctx is cancelled. Concurrent calls
// are serialized; the last one to run wins.
func (s *Scheduler) Start(ctx context.Context, zones []string) {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	s.stop()

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.running = true
	s.zones = distinct(zones)
	s.last = make(map[string]model.ClockReading, len(s.zones))
	s.cancel = cancel
	s.done = done
	n := len(s.zones)
	s.mu.Unlock()

	s.logger.Debug("scheduler started", "zones", n, "interval", s.interval)

	s.tick(gen, s.clock.Now())
	ticker := s.clock.NewTicker(s.interval)
	go s.loop(loopCtx, gen, ticker, done)
}

// Stop ends the current loop and waits for it to exit. No publish happens
// after Stop returns. Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	s.stop()
}

func (s *Scheduler) stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.gen++
	s.running = false
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	cancel()
	<-done
	// Wait out a publish from an external Tick that passed its check.
	s.pubMu.Lock()
	s.pubMu.Unlock()
	s.logger.Debug("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, gen uint64, ticker Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case at := <-ticker.C():
			s.tick(gen, at)
		}
	}
}

// Tick runs one refresh at instant at for the running zone set and returns
// the readings that changed. It returns nil when the scheduler is stopped,
// and a Tick racing Stop never publishes once Stop has returned.
func (s *Scheduler) Tick(at time.Time) []model.ZoneReading {
	s.mu.Lock()
	gen, running := s.gen, s.running
	s.mu.Unlock()
	if !running {
		return nil
	}
	return s.tick(gen, at)
}

func (s *Scheduler) tick(gen uint64, at time.Time) []model.ZoneReading {
	stop := s.observer.Start("scheduler.tick")
	defer stop()

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return nil
	}
	s.stats.Ticks++
	var changed []model.ZoneReading
	for _, tz := range s.zones {
		r := s.formatter.Format(tz, at)
		s.stats.Computations++
		if prev, ok := s.last[tz]; ok && prev == r {
			continue
		}
		s.last[tz] = r
		changed = append(changed, model.ZoneReading{Timezone: tz, Reading: r})
	}
	if len(changed) > 0 {
		s.stats.Publishes++
	}
	s.mu.Unlock()

	if len(changed) == 0 || s.publish == nil {
		return changed
	}
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	s.mu.Lock()
	current := gen == s.gen
	s.mu.Unlock()
	if current {
		s.publish(changed)
	}
	return changed
}

// Readings returns the last published reading of every zone, in zone order.
func (s *Scheduler) Readings() []model.ZoneReading {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ZoneReading, 0, len(s.zones))
	for _, tz := range s.zones {
		if r, ok := s.last[tz]; ok {
			out = append(out, model.ZoneReading{Timezone: tz, Reading: r})
		}
	}
	return out
}

// Reading returns the last published reading for tz.
func (s *Scheduler) Reading(tz string) (model.ClockReading, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.last[tz]
	return r, ok
}

// Zones returns the distinct zones currently scheduled.
func (s *Scheduler) Zones() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.zones...)
}

// Running reports whether a loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stats returns a copy of the counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func distinct(zones []string) []string {
	seen := make(map[string]bool, len(zones))
	out := make([]string, 0, len(zones))
	for _, z := range zones {
		if z == "" || seen[z] {
			continue
		}
		seen[z] = true
		out = append(out, z)
	}
	return out
}

// ─── System clock ─────────────────────────────────────────────────────────────

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) NewTicker(d time.Duration) Ticker {
	return &systemTicker{t: time.NewTicker(d)}
}

type systemTicker struct {
	t *time.Ticker
}

func (t *systemTicker) C() <-chan time.Time { return t.t.C }
func (t *systemTicker) Stop()               { t.t.Stop() }
