package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/derickschaefer/timedeck/internal/clock"
	"github.com/derickschaefer/timedeck/internal/model"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

// countingFormatter wraps the real engine and counts calls per zone.
type countingFormatter struct {
	engine *clock.Engine
	mu     sync.Mutex
	calls  map[string]int
}

func newCountingFormatter() *countingFormatter {
	return &countingFormatter{engine: clock.New(nil), calls: make(map[string]int)}
}

func (f *countingFormatter) Format(tz string, at time.Time) model.ClockReading {
	f.mu.Lock()
	f.calls[tz]++
	f.mu.Unlock()
	return f.engine.Format(tz, at)
}

func (f *countingFormatter) count(tz string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[tz]
}

type fakeTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *fakeTicker) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

type fakeClock struct {
	now     time.Time
	mu      sync.Mutex
	tickers []*fakeTicker
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) NewTicker(time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{ch: make(chan time.Time, 8)}
	c.tickers = append(c.tickers, t)
	return t
}

func (c *fakeClock) ticker(i int) *fakeTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tickers[i]
}

// recorder collects published batches.
type recorder struct {
	mu      sync.Mutex
	batches [][]model.ZoneReading
	notify  chan struct{}
}

func newRecorder() *recorder {
	return &recorder{notify: make(chan struct{}, 64)}
}

func (r *recorder) publish(readings []model.ZoneReading) {
	r.mu.Lock()
	r.batches = append(r.batches, readings)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.notify:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for publish")
	}
}

var start = time.Date(2026, 1, 15, 10, 0, 1, 0, time.UTC)

// ─── Behaviour ────────────────────────────────────────────────────────────────

func TestStartPublishesAllZonesOnce(t *testing.T) {
	f := newCountingFormatter()
	rec := newRecorder()
	s := New(f, rec.publish, WithClock(&fakeClock{now: start}))
	s.Start(context.Background(), []string{"Asia/Tokyo", "Europe/London", "Asia/Tokyo"})
	defer s.Stop()

	if rec.count() != 1 {
		t.Fatalf("expected one initial publish, got %d", rec.count())
	}
	first := rec.batches[0]
	if len(first) != 2 || first[0].Timezone != "Asia/Tokyo" || first[1].Timezone != "Europe/London" {
		t.Errorf("initial batch = %+v", first)
	}
	if got := s.Readings(); len(got) != 2 {
		t.Errorf("Readings: expected 2, got %d", len(got))
	}
}

func TestSharedTimezoneComputedOncePerTick(t *testing.T) {
	f := newCountingFormatter()
	s := New(f, nil, WithClock(&fakeClock{now: start}))
	s.Start(context.Background(), []string{"Asia/Tokyo", "Asia/Tokyo", "Asia/Tokyo", "Europe/Paris"})
	defer s.Stop()

	for i := 1; i <= 5; i++ {
		s.Tick(start.Add(time.Duration(i) * time.Second))
	}
	if n := f.count("Asia/Tokyo"); n != 6 {
		t.Errorf("Asia/Tokyo formatted %d times, want 6 (one per tick)", n)
	}
	if st := s.Stats(); st.Computations != 12 {
		t.Errorf("Computations = %d, want 12", st.Computations)
	}
}

func TestNoRepublishWithinSameMinute(t *testing.T) {
	rec := newRecorder()
	s := New(clock.New(nil), rec.publish, WithClock(&fakeClock{now: start}))
	s.Start(context.Background(), []string{"America/New_York"})
	defer s.Stop()

	for i := 1; i <= 30; i++ {
		if changed := s.Tick(start.Add(time.Duration(i) * time.Second)); changed != nil {
			t.Fatalf("tick %d republished unchanged reading: %+v", i, changed)
		}
	}
	st := s.Stats()
	if st.Ticks != 31 || st.Publishes != 1 {
		t.Errorf("stats = %+v, want 31 ticks and 1 publish", st)
	}
	if st.Publishes >= st.Ticks {
		t.Error("publishes should be fewer than ticks when nothing changes")
	}
}

func TestOnlyChangedZonesPublished(t *testing.T) {
	rec := newRecorder()
	s := New(clock.New(nil), rec.publish, WithClock(&fakeClock{now: start}))
	s.Start(context.Background(), []string{"Asia/Tokyo", "Asia/Kolkata"})
	defer s.Stop()

	// Next minute: both zones change.
	changed := s.Tick(start.Add(time.Minute))
	if len(changed) != 2 {
		t.Fatalf("expected both zones to change, got %+v", changed)
	}
	// Seconds later: neither does.
	if changed := s.Tick(start.Add(time.Minute + 10*time.Second)); len(changed) != 0 {
		t.Errorf("expected no changes, got %+v", changed)
	}
	if got := rec.count(); got != 2 {
		t.Errorf("publishes = %d, want 2", got)
	}
}

func TestLoopPublishesOnTicks(t *testing.T) {
	fc := &fakeClock{now: start}
	rec := newRecorder()
	s := New(clock.New(nil), rec.publish, WithClock(fc))
	s.Start(context.Background(), []string{"UTC"})
	defer s.Stop()
	rec.wait(t)

	fc.ticker(0).ch <- start.Add(2 * time.Minute)
	rec.wait(t)

	r, ok := s.Reading("UTC")
	if !ok || r.Time != "10:02 AM" {
		t.Errorf("Reading(UTC) = %+v, %v", r, ok)
	}
}

// ─── Teardown ─────────────────────────────────────────────────────────────────

func TestNoPublishAfterStop(t *testing.T) {
	fc := &fakeClock{now: start}
	rec := newRecorder()
	s := New(clock.New(nil), rec.publish, WithClock(fc))
	s.Start(context.Background(), []string{"UTC"})
	rec.wait(t)

	s.Stop()
	if !fc.ticker(0).isStopped() {
		t.Error("ticker not stopped")
	}
	fc.ticker(0).ch <- start.Add(time.Hour)
	if changed := s.Tick(start.Add(2 * time.Hour)); changed != nil {
		t.Errorf("Tick after Stop published %+v", changed)
	}
	time.Sleep(20 * time.Millisecond)
	if got := rec.count(); got != 1 {
		t.Errorf("publishes after Stop: got %d batches, want 1", got)
	}
	if s.Running() {
		t.Error("Running should be false after Stop")
	}
}

func TestRestartTearsDownPreviousLoop(t *testing.T) {
	fc := &fakeClock{now: start}
	rec := newRecorder()
	s := New(clock.New(nil), rec.publish, WithClock(fc))

	s.Start(context.Background(), []string{"Asia/Tokyo"})
	rec.wait(t)
	s.Start(context.Background(), []string{"Europe/London"})
	rec.wait(t)
	defer s.Stop()

	if !fc.ticker(0).isStopped() {
		t.Error("first ticker should be stopped by the restart")
	}
	if zones := s.Zones(); len(zones) != 1 || zones[0] != "Europe/London" {
		t.Errorf("Zones = %v", zones)
	}
	if _, ok := s.Reading("Asia/Tokyo"); ok {
		t.Error("readings of the previous zone set should be reset")
	}

	// A tick queued on the old ticker is never delivered.
	fc.ticker(0).ch <- start.Add(time.Hour)
	time.Sleep(20 * time.Millisecond)
	if got := rec.count(); got != 2 {
		t.Errorf("expected 2 publishes, got %d", got)
	}
}

func TestConcurrentStartLeavesOneLoop(t *testing.T) {
	fc := &fakeClock{now: start}
	s := New(clock.New(nil), nil, WithClock(fc))

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Start(context.Background(), []string{"UTC"})
		}()
	}
	wg.Wait()

	fc.mu.Lock()
	tickers := append([]*fakeTicker(nil), fc.tickers...)
	fc.mu.Unlock()
	live := 0
	for _, tk := range tickers {
		if !tk.isStopped() {
			live++
		}
	}
	if live != 1 {
		t.Errorf("%d loops running after concurrent Start, want 1", live)
	}

	s.Stop()
	for i, tk := range tickers {
		if !tk.isStopped() {
			t.Errorf("ticker %d still running after Stop", i)
		}
	}
}

func TestTickRacingStopDoesNotPublishAfterStop(t *testing.T) {
	for round := 0; round < 50; round++ {
		var (
			mu      sync.Mutex
			stopped bool
			late    bool
		)
		publish := func([]model.ZoneReading) {
			mu.Lock()
			if stopped {
				late = true
			}
			mu.Unlock()
		}
		f := formatterFunc(func(tz string, at time.Time) model.ClockReading {
			return model.ClockReading{Time: at.Format(time.RFC3339Nano)}
		})
		s := New(f, publish, WithClock(&fakeClock{now: start}))
		s.Start(context.Background(), []string{"UTC"})

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 1; i <= 20; i++ {
				s.Tick(start.Add(time.Duration(i) * time.Second))
			}
		}()
		s.Stop()
		mu.Lock()
		stopped = true
		mu.Unlock()
		wg.Wait()

		if late {
			t.Fatalf("round %d: publish after Stop returned", round)
		}
	}
}

func TestContextCancelEndsLoop(t *testing.T) {
	fc := &fakeClock{now: start}
	s := New(clock.New(nil), nil, WithClock(fc))
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx, []string{"UTC"})
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for !fc.ticker(0).isStopped() {
		if time.Now().After(deadline) {
			t.Fatal("loop did not exit after context cancel")
		}
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()
}

func TestStopIdempotent(t *testing.T) {
	s := New(clock.New(nil), nil)
	s.Stop()
	s.Start(context.Background(), nil)
	s.Stop()
	s.Stop()
}

func TestRealTickerInterval(t *testing.T) {
	rec := newRecorder()
	// Formatting with the nanosecond in the time field makes every tick a change.
	f := formatterFunc(func(tz string, at time.Time) model.ClockReading {
		return model.ClockReading{Time: at.Format(time.RFC3339Nano)}
	})
	s := New(f, rec.publish, WithInterval(5*time.Millisecond))
	s.Start(context.Background(), []string{"UTC"})
	defer s.Stop()

	for i := 0; i < 3; i++ {
		rec.wait(t)
	}
}

type formatterFunc func(string, time.Time) model.ClockReading

func (f formatterFunc) Format(tz string, at time.Time) model.ClockReading { return f(tz, at) }
