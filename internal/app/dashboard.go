package app

import (
	"context"
	"sync"
	"time"

	"github.com/derickschaefer/timedeck/internal/catalog"
	"github.com/derickschaefer/timedeck/internal/clock"
	"github.com/derickschaefer/timedeck/internal/convert"
	"github.com/derickschaefer/timedeck/internal/model"
	"github.com/derickschaefer/timedeck/internal/registry"
	"github.com/derickschaefer/timedeck/internal/scheduler"
)

// Dashboard is the event surface a UI drives: selecting, removing and
// reordering cities, converting a time phrase, and reading the live clocks.
// When a clock is attached with StartClock, every list change restarts it on
// the new timezone set.
type Dashboard struct {
	registry  *registry.Registry
	catalog   *catalog.Catalog
	engine    *clock.Engine
	projector *convert.Projector
	sourceTZ  string

	// clockMu orders clock restarts so the newest list change wins.
	clockMu  sync.Mutex
	mu       sync.Mutex
	sched    *scheduler.Scheduler
	schedCtx context.Context
}

// NewDashboard assembles a Dashboard. sourceTZ is the default timezone for
// conversions that do not name one.
func NewDashboard(reg *registry.Registry, cat *catalog.Catalog, engine *clock.Engine, projector *convert.Projector, sourceTZ string) *Dashboard {
	if sourceTZ == "" {
		sourceTZ = convert.DefaultSourceTimezone
	}
	return &Dashboard{
		registry:  reg,
		catalog:   cat,
		engine:    engine,
		projector: projector,
		sourceTZ:  sourceTZ,
	}
}

// SourceTimezone returns the default conversion source.
func (d *Dashboard) SourceTimezone() string { return d.sourceTZ }

// Cities returns the tracked list.
func (d *Dashboard) Cities() []model.City { return d.registry.Cities() }

// StorageAvailable reports the startup probe result.
func (d *Dashboard) StorageAvailable() bool { return d.registry.StorageAvailable() }

// LoadWarnings returns problems found while loading the saved list.
func (d *Dashboard) LoadWarnings() []string { return d.registry.LoadWarnings() }

// OnCitySelect resolves id in the catalog and starts tracking it.
// It fails with catalog.ErrUnknownCity or registry.ErrAlreadyTracked.
func (d *Dashboard) OnCitySelect(ctx context.Context, id string) (registry.Change, error) {
	city, err := d.catalog.MustLookup(id)
	if err != nil {
		return registry.Change{}, err
	}
	ch, err := d.registry.Add(ctx, city)
	if err != nil {
		return ch, err
	}
	d.restartClock()
	return ch, nil
}

// OnCityRemove stops tracking id. Removing an untracked id succeeds.
func (d *Dashboard) OnCityRemove(ctx context.Context, id string) registry.Change {
	ch := d.registry.Remove(ctx, id)
	d.restartClock()
	return ch
}

// OnReorder applies a new order given as ids. A list that is not a
// permutation of the tracked cities is rejected and nothing changes.
func (d *Dashboard) OnReorder(ctx context.Context, ids []string) (registry.Change, error) {
	ch, err := d.registry.ReorderIDs(ctx, ids)
	if err != nil {
		return ch, err
	}
	d.restartClock()
	return ch, nil
}

// OnMove moves id to position (0-based, clamped).
func (d *Dashboard) OnMove(ctx context.Context, id string, position int) (registry.Change, error) {
	ch, err := d.registry.Move(ctx, id, position)
	if err != nil {
		return ch, err
	}
	d.restartClock()
	return ch, nil
}

// OnClear stops tracking every city.
func (d *Dashboard) OnClear(ctx context.Context) registry.Change {
	ch := d.registry.Clear(ctx)
	d.restartClock()
	return ch
}

// OnConvert projects phrase, read in sourceTZ (the default source when
// empty), onto every tracked city.
func (d *Dashboard) OnConvert(phrase, sourceTZ string) (model.Conversion, error) {
	if sourceTZ == "" {
		sourceTZ = d.sourceTZ
	}
	return d.projector.Convert(phrase, sourceTZ, d.registry.Cities())
}

// Available returns catalog cities matching query that are not tracked.
func (d *Dashboard) Available(query string) []model.City {
	return d.catalog.Available(d.registry.Cities(), query)
}

// Search returns catalog cities matching query, tracked or not.
func (d *Dashboard) Search(query string) []model.City {
	return d.catalog.Search(query)
}

// Readings formats every tracked city at now. Cities sharing a timezone
// share one computation.
func (d *Dashboard) Readings(now time.Time) []model.CityReading {
	cities := d.registry.Cities()
	byZone := make(map[string]model.ClockReading, len(cities))
	out := make([]model.CityReading, 0, len(cities))
	for _, c := range cities {
		r, ok := byZone[c.Timezone]
		if !ok {
			r = d.engine.Format(c.Timezone, now)
			byZone[c.Timezone] = r
		}
		out = append(out, model.CityReading{City: c, Reading: r})
	}
	return out
}

// Clock returns the readings last published by the attached clock, falling
// back to formatting at now for zones it has not covered yet.
func (d *Dashboard) Clock(now time.Time) []model.CityReading {
	d.mu.Lock()
	sched := d.sched
	d.mu.Unlock()
	if sched == nil || !sched.Running() {
		return d.Readings(now)
	}
	cities := d.registry.Cities()
	out := make([]model.CityReading, 0, len(cities))
	for _, c := range cities {
		r, ok := sched.Reading(c.Timezone)
		if !ok {
			r = d.engine.Format(c.Timezone, now)
		}
		out = append(out, model.CityReading{City: c, Reading: r})
	}
	return out
}

// StartClock attaches s and starts it on the tracked timezones. s stays
// attached until StopClock or ctx ends.
func (d *Dashboard) StartClock(ctx context.Context, s *scheduler.Scheduler) {
	d.clockMu.Lock()
	defer d.clockMu.Unlock()

	d.mu.Lock()
	prev := d.sched
	d.sched = s
	d.schedCtx = ctx
	d.mu.Unlock()
	if prev != nil && prev != s {
		prev.Stop()
	}
	s.Start(ctx, d.registry.Timezones())
}

// StopClock stops and detaches the clock, if any.
func (d *Dashboard) StopClock() {
	d.clockMu.Lock()
	defer d.clockMu.Unlock()

	d.mu.Lock()
	s := d.sched
	d.sched, d.schedCtx = nil, nil
	d.mu.Unlock()
	if s != nil {
		s.Stop()
	}
}

// restartClock reads the timezone set and restarts the clock under clockMu,
// so a restart never runs on a list older than the previous restart's.
func (d *Dashboard) restartClock() {
	d.clockMu.Lock()
	defer d.clockMu.Unlock()

	d.mu.Lock()
	s, ctx := d.sched, d.schedCtx
	d.mu.Unlock()
	if s == nil || ctx.Err() != nil {
		return
	}
	s.Start(ctx, d.registry.Timezones())
}
