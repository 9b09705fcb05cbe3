// Package registry owns the ordered list of tracked cities.
//
// The list is unique by city id and its order is the display order. Every
// mutation is applied in memory first and then written through the injected
// Persistence; a failed write never fails the mutation; it is reported on the
// returned Change instead.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/derickschaefer/timedeck/internal/model"
	"github.com/derickschaefer/timedeck/internal/observe"
)

// StorageKey is the fixed identity under which the list is persisted.
const StorageKey = "world-clock-cities"

var (
	// ErrAlreadyTracked rejects adding a city whose id is already in the list.
	ErrAlreadyTracked = errors.New("city is already tracked")
	// ErrNotPermutation rejects a reorder that adds, drops or repeats cities.
	ErrNotPermutation = errors.New("new order must contain exactly the tracked cities")
	// ErrInvalidCity rejects a city without an id or timezone.
	ErrInvalidCity = errors.New("city needs an id and a timezone")
	// ErrStorageUnavailable is wrapped by every DurabilityError raised after a
	// failed availability probe.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Persistence stores one string blob.
type Persistence interface {
	// Read returns the blob; the boolean is false when nothing is stored.
	Read(ctx context.Context) (string, bool, error)
	Write(ctx context.Context, blob string) error
	Remove(ctx context.Context) error
	// Probe reports whether writes can succeed, by writing and deleting a
	// throwaway value.
	Probe(ctx context.Context) bool
}

// DurabilityError reports a persistence failure. The in-memory list is still
// authoritative when one is returned.
type DurabilityError struct {
	Op  string
	Err error
}

func (e *DurabilityError) Error() string {
	return fmt.Sprintf("cities may not survive a restart: %s: %v", e.Op, e.Err)
}

func (e *DurabilityError) Unwrap() error { return e.Err }

// Change is the outcome of a mutation.
type Change struct {
	Cities    []model.City
	Persisted bool
	// Warning is a *DurabilityError when the write did not happen.
	Warning error
}

// Registry is safe for concurrent use; mutations are serialized.
type Registry struct {
	store    Persistence
	logger   *slog.Logger
	observer observe.Observer

	mu           sync.Mutex
	available    bool
	cities       []model.City
	loadWarnings []string
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger (slog.Default otherwise).
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithObserver reports load timings to o.
func WithObserver(o observe.Observer) Option {
	return func(r *Registry) {
		if o != nil {
			r.observer = o
		}
	}
}

// New probes store once and loads the saved list. A nil store behaves like
// one whose probe failed.
func New(ctx context.Context, store Persistence, opts ...Option) *Registry {
	r := &Registry{
		store:    store,
		logger:   slog.Default(),
		observer: observe.Nop{},
	}
	for _, opt := range opts {
		opt(r)
	}

	stop := r.observer.Start("registry.load")
	defer stop()

	r.available = store != nil && store.Probe(ctx)
	if !r.available {
		r.logger.Warn("storage unavailable, tracked cities will not be saved")
		r.loadWarnings = append(r.loadWarnings, "storage is unavailable; changes will not be saved")
		return r
	}
	r.load(ctx)
	return r
}

func (r *Registry) load(ctx context.Context) {
	raw, ok, err := r.store.Read(ctx)
	if err != nil {
		r.warnLoad("could not read saved cities", err)
		return
	}
	if !ok {
		return
	}
	cities, dropped, err := Decode(raw)
	if err != nil {
		r.warnLoad("discarded saved cities", err)
		return
	}
	if dropped > 0 {
		r.warnLoad("skipped malformed saved cities", fmt.Errorf("%d entries dropped", dropped))
	}
	r.cities = cities
	r.logger.Debug("loaded tracked cities", "count", len(cities))
}

func (r *Registry) warnLoad(msg string, err error) {
	r.logger.Warn(msg, "error", err)
	r.loadWarnings = append(r.loadWarnings, msg+": "+err.Error())
}

// Decode parses a stored blob. Elements missing a required string field are
// dropped individually, as are repeated ids after their first occurrence;
// dropped counts both. A payload that is not a JSON array is an error.
func Decode(raw string) ([]model.City, int, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &elems); err != nil {
		var v interface{}
		if json.Unmarshal([]byte(raw), &v) == nil {
			return nil, 0, fmt.Errorf("payload is not a list")
		}
		return nil, 0, fmt.Errorf("payload is not valid JSON: %w", err)
	}

	cities := make([]model.City, 0, len(elems))
	seen := make(map[string]bool, len(elems))
	dropped := 0
	for _, elem := range elems {
		c, ok := decodeCity(elem)
		if !ok || seen[c.ID] {
			dropped++
			continue
		}
		seen[c.ID] = true
		cities = append(cities, c)
	}
	return cities, dropped, nil
}

func decodeCity(elem json.RawMessage) (model.City, bool) {
	var fields map[string]interface{}
	if err := json.Unmarshal(elem, &fields); err != nil {
		return model.City{}, false
	}
	str := func(key string) (string, bool) {
		s, ok := fields[key].(string)
		return s, ok
	}
	id, ok1 := str("id")
	name, ok2 := str("name")
	country, ok3 := str("country")
	tz, ok4 := str("timezone")
	if !ok1 || !ok2 || !ok3 || !ok4 || id == "" {
		return model.City{}, false
	}
	c := model.City{ID: id, Name: name, Country: country, Timezone: tz}
	if coords, ok := fields["coordinates"].(map[string]interface{}); ok {
		lat, okLat := coords["lat"].(float64)
		lng, okLng := coords["lng"].(float64)
		if okLat && okLng {
			c.Coordinates = &model.Coordinates{Lat: lat, Lng: lng}
		}
	}
	return c, true
}

// Encode serializes cities as the stored JSON array.
func Encode(cities []model.City) (string, error) {
	if cities == nil {
		cities = []model.City{}
	}
	b, err := json.Marshal(cities)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ─── Queries ──────────────────────────────────────────────────────────────────

// StorageAvailable reports the result of the startup probe.
func (r *Registry) StorageAvailable() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.available
}

// LoadWarnings returns the problems found while restoring the saved list.
func (r *Registry) LoadWarnings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.loadWarnings...)
}

// Cities returns a copy of the tracked list.
func (r *Registry) Cities() []model.City {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

// Contains reports whether id is tracked.
func (r *Registry) Contains(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.indexOf(id) >= 0
}

// Timezones returns the distinct timezones of the tracked list in list order.
func (r *Registry) Timezones() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]bool, len(r.cities))
	var out []string
	for _, c := range r.cities {
		if !seen[c.Timezone] {
			seen[c.Timezone] = true
			out = append(out, c.Timezone)
		}
	}
	return out
}

// ─── Mutations ────────────────────────────────────────────────────────────────

// Add appends city. It fails with ErrAlreadyTracked, leaving the list
// unchanged, when the id is already present.
func (r *Registry) Add(ctx context.Context, city model.City) (Change, error) {
	if city.ID == "" || city.Timezone == "" {
		return Change{}, ErrInvalidCity
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexOf(city.ID) >= 0 {
		return Change{Cities: r.snapshot()}, fmt.Errorf("%w: %s", ErrAlreadyTracked, city.ID)
	}
	r.cities = append(r.cities, city)
	r.logger.Info("city added", "id", city.ID, "timezone", city.Timezone)
	return r.persist(ctx, "add"), nil
}

// Remove drops the city with id. Removing an untracked id succeeds and still
// writes the list.
func (r *Registry) Remove(ctx context.Context, id string) Change {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.indexOf(id); i >= 0 {
		r.cities = append(r.cities[:i:i], r.cities[i+1:]...)
		r.logger.Info("city removed", "id", id)
	}
	return r.persist(ctx, "remove")
}

// Reorder replaces the list with next, which must contain exactly the
// tracked ids once each. Anything else fails with ErrNotPermutation.
func (r *Registry) Reorder(ctx context.Context, next []model.City) (Change, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isPermutation(next) {
		return Change{Cities: r.snapshot()}, ErrNotPermutation
	}
	r.cities = append([]model.City(nil), next...)
	return r.persist(ctx, "reorder"), nil
}

// ReorderIDs reorders by id, resolving each id against the tracked list.
func (r *Registry) ReorderIDs(ctx context.Context, ids []string) (Change, error) {
	r.mu.Lock()
	next := make([]model.City, 0, len(ids))
	for _, id := range ids {
		i := r.indexOf(id)
		if i < 0 {
			snap := r.snapshot()
			r.mu.Unlock()
			return Change{Cities: snap}, fmt.Errorf("%w: %s is not tracked", ErrNotPermutation, id)
		}
		next = append(next, r.cities[i])
	}
	r.mu.Unlock()
	return r.Reorder(ctx, next)
}

// Move places the city with id at position (0-based, clamped to the list).
func (r *Registry) Move(ctx context.Context, id string, position int) (Change, error) {
	current := r.Cities()
	from := -1
	for i, c := range current {
		if c.ID == id {
			from = i
			break
		}
	}
	if from < 0 {
		return Change{Cities: current}, fmt.Errorf("%w: %s is not tracked", ErrNotPermutation, id)
	}
	if position < 0 {
		position = 0
	}
	if position >= len(current) {
		position = len(current) - 1
	}
	city := current[from]
	rest := append(current[:from:from], current[from+1:]...)
	next := make([]model.City, 0, len(current))
	next = append(next, rest[:position]...)
	next = append(next, city)
	next = append(next, rest[position:]...)
	return r.Reorder(ctx, next)
}

// Clear empties the list and removes the stored blob.
func (r *Registry) Clear(ctx context.Context) Change {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cities = nil
	if !r.available {
		return Change{Cities: []model.City{}, Warning: &DurabilityError{Op: "clear", Err: ErrStorageUnavailable}}
	}
	if err := r.store.Remove(ctx); err != nil {
		r.logger.Warn("failed to clear saved cities", "error", err)
		return Change{Cities: []model.City{}, Warning: &DurabilityError{Op: "clear", Err: err}}
	}
	r.logger.Info("tracked cities cleared")
	return Change{Cities: []model.City{}, Persisted: true}
}

// persist writes the current list. Callers hold mu.
func (r *Registry) persist(ctx context.Context, op string) Change {
	ch := Change{Cities: r.snapshot()}
	if !r.available {
		ch.Warning = &DurabilityError{Op: op, Err: ErrStorageUnavailable}
		return ch
	}
	blob, err := Encode(r.cities)
	if err == nil {
		err = r.store.Write(ctx, blob)
	}
	if err != nil {
		r.logger.Warn("failed to save tracked cities", "op", op, "error", err)
		ch.Warning = &DurabilityError{Op: op, Err: err}
		return ch
	}
	ch.Persisted = true
	return ch
}

func (r *Registry) snapshot() []model.City {
	return append([]model.City{}, r.cities...)
}

func (r *Registry) indexOf(id string) int {
	for i, c := range r.cities {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (r *Registry) isPermutation(next []model.City) bool {
	if len(next) != len(r.cities) {
		return false
	}
	want := make(map[string]bool, len(r.cities))
	for _, c := range r.cities {
		want[c.ID] = true
	}
	for _, c := range next {
		if !want[c.ID] {
			return false
		}
		delete(want, c.ID)
	}
	return len(want) == 0
}
