// Package app wires together configuration, storage, the registry, and the
// clock components into a single Deps struct that commands receive at runtime.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/derickschaefer/timedeck/internal/catalog"
	"github.com/derickschaefer/timedeck/internal/clock"
	"github.com/derickschaefer/timedeck/internal/config"
	"github.com/derickschaefer/timedeck/internal/convert"
	"github.com/derickschaefer/timedeck/internal/observe"
	"github.com/derickschaefer/timedeck/internal/registry"
	"github.com/derickschaefer/timedeck/internal/store"
)

// Deps holds all runtime dependencies injected into command Run functions.
type Deps struct {
	Config    *config.Config
	Logger    *slog.Logger
	Observer  *observe.Recorder
	Engine    *clock.Engine
	Catalog   *catalog.Catalog
	Store     *store.Store // nil unless storage is bolt and the file opened
	Registry  *registry.Registry
	Projector *convert.Projector
	Dashboard *Dashboard

	closers []func()
}

// NewLogger builds a slog logger writing to w at level ("debug", "info",
// "warn", "error") using a text or JSON handler.
func NewLogger(level, format string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelWarn
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.ToLower(format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// New builds a Deps from resolved config. Storage that cannot be reached does
// not fail construction: the registry runs without durability and reports
// that through its warnings.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Deps, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	d := &Deps{
		Config:   cfg,
		Logger:   logger,
		Observer: observe.NewRecorder(logger),
		Engine:   clock.New(logger),
		Catalog:  cat,
	}

	persistence := d.openPersistence(ctx)

	d.Registry = registry.New(ctx, persistence,
		registry.WithLogger(logger),
		registry.WithObserver(d.Observer),
	)
	d.Projector = convert.NewProjector(d.Engine,
		convert.WithViewer(cfg.ViewerLocation()),
		convert.WithObserver(d.Observer),
		convert.WithLogger(logger),
	)
	d.Dashboard = NewDashboard(d.Registry, d.Catalog, d.Engine, d.Projector, cfg.SourceTimezone)
	return d, nil
}

// openPersistence returns the adapter selected by cfg.Storage, or nil when
// the backend cannot be reached.
func (d *Deps) openPersistence(ctx context.Context) registry.Persistence {
	cfg := d.Config
	switch cfg.Storage {
	case config.StorageMemory:
		return store.NewMemory()

	case config.StorageValkey:
		client, err := store.DialValkey(ctx, cfg.ValkeyAddr)
		if err != nil {
			d.Logger.Warn("valkey unavailable", "addr", cfg.ValkeyAddr, "error", err)
			return nil
		}
		v := store.NewValkey(client, "", registry.StorageKey, d.Logger)
		d.closers = append(d.closers, v.Close)
		return v

	default:
		s, err := store.Open(cfg.DBPath)
		if err != nil {
			d.Logger.Warn("database unavailable", "path", cfg.DBPath, "error", err)
			return nil
		}
		d.Store = s
		d.closers = append(d.closers, func() {
			if err := s.Close(); err != nil {
				d.Logger.Warn("closing database", "error", err)
			}
		})
		return s.Blob(registry.StorageKey, d.Logger)
	}
}

// Close releases storage handles. Safe to call more than once.
func (d *Deps) Close() {
	if d.Dashboard != nil {
		d.Dashboard.StopClock()
	}
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

// RequireStore returns the bbolt store or an error naming the active backend.
func (d *Deps) RequireStore() (*store.Store, error) {
	if d.Store == nil {
		return nil, fmt.Errorf("no local database open (storage: %s)", d.Config.Storage)
	}
	return d.Store, nil
}
