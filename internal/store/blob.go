package store

import (
	"context"
	"fmt"
	"log/slog"
)

// ProbeKey is written and deleted to test whether the backend accepts writes.
const ProbeKey = "__storage_test__"

// Blob is one named value in a bbolt Store, used as the registry's
// persistence capability.
type Blob struct {
	store  *Store
	key    string
	logger *slog.Logger
}

// Blob returns the adapter for key.
func (s *Store) Blob(key string, logger *slog.Logger) *Blob {
	if logger == nil {
		logger = slog.Default()
	}
	return &Blob{store: s, key: key, logger: logger}
}

// Read returns the stored blob.
func (b *Blob) Read(ctx context.Context) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	v, ok, err := b.store.Get(b.key)
	if err != nil {
		return "", false, fmt.Errorf("reading %s: %w", b.key, err)
	}
	return v, ok, nil
}

// Write replaces the stored blob.
func (b *Blob) Write(ctx context.Context, blob string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.store.Put(b.key, blob); err != nil {
		return fmt.Errorf("writing %s: %w", b.key, err)
	}
	return nil
}

// Remove deletes the stored blob.
func (b *Blob) Remove(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.store.Delete(b.key); err != nil {
		return fmt.Errorf("removing %s: %w", b.key, err)
	}
	return nil
}

// Probe writes and deletes ProbeKey.
func (b *Blob) Probe(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	if err := b.store.Put(ProbeKey, ProbeKey); err != nil {
		b.logger.Warn("storage probe write failed", "path", b.store.Path(), "error", err)
		return false
	}
	if err := b.store.Delete(ProbeKey); err != nil {
		b.logger.Warn("storage probe cleanup failed", "path", b.store.Path(), "error", err)
		return false
	}
	return true
}
