package store

import (
	"context"
	"sync"
)

// Memory keeps the blob in process. Setting the Fail fields makes the
// matching operation fail, which is how storage errors are simulated.
type Memory struct {
	mu      sync.Mutex
	blob    string
	present bool

	FailProbe bool
	FailRead  error
	FailWrite error
}

// NewMemory returns an empty Memory.
func NewMemory() *Memory {
	return &Memory{}
}

// Read returns the stored blob.
func (m *Memory) Read(ctx context.Context) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailRead != nil {
		return "", false, m.FailRead
	}
	return m.blob, m.present, nil
}

// Write replaces the stored blob.
func (m *Memory) Write(ctx context.Context, blob string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrite != nil {
		return m.FailWrite
	}
	m.blob, m.present = blob, true
	return nil
}

// Remove deletes the stored blob.
func (m *Memory) Remove(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blob, m.present = "", false
	return nil
}

// Probe fails only when FailProbe is set.
func (m *Memory) Probe(context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.FailProbe
}
