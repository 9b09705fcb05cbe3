package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/derickschaefer/timedeck/internal/model"
	"github.com/derickschaefer/timedeck/internal/registry"
	"github.com/derickschaefer/timedeck/internal/store"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

// testDB opens a fresh isolated database in t.TempDir().
// It is closed and deleted automatically when the test ends.
func testDB(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// Compile-time checks that every adapter satisfies the registry capability.
var (
	_ registry.Persistence = (*store.Blob)(nil)
	_ registry.Persistence = (*store.Valkey)(nil)
	_ registry.Persistence = (*store.Memory)(nil)
)

// ─── Open / Path ──────────────────────────────────────────────────────────────

func TestOpenCreatesDB(t *testing.T) {
	s := testDB(t)
	if s.Path() == "" {
		t.Error("Path() should return the db path after open")
	}
}

func TestOpenCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "c", "test.db")
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("Open with nested path: %v", err)
	}
	defer s.Close()
	if s.Path() != path {
		t.Errorf("Path: expected %q, got %q", path, s.Path())
	}
}

// ─── Meta ─────────────────────────────────────────────────────────────────────

func TestMetaWrittenOnCreate(t *testing.T) {
	s := testDB(t)
	m, err := s.Meta()
	if err != nil {
		t.Fatalf("Meta: %v", err)
	}
	if m.SchemaVersion != 1 {
		t.Errorf("SchemaVersion: expected 1, got %d", m.SchemaVersion)
	}
	if m.CreatedAt.IsZero() || time.Since(m.CreatedAt) > time.Minute {
		t.Errorf("CreatedAt not stamped: %v", m.CreatedAt)
	}
	if len(m.InstallationID) != 36 {
		t.Errorf("InstallationID should be a uuid, got %q", m.InstallationID)
	}
}

func TestInstallationIDStableAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	first, _ := s.InstallationID()
	s.Close()

	s, err = store.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	second, _ := s.InstallationID()
	if first == "" || first != second {
		t.Errorf("installation id changed: %q -> %q", first, second)
	}
}

func TestInstallationIDsDiffer(t *testing.T) {
	a, _ := testDB(t).InstallationID()
	b, _ := testDB(t).InstallationID()
	if a == b {
		t.Errorf("two databases share installation id %q", a)
	}
}

// ─── Values ───────────────────────────────────────────────────────────────────

func TestPutGetDelete(t *testing.T) {
	s := testDB(t)
	if _, ok, err := s.Get("missing"); ok || err != nil {
		t.Errorf("Get missing: ok=%v err=%v", ok, err)
	}
	if err := s.Put("k", "v1"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put("k", "v2"); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	v, ok, err := s.Get("k")
	if err != nil || !ok || v != "v2" {
		t.Errorf("Get: expected v2, got %q ok=%v err=%v", v, ok, err)
	}
	if err := s.Delete("k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete("k"); err != nil {
		t.Errorf("Delete missing should not fail: %v", err)
	}
	if _, ok, _ := s.Get("k"); ok {
		t.Error("key still present after Delete")
	}
}

func TestGetEmptyValueIsFound(t *testing.T) {
	s := testDB(t)
	if err := s.Put("empty", ""); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, ok, _ := s.Get("empty"); !ok {
		t.Error("empty value should be reported as present")
	}
}

// ─── Blob ─────────────────────────────────────────────────────────────────────

func TestBlobRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := testDB(t).Blob(registry.StorageKey, nil)

	if _, ok, err := b.Read(ctx); ok || err != nil {
		t.Fatalf("fresh blob: ok=%v err=%v", ok, err)
	}
	if err := b.Write(ctx, `[]`); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, ok, err := b.Read(ctx)
	if err != nil || !ok || got != `[]` {
		t.Errorf("Read: %q ok=%v err=%v", got, ok, err)
	}
	if err := b.Remove(ctx); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok, _ := b.Read(ctx); ok {
		t.Error("blob still present after Remove")
	}
}

func TestBlobProbeLeavesNoKey(t *testing.T) {
	s := testDB(t)
	if !s.Blob(registry.StorageKey, nil).Probe(context.Background()) {
		t.Fatal("probe should succeed on a writable database")
	}
	keys, err := s.Keys()
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("probe left keys behind: %v", keys)
	}
}

func TestBlobProbeFailsWhenClosed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	b := s.Blob(registry.StorageKey, nil)
	s.Close()
	if b.Probe(context.Background()) {
		t.Error("probe should fail on a closed database")
	}
}

func TestBlobHonoursCancelledContext(t *testing.T) {
	b := testDB(t).Blob(registry.StorageKey, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Write(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Errorf("Write with cancelled ctx: expected context.Canceled, got %v", err)
	}
}

// The registry survives a restart when backed by bbolt.
func TestRegistryPersistsThroughBlob(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	r := registry.New(ctx, s.Blob(registry.StorageKey, nil))
	for _, c := range []model.City{
		{ID: "london", Name: "London", Country: "United Kingdom", Timezone: "Europe/London"},
		{ID: "tokyo", Name: "Tokyo", Country: "Japan", Timezone: "Asia/Tokyo"},
	} {
		if ch, err := r.Add(ctx, c); err != nil || !ch.Persisted {
			t.Fatalf("Add(%s): persisted=%v err=%v", c.ID, ch.Persisted, err)
		}
	}
	if _, err := r.ReorderIDs(ctx, []string{"tokyo", "london"}); err != nil {
		t.Fatalf("ReorderIDs: %v", err)
	}
	s.Close()

	s, err = store.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	reloaded := registry.New(ctx, s.Blob(registry.StorageKey, nil))
	got := reloaded.Cities()
	if len(got) != 2 || got[0].ID != "tokyo" || got[1].ID != "london" {
		t.Errorf("reloaded cities = %+v", got)
	}
}

// ─── Memory ───────────────────────────────────────────────────────────────────

func TestMemoryFailureInjection(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	if !m.Probe(ctx) {
		t.Error("fresh memory store should probe ok")
	}
	m.FailProbe = true
	if m.Probe(ctx) {
		t.Error("FailProbe should fail the probe")
	}

	boom := errors.New("boom")
	m.FailWrite = boom
	if err := m.Write(ctx, "x"); !errors.Is(err, boom) {
		t.Errorf("Write: expected injected error, got %v", err)
	}
	m.FailWrite = nil
	if err := m.Write(ctx, "x"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	m.FailRead = boom
	if _, _, err := m.Read(ctx); !errors.Is(err, boom) {
		t.Errorf("Read: expected injected error, got %v", err)
	}
}

// ─── Valkey ───────────────────────────────────────────────────────────────────

func TestValkeyOptions(t *testing.T) {
	opt, err := store.ValkeyOptions("localhost:6379")
	if err != nil {
		t.Fatalf("host:port: %v", err)
	}
	if len(opt.InitAddress) != 1 || opt.InitAddress[0] != "localhost:6379" {
		t.Errorf("InitAddress: %v", opt.InitAddress)
	}

	opt, err = store.ValkeyOptions("redis://cache.internal:6380/2")
	if err != nil {
		t.Fatalf("url: %v", err)
	}
	if len(opt.InitAddress) != 1 || !strings.Contains(opt.InitAddress[0], "cache.internal:6380") {
		t.Errorf("url InitAddress: %v", opt.InitAddress)
	}
	if opt.SelectDB != 2 {
		t.Errorf("SelectDB: expected 2, got %d", opt.SelectDB)
	}

	if _, err := store.ValkeyOptions(""); err == nil {
		t.Error("empty address should fail")
	}
}

func TestValkeyKeyNamespace(t *testing.T) {
	v := store.NewValkey(nil, "abc-123", registry.StorageKey, nil)
	if got := v.Key(); got != "timedeck:abc-123:world-clock-cities" {
		t.Errorf("Key: got %q", got)
	}
	v = store.NewValkey(nil, "", registry.StorageKey, nil)
	if got := v.Key(); got != "timedeck:default:world-clock-cities" {
		t.Errorf("default Key: got %q", got)
	}
}

// ─── Stats & Maintenance ──────────────────────────────────────────────────────

func TestStatsEmpty(t *testing.T) {
	s := testDB(t)
	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	for _, st := range stats {
		if st.Count != 0 {
			t.Errorf("bucket %s: expected 0 rows in empty db, got %d", st.Name, st.Count)
		}
	}
}

func TestStatsCountsRows(t *testing.T) {
	s := testDB(t)
	_ = s.Put(registry.StorageKey, `[{"id":"london"}]`)
	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if len(stats) != 1 || stats[0].Name != "dashboard" {
		t.Fatalf("expected dashboard bucket stats, got %+v", stats)
	}
	if stats[0].Count != 1 || stats[0].Bytes == 0 {
		t.Errorf("dashboard stats: %+v", stats[0])
	}
}

func TestClearAll(t *testing.T) {
	s := testDB(t)
	_ = s.Put(registry.StorageKey, `[]`)
	_ = s.Put("other", "x")
	if err := s.ClearAll(); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	keys, _ := s.Keys()
	if len(keys) != 0 {
		t.Errorf("keys after ClearAll: %v", keys)
	}
	if id, _ := s.InstallationID(); id == "" {
		t.Error("ClearAll must not touch _meta")
	}
}

func TestClearBucketUnknown(t *testing.T) {
	s := testDB(t)
	if err := s.ClearBucket("nope"); err == nil {
		t.Error("clearing a missing bucket should fail")
	}
}

func TestEachTestGetsIsolatedDB(t *testing.T) {
	a := testDB(t)
	b := testDB(t)
	if a.Path() == b.Path() {
		t.Error("testDB should return distinct paths")
	}
	_ = a.Put("k", "v")
	if _, ok, _ := b.Get("k"); ok {
		t.Error("write to one db leaked into another")
	}
}
