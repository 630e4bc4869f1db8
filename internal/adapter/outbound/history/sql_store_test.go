package history

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Sentinel-Gate/duovisor/internal/domain/supervisor"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func openTestStore(t *testing.T) *SQLStore {
	t.Helper()
	backend := Backend{Driver: DriverSQLite, DSN: filepath.Join(t.TempDir(), "history.db")}
	store, err := Open(context.Background(), backend, testLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLStore_RecordAndRecent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	code := 3
	entries := []supervisor.HistoryEntry{
		{RunID: "r1", At: at, Kind: "supervisor_started"},
		{RunID: "r1", At: at.Add(time.Second), Role: supervisor.RolePrimary, Kind: "primary_spawned", Detail: "pid 10"},
		{RunID: "r1", At: at.Add(2 * time.Second), Role: supervisor.RolePrimary, Kind: "primary_exited", ExitCode: &code},
	}
	for _, e := range entries {
		if err := store.Record(ctx, e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	got, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent(2) returned %d entries, want 2", len(got))
	}

	newest := got[0]
	if newest.Kind != "primary_exited" {
		t.Errorf("newest Kind = %q, want primary_exited", newest.Kind)
	}
	if newest.ExitCode == nil || *newest.ExitCode != 3 {
		t.Errorf("newest ExitCode = %v, want 3", newest.ExitCode)
	}
	if newest.Role != supervisor.RolePrimary {
		t.Errorf("newest Role = %q, want primary", newest.Role)
	}
	if !newest.At.Equal(at.Add(2 * time.Second)) {
		t.Errorf("newest At = %v, want %v", newest.At, at.Add(2*time.Second))
	}

	if got[1].ExitCode != nil {
		t.Errorf("second entry ExitCode = %v, want nil", *got[1].ExitCode)
	}
	if got[1].Detail != "pid 10" {
		t.Errorf("second entry Detail = %q, want %q", got[1].Detail, "pid 10")
	}
}

func TestSQLStore_ReopenKeepsData(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "history.db")
	backend := Backend{Driver: DriverSQLite, DSN: dsn}
	ctx := context.Background()

	store, err := Open(ctx, backend, testLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := store.Record(ctx, supervisor.HistoryEntry{RunID: "r1", At: time.Now(), Kind: "signal_received"}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	_ = store.Close()

	store, err = Open(ctx, backend, testLogger())
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer store.Close()

	got, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 1 || got[0].Kind != "signal_received" {
		t.Errorf("Recent() = %+v, want the one recorded entry", got)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Backend{Driver: "mysql"}, testLogger())
	if err == nil {
		t.Fatal("Open() with unknown driver should fail")
	}
}

func TestRebind(t *testing.T) {
	pg := &SQLStore{backend: Backend{Driver: DriverPostgres}}
	if got := pg.rebind("a = ? AND b = ?"); got != "a = $1 AND b = $2" {
		t.Errorf("postgres rebind = %q", got)
	}
	lite := &SQLStore{backend: Backend{Driver: DriverSQLite}}
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Errorf("sqlite rebind = %q", got)
	}
}

func TestOpenExisting_MissingSQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	backend := Backend{Driver: DriverSQLite, DSN: path}

	_, err := OpenExisting(context.Background(), backend, testLogger())
	if !errors.Is(err, ErrNoHistory) {
		t.Fatalf("OpenExisting() error = %v, want ErrNoHistory", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("OpenExisting created %s (stat error %v)", path, err)
	}
}

func TestOpenExisting_ReadsRecordedEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	backend := Backend{Driver: DriverSQLite, DSN: path}
	ctx := context.Background()

	w, err := Open(ctx, backend, testLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := w.Record(ctx, supervisor.HistoryEntry{RunID: "r1", At: time.Now(), Kind: "supervisor_started"}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	_ = w.Close()

	r, err := OpenExisting(ctx, backend, testLogger())
	if err != nil {
		t.Fatalf("OpenExisting() error = %v", err)
	}
	defer r.Close()

	if r.Backend() != backend {
		t.Errorf("Backend() = %v, want %v", r.Backend(), backend)
	}
	got, err := r.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 1 || got[0].Kind != "supervisor_started" {
		t.Errorf("Recent() = %+v, want the recorded entry", got)
	}
}
