package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/Sentinel-Gate/duovisor/internal/domain/supervisor"
	"github.com/Sentinel-Gate/duovisor/internal/port/outbound"
)

// driverNames maps backends to their database/sql driver names.
var driverNames = map[Driver]string{
	DriverSQLite:   "sqlite",
	DriverPostgres: "pgx",
}

var schema = map[Driver]string{
	DriverSQLite: `CREATE TABLE IF NOT EXISTS supervisor_events (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id    TEXT    NOT NULL,
	at        TEXT    NOT NULL,
	role      TEXT    NOT NULL DEFAULT '',
	kind      TEXT    NOT NULL,
	detail    TEXT    NOT NULL DEFAULT '',
	exit_code INTEGER
)`,
	DriverPostgres: `CREATE TABLE IF NOT EXISTS supervisor_events (
	id        BIGSERIAL   PRIMARY KEY,
	run_id    TEXT        NOT NULL,
	at        TIMESTAMPTZ NOT NULL,
	role      TEXT        NOT NULL DEFAULT '',
	kind      TEXT        NOT NULL,
	detail    TEXT        NOT NULL DEFAULT '',
	exit_code INTEGER
)`,
}

// ErrNoHistory is returned by OpenExisting when the SQLite file does not exist.
var ErrNoHistory = errors.New("no history database")

// SQLStore records history entries in SQLite or PostgreSQL.
type SQLStore struct {
	db      *sql.DB
	backend Backend
	logger  *slog.Logger
}

// Open connects to the backend and ensures the schema exists.
func Open(ctx context.Context, backend Backend, logger *slog.Logger) (*SQLStore, error) {
	return open(ctx, backend, logger, true)
}

// OpenExisting connects to a history database for reading. It creates
// neither the SQLite file nor the schema.
func OpenExisting(ctx context.Context, backend Backend, logger *slog.Logger) (*SQLStore, error) {
	if backend.Driver == DriverSQLite {
		if _, err := os.Stat(backend.DSN); errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoHistory
		}
	}
	return open(ctx, backend, logger, false)
}

func open(ctx context.Context, backend Backend, logger *slog.Logger, createSchema bool) (*SQLStore, error) {
	driverName, ok := driverNames[backend.Driver]
	if !ok {
		return nil, fmt.Errorf("unknown history driver %q", backend.Driver)
	}

	db, err := sql.Open(driverName, backend.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", backend.Driver, err)
	}
	if backend.Driver == DriverSQLite {
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect %s: %w", backend, err)
	}
	if createSchema {
		if _, err := db.ExecContext(ctx, schema[backend.Driver]); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	logger.Debug("history store opened", "backend", backend.String())
	return &SQLStore{db: db, backend: backend, logger: logger}, nil
}

// Record inserts one entry.
func (s *SQLStore) Record(ctx context.Context, e supervisor.HistoryEntry) error {
	query := s.rebind(`INSERT INTO supervisor_events (run_id, at, role, kind, detail, exit_code) VALUES (?, ?, ?, ?, ?, ?)`)

	var exitCode sql.NullInt64
	if e.ExitCode != nil {
		exitCode = sql.NullInt64{Int64: int64(*e.ExitCode), Valid: true}
	}

	if _, err := s.db.ExecContext(ctx, query, e.RunID, s.encodeTime(e.At), string(e.Role), e.Kind, e.Detail, exitCode); err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *SQLStore) Recent(ctx context.Context, limit int) ([]supervisor.HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := s.rebind(`SELECT run_id, at, role, kind, detail, exit_code FROM supervisor_events ORDER BY id DESC LIMIT ?`)

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []supervisor.HistoryEntry
	for rows.Next() {
		var (
			e        supervisor.HistoryEntry
			at       any
			role     string
			exitCode sql.NullInt64
		)
		if err := rows.Scan(&e.RunID, &at, &role, &e.Kind, &e.Detail, &exitCode); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		e.Role = supervisor.Role(role)
		e.At, err = decodeTime(at)
		if err != nil {
			return nil, err
		}
		if exitCode.Valid {
			code := int(exitCode.Int64)
			e.ExitCode = &code
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return entries, nil
}

// Backend returns the backend this store was opened with.
func (s *SQLStore) Backend() Backend {
	return s.backend
}

// Close closes the database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.backend.Driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// encodeTime stores SQLite timestamps as RFC 3339 text so they sort and
// parse the same regardless of driver settings.
func (s *SQLStore) encodeTime(t time.Time) any {
	if s.backend.Driver == DriverSQLite {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return t.UTC()
}

func decodeTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		return parseTime(t)
	case []byte:
		return parseTime(string(t))
	default:
		return time.Time{}, fmt.Errorf("unexpected timestamp type %T", v)
	}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// Compile-time check that SQLStore implements EventRecorder.
var _ outbound.EventRecorder = (*SQLStore)(nil)
