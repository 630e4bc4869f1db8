// Package history records supervisor lifecycle events in a SQL database.
//
// Two backends are supported: SQLite (the default, a local file) and
// PostgreSQL. SelectBackend chooses between them from the USE_POSTGRES and
// DATABASE_URL environment variables.
package history

import (
	"errors"
	"fmt"
	"strings"
)

// Driver identifies a storage backend.
type Driver string

const (
	// DriverSQLite stores history in a local SQLite file (modernc.org/sqlite).
	DriverSQLite Driver = "sqlite"
	// DriverPostgres stores history in PostgreSQL (pgx stdlib driver).
	DriverPostgres Driver = "postgres"
)

// Environment variables consulted by SelectBackend.
const (
	EnvUsePostgres = "USE_POSTGRES"
	EnvDatabaseURL = "DATABASE_URL"
)

// ErrMissingDatabaseURL is returned when USE_POSTGRES is set without DATABASE_URL.
var ErrMissingDatabaseURL = errors.New("USE_POSTGRES is set but DATABASE_URL is empty")

// Backend is the result of backend selection.
type Backend struct {
	Driver Driver
	// DSN is the connection string passed to sql.Open.
	DSN string
}

func (b Backend) String() string {
	if b.Driver == DriverPostgres {
		return fmt.Sprintf("%s (%s)", b.Driver, redactDSN(b.DSN))
	}
	return fmt.Sprintf("%s (%s)", b.Driver, b.DSN)
}

// SelectBackend picks the history backend.
//
//   - USE_POSTGRES truthy: PostgreSQL at DATABASE_URL (required).
//   - DATABASE_URL with a postgres:// or postgresql:// scheme: PostgreSQL.
//   - otherwise: SQLite at sqlitePath.
func SelectBackend(getenv func(string) string, sqlitePath string) (Backend, error) {
	dbURL := strings.TrimSpace(getenv(EnvDatabaseURL))

	if isTruthy(getenv(EnvUsePostgres)) {
		if dbURL == "" {
			return Backend{}, ErrMissingDatabaseURL
		}
		return Backend{Driver: DriverPostgres, DSN: dbURL}, nil
	}

	lower := strings.ToLower(dbURL)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return Backend{Driver: DriverPostgres, DSN: dbURL}, nil
	}

	return Backend{Driver: DriverSQLite, DSN: sqlitePath}, nil
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// redactDSN hides the password of a URL-style DSN.
func redactDSN(dsn string) string {
	schemeEnd := strings.Index(dsn, "://")
	at := strings.LastIndex(dsn, "@")
	if schemeEnd < 0 || at < schemeEnd {
		return dsn
	}
	userinfo := dsn[schemeEnd+3 : at]
	if colon := strings.IndexByte(userinfo, ':'); colon >= 0 {
		return dsn[:schemeEnd+3] + userinfo[:colon] + ":***" + dsn[at:]
	}
	return dsn
}
