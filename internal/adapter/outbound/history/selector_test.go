package history

import (
	"errors"
	"strings"
	"testing"
)

func envFunc(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestSelectBackend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		env        map[string]string
		wantDriver Driver
		wantDSN    string
		wantErr    error
	}{
		{
			name:       "no env defaults to sqlite",
			env:        nil,
			wantDriver: DriverSQLite,
			wantDSN:    "history.db",
		},
		{
			name:       "use postgres with url",
			env:        map[string]string{EnvUsePostgres: "true", EnvDatabaseURL: "postgres://u:p@db:5432/app"},
			wantDriver: DriverPostgres,
			wantDSN:    "postgres://u:p@db:5432/app",
		},
		{
			name:       "use postgres numeric flag",
			env:        map[string]string{EnvUsePostgres: "1", EnvDatabaseURL: "host=db dbname=app"},
			wantDriver: DriverPostgres,
			wantDSN:    "host=db dbname=app",
		},
		{
			name:    "use postgres without url",
			env:     map[string]string{EnvUsePostgres: "YES"},
			wantErr: ErrMissingDatabaseURL,
		},
		{
			name:       "postgres url alone",
			env:        map[string]string{EnvDatabaseURL: "postgresql://db/app"},
			wantDriver: DriverPostgres,
			wantDSN:    "postgresql://db/app",
		},
		{
			name:       "use postgres false keeps sqlite",
			env:        map[string]string{EnvUsePostgres: "false", EnvDatabaseURL: "file:other.db"},
			wantDriver: DriverSQLite,
			wantDSN:    "history.db",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := SelectBackend(envFunc(tt.env), "history.db")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("SelectBackend() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("SelectBackend() error = %v", err)
			}
			if got.Driver != tt.wantDriver {
				t.Errorf("Driver = %q, want %q", got.Driver, tt.wantDriver)
			}
			if got.DSN != tt.wantDSN {
				t.Errorf("DSN = %q, want %q", got.DSN, tt.wantDSN)
			}
		})
	}
}

func TestBackend_StringRedactsPassword(t *testing.T) {
	t.Parallel()

	b := Backend{Driver: DriverPostgres, DSN: "postgres://admin:hunter2@db:5432/app"}
	s := b.String()
	if strings.Contains(s, "hunter2") {
		t.Errorf("String() = %q leaks the password", s)
	}
	if !strings.Contains(s, "admin:***@db:5432/app") {
		t.Errorf("String() = %q, want redacted DSN", s)
	}
}
