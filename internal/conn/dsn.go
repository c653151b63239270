package conn

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/xo/dburl"

	"github.com/roach88/dbfixture/internal/config"
)

// Driver names registered with database/sql by this package's imports.
const (
	DriverSQLite   = "sqlite3"
	DriverMySQL    = "mysql"
	DriverPostgres = "pgx"
)

// Target is a connection resolved from properties: what to pass to
// sql.Open, and the URL as configured for error messages.
type Target struct {
	Driver string
	DSN    string
	URL    string
}

// Resolve turns connection properties into a Target.
//
// A URL containing "://" is parsed with dburl, which also picks the driver;
// the username and password properties fill in missing credentials. Any other
// URL is a driver-native DSN for the configured driver.
func Resolve(props config.Properties) (Target, error) {
	raw := strings.TrimSpace(props.URL)
	if raw == "" {
		return Target{}, errors.New("conn: empty connection URL")
	}
	if strings.Contains(raw, "://") {
		return resolveURL(raw, props)
	}

	driver := props.Driver
	if driver == "" {
		driver = config.DefaultDriver
	}
	t := Target{Driver: normalizeDriver(driver), DSN: raw, URL: raw}

	switch t.Driver {
	case DriverMySQL:
		cfg, err := mysql.ParseDSN(raw)
		if err != nil {
			return Target{}, fmt.Errorf("conn: parse mysql DSN: %w", err)
		}
		if cfg.User == "" && props.Username != "" {
			cfg.User = props.Username
			cfg.Passwd = props.Password
		}
		t.DSN = cfg.FormatDSN()
	case DriverPostgres:
		if props.Username != "" && !strings.Contains(raw, "user=") {
			t.DSN = fmt.Sprintf("%s user=%s password=%s", raw, quotePGValue(props.Username), quotePGValue(props.Password))
		}
	}
	return t, nil
}

func resolveURL(raw string, props config.Properties) (Target, error) {
	u, err := dburl.Parse(raw)
	if err != nil {
		return Target{}, fmt.Errorf("conn: parse URL: %w", err)
	}
	driver := normalizeDriver(u.Driver)

	if u.User == nil && props.Username != "" && driver != DriverSQLite {
		withUser := u.URL
		withUser.User = url.UserPassword(props.Username, props.Password)
		if u, err = dburl.Parse(withUser.String()); err != nil {
			return Target{}, fmt.Errorf("conn: parse URL: %w", err)
		}
	}
	return Target{Driver: driver, DSN: u.DSN, URL: raw}, nil
}

func normalizeDriver(name string) string {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "pgx", "pgx/v5":
		return DriverPostgres
	case "sqlite", "sqlite3", "file":
		return DriverSQLite
	case "mysql", "mariadb":
		return DriverMySQL
	default:
		return name
	}
}

func quotePGValue(v string) string {
	if v != "" && !strings.ContainsAny(v, " '\\") {
		return v
	}
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(v) + "'"
}

// ForCreate returns props with the URL modifier that asks the driver to
// create the database on first connection. Only SQLite has one; other
// drivers' properties are returned unchanged.
func ForCreate(props config.Properties) config.Properties {
	t, err := Resolve(props)
	if err != nil || t.Driver != DriverSQLite || strings.Contains(props.URL, "://") {
		return props
	}
	if !strings.HasPrefix(props.URL, "file:") {
		// A plain path is always created.
		return props
	}

	base, query, _ := strings.Cut(props.URL, "?")
	values, err := url.ParseQuery(query)
	if err != nil {
		return props
	}
	if values.Get("mode") == "memory" {
		return props
	}
	values.Set("mode", "rwc")
	out, _ := props.With(config.KeyURL, base+"?"+values.Encode())
	return out
}

// SQLitePath returns the file behind a SQLite DSN, or "" for in-memory
// databases.
func SQLitePath(dsn string) string {
	base, query, _ := strings.Cut(dsn, "?")
	base = strings.TrimPrefix(base, "file:")
	if base == "" || base == ":memory:" || strings.Contains(query, "mode=memory") {
		return ""
	}
	return filepath.FromSlash(base)
}

// privateMemory reports whether dsn names an in-memory SQLite database that
// is not shared between connections.
func privateMemory(dsn string) bool {
	base, query, _ := strings.Cut(dsn, "?")
	base = strings.TrimPrefix(base, "file:")
	values, _ := url.ParseQuery(query)
	if values.Get("cache") == "shared" {
		return false
	}
	return base == "" || base == ":memory:" || values.Get("mode") == "memory"
}
