package catalog

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // register "postgres" driver
	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Supported source drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects how partitions are reached.
type Config struct {
	// Driver is DriverSQLite or DriverPostgres.
	Driver string
	// DSN is the postgres connection string for the workspace database.
	// Tenant partitions are reached on the same server by swapping the
	// database name.
	DSN string
	// Dir holds one <partition name>.db file per partition for sqlite.
	Dir string
}

// Open connects to the workspace partition and returns a Catalog whose
// tenant partitions are opened with the same driver.
func Open(ctx context.Context, cfg Config) (*Catalog, error) {
	var open OpenFunc
	switch cfg.Driver {
	case DriverSQLite, "":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("catalog: sqlite driver requires a partition directory")
		}
		open = sqliteOpener(cfg.Dir)
	case DriverPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("catalog: postgres driver requires a DSN")
		}
		open = postgresOpener(cfg.DSN)
	default:
		return nil, fmt.Errorf("catalog: unsupported driver %q (supported: sqlite, postgres)", cfg.Driver)
	}

	ws, err := open(ctx, WorkspaceName)
	if err != nil {
		return nil, fmt.Errorf("catalog: open workspace: %w", err)
	}
	return New(ws, open), nil
}

// SQLitePath returns the file backing the named partition under dir.
func SQLitePath(dir, name string) string {
	return filepath.Join(dir, name+".db")
}

func sqliteOpener(dir string) OpenFunc {
	return func(ctx context.Context, name string) (*sqlx.DB, error) {
		path := SQLitePath(dir, name)
		// A missing file would be created empty by the driver; treat it as
		// an unreachable partition instead.
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("partition file: %w", err)
		}
		db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(1)
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}
}

func postgresOpener(base string) OpenFunc {
	return func(ctx context.Context, name string) (*sqlx.DB, error) {
		dsn, err := WithDatabase(base, name)
		if err != nil {
			return nil, err
		}
		db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
}

var dbnameKV = regexp.MustCompile(`dbname=\S+`)

// WithDatabase rewrites a postgres DSN to target database name. Both URL
// and key=value forms are accepted.
func WithDatabase(dsn, name string) (string, error) {
	if strings.Contains(dsn, "://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("parse dsn: %w", err)
		}
		u.Path = "/" + name
		return u.String(), nil
	}
	if dbnameKV.MatchString(dsn) {
		return dbnameKV.ReplaceAllString(dsn, "dbname="+name), nil
	}
	return strings.TrimSpace(dsn + " dbname=" + name), nil
}
