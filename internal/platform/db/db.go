package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect selects placeholder style and upsert syntax for SQL adapters.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

// Placeholder returns the n-th (1-based) bind parameter for the dialect.
func (d Dialect) Placeholder(n int) string {
	if d == SQLite {
		return "?"
	}
	return fmt.Sprintf("$%d", n)
}

// ParseDSN maps a data source string to a driver and dialect.
// "postgres://" and "postgresql://" go to pgx; "sqlite:<path>" and paths
// ending in .db/.sqlite go to modernc sqlite.
func ParseDSN(dsn string) (driver string, source string, dialect Dialect, err error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case dsn == "":
		return "", "", 0, fmt.Errorf("parse dsn: empty data source")
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "pgx", dsn, Postgres, nil
	case strings.HasPrefix(dsn, "sqlite:"):
		return "sqlite", strings.TrimPrefix(dsn, "sqlite:"), SQLite, nil
	case strings.HasSuffix(dsn, ".db"), strings.HasSuffix(dsn, ".sqlite"):
		return "sqlite", dsn, SQLite, nil
	}
	return "", "", 0, fmt.Errorf("parse dsn: unsupported data source %q", dsn)
}

// IsDSN reports whether s looks like a database source rather than a file.
func IsDSN(s string) bool {
	_, _, _, err := ParseDSN(s)
	return err == nil
}

// Open connects to dsn and verifies the connection.
func Open(dsn string) (*sql.DB, Dialect, error) {
	driver, source, dialect, err := ParseDSN(dsn)
	if err != nil {
		return nil, 0, fmt.Errorf("openDB: %w", err)
	}

	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, 0, fmt.Errorf("openDB: open %s database: %w", driver, err)
	}

	if dialect == Postgres {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	} else {
		// modernc sqlite serializes writers; one connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, 0, fmt.Errorf("openDB: verify %s connection: %w", driver, err)
	}

	return db, dialect, nil
}
