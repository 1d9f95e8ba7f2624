package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens an embedded database at path. ":memory:" gives a private
// in-process database; the pool is pinned to one connection so every query
// sees the same data.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("open db: empty sqlite path")
	}
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// Open dispatches on driver, which is "postgres" or "sqlite". pool only
// applies to postgres.
func Open(ctx context.Context, driver, dsn string, pool PostgresConfig) (*sql.DB, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "pgx":
		return OpenPostgresWithConfig(ctx, dsn, pool)
	case "sqlite", "":
		return OpenSQLite(ctx, dsn)
	default:
		return nil, fmt.Errorf("open db: unsupported driver %q", driver)
	}
}
