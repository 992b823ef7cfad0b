package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteDB is the single-node backend used when DB_DRIVER=sqlite
type SQLiteDB struct {
	Conn   *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens (or creates) the database at path. ":memory:" yields a
// private in-memory database bound to a single connection.
func OpenSQLite(path string, logger *slog.Logger) (*SQLiteDB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dsn := path
	if path != ":memory:" {
		dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}

	// An in-memory database lives and dies with its connection.
	if path == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to ping sqlite database: %w", err)
	}

	logger.Info("database connection established",
		slog.String("driver", "sqlite"),
		slog.String("path", path),
	)

	return &SQLiteDB{Conn: conn, logger: logger}, nil
}

func (db *SQLiteDB) Close() {
	db.logger.Info("closing sqlite database")
	db.Conn.Close()
}

func (db *SQLiteDB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.Conn.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// WithSnapshot runs fn in a deferred transaction. SQLite pins the read
// snapshot at the first SELECT and keeps it until the transaction ends, so
// every read inside fn observes the same state.
func (db *SQLiteDB) WithSnapshot(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.Conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	return fn(tx)
}
