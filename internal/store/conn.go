package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/faucetdb/memberapi/internal/model"
)

// busyTimeoutMs is how long a handle waits on a locked database file before
// giving up. Writers are serialized by SQLite itself.
const busyTimeoutMs = 5000

// Conn hands out a database handle scoped to a single logical operation.
// Nothing is held open between calls to Do.
type Conn struct {
	path   string
	logger *slog.Logger
}

// NewConn creates a connection manager for the SQLite file at path.
func NewConn(path string, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	return &Conn{path: path, logger: logger}
}

// Path returns the database file path.
func (c *Conn) Path() string {
	return c.path
}

func (c *Conn) dsn() string {
	if strings.Contains(c.path, "?") {
		return c.path
	}
	return fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", c.path, busyTimeoutMs)
}

// Do opens the database, runs fn and closes the handle again. The handle is
// released on every exit path, including a panic inside fn.
func (c *Conn) Do(ctx context.Context, fn func(db *sqlx.DB) error) error {
	if c.path == "" {
		return fmt.Errorf("open database: path is empty")
	}
	if dir := filepath.Dir(c.path); dir != "." && !strings.HasPrefix(c.path, ":memory:") {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := sqlx.ConnectContext(ctx, "sqlite", c.dsn())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1) // one operation, one connection
	c.logger.Debug("connected to database", "path", c.path)

	defer func() {
		if err := db.Close(); err != nil {
			c.logger.Warn("closing database failed", "path", c.path, "error", err)
			return
		}
		c.logger.Debug("connection to database closed", "path", c.path)
	}()

	return fn(db)
}

// QueryRecord runs query and returns the first row keyed by column name.
// It returns a nil Record and no error when the query matched nothing.
func QueryRecord(ctx context.Context, q sqlx.QueryerContext, query string, args ...interface{}) (model.Record, error) {
	row := q.QueryRowxContext(ctx, query, args...)
	rec := make(map[string]interface{})
	if err := row.MapScan(rec); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return toRecord(rec), nil
}

// QueryRecords runs query and returns every row keyed by column name.
func QueryRecords(ctx context.Context, q sqlx.QueryerContext, query string, args ...interface{}) ([]model.Record, error) {
	rows, err := q.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Record{}
	for rows.Next() {
		rec := make(map[string]interface{})
		if err := rows.MapScan(rec); err != nil {
			return nil, err
		}
		out = append(out, toRecord(rec))
	}
	return out, rows.Err()
}

// toRecord normalizes driver values so records are JSON friendly.
func toRecord(m map[string]interface{}) model.Record {
	for k, v := range m {
		if b, ok := v.([]byte); ok {
			m[k] = string(b)
		}
	}
	return model.Record(m)
}
