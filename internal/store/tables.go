package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/faucetdb/memberapi/internal/model"
)

// Tables provides table-level access that is not specific to any one table:
// existence checks and schema bootstrap from a definition file.
type Tables struct {
	conn   *Conn
	logger *slog.Logger
}

// NewTables creates a Tables accessor over conn.
func NewTables(conn *Conn, logger *slog.Logger) *Tables {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tables{conn: conn, logger: logger}
}

// TableExists reports whether a table called name exists. A failed lookup
// is logged and reported as absent so that callers recreate the table.
func (t *Tables) TableExists(ctx context.Context, name string) bool {
	t.logger.Debug("checking table exists", "table", name)

	var found bool
	err := t.conn.Do(ctx, func(db *sqlx.DB) error {
		rec, err := QueryRecord(ctx, db,
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", name)
		if err != nil {
			return err
		}
		found = rec != nil
		return nil
	})
	if err != nil {
		t.logger.Error("table exists check failed", "table", name, "error", err)
		return false
	}
	return found
}

// CreateTable executes the statements in schemaFile as one batch and
// commits. Any failure (unreadable file, invalid SQL) is logged and reported
// as false; the batch is rolled back as a whole.
func (t *Tables) CreateTable(ctx context.Context, schemaFile string) bool {
	t.logger.Debug("creating table from schema", "schema", schemaFile)

	script, err := os.ReadFile(schemaFile)
	if err != nil {
		t.logger.Error("create table failed", "schema", schemaFile, "error", err)
		return false
	}

	err = t.conn.Do(ctx, func(db *sqlx.DB) error {
		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck

		if _, err := tx.ExecContext(ctx, string(script)); err != nil {
			return fmt.Errorf("execute schema: %w", err)
		}
		return tx.Commit()
	})
	if err != nil {
		t.logger.Error("create table failed", "schema", schemaFile, "error", err)
		return false
	}
	return true
}

// ListTables returns the names of all user tables in the database.
func (t *Tables) ListTables(ctx context.Context) ([]string, error) {
	var names []string
	err := t.conn.Do(ctx, func(db *sqlx.DB) error {
		return db.SelectContext(ctx, &names,
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	})
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return names, nil
}

// tableInfoRow holds a row from PRAGMA table_info().
type tableInfoRow struct {
	CID     int     `db:"cid"`
	Name    string  `db:"name"`
	Type    string  `db:"type"`
	NotNull int     `db:"notnull"`
	Default *string `db:"dflt_value"`
	PK      int     `db:"pk"`
}

// Describe returns the column layout of the table called name. A missing
// table yields ErrNotFound; a name that is not a plain identifier yields
// ErrInvalidArgument.
func (t *Tables) Describe(ctx context.Context, name string) (*model.TableSchema, error) {
	if err := validateIdentifier(name); err != nil {
		return nil, fmt.Errorf("describe table: %w", err)
	}
	var (
		rows      []tableInfoRow
		createSQL string
	)
	err := t.conn.Do(ctx, func(db *sqlx.DB) error {
		if err := db.SelectContext(ctx, &rows,
			fmt.Sprintf("PRAGMA table_info(%s)", quoteIdentifier(name))); err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return db.GetContext(ctx, &createSQL,
			"SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?", name)
	})
	if err != nil {
		return nil, fmt.Errorf("describe table %q: %w", name, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("describe table %q: %w", name, ErrNotFound)
	}

	pkCount := 0
	for _, r := range rows {
		if r.PK > 0 {
			pkCount++
		}
	}
	// A lone INTEGER PRIMARY KEY aliases the rowid and is assigned by the
	// engine.
	rowidAlias := pkCount == 1 && strings.Contains(strings.ToUpper(createSQL), "INTEGER PRIMARY KEY")

	ts := &model.TableSchema{Name: name, Columns: make([]model.Column, 0, len(rows))}
	for _, r := range rows {
		isPK := r.PK > 0
		ts.Columns = append(ts.Columns, model.Column{
			Name:            r.Name,
			Position:        r.CID,
			Type:            r.Type,
			Nullable:        r.NotNull == 0 && !isPK,
			Default:         r.Default,
			IsPrimaryKey:    isPK,
			IsAutoIncrement: isPK && rowidAlias,
		})
	}
	return ts, nil
}
