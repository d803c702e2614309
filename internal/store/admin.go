package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/faucetdb/memberapi/internal/model"
)

// AdminTable is the name of the table holding admin accounts.
const AdminTable = "admins"

// Lookup identifies a single admin. Exactly one field should be set; when
// several are, ID wins over Username, which wins over EmailID.
type Lookup struct {
	ID       int64
	Username string
	EmailID  string
}

// ByID returns a Lookup on the id column.
func ByID(id int64) Lookup { return Lookup{ID: id} }

// ByUsername returns a Lookup on the username column.
func ByUsername(username string) Lookup { return Lookup{Username: username} }

// ByEmailID returns a Lookup on the emailid column.
func ByEmailID(emailid string) Lookup { return Lookup{EmailID: emailid} }

// discriminant picks the column and value to filter on.
func (l Lookup) discriminant() (string, interface{}, bool) {
	switch {
	case l.ID != 0:
		return model.ColID, l.ID, true
	case l.Username != "":
		return model.ColUsername, l.Username, true
	case l.EmailID != "":
		return model.ColEmailID, l.EmailID, true
	default:
		return "", nil, false
	}
}

// AdminUpdate lists the mutable admin fields. Empty fields are left as they
// are. Password must already be hashed.
type AdminUpdate struct {
	Username string
	EmailID  string
	Password string
}

// AdminStore persists admin accounts. Every method opens its own connection
// scope through Conn; failures are logged here and reported to the caller
// as a sentinel value or a wrapped sentinel error.
type AdminStore struct {
	conn   *Conn
	tables *Tables
	table  string
	logger *slog.Logger
	now    func() time.Time
}

// NewAdminStore creates an AdminStore. When the admins table does not exist
// yet it is created from schemaFile. A failed bootstrap is logged and does
// not prevent construction; later operations then fail on their own.
func NewAdminStore(ctx context.Context, conn *Conn, schemaFile string, logger *slog.Logger) *AdminStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &AdminStore{
		conn:   conn,
		tables: NewTables(conn, logger),
		table:  AdminTable,
		logger: logger,
		now:    time.Now,
	}

	if !s.tables.TableExists(ctx, s.table) {
		if !s.tables.CreateTable(ctx, schemaFile) {
			logger.Error("admin table bootstrap failed", "table", s.table, "schema", schemaFile)
		} else {
			logger.Info("admin table created", "table", s.table, "schema", schemaFile)
		}
	}
	return s
}

// Tables exposes the generic table accessor used by the store.
func (s *AdminStore) Tables() *Tables {
	return s.tables
}

// Add inserts a new admin and returns its id. created_at and updated_at are
// both set to the current time. The id reported by the engine is checked
// against a re-read by username; any mismatch is a failure.
func (s *AdminStore) Add(ctx context.Context, username, emailid, hpassword string, active bool) (int64, error) {
	s.logger.Debug("adding admin", "table", s.table, "username", username)

	if username == "" || emailid == "" || hpassword == "" {
		err := fmt.Errorf("add admin: %w: username, emailid and password are required", ErrInvalidArgument)
		s.logger.Error("add admin failed", "error", err)
		return 0, err
	}

	ts := model.Timestamp(s.now())
	q := fmt.Sprintf(`INSERT INTO %s
		(username, emailid, password, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`, quoteIdentifier(s.table))

	var id int64
	err := s.conn.Do(ctx, func(db *sqlx.DB) error {
		result, err := db.ExecContext(ctx, q, username, emailid, hpassword, boolToInt(active), ts, ts)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("insert admin: %w: %v", ErrConflict, err)
			}
			return fmt.Errorf("insert admin: %w", err)
		}

		id, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("get admin id: %w", err)
		}

		rec, err := QueryRecord(ctx, db,
			fmt.Sprintf("SELECT id FROM %s WHERE username = ?", quoteIdentifier(s.table)), username)
		if err != nil {
			return fmt.Errorf("read back admin id: %w", err)
		}
		if rec == nil {
			return fmt.Errorf("read back admin id: %w", ErrNotFound)
		}
		readID, err := rec.Int(model.ColID)
		if err != nil {
			return fmt.Errorf("read back admin id: %w", err)
		}
		if readID != id {
			return fmt.Errorf("read back admin id: got %d, inserted %d", readID, id)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("add admin failed", "username", username, "emailid", emailid, "error", err)
		return 0, err
	}
	return id, nil
}

// Exists reports whether an admin matching l exists. A Lookup without any
// discriminant is a caller error: it is logged and reported as false, as are
// engine failures.
func (s *AdminStore) Exists(ctx context.Context, l Lookup) bool {
	s.logger.Debug("checking if admin exists")

	col, val, ok := l.discriminant()
	if !ok {
		s.logger.Error("admin exists check failed", "error", ErrNoDiscriminant)
		return false
	}

	var found bool
	err := s.conn.Do(ctx, func(db *sqlx.DB) error {
		rec, err := QueryRecord(ctx, db,
			fmt.Sprintf("SELECT id FROM %s WHERE %s = ?", quoteIdentifier(s.table), quoteIdentifier(col)), val)
		if err != nil {
			return err
		}
		found = rec != nil
		return nil
	})
	if err != nil {
		s.logger.Error("admin exists check failed", col, val, "error", err)
		return false
	}
	return found
}

// Remove deletes the admin with the given id. Deleting an id that does not
// exist succeeds.
func (s *AdminStore) Remove(ctx context.Context, id int64) bool {
	s.logger.Debug("removing admin", "id", id)

	err := s.conn.Do(ctx, func(db *sqlx.DB) error {
		_, err := db.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE id = ?", quoteIdentifier(s.table)), id)
		return err
	})
	if err != nil {
		s.logger.Error("remove admin failed", "id", id, "error", err)
		return false
	}
	return true
}

// Update writes the non-empty fields of u to the admin with the given id and
// refreshes updated_at. It returns false when u is empty or the write fails.
func (s *AdminStore) Update(ctx context.Context, id int64, u AdminUpdate) bool {
	s.logger.Debug("updating admin", "id", id)

	b := newUpdate(s.table).
		setIfNotEmpty(model.ColUsername, u.Username).
		setIfNotEmpty(model.ColEmailID, u.EmailID).
		setIfNotEmpty(model.ColPassword, u.Password)
	if b.empty() {
		s.logger.Error("update admin failed", "id", id,
			"error", "one of username, emailid or password is required")
		return false
	}
	b.set(model.ColUpdatedAt, model.Timestamp(s.now()))

	return s.exec(ctx, "update admin", id, b)
}

// SetActive enables or disables the admin with the given id.
func (s *AdminStore) SetActive(ctx context.Context, id int64, active bool) bool {
	s.logger.Debug("setting admin active flag", "id", id, "active", active)

	b := newUpdate(s.table).
		set(model.ColActive, boolToInt(active)).
		set(model.ColUpdatedAt, model.Timestamp(s.now()))
	return s.exec(ctx, "set admin active", id, b)
}

func (s *AdminStore) exec(ctx context.Context, op string, id int64, b *updateBuilder) bool {
	q, args, err := b.build(model.ColID, id)
	if err != nil {
		s.logger.Error(op+" failed", "id", id, "error", err)
		return false
	}

	err = s.conn.Do(ctx, func(db *sqlx.DB) error {
		_, err := db.ExecContext(ctx, q, args...)
		return err
	})
	if err != nil {
		s.logger.Error(op+" failed", "id", id, "error", err)
		return false
	}
	return true
}

// Get returns the full admin row, password hash included. A Lookup without
// any discriminant fails with ErrNoDiscriminant; an unknown admin yields a
// nil Record and ErrNotFound.
func (s *AdminStore) Get(ctx context.Context, l Lookup) (model.Record, error) {
	s.logger.Debug("getting admin data")

	col, val, ok := l.discriminant()
	if !ok {
		err := fmt.Errorf("get admin: %w", ErrNoDiscriminant)
		s.logger.Error("get admin failed", "error", err)
		return nil, err
	}

	var rec model.Record
	err := s.conn.Do(ctx, func(db *sqlx.DB) error {
		var err error
		rec, err = QueryRecord(ctx, db,
			fmt.Sprintf("SELECT * FROM %s WHERE %s = ?", quoteIdentifier(s.table), quoteIdentifier(col)), val)
		return err
	})
	if err != nil {
		err = fmt.Errorf("get admin: %w", err)
		s.logger.Error("get admin failed", col, val, "error", err)
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	return rec, nil
}

// List returns every admin ordered by id.
func (s *AdminStore) List(ctx context.Context) ([]model.Record, error) {
	var recs []model.Record
	err := s.conn.Do(ctx, func(db *sqlx.DB) error {
		var err error
		recs, err = QueryRecords(ctx, db,
			fmt.Sprintf("SELECT * FROM %s ORDER BY id", quoteIdentifier(s.table)))
		return err
	})
	if err != nil {
		err = fmt.Errorf("list admins: %w", err)
		s.logger.Error("list admins failed", "error", err)
		return nil, err
	}
	return recs, nil
}

// Count returns the number of admin accounts.
func (s *AdminStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.conn.Do(ctx, func(db *sqlx.DB) error {
		return db.GetContext(ctx, &n, fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdentifier(s.table)))
	})
	if err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
