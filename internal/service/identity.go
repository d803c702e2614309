package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/faucetdb/memberapi/internal/model"
	"github.com/faucetdb/memberapi/internal/store"
)

var (
	// ErrAdminExists is returned when the username or emailid is taken.
	ErrAdminExists = errors.New("admin already exists with same username or email id")

	// ErrValidation marks a password check that could not be carried out,
	// as opposed to one that simply did not match.
	ErrValidation = errors.New("password validation failed")

	// ErrStoreFailure is returned when the store rejected a write without a
	// more specific reason. Details are in the store's log.
	ErrStoreFailure = errors.New("store operation failed")
)

// IdentityService exposes identity-oriented operations on top of the admin
// store. Records leaving the service never carry the password column.
type IdentityService struct {
	store  *store.AdminStore
	logger *slog.Logger
	hash   func(string) (string, error)
}

// NewIdentityService creates an IdentityService over s.
func NewIdentityService(s *store.AdminStore, logger *slog.Logger) *IdentityService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdentityService{store: s, logger: logger, hash: HashPassword}
}

// SetHashCost changes the bcrypt cost used for new password hashes.
func (s *IdentityService) SetHashCost(cost int) {
	s.hash = func(password string) (string, error) {
		return hashPasswordCost(password, cost)
	}
}

// Store returns the underlying admin store.
func (s *IdentityService) Store() *store.AdminStore {
	return s.store
}

// Sanitize returns rec without its password column.
func Sanitize(rec model.Record) model.Record {
	return rec.Without(model.ColPassword)
}

// GetInfoByID returns the admin with the given id, password stripped.
func (s *IdentityService) GetInfoByID(ctx context.Context, id int64) (model.Record, error) {
	s.logger.Debug("get admin data by id", "id", id)
	rec, err := s.store.Get(ctx, store.ByID(id))
	if err != nil {
		return nil, err
	}
	return Sanitize(rec), nil
}

// GetInfoByUsername returns the admin with the given username, password
// stripped.
func (s *IdentityService) GetInfoByUsername(ctx context.Context, username string) (model.Record, error) {
	s.logger.Debug("get admin data by username", "username", username)
	rec, err := s.store.Get(ctx, store.ByUsername(username))
	if err != nil {
		return nil, err
	}
	return Sanitize(rec), nil
}

// ValidatePassword checks password against the stored hash for username.
// It returns (true, nil) on a match and (false, nil) on a mismatch. Any
// other outcome (unknown username, malformed record, unreadable hash) is
// reported as (false, err) with err wrapping ErrValidation. Callers must
// treat both non-true results as unauthorized.
func (s *IdentityService) ValidatePassword(ctx context.Context, username, password string) (bool, error) {
	_, ok, err := s.verify(ctx, username, password)
	return ok, err
}

func (s *IdentityService) verify(ctx context.Context, username, password string) (*model.Admin, bool, error) {
	s.logger.Debug("validate admin", "username", username)

	fail := func(err error) (*model.Admin, bool, error) {
		s.logger.Error("validate password failed", "username", username, "error", err)
		return nil, false, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if username == "" {
		return fail(store.ErrNoDiscriminant)
	}
	rec, err := s.store.Get(ctx, store.ByUsername(username))
	if err != nil {
		return fail(err)
	}
	admin, err := model.AdminFromRecord(rec)
	if err != nil {
		return fail(err)
	}
	if admin.Password == "" {
		return fail(fmt.Errorf("admin %d has no password hash", admin.ID))
	}
	ok, err := CheckPasswordHash(admin.Password, password)
	if err != nil {
		return fail(err)
	}
	return admin, ok, nil
}

// Register creates a new active admin from plaintext credentials and returns
// its id with the sanitized record. Duplicate username or emailid yields
// ErrAdminExists.
func (s *IdentityService) Register(ctx context.Context, username, emailid, password string) (int64, model.Record, error) {
	if username == "" || emailid == "" || password == "" {
		return 0, nil, fmt.Errorf("%w: username, emailid and password are required", store.ErrInvalidArgument)
	}
	if s.store.Exists(ctx, store.ByUsername(username)) || s.store.Exists(ctx, store.ByEmailID(emailid)) {
		return 0, nil, ErrAdminExists
	}

	hpassword, err := s.hash(password)
	if err != nil {
		return 0, nil, err
	}

	id, err := s.store.Add(ctx, username, emailid, hpassword, true)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return 0, nil, ErrAdminExists
		}
		return 0, nil, err
	}

	rec, err := s.GetInfoByID(ctx, id)
	if err != nil {
		return 0, nil, fmt.Errorf("read created admin: %w", err)
	}
	return id, rec, nil
}

// ChangeDetails updates any non-empty subset of username, emailid and
// password for the admin with the given id. The password is hashed here.
func (s *IdentityService) ChangeDetails(ctx context.Context, id int64, username, emailid, password string) error {
	if username == "" && emailid == "" && password == "" {
		return fmt.Errorf("%w: one of username, emailid or password is required", store.ErrInvalidArgument)
	}
	if !s.store.Exists(ctx, store.ByID(id)) {
		return store.ErrNotFound
	}
	if username != "" {
		taken, err := s.takenByOther(ctx, store.ByUsername(username), id)
		if err != nil {
			return fmt.Errorf("check username: %w", err)
		}
		if taken {
			return ErrAdminExists
		}
	}
	if emailid != "" {
		taken, err := s.takenByOther(ctx, store.ByEmailID(emailid), id)
		if err != nil {
			return fmt.Errorf("check emailid: %w", err)
		}
		if taken {
			return ErrAdminExists
		}
	}

	u := store.AdminUpdate{Username: username, EmailID: emailid}
	if password != "" {
		h, err := s.hash(password)
		if err != nil {
			return err
		}
		u.Password = h
	}
	if !s.store.Update(ctx, id, u) {
		return ErrStoreFailure
	}
	return nil
}

// takenByOther reports whether l names an admin other than id. Lookup
// failures are returned rather than read as "free".
func (s *IdentityService) takenByOther(ctx context.Context, l store.Lookup, id int64) (bool, error) {
	rec, err := s.store.Get(ctx, l)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	other, err := rec.Int(model.ColID)
	if err != nil {
		return false, err
	}
	return other != id, nil
}

// SetActive enables or disables an admin.
func (s *IdentityService) SetActive(ctx context.Context, id int64, active bool) error {
	if !s.store.Exists(ctx, store.ByID(id)) {
		return store.ErrNotFound
	}
	if !s.store.SetActive(ctx, id, active) {
		return ErrStoreFailure
	}
	return nil
}

// Remove deletes an admin. Removing an unknown id succeeds.
func (s *IdentityService) Remove(ctx context.Context, id int64) bool {
	return s.store.Remove(ctx, id)
}

// List returns all admins, passwords stripped.
func (s *IdentityService) List(ctx context.Context) ([]model.Record, error) {
	recs, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Record, len(recs))
	for i, r := range recs {
		out[i] = Sanitize(r)
	}
	return out, nil
}
