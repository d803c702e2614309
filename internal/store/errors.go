package store

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when a requested admin does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write would violate a uniqueness
	// constraint on username or emailid.
	ErrConflict = errors.New("already exists")

	// ErrNoDiscriminant is returned when a lookup names neither id,
	// username nor emailid.
	ErrNoDiscriminant = errors.New("one of id, username or emailid is required")

	// ErrInvalidArgument is returned for missing required fields.
	ErrInvalidArgument = errors.New("invalid argument")
)

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint error.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}
