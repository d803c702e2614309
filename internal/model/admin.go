package model

import (
	"fmt"
	"time"
)

// Admin is the typed view of one row in the admins table. Passwords are
// stored as one-way salted hashes and are never serialized.
type Admin struct {
	ID        int64  `json:"id" db:"id"`
	Username  string `json:"username" db:"username"`
	EmailID   string `json:"emailid" db:"emailid"`
	Password  string `json:"-" db:"password"` // hash, never expose
	Active    bool   `json:"active" db:"active"`
	CreatedAt int64  `json:"created_at" db:"created_at"`
	UpdatedAt int64  `json:"updated_at" db:"updated_at"`
}

// Column names of the admins table.
const (
	ColID        = "id"
	ColUsername  = "username"
	ColEmailID   = "emailid"
	ColPassword  = "password"
	ColActive    = "active"
	ColCreatedAt = "created_at"
	ColUpdatedAt = "updated_at"
)

// AdminFromRecord converts a raw admins row into an Admin. It fails when a
// required column is missing or holds a value of the wrong type.
func AdminFromRecord(r Record) (*Admin, error) {
	if r == nil {
		return nil, fmt.Errorf("admin record is nil")
	}
	id, err := r.Int(ColID)
	if err != nil {
		return nil, err
	}
	username, err := r.String(ColUsername)
	if err != nil {
		return nil, err
	}
	emailid, err := r.String(ColEmailID)
	if err != nil {
		return nil, err
	}
	active, err := r.Int(ColActive)
	if err != nil {
		return nil, err
	}
	createdAt, err := r.Int(ColCreatedAt)
	if err != nil {
		return nil, err
	}
	updatedAt, err := r.Int(ColUpdatedAt)
	if err != nil {
		return nil, err
	}

	// Sanitized records carry no password column.
	password, _ := r.String(ColPassword)

	return &Admin{
		ID:        id,
		Username:  username,
		EmailID:   emailid,
		Password:  password,
		Active:    active != 0,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

// timestampLayout is the YYYYMMDDHHMMSS layout used for created_at and
// updated_at. Stored as an integer so that numeric order is time order.
const timestampLayout = "20060102150405"

// Timestamp encodes t as a YYYYMMDDHHMMSS integer in t's location.
func Timestamp(t time.Time) int64 {
	y, mo, d := t.Date()
	h, mi, s := t.Clock()
	return int64(y)*1e10 + int64(mo)*1e8 + int64(d)*1e6 + int64(h)*1e4 + int64(mi)*1e2 + int64(s)
}

// ParseTimestamp decodes a YYYYMMDDHHMMSS integer in the local time zone.
func ParseTimestamp(ts int64) (time.Time, error) {
	t, err := time.ParseInLocation(timestampLayout, fmt.Sprintf("%014d", ts), time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %d: %w", ts, err)
	}
	return t, nil
}
