// Package schema carries the default table definitions shipped with the
// binary. The store never reads them from here: it reads the files named in
// configuration, and `memberapi db init` writes these defaults to those paths.
package schema

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed *.sql
var files embed.FS

// Default file names, one per table.
const (
	Admins      = "admins.sql"
	Members     = "members.sql"
	Memberships = "memberships.sql"
)

// Read returns the embedded default schema called name.
func Read(name string) ([]byte, error) {
	b, err := files.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read embedded schema %q: %w", name, err)
	}
	return b, nil
}

// WriteFile writes the embedded schema called name to path, creating parent
// directories as needed. An existing file is left untouched unless force is
// set. It reports whether the file was written.
func WriteFile(name, path string, force bool) (bool, error) {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}
	b, err := Read(name)
	if err != nil {
		return false, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("create schema dir: %w", err)
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return false, fmt.Errorf("write schema %q: %w", path, err)
	}
	return true, nil
}
