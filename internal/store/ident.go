package store

import (
	"fmt"
	"regexp"
	"strings"
)

var identifierRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// reservedWords may not name a table or column even when quoted.
var reservedWords = map[string]bool{
	"SELECT": true, "INSERT": true, "UPDATE": true, "DELETE": true,
	"DROP": true, "CREATE": true, "ALTER": true, "PRAGMA": true,
	"ATTACH": true, "DETACH": true, "UNION": true, "FROM": true,
	"WHERE": true, "TABLE": true, "INDEX": true, "VIEW": true,
	"TRIGGER": true, "VACUUM": true,
}

// validateIdentifier accepts plain table and column names only: a letter or
// underscore followed by letters, digits or underscores, at most 128 bytes,
// and not a reserved word. Violations wrap ErrInvalidArgument.
func validateIdentifier(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: identifier cannot be empty", ErrInvalidArgument)
	case len(name) > 128:
		return fmt.Errorf("%w: identifier too long (max 128 chars): %q", ErrInvalidArgument, name)
	case !identifierRegex.MatchString(name):
		return fmt.Errorf("%w: invalid identifier %q", ErrInvalidArgument, name)
	case reservedWords[strings.ToUpper(name)]:
		return fmt.Errorf("%w: identifier %q is a reserved word", ErrInvalidArgument, name)
	}
	return nil
}
