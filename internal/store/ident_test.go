package store

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		errMsg  string
	}{
		{"table", "admins", false, ""},
		{"underscore prefix", "_id", false, ""},
		{"with numbers", "col123", false, ""},
		{"mixed", "created_at", false, ""},
		{"empty", "", true, "cannot be empty"},
		{"starts with number", "1col", true, "invalid identifier"},
		{"contains space", "col name", true, "invalid identifier"},
		{"contains quote", `ad"mins`, true, "invalid identifier"},
		{"injection attempt", "admins; DROP TABLE admins--", true, "invalid identifier"},
		{"reserved word", "select", true, "reserved word"},
		{"reserved pragma", "Pragma", true, "reserved word"},
		{"too long", strings.Repeat("a", 129), true, "too long"},
		{"max length", strings.Repeat("a", 128), false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateIdentifier(tt.input)
			if !tt.wantErr {
				if err != nil {
					t.Errorf("unexpected error for %q: %v", tt.input, err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error for %q, got nil", tt.input)
			}
			if !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("error %v does not wrap ErrInvalidArgument", err)
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("expected error containing %q, got %q", tt.errMsg, err.Error())
			}
		})
	}
}
