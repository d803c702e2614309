package openapi

import "strings"

// TypeMapping maps database column types to OpenAPI type/format pairs.
type TypeMapping struct {
	Type   string // OpenAPI type: string, integer, number, boolean
	Format string // OpenAPI format: int64, double, byte, date-time
}

// declaredTypes covers declared types whose intent is clearer than their
// storage affinity, e.g. BOOLEAN is stored as NUMERIC.
var declaredTypes = map[string]TypeMapping{
	"boolean":   {"boolean", ""},
	"bool":      {"boolean", ""},
	"date":      {"string", "date"},
	"datetime":  {"string", "date-time"},
	"timestamp": {"string", "date-time"},
	"json":      {"object", ""},
}

// MapDBType converts a SQLite declared column type to an OpenAPI type
// mapping. Declared types listed in declaredTypes win; everything else
// follows SQLite's column affinity rules, checked in the engine's order:
// INT, then CHAR/CLOB/TEXT, then BLOB or no type, then REAL/FLOA/DOUB, and
// NUMERIC otherwise.
func MapDBType(dbType string) TypeMapping {
	normalized := strings.ToLower(strings.TrimSpace(dbType))
	if idx := strings.IndexByte(normalized, '('); idx >= 0 {
		normalized = strings.TrimSpace(normalized[:idx])
	}

	if m, ok := declaredTypes[normalized]; ok {
		return m
	}

	switch {
	case strings.Contains(normalized, "int"):
		return TypeMapping{"integer", "int64"}
	case strings.Contains(normalized, "char"),
		strings.Contains(normalized, "clob"),
		strings.Contains(normalized, "text"):
		return TypeMapping{"string", ""}
	case normalized == "", strings.Contains(normalized, "blob"):
		return TypeMapping{"string", "byte"}
	case strings.Contains(normalized, "real"),
		strings.Contains(normalized, "floa"),
		strings.Contains(normalized, "doub"):
		return TypeMapping{"number", "double"}
	default:
		return TypeMapping{"number", ""}
	}
}
