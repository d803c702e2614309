package model

import "fmt"

// Record is a single result row keyed by column name. A query that matched
// nothing yields a nil Record, never an empty one.
type Record map[string]interface{}

// Without returns a shallow copy of r with the given columns removed. A nil
// record stays nil.
func (r Record) Without(cols ...string) Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	for _, c := range cols {
		delete(out, c)
	}
	return out
}

// Int returns an integer column. SQLite hands back int64 for INTEGER
// columns; other integer kinds are accepted for records built by hand.
func (r Record) Int(col string) (int64, error) {
	v, ok := r[col]
	if !ok {
		return 0, fmt.Errorf("column %q missing", col)
	}
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("column %q: expected integer, got %T", col, v)
	}
}

// String returns a text column.
func (r Record) String(col string) (string, error) {
	v, ok := r[col]
	if !ok {
		return "", fmt.Errorf("column %q missing", col)
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	default:
		return "", fmt.Errorf("column %q: expected text, got %T", col, v)
	}
}
