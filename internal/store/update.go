package store

import (
	"fmt"
	"strings"
)

// updateBuilder accumulates column assignments for a single-row UPDATE and
// renders one parameterized statement containing exactly those columns.
type updateBuilder struct {
	table string
	cols  []string
	args  []interface{}
}

func newUpdate(table string) *updateBuilder {
	return &updateBuilder{table: table}
}

// set adds col = val unconditionally.
func (b *updateBuilder) set(col string, val interface{}) *updateBuilder {
	b.cols = append(b.cols, col)
	b.args = append(b.args, val)
	return b
}

// setIfNotEmpty adds col = val only when val is non-empty.
func (b *updateBuilder) setIfNotEmpty(col, val string) *updateBuilder {
	if val == "" {
		return b
	}
	return b.set(col, val)
}

// empty reports whether no column has been assigned yet.
func (b *updateBuilder) empty() bool {
	return len(b.cols) == 0
}

// build renders UPDATE ... SET ... WHERE whereCol = ?. It refuses to build a
// statement without assignments.
func (b *updateBuilder) build(whereCol string, whereVal interface{}) (string, []interface{}, error) {
	if b.table == "" {
		return "", nil, fmt.Errorf("table name is required")
	}
	if b.empty() {
		return "", nil, fmt.Errorf("at least one field to update is required")
	}
	for _, ident := range append([]string{b.table, whereCol}, b.cols...) {
		if err := validateIdentifier(ident); err != nil {
			return "", nil, err
		}
	}

	var sb strings.Builder
	sb.WriteString("UPDATE ")
	sb.WriteString(quoteIdentifier(b.table))
	sb.WriteString(" SET ")
	for i, col := range b.cols {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(quoteIdentifier(col))
		sb.WriteString(" = ?")
	}
	sb.WriteString(" WHERE ")
	sb.WriteString(quoteIdentifier(whereCol))
	sb.WriteString(" = ?")

	args := make([]interface{}, 0, len(b.args)+1)
	args = append(args, b.args...)
	args = append(args, whereVal)
	return sb.String(), args, nil
}

// quoteIdentifier wraps a SQL identifier in double quotes, escaping any
// embedded double quotes.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
