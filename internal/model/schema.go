package model

// TableSchema describes the structure of a single table as reported by the
// engine.
type TableSchema struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Column describes a single column within a table.
type Column struct {
	Name            string  `json:"name"`
	Position        int     `json:"position"`
	Type            string  `json:"db_type"`
	Nullable        bool    `json:"nullable"`
	Default         *string `json:"default,omitempty"`
	IsPrimaryKey    bool    `json:"is_primary_key"`
	IsAutoIncrement bool    `json:"is_auto_increment"`
}

// Column returns the column called name, or nil.
func (t *TableSchema) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// AdminColumns describes the admins table as created by the default schema
// file. It stands in when the live table cannot be inspected.
func AdminColumns() []Column {
	one := "1"
	return []Column{
		{Name: ColID, Position: 0, Type: "INTEGER", IsPrimaryKey: true, IsAutoIncrement: true},
		{Name: ColUsername, Position: 1, Type: "TEXT"},
		{Name: ColEmailID, Position: 2, Type: "TEXT"},
		{Name: ColPassword, Position: 3, Type: "TEXT"},
		{Name: ColActive, Position: 4, Type: "INTEGER", Default: &one},
		{Name: ColCreatedAt, Position: 5, Type: "INTEGER"},
		{Name: ColUpdatedAt, Position: 6, Type: "INTEGER"},
	}
}
