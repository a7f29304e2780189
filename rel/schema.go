package rel

import (
	"fmt"
	"strings"
)

// Column is one named, typed column of a schema.
type Column struct {
	Name string
	Type ColumnType
}

// Schema is an ordered set of columns shared by every tuple of a table or
// index key.
type Schema struct {
	cols []Column
}

// NewSchema builds a schema from the given columns.
func NewSchema(cols ...Column) *Schema {
	return &Schema{cols: cols}
}

// Len returns the number of columns.
func (s *Schema) Len() int { return len(s.cols) }

// Column returns the i-th column.
func (s *Schema) Column(i int) Column { return s.cols[i] }

// ColumnIndex returns the position of the named column, or -1.
func (s *Schema) ColumnIndex(name string) int {
	for i, c := range s.cols {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Names returns the column names in order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.cols))
	for i, c := range s.cols {
		names[i] = c.Name
	}
	return names
}

// Concat returns a schema holding this schema's columns followed by other's.
func (s *Schema) Concat(other *Schema) *Schema {
	cols := make([]Column, 0, len(s.cols)+len(other.cols))
	cols = append(cols, s.cols...)
	cols = append(cols, other.cols...)
	return &Schema{cols: cols}
}

func (s *Schema) String() string {
	parts := make([]string, len(s.cols))
	for i, c := range s.cols {
		parts[i] = fmt.Sprintf("%s %s", c.Name, c.Type)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
