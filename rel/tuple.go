package rel

import (
	"strings"
)

// Tuple is a positional row of values over a schema. The executor reuses
// tuples as scratch buffers, so holding on to a *Tuple across iterations is
// only safe after Clone.
type Tuple struct {
	schema *Schema
	values []Value
}

// NewTuple builds an all-null tuple over the schema.
func NewTuple(schema *Schema) *Tuple {
	t := &Tuple{schema: schema, values: make([]Value, schema.Len())}
	t.SetAllNulls()
	return t
}

// Schema returns the tuple's schema.
func (t *Tuple) Schema() *Schema { return t.schema }

// Len returns the number of columns.
func (t *Tuple) Len() int { return len(t.values) }

// Value returns the i-th value.
func (t *Tuple) Value(i int) Value { return t.values[i] }

// Set stores v at position i without type conversion.
func (t *Tuple) Set(i int, v Value) { t.values[i] = v }

// SetTyped casts v to the column's declared type and stores it. A value that
// cannot be represented surfaces the cast's *RangeError.
func (t *Tuple) SetTyped(i int, v Value) error {
	cast, err := v.CastTo(t.schema.Column(i).Type)
	if err != nil {
		return err
	}
	t.values[i] = cast
	return nil
}

// SetAllNulls resets every column to the NULL of its type.
func (t *Tuple) SetAllNulls() {
	for i := range t.values {
		t.values[i] = NullValue(t.schema.Column(i).Type)
	}
}

// Clone returns an independent copy of the tuple.
func (t *Tuple) Clone() *Tuple {
	vals := make([]Value, len(t.values))
	copy(vals, t.values)
	return &Tuple{schema: t.schema, values: vals}
}

func (t *Tuple) String() string {
	parts := make([]string, len(t.values))
	for i, v := range t.values {
		parts[i] = v.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}
