// Package expr implements the expression evaluator consumed by the
// executors. Expressions are small concrete variants behind one interface;
// predicates and projections are just expressions.
package expr

import (
	"fmt"

	"github.com/rowmill/rowmill/rel"
)

// Side selects which input tuple a column reference reads from. Projection
// expressions over raw inner tuples address them as the first input.
type Side uint8

const (
	Outer Side = iota
	Inner
)

// Expression evaluates against up to two input tuples. Substitute binds
// runtime parameters before execution begins.
type Expression interface {
	Eval(outer, inner *rel.Tuple) (rel.Value, error)
	Substitute(params []rel.Value) error
	String() string
}

// ColumnValue reads one column from the selected input tuple.
type ColumnValue struct {
	Side Side
	Col  int
}

func NewColumnValue(side Side, col int) *ColumnValue {
	return &ColumnValue{Side: side, Col: col}
}

func (c *ColumnValue) Eval(outer, inner *rel.Tuple) (rel.Value, error) {
	t := outer
	if c.Side == Inner {
		t = inner
	}
	if t == nil {
		return rel.Value{}, fmt.Errorf("column reference %s has no input tuple", c)
	}
	if c.Col < 0 || c.Col >= t.Len() {
		return rel.Value{}, fmt.Errorf("column reference %s out of range for %d columns", c, t.Len())
	}
	return t.Value(c.Col), nil
}

func (c *ColumnValue) Substitute([]rel.Value) error { return nil }

func (c *ColumnValue) String() string {
	side := "outer"
	if c.Side == Inner {
		side = "inner"
	}
	return fmt.Sprintf("%s[%d]", side, c.Col)
}

// Constant is a literal value.
type Constant struct {
	Value rel.Value
}

func NewConstant(v rel.Value) *Constant { return &Constant{Value: v} }

func (c *Constant) Eval(_, _ *rel.Tuple) (rel.Value, error) { return c.Value, nil }

func (c *Constant) Substitute([]rel.Value) error { return nil }

func (c *Constant) String() string { return c.Value.String() }

// Parameter is a placeholder bound by Substitute before execution.
type Parameter struct {
	Index int
	bound bool
	value rel.Value
}

func NewParameter(index int) *Parameter { return &Parameter{Index: index} }

func (p *Parameter) Eval(_, _ *rel.Tuple) (rel.Value, error) {
	if !p.bound {
		return rel.Value{}, fmt.Errorf("parameter %d evaluated before binding", p.Index)
	}
	return p.value, nil
}

func (p *Parameter) Substitute(params []rel.Value) error {
	if p.Index < 0 || p.Index >= len(params) {
		return fmt.Errorf("parameter %d out of range for %d bound values", p.Index, len(params))
	}
	p.value = params[p.Index]
	p.bound = true
	return nil
}

func (p *Parameter) String() string { return fmt.Sprintf("?%d", p.Index) }
