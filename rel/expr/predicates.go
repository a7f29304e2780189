package expr

import (
	"fmt"

	"github.com/rowmill/rowmill/rel"
)

// CompareOp is a comparison operator over two values.
type CompareOp uint8

const (
	Eq CompareOp = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

func (op CompareOp) String() string {
	switch op {
	case Eq:
		return "="
	case Ne:
		return "!="
	case Lt:
		return "<"
	case Le:
		return "<="
	case Gt:
		return ">"
	case Ge:
		return ">="
	}
	return "?"
}

// Comparison evaluates a two-input predicate. A comparison against NULL is
// false, never NULL; the executors only branch on definite truth.
type Comparison struct {
	Op    CompareOp
	Left  Expression
	Right Expression
}

func NewComparison(op CompareOp, left, right Expression) *Comparison {
	return &Comparison{Op: op, Left: left, Right: right}
}

func (c *Comparison) Eval(outer, inner *rel.Tuple) (rel.Value, error) {
	lv, err := c.Left.Eval(outer, inner)
	if err != nil {
		return rel.Value{}, err
	}
	rv, err := c.Right.Eval(outer, inner)
	if err != nil {
		return rel.Value{}, err
	}
	if lv.IsNull() || rv.IsNull() {
		return rel.NewBoolean(false), nil
	}
	cmp := lv.Compare(rv)
	var out bool
	switch c.Op {
	case Eq:
		out = cmp == 0
	case Ne:
		out = cmp != 0
	case Lt:
		out = cmp < 0
	case Le:
		out = cmp <= 0
	case Gt:
		out = cmp > 0
	case Ge:
		out = cmp >= 0
	}
	return rel.NewBoolean(out), nil
}

func (c *Comparison) Substitute(params []rel.Value) error {
	if err := c.Left.Substitute(params); err != nil {
		return err
	}
	return c.Right.Substitute(params)
}

func (c *Comparison) String() string {
	return fmt.Sprintf("(%s %s %s)", c.Left, c.Op, c.Right)
}

// Conjunction is the logical AND of its operands.
type Conjunction struct {
	Operands []Expression
}

func NewConjunction(operands ...Expression) *Conjunction {
	return &Conjunction{Operands: operands}
}

func (c *Conjunction) Eval(outer, inner *rel.Tuple) (rel.Value, error) {
	for _, op := range c.Operands {
		v, err := op.Eval(outer, inner)
		if err != nil {
			return rel.Value{}, err
		}
		if !v.IsTrue() {
			return rel.NewBoolean(false), nil
		}
	}
	return rel.NewBoolean(true), nil
}

func (c *Conjunction) Substitute(params []rel.Value) error {
	for _, op := range c.Operands {
		if err := op.Substitute(params); err != nil {
			return err
		}
	}
	return nil
}

func (c *Conjunction) String() string {
	s := "(and"
	for _, op := range c.Operands {
		s += " " + op.String()
	}
	return s + ")"
}
