// Package plan defines the read-only plan descriptors handed to the
// executors by the plan compiler.
package plan

import (
	"github.com/rowmill/rowmill/rel"
	"github.com/rowmill/rowmill/rel/expr"
)

// JoinType selects the join semantics of a join node.
type JoinType uint8

const (
	JoinInner JoinType = iota
	JoinLeft
)

func (j JoinType) String() string {
	if j == JoinLeft {
		return "LEFT"
	}
	return "INNER"
}

// LookupType is the index positioning mode of a scan.
type LookupType uint8

const (
	LookupInvalid LookupType = iota
	LookupEQ
	LookupGT
	LookupGTE
	LookupLT
	LookupLTE
)

func (l LookupType) String() string {
	switch l {
	case LookupEQ:
		return "EQ"
	case LookupGT:
		return "GT"
	case LookupGTE:
		return "GTE"
	case LookupLT:
		return "LT"
	case LookupLTE:
		return "LTE"
	}
	return "INVALID"
}

// SortDirection is the requested ordering of a scan.
type SortDirection uint8

const (
	SortInvalid SortDirection = iota
	SortAsc
	SortDesc
)

func (s SortDirection) String() string {
	switch s {
	case SortAsc:
		return "ASC"
	case SortDesc:
		return "DESC"
	}
	return "INVALID"
}

// IndexScanNode describes the inner, indexed side of an index join: how to
// derive the search key from the outer row, when to stop the scan, which
// candidates to keep, and how to project raw inner rows into the output.
type IndexScanNode struct {
	TargetTable string
	TargetIndex string
	SearchKeys  []expr.Expression
	EndExpr     expr.Expression
	PostExpr    expr.Expression
	OutputExprs []expr.Expression
	// OutputSchema declares the columns the projection produces; the join's
	// output is the outer schema followed by these.
	OutputSchema *rel.Schema
	Lookup       LookupType
	SortDir      SortDirection
}

// NestLoopIndexNode is the plan descriptor of the index-driven nested-loop
// join. It carries exactly one outer input and an inline index scan of the
// inner table.
type NestLoopIndexNode struct {
	Join   JoinType
	Inputs []string // outer input table names; must be exactly one
	Inline IndexScanNode
}
