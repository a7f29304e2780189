package executor

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/rowmill/rowmill/rel"
	"github.com/rowmill/rowmill/rel/expr"
	"github.com/rowmill/rowmill/rel/index"
	"github.com/rowmill/rowmill/rel/plan"
	"github.com/rowmill/rowmill/rel/table"
)

// NestLoopIndexExecutor runs the index-driven nested-loop join: it iterates
// the outer input, derives a search key from each outer row, drives the
// inner table's index, and emits concatenated rows into a temp output table.
type NestLoopIndexExecutor struct {
	node *plan.NestLoopIndexNode
	opts Options

	outer  *table.Table
	inner  *table.Table
	index  *index.TreeIndex
	output *table.TempTable

	joinType    plan.JoinType
	lookup      plan.LookupType
	sortDir     plan.SortDirection
	outputExprs []expr.Expression

	// search-key buffer over the index key schema, reused across outer rows
	keyBuf *rel.Tuple
}

// NewNestLoopIndexExecutor creates an uninitialized executor.
func NewNestLoopIndexExecutor(opts Options) *NestLoopIndexExecutor {
	return &NestLoopIndexExecutor{opts: opts}
}

// Init resolves the plan descriptor against the database: the single outer
// input, the inner table, and its target index. A missing index or a nil
// search-key expression is an ErrInvalidPlan failure, recoverable at the
// operator level.
func (e *NestLoopIndexExecutor) Init(node *plan.NestLoopIndexNode, db *table.Database) error {
	if len(node.Inputs) != 1 {
		return planErrorf("nest loop index join needs exactly one outer input, got %d", len(node.Inputs))
	}
	e.outer = db.Table(node.Inputs[0])
	if e.outer == nil {
		return planErrorf("outer table %q not found", node.Inputs[0])
	}
	e.inner = db.Table(node.Inline.TargetTable)
	if e.inner == nil {
		return planErrorf("inner table %q not found", node.Inline.TargetTable)
	}
	e.index = e.inner.Index(node.Inline.TargetIndex)
	if e.index == nil {
		return planErrorf("index %q not found on table %q",
			node.Inline.TargetIndex, node.Inline.TargetTable)
	}
	for i, k := range node.Inline.SearchKeys {
		if k == nil {
			return planErrorf("search key expression %d is nil", i)
		}
	}
	if node.Inline.OutputSchema == nil {
		return planErrorf("inline index scan carries no output schema")
	}
	if len(node.Inline.OutputExprs) != node.Inline.OutputSchema.Len() {
		return planErrorf("output schema declares %d columns for %d projection expressions",
			node.Inline.OutputSchema.Len(), len(node.Inline.OutputExprs))
	}

	e.node = node
	e.joinType = node.Join
	e.lookup = node.Inline.Lookup
	e.sortDir = node.Inline.SortDir
	e.outputExprs = node.Inline.OutputExprs

	e.keyBuf = rel.NewTuple(e.index.KeySchema())
	e.output = table.NewTempTable(e.outer.Schema().Concat(node.Inline.OutputSchema))
	return nil
}

// Output returns the temp table holding the rows of the last Execute.
func (e *NestLoopIndexExecutor) Output() *table.TempTable { return e.output }

// Execute binds the runtime parameters and runs the join to completion,
// emitting the batch into the output table. Prior output is discarded.
func (e *NestLoopIndexExecutor) Execute(params []rel.Value) error {
	if e.node == nil {
		return errors.AssertionFailedf("executor not initialized")
	}
	for i, k := range e.node.Inline.SearchKeys {
		if err := k.Substitute(params); err != nil {
			return fmt.Errorf("search key %d: %w", i, err)
		}
	}
	endExpr := e.node.Inline.EndExpr
	if endExpr != nil {
		if err := endExpr.Substitute(params); err != nil {
			return fmt.Errorf("end expression: %w", err)
		}
	}
	postExpr := e.node.Inline.PostExpr
	if postExpr != nil {
		if err := postExpr.Substitute(params); err != nil {
			return fmt.Errorf("post expression: %w", err)
		}
	}

	e.output.Reset()
	numOuterCols := e.outer.Schema().Len()
	searchKeys := e.node.Inline.SearchKeys

	outerIt := e.outer.Iterator()
	defer outerIt.Close()

	for outerIt.Next() {
		outerTuple := outerIt.Tuple()
		if e.opts.EnableDebugLogging {
			fmt.Printf("[NestLoopIndex] outer tuple: %s\n", outerTuple)
		}

		activeKeys := len(searchKeys)
		localLookup := e.lookup
		localSort := e.sortDir
		match := false
		keyError := false

		// Build the search key from the outer row. Typed overflow or
		// underflow on the terminal key column of a range lookup degrades
		// the scan instead of failing it.
		e.keyBuf.SetAllNulls()
		for ctr := 0; ctr < activeKeys; ctr++ {
			candidate, err := searchKeys[ctr].Eval(outerTuple, nil)
			if err != nil {
				return fmt.Errorf("search key %d: %w", ctr, err)
			}
			err = e.keyBuf.SetTyped(ctr, candidate)
			if err == nil {
				continue
			}
			var rangeErr *rel.RangeError
			if !errors.As(err, &rangeErr) {
				return fmt.Errorf("search key %d: %w", ctr, err)
			}

			if localLookup != plan.LookupEQ && ctr == activeKeys-1 && activeKeys > 1 {
				if rangeErr.Overflow {
					if localLookup == plan.LookupGT || localLookup == plan.LookupGTE {
						// a key above the type's range can never match a
						// forward lookup; only left-outer padding remains
						keyError = true
						break
					}
					// LT/LTE with a populated key is planned away
					return err
				}
				if rangeErr.Underflow {
					if localLookup == plan.LookupLT || localLookup == plan.LookupLTE {
						return err
					}
					if localLookup == plan.LookupGTE {
						// GTE from below the range would pull in nulls
						localLookup = plan.LookupGT
					}
				}
				// scan every row matching the survived key prefix
				activeKeys--
				if localSort == plan.SortInvalid {
					localSort = plan.SortAsc
				}
				break
			}
			// out-of-range key under EQ or on a non-terminal column: the
			// outer row has no matches (left-outer padding still applies)
			keyError = true
			break
		}

		if !keyError {
			if err := e.scanInner(outerTuple, activeKeys, localLookup, localSort,
				endExpr, postExpr, numOuterCols, &match); err != nil {
				return err
			}
		}

		if !match && e.joinType == plan.JoinLeft {
			e.emitPadded(outerTuple, numOuterCols)
		}
	}
	return nil
}

// scanInner positions the index for one outer row and emits every match.
func (e *NestLoopIndexExecutor) scanInner(
	outerTuple *rel.Tuple,
	activeKeys int,
	localLookup plan.LookupType,
	localSort plan.SortDirection,
	endExpr, postExpr expr.Expression,
	numOuterCols int,
	match *bool,
) error {
	if activeKeys > 0 {
		switch localLookup {
		case plan.LookupEQ:
			e.index.MoveToKey(e.keyBuf, activeKeys)
		case plan.LookupGT:
			e.index.MoveToGreaterThanKey(e.keyBuf, activeKeys)
		case plan.LookupGTE:
			e.index.MoveToKeyOrGreater(e.keyBuf, activeKeys)
		default:
			// LT/LTE reaches an index scan only through a planner bug
			return errors.AssertionFailedf("unsupported lookup type %s at scan entry", localLookup)
		}
	} else {
		e.index.MoveToEnd(localSort != plan.SortDesc)
	}

	for {
		var innerTuple *rel.Tuple
		if localLookup == plan.LookupEQ && activeKeys > 0 {
			innerTuple = e.index.NextValueAtKey()
		} else {
			innerTuple = e.index.NextValue()
		}
		if innerTuple == nil {
			return nil
		}
		*match = true
		if e.opts.EnableDebugLogging {
			fmt.Printf("[NestLoopIndex] inner tuple: %s\n", innerTuple)
		}

		if endExpr != nil {
			v, err := endExpr.Eval(outerTuple, innerTuple)
			if err != nil {
				return fmt.Errorf("end expression: %w", err)
			}
			if v.IsFalse() {
				return nil
			}
		}
		if postExpr != nil {
			v, err := postExpr.Eval(outerTuple, innerTuple)
			if err != nil {
				return fmt.Errorf("post expression: %w", err)
			}
			if !v.IsTrue() {
				continue
			}
		}

		// outer columns pass through unmangled; inner columns are projected
		// from the raw index row, addressed as the first expression input
		joinTuple := e.output.TempTuple()
		for col := 0; col < numOuterCols; col++ {
			joinTuple.Set(col, outerTuple.Value(col))
		}
		for col, proj := range e.outputExprs {
			v, err := proj.Eval(innerTuple, nil)
			if err != nil {
				return fmt.Errorf("output expression %d: %w", col, err)
			}
			if err := joinTuple.SetTyped(numOuterCols+col, v); err != nil {
				return fmt.Errorf("output expression %d: %w", col, err)
			}
		}
		e.output.InsertTemp()
		if e.opts.EnableDebugLogging {
			fmt.Printf("[NestLoopIndex] match: %s\n", joinTuple)
		}
	}
}

// emitPadded writes the left-outer fallback row: outer columns copied fresh,
// every inner position an explicit NULL with no dependence on prior buffer
// contents.
func (e *NestLoopIndexExecutor) emitPadded(outerTuple *rel.Tuple, numOuterCols int) {
	joinTuple := e.output.TempTuple()
	for col := 0; col < numOuterCols; col++ {
		joinTuple.Set(col, outerTuple.Value(col))
	}
	for col := numOuterCols; col < joinTuple.Len(); col++ {
		joinTuple.Set(col, rel.NullValue(joinTuple.Schema().Column(col).Type))
	}
	e.output.InsertTemp()
	if e.opts.EnableDebugLogging {
		fmt.Printf("[NestLoopIndex] left outer pad: %s\n", joinTuple)
	}
}
