package executor

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowmill/rowmill/rel"
	"github.com/rowmill/rowmill/rel/expr"
	"github.com/rowmill/rowmill/rel/plan"
	"github.com/rowmill/rowmill/rel/table"
)

// buildJoinFixture registers an outer table (id BIGINT, tag VARCHAR) and an
// indexed inner table (k BIGINT) with the given key values.
func buildJoinFixture(t *testing.T, innerKeys []int64) *table.Database {
	t.Helper()
	db := table.NewDatabase()

	outer := table.NewTable("outer", rel.NewSchema(
		rel.Column{Name: "id", Type: rel.BigInt},
		rel.Column{Name: "tag", Type: rel.Varchar},
	))
	for _, row := range []struct {
		id  int64
		tag string
	}{{1, "a"}, {2, "b"}, {4, "c"}} {
		require.NoError(t, outer.Insert(rel.NewBigInt(row.id), rel.NewVarchar(row.tag)))
	}

	inner := table.NewTable("inner", rel.NewSchema(
		rel.Column{Name: "k", Type: rel.BigInt},
	))
	_, err := inner.CreateIndex("inner_k", []int{0})
	require.NoError(t, err)
	for _, k := range innerKeys {
		require.NoError(t, inner.Insert(rel.NewBigInt(k)))
	}

	require.NoError(t, db.Register(outer))
	require.NoError(t, db.Register(inner))
	return db
}

func innerKeyProjection() ([]expr.Expression, *rel.Schema) {
	return []expr.Expression{expr.NewColumnValue(expr.Outer, 0)},
		rel.NewSchema(rel.Column{Name: "k", Type: rel.BigInt})
}

func simpleEQPlan(join plan.JoinType) *plan.NestLoopIndexNode {
	projection, outSchema := innerKeyProjection()
	return &plan.NestLoopIndexNode{
		Join:   join,
		Inputs: []string{"outer"},
		Inline: plan.IndexScanNode{
			TargetTable:  "inner",
			TargetIndex:  "inner_k",
			SearchKeys:   []expr.Expression{expr.NewColumnValue(expr.Outer, 0)},
			OutputExprs:  projection,
			OutputSchema: outSchema,
			Lookup:       plan.LookupEQ,
			SortDir:      plan.SortInvalid,
		},
	}
}

func runPlan(t *testing.T, db *table.Database, node *plan.NestLoopIndexNode, params []rel.Value) *table.TempTable {
	t.Helper()
	exec := NewNestLoopIndexExecutor(Options{})
	require.NoError(t, exec.Init(node, db))
	require.NoError(t, exec.Execute(params))
	return exec.Output()
}

func rowStrings(out *table.TempTable) []string {
	rows := make([]string, 0, out.Len())
	for i := 0; i < out.Len(); i++ {
		rows = append(rows, out.Row(i).String())
	}
	return rows
}

func TestEQInnerJoin(t *testing.T) {
	db := buildJoinFixture(t, []int64{1, 2, 3})
	out := runPlan(t, db, simpleEQPlan(plan.JoinInner), nil)
	assert.Equal(t, []string{"[1 a 1]", "[2 b 2]"}, rowStrings(out))
}

func TestEQLeftOuterJoin(t *testing.T) {
	db := buildJoinFixture(t, []int64{1, 2, 3})
	out := runPlan(t, db, simpleEQPlan(plan.JoinLeft), nil)
	assert.Equal(t, []string{"[1 a 1]", "[2 b 2]", "[4 c NULL]"}, rowStrings(out))
}

// Join row count with no filters: one output row per (outer, matching inner)
// pair, duplicates included.
func TestInnerJoinRowCount(t *testing.T) {
	db := buildJoinFixture(t, []int64{1, 1, 2, 2, 2, 9})
	out := runPlan(t, db, simpleEQPlan(plan.JoinInner), nil)
	// outer 1 matches twice, outer 2 three times, outer 4 never
	assert.Equal(t, 5, out.Len())
}

// Left-outer completeness: every outer tuple contributes at least one row.
func TestLeftOuterCompleteness(t *testing.T) {
	db := buildJoinFixture(t, []int64{2})
	out := runPlan(t, db, simpleEQPlan(plan.JoinLeft), nil)
	require.Equal(t, 3, out.Len())
	assert.Equal(t, []string{"[1 a NULL]", "[2 b 2]", "[4 c NULL]"}, rowStrings(out))
}

func TestGTELookupRange(t *testing.T) {
	db := buildJoinFixture(t, []int64{1, 2, 3})
	node := simpleEQPlan(plan.JoinInner)
	node.Inline.Lookup = plan.LookupGTE
	out := runPlan(t, db, node, nil)
	// 1 matches {1,2,3}, 2 matches {2,3}, 4 matches nothing
	assert.Equal(t, []string{"[1 a 1]", "[1 a 2]", "[1 a 3]", "[2 b 2]", "[2 b 3]"}, rowStrings(out))
}

func TestGTLookupRange(t *testing.T) {
	db := buildJoinFixture(t, []int64{1, 2, 3})
	node := simpleEQPlan(plan.JoinInner)
	node.Inline.Lookup = plan.LookupGT
	out := runPlan(t, db, node, nil)
	assert.Equal(t, []string{"[1 a 2]", "[1 a 3]", "[2 b 3]"}, rowStrings(out))
}

// End expression: once it evaluates false for the current outer tuple the
// inner scan stops, regardless of the post expression.
func TestEndExpressionStopsScan(t *testing.T) {
	db := buildJoinFixture(t, []int64{5, 8, 11, 12})

	outer := db.Table("outer")
	require.NoError(t, outer.DeleteAll())
	require.NoError(t, outer.Insert(rel.NewBigInt(0), rel.NewVarchar("z")))

	projection, outSchema := innerKeyProjection()
	node := &plan.NestLoopIndexNode{
		Join:   plan.JoinInner,
		Inputs: []string{"outer"},
		Inline: plan.IndexScanNode{
			TargetTable: "inner",
			TargetIndex: "inner_k",
			SearchKeys:  []expr.Expression{expr.NewColumnValue(expr.Outer, 0)},
			EndExpr: expr.NewComparison(expr.Le,
				expr.NewColumnValue(expr.Inner, 0), expr.NewConstant(rel.NewBigInt(10))),
			PostExpr:     expr.NewConstant(rel.NewBoolean(true)),
			OutputExprs:  projection,
			OutputSchema: outSchema,
			Lookup:       plan.LookupGT,
			SortDir:      plan.SortAsc,
		},
	}
	out := runPlan(t, db, node, nil)
	assert.Equal(t, []string{"[0 z 5]", "[0 z 8]"}, rowStrings(out))
}

func TestPostExpressionFilters(t *testing.T) {
	db := buildJoinFixture(t, []int64{1, 2, 3, 4, 5})

	outer := db.Table("outer")
	require.NoError(t, outer.DeleteAll())
	require.NoError(t, outer.Insert(rel.NewBigInt(0), rel.NewVarchar("z")))

	projection, outSchema := innerKeyProjection()
	node := &plan.NestLoopIndexNode{
		Join:   plan.JoinInner,
		Inputs: []string{"outer"},
		Inline: plan.IndexScanNode{
			TargetTable: "inner",
			TargetIndex: "inner_k",
			SearchKeys:  []expr.Expression{expr.NewColumnValue(expr.Outer, 0)},
			PostExpr: expr.NewComparison(expr.Eq,
				expr.NewConstant(rel.NewBigInt(0)),
				expr.NewConstant(rel.NewBigInt(0))),
			OutputExprs:  projection,
			OutputSchema: outSchema,
			Lookup:       plan.LookupGT,
			SortDir:      plan.SortAsc,
		},
	}
	// post expression is exercised with a column predicate below; the
	// constant-true form must keep every match
	out := runPlan(t, db, node, nil)
	assert.Equal(t, 5, out.Len())

	node.Inline.PostExpr = expr.NewComparison(expr.Ge,
		expr.NewColumnValue(expr.Inner, 0), expr.NewConstant(rel.NewBigInt(4)))
	out = runPlan(t, db, node, nil)
	assert.Equal(t, []string{"[0 z 4]", "[0 z 5]"}, rowStrings(out))
}

func TestParameterizedSearchKey(t *testing.T) {
	db := buildJoinFixture(t, []int64{1, 2, 3})
	node := simpleEQPlan(plan.JoinInner)
	node.Inline.SearchKeys = []expr.Expression{expr.NewParameter(0)}
	out := runPlan(t, db, node, []rel.Value{rel.NewBigInt(2)})
	// every outer row probes with the same bound key
	assert.Equal(t, []string{"[1 a 2]", "[2 b 2]", "[4 c 2]"}, rowStrings(out))
}

func TestZeroSearchKeysScansWholeIndex(t *testing.T) {
	db := buildJoinFixture(t, []int64{3, 1, 2})

	outer := db.Table("outer")
	require.NoError(t, outer.DeleteAll())
	require.NoError(t, outer.Insert(rel.NewBigInt(0), rel.NewVarchar("z")))

	projection, outSchema := innerKeyProjection()
	node := &plan.NestLoopIndexNode{
		Join:   plan.JoinInner,
		Inputs: []string{"outer"},
		Inline: plan.IndexScanNode{
			TargetTable:  "inner",
			TargetIndex:  "inner_k",
			OutputExprs:  projection,
			OutputSchema: outSchema,
			Lookup:       plan.LookupInvalid,
			SortDir:      plan.SortAsc,
		},
	}
	out := runPlan(t, db, node, nil)
	assert.Equal(t, []string{"[0 z 1]", "[0 z 2]", "[0 z 3]"}, rowStrings(out))

	node.Inline.SortDir = plan.SortDesc
	out = runPlan(t, db, node, nil)
	assert.Equal(t, []string{"[0 z 3]", "[0 z 2]", "[0 z 1]"}, rowStrings(out))
}

func TestMissingIndexIsRecoverable(t *testing.T) {
	db := buildJoinFixture(t, []int64{1})
	node := simpleEQPlan(plan.JoinInner)
	node.Inline.TargetIndex = "no_such_index"

	exec := NewNestLoopIndexExecutor(Options{})
	err := exec.Init(node, db)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidPlan))
	assert.False(t, errors.HasAssertionFailure(err))
}

func TestNilSearchKeyExpressionIsPlanError(t *testing.T) {
	db := buildJoinFixture(t, []int64{1})
	node := simpleEQPlan(plan.JoinInner)
	node.Inline.SearchKeys = []expr.Expression{nil}

	exec := NewNestLoopIndexExecutor(Options{})
	err := exec.Init(node, db)
	assert.True(t, errors.Is(err, ErrInvalidPlan))
}

func TestExactlyOneOuterInput(t *testing.T) {
	db := buildJoinFixture(t, []int64{1})
	node := simpleEQPlan(plan.JoinInner)
	node.Inputs = []string{"outer", "inner"}

	exec := NewNestLoopIndexExecutor(Options{})
	assert.True(t, errors.Is(exec.Init(node, db), ErrInvalidPlan))
}

func TestLTAtScanEntryIsFatal(t *testing.T) {
	db := buildJoinFixture(t, []int64{1, 2, 3})
	node := simpleEQPlan(plan.JoinInner)
	node.Inline.Lookup = plan.LookupLT

	exec := NewNestLoopIndexExecutor(Options{})
	require.NoError(t, exec.Init(node, db))
	err := exec.Execute(nil)
	require.Error(t, err)
	assert.True(t, errors.HasAssertionFailure(err))
}
