package toyquery_test

import (
	"sort"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	toyquery "github.com/dr0pdb/toyquery"
	"github.com/dr0pdb/toyquery/internal/columnar"
	"github.com/dr0pdb/toyquery/internal/dataframe"
	"github.com/dr0pdb/toyquery/internal/errs"
	"github.com/dr0pdb/toyquery/internal/logical"
	"github.com/dr0pdb/toyquery/internal/optimizer"
	"github.com/dr0pdb/toyquery/internal/sql/parser"
	"github.com/dr0pdb/toyquery/internal/sql/planner"
)

// seedCatalog builds the 7-row {id:int64, name:utf8, age:int64,
// frequency:float64} table spec.md's scenario tests (S1-S9) are seeded
// with, registered under the table name "t".
func seedCatalog(t *testing.T) dataframe.Catalog {
	t.Helper()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: columnar.Int64},
		{Name: "name", Type: columnar.Utf8},
		{Name: "age", Type: columnar.Int64},
		{Name: "frequency", Type: columnar.Float64},
	}, nil)

	idB := array.NewInt64Builder(columnar.Allocator)
	nameB := array.NewStringBuilder(columnar.Allocator)
	ageB := array.NewInt64Builder(columnar.Allocator)
	freqB := array.NewFloat64Builder(columnar.Allocator)
	defer idB.Release()
	defer nameB.Release()
	defer ageB.Release()
	defer freqB.Release()

	idB.AppendValues([]int64{1, 2, 3, 4, 5, 6, 7}, nil)
	nameB.AppendValues([]string{"r1", "r2", "r3", "r4", "r5", "r6", "r7"}, nil)
	ageB.AppendValues([]int64{1, 2, 3, 44, 55, 66, 77}, nil)
	freqB.AppendValues([]float64{1.1, 2.2, 3.3, 4.4, 5.5, 6.6, 7.7}, nil)

	rec := array.NewRecord(schema, []arrow.Array{
		idB.NewArray(), nameB.NewArray(), ageB.NewArray(), freqB.NewArray(),
	}, 7)

	ctx := dataframe.NewExecutionContext()
	_, err := ctx.RegisterTable("t", schema, []arrow.Record{rec})
	require.NoError(t, err)
	return ctx.Catalog
}

func TestScenarioS1ScanFull(t *testing.T) {
	catalog := seedCatalog(t)
	rec, err := toyquery.Execute("SELECT * FROM t", catalog)
	require.NoError(t, err)
	defer rec.Release()

	assert.EqualValues(t, 7, rec.NumRows())
	assert.Equal(t, 4, len(rec.Schema().Fields()))
}

func TestScenarioS2ScanProjection(t *testing.T) {
	catalog := seedCatalog(t)
	rec, err := toyquery.Execute("SELECT id, name FROM t", catalog)
	require.NoError(t, err)
	defer rec.Release()

	names := fieldNames(rec.Schema())
	assert.Equal(t, []string{"id", "name"}, names)
	assert.EqualValues(t, 7, rec.NumRows())
}

func TestScenarioS3LiteralEvaluation(t *testing.T) {
	catalog := seedCatalog(t)
	rec, err := toyquery.Execute("SELECT 42 FROM t", catalog)
	require.NoError(t, err)
	defer rec.Release()

	assert.EqualValues(t, 7, rec.NumRows())
	col := rec.Column(0).(*array.Int64)
	for i := 0; i < col.Len(); i++ {
		assert.Equal(t, int64(42), col.Value(i))
	}
}

func TestScenarioS4Filter(t *testing.T) {
	catalog := seedCatalog(t)
	rec, err := toyquery.Execute("SELECT id FROM t WHERE age > 10", catalog)
	require.NoError(t, err)
	defer rec.Release()

	col := rec.Column(0).(*array.Int64)
	var got []int64
	for i := 0; i < col.Len(); i++ {
		got = append(got, col.Value(i))
	}
	assert.Equal(t, []int64{4, 5, 6, 7}, got)
}

func TestScenarioS5AggregateNoGroup(t *testing.T) {
	catalog := seedCatalog(t)
	rec, err := toyquery.Execute("SELECT MIN(age), MAX(age), SUM(age) FROM t", catalog)
	require.NoError(t, err)
	defer rec.Release()

	require.EqualValues(t, 1, rec.NumRows())
	assert.Equal(t, int64(1), rec.Column(0).(*array.Int64).Value(0))
	assert.Equal(t, int64(77), rec.Column(1).(*array.Int64).Value(0))
	assert.Equal(t, int64(248), rec.Column(2).(*array.Int64).Value(0))
}

func TestScenarioS6GroupBy(t *testing.T) {
	catalog := seedCatalog(t)
	rec, err := toyquery.Execute("SELECT id, SUM(age) FROM t GROUP BY id", catalog)
	require.NoError(t, err)
	defer rec.Release()

	assert.EqualValues(t, 7, rec.NumRows())
}

func TestScenarioS7TypeError(t *testing.T) {
	catalog := seedCatalog(t)
	_, err := toyquery.Execute(`SELECT 1 = "x" FROM t`, catalog)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.TypeMismatch))
}

func TestScenarioS8UnknownColumn(t *testing.T) {
	catalog := seedCatalog(t)
	_, err := toyquery.Execute("SELECT missing FROM t", catalog)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.NotFound))
}

func TestScenarioS9OptimizerPushesProjectionIntoScan(t *testing.T) {
	catalog := seedCatalog(t)
	sel, err := parser.ParseSelect("SELECT id, name FROM t")
	require.NoError(t, err)

	lp, err := planner.Plan(sel, catalog)
	require.NoError(t, err)

	optimized, err := optimizer.New().Optimize(lp)
	require.NoError(t, err)

	scan := findScan(t, optimized)
	got := append([]string(nil), scan.Projection...)
	sort.Strings(got)
	assert.Equal(t, []string{"id", "name"}, got)
}

func findScan(t *testing.T, plan logical.Plan) *logical.Scan {
	t.Helper()
	for {
		if scan, ok := plan.(*logical.Scan); ok {
			return scan
		}
		children := plan.Children()
		require.NotEmpty(t, children, "no Scan found in plan tree")
		plan = children[0]
	}
}

func fieldNames(schema *arrow.Schema) []string {
	names := make([]string, len(schema.Fields()))
	for i, f := range schema.Fields() {
		names[i] = f.Name
	}
	return names
}

// TestOptimizedPlanMatchesUnoptimizedForScenarioQueries is a small
// property-style check (spec.md §8's closing paragraph): every S1-S6 query
// executes, and its optimized logical plan has the same field count and
// field types as the unoptimized one.
func TestOptimizedPlanMatchesUnoptimizedForScenarioQueries(t *testing.T) {
	queries := []string{
		"SELECT * FROM t",
		"SELECT id, name FROM t",
		"SELECT 42 FROM t",
		"SELECT id FROM t WHERE age > 10",
		"SELECT MIN(age), MAX(age), SUM(age) FROM t",
		"SELECT id, SUM(age) FROM t GROUP BY id",
	}

	for _, q := range queries {
		catalog := seedCatalog(t)
		rec, err := toyquery.Execute(q, catalog)
		require.NoError(t, err, q)

		sel, err := parser.ParseSelect(q)
		require.NoError(t, err, q)
		lp, err := planner.Plan(sel, catalog)
		require.NoError(t, err, q)

		optimized, err := optimizer.New().Optimize(lp)
		require.NoError(t, err, q)
		optimizedSchema, err := optimized.Schema()
		require.NoError(t, err, q)
		unoptimizedSchema, err := lp.Schema()
		require.NoError(t, err, q)

		assert.Equal(t, len(unoptimizedSchema.Fields()), len(optimizedSchema.Fields()), q)
		for i := range unoptimizedSchema.Fields() {
			assert.Equal(t, unoptimizedSchema.Field(i).Type, optimizedSchema.Field(i).Type, q)
		}
		rec.Release()
	}
}
