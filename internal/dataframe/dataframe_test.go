package dataframe

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dr0pdb/toyquery/internal/columnar"
	"github.com/dr0pdb/toyquery/internal/errs"
	"github.com/dr0pdb/toyquery/internal/logical"
)

func employeesRecord(t *testing.T) (*arrow.Schema, arrow.Record) {
	t.Helper()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: columnar.Int64},
		{Name: "dept", Type: columnar.Utf8},
		{Name: "salary", Type: columnar.Float64},
	}, nil)

	idB := array.NewInt64Builder(columnar.Allocator)
	deptB := array.NewStringBuilder(columnar.Allocator)
	salB := array.NewFloat64Builder(columnar.Allocator)
	defer idB.Release()
	defer deptB.Release()
	defer salB.Release()

	idB.AppendValues([]int64{1, 2, 3}, nil)
	deptB.AppendValues([]string{"eng", "eng", "sales"}, nil)
	salB.AppendValues([]float64{100, 200, 50}, nil)

	rec := array.NewRecord(schema, []arrow.Array{idB.NewArray(), deptB.NewArray(), salB.NewArray()}, 3)
	return schema, rec
}

func TestRegisterTableAndSqlScan(t *testing.T) {
	ctx := NewExecutionContext()
	schema, rec := employeesRecord(t)
	defer rec.Release()
	_, err := ctx.RegisterTable("employees", schema, []arrow.Record{rec})
	require.NoError(t, err)

	plan, err := ctx.Sql("SELECT id, dept FROM employees")
	require.NoError(t, err)

	batch, err := plan.Next()
	require.NoError(t, err)
	defer batch.Release()
	assert.EqualValues(t, 2, batch.NumCols())
	assert.EqualValues(t, 3, batch.NumRows())
}

func TestSqlAggregateGroupBy(t *testing.T) {
	ctx := NewExecutionContext()
	schema, rec := employeesRecord(t)
	defer rec.Release()
	_, err := ctx.RegisterTable("employees", schema, []arrow.Record{rec})
	require.NoError(t, err)

	plan, err := ctx.Sql("SELECT dept, SUM(salary) FROM employees GROUP BY dept")
	require.NoError(t, err)

	batch, err := plan.Next()
	require.NoError(t, err)
	defer batch.Release()
	assert.EqualValues(t, 2, batch.NumRows())
}

func TestSqlUnknownTableIsNotFound(t *testing.T) {
	ctx := NewExecutionContext()
	_, err := ctx.Sql("SELECT * FROM ghost")
	assert.Error(t, err)
	assert.True(t, errs.Is(err, errs.NotFound))
}

func TestDataFrameProjectFilterBuildersComposeSchema(t *testing.T) {
	ctx := NewExecutionContext()
	schema, rec := employeesRecord(t)
	defer rec.Release()
	df, err := ctx.RegisterTable("employees", schema, []arrow.Record{rec})
	require.NoError(t, err)

	filtered := df.Filter(logical.NewGt(&logical.Column{Name: "salary"}, &logical.LiteralDouble{Value: 60}))
	projected := filtered.Project([]logical.Expr{&logical.Column{Name: "dept"}})

	outSchema, err := projected.Schema()
	require.NoError(t, err)
	assert.Equal(t, 1, len(outSchema.Fields()))
	assert.Equal(t, "dept", outSchema.Field(0).Name)
}
