package planner

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dr0pdb/toyquery/internal/columnar"
	"github.com/dr0pdb/toyquery/internal/errs"
	"github.com/dr0pdb/toyquery/internal/logical"
	"github.com/dr0pdb/toyquery/internal/sql/parser"
)

type fakeSource struct {
	schema *arrow.Schema
}

func (s *fakeSource) Schema() *arrow.Schema { return s.schema }
func (s *fakeSource) Open(projection []string) (columnar.RecordReader, error) {
	return nil, errs.New(errs.Unimplemented, "fakeSource", "not needed for planner tests")
}

type fakeCatalog map[string]logical.Source

func (c fakeCatalog) Resolve(name string) (logical.Source, error) {
	src, ok := c[name]
	if !ok {
		return nil, errs.New(errs.NotFound, "catalog", "unknown table "+name)
	}
	return src, nil
}

func testCatalog() fakeCatalog {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: columnar.Int64},
		{Name: "dept", Type: columnar.Utf8},
		{Name: "salary", Type: columnar.Float64},
	}, nil)
	return fakeCatalog{"emp": &fakeSource{schema: schema}}
}

func TestPlanProjectionOnly(t *testing.T) {
	sel, err := parser.ParseSelect(`SELECT id, dept FROM emp`)
	require.NoError(t, err)

	plan, err := Plan(sel, testCatalog())
	require.NoError(t, err)

	proj, ok := plan.(*logical.Projection)
	require.True(t, ok)
	require.Len(t, proj.Exprs, 2)

	schema, err := plan.Schema()
	require.NoError(t, err)
	assert.Equal(t, "id", schema.Field(0).Name)
	assert.Equal(t, "dept", schema.Field(1).Name)
}

func TestPlanPushesReferencedColumnsIntoScan(t *testing.T) {
	sel, err := parser.ParseSelect(`SELECT id FROM emp WHERE salary > 1000`)
	require.NoError(t, err)

	plan, err := Plan(sel, testCatalog())
	require.NoError(t, err)

	sel2, ok := plan.(*logical.Projection)
	require.True(t, ok)
	where, ok := sel2.Input.(*logical.Selection)
	require.True(t, ok)
	scan, ok := where.Input.(*logical.Scan)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"id", "salary"}, scan.Projection)
}

func TestPlanGroupByWithAggregate(t *testing.T) {
	sel, err := parser.ParseSelect(`SELECT dept, SUM(salary) FROM emp GROUP BY dept`)
	require.NoError(t, err)

	plan, err := Plan(sel, testCatalog())
	require.NoError(t, err)

	agg, ok := plan.(*logical.Aggregation)
	require.True(t, ok)
	require.Len(t, agg.GroupBy, 1)
	require.Len(t, agg.Aggregates, 1)

	schema, err := plan.Schema()
	require.NoError(t, err)
	assert.Equal(t, "dept", schema.Field(0).Name)
}

func TestPlanGroupByWithoutAggregateIsError(t *testing.T) {
	sel, err := parser.ParseSelect(`SELECT dept FROM emp GROUP BY dept`)
	require.NoError(t, err)

	_, err = Plan(sel, testCatalog())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.InvalidInput))
}

func TestPlanUnknownTableIsNotFound(t *testing.T) {
	sel, err := parser.ParseSelect(`SELECT id FROM ghost`)
	require.NoError(t, err)

	_, err = Plan(sel, testCatalog())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.NotFound))
}

func TestPlanOrderByIsUnimplemented(t *testing.T) {
	sel, err := parser.ParseSelect(`SELECT id FROM emp ORDER BY id`)
	require.NoError(t, err)

	_, err = Plan(sel, testCatalog())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Unimplemented))
}

func TestPlanCastLowersToLogicalCast(t *testing.T) {
	sel, err := parser.ParseSelect(`SELECT CAST(id AS STRING) FROM emp`)
	require.NoError(t, err)

	plan, err := Plan(sel, testCatalog())
	require.NoError(t, err)

	schema, err := plan.Schema()
	require.NoError(t, err)
	assert.True(t, arrow.TypeEqual(schema.Field(0).Type, columnar.Utf8))
}
