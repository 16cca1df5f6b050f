package logical

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dr0pdb/toyquery/internal/columnar"
	"github.com/dr0pdb/toyquery/internal/errs"
)

type fakeSource struct {
	schema *arrow.Schema
}

func (s *fakeSource) Schema() *arrow.Schema { return s.schema }
func (s *fakeSource) Open(projection []string) (columnar.RecordReader, error) {
	return nil, errs.New(errs.Unimplemented, "fakeSource", "not needed for logical tests")
}

func testSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: columnar.Int64},
		{Name: "name", Type: columnar.Utf8},
		{Name: "balance", Type: columnar.Float64},
	}, nil)
}

func testScan() *Scan {
	return &Scan{Source: &fakeSource{schema: testSchema()}}
}

func TestScanSchemaNoProjection(t *testing.T) {
	schema, err := testScan().Schema()
	require.NoError(t, err)
	assert.Equal(t, 3, len(schema.Fields()))
}

func TestScanSchemaWithProjectionPreservesSourceOrder(t *testing.T) {
	scan := &Scan{Source: &fakeSource{schema: testSchema()}, Projection: []string{"name", "id"}}
	schema, err := scan.Schema()
	require.NoError(t, err)
	require.Len(t, schema.Fields(), 2)
	assert.Equal(t, "id", schema.Field(0).Name)
	assert.Equal(t, "name", schema.Field(1).Name)
}

func TestScanSchemaUnknownColumnIsInvalidInput(t *testing.T) {
	scan := &Scan{Source: &fakeSource{schema: testSchema()}, Projection: []string{"nope"}}
	_, err := scan.Schema()
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.InvalidInput))
}

func TestColumnToFieldMissingIsNotFound(t *testing.T) {
	_, err := (&Column{Name: "nope"}).ToField(testScan())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.NotFound))
}

func TestColumnIndexOutOfRange(t *testing.T) {
	_, err := (&ColumnIndex{Index: 99}).ToField(testScan())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.OutOfRange))
}

func TestMathBinaryTypeMismatch(t *testing.T) {
	expr := NewAdd(&Column{Name: "id"}, &Column{Name: "name"})
	_, err := expr.ToField(testScan())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.TypeMismatch))
}

func TestMathBinaryResultTypeIsLeftOperand(t *testing.T) {
	expr := NewAdd(&Column{Name: "id"}, &LiteralLong{Value: 1})
	f, err := expr.ToField(testScan())
	require.NoError(t, err)
	assert.True(t, arrow.TypeEqual(f.Type, columnar.Int64))
}

func TestComparisonIsAlwaysBoolean(t *testing.T) {
	expr := NewGt(&Column{Name: "balance"}, &LiteralDouble{Value: 1.5})
	f, err := expr.ToField(testScan())
	require.NoError(t, err)
	assert.True(t, arrow.TypeEqual(f.Type, columnar.Boolean))
}

func TestAliasRenamesField(t *testing.T) {
	expr := &Alias{Expr: &Column{Name: "id"}, Name: "the_id"}
	f, err := expr.ToField(testScan())
	require.NoError(t, err)
	assert.Equal(t, "the_id", f.Name)
	assert.True(t, arrow.TypeEqual(f.Type, columnar.Int64))
}

func TestCastUsesDeclaredType(t *testing.T) {
	expr := &Cast{Expr: &Column{Name: "id"}, DataType: columnar.Utf8}
	f, err := expr.ToField(testScan())
	require.NoError(t, err)
	assert.True(t, arrow.TypeEqual(f.Type, columnar.Utf8))
}

func TestCountIsAlwaysInt64(t *testing.T) {
	expr := NewCount(&Column{Name: "name"})
	f, err := expr.ToField(testScan())
	require.NoError(t, err)
	assert.True(t, arrow.TypeEqual(f.Type, columnar.Int64))
}

func TestSumTakesInnerExprType(t *testing.T) {
	expr := NewSum(&Column{Name: "balance"})
	f, err := expr.ToField(testScan())
	require.NoError(t, err)
	assert.True(t, arrow.TypeEqual(f.Type, columnar.Float64))
}

func TestSelectionRequiresBooleanFilter(t *testing.T) {
	sel := &Selection{Input: testScan(), Filter: &Column{Name: "id"}}
	_, err := sel.Schema()
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.TypeMismatch))
}

func TestSelectionSchemaUnchanged(t *testing.T) {
	sel := &Selection{Input: testScan(), Filter: NewGt(&Column{Name: "id"}, &LiteralLong{Value: 0})}
	schema, err := sel.Schema()
	require.NoError(t, err)
	assert.Equal(t, 3, len(schema.Fields()))
}

func TestProjectionSchemaOrder(t *testing.T) {
	proj := &Projection{Input: testScan(), Exprs: []Expr{&Column{Name: "name"}, &Column{Name: "id"}}}
	schema, err := proj.Schema()
	require.NoError(t, err)
	require.Len(t, schema.Fields(), 2)
	assert.Equal(t, "name", schema.Field(0).Name)
	assert.Equal(t, "id", schema.Field(1).Name)
}

func TestAggregationSchemaConcatenatesGroupsThenAggregates(t *testing.T) {
	agg := &Aggregation{
		Input:      testScan(),
		GroupBy:    []Expr{&Column{Name: "name"}},
		Aggregates: []Expr{NewSum(&Column{Name: "balance"}), NewCount(&Column{Name: "id"})},
	}
	schema, err := agg.Schema()
	require.NoError(t, err)
	require.Len(t, schema.Fields(), 3)
	assert.Equal(t, "name", schema.Field(0).Name)
	assert.True(t, arrow.TypeEqual(schema.Field(1).Type, columnar.Float64))
	assert.True(t, arrow.TypeEqual(schema.Field(2).Type, columnar.Int64))
}

func TestColumnReferencesCollectsNamesAcrossExprTree(t *testing.T) {
	expr := NewAnd(
		NewGt(&Column{Name: "id"}, &LiteralLong{Value: 1}),
		&Alias{Expr: NewSum(&Column{Name: "balance"}), Name: "total"},
	)
	names, err := ColumnReferences(expr, testScan())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"id", "balance"}, dedupe(names))
}

func TestColumnReferencesResolvesColumnIndex(t *testing.T) {
	names, err := ColumnReferences(&ColumnIndex{Index: 1}, testScan())
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, names)
}

func TestContainsAggregate(t *testing.T) {
	assert.True(t, ContainsAggregate(&Alias{Expr: NewSum(&Column{Name: "id"}), Name: "s"}))
	assert.False(t, ContainsAggregate(&Column{Name: "id"}))
}
