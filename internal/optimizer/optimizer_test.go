package optimizer

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dr0pdb/toyquery/internal/columnar"
	"github.com/dr0pdb/toyquery/internal/errs"
	"github.com/dr0pdb/toyquery/internal/logical"
)

type fakeSource struct {
	schema *arrow.Schema
}

func (s *fakeSource) Schema() *arrow.Schema { return s.schema }
func (s *fakeSource) Open(projection []string) (columnar.RecordReader, error) {
	return nil, errs.New(errs.Unimplemented, "fakeSource", "not needed for optimizer tests")
}

func testSource() *fakeSource {
	return &fakeSource{schema: arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: columnar.Int64},
		{Name: "dept", Type: columnar.Utf8},
		{Name: "salary", Type: columnar.Float64},
	}, nil)}
}

func TestProjectionPushDownRestrictsScan(t *testing.T) {
	scan := &logical.Scan{Source: testSource()}
	proj := &logical.Projection{
		Input: scan,
		Exprs: []logical.Expr{&logical.Column{Name: "dept"}},
	}

	optimized, err := ProjectionPushDown(proj)
	require.NoError(t, err)

	p := optimized.(*logical.Projection)
	s := p.Input.(*logical.Scan)
	assert.Equal(t, []string{"dept"}, s.Projection)
}

func TestProjectionPushDownThroughSelection(t *testing.T) {
	scan := &logical.Scan{Source: testSource()}
	sel := &logical.Selection{
		Input:  scan,
		Filter: logical.NewGt(&logical.Column{Name: "salary"}, &logical.LiteralDouble{Value: 0}),
	}
	proj := &logical.Projection{
		Input: sel,
		Exprs: []logical.Expr{&logical.Column{Name: "id"}},
	}

	optimized, err := ProjectionPushDown(proj)
	require.NoError(t, err)

	p := optimized.(*logical.Projection)
	s2 := p.Input.(*logical.Selection)
	scan2 := s2.Input.(*logical.Scan)
	assert.ElementsMatch(t, []string{"id", "salary"}, scan2.Projection)
	// schema-declared order: id, dept, salary
	assert.Equal(t, "id", scan2.Projection[0])
}

func TestProjectionPushDownThroughAggregation(t *testing.T) {
	scan := &logical.Scan{Source: testSource()}
	agg := &logical.Aggregation{
		Input:      scan,
		GroupBy:    []logical.Expr{&logical.Column{Name: "dept"}},
		Aggregates: []logical.Expr{logical.NewSum(&logical.Column{Name: "salary"})},
	}

	optimized, err := ProjectionPushDown(agg)
	require.NoError(t, err)

	a := optimized.(*logical.Aggregation)
	s := a.Input.(*logical.Scan)
	assert.ElementsMatch(t, []string{"dept", "salary"}, s.Projection)
}

func TestOptimizerRunsRegisteredRules(t *testing.T) {
	scan := &logical.Scan{Source: testSource()}
	proj := &logical.Projection{Input: scan, Exprs: []logical.Expr{&logical.Column{Name: "id"}}}

	opt := New()
	optimized, err := opt.Optimize(proj)
	require.NoError(t, err)

	p := optimized.(*logical.Projection)
	s := p.Input.(*logical.Scan)
	assert.Equal(t, []string{"id"}, s.Projection)
}
