package physical

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/dr0pdb/toyquery/internal/columnar"
	"github.com/dr0pdb/toyquery/internal/errs"
	"github.com/dr0pdb/toyquery/internal/logical"
)

// ErrEOF is returned by Plan.Next once a plan is exhausted. It is the same
// sentinel the columnar adapter uses, unifying end-of-stream across the
// whole pull chain (spec.md §9 Open Question #6).
var ErrEOF = columnar.ErrEOF

// Plan is the common interface every physical plan node implements:
// prepare once, then pull record batches until ErrEOF. Not safe for
// concurrent use by more than one goroutine.
type Plan interface {
	fmt.Stringer
	// Prepare performs one-shot setup (opening readers, etc). Calling it
	// more than once, or calling it after Next has produced rows, is
	// undefined per spec.md §5.
	Prepare() error
	// Next returns the next batch, or ErrEOF once exhausted.
	Next() (arrow.Record, error)
	// Schema returns the plan's fixed output schema.
	Schema() *arrow.Schema
}

// Scan reads batches from a logical.Source, already restricted to
// Projection by the time it reaches the physical layer.
type Scan struct {
	source     logical.Source
	projection []string
	schema     *arrow.Schema
	reader     columnar.RecordReader
}

// NewScan returns a Scan over source restricted to projection, resolving
// its output schema up front.
func NewScan(source logical.Source, projection []string) (*Scan, error) {
	schema, err := columnar.FilterSchema(source.Schema(), projection)
	if err != nil {
		return nil, err
	}
	return &Scan{source: source, projection: projection, schema: schema}, nil
}

func (p *Scan) String() string { return fmt.Sprintf("PhScan(%v)", p.projection) }
func (p *Scan) Schema() *arrow.Schema { return p.schema }

func (p *Scan) Prepare() error {
	reader, err := p.source.Open(p.projection)
	if err != nil {
		return err
	}
	p.reader = reader
	return nil
}

func (p *Scan) Next() (arrow.Record, error) {
	return p.reader.Next()
}

// Projection evaluates Exprs against each batch pulled from Input.
type Projection struct {
	Input  Plan
	Exprs  []Expr
	schema *arrow.Schema
}

// NewProjection returns a Projection node with its output schema fixed at
// construction time (schema is supplied by the query planner, which
// already resolved it from the logical plan).
func NewProjection(input Plan, exprs []Expr, schema *arrow.Schema) *Projection {
	return &Projection{Input: input, Exprs: exprs, schema: schema}
}

func (p *Projection) String() string { return fmt.Sprintf("PhProjection(%d exprs)", len(p.Exprs)) }
func (p *Projection) Schema() *arrow.Schema { return p.schema }
func (p *Projection) Prepare() error        { return p.Input.Prepare() }

func (p *Projection) Next() (arrow.Record, error) {
	batch, err := p.Input.Next()
	if err != nil {
		return nil, err
	}
	defer batch.Release()

	cols := make([]arrow.Array, len(p.Exprs))
	for i, e := range p.Exprs {
		arr, err := e.Evaluate(batch)
		if err != nil {
			return nil, err
		}
		cols[i] = arr
	}
	if len(cols) != len(p.schema.Fields()) {
		return nil, errs.New(errs.Internal, "physical:Projection", "expression count does not match schema field count")
	}
	return array.NewRecord(p.schema, cols, batch.NumRows()), nil
}

// Selection filters rows pulled from Input by Filter.
type Selection struct {
	Input  Plan
	Filter Expr
}

func (p *Selection) String() string { return fmt.Sprintf("PhSelection(%s)", p.Filter) }
func (p *Selection) Schema() *arrow.Schema { return p.Input.Schema() }
func (p *Selection) Prepare() error        { return p.Input.Prepare() }

func (p *Selection) Next() (arrow.Record, error) {
	batch, err := p.Input.Next()
	if err != nil {
		return nil, err
	}
	defer batch.Release()

	mask, err := p.Filter.Evaluate(batch)
	if err != nil {
		return nil, err
	}
	defer mask.Release()

	boolMask, ok := mask.(*array.Boolean)
	if !ok {
		return nil, errs.New(errs.Internal, "physical:Selection", "filter expression did not evaluate to a boolean array")
	}

	keep := make([]int, 0, boolMask.Len())
	for i := 0; i < boolMask.Len(); i++ {
		if !boolMask.IsNull(i) && boolMask.Value(i) {
			keep = append(keep, i)
		}
	}

	schema := batch.Schema()
	cols := make([]arrow.Array, batch.NumCols())
	for c := 0; c < int(batch.NumCols()); c++ {
		filtered, err := filterColumn(batch.Column(c), keep)
		if err != nil {
			return nil, err
		}
		cols[c] = filtered
	}
	return array.NewRecord(schema, cols, int64(len(keep))), nil
}

func filterColumn(arr arrow.Array, keep []int) (arrow.Array, error) {
	values := make([]columnar.Scalar, len(keep))
	for i, rowIdx := range keep {
		s, err := columnar.ScalarAt(arr, rowIdx)
		if err != nil {
			return nil, err
		}
		values[i] = s
	}
	return columnar.BuildArray(arr.DataType(), values)
}
