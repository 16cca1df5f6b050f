package logical

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/dr0pdb/toyquery/internal/columnar"
	"github.com/dr0pdb/toyquery/internal/errs"
)

// Plan is the common interface every logical plan node implements. isPlan
// is unexported so Plan is a closed sum type: {Scan, Projection,
// Selection, Aggregation}.
type Plan interface {
	fmt.Stringer
	isPlan()
	// Schema returns the node's output schema, per spec.md §4.3's
	// per-node schema rules.
	Schema() (*arrow.Schema, error)
	// Children returns the node's direct inputs, nil for a leaf (Scan).
	Children() []Plan
}

// Source is a named, schema-bearing data source a Scan reads from. The
// SQL planner (C5) resolves SQL table names to a Source via the
// execution context's catalog (C10); the physical Scan calls Open in
// Prepare to build the reader.
type Source interface {
	Schema() *arrow.Schema
	Open(projection []string) (columnar.RecordReader, error)
}

// Scan reads Source, optionally restricted to Projection column names.
type Scan struct {
	Source     Source
	Projection []string
}

func (*Scan) isPlan() {}
func (p *Scan) Children() []Plan { return nil }
func (p *Scan) String() string {
	if len(p.Projection) == 0 {
		return "Scan"
	}
	return fmt.Sprintf("Scan(%v)", p.Projection)
}
func (p *Scan) Schema() (*arrow.Schema, error) {
	schema, err := columnar.FilterSchema(p.Source.Schema(), p.Projection)
	if err != nil {
		if errs.Is(err, errs.NotFound) {
			return nil, errs.Wrap(errs.InvalidInput, "logical:Scan", "projected column not found in source", err)
		}
		return nil, err
	}
	return schema, nil
}

// Projection evaluates Exprs against Input, producing one output field per
// expression.
type Projection struct {
	Input Plan
	Exprs []Expr
}

func (*Projection) isPlan() {}
func (p *Projection) Children() []Plan { return []Plan{p.Input} }
func (p *Projection) String() string {
	return fmt.Sprintf("Projection(%s)", exprString(p.Exprs))
}
func (p *Projection) Schema() (*arrow.Schema, error) {
	fields := make([]arrow.Field, len(p.Exprs))
	for i, e := range p.Exprs {
		f, err := e.ToField(p.Input)
		if err != nil {
			return nil, err
		}
		fields[i] = f
	}
	return arrow.NewSchema(fields, nil), nil
}

// Selection filters Input's rows by Filter, which must evaluate to a
// boolean field.
type Selection struct {
	Input  Plan
	Filter Expr
}

func (*Selection) isPlan() {}
func (p *Selection) Children() []Plan { return []Plan{p.Input} }
func (p *Selection) String() string {
	return fmt.Sprintf("Selection(%s)", p.Filter)
}
func (p *Selection) Schema() (*arrow.Schema, error) {
	f, err := p.Filter.ToField(p.Input)
	if err != nil {
		return nil, err
	}
	if !arrow.TypeEqual(f.Type, columnar.Boolean) {
		return nil, errs.New(errs.TypeMismatch, "logical:Selection", "filter expression must be boolean")
	}
	return p.Input.Schema()
}

// Aggregation groups Input's rows by GroupBy and computes Aggregates per
// group; its schema is the concatenation of group fields then aggregate
// fields.
type Aggregation struct {
	Input      Plan
	GroupBy    []Expr
	Aggregates []Expr
}

func (*Aggregation) isPlan() {}
func (p *Aggregation) Children() []Plan { return []Plan{p.Input} }
func (p *Aggregation) String() string {
	return fmt.Sprintf("Aggregation(groupBy=[%s], aggs=[%s])", exprString(p.GroupBy), exprString(p.Aggregates))
}
func (p *Aggregation) Schema() (*arrow.Schema, error) {
	fields := make([]arrow.Field, 0, len(p.GroupBy)+len(p.Aggregates))
	for _, e := range p.GroupBy {
		f, err := e.ToField(p.Input)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	for _, e := range p.Aggregates {
		f, err := e.ToField(p.Input)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return arrow.NewSchema(fields, nil), nil
}
