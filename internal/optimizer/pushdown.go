package optimizer

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/dr0pdb/toyquery/internal/logical"
)

// ProjectionPushDown implements spec.md §4.5's sole optimizer rule: a
// top-down walk that accumulates the set of column names actually needed
// by everything above a Scan, then restricts that Scan's projection to
// exactly that set.
func ProjectionPushDown(plan logical.Plan) (logical.Plan, error) {
	return pushDown(plan, nil)
}

func pushDown(plan logical.Plan, needed []string) (logical.Plan, error) {
	switch p := plan.(type) {
	case *logical.Scan:
		projection := p.Projection
		if len(needed) > 0 {
			projection = intersectInOrder(p.Source.Schema(), needed)
		}
		return &logical.Scan{Source: p.Source, Projection: projection}, nil

	case *logical.Projection:
		refs, err := referencesOf(p.Exprs, p.Input)
		if err != nil {
			return nil, err
		}
		newInput, err := pushDown(p.Input, append(append([]string{}, needed...), refs...))
		if err != nil {
			return nil, err
		}
		return &logical.Projection{Input: newInput, Exprs: p.Exprs}, nil

	case *logical.Selection:
		refs, err := logical.ColumnReferences(p.Filter, p.Input)
		if err != nil {
			return nil, err
		}
		newInput, err := pushDown(p.Input, append(append([]string{}, needed...), refs...))
		if err != nil {
			return nil, err
		}
		return &logical.Selection{Input: newInput, Filter: p.Filter}, nil

	case *logical.Aggregation:
		var refs []string
		groupRefs, err := referencesOf(p.GroupBy, p.Input)
		if err != nil {
			return nil, err
		}
		refs = append(refs, groupRefs...)
		aggRefs, err := referencesOf(p.Aggregates, p.Input)
		if err != nil {
			return nil, err
		}
		refs = append(refs, aggRefs...)

		newInput, err := pushDown(p.Input, append(append([]string{}, needed...), refs...))
		if err != nil {
			return nil, err
		}
		return &logical.Aggregation{Input: newInput, GroupBy: p.GroupBy, Aggregates: p.Aggregates}, nil

	default:
		panic(fmt.Sprintf("optimizer: unhandled logical plan type %T", p))
	}
}

func referencesOf(exprs []logical.Expr, input logical.Plan) ([]string, error) {
	var names []string
	for _, e := range exprs {
		refs, err := logical.ColumnReferences(e, input)
		if err != nil {
			return nil, err
		}
		names = append(names, refs...)
	}
	return names, nil
}

func intersectInOrder(schema *arrow.Schema, needed []string) []string {
	wanted := make(map[string]bool, len(needed))
	for _, n := range needed {
		wanted[n] = true
	}
	var out []string
	for _, f := range schema.Fields() {
		if wanted[f.Name] {
			out = append(out, f.Name)
		}
	}
	return out
}
