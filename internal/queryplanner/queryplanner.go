// Package queryplanner lowers an optimized logical.Plan to a physical.Plan
// (C8), bottom-up, per spec.md §4.7's lowering table. It is grounded on
// original_source/src/queryplanner/queryplanner.cc for the
// plan()/expr()/agg_expr() three-function split.
package queryplanner

import (
	"fmt"

	"github.com/dr0pdb/toyquery/internal/columnar"
	"github.com/dr0pdb/toyquery/internal/errs"
	"github.com/dr0pdb/toyquery/internal/logical"
	"github.com/dr0pdb/toyquery/internal/physical"
)

// Plan lowers lp to a prepared-but-not-yet-Prepare()d physical.Plan.
func Plan(lp logical.Plan) (physical.Plan, error) {
	switch p := lp.(type) {
	case *logical.Scan:
		return physical.NewScan(p.Source, p.Projection)

	case *logical.Selection:
		input, err := Plan(p.Input)
		if err != nil {
			return nil, err
		}
		filter, err := expr(p.Filter, p.Input)
		if err != nil {
			return nil, err
		}
		return &physical.Selection{Input: input, Filter: filter}, nil

	case *logical.Projection:
		input, err := Plan(p.Input)
		if err != nil {
			return nil, err
		}
		// Resolving the schema first applies the logical to_field rules, so
		// an unknown column surfaces as NotFound before lowering.
		schema, err := p.Schema()
		if err != nil {
			return nil, err
		}
		exprs := make([]physical.Expr, len(p.Exprs))
		for i, e := range p.Exprs {
			pe, err := expr(e, p.Input)
			if err != nil {
				return nil, err
			}
			exprs[i] = pe
		}
		return physical.NewProjection(input, exprs, schema), nil

	case *logical.Aggregation:
		input, err := Plan(p.Input)
		if err != nil {
			return nil, err
		}
		groupBy := make([]physical.Expr, len(p.GroupBy))
		for i, g := range p.GroupBy {
			pe, err := expr(g, p.Input)
			if err != nil {
				return nil, err
			}
			groupBy[i] = pe
		}
		aggregates := make([]physical.AggregateExpr, len(p.Aggregates))
		for i, a := range p.Aggregates {
			ae, err := aggExpr(a, p.Input)
			if err != nil {
				return nil, err
			}
			aggregates[i] = ae
		}
		schema, err := p.Schema()
		if err != nil {
			return nil, err
		}
		return physical.NewHashAggregation(input, groupBy, aggregates, schema), nil

	default:
		panic(fmt.Sprintf("queryplanner: unhandled logical plan type %T", p))
	}
}

// expr lowers a single logical expression against input's schema to a
// physical expression, per spec.md §4.7's "expr lowers logical
// expressions identically per variant" rule.
func expr(e logical.Expr, input logical.Plan) (physical.Expr, error) {
	switch e := e.(type) {
	case *logical.Column:
		schema, err := input.Schema()
		if err != nil {
			return nil, err
		}
		idx, err := columnar.FieldIndex(schema, e.Name)
		if err != nil {
			return nil, errs.Wrap(errs.InvalidInput, "queryplanner", "column "+e.Name+" not found in child schema", err)
		}
		return &physical.Column{Index: idx, Name: e.Name}, nil

	case *logical.ColumnIndex:
		schema, err := input.Schema()
		if err != nil {
			return nil, err
		}
		if e.Index < 0 || e.Index >= len(schema.Fields()) {
			return nil, errs.New(errs.OutOfRange, "queryplanner", "column index out of range")
		}
		return &physical.Column{Index: e.Index, Name: schema.Field(e.Index).Name}, nil

	case *logical.LiteralLong:
		return physical.NewLiteralLong(e.Value), nil
	case *logical.LiteralDouble:
		return physical.NewLiteralDouble(e.Value), nil
	case *logical.LiteralString:
		return physical.NewLiteralString(e.Value), nil

	case *logical.Not:
		inner, err := expr(e.Expr, input)
		if err != nil {
			return nil, err
		}
		return &physical.Not{Expr: inner}, nil

	case *logical.And:
		return lowerBoolean(e.Left, e.Right, input, func(l, r physical.Expr) physical.Expr { return physical.NewAnd(l, r) })
	case *logical.Or:
		return lowerBoolean(e.Left, e.Right, input, func(l, r physical.Expr) physical.Expr { return physical.NewOr(l, r) })
	case *logical.Eq:
		return lowerBoolean(e.Left, e.Right, input, func(l, r physical.Expr) physical.Expr { return physical.NewEq(l, r) })
	case *logical.Neq:
		return lowerBoolean(e.Left, e.Right, input, func(l, r physical.Expr) physical.Expr { return physical.NewNeq(l, r) })
	case *logical.Gt:
		return lowerBoolean(e.Left, e.Right, input, func(l, r physical.Expr) physical.Expr { return physical.NewGt(l, r) })
	case *logical.GtEq:
		return lowerBoolean(e.Left, e.Right, input, func(l, r physical.Expr) physical.Expr { return physical.NewGtEq(l, r) })
	case *logical.Lt:
		return lowerBoolean(e.Left, e.Right, input, func(l, r physical.Expr) physical.Expr { return physical.NewLt(l, r) })
	case *logical.LtEq:
		return lowerBoolean(e.Left, e.Right, input, func(l, r physical.Expr) physical.Expr { return physical.NewLtEq(l, r) })

	case *logical.Add:
		return lowerBoolean(e.Left, e.Right, input, func(l, r physical.Expr) physical.Expr { return physical.NewAdd(l, r) })
	case *logical.Subtract:
		return lowerBoolean(e.Left, e.Right, input, func(l, r physical.Expr) physical.Expr { return physical.NewSubtract(l, r) })
	case *logical.Multiply:
		return lowerBoolean(e.Left, e.Right, input, func(l, r physical.Expr) physical.Expr { return physical.NewMultiply(l, r) })
	case *logical.Divide:
		return lowerBoolean(e.Left, e.Right, input, func(l, r physical.Expr) physical.Expr { return physical.NewDivide(l, r) })
	case *logical.Modulus:
		return lowerBoolean(e.Left, e.Right, input, func(l, r physical.Expr) physical.Expr { return physical.NewModulus(l, r) })

	case *logical.Cast:
		inner, err := expr(e.Expr, input)
		if err != nil {
			return nil, err
		}
		return &physical.Cast{Expr: inner, DataType: e.DataType}, nil

	case *logical.Alias:
		// Alias is transparent at the physical layer: the output field's
		// name already comes from the schema the query planner fixed
		// up front, per spec.md §4.7.
		return expr(e.Expr, input)

	default:
		return nil, errs.New(errs.InvalidInput, "queryplanner", fmt.Sprintf("cannot lower expression of type %T to a physical expression directly (did you mean aggExpr?)", e))
	}
}

func lowerBoolean(left, right logical.Expr, input logical.Plan, build func(l, r physical.Expr) physical.Expr) (physical.Expr, error) {
	l, err := expr(left, input)
	if err != nil {
		return nil, err
	}
	r, err := expr(right, input)
	if err != nil {
		return nil, err
	}
	return build(l, r), nil
}

// aggExpr lowers a logical aggregate (Sum/Min/Max/Avg/Count) to a physical
// AggregateExpr carrying its accumulator constructor, per spec.md §4.7.
func aggExpr(e logical.Expr, input logical.Plan) (physical.AggregateExpr, error) {
	field, err := e.ToField(input)
	if err != nil {
		return physical.AggregateExpr{}, err
	}

	var inner logical.Expr
	var newAcc func() physical.Accumulator

	switch e := e.(type) {
	case *logical.Sum:
		inner = e.Expr
		newAcc = func() physical.Accumulator { return physical.NewSumAccumulator(field.Type) }
	case *logical.Min:
		inner = e.Expr
		newAcc = func() physical.Accumulator { return physical.NewMinAccumulator(field.Type) }
	case *logical.Max:
		inner = e.Expr
		newAcc = func() physical.Accumulator { return physical.NewMaxAccumulator(field.Type) }
	case *logical.Avg:
		inner = e.Expr
		newAcc = func() physical.Accumulator { return physical.NewAvgAccumulator(field.Type) }
	case *logical.Count:
		inner = e.Expr
		newAcc = func() physical.Accumulator { return physical.NewCountAccumulator(field.Type) }
	default:
		return physical.AggregateExpr{}, errs.New(errs.InvalidInput, "queryplanner", fmt.Sprintf("not an aggregate expression: %T", e))
	}

	pe, err := expr(inner, input)
	if err != nil {
		return physical.AggregateExpr{}, err
	}
	return physical.AggregateExpr{Input: pe, NewAccumulator: newAcc, Field: field}, nil
}
