// Package planner lowers a parsed SQL ast.Select into a logical.Plan (C5).
// It is grounded on original_source/src/sql/planner.cc for the algorithm
// shape (lower projections, count aggregates, push an initial column set
// into Scan, split grouping vs. aggregate expressions) and on spec.md
// §4.4's expression-lowering table.
package planner

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/dr0pdb/toyquery/internal/columnar"
	"github.com/dr0pdb/toyquery/internal/errs"
	"github.com/dr0pdb/toyquery/internal/logical"
	"github.com/dr0pdb/toyquery/internal/sql/ast"
)

// Catalog resolves a table name to the logical.Source backing it. A
// missing table is a NotFound error, per spec.md §4.4.
type Catalog interface {
	Resolve(tableName string) (logical.Source, error)
}

// Plan lowers sel into a logical.Plan against catalog, implementing
// spec.md §4.4's algorithm.
func Plan(sel *ast.Select, catalog Catalog) (logical.Plan, error) {
	source, err := catalog.Resolve(sel.TableName)
	if err != nil {
		return nil, err
	}

	var projection []logical.Expr
	for _, e := range sel.Projection {
		if _, ok := e.(*ast.Star); ok {
			for _, f := range source.Schema().Fields() {
				projection = append(projection, &logical.Column{Name: f.Name})
			}
			continue
		}
		lowered, err := lowerExpr(e)
		if err != nil {
			return nil, err
		}
		projection = append(projection, lowered)
	}

	var filter logical.Expr
	if sel.Selection != nil {
		filter, err = lowerExpr(sel.Selection)
		if err != nil {
			return nil, err
		}
	}

	if len(sel.OrderBy) > 0 || sel.Having != nil {
		return nil, errs.New(errs.Unimplemented, "planner", "ORDER BY and HAVING are not executed in v1")
	}

	aggCount := 0
	for _, e := range projection {
		if logical.ContainsAggregate(e) {
			aggCount++
		}
	}
	if len(sel.GroupBy) > 0 && aggCount == 0 {
		return nil, errs.New(errs.InvalidInput, "planner", "GROUP BY requires at least one aggregate in the projection")
	}

	referenced, err := collectReferences(projection, filter, source)
	if err != nil {
		return nil, err
	}

	var plan logical.Plan = &logical.Scan{Source: source, Projection: referenced}
	if filter != nil {
		plan = &logical.Selection{Input: plan, Filter: filter}
	}

	if aggCount == 0 {
		return &logical.Projection{Input: plan, Exprs: projection}, nil
	}

	groups := make([]logical.Expr, len(sel.GroupBy))
	for i, e := range sel.GroupBy {
		lowered, err := lowerExpr(e)
		if err != nil {
			return nil, err
		}
		groups[i] = lowered
	}

	var aggregates []logical.Expr
	for _, e := range projection {
		if logical.ContainsAggregate(e) {
			aggregates = append(aggregates, e)
		} else {
			groups = appendIfMissingGroup(groups, e)
		}
	}

	return &logical.Aggregation{Input: plan, GroupBy: groups, Aggregates: aggregates}, nil
}

// appendIfMissingGroup ensures every non-aggregate projection expression is
// present among the grouping expressions (a bare "SELECT dept, SUM(x) ...
// GROUP BY dept" should not require the user to repeat dept).
func appendIfMissingGroup(groups []logical.Expr, e logical.Expr) []logical.Expr {
	target := e.String()
	for _, g := range groups {
		if g.String() == target {
			return groups
		}
	}
	return append(groups, e)
}

func collectReferences(projection []logical.Expr, filter logical.Expr, source logical.Source) ([]string, error) {
	scan := &logical.Scan{Source: source}
	var names []string
	for _, e := range projection {
		refs, err := logical.ColumnReferences(e, scan)
		if err != nil {
			return nil, err
		}
		names = append(names, refs...)
	}
	if filter != nil {
		refs, err := logical.ColumnReferences(filter, scan)
		if err != nil {
			return nil, err
		}
		names = append(names, refs...)
	}
	return dedupe(names), nil
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

// lowerExpr lowers a single SQL AST expression to a logical expression, per
// spec.md §4.4's expression-lowering table.
func lowerExpr(e ast.Expression) (logical.Expr, error) {
	switch e := e.(type) {
	case *ast.Identifier:
		return &logical.Column{Name: e.Name}, nil
	case *ast.Long:
		return &logical.LiteralLong{Value: e.Value}, nil
	case *ast.Double:
		return &logical.LiteralDouble{Value: e.Value}, nil
	case *ast.String:
		return &logical.LiteralString{Value: e.Value}, nil
	case *ast.Alias:
		inner, err := lowerExpr(e.Expr)
		if err != nil {
			return nil, err
		}
		return &logical.Alias{Expr: inner, Name: e.Alias.Name}, nil
	case *ast.Cast:
		inner, err := lowerExpr(e.Expr)
		if err != nil {
			return nil, err
		}
		dt, err := parseType(e.DataType.Name)
		if err != nil {
			return nil, err
		}
		return &logical.Cast{Expr: inner, DataType: dt}, nil
	case *ast.BinaryOp:
		left, err := lowerExpr(e.Left)
		if err != nil {
			return nil, err
		}
		right, err := lowerExpr(e.Right)
		if err != nil {
			return nil, err
		}
		return lowerBinaryOp(e.Op, left, right)
	case *ast.Function:
		return lowerFunction(e)
	case *ast.Sort:
		return lowerExpr(e.Expr)
	default:
		return nil, errs.New(errs.InvalidInput, "planner", fmt.Sprintf("unsupported expression %T", e))
	}
}

func lowerBinaryOp(op string, left, right logical.Expr) (logical.Expr, error) {
	switch op {
	case "=":
		return logical.NewEq(left, right), nil
	case "!=":
		return logical.NewNeq(left, right), nil
	case ">":
		return logical.NewGt(left, right), nil
	case ">=":
		return logical.NewGtEq(left, right), nil
	case "<":
		return logical.NewLt(left, right), nil
	case "<=":
		return logical.NewLtEq(left, right), nil
	case "AND":
		return logical.NewAnd(left, right), nil
	case "OR":
		return logical.NewOr(left, right), nil
	case "+":
		return logical.NewAdd(left, right), nil
	case "-":
		return logical.NewSubtract(left, right), nil
	case "*":
		return logical.NewMultiply(left, right), nil
	case "/":
		return logical.NewDivide(left, right), nil
	case "%":
		return logical.NewModulus(left, right), nil
	default:
		return nil, errs.New(errs.InvalidInput, "planner", "unknown operator "+op)
	}
}

func lowerFunction(fn *ast.Function) (logical.Expr, error) {
	if len(fn.Args) != 1 {
		return nil, errs.New(errs.InvalidInput, "planner", fn.Name+" takes exactly one argument")
	}
	arg, err := lowerExpr(fn.Args[0])
	if err != nil {
		return nil, err
	}
	switch strings.ToUpper(fn.Name) {
	case "MIN":
		return logical.NewMin(arg), nil
	case "MAX":
		return logical.NewMax(arg), nil
	case "SUM":
		return logical.NewSum(arg), nil
	case "AVG":
		return logical.NewAvg(arg), nil
	case "COUNT":
		return logical.NewCount(arg), nil
	default:
		return nil, errs.New(errs.InvalidInput, "planner", "unknown function "+fn.Name)
	}
}

// parseType maps a CAST target type name to its columnar type, per
// spec.md §4.4's parse_type table.
func parseType(name string) (arrow.DataType, error) {
	switch strings.ToLower(name) {
	case "double":
		return columnar.Float64, nil
	case "long":
		return columnar.Int64, nil
	case "string":
		return columnar.Utf8, nil
	default:
		return nil, errs.New(errs.InvalidInput, "planner", "unknown CAST target type "+name)
	}
}
