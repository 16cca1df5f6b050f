// Package ast defines the SQL syntax tree produced by the parser (C3): a
// sum type over {Identifier, Star, Long, Double, String, BinaryOp, Function,
// Alias, Cast, Sort, Select}, grounded on
// original_source/include/sql/expressions.h.
package ast

import (
	"fmt"
	"strings"
)

// Expression is the common interface every SQL AST node implements. isExpr
// is unexported so Expression is a closed sum type: no package outside ast
// can add a new variant.
type Expression interface {
	fmt.Stringer
	isExpr()
}

// Identifier is a bare name: a column reference, a function name, or a
// CAST target type name.
type Identifier struct {
	Name string
}

func (*Identifier) isExpr()          {}
func (e *Identifier) String() string { return e.Name }

// Star is the bare `*` projection item of `SELECT * FROM t`.
type Star struct{}

func (*Star) isExpr()          {}
func (e *Star) String() string { return "*" }

// Long is an integer literal.
type Long struct {
	Value int64
}

func (*Long) isExpr()          {}
func (e *Long) String() string { return fmt.Sprintf("%d", e.Value) }

// Double is a floating-point literal.
type Double struct {
	Value float64
}

func (*Double) isExpr()          {}
func (e *Double) String() string { return fmt.Sprintf("%g", e.Value) }

// String is a string literal.
type String struct {
	Value string
}

func (*String) isExpr()          {}
func (e *String) String() string { return `"` + e.Value + `"` }

// BinaryOp is a binary operator expression; Op is the operator's source
// spelling (e.g. "+", "=", "AND"), matched against the operator table in
// internal/sql/planner during lowering.
type BinaryOp struct {
	Left  Expression
	Op    string
	Right Expression
}

func (*BinaryOp) isExpr() {}
func (e *BinaryOp) String() string {
	return fmt.Sprintf("%s %s %s", e.Left, e.Op, e.Right)
}

// Function is a function call: a name applied to a parenthesized argument
// list, per spec.md §4.2's function-call grammar. The SQL planner accepts
// only MIN/MAX/SUM/AVG/COUNT with exactly one argument.
type Function struct {
	Name string
	Args []Expression
}

func (*Function) isExpr() {}
func (e *Function) String() string {
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", e.Name, strings.Join(args, ", "))
}

// Alias wraps an expression with an output name, from `expr AS name`.
type Alias struct {
	Expr  Expression
	Alias *Identifier
}

func (*Alias) isExpr() {}
func (e *Alias) String() string {
	return fmt.Sprintf("%s AS %s", e.Expr, e.Alias)
}

// Cast wraps an expression with a target type name, from `CAST(expr AS type)`.
type Cast struct {
	Expr     Expression
	DataType *Identifier
}

func (*Cast) isExpr() {}
func (e *Cast) String() string {
	return fmt.Sprintf("CAST(%s AS %s)", e.Expr, e.DataType)
}

// Sort wraps an ORDER BY item with its direction.
type Sort struct {
	Expr Expression
	Asc  bool
}

func (*Sort) isExpr() {}
func (e *Sort) String() string {
	if e.Asc {
		return fmt.Sprintf("%s ASC", e.Expr)
	}
	return fmt.Sprintf("%s DESC", e.Expr)
}

// Select is a parsed SELECT statement.
type Select struct {
	Projection []Expression
	Selection  Expression // nil if no WHERE clause
	GroupBy    []Expression
	OrderBy    []*Sort
	Having     Expression // nil if no HAVING clause
	TableName  string
}

func (*Select) isExpr() {}
func (s *Select) String() string {
	var b strings.Builder
	b.WriteString("SELECT ")
	for i, p := range s.Projection {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.String())
	}
	fmt.Fprintf(&b, " FROM %s", s.TableName)
	if s.Selection != nil {
		fmt.Fprintf(&b, " WHERE %s", s.Selection)
	}
	if len(s.GroupBy) > 0 {
		b.WriteString(" GROUP BY ")
		for i, g := range s.GroupBy {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(g.String())
		}
	}
	if s.Having != nil {
		fmt.Fprintf(&b, " HAVING %s", s.Having)
	}
	if len(s.OrderBy) > 0 {
		b.WriteString(" ORDER BY ")
		for i, o := range s.OrderBy {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(o.String())
		}
	}
	return b.String()
}
