// Package logical implements the logical algebra (C4): a closed sum type
// of expressions and plan nodes carrying typed schemas but no execution
// behavior. It is grounded on grafana-loki's pkg/engine/planner/logical
// package for the small-struct-with-Schema()/Children() shape, and on
// original_source/include/logicalplan/logicalexpression.h and
// logicalplan.h for the variant list and to_field rules.
package logical

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/dr0pdb/toyquery/internal/columnar"
	"github.com/dr0pdb/toyquery/internal/errs"
)

// Expr is the common interface every logical expression node implements.
// isExpr is unexported so Expr is a closed sum type.
type Expr interface {
	fmt.Stringer
	isExpr()
	// ToField resolves the expression's output field against input's
	// schema, applying spec.md §4.3's to_field type rules.
	ToField(input Plan) (arrow.Field, error)
}

// Column references an input field by name.
type Column struct {
	Name string
}

func (*Column) isExpr() {}
func (e *Column) String() string { return e.Name }
func (e *Column) ToField(input Plan) (arrow.Field, error) {
	schema, err := input.Schema()
	if err != nil {
		return arrow.Field{}, err
	}
	return columnar.Field(schema, e.Name)
}

// ColumnIndex references an input field by position.
type ColumnIndex struct {
	Index int
}

func (*ColumnIndex) isExpr() {}
func (e *ColumnIndex) String() string { return fmt.Sprintf("#%d", e.Index) }
func (e *ColumnIndex) ToField(input Plan) (arrow.Field, error) {
	schema, err := input.Schema()
	if err != nil {
		return arrow.Field{}, err
	}
	if e.Index < 0 || e.Index >= len(schema.Fields()) {
		return arrow.Field{}, errs.New(errs.OutOfRange, "logical:ColumnIndex", fmt.Sprintf("index %d out of range for %d fields", e.Index, len(schema.Fields())))
	}
	return schema.Field(e.Index), nil
}

// LiteralLong is a constant int64 value.
type LiteralLong struct {
	Value int64
}

func (*LiteralLong) isExpr()          {}
func (e *LiteralLong) String() string { return fmt.Sprintf("%d", e.Value) }
func (e *LiteralLong) ToField(Plan) (arrow.Field, error) {
	return arrow.Field{Name: e.String(), Type: columnar.Int64}, nil
}

// LiteralDouble is a constant float64 value.
type LiteralDouble struct {
	Value float64
}

func (*LiteralDouble) isExpr()          {}
func (e *LiteralDouble) String() string { return fmt.Sprintf("%g", e.Value) }
func (e *LiteralDouble) ToField(Plan) (arrow.Field, error) {
	return arrow.Field{Name: e.String(), Type: columnar.Float64}, nil
}

// LiteralString is a constant utf8 value.
type LiteralString struct {
	Value string
}

func (*LiteralString) isExpr()          {}
func (e *LiteralString) String() string { return fmt.Sprintf("%q", e.Value) }
func (e *LiteralString) ToField(Plan) (arrow.Field, error) {
	return arrow.Field{Name: e.String(), Type: columnar.Utf8}, nil
}

// Not negates a boolean expression.
type Not struct {
	Expr Expr
}

func (*Not) isExpr()          {}
func (e *Not) String() string { return fmt.Sprintf("NOT %s", e.Expr) }
func (e *Not) ToField(input Plan) (arrow.Field, error) {
	return arrow.Field{Name: e.String(), Type: columnar.Boolean}, nil
}

// booleanBinary is the shared shape of AND/OR and the comparison operators,
// all of which produce a boolean field. Both operands must resolve to the
// same type; a mismatch is a planning-time TypeMismatch.
type booleanBinary struct {
	Op    string
	Left  Expr
	Right Expr
}

func (e *booleanBinary) String() string { return fmt.Sprintf("%s %s %s", e.Left, e.Op, e.Right) }
func (e *booleanBinary) ToField(input Plan) (arrow.Field, error) {
	lf, err := e.Left.ToField(input)
	if err != nil {
		return arrow.Field{}, err
	}
	rf, err := e.Right.ToField(input)
	if err != nil {
		return arrow.Field{}, err
	}
	if !arrow.TypeEqual(lf.Type, rf.Type) {
		return arrow.Field{}, errs.New(errs.TypeMismatch, "logical:booleanBinary",
			fmt.Sprintf("operand type mismatch: %s vs %s", lf.Type, rf.Type))
	}
	return arrow.Field{Name: e.String(), Type: columnar.Boolean}, nil
}

// And, Or, Eq, Neq, Gt, GtEq, Lt, LtEq are all boolean-typed binary
// expressions distinguished only by Op, per spec.md §4.3's to_field table
// ("Boolean binary ... boolean"), over operands of one common type.
type (
	And  struct{ booleanBinary }
	Or   struct{ booleanBinary }
	Eq   struct{ booleanBinary }
	Neq  struct{ booleanBinary }
	Gt   struct{ booleanBinary }
	GtEq struct{ booleanBinary }
	Lt   struct{ booleanBinary }
	LtEq struct{ booleanBinary }
)

func (*And) isExpr()  {}
func (*Or) isExpr()   {}
func (*Eq) isExpr()   {}
func (*Neq) isExpr()  {}
func (*Gt) isExpr()   {}
func (*GtEq) isExpr() {}
func (*Lt) isExpr()   {}
func (*LtEq) isExpr() {}

func newBooleanBinary(op string, l, r Expr) booleanBinary {
	return booleanBinary{Op: op, Left: l, Right: r}
}

// NewAnd, NewOr, ... are the constructors used by the SQL→logical lowering
// table (spec.md §4.4) and the optimizer's reconstruction of binary nodes.
func NewAnd(l, r Expr) *And   { return &And{newBooleanBinary("AND", l, r)} }
func NewOr(l, r Expr) *Or     { return &Or{newBooleanBinary("OR", l, r)} }
func NewEq(l, r Expr) *Eq     { return &Eq{newBooleanBinary("=", l, r)} }
func NewNeq(l, r Expr) *Neq   { return &Neq{newBooleanBinary("!=", l, r)} }
func NewGt(l, r Expr) *Gt     { return &Gt{newBooleanBinary(">", l, r)} }
func NewGtEq(l, r Expr) *GtEq { return &GtEq{newBooleanBinary(">=", l, r)} }
func NewLt(l, r Expr) *Lt     { return &Lt{newBooleanBinary("<", l, r)} }
func NewLtEq(l, r Expr) *LtEq { return &LtEq{newBooleanBinary("<=", l, r)} }

// mathBinary is the shared shape of the arithmetic operators: the result
// type is the left operand's type, and a mismatched right operand type is
// a planning-time TypeMismatch (spec.md §4.3, "Math binary").
type mathBinary struct {
	Op    string
	Left  Expr
	Right Expr
}

func (e *mathBinary) String() string { return fmt.Sprintf("%s %s %s", e.Left, e.Op, e.Right) }
func (e *mathBinary) ToField(input Plan) (arrow.Field, error) {
	lf, err := e.Left.ToField(input)
	if err != nil {
		return arrow.Field{}, err
	}
	rf, err := e.Right.ToField(input)
	if err != nil {
		return arrow.Field{}, err
	}
	if !arrow.TypeEqual(lf.Type, rf.Type) {
		return arrow.Field{}, errs.New(errs.TypeMismatch, "logical:mathBinary",
			fmt.Sprintf("operand type mismatch: %s vs %s", lf.Type, rf.Type))
	}
	return arrow.Field{Name: e.String(), Type: lf.Type}, nil
}

type (
	Add      struct{ mathBinary }
	Subtract struct{ mathBinary }
	Multiply struct{ mathBinary }
	Divide   struct{ mathBinary }
	Modulus  struct{ mathBinary }
)

func (*Add) isExpr()      {}
func (*Subtract) isExpr() {}
func (*Multiply) isExpr() {}
func (*Divide) isExpr()   {}
func (*Modulus) isExpr()  {}

func newMathBinary(op string, l, r Expr) mathBinary { return mathBinary{Op: op, Left: l, Right: r} }

func NewAdd(l, r Expr) *Add           { return &Add{newMathBinary("+", l, r)} }
func NewSubtract(l, r Expr) *Subtract { return &Subtract{newMathBinary("-", l, r)} }
func NewMultiply(l, r Expr) *Multiply { return &Multiply{newMathBinary("*", l, r)} }
func NewDivide(l, r Expr) *Divide     { return &Divide{newMathBinary("/", l, r)} }
func NewModulus(l, r Expr) *Modulus   { return &Modulus{newMathBinary("%", l, r)} }

// Cast reinterprets an expression's value as DataType.
type Cast struct {
	Expr     Expr
	DataType arrow.DataType
}

func (*Cast) isExpr()          {}
func (e *Cast) String() string { return fmt.Sprintf("CAST(%s AS %s)", e.Expr, e.DataType) }
func (e *Cast) ToField(Plan) (arrow.Field, error) {
	return arrow.Field{Name: e.String(), Type: e.DataType}, nil
}

// Alias renames an expression's output field.
type Alias struct {
	Expr Expr
	Name string
}

func (*Alias) isExpr()          {}
func (e *Alias) String() string { return fmt.Sprintf("%s AS %s", e.Expr, e.Name) }
func (e *Alias) ToField(input Plan) (arrow.Field, error) {
	f, err := e.Expr.ToField(input)
	if err != nil {
		return arrow.Field{}, err
	}
	f.Name = e.Name
	return f, nil
}

// aggregate is the shared shape of Sum/Min/Max/Avg/Count: a single inner
// expression, a display name, and spec.md §4.3's "type of e" rule
// (Avg and Count override it below: Avg is pinned to float64, Count to
// int64).
type aggregate struct {
	FuncName string
	Expr     Expr
}

func (e *aggregate) String() string { return fmt.Sprintf("%s(%s)", e.FuncName, e.Expr) }
func (e *aggregate) ToField(input Plan) (arrow.Field, error) {
	f, err := e.Expr.ToField(input)
	if err != nil {
		return arrow.Field{}, err
	}
	return arrow.Field{Name: e.String(), Type: f.Type}, nil
}

type (
	Sum struct{ aggregate }
	Min struct{ aggregate }
	Max struct{ aggregate }
	Avg struct{ aggregate }
)

func (*Sum) isExpr() {}
func (*Min) isExpr() {}
func (*Max) isExpr() {}
func (*Avg) isExpr() {}

func NewSum(e Expr) *Sum { return &Sum{aggregate{FuncName: "SUM", Expr: e}} }
func NewMin(e Expr) *Min { return &Min{aggregate{FuncName: "MIN", Expr: e}} }
func NewMax(e Expr) *Max { return &Max{aggregate{FuncName: "MAX", Expr: e}} }
func NewAvg(e Expr) *Avg { return &Avg{aggregate{FuncName: "AVG", Expr: e}} }

// ToField overrides the generic aggregate "type of e" rule: AVG always
// divides into a float64, regardless of its input expression's type.
func (e *Avg) ToField(input Plan) (arrow.Field, error) {
	if _, err := e.Expr.ToField(input); err != nil {
		return arrow.Field{}, err
	}
	return arrow.Field{Name: e.String(), Type: columnar.Float64}, nil
}

// Count counts input rows (or non-null values of Expr); its field type is
// always int64, overriding the generic aggregate "type of e" rule per
// the analytical convention spec.md itself points at.
type Count struct {
	aggregate
}

func (*Count) isExpr() {}
func NewCount(e Expr) *Count { return &Count{aggregate{FuncName: "COUNT", Expr: e}} }
func (e *Count) ToField(Plan) (arrow.Field, error) {
	return arrow.Field{Name: e.String(), Type: columnar.Int64}, nil
}

// IsAggregate reports whether expr's root is one of Sum/Min/Max/Avg/Count.
func IsAggregate(expr Expr) bool {
	switch expr.(type) {
	case *Sum, *Min, *Max, *Avg, *Count:
		return true
	default:
		return false
	}
}

// ContainsAggregate reports whether expr reaches an aggregate through any
// chain of Alias/Cast/binary wrapping, per spec.md §4.4 step 2 ("whose
// root, through Alias/Cast/binary, reaches an aggregate").
func ContainsAggregate(expr Expr) bool {
	switch e := expr.(type) {
	case *Sum, *Min, *Max, *Avg, *Count:
		return true
	case *Alias:
		return ContainsAggregate(e.Expr)
	case *Cast:
		return ContainsAggregate(e.Expr)
	case *Not:
		return ContainsAggregate(e.Expr)
	case *And:
		return ContainsAggregate(e.Left) || ContainsAggregate(e.Right)
	case *Or:
		return ContainsAggregate(e.Left) || ContainsAggregate(e.Right)
	case *Eq:
		return ContainsAggregate(e.Left) || ContainsAggregate(e.Right)
	case *Neq:
		return ContainsAggregate(e.Left) || ContainsAggregate(e.Right)
	case *Gt:
		return ContainsAggregate(e.Left) || ContainsAggregate(e.Right)
	case *GtEq:
		return ContainsAggregate(e.Left) || ContainsAggregate(e.Right)
	case *Lt:
		return ContainsAggregate(e.Left) || ContainsAggregate(e.Right)
	case *LtEq:
		return ContainsAggregate(e.Left) || ContainsAggregate(e.Right)
	case *Add:
		return ContainsAggregate(e.Left) || ContainsAggregate(e.Right)
	case *Subtract:
		return ContainsAggregate(e.Left) || ContainsAggregate(e.Right)
	case *Multiply:
		return ContainsAggregate(e.Left) || ContainsAggregate(e.Right)
	case *Divide:
		return ContainsAggregate(e.Left) || ContainsAggregate(e.Right)
	case *Modulus:
		return ContainsAggregate(e.Left) || ContainsAggregate(e.Right)
	default:
		return false
	}
}

// exprString joins a slice of expressions for debug printing of plan nodes.
func exprString(exprs []Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}
