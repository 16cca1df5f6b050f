// Package physical implements the physical algebra (C7) and accumulators
// (C9): expressions that evaluate against a materialized arrow.Record, and
// plan nodes that pull record batches on demand. It is grounded on
// original_source/src/physicalplan/physicalexpression.cc for the
// evaluate()/type-dispatch shape and on grafana-loki's
// pkg/engine/executor/filter.go for building result arrays from a
// row-at-a-time predicate.
package physical

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/dr0pdb/toyquery/internal/columnar"
	"github.com/dr0pdb/toyquery/internal/errs"
)

// Expr is the common interface every physical expression implements.
type Expr interface {
	fmt.Stringer
	isExpr()
	// Evaluate computes the expression's value for every row of batch,
	// returning an array of batch.NumRows() entries.
	Evaluate(batch arrow.Record) (arrow.Array, error)
}

// Column returns the batch's column at Index.
type Column struct {
	Index int
	Name  string
}

func (*Column) isExpr()          {}
func (e *Column) String() string { return e.Name }
func (e *Column) Evaluate(batch arrow.Record) (arrow.Array, error) {
	if e.Index < 0 || e.Index >= int(batch.NumCols()) {
		return nil, errs.New(errs.OutOfRange, "physical:Column", fmt.Sprintf("index %d out of range for %d columns", e.Index, batch.NumCols()))
	}
	arr := batch.Column(e.Index)
	arr.Retain()
	return arr, nil
}

// literal materializes a constant Scalar across every row of the batch.
type literal struct {
	Value columnar.Scalar
}

func (e *literal) String() string { return e.Value.String() }
func (e *literal) Evaluate(batch arrow.Record) (arrow.Array, error) {
	return columnar.ConstantArray(e.Value, int(batch.NumRows()))
}

type (
	LiteralLong   struct{ literal }
	LiteralDouble struct{ literal }
	LiteralString struct{ literal }
)

func (*LiteralLong) isExpr()   {}
func (*LiteralDouble) isExpr() {}
func (*LiteralString) isExpr() {}

func NewLiteralLong(v int64) *LiteralLong { return &LiteralLong{literal{columnar.NewInt64Scalar(v)}} }
func NewLiteralDouble(v float64) *LiteralDouble {
	return &LiteralDouble{literal{columnar.NewFloat64Scalar(v)}}
}
func NewLiteralString(v string) *LiteralString {
	return &LiteralString{literal{columnar.NewStringScalar(v)}}
}

// Not negates a boolean operand, row by row.
type Not struct {
	Expr Expr
}

func (*Not) isExpr()          {}
func (e *Not) String() string { return fmt.Sprintf("NOT %s", e.Expr) }
func (e *Not) Evaluate(batch arrow.Record) (arrow.Array, error) {
	arr, err := e.Expr.Evaluate(batch)
	if err != nil {
		return nil, err
	}
	defer arr.Release()

	n := arr.Len()
	values := make([]columnar.Scalar, n)
	for i := 0; i < n; i++ {
		s, err := columnar.ScalarAt(arr, i)
		if err != nil {
			return nil, err
		}
		if !s.Valid {
			return nil, errs.New(errs.Internal, "physical:Not", "cannot negate a null operand")
		}
		values[i] = columnar.NewBoolScalar(!s.Bool())
	}
	return columnar.BuildArray(columnar.Boolean, values)
}

// rowFunc computes a single result Scalar from a pair of operand Scalars.
type rowFunc func(l, r columnar.Scalar) (columnar.Scalar, error)

// evalBinary evaluates left/right over batch, verifies they have equal
// length, and combines each row's pair of scalars via combine. fixedType, if
// non-nil, is the result array's type to use on a zero-row batch (where no
// row runs through combine to reveal it); pass nil to derive it from the
// left operand instead (the math operators preserve the operand's type).
func evalBinary(batch arrow.Record, left, right Expr, combine rowFunc, fixedType arrow.DataType) (arrow.Array, error) {
	la, err := left.Evaluate(batch)
	if err != nil {
		return nil, err
	}
	defer la.Release()
	ra, err := right.Evaluate(batch)
	if err != nil {
		return nil, err
	}
	defer ra.Release()

	if la.Len() != ra.Len() {
		return nil, errs.New(errs.Internal, "physical:binary", "operand length mismatch")
	}

	n := la.Len()
	values := make([]columnar.Scalar, n)
	var resultType arrow.DataType
	for i := 0; i < n; i++ {
		ls, err := columnar.ScalarAt(la, i)
		if err != nil {
			return nil, err
		}
		rs, err := columnar.ScalarAt(ra, i)
		if err != nil {
			return nil, err
		}
		result, err := combine(ls, rs)
		if err != nil {
			return nil, err
		}
		values[i] = result
		resultType = result.Type
	}
	if resultType == nil {
		// zero-row batch: no row ran through combine to reveal the result
		// type, so use the caller-supplied fixed type (boolean operators)
		// or fall back to the left operand's type (math operators, which
		// preserve it).
		if fixedType != nil {
			resultType = fixedType
		} else {
			resultType = la.DataType()
		}
	}
	return columnar.BuildArray(resultType, values)
}

// boolCombine builds a rowFunc for a comparison/logical operator, applying
// spec.md's NULL policy: a null operand makes every comparison false.
func boolCombine(f func(l, r columnar.Scalar) (bool, error)) rowFunc {
	return func(l, r columnar.Scalar) (columnar.Scalar, error) {
		if !l.Valid || !r.Valid {
			return columnar.NewBoolScalar(false), nil
		}
		v, err := f(l, r)
		if err != nil {
			return columnar.Scalar{}, err
		}
		return columnar.NewBoolScalar(v), nil
	}
}

type booleanBinary struct {
	Op    string
	Left  Expr
	Right Expr
	fn    rowFunc
}

func (e *booleanBinary) String() string { return fmt.Sprintf("%s %s %s", e.Left, e.Op, e.Right) }
func (e *booleanBinary) Evaluate(batch arrow.Record) (arrow.Array, error) {
	return evalBinary(batch, e.Left, e.Right, e.fn, columnar.Boolean)
}

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

func NewAnd(l, r Expr) *And {
	return &And{booleanBinary{Op: "AND", Left: l, Right: r, fn: boolCombine(func(l, r columnar.Scalar) (bool, error) {
		if l.Type.ID() != arrow.BOOL || r.Type.ID() != arrow.BOOL {
			return false, errs.New(errs.Internal, "physical:And", "AND requires boolean operands")
		}
		return l.Bool() && r.Bool(), nil
	})}}
}

func NewOr(l, r Expr) *Or {
	return &Or{booleanBinary{Op: "OR", Left: l, Right: r, fn: boolCombine(func(l, r columnar.Scalar) (bool, error) {
		if l.Type.ID() != arrow.BOOL || r.Type.ID() != arrow.BOOL {
			return false, errs.New(errs.Internal, "physical:Or", "OR requires boolean operands")
		}
		return l.Bool() || r.Bool(), nil
	})}}
}

func NewEq(l, r Expr) *Eq {
	return &Eq{booleanBinary{Op: "=", Left: l, Right: r, fn: boolCombine(func(l, r columnar.Scalar) (bool, error) {
		return l.Equal(r), nil
	})}}
}

func NewNeq(l, r Expr) *Neq {
	return &Neq{booleanBinary{Op: "!=", Left: l, Right: r, fn: boolCombine(func(l, r columnar.Scalar) (bool, error) {
		return !l.Equal(r), nil
	})}}
}

func NewGt(l, r Expr) *Gt {
	return &Gt{booleanBinary{Op: ">", Left: l, Right: r, fn: boolCombine(func(l, r columnar.Scalar) (bool, error) {
		return r.Less(l)
	})}}
}

func NewGtEq(l, r Expr) *GtEq {
	return &GtEq{booleanBinary{Op: ">=", Left: l, Right: r, fn: boolCombine(func(l, r columnar.Scalar) (bool, error) {
		lt, err := l.Less(r)
		return !lt, err
	})}}
}

func NewLt(l, r Expr) *Lt {
	return &Lt{booleanBinary{Op: "<", Left: l, Right: r, fn: boolCombine(func(l, r columnar.Scalar) (bool, error) {
		return l.Less(r)
	})}}
}

func NewLtEq(l, r Expr) *LtEq {
	return &LtEq{booleanBinary{Op: "<=", Left: l, Right: r, fn: boolCombine(func(l, r columnar.Scalar) (bool, error) {
		gt, err := r.Less(l)
		return !gt, err
	})}}
}

type mathBinary struct {
	Op    string
	Left  Expr
	Right Expr
	fn    rowFunc
}

func (e *mathBinary) String() string { return fmt.Sprintf("%s %s %s", e.Left, e.Op, e.Right) }
func (e *mathBinary) Evaluate(batch arrow.Record) (arrow.Array, error) {
	return evalBinary(batch, e.Left, e.Right, e.fn, nil)
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

func mathCombine(op string, intFn func(a, b int64) (int64, bool), floatFn func(a, b float64) float64) rowFunc {
	return func(l, r columnar.Scalar) (columnar.Scalar, error) {
		if !l.Valid || !r.Valid {
			return columnar.Scalar{}, errs.New(errs.Internal, "physical:"+op, "cannot operate on a null operand")
		}
		if l.Type.ID() != r.Type.ID() {
			return columnar.Scalar{}, errs.New(errs.Internal, "physical:"+op, "operand type mismatch")
		}
		switch l.Type.ID() {
		case arrow.INT64:
			v, ok := intFn(l.Int64(), r.Int64())
			if !ok {
				return columnar.Scalar{}, errs.New(errs.Internal, "physical:"+op, "int64 overflow")
			}
			return columnar.NewInt64Scalar(v), nil
		case arrow.FLOAT64:
			return columnar.NewFloat64Scalar(floatFn(l.Float64(), r.Float64())), nil
		default:
			return columnar.Scalar{}, errs.New(errs.Internal, "physical:"+op, "unsupported operand type for "+op)
		}
	}
}

func NewAdd(l, r Expr) *Add {
	return &Add{mathBinary{Op: "+", Left: l, Right: r, fn: mathCombine("+",
		func(a, b int64) (int64, bool) {
			sum := a + b
			if (b > 0 && sum < a) || (b < 0 && sum > a) {
				return 0, false
			}
			return sum, true
		},
		func(a, b float64) float64 { return a + b },
	)}}
}

func NewSubtract(l, r Expr) *Subtract {
	return &Subtract{mathBinary{Op: "-", Left: l, Right: r, fn: mathCombine("-",
		func(a, b int64) (int64, bool) {
			diff := a - b
			if (b < 0 && diff < a) || (b > 0 && diff > a) {
				return 0, false
			}
			return diff, true
		},
		func(a, b float64) float64 { return a - b },
	)}}
}

func NewMultiply(l, r Expr) *Multiply {
	return &Multiply{mathBinary{Op: "*", Left: l, Right: r, fn: mathCombine("*",
		func(a, b int64) (int64, bool) {
			if a == 0 || b == 0 {
				return 0, true
			}
			product := a * b
			if product/b != a {
				return 0, false
			}
			return product, true
		},
		func(a, b float64) float64 { return a * b },
	)}}
}

func NewDivide(l, r Expr) *Divide {
	return &Divide{mathBinary{Op: "/", Left: l, Right: r, fn: func(l, r columnar.Scalar) (columnar.Scalar, error) {
		if !l.Valid || !r.Valid {
			return columnar.Scalar{}, errs.New(errs.Internal, "physical:/", "cannot operate on a null operand")
		}
		if l.Type.ID() != r.Type.ID() {
			return columnar.Scalar{}, errs.New(errs.Internal, "physical:/", "operand type mismatch")
		}
		switch l.Type.ID() {
		case arrow.INT64:
			if r.Int64() == 0 {
				return columnar.Scalar{}, errs.New(errs.Internal, "physical:/", "division by zero")
			}
			return columnar.NewInt64Scalar(l.Int64() / r.Int64()), nil
		case arrow.FLOAT64:
			if r.Float64() == 0 {
				return columnar.Scalar{}, errs.New(errs.Internal, "physical:/", "division by zero")
			}
			return columnar.NewFloat64Scalar(l.Float64() / r.Float64()), nil
		default:
			return columnar.Scalar{}, errs.New(errs.Internal, "physical:/", "unsupported operand type for /")
		}
	}}}
}

func NewModulus(l, r Expr) *Modulus {
	return &Modulus{mathBinary{Op: "%", Left: l, Right: r, fn: func(l, r columnar.Scalar) (columnar.Scalar, error) {
		if !l.Valid || !r.Valid {
			return columnar.Scalar{}, errs.New(errs.Internal, "physical:%", "cannot operate on a null operand")
		}
		if l.Type.ID() != arrow.INT64 || r.Type.ID() != arrow.INT64 {
			return columnar.Scalar{}, errs.New(errs.Internal, "physical:%", "modulus requires int64 operands")
		}
		if r.Int64() == 0 {
			return columnar.Scalar{}, errs.New(errs.Internal, "physical:%", "division by zero")
		}
		return columnar.NewInt64Scalar(l.Int64() % r.Int64()), nil
	}}}
}

// Cast reinterprets Expr's evaluated value as DataType, per spec.md §4.6:
// int64<->float64 and numeric->utf8 are supported; any other pair is
// Unimplemented.
type Cast struct {
	Expr     Expr
	DataType arrow.DataType
}

func (*Cast) isExpr()          {}
func (e *Cast) String() string { return fmt.Sprintf("CAST(%s AS %s)", e.Expr, e.DataType) }
func (e *Cast) Evaluate(batch arrow.Record) (arrow.Array, error) {
	arr, err := e.Expr.Evaluate(batch)
	if err != nil {
		return nil, err
	}
	defer arr.Release()

	from := arr.DataType().ID()
	to := e.DataType.ID()
	if from == to {
		arr.Retain()
		return arr, nil
	}
	if !castSupported(from, to) {
		return nil, errs.New(errs.Unimplemented, "physical:Cast", fmt.Sprintf("cast from %s to %s is not supported", arr.DataType(), e.DataType))
	}

	n := arr.Len()
	values := make([]columnar.Scalar, n)
	for i := 0; i < n; i++ {
		s, err := columnar.ScalarAt(arr, i)
		if err != nil {
			return nil, err
		}
		if !s.Valid {
			values[i] = columnar.NewNullScalar(e.DataType)
			continue
		}
		values[i], err = castScalar(s, to)
		if err != nil {
			return nil, err
		}
	}
	return columnar.BuildArray(e.DataType, values)
}

func castSupported(from, to arrow.Type) bool {
	switch {
	case from == arrow.INT64 && to == arrow.FLOAT64:
		return true
	case from == arrow.FLOAT64 && to == arrow.INT64:
		return true
	case (from == arrow.INT64 || from == arrow.FLOAT64) && to == arrow.STRING:
		return true
	default:
		return false
	}
}

func castScalar(s columnar.Scalar, to arrow.Type) (columnar.Scalar, error) {
	switch to {
	case arrow.FLOAT64:
		return columnar.NewFloat64Scalar(float64(s.Int64())), nil
	case arrow.INT64:
		return columnar.NewInt64Scalar(int64(s.Float64())), nil
	case arrow.STRING:
		return columnar.NewStringScalar(s.String()), nil
	default:
		return columnar.Scalar{}, errs.New(errs.Unimplemented, "physical:Cast", "unsupported cast target")
	}
}
