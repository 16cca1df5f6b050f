package columnar

import (
	"fmt"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/dr0pdb/toyquery/internal/errs"
)

// Scalar is a single, possibly-null typed value — the engine's stand-in for
// spec.md's Scalar<T>. It carries its own small union of the four
// supported payload kinds rather than a wrapped arrow/scalar.Scalar, since
// every consumer in this engine only ever needs value access, equality,
// ordering and hashing over these four types.
type Scalar struct {
	Type  arrow.DataType
	Valid bool

	boolVal   bool
	int64Val  int64
	floatVal  float64
	stringVal string
}

// NewNullScalar returns an invalid (null) scalar of the given type.
func NewNullScalar(dt arrow.DataType) Scalar {
	return Scalar{Type: dt, Valid: false}
}

// NewBoolScalar returns a valid boolean scalar.
func NewBoolScalar(v bool) Scalar {
	return Scalar{Type: Boolean, Valid: true, boolVal: v}
}

// NewInt64Scalar returns a valid int64 scalar.
func NewInt64Scalar(v int64) Scalar {
	return Scalar{Type: Int64, Valid: true, int64Val: v}
}

// NewFloat64Scalar returns a valid float64 scalar.
func NewFloat64Scalar(v float64) Scalar {
	return Scalar{Type: Float64, Valid: true, floatVal: v}
}

// NewStringScalar returns a valid utf8 scalar.
func NewStringScalar(v string) Scalar {
	return Scalar{Type: Utf8, Valid: true, stringVal: v}
}

// Bool returns the scalar's boolean payload. Only meaningful when Type is
// Boolean and Valid is true.
func (s Scalar) Bool() bool { return s.boolVal }

// Int64 returns the scalar's int64 payload. Only meaningful when Type is
// Int64 and Valid is true.
func (s Scalar) Int64() int64 { return s.int64Val }

// Float64 returns the scalar's float64 payload. Only meaningful when Type
// is Float64 and Valid is true.
func (s Scalar) Float64() float64 { return s.floatVal }

// String returns a human-readable rendering of the scalar, and also
// implements fmt.Stringer so scalars print sensibly in error messages.
func (s Scalar) String() string {
	if !s.Valid {
		return "NULL"
	}
	switch s.Type.ID() {
	case arrow.BOOL:
		return strconv.FormatBool(s.boolVal)
	case arrow.INT64:
		return strconv.FormatInt(s.int64Val, 10)
	case arrow.FLOAT64:
		return strconv.FormatFloat(s.floatVal, 'g', -1, 64)
	case arrow.STRING:
		return s.stringVal
	default:
		return fmt.Sprintf("<%s>", s.Type)
	}
}

// Str returns the scalar's string payload. Only meaningful when Type is
// Utf8 and Valid is true.
func (s Scalar) Str() string { return s.stringVal }

// ScalarAt reads the value at row i of arr as a Scalar. arr must be one of
// the four supported array kinds; any other type is an Internal error,
// since it indicates an unsupported type slipped past planning.
func ScalarAt(arr arrow.Array, i int) (Scalar, error) {
	dt := arr.DataType()
	if arr.IsNull(i) {
		return NewNullScalar(dt), nil
	}

	switch dt.ID() {
	case arrow.BOOL:
		return NewBoolScalar(arr.(*array.Boolean).Value(i)), nil
	case arrow.INT64:
		return NewInt64Scalar(arr.(*array.Int64).Value(i)), nil
	case arrow.FLOAT64:
		return NewFloat64Scalar(arr.(*array.Float64).Value(i)), nil
	case arrow.STRING:
		return NewStringScalar(arr.(*array.String).Value(i)), nil
	default:
		return Scalar{}, errs.New(errs.Internal, "columnar", "unsupported array type "+dt.Name())
	}
}

// Equal reports value equality between two scalars. Two nulls are
// considered equal to each other only when comparing via Equal directly;
// comparison-expression semantics (where null compares unequal to
// everything, see SPEC_FULL.md §4.6) are implemented by the caller, not
// here.
func (s Scalar) Equal(o Scalar) bool {
	if s.Valid != o.Valid {
		return false
	}
	if !s.Valid {
		return true
	}
	switch s.Type.ID() {
	case arrow.BOOL:
		return s.boolVal == o.boolVal
	case arrow.INT64:
		return s.int64Val == o.int64Val
	case arrow.FLOAT64:
		return s.floatVal == o.floatVal
	case arrow.STRING:
		return s.stringVal == o.stringVal
	default:
		return false
	}
}

// Less reports whether s orders before o. Booleans compare false < true,
// numerics compare numerically, strings compare lexicographically. Either
// operand being null, or the two operands having different types, is an
// Internal error — callers are expected to have already verified operand
// types and nullness via the type-inference and null-policy rules.
func (s Scalar) Less(o Scalar) (bool, error) {
	if !s.Valid || !o.Valid {
		return false, errs.New(errs.Internal, "columnar", "cannot order a null scalar")
	}
	if s.Type.ID() != o.Type.ID() {
		return false, errs.New(errs.Internal, "columnar", "cannot order scalars of different types")
	}
	switch s.Type.ID() {
	case arrow.BOOL:
		return !s.boolVal && o.boolVal, nil
	case arrow.INT64:
		return s.int64Val < o.int64Val, nil
	case arrow.FLOAT64:
		return s.floatVal < o.floatVal, nil
	case arrow.STRING:
		return s.stringVal < o.stringVal, nil
	default:
		return false, errs.New(errs.Internal, "columnar", "unsupported type for ordering")
	}
}

// Hash returns a hash of the scalar's value. Hash aggregation does not use
// it (it keys groups by a string encoding of the scalars). Distinct types or
// distinct values may (rarely) collide, so a caller confirms a match with
// Equal.
func (s Scalar) Hash() uint64 {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211

	h := uint64(offset64)
	mix := func(b byte) {
		h ^= uint64(b)
		h *= prime64
	}
	mixString := func(str string) {
		for i := 0; i < len(str); i++ {
			mix(str[i])
		}
	}

	if !s.Valid {
		mix(0)
		return h
	}

	switch s.Type.ID() {
	case arrow.BOOL:
		if s.boolVal {
			mix(1)
		} else {
			mix(0)
		}
	case arrow.INT64:
		v := uint64(s.int64Val)
		for i := 0; i < 8; i++ {
			mix(byte(v >> (8 * i)))
		}
	case arrow.FLOAT64:
		mixString(strconv.FormatFloat(s.floatVal, 'g', -1, 64))
	case arrow.STRING:
		mixString(s.stringVal)
	}
	return h
}
