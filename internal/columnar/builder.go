package columnar

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/dr0pdb/toyquery/internal/errs"
)

// Allocator is the shared memory allocator used throughout the engine.
// Arrow arrays are reference-counted buffers; the engine always uses the
// simple Go-heap allocator, matching the teacher pack's own examples
// (grafana-loki's executor tests and hugr-lab-airport-go's basic example
// both build arrays with a plain Go allocator rather than a pooled one,
// since this engine has no cgo/off-heap requirement).
var Allocator = memory.NewGoAllocator()

// NewBuilder returns a fresh array.Builder for dt. dt must be one of the
// four supported types.
func NewBuilder(dt arrow.DataType) (array.Builder, error) {
	switch dt.ID() {
	case arrow.BOOL:
		return array.NewBooleanBuilder(Allocator), nil
	case arrow.INT64:
		return array.NewInt64Builder(Allocator), nil
	case arrow.FLOAT64:
		return array.NewFloat64Builder(Allocator), nil
	case arrow.STRING:
		return array.NewStringBuilder(Allocator), nil
	default:
		return nil, errs.New(errs.Internal, "columnar", "unsupported builder type "+dt.Name())
	}
}

// AppendScalar appends s onto builder. builder's type must match s.Type;
// a null scalar appends a null entry.
func AppendScalar(builder array.Builder, s Scalar) error {
	if !s.Valid {
		builder.AppendNull()
		return nil
	}
	switch b := builder.(type) {
	case *array.BooleanBuilder:
		b.Append(s.Bool())
	case *array.Int64Builder:
		b.Append(s.Int64())
	case *array.Float64Builder:
		b.Append(s.Float64())
	case *array.StringBuilder:
		b.Append(s.Str())
	default:
		return errs.New(errs.Internal, "columnar", "unsupported builder for scalar append")
	}
	return nil
}

// BuildArray materializes values into a single array of type dt.
func BuildArray(dt arrow.DataType, values []Scalar) (arrow.Array, error) {
	builder, err := NewBuilder(dt)
	if err != nil {
		return nil, err
	}
	defer builder.Release()

	for _, v := range values {
		if err := AppendScalar(builder, v); err != nil {
			return nil, err
		}
	}
	return builder.NewArray(), nil
}

// ConstantArray builds an array of length n where every entry is value,
// used to materialize literal expressions against a batch of n rows.
func ConstantArray(value Scalar, n int) (arrow.Array, error) {
	values := make([]Scalar, n)
	for i := range values {
		values[i] = value
	}
	return BuildArray(value.Type, values)
}

// ArrayAt is a convenience wrapper combining FieldIndex and column access
// for a single named column of a record.
func ArrayAt(rec arrow.Record, name string) (arrow.Array, error) {
	idx, err := FieldIndex(rec.Schema(), name)
	if err != nil {
		return nil, err
	}
	return rec.Column(idx), nil
}
