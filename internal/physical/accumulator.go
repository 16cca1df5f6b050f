package physical

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/dr0pdb/toyquery/internal/columnar"
	"github.com/dr0pdb/toyquery/internal/errs"
)

// Accumulator is the running state of a single aggregate over one group's
// rows (C9), grounded on original_source/src/physicalplan/accumulator.cc.
// Each concrete accumulator holds at most one current Scalar.
type Accumulator interface {
	// Accumulate folds v into the accumulator's running state. A null v
	// is ignored (standard aggregate NULL-skipping).
	Accumulate(v columnar.Scalar) error
	// Final returns the accumulated value, or a null scalar of the
	// declared type if Accumulate was never called with a non-null value
	// (CountAcc returns 0 in that case).
	Final() columnar.Scalar
}

// MaxAcc tracks the maximum value accumulated.
type MaxAcc struct {
	dt      arrow.DataType
	current columnar.Scalar
	hasVal  bool
}

// NewMaxAccumulator returns a fresh MaxAcc for the aggregate's declared type.
func NewMaxAccumulator(dt arrow.DataType) Accumulator { return &MaxAcc{dt: dt} }

func (a *MaxAcc) Accumulate(v columnar.Scalar) error {
	if !v.Valid {
		return nil
	}
	if !a.hasVal {
		a.current, a.hasVal = v, true
		return nil
	}
	less, err := a.current.Less(v)
	if err != nil {
		return err
	}
	if less {
		a.current = v
	}
	return nil
}

func (a *MaxAcc) Final() columnar.Scalar {
	if !a.hasVal {
		return columnar.NewNullScalar(a.dt)
	}
	return a.current
}

// MinAcc tracks the minimum value accumulated.
type MinAcc struct {
	dt      arrow.DataType
	current columnar.Scalar
	hasVal  bool
}

func NewMinAccumulator(dt arrow.DataType) Accumulator { return &MinAcc{dt: dt} }

func (a *MinAcc) Accumulate(v columnar.Scalar) error {
	if !v.Valid {
		return nil
	}
	if !a.hasVal {
		a.current, a.hasVal = v, true
		return nil
	}
	less, err := v.Less(a.current)
	if err != nil {
		return err
	}
	if less {
		a.current = v
	}
	return nil
}

func (a *MinAcc) Final() columnar.Scalar {
	if !a.hasVal {
		return columnar.NewNullScalar(a.dt)
	}
	return a.current
}

// SumAcc tracks a running numeric sum or, for utf8, a running
// concatenation — per original_source's accumulator.cc, which concatenates
// strings under SUM rather than rejecting them.
type SumAcc struct {
	dt      arrow.DataType
	current columnar.Scalar
	hasVal  bool
}

func NewSumAccumulator(dt arrow.DataType) Accumulator { return &SumAcc{dt: dt} }

func (a *SumAcc) Accumulate(v columnar.Scalar) error {
	if !v.Valid {
		return nil
	}
	if !a.hasVal {
		a.current, a.hasVal = v, true
		return nil
	}
	switch a.current.Type.ID() {
	case arrow.INT64:
		sum := a.current.Int64() + v.Int64()
		if (v.Int64() > 0 && sum < a.current.Int64()) || (v.Int64() < 0 && sum > a.current.Int64()) {
			return errs.New(errs.Internal, "physical:SumAcc", "int64 overflow")
		}
		a.current = columnar.NewInt64Scalar(sum)
	case arrow.FLOAT64:
		a.current = columnar.NewFloat64Scalar(a.current.Float64() + v.Float64())
	case arrow.STRING:
		a.current = columnar.NewStringScalar(a.current.Str() + v.Str())
	default:
		return errs.New(errs.Internal, "physical:SumAcc", "unsupported type for SUM")
	}
	return nil
}

func (a *SumAcc) Final() columnar.Scalar {
	if !a.hasVal {
		return columnar.NewNullScalar(a.dt)
	}
	return a.current
}

// AvgAcc tracks a running numeric mean. Supplemented beyond spec.md's
// three named accumulators (Max/Min/Sum) since AVG is one of the five
// aggregate functions spec.md's own function list names.
type AvgAcc struct {
	dt    arrow.DataType
	sum   float64
	count int64
}

func NewAvgAccumulator(dt arrow.DataType) Accumulator { return &AvgAcc{dt: dt} }

func (a *AvgAcc) Accumulate(v columnar.Scalar) error {
	if !v.Valid {
		return nil
	}
	switch v.Type.ID() {
	case arrow.INT64:
		a.sum += float64(v.Int64())
	case arrow.FLOAT64:
		a.sum += v.Float64()
	default:
		return errs.New(errs.Internal, "physical:AvgAcc", "unsupported type for AVG")
	}
	a.count++
	return nil
}

func (a *AvgAcc) Final() columnar.Scalar {
	if a.count == 0 {
		return columnar.NewNullScalar(columnar.Float64)
	}
	return columnar.NewFloat64Scalar(a.sum / float64(a.count))
}

// CountAcc counts non-null values accumulated; its result is always int64
// per the logical-layer decision that Count's field type is pinned to
// int64 regardless of its input expression's type.
type CountAcc struct {
	count int64
}

func NewCountAccumulator(arrow.DataType) Accumulator { return &CountAcc{} }

func (a *CountAcc) Accumulate(v columnar.Scalar) error {
	if v.Valid {
		a.count++
	}
	return nil
}

func (a *CountAcc) Final() columnar.Scalar {
	return columnar.NewInt64Scalar(a.count)
}
