package physical

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/dr0pdb/toyquery/internal/columnar"
)

// AggregateExpr pairs an aggregate's input expression with the accumulator
// constructor for its kind and its resolved output field, as lowered by
// the query planner (C8) from a logical Sum/Min/Max/Avg/Count node.
type AggregateExpr struct {
	Input          Expr
	NewAccumulator func() Accumulator
	Field          arrow.Field
}

// HashAggregation groups Input's rows by GroupBy and computes Aggregates
// per group, per spec.md §4.6's single-pass, blocking-on-first-Next
// algorithm.
type HashAggregation struct {
	Input      Plan
	GroupBy    []Expr
	Aggregates []AggregateExpr
	schema     *arrow.Schema

	computed bool
	result   arrow.Record
	consumed bool
}

// NewHashAggregation returns a HashAggregation node with its output schema
// fixed at construction (groups ++ aggregate fields, per spec.md §4.3).
func NewHashAggregation(input Plan, groupBy []Expr, aggregates []AggregateExpr, schema *arrow.Schema) *HashAggregation {
	return &HashAggregation{Input: input, GroupBy: groupBy, Aggregates: aggregates, schema: schema}
}

func (p *HashAggregation) String() string {
	return fmt.Sprintf("PhHashAggregation(groups=%d, aggs=%d)", len(p.GroupBy), len(p.Aggregates))
}
func (p *HashAggregation) Schema() *arrow.Schema { return p.schema }
func (p *HashAggregation) Prepare() error        { return p.Input.Prepare() }

type groupState struct {
	keyScalars []columnar.Scalar
	accs       []Accumulator
}

func (p *HashAggregation) Next() (arrow.Record, error) {
	if !p.computed {
		if err := p.compute(); err != nil {
			return nil, err
		}
		p.computed = true
	}
	if p.consumed {
		return nil, ErrEOF
	}
	p.consumed = true
	p.result.Retain()
	return p.result, nil
}

func (p *HashAggregation) compute() error {
	groups := make(map[string]*groupState)
	var order []string

	// A query with no GROUP BY still produces exactly one row — the
	// aggregate over the whole input, even if the input is empty — by
	// seeding the single implicit group up front.
	if len(p.GroupBy) == 0 {
		groups[""] = p.newGroupState(nil)
		order = append(order, "")
	}

	for {
		batch, err := p.Input.Next()
		if err == ErrEOF {
			break
		}
		if err != nil {
			return err
		}

		if err := p.accumulateBatch(batch, groups, &order); err != nil {
			batch.Release()
			return err
		}
		batch.Release()
	}

	result, err := p.buildResult(groups, order)
	if err != nil {
		return err
	}
	p.result = result
	return nil
}

func (p *HashAggregation) accumulateBatch(batch arrow.Record, groups map[string]*groupState, order *[]string) error {
	gkArrays := make([]arrow.Array, len(p.GroupBy))
	for i, e := range p.GroupBy {
		arr, err := e.Evaluate(batch)
		if err != nil {
			return err
		}
		defer arr.Release()
		gkArrays[i] = arr
	}

	inputArrays := make([]arrow.Array, len(p.Aggregates))
	for i, agg := range p.Aggregates {
		arr, err := agg.Input.Evaluate(batch)
		if err != nil {
			return err
		}
		defer arr.Release()
		inputArrays[i] = arr
	}

	n := int(batch.NumRows())
	for r := 0; r < n; r++ {
		keyScalars := make([]columnar.Scalar, len(gkArrays))
		for gi, arr := range gkArrays {
			s, err := columnar.ScalarAt(arr, r)
			if err != nil {
				return err
			}
			keyScalars[gi] = s
		}
		key := keyString(keyScalars)

		state, ok := groups[key]
		if !ok {
			state = p.newGroupState(keyScalars)
			groups[key] = state
			*order = append(*order, key)
		}

		for ai, arr := range inputArrays {
			v, err := columnar.ScalarAt(arr, r)
			if err != nil {
				return err
			}
			if err := state.accs[ai].Accumulate(v); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *HashAggregation) newGroupState(keyScalars []columnar.Scalar) *groupState {
	accs := make([]Accumulator, len(p.Aggregates))
	for i, agg := range p.Aggregates {
		accs[i] = agg.NewAccumulator()
	}
	return &groupState{keyScalars: keyScalars, accs: accs}
}

func (p *HashAggregation) buildResult(groups map[string]*groupState, order []string) (arrow.Record, error) {
	builders := make([]array.Builder, len(p.schema.Fields()))
	for i, f := range p.schema.Fields() {
		b, err := columnar.NewBuilder(f.Type)
		if err != nil {
			return nil, err
		}
		builders[i] = b
	}
	defer func() {
		for _, b := range builders {
			b.Release()
		}
	}()

	for _, key := range order {
		state := groups[key]
		col := 0
		for _, k := range state.keyScalars {
			if err := columnar.AppendScalar(builders[col], k); err != nil {
				return nil, err
			}
			col++
		}
		for _, acc := range state.accs {
			if err := columnar.AppendScalar(builders[col], acc.Final()); err != nil {
				return nil, err
			}
			col++
		}
	}

	cols := make([]arrow.Array, len(builders))
	for i, b := range builders {
		cols[i] = b.NewArray()
	}
	return array.NewRecord(p.schema, cols, int64(len(order))), nil
}

// keyString builds a map key from a group-by tuple: each scalar's type id
// and printed value, joined by a separator that cannot appear in any of
// the four supported value types' own text form.
func keyString(scalars []columnar.Scalar) string {
	parts := make([]string, len(scalars))
	for i, s := range scalars {
		parts[i] = fmt.Sprintf("%d:%s", s.Type.ID(), s.String())
	}
	return strings.Join(parts, "\x1f")
}
