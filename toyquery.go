// Package toyquery is the module's entry point: it wires the tokenizer,
// parser, logical planner, optimizer, query planner and physical engine
// into a single one-shot Execute call and a streaming ExecuteStream
// variant. Grounded on spec.md §2's data-flow diagram.
package toyquery

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/dr0pdb/toyquery/internal/columnar"
	"github.com/dr0pdb/toyquery/internal/dataframe"
	"github.com/dr0pdb/toyquery/internal/physical"
)

// ExecuteStream parses, plans, optimizes and lowers sql against catalog,
// returning a prepared physical.Plan the caller drains with repeated Next
// calls until physical.ErrEOF.
func ExecuteStream(sql string, catalog dataframe.Catalog) (physical.Plan, error) {
	ctx := &dataframe.ExecutionContext{Catalog: catalog}
	return ctx.Sql(sql)
}

// Execute runs sql against catalog and collects every output batch into a
// single arrow.Record, concatenating batches column by column. Returns a
// zero-row record (with the query's schema) if the query produces no rows.
func Execute(sql string, catalog dataframe.Catalog) (arrow.Record, error) {
	plan, err := ExecuteStream(sql, catalog)
	if err != nil {
		return nil, err
	}

	var batches []arrow.Record
	defer func() {
		for _, b := range batches {
			b.Release()
		}
	}()
	for {
		batch, err := plan.Next()
		if err == physical.ErrEOF {
			break
		}
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}

	return concat(plan.Schema(), batches)
}

// concat stacks batches' rows into a single record sharing schema. Arrow
// arrays are immutable and reference-counted, so rows are re-read through
// columnar.Scalar and rebuilt rather than sliced-and-appended in place.
func concat(schema *arrow.Schema, batches []arrow.Record) (arrow.Record, error) {
	if len(batches) == 1 {
		batches[0].Retain()
		return batches[0], nil
	}

	cols := make([]arrow.Array, len(schema.Fields()))
	for c := range schema.Fields() {
		var values []columnar.Scalar
		for _, batch := range batches {
			col := batch.Column(c)
			for r := 0; r < col.Len(); r++ {
				s, err := columnar.ScalarAt(col, r)
				if err != nil {
					return nil, err
				}
				values = append(values, s)
			}
		}
		arr, err := columnar.BuildArray(schema.Field(c).Type, values)
		if err != nil {
			return nil, err
		}
		cols[c] = arr
	}

	var n int64
	for _, batch := range batches {
		n += batch.NumRows()
	}
	return array.NewRecord(schema, cols, n), nil
}
