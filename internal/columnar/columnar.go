// Package columnar is the thin adapter (C1) between the query engine and
// the external columnar runtime. The engine assumes a generic columnar
// library providing typed arrays, scalars, schema/field metadata and
// record-batch readers; here that library is Apache Arrow
// (github.com/apache/arrow-go/v18). Everything in this package restricts
// Arrow's much larger type zoo down to the four types the engine supports:
// boolean, int64, float64 and utf8.
package columnar

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/dr0pdb/toyquery/internal/errs"
)

// Supported data types, per spec.md §3's closed set {boolean, int64,
// float64, utf8}.
var (
	Boolean = arrow.FixedWidthTypes.Boolean
	Int64   = arrow.PrimitiveTypes.Int64
	Float64 = arrow.PrimitiveTypes.Float64
	Utf8    = arrow.BinaryTypes.String
)

// IsSupported reports whether dt is one of the four types the engine
// understands.
func IsSupported(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.BOOL, arrow.INT64, arrow.FLOAT64, arrow.STRING:
		return true
	default:
		return false
	}
}

// FieldIndex returns the position of name within schema, or a NotFound
// error if no field with that name exists.
func FieldIndex(schema *arrow.Schema, name string) (int, error) {
	for i, f := range schema.Fields() {
		if f.Name == name {
			return i, nil
		}
	}
	return -1, errs.New(errs.NotFound, "columnar", "unknown column "+name)
}

// Field returns the field named name from schema, or a NotFound error.
func Field(schema *arrow.Schema, name string) (arrow.Field, error) {
	idx, err := FieldIndex(schema, name)
	if err != nil {
		return arrow.Field{}, err
	}
	return schema.Field(idx), nil
}

// FilterSchema returns the subset of schema's fields whose names appear in
// projection, preserved in the order schema itself declares them (not the
// order given in projection). An empty projection returns schema
// unchanged. A name in projection that schema doesn't have is a NotFound
// error.
func FilterSchema(schema *arrow.Schema, projection []string) (*arrow.Schema, error) {
	if len(projection) == 0 {
		return schema, nil
	}

	wanted := make(map[string]bool, len(projection))
	for _, name := range projection {
		wanted[name] = true
	}

	fields := make([]arrow.Field, 0, len(projection))
	seen := make(map[string]bool, len(projection))
	for _, f := range schema.Fields() {
		if wanted[f.Name] {
			fields = append(fields, f)
			seen[f.Name] = true
		}
	}

	for name := range wanted {
		if !seen[name] {
			return nil, errs.New(errs.NotFound, "columnar", "unknown column "+name)
		}
	}

	return arrow.NewSchema(fields, nil), nil
}

// UniqueNames reports whether every field in schema has a distinct name,
// per the engine-wide invariant that every plan's schema has unique field
// names.
func UniqueNames(schema *arrow.Schema) bool {
	seen := make(map[string]bool, len(schema.Fields()))
	for _, f := range schema.Fields() {
		if seen[f.Name] {
			return false
		}
		seen[f.Name] = true
	}
	return true
}
