package columnar

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	arrowcsv "github.com/apache/arrow-go/v18/arrow/csv"

	"github.com/dr0pdb/toyquery/internal/errs"
)

// ErrEOF is returned by a RecordReader once it has been exhausted. It
// unifies the two end-of-stream signals spec.md's source material used
// (a NotFound error for scan exhaustion, a distinct sentinel for
// aggregation) into the single sentinel spec.md's Open Question #6 asks
// for.
var ErrEOF = errors.New("columnar: end of stream")

// RecordReader streams record batches from a columnar source, standing in
// for spec.md's TableBatchReader.
type RecordReader interface {
	// Schema returns the schema shared by every record this reader
	// produces.
	Schema() *arrow.Schema
	// Next returns the next record batch, or ErrEOF once exhausted.
	Next() (arrow.Record, error)
	// Close releases any resources (open files, decoder buffers) held by
	// the reader.
	Close() error
}

// CSVOptions configures opening a CSV file.
type CSVOptions struct {
	// Projection restricts the columns read from the file to this set, by
	// name. Empty/nil means every column from the header row.
	Projection []string
	// BatchSize hints how many rows each Next call should return. 0 means
	// the reader picks a default.
	BatchSize int
}

// OpenCSV opens a read-only CSV file with a header row, inferring the
// schema by sniffing the first data row's columns, per spec.md §6
// ("read-only CSV with header row; column names form the schema").
func OpenCSV(path string, opts CSVOptions) (RecordReader, error) {
	schema, err := sniffCSVSchema(path)
	if err != nil {
		return nil, err
	}

	projected := schema
	if len(opts.Projection) > 0 {
		projected, err = FilterSchema(schema, opts.Projection)
		if err != nil {
			return nil, err
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "columnar:csv", "opening "+path, err)
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 1024
	}

	reader := arrowcsv.NewReader(
		f,
		schema,
		arrowcsv.WithAllocator(Allocator),
		arrowcsv.WithHeader(true),
		arrowcsv.WithComma(','),
		arrowcsv.WithChunk(batchSize),
	)

	return &csvReader{file: f, reader: reader, fullSchema: schema, schema: projected}, nil
}

type csvReader struct {
	file       *os.File
	reader     *arrowcsv.Reader
	fullSchema *arrow.Schema
	schema     *arrow.Schema
}

func (r *csvReader) Schema() *arrow.Schema { return r.schema }

func (r *csvReader) Next() (arrow.Record, error) {
	if !r.reader.Next() {
		if err := r.reader.Err(); err != nil && err != io.EOF {
			return nil, errs.Wrap(errs.Internal, "columnar:csv", "reading record", err)
		}
		return nil, ErrEOF
	}

	rec := r.reader.Record()
	if r.schema.Equal(r.fullSchema) {
		rec.Retain()
		return rec, nil
	}
	return projectRecord(rec, r.fullSchema, r.schema), nil
}

func (r *csvReader) Close() error {
	return r.file.Close()
}

func projectRecord(rec arrow.Record, full, projected *arrow.Schema) arrow.Record {
	cols := make([]arrow.Array, len(projected.Fields()))
	for i, f := range projected.Fields() {
		idx, _ := FieldIndex(full, f.Name)
		cols[i] = rec.Column(idx)
		cols[i].Retain()
	}
	return array.NewRecord(projected, cols, rec.NumRows())
}

// sniffCSVSchema reads the header row for column names and the first data
// row to guess a type per column, trying in order: "true"/"false"
// (case-insensitively) => boolean, anything strconv.ParseInt accepts =>
// int64, anything strconv.ParseFloat accepts => float64, anything else =>
// utf8.
func sniffCSVSchema(path string) (*arrow.Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "columnar:csv", "opening "+path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return nil, errs.New(errs.Internal, "columnar:csv", "empty CSV file: "+path)
	}
	names := strings.Split(scanner.Text(), ",")

	var sampleTypes []arrow.DataType
	if scanner.Scan() {
		sampleTypes = sniffTypes(strings.Split(scanner.Text(), ","))
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.Wrap(errs.Internal, "columnar:csv", "reading "+path, err)
	}

	fields := make([]arrow.Field, len(names))
	for i, name := range names {
		var dt arrow.DataType = Utf8
		if i < len(sampleTypes) {
			dt = sampleTypes[i]
		}
		fields[i] = arrow.Field{Name: strings.TrimSpace(name), Type: dt}
	}
	return arrow.NewSchema(fields, nil), nil
}

func sniffTypes(values []string) []arrow.DataType {
	types := make([]arrow.DataType, len(values))
	for i, v := range values {
		v = strings.TrimSpace(v)
		switch {
		case isBool(v):
			types[i] = Boolean
		case isInt(v):
			types[i] = Int64
		case isFloat(v):
			types[i] = Float64
		default:
			types[i] = Utf8
		}
	}
	return types
}

func isBool(s string) bool {
	return strings.EqualFold(s, "true") || strings.EqualFold(s, "false")
}

func isInt(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

func isFloat(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
