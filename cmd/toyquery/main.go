// Command toyquery is a one-shot CLI: register a single CSV table and run
// one SQL query against it, printing the result through the standard log
// package (stderr). Grounded on
// cranedb's cmd/server/main.go for its flag-driven setup and log.Fatalf
// error handling.
package main

import (
	"flag"
	"log"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/dr0pdb/toyquery/internal/columnar"
	"github.com/dr0pdb/toyquery/internal/dataframe"
)

func main() {
	table := flag.String("table", "t", "table name the CSV is registered under")
	csvPath := flag.String("csv", "", "path to a CSV file with a header row")
	sql := flag.String("sql", "", "SQL query to run against the registered table")
	flag.Parse()

	if *csvPath == "" || *sql == "" {
		log.Fatalf("toyquery: both -csv and -sql are required")
	}

	ctx := dataframe.NewExecutionContext()
	if _, err := ctx.RegisterCSV(*table, *csvPath); err != nil {
		log.Fatalf("toyquery: registering %s: %v", *csvPath, err)
	}

	plan, err := ctx.Sql(*sql)
	if err != nil {
		log.Fatalf("toyquery: %v", err)
	}

	schema := plan.Schema()
	log.Printf("columns: %s", strings.Join(fieldNames(schema), ", "))

	rows := 0
	for {
		batch, err := plan.Next()
		if err == columnar.ErrEOF {
			break
		}
		if err != nil {
			log.Fatalf("toyquery: %v", err)
		}
		printBatch(batch)
		rows += int(batch.NumRows())
		batch.Release()
	}
	log.Printf("%d row(s)", rows)
}

func fieldNames(schema *arrow.Schema) []string {
	fields := schema.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

func printBatch(batch arrow.Record) {
	for r := 0; r < int(batch.NumRows()); r++ {
		values := make([]string, batch.NumCols())
		for c := 0; c < int(batch.NumCols()); c++ {
			s, err := columnar.ScalarAt(batch.Column(c), r)
			if err != nil {
				log.Fatalf("toyquery: %v", err)
			}
			values[c] = s.String()
		}
		log.Print(strings.Join(values, ", "))
	}
}
