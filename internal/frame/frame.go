// Package frame holds the in-memory tabular representation built from
// normalized query results. A Frame is one assembly unit: a batched read
// produces one Frame per row batch.
package frame

import "sort"

// Record is a single raw row as reported by a driver, keyed by column name.
type Record map[string]any

// Frame is a finite, ordered table. Rows follow the driver-reported order;
// values in each row follow the Columns order.
type Frame struct {
	Columns []string
	Rows    [][]any
}

// Build assembles one frame from a uniform batch of records. When columns is
// nil the column set is inferred from the records themselves.
func Build(columns []string, records []Record) *Frame {
	if columns == nil {
		columns = InferColumns(records)
	}

	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		row := make([]any, len(columns))
		for i, col := range columns {
			row[i] = rec[col]
		}
		rows = append(rows, row)
	}

	return &Frame{
		Columns: columns,
		Rows:    rows,
	}
}

// InferColumns derives a deterministic column order for schemaless sources:
// the first record's keys sorted, then any key that only appears in later
// records, also sorted per record. SQL sources carry their own order and
// bypass inference.
func InferColumns(records []Record) []string {
	var columns []string
	seen := make(map[string]bool)

	for _, rec := range records {
		fresh := make([]string, 0, len(rec))
		for key := range rec {
			if !seen[key] {
				seen[key] = true
				fresh = append(fresh, key)
			}
		}
		sort.Strings(fresh)
		columns = append(columns, fresh...)
	}
	return columns
}

// Height returns the number of rows.
func (f *Frame) Height() int {
	return len(f.Rows)
}

// Width returns the number of columns.
func (f *Frame) Width() int {
	return len(f.Columns)
}

// Column returns the values of a named column, or false if absent.
func (f *Frame) Column(name string) ([]any, bool) {
	for i, col := range f.Columns {
		if col == name {
			out := make([]any, 0, len(f.Rows))
			for _, row := range f.Rows {
				out = append(out, row[i])
			}
			return out, true
		}
	}
	return nil, false
}

// Concat appends the rows of other to f. The caller is responsible for only
// concatenating frames that share a schema (batches of one read do).
func (f *Frame) Concat(other *Frame) *Frame {
	out := &Frame{
		Columns: f.Columns,
		Rows:    make([][]any, 0, len(f.Rows)+len(other.Rows)),
	}
	out.Rows = append(out.Rows, f.Rows...)
	out.Rows = append(out.Rows, other.Rows...)
	return out
}
