package market

import (
	"errors"
	"fmt"
	"slices"
)

// Column names prefixed to every extracted row, plus the city column the
// report itself provides.
const (
	ColumnTradeDate  = "取引日"
	ColumnTradeMonth = "取引年月"
	ColumnItem       = "品目"
	ColumnCity       = "都市"
)

var (
	// ErrSchemaMismatch is returned when tables with different headers are combined.
	ErrSchemaMismatch = errors.New("table headers differ")
	// ErrMissingColumn is returned when a required column is absent from a table.
	ErrMissingColumn = errors.New("column not found")
	// ErrRowShape is returned when a row does not carry one value per header.
	ErrRowShape = errors.New("row width does not match headers")
)

// Record is one price row. Values line up with the owning table's headers.
type Record []string

// Table is an ordered set of records sharing one column schema.
type Table struct {
	Headers []string
	Rows    []Record
}

// Len returns the number of rows.
func (t Table) Len() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of name in the headers, or -1.
func (t Table) ColumnIndex(name string) int {
	return slices.Index(t.Headers, name)
}

// Value returns the value of column name in row i.
func (t Table) Value(i int, name string) (string, error) {
	col := t.ColumnIndex(name)
	if col < 0 {
		return "", fmt.Errorf("%w: %s", ErrMissingColumn, name)
	}
	if i < 0 || i >= len(t.Rows) {
		return "", fmt.Errorf("row %d out of range (rows=%d)", i, len(t.Rows))
	}
	row := t.Rows[i]
	if col >= len(row) {
		return "", fmt.Errorf("%w: row %d has %d values", ErrRowShape, i, len(row))
	}
	return row[col], nil
}

// Validate checks that every row carries exactly one value per header.
func (t Table) Validate() error {
	for i, row := range t.Rows {
		if len(row) != len(t.Headers) {
			return fmt.Errorf("%w: row %d has %d values, headers have %d",
				ErrRowShape, i, len(row), len(t.Headers))
		}
	}
	return nil
}
