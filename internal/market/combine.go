package market

import (
	"fmt"
	"slices"
)

// DefaultCities is the whitelist applied to every report.
var DefaultCities = []string{"札幌市", "東京都", "大阪市", "福岡市"}

// Combine concatenates fragments in order. All fragments must share the same
// headers and carry one value per header in every row; zero fragments yield
// an empty table.
func Combine(fragments ...Table) (Table, error) {
	if len(fragments) == 0 {
		return Table{}, nil
	}
	out := Table{Headers: slices.Clone(fragments[0].Headers)}
	for i, frag := range fragments {
		if !slices.Equal(frag.Headers, out.Headers) {
			return Table{}, fmt.Errorf("%w: fragment %d has %v, want %v",
				ErrSchemaMismatch, i, frag.Headers, out.Headers)
		}
		if err := frag.Validate(); err != nil {
			return Table{}, fmt.Errorf("fragment %d: %w", i, err)
		}
		for _, row := range frag.Rows {
			out.Rows = append(out.Rows, slices.Clone(row))
		}
	}
	return out, nil
}

// FilterCities keeps the rows whose city column is one of cities, in order.
func FilterCities(t Table, cities []string) (Table, error) {
	col := t.ColumnIndex(ColumnCity)
	if col < 0 {
		return Table{}, fmt.Errorf("%w: %s", ErrMissingColumn, ColumnCity)
	}
	allowed := make(map[string]struct{}, len(cities))
	for _, c := range cities {
		allowed[c] = struct{}{}
	}
	out := Table{Headers: slices.Clone(t.Headers), Rows: []Record{}}
	for _, row := range t.Rows {
		if col >= len(row) {
			continue
		}
		if _, ok := allowed[row[col]]; ok {
			out.Rows = append(out.Rows, slices.Clone(row))
		}
	}
	return out, nil
}
