// Package report navigates to the per-item average price report and turns its
// rendered tables into market.Table fragments.
//
// The report page has no stable identifiers for its tables; Schema names the
// role each positional element plays so that a layout change fails with a
// descriptive error instead of silently misreading the page.
package report
