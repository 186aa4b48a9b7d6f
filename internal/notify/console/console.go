// Package console renders combined price tables to a terminal instead of
// posting them.
package console

import (
	"context"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/JakeFAU/agrishikyo-relay/internal/market"
	"github.com/JakeFAU/agrishikyo-relay/internal/notify"
)

// Printer writes tables to an io.Writer.
type Printer struct {
	out io.Writer
}

var _ notify.Notifier = (*Printer)(nil)

// New returns a Printer writing to out, or stdout when out is nil.
func New(out io.Writer) *Printer {
	if out == nil {
		out = os.Stdout
	}
	return &Printer{out: out}
}

// Notify implements notify.Notifier.
func (p *Printer) Notify(_ context.Context, t market.Table) error {
	w := table.NewWriter()
	w.SetOutputMirror(p.out)
	w.SetStyle(table.StyleRounded)

	header := make(table.Row, len(t.Headers))
	for i, h := range t.Headers {
		header[i] = h
	}
	w.AppendHeader(header)
	for _, rec := range t.Rows {
		row := make(table.Row, len(rec))
		for i, v := range rec {
			row[i] = v
		}
		w.AppendRow(row)
	}
	w.AppendFooter(table.Row{"rows", t.Len()})
	w.Render()
	return nil
}
