package report

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrNoCity indicates a data cell appeared before any city cell.
	ErrNoCity = errors.New("data cell before any city cell")
	// ErrUnterminatedRow indicates the cells ended in the middle of a row.
	ErrUnterminatedRow = errors.New("row not closed by graph marker")
)

// CellKind classifies a data-table cell.
type CellKind int

const (
	// DataCell holds one price column value.
	DataCell CellKind = iota
	// CityCell names the city for the rows that follow.
	CityCell
	// GraphMarker is the trailing graph link that closes a row.
	GraphMarker
)

func (k CellKind) String() string {
	switch k {
	case DataCell:
		return "data"
	case CityCell:
		return "city"
	case GraphMarker:
		return "graph-marker"
	default:
		return fmt.Sprintf("CellKind(%d)", int(k))
	}
}

// Cell is one classified cell in document order.
type Cell struct {
	Kind CellKind
	Text string
}

// ParserState is the state of a RowParser.
type ParserState int

const (
	// AwaitingRowStart means no row is open.
	AwaitingRowStart ParserState = iota
	// AccumulatingRow means data cells are being appended to an open row.
	AccumulatingRow
)

func (s ParserState) String() string {
	if s == AccumulatingRow {
		return "accumulating-row"
	}
	return "awaiting-row-start"
}

type transition func(p *RowParser, c Cell) (ParserState, error)

var transitions = map[ParserState]map[CellKind]transition{
	AwaitingRowStart: {
		CityCell:    (*RowParser).setCity,
		DataCell:    (*RowParser).openRow,
		GraphMarker: (*RowParser).skip,
	},
	AccumulatingRow: {
		CityCell:    (*RowParser).setCity,
		DataCell:    (*RowParser).appendValue,
		GraphMarker: (*RowParser).closeRow,
	},
}

// RowParser rebuilds table rows from a flat cell sequence. City cells set the
// current city, data cells fill the open row (which starts with that city)
// and a graph marker closes it.
type RowParser struct {
	state   ParserState
	city    string
	hasCity bool
	current []string
	rows    [][]string
	fed     int
}

// State returns the current parser state.
func (p *RowParser) State() ParserState {
	return p.state
}

// Feed advances the parser by one cell.
func (p *RowParser) Feed(c Cell) error {
	next, ok := transitions[p.state][c.Kind]
	if !ok {
		return fmt.Errorf("cell %d: no transition from %s on %s", p.fed, p.state, c.Kind)
	}
	state, err := next(p, c)
	if err != nil {
		return fmt.Errorf("cell %d: %w", p.fed, err)
	}
	p.state = state
	p.fed++
	return nil
}

// Rows returns the completed rows. It fails if a row is still open.
func (p *RowParser) Rows() ([][]string, error) {
	if p.state == AccumulatingRow {
		return nil, fmt.Errorf("%w: %v", ErrUnterminatedRow, p.current)
	}
	out := make([][]string, len(p.rows))
	for i, r := range p.rows {
		out[i] = slices.Clone(r)
	}
	return out, nil
}

func (p *RowParser) setCity(c Cell) (ParserState, error) {
	p.city = c.Text
	p.hasCity = true
	return p.state, nil
}

func (p *RowParser) openRow(c Cell) (ParserState, error) {
	if !p.hasCity {
		return p.state, fmt.Errorf("%w: %q", ErrNoCity, c.Text)
	}
	p.current = []string{p.city, c.Text}
	return AccumulatingRow, nil
}

func (p *RowParser) appendValue(c Cell) (ParserState, error) {
	p.current = append(p.current, c.Text)
	return AccumulatingRow, nil
}

func (p *RowParser) closeRow(Cell) (ParserState, error) {
	p.rows = append(p.rows, p.current)
	p.current = nil
	return AwaitingRowStart, nil
}

func (p *RowParser) skip(Cell) (ParserState, error) {
	return AwaitingRowStart, nil
}

// ParseRows runs a fresh RowParser over cells.
func ParseRows(cells []Cell) ([][]string, error) {
	var p RowParser
	for _, c := range cells {
		if err := p.Feed(c); err != nil {
			return nil, err
		}
	}
	return p.Rows()
}
