package report

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/agrishikyo-relay/internal/market"
)

// ErrShapeMismatch indicates a rebuilt row does not fit the page's headers.
var ErrShapeMismatch = errors.New("row does not match header count")

// Extractor turns a rendered report page into a filtered price table.
type Extractor struct {
	schema Schema
	cities []string
	logger *zap.Logger
}

// NewExtractor builds an Extractor that keeps rows for the given cities.
func NewExtractor(schema Schema, cities []string, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{schema: schema, cities: cities, logger: logger}
}

// Extract parses html, the report rendered for keyword, into a table whose
// columns are trade date, year-month, item name followed by the page's own
// headers (city first), restricted to the configured cities.
func (e *Extractor) Extract(keyword, html string) (market.Table, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return market.Table{}, fmt.Errorf("parse report html for %s: %w", keyword, err)
	}

	tables := doc.Find(e.schema.Table)
	if tables.Length() < e.schema.MinTables() {
		return market.Table{}, fmt.Errorf("%w: %s: found %d %q elements, need %d",
			ErrPageSchema, keyword, tables.Length(), e.schema.Table, e.schema.MinTables())
	}

	date, err := market.ParseTradeDate(tables.Eq(e.schema.DateCaptionIndex).Text())
	if err != nil {
		return market.Table{}, fmt.Errorf("%s: %w", keyword, err)
	}

	pageHeaders := e.headers(tables.Eq(e.schema.HeaderIndex))
	if len(pageHeaders) == 0 {
		return market.Table{}, fmt.Errorf("%w: %s: header table has no %q cells",
			ErrPageSchema, keyword, e.schema.HeaderCell)
	}

	itemSel := doc.Find(e.schema.ItemName).First()
	if itemSel.Length() == 0 {
		return market.Table{}, fmt.Errorf("%w: %s: item name %q not found",
			ErrPageSchema, keyword, e.schema.ItemName)
	}
	item := cleanText(itemSel.Text())

	rows, err := ParseRows(e.cells(tables.Eq(e.schema.DataIndex)))
	if err != nil {
		return market.Table{}, fmt.Errorf("%s: rebuild rows: %w", keyword, err)
	}

	headers := append([]string{market.ColumnTradeDate, market.ColumnTradeMonth, market.ColumnItem}, pageHeaders...)
	table := market.Table{Headers: headers, Rows: make([]market.Record, 0, len(rows))}
	for i, row := range rows {
		if len(row) != len(pageHeaders) {
			return market.Table{}, fmt.Errorf("%w: %s row %d (%s): %d values for %d headers %v",
				ErrShapeMismatch, keyword, i, row[0], len(row), len(pageHeaders), pageHeaders)
		}
		record := make(market.Record, 0, len(headers))
		record = append(record, date.Day, date.Month, item)
		record = append(record, row...)
		table.Rows = append(table.Rows, record)
	}

	filtered, err := market.FilterCities(table, e.cities)
	if err != nil {
		return market.Table{}, fmt.Errorf("%w: %s: %w", ErrPageSchema, keyword, err)
	}
	e.logger.Debug("report extracted",
		zap.String("keyword", keyword),
		zap.String("item", item),
		zap.String("trade_date", date.Day),
		zap.Int("rows", len(rows)),
		zap.Int("kept", filtered.Len()),
	)
	return filtered, nil
}

// headers returns the header cell texts without the trailing graph column.
func (e *Extractor) headers(table *goquery.Selection) []string {
	cells := table.Find(e.schema.HeaderCell)
	if cells.Length() == 0 {
		return nil
	}
	out := make([]string, 0, cells.Length())
	cells.Each(func(_ int, s *goquery.Selection) {
		out = append(out, cleanText(s.Text()))
	})
	return out[:len(out)-1]
}

func (e *Extractor) cells(table *goquery.Selection) []Cell {
	var out []Cell
	table.Find(e.schema.DataCell).Each(func(_ int, s *goquery.Selection) {
		class, _ := s.Attr("class")
		switch text := cleanText(s.Text()); {
		case e.schema.isCityCell(class):
			label := s.Find(e.schema.CityLabel).First()
			if label.Length() > 0 {
				text = cleanText(label.Text())
			}
			out = append(out, Cell{Kind: CityCell, Text: text})
		case text == e.schema.GraphMarker:
			out = append(out, Cell{Kind: GraphMarker, Text: text})
		default:
			out = append(out, Cell{Kind: DataCell, Text: text})
		}
	})
	return out
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
