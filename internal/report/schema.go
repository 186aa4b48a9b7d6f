package report

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPageSchema indicates the rendered page does not have the expected layout.
var ErrPageSchema = errors.New("report page does not match schema")

// Schema maps the report page's semantic roles to selectors and positions.
type Schema struct {
	// Table selects every table on the page; the indexes below refer to it.
	Table string `mapstructure:"table"`
	// DateCaptionIndex is the table whose text is the trade date caption.
	DateCaptionIndex int `mapstructure:"date_caption_index"`
	// HeaderIndex is the table holding the column headers.
	HeaderIndex int `mapstructure:"header_index"`
	// DataIndex is the table holding the price cells.
	DataIndex int `mapstructure:"data_index"`
	// HeaderCell and DataCell select cells within their tables.
	HeaderCell string `mapstructure:"header_cell"`
	DataCell   string `mapstructure:"data_cell"`
	// ItemName selects the element showing the commodity's display name.
	ItemName string `mapstructure:"item_name"`
	// CityCellClasses are the class attributes marking a city-name cell.
	CityCellClasses []string `mapstructure:"city_cell_classes"`
	// CityLabel selects the city name inside a city cell.
	CityLabel string `mapstructure:"city_label"`
	// GraphMarker is the text of the cell that closes a row.
	GraphMarker string `mapstructure:"graph_marker"`
}

// DefaultSchema returns the layout of the 1キロ平均価格（確定値） report.
func DefaultSchema() Schema {
	return Schema{
		Table:            "table",
		DateCaptionIndex: 2,
		HeaderIndex:      3,
		DataIndex:        4,
		HeaderCell:       "th",
		DataCell:         "td",
		ItemName:         "#main_table > div:nth-child(3) > div:nth-child(1)",
		CityCellClasses:  []string{"st-td1 l", "st-td2 l"},
		CityLabel:        "span",
		GraphMarker:      "グラフ",
	}
}

// Validate checks the schema itself for obvious mistakes.
func (s Schema) Validate() error {
	switch {
	case strings.TrimSpace(s.Table) == "":
		return fmt.Errorf("schema.table must be set")
	case s.DateCaptionIndex < 0 || s.HeaderIndex < 0 || s.DataIndex < 0:
		return fmt.Errorf("schema table indexes must be >= 0")
	case s.HeaderCell == "" || s.DataCell == "":
		return fmt.Errorf("schema.header_cell and schema.data_cell must be set")
	case s.ItemName == "":
		return fmt.Errorf("schema.item_name must be set")
	case len(s.CityCellClasses) == 0:
		return fmt.Errorf("schema.city_cell_classes must not be empty")
	case s.GraphMarker == "":
		return fmt.Errorf("schema.graph_marker must be set")
	}
	return nil
}

// MinTables is the number of tables the page must render.
func (s Schema) MinTables() int {
	return max(s.DateCaptionIndex, s.HeaderIndex, s.DataIndex) + 1
}

func (s Schema) isCityCell(class string) bool {
	normalized := strings.Join(strings.Fields(class), " ")
	for _, c := range s.CityCellClasses {
		if normalized == c {
			return true
		}
	}
	return false
}
