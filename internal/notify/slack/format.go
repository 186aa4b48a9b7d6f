package slack

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JakeFAU/agrishikyo-relay/internal/market"
)

// Separator joins the values of a line in the message body.
const Separator = "\t \t|"

// ErrEmptyTable indicates there is nothing to announce.
var ErrEmptyTable = errors.New("table has no rows")

// FormatBody renders the header line followed by one space-prefixed line
// per row, values joined by Separator.
func FormatBody(t market.Table) string {
	var b strings.Builder
	b.WriteString(strings.Join(t.Headers, Separator))
	b.WriteByte('\n')
	for _, row := range t.Rows {
		b.WriteByte(' ')
		b.WriteString(strings.Join(row, Separator))
		b.WriteByte('\n')
	}
	return b.String()
}

// Intro links the table to its sources.
type Intro struct {
	SiteURL  string
	SheetURL string
}

// FormatMessage prefixes the body with a sentence naming the first row's
// commodity and linking the site and the spreadsheet.
func (in Intro) FormatMessage(t market.Table) (string, error) {
	if t.Len() == 0 {
		return "", ErrEmptyTable
	}
	item, err := t.Value(0, market.ColumnItem)
	if err != nil {
		return "", fmt.Errorf("format message: %w", err)
	}
	intro := fmt.Sprintf("%sのキロ平均価格データ：<%s|netアグリ市況Webページ> ／ <%s|SHEET>\n\n",
		item, in.SiteURL, in.SheetURL)
	return intro + FormatBody(t), nil
}
