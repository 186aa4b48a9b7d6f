// Package reporttest renders report pages shaped like the live site for tests.
package reporttest

import (
	"fmt"
	"html"
	"strings"
)

// City is one city block of the data table.
type City struct {
	Name string
	// Rows holds one slice of price values per report row for this city.
	Rows [][]string
	// Class overrides the city cell class; defaults to "st-td1 l".
	Class string
}

// Page renders a report page for item with the given caption, header cells
// (including the trailing graph column) and city blocks.
func Page(item, caption string, headers []string, cities ...City) string {
	var b strings.Builder
	b.WriteString(`<!doctype html><html><head><meta charset="utf-8"></head><body>`)
	b.WriteString(`<table id="menu"><tr><td>メニュー</td></tr></table>`)
	b.WriteString(`<table id="subnavi"><tr><td><a class="subnavi_logout" href="#">ログアウト</a></td></tr></table>`)
	b.WriteString(`<div id="main_table"><div>青果</div><div>1キロ平均価格（確定値）</div>`)
	fmt.Fprintf(&b, `<div><div>%s</div><div>品物別</div></div>`, html.EscapeString(item))
	fmt.Fprintf(&b, `<table class="caption"><tr><td>%s</td></tr></table>`, html.EscapeString(caption))

	b.WriteString(`<table class="st-header"><tr>`)
	for _, h := range headers {
		fmt.Fprintf(&b, `<th>%s</th>`, html.EscapeString(h))
	}
	b.WriteString(`</tr></table>`)

	b.WriteString(`<table class="st-data">`)
	for _, c := range cities {
		class := c.Class
		if class == "" {
			class = "st-td1 l"
		}
		for i, row := range c.Rows {
			b.WriteString(`<tr>`)
			if i == 0 {
				fmt.Fprintf(&b, `<td class="%s" rowspan="%d"><span>%s</span></td>`,
					class, len(c.Rows), html.EscapeString(c.Name))
			}
			for _, v := range row {
				fmt.Fprintf(&b, `<td class="st-td r">%s</td>`, html.EscapeString(v))
			}
			b.WriteString(`<td class="st-td c"><a href="javascript:void(0)">グラフ</a></td></tr>`)
		}
	}
	b.WriteString(`</table></div></body></html>`)
	return b.String()
}
