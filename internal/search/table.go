package search

import (
	"io"
	"strings"

	"github.com/russross/blackfriday/v2"
)

// Row is one data row of a Markdown table.
type Row []string

const tableExtensions = blackfriday.Tables | blackfriday.NoIntraEmphasis

// ReadMarkdownTable returns the body rows of every pipe table in r. Header
// rows are skipped, cells are trimmed and an escaped pipe "\|" stays in its
// cell. A table needs a header and a separator row such as "|---|:--:|";
// anything else in the document is ignored.
func ReadMarkdownTable(r io.Reader) ([]Row, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	doc := blackfriday.New(blackfriday.WithExtensions(tableExtensions)).Parse(b)

	var rows []Row
	doc.Walk(func(n *blackfriday.Node, entering bool) blackfriday.WalkStatus {
		switch {
		case n.Type == blackfriday.TableHead:
			return blackfriday.SkipChildren
		case n.Type == blackfriday.TableRow && entering:
			var row Row
			for c := n.FirstChild; c != nil; c = c.Next {
				row = append(row, cellText(c))
			}
			rows = append(rows, row)
			return blackfriday.SkipChildren
		}
		return blackfriday.GoToNext
	})
	return rows, nil
}

// cellText flattens a cell's inline nodes back to source text. Emphasis
// markers are restored since a SQL cell such as "COUNT(*) ... COUNT(*)"
// parses as emphasis.
func cellText(cell *blackfriday.Node) string {
	var b strings.Builder
	cell.Walk(func(n *blackfriday.Node, entering bool) blackfriday.WalkStatus {
		switch n.Type {
		case blackfriday.Text, blackfriday.Code, blackfriday.HTMLSpan:
			b.Write(n.Literal)
		case blackfriday.Emph:
			b.WriteString("*")
		case blackfriday.Strong:
			b.WriteString("**")
		}
		return blackfriday.GoToNext
	})
	return strings.TrimSpace(b.String())
}
