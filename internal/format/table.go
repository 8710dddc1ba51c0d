package format

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"strings"

	"github.com/tbourn/go-sql-assistant/internal/domain"
)

// Markdown renders rows as a pipe table with the first row's columns.
// Floats use two decimals; missing and NULL cells show N/A.
func Markdown(rows []domain.Record) string {
	if len(rows) == 0 {
		return ""
	}
	cols := rows[0].Columns()
	if len(cols) == 0 {
		return ""
	}

	var b strings.Builder
	row := func(cells func(i int) string) {
		b.WriteString("|")
		for i := range cols {
			b.WriteString(" ")
			b.WriteString(cells(i))
			b.WriteString(" |")
		}
		b.WriteString("\n")
	}
	row(func(i int) string { return escapeCell(cols[i]) })
	row(func(int) string { return "---" })
	for _, r := range rows {
		row(func(i int) string {
			v, ok := r.Get(cols[i])
			return escapeCell(cell(v, ok))
		})
	}
	return b.String()
}

func cell(v domain.Value, ok bool) string {
	if !ok || v.IsNull() {
		return "N/A"
	}
	if v.Kind() == domain.KindFloat {
		f, _ := v.Number()
		return strconv.FormatFloat(f, 'f', 2, 64)
	}
	return v.Text()
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}

// CSV renders rows with a header line. NULLs are empty fields.
func CSV(rows []domain.Record) (string, error) {
	if len(rows) == 0 {
		return "", nil
	}
	cols := rows[0].Columns()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(cols); err != nil {
		return "", err
	}
	rec := make([]string, len(cols))
	for _, r := range rows {
		for i, c := range cols {
			v, ok := r.Get(c)
			if !ok || v.IsNull() {
				rec[i] = ""
				continue
			}
			rec[i] = v.Text()
		}
		if err := w.Write(rec); err != nil {
			return "", err
		}
	}
	w.Flush()
	return buf.String(), w.Error()
}
