// Package format renders result rows for clients: Markdown tables, CSV and
// chart payloads, and decides which of them a response should carry.
package format

import (
	"strings"

	"github.com/tbourn/go-sql-assistant/internal/domain"
)

// OutputType is the representation a client asked for.
type OutputType string

const (
	OutputAuto  OutputType = "auto"
	OutputTable OutputType = "table"
	OutputChart OutputType = "chart"
	OutputJSON  OutputType = "json"
	OutputCSV   OutputType = "csv"
)

// ParseOutputType accepts the names above in any case; empty means auto.
func ParseOutputType(s string) (OutputType, bool) {
	switch t := OutputType(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return OutputAuto, true
	case OutputAuto, OutputTable, OutputChart, OutputJSON, OutputCSV:
		return t, true
	}
	return OutputAuto, false
}

var (
	tableWords = []string{"таблица", "таблицу", "table", "csv"}
	listWords  = []string{"показать", "вывести", "список", "list"}
	chartWords = []string{"график", "диаграмма", "chart", "graph", "нарисуй", "построй", "визуализац", "visualization"}
	aggWords   = []string{"count", "sum", "avg", "total", "average", "amount", "max", "min"}
)

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func isAggregateColumn(name string) bool {
	return containsAny(strings.ToLower(name), aggWords)
}

// NeedsTable decides whether an auto response carries a table.
//
// A single row whose columns are all aggregates (one COUNT, a SUM and an AVG)
// is answered in text unless the question asks for a table. A single row
// with a categorical column gets a table. Multi-row results get one only when
// the question asks for a table or a list.
func NeedsTable(question string, rows []domain.Record) bool {
	if len(rows) == 0 {
		return false
	}
	q := strings.ToLower(question)
	if len(rows) > 1 {
		return containsAny(q, tableWords) || containsAny(q, listWords)
	}
	cols := rows[0].Columns()
	if len(cols) == 0 {
		return false
	}
	if len(cols) == 1 && isAggregateColumn(cols[0]) {
		return false
	}
	for _, c := range cols {
		if !isAggregateColumn(c) {
			return len(cols) > 1 || containsAny(q, tableWords)
		}
	}
	return containsAny(q, tableWords)
}

// WantsChart reports whether the question asks for a visualization.
func WantsChart(question string) bool {
	return containsAny(strings.ToLower(question), chartWords)
}

// Rendered is what Render attaches to a response.
type Rendered struct {
	Table *string
	Chart *ChartData
}

// Render applies the output rules. chartHint is a chart type suggested by the
// analysis ("bar", "line", ...); empty or "auto" detects one from the data.
func Render(question string, rows []domain.Record, out OutputType, chartHint string) (Rendered, error) {
	var r Rendered
	if len(rows) == 0 {
		return r, nil
	}

	switch out {
	case OutputJSON:
		return r, nil
	case OutputCSV:
		s, err := CSV(rows)
		if err != nil {
			return r, err
		}
		r.Table = &s
		return r, nil
	case OutputTable:
		s := Markdown(rows)
		r.Table = &s
		return r, nil
	}

	if NeedsTable(question, rows) {
		s := Markdown(rows)
		r.Table = &s
	}

	switch out {
	case OutputChart:
		r.Chart = Chart(rows, chartHint)
	case OutputAuto:
		if WantsChart(question) || (len(rows) > 1 && len(rows) <= 20) {
			r.Chart = Chart(rows, chartHint)
		}
	}
	return r, nil
}
