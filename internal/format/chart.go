package format

import (
	"strings"

	"github.com/tbourn/go-sql-assistant/internal/domain"
)

// ChartData is a renderer-agnostic chart payload.
type ChartData struct {
	Type     string         `json:"type"`
	Labels   []string       `json:"labels"`
	Datasets []ChartDataset `json:"datasets"`
	Title    string         `json:"title,omitempty"`
}

type ChartDataset struct {
	Label string    `json:"label"`
	Data  []float64 `json:"data"`
}

var timeKeyWords = []string{"date", "time", "month", "year", "day", "timestamp", "день", "месяц", "год"}

func isTimeKey(name string) bool {
	return containsAny(strings.ToLower(name), timeKeyWords)
}

// DetectChartType picks a type from the shape of rows: up to 5 rows stay a
// table, a time column gives a line (trend beyond 10 rows), up to 20 rows a
// bar chart, anything larger a table.
func DetectChartType(rows []domain.Record) string {
	if len(rows) <= 5 {
		return "table"
	}
	for _, c := range rows[0].Columns() {
		if isTimeKey(c) {
			if len(rows) > 10 {
				return "trend"
			}
			return "line"
		}
	}
	if len(rows) <= 20 {
		return "bar"
	}
	return "table"
}

// Chart builds a payload. kind is bar, line, trend, pie or auto; table and
// unknown kinds give nil, as do rows without a label and a numeric column.
func Chart(rows []domain.Record, kind string) *ChartData {
	if len(rows) == 0 {
		return nil
	}
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "" || kind == "auto" {
		kind = DetectChartType(rows)
	}

	first := rows[0]
	switch kind {
	case "bar", "line", "trend":
		labelKey, ok := timeColumn(first)
		if !ok {
			labelKey, ok = labelColumn(first, true)
		}
		valueKey, vok := valueColumn(first, labelKey)
		if !ok || !vok {
			return nil
		}
		if kind == "trend" {
			kind = "line"
		}
		return series(rows, kind, labelKey, valueKey)
	case "pie":
		labelKey, ok := labelColumn(first, false)
		valueKey, vok := valueColumn(first, labelKey)
		if !ok || !vok {
			return nil
		}
		return series(rows, kind, labelKey, valueKey)
	}
	return nil
}

func series(rows []domain.Record, kind, labelKey, valueKey string) *ChartData {
	cd := &ChartData{Type: kind}
	for _, r := range rows {
		lv, lok := r.Get(labelKey)
		vv, vok := r.Get(valueKey)
		if !lok || !vok || lv.IsNull() {
			continue
		}
		n, isNum := vv.Number()
		if !isNum {
			continue
		}
		cd.Labels = append(cd.Labels, lv.Text())
		cd.Datasets = appendPoint(cd.Datasets, valueKey, n)
	}
	if len(cd.Labels) == 0 {
		return nil
	}
	return cd
}

func appendPoint(ds []ChartDataset, label string, v float64) []ChartDataset {
	if len(ds) == 0 {
		ds = []ChartDataset{{Label: label}}
	}
	ds[0].Data = append(ds[0].Data, v)
	return ds
}

func timeColumn(r domain.Record) (string, bool) {
	for _, f := range r.Fields {
		if isTimeKey(f.Name) {
			return f.Name, true
		}
	}
	return "", false
}

// labelColumn returns the first string-like column; with allowNumeric a
// numeric column may serve as label when it is not the only numeric one.
func labelColumn(r domain.Record, allowNumeric bool) (string, bool) {
	for _, f := range r.Fields {
		switch f.Value.Kind() {
		case domain.KindString, domain.KindTimestamp, domain.KindBool:
			return f.Name, true
		}
	}
	if !allowNumeric {
		return "", false
	}
	var nums []string
	for _, f := range r.Fields {
		if f.Value.IsNumber() {
			nums = append(nums, f.Name)
		}
	}
	if len(nums) >= 2 {
		return nums[0], true
	}
	return "", false
}

func valueColumn(r domain.Record, exclude string) (string, bool) {
	for _, f := range r.Fields {
		if f.Name != exclude && f.Value.IsNumber() {
			return f.Name, true
		}
	}
	return "", false
}
