package analysis

import (
	"strings"

	"github.com/tbourn/go-sql-assistant/internal/domain"
	"github.com/tbourn/go-sql-assistant/internal/lang"
)

// countKeys hold a total row count when a query aggregates everything.
var countKeys = []string{"count", "transaction_count", "total_transactions"}

// Fallback builds an analysis from the shape of rows alone. It never fails.
//
//   - a count column (or a single numeric column) → "found N records"
//   - a category-like column with a count-like column → per-category headline
//   - anything else → generic row count
func Fallback(rows []domain.Record, lg lang.Language, loc *lang.Localizer) Analysis {
	n := len(rows)
	chartFor := func(ct ChartType) *ChartType {
		if n > 1 && n <= 10 {
			return chart(ct)
		}
		return nil
	}

	if n > 0 {
		first := rows[0]
		if count, ok := totalCount(first); ok {
			return Analysis{
				Headline:    loc.Get(lg, lang.MsgFoundRecords, map[string]any{"Count": count}),
				Insights:    []Insight{},
				Explanation: loc.Get(lg, lang.MsgResultContains, map[string]any{"Count": count}),
				SuggestedQuestions: []string{
					loc.Get(lg, lang.MsgShowDetails, nil),
					loc.Get(lg, lang.MsgComparePeriods, nil),
				},
				ChartType: chartFor(Bar),
			}
		}

		if category, count, ok := categoryCount(first); ok {
			if category == "" {
				category = loc.Get(lg, lang.MsgCategoryDefault, nil)
			}
			data := map[string]any{"Count": count, "Category": category}
			return Analysis{
				Headline: loc.Get(lg, lang.MsgFoundRecords, data),
				Insights: []Insight{{
					Title:        loc.Get(lg, lang.MsgMainResult, nil),
					Description:  loc.Get(lg, lang.MsgFoundFor, data),
					Significance: Medium,
				}},
				Explanation: loc.Get(lg, lang.MsgShowsRecords, data),
				SuggestedQuestions: []string{
					loc.Get(lg, lang.MsgAllCategories, nil),
					loc.Get(lg, lang.MsgCompareOthers, nil),
				},
				ChartType: chartFor(Bar),
			}
		}
	}

	return Analysis{
		Headline:    loc.Get(lg, lang.MsgFoundRecords, map[string]any{"Count": n}),
		Insights:    []Insight{},
		Explanation: loc.Get(lg, lang.MsgQueryResult, map[string]any{"Count": n}),
		SuggestedQuestions: []string{
			loc.Get(lg, lang.MsgShowDetails, nil),
			loc.Get(lg, lang.MsgComparePeriods, nil),
		},
		ChartType: chartFor(Table),
	}
}

// totalCount returns the integer under a count key, or the only column's
// value when the row has a single integer column.
func totalCount(r domain.Record) (string, bool) {
	for _, k := range countKeys {
		if v, ok := r.Get(k); ok && v.Kind() == domain.KindInt {
			return v.Text(), true
		}
	}
	if r.Len() == 1 && r.Fields[0].Value.Kind() == domain.KindInt {
		return r.Fields[0].Value.Text(), true
	}
	return "", false
}

func categoryCount(r domain.Record) (category, count string, ok bool) {
	catIdx, cntIdx := -1, -1
	for i, f := range r.Fields {
		name := strings.ToLower(f.Name)
		switch {
		case catIdx < 0 && (strings.Contains(name, "category") || strings.Contains(name, "type") || strings.Contains(name, "name")):
			catIdx = i
		case cntIdx < 0 && f.Value.IsNumber() && (strings.Contains(name, "count") || strings.Contains(name, "total")):
			cntIdx = i
		}
	}
	if catIdx < 0 || cntIdx < 0 {
		return "", "", false
	}
	return r.Fields[catIdx].Value.Text(), r.Fields[cntIdx].Value.Text(), true
}
