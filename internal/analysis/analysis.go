// Package analysis turns a result set into a short narrative: a headline,
// insights, an explanation, follow-up questions and a chart hint. The model
// writes it when it can; otherwise a built-in summary is derived from the
// shape of the rows.
package analysis

import (
	"encoding/json"
	"errors"
	"strings"
)

// Significance grades an insight.
type Significance string

const (
	High   Significance = "High"
	Medium Significance = "Medium"
	Low    Significance = "Low"
)

// ChartType is the visualisation suggested for a result.
type ChartType string

const (
	Bar   ChartType = "Bar"
	Line  ChartType = "Line"
	Pie   ChartType = "Pie"
	Table ChartType = "Table"
	Trend ChartType = "Trend"
)

// Insight is one finding.
type Insight struct {
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Significance Significance `json:"significance"`
}

// Analysis is the narrative returned with a query result.
type Analysis struct {
	Headline           string     `json:"headline"`
	Insights           []Insight  `json:"insights"`
	Explanation        string     `json:"explanation"`
	SuggestedQuestions []string   `json:"suggested_questions"`
	ChartType          *ChartType `json:"chart_type"`
}

// ChartHint is the lower-cased chart type, or "auto" when none was chosen.
func (a Analysis) ChartHint() string {
	if a.ChartType == nil {
		return "auto"
	}
	return strings.ToLower(string(*a.ChartType))
}

var (
	// ErrNoJSON is returned by Parse when the text holds no JSON object.
	ErrNoJSON = errors.New("analysis: no JSON object in response")
	// ErrNoHeadline is returned by Parse for an object without a headline.
	ErrNoHeadline = errors.New("analysis: response has no headline")
)

type rawInsight struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Significance string `json:"significance"`
}

type rawAnalysis struct {
	Headline           string       `json:"headline"`
	Insights           []rawInsight `json:"insights"`
	Explanation        string       `json:"explanation"`
	SuggestedQuestions []string     `json:"suggested_questions"`
	ChartType          *string      `json:"chart_type"`
}

// Parse reads a model response. Everything outside the outermost braces is
// ignored, so code fences and chatter around the object are tolerated.
func Parse(text string) (Analysis, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Analysis{}, ErrNoJSON
	}
	var raw rawAnalysis
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return Analysis{}, err
	}

	a := Analysis{
		Headline:           strings.TrimSpace(raw.Headline),
		Explanation:        strings.TrimSpace(raw.Explanation),
		SuggestedQuestions: make([]string, 0, len(raw.SuggestedQuestions)),
		Insights:           make([]Insight, 0, len(raw.Insights)),
	}
	if a.Headline == "" {
		return Analysis{}, ErrNoHeadline
	}
	for _, in := range raw.Insights {
		a.Insights = append(a.Insights, Insight{
			Title:        in.Title,
			Description:  in.Description,
			Significance: parseSignificance(in.Significance),
		})
	}
	for _, q := range raw.SuggestedQuestions {
		if q = strings.TrimSpace(q); q != "" {
			a.SuggestedQuestions = append(a.SuggestedQuestions, q)
		}
	}
	if raw.ChartType != nil {
		a.ChartType = parseChartType(*raw.ChartType)
	}
	return a, nil
}

func parseSignificance(s string) Significance {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return High
	case "medium":
		return Medium
	default:
		return Low
	}
}

func parseChartType(s string) *ChartType {
	var ct ChartType
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bar":
		ct = Bar
	case "line":
		ct = Line
	case "pie":
		ct = Pie
	case "table":
		ct = Table
	case "trend":
		ct = Trend
	default:
		return nil
	}
	return &ct
}

func chart(ct ChartType) *ChartType { return &ct }
