package analysis

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/tbourn/go-sql-assistant/internal/domain"
	"github.com/tbourn/go-sql-assistant/internal/lang"
	"github.com/tbourn/go-sql-assistant/internal/llm"
	"github.com/tbourn/go-sql-assistant/internal/retry"
)

var loc = lang.MustLocalizer()

type scripted struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	calls   int
	last    llm.Request
}

func (s *scripted) Complete(_ context.Context, req llm.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	s.last = req
	var text string
	var err error
	if i < len(s.replies) {
		text = s.replies[i]
	}
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return text, err
}

func noWait(attempts int) retry.Policy { return retry.Policy{Attempts: attempts} }

func row(fields ...domain.Field) domain.Record { return domain.NewRecord(fields...) }

func f(name string, v domain.Value) domain.Field { return domain.Field{Name: name, Value: v} }

const modelJSON = "```json\n" + `{
  "headline": "There were 42 transactions today",
  "insights": [{"title": "Volume", "description": "Normal day", "significance": "high"},
               {"title": "Odd", "description": "x", "significance": "whatever"}],
  "explanation": "Counted all rows.",
  "suggested_questions": ["What about yesterday?", "  "],
  "chart_type": "bar"
}` + "\n```"

func TestParse(t *testing.T) {
	a, err := Parse(modelJSON)
	if err != nil {
		t.Fatal(err)
	}
	if a.Headline != "There were 42 transactions today" || a.Explanation != "Counted all rows." {
		t.Fatalf("a = %+v", a)
	}
	if len(a.Insights) != 2 || a.Insights[0].Significance != High || a.Insights[1].Significance != Low {
		t.Fatalf("insights = %+v", a.Insights)
	}
	if len(a.SuggestedQuestions) != 1 {
		t.Fatalf("suggested = %q", a.SuggestedQuestions)
	}
	if a.ChartType == nil || *a.ChartType != Bar || a.ChartHint() != "bar" {
		t.Fatalf("chart = %v", a.ChartType)
	}
}

func TestParse_Defaults(t *testing.T) {
	a, err := Parse(`{"headline": "Totals", "chart_type": "radar"}`)
	if err != nil {
		t.Fatal(err)
	}
	if a.Headline != "Totals" || a.ChartType != nil || a.ChartHint() != "auto" {
		t.Fatalf("a = %+v", a)
	}
	if a.Insights == nil || a.SuggestedQuestions == nil {
		t.Fatalf("slices should be non-nil for JSON output")
	}
}

func TestParse_Errors(t *testing.T) {
	if _, err := Parse("no json here"); !errors.Is(err, ErrNoJSON) {
		t.Fatalf("err = %v", err)
	}
	if _, err := Parse("} {"); !errors.Is(err, ErrNoJSON) {
		t.Fatalf("reversed braces err = %v", err)
	}
	if _, err := Parse("{not json}"); err == nil {
		t.Fatalf("invalid JSON should fail")
	}
	for _, text := range []string{"{}", `{"headline": "   ", "insights": []}`} {
		if _, err := Parse(text); !errors.Is(err, ErrNoHeadline) {
			t.Fatalf("Parse(%q) err = %v", text, err)
		}
	}
}

func TestFallback_Count(t *testing.T) {
	a := Fallback([]domain.Record{row(f("count", domain.Int(42)))}, lang.English, loc)
	if a.Headline != "Found 42 records" {
		t.Fatalf("headline = %q", a.Headline)
	}
	if a.ChartType != nil || len(a.SuggestedQuestions) != 2 || len(a.Insights) != 0 {
		t.Fatalf("a = %+v", a)
	}
}

func TestFallback_SingleNumericColumn(t *testing.T) {
	a := Fallback([]domain.Record{row(f("n", domain.Int(7)))}, lang.Russian, loc)
	if a.Headline != "Найдено 7 записей" {
		t.Fatalf("headline = %q", a.Headline)
	}
}

func TestFallback_CategoryCount(t *testing.T) {
	rows := []domain.Record{
		row(f("mcc_category", domain.String("Grocery")), f("tx_total", domain.Int(120))),
		row(f("mcc_category", domain.String("Fuel")), f("tx_total", domain.Int(80))),
	}
	a := Fallback(rows, lang.English, loc)
	if a.Headline != "Found 120 records" {
		t.Fatalf("headline = %q", a.Headline)
	}
	if len(a.Insights) != 1 || a.Insights[0].Significance != Medium || a.Insights[0].Description != "Found 120 records for Grocery" {
		t.Fatalf("insights = %+v", a.Insights)
	}
	if a.ChartType == nil || *a.ChartType != Bar {
		t.Fatalf("chart = %v", a.ChartType)
	}
}

func TestFallback_Generic(t *testing.T) {
	var rows []domain.Record
	for i := 0; i < 12; i++ {
		rows = append(rows, row(f("merchant_city", domain.String("c")), f("amount", domain.Float(1.5))))
	}
	a := Fallback(rows, lang.English, loc)
	if a.Headline != "Found 12 records" || a.Explanation != "Query result: 12 rows of data" {
		t.Fatalf("a = %+v", a)
	}
	if a.ChartType != nil {
		t.Fatalf("more than 10 rows gets no chart hint")
	}

	small := Fallback(rows[:3], lang.English, loc)
	if small.ChartType == nil || *small.ChartType != Table {
		t.Fatalf("chart = %v", small.ChartType)
	}

	empty := Fallback(nil, lang.English, loc)
	if empty.Headline != "Found 0 records" || empty.ChartType != nil {
		t.Fatalf("empty = %+v", empty)
	}
}

func TestAnalyzer_UsesModel(t *testing.T) {
	m := &scripted{replies: []string{modelJSON}}
	an := &Analyzer{LLM: m, Loc: loc, Policy: noWait(3)}
	a, fb := an.Analyze(context.Background(), "How many today?", "SELECT COUNT(*) FROM transactions;", []domain.Record{row(f("count", domain.Int(42)))}, lang.English)
	if fb || a.Headline != "There were 42 transactions today" {
		t.Fatalf("a = %+v fallback=%v", a, fb)
	}
	if m.last.Purpose != llm.PurposeAnalysis || m.last.MaxTokens != 1024 {
		t.Fatalf("request = %+v", m.last)
	}
}

func TestAnalyzer_RetriesThenSucceeds(t *testing.T) {
	m := &scripted{
		replies: []string{"", "not json", modelJSON},
		errs:    []error{llm.ErrEmptyCompletion, nil, nil},
	}
	an := &Analyzer{LLM: m, Loc: loc, Policy: noWait(3)}
	_, fb := an.Analyze(context.Background(), "q", "s", nil, lang.English)
	if fb || m.calls != 3 {
		t.Fatalf("fallback=%v calls=%d", fb, m.calls)
	}
}

func TestAnalyzer_EmptyObjectIsRetried(t *testing.T) {
	m := &scripted{replies: []string{"{}", modelJSON}}
	an := &Analyzer{LLM: m, Loc: loc, Policy: noWait(3)}
	a, fb := an.Analyze(context.Background(), "q", "s", nil, lang.Russian)
	if fb || m.calls != 2 || a.Headline != "There were 42 transactions today" {
		t.Fatalf("a = %+v fallback=%v calls=%d", a, fb, m.calls)
	}

	m = &scripted{replies: []string{"{}", "{}", "{}"}}
	an = &Analyzer{LLM: m, Loc: loc, Policy: noWait(3)}
	a, fb = an.Analyze(context.Background(), "q", "s", []domain.Record{row(f("count", domain.Int(5)))}, lang.English)
	if !fb || m.calls != 3 || a.Headline != "Found 5 records" {
		t.Fatalf("a = %+v fallback=%v calls=%d", a, fb, m.calls)
	}
}

func TestAnalyzer_FallsBackAfterAttempts(t *testing.T) {
	m := &scripted{errs: []error{errors.New("a"), errors.New("b"), errors.New("c"), errors.New("d")}}
	an := &Analyzer{LLM: m, Loc: loc, Policy: noWait(3)}
	a, fb := an.Analyze(context.Background(), "q", "s", []domain.Record{row(f("count", domain.Int(5)))}, lang.English)
	if !fb || m.calls != 3 || a.Headline != "Found 5 records" {
		t.Fatalf("a = %+v fallback=%v calls=%d", a, fb, m.calls)
	}
}

func TestAnalyzer_DisabledProviderDoesNotRetry(t *testing.T) {
	m := &scripted{errs: []error{llm.ErrDisabled, llm.ErrDisabled, llm.ErrDisabled}}
	an := &Analyzer{LLM: m, Loc: loc, Policy: noWait(3)}
	if _, fb := an.Analyze(context.Background(), "q", "s", nil, lang.English); !fb || m.calls != 1 {
		t.Fatalf("fallback=%v calls=%d", fb, m.calls)
	}
}

func TestAnalyzer_NilModel(t *testing.T) {
	an := &Analyzer{Loc: loc}
	if a, fb := an.Analyze(context.Background(), "q", "s", nil, lang.Kazakh); !fb || a.Headline == "" {
		t.Fatalf("a = %+v fallback=%v", a, fb)
	}
}
