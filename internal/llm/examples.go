package llm

import (
	"fmt"
	"os"

	"github.com/tbourn/go-sql-assistant/internal/search"
)

// Example is a few-shot question and its answer SQL.
type Example struct {
	Question string
	SQL      string
}

// DefaultExamples cover the common shapes of questions about the
// transactions table.
var DefaultExamples = []Example{
	{"Total transactions in 2024",
		"SELECT COUNT(*) as total_transactions FROM transactions WHERE transaction_timestamp >= '2024-01-01' AND transaction_timestamp < '2025-01-01';"},
	{"Top 5 merchants by transaction volume in KZT",
		"SELECT merchant_id, SUM(transaction_amount_kzt) as total_volume_kzt FROM transactions WHERE transaction_type = 'POS' GROUP BY merchant_id ORDER BY total_volume_kzt DESC LIMIT 5;"},
	{"Average transaction amount for Halyk Bank cards in Almaty",
		"SELECT AVG(transaction_amount_kzt) as average_amount FROM transactions WHERE issuer_bank_name ILIKE '%halyk%' AND merchant_city ILIKE '%almaty%' AND transaction_type = 'POS';"},
	{"Transaction volume by MCC category last month",
		"SELECT mcc_category, SUM(transaction_amount_kzt) as total_volume, COUNT(*) as transaction_count FROM transactions WHERE DATE_TRUNC('month', transaction_timestamp) = DATE_TRUNC('month', CURRENT_DATE - INTERVAL '1 month') AND transaction_type = 'POS' GROUP BY mcc_category ORDER BY total_volume DESC;"},
	{"Transactions by wallet type today",
		"SELECT wallet_type, COUNT(*) as transaction_count, SUM(transaction_amount_kzt) as total_amount FROM transactions WHERE DATE(transaction_timestamp) = CURRENT_DATE GROUP BY wallet_type ORDER BY transaction_count DESC;"},
	{"Top 10 cities by transaction count",
		"SELECT merchant_city, COUNT(*) as transaction_count, SUM(transaction_amount_kzt) as total_volume FROM transactions WHERE transaction_type = 'POS' GROUP BY merchant_city ORDER BY transaction_count DESC LIMIT 10;"},
	{"ATM withdrawals vs POS transactions",
		"SELECT transaction_type, COUNT(*) as total_count, SUM(transaction_amount_kzt) as total_amount FROM transactions WHERE transaction_type IN ('ATM_WITHDRAWAL', 'POS') GROUP BY transaction_type ORDER BY total_count DESC;"},
	{"Daily transaction volume for last 7 days",
		"SELECT DATE(transaction_timestamp) as date, SUM(transaction_amount_kzt) as daily_volume, COUNT(*) as transaction_count FROM transactions WHERE transaction_timestamp >= CURRENT_DATE - INTERVAL '7 days' AND transaction_type = 'POS' GROUP BY DATE(transaction_timestamp) ORDER BY date DESC;"},
	{"Transactions by currency",
		"SELECT transaction_currency, COUNT(*) as transaction_count, SUM(transaction_amount_kzt) as total_kzt FROM transactions GROUP BY transaction_currency ORDER BY transaction_count DESC;"},
	{"Transactions by country",
		"SELECT acquirer_country_iso, COUNT(*) as transaction_count, SUM(transaction_amount_kzt) as total_kzt FROM transactions GROUP BY acquirer_country_iso ORDER BY transaction_count DESC;"},
	{"Transactions by payment method (pos_entry_mode)",
		"SELECT pos_entry_mode, COUNT(*) as transaction_count, SUM(transaction_amount_kzt) as total_kzt FROM transactions WHERE pos_entry_mode IS NOT NULL GROUP BY pos_entry_mode ORDER BY transaction_count DESC;"},
	{"P2P transactions (incoming and outgoing)",
		"SELECT transaction_type, COUNT(*) as transaction_count, SUM(transaction_amount_kzt) as total_kzt FROM transactions WHERE transaction_type IN ('P2P_IN', 'P2P_OUT') GROUP BY transaction_type;"},
}

// LoadExamples reads examples from a Markdown table whose first two columns
// are the question and the SQL. Rows with fewer cells or empty cells are
// skipped.
func LoadExamples(path string) ([]Example, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := search.ReadMarkdownTable(f)
	if err != nil {
		return nil, fmt.Errorf("read examples %s: %w", path, err)
	}
	out := make([]Example, 0, len(rows))
	for _, r := range rows {
		if len(r) < 2 || r[0] == "" || r[1] == "" {
			continue
		}
		out = append(out, Example{Question: r[0], SQL: r[1]})
	}
	return out, nil
}

// ExampleSet picks the examples most similar to a question.
type ExampleSet struct {
	examples []Example
	idx      search.Index
}

func NewExampleSet(examples []Example) *ExampleSet {
	docs := make([]search.Doc, len(examples))
	for i, e := range examples {
		docs[i] = search.Doc{ID: i, Text: e.Question}
	}
	return &ExampleSet{examples: examples, idx: search.NewIndex(docs)}
}

// Relevant returns up to k examples: ranked matches first, then the rest in
// their original order. A non-positive k returns all examples.
func (s *ExampleSet) Relevant(question string, k int) []Example {
	if k <= 0 || k > len(s.examples) {
		k = len(s.examples)
	}
	out := make([]Example, 0, k)
	used := make(map[int]bool, k)
	for _, r := range s.idx.TopK(question, k) {
		out = append(out, s.examples[r.ID])
		used[r.ID] = true
	}
	for i, e := range s.examples {
		if len(out) >= k {
			break
		}
		if !used[i] {
			out = append(out, e)
		}
	}
	return out
}

func (s *ExampleSet) Len() int { return len(s.examples) }
