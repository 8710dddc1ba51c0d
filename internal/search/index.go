// Package search ranks short documents against a query by token-set overlap.
// It is used to pick the few-shot question/SQL examples most similar to an
// incoming question.
//
// Scoring is Jaccard similarity between the query token set and each
// document's token set: |Q ∩ D| / |Q ∪ D|. An Index is read-only after
// construction and safe for concurrent use.
package search

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Doc is an indexed document. ID is returned with results so callers can map
// hits back to their own values.
type Doc struct {
	ID   int
	Text string
}

// Result is a ranked document with its similarity score.
type Result struct {
	ID      int
	Snippet string
	Score   float64
}

// Index is implemented by all search indices.
type Index interface {
	TopK(query string, k int) []Result
	Len() int
}

// ----------------------------------------------------------------------------
// Options

type Option func(*config)

type config struct {
	minRunes  int
	stopwords map[string]struct{}
	maxDocs   int
	stemLen   int
}

func defaultConfig() config {
	return config{stemLen: 6}
}

// WithMinRunes drops documents shorter than n runes.
func WithMinRunes(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.minRunes = n
		}
	}
}

func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) > 0 {
			c.stopwords = m
		}
	}
}

func WithMaxDocs(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxDocs = n
		}
	}
}

// WithStemLength truncates tokens to n runes so inflected forms
// ("транзакций", "транзакции") share a token. Zero disables truncation.
func WithStemLength(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.stemLen = n
		}
	}
}

// ----------------------------------------------------------------------------
// Implementation

type doc struct {
	id     int
	text   string
	tokens map[string]struct{}
}

type index struct {
	cfg  config
	docs []doc
}

// NewIndex builds an Index over docs.
func NewIndex(docs []Doc, opts ...Option) Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	out := make([]doc, 0, len(docs))
	for _, d := range docs {
		t := strings.TrimSpace(normalizeWhitespace(d.Text))
		if t == "" {
			continue
		}
		if cfg.minRunes > 0 && utf8.RuneCountInString(t) < cfg.minRunes {
			continue
		}
		toks := tokenize(t, cfg)
		if len(toks) == 0 {
			continue
		}
		out = append(out, doc{id: d.ID, text: t, tokens: toks})
		if cfg.maxDocs > 0 && len(out) >= cfg.maxDocs {
			break
		}
	}
	return &index{cfg: cfg, docs: out}
}

// NewIndexFromStrings indexes texts with their slice positions as IDs.
func NewIndexFromStrings(texts []string, opts ...Option) Index {
	docs := make([]Doc, len(texts))
	for i, t := range texts {
		docs[i] = Doc{ID: i, Text: t}
	}
	return NewIndex(docs, opts...)
}

func (i *index) Len() int { return len(i.docs) }

// TopK returns up to k documents with a positive score, best first. Ties go
// to the shorter document, then to the lexically smaller one.
func (i *index) TopK(q string, k int) []Result {
	if len(i.docs) == 0 || strings.TrimSpace(q) == "" {
		return nil
	}
	if k <= 0 {
		k = 3
	}
	qTokens := tokenize(q, i.cfg)
	if len(qTokens) == 0 {
		return nil
	}

	type scored struct {
		Result
		runes int
	}
	buf := make([]scored, 0, len(i.docs))
	for _, d := range i.docs {
		over := overlap(qTokens, d.tokens)
		if over == 0 {
			continue
		}
		union := len(qTokens) + len(d.tokens) - over
		buf = append(buf, scored{
			Result: Result{ID: d.id, Snippet: d.text, Score: float64(over) / float64(union)},
			runes:  utf8.RuneCountInString(d.text),
		})
	}
	if len(buf) == 0 {
		return nil
	}

	sort.SliceStable(buf, func(a, b int) bool {
		if buf[a].Score != buf[b].Score {
			return buf[a].Score > buf[b].Score
		}
		if buf[a].runes != buf[b].runes {
			return buf[a].runes < buf[b].runes
		}
		return buf[a].Snippet < buf[b].Snippet
	})

	if k > len(buf) {
		k = len(buf)
	}
	out := make([]Result, k)
	for j := range out {
		out[j] = buf[j].Result
	}
	return out
}

// ----------------------------------------------------------------------------
// Helpers

var wordRE = regexp.MustCompile(`[\p{L}\p{N}_]+`)

func tokenize(s string, cfg config) map[string]struct{} {
	words := wordRE.FindAllString(strings.ToLower(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, skip := cfg.stopwords[w]; skip {
			continue
		}
		if cfg.stemLen > 0 {
			w = truncateRunes(w, cfg.stemLen)
		}
		out[w] = struct{}{}
	}
	return out
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func overlap(a, b map[string]struct{}) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

func normalizeWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\r' || r == '\n' {
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
			continue
		}
		prevSpace = false
		b.WriteRune(r)
	}
	return b.String()
}
