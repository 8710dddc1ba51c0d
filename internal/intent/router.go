// Package intent decides whether a free-text question should be answered by
// querying the warehouse or by a conversational reply.
//
// The router is a conservative keyword heuristic driven by the tables in
// rules.go. False negatives send a data question to chat, which is an
// acceptable degradation; false positives reach SQL generation, where the
// guard rejects anything unusable.
package intent

import (
	"regexp"
	"strings"
)

// Prefix forces the database route when it starts the trimmed question.
const Prefix = "sql:"

// Reason names the rule that produced a decision.
type Reason string

const (
	ReasonPrefix        Reason = "prefix"
	ReasonChatKeyword   Reason = "chat_keyword"
	ReasonDomainPeriod  Reason = "domain_with_period_or_aggregate"
	ReasonShort         Reason = "short_low_score"
	ReasonInterrogative Reason = "interrogative_low_score"
	ReasonScore         Reason = "score"
	ReasonEmpty         Reason = "empty"
)

// Decision is the explained outcome of Classify.
type Decision struct {
	Database bool
	Reason   Reason
	Score    int
	Strong   bool
	Words    int
	// Question is the text passed downstream, with the prefix stripped.
	Question string
}

// Router holds the rule tables. The zero value is not usable; use New or
// Default.
type Router struct {
	chat           [][]string
	domain         [][]string
	period         [][]string
	db             [][]string
	strong         [][]string
	interrogatives [][]string
}

// New compiles a Router from rule tables.
func New(chat, domain, period, db, strong, interrogatives []string) *Router {
	return &Router{
		chat:           tokenizeAll(chat),
		domain:         tokenizeAll(domain),
		period:         tokenizeAll(period),
		db:             tokenizeAll(db),
		strong:         tokenizeAll(strong),
		interrogatives: tokenizeAll(interrogatives),
	}
}

var defaultRouter = New(
	ChatKeywords,
	DomainNouns,
	concat(TimeWords, AggregationWords),
	DBKeywords,
	StrongPatterns,
	Interrogatives,
)

// Default returns the router built from the package rule tables.
func Default() *Router { return defaultRouter }

// IsDatabaseQuery classifies question with the default rule tables.
func IsDatabaseQuery(question string) bool { return defaultRouter.Classify(question) }

// StripPrefix removes a leading "sql:" marker (any case) and reports whether
// it was present.
func StripPrefix(question string) (string, bool) {
	q := strings.TrimSpace(question)
	if len(q) >= len(Prefix) && strings.EqualFold(q[:len(Prefix)], Prefix) {
		return strings.TrimSpace(q[len(Prefix):]), true
	}
	return q, false
}

// Classify reports whether question targets the database.
func (r *Router) Classify(question string) bool { return r.Explain(question).Database }

// Explain applies the decision list and returns the first matching rule:
//
//  1. chat keyword not followed by a domain noun → chat
//  2. domain noun with a time-period or aggregation word → database
//  3. score = distinct db keywords, +2 when a strong pattern is present
//  4. ≤3 words and score ≤1 → chat
//  5. interrogative word, score ≤1, no strong pattern → chat
//  6. database when score ≥2
func (r *Router) Explain(question string) Decision {
	q, forced := StripPrefix(question)
	d := Decision{Question: q}
	if forced {
		d.Database, d.Reason = true, ReasonPrefix
		return d
	}

	words := tokenize(q)
	d.Words = len(words)
	if len(words) == 0 {
		d.Reason = ReasonEmpty
		return d
	}

	for _, kw := range r.chat {
		at := indexWords(words, kw, false)
		if at < 0 {
			continue
		}
		if anyPrefix(words[at+len(kw):], r.domain) {
			continue
		}
		d.Reason = ReasonChatKeyword
		return d
	}

	if anyPrefix(words, r.domain) && anyPrefix(words, r.period) {
		d.Database, d.Reason = true, ReasonDomainPeriod
		return d
	}

	for _, kw := range r.db {
		if indexWords(words, kw, true) >= 0 {
			d.Score++
		}
	}
	d.Strong = anyPrefix(words, r.strong)
	if d.Strong {
		d.Score += 2
	}

	if d.Words <= 3 && d.Score <= 1 {
		d.Reason = ReasonShort
		return d
	}
	if d.Score <= 1 && !d.Strong && anyWhole(words, r.interrogatives) {
		d.Reason = ReasonInterrogative
		return d
	}
	d.Reason = ReasonScore
	d.Database = d.Score >= 2
	return d
}

var wordRE = regexp.MustCompile(`[\p{L}\p{N}_]+`)

func tokenize(s string) []string {
	return wordRE.FindAllString(strings.ToLower(s), -1)
}

func tokenizeAll(phrases []string) [][]string {
	out := make([][]string, 0, len(phrases))
	for _, p := range phrases {
		if t := tokenize(p); len(t) > 0 {
			out = append(out, t)
		}
	}
	return out
}

// indexWords returns the word index at which phrase starts in words, or -1.
// Every phrase word must equal the corresponding word, except the last one,
// which only needs to be a prefix when prefix is true.
func indexWords(words, phrase []string, prefix bool) int {
	n := len(phrase)
	for i := 0; i+n <= len(words); i++ {
		match := true
		for j, p := range phrase {
			w := words[i+j]
			if j == n-1 && prefix {
				if !strings.HasPrefix(w, p) {
					match = false
					break
				}
				continue
			}
			if w != p {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func anyPrefix(words []string, phrases [][]string) bool {
	for _, p := range phrases {
		if indexWords(words, p, true) >= 0 {
			return true
		}
	}
	return false
}

func anyWhole(words []string, phrases [][]string) bool {
	for _, p := range phrases {
		if indexWords(words, p, false) >= 0 {
			return true
		}
	}
	return false
}
