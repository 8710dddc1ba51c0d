// Package sqlguard enforces structural safety rules on model-generated SQL
// before it reaches the warehouse. It is a deny-list and shape check over the
// query text, not a parser: it guarantees read-only, bounded statements and
// says nothing about whether the query answers the question.
//
// Rules are evaluated in a fixed order and the first failure wins:
//
//  1. mutating keyword present       → Forbidden(keyword)
//  2. no SELECT                      → NotASelect
//  3. not terminated by ";"          → MissingTerminator
//  4. SELECT * without LIMIT/aggregate → UnboundedScan
//  5. fact table without LIMIT/aggregate → UnboundedScan
//  6. LIMIT above the ceiling         → LimitTooLarge(value)
package sqlguard

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Kind identifies which rule rejected a statement.
type Kind int

const (
	KindForbidden Kind = iota + 1
	KindNotASelect
	KindMissingTerminator
	KindUnboundedScan
	KindLimitTooLarge
)

func (k Kind) String() string {
	switch k {
	case KindForbidden:
		return "forbidden"
	case KindNotASelect:
		return "not_a_select"
	case KindMissingTerminator:
		return "missing_terminator"
	case KindUnboundedScan:
		return "unbounded_scan"
	case KindLimitTooLarge:
		return "limit_too_large"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching against *Error.
var (
	ErrForbidden         = errors.New("forbidden keyword")
	ErrNotASelect        = errors.New("not a SELECT statement")
	ErrMissingTerminator = errors.New("missing terminating semicolon")
	ErrUnboundedScan     = errors.New("unbounded scan")
	ErrLimitTooLarge     = errors.New("limit too large")
)

// Error is returned by Validate.
type Error struct {
	Kind    Kind
	Keyword string // Forbidden only
	Limit   int64  // LimitTooLarge only
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindForbidden:
		return fmt.Sprintf("sqlguard: forbidden keyword %s", e.Keyword)
	case KindLimitTooLarge:
		return fmt.Sprintf("sqlguard: LIMIT %d exceeds ceiling", e.Limit)
	default:
		return "sqlguard: " + e.sentinel().Error()
	}
}

func (e *Error) sentinel() error {
	switch e.Kind {
	case KindForbidden:
		return ErrForbidden
	case KindNotASelect:
		return ErrNotASelect
	case KindMissingTerminator:
		return ErrMissingTerminator
	case KindUnboundedScan:
		return ErrUnboundedScan
	case KindLimitTooLarge:
		return ErrLimitTooLarge
	}
	return nil
}

// Is lets errors.Is(err, sqlguard.ErrForbidden) and friends work.
func (e *Error) Is(target error) bool { return target == e.sentinel() }

// KindOf extracts the rule kind from err, or 0 when err is not a guard error.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return 0
}

const (
	DefaultMaxLimit  = 1000
	DefaultFactTable = "transactions"
)

// DenyList holds the mutating keywords rejected by rule 1.
var DenyList = []string{"DROP", "DELETE", "UPDATE", "INSERT", "ALTER", "CREATE", "TRUNCATE"}

// Aggregates are the keywords that make a scan bounded by construction.
var Aggregates = []string{"COUNT", "SUM", "AVG", "MAX", "MIN", "GROUP BY"}

var (
	selectRE     = regexp.MustCompile(`(?i)\bSELECT\b`)
	selectStarRE = regexp.MustCompile(`(?i)\bSELECT\s+\*`)
	limitWordRE  = regexp.MustCompile(`(?i)\bLIMIT\b`)
	limitArgRE   = regexp.MustCompile(`(?i)\bLIMIT\s+([^\s;,)]+)`)
)

// Validator checks statements against the rule list. The zero value is not
// usable; call New.
type Validator struct {
	MaxLimit  int64
	FactTable string

	deny      []*regexp.Regexp
	aggregate []*regexp.Regexp
	factRE    *regexp.Regexp
}

// New builds a Validator. maxLimit <= 0 uses DefaultMaxLimit, an empty
// factTable uses DefaultFactTable.
func New(maxLimit int64, factTable string) *Validator {
	if maxLimit <= 0 {
		maxLimit = DefaultMaxLimit
	}
	factTable = strings.TrimSpace(factTable)
	if factTable == "" {
		factTable = DefaultFactTable
	}
	v := &Validator{MaxLimit: maxLimit, FactTable: factTable}
	for _, kw := range DenyList {
		v.deny = append(v.deny, wordRE(kw))
	}
	for _, kw := range Aggregates {
		v.aggregate = append(v.aggregate, wordRE(kw))
	}
	v.factRE = regexp.MustCompile(`(?i)\bFROM\s+(?:"?\w+"?\.)?"?` + regexp.QuoteMeta(factTable) + `\b`)
	return v
}

// wordRE matches kw as a whole word; inner spaces match any whitespace run.
func wordRE(kw string) *regexp.Regexp {
	parts := strings.Fields(kw)
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile(`(?i)\b` + strings.Join(parts, `\s+`) + `\b`)
}

// Validate applies the rules in order and returns the first failure.
func (v *Validator) Validate(sql string) error {
	for i, re := range v.deny {
		if re.MatchString(sql) {
			return &Error{Kind: KindForbidden, Keyword: DenyList[i]}
		}
	}
	if !selectRE.MatchString(sql) {
		return &Error{Kind: KindNotASelect}
	}
	if !strings.HasSuffix(strings.TrimSpace(sql), ";") {
		return &Error{Kind: KindMissingTerminator}
	}

	hasLimit := limitWordRE.MatchString(sql)
	bounded := hasLimit || v.hasAggregate(sql)
	if selectStarRE.MatchString(sql) && !bounded {
		return &Error{Kind: KindUnboundedScan}
	}
	if v.factRE.MatchString(sql) && !bounded {
		return &Error{Kind: KindUnboundedScan}
	}

	if hasLimit {
		args := limitArgRE.FindAllStringSubmatch(sql, -1)
		if len(args) == 0 {
			return &Error{Kind: KindUnboundedScan}
		}
		for _, m := range args {
			n, err := strconv.ParseInt(m[1], 10, 64)
			if err != nil {
				// LIMIT ALL or a bind/expression: not provably bounded.
				return &Error{Kind: KindUnboundedScan}
			}
			if n < 0 {
				// SQLite reads a negative limit as none.
				return &Error{Kind: KindUnboundedScan}
			}
			if n > v.MaxLimit {
				return &Error{Kind: KindLimitTooLarge, Limit: n}
			}
		}
	}
	return nil
}

func (v *Validator) hasAggregate(sql string) bool {
	for _, re := range v.aggregate {
		if re.MatchString(sql) {
			return true
		}
	}
	return false
}
