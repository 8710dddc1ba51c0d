package sqlguard

import (
	"regexp"
	"strings"
)

// Clean normalizes raw model output into a single statement candidate:
// markdown fences, blank lines and "note:"/"explanation:" lines are dropped,
// and the result ends with exactly one semicolon.
func Clean(raw string) string {
	lines := strings.Split(raw, "\n")
	kept := lines[:0]
	for _, l := range lines {
		t := strings.TrimSpace(l)
		if t == "" || strings.HasPrefix(t, "```") {
			continue
		}
		low := strings.ToLower(t)
		if strings.HasPrefix(low, "note:") || strings.HasPrefix(low, "explanation:") {
			continue
		}
		kept = append(kept, strings.TrimRight(l, " \t\r"))
	}
	s := strings.TrimSpace(strings.Join(kept, "\n"))
	s = strings.TrimRight(s, ";")
	return strings.TrimSpace(s) + ";"
}

// Repair re-slices text from the first SELECT to the last ";" after it.
// It reports false when no such span exists. Callers re-validate the result
// once and never repair twice.
func Repair(text string) (string, bool) {
	loc := selectRE.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	rest := text[loc[0]:]
	end := strings.LastIndex(rest, ";")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end+1]), true
}

var refusalRE = regexp.MustCompile(`(?is)^\s*SELECT\s+'[^']*'\s+AS\s+"?error"?\s*;\s*$`)

// IsRefusal reports whether sql is the literal "SELECT '<message>' AS error;"
// the model is instructed to return for questions it cannot answer with SQL.
func IsRefusal(sql string) bool { return refusalRE.MatchString(sql) }
