package memstore

import "time"

// MaxQueryHistory bounds a user's grounding history.
const MaxQueryHistory = 10

// QueryEntry is one answered question and the SQL that answered it.
type QueryEntry struct {
	Question string    `json:"question"`
	SQL      string    `json:"sql"`
	At       time.Time `json:"timestamp"`
}

// QueryContext is a user's recent question history.
type QueryContext struct {
	UserID    string
	Entries   []QueryEntry
	UpdatedAt time.Time
}

// NewQueryContext is the factory for a QueryContextStore.
func NewQueryContext(userID string, now time.Time) QueryContext {
	return QueryContext{UserID: userID, UpdatedAt: now}
}

func (c QueryContext) LastUpdated() time.Time { return c.UpdatedAt }

func (c QueryContext) Clone() QueryContext {
	c.Entries = append([]QueryEntry(nil), c.Entries...)
	return c
}

// AddQuery appends an entry and drops the oldest beyond MaxQueryHistory.
func (c *QueryContext) AddQuery(question, sql string, now time.Time) {
	c.Entries = append(c.Entries, QueryEntry{Question: question, SQL: sql, At: now})
	if over := len(c.Entries) - MaxQueryHistory; over > 0 {
		c.Entries = append([]QueryEntry(nil), c.Entries[over:]...)
	}
	c.UpdatedAt = now
}

// Recent returns up to n most recent entries, oldest first.
func (c QueryContext) Recent(n int) []QueryEntry {
	return tail(c.Entries, n)
}

// QueryContextStore holds one QueryContext per user.
type QueryContextStore = Store[QueryContext]

// NewQueryContextStore evicts contexts idle for longer than maxAge.
func NewQueryContextStore(maxAge time.Duration) *QueryContextStore {
	return New(maxAge, NewQueryContext)
}

func tail[T any](s []T, n int) []T {
	if n <= 0 {
		return nil
	}
	if n > len(s) {
		n = len(s)
	}
	return append([]T(nil), s[len(s)-n:]...)
}
