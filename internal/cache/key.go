// Package cache holds executed query results for a short time so repeated
// questions that generate identical SQL skip the warehouse.
package cache

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Key fingerprints a SQL text and, optionally, a context string. It is a
// comparable value and can be used directly as a map key.
type Key struct {
	SQL        uint64
	Context    uint64
	HasContext bool
}

// FromSQL fingerprints sql byte for byte. Normalization, when wanted, is the
// caller's job (sqlguard.Clean produces the canonical form).
func FromSQL(sql string) Key {
	return Key{SQL: xxhash.Sum64String(sql)}
}

// FromSQLWithContext also mixes in a context string, so the same SQL under
// different contexts gets distinct entries.
func FromSQLWithContext(sql, context string) Key {
	return Key{SQL: xxhash.Sum64String(sql), Context: xxhash.Sum64String(context), HasContext: true}
}

func (k Key) String() string {
	if k.HasContext {
		return fmt.Sprintf("%016x:%016x", k.SQL, k.Context)
	}
	return fmt.Sprintf("%016x", k.SQL)
}

// Short and Long are the default result TTLs.
const (
	ShortTTL = 300  // seconds, time-relative queries
	LongTTL  = 1800 // seconds
)

var relativeMarkers = []string{"current_date", "today", "last"}

// TTLFor picks a TTL in seconds for a query result: short when the SQL refers
// to the current date, long otherwise.
func TTLFor(sql string) int {
	return TTLForWith(sql, ShortTTL, LongTTL)
}

// TTLForWith is TTLFor with configurable short and long values.
func TTLForWith(sql string, short, long int) int {
	low := strings.ToLower(sql)
	for _, m := range relativeMarkers {
		if strings.Contains(low, m) {
			return short
		}
	}
	return long
}
