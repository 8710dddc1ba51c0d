// Package safety tracks per-user policy violations and temporary bans and
// gates every incoming question before any model or warehouse call is made.
//
// State lives in one map guarded by a sync.RWMutex. Critical sections cover
// only the map lookup and record mutation; no I/O happens under the lock.
package safety

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// ViolationKind classifies a recorded violation.
type ViolationKind int

const (
	JailbreakAttempt ViolationKind = iota + 1
	InappropriateLanguage
	SystemAbuse
	RepeatedViolations
)

func (k ViolationKind) String() string {
	switch k {
	case JailbreakAttempt:
		return "jailbreak_attempt"
	case InappropriateLanguage:
		return "inappropriate_language"
	case SystemAbuse:
		return "system_abuse"
	case RepeatedViolations:
		return "repeated_violations"
	default:
		return "unknown"
	}
}

// Weight is the number of warnings a violation of this kind adds.
func (k ViolationKind) Weight() uint32 {
	switch k {
	case JailbreakAttempt, SystemAbuse:
		return 2
	default:
		return 1
	}
}

// Violation is immutable once appended to a record.
type Violation struct {
	Kind    ViolationKind
	Message string
	At      time.Time
}

// Record is a user's safety state. Returned values are copies.
type Record struct {
	UserID       string
	WarningCount uint32
	Violations   []Violation
	BannedUntil  *time.Time
}

// BlockingPhrases reject a question outright when present (case-insensitive).
var BlockingPhrases = []string{
	"ignore previous",
	"forget all",
	"you are now",
	"act as",
	"pretend to be",
	"roleplay as",
	"disregard instructions",
	"forget your instructions",
	"ignore your instructions",
	"you must",
	"you have to",
	"system:",
	"assistant:",
}

// AuditPhrases drive the non-blocking scan on the SQL path. "you are a" lives
// only here: "you are a bank analyst, show..." is common phrasing that should
// be recorded, not rejected.
var AuditPhrases = []string{
	"ignore previous",
	"forget all",
	"you are now",
	"you are a",
	"act as",
	"pretend to be",
	"roleplay as",
	"disregard instructions",
}

// Notice is the user-facing outcome of recording a violation or of a check
// against an active ban. Text is produced by a Messages implementation.
type Notice struct {
	Kind        ViolationKind
	Banned      bool
	Warnings    uint32
	MaxWarnings uint32
	BannedUntil time.Time
	Remaining   time.Duration
	Reason      string
}

// Messages renders notices for users. lang.Localizer implements it.
type Messages interface {
	BanNotice(lang string, n Notice) string
	WarningNotice(lang string, n Notice) string
	StillBanned(lang string, n Notice) string
}

// Options configures a Guard.
type Options struct {
	MaxWarnings uint32        // warnings that trigger a ban; default 5
	BanDuration time.Duration // default 24h
	// Retention prunes records that have no active ban and no violation newer
	// than Retention. Zero keeps records for the process lifetime.
	Retention time.Duration
	// PruneEvery runs the retention pass after this many recorded violations.
	PruneEvery int
}

// Guard is safe for concurrent use.
type Guard struct {
	opts  Options
	msgs  Messages
	now   func() time.Time
	mu    sync.RWMutex
	users map[string]*Record
	// recorded counts violations since the last prune pass.
	recorded int
}

// NewGuard builds a Guard. A nil msgs falls back to plain English messages.
func NewGuard(opts Options, msgs Messages) *Guard {
	if opts.MaxWarnings == 0 {
		opts.MaxWarnings = 5
	}
	if opts.BanDuration <= 0 {
		opts.BanDuration = 24 * time.Hour
	}
	if opts.PruneEvery <= 0 {
		opts.PruneEvery = 1000
	}
	if msgs == nil {
		msgs = plainMessages{}
	}
	return &Guard{
		opts:  opts,
		msgs:  msgs,
		now:   time.Now,
		users: make(map[string]*Record),
	}
}

// WithClock replaces the time source; used by tests.
func (g *Guard) WithClock(now func() time.Time) *Guard {
	g.now = now
	return g
}

// Check gates a message. It returns false with a user-facing message when the
// user is banned or the message contains a blocking phrase; the latter is
// recorded as a JailbreakAttempt before rejecting.
func (g *Guard) Check(userID, message, lang string) (bool, string) {
	now := g.now()

	g.mu.RLock()
	rec, ok := g.users[userID]
	var until time.Time
	if ok && rec.BannedUntil != nil {
		until = *rec.BannedUntil
	}
	g.mu.RUnlock()

	if !until.IsZero() && until.After(now) {
		return false, g.msgs.StillBanned(lang, Notice{
			Banned:      true,
			BannedUntil: until,
			Remaining:   until.Sub(now),
			MaxWarnings: g.opts.MaxWarnings,
		})
	}

	if phrase, hit := MatchPhrase(message, BlockingPhrases); hit {
		n := g.RecordViolation(userID, JailbreakAttempt, "jailbreak phrase: "+phrase)
		return false, g.Render(lang, n)
	}
	return true, ""
}

// Scan records a JailbreakAttempt for every AuditPhrases entry found in text
// without rejecting anything. It returns the matched phrases.
func (g *Guard) Scan(userID, text string) []string {
	low := strings.ToLower(text)
	var hits []string
	for _, p := range AuditPhrases {
		if strings.Contains(low, p) {
			hits = append(hits, p)
			g.RecordViolation(userID, JailbreakAttempt, "jailbreak phrase: "+p)
		}
	}
	return hits
}

// RecordViolation appends a violation, adds its weight to the warning count
// and starts a ban once the count reaches MaxWarnings. An active ban is never
// extended.
func (g *Guard) RecordViolation(userID string, kind ViolationKind, message string) Notice {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.users[userID]
	if !ok {
		rec = &Record{UserID: userID}
		g.users[userID] = rec
	}
	rec.WarningCount += kind.Weight()
	rec.Violations = append(rec.Violations, Violation{Kind: kind, Message: message, At: now})

	n := Notice{Kind: kind, Warnings: rec.WarningCount, MaxWarnings: g.opts.MaxWarnings, Reason: message}
	switch {
	case rec.BannedUntil != nil && rec.BannedUntil.After(now):
		n.Banned = true
		n.BannedUntil = *rec.BannedUntil
	case rec.WarningCount >= g.opts.MaxWarnings:
		until := now.Add(g.opts.BanDuration)
		rec.BannedUntil = &until
		n.Banned = true
		n.BannedUntil = until
	}
	if !n.BannedUntil.IsZero() {
		n.Remaining = n.BannedUntil.Sub(now)
	}

	g.recorded++
	if g.opts.Retention > 0 && g.recorded >= g.opts.PruneEvery {
		g.pruneLocked(now)
		g.recorded = 0
	}
	return n
}

// Render turns a recorded violation outcome into the user-facing message.
func (g *Guard) Render(lang string, n Notice) string {
	if n.Banned {
		return g.msgs.BanNotice(lang, n)
	}
	return g.msgs.WarningNotice(lang, n)
}

// IsBanned reports whether userID is currently banned.
func (g *Guard) IsBanned(userID string) bool {
	now := g.now()
	g.mu.RLock()
	defer g.mu.RUnlock()
	rec, ok := g.users[userID]
	return ok && rec.BannedUntil != nil && rec.BannedUntil.After(now)
}

// Get returns a copy of the user's record.
func (g *Guard) Get(userID string) (Record, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	rec, ok := g.users[userID]
	if !ok {
		return Record{}, false
	}
	out := *rec
	out.Violations = append([]Violation(nil), rec.Violations...)
	if rec.BannedUntil != nil {
		t := *rec.BannedUntil
		out.BannedUntil = &t
	}
	return out, true
}

// ClearWarnings drops a user's record, lifting any ban. It reports whether a
// record existed.
func (g *Guard) ClearWarnings(userID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.users[userID]
	delete(g.users, userID)
	return ok
}

// Len returns the number of tracked users.
func (g *Guard) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.users)
}

func (g *Guard) pruneLocked(now time.Time) {
	cutoff := now.Add(-g.opts.Retention)
	for id, rec := range g.users {
		if rec.BannedUntil != nil && rec.BannedUntil.After(now) {
			continue
		}
		last := time.Time{}
		if n := len(rec.Violations); n > 0 {
			last = rec.Violations[n-1].At
		}
		if !last.After(cutoff) {
			delete(g.users, id)
		}
	}
}

// MatchPhrase returns the first phrase contained in text, case-insensitively.
func MatchPhrase(text string, phrases []string) (string, bool) {
	low := strings.ToLower(text)
	for _, p := range phrases {
		if strings.Contains(low, p) {
			return p, true
		}
	}
	return "", false
}

type plainMessages struct{}

func (plainMessages) BanNotice(_ string, n Notice) string {
	return fmt.Sprintf("You have been blocked for %d hours for repeated policy violations. The block ends at %s.",
		int(n.Remaining.Round(time.Hour)/time.Hour), n.BannedUntil.UTC().Format("2006-01-02 15:04 UTC"))
}

func (plainMessages) WarningNotice(_ string, n Notice) string {
	return fmt.Sprintf("Warning %d/%d: %s", n.Warnings, n.MaxWarnings, n.Reason)
}

func (plainMessages) StillBanned(_ string, n Notice) string {
	return fmt.Sprintf("You are temporarily blocked. The block ends in %d minutes.", int(n.Remaining/time.Minute)+1)
}
