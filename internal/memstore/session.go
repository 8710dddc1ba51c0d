package memstore

import "time"

// Role marks who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MaxTurns bounds a session transcript; prompts only use the tail.
const MaxTurns = 100

type Turn struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"timestamp"`
}

// Session is a chat transcript.
type Session struct {
	ID        string
	UserID    string
	Turns     []Turn
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewSession(id string, now time.Time) Session {
	return Session{ID: id, CreatedAt: now, UpdatedAt: now}
}

func (s Session) LastUpdated() time.Time { return s.UpdatedAt }

func (s Session) Clone() Session {
	s.Turns = append([]Turn(nil), s.Turns...)
	return s
}

// Append adds a turn, dropping the oldest past MaxTurns.
func (s *Session) Append(role Role, content string, now time.Time) {
	s.Turns = append(s.Turns, Turn{Role: role, Content: content, At: now})
	if over := len(s.Turns) - MaxTurns; over > 0 {
		s.Turns = append([]Turn(nil), s.Turns[over:]...)
	}
	s.UpdatedAt = now
}

// Recent returns up to n most recent turns, oldest first.
func (s Session) Recent(n int) []Turn {
	return tail(s.Turns, n)
}

// SessionStore holds chat sessions by id.
type SessionStore = Store[Session]

func NewSessionStore(maxAge time.Duration) *SessionStore {
	return New(maxAge, NewSession)
}
