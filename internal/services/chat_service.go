// Package services – ChatService
//
// ChatService answers conversational messages. It keeps a bounded turn
// history per session in a memstore.SessionStore and asks the language model
// for the reply. The query orchestrator reuses Converse for questions routed
// to chat and for its graceful fallbacks.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-sql-assistant/internal/lang"
	"github.com/tbourn/go-sql-assistant/internal/llm"
	"github.com/tbourn/go-sql-assistant/internal/memstore"
	"github.com/tbourn/go-sql-assistant/internal/observability"
	"github.com/tbourn/go-sql-assistant/internal/safety"
	"github.com/tbourn/go-sql-assistant/internal/sysutil"
)

// AnonymousUser identifies callers that sent neither a user nor a session id.
const AnonymousUser = "anonymous"

// ChatService coordinates safety checks, session history and chat completions.
type ChatService struct {
	LLM      llm.Completer
	Guard    *safety.Guard
	Sessions *memstore.SessionStore

	// Window is how many prior turns go into the prompt; <= 0 uses 10.
	Window int
	// MaxMessageRunes rejects longer messages when > 0.
	MaxMessageRunes int
}

// ChatReply is the outcome of one conversational turn.
type ChatReply struct {
	Message      string
	SessionID    string
	Language     lang.Language
	ResponseTime time.Duration
}

// Reply checks the message with the safety guard and answers it.
func (s *ChatService) Reply(ctx context.Context, sessionID, userID, message string) (*ChatReply, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "Reply",
		trace.WithAttributes(attribute.String("session.id", sessionID)),
	)
	defer span.End()

	start := time.Now()
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyQuestion
	}
	if s.MaxMessageRunes > 0 && utf8.RuneCountInString(message) > s.MaxMessageRunes {
		return nil, ErrQuestionTooLong
	}
	userID = sysutil.FirstNonEmpty(userID, AnonymousUser)
	lg := lang.Detect(message)

	if s.Guard != nil {
		if ok, msg := s.Guard.Check(userID, message, string(lg)); !ok {
			observability.SafetyRejections.WithLabelValues("chat").Inc()
			span.SetAttributes(attribute.Bool("rejected", true))
			return nil, &RejectedError{Message: msg}
		}
	}

	reply, sid, err := s.Converse(ctx, sessionID, userID, message, lg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chat failed")
		return nil, err
	}
	return &ChatReply{Message: reply, SessionID: sid, Language: lg, ResponseTime: time.Since(start)}, nil
}

// Converse asks the model for a reply given the session history and records
// the user turn together with the reply. A failed call leaves the session
// unchanged. A blank sessionID starts a new session with a random UUID. It
// does not run the safety guard.
func (s *ChatService) Converse(ctx context.Context, sessionID, userID, message string, lg lang.Language) (reply, sid string, err error) {
	sid = strings.TrimSpace(sessionID)
	if sid == "" {
		sid = uuid.NewString()
	}
	window := s.Window
	if window <= 0 {
		window = 10
	}

	draft := s.Sessions.GetOrCreate(sid)
	asked := s.Sessions.Now()
	draft.Append(memstore.RoleUser, message, asked)

	system, user := llm.ChatPrompt(message, draft.Recent(window), lg)
	text, err := s.LLM.Complete(ctx, llm.ChatSettings.With(system, user))
	if err != nil {
		log.Warn().Err(err).Str("session_id", sid).Msg("chat completion failed")
		return "", sid, fmt.Errorf("%w: %v", ErrLLMUnavailable, err)
	}
	reply = strings.TrimSpace(text)
	if reply == "" {
		return "", sid, fmt.Errorf("%w: %v", ErrLLMUnavailable, llm.ErrEmptyCompletion)
	}

	// Re-read so turns appended by concurrent requests on this session survive.
	sess := s.Sessions.GetOrCreate(sid)
	if sess.UserID == "" {
		sess.UserID = userID
	}
	sess.Append(memstore.RoleUser, message, asked)
	sess.Append(memstore.RoleAssistant, reply, s.Sessions.Now())
	s.Sessions.Update(sid, sess)
	return reply, sid, nil
}

// ClearSession drops a session's history and reports whether it existed.
func (s *ChatService) ClearSession(sessionID string) bool {
	return s.Sessions.Clear(sessionID)
}
