// Package llm talks to language-model providers. Callers depend on the
// Completer interface; providers, pacing and instrumentation are composed
// around it at startup.
package llm

import (
	"context"
	"errors"
	"time"
)

// Purpose labels a completion for metrics, tracing and logs.
type Purpose string

const (
	PurposeSQL      Purpose = "sql"
	PurposeAnalysis Purpose = "analysis"
	PurposeChat     Purpose = "chat"
)

// Request is one completion call.
type Request struct {
	System      string
	User        string
	Temperature float32
	TopP        float32
	MaxTokens   int
	Purpose     Purpose
}

var (
	// ErrEmptyCompletion is returned for a blank response. Callers treat it
	// as retryable.
	ErrEmptyCompletion = errors.New("llm: empty completion")
	// ErrDisabled is returned by the disabled provider.
	ErrDisabled = errors.New("llm: provider disabled")
)

// Completer produces text for a request.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Provider is a named Completer.
type Provider interface {
	Completer
	Name() string
}

// Config selects and configures a provider.
type Config struct {
	Provider string // ollama|openai|disabled
	BaseURL  string // provider endpoint; empty uses the provider default
	Model    string
	APIKey   string
	Timeout  time.Duration // per call
}

// Generation settings per purpose.
var (
	SQLSettings      = Request{Temperature: 0.1, TopP: 0.9, MaxTokens: 512, Purpose: PurposeSQL}
	AnalysisSettings = Request{Temperature: 0.7, TopP: 0.9, MaxTokens: 1024, Purpose: PurposeAnalysis}
	ChatSettings     = Request{Temperature: 0.7, TopP: 0.9, MaxTokens: 512, Purpose: PurposeChat}
)

// With returns s carrying the given prompts.
func (s Request) With(system, user string) Request {
	s.System, s.User = system, user
	return s
}

type disabled struct{}

// Disabled returns a provider that always fails with ErrDisabled. Callers
// treat that as permanent: SQL generation gives up after one attempt and
// falls back to chat, and analysis uses its built-in summary.
func Disabled() Provider { return disabled{} }

func (disabled) Name() string { return "disabled" }

func (disabled) Complete(context.Context, Request) (string, error) { return "", ErrDisabled }
