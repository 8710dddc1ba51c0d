// Package services holds the question-answering pipeline: the query
// orchestrator, the conversational reply service and the audit trail reader.
// This file centralizes service-level errors so that handlers can map them to
// HTTP results consistently.
package services

import "errors"

var (
	// ErrEmptyQuestion is returned for a blank question or chat message.
	ErrEmptyQuestion = errors.New("question is empty")

	// ErrQuestionTooLong is returned when the input exceeds the configured
	// rune limit.
	ErrQuestionTooLong = errors.New("question too long")

	// ErrLLMUnavailable is returned when a conversational reply could not be
	// produced by the language model.
	ErrLLMUnavailable = errors.New("language model unavailable")

	// ErrExecution wraps warehouse failures that are not caused by the shape
	// of the generated SQL (connectivity, timeouts, permissions).
	ErrExecution = errors.New("query execution failed")

	errNoWarehouse = errors.New("warehouse not configured")
)

// RejectedError is returned when the safety guard refuses a request. Message
// is localized and safe to show to the user.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string { return "rejected: " + e.Message }
