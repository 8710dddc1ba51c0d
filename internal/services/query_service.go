// Package services – QueryService
//
// QueryService turns a natural-language question into an answer. The
// pipeline is: safety check → route → (chat turn | SQL turn) → respond.
//
// The SQL turn generates a statement with the language model, cleans and
// validates it (one repair attempt), executes it through the result cache,
// analyses the rows and renders them. Anything that goes wrong while
// understanding the question degrades to a conversational answer; only
// warehouse failures unrelated to the shape of the SQL are returned as errors.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-sql-assistant/internal/analysis"
	"github.com/tbourn/go-sql-assistant/internal/cache"
	"github.com/tbourn/go-sql-assistant/internal/domain"
	"github.com/tbourn/go-sql-assistant/internal/format"
	"github.com/tbourn/go-sql-assistant/internal/intent"
	"github.com/tbourn/go-sql-assistant/internal/lang"
	"github.com/tbourn/go-sql-assistant/internal/llm"
	"github.com/tbourn/go-sql-assistant/internal/memstore"
	"github.com/tbourn/go-sql-assistant/internal/observability"
	"github.com/tbourn/go-sql-assistant/internal/retry"
	"github.com/tbourn/go-sql-assistant/internal/safety"
	"github.com/tbourn/go-sql-assistant/internal/sqlguard"
	"github.com/tbourn/go-sql-assistant/internal/sysutil"
)

// Executor runs validated SQL. warehouse.Executor implements it.
type Executor interface {
	Execute(ctx context.Context, sql string) ([]domain.Record, error)
}

// SyntaxClassifier reports whether an execution error comes from the shape
// of the SQL. warehouse.IsSyntaxError is the production implementation.
type SyntaxClassifier func(err error) bool

// CachedResult is what the result cache stores per SQL fingerprint.
type CachedResult struct {
	Rows            []domain.Record
	ExecutionTimeMs int64
}

// Fallback reasons, also used as metric labels.
const (
	FallbackGeneration = "generation"
	FallbackRefused    = "refused"
	FallbackValidation = "validation"
	FallbackExecution  = "execution"
)

// DefaultGenerationPolicy bounds SQL generation attempts.
var DefaultGenerationPolicy = retry.Policy{Attempts: 3, Backoff: retry.Linear(500 * time.Millisecond)}

// QueryService is the question orchestrator. Fields are set once at startup.
type QueryService struct {
	Guard     *safety.Guard
	Router    *intent.Router
	Validator *sqlguard.Validator
	LLM       llm.Completer
	Examples  *llm.ExampleSet
	Contexts  *memstore.QueryContextStore
	Cache     *cache.Memory[CachedResult]
	Warehouse Executor
	IsSyntax  SyntaxClassifier
	Analyzer  *analysis.Analyzer
	Chat      *ChatService
	Audit     AuditSink
	Loc       *lang.Localizer

	// ExampleCount is how many few-shot examples go into the prompt; <= 0 uses 6.
	ExampleCount int
	// HistorySize is how many prior question/SQL pairs ground the prompt; <= 0 uses 10.
	HistorySize int
	// MaxQuestionRunes rejects longer questions when > 0.
	MaxQuestionRunes int
	// MaxRows is the row ceiling quoted in the prompt; <= 0 uses the validator limit.
	MaxRows int
	// ShortTTL and LongTTL override the cache TTLs in seconds when > 0.
	ShortTTL, LongTTL int
	// Generation bounds SQL generation; zero value uses DefaultGenerationPolicy.
	Generation retry.Policy
}

// QueryRequest is one question as received by the HTTP layer.
type QueryRequest struct {
	Question        string
	UserID          string
	SessionID       string
	IncludeAnalysis bool
	UseCache        bool
	IncludeSQL      bool
	OutputType      format.OutputType
}

// QueryResult is the orchestrator's answer. On the chat path only Question,
// TextResponse, SessionID and timing are set.
type QueryResult struct {
	Question        string
	SQL             string
	TextResponse    string
	Data            []domain.Record
	Table           *string
	Chart           *format.ChartData
	ExecutionTimeMs int64
	RowCount        int
	Analysis        *analysis.Analysis
	Cached          bool

	Route          string
	SessionID      string
	Language       lang.Language
	FallbackReason string
	AuditID        string
}

// Handle runs the full pipeline for req.
func (s *QueryService) Handle(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	// Work already started is not abandoned when the client goes away; the
	// model and warehouse timeouts bound it instead.
	ctx = context.WithoutCancel(ctx)

	tr := otel.Tracer("services/QueryService")
	ctx, span := tr.Start(ctx, "Handle",
		trace.WithAttributes(
			attribute.String("output_type", string(req.OutputType)),
			attribute.Bool("use_cache", req.UseCache),
		),
	)
	defer span.End()

	start := time.Now()
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if s.MaxQuestionRunes > 0 && utf8.RuneCountInString(question) > s.MaxQuestionRunes {
		return nil, ErrQuestionTooLong
	}
	userID := sysutil.FirstNonEmpty(req.UserID, req.SessionID, AnonymousUser)
	lg := lang.Detect(question)
	logger := log.With().Str("user_id", userID).Int("question_runes", utf8.RuneCountInString(question)).Logger()

	if ok, msg := s.Guard.Check(userID, question, string(lg)); !ok {
		observability.SafetyRejections.WithLabelValues("query").Inc()
		span.SetAttributes(attribute.Bool("rejected", true))
		return nil, &RejectedError{Message: msg}
	}

	d := s.Router.Explain(question)
	route := domain.RouteChat
	if d.Database {
		route = domain.RouteSQL
	}
	observability.RouteDecisions.WithLabelValues(route, string(d.Reason)).Inc()
	span.SetAttributes(attribute.String("route", route), attribute.String("route.reason", string(d.Reason)))
	logger.Debug().Str("route", route).Str("reason", string(d.Reason)).Int("score", d.Score).Msg("question routed")
	question = d.Question

	if !d.Database {
		res, err := s.chatTurn(ctx, req, userID, question, lg, false)
		if err != nil {
			return nil, err
		}
		res.ExecutionTimeMs = time.Since(start).Milliseconds()
		s.audit(ctx, &domain.QueryAudit{
			UserID: userID, Question: question, Route: domain.RouteChat,
			Success: true, ExecutionTimeMs: res.ExecutionTimeMs,
		}, res)
		return res, nil
	}

	// The prefix strip can hide a phrase from the blocking check; record it.
	if hits := s.Guard.Scan(userID, question); len(hits) > 0 {
		logger.Warn().Strs("phrases", hits).Msg("jailbreak phrases on sql path")
	}

	res, err := s.sqlTurn(ctx, req, userID, question, lg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sql turn failed")
		s.audit(ctx, &domain.QueryAudit{
			UserID: userID, Question: question, Route: domain.RouteSQL,
			GeneratedSQL: generatedSQL(err), Success: false,
			ExecutionTimeMs: time.Since(start).Milliseconds(),
		}, nil)
		return nil, err
	}

	if res.FallbackReason != "" {
		observability.Fallbacks.WithLabelValues(res.FallbackReason).Inc()
		logger.Info().Str("reason", res.FallbackReason).Msg("sql turn fell back to chat")
		res.ExecutionTimeMs = time.Since(start).Milliseconds()
		s.audit(ctx, &domain.QueryAudit{
			UserID: userID, Question: question, Route: domain.RouteChat,
			Success: false, ExecutionTimeMs: res.ExecutionTimeMs,
		}, res)
		return res, nil
	}

	s.audit(ctx, &domain.QueryAudit{
		UserID: userID, Question: question, Route: domain.RouteSQL,
		GeneratedSQL: res.SQL, Success: true, Cached: res.Cached,
		RowCount: res.RowCount, ExecutionTimeMs: res.ExecutionTimeMs,
	}, res)
	if !req.IncludeSQL {
		res.SQL = ""
	}
	return res, nil
}

// ClearContext forgets the grounding history of userID.
func (s *QueryService) ClearContext(userID string) bool {
	return s.Contexts.Clear(userID)
}

// executionError carries the SQL that failed so the audit row records it.
type executionError struct {
	sql string
	err error
}

func (e *executionError) Error() string   { return fmt.Sprintf("%v: %v", ErrExecution, e.err) }
func (e *executionError) Unwrap() []error { return []error{ErrExecution, e.err} }

func generatedSQL(err error) string {
	var ee *executionError
	if errors.As(err, &ee) {
		return ee.sql
	}
	return ""
}

func (s *QueryService) sqlTurn(ctx context.Context, req QueryRequest, userID, question string, lg lang.Language) (*QueryResult, error) {
	history := s.Contexts.GetOrCreate(userID).Recent(s.historySize())

	sql, reason := s.generate(ctx, question, history)
	if reason != "" {
		return s.fallback(ctx, req, userID, question, lg, reason)
	}

	rows, execMs, cached, err := s.execute(ctx, sql, req.UseCache)
	if err != nil {
		if s.IsSyntax != nil && s.IsSyntax(err) {
			log.Debug().Err(err).Msg("syntax-shaped execution error")
			return s.fallback(ctx, req, userID, question, lg, FallbackExecution)
		}
		log.Error().Err(err).Msg("warehouse query failed")
		return nil, &executionError{sql: sql, err: err}
	}

	res := &QueryResult{
		Question:        question,
		SQL:             sql,
		Data:            rows,
		RowCount:        len(rows),
		ExecutionTimeMs: execMs,
		Cached:          cached,
		Route:           domain.RouteSQL,
		Language:        lg,
	}

	hint := "auto"
	if req.IncludeAnalysis && s.Analyzer != nil {
		a, _ := s.Analyzer.Analyze(ctx, question, sql, rows, lg)
		res.Analysis = &a
		hint = a.ChartHint()
	}

	qc := s.Contexts.GetOrCreate(userID)
	qc.AddQuery(question, sql, s.Contexts.Now())
	s.Contexts.Update(userID, qc)

	rendered, err := format.Render(question, rows, req.OutputType, hint)
	if err != nil {
		log.Warn().Err(err).Msg("render failed")
	}
	res.Table, res.Chart = rendered.Table, rendered.Chart
	return res, nil
}

// generate asks the model for SQL and returns a clean, validated statement,
// or a fallback reason.
func (s *QueryService) generate(ctx context.Context, question string, history []memstore.QueryEntry) (string, string) {
	var examples []llm.Example
	if s.Examples != nil {
		examples = s.Examples.Relevant(question, s.exampleCount())
	}
	system, user := llm.SQLPrompt(question, history, examples, s.maxRows())
	req := llm.SQLSettings.With(system, user)

	policy := s.Generation
	if policy.Attempts <= 0 {
		policy = DefaultGenerationPolicy
	}
	var raw string
	err := retry.Do(ctx, policy, func(ctx context.Context, attempt int) error {
		text, err := s.LLM.Complete(ctx, req)
		if err != nil {
			if errors.Is(err, llm.ErrDisabled) {
				return retry.Permanent(err)
			}
			return err
		}
		if strings.TrimSpace(text) == "" {
			return llm.ErrEmptyCompletion
		}
		raw = text
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Msg("sql generation failed")
		return "", FallbackGeneration
	}

	sql := sqlguard.Clean(raw)
	if sqlguard.IsRefusal(sql) {
		return "", FallbackRefused
	}
	if err := s.Validator.Validate(sql); err != nil {
		observability.ValidationFailures.WithLabelValues(sqlguard.KindOf(err).String()).Inc()
		repaired, ok := sqlguard.Repair(sql)
		if !ok {
			log.Debug().Err(err).Msg("generated sql rejected, nothing to repair")
			return "", FallbackValidation
		}
		if err := s.Validator.Validate(repaired); err != nil {
			observability.ValidationFailures.WithLabelValues(sqlguard.KindOf(err).String()).Inc()
			log.Debug().Err(err).Msg("repaired sql rejected")
			return "", FallbackValidation
		}
		if sqlguard.IsRefusal(repaired) {
			return "", FallbackRefused
		}
		sql = repaired
	}
	return sql, ""
}

// execute runs sql through the result cache when enabled.
func (s *QueryService) execute(ctx context.Context, sql string, useCache bool) ([]domain.Record, int64, bool, error) {
	run := func() (CachedResult, error) {
		if s.Warehouse == nil {
			return CachedResult{}, errNoWarehouse
		}
		start := time.Now()
		rows, err := s.Warehouse.Execute(ctx, sql)
		if err != nil {
			return CachedResult{}, err
		}
		return CachedResult{Rows: rows, ExecutionTimeMs: time.Since(start).Milliseconds()}, nil
	}

	if !useCache || s.Cache == nil {
		r, err := run()
		return r.Rows, r.ExecutionTimeMs, false, err
	}

	key := cache.FromSQL(sql)
	ttl := time.Duration(cache.TTLForWith(sql, positive(s.ShortTTL, cache.ShortTTL), positive(s.LongTTL, cache.LongTTL))) * time.Second
	r, hit, err := s.Cache.GetOrLoad(key, func() (CachedResult, time.Duration, error) {
		r, err := run()
		return r, ttl, err
	})
	if err != nil {
		return nil, 0, false, err
	}
	observability.ObserveCache(hit)
	return r.Rows, r.ExecutionTimeMs, hit, nil
}

// fallback answers conversationally after the SQL turn gave up. A failing
// model yields the localized "cannot generate" sentence instead of an error.
func (s *QueryService) fallback(ctx context.Context, req QueryRequest, userID, question string, lg lang.Language, reason string) (*QueryResult, error) {
	res, err := s.chatTurn(ctx, req, userID, question, lg, true)
	if err != nil {
		return nil, err
	}
	res.FallbackReason = reason
	return res, nil
}

func (s *QueryService) chatTurn(ctx context.Context, req QueryRequest, userID, question string, lg lang.Language, degraded bool) (*QueryResult, error) {
	res := &QueryResult{
		Question: question,
		Data:     []domain.Record{},
		Route:    domain.RouteChat,
		Language: lg,
	}
	reply, sid, err := s.Chat.Converse(ctx, req.SessionID, userID, question, lg)
	res.SessionID = sid
	if err != nil {
		if !degraded {
			return nil, err
		}
		reply = s.Loc.CannotGenerate(lg)
	}
	res.TextResponse = reply
	return res, nil
}

// audit writes the row and stores its id on res. Failures are logged only.
func (s *QueryService) audit(ctx context.Context, a *domain.QueryAudit, res *QueryResult) {
	if s.Audit == nil {
		return
	}
	if err := s.Audit.Record(ctx, a); err != nil {
		log.Warn().Err(err).Msg("audit write failed")
		return
	}
	if res != nil {
		res.AuditID = a.ID
	}
}

func (s *QueryService) historySize() int { return positive(s.HistorySize, memstore.MaxQueryHistory) }

func (s *QueryService) exampleCount() int { return positive(s.ExampleCount, 6) }

func positive(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func (s *QueryService) maxRows() int {
	if s.MaxRows > 0 {
		return s.MaxRows
	}
	return int(s.Validator.MaxLimit)
}
