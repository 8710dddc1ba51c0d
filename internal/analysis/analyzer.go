package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tbourn/go-sql-assistant/internal/domain"
	"github.com/tbourn/go-sql-assistant/internal/lang"
	"github.com/tbourn/go-sql-assistant/internal/llm"
	"github.com/tbourn/go-sql-assistant/internal/observability"
	"github.com/tbourn/go-sql-assistant/internal/retry"
)

// DefaultPolicy retries a failed analysis twice, waiting 500ms then 1s.
var DefaultPolicy = retry.Policy{Attempts: 3, Backoff: retry.Linear(500 * time.Millisecond)}

// Analyzer asks the model for an analysis and falls back to the built-in one.
//
// Fields:
//   - LLM: completion backend; nil always uses the fallback.
//   - Loc: catalog for fallback text (required).
//   - Policy: attempt budget; the zero value uses DefaultPolicy.
type Analyzer struct {
	LLM    llm.Completer
	Loc    *lang.Localizer
	Policy retry.Policy
}

// Analyze returns the analysis and whether the fallback produced it. It never
// fails: model errors, blank or unparsable responses are retried and then
// replaced by Fallback.
func (a *Analyzer) Analyze(ctx context.Context, question, sql string, rows []domain.Record, lg lang.Language) (Analysis, bool) {
	ctx, span := otel.Tracer("analysis").Start(ctx, "Analyze")
	defer span.End()
	span.SetAttributes(attribute.Int("rows", len(rows)))

	if a.LLM == nil {
		return Fallback(rows, lg, a.Loc), true
	}

	policy := a.Policy
	if policy.Attempts <= 0 {
		policy = DefaultPolicy
	}
	system, user := llm.AnalysisPrompt(question, sql, rows, lg)
	req := llm.AnalysisSettings.With(system, user)

	var out Analysis
	err := retry.Do(ctx, policy, func(ctx context.Context, attempt int) error {
		text, err := a.LLM.Complete(ctx, req)
		if err != nil {
			if errors.Is(err, llm.ErrDisabled) {
				return retry.Permanent(err)
			}
			return err
		}
		parsed, err := Parse(text)
		if err != nil {
			log.Debug().Int("attempt", attempt).Err(err).Msg("analysis response not parsable")
			return err
		}
		out = parsed
		return nil
	})
	if err != nil {
		if !errors.Is(err, llm.ErrDisabled) {
			log.Warn().Err(err).Msg("analysis failed, using built-in summary")
		}
		observability.Fallbacks.WithLabelValues("analysis").Inc()
		span.SetAttributes(attribute.Bool("fallback", true))
		return Fallback(rows, lg, a.Loc), true
	}
	return out, false
}
