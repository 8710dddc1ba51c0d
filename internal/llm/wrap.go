package llm

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/tbourn/go-sql-assistant/internal/observability"
)

// RateLimited paces calls to Next through a token bucket shared by all
// callers. Waiting honours ctx.
type RateLimited struct {
	Next    Provider
	Limiter *rate.Limiter
}

// NewRateLimited allows rps calls per second with the given burst. A
// non-positive rps returns p unchanged.
func NewRateLimited(p Provider, rps float64, burst int) Provider {
	if rps <= 0 {
		return p
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{Next: p, Limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *RateLimited) Name() string { return r.Next.Name() }

func (r *RateLimited) Complete(ctx context.Context, req Request) (string, error) {
	if err := r.Limiter.Wait(ctx); err != nil {
		return "", err
	}
	return r.Next.Complete(ctx, req)
}

// Instrumented traces, times and logs every call to Next.
type Instrumented struct {
	Next Provider
}

func (i Instrumented) Name() string { return i.Next.Name() }

func (i Instrumented) Complete(ctx context.Context, req Request) (string, error) {
	ctx, span := otel.Tracer("llm").Start(ctx, "Complete",
		trace.WithAttributes(
			attribute.String("llm.provider", i.Next.Name()),
			attribute.String("llm.purpose", string(req.Purpose)),
			attribute.Int("llm.max_tokens", req.MaxTokens),
		))
	defer span.End()

	start := time.Now()
	text, err := i.Next.Complete(ctx, req)
	dur := time.Since(start)
	observability.ObserveLLM(i.Next.Name(), string(req.Purpose), dur, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn().Err(err).Str("provider", i.Next.Name()).Str("purpose", string(req.Purpose)).
			Dur("took", dur).Msg("llm completion failed")
		return "", err
	}
	span.SetAttributes(attribute.Int("llm.response_len", len(text)))
	log.Debug().Str("provider", i.Next.Name()).Str("purpose", string(req.Purpose)).
		Dur("took", dur).Int("response_len", len(text)).Msg("llm completion")
	return text, nil
}

// Wrap applies pacing and instrumentation.
func Wrap(p Provider, rps float64, burst int) Provider {
	return Instrumented{Next: NewRateLimited(p, rps, burst)}
}
