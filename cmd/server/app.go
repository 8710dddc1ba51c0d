package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-sql-assistant/internal/analysis"
	"github.com/tbourn/go-sql-assistant/internal/cache"
	"github.com/tbourn/go-sql-assistant/internal/config"
	"github.com/tbourn/go-sql-assistant/internal/http/handlers"
	"github.com/tbourn/go-sql-assistant/internal/intent"
	"github.com/tbourn/go-sql-assistant/internal/lang"
	"github.com/tbourn/go-sql-assistant/internal/llm"
	"github.com/tbourn/go-sql-assistant/internal/memstore"
	"github.com/tbourn/go-sql-assistant/internal/repo"
	"github.com/tbourn/go-sql-assistant/internal/retry"
	"github.com/tbourn/go-sql-assistant/internal/safety"
	"github.com/tbourn/go-sql-assistant/internal/services"
	"github.com/tbourn/go-sql-assistant/internal/sqlguard"
	"github.com/tbourn/go-sql-assistant/internal/warehouse"
)

// app holds the long-lived collaborators built from configuration.
type app struct {
	AuditDB   *gorm.DB
	Warehouse *sqlx.DB
	Contexts  *memstore.QueryContextStore
	Sessions  *memstore.SessionStore
	Deps      handlers.Deps

	contextAge time.Duration
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	loc, err := lang.NewLocalizer()
	if err != nil {
		return nil, fmt.Errorf("localizer: %w", err)
	}

	auditDB, err := repo.OpenSQLite(cfg.AuditDBPath)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	if err := repo.AutoMigrate(auditDB); err != nil {
		return nil, fmt.Errorf("migrate audit db: %w", err)
	}

	a := &app{
		AuditDB:    auditDB,
		Contexts:   memstore.NewQueryContextStore(cfg.Context.MaxAge),
		Sessions:   memstore.NewSessionStore(cfg.Context.MaxAge),
		contextAge: cfg.Context.MaxAge,
	}

	var exec services.Executor
	var pinger handlers.Pinger
	if cfg.Warehouse.URL != "" {
		wh, err := warehouse.Open(ctx, cfg.Warehouse.URL, cfg.Warehouse.MaxOpenConns)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Warehouse = wh
		if cfg.Warehouse.Migrate {
			if err := warehouse.Migrate(wh); err != nil {
				a.Close()
				return nil, err
			}
		}
		e := &warehouse.Executor{
			DB:       wh,
			Timeout:  cfg.Warehouse.QueryTimeout,
			ReadOnly: cfg.Warehouse.ReadOnly,
			MaxRows:  cfg.Query.MaxRows,
		}
		exec, pinger = e, e
	} else {
		log.Warn().Msg("DATABASE_URL not set: SQL questions will fail until a warehouse is configured")
	}

	provider, err := llm.DefaultRegistry().Build(llm.Config{
		Provider: cfg.LLM.Provider,
		BaseURL:  cfg.LLM.BaseURL,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
		Timeout:  cfg.LLM.Timeout,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	model := llm.Wrap(provider, cfg.LLM.RPS, cfg.LLM.Burst)

	examples := llm.DefaultExamples
	if cfg.ExamplesPath != "" {
		loaded, err := llm.LoadExamples(cfg.ExamplesPath)
		if err != nil {
			a.Close()
			return nil, err
		}
		examples = loaded
		log.Info().Int("count", len(examples)).Str("path", cfg.ExamplesPath).Msg("few-shot examples loaded")
	}

	guard := safety.NewGuard(safety.Options{
		MaxWarnings: uint32(cfg.Safety.MaxWarnings),
		BanDuration: cfg.Safety.BanDuration,
		Retention:   cfg.Safety.RecordRetention,
	}, loc)

	policy := retry.Policy{Attempts: cfg.LLM.Attempts, Backoff: retry.Linear(500 * time.Millisecond)}

	chat := &services.ChatService{
		LLM:             model,
		Guard:           guard,
		Sessions:        a.Sessions,
		Window:          cfg.Context.ChatWindow,
		MaxMessageRunes: cfg.Query.MaxQuestionRunes,
	}
	audit := &services.AuditService{DB: auditDB}

	var results *cache.Memory[services.CachedResult]
	if cfg.Cache.Enabled {
		results = cache.New[services.CachedResult](cache.Options{
			SweepProbability: cfg.Cache.SweepProbability,
			SingleFlight:     cfg.Cache.SingleFlight,
		})
	}

	query := &services.QueryService{
		Guard:            guard,
		Router:           intent.Default(),
		Validator:        sqlguard.New(int64(cfg.Query.MaxRows), cfg.Query.FactTable),
		LLM:              model,
		Examples:         llm.NewExampleSet(examples),
		Contexts:         a.Contexts,
		Cache:            results,
		Warehouse:        exec,
		IsSyntax:         warehouse.IsSyntaxError,
		Analyzer:         &analysis.Analyzer{LLM: model, Loc: loc, Policy: policy},
		Chat:             chat,
		Audit:            audit,
		Loc:              loc,
		ExampleCount:     cfg.Query.ExampleCount,
		HistorySize:      cfg.Context.HistorySize,
		MaxQuestionRunes: cfg.Query.MaxQuestionRunes,
		MaxRows:          cfg.Query.MaxRows,
		ShortTTL:         cfg.Cache.ShortTTL,
		LongTTL:          cfg.Cache.LongTTL,
		Generation:       policy,
	}

	a.Deps = handlers.Deps{
		Query:            query,
		Chat:             chat,
		Audit:            audit,
		Safety:           guard,
		Provider:         provider.Name(),
		MaxQuestionRunes: cfg.Query.MaxQuestionRunes,
	}
	// A typed nil would make the health check ping a nil executor.
	if pinger != nil {
		a.Deps.Warehouse = pinger
	}
	return a, nil
}

// janitor evicts idle conversation state and expired idempotency records
// until ctx is done.
func (a *app) janitor(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			cutoff := now.Add(-a.contextAge)
			nCtx := a.Contexts.Cleanup(cutoff)
			nSess := a.Sessions.Cleanup(cutoff)
			nIdem, err := repo.PurgeIdempotency(ctx, a.AuditDB, now.UTC())
			if err != nil {
				log.Warn().Err(err).Msg("purge idempotency records")
			}
			if nCtx+nSess > 0 || nIdem > 0 {
				log.Debug().Int("contexts", nCtx).Int("sessions", nSess).Int64("idempotency", nIdem).Msg("janitor")
			}
		}
	}
}

// Close releases database handles.
func (a *app) Close() {
	if a.Warehouse != nil {
		_ = a.Warehouse.Close()
	}
	if a.AuditDB != nil {
		if sqlDB, err := a.AuditDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
