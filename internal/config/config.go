// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, the language-model provider, the warehouse connection, the safety
// and cache policies, rate limiting and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-sql-assistant")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// LLMConfig selects the language-model provider.
type LLMConfig struct {
	Provider string        // LLM_PROVIDER: ollama|openai|disabled
	BaseURL  string        // LLM_BASE_URL; empty uses the provider default
	Model    string        // LLM_MODEL
	APIKey   string        // LLM_API_KEY (openai)
	Timeout  time.Duration // LLM_TIMEOUT per call
	RPS      float64       // LLM_RPS; 0 disables pacing
	Burst    int           // LLM_BURST
	Attempts int           // LLM_ATTEMPTS for SQL generation and analysis
}

// WarehouseConfig points at the analytics database holding transactions.
type WarehouseConfig struct {
	URL          string        // DATABASE_URL (postgres DSN); empty disables the SQL path
	MaxOpenConns int           // WAREHOUSE_MAX_OPEN_CONNS
	QueryTimeout time.Duration // WAREHOUSE_QUERY_TIMEOUT
	ReadOnly     bool          // WAREHOUSE_READ_ONLY runs queries in read-only transactions
	Migrate      bool          // WAREHOUSE_MIGRATE applies embedded migrations at startup
}

// SafetyConfig tunes the per-user violation tracker.
type SafetyConfig struct {
	MaxWarnings     int           // SAFETY_MAX_WARNINGS
	BanDuration     time.Duration // SAFETY_BAN_DURATION
	RecordRetention time.Duration // SAFETY_RECORD_RETENTION; 0 keeps records
}

// ContextConfig bounds per-user query context and chat sessions.
type ContextConfig struct {
	MaxAge      time.Duration // CONTEXT_MAX_AGE
	HistorySize int           // CONTEXT_HISTORY_SIZE (1..10)
	ChatWindow  int           // CHAT_WINDOW turns in a chat prompt
}

// CacheConfig tunes the result cache.
type CacheConfig struct {
	Enabled          bool    // CACHE_ENABLED
	SweepProbability float64 // CACHE_SWEEP_PROBABILITY in [0,1]
	SingleFlight     bool    // CACHE_SINGLE_FLIGHT
	ShortTTL         int     // CACHE_SHORT_TTL seconds, relative-date queries
	LongTTL          int     // CACHE_LONG_TTL seconds
}

// QueryConfig bounds questions and generated SQL.
type QueryConfig struct {
	MaxQuestionRunes int    // MAX_QUESTION_RUNES
	MaxRows          int    // MAX_ROWS ceiling for LIMIT and result rows
	FactTable        string // FACT_TABLE
	ExampleCount     int    // FEW_SHOT_EXAMPLES
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	AuditDBPath  string // SQLite path for the audit trail and idempotency keys
	ExamplesPath string // optional Markdown table replacing the built-in few-shot examples

	LLM       LLMConfig
	Warehouse WarehouseConfig
	Safety    SafetyConfig
	Context   ContextConfig
	Cache     CacheConfig
	Query     QueryConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		AuditDBPath:  getenv("AUDIT_DB_PATH", "audit.db"),
		ExamplesPath: getenv("EXAMPLES_PATH", ""),

		LLM: LLMConfig{
			Provider: strings.ToLower(getenv("LLM_PROVIDER", "ollama")),
			BaseURL:  getenv("LLM_BASE_URL", ""),
			Model:    getenv("LLM_MODEL", "llama3.1:8b"),
			APIKey:   getenv("LLM_API_KEY", ""),
			Timeout:  getdur("LLM_TIMEOUT", 60*time.Second),
			RPS:      getfloat("LLM_RPS", 0),
			Burst:    getint("LLM_BURST", 1),
			Attempts: getint("LLM_ATTEMPTS", 3),
		},
		Warehouse: WarehouseConfig{
			URL:          getenv("DATABASE_URL", ""),
			MaxOpenConns: getint("WAREHOUSE_MAX_OPEN_CONNS", 10),
			QueryTimeout: getdur("WAREHOUSE_QUERY_TIMEOUT", 30*time.Second),
			ReadOnly:     getbool("WAREHOUSE_READ_ONLY", true),
			Migrate:      getbool("WAREHOUSE_MIGRATE", false),
		},
		Safety: SafetyConfig{
			MaxWarnings:     getint("SAFETY_MAX_WARNINGS", 5),
			BanDuration:     getdur("SAFETY_BAN_DURATION", 24*time.Hour),
			RecordRetention: getdur("SAFETY_RECORD_RETENTION", 30*24*time.Hour),
		},
		Context: ContextConfig{
			MaxAge:      getdur("CONTEXT_MAX_AGE", 24*time.Hour),
			HistorySize: getint("CONTEXT_HISTORY_SIZE", 10),
			ChatWindow:  getint("CHAT_WINDOW", 10),
		},
		Cache: CacheConfig{
			Enabled:          getbool("CACHE_ENABLED", true),
			SweepProbability: getfloat("CACHE_SWEEP_PROBABILITY", 0.1),
			SingleFlight:     getbool("CACHE_SINGLE_FLIGHT", true),
			ShortTTL:         getint("CACHE_SHORT_TTL", 300),
			LongTTL:          getint("CACHE_LONG_TTL", 1800),
		},
		Query: QueryConfig{
			MaxQuestionRunes: getint("MAX_QUESTION_RUNES", 1000),
			MaxRows:          getint("MAX_ROWS", 1000),
			FactTable:        getenv("FACT_TABLE", "transactions"),
			ExampleCount:     getint("FEW_SHOT_EXAMPLES", 6),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-sql-assistant"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	cfg.normalize()
	return cfg, cfg.validate()
}

func (c *Config) normalize() {
	if c.LogLevel == "warning" {
		c.LogLevel = "warn"
	}
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		c.GinMode = "release"
	}
	if c.LLM.Burst < 1 {
		c.LLM.Burst = 1
	}
}

// rule is one validation check; bad reports a violation of msg.
type rule struct {
	bad bool
	msg string
}

// validate returns the first violated rule, in declaration order.
func (c Config) validate() error {
	blank := func(s string) bool { return strings.TrimSpace(s) == "" }
	rules := []rule{
		{!oneOf(c.LogLevel, "debug", "info", "warn", "error", "fatal", "panic"),
			"LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic"},
		{blank(c.Port), "PORT must not be empty"},
		{c.ReadTimeout <= 0 || c.ReadHeaderTimeout <= 0 || c.WriteTimeout <= 0 || c.IdleTimeout <= 0,
			"timeouts must be positive durations"},
		{c.MaxHeaderBytes <= 0, "MAX_HEADER_BYTES must be > 0"},
		{blank(c.AuditDBPath), "AUDIT_DB_PATH must not be empty"},

		{!oneOf(c.LLM.Provider, "ollama", "openai", "disabled"), "LLM_PROVIDER must be one of: ollama, openai, disabled"},
		{c.LLM.Provider == "openai" && blank(c.LLM.APIKey), "LLM_API_KEY is required for the openai provider"},
		{c.LLM.Timeout <= 0, "LLM_TIMEOUT must be > 0"},
		{c.LLM.RPS < 0, "LLM_RPS must be >= 0"},
		{c.LLM.Attempts < 1, "LLM_ATTEMPTS must be >= 1"},

		{c.Warehouse.MaxOpenConns < 1, "WAREHOUSE_MAX_OPEN_CONNS must be >= 1"},
		{c.Warehouse.QueryTimeout <= 0, "WAREHOUSE_QUERY_TIMEOUT must be > 0"},

		{c.Safety.MaxWarnings < 1, "SAFETY_MAX_WARNINGS must be >= 1"},
		{c.Safety.BanDuration <= 0, "SAFETY_BAN_DURATION must be > 0"},
		{c.Safety.RecordRetention < 0, "SAFETY_RECORD_RETENTION must be >= 0"},

		{c.Context.MaxAge <= 0, "CONTEXT_MAX_AGE must be > 0"},
		{c.Context.HistorySize < 1 || c.Context.HistorySize > 10, "CONTEXT_HISTORY_SIZE must be between 1 and 10"},
		{c.Context.ChatWindow < 1, "CHAT_WINDOW must be >= 1"},

		{c.Cache.SweepProbability < 0 || c.Cache.SweepProbability > 1, "CACHE_SWEEP_PROBABILITY must be in [0,1]"},
		{c.Cache.ShortTTL <= 0 || c.Cache.LongTTL <= 0, "CACHE_SHORT_TTL and CACHE_LONG_TTL must be > 0"},

		{c.Query.MaxQuestionRunes < 1, "MAX_QUESTION_RUNES must be >= 1"},
		{c.Query.MaxRows < 1, "MAX_ROWS must be >= 1"},
		{blank(c.Query.FactTable), "FACT_TABLE must not be empty"},
		{c.Query.ExampleCount < 0, "FEW_SHOT_EXAMPLES must be >= 0"},

		{c.RateRPS < 0, "RATE_RPS must be >= 0"},
		{c.RateBurst < 1, "RATE_BURST must be >= 1"},
		{c.Security.HSTSMaxAge < 0, "HSTS_MAX_AGE must be >= 0"},
		{c.IdempotencyTTL <= 0, "IDEMPOTENCY_TTL must be > 0"},
		{c.OTEL.SampleRatio < 0 || c.OTEL.SampleRatio > 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]"},
	}
	for _, r := range rules {
		if r.bad {
			return errors.New(r.msg)
		}
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// lookup parses a non-empty variable, falling back to def when it is unset,
// empty or unparsable.
func lookup[T any](k string, def T, parse func(string) (T, error)) T {
	v, ok := os.LookupEnv(k)
	if !ok || v == "" {
		return def
	}
	out, err := parse(v)
	if err != nil {
		return def
	}
	return out
}

func getenv(k, def string) string {
	return lookup(k, def, func(v string) (string, error) { return v, nil })
}

func getfloat(k string, def float64) float64 {
	return lookup(k, def, func(v string) (float64, error) { return strconv.ParseFloat(v, 64) })
}

func getint(k string, def int) int { return lookup(k, def, strconv.Atoi) }

func getdur(k string, def time.Duration) time.Duration { return lookup(k, def, time.ParseDuration) }

var errNotBool = errors.New("not a boolean")

func getbool(k string, def bool) bool {
	return lookup(k, def, func(v string) (bool, error) {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true, nil
		case "0", "false", "no", "n", "off":
			return false, nil
		}
		return false, errNotBool
	})
}

// splitCSV splits a comma list, dropping blanks; "" yields nil.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures a leading "/" and no trailing "/" except for the root.
func normalizeBasePath(p string) string {
	return "/" + strings.Trim(strings.TrimSpace(p), "/")
}
