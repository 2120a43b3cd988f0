// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes settings for the
// HTTP server, storage, the Telegram bot, the OpenAI analyzer, analysis
// windows, the debounce/cache policy, and observability.
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
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "chat-digest")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// BotConfig holds Telegram transport settings.
type BotConfig struct {
	Enabled    bool   // BOT_ENABLED
	Token      string // BOT_TOKEN
	AdminID    int64  // ADMIN_ID, exempt from debounce
	AdminToken string // ADMIN_TOKEN, required in X-Admin-Token for HTTP bypass when set
	Timezone   string // TIMEZONE, used when rendering timestamps for the model
	Language   string // BOT_LANGUAGE, BCP 47 tag for bot replies ("en", "ru")
}

// OpenAIConfig holds analyzer client settings.
type OpenAIConfig struct {
	APIKey             string  // OPENAI_API_KEY
	BaseURL            string  // OPENAI_BASE_URL (optional, for compatible gateways)
	Model              string  // OPENAI_MODEL
	MaxTokens          int     // MAX_TOKENS for chat summaries
	HoroscopeMaxTokens int     // HOROSCOPE_MAX_TOKENS
	InlineMaxTokens    int     // INLINE_MAX_TOKENS for question answers
	Temperature        float64 // OPENAI_TEMPERATURE
	Timeout            time.Duration
}

// AnalysisConfig holds analysis windows, cache TTL and debounce intervals.
type AnalysisConfig struct {
	PeriodHours          int           // ANALYSIS_PERIOD_HOURS, default window for /analyze
	ShortPeriodHours     int           // ANAL_PERIOD_HOURS
	DeepPeriodHours      int           // DEEP_ANAL_PERIOD_HOURS
	HoroscopePeriodHours int           // HOROSCOPE_PERIOD_HOURS
	CacheTTL             time.Duration // CACHE_TTL_MINUTES
	DebounceInterval     time.Duration // DEBOUNCE_INTERVAL_SECONDS
	InlineDebounce       time.Duration // INLINE_DEBOUNCE_SECONDS
}

// FailurePolicy selects how each orchestration component treats storage
// errors on its read path.
type FailurePolicy struct {
	DebounceFailOpen bool // DEBOUNCE_FAIL_OPEN: storage error on gate read => allowed
	CacheFailClosed  bool // CACHE_FAIL_CLOSED: storage error on cache read => miss
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // analyzer calls can be slow
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Storage
	DBDriver    string // sqlite|postgres
	DBPath      string // SQLite path
	DatabaseURL string // Postgres DSN

	Bot      BotConfig
	OpenAI   OpenAIConfig
	Analysis AnalysisConfig
	Failure  FailurePolicy

	// Jobs
	CacheCleanupSchedule string // cron expression with seconds field

	// Rate limiting (HTTP edge, independent from the debounce gate)
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
		WriteTimeout:      getdur("WRITE_TIMEOUT", 120*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Storage
		DBDriver:    strings.ToLower(getenv("DB_DRIVER", "sqlite")),
		DBPath:      getenv("DB_PATH", "data/bot.db"),
		DatabaseURL: getenv("DATABASE_URL", ""),

		Bot: BotConfig{
			Enabled:    getbool("BOT_ENABLED", true),
			Token:      getenv("BOT_TOKEN", ""),
			AdminID:    getint64("ADMIN_ID", 0),
			AdminToken: getenv("ADMIN_TOKEN", ""),
			Timezone:   getenv("TIMEZONE", "UTC"),
			Language:   strings.ToLower(getenv("BOT_LANGUAGE", "en")),
		},

		OpenAI: OpenAIConfig{
			APIKey:             getenv("OPENAI_API_KEY", ""),
			BaseURL:            getenv("OPENAI_BASE_URL", ""),
			Model:              getenv("OPENAI_MODEL", "gpt-4o-mini"),
			MaxTokens:          getint("MAX_TOKENS", 4000),
			HoroscopeMaxTokens: getint("HOROSCOPE_MAX_TOKENS", 2000),
			InlineMaxTokens:    getint("INLINE_MAX_TOKENS", 500),
			Temperature:        getfloat("OPENAI_TEMPERATURE", 0.7),
			Timeout:            getdur("ANALYZER_TIMEOUT", 90*time.Second),
		},

		Analysis: AnalysisConfig{
			PeriodHours:          getint("ANALYSIS_PERIOD_HOURS", 24),
			ShortPeriodHours:     getint("ANAL_PERIOD_HOURS", 8),
			DeepPeriodHours:      getint("DEEP_ANAL_PERIOD_HOURS", 12),
			HoroscopePeriodHours: getint("HOROSCOPE_PERIOD_HOURS", 12),
			CacheTTL:             time.Duration(getint("CACHE_TTL_MINUTES", 60)) * time.Minute,
			DebounceInterval:     time.Duration(getint("DEBOUNCE_INTERVAL_SECONDS", 300)) * time.Second,
			InlineDebounce:       time.Duration(getint("INLINE_DEBOUNCE_SECONDS", 3600)) * time.Second,
		},

		Failure: FailurePolicy{
			DebounceFailOpen: getbool("DEBOUNCE_FAIL_OPEN", true),
			CacheFailClosed:  getbool("CACHE_FAIL_CLOSED", true),
		},

		CacheCleanupSchedule: getenv("CACHE_CLEANUP_SCHEDULE", "0 */15 * * * *"),

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
			ServiceName: getenv("OTEL_SERVICE_NAME", "chat-digest"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.DBDriver == "postgresql" {
		cfg.DBDriver = "postgres"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DBDriver {
	case "sqlite":
		if strings.TrimSpace(cfg.DBPath) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return cfg, errors.New("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	if cfg.Bot.Enabled && strings.TrimSpace(cfg.Bot.Token) == "" {
		return cfg, errors.New("BOT_TOKEN is required when BOT_ENABLED")
	}
	if cfg.Bot.AdminID <= 0 {
		return cfg, errors.New("ADMIN_ID must be a positive integer")
	}
	if _, err := time.LoadLocation(cfg.Bot.Timezone); err != nil {
		return cfg, errors.New("TIMEZONE must be a valid IANA zone name")
	}
	switch cfg.Bot.Language {
	case "en", "ru":
	default:
		return cfg, errors.New("BOT_LANGUAGE must be one of: en, ru")
	}
	if strings.TrimSpace(cfg.OpenAI.APIKey) == "" {
		return cfg, errors.New("OPENAI_API_KEY is required")
	}
	if cfg.OpenAI.MaxTokens <= 0 || cfg.OpenAI.HoroscopeMaxTokens <= 0 || cfg.OpenAI.InlineMaxTokens <= 0 {
		return cfg, errors.New("token limits must be > 0")
	}
	if cfg.OpenAI.Temperature < 0 || cfg.OpenAI.Temperature > 2 {
		return cfg, errors.New("OPENAI_TEMPERATURE must be in [0,2]")
	}
	if cfg.OpenAI.Timeout <= 0 {
		return cfg, errors.New("ANALYZER_TIMEOUT must be > 0")
	}
	a := cfg.Analysis
	if a.PeriodHours <= 0 || a.ShortPeriodHours <= 0 || a.DeepPeriodHours <= 0 || a.HoroscopePeriodHours <= 0 {
		return cfg, errors.New("analysis periods must be > 0 hours")
	}
	if a.CacheTTL <= 0 {
		return cfg, errors.New("CACHE_TTL_MINUTES must be > 0")
	}
	if a.DebounceInterval < 0 || a.InlineDebounce < 0 {
		return cfg, errors.New("debounce intervals must be >= 0")
	}
	if strings.TrimSpace(cfg.CacheCleanupSchedule) == "" {
		return cfg, errors.New("CACHE_CLEANUP_SCHEDULE must not be empty")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// Location returns the configured display timezone, falling back to UTC.
func (c Config) Location() *time.Location {
	if loc, err := time.LoadLocation(c.Bot.Timezone); err == nil {
		return loc
	}
	return time.UTC
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return def
}

func getint64(k string, def int64) int64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
