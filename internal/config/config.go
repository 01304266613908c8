// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server settings,
// platform and NLU credentials, upstream endpoints, session store options,
// rate limiting, and observability.
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
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-messenger-bot")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// MessengerConfig holds the messaging-platform credentials and endpoint.
//
// PageID scopes inbound webhook events to the bot's own page; deliveries for
// any other page are acknowledged and dropped. PageToken authenticates
// outbound sends, and VerifyToken is the static secret the platform presents
// during webhook subscription verification.
type MessengerConfig struct {
	PageID      string // FB_PAGE_ID
	PageToken   string // FB_PAGE_TOKEN
	VerifyToken string // FB_VERIFY_TOKEN
	BaseURL     string // GRAPH_BASE_URL (overridable for tests)
}

// NLUConfig holds the natural-language-understanding service settings.
type NLUConfig struct {
	Token      string // WIT_TOKEN (bearer credential)
	BaseURL    string // WIT_BASE_URL (overridable for tests)
	APIVersion string // WIT_API_VERSION, e.g. "20200906"
}

// StatsConfig holds the public statistics API settings.
type StatsConfig struct {
	BaseURL string // STATS_BASE_URL (overridable for tests)
}

// SessionConfig controls the session store.
//
// TTL bounds the lifetime of idle sessions in the in-memory driver; 0
// disables eviction. DBPath, when set, switches to the SQLite-backed driver
// so sessions survive restarts.
type SessionConfig struct {
	TTL    time.Duration // SESSION_TTL
	DBPath string        // SESSIONS_DB_PATH ("" = in-memory)
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

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// Upstreams
	Messenger MessengerConfig
	NLU       NLUConfig
	Stats     StatsConfig

	// OutboundTimeout caps each call to an upstream service (NLU, stats,
	// platform send). 0 means no client-side deadline.
	OutboundTimeout time.Duration

	// Sessions
	Session SessionConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

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

// Load reads configuration from environment variables, applies defaults,
// normalizes values, and validates the result. A missing platform or NLU
// credential is a validation error: the process must refuse to start rather
// than accept webhooks it cannot answer.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8445"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// Upstreams
		Messenger: MessengerConfig{
			PageID:      getenv("FB_PAGE_ID", ""),
			PageToken:   getenv("FB_PAGE_TOKEN", ""),
			VerifyToken: getenv("FB_VERIFY_TOKEN", ""),
			BaseURL:     getenv("GRAPH_BASE_URL", "https://graph.facebook.com/v2.6"),
		},
		NLU: NLUConfig{
			Token:      getenv("WIT_TOKEN", ""),
			BaseURL:    getenv("WIT_BASE_URL", "https://api.wit.ai"),
			APIVersion: getenv("WIT_API_VERSION", "20200906"),
		},
		Stats: StatsConfig{
			BaseURL: getenv("STATS_BASE_URL", "https://api.covid19api.com"),
		},
		OutboundTimeout: getdur("OUTBOUND_TIMEOUT", 30*time.Second),

		// Sessions
		Session: SessionConfig{
			TTL:    getdur("SESSION_TTL", 24*time.Hour),
			DBPath: getenv("SESSIONS_DB_PATH", ""),
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

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-messenger-bot"),
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
	cfg.Messenger.BaseURL = strings.TrimRight(cfg.Messenger.BaseURL, "/")
	cfg.NLU.BaseURL = strings.TrimRight(cfg.NLU.BaseURL, "/")
	cfg.Stats.BaseURL = strings.TrimRight(cfg.Stats.BaseURL, "/")

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
	if strings.TrimSpace(cfg.Messenger.PageID) == "" {
		return cfg, errors.New("missing FB_PAGE_ID")
	}
	if strings.TrimSpace(cfg.Messenger.PageToken) == "" {
		return cfg, errors.New("missing FB_PAGE_TOKEN")
	}
	if strings.TrimSpace(cfg.Messenger.VerifyToken) == "" {
		return cfg, errors.New("missing FB_VERIFY_TOKEN")
	}
	if strings.TrimSpace(cfg.NLU.Token) == "" {
		return cfg, errors.New("missing WIT_TOKEN")
	}
	if cfg.OutboundTimeout < 0 {
		return cfg, errors.New("OUTBOUND_TIMEOUT must be >= 0")
	}
	if cfg.Session.TTL < 0 {
		return cfg, errors.New("SESSION_TTL must be >= 0")
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
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
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
		if i, err := strconv.Atoi(v); err == nil {
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
