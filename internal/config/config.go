// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as queue topics, storage paths, logging, external service endpoints,
// and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// RedisConfig defines the connection and topic layout on the queue transport.
type RedisConfig struct {
	Addr           string // REDIS_ADDR (host:port)
	Password       string // REDIS_PASSWORD
	DB             int    // REDIS_DB
	InboundStream  string // INBOUND_STREAM
	ConsumerGroup  string // CONSUMER_GROUP
	ConsumerName   string // CONSUMER_NAME (defaults to hostname)
	OutboundTopic  string // OUTBOUND_TOPIC
	TelemetryTopic string // TELEMETRY_TOPIC
	CachePrefix    string // CACHE_PREFIX (environment prefix on cache keys)
}

// ServicesConfig defines the endpoints of the external collaborators.
type ServicesConfig struct {
	EngineURL            string // ENGINE_URL (form traversal engine)
	ProfileURL           string // PROFILE_URL (federated user profile)
	DirectoryURL         string // DIRECTORY_URL (campaign directory)
	UploadURL            string // UPLOAD_URL (finished instance sink)
	TelemetryDispatchURL string // TELEMETRY_DISPATCH_URL
	Timeout              time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-form-gateway")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	// Ops server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	GinMode           string        // debug|release|test

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// Storage
	DBPath   string // SQLite path
	FormsDir string // directory holding form definitions (<formID>.xml)

	// Turn processing
	ResetAnswer    string        // answer text that forces a fresh traversal
	ProducerID     string        // telemetry producer identifier
	SystemSenderID string        // from-id of messages sent by the system
	SelectionPath  string        // position marker of the candidate-selection question
	SelectionField string        // hidden field invalidated once a selection is made
	DedupTTL       time.Duration // how long an inbound receipt blocks redelivery
	RateRPS        float64       // consumer throttle: tokens per second (>= 0)
	RateBurst      int           // consumer throttle: bucket size (>= 1)

	Redis    RedisConfig
	Services ServicesConfig
	OTEL     OTELConfig
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
	host, _ := os.Hostname()

	cfg := Config{
		// Ops server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// Storage
		DBPath:   getenv("DB_PATH", "gateway.db"),
		FormsDir: getenv("FORMS_DIR", "forms"),

		// Turn processing
		ResetAnswer:    getenv("RESET_ANSWER", "*"),
		ProducerID:     getenv("PRODUCER_ID", "form-gateway"),
		SystemSenderID: getenv("SYSTEM_SENDER_ID", "admin"),
		SelectionPath:  getenv("SELECTION_PATH", ""),
		SelectionField: getenv("SELECTION_FIELD", "candidate_id"),
		DedupTTL:       getdur("DEDUP_TTL", 24*time.Hour),
		RateRPS:        getfloat("RATE_RPS", 50.0),
		RateBurst:      getint("RATE_BURST", 100),

		Redis: RedisConfig{
			Addr:           getenv("REDIS_ADDR", "localhost:6379"),
			Password:       getenv("REDIS_PASSWORD", ""),
			DB:             getint("REDIS_DB", 0),
			InboundStream:  getenv("INBOUND_STREAM", "inbound"),
			ConsumerGroup:  getenv("CONSUMER_GROUP", "form-gateway"),
			ConsumerName:   getenv("CONSUMER_NAME", host),
			OutboundTopic:  getenv("OUTBOUND_TOPIC", "process-outbound"),
			TelemetryTopic: getenv("TELEMETRY_TOPIC", "telemetry"),
			CachePrefix:    getenv("CACHE_PREFIX", getenv("ENV", "dev")),
		},

		Services: ServicesConfig{
			EngineURL:            getenv("ENGINE_URL", "http://localhost:9000"),
			ProfileURL:           getenv("PROFILE_URL", ""),
			DirectoryURL:         getenv("DIRECTORY_URL", ""),
			UploadURL:            getenv("UPLOAD_URL", ""),
			TelemetryDispatchURL: getenv("TELEMETRY_DISPATCH_URL", ""),
			Timeout:              getdur("SERVICE_TIMEOUT", 10*time.Second),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-form-gateway"),
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
	if strings.TrimSpace(cfg.Redis.ConsumerName) == "" {
		cfg.Redis.ConsumerName = "consumer-1"
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
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if strings.TrimSpace(cfg.FormsDir) == "" {
		return cfg, errors.New("FORMS_DIR must not be empty")
	}
	if strings.TrimSpace(cfg.ResetAnswer) == "" {
		return cfg, errors.New("RESET_ANSWER must not be empty")
	}
	if strings.TrimSpace(cfg.Redis.Addr) == "" {
		return cfg, errors.New("REDIS_ADDR must not be empty")
	}
	if strings.TrimSpace(cfg.Redis.InboundStream) == "" ||
		strings.TrimSpace(cfg.Redis.OutboundTopic) == "" ||
		strings.TrimSpace(cfg.Redis.TelemetryTopic) == "" {
		return cfg, errors.New("queue topics must not be empty")
	}
	if cfg.DedupTTL <= 0 {
		return cfg, errors.New("DEDUP_TTL must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Services.Timeout <= 0 {
		return cfg, errors.New("SERVICE_TIMEOUT must be > 0")
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
