package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/janburzinski/notra/core/db"
)

type Config struct {
	OTel        OTelConfig
	Pipeline    PipelineConfig
	LLM         LLMConfig
	Ledger      LedgerConfig
	Email       EmailConfig
	GitHub      GitHubConfig
	Security    SecurityConfig
	Worker      WorkerConfig
	Env         string
	Port        string
	MetricsAddr string
	AppURL      string
	CommitSHA   string
	LogLevel    string
	DB          db.Config
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
	SampleRatio    float64
}

type PipelineConfig struct {
	RedisURL        string
	RedisStream     string
	RedisGroup      string
	RedisDLQStream  string
	RedisConsumer   string
	TraceHeaderName string
}

type LLMConfig struct {
	Provider        string // "openai" or "anthropic"
	APIKey          string
	BaseURL         string // Optional: for custom endpoints
	Model           string
	MaxTokens       int
	ReasoningEffort string // Optional: "low", "medium", "high" for reasoning models
}

// LedgerConfig points at an Autumn-compatible usage ledger.
// An empty SecretKey disables metering entirely.
type LedgerConfig struct {
	SecretKey  string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

type EmailConfig struct {
	ResendAPIKey string
	From         string
	ReplyTo      string
}

type GitHubConfig struct {
	APIBaseURL string // Optional: GitHub Enterprise
	Token      string // Optional: fallback token for public repositories
}

type SecurityConfig struct {
	TokenEncryptionKey string
	WorkflowSecret     string
}

type WorkerConfig struct {
	Concurrency       int
	MaxAttempts       int
	GenerationTimeout time.Duration
	StepTimeout       time.Duration
	RetentionSweep    time.Duration
}

type ServiceType string

const (
	ServiceTypeServer  ServiceType = "server"
	ServiceTypeWorker  ServiceType = "worker"
	ServiceTypeMigrate ServiceType = "migrate"
)

// Load loads configuration from environment variables.
// In development, it loads from service-specific .env files:
//   - .env.server for the API server
//   - .env.worker for the workflow worker
//
// Falls back to .env if service-specific file doesn't exist.
func Load(serviceType ServiceType) (Config, error) {
	if getEnv("NOTRA_ENV", "development") == "development" {
		envFile := fmt.Sprintf(".env.%s", serviceType)
		if err := godotenv.Load(envFile); err != nil {
			_ = godotenv.Load(".env")
		}
	}

	cfg := Config{
		Env:         getEnv("NOTRA_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
		AppURL:      getEnv("BETTER_AUTH_URL", "https://app.usenotra.com"),
		CommitSHA:   getEnv("COMMIT_SHA", ""),
		LogLevel:    getEnv("LOG_LEVEL", ""),
		DB: db.Config{
			DSN:      getEnv("DATABASE_URL", ""),
			MaxConns: getEnvInt32("DB_MAX_CONNS", 10),
			MinConns: getEnvInt32("DB_MIN_CONNS", 2),
		},
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "notra-"+string(serviceType)),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
			SampleRatio:    getEnvFloat("OTEL_TRACES_SAMPLER_ARG", 1),
		},
		Pipeline: PipelineConfig{
			RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379/0"),
			RedisStream:     getEnv("REDIS_STREAM", "notra_workflows"),
			RedisGroup:      getEnv("REDIS_CONSUMER_GROUP", "notra_workers"),
			RedisDLQStream:  getEnv("REDIS_DLQ_STREAM", "notra_workflows_dlq"),
			RedisConsumer:   getEnv("REDIS_CONSUMER_NAME", hostnameOr("worker-1")),
			TraceHeaderName: getEnv("TRACE_HEADER_NAME", "X-Trace-Id"),
		},
		LLM: LLMConfig{
			Provider:        getEnv("LLM_PROVIDER", "anthropic"),
			APIKey:          getEnv("LLM_API_KEY", ""),
			BaseURL:         getEnv("LLM_BASE_URL", ""),
			Model:           getEnv("LLM_MODEL", ""),
			MaxTokens:       getEnvInt("LLM_MAX_TOKENS", 8192),
			ReasoningEffort: getEnv("LLM_REASONING_EFFORT", ""),
		},
		Ledger: LedgerConfig{
			SecretKey:  getEnv("AUTUMN_SECRET_KEY", ""),
			BaseURL:    getEnv("AUTUMN_BASE_URL", "https://api.useautumn.com"),
			Timeout:    getEnvDuration("AUTUMN_TIMEOUT", 10*time.Second),
			MaxRetries: getEnvInt("AUTUMN_MAX_RETRIES", 2),
		},
		Email: EmailConfig{
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			From:         getEnv("EMAIL_FROM", "Notra <notifications@usenotra.com>"),
			ReplyTo:      getEnv("EMAIL_REPLY_TO", ""),
		},
		GitHub: GitHubConfig{
			APIBaseURL: getEnv("GITHUB_API_URL", ""),
			Token:      getEnv("GITHUB_TOKEN", ""),
		},
		Security: SecurityConfig{
			TokenEncryptionKey: getEnv("TOKEN_ENCRYPTION_KEY", ""),
			WorkflowSecret:     getEnv("WORKFLOW_SECRET", ""),
		},
		Worker: WorkerConfig{
			Concurrency:       getEnvInt("WORKER_CONCURRENCY", 4),
			MaxAttempts:       getEnvInt("WORKER_MAX_ATTEMPTS", 3),
			GenerationTimeout: getEnvDuration("WORKFLOW_GENERATION_TIMEOUT", 10*time.Minute),
			StepTimeout:       getEnvDuration("WORKFLOW_STEP_TIMEOUT", time.Minute),
			RetentionSweep:    getEnvDuration("RETENTION_SWEEP_INTERVAL", time.Hour),
		},
	}

	if err := cfg.validate(serviceType); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate(serviceType ServiceType) error {
	if c.DB.DSN == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if serviceType == ServiceTypeMigrate {
		return nil
	}

	if c.Security.TokenEncryptionKey == "" {
		return fmt.Errorf("TOKEN_ENCRYPTION_KEY is required")
	}

	switch serviceType {
	case ServiceTypeServer:
		if c.Security.WorkflowSecret == "" {
			return fmt.Errorf("WORKFLOW_SECRET is required")
		}
	case ServiceTypeWorker:
		if !c.LLM.Enabled() {
			return fmt.Errorf("LLM_API_KEY and a supported LLM_PROVIDER are required")
		}
		if c.Worker.Concurrency < 1 {
			return fmt.Errorf("WORKER_CONCURRENCY must be at least 1")
		}
	}

	return nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func (c LLMConfig) Enabled() bool {
	return c.APIKey != "" && (c.Provider == "openai" || c.Provider == "anthropic")
}

func (c LedgerConfig) Enabled() bool {
	return c.SecretKey != ""
}

func (c EmailConfig) Enabled() bool {
	return c.ResendAPIKey != "" && c.From != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt32(key string, fallback int32) int32 {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(i)
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func hostnameOr(fallback string) string {
	if name, err := os.Hostname(); err == nil && name != "" {
		return name
	}
	return fallback
}
