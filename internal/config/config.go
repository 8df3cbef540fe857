package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(NewConfig),
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	ServerPort    int    `env:"SERVER_PORT" envDefault:"3002"`
	ServerAddress string `env:"SERVER_ADDRESS" envDefault:"0.0.0.0"`
	Environment   string `env:"ENVIRONMENT" envDefault:"local"`
	Debug         bool   `env:"DEBUG" envDefault:"false"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	Database DatabaseConfig
	LLM      LLMConfig
	Kreuzberg KreuzbergConfig
	Storage  StorageConfig
	Executor ExecutorConfig
	Sandbox  SandboxConfig
	Queue    QueueConfig

	// Server timeouts
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"300s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"300s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host         string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port         int           `env:"POSTGRES_PORT" envDefault:"5432"`
	User         string        `env:"POSTGRES_USER" envDefault:"executor"`
	Password     string        `env:"POSTGRES_PASSWORD" envDefault:""`
	Database     string        `env:"POSTGRES_DB" envDefault:"executor"`
	SSLMode      string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	MaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	MaxIdleTime  time.Duration `env:"DB_MAX_IDLE_TIME" envDefault:"5m"`
	QueryDebug   bool          `env:"DB_QUERY_DEBUG" envDefault:"false"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// LLMConfig holds chat-completion model configuration for the model-calling
// collaborator (go-openai client).
type LLMConfig struct {
	APIKey          string        `env:"OPENAI_API_KEY" envDefault:""`
	BaseURL         string        `env:"OPENAI_BASE_URL" envDefault:""`
	Model           string        `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	Temperature     float64       `env:"LLM_TEMPERATURE" envDefault:"0"`
	TopP            float64       `env:"LLM_TOP_P" envDefault:"1"`
	MaxOutputTokens int           `env:"LLM_MAX_OUTPUT_TOKENS" envDefault:"4096"`
	Timeout         time.Duration `env:"LLM_TIMEOUT" envDefault:"120s"`
	NetworkDisabled bool          `env:"LLM_NETWORK_DISABLED" envDefault:"false"`
}

// IsEnabled returns true if a model call can actually be made.
func (l *LLMConfig) IsEnabled() bool {
	return !l.NetworkDisabled && l.APIKey != ""
}

// KreuzbergConfig holds Kreuzberg document parsing service configuration,
// used by the retrieval subsystem's file-content extraction path.
type KreuzbergConfig struct {
	Enabled          bool `env:"KREUZBERG_ENABLED" envDefault:"true"`
	ServiceURL       string `env:"KREUZBERG_SERVICE_URL" envDefault:"http://localhost:8000"`
	TimeoutMs        int  `env:"KREUZBERG_SERVICE_TIMEOUT" envDefault:"300000"`
	MaxFileSizeMB    int  `env:"KREUZBERG_MAX_FILE_SIZE_MB" envDefault:"100"`
}

// Timeout returns the request timeout as a Duration.
func (k *KreuzbergConfig) Timeout() time.Duration {
	return time.Duration(k.TimeoutMs) * time.Millisecond
}

// StorageConfig holds blob storage (MinIO/S3) configuration for StoredFile
// persistence.
type StorageConfig struct {
	Endpoint        string `env:"MINIO_ENDPOINT" envDefault:"localhost:9000"`
	AccessKeyID     string `env:"MINIO_ACCESS_KEY" envDefault:""`
	SecretAccessKey string `env:"MINIO_SECRET_KEY" envDefault:""`
	Bucket          string `env:"MINIO_BUCKET" envDefault:"executor-files"`
	UseSSL          bool   `env:"MINIO_USE_SSL" envDefault:"false"`
	Region          string `env:"MINIO_REGION" envDefault:"us-east-1"`
}

// IsConfigured returns true if storage is configured.
func (s *StorageConfig) IsConfigured() bool {
	return s.Endpoint != "" && s.AccessKeyID != "" && s.SecretAccessKey != ""
}

// ExecutorConfig holds run-executor behavioral settings: the prompt
// assembler's token budget, code-interpreter retry count, and per-step
// timeouts.
type ExecutorConfig struct {
	// PromptTokenBudget is the default context window budget (§4.3).
	PromptTokenBudget int `env:"EXECUTOR_PROMPT_TOKEN_BUDGET" envDefault:"4096"`
	// CodeInterpreterMaxRetries bounds the traceback-retry loop (§4.4).
	CodeInterpreterMaxRetries int `env:"EXECUTOR_CODE_INTERPRETER_MAX_RETRIES" envDefault:"3"`
	// ToolCallTimeout is loaded from the environment, but no dispatch path
	// applies it; sandbox runs are bounded by SandboxConfig.ExecTimeout.
	ToolCallTimeout time.Duration `env:"EXECUTOR_TOOL_CALL_TIMEOUT" envDefault:"60s"`
	// StaleRunTimeout is how long a run may remain in_progress before the
	// expiry sweep marks it expired.
	StaleRunTimeout time.Duration `env:"EXECUTOR_STALE_RUN_TIMEOUT" envDefault:"15m"`
	// StaleRunSweepInterval is how often the expiry sweep runs.
	StaleRunSweepInterval time.Duration `env:"EXECUTOR_STALE_RUN_SWEEP_INTERVAL" envDefault:"1m"`
}

// SandboxConfig holds the ephemeral code-interpreter container settings.
type SandboxConfig struct {
	Image          string        `env:"SANDBOX_IMAGE" envDefault:"python:3.12-slim"`
	DockerHost     string        `env:"SANDBOX_DOCKER_HOST" envDefault:""`
	MemoryLimitMB  int64         `env:"SANDBOX_MEMORY_LIMIT_MB" envDefault:"512"`
	CPUQuota       int64         `env:"SANDBOX_CPU_QUOTA" envDefault:"100000"`
	NetworkDisabled bool         `env:"SANDBOX_NETWORK_DISABLED" envDefault:"true"`
	ExecTimeout    time.Duration `env:"SANDBOX_EXEC_TIMEOUT" envDefault:"30s"`
}

// QueueConfig holds run_queue polling behavior for the executor worker.
type QueueConfig struct {
	PollInterval time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"500ms"`
	BatchSize    int           `env:"QUEUE_BATCH_SIZE" envDefault:"1"`
}

// NewConfig loads configuration from environment variables.
func NewConfig(log *slog.Logger) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	log.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.ServerPort),
		slog.String("db_host", cfg.Database.Host),
		slog.String("llm_model", cfg.LLM.Model),
	)

	return cfg, nil
}
