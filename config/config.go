package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Redis         RedisConfig
	Enforcement   EnforcementConfig
	Policy        PolicyConfig
	Audit         AuditConfig
	Providers     ProvidersConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// RedisConfig holds the shared counter store connection settings.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	OpTimeout time.Duration
}

// EnforcementConfig holds rate-limit and quota behavior settings.
type EnforcementConfig struct {
	// FailureMode is "open" or "closed" and decides whether requests are
	// admitted when the counter store is unreachable.
	FailureMode string
	// CompletionReserve is added to pre-flight token estimates to cover
	// the completion the provider will generate.
	CompletionReserve int64
	// GuardThreshold is the injection risk score at which guarded routes
	// reject prompts.
	GuardThreshold float64
}

// PolicyConfig holds policy document and credential settings.
type PolicyConfig struct {
	// File is the YAML policy document loaded at startup and on reload.
	File string
	// JWTSecret enables JWT tenant credentials when non-empty.
	JWTSecret string
}

// AuditSink selects where audit records are persisted.
type AuditSink string

const (
	AuditSinkPostgres AuditSink = "postgres"
	AuditSinkJSONL    AuditSink = "jsonl"
)

// AuditConfig holds audit trail persistence configuration.
type AuditConfig struct {
	Sink        AuditSink
	Database    DatabaseConfig
	JSONLPath   string
	BufferSize  int
	WorkerCount int
}

// DatabaseConfig holds PostgreSQL configuration for the audit trail.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence
// over individual fields.
type DatabaseConfig struct {
	ConnectionString string
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// ProvidersConfig holds AI provider configurations
type ProvidersConfig struct {
	OpenAI OpenAIConfig
	Azure  AzureConfig
	Ollama OllamaConfig
}

// OpenAIConfig holds OpenAI provider configuration
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// AzureConfig holds Azure OpenAI provider configuration
type AzureConfig struct {
	APIKey     string
	BaseURL    string
	Deployment string
	APIVersion string
	Timeout    time.Duration
}

// OllamaConfig holds local Ollama runtime configuration
type OllamaConfig struct {
	BaseURL string
	Timeout time.Duration
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or text
}

// New creates a new Config instance by loading environment variables
func New() (*Config, error) {
	// Load .env if present; real deployments set the environment directly.
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", "localhost:6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvAsInt("REDIS_DB", 0),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "gw:"),
			OpTimeout: getEnvAsDuration("REDIS_OP_TIMEOUT", 2*time.Second),
		},
		Enforcement: EnforcementConfig{
			FailureMode:       getEnv("ENFORCEMENT_FAILURE_MODE", "closed"),
			CompletionReserve: int64(getEnvAsInt("ESTIMATOR_COMPLETION_RESERVE", 0)),
			GuardThreshold:    getEnvAsFloat("ENFORCEMENT_GUARD_THRESHOLD", 0.8),
		},
		Policy: PolicyConfig{
			File:      getEnv("POLICY_FILE", "policies.yaml"),
			JWTSecret: getEnv("POLICY_JWT_SECRET", ""),
		},
		Audit: AuditConfig{
			Sink:        AuditSink(getEnv("AUDIT_SINK", string(AuditSinkJSONL))),
			Database:    loadDatabaseConfig(),
			JSONLPath:   getEnv("AUDIT_JSONL_PATH", "audit.jsonl"),
			BufferSize:  getEnvAsInt("AUDIT_BUFFER_SIZE", 10000),
			WorkerCount: getEnvAsInt("AUDIT_WORKER_COUNT", 5),
		},
		Providers: ProvidersConfig{
			OpenAI: OpenAIConfig{
				APIKey:  getEnv("OPENAI_API_KEY", ""),
				BaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
				Timeout: getEnvAsDuration("OPENAI_TIMEOUT", 30*time.Second),
			},
			Azure: AzureConfig{
				APIKey:     getEnv("AZURE_OPENAI_API_KEY", ""),
				BaseURL:    getEnv("AZURE_OPENAI_BASE_URL", ""),
				Deployment: getEnv("AZURE_OPENAI_DEPLOYMENT", ""),
				APIVersion: getEnv("AZURE_OPENAI_API_VERSION", "2024-02-01"),
				Timeout:    getEnvAsDuration("AZURE_OPENAI_TIMEOUT", 30*time.Second),
			},
			Ollama: OllamaConfig{
				BaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
				Timeout: getEnvAsDuration("OLLAMA_TIMEOUT", 120*time.Second),
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.Enforcement.FailureMode != "open" && c.Enforcement.FailureMode != "closed" {
		return fmt.Errorf("enforcement failure mode must be \"open\" or \"closed\", got %q", c.Enforcement.FailureMode)
	}

	if c.Policy.File == "" {
		return fmt.Errorf("policy file is required")
	}

	switch c.Audit.Sink {
	case AuditSinkPostgres:
		if c.Audit.Database.ConnectionString == "" && c.Audit.Database.Host == "" {
			return fmt.Errorf("audit sink is postgres: set DATABASE_URL or DB_HOST")
		}
	case AuditSinkJSONL:
		if c.Audit.JSONLPath == "" {
			return fmt.Errorf("audit sink is jsonl: set AUDIT_JSONL_PATH")
		}
	default:
		return fmt.Errorf("unknown audit sink %q", c.Audit.Sink)
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", ""),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "gateway"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "audit"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
