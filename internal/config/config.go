// Package config provides environment-based application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Log      LogConfig
	LLM      LLMConfig
	Inspect  InspectConfig
	Scan     ScanConfig
	Worker   WorkerConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Name  string
	Env   string
	Debug bool
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string
	Format string
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Provider   string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	// RequestsPerMinute bounds calls to the classification service.
	RequestsPerMinute int
}

// InspectConfig configures the command-execution inspector.
type InspectConfig struct {
	// Command is the binary used to talk to the system under inspection.
	Command string
	// ListArgs and DescribeArgs are the subcommands for enumeration and
	// per-item description; the item name is appended to DescribeArgs.
	ListArgs     []string
	DescribeArgs []string
	Timeout      time.Duration
}

// ScanConfig holds scan workflow configuration.
type ScanConfig struct {
	// CompletionGrace is how long a finished session is kept so a final
	// progress poll still succeeds before cleanup deletes it.
	CompletionGrace time.Duration
	// IdleTTL expires sessions that never reached completion.
	IdleTTL time.Duration
	// SweepInterval is how often the housekeeping sweeper runs.
	SweepInterval time.Duration
	// ExecutorLockTTL bounds how long a crashed executor blocks a re-run.
	ExecutorLockTTL time.Duration
}

// WorkerConfig holds background worker configuration.
type WorkerConfig struct {
	Concurrency int
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:  getEnv("APP_NAME", "capscan"),
			Env:   getEnv("APP_ENV", "development"),
			Debug: getEnvBool("APP_DEBUG", false),
		},
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "capscan"),
			Password:        getEnv("DB_PASSWORD", ""),
			Name:            getEnv("DB_NAME", "capscan"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnvInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		LLM: LLMConfig{
			Provider:          getEnv("LLM_PROVIDER", "claude"),
			APIKey:            getEnv("LLM_API_KEY", ""),
			Model:             getEnv("LLM_MODEL", ""),
			Timeout:           getEnvDuration("LLM_TIMEOUT", 60*time.Second),
			MaxRetries:        getEnvInt("LLM_MAX_RETRIES", 3),
			RequestsPerMinute: getEnvInt("LLM_REQUESTS_PER_MINUTE", 30),
		},
		Inspect: InspectConfig{
			Command:      getEnv("INSPECT_COMMAND", ""),
			ListArgs:     getEnvSlice("INSPECT_LIST_ARGS", []string{"list"}),
			DescribeArgs: getEnvSlice("INSPECT_DESCRIBE_ARGS", []string{"describe"}),
			Timeout:      getEnvDuration("INSPECT_TIMEOUT", 30*time.Second),
		},
		Scan: ScanConfig{
			CompletionGrace: getEnvDuration("SCAN_COMPLETION_GRACE", 60*time.Second),
			IdleTTL:         getEnvDuration("SCAN_IDLE_TTL", 24*time.Hour),
			SweepInterval:   getEnvDuration("SCAN_SWEEP_INTERVAL", 30*time.Second),
			ExecutorLockTTL: getEnvDuration("SCAN_EXECUTOR_LOCK_TTL", 2*time.Minute),
		},
		Worker: WorkerConfig{
			Concurrency: getEnvInt("WORKER_CONCURRENCY", 4),
		},
	}

	return cfg, nil
}

// Validate checks that required settings are present and consistent.
// The server calls this at startup; tooling that only needs the store
// connections may skip it.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.LLM.Provider == "" {
		return fmt.Errorf("LLM_PROVIDER is required")
	}
	if c.Inspect.Command == "" {
		return fmt.Errorf("INSPECT_COMMAND is required")
	}
	if c.Scan.CompletionGrace <= 0 {
		return fmt.Errorf("SCAN_COMPLETION_GRACE must be positive")
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("WORKER_CONCURRENCY must be positive")
	}
	return nil
}

// IsProduction returns true when running in production.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Addr returns the Redis address.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Addr returns the HTTP server address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
