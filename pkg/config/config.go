package config

import (
	"fmt"
	"os"
	"time"
)

// Config is the root application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Engine   EngineConfig
	Catalog  CatalogConfig
	Bridge   BridgeConfig
	Mail     MailConfig
	AI       AIConfig
	Auth     AuthConfig
}

// ServerConfig HTTP server settings
type ServerConfig struct {
	Port            string
	Environment     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	BodyLimit       int
}

// DatabaseConfig PostgreSQL settings
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig Redis settings
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// StorageConfig blob storage for workflow attachments (S3 compatible)
type StorageConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// EngineConfig evaluation engine knobs
type EngineConfig struct {
	MaxDepth       int
	ActionTimeout  time.Duration
	SampleReply    string
	DelayPollSpec  string
	DelayBatchSize int
}

// CatalogConfig block catalog settings
type CatalogConfig struct {
	CandidateTTL     time.Duration
	CandidateTimeout time.Duration
	RemoteBaseURL    string
}

// BridgeConfig external WhatsApp bridge process
type BridgeConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// MailConfig SMTP relay used by send_email blocks
type MailConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// AIConfig generation collaborator used by ai_reply blocks
type AIConfig struct {
	APIKey       string
	Model        string
	SystemPrompt string
	Temperature  float32
	MaxTokens    int
}

// AuthConfig validation of tokens issued by the external identity provider
type AuthConfig struct {
	JWTSecret  string
	Issuer     string
	ServiceKey string
}

// Load reads the configuration from environment variables
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Environment:     getEnv("ENVIRONMENT", "development"),
			ReadTimeout:     getDurationEnv("READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDurationEnv("WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:       getIntEnv("BODY_LIMIT_BYTES", 25*1024*1024),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", getEnv("POSTGRES_HOST", "localhost")),
			Port:            getEnv("DB_PORT", getEnv("POSTGRES_PORT", "5432")),
			User:            getEnv("DB_USER", getEnv("POSTGRES_USER", "postgres")),
			Password:        getEnv("DB_PASSWORD", getEnv("POSTGRES_PASSWORD", "postgres")),
			DBName:          getEnv("DB_NAME", getEnv("POSTGRES_DB", "supportflow")),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Storage: StorageConfig{
			Bucket:          getEnv("STORAGE_BUCKET", "supportflow-attachments"),
			Region:          getEnv("STORAGE_REGION", "us-east-1"),
			Endpoint:        getEnv("STORAGE_ENDPOINT", ""),
			AccessKeyID:     getEnv("STORAGE_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("STORAGE_SECRET_ACCESS_KEY", ""),
			UsePathStyle:    getEnv("STORAGE_PATH_STYLE", "false") == "true",
		},
		Engine: EngineConfig{
			MaxDepth:       getIntEnv("ENGINE_MAX_DEPTH", 100),
			ActionTimeout:  getDurationEnv("ENGINE_ACTION_TIMEOUT", 15*time.Second),
			SampleReply:    getEnv("ENGINE_SAMPLE_REPLY", "Thanks for your message! An agent will get back to you shortly."),
			DelayPollSpec:  getEnv("DELAY_POLL_SPEC", "@every 1s"),
			DelayBatchSize: getIntEnv("DELAY_BATCH_SIZE", 10),
		},
		Catalog: CatalogConfig{
			CandidateTTL:     getDurationEnv("CATALOG_CANDIDATE_TTL", 30*time.Minute),
			CandidateTimeout: getDurationEnv("CATALOG_CANDIDATE_TIMEOUT", 10*time.Second),
			RemoteBaseURL:    getEnv("CATALOG_REMOTE_BASE_URL", "http://localhost:8080"),
		},
		Bridge: BridgeConfig{
			BaseURL: getEnv("BRIDGE_URL", "http://localhost:3001"),
			APIKey:  getEnv("BRIDGE_API_KEY", ""),
			Timeout: getDurationEnv("BRIDGE_TIMEOUT", 10*time.Second),
		},
		Mail: MailConfig{
			Host:     getEnv("SMTP_HOST", "localhost"),
			Port:     getEnv("SMTP_PORT", "587"),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "no-reply@supportflow.local"),
		},
		AI: AIConfig{
			APIKey:       getEnv("OPENAI_API_KEY", ""),
			Model:        getEnv("AI_MODEL", "gpt-4o-mini"),
			SystemPrompt: getEnv("AI_SYSTEM_PROMPT", "You are a friendly customer support assistant. Answer briefly."),
			Temperature:  float32(getFloatEnv("AI_TEMPERATURE", 0.4)),
			MaxTokens:    getIntEnv("AI_MAX_TOKENS", 400),
		},
		Auth: AuthConfig{
			JWTSecret:  getEnv("JWT_SECRET", "default-secret-change-in-production"),
			Issuer:     getEnv("JWT_ISSUER", ""),
			ServiceKey: getEnv("SERVICE_API_KEY", ""),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks required values
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Engine.MaxDepth <= 0 {
		return fmt.Errorf("ENGINE_MAX_DEPTH must be positive")
	}
	if c.Engine.ActionTimeout <= 0 {
		return fmt.Errorf("ENGINE_ACTION_TIMEOUT must be positive")
	}
	if c.Storage.Bucket == "" {
		return fmt.Errorf("STORAGE_BUCKET is required")
	}
	if c.Server.Environment == "production" && c.Auth.JWTSecret == "default-secret-change-in-production" {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	return nil
}

// GetDSN returns the PostgreSQL DSN
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// GetAddr returns the Redis address
func (c *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// GetAddr returns the SMTP address
func (c *MailConfig) GetAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intValue int
		if _, err := fmt.Sscanf(value, "%d", &intValue); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var floatValue float64
		if _, err := fmt.Sscanf(value, "%g", &floatValue); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
