package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	OAuth    OAuthConfig
	JWT      JWTConfig
	LLM      LLMConfig
	Slack    SlackConfig
	GitLab   GitLabConfig
	Sync     SyncConfig
	Vector   VectorConfig
	Storage  StorageConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string   `envconfig:"PORT" default:"8080"`
	Host            string   `envconfig:"HOST" default:"0.0.0.0"`
	Environment     string   `envconfig:"ENVIRONMENT" default:"development"`
	PublicURL       string   `envconfig:"PUBLIC_URL" default:""`
	AllowedOrigins  []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`
	ShutdownTimeout int      `envconfig:"SHUTDOWN_TIMEOUT" default:"10"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host        string `envconfig:"DB_HOST" default:"localhost"`
	Port        string `envconfig:"DB_PORT" default:"5432"`
	User        string `envconfig:"DB_USER" default:"postgres"`
	Password    string `envconfig:"DB_PASSWORD" default:"postgres"`
	Name        string `envconfig:"DB_NAME" default:"knowwhy"`
	SSLMode     string `envconfig:"DB_SSLMODE" default:"disable"`
	MaxConns    int    `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns    int    `envconfig:"DB_MIN_CONNS" default:"5"`
	AutoMigrate bool   `envconfig:"DB_AUTO_MIGRATE" default:"false"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     string `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// OAuthConfig holds OAuth configuration
type OAuthConfig struct {
	Google GoogleOAuthConfig
}

// GoogleOAuthConfig holds Google OAuth configuration
type GoogleOAuthConfig struct {
	ClientID     string `envconfig:"GOOGLE_CLIENT_ID"`
	ClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET"`
	RedirectURL  string `envconfig:"GOOGLE_REDIRECT_URL" default:"http://localhost:8080/v1/auth/google/callback"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	AccessSecret  string        `envconfig:"JWT_ACCESS_SECRET" default:"change-me-access"`
	RefreshSecret string        `envconfig:"JWT_REFRESH_SECRET" default:"change-me-refresh"`
	AccessExpiry  time.Duration `envconfig:"JWT_ACCESS_EXPIRY" default:"15m"`
	RefreshExpiry time.Duration `envconfig:"JWT_REFRESH_EXPIRY" default:"168h"`
}

// LLMConfig holds the chat-completion provider configuration
type LLMConfig struct {
	APIKey         string        `envconfig:"LLM_API_KEY"`
	BaseURL        string        `envconfig:"LLM_API_URL" default:"https://api.groq.com/openai"`
	Model          string        `envconfig:"LLM_MODEL" default:"llama-3.1-70b-versatile"`
	EmbeddingModel string        `envconfig:"LLM_EMBEDDING_MODEL" default:"text-embedding-3-small"`
	Timeout        time.Duration `envconfig:"LLM_TIMEOUT" default:"60s"`
	RatePerSecond  float64       `envconfig:"LLM_RATE_PER_SECOND" default:"1"`
	RateBurst      int           `envconfig:"LLM_RATE_BURST" default:"2"`
}

// SlackConfig holds Slack app configuration
type SlackConfig struct {
	SigningSecret string `envconfig:"SLACK_SIGNING_SECRET"`
	ClientID      string `envconfig:"SLACK_CLIENT_ID"`
	ClientSecret  string `envconfig:"SLACK_CLIENT_SECRET"`
}

// GitLabConfig holds GitLab webhook configuration
type GitLabConfig struct {
	WebhookSecret string        `envconfig:"GITLAB_WEBHOOK_SECRET"`
	Timeout       time.Duration `envconfig:"GITLAB_TIMEOUT" default:"30s"`
}

// SyncConfig holds decision-detection pipeline configuration
type SyncConfig struct {
	// AutoThreshold gates webhook and batch-sweep persistence; the
	// interactive meeting-analysis path uses InteractiveThreshold. The two
	// knobs intentionally stay separate.
	AutoThreshold        float64       `envconfig:"SYNC_AUTO_THRESHOLD" default:"0.6"`
	InteractiveThreshold float64       `envconfig:"SYNC_INTERACTIVE_THRESHOLD" default:"0.7"`
	SweepCooldown        time.Duration `envconfig:"SYNC_SWEEP_COOLDOWN" default:"24h"`
	WebhookCooldown      time.Duration `envconfig:"SYNC_WEBHOOK_COOLDOWN" default:"30m"`
	RecencyWindow        time.Duration `envconfig:"SYNC_RECENCY_WINDOW" default:"168h"`
	Workers              int           `envconfig:"SYNC_WORKERS" default:"2"`
	CandidateTimeout     time.Duration `envconfig:"SYNC_CANDIDATE_TIMEOUT" default:"2m"`
	TriggerToken         string        `envconfig:"SYNC_TRIGGER_TOKEN"`
}

// VectorConfig holds the Qdrant semantic index configuration
type VectorConfig struct {
	Enabled    bool   `envconfig:"VECTOR_ENABLED" default:"false"`
	Host       string `envconfig:"VECTOR_HOST" default:"localhost"`
	Port       int    `envconfig:"VECTOR_PORT" default:"6334"`
	UseTLS     bool   `envconfig:"VECTOR_USE_TLS" default:"false"`
	APIKey     string `envconfig:"VECTOR_API_KEY"`
	Collection string `envconfig:"VECTOR_COLLECTION" default:"decisions"`
	VectorSize uint64 `envconfig:"VECTOR_SIZE" default:"1536"`
}

// StorageConfig holds the transcript archive configuration
type StorageConfig struct {
	Enabled         bool   `envconfig:"STORAGE_ENABLED" default:"false"`
	Endpoint        string `envconfig:"STORAGE_ENDPOINT" default:"localhost:9000"`
	AccessKeyID     string `envconfig:"STORAGE_ACCESS_KEY" default:"minioadmin"`
	SecretAccessKey string `envconfig:"STORAGE_SECRET_KEY" default:"minioadmin"`
	BucketName      string `envconfig:"STORAGE_BUCKET" default:"knowwhy-transcripts"`
	UseSSL          bool   `envconfig:"STORAGE_USE_SSL" default:"false"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables or defaults")
	}

	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.OAuth.Google.ClientID == "" {
		return fmt.Errorf("GOOGLE_CLIENT_ID is required")
	}
	if c.OAuth.Google.ClientSecret == "" {
		return fmt.Errorf("GOOGLE_CLIENT_SECRET is required")
	}
	if c.Sync.AutoThreshold < 0 || c.Sync.AutoThreshold > 1 {
		return fmt.Errorf("SYNC_AUTO_THRESHOLD must be within [0,1]")
	}
	if c.Sync.InteractiveThreshold < 0 || c.Sync.InteractiveThreshold > 1 {
		return fmt.Errorf("SYNC_INTERACTIVE_THRESHOLD must be within [0,1]")
	}
	if c.Sync.Workers < 1 {
		return fmt.Errorf("SYNC_WORKERS must be at least 1")
	}
	return nil
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}
