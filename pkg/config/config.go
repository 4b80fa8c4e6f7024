package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	DatabaseURL    string
	Host           string
	Port           string
	JwtSecret      string
	TokenTTL       time.Duration
	LogLevel       string
	AllowedOrigins []string

	// Automation webhooks
	WebhooksFile    string
	PublicBaseURL   string // base of the callback URLs handed to scenarios
	WebhookSecret   string // expected X-Webhook-Secret on callbacks
	SubmitTimeout   time.Duration
	PollInterval    time.Duration
	PollMaxAttempts int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	GeminiAPIKey string
	GeminiModel  string

	StorageType string // local or s3
	UploadDir   string
	AWSBucket   string
	AWSRegion   string

	SessionIdleTTL  time.Duration
	SessionSweep    string // cron spec for the idle session janitor
	ExportDir       string
	ShutdownTimeout time.Duration
}

// LoadConfig reads .env when present and the process environment. Invalid or
// missing required values stop the process.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debugf("No .env file loaded: %v", err)
	}
	cfg, err := FromEnv(os.Getenv)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

// FromEnv builds a Config from getenv, applying defaults.
func FromEnv(getenv func(string) string) (*Config, error) {
	e := envReader{getenv: getenv}
	cfg := &Config{
		DatabaseURL:    getenv("DATABASE_URL"),
		Host:           e.str("HOST", "127.0.0.1"),
		Port:           e.str("PORT", "8080"),
		JwtSecret:      getenv("JWT_SECRET"),
		TokenTTL:       e.duration("TOKEN_TTL", 24*time.Hour),
		LogLevel:       e.str("LOG_LEVEL", "info"),
		AllowedOrigins: e.list("ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}),

		WebhooksFile:    e.str("WEBHOOKS_FILE", "webhooks.yaml"),
		PublicBaseURL:   strings.TrimRight(getenv("PUBLIC_BASE_URL"), "/"),
		WebhookSecret:   getenv("WEBHOOK_SECRET"),
		SubmitTimeout:   e.duration("SUBMIT_TIMEOUT", 30*time.Second),
		PollInterval:    e.duration("POLL_INTERVAL", 15*time.Second),
		PollMaxAttempts: e.integer("POLL_MAX_ATTEMPTS", 60),

		RedisAddr:     getenv("REDIS_ADDR"),
		RedisPassword: getenv("REDIS_PASSWORD"),
		RedisDB:       e.integer("REDIS_DB", 0),

		GeminiAPIKey: getenv("GEMINI_API_KEY"),
		GeminiModel:  getenv("GEMINI_MODEL"),

		StorageType: strings.ToLower(e.str("STORAGE_TYPE", "local")),
		UploadDir:   e.str("UPLOAD_DIR", "./uploads"),
		AWSBucket:   getenv("AWS_BUCKET"),
		AWSRegion:   getenv("AWS_REGION"),

		SessionIdleTTL:  e.duration("SESSION_IDLE_TTL", 30*time.Minute),
		SessionSweep:    e.str("SESSION_SWEEP", "@every 5m"),
		ExportDir:       e.str("FFMPEG_WORKDIR", os.TempDir()),
		ShutdownTimeout: e.duration("SHUTDOWN_TIMEOUT", 5*time.Second),
	}
	if e.err != nil {
		return nil, e.err
	}

	if cfg.JwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is not set. This is critical for authentication")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	switch cfg.StorageType {
	case "local":
	case "s3":
		if cfg.AWSBucket == "" {
			return nil, fmt.Errorf("AWS_BUCKET is required when STORAGE_TYPE=s3")
		}
	default:
		return nil, fmt.Errorf("STORAGE_TYPE must be local or s3, got %q", cfg.StorageType)
	}
	if cfg.PollMaxAttempts <= 0 {
		return nil, fmt.Errorf("POLL_MAX_ATTEMPTS must be positive")
	}
	return cfg, nil
}

// BaseURL is where this API is reachable from outside, for callback and
// upload URLs.
func (c *Config) BaseURL() string {
	if c.PublicBaseURL != "" {
		return c.PublicBaseURL
	}
	return fmt.Sprintf("http://%s:%s", c.Host, c.Port)
}

// envReader keeps the first parse error so FromEnv can report it once.
type envReader struct {
	getenv func(string) string
	err    error
}

func (e *envReader) str(key, def string) string {
	if v := strings.TrimSpace(e.getenv(key)); v != "" {
		return v
	}
	return def
}

func (e *envReader) list(key string, def []string) []string {
	v := e.getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (e *envReader) integer(key string, def int) int {
	v := strings.TrimSpace(e.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil && e.err == nil {
		e.err = fmt.Errorf("%s: %w", key, err)
	}
	return n
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(e.getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil && e.err == nil {
		e.err = fmt.Errorf("%s: %w", key, err)
	}
	return d
}
