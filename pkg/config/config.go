package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all environment backed settings for the relay.
type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"development"`
	Port   string `env:"PORT" envDefault:"5000"`

	// database
	DBDriver string `env:"DB_DRIVER" envDefault:"sqlite"`
	DBDSN    string `env:"DB_DSN" envDefault:"data/linerelay.db"`

	// LINE Messaging API
	LineChannelSecret      string `env:"LINE_CHANNEL_SECRET"`
	LineChannelAccessToken string `env:"LINE_CHANNEL_ACCESS_TOKEN"`
	LineAPIBase            string `env:"LINE_API_BASE" envDefault:"https://api.line.me"`

	// language model
	LLMProvider    string        `env:"LLM_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey   string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL  string        `env:"OPENAI_BASE_URL"`
	OpenAIModel    string        `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	GeminiAPIKey   string        `env:"GEMINI_API_KEY"`
	GeminiModel    string        `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`
	LLMTimeout     time.Duration `env:"LLM_TIMEOUT" envDefault:"30s"`
	LLMTemperature float32       `env:"LLM_TEMPERATURE" envDefault:"0.7"`
	LLMMaxTokens   int           `env:"LLM_MAX_TOKENS" envDefault:"1024"`
	ContextWindow  int           `env:"CONTEXT_WINDOW" envDefault:"10"`
	SystemPrompt   string        `env:"SYSTEM_PROMPT"`

	// admin console
	JWTSecret     string   `env:"JWT_SECRET_KEY"`
	AdminUsername string   `env:"ADMIN_USERNAME"`
	AdminPassword string   `env:"ADMIN_PASSWORD"`
	CORSOrigins   []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://127.0.0.1:3000"`

	// runtime tunables
	RateLimitWindowSeconds int           `env:"RATE_LIMIT_WINDOW_SECONDS" envDefault:"10"`
	RateLimitCapacity      int           `env:"RATE_LIMIT_CAPACITY" envDefault:"5"`
	UserConcurrencyLimit   int           `env:"USER_CONCURRENCY_LIMIT" envDefault:"2"`
	EventDedupTTL          time.Duration `env:"EVENT_DEDUP_TTL" envDefault:"10m"`
	ProfileCacheTTL        time.Duration `env:"PROFILE_CACHE_TTL" envDefault:"1h"`
	CacheMaxItems          int           `env:"CACHE_MAX_ITEMS" envDefault:"500"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
}

func (c *Config) IsProduction() bool { return c.AppEnv == "production" }

// loadDotEnv loads .env outside production. A missing file is not an error;
// the returned error is only for a file that exists but cannot be parsed.
func loadDotEnv() error {
	if os.Getenv("APP_ENV") == "production" {
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Load reads .env (non-production only) and parses the environment.
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field rules that struct tags cannot express.
func (c *Config) Validate() error {
	if !slices.Contains([]string{"development", "staging", "production"}, c.AppEnv) {
		return fmt.Errorf("APP_ENV must be 'development', 'staging' or 'production', got %q", c.AppEnv)
	}

	c.LLMProvider = strings.ToLower(strings.TrimSpace(c.LLMProvider))
	if !slices.Contains([]string{"openai", "gemini", "local"}, c.LLMProvider) {
		return fmt.Errorf("LLM_PROVIDER must be 'openai', 'gemini' or 'local', got %q", c.LLMProvider)
	}

	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	if !slices.Contains([]string{"sqlite", "mysql"}, c.DBDriver) {
		return fmt.Errorf("DB_DRIVER must be 'sqlite' or 'mysql', got %q", c.DBDriver)
	}

	if c.ContextWindow < 0 {
		return errors.New("CONTEXT_WINDOW must not be negative")
	}
	if c.LLMTimeout <= 0 {
		return errors.New("LLM_TIMEOUT must be positive")
	}

	if c.IsProduction() {
		if c.LineChannelSecret == "" || c.LineChannelAccessToken == "" {
			return errors.New("LINE_CHANNEL_SECRET and LINE_CHANNEL_ACCESS_TOKEN must be set in production")
		}
		if c.JWTSecret == "" {
			return errors.New("JWT_SECRET_KEY must be set in production")
		}
	}
	return nil
}
