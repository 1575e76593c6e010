package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/timothy-han/mara/pkg/models"
)

// Config holds all configuration for the MARA server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	AI       AIConfig
	Pipeline PipelineConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type AuthConfig struct {
	// InternalSecret gates the token-issuing endpoint used by the upstream
	// site. Pre-shared, never sent to browsers.
	InternalSecret string
	JWTSecret      string
	TokenTTL       time.Duration
}

type AIConfig struct {
	Provider         string
	InferenceTimeout time.Duration
	Gemini           GeminiConfig
	Anthropic        AnthropicConfig
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type AnthropicConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
}

type PipelineConfig struct {
	// Compaction toggles the optional stage 2.5 that re-encodes the
	// extracted table as CSV before analysis.
	Compaction bool
	// StageAttempts bounds gateway calls per stage on transient failures.
	StageAttempts int
	// AnalysisRetries bounds prompt resubmissions after schema validation
	// failures on the final stage.
	AnalysisRetries  int
	RetryBackoff     time.Duration
	ConfidenceScheme string
	SessionTTL       time.Duration
	ArtifactTTL      time.Duration
}

var validProviders = map[string]bool{
	"gemini":    true,
	"anthropic": true,
	"mock":      true,
}

// Load reads configuration from environment variables and returns a validated
// Config. Returns an error with a descriptive message if any required value
// is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("MARA_PORT", 8080),
			Env:  envString("MARA_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Auth: AuthConfig{
			InternalSecret: os.Getenv("INTERNAL_SECRET_KEY"),
			JWTSecret:      os.Getenv("JWT_SECRET_KEY"),
			TokenTTL:       envDuration("JWT_TOKEN_TTL", 7*24*time.Hour),
		},
		AI: AIConfig{
			Provider:         os.Getenv("AI_PROVIDER"),
			InferenceTimeout: envDurationSecs("AI_INFERENCE_TIMEOUT_SECS", 300*time.Second),
			Gemini: GeminiConfig{
				APIKey: os.Getenv("GEMINI_API_KEY"),
				Model:  envString("GEMINI_MODEL", "gemini-2.5-pro"),
			},
			Anthropic: AnthropicConfig{
				APIKey:    os.Getenv("ANTHROPIC_API_KEY"),
				Model:     envString("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
				MaxTokens: envInt("ANTHROPIC_MAX_TOKENS", 8192),
			},
		},
		Pipeline: PipelineConfig{
			Compaction:       envBool("PIPELINE_COMPACTION", true),
			StageAttempts:    envInt("PIPELINE_STAGE_ATTEMPTS", 2),
			AnalysisRetries:  envInt("PIPELINE_ANALYSIS_RETRIES", 1),
			RetryBackoff:     envDuration("PIPELINE_RETRY_BACKOFF", 2*time.Second),
			ConfidenceScheme: envString("CONFIDENCE_SCHEME", models.SchemeHighModerateLow),
			SessionTTL:       envDuration("SESSION_TTL", 60*time.Minute),
			ArtifactTTL:      envDuration("ARTIFACT_TTL", 10*time.Minute),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Auth.InternalSecret == "" {
		return fmt.Errorf("INTERNAL_SECRET_KEY is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}

	if c.AI.Provider == "" {
		return fmt.Errorf("AI_PROVIDER is required")
	}
	if !validProviders[c.AI.Provider] {
		return fmt.Errorf("AI_PROVIDER must be one of gemini, anthropic, mock; got %q", c.AI.Provider)
	}

	if c.AI.Provider == "gemini" && c.AI.Gemini.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required when AI_PROVIDER is gemini")
	}
	if c.AI.Provider == "anthropic" && c.AI.Anthropic.APIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required when AI_PROVIDER is anthropic")
	}

	if c.Pipeline.StageAttempts < 1 {
		return fmt.Errorf("PIPELINE_STAGE_ATTEMPTS must be at least 1, got %d", c.Pipeline.StageAttempts)
	}
	if c.Pipeline.AnalysisRetries < 0 {
		return fmt.Errorf("PIPELINE_ANALYSIS_RETRIES must not be negative, got %d", c.Pipeline.AnalysisRetries)
	}
	if _, err := models.SchemeByName(c.Pipeline.ConfidenceScheme); err != nil {
		return err
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
