package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

const (
	AdmissionBackendMemory = "memory"
	AdmissionBackendRedis  = "redis"
)

type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	RunMigrations bool `env:"RUN_MIGRATIONS" envDefault:"true"`

	AdmissionBackend               string `env:"ADMISSION_BACKEND" envDefault:"memory"`
	MaxConcurrentUploadsPerSession int    `env:"MAX_CONCURRENT_UPLOADS_PER_SESSION" envDefault:"3"`
	CleanupThresholdHours          int    `env:"CLEANUP_THRESHOLD_HOURS" envDefault:"24"`
	CleanupIntervalHours           int    `env:"CLEANUP_INTERVAL_HOURS" envDefault:"6"`
	CleanupRunTimeoutMinutes       int    `env:"CLEANUP_RUN_TIMEOUT_MINUTES" envDefault:"10"`

	StorageRoot    string `env:"STORAGE_ROOT" envDefault:"./storage"`
	OriginalsDir   string `env:"ORIGINALS_DIR"`
	ProcessedDir   string `env:"PROCESSED_DIR"`
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES" envDefault:"20971520"`

	JWTSecret   string `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	JWTTTLHours int    `env:"JWT_TTL_HOURS" envDefault:"24"`

	InferenceURL            string `env:"INFERENCE_URL" envDefault:"http://localhost:9000"`
	InferenceAPIKey         string `env:"INFERENCE_API_KEY"`
	InferenceTimeoutSeconds int    `env:"INFERENCE_TIMEOUT_SECONDS" envDefault:"120"`
	DefaultModel            string `env:"DEFAULT_MODEL" envDefault:"gfpgan"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) CleanupThreshold() time.Duration {
	return time.Duration(c.CleanupThresholdHours) * time.Hour
}

func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalHours) * time.Hour
}

func (c *Config) CleanupRunTimeout() time.Duration {
	return time.Duration(c.CleanupRunTimeoutMinutes) * time.Minute
}

func (c *Config) JWTTTL() time.Duration {
	return time.Duration(c.JWTTTLHours) * time.Hour
}

func (c *Config) InferenceTimeout() time.Duration {
	return time.Duration(c.InferenceTimeoutSeconds) * time.Second
}

// OriginalsRoot falls back to STORAGE_ROOT/originals when ORIGINALS_DIR is unset.
func (c *Config) OriginalsRoot() string {
	if c.OriginalsDir != "" {
		return c.OriginalsDir
	}
	return filepath.Join(c.StorageRoot, "originals")
}

func (c *Config) ProcessedRoot() string {
	if c.ProcessedDir != "" {
		return c.ProcessedDir
	}
	return filepath.Join(c.StorageRoot, "processed")
}

func (c *Config) Validate(isProduction bool) error {
	switch c.AdmissionBackend {
	case AdmissionBackendMemory:
	case AdmissionBackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when ADMISSION_BACKEND=redis")
		}
	default:
		return fmt.Errorf("ADMISSION_BACKEND must be %q or %q, got %q",
			AdmissionBackendMemory, AdmissionBackendRedis, c.AdmissionBackend)
	}

	if c.MaxConcurrentUploadsPerSession <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_UPLOADS_PER_SESSION must be positive")
	}
	if c.CleanupThresholdHours <= 0 {
		return fmt.Errorf("CLEANUP_THRESHOLD_HOURS must be positive")
	}
	if c.CleanupIntervalHours <= 0 {
		return fmt.Errorf("CLEANUP_INTERVAL_HOURS must be positive")
	}
	if c.CleanupRunTimeoutMinutes <= 0 {
		return fmt.Errorf("CLEANUP_RUN_TIMEOUT_MINUTES must be positive")
	}
	if c.InferenceTimeoutSeconds <= 0 {
		return fmt.Errorf("INFERENCE_TIMEOUT_SECONDS must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}

	if isProduction {
		if err := validateSecret("JWT_SECRET", c.JWTSecret); err != nil {
			return err
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if c.InferenceAPIKey == "" {
			log.Warn().Msg("INFERENCE_API_KEY is empty in production")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
