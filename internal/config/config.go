// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Tie-break policies for winner resolution.
const (
	TieBreakEarliest = "earliest"
	TieBreakLatest   = "latest"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	JWTSecret      string `mapstructure:"JWT_SECRET"`
	Port           string `mapstructure:"PORT"`
	DBHost         string `mapstructure:"DB_HOST"`
	DBPort         string `mapstructure:"DB_PORT"`
	DBUser         string `mapstructure:"DB_USER"`
	DBPassword     string `mapstructure:"DB_PASSWORD"`
	DBName         string `mapstructure:"DB_NAME"`
	DBSSLMode      string `mapstructure:"DB_SSLMODE"`
	DBAutoMigrate  bool   `mapstructure:"DB_AUTO_MIGRATE"`
	RedisURL       string `mapstructure:"REDIS_URL"`
	RabbitMQURL    string `mapstructure:"RABBITMQ_URL"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	Env            string `mapstructure:"APP_ENV"`

	// Contest policy
	ContestTimezone     string `mapstructure:"CONTEST_TIMEZONE"`
	WinnerMinVotes      int64  `mapstructure:"WINNER_MIN_VOTES"`
	WinnerTieBreak      string `mapstructure:"WINNER_TIE_BREAK"`
	WinnerFallbackDays  int    `mapstructure:"WINNER_FALLBACK_DAYS"`
	ResolveCron         string `mapstructure:"RESOLVE_CRON"`
	SchedulerEnabled    bool   `mapstructure:"SCHEDULER_ENABLED"`
	CronSecret          string `mapstructure:"CRON_SECRET"`
	AdminEmails         string `mapstructure:"ADMIN_EMAILS"`
	UploadDir           string `mapstructure:"UPLOAD_DIR"`
	UploadMaxSizeMB     int    `mapstructure:"UPLOAD_MAX_SIZE_MB"`
	ListingCacheSeconds int    `mapstructure:"LISTING_CACHE_SECONDS"`

	TracingEnabled     bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter    string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint       string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSampleRatio float64 `mapstructure:"TRACING_SAMPLE_RATIO"`
}

// LoadDotEnv loads key/value pairs from path into the process environment.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

// LoadConfig loads application configuration from .env, config files and environment variables.
func LoadConfig() (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		log.Printf("failed to load .env: %v", err)
	}

	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base file is optional.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("PORT", "8375")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "dailyshot")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_AUTO_MIGRATE", true)
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("RABBITMQ_URL", "")
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173")
	viper.SetDefault("APP_ENV", "development")

	viper.SetDefault("CONTEST_TIMEZONE", "UTC")
	viper.SetDefault("WINNER_MIN_VOTES", 1)
	viper.SetDefault("WINNER_TIE_BREAK", TieBreakEarliest)
	viper.SetDefault("WINNER_FALLBACK_DAYS", 7)
	viper.SetDefault("RESOLVE_CRON", "0 1 * * *")
	viper.SetDefault("SCHEDULER_ENABLED", false)
	viper.SetDefault("CRON_SECRET", "")
	viper.SetDefault("ADMIN_EMAILS", "")
	viper.SetDefault("UPLOAD_DIR", "./uploads")
	viper.SetDefault("UPLOAD_MAX_SIZE_MB", 10)
	viper.SetDefault("LISTING_CACHE_SECONDS", 30)

	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLE_RATIO", 1.0)
}

func (c *Config) normalize() {
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.WinnerTieBreak = strings.ToLower(strings.TrimSpace(c.WinnerTieBreak))
	c.ContestTimezone = strings.TrimSpace(c.ContestTimezone)
	if c.ContestTimezone == "" {
		c.ContestTimezone = "UTC"
	}
}

// IsProduction reports whether the configured environment is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Location returns the timezone contest days are cut in.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.ContestTimezone)
}

// AdminEmailList returns the lower-cased bootstrap admin emails.
func (c *Config) AdminEmailList() []string {
	var out []string
	for _, e := range strings.Split(c.AdminEmails, ",") {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}

// ListingCacheTTL returns how long day listings stay cached.
func (c *Config) ListingCacheTTL() time.Duration {
	return time.Duration(c.ListingCacheSeconds) * time.Second
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("CONTEST_TIMEZONE %q is not a valid IANA zone: %w", c.ContestTimezone, err)
	}
	if c.WinnerMinVotes < 1 {
		return errors.New("WINNER_MIN_VOTES must be at least 1")
	}
	if c.WinnerTieBreak != TieBreakEarliest && c.WinnerTieBreak != TieBreakLatest {
		return fmt.Errorf("WINNER_TIE_BREAK must be %q or %q", TieBreakEarliest, TieBreakLatest)
	}
	if c.WinnerFallbackDays < 1 {
		return errors.New("WINNER_FALLBACK_DAYS must be at least 1")
	}
	if _, err := cron.ParseStandard(c.ResolveCron); err != nil {
		return fmt.Errorf("RESOLVE_CRON is invalid: %w", err)
	}
	if c.UploadMaxSizeMB <= 0 {
		return errors.New("UPLOAD_MAX_SIZE_MB must be positive")
	}

	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if len(c.CronSecret) < 16 {
			return errors.New("CRON_SECRET must be at least 16 characters in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			log.Println("WARNING: DB_SSLMODE is 'disable' in production. It is highly recommended to use SSL for database connections.")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}
