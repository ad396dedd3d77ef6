package config

import (
	"errors"
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/spf13/viper"
)

// Reference sources.
const (
	ReferenceFile     = "file"
	ReferencePostgres = "postgres"
	ReferenceNone     = "none"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	LogLevel    string   `mapstructure:"LOG_LEVEL"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`
	TLSEnabled  bool     `mapstructure:"TLS_ENABLED"`
	TLSCertFile string   `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile  string   `mapstructure:"TLS_KEY_FILE"`

	ReferenceSource   string `mapstructure:"REFERENCE_SOURCE"`
	CategoryFile      string `mapstructure:"CATEGORY_FILE"`
	SentinelFile      string `mapstructure:"SENTINEL_FILE"`
	UnitFile          string `mapstructure:"UNIT_FILE"`
	CodePrefixLength  int    `mapstructure:"CODE_PREFIX_LENGTH"`
	CategoryKeyLength int    `mapstructure:"CATEGORY_KEY_LENGTH"`

	AuthSigningKey string `mapstructure:"AUTH_SIGNING_KEY"`
	AuthIssuer     string `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string `mapstructure:"AUTH_AUDIENCE"`

	BodyLimit      string `mapstructure:"BODY_LIMIT"`
	MaxUploadBytes int64  `mapstructure:"MAX_UPLOAD_BYTES"`

	WeightFrequency   float64 `mapstructure:"WEIGHT_FREQUENCY"`
	WeightSeverity    float64 `mapstructure:"WEIGHT_SEVERITY"`
	WeightTrend       float64 `mapstructure:"WEIGHT_TREND"`
	TrendWindowMonths int     `mapstructure:"TREND_WINDOW_MONTHS"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"CORS_ORIGINS", "TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE",
	"REFERENCE_SOURCE", "CATEGORY_FILE", "SENTINEL_FILE", "UNIT_FILE",
	"CODE_PREFIX_LENGTH", "CATEGORY_KEY_LENGTH",
	"AUTH_SIGNING_KEY", "AUTH_ISSUER", "AUTH_AUDIENCE",
	"BODY_LIMIT", "MAX_UPLOAD_BYTES",
	"WEIGHT_FREQUENCY", "WEIGHT_SEVERITY", "WEIGHT_TREND", "TREND_WINDOW_MONTHS",
}

// Load reads configuration from the environment and an optional .env file.
// It does not validate; callers run Validate once flags are applied.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("REFERENCE_SOURCE", ReferenceFile)
	v.SetDefault("CODE_PREFIX_LENGTH", 6)
	v.SetDefault("CATEGORY_KEY_LENGTH", 6)
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("MAX_UPLOAD_BYTES", 20<<20)
	v.SetDefault("WEIGHT_FREQUENCY", 0.4)
	v.SetDefault("WEIGHT_SEVERITY", 0.4)
	v.SetDefault("WEIGHT_TREND", 0.2)
	v.SetDefault("TREND_WINDOW_MONTHS", 3)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(strings.Join(cfg.CORSOrigins, ","))

	if cfg.IsDev() && cfg.AuthSigningKey == "" {
		log.Println("WARNING: ENV=development without AUTH_SIGNING_KEY: every request runs as admin.")
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	switch c.ReferenceSource {
	case ReferenceFile, ReferencePostgres, ReferenceNone:
	default:
		return fmt.Errorf("%w: REFERENCE_SOURCE must be %q, %q or %q, got %q",
			ErrInvalid, ReferenceFile, ReferencePostgres, ReferenceNone, c.ReferenceSource)
	}
	if c.ReferenceSource == ReferencePostgres && c.DatabaseURL == "" {
		return fmt.Errorf("%w: DATABASE_URL is required when REFERENCE_SOURCE is %q", ErrInvalid, ReferencePostgres)
	}
	if c.CodePrefixLength < 1 {
		return fmt.Errorf("%w: CODE_PREFIX_LENGTH must be positive, got %d", ErrInvalid, c.CodePrefixLength)
	}
	if c.CategoryKeyLength < 1 {
		return fmt.Errorf("%w: CATEGORY_KEY_LENGTH must be positive, got %d", ErrInvalid, c.CategoryKeyLength)
	}
	if c.TrendWindowMonths < 1 {
		return fmt.Errorf("%w: TREND_WINDOW_MONTHS must be at least 1, got %d", ErrInvalid, c.TrendWindowMonths)
	}
	if c.MaxUploadBytes < 1 {
		return fmt.Errorf("%w: MAX_UPLOAD_BYTES must be positive", ErrInvalid)
	}
	for _, w := range []float64{c.WeightFrequency, c.WeightSeverity, c.WeightTrend} {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("%w: weights must be finite numbers", ErrInvalid)
		}
	}
	if c.WeightFrequency < 0 || c.WeightSeverity < 0 || c.WeightTrend < 0 {
		return fmt.Errorf("%w: weights must not be negative", ErrInvalid)
	}
	if sum := c.WeightFrequency + c.WeightSeverity + c.WeightTrend; math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("%w: WEIGHT_FREQUENCY + WEIGHT_SEVERITY + WEIGHT_TREND must equal 1, got %g", ErrInvalid, sum)
	}
	if !c.IsDev() && c.AuthSigningKey == "" {
		return fmt.Errorf("%w: AUTH_SIGNING_KEY is required outside development (ENV=%q)", ErrInvalid, c.Env)
	}
	if c.AuthSigningKey != "" && len(c.AuthSigningKey) < 32 && c.IsProduction() {
		return fmt.Errorf("%w: AUTH_SIGNING_KEY must be at least 32 bytes in production", ErrInvalid)
	}

	// TLS validation: when TLS is enabled, cert and key files must be specified.
	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("%w: TLS_CERT_FILE is required when TLS_ENABLED is true", ErrInvalid)
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("%w: TLS_KEY_FILE is required when TLS_ENABLED is true", ErrInvalid)
		}
	}
	return nil
}
