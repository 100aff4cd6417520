package config

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

// Supported identity provider modes.
const (
	AuthModeToken = "token"
	AuthModeOIDC  = "oidc"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig `envconfig:"RATELIMIT"`
	Log       LogConfig
	Telemetry TelemetryConfig `envconfig:"OTEL"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string        `envconfig:"HOST" default:"0.0.0.0"`
	Port           string        `envconfig:"PORT" default:"8080" validate:"required,numeric"`
	ReadTimeout    time.Duration `envconfig:"READ_TIMEOUT" default:"15s" validate:"gt=0"`
	WriteTimeout   time.Duration `envconfig:"WRITE_TIMEOUT" default:"15s" validate:"gt=0"`
	IdleTimeout    time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s" validate:"gt=0"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s" validate:"gt=0"`
	// TrustProxy reads the client address from X-Forwarded-For / X-Real-IP.
	// Enable only behind a reverse proxy that overwrites those headers.
	TrustProxy     bool          `envconfig:"TRUST_PROXY" default:"false"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

// AuthConfig selects and configures the identity provider.
type AuthConfig struct {
	Mode string `envconfig:"MODE" default:"token" validate:"oneof=token oidc"`

	TokenSecret   string `envconfig:"TOKEN_SECRET"`
	TokenIssuer   string `envconfig:"TOKEN_ISSUER"`
	TokenAudience string `envconfig:"TOKEN_AUDIENCE"`

	OIDCIssuerURL string `envconfig:"OIDC_ISSUER_URL" validate:"omitempty,url"`
	OIDCClientID  string `envconfig:"OIDC_CLIENT_ID"`

	// MetadataClaim names the claim holding the role metadata object. Empty
	// means the role is read from the top-level claims.
	MetadataClaim string        `envconfig:"METADATA_CLAIM" default:"public_metadata"`
	CookieName    string        `envconfig:"COOKIE_NAME" default:"__session" validate:"required"`
	CacheSize     int           `envconfig:"CACHE_SIZE" default:"1024" validate:"gte=0"`
	CacheTTL      time.Duration `envconfig:"CACHE_TTL" default:"1m" validate:"gte=0"`
	Leeway        time.Duration `envconfig:"LEEWAY" default:"30s" validate:"gte=0"`
	// SessionLimit and SessionTTL bound the per-session resolution state
	// used to report each session once.
	SessionLimit  int           `envconfig:"SESSION_LIMIT" default:"4096" validate:"gt=0"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"30m" validate:"gt=0"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64 `envconfig:"RPS" default:"10" validate:"gt=0"`
	Burst             int     `envconfig:"BURST" default:"20" validate:"gt=0"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn warning error"`
	Format string `envconfig:"FORMAT" default:"json" validate:"oneof=json text"`
}

// TelemetryConfig holds tracing and metrics configuration
type TelemetryConfig struct {
	Enabled        bool    `envconfig:"ENABLED" default:"false"`
	ServiceName    string  `envconfig:"SERVICE_NAME" default:"reelgate" validate:"required"`
	ServiceVersion string  `envconfig:"SERVICE_VERSION" default:"0.1.0"`
	SamplingRate   float64 `envconfig:"SAMPLING_RATE" default:"1" validate:"gte=0,lte=1"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	switch c.Auth.Mode {
	case AuthModeToken:
		if c.Auth.TokenSecret == "" {
			return errors.New("AUTH_TOKEN_SECRET is required in token mode")
		}
		if len(c.Auth.TokenSecret) < 32 {
			return errors.New("AUTH_TOKEN_SECRET must be at least 32 bytes")
		}
	case AuthModeOIDC:
		if c.Auth.OIDCIssuerURL == "" {
			return errors.New("AUTH_OIDC_ISSUER_URL is required in oidc mode")
		}
	}
	return nil
}
