package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// devSecret is used when HUDDLE_JWT_SECRET is unset. It is only fit for
// local development.
const devSecret = "huddle-development-secret-change-me"

// Provider exposes configuration to the rest of the application.
type Provider interface {
	GetAddr() string
	GetJWTSecret() string
	GetJWTIssuer() string
	GetTokenTTL() time.Duration
	GetSessionSecret() string
	GetBcryptCost() int
	GetDeliveryTimeout() time.Duration
	GetSendBuffer() int
	GetRouterQueue() int
	GetFanoutLimit() int
	GetAllowedOrigins() []string
	GetShutdownTimeout() time.Duration
}

// Config holds all configuration for the application.
type Config struct {
	Addr            string        `validate:"required"`
	JWTSecret       string        `validate:"required,min=16"`
	JWTIssuer       string        `validate:"required"`
	TokenTTL        time.Duration `validate:"gt=0"`
	SessionSecret   string        `validate:"required,min=16"`
	BcryptCost      int           `validate:"gte=4,lte=31"`
	DeliveryTimeout time.Duration `validate:"gt=0"`
	SendBuffer      int           `validate:"gt=0"`
	RouterQueue     int           `validate:"gt=0"`
	FanoutLimit     int           `validate:"gt=0"`
	AllowedOrigins  []string
	ShutdownTimeout time.Duration `validate:"gt=0"`
}

// New loads configuration from a .env file, if present, and the
// environment.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on environment variables")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds and validates a Config from getenv.
func FromEnv(getenv func(string) string) (*Config, error) {
	r := reader{getenv: getenv}
	cfg := &Config{
		Addr:            r.str("HUDDLE_ADDR", ":8080"),
		JWTSecret:       r.str("HUDDLE_JWT_SECRET", ""),
		JWTIssuer:       r.str("HUDDLE_JWT_ISSUER", "huddle"),
		TokenTTL:        r.duration("HUDDLE_TOKEN_TTL", 24*time.Hour),
		SessionSecret:   r.str("HUDDLE_SESSION_SECRET", ""),
		BcryptCost:      r.num("HUDDLE_BCRYPT_COST", bcrypt.DefaultCost),
		DeliveryTimeout: r.duration("HUDDLE_DELIVERY_TIMEOUT", 5*time.Second),
		SendBuffer:      r.num("HUDDLE_SEND_BUFFER", 256),
		RouterQueue:     r.num("HUDDLE_ROUTER_QUEUE", 1024),
		FanoutLimit:     r.num("HUDDLE_FANOUT_LIMIT", 64),
		AllowedOrigins:  r.list("HUDDLE_ALLOWED_ORIGINS"),
		ShutdownTimeout: r.duration("HUDDLE_SHUTDOWN_TIMEOUT", 10*time.Second),
	}
	if r.err != nil {
		return nil, r.err
	}

	if cfg.JWTSecret == "" {
		slog.Warn("HUDDLE_JWT_SECRET is not set, using the development secret")
		cfg.JWTSecret = devSecret
	}
	if cfg.SessionSecret == "" {
		cfg.SessionSecret = cfg.JWTSecret
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) GetAddr() string                   { return c.Addr }
func (c *Config) GetJWTSecret() string              { return c.JWTSecret }
func (c *Config) GetJWTIssuer() string              { return c.JWTIssuer }
func (c *Config) GetTokenTTL() time.Duration        { return c.TokenTTL }
func (c *Config) GetSessionSecret() string          { return c.SessionSecret }
func (c *Config) GetBcryptCost() int                { return c.BcryptCost }
func (c *Config) GetDeliveryTimeout() time.Duration { return c.DeliveryTimeout }
func (c *Config) GetSendBuffer() int                { return c.SendBuffer }
func (c *Config) GetRouterQueue() int               { return c.RouterQueue }
func (c *Config) GetFanoutLimit() int               { return c.FanoutLimit }
func (c *Config) GetAllowedOrigins() []string       { return c.AllowedOrigins }
func (c *Config) GetShutdownTimeout() time.Duration { return c.ShutdownTimeout }

// reader keeps the first parse error so FromEnv can report it once.
type reader struct {
	getenv func(string) string
	err    error
}

func (r *reader) str(key, def string) string {
	if v := strings.TrimSpace(r.getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *reader) num(key string, def int) int {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("%s: %w", key, err)
	}
	return n
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("%s: %w", key, err)
	}
	return d
}

func (r *reader) list(key string) []string {
	var out []string
	for _, part := range strings.Split(r.getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
