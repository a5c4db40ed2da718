package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName            = "VouchPay"
	defaultAppEnv             = "development"
	defaultPort               = "8080"
	defaultLogLevel           = "info"
	defaultShutdownDelay      = 10 * time.Second
	defaultIdempotencyTTL     = 24 * time.Hour
	defaultServiceFeeBPS      = 250
	defaultVerificationWindow = 5 * 24 * time.Hour
	defaultSweepInterval      = time.Minute
	defaultStoreTimeout       = 5 * time.Second
	defaultPlacementPerMin    = 10
)

// Config captures application runtime configuration loaded from environment
// variables, optionally seeded from a .env file.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	// IdentitySecret verifies bearer tokens from the identity provider.
	IdentitySecret string

	// ServiceFeeBPS is the marketplace fee in basis points, added on top
	// of the product price and held in escrow with it.
	ServiceFeeBPS int

	// VerificationWindow is how long after delivery the buyer may verify
	// or dispute before escrow auto-releases.
	VerificationWindow time.Duration

	// SweepInterval is how often the deadline sweeper scans for elapsed
	// verification windows.
	SweepInterval time.Duration

	// StoreTimeout bounds individual durable-store operations in
	// background work.
	StoreTimeout time.Duration

	PlacementPerMin int
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first without overriding real environment values.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		AppName:            getEnv("APP_NAME", defaultAppName),
		AppEnv:             getEnv("APP_ENV", defaultAppEnv),
		Port:               getEnv("PORT", defaultPort),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           os.Getenv("REDIS_URL"),
		IdentitySecret:     os.Getenv("IDENTITY_JWT_SECRET"),
		ShutdownPeriod:     defaultShutdownDelay,
		IdempotencyTTL:     defaultIdempotencyTTL,
		ServiceFeeBPS:      defaultServiceFeeBPS,
		VerificationWindow: defaultVerificationWindow,
		SweepInterval:      defaultSweepInterval,
		StoreTimeout:       defaultStoreTimeout,
		PlacementPerMin:    defaultPlacementPerMin,
	}

	var err error
	if cfg.ShutdownPeriod, err = durationEnv("SHUTDOWN_TIMEOUT", cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv("IDEMPOTENCY_TTL", cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.VerificationWindow, err = durationEnv("VERIFICATION_WINDOW", cfg.VerificationWindow); err != nil {
		return Config{}, err
	}
	if cfg.SweepInterval, err = durationEnv("SWEEP_INTERVAL", cfg.SweepInterval); err != nil {
		return Config{}, err
	}
	if cfg.StoreTimeout, err = durationEnv("STORE_TIMEOUT", cfg.StoreTimeout); err != nil {
		return Config{}, err
	}
	if cfg.ServiceFeeBPS, err = intEnv("SERVICE_FEE_BPS", cfg.ServiceFeeBPS); err != nil {
		return Config{}, err
	}
	if cfg.PlacementPerMin, err = intEnv("PLACEMENT_PER_MIN", cfg.PlacementPerMin); err != nil {
		return Config{}, err
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL must be set")
	}
	if cfg.IdentitySecret == "" {
		return Config{}, fmt.Errorf("IDENTITY_JWT_SECRET must be set")
	}
	if cfg.ServiceFeeBPS < 0 || cfg.ServiceFeeBPS > 10_000 {
		return Config{}, fmt.Errorf("SERVICE_FEE_BPS must be between 0 and 10000")
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
