package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"skillforge/cmd/identity"
	"skillforge/cmd/security/password"
)

// Config is the process configuration, read from SKILLFORGE_* variables.
type Config struct {
	LogLevel  string `env:"SKILLFORGE_LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"SKILLFORGE_LOG_FORMAT" envDefault:"pretty"`

	// StoreURL selects the kv backend. Empty means the bolt file under the
	// user config directory.
	StoreURL  string `env:"SKILLFORGE_STORE_URL"`
	KeyPrefix string `env:"SKILLFORGE_KEY_PREFIX" envDefault:"skillforge_"`
	SeedFile  string `env:"SKILLFORGE_SEED_FILE"`

	AuthLatency  time.Duration `env:"SKILLFORGE_AUTH_LATENCY"  envDefault:"500ms"`
	RecentLimit  int           `env:"SKILLFORGE_RECENT_LIMIT"  envDefault:"5"`
	SecretScheme string        `env:"SKILLFORGE_SECRET_SCHEME" envDefault:"plaintext"`

	OpsAddr                 string        `env:"SKILLFORGE_OPS_ADDR"                  envDefault:"127.0.0.1:9464"`
	ReadinessRequireDurable bool          `env:"SKILLFORGE_READINESS_REQUIRE_DURABLE" envDefault:"false"`
	ShutdownTimeout         time.Duration `env:"SKILLFORGE_SHUTDOWN_TIMEOUT"          envDefault:"10s"`

	// Password carries the argon2id cost and the signup policy, including
	// SKILLFORGE_MIN_SECRET_LEN. It has its own env surface in
	// security/password.
	Password password.Config `env:"-"`
}

// LoadConfig reads Config from the environment and validates it.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	pw, err := password.FromEnv()
	if err != nil {
		return Config{}, fmt.Errorf("password config: %w", err)
	}
	cfg.Password = pw

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the process cannot start with.
func (c Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.LogFormat)) {
	case "json", "pretty", "text":
	default:
		return fmt.Errorf("config: SKILLFORGE_LOG_FORMAT must be json, pretty or text, got %q", c.LogFormat)
	}
	if c.AuthLatency < 0 {
		return fmt.Errorf("config: SKILLFORGE_AUTH_LATENCY must not be negative")
	}
	if c.RecentLimit <= 0 {
		return fmt.Errorf("config: SKILLFORGE_RECENT_LIMIT must be positive")
	}
	if err := c.Password.Check(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := identity.SchemeByName(c.SecretScheme, c.Password); err != nil {
		return fmt.Errorf("config: SKILLFORGE_SECRET_SCHEME: %w", err)
	}
	if strings.TrimSpace(c.KeyPrefix) == "" {
		return fmt.Errorf("config: SKILLFORGE_KEY_PREFIX must not be blank")
	}
	return nil
}
