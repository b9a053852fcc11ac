package password

import (
	"fmt"
	"runtime"

	"github.com/caarlos0/env/v11"
)

// Argon2idParams controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32 `env:"ARGON2_MEMORY_KIB"`
	Iterations  uint32 `env:"ARGON2_ITERATIONS"`
	Parallelism uint8  `env:"ARGON2_PARALLELISM"`
	SaltLength  uint32 `env:"ARGON2_SALT_LEN"`
	KeyLength   uint32 `env:"ARGON2_KEY_LEN"`
}

// Policy controls secret validation on signup.
type Policy struct {
	MinLength int `env:"MIN_SECRET_LEN"`
	// MaxLength of 0 means no upper bound.
	MaxLength int `env:"MAX_SECRET_LEN"`
	// If true, enable an extra, minimal weak-pattern rejection.
	RejectVeryWeak bool `env:"REJECT_VERY_WEAK_SECRETS"`
}

// Config is the single configuration surface for this package.
type Config struct {
	Params Argon2idParams
	Policy Policy
}

// EnvPrefix is prepended to every variable this package reads.
const EnvPrefix = "SKILLFORGE_"

// DefaultConfig returns the directory baseline.
//
// Policy mirrors the signup rule (at least 6 characters, no upper bound);
// Argon2id cost only matters when the argon2id secret scheme is enabled.
func DefaultConfig() Config {
	// Parallelism is clamped to [1..4] to keep resource usage predictable in containers.
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}

	return Config{
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024, // 64 MiB
			Iterations:  3,
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4] above.
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: Policy{
			MinLength: 6,
		},
	}
}

// FromEnv overlays SKILLFORGE_* variables on DefaultConfig and checks the
// result:
//
//	SKILLFORGE_MIN_SECRET_LEN, SKILLFORGE_MAX_SECRET_LEN, SKILLFORGE_REJECT_VERY_WEAK_SECRETS
//	SKILLFORGE_ARGON2_MEMORY_KIB, _ITERATIONS, _PARALLELISM, _SALT_LEN, _KEY_LEN
func FromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("password: parse env: %w", err)
	}
	if err := cfg.Check(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type bound struct {
	name          string
	val, min, max uint64
}

// Check rejects cost parameters and policies outside sane ranges.
func (c Config) Check() error {
	if c.Policy.MinLength < 1 || c.Policy.MinLength > 1024 {
		return fmt.Errorf("password: %sMIN_SECRET_LEN out of range [1..1024]", EnvPrefix)
	}
	if c.Policy.MaxLength < 0 || c.Policy.MaxLength > 4096 {
		return fmt.Errorf("password: %sMAX_SECRET_LEN out of range [0..4096]", EnvPrefix)
	}
	if c.Policy.MaxLength > 0 && c.Policy.MinLength > c.Policy.MaxLength {
		return fmt.Errorf("password: policy invalid: min_len(%d) > max_len(%d)", c.Policy.MinLength, c.Policy.MaxLength)
	}

	p := c.Params
	for _, b := range []bound{
		{"ARGON2_MEMORY_KIB", uint64(p.MemoryKiB), 8 * 1024, 1024 * 1024},
		{"ARGON2_ITERATIONS", uint64(p.Iterations), 1, 20},
		{"ARGON2_PARALLELISM", uint64(p.Parallelism), 1, 64},
		{"ARGON2_SALT_LEN", uint64(p.SaltLength), 8, 64},
		{"ARGON2_KEY_LEN", uint64(p.KeyLength), 16, 64},
	} {
		if b.val < b.min || b.val > b.max {
			return fmt.Errorf("password: %s%s out of range [%d..%d]", EnvPrefix, b.name, b.min, b.max)
		}
	}
	return nil
}
