package password

import (
	"os"
	"strings"
	"testing"
)

var envKeys = []string{
	"SKILLFORGE_MIN_SECRET_LEN",
	"SKILLFORGE_MAX_SECRET_LEN",
	"SKILLFORGE_REJECT_VERY_WEAK_SECRETS",
	"SKILLFORGE_ARGON2_MEMORY_KIB",
	"SKILLFORGE_ARGON2_ITERATIONS",
	"SKILLFORGE_ARGON2_PARALLELISM",
	"SKILLFORGE_ARGON2_SALT_LEN",
	"SKILLFORGE_ARGON2_KEY_LEN",
}

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range envKeys {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}

	def := DefaultConfig()
	if cfg != def {
		t.Fatalf("cfg=%+v want defaults %+v", cfg, def)
	}
	if cfg.Policy.MinLength != 6 || cfg.Policy.MaxLength != 0 {
		t.Fatalf("policy defaults: %+v", cfg.Policy)
	}
}

func TestFromEnv_Override(t *testing.T) {
	t.Setenv("SKILLFORGE_MIN_SECRET_LEN", "10")
	t.Setenv("SKILLFORGE_MAX_SECRET_LEN", "200")
	t.Setenv("SKILLFORGE_REJECT_VERY_WEAK_SECRETS", "true")
	t.Setenv("SKILLFORGE_ARGON2_MEMORY_KIB", "32768")
	t.Setenv("SKILLFORGE_ARGON2_ITERATIONS", "4")
	t.Setenv("SKILLFORGE_ARGON2_PARALLELISM", "2")
	t.Setenv("SKILLFORGE_ARGON2_SALT_LEN", "24")
	t.Setenv("SKILLFORGE_ARGON2_KEY_LEN", "32")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}

	if cfg.Policy.MinLength != 10 || cfg.Policy.MaxLength != 200 || !cfg.Policy.RejectVeryWeak {
		t.Fatalf("policy override failed: %+v", cfg.Policy)
	}
	if cfg.Params.MemoryKiB != 32768 || cfg.Params.Iterations != 4 || cfg.Params.Parallelism != 2 {
		t.Fatalf("argon2 override failed: %+v", cfg.Params)
	}
	if cfg.Params.SaltLength != 24 || cfg.Params.KeyLength != 32 {
		t.Fatalf("len override failed: %+v", cfg.Params)
	}
}

func TestFromEnv_PartialOverrideKeepsDefaults(t *testing.T) {
	t.Setenv("SKILLFORGE_ARGON2_ITERATIONS", "5")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}
	def := DefaultConfig()
	if cfg.Params.Iterations != 5 {
		t.Fatalf("Iterations=%d want 5", cfg.Params.Iterations)
	}
	if cfg.Params.MemoryKiB != def.Params.MemoryKiB || cfg.Params.Parallelism != def.Params.Parallelism {
		t.Fatalf("untouched params changed: %+v", cfg.Params)
	}
	if cfg.Policy != def.Policy {
		t.Fatalf("policy changed: %+v", cfg.Policy)
	}
}

func TestFromEnv_InvalidMinMax(t *testing.T) {
	t.Setenv("SKILLFORGE_MIN_SECRET_LEN", "20")
	t.Setenv("SKILLFORGE_MAX_SECRET_LEN", "10")

	_, err := FromEnv()
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "min_len(20) > max_len(10)") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFromEnv_RejectsGarbage(t *testing.T) {
	cases := map[string]string{
		"SKILLFORGE_MIN_SECRET_LEN":           "six",
		"SKILLFORGE_MIN_SECRET_LEN=0":         "0",
		"SKILLFORGE_MAX_SECRET_LEN":           "-1",
		"SKILLFORGE_ARGON2_MEMORY_KIB":        "1024",
		"SKILLFORGE_ARGON2_ITERATIONS":        "0",
		"SKILLFORGE_ARGON2_PARALLELISM":       "300",
		"SKILLFORGE_ARGON2_SALT_LEN":          "4",
		"SKILLFORGE_ARGON2_KEY_LEN":           "128",
		"SKILLFORGE_REJECT_VERY_WEAK_SECRETS": "maybe",
	}
	for name, val := range cases {
		key, _, _ := strings.Cut(name, "=")
		t.Run(name, func(t *testing.T) {
			t.Setenv(key, val)
			if _, err := FromEnv(); err == nil {
				t.Fatalf("%s=%q: expected error", key, val)
			}
		})
	}
}

func TestCheck_MaxLengthZeroIsUnbounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy.MinLength = 1000
	if err := cfg.Check(); err != nil {
		t.Fatalf("Check with MaxLength=0: %v", err)
	}
	cfg.Policy.MaxLength = 999
	if err := cfg.Check(); err == nil {
		t.Fatalf("expected min > max to fail")
	}
}
