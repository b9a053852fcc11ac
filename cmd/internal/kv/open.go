package kv

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Backend names reported by Open.
const (
	BackendMemory   = "memory"
	BackendBolt     = "bolt"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Open selects and opens a backend from a store URL:
//
//	memory://                     process-local, nothing survives a restart
//	bolt://<path> or a bare path  BoltDB file
//	sqlite://<path>               SQLite file
//	postgres://... postgresql://  Postgres table "skillforge"."kv"
//	redis://... rediss://         Redis string keys
//
// It returns the backend name alongside the store for logging.
func Open(ctx context.Context, rawURL string) (Store, string, error) {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return nil, "", fmt.Errorf("kv: empty store url")
	}

	switch {
	case raw == "memory" || strings.HasPrefix(raw, "memory://"):
		return NewMemory(), BackendMemory, nil

	case strings.HasPrefix(raw, "bolt://"):
		st, err := OpenBolt(expandHome(strings.TrimPrefix(raw, "bolt://")))
		return st, BackendBolt, err

	case strings.HasPrefix(raw, "sqlite://"):
		st, err := OpenSQLite(ctx, expandHome(strings.TrimPrefix(raw, "sqlite://")))
		return st, BackendSQLite, err

	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		st, err := OpenPostgres(ctx, raw)
		return st, BackendPostgres, err

	case strings.HasPrefix(raw, "redis://"), strings.HasPrefix(raw, "rediss://"):
		st, err := OpenRedis(ctx, raw)
		return st, BackendRedis, err

	case !strings.Contains(raw, "://"):
		st, err := OpenBolt(expandHome(raw))
		return st, BackendBolt, err

	default:
		return nil, "", fmt.Errorf("kv: unsupported store url scheme in %q", Redact(raw))
	}
}

// DefaultBoltPath is where the CLI keeps its state when no store URL is configured.
func DefaultBoltPath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "skillforge", "directory.db")
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

// Redact drops credentials so store URLs can be logged.
func Redact(raw string) string {
	raw = strings.TrimSpace(raw)
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return raw
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		rest = "***@" + rest[at+1:]
	}
	return scheme + "://" + rest
}
