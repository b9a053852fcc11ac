package kv

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned by Get when the key has no value.
	ErrNotFound = errors.New("kv: key not found")

	// ErrUnavailable reports a durable read/write failure. Once a Guard has seen
	// one, every later call fails fast with it.
	ErrUnavailable = errors.New("persistence unavailable")
)

// Store is the minimal key-value contract consumed by the directory components.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error

	// Ping checks backend reachability (readiness checks).
	Ping(ctx context.Context) error
	Close() error
}

// DefaultKeyPrefix matches the record names used by the SkillForge web client.
const DefaultKeyPrefix = "skillforge_"

// Keys are the fixed record names the directory persists under.
type Keys struct {
	Users         string
	Session       string
	Registrations string
}

// KeysWithPrefix derives the record names for a prefix. Blank means DefaultKeyPrefix.
func KeysWithPrefix(prefix string) Keys {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return Keys{
		Users:         prefix + "users",
		Session:       prefix + "user",
		Registrations: prefix + "registrations",
	}
}

// IsNotFound reports whether err is ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsUnavailable reports whether err is ErrUnavailable.
func IsUnavailable(err error) bool { return errors.Is(err, ErrUnavailable) }

func validKey(key string) bool {
	return strings.TrimSpace(key) != ""
}
