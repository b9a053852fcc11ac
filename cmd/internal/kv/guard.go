package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Guard wraps a durable Store and degrades the process to in-memory-only
// behavior after the first backend failure.
//
// Contract:
//   - ErrNotFound and context errors pass through and never degrade.
//   - Any other backend error marks the guard degraded and is returned wrapped
//     with ErrUnavailable.
//   - Once degraded, the backend is not touched again; Get/Set/Delete fail fast
//     with ErrUnavailable so callers keep reporting that durability is gone.
type Guard struct {
	inner Store
	log   *slog.Logger

	mu       sync.RWMutex
	degraded bool
	cause    error

	onDegrade func(cause error)
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithDegradeHook registers fn to be called once, when the guard degrades.
func WithDegradeHook(fn func(cause error)) GuardOption {
	return func(g *Guard) {
		if g == nil || fn == nil {
			return
		}
		g.onDegrade = fn
	}
}

// NewGuard wraps inner.
func NewGuard(inner Store, log *slog.Logger, opts ...GuardOption) *Guard {
	if log == nil {
		log = slog.Default()
	}
	g := &Guard{inner: inner, log: log}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(g)
	}
	return g
}

// Degraded reports whether durability has been lost and the failure that caused it.
func (g *Guard) Degraded() (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.degraded, g.cause
}

func (g *Guard) Get(ctx context.Context, key string) ([]byte, error) {
	if err := g.fastFail("get", key); err != nil {
		return nil, err
	}
	v, err := g.inner.Get(ctx, key)
	if err != nil {
		return nil, g.observe("get", key, err)
	}
	return v, nil
}

func (g *Guard) Set(ctx context.Context, key string, value []byte) error {
	if err := g.fastFail("set", key); err != nil {
		return err
	}
	return g.observe("set", key, g.inner.Set(ctx, key, value))
}

func (g *Guard) Delete(ctx context.Context, key string) error {
	if err := g.fastFail("delete", key); err != nil {
		return err
	}
	return g.observe("delete", key, g.inner.Delete(ctx, key))
}

// Ping reports the degraded cause, or the backend ping result. A failed ping does
// not degrade the guard.
func (g *Guard) Ping(ctx context.Context) error {
	if ok, cause := g.Degraded(); ok {
		return fmt.Errorf("%w: %v", ErrUnavailable, cause)
	}
	return g.inner.Ping(ctx)
}

// Close closes the wrapped backend.
func (g *Guard) Close() error { return g.inner.Close() }

func (g *Guard) fastFail(op, key string) error {
	g.mu.RLock()
	degraded := g.degraded
	g.mu.RUnlock()
	if !degraded {
		return nil
	}
	return fmt.Errorf("kv.%s %q: %w (degraded)", op, key, ErrUnavailable)
}

func (g *Guard) observe(op, key string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	g.mu.Lock()
	first := !g.degraded
	if first {
		g.degraded = true
		g.cause = err
	}
	g.mu.Unlock()

	if first {
		g.log.Warn("kv.degraded", "op", op, "key", key, "err", err)
		if g.onDegrade != nil {
			g.onDegrade(err)
		}
	}
	return fmt.Errorf("kv.%s %q: %w: %w", op, key, ErrUnavailable, err)
}
