// Package app wires the SkillForge runtime: config, logging, the kv backend,
// the directory components and the ops HTTP surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"skillforge/cmd/identity"
	"skillforge/cmd/internal/auth/gateway"
	"skillforge/cmd/internal/auth/session"
	"skillforge/cmd/internal/kv"
	"skillforge/cmd/internal/ledger"
)

// App owns the store and every component built on it.
type App struct {
	cfg Config
	log Logger

	store    *kv.Guard
	backend  string
	registry *prometheus.Registry
	metrics  *gateway.Metrics

	dir      *identity.Directory
	ledger   *ledger.Ledger
	sessions *session.Manager
	gateway  *gateway.Gateway
}

// Option customizes New.
type Option func(*options)

type options struct {
	store kv.Store
}

// WithStore makes New use st instead of opening cfg.StoreURL.
func WithStore(st kv.Store) Option {
	return func(o *options) { o.store = st }
}

// New opens the store, restores persisted state and wires the gateway.
// A store that is unreachable at startup degrades the directory to memory;
// it is not fatal.
func New(ctx context.Context, cfg Config, log Logger, opts ...Option) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat, nil)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	inner, backend := o.store, "custom"
	if inner == nil {
		url := strings.TrimSpace(cfg.StoreURL)
		if url == "" {
			url = kv.DefaultBoltPath()
		}
		st, name, err := kv.Open(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		inner, backend = st, name
		log.Info("store.open", "backend", backend, "url", kv.Redact(url))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := gateway.NewMetrics(reg)

	guard := kv.NewGuard(inner, log, kv.WithDegradeHook(metrics.MarkDegraded))
	keys := kv.KeysWithPrefix(cfg.KeyPrefix)

	a := &App{
		cfg:      cfg,
		log:      log,
		store:    guard,
		backend:  backend,
		registry: reg,
		metrics:  metrics,
	}
	if err := a.wire(ctx, keys); err != nil {
		_ = guard.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context, keys kv.Keys) error {
	scheme, err := identity.SchemeByName(a.cfg.SecretScheme, a.cfg.Password)
	if err != nil {
		return err
	}
	if scheme.Name() == identity.SchemePlaintext {
		a.log.Warn("secrets.plaintext", "scheme", scheme.Name())
	}

	seed := identity.DefaultSeed()
	if path := strings.TrimSpace(a.cfg.SeedFile); path != "" {
		seed, err = identity.LoadSeedFile(path)
		if err != nil {
			return fmt.Errorf("seed file: %w", err)
		}
	}

	a.dir, err = identity.NewDirectory(a.store, keys.Users,
		identity.WithLogger(a.log),
		identity.WithScheme(scheme),
	)
	if err != nil {
		return err
	}
	if err := a.dir.Seed(ctx, seed); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	if err := tolerateUnavailable(a.log, "identity.load", a.dir.Load(ctx)); err != nil {
		return err
	}

	a.ledger, err = ledger.New(a.store, keys.Registrations, ledger.WithLogger(a.log))
	if err != nil {
		return err
	}
	if err := tolerateUnavailable(a.log, "ledger.load", a.ledger.Load(ctx)); err != nil {
		return err
	}

	a.sessions, err = session.NewManager(a.store, keys.Session, session.WithLogger(a.log))
	if err != nil {
		return err
	}

	a.gateway, err = gateway.New(a.dir, a.ledger, a.sessions,
		gateway.WithLogger(a.log),
		gateway.WithMetrics(a.metrics),
		gateway.WithLatency(a.cfg.AuthLatency),
		gateway.WithPolicy(a.cfg.Password),
		gateway.WithRecentLimit(a.cfg.RecentLimit),
	)
	return err
}

// tolerateUnavailable downgrades a load failure caused by an unreachable
// store to a warning. Anything else stays fatal.
func tolerateUnavailable(log Logger, event string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, identity.ErrPersistenceUnavailable) {
		log.Warn(event+".degraded", "err", err)
		return nil
	}
	return fmt.Errorf("%s: %w", event, err)
}

// Gateway returns the auth gateway.
func (a *App) Gateway() *gateway.Gateway { return a.gateway }

// Backend names the kv backend in use.
func (a *App) Backend() string { return a.backend }

// Degraded reports whether durable storage has been lost.
func (a *App) Degraded() (bool, error) { return a.store.Degraded() }

// Registry exposes the metrics registry served on /metrics.
func (a *App) Registry() *prometheus.Registry { return a.registry }

// Close releases the store.
func (a *App) Close() error {
	if err := a.store.Close(); err != nil {
		a.log.Error("store.close.fail", "err", err)
		return err
	}
	return nil
}
