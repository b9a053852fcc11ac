// Package gateway is the directory's public facade: login, signup, logout and
// the recent registrations feed. Presentation code talks to nothing else.
package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"skillforge/cmd/identity"
	"skillforge/cmd/internal/auth/session"
	"skillforge/cmd/internal/ledger"
	"skillforge/cmd/security/password"
)

// DefaultLatency is the simulated round trip taken by Login and Signup.
const DefaultLatency = 500 * time.Millisecond

const tracerName = "skillforge/gateway"

// Gateway composes the directory, the ledger and the session manager.
type Gateway struct {
	dir      *identity.Directory
	ledger   *ledger.Ledger
	sessions *session.Manager

	log         *slog.Logger
	metrics     *Metrics
	tracer      trace.Tracer
	policy      password.Config
	latency     time.Duration
	recentLimit int

	// signupMu makes register + append + establish one unit.
	signupMu sync.Mutex
}

type Option func(*Gateway)

func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.log = l
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// WithLatency sets the simulated round trip. Zero disables it.
func WithLatency(d time.Duration) Option {
	return func(g *Gateway) {
		if d >= 0 {
			g.latency = d
		}
	}
}

// WithPolicy sets the secret policy applied on signup.
func WithPolicy(cfg password.Config) Option {
	return func(g *Gateway) { g.policy = cfg }
}

// WithRecentLimit changes the feed size used when callers pass limit <= 0.
func WithRecentLimit(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.recentLimit = n
		}
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(g *Gateway) {
		if tp != nil {
			g.tracer = tp.Tracer(tracerName)
		}
	}
}

// New wires a Gateway. All three components are required.
func New(dir *identity.Directory, lg *ledger.Ledger, sessions *session.Manager, opts ...Option) (*Gateway, error) {
	if dir == nil || lg == nil || sessions == nil {
		return nil, identity.OpError{Op: "gateway.New", Kind: identity.ErrInvalidInput, Msg: "missing component"}
	}

	g := &Gateway{
		dir:         dir,
		ledger:      lg,
		sessions:    sessions,
		log:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:      otel.Tracer(tracerName),
		policy:      password.DefaultConfig(),
		latency:     DefaultLatency,
		recentLimit: ledger.DefaultRecentLimit,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	g.metrics.sizes(dir.Len(), lg.Len())
	return g, nil
}

// begin checks for cancellation and detaches ctx from it: once an operation
// has started it runs to completion.
func (g *Gateway) begin(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, error) {
	if err := ctx.Err(); err != nil {
		return ctx, nil, err
	}
	ctx, span := g.tracer.Start(context.WithoutCancel(ctx), name, trace.WithAttributes(attrs...))
	return ctx, span, nil
}

func (g *Gateway) pause() {
	if g.latency <= 0 {
		return
	}
	t := time.NewTimer(g.latency)
	defer t.Stop()
	<-t.C
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, resultOf(err))
	}
	span.End()
}

// Login authenticates (email, secret, role). Role selects which credential
// is checked: the right secret under another role fails with
// ErrInvalidCredentials. A session returned alongside an error wrapping
// ErrPersistenceUnavailable is active but will not survive a restart.
func (g *Gateway) Login(ctx context.Context, email, secret string, role identity.Role) (session.Session, error) {
	const op = "gateway.Login"

	start := time.Now()
	defer g.metrics.observe("login", start)

	ctx, span, err := g.begin(ctx, op, attribute.String("role", role.String()))
	if err != nil {
		g.metrics.login("canceled")
		return session.Session{}, err
	}
	var opErr error
	defer func() { finish(span, opErr) }()

	g.pause()

	id, ok := g.dir.Verify(ctx, email, secret, role)
	if !ok {
		opErr = identity.OpError{Op: op, Kind: identity.ErrInvalidCredentials}
		g.auditLoginFailed(ctx, email, role)
		g.metrics.login(resultOf(opErr))
		return session.Session{}, opErr
	}

	s, err := g.sessions.Establish(ctx, id)
	if err != nil && !identity.IsPersistenceUnavailable(err) {
		opErr = err
		g.log.Error("auth.login.establish.fail", "err", err)
		g.metrics.login(resultOf(err))
		return session.Session{}, err
	}
	if err != nil {
		g.auditDegraded(ctx, op, err)
	}

	g.auditLoginSuccess(ctx, s)
	g.metrics.login(resultOf(err))
	return s, err
}

// Logout always signs out in memory. The only error is
// ErrPersistenceUnavailable when the durable session could not be removed.
func (g *Gateway) Logout(ctx context.Context) error {
	const op = "gateway.Logout"

	defer g.metrics.observe("logout", time.Now())

	// Not cancellable, even at entry.
	ctx, span := g.tracer.Start(context.WithoutCancel(ctx), op)
	prev, _ := g.sessions.Current(ctx)

	err := g.sessions.Clear(ctx)
	finish(span, err)

	g.metrics.logout()
	if prev.ID != "" {
		g.auditLogout(ctx, prev)
	}
	if err != nil {
		g.auditDegraded(ctx, op, err)
	}
	return err
}

// Current returns the active session and the identity behind it. A stored
// session whose identity is no longer known is dropped.
func (g *Gateway) Current(ctx context.Context) (session.Session, identity.Identity, error) {
	s, err := g.sessions.Current(ctx)
	if err != nil {
		return session.Session{}, identity.Identity{}, err
	}
	id, ok := g.dir.FindByID(s.IdentityID)
	if !ok || id.Role != s.Role {
		g.log.Warn("auth.session.orphaned", "session_id", s.ID, "identity_id", s.IdentityID)
		if err := g.sessions.Clear(ctx); err != nil {
			g.auditDegraded(ctx, "gateway.Current", err)
		}
		return session.Session{}, identity.Identity{}, session.ErrNoSession
	}
	return s, id, nil
}

// RecentRegistrations returns the newest signups first. limit <= 0 means the
// configured default.
func (g *Gateway) RecentRegistrations(limit int) []ledger.Event {
	if limit <= 0 {
		limit = g.recentLimit
	}
	return g.ledger.Recent(limit)
}

// RecentRegistrationsByRole is RecentRegistrations for a single role.
func (g *Gateway) RecentRegistrationsByRole(role identity.Role, limit int) []ledger.Event {
	if limit <= 0 {
		limit = g.recentLimit
	}
	return g.ledger.RecentByRole(role, limit)
}

// RegistrationCounts reports signups per role since the ledger began.
func (g *Gateway) RegistrationCounts() map[identity.Role]int { return g.ledger.CountByRole() }

// Identity looks an identity up by id.
func (g *Gateway) Identity(id string) (identity.Identity, error) { return g.dir.Get(id) }

// LookupEmail is the management lookup; it does not authenticate.
func (g *Gateway) LookupEmail(email string) (identity.Identity, bool) { return g.dir.FindByEmail(email) }

// Identities lists identities for management tables.
func (g *Gateway) Identities(f identity.ListFilter) []identity.Identity { return g.dir.List(f) }

func resultOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, identity.ErrPersistenceUnavailable):
		return "degraded"
	case errors.Is(err, identity.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, identity.ErrEmailAlreadyRegistered):
		return "email_already_registered"
	case errors.Is(err, identity.ErrMissingFields):
		return "missing_fields"
	case errors.Is(err, identity.ErrSecretMismatch):
		return "secret_mismatch"
	case errors.Is(err, identity.ErrWeakSecret):
		return "weak_secret"
	case errors.Is(err, identity.ErrInvalidInput):
		return "invalid_input"
	default:
		return "error"
	}
}
