package gateway

import (
	"context"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"go.opentelemetry.io/otel/attribute"

	"skillforge/cmd/identity"
	"skillforge/cmd/internal/auth/session"
	"skillforge/cmd/internal/ledger"
	"skillforge/cmd/security/password"
)

// SignupInput is the signup form.
type SignupInput struct {
	DisplayName   string
	Email         string
	Secret        string
	ConfirmSecret string
	Role          identity.Role
}

// Validate applies the form checks in order, each one short-circuiting the
// rest: missing fields, secret mismatch, then secret strength.
func (in SignupInput) Validate(policy password.Config) error {
	const op = "gateway.Signup"

	in.DisplayName = strings.TrimSpace(in.DisplayName)
	in.Email = strings.TrimSpace(in.Email)

	err := validation.ValidateStruct(&in,
		validation.Field(&in.DisplayName, validation.Required),
		validation.Field(&in.Email, validation.Required),
		validation.Field(&in.Secret, validation.Required),
		validation.Field(&in.ConfirmSecret, validation.Required),
		validation.Field(&in.Role, validation.Required),
	)
	if err != nil {
		return identity.OpError{Op: op, Kind: identity.ErrMissingFields, Msg: err.Error()}
	}

	if err := validation.Validate(in.ConfirmSecret, validation.By(equals(in.Secret))); err != nil {
		return identity.OpError{Op: op, Kind: identity.ErrSecretMismatch}
	}

	switch err := policy.Validate(in.Secret); {
	case err == nil:
	case errors.Is(err, password.ErrPasswordTooShort), errors.Is(err, password.ErrWeakPassword):
		return identity.OpError{Op: op, Kind: identity.ErrWeakSecret, Msg: err.Error()}
	default:
		return identity.OpError{Op: op, Kind: identity.ErrInvalidInput, Msg: err.Error()}
	}

	if !in.Role.Valid() {
		return identity.OpError{Op: op, Kind: identity.ErrInvalidInput, Msg: "unknown role"}
	}
	return nil
}

func equals(want string) validation.RuleFunc {
	return func(value interface{}) error {
		if s, _ := value.(string); s != want {
			return errors.New("values must match")
		}
		return nil
	}
}

// Signup validates the form, registers the identity, records the signup in
// the ledger and signs the new identity in.
//
// Concurrent signups for the same email yield one success; the others fail
// with ErrEmailAlreadyRegistered. If persistence fails after the identity is
// registered, the session is still returned together with an error wrapping
// ErrPersistenceUnavailable.
func (g *Gateway) Signup(ctx context.Context, in SignupInput) (session.Session, error) {
	const op = "gateway.Signup"

	start := time.Now()
	defer g.metrics.observe("signup", start)

	if err := in.Validate(g.policy); err != nil {
		g.auditSignupRejected(ctx, in.Email, resultOf(err))
		g.metrics.signup(resultOf(err))
		return session.Session{}, err
	}

	ctx, span, err := g.begin(ctx, op, attribute.String("role", in.Role.String()))
	if err != nil {
		g.metrics.signup(resultOf(err))
		return session.Session{}, err
	}
	var opErr error
	defer func() { finish(span, opErr) }()

	g.pause()

	s, eventID, degraded, err := g.signupLocked(ctx, in)
	if err != nil {
		opErr = err
		g.auditSignupRejected(ctx, in.Email, resultOf(err))
		g.metrics.signup(resultOf(err))
		return session.Session{}, err
	}
	if degraded != nil {
		g.auditDegraded(ctx, op, degraded)
	}

	g.auditSignupSuccess(ctx, s, eventID)
	g.metrics.signup(resultOf(degraded))
	g.metrics.sizes(g.dir.Len(), g.ledger.Len())
	return s, degraded
}

// signupLocked runs the write path under signupMu. degraded carries the first
// persistence failure; err is anything that stopped the signup.
func (g *Gateway) signupLocked(ctx context.Context, in SignupInput) (s session.Session, eventID string, degraded error, err error) {
	g.signupMu.Lock()
	defer g.signupMu.Unlock()

	keep := func(e error) error {
		if e != nil && identity.IsPersistenceUnavailable(e) {
			if degraded == nil {
				degraded = e
			}
			return nil
		}
		return e
	}

	id, err := g.dir.Register(ctx, identity.RegisterInput{
		DisplayName: in.DisplayName,
		Email:       in.Email,
		Role:        in.Role,
		Secret:      in.Secret,
	})
	if err = keep(err); err != nil {
		return session.Session{}, "", nil, err
	}

	ev, err := g.ledger.Append(ctx, ledger.FromIdentity(id))
	if err = keep(err); err != nil {
		return session.Session{}, "", nil, err
	}

	s, err = g.sessions.Establish(ctx, id)
	if err = keep(err); err != nil {
		return session.Session{}, "", nil, err
	}
	return s, ev.ID, degraded, nil
}
