package gateway

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"skillforge/cmd/identity"
	"skillforge/cmd/internal/auth/session"
)

// Audit events go to the structured log. Secrets are never logged; emails are
// logged in normalized form.

func (g *Gateway) auditLoginFailed(ctx context.Context, email string, role identity.Role) {
	g.audit(ctx, slog.LevelWarn, "auth.login.failed",
		slog.String("identifier", identity.NormalizeEmail(email)),
		slog.String("role", role.String()),
		slog.String("reason", "invalid_credentials"),
	)
}

func (g *Gateway) auditLoginSuccess(ctx context.Context, s session.Session) {
	g.audit(ctx, slog.LevelInfo, "auth.login.success",
		slog.String("identity_id", s.IdentityID),
		slog.String("session_id", s.ID),
		slog.String("role", s.Role.String()),
	)
}

func (g *Gateway) auditSignupRejected(ctx context.Context, email string, reason string) {
	g.audit(ctx, slog.LevelWarn, "auth.signup.rejected",
		slog.String("identifier", identity.NormalizeEmail(email)),
		slog.String("reason", reason),
	)
}

func (g *Gateway) auditSignupSuccess(ctx context.Context, s session.Session, eventID string) {
	g.audit(ctx, slog.LevelInfo, "auth.signup.success",
		slog.String("identity_id", s.IdentityID),
		slog.String("session_id", s.ID),
		slog.String("role", s.Role.String()),
		slog.String("event_id", eventID),
	)
}

func (g *Gateway) auditLogout(ctx context.Context, s session.Session) {
	g.audit(ctx, slog.LevelInfo, "auth.logout",
		slog.String("identity_id", s.IdentityID),
		slog.String("session_id", s.ID),
	)
}

func (g *Gateway) auditDegraded(ctx context.Context, op string, err error) {
	g.audit(ctx, slog.LevelWarn, "auth.persistence.unavailable",
		slog.String("op", op),
		slog.String("err", err.Error()),
	)
}

func (g *Gateway) audit(ctx context.Context, level slog.Level, action string, attrs ...slog.Attr) {
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		attrs = append(attrs, slog.String("trace_id", sc.TraceID().String()))
	}
	g.log.LogAttrs(ctx, level, action, attrs...)
}
