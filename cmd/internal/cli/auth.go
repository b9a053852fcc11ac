package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"skillforge/cmd/identity"
	"skillforge/cmd/internal/auth/gateway"
	"skillforge/cmd/internal/auth/session"
)

var (
	okFmt   = color.New(color.FgGreen).SprintFunc()
	warnFmt = color.New(color.FgYellow).SprintFunc()
	dimFmt  = color.New(color.Faint).SprintFunc()
)

// SessionOutput is the JSON/YAML shape of a signed-in session.
type SessionOutput struct {
	SessionID string        `json:"session_id" yaml:"session_id"`
	ID        string        `json:"identity_id" yaml:"identity_id"`
	Name      string        `json:"name" yaml:"name"`
	Email     string        `json:"email" yaml:"email"`
	Role      identity.Role `json:"role" yaml:"role"`
	Dashboard string        `json:"dashboard" yaml:"dashboard"`
	IssuedAt  time.Time     `json:"issued_at" yaml:"issued_at"`
	Durable   bool          `json:"durable" yaml:"durable"`
}

func sessionOutput(s session.Session, id identity.Identity, durable bool) SessionOutput {
	return SessionOutput{
		SessionID: s.ID,
		ID:        id.ID,
		Name:      id.DisplayName,
		Email:     id.Email,
		Role:      s.Role,
		Dashboard: s.Role.Dashboard(),
		IssuedAt:  s.IssuedAt,
		Durable:   durable,
	}
}

func (rt *runtime) printSession(w io.Writer, out SessionOutput, headline string) error {
	return rt.render(w, out, func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, okFmt(headline))
		fmt.Fprintf(tw, "Name:\t%s\n", out.Name)
		fmt.Fprintf(tw, "Email:\t%s\n", out.Email)
		fmt.Fprintf(tw, "Role:\t%s\n", out.Role)
		fmt.Fprintf(tw, "Signed in:\t%s\n", humanize.Time(out.IssuedAt))
		fmt.Fprintf(tw, "Dashboard:\t%s\n", out.Dashboard)
		if !out.Durable {
			fmt.Fprintln(tw, warnFmt("Storage is unavailable: this session will not survive a restart."))
		}
	})
}

func (rt *runtime) loginCmd() *cobra.Command {
	var email, secret, role string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in as an admin, teacher or student",
		Long: `Sign in with email, secret and role. The role is part of the credential:
the right secret under the wrong role is rejected.

The secret is read from stdin when --secret is omitted.

Examples:
  skillforge login --email admin@skillforge.com --role admin
  echo teacher123 | skillforge login --email teacher@skillforge.com --role teacher -o json`,
		Args: cobra.NoArgs,
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&secret, "secret", "", "Account secret (read from stdin if omitted)")
	cmd.Flags().StringVar(&role, "role", "", "Role: admin, teacher or student")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("role")

	cmd.RunE = rt.run(func(cmd *cobra.Command, _ []string) error {
		r, err := identity.ParseRole(role)
		if err != nil {
			return err
		}
		if secret == "" {
			if secret, err = rt.readLine(cmd, "Secret: "); err != nil {
				return err
			}
		}

		g := rt.app.Gateway()
		s, err := g.Login(cmd.Context(), email, secret, r)
		durable := err == nil
		if err != nil && !identity.IsPersistenceUnavailable(err) {
			return err
		}
		id, lerr := g.Identity(s.IdentityID)
		if lerr != nil {
			return lerr
		}
		return rt.printSession(cmd.OutOrStdout(), sessionOutput(s, id, durable), "Signed in.")
	})
	return cmd
}

func (rt *runtime) signupCmd() *cobra.Command {
	var in gateway.SignupInput
	var role string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Register a new account and sign in",
		Long: `Register a new account. The secret and its confirmation are read from
stdin, one per line, when --secret and --confirm are omitted.

Examples:
  skillforge signup --name "Ada Lovelace" --email ada@example.com --role student
  printf 'engine42\nengine42\n' | skillforge signup --name Ada --email ada@example.com --role teacher`,
		Args: cobra.NoArgs,
	}
	cmd.Flags().StringVar(&in.DisplayName, "name", "", "Display name")
	cmd.Flags().StringVar(&in.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&role, "role", "", "Role: admin, teacher or student")
	cmd.Flags().StringVar(&in.Secret, "secret", "", "Secret (read from stdin if omitted)")
	cmd.Flags().StringVar(&in.ConfirmSecret, "confirm", "", "Secret confirmation (read from stdin if omitted)")

	cmd.RunE = rt.run(func(cmd *cobra.Command, _ []string) error {
		var err error
		in.Role = identity.Role(role)
		if in.Secret == "" {
			if in.Secret, err = rt.readLine(cmd, "Secret: "); err != nil {
				return err
			}
		}
		if in.ConfirmSecret == "" {
			if in.ConfirmSecret, err = rt.readLine(cmd, "Confirm secret: "); err != nil {
				return err
			}
		}

		g := rt.app.Gateway()
		s, err := g.Signup(cmd.Context(), in)
		durable := err == nil
		if err != nil && !identity.IsPersistenceUnavailable(err) {
			return err
		}
		id, lerr := g.Identity(s.IdentityID)
		if lerr != nil {
			return lerr
		}
		return rt.printSession(cmd.OutOrStdout(), sessionOutput(s, id, durable), "Account created.")
	})
	return cmd
}

func (rt *runtime) logoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Sign out",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = rt.run(func(cmd *cobra.Command, _ []string) error {
		if err := rt.app.Gateway().Logout(cmd.Context()); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), warnFmt("Signed out, but the stored session could not be removed."))
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), okFmt("Signed out."))
		return nil
	})
	return cmd
}

func (rt *runtime) whoamiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in identity",
		Long: `Show the signed-in identity. Exits non-zero when nobody is signed in.

Examples:
  skillforge whoami
  skillforge whoami -o yaml`,
		Args: cobra.NoArgs,
	}
	cmd.RunE = rt.run(func(cmd *cobra.Command, _ []string) error {
		s, id, err := rt.app.Gateway().Current(cmd.Context())
		if err != nil {
			return err
		}
		degraded, _ := rt.app.Degraded()
		return rt.printSession(cmd.OutOrStdout(), sessionOutput(s, id, !degraded), "Signed in as "+id.DisplayName+".")
	})
	return cmd
}

// requireAdmin returns the active session if it belongs to an admin.
func (rt *runtime) requireAdmin(cmd *cobra.Command) (session.Session, error) {
	s, _, err := rt.app.Gateway().Current(cmd.Context())
	if err != nil {
		return session.Session{}, err
	}
	if s.Role != identity.RoleAdmin {
		return session.Session{}, ErrForbidden
	}
	return s, nil
}

// ErrForbidden is returned by admin views for non-admin sessions.
var ErrForbidden = errors.New("admin role required")
