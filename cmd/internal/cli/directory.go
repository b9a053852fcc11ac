package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"skillforge/cmd/identity"
	"skillforge/cmd/internal/ledger"
)

func (rt *runtime) recentCmd() *cobra.Command {
	var limit int
	var role string

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Show the newest registrations (admin)",
		Long: `Show the newest registrations, newest first.

Examples:
  skillforge recent
  skillforge recent -n 10 --role teacher -o json`,
		Args: cobra.NoArgs,
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Number of events (default from SKILLFORGE_RECENT_LIMIT)")
	cmd.Flags().StringVar(&role, "role", "", "Only this role")

	cmd.RunE = rt.run(func(cmd *cobra.Command, _ []string) error {
		if _, err := rt.requireAdmin(cmd); err != nil {
			return err
		}

		g := rt.app.Gateway()
		var events []ledger.Event
		if role != "" {
			r, err := identity.ParseRole(role)
			if err != nil {
				return err
			}
			events = g.RecentRegistrationsByRole(r, limit)
		} else {
			events = g.RecentRegistrations(limit)
		}

		return rt.render(cmd.OutOrStdout(), events, func(tw *tabwriter.Writer) {
			if len(events) == 0 {
				fmt.Fprintln(tw, dimFmt("No registrations yet."))
				return
			}
			fmt.Fprintln(tw, "#\tNAME\tEMAIL\tROLE\tWHEN")
			for _, ev := range events {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", ev.Seq, ev.DisplayName, ev.Email, ev.Role, humanize.Time(ev.OccurredAt))
			}
		})
	})
	return cmd
}

func (rt *runtime) usersCmd() *cobra.Command {
	var role, search string

	cmd := &cobra.Command{
		Use:   "users",
		Short: "List identities (admin)",
		Long: `List identities, seeded and registered, ordered by creation.

Examples:
  skillforge users --role teacher
  skillforge users --search johnson -o yaml`,
		Args: cobra.NoArgs,
	}
	cmd.Flags().StringVar(&role, "role", "", "Only this role")
	cmd.Flags().StringVar(&search, "search", "", "Case-insensitive match on name or email")

	cmd.RunE = rt.run(func(cmd *cobra.Command, _ []string) error {
		if _, err := rt.requireAdmin(cmd); err != nil {
			return err
		}

		f := identity.ListFilter{Search: search}
		if role != "" {
			r, err := identity.ParseRole(role)
			if err != nil {
				return err
			}
			f.Role = r
		}
		ids := rt.app.Gateway().Identities(f)

		return rt.render(cmd.OutOrStdout(), ids, func(tw *tabwriter.Writer) {
			if len(ids) == 0 {
				fmt.Fprintln(tw, dimFmt("No matching identities."))
				return
			}
			fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tROLE")
			for _, id := range ids {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", id.ID, id.DisplayName, id.Email, id.Role)
			}
		})
	})
	return cmd
}

// StatsOutput is the JSON/YAML shape of the stats command.
type StatsOutput struct {
	Identities    int                   `json:"identities" yaml:"identities"`
	Registrations map[identity.Role]int `json:"registrations" yaml:"registrations"`
	Backend       string                `json:"backend" yaml:"backend"`
	Degraded      bool                  `json:"degraded" yaml:"degraded"`
}

func (rt *runtime) statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show directory totals (admin)",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = rt.run(func(cmd *cobra.Command, _ []string) error {
		if _, err := rt.requireAdmin(cmd); err != nil {
			return err
		}

		g := rt.app.Gateway()
		degraded, _ := rt.app.Degraded()
		out := StatsOutput{
			Identities:    len(g.Identities(identity.ListFilter{})),
			Registrations: g.RegistrationCounts(),
			Backend:       rt.app.Backend(),
			Degraded:      degraded,
		}

		return rt.render(cmd.OutOrStdout(), out, func(tw *tabwriter.Writer) {
			fmt.Fprintf(tw, "Identities:\t%s\n", humanize.Comma(int64(out.Identities)))
			for _, r := range identity.Roles() {
				fmt.Fprintf(tw, "Signups (%s):\t%s\n", r, humanize.Comma(int64(out.Registrations[r])))
			}
			fmt.Fprintf(tw, "Backend:\t%s\n", out.Backend)
			if out.Degraded {
				fmt.Fprintf(tw, "Storage:\t%s\n", warnFmt("degraded (memory only)"))
			}
		})
	})
	return cmd
}
