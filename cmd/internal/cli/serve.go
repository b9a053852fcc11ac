package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func (rt *runtime) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve health, readiness and metrics endpoints",
		Long: `Serve /healthz, /readyz and /metrics on SKILLFORGE_OPS_ADDR until
interrupted.`,
		Args: cobra.NoArgs,
	}
	cmd.RunE = rt.run(func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return rt.app.Serve(ctx)
	})
	return cmd
}
