// Package cli implements the skillforge command line: sign-in, signup and
// the admin views over the directory.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"skillforge/cmd/internal/app"
)

// Version is set at build time.
var Version = "0.1.0"

// Opener builds the runtime a command works against. storeURL overrides the
// configured store when non-empty.
type Opener func(ctx context.Context, storeURL string) (*app.App, error)

// DefaultOpener reads SKILLFORGE_* config and logs to stderr.
func DefaultOpener(ctx context.Context, storeURL string) (*app.App, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, err
	}
	if storeURL != "" {
		cfg.StoreURL = storeURL
	}
	return app.New(ctx, cfg, app.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr))
}

type runtime struct {
	open     Opener
	output   string
	storeURL string

	app *app.App
	in  *bufio.Reader
}

// NewRootCmd assembles the command tree.
func NewRootCmd(open Opener) *cobra.Command {
	if open == nil {
		open = DefaultOpener
	}
	rt := &runtime{open: open}

	root := &cobra.Command{
		Use:   "skillforge",
		Short: "SkillForge identity and registration directory",
		Long: `skillforge signs principals in and out of the SkillForge directory,
registers new accounts and shows the registration feed to admins.

State is kept in the store named by --store or SKILLFORGE_STORE_URL
(a BoltDB file under the user config directory by default).`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			switch rt.output {
			case "table", "json", "yaml":
			default:
				return fmt.Errorf("unknown output format %q (table, json, yaml)", rt.output)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&rt.output, "output", "o", "table", "Output format: table, json, yaml")
	root.PersistentFlags().StringVar(&rt.storeURL, "store", "", "Store URL (overrides SKILLFORGE_STORE_URL)")

	root.AddCommand(
		rt.loginCmd(),
		rt.signupCmd(),
		rt.logoutCmd(),
		rt.whoamiCmd(),
		rt.recentCmd(),
		rt.usersCmd(),
		rt.statsCmd(),
		rt.serveCmd(),
	)
	return root
}

// Execute runs the command tree with DefaultOpener and returns the process
// exit code.
func Execute(ctx context.Context) int {
	root := NewRootCmd(DefaultOpener)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), errorLine(err))
		return ExitCode(err)
	}
	return 0
}

// run opens the runtime for a command body and closes it whether or not the
// body fails.
func (rt *runtime) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		a, err := rt.open(cmd.Context(), rt.storeURL)
		if err != nil {
			return err
		}
		rt.app = a
		defer func() {
			if rt.app == nil {
				return
			}
			if cerr := rt.app.Close(); err == nil {
				err = cerr
			}
			rt.app = nil
		}()
		return fn(cmd, args)
	}
}

// readLine reads one line of stdin, shared across prompts of one command.
func (rt *runtime) readLine(cmd *cobra.Command, prompt string) (string, error) {
	if rt.in == nil {
		rt.in = bufio.NewReader(cmd.InOrStdin())
	}
	if f, ok := cmd.InOrStdin().(*os.File); ok && isTTY(f) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
	}
	line, err := rt.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.TrimSpace(prompt), ":"), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}

// render writes data as JSON or YAML, or hands a tabwriter to table.
func (rt *runtime) render(w io.Writer, data any, table func(tw *tabwriter.Writer)) error {
	switch rt.output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return err
		}
		return enc.Close()
	default:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		table(tw)
		return tw.Flush()
	}
}
