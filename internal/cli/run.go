package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/vendo/internal/admin"
	"github.com/roach88/vendo/internal/history"
	"github.com/roach88/vendo/internal/machine"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config   string
	Database string
}

// NewRunCommand creates the run command: an interactive machine shell.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start an interactive vending machine session",
		Long: `Start a vending machine and drive it from an interactive shell.

Commands inside the shell: insert <amount>, select <item>, commit, cancel,
state, stock, history [n], admin <secret> <action...>, help, exit.

The history log lives in SQLite; pass --db for a file that survives
restarts, or leave the default for an in-memory log. Transactional state
(balance, selection, phase) never survives a restart either way.

Example:
  vendo run
  vendo run --config machine.yaml --db ./vendo.db --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMachine(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to machine config YAML (default: built-in)")
	cmd.Flags().StringVar(&opts.Database, "db", ":memory:", "path to SQLite history database")

	return cmd
}

func runMachine(opts *RunOptions, cmd *cobra.Command) error {
	logLevel := slog.LevelWarn
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))

	cfg := machine.DefaultConfig()
	if opts.Config != "" {
		var err error
		cfg, err = machine.LoadConfig(opts.Config)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load config", err)
		}
	}

	slog.Info("opening history log", "path", opts.Database)
	log, err := history.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open history log", err)
	}
	defer func() {
		if closeErr := log.Close(); closeErr != nil {
			slog.Error("error closing history log", "error", closeErr)
		}
	}()

	m, _, err := machine.NewFromConfig(cfg, log)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build machine", err)
	}
	panel := admin.New(m, cfg.AdminSecret)

	sh := newShell(m, panel, cmd.InOrStdin(), cmd.OutOrStdout(), opts.RootOptions)
	return sh.loop(cmd.Context())
}
