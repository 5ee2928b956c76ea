package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/vendo/internal/harness"
)

// NewPlayCommand creates the play command: run a scenario file and report
// whether its expectations and assertions held.
func NewPlayCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play <scenario.yaml>",
		Short: "Run a YAML scenario against a fresh machine",
		Long: `Run a scenario file against a fresh machine and verify its
expectations and assertions.

Exit codes: 0 when the scenario passes, 1 when it fails, 2 for bad
paths or malformed scenario files.

Example:
  vendo play scenarios/exact_purchase.yaml
  vendo play scenarios/depletion.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(rootOpts, cmd, args[0])
		},
	}

	return cmd
}

func runScenario(opts *RootOptions, cmd *cobra.Command, path string) error {
	out := cmd.OutOrStdout()
	formatter := &OutputFormatter{Format: opts.Format, Writer: out}

	sc, err := harness.Load(path)
	if err != nil {
		_ = formatter.Error(err.Error())
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	result, err := harness.Run(sc)
	if err != nil {
		_ = formatter.Error(err.Error())
		return WrapExitError(ExitCommandError, "failed to run scenario", err)
	}

	if opts.Format == "json" {
		if err := json.NewEncoder(out).Encode(result); err != nil {
			return WrapExitError(ExitFailure, "failed to encode result", err)
		}
	} else {
		printResult(cmd, sc, result, opts.Verbose)
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %q failed", sc.Name))
	}
	return nil
}

func printResult(cmd *cobra.Command, sc *harness.Scenario, result *harness.Result, verbose bool) {
	out := cmd.OutOrStdout()

	status := "PASS"
	if !result.Pass {
		status = "FAIL"
	}
	fmt.Fprintf(out, "%s  %s (%d steps)\n", status, sc.Name, len(result.Trace))

	if verbose {
		for _, ev := range result.Trace {
			line := fmt.Sprintf("  %2d %-8s", ev.Seq, ev.Op)
			if ev.Denomination > 0 {
				line += fmt.Sprintf(" %d", ev.Denomination)
			}
			if ev.Item != "" {
				line += " " + ev.Item
			}
			line += fmt.Sprintf("  -> %s (balance=%d phase=%s)", ev.Outcome, ev.Balance, ev.Phase)
			fmt.Fprintln(out, line)
		}
	}

	for _, msg := range result.Errors {
		fmt.Fprintf(out, "  error: %s\n", msg)
	}
}
