// Package main provides the firemaker CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/richinex/firemaker/cli"
)

var (
	// Global flags
	configFile string
	provider   string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "firemaker",
		Short: "Vision-guided firemaking agent for Old School RuneScape",
		Long: `A CLI tool that plays the firemaking loop through a vision model.

Each cycle screenshots the game window, asks the model where the tinderbox
and logs are, uses one on the other with human-like mouse movement and asks
the model whether a fire was lit.

Commands:
- run:     make fires until the target is reached or the logs run out
- check:   verify window, capture and vision model without clicking
- history: list past runs from the run journal`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default ./firemaker.yaml or ~/.config/firemaker/firemaker.yaml)")
	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "Vision provider (anthropic, openai, gemini, local)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging and the full transition trace")

	// Add commands
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(historyCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		var code exitCode
		if errors.As(err, &code) {
			os.Exit(int(code))
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// exitCode carries a non-zero status out of a command that already reported
// its result.
type exitCode int

func (e exitCode) Error() string {
	return fmt.Sprintf("exit status %d", int(e))
}

func options() cli.Options {
	return cli.Options{
		ConfigFile: configFile,
		Provider:   provider,
		Verbose:    verbose,
	}
}

func status(code int, err error) error {
	if err != nil {
		return err
	}
	if code != 0 {
		return exitCode(code)
	}
	return nil
}

func runCmd() *cobra.Command {
	var test bool
	var numFires int
	var refresh bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Make fires until the target is reached or the logs run out",
		Long: `Run the firemaking controller.

Without --num-fires the controller keeps going until the model reports the
logs are gone. Ctrl-C stops at the next state boundary; a click that has
started always completes.

Exit status is 0 when the run finished, 1 when it aborted and 130 when it
was interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ro := cli.RunOptions{
				Test:          test,
				NumFires:      numFires,
				RefreshWindow: refresh,
			}
			return status(cli.Run(cmd.Context(), options(), ro))
		},
	}

	cmd.Flags().BoolVar(&test, "test", false, "Make a single fire and stop")
	cmd.Flags().IntVarP(&numFires, "num-fires", "n", 0, "Number of fires to make (0 = until out of logs)")
	cmd.Flags().BoolVar(&refresh, "refresh-window", false, "Ignore the stored window position and search again")

	return cmd
}

func checkCmd() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify window, capture and vision model without clicking",
		Long: `Resolve the game window, take one screenshot and ask the vision model to
describe it. Each step prints PASS or FAIL; the first failure stops the check.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return status(cli.Check(cmd.Context(), options(), refresh))
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh-window", false, "Ignore the stored window position and search again")

	return cmd
}

func historyCmd() *cobra.Command {
	var limit int
	var runID string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past runs from the run journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.History(cmd.Context(), options(), limit, runID)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Number of runs to list")
	cmd.Flags().StringVar(&runID, "run", "", "Show the transitions of one run")

	return cmd
}
