// Command execution for CLI commands.
//
// Information Hiding:
// - Component setup hidden behind setup()
// - Output formatting hidden
// - Exit status mapping hidden

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/richinex/firemaker/agent"
	"github.com/richinex/firemaker/storage"
)

// RunOptions controls one controller run.
type RunOptions struct {
	// Test caps the run to one fire.
	Test bool
	// NumFires is the number of fires to make. Zero keeps going until the fuel runs out.
	NumFires      int
	RefreshWindow bool
}

// ErrJournalMissing is returned by History when no journal database exists.
var ErrJournalMissing = errors.New("no run journal found")

// Run executes the firemaking controller and returns the process exit code.
func Run(ctx context.Context, opts Options, ro RunOptions) (int, error) {
	if ro.NumFires < 0 {
		return 1, fmt.Errorf("--num-fires must not be negative, got %d", ro.NumFires)
	}

	a, err := setup(opts)
	if err != nil {
		return 1, err
	}
	defer a.Close()

	b := agent.NewBuilder(a.library, a.locator).
		Config(a.agentConfig()).
		RefreshWindow(ro.RefreshWindow).
		RunID(a.runID).
		Logger(a.logger)
	if ro.Test {
		b = b.TestMode()
	} else {
		b = b.Target(ro.NumFires)
	}
	if a.settings.Journal.Enabled {
		b = b.Journal(a.journal)
	}
	controller, err := b.Build()
	if err != nil {
		return 1, err
	}

	target := "until out of fuel"
	if n := controller.Config().Target; n > 0 {
		target = fmt.Sprintf("%d fire(s)", n)
	}
	fmt.Fprintf(a.out, "Running firemaker with %s (%s), %s...\n\n",
		a.settings.VLM.Provider, a.settings.VLM.Model, target)

	res := controller.Run(ctx)
	printResult(a.out, res, opts.Verbose)
	return res.ExitCode(), nil
}

// Check verifies the window, capture and vision pipeline without clicking.
// It returns 0 when every step passed.
func Check(ctx context.Context, opts Options, refresh bool) (int, error) {
	a, err := setup(opts)
	if err != nil {
		return 1, err
	}
	defer a.Close()

	rect, err := a.locator.Resolve(ctx, refresh)
	if !report(a.out, "window", err, rect.String()) {
		return 1, nil
	}

	frame, err := a.library.CaptureFrame(ctx)
	detail := ""
	if err == nil {
		detail = fmt.Sprintf("%d bytes", len(frame.Image))
	}
	if !report(a.out, "capture", err, detail) {
		return 1, nil
	}

	start := time.Now()
	description, err := a.library.Describe(ctx, frame)
	detail = fmt.Sprintf("%s/%s in %s", a.settings.VLM.Provider, a.settings.VLM.Model, time.Since(start).Round(time.Millisecond))
	if !report(a.out, "vision", err, detail) {
		return 1, nil
	}
	fmt.Fprintf(a.out, "\n%s\n", strings.TrimSpace(description))
	return 0, nil
}

// History prints recent runs, or the transitions of one run.
func History(ctx context.Context, opts Options, limit int, runID string) error {
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()

	// The database may be open only as the window store.
	if !a.settings.Journal.Enabled || a.journal == nil {
		return fmt.Errorf("%w: enable journal.enabled in the configuration", ErrJournalMissing)
	}
	if runID != "" {
		transitions, err := a.journal.Transitions(ctx, runID)
		if err != nil {
			return err
		}
		if len(transitions) == 0 {
			return fmt.Errorf("run %s not found", runID)
		}
		printTransitions(a.out, transitions)
		return nil
	}

	runs, err := a.journal.RecentRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(a.out, "No runs recorded.")
		return nil
	}
	printRuns(a.out, runs)
	return nil
}

func report(w io.Writer, step string, err error, detail string) bool {
	if err != nil {
		fmt.Fprintf(w, "FAIL  %-8s %v\n", step, err)
		return false
	}
	fmt.Fprintf(w, "PASS  %-8s %s\n", step, detail)
	return true
}

func printResult(w io.Writer, res agent.Result, verbose bool) {
	if verbose {
		printTrace(w, res.Trace)
	}
	fmt.Fprintf(w, "Outcome:    %s\n", res.Outcome)
	fmt.Fprintf(w, "Fires made: %d\n", res.FiresMade)
	fmt.Fprintf(w, "Detail:     %s\n", res.Detail)
	if res.Err != nil {
		fmt.Fprintf(w, "Error:      %v\n", res.Err)
	}
	fmt.Fprintf(w, "Duration:   %s\n", res.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Run ID:     %s\n", res.RunID)
}

func printTrace(w io.Writer, trace []agent.Transition) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FROM\tTO\tFIRES\tFAILURES\tREASON")
	for _, t := range trace {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", t.From, t.To, t.FiresMade, t.ConsecutiveFailures, truncateString(t.Reason, 60))
	}
	tw.Flush()
	fmt.Fprintln(w)
}

func printRuns(w io.Writer, runs []storage.RunRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tTARGET\tFIRES\tOUTCOME\tDETAIL")
	for _, r := range runs {
		outcome := r.Outcome
		if outcome == "" {
			outcome = "running"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), r.Target, r.FiresMade, outcome, truncateString(r.Detail, 50))
	}
	tw.Flush()
}

func printTransitions(w io.Writer, transitions []storage.TransitionRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tAT\tFROM\tTO\tFIRES\tFAILURES\tREASON")
	for _, t := range transitions {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d\t%s\n",
			t.Seq, t.At.Local().Format("15:04:05.000"), t.From, t.To, t.FiresMade, t.ConsecutiveFailures, t.Reason)
	}
	tw.Flush()
}

func truncateString(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
