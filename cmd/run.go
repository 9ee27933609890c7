package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cartwatch/internal/observability"
	"github.com/xkilldash9x/cartwatch/internal/tasks"
)

func newRunCmd(o *rootOptions) *cobra.Command {
	var names []string

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the enabled purchase-flow tasks once",
		Long: `Run executes every enabled task whose time window is open, each against
its own or a shared browser session, and prints one line per task.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := o.cfg
			logger := observability.GetLogger()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer a.Close()

			all, err := tasks.Catalogue(a.deps)
			if err != nil {
				return err
			}
			selected, err := tasks.Select(all, names)
			if err != nil {
				return err
			}
			if len(selected) == 0 {
				return fmt.Errorf("no tasks are enabled")
			}

			eng, err := a.engine(cfg.Engine().SessionMode)
			if err != nil {
				return fmt.Errorf("failed to initialize task engine: %w", err)
			}

			var results []tasks.Result
			err = a.serve(ctx, func(ctx context.Context) error {
				var runErr error
				results, runErr = eng.Run(ctx, selected)
				return runErr
			})
			if err != nil {
				return err
			}

			printSummary(cmd.OutOrStdout(), results)
			if failed := countStatus(results, tasks.Failed); failed > 0 {
				logger.Warn("Run finished with failures.", zap.Int("failed", failed), zap.Int("total", len(results)))
				return fmt.Errorf("%d of %d tasks failed", failed, len(results))
			}
			return ctx.Err()
		},
	}

	f := runCmd.Flags()
	f.StringSliceVarP(&names, "task", "t", nil, "run only these tasks (repeatable)")
	f.IntP("concurrency", "j", 0, "number of concurrent task workers")
	f.String("session-mode", "", "browser session mode: shared or isolated")
	f.Duration("task-timeout", 0, "deadline for a single task")
	f.Bool("headless", true, "run Chrome without a window")
	f.String("metrics-addr", "", "listen address for /metrics and /healthz")
	bindFlag(runCmd, "concurrency", "engine.worker_concurrency")
	bindFlag(runCmd, "session-mode", "engine.session_mode")
	bindFlag(runCmd, "task-timeout", "engine.task_timeout")
	bindFlag(runCmd, "headless", "browser.headless")
	bindFlag(runCmd, "metrics-addr", "metrics.listen_addr")
	return runCmd
}

func countStatus(results []tasks.Result, s tasks.Status) int {
	n := 0
	for _, r := range results {
		if r.Status == s {
			n++
		}
	}
	return n
}

// printSummary writes one aligned row per result and a totals line.
func printSummary(w io.Writer, results []tasks.Result) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK\tSTATUS\tDURATION\tDETAIL")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Name, r.Status, r.Duration.Round(time.Millisecond), r.Message)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\n%d passed, %d failed, %d skipped\n",
		countStatus(results, tasks.Passed), countStatus(results, tasks.Failed), countStatus(results, tasks.Skipped))
}
