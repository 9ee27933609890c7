package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cartwatch/internal/engine"
	"github.com/xkilldash9x/cartwatch/internal/observability"
	"github.com/xkilldash9x/cartwatch/internal/tasks"
)

func newMonitorCmd(o *rootOptions) *cobra.Command {
	var once bool

	monitorCmd := &cobra.Command{
		Use:   "monitor",
		Short: "Poll one product price and alert when it drops below the threshold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := o.cfg
			logger := observability.GetLogger()
			mc := cfg.Tasks().PriceMonitor
			if mc.URL == "" {
				return fmt.Errorf("no product url configured (--url or tasks.price_monitor.url)")
			}

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer a.Close()

			monitor, err := tasks.NewPriceMonitor(a.deps, mc)
			if err != nil {
				return err
			}
			eng, err := a.engine(engine.ModeShared)
			if err != nil {
				return err
			}

			logger.Info("Monitoring price.",
				zap.String("url", mc.URL),
				zap.Float64("threshold", mc.Threshold),
				zap.Duration("interval", mc.Interval),
			)
			return a.serve(ctx, func(ctx context.Context) error {
				return poll(ctx, mc.Interval, once, func(ctx context.Context) error {
					results, err := eng.Run(ctx, []tasks.Task{monitor})
					if err != nil {
						return err
					}
					report(cmd.OutOrStdout(), results[0])
					if once && results[0].Status == tasks.Failed {
						return results[0].Err
					}
					return nil
				})
			})
		},
	}

	f := monitorCmd.Flags()
	f.String("url", "", "product page to watch")
	f.Float64("threshold", 0, "alert when the price is at or below this value")
	f.Duration("interval", 0, "time between checks")
	f.BoolVar(&once, "once", false, "check a single time and exit")
	f.Bool("headless", true, "run Chrome without a window")
	bindFlag(monitorCmd, "url", "tasks.price_monitor.url")
	bindFlag(monitorCmd, "threshold", "tasks.price_monitor.threshold")
	bindFlag(monitorCmd, "interval", "tasks.price_monitor.interval")
	bindFlag(monitorCmd, "headless", "browser.headless")
	return monitorCmd
}

// poll calls check immediately and then on every tick until ctx ends. A
// failing check does not stop the loop unless once is set.
func poll(ctx context.Context, interval time.Duration, once bool, check func(context.Context) error) error {
	if err := check(ctx); err != nil || once {
		return err
	}
	if interval <= 0 {
		return fmt.Errorf("monitor interval must be positive, got %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := check(ctx); err != nil {
				return err
			}
		}
	}
}

func report(w io.Writer, r tasks.Result) {
	fmt.Fprintf(w, "%s  %-7s  %s\n", time.Now().Format("2006-01-02 15:04:05"), r.Status, r.Message)
}
