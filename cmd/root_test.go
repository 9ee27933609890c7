package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cartwatch/internal/observability"
	"github.com/xkilldash9x/cartwatch/internal/tasks"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(observability.ResetForTest)
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cartwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "cartwatch version "+Version+"\n", out)

	out, err = execute(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)
}

func TestTasksListing(t *testing.T) {
	path := writeConfig(t, `
logger:
  level: error
tasks:
  login_validation:
    enabled: false
  checkout_flow:
    window:
      start: "09:30"
      end: "11:00"
`)
	out, err := execute(t, "tasks", "--config", path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, len(tasks.Names)+1)
	assert.Regexp(t, `^login-validation\s+false\s+-$`, lines[3])
	assert.Regexp(t, `^checkout-flow\s+true\s+\[09:30, 11:00\)$`, lines[5])
	assert.Regexp(t, `^price-monitor\s+true\s+always$`, lines[4])
}

func TestInvalidConfigFails(t *testing.T) {
	path := writeConfig(t, "engine:\n  worker_concurrency: 0\n")
	_, err := execute(t, "tasks", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "worker_concurrency")
}

func TestMissingExplicitConfigFails(t *testing.T) {
	_, err := execute(t, "tasks", "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestFlagAndEnvPrecedence(t *testing.T) {
	path := writeConfig(t, `
engine:
  worker_concurrency: 2
  session_mode: shared
tasks:
  price_monitor:
    threshold: 50
`)
	t.Setenv("CARTWATCH_ENGINE_SESSION_MODE", "isolated")
	t.Setenv("CARTWATCH_TASKS_PRICE_MONITOR_THRESHOLD", "75")

	opts := &rootOptions{v: viper.New(), cfgFile: path}
	runCmd := newRunCmd(opts)
	require.NoError(t, runCmd.Flags().Set("concurrency", "7"))
	require.NoError(t, opts.load(runCmd))

	assert.Equal(t, 7, opts.cfg.Engine().WorkerConcurrency, "flag beats file")
	assert.Equal(t, "isolated", opts.cfg.Engine().SessionMode, "env beats file")
	assert.Equal(t, 75.0, opts.cfg.Tasks().PriceMonitor.Threshold)
	assert.True(t, opts.cfg.Browser().Headless, "unset flags keep the configured value")

	monitorOpts := &rootOptions{v: viper.New(), cfgFile: path}
	monitorCmd := newMonitorCmd(monitorOpts)
	require.NoError(t, monitorCmd.Flags().Set("threshold", "19.99"))
	require.NoError(t, monitorCmd.Flags().Set("interval", "5m"))
	require.NoError(t, monitorOpts.load(monitorCmd))
	assert.Equal(t, 19.99, monitorOpts.cfg.Tasks().PriceMonitor.Threshold)
	assert.Equal(t, 5*time.Minute, monitorOpts.cfg.Tasks().PriceMonitor.Interval)
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, []tasks.Result{
		{Name: "product-selection", Status: tasks.Passed, Message: `opened "Wooden Bookshelf"`, Duration: 1500 * time.Millisecond},
		{Name: "login-validation", Status: tasks.Skipped, Message: "outside run window"},
		{Name: "checkout-flow", Status: tasks.Failed, Message: "cart total too low"},
	})
	out := buf.String()
	assert.Contains(t, out, "TASK")
	assert.Regexp(t, `product-selection\s+passed\s+1\.5s\s+opened "Wooden Bookshelf"`, out)
	assert.Contains(t, out, "1 passed, 1 failed, 1 skipped")
}

func TestPoll(t *testing.T) {
	t.Run("once", func(t *testing.T) {
		calls := 0
		err := poll(context.Background(), 0, true, func(context.Context) error { calls++; return nil })
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("ticks until cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := poll(ctx, time.Millisecond, false, func(context.Context) error {
			calls++
			if calls == 3 {
				cancel()
			}
			return nil
		})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, calls, 3)
	})

	t.Run("check error stops", func(t *testing.T) {
		boom := errors.New("store unavailable")
		err := poll(context.Background(), time.Millisecond, false, func(context.Context) error { return boom })
		assert.ErrorIs(t, err, boom)
	})

	t.Run("non-positive interval", func(t *testing.T) {
		err := poll(context.Background(), 0, false, func(context.Context) error { return nil })
		assert.Error(t, err)
	})
}

func TestNewDepsWiresStoreAndNotifier(t *testing.T) {
	opts := &rootOptions{v: viper.New(), cfgFile: writeConfig(t, "store:\n  url: \"\"\n")}
	require.NoError(t, opts.load(newTasksCmd(opts)))

	a, err := newDeps(context.Background(), opts.cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.deps.Store)
	assert.NotNil(t, a.deps.Notifier)
	all, err := tasks.Catalogue(a.deps)
	require.NoError(t, err)
	assert.Len(t, all, len(tasks.Names))
}
