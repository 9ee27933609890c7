// Package engine dispatches purchase-flow tasks to a pool of workers. Each
// task is gated by its time window, given its own trace and deadline, and
// run against a session borrowed from a SessionProvider.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/cartwatch/internal/config"
	"github.com/xkilldash9x/cartwatch/internal/gate"
	"github.com/xkilldash9x/cartwatch/internal/tasks"
	"github.com/xkilldash9x/cartwatch/internal/trace"
)

// ErrAlreadyRunning is returned when Run is called on a busy engine.
var ErrAlreadyRunning = errors.New("engine is already running")

// Recorder receives one observation per finished task.
type Recorder interface {
	RecordTaskResult(task, status string, seconds float64)
}

const (
	defaultConcurrency = 4
	defaultTaskTimeout = 5 * time.Minute
)

type job struct {
	index int
	task  tasks.Task
}

// Engine manages the in-process distribution of tasks to a pool of workers.
type Engine struct {
	cfg      config.EngineConfig
	logger   *zap.Logger
	gate     *gate.Gate
	sessions SessionProvider
	recorder Recorder

	stateLock sync.Mutex
	isRunning bool
}

// New creates an Engine. The recorder may be nil.
func New(cfg config.EngineConfig, logger *zap.Logger, g *gate.Gate, sessions SessionProvider, recorder Recorder) (*Engine, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if g == nil {
		return nil, errors.New("gate cannot be nil")
	}
	if sessions == nil {
		return nil, errors.New("session provider cannot be nil")
	}
	return &Engine{
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "task_engine")),
		gate:     g,
		sessions: sessions,
		recorder: recorder,
	}, nil
}

// Run executes all tasks and returns one result per task, in input order.
// Tasks never dispatched because ctx ended are reported as failed.
func (e *Engine) Run(ctx context.Context, all []tasks.Task) ([]tasks.Result, error) {
	e.stateLock.Lock()
	if e.isRunning {
		e.stateLock.Unlock()
		return nil, ErrAlreadyRunning
	}
	e.isRunning = true
	e.stateLock.Unlock()
	defer func() {
		e.stateLock.Lock()
		e.isRunning = false
		e.stateLock.Unlock()
	}()

	concurrency := e.cfg.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if concurrency > len(all) {
		concurrency = len(all)
	}

	results := make([]tasks.Result, len(all))
	jobs := make(chan job)

	e.logger.Info("Starting task engine worker pool.", zap.Int("concurrency", concurrency), zap.Int("tasks", len(all)))
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go e.runWorker(ctx, i+1, jobs, results, &wg)
	}

feed:
	for i, t := range all {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- job{index: i, task: t}:
		}
	}
	close(jobs)
	wg.Wait()

	for i, r := range results {
		if r.Name == "" {
			results[i] = tasks.Result{
				Name:    all[i].Name(),
				Status:  tasks.Failed,
				Message: "not started",
				Err:     fmt.Errorf("task was not dispatched: %w", context.Cause(ctx)),
			}
		}
	}
	e.logger.Info("Task engine finished.")
	return results, nil
}

// runWorker processes jobs until the queue is drained or ctx ends. Each
// worker writes only the result slots of the jobs it received.
func (e *Engine) runWorker(ctx context.Context, workerID int, jobs <-chan job, results []tasks.Result, wg *sync.WaitGroup) {
	defer wg.Done()
	logger := e.logger.With(zap.Int("worker_id", workerID))
	logger.Debug("Worker goroutine started.")

	for {
		select {
		case <-ctx.Done():
			logger.Debug("Context cancelled, worker shutting down.", zap.Error(ctx.Err()))
			return
		case j, ok := <-jobs:
			if !ok {
				logger.Debug("Task queue drained, worker shutting down.")
				return
			}
			results[j.index] = e.process(ctx, j.task, logger)
		}
	}
}

// process runs one task inside its window with its own trace and deadline.
func (e *Engine) process(ctx context.Context, task tasks.Task, logger *zap.Logger) tasks.Result {
	name := task.Name()
	logger = logger.With(zap.String("task", name))
	tr := trace.New(name)
	start := time.Now()

	timeout := e.cfg.TaskTimeout
	if timeout <= 0 {
		timeout = defaultTaskTimeout
	}
	var msg string
	_, err := e.gate.RunIfWithinWindow(trace.WithTrace(ctx, tr), name, task.Window(), func(ctx context.Context) error {
		tr.Add(trace.KindGate, name, true, task.Window().String())
		// Waiting for a session is bounded by the run, not the task budget.
		drv, release, err := e.sessions.Acquire(ctx)
		if err != nil {
			return err
		}
		defer release()

		taskCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		msg, err = task.Run(taskCtx, drv)
		return err
	})

	res := tasks.Result{Name: name, Message: msg, Err: err, Trace: tr, Duration: time.Since(start)}
	switch {
	case err == nil:
		res.Status = tasks.Passed
		logger.Info("Task passed.", zap.String("message", msg), zap.Duration("duration", res.Duration))
	case errors.Is(err, gate.ErrWindowClosed):
		tr.Add(trace.KindGate, name, false, task.Window().String())
		res.Status = tasks.Skipped
		res.Message = "outside run window"
	case errors.Is(err, context.DeadlineExceeded):
		res.Status = tasks.Failed
		res.Message = "timed out"
		logger.Warn("Task timed out.", zap.Duration("timeout", timeout), zap.Error(err))
	case errors.Is(err, context.Canceled):
		res.Status = tasks.Failed
		res.Message = "cancelled"
		logger.Warn("Task was cancelled.", zap.Error(err))
	default:
		res.Status = tasks.Failed
		res.Message = err.Error()
		logger.Error("Task failed.", zap.Error(err))
	}
	tr.Add(trace.KindStep, "result", res.Status == tasks.Passed, string(res.Status))
	tr.Log(logger)

	if e.recorder != nil {
		e.recorder.RecordTaskResult(name, string(res.Status), res.Duration.Seconds())
	}
	return res
}
