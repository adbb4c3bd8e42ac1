package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"liuproxy_checker/internal/shared/logger"
	"liuproxy_checker/proxypool/model"
	"liuproxy_checker/proxypool/sink"
)

// ErrRunInProgress is returned by StartRun while a previous run is still active.
var ErrRunInProgress = errors.New("a validation run is already in progress")

// Tester tests a single proxy. validator.Validator implements it.
type Tester interface {
	Test(ctx context.Context, d model.ProxyDescriptor) model.ValidationResult
}

// Task 是一次运行中的单个待测项：代理描述符及其在 Display 中的行 ID。
type Task struct {
	Descriptor model.ProxyDescriptor
	RowID      string
}

// Run tracks one validation run.
type Run struct {
	ID        string
	StartedAt time.Time

	total     int
	completed atomic.Int64
	done      chan struct{}
}

func newRun(total int) *Run {
	return &Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		total:     total,
		done:      make(chan struct{}),
	}
}

// Total returns the number of tasks in the run.
func (r *Run) Total() int { return r.total }

// Completed returns how many tasks have pushed their result.
func (r *Run) Completed() int { return int(r.completed.Load()) }

// Done is closed once every task has pushed its result.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the run finishes or ctx ends.
func (r *Run) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Run) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Dispatcher 把一轮的所有任务提交到有界的 worker 池中执行，
// 结果写入 Sink，调用方不会被阻塞。
type Dispatcher struct {
	tester  Tester
	sink    *sink.Sink
	workers int

	mu      sync.Mutex
	active  *Run
	onStart func(run *Run)
}

// New creates a Dispatcher. workers <= 0 means one goroutine per task.
func New(tester Tester, s *sink.Sink, workers int) *Dispatcher {
	return &Dispatcher{
		tester:  tester,
		sink:    s,
		workers: workers,
	}
}

// OnRunStart registers a hook called by StartRun before any task is scheduled.
// It must be set before the first run.
func (d *Dispatcher) OnRunStart(f func(run *Run)) {
	d.onStart = f
}

// StartRun schedules every task exactly once and returns immediately.
func (d *Dispatcher) StartRun(tasks []Task) (*Run, error) {
	d.mu.Lock()
	if d.active != nil && !d.active.finished() {
		d.mu.Unlock()
		return nil, ErrRunInProgress
	}
	run := newRun(len(tasks))
	d.active = run
	d.mu.Unlock()

	// Copy so the caller may reuse its slice.
	own := make([]Task, len(tasks))
	copy(own, tasks)

	l := logger.WithComponent("ProxyPool/Dispatcher")
	l.Info().
		Str("run_id", run.ID).
		Int("tasks", len(own)).
		Int("workers", d.workers).
		Msg("Validation run started.")

	if d.onStart != nil {
		d.onStart(run)
	}
	go d.execute(run, own)
	return run, nil
}

// Active returns the current or most recent run, or nil if none was started.
func (d *Dispatcher) Active() *Run {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

func (d *Dispatcher) execute(run *Run, tasks []Task) {
	l := logger.WithComponent("ProxyPool/Dispatcher")

	var g errgroup.Group
	if d.workers > 0 {
		g.SetLimit(d.workers)
	}
	for _, task := range tasks {
		g.Go(func() error {
			d.sink.Push(d.runTask(run.ID, task))
			run.completed.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	close(run.done)

	l.Info().
		Str("run_id", run.ID).
		Int("tasks", run.Total()).
		Dur("elapsed", time.Since(run.StartedAt)).
		Msg("Validation run finished.")
}

// runTask never panics; a panicking tester yields a Failure result.
func (d *Dispatcher) runTask(runID string, task Task) (result model.ValidationResult) {
	defer func() {
		if rec := recover(); rec != nil {
			l := logger.WithComponent("ProxyPool/Dispatcher")
			l.Error().
				Str("proxy", task.Descriptor.String()).
				Interface("panic", rec).
				Msg("Worker panicked.")
			result = model.ValidationResult{
				Connectivity: model.ConnectivityFailure,
				Latency:      model.NotRun(),
				ErrorKind:    model.ErrorConnection,
				ErrorMessage: fmt.Sprintf("internal error: %v", rec),
			}
		}
		result.RunID = runID
		result.ProxyID = task.Descriptor.ID
		result.RowID = task.RowID
		if result.CheckedAt.IsZero() {
			result.CheckedAt = time.Now()
		}
	}()

	return d.tester.Test(context.Background(), task.Descriptor)
}
