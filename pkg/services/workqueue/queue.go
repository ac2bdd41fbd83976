// Package workqueue runs background tasks with bounded concurrency and a fixed-delay
// retry policy. Finished tasks stay queryable for a retention window.
package workqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/tabula/pkg/retry"
)

// ErrQueueClosed is returned by Enqueue after Shutdown has been called.
var ErrQueueClosed = errors.New("work queue is closed")

// DefaultRetention is how long finished tasks remain visible to Get.
const DefaultRetention = time.Hour

// Queue manages background task execution.
type Queue struct {
	mu        sync.Mutex
	tasks     map[string]*TaskState
	order     []string
	strategy  ConcurrencyStrategy
	policy    retry.Policy
	retention time.Duration
	logger    *zap.Logger
	onUpdate  func(TaskSnapshot)
	closed    bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Queue.
type Option func(*Queue)

// WithStrategy sets the concurrency strategy. Default is serialized.
func WithStrategy(s ConcurrencyStrategy) Option {
	return func(q *Queue) {
		q.strategy = s
	}
}

// WithRetryPolicy sets how failed tasks are retried.
func WithRetryPolicy(p retry.Policy) Option {
	return func(q *Queue) {
		q.policy = p
	}
}

// WithRetention sets how long finished tasks are kept.
func WithRetention(d time.Duration) Option {
	return func(q *Queue) {
		q.retention = d
	}
}

// WithOnUpdate registers a callback invoked whenever a task changes state.
// The callback runs outside the queue lock.
func WithOnUpdate(fn func(TaskSnapshot)) Option {
	return func(q *Queue) {
		q.onUpdate = fn
	}
}

// New creates a work queue.
func New(logger *zap.Logger, opts ...Option) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		tasks:     make(map[string]*TaskState),
		strategy:  NewSerializedStrategy(),
		policy:    retry.DefaultPolicy(),
		retention: DefaultRetention,
		logger:    logger.Named("workqueue"),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue adds a task and starts it when the strategy allows.
func (q *Queue) Enqueue(task Task) (TaskSnapshot, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return TaskSnapshot{}, ErrQueueClosed
	}
	if _, exists := q.tasks[task.ID()]; exists {
		q.mu.Unlock()
		return TaskSnapshot{}, fmt.Errorf("task %s already enqueued", task.ID())
	}

	q.pruneLocked(time.Now())

	state := NewTaskState(task)
	q.tasks[task.ID()] = state
	q.order = append(q.order, task.ID())

	q.logger.Debug("Task enqueued",
		zap.String("task_id", task.ID()),
		zap.String("task_name", task.Name()))

	started := q.tryStartTasksLocked()
	snap := state.Snapshot()
	q.mu.Unlock()

	q.notify(snap)
	for _, s := range started {
		q.notify(s)
	}
	return snap, nil
}

// Get returns a snapshot of a task by id.
func (q *Queue) Get(id string) (TaskSnapshot, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	state, ok := q.tasks[id]
	if !ok {
		return TaskSnapshot{}, false
	}
	return state.Snapshot(), true
}

// Tasks returns snapshots of all known tasks in enqueue order.
func (q *Queue) Tasks() []TaskSnapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	snaps := make([]TaskSnapshot, 0, len(q.order))
	for _, id := range q.order {
		snaps = append(snaps, q.tasks[id].Snapshot())
	}
	return snaps
}

// Counts returns the number of tasks per status.
func (q *Queue) Counts() map[TaskStatus]int {
	q.mu.Lock()
	defer q.mu.Unlock()

	counts := make(map[TaskStatus]int)
	for _, state := range q.tasks {
		counts[state.GetStatus()]++
	}
	return counts
}

// Cancel stops a task. Pending tasks never start; running tasks see their context cancelled.
func (q *Queue) Cancel(id string) bool {
	q.mu.Lock()
	state, ok := q.tasks[id]
	if !ok || state.GetStatus().IsTerminal() {
		q.mu.Unlock()
		return false
	}
	wasPending := state.GetStatus() == TaskStatusPending
	state.SetStatus(TaskStatusCancelled)
	state.SetError(context.Canceled)
	snap := state.Snapshot()
	q.mu.Unlock()

	if wasPending {
		q.logger.Info("Pending task cancelled", zap.String("task_id", id))
	}
	q.notify(snap)
	return true
}

// Shutdown stops accepting tasks, cancels running ones and waits for them to return
// or for ctx to expire.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	for _, state := range q.tasks {
		if state.GetStatus() == TaskStatusPending {
			state.SetStatus(TaskStatusCancelled)
			state.SetError(ErrQueueClosed)
		}
	}
	q.mu.Unlock()

	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until no task is pending or running, or ctx is done.
func (q *Queue) Wait(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if q.idle() {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (q *Queue) idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, state := range q.tasks {
		if !state.GetStatus().IsTerminal() {
			return false
		}
	}
	return true
}

// tryStartTasksLocked starts pending tasks in FIFO order while the strategy has room.
// Caller must hold q.mu.
func (q *Queue) tryStartTasksLocked() []TaskSnapshot {
	var started []TaskSnapshot
	for _, id := range q.order {
		state := q.tasks[id]
		if state.GetStatus() != TaskStatusPending {
			continue
		}
		if !q.strategy.CanStart() {
			break
		}
		q.strategy.OnStart()
		state.SetStatus(TaskStatusRunning)
		started = append(started, state.Snapshot())

		q.wg.Add(1)
		go q.runTask(state)
	}
	return started
}

func (q *Queue) runTask(state *TaskState) {
	defer q.wg.Done()

	task := state.Task
	taskCtx, cancel := context.WithCancel(q.ctx)
	defer cancel()

	// A Cancel call flips the status; poll it so the running task sees ctx.Done.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-taskCtx.Done():
				return
			case <-ticker.C:
				if state.GetStatus() == TaskStatusCancelled {
					cancel()
					return
				}
			}
		}
	}()

	q.logger.Info("Task started",
		zap.String("task_id", task.ID()),
		zap.String("task_name", task.Name()))

	err := q.policy.Run(taskCtx, func(ctx context.Context, attempt int) error {
		state.StartAttempt()
		if attempt > 1 && state.Transition(TaskStatusRetrying, TaskStatusRunning) {
			q.notify(state.Snapshot())
		}
		result, err := task.Execute(ctx)
		if err != nil {
			return err
		}
		state.SetResult(result)
		return nil
	}, func(attempt int, err error) {
		if !state.Transition(TaskStatusRunning, TaskStatusRetrying) {
			return
		}
		state.SetError(err)
		q.logger.Warn("Task failed, will retry",
			zap.String("task_id", task.ID()),
			zap.Int("attempt", attempt),
			zap.Duration("delay", q.policy.Delay),
			zap.Error(err))
		q.notify(state.Snapshot())
	})

	q.completeTask(state, err)
}

func (q *Queue) completeTask(state *TaskState, err error) {
	q.mu.Lock()
	q.strategy.OnComplete()

	if state.GetStatus() != TaskStatusCancelled {
		if err != nil {
			state.SetStatus(TaskStatusFailed)
			state.SetError(err)
			q.logger.Error("Task failed",
				zap.String("task_id", state.Task.ID()),
				zap.String("task_name", state.Task.Name()),
				zap.Error(err))
		} else {
			state.SetStatus(TaskStatusCompleted)
			state.SetError(nil)
			q.logger.Info("Task completed",
				zap.String("task_id", state.Task.ID()),
				zap.String("task_name", state.Task.Name()))
		}
	}
	snap := state.Snapshot()

	var started []TaskSnapshot
	if !q.closed {
		started = q.tryStartTasksLocked()
	}
	q.mu.Unlock()

	q.notify(snap)
	for _, s := range started {
		q.notify(s)
	}
}

// pruneLocked drops finished tasks older than the retention window.
// Caller must hold q.mu.
func (q *Queue) pruneLocked(now time.Time) {
	if q.retention <= 0 {
		return
	}
	kept := q.order[:0]
	for _, id := range q.order {
		state := q.tasks[id]
		snap := state.Snapshot()
		if snap.Status.IsTerminal() && snap.CompletedAt != nil && now.Sub(*snap.CompletedAt) > q.retention {
			delete(q.tasks, id)
			continue
		}
		kept = append(kept, id)
	}
	q.order = kept
}

func (q *Queue) notify(snap TaskSnapshot) {
	if q.onUpdate != nil {
		q.onUpdate(snap)
	}
}
