package sched

import "cascade/kernel/task"

// Executor is a CPU-local scheduling context: one per online hardware
// thread (spec.md glossary). It owns a dedicated idle/scheduler task and
// tracks whichever task is currently running on it.
type Executor struct {
	id int

	schedulerTask *task.Task
	currentTask   *task.Task
}

// NewExecutor constructs an executor with id and installs schedulerTask as
// both its idle task and its initially running task — an executor always
// has something running, even before any real work has been queued.
func NewExecutor(id int, schedulerTask *task.Task) *Executor {
	schedulerTask.IsSchedulerTask = true
	schedulerTask.SetState(task.Running)
	e := &Executor{id: id, schedulerTask: schedulerTask}
	schedulerTask.SetExecutor(e)
	e.currentTask = schedulerTask
	return e
}

// ID satisfies task.Executor, letting Task.KnownExecutor store an Executor
// without kernel/task importing kernel/sched.
func (e *Executor) ID() int { return e.id }

// SchedulerTask returns this executor's idle/scheduler task.
func (e *Executor) SchedulerTask() *task.Task { return e.schedulerTask }

// CurrentTask returns the task currently running on this executor.
func (e *Executor) CurrentTask() *task.Task { return e.currentTask }

// currentExecutorFn resolves the CPU-local executor for the core the
// caller is running on; the real implementation reads a per-CPU GS-based
// pointer (arch::getCurrentExecutor() in spec.md §6). Tests substitute a
// fixed executor since there is exactly one "CPU" in a hosted test binary.
var currentExecutorFn func() *Executor

// CurrentExecutor returns the executor for the calling CPU.
func CurrentExecutor() *Executor {
	return currentExecutorFn()
}

// SetCurrentExecutorFn installs the per-CPU executor resolver. Called once
// per executor during boot (and directly by tests).
func SetCurrentExecutorFn(fn func() *Executor) {
	currentExecutorFn = fn
}
