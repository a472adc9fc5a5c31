package sched

import (
	"cascade/kernel"
	"cascade/kernel/task"
)

// taskEntryTrampolineAddr returns taskEntryTrampoline's entry address
// (switch_amd64.s), the fixed call target Stack.PrepareEntry installs as a
// freshly created task's initial return address.
func taskEntryTrampolineAddr() uintptr

// PrepareKernelTask implements spec.md §4.4's setTaskEntry end to end: it
// primes t to run entry the first time the scheduler switches to it, by
// laying down a stack frame that resumes into runTaskEntry via
// taskEntryTrampoline rather than into any previously saved context.
func PrepareKernelTask(t *task.Task, entry func()) *kernel.Error {
	t.SetTaskEntry(entry)
	return t.Stack.PrepareEntry(taskEntryTrampolineAddr())
}

// runTaskEntry is taskEntryTrampoline's fixed Go call target: the
// architecture glue spec.md §4.4 describes for a newly scheduled task.
// CurrentExecutor().CurrentTask() is t itself, since Yield/IdleLoop already
// installed it as running before switching here. Unlocking the scheduler
// lock before running entry (and relocking before Drop) mirrors the
// contract every other task runs under: entry executes with the lock free,
// exactly as code resumed from a normal yield would.
func runTaskEntry() {
	e := CurrentExecutor()
	t := e.CurrentTask()

	t.SchedulerLocked = false
	t.SpinlocksHeld--
	Lock.Release()

	t.RunEntry()

	Lock.Acquire()
	t.SpinlocksHeld++
	t.SchedulerLocked = true

	Drop(e)
}
