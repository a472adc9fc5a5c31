package sched

import "cascade/kernel/gate"

// InstallTaskInterruptHooks wires kernel/gate's dispatcher to the currently
// running task's interrupt-disable/user-mem-access bookkeeping (spec.md
// §4.3's dispatcher steps 1 and 3), via gate.SetTaskInterruptHooks so
// kernel/gate never imports kernel/sched. Called once during boot, after
// SetCurrentExecutorFn has been installed.
func InstallTaskInterruptHooks() {
	gate.SetTaskInterruptHooks(onInterruptEntry, onInterruptExit)
}

func onInterruptEntry() gate.InterruptEntryState {
	t := CurrentExecutor().CurrentTask()
	prevDisable, prevUserMem := t.OnInterruptEntry()
	return gate.InterruptEntryState{
		PrevInterruptDisableCount: prevDisable,
		PrevUserMemAccessCount:    prevUserMem,
	}
}

func onInterruptExit(prev gate.InterruptEntryState) {
	t := CurrentExecutor().CurrentTask()
	t.OnInterruptExit(prev.PrevInterruptDisableCount, prev.PrevUserMemAccessCount)
}

// InstallYieldHook wires the scheduler vector's handler (kernel/gate's
// schedulerInterrupt) to Yield via gate.SetYieldFn, matching spec.md §4.3's
// three-step scheduler-vector handler: send EOI (already done by the
// caller before yieldFn runs), acquire the scheduler lock, invoke yield.
// The lock acquire/release lives in this closure rather than in
// kernel/gate itself, since kernel/gate must not import kernel/sched (the
// reverse import already exists, via this file).
func InstallYieldHook() {
	gate.SetYieldFn(yieldHook)
}

func yieldHook() {
	Lock.Acquire()
	Yield(CurrentExecutor())
	Lock.Release()
}
