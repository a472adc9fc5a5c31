package gate

import (
	"cascade/kernel"
	"testing"
)

func TestDispatchInterruptInvokesInstalledHandler(t *testing.T) {
	defer func() { handlers[LegacyIRQTimer] = nil }()

	var gotVector IdtVector
	handlers[LegacyIRQTimer] = func(f *InterruptFrame) { gotVector = f.VectorNumber() }

	dispatchInterrupt(&InterruptFrame{Vector: uint64(LegacyIRQTimer)})

	if gotVector != LegacyIRQTimer {
		t.Errorf("expected installed handler to run with vector %v; got %v", LegacyIRQTimer, gotVector)
	}
}

func TestDispatchInterruptFallsBackToUnhandled(t *testing.T) {
	defer func() { handlers[LegacyIRQKeyboard] = nil }()
	handlers[LegacyIRQKeyboard] = nil

	origPanicFn := panicFn
	defer func() { panicFn = origPanicFn }()

	var gotErr *kernel.Error
	panicFn = func(e interface{}) { gotErr, _ = e.(*kernel.Error) }

	dispatchInterrupt(&InterruptFrame{Vector: uint64(LegacyIRQKeyboard)})

	if gotErr == nil {
		t.Fatal("expected unhandledInterrupt to invoke panicFn with a *kernel.Error")
	}
}

func TestDispatchInterruptRunsEntryExitHooks(t *testing.T) {
	defer SetTaskInterruptHooks(nil, nil)
	defer func() { handlers[LegacyIRQTimer] = nil }()
	handlers[LegacyIRQTimer] = func(*InterruptFrame) {}

	var entered bool
	var exitedWith InterruptEntryState
	SetTaskInterruptHooks(
		func() InterruptEntryState {
			entered = true
			return InterruptEntryState{PrevInterruptDisableCount: 7, PrevUserMemAccessCount: 1}
		},
		func(prev InterruptEntryState) { exitedWith = prev },
	)

	dispatchInterrupt(&InterruptFrame{Vector: uint64(LegacyIRQTimer)})

	if !entered {
		t.Error("expected OnEntry hook to run")
	}
	if exitedWith.PrevInterruptDisableCount != 7 || exitedWith.PrevUserMemAccessCount != 1 {
		t.Errorf("expected OnExit to receive the prior counters; got %+v", exitedWith)
	}
}
