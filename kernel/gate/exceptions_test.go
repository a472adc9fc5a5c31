package gate

import (
	"cascade/kernel"
	"testing"
)

func withStubbedPanic(t *testing.T) *kernel.Error {
	t.Helper()

	origPanicFn := panicFn
	origCorePanicked := corePanicked
	var got *kernel.Error
	panicFn = func(e interface{}) {
		if err, ok := e.(*kernel.Error); ok {
			got = err
		}
	}

	t.Cleanup(func() {
		panicFn = origPanicFn
		corePanicked = origCorePanicked
	})

	return got
}

func withStubbedReadCR3(t *testing.T) {
	t.Helper()
	orig := readCR3Fn
	readCR3Fn = func() uint64 { return 0x1000 }
	t.Cleanup(func() { readCR3Fn = orig })
}

func TestFaultHandlerMarksCorePanicked(t *testing.T) {
	withStubbedPanic(t)
	withStubbedReadCR3(t)
	corePanicked = false

	faultHandler(&InterruptFrame{Vector: uint64(GeneralProtectionFault)})

	if !corePanicked {
		t.Error("expected faultHandler to set corePanicked")
	}
}

func TestPageFaultHandlerDecodesErrorCode(t *testing.T) {
	withStubbedPanic(t)
	withStubbedReadCR3(t)

	origReadCR2 := readCR2Fn
	defer func() { readCR2Fn = origReadCR2 }()
	readCR2Fn = func() uint64 { return 0x4000 }

	// pageFaultHandler defers to faultHandler, which panics via the
	// stubbed panicFn rather than a real kfmt.Panic/HLT.
	pageFaultHandler(&InterruptFrame{Vector: uint64(PageFault), ErrorCode: pfPresent | pfWrite})

	if !corePanicked {
		t.Error("expected the page fault to fall through to faultHandler")
	}
}

func TestNmiHandlerHaltsWhenCoreAlreadyPanicked(t *testing.T) {
	origHaltFn := cpuDisableAndHaltFn
	defer func() { cpuDisableAndHaltFn = origHaltFn; corePanicked = false }()

	haltCalled := false
	cpuDisableAndHaltFn = func() { haltCalled = true }
	corePanicked = true

	nmiHandler(&InterruptFrame{Vector: uint64(NMI)})

	if !haltCalled {
		t.Error("expected nmiHandler to halt when corePanicked is already set")
	}
}

func TestNmiHandlerFaultsWhenCoreNotPanicked(t *testing.T) {
	withStubbedPanic(t)
	withStubbedReadCR3(t)
	corePanicked = false

	nmiHandler(&InterruptFrame{Vector: uint64(NMI)})

	if !corePanicked {
		t.Error("expected an unexpected NMI to fall through to faultHandler")
	}
}

func TestInstallExceptionHandlersBindsEveryException(t *testing.T) {
	for v := range handlers {
		handlers[v] = nil
	}

	installExceptionHandlers()

	for _, v := range []IdtVector{
		DivideByZero, Debug, NMI, Breakpoint, Overflow, BoundRangeExceeded,
		InvalidOpcode, DeviceNotAvailable, DoubleFault, InvalidTSS,
		SegmentNotPresent, StackSegmentFault, GeneralProtectionFault,
		PageFault, FloatingPointException, AlignmentCheck, MachineCheck,
		SIMDFloatingPointException, VirtualizationException,
		ControlProtectionException, HypervisorInjectionException,
		VMMCommunicationException, SecurityException,
	} {
		if handlers[v] == nil {
			t.Errorf("vector %v: expected installExceptionHandlers to bind a handler", v)
		}
	}
}

func TestSchedulerInterruptSendsEOIAndYields(t *testing.T) {
	origSendEOIFn, origYieldFn := sendEOIFn, yieldFn
	defer func() { sendEOIFn, yieldFn = origSendEOIFn, origYieldFn }()

	var eoiSent, yielded bool
	sendEOIFn = func() { eoiSent = true }
	yieldFn = func() { yielded = true }

	schedulerInterrupt(&InterruptFrame{Vector: uint64(Scheduler)})

	if !eoiSent {
		t.Error("expected schedulerInterrupt to send an EOI")
	}
	if !yielded {
		t.Error("expected schedulerInterrupt to invoke the installed yield function")
	}
}

func TestSchedulerInterruptToleratesNoYieldFn(t *testing.T) {
	origSendEOIFn, origYieldFn := sendEOIFn, yieldFn
	defer func() { sendEOIFn, yieldFn = origSendEOIFn, origYieldFn }()

	sendEOIFn = func() {}
	yieldFn = nil

	schedulerInterrupt(&InterruptFrame{Vector: uint64(Scheduler)})
}
