package gate

import (
	"cascade/kernel"
	"cascade/kernel/cpu"
	"cascade/kernel/kfmt"
)

// panicFn is a seam over kfmt.Panic so tests can exercise the fault
// handlers without executing a real HLT.
var panicFn = kfmt.Panic

// readCR2Fn, readCR3Fn and cpuDisableAndHaltFn seam the other direct
// hardware touches in this file, for the same reason.
var (
	readCR2Fn           = cpu.ReadCR2
	readCR3Fn           = cpu.ReadCR3
	cpuDisableAndHaltFn = cpu.DisableAndHalt
)

// corePanicked is set by the first core to take an unrecoverable exception,
// so that an NMI delivered to every other core (sent as part of the
// kernel's panic broadcast, per spec.md §9 "the rest of the system does
// not get to keep running") can tell a genuine maskable-interrupt-escape
// NMI apart from a shutdown request and simply halt instead of dispatching
// further.
var corePanicked bool

// pageFaultErrorBits name the low bits of the error code #PF pushes.
const (
	pfPresent = 1 << 0
	pfWrite   = 1 << 1
	pfUser    = 1 << 2
)

// unhandledInterrupt is the default entry for every vector Init does not
// bind a named handler to. Reaching it for an exception is always a bug;
// reaching it for a hardware IRQ means a device raised a vector nothing
// claimed.
func unhandledInterrupt(frame *InterruptFrame) {
	kfmt.Printf("unhandled interrupt\n")
	frame.DumpTo(kfmt.GetOutputSink())
	panicFn(&kernel.Error{Module: "gate", Message: "unhandled interrupt: " + frame.VectorNumber().String()})
}

// installExceptionHandlers binds the fixed set of architectural exceptions
// Init always installs, regardless of what the rest of the kernel has
// registered.
func installExceptionHandlers() {
	handlers[DivideByZero] = faultHandler
	handlers[Debug] = faultHandler
	handlers[NMI] = nmiHandler
	handlers[Breakpoint] = faultHandler
	handlers[Overflow] = faultHandler
	handlers[BoundRangeExceeded] = faultHandler
	handlers[InvalidOpcode] = faultHandler
	handlers[DeviceNotAvailable] = faultHandler
	handlers[DoubleFault] = doubleFaultHandler
	handlers[InvalidTSS] = faultHandler
	handlers[SegmentNotPresent] = faultHandler
	handlers[StackSegmentFault] = faultHandler
	handlers[GeneralProtectionFault] = faultHandler
	handlers[PageFault] = pageFaultHandler
	handlers[FloatingPointException] = faultHandler
	handlers[AlignmentCheck] = faultHandler
	handlers[MachineCheck] = faultHandler
	handlers[SIMDFloatingPointException] = faultHandler
	handlers[VirtualizationException] = faultHandler
	handlers[ControlProtectionException] = faultHandler
	handlers[HypervisorInjectionException] = faultHandler
	handlers[VMMCommunicationException] = faultHandler
	handlers[SecurityException] = faultHandler
}

// faultHandler is the common, unrecoverable path for every exception this
// kernel makes no attempt to resume from: dump the frame, mark the core as
// panicked so a broadcast NMI halts its siblings, and panic.
func faultHandler(frame *InterruptFrame) {
	corePanicked = true
	frame.DumpTo(kfmt.GetOutputSink())
	kfmt.Printf("cr3 = %x\n", readCR3Fn())
	panicFn(&kernel.Error{Module: "gate", Message: "unhandled exception: " + frame.VectorNumber().String()})
}

// doubleFaultHandler runs on its own Interrupt Stack Table entry, since
// whatever corrupted RSP badly enough to raise #DF may make the current
// stack unusable.
func doubleFaultHandler(frame *InterruptFrame) {
	corePanicked = true
	frame.DumpTo(kfmt.GetOutputSink())
	panicFn(&kernel.Error{Module: "gate", Message: "double fault"})
}

// nmiHandler checks corePanicked before doing anything else: once one core
// has begun an unrecoverable panic, every other core receives a
// broadcast NMI and must halt immediately rather than dispatch normally,
// since the panicking core may have left shared kernel state mid-update.
func nmiHandler(frame *InterruptFrame) {
	if corePanicked {
		cpuDisableAndHaltFn()
		return
	}
	faultHandler(frame)
}

// pageFaultHandler reports the faulting address (CR2) and decodes the
// error code's present/write/user bits before handing off to the common
// fault path. This kernel does not implement demand paging or copy-on-
// write, so every page fault is fatal.
func pageFaultHandler(frame *InterruptFrame) {
	addr := readCR2Fn()
	kfmt.Printf("page fault at %x (present=%t write=%t user=%t)\n",
		addr,
		frame.ErrorCode&pfPresent != 0,
		frame.ErrorCode&pfWrite != 0,
		frame.ErrorCode&pfUser != 0,
	)
	faultHandler(frame)
}

// schedulerInterrupt is the handler bound to the Scheduler vector: send an
// End-Of-Interrupt so the local APIC can deliver further interrupts, then
// let yieldFn pick the next ready task. Installed directly by Init rather
// than through installExceptionHandlers since it is not an architectural
// exception.
func schedulerInterrupt(frame *InterruptFrame) {
	sendEOIFn()
	if yieldFn != nil {
		yieldFn()
	}
}

// yieldFn is the seam kernel/sched installs its reschedule entry point
// through via SetYieldFn, so kernel/gate never imports kernel/sched
// directly.
var yieldFn func()

// SetYieldFn installs the function the scheduler interrupt invokes once
// kernel/sched is initialized.
func SetYieldFn(fn func()) {
	yieldFn = fn
}
