package gate

import (
	"cascade/kernel/kfmt"
	"io"
)

// InterruptFrame is the on-stack structure a raw trampoline builds before
// calling into the C-ABI dispatcher, and the structure iretq consumes on
// return. Field order matches the exact push order, from the top of the
// stack (most recently pushed) toward the CPU's automatic interrupt frame.
type InterruptFrame struct {
	ES uint64
	DS uint64

	R15 uint64
	R14 uint64
	R13 uint64
	R12 uint64
	R11 uint64
	R10 uint64
	R9  uint64
	R8  uint64
	RDI uint64
	RSI uint64
	RBP uint64
	RDX uint64
	RCX uint64
	RBX uint64
	RAX uint64

	// Vector is zero-extended to 8 bytes by the trampoline so the frame
	// stays 16-byte aligned regardless of the natural width of an
	// IdtVector.
	Vector uint64

	// ErrorCode is the CPU-pushed error code, or a software-pushed dummy
	// zero for vectors that do not carry one (spec.md §4.3 step 1),
	// keeping the frame layout uniform across every vector.
	ErrorCode uint64

	// The hardware-pushed return frame iretq consumes.
	RIP    uint64
	CS     uint64
	RFlags uint64
	RSP    uint64
	SS     uint64
}

// VectorNumber returns the interrupt vector this frame was raised for.
func (f *InterruptFrame) VectorNumber() IdtVector {
	return IdtVector(f.Vector)
}

// DumpTo writes a register and frame dump to w, used by the panicking
// exception handlers to report kernel state at the fault site.
func (f *InterruptFrame) DumpTo(w io.Writer) {
	kfmt.Fprintf(w, "vector = %d (%s)  error_code = %x\n", f.Vector, f.VectorNumber().String(), f.ErrorCode)
	kfmt.Fprintf(w, "rax = %x rbx = %x rcx = %x rdx = %x\n", f.RAX, f.RBX, f.RCX, f.RDX)
	kfmt.Fprintf(w, "rsi = %x rdi = %x rbp = %x\n", f.RSI, f.RDI, f.RBP)
	kfmt.Fprintf(w, "r8  = %x r9  = %x r10 = %x r11 = %x\n", f.R8, f.R9, f.R10, f.R11)
	kfmt.Fprintf(w, "r12 = %x r13 = %x r14 = %x r15 = %x\n", f.R12, f.R13, f.R14, f.R15)
	kfmt.Fprintf(w, "rip = %x cs  = %x rflags = %x\n", f.RIP, f.CS, f.RFlags)
	kfmt.Fprintf(w, "rsp = %x ss  = %x\n", f.RSP, f.SS)
	kfmt.Fprintf(w, "ds  = %x es  = %x\n", f.DS, f.ES)
}
