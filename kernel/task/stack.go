package task

import (
	"cascade/kernel"
	"cascade/kernel/mem"
	"unsafe"
)

// StandardPageSize is the granularity of the guard page reserved at the
// low end of every kernel stack.
const StandardPageSize = 4 * mem.Kb

// ErrStackOverflow is returned by Push when writing val would cross into
// the guard page.
var ErrStackOverflow = &kernel.Error{Module: "task", Message: "stack overflow"}

// stackArenaAllocFn allocates kernelStackSize+StandardPageSize bytes of
// backing memory for a new stack, returning a pointer to its low end. A
// freestanding kernel serves this from a fixed kernel-stacks region; tests
// substitute a plain heap allocation, mirroring the seam kernel/vmm uses
// for physical frames.
var stackArenaAllocFn = func(size mem.Size) unsafe.Pointer {
	buf := make([]byte, size)
	return unsafe.Pointer(&buf[0])
}

// Stack is a single kernel stack: a guarded memory range with a
// 16-byte-aligned usable region and a stack pointer that Push/Reset
// maintain. Matches spec.md §3's
// `{ range, usable_range, sp, top_sp }`.
type Stack struct {
	rangeStart, rangeEnd   uintptr
	usableStart, usableEnd uintptr
	sp, topSP              uintptr
}

// NewStack allocates a kernelStackSize-byte stack plus a guard page below
// it, and initializes sp/topSP per Reset.
func NewStack(kernelStackSize mem.Size) *Stack {
	total := kernelStackSize + StandardPageSize
	base := uintptr(stackArenaAllocFn(total))

	s := &Stack{
		rangeStart:  base,
		rangeEnd:    base + uintptr(total),
		usableStart: base + uintptr(StandardPageSize),
		usableEnd:   base + uintptr(total),
	}
	// usableStart/usableEnd are both 16-byte aligned because
	// StandardPageSize and kernelStackSize are multiples of 16; a real
	// allocator backed by page-granular memory gets this for free.
	s.Reset()
	return s
}

// Reset re-initializes sp to the top of the usable range and pushes a
// zero return address, so that unwinding a freshly (re-)started task
// terminates instead of reading garbage.
func (s *Stack) Reset() {
	s.sp = s.usableEnd
	s.topSP = s.usableEnd
	_ = s.Push(0)
}

// SP returns the current stack pointer.
func (s *Stack) SP() uintptr { return s.sp }

// SPPtr returns the address of the sp field itself, rather than its
// value. kernel/sched's architecture switch writes the outgoing task's
// live RSP here and reads the incoming task's RSP from the same place,
// so the assembly context switch never needs to know Task or Stack's
// field layout.
func (s *Stack) SPPtr() *uintptr { return &s.sp }

// TopSP returns the stack pointer at the top of the usable range, before
// any pushes.
func (s *Stack) TopSP() uintptr { return s.topSP }

// Push moves sp backward by 8 bytes and writes val there, returning
// ErrStackOverflow instead if doing so would cross into the guard page.
func (s *Stack) Push(val uint64) *kernel.Error {
	next := s.sp - 8
	if next < s.usableStart {
		return ErrStackOverflow
	}
	*(*uint64)(unsafe.Pointer(next)) = val
	s.sp = next
	return nil
}

// PrepareEntry re-initializes the stack the way Reset does, then lays down
// the frame kernel/sched's archSwitchTaskNoSave expects to pop the first
// time this task is scheduled: six placeholder callee-saved registers
// (their value is irrelevant; the entry trampoline never reads them)
// followed by entryAddr as the return address archSwitchTaskNoSave's RET
// lands on.
func (s *Stack) PrepareEntry(entryAddr uintptr) *kernel.Error {
	s.sp = s.usableEnd
	s.topSP = s.usableEnd

	// Pushed in this order so the final, topmost word (popped first) is
	// the placeholder that becomes R15, and entryAddr — pushed first, so
	// it ends up deepest — is the last thing popped, by RET.
	for _, val := range [...]uint64{uint64(entryAddr), 0, 0, 0, 0, 0, 0} {
		if err := s.Push(val); err != nil {
			return err
		}
	}
	return nil
}
