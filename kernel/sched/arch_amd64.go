package sched

import (
	"cascade/kernel/cpu"
	"cascade/kernel/task"
	"cascade/kernel/vmm"
)

// switchTaskFn saves the currently executing task's callee-saved context
// onto its own stack, switches RSP to new's saved stack pointer, and
// returns into new's context. Implemented in switch_amd64.s; a function
// variable so tests exercise the scheduler's bookkeeping without running
// real machine code that would corrupt the Go runtime's own stack.
var switchTaskFn = func(old, new *task.Task) {
	archSwitchTask(old.Stack.SPPtr(), new.Stack.SPPtr())
}

// switchTaskNoSaveFn switches to new without saving anything of the
// current context, used when abandoning the idle task's call chain
// (spec.md §4.5 "we never return to the idle call chain").
var switchTaskNoSaveFn = func(new *task.Task) {
	archSwitchTaskNoSave(new.Stack.SPPtr())
}

func archSwitchTask(oldSP, newSP *uintptr)
func archSwitchTaskNoSave(newSP *uintptr)
func archCallOnStack(sp uintptr)

// archCallOnStackFn is archCallOnStack's seam: tests substitute a plain Go
// call so the deferred-action protocol's stack hop is exercised without
// actually retargeting RSP on the host running the test binary.
var archCallOnStackFn = archCallOnStack

// beforeSwitchTaskFn is the pre-hook spec.md §4.5 calls "beforeSwitchTask":
// it decides whether the outgoing and incoming tasks' address spaces and
// SMAP state require a CR3 reload or an AC-flag toggle before the
// register-level switch happens. This is a separate concern from
// Task.OnInterruptEntry/OnInterruptExit (kernel/task/task.go): that pair
// handles the AC flag across an interrupt taken on top of the currently
// running task, while this toggles it between two different tasks'
// UserMemAccessCount when the scheduler hands off the CPU between them.
var beforeSwitchTaskFn = beforeSwitchTask

func beforeSwitchTask(old, new *task.Task) {
	switch {
	case old.Type == task.Kernel && new.Type == task.Kernel:
		// No CR3 change; both counters are expected to be 0 (not checked
		// here or by the callers).
	case old.Type == task.Kernel && new.Type == task.User:
		switchToAddressSpaceFn(new.AddressSpace)
		if new.UserMemAccessCount != 0 {
			enableUserMemoryAccessFn()
		}
	case old.Type == task.User && new.Type == task.Kernel:
		switchToKernelPageTableFn()
		if old.UserMemAccessCount != 0 {
			disableUserMemoryAccessFn()
		}
	default: // user -> user
		if old.AddressSpace != new.AddressSpace {
			switchToAddressSpaceFn(new.AddressSpace)
		}
		if (old.UserMemAccessCount != 0) != (new.UserMemAccessCount != 0) {
			if new.UserMemAccessCount != 0 {
				enableUserMemoryAccessFn()
			} else {
				disableUserMemoryAccessFn()
			}
		}
	}
}

// KernelAddressSpace is the address space every kernel task implicitly
// runs under; SetKernelAddressSpace installs it once during boot so
// beforeSwitchTask can reload it on a user->kernel transition.
var KernelAddressSpace *vmm.AddressSpace

// SetKernelAddressSpace installs the kernel's own address space.
func SetKernelAddressSpace(as *vmm.AddressSpace) { KernelAddressSpace = as }

// The four collaborator calls beforeSwitchTask drives are seams rather
// than direct cpu/vmm calls, so tests can assert exactly which ones fired
// for each of the four (old.Type, new.Type) cases without touching CR3 or
// the SMAP flag on the host CPU running the test binary.
var (
	switchToAddressSpaceFn    = func(as *vmm.AddressSpace) { as.SwitchToPageTable() }
	switchToKernelPageTableFn = func() { KernelAddressSpace.SwitchToPageTable() }
	enableUserMemoryAccessFn  = cpu.EnableUserMemoryAccess
	disableUserMemoryAccessFn = cpu.DisableUserMemoryAccess
)
