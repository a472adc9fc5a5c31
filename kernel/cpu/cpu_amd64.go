// Package cpu exposes the small set of architecture primitives (control
// registers, interrupt flag, TLB maintenance, CPUID) that the rest of the
// kernel treats as opaque hardware operations. Every exported function
// below whose body is missing is implemented in cpu_amd64.s.
package cpu

var (
	// cpuidFn is substituted by tests so that IsIntel/SupportsGigabytePages
	// can be exercised without executing a real CPUID instruction.
	cpuidFn = CPUID
)

// EnableInterrupts enables interrupt handling (STI).
func EnableInterrupts()

// DisableInterrupts disables interrupt handling (CLI).
func DisableInterrupts()

// InterruptsEnabled reports whether the interrupt flag is currently set.
func InterruptsEnabled() bool

// Halt stops instruction execution until the next interrupt (HLT).
func Halt()

// DisableAndHalt disables interrupts and halts in a single sequence with no
// window in which a pending interrupt could slip in between the two. Used
// by the idle loop and by unrecoverable panic paths.
func DisableAndHalt()

// FlushTLBEntry flushes a single TLB entry for the given virtual address
// (INVLPG).
func FlushTLBEntry(virtAddr uintptr)

// ReadCR2 returns the value stored in the CR2 register (the faulting
// address left behind by the most recent page fault).
func ReadCR2() uint64

// ReadCR3 returns the physical address of the currently loaded top-level
// page table.
func ReadCR3() uint64

// WriteCR3 loads a new top-level page table physical address, flushing the
// entire non-global TLB as a side effect.
func WriteCR3(physAddr uint64)

// ReadRFlags returns the current value of RFLAGS.
func ReadRFlags() uint64

// EnableUserMemoryAccess clears the SMAP restriction (STAC) so kernel code
// may dereference user-accessible pages.
func EnableUserMemoryAccess()

// DisableUserMemoryAccess reinstates the SMAP restriction (CLAC).
func DisableUserMemoryAccess()

// CPUID executes the CPUID instruction with EAX=leaf and returns the
// resulting EAX, EBX, ECX and EDX values.
func CPUID(leaf uint32) (uint32, uint32, uint32, uint32)

// ReadMSR returns the 64-bit value of the model-specific register msr
// (RDMSR).
func ReadMSR(msr uint32) uint64

// WriteMSR loads value into the model-specific register msr (WRMSR).
func WriteMSR(msr uint32, value uint64)

// IsIntel returns true if the code is running on an Intel processor.
func IsIntel() bool {
	_, ebx, ecx, edx := cpuidFn(0)
	return ebx == 0x756e6547 && // "Genu"
		edx == 0x49656e69 && // "ineI"
		ecx == 0x6c65746e // "ntel"
}

// SupportsGigabytePages returns true if the CPU supports 1 GiB page table
// leaves, per CPUID leaf 0x80000001, EDX bit 26.
func SupportsGigabytePages() bool {
	_, _, _, edx := cpuidFn(0x80000001)
	return edx&(1<<26) != 0
}
