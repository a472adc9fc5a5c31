package gate

// gateDescriptor is a single IDT entry: an interrupt gate referencing a
// kernel-code selector, with an optional Interrupt Stack Table index.
// Represented, like paging.Entry, as a typed view over the raw bits rather
// than a language-native bit-struct.
type gateDescriptor struct {
	offsetLow  uint16
	selector   uint16
	istAndZero uint8
	typeAttr   uint8
	offsetMid  uint16
	offsetHigh uint32
	zero       uint32
}

const (
	gateTypeInterrupt = 0x8e // present, DPL=0, 64-bit interrupt gate
)

func newGateDescriptor(handlerAddr uintptr, codeSelector uint16, istIndex uint8) gateDescriptor {
	return gateDescriptor{
		offsetLow:  uint16(handlerAddr),
		selector:   codeSelector,
		istAndZero: istIndex & 0x7,
		typeAttr:   gateTypeInterrupt,
		offsetMid:  uint16(handlerAddr >> 16),
		offsetHigh: uint32(handlerAddr >> 32),
	}
}

// idt is the kernel's single Interrupt Descriptor Table, sized for every
// architectural exception plus every platform-assigned vector. It is
// global, fixed-size and initialized exactly once during boot (spec.md §9
// "Global mutable state").
var idt [NumberOfHandlers]gateDescriptor

// handlers is the function-pointer table dispatchInterrupt indexes into.
// Using a flat array keyed by vector rather than a v-table hierarchy
// matches spec.md §9's "dynamic dispatch" design note.
var handlers [NumberOfHandlers]func(*InterruptFrame)

// doubleFaultIST and nmiIST name the Interrupt Stack Table slots reserved
// for #DF and #NMI, so a corrupted RSP at fault time cannot cascade into a
// triple fault.
const (
	doubleFaultIST = 1
	nmiIST         = 2
)

// kernelCodeSelector is the GDT selector installed gates run with. It is a
// package variable rather than a constant so host-side tests can probe
// Init without depending on a real GDT layout.
var kernelCodeSelector uint16 = 0x08

// trampolineAddrFn returns the entry address of the raw trampoline
// generated for vector v. It is a seam over the table tools/gengates
// emits into trampolines_amd64.s; tests substitute a stub so IDT
// population can be exercised without linking real machine code.
var trampolineAddrFn = trampolineAddr

// Init fills every IDT slot with its raw trampoline, pins #DF and #NMI to
// dedicated IST stacks, installs the named exception handlers and the
// scheduler vector, defaults everything else to unhandledInterrupt, then
// loads the table and APIC (spec.md §4.3).
func Init() {
	for v := 0; v < NumberOfHandlers; v++ {
		idt[v] = newGateDescriptor(trampolineAddrFn(IdtVector(v)), kernelCodeSelector, 0)
		handlers[v] = unhandledInterrupt
	}

	idt[DoubleFault].istAndZero = doubleFaultIST
	idt[NMI].istAndZero = nmiIST

	installExceptionHandlers()
	handlers[Scheduler] = schedulerInterrupt

	loadIDT()
	initAPIC()
}

// SetHandler installs handler for vector v, replacing whatever was there
// (initially unhandledInterrupt for every non-exception vector).
func SetHandler(v IdtVector, handler func(*InterruptFrame)) {
	handlers[v] = handler
}

// trampolineAddr is architecture-specific; declared here, its table lookup
// implemented in trampolines_amd64.s.
func trampolineAddr(v IdtVector) uintptr
