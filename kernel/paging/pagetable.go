package paging

import (
	"cascade/kernel"
	"cascade/kernel/kfmt"
	"io"
	"unsafe"
)

var (
	// ErrNotPresent is returned by NextLevel when the entry has
	// present=0.
	ErrNotPresent = &kernel.Error{Module: "paging", Message: "page table entry is not present"}

	// ErrHugePage is returned by NextLevel when the entry is a huge-page
	// leaf rather than a pointer to a further table.
	ErrHugePage = &kernel.Error{Module: "paging", Message: "page table entry is a huge page leaf"}

	// DirectMapBase is the fixed kernel-virtual base at which every
	// physical frame is mapped, so that any frame can be addressed as
	// DirectMapBase + phys. It is set once by the vmm package's boot
	// sequence before any call into this package's NextLevel.
	DirectMapBase VirtualAddress
)

// PageTable is exactly EntriesPerTable consecutive Entry values, aligned to
// SmallPageSize. It is always accessed through its kernel-virtual address,
// which for an already-installed table is DirectMapBase + its own physical
// frame.
type PageTable struct {
	entries [EntriesPerTable]Entry
}

// IndexAtLevel implements index_at_level: bits [12+9*(level-1), +9) of
// vaddr. level is 1-based (1=L1 .. 4=L4, i.e. L4 is the table CR3 points
// at).
func IndexAtLevel(level uint8, vaddr VirtualAddress) uint16 {
	return indexAtLevel(level, vaddr)
}

// EntryAt returns a pointer to the entry in pt that corresponds to vaddr at
// the given level.
func (pt *PageTable) EntryAt(level uint8, vaddr VirtualAddress) *Entry {
	return &pt.entries[indexAtLevel(level, vaddr)]
}

// RawEntryAt returns a pointer to the entry at the given raw table index,
// independent of any virtual address. It backs ReserveHeapRange's linear
// scan over L4 slots.
func (pt *PageTable) RawEntryAt(index uint16) *Entry {
	return &pt.entries[index]
}

// NextLevel returns the table that e points to, found via the direct map.
// It fails with ErrNotPresent when e.Present() is false, and ErrHugePage
// when e is a huge-page leaf rather than a pointer to a further table.
func NextLevel(e *Entry) (*PageTable, *kernel.Error) {
	if !e.Present() {
		return nil, ErrNotPresent
	}
	if e.Huge() {
		return nil, ErrHugePage
	}
	addr := DirectMapBase.Add(e.Frame4K().Uint64())
	return (*PageTable)(unsafe.Pointer(addr.Uintptr())), nil
}

// Zero fills every entry of pt with the zero value. Implemented via
// kernel.Memset rather than a field-by-field loop, matching how the rest of
// this kernel clears a freshly allocated page table frame.
func (pt *PageTable) Zero() {
	kernel.Memset(uintptr(unsafe.Pointer(&pt.entries[0])), 0, uintptr(len(pt.entries))*unsafe.Sizeof(pt.entries[0]))
}

// Print pretty-prints every present entry in pt to w, labelling 1 GiB and
// 2 MiB leaves. If verboseL1 is false, present-but-unremarkable 4 KiB L1
// leaves are skipped to keep output readable for a fully populated table.
//
// level identifies which level of the hierarchy pt is (4=top); it controls
// how an index is turned back into a virtual address prefix for display,
// and whether entries are interpreted as 1 GiB/2 MiB leaves.
func (pt *PageTable) Print(w io.Writer, level uint8, vaddrPrefix VirtualAddress, verboseL1 bool) {
	for i := 0; i < EntriesPerTable; i++ {
		e := pt.entries[i]
		if !e.Present() {
			continue
		}

		idxBits := uint64(i) << levelShift(level)
		va := NewVirtualAddress(uint64(vaddrPrefix) + idxBits)

		switch {
		case level == 4:
			kfmt.Fprintf(w, "[%d] L4 %x -> %x\n", i, uint64(va), uint64(e))
		case level == 3 && e.Huge():
			kfmt.Fprintf(w, "[%d] 1GIB %x -> %x\n", i, uint64(va), e.Frame1G().Uint64())
		case level == 2 && e.Huge():
			// spec.md §9 flags this exact print path's argument order
			// as a source bug, deliberately preserved: the format
			// places the virtual address in the index slot.
			kfmt.Fprintf(w, "[%x] 2MIB %x -> %x\n", uint64(va), e.Frame2M().Uint64(), i)
		case level == 1:
			if verboseL1 {
				kfmt.Fprintf(w, "[%d] L1 %x -> %x\n", i, uint64(va), e.Frame4K().Uint64())
			}
		default:
			kfmt.Fprintf(w, "[%d] L%d %x -> %x\n", i, level, uint64(va), e.Frame4K().Uint64())
		}
	}
}
