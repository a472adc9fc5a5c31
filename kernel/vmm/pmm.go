package vmm

import (
	"cascade/kernel"
	"cascade/kernel/paging"
)

// FrameAllocatorFn allocates a single physical frame, zeroed, returning
// ErrAllocationFailed (wrapped appropriately by the caller) if none are
// available. A collaborator physical-memory manager (explicitly out of
// scope per spec.md §1) registers its allocator via SetFrameAllocator
// during boot.
type FrameAllocatorFn func() (paging.PhysicalAddress, *kernel.Error)

var (
	// ErrAllocationFailed is returned when EnsureNextTable needs a fresh
	// table frame and the registered allocator has none to give.
	ErrAllocationFailed = &kernel.Error{Module: "vmm", Message: "no physical frames available"}

	// ErrAlreadyMapped is returned by MapRange/MapRangeUseAllPageSizes
	// when a target leaf entry is already present.
	ErrAlreadyMapped = &kernel.Error{Module: "vmm", Message: "virtual address range is already mapped"}

	// ErrUnexpected is returned when a page-table walk encounters a
	// huge-page leaf where a further table was expected.
	ErrUnexpected = &kernel.Error{Module: "vmm", Message: "unexpected page table entry shape"}

	// ErrNotMapped mirrors paging.ErrNotPresent at the AddressSpace
	// level, returned by UnmapRange when a target page was never mapped.
	ErrNotMapped = &kernel.Error{Module: "vmm", Message: "virtual address is not mapped"}

	frameAllocator FrameAllocatorFn
)

// SetFrameAllocator registers the physical frame allocator used by
// EnsureNextTable and the leaf-mapping paths.
func SetFrameAllocator(fn FrameAllocatorFn) { frameAllocator = fn }

// allocZeroedFrame allocates a frame via the registered allocator and
// zeroes it through the direct map before handing it back, so a freshly
// installed table never contains stale entries.
func allocZeroedFrame() (paging.PhysicalAddress, *kernel.Error) {
	phys, err := frameAllocator()
	if err != nil {
		return 0, err
	}
	tbl := tableAt(phys)
	tbl.Zero()
	return phys, nil
}

// tableAt returns the PageTable located at the direct-mapped kernel-virtual
// address for phys.
func tableAt(phys paging.PhysicalAddress) *paging.PageTable {
	va := paging.DirectMapBase.Add(phys.Uint64())
	return tableAtVirtual(va)
}
