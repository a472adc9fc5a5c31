package vmm

import (
	"cascade/kernel"
	"cascade/kernel/cpu"
	"cascade/kernel/paging"
	"unsafe"
)

var (
	// gigabytePagesSupportedFn is a seam over cpu.SupportsGigabytePages
	// so tests can force either path of MapRangeUseAllPageSizes without
	// depending on the host CPU's actual feature set.
	gigabytePagesSupportedFn = cpu.SupportsGigabytePages

	// writeCR3Fn and flushTLBEntryFn are seams over the cpu package's
	// raw register primitives, so address-space switching and unmapping
	// are exercised by tests without touching the host CPU's real CR3 or
	// TLB state.
	writeCR3Fn      = cpu.WriteCR3
	flushTLBEntryFn = cpu.FlushTLBEntry
)

// tableAtVirtual reinterprets a direct-mapped kernel-virtual address as a
// *PageTable. Callers must ensure va genuinely refers to a 4 KiB-aligned
// page-table frame.
func tableAtVirtual(va paging.VirtualAddress) *paging.PageTable {
	return (*paging.PageTable)(unsafe.Pointer(va.Uintptr()))
}

// SetDirectMapBase installs the fixed kernel-virtual base at which the vmm
// collaborator has mapped every physical frame. It must be called exactly
// once, before any AddressSpace method.
func SetDirectMapBase(base paging.VirtualAddress) {
	paging.DirectMapBase = base
}

// AddressSpace wraps a top-level (L4) PageTable and the operations that
// mutate it: mapRange, mapRangeUseAllPageSizes, unmapRange,
// ensureNextTable, switchToPageTable and one-shot heap-range reservation
// (spec.md §4.1).
type AddressSpace struct {
	l4Phys paging.PhysicalAddress
}

// NewAddressSpace wraps an already-allocated, zeroed L4 table located at
// l4Phys.
func NewAddressSpace(l4Phys paging.PhysicalAddress) *AddressSpace {
	return &AddressSpace{l4Phys: l4Phys}
}

// L4 returns the address space's top-level table.
func (as *AddressSpace) L4() *paging.PageTable {
	return tableAt(as.l4Phys)
}

// EnsureNextTable implements ensureNextTable: if entry is not present, a
// fresh zeroed frame is allocated and installed, with mt's parent-entry
// flags applied (present, writeable, user if requested). If entry is
// already a huge-page leaf where a table was expected, ErrUnexpected is
// returned. On success the table reachable through entry is returned.
func EnsureNextTable(entry *paging.Entry, mt paging.MapType) (*paging.PageTable, *kernel.Error) {
	if entry.Present() {
		if entry.Huge() {
			return nil, ErrUnexpected
		}
		tbl, err := paging.NextLevel(entry)
		if err != nil {
			return nil, err
		}
		return tbl, nil
	}

	phys, err := allocZeroedFrame()
	if err != nil {
		return nil, ErrAllocationFailed
	}

	entry.SetFrame4K(phys)
	mt.ApplyParent(entry)

	return tableAt(phys), nil
}

// walkToL1 descends from as's L4 table to the L1 entry for vaddr,
// allocating any missing intermediate tables via EnsureNextTable.
func (as *AddressSpace) walkToL1(vaddr paging.VirtualAddress, mt paging.MapType) (*paging.Entry, *kernel.Error) {
	tbl := as.L4()
	for level := uint8(4); level > 1; level-- {
		e := tbl.EntryAt(level, vaddr)
		next, err := EnsureNextTable(e, mt)
		if err != nil {
			return nil, err
		}
		tbl = next
	}
	return tbl.EntryAt(1, vaddr), nil
}

// MapRange implements mapRange: for each SmallPageSize step in
// [vstart, vend), walks/creates L4->L3->L2->L1 and sets the L1 leaf to
// pstart+(v-vstart). Returns ErrAlreadyMapped if a target L1 entry is
// already present. On error partway through, already-installed mappings
// are left in place; the caller is expected to tear down the affected
// range.
func (as *AddressSpace) MapRange(vstart, vend paging.VirtualAddress, pstart paging.PhysicalAddress, mt paging.MapType) *kernel.Error {
	for v, p := vstart, pstart; v < vend; v, p = v.Add(paging.SmallPageSize), p.Add(paging.SmallPageSize) {
		leaf, err := as.walkToL1(v, mt)
		if err != nil {
			return err
		}
		if leaf.Present() {
			return ErrAlreadyMapped
		}
		leaf.SetFrame4K(p)
		mt.ApplyLeaf(leaf)
	}
	return nil
}

// canUseLargePage reports whether a pageSize mapping (1 GiB or 2 MiB)
// could cover the next step of an optimistic scan: the remaining range must
// be at least pageSize, and both v and p must already be pageSize-aligned.
// It does not check whether the CPU supports 1 GiB pages.
func canUseLargePage(v, vend paging.VirtualAddress, p paging.PhysicalAddress, pageSize uint64) bool {
	remaining := uint64(vend) - uint64(v)
	return remaining >= pageSize && v.AlignedTo(pageSize) && p.AlignedTo(pageSize)
}

// MapRangeUseAllPageSizes implements mapRangeUseAllPageSizes: at each step
// of an optimistic scan across [vstart, vend), installs the largest page
// size that the remaining size and alignment of both v and p admit (1 GiB
// only if the CPU supports it), falling back to 2 MiB then 4 KiB. No
// attempt is made to coalesce existing smaller mappings.
func (as *AddressSpace) MapRangeUseAllPageSizes(vstart, vend paging.VirtualAddress, pstart paging.PhysicalAddress, mt paging.MapType) *kernel.Error {
	gibSupported := gigabytePagesSupportedFn()

	v, p := vstart, pstart
	for v < vend {
		switch {
		case gibSupported && canUseLargePage(v, vend, p, paging.LargePageSize):
			e, err := as.entryForHugeLeaf(v, mt, 3)
			if err != nil {
				return err
			}
			if e.Present() {
				return ErrAlreadyMapped
			}
			e.SetHuge(true)
			e.SetFrame1G(p)
			mt.ApplyLeaf(e)
			v, p = v.Add(paging.LargePageSize), p.Add(paging.LargePageSize)

		case canUseLargePage(v, vend, p, paging.MediumPageSize):
			e, err := as.entryForHugeLeaf(v, mt, 2)
			if err != nil {
				return err
			}
			if e.Present() {
				return ErrAlreadyMapped
			}
			e.SetHuge(true)
			e.SetFrame2M(p)
			mt.ApplyLeaf(e)
			v, p = v.Add(paging.MediumPageSize), p.Add(paging.MediumPageSize)

		default:
			leaf, err := as.walkToL1(v, mt)
			if err != nil {
				return err
			}
			if leaf.Present() {
				return ErrAlreadyMapped
			}
			leaf.SetFrame4K(p)
			mt.ApplyLeaf(leaf)
			v, p = v.Add(paging.SmallPageSize), p.Add(paging.SmallPageSize)
		}
	}
	return nil
}

// entryForHugeLeaf walks down to (but not through) the table at the given
// leaf level, allocating intermediate tables as needed, and returns the
// entry at that level for vaddr.
func (as *AddressSpace) entryForHugeLeaf(vaddr paging.VirtualAddress, mt paging.MapType, leafLevel uint8) (*paging.Entry, *kernel.Error) {
	tbl := as.L4()
	for level := uint8(4); level > leafLevel; level-- {
		e := tbl.EntryAt(level, vaddr)
		next, err := EnsureNextTable(e, mt)
		if err != nil {
			return nil, err
		}
		tbl = next
	}
	return tbl.EntryAt(leafLevel, vaddr), nil
}

// UnmapRange clears the leaf entry (of whatever size it was installed as)
// covering every page in [vstart, vend), flushing the TLB for each cleared
// entry. Returns ErrNotMapped the first time a page in the range was never
// mapped.
func (as *AddressSpace) UnmapRange(vstart, vend paging.VirtualAddress) *kernel.Error {
	v := vstart
	for v < vend {
		tbl := as.L4()
		var e *paging.Entry
		level := uint8(4)
		for {
			e = tbl.EntryAt(level, v)
			if !e.Present() {
				return ErrNotMapped
			}
			if level == 1 || e.Huge() {
				break
			}
			next, err := paging.NextLevel(e)
			if err != nil {
				return ErrNotMapped
			}
			tbl = next
			level--
		}

		step := uint64(paging.SmallPageSize)
		switch level {
		case 3:
			step = paging.LargePageSize
		case 2:
			if e.Huge() {
				step = paging.MediumPageSize
			}
		}

		*e = 0
		flushTLBEntryFn(v.Uintptr())
		v = v.Add(step)
	}
	return nil
}

// SwitchToPageTable implements switchToPageTable: writes the physical
// address of this address space's L4 table, as recorded when the address
// space was created, to CR3.
func (as *AddressSpace) SwitchToPageTable() {
	writeCR3Fn(as.l4Phys.Uint64())
}

// ReserveHeapRange implements getHeapRangeAndFillFirstLevel: a one-shot
// call at init that finds the first unbacked L4 slot at or after
// higher_half, installs a fresh L3 table for it with global+writeable
// flags, and returns the 512 GiB virtual range that slot now covers.
func (as *AddressSpace) ReserveHeapRange(higherHalf paging.VirtualAddress) (paging.VirtualAddress, paging.VirtualAddress, *kernel.Error) {
	l4 := as.L4()
	startIndex := paging.IndexAtLevel(4, higherHalf)

	for i := startIndex; i < paging.EntriesPerTable; i++ {
		e := l4.RawEntryAt(i)
		if e.Present() {
			continue
		}

		phys, err := allocZeroedFrame()
		if err != nil {
			return 0, 0, ErrAllocationFailed
		}
		e.SetFrame4K(phys)
		e.SetPresent(true)
		e.SetWriteable(true)
		e.SetGlobal(true)

		rangeStart := paging.NewVirtualAddress(uint64(i) << 39)
		rangeEnd := paging.NewVirtualAddress((uint64(i) + 1) << 39)
		return rangeStart, rangeEnd, nil
	}

	return 0, 0, ErrAllocationFailed
}
