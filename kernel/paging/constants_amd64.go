package paging

// Page sizes supported by the amd64 paging hierarchy.
const (
	SmallPageSize  = 1 << 12 // 4 KiB, L1 leaf
	MediumPageSize = 1 << 21 // 2 MiB, L2 leaf
	LargePageSize  = 1 << 30 // 1 GiB, L3 leaf

	// EntriesPerTable is the fixed fan-out of every level of the
	// hierarchy: 9 index bits per level.
	EntriesPerTable = 512

	// NumLevels is the depth of the hierarchy this package implements.
	// spec.md's Non-goals explicitly exclude 5-level paging.
	NumLevels = 4

	// maxPhysAddr is the number of physical address bits this build
	// assumes (spec.md §4.2 "adjustable"). It determines the width of
	// the frame-number field carried by an Entry.
	maxPhysAddr = 39

	// frameMask isolates bits [12, maxPhysAddr) of a raw entry, the
	// field that (depending on leaf level) holds a 4 KiB, 2 MiB or 1 GiB
	// aligned physical frame number.
	frameMask = uint64((1<<maxPhysAddr)-1) &^ 0xfff

	// HigherHalf is the first kernel-virtual address; everything below
	// it is user space.
	HigherHalf = VirtualAddress(0xffff800000000000)
)

// levelShift returns the bit position at which the index for level
// (1-based, 1=L1..4=L4) starts within a virtual address.
func levelShift(level uint8) uint8 {
	return 12 + 9*(level-1)
}
