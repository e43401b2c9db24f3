package pte

import (
	"fmt"
	"sync/atomic"
)

// Entry is a single 64-bit descriptor in a paging table. Depending on its type bits it is empty,
// a table descriptor pointing at the next level, or a block descriptor mapping memory.
type Entry uint64

const (
	// EntryMapped is the hardware valid bit. A block with this bit clear is tracked by software but
	// faults on access.
	EntryMapped Entry = 1 << 0
	entryTable  Entry = 1 << 1

	entryAttrIndexShift        = 2
	entryAttrIndexMask   Entry = 0x7 << entryAttrIndexShift
	entryUserAccessible  Entry = 1 << 6
	entryReadOnly        Entry = 1 << 7
	entryShareableShift        = 8
	entryShareableMask   Entry = 0x3 << entryShareableShift
	entryAccessFlag      Entry = 1 << 10
	entryNotGlobal       Entry = 1 << 11
	entryContiguous      Entry = 1 << 52
	entryPrivilegedXN    Entry = 1 << 53
	entryUserXN          Entry = 1 << 54
	entrySoftwareShift         = 55
	entrySoftwareMask    Entry = 0x7 << entrySoftwareShift
	entrySoftwareValid   Entry = 1 << 58
	entryTablePXN        Entry = 1 << 59
	entryTableKernelMask Entry = 0x3 << 60

	entryAddressMask Entry = 0x0000_FFFF_FFFF_F000

	// entryTestTableMask distinguishes the entry kinds: empty (0), table (entryTable),
	// L1/L2 block (entrySoftwareValid), L3 page (both)
	entryTestTableMask Entry = entrySoftwareValid | entryTable

	entryAttributeMask Entry = 0xFFFF_0000_0000_0FFF
	entryMergeMask           = entryAttributeMask &^ (entryContiguous | entryTestTableMask | entrySoftwareMask)
	entrySeparateMask        = entryAttributeMask &^ (entryContiguous | entrySoftwareMask)
)

// SoftwareReservedBits records which merges of an entry's neighbourhood are forbidden. They live in
// descriptor bits ignored by hardware.
type SoftwareReservedBits uint8

const (
	// SoftwareReservedDisableMergeHead marks the first page of a mapping: it may not merge with
	// anything before it
	SoftwareReservedDisableMergeHead SoftwareReservedBits = 1 << iota
	// SoftwareReservedDisableMergeHeadAndBody marks pages that may not be merged into a larger block at all
	SoftwareReservedDisableMergeHeadAndBody
	// SoftwareReservedDisableMergeTail marks the last page of a mapping: it may not merge with
	// anything after it
	SoftwareReservedDisableMergeTail

	SoftwareReservedNone SoftwareReservedBits = 0
	softwareReservedAll                       = SoftwareReservedDisableMergeHead | SoftwareReservedDisableMergeHeadAndBody | SoftwareReservedDisableMergeTail
)

func (b SoftwareReservedBits) entry() Entry {
	return Entry(b&softwareReservedAll) << entrySoftwareShift
}

// EmptyEntry is the value of an unused slot
const EmptyEntry Entry = 0

// NewTableEntry builds a descriptor pointing at the next-level table stored at table. Kernel tables
// additionally forbid user access to everything below them.
func NewTableEntry(table PhysAddr, isKernel bool, privilegedExecuteNever bool) Entry {
	e := Entry(table)&entryAddressMask | entryTable | EntryMapped
	if isKernel {
		e |= entryTableKernelMask
	}
	if privilegedExecuteNever {
		e |= entryTablePXN
	}
	return e
}

// NewBlockEntry builds a block descriptor at level mapping phys with the attributes in template
func NewBlockEntry(level Level, phys PhysAddr, template Entry, bits SoftwareReservedBits, contiguous bool) Entry {
	if uint64(phys)&(level.BlockSize()-1) != 0 {
		panic(fmt.Sprintf("physical address %#x is not aligned to %s block size", phys, level))
	}

	e := template&entryMergeMask | Entry(phys)&entryAddressMask | bits.entry() | entrySoftwareValid
	if level == LevelL3 {
		e |= entryTable
	}
	if contiguous {
		e |= entryContiguous
	}
	return e
}

// Load reads the entry with a single atomic access; hardware walkers may read the table concurrently
func (e *Entry) Load() Entry {
	return Entry(atomic.LoadUint64((*uint64)(e)))
}

// Store writes the entry with a single atomic access
func (e *Entry) Store(v Entry) {
	atomic.StoreUint64((*uint64)(e), uint64(v))
}

func (e Entry) IsEmpty() bool {
	return e&entryTestTableMask == 0
}

func (e Entry) IsTable() bool {
	return e&entryTestTableMask == entryTable
}

// IsMappedTable reports whether the entry is a table descriptor the hardware will walk through
func (e Entry) IsMappedTable() bool {
	return e.IsTable() && e&EntryMapped != 0
}

// IsBlock reports whether the entry is a block descriptor for the given level. L3 blocks carry
// the table bit in addition to the software valid bit.
func (e Entry) IsBlock(level Level) bool {
	if level == LevelL3 {
		return e&entryTestTableMask == entryTestTableMask
	}
	return e&entryTestTableMask == entrySoftwareValid
}

// IsMappedBlock reports whether the entry is a block at level that the hardware will translate through
func (e Entry) IsMappedBlock(level Level) bool {
	return e.IsBlock(level) && e&EntryMapped != 0
}

func (e Entry) IsMapped() bool {
	return e&EntryMapped != 0
}

func (e Entry) IsContiguous() bool {
	return e&entryContiguous != 0
}

// Address returns the physical address an entry refers to: the next table for table descriptors
// or the start of the mapped block
func (e Entry) Address() PhysAddr {
	return PhysAddr(e & entryAddressMask)
}

// Block returns the base of the block at level that this entry maps
func (e Entry) Block(level Level) PhysAddr {
	return PhysAddr(uint64(e&entryAddressMask) &^ (level.BlockSize() - 1))
}

func (e Entry) SoftwareReservedBits() SoftwareReservedBits {
	return SoftwareReservedBits((e & entrySoftwareMask) >> entrySoftwareShift)
}

func (e Entry) IsHeadMergeDisabled() bool {
	return e.SoftwareReservedBits()&SoftwareReservedDisableMergeHead != 0
}

func (e Entry) IsHeadAndBodyMergeDisabled() bool {
	return e.SoftwareReservedBits()&SoftwareReservedDisableMergeHeadAndBody != 0
}

func (e Entry) IsTailMergeDisabled() bool {
	return e.SoftwareReservedBits()&SoftwareReservedDisableMergeTail != 0
}

// WithSoftwareReservedBits replaces the merge-disable bits of the entry
func (e Entry) WithSoftwareReservedBits(bits SoftwareReservedBits) Entry {
	return e&^entrySoftwareMask | bits.entry()
}

// WithMapped sets or clears the hardware valid bit
func (e Entry) WithMapped(mapped bool) Entry {
	if mapped {
		return e | EntryMapped
	}
	return e &^ EntryMapped
}

func (e Entry) WithContiguous(contiguous bool) Entry {
	if contiguous {
		return e | entryContiguous
	}
	return e &^ entryContiguous
}

// TypeBits returns only the bits that identify the entry kind
func (e Entry) TypeBits() Entry {
	return e & entryTestTableMask
}

// TemplateForMerge strips an entry down to the attributes that must agree for neighbours to merge.
// Address, contiguous hint, type, and merge-disable bits are removed.
func (e Entry) TemplateForMerge() Entry {
	return e & entryMergeMask
}

// IsForMerge reports whether e equals want once its merge-disable bits are ignored
func (e Entry) IsForMerge(want Entry) bool {
	return e&^entrySoftwareMask == want
}

// separatedFrom produces the attribute bits a finer child inherits when its parent block is split.
// The head bits stay on the first child, the head-and-body bit on the first contiguous group, and
// the tail bit on the last child.
func (e Entry) separatedFrom(index int) Entry {
	attr := e & (entrySeparateMask &^ entryTestTableMask)
	bits := e.SoftwareReservedBits()
	var keep SoftwareReservedBits
	switch {
	case index == 0:
		keep = bits & (SoftwareReservedDisableMergeHead | SoftwareReservedDisableMergeHeadAndBody)
	case index < BlocksPerContiguousBlock:
		keep = bits & SoftwareReservedDisableMergeHeadAndBody
	case index < EntriesPerTable-1:
		keep = SoftwareReservedNone
	default:
		keep = bits & SoftwareReservedDisableMergeTail
	}
	return attr | keep.entry()
}

// separatedContiguousFrom produces the bits each entry of a contiguous group keeps when the group
// is broken into independent entries. Type bits are preserved.
func (e Entry) separatedContiguousFrom(index int) Entry {
	attr := e & entrySeparateMask
	bits := e.SoftwareReservedBits()
	var keep SoftwareReservedBits
	switch {
	case index == 0:
		keep = bits & (SoftwareReservedDisableMergeHead | SoftwareReservedDisableMergeHeadAndBody)
	case index < BlocksPerContiguousBlock-1:
		keep = SoftwareReservedNone
	default:
		keep = bits & SoftwareReservedDisableMergeTail
	}
	return attr | keep.entry()
}

// SeparateBlock returns the child entry at index of the finer table that replaces e, a block at level
func (e Entry) SeparateBlock(level Level, index int) Entry {
	if level == LevelL3 {
		panic("cannot separate an L3 block")
	}
	child := level - 1
	phys := e.Block(level) + PhysAddr(uint64(index)*child.BlockSize())
	attr := e.separatedFrom(index)
	return NewBlockEntry(child, phys, attr, attr.SoftwareReservedBits(), true)
}

// SeparateContiguous returns e, the entry in slot index of a contiguous group, with its contiguous
// hint removed. Only the first slot keeps head bits and only the last keeps the tail bit.
func (e Entry) SeparateContiguous(index int) Entry {
	return e.separatedContiguousFrom(index) | e&entryAddressMask
}
