package pgtable

import (
	"fmt"

	"github.com/mesokern/paging/memutils"
	"github.com/mesokern/paging/pte"
)

// AlignedMemoryBlock hands out aligned runs of pages from a range. The range is split at its first
// aligned page into a before part, consumed from its end, and an after part, consumed from its
// start. Page numbers are tracked rather than addresses.
type AlignedMemoryBlock struct {
	beforeStart uint64
	beforeEnd   uint64
	afterStart  uint64
	afterEnd    uint64
	alignment   uint64
}

// NewAlignedMemoryBlock creates a block over numPages pages at start. The alignment is reduced
// until the range holds at least one aligned run.
func NewAlignedMemoryBlock(start uint64, numPages int, alignment uint64) *AlignedMemoryBlock {
	if !memutils.IsAligned(start, pte.PageSize) {
		panic(fmt.Sprintf("aligned block start %#x is not page aligned", start))
	}
	if numPages <= 0 {
		panic(fmt.Sprintf("aligned block of %d pages", numPages))
	}

	startPage := start / pte.PageSize
	endPage := startPage + uint64(numPages)

	for memutils.AlignUp(startPage, alignment/pte.PageSize) >= memutils.AlignDown(endPage, alignment/pte.PageSize) {
		alignment = pte.SmallerAlignment(alignment)
	}

	alignPages := alignment / pte.PageSize
	split := memutils.AlignUp(startPage, alignPages)
	return &AlignedMemoryBlock{
		beforeStart: startPage,
		beforeEnd:   split,
		afterStart:  split,
		afterEnd:    endPage,
		alignment:   alignPages,
	}
}

// SetAlignment lowers the alignment of runs handed out from now on
func (b *AlignedMemoryBlock) SetAlignment(alignment uint64) {
	memutils.DebugCheckPow2(alignment, "alignment")

	alignPages := alignment / pte.PageSize
	if alignPages > b.alignment {
		panic(fmt.Sprintf("cannot raise aligned block alignment from %#x to %#x", b.Alignment(), alignment))
	}
	b.alignment = alignPages
}

func (b *AlignedMemoryBlock) Alignment() uint64 {
	return b.alignment * pte.PageSize
}

// Available returns how many pages the next FindBlock with no limit would hand out
func (b *AlignedMemoryBlock) Available() int {
	switch {
	case b.afterEnd-b.afterStart >= b.alignment:
		return int(memutils.AlignDown(b.afterEnd, b.alignment) - b.afterStart)
	case b.beforeEnd-b.beforeStart >= b.alignment:
		return int(b.beforeEnd - memutils.AlignUp(b.beforeStart, b.alignment))
	}
	return 0
}

// FindBlock consumes an aligned run of at most numPages pages, or of every aligned page in the
// chosen part when numPages is zero. It returns the address of the run and its size in pages,
// which is zero once no aligned run remains.
func (b *AlignedMemoryBlock) FindBlock(numPages int) (uint64, int) {
	switch {
	case b.afterEnd-b.afterStart >= b.alignment:
		available := int(memutils.AlignDown(b.afterEnd, b.alignment) - b.afterStart)
		if numPages == 0 || available < numPages {
			numPages = available
		}

		out := b.afterStart * pte.PageSize
		b.afterStart += uint64(numPages)
		return out, numPages

	case b.beforeEnd-b.beforeStart >= b.alignment:
		available := int(b.beforeEnd - memutils.AlignUp(b.beforeStart, b.alignment))
		if numPages == 0 || available < numPages {
			numPages = available
		}

		b.beforeEnd -= uint64(numPages)
		return b.beforeEnd * pte.PageSize, numPages
	}

	return 0, 0
}
