package pgtable

import (
	"fmt"

	"github.com/mesokern/paging/pte"
)

// canMergeInto reports whether e, slot index of a run of count slots, may be folded into a larger
// block: it must map exactly want, and no merge-disable bit may forbid the fold at its position
func canMergeInto(e pte.Entry, want pte.Entry, index int, count int) bool {
	if !e.IsForMerge(want) {
		return false
	}
	if index > 0 && (e.IsHeadMergeDisabled() || e.IsHeadAndBodyMergeDisabled()) {
		return false
	}
	if index < count-1 && e.IsTailMergeDisabled() {
		return false
	}
	return true
}

func mergedBits(head pte.Entry, tail pte.Entry) pte.SoftwareReservedBits {
	bits := pte.SoftwareReservedNone
	if head.IsHeadMergeDisabled() {
		bits |= pte.SoftwareReservedDisableMergeHead
	}
	if head.IsHeadAndBodyMergeDisabled() {
		bits |= pte.SoftwareReservedDisableMergeHeadAndBody
	}
	if tail.IsTailMergeDisabled() {
		bits |= pte.SoftwareReservedDisableMergeTail
	}
	return bits
}

// mergeStep raises the mapping under the cursor by one step: 16 aligned entries become a
// contiguous group, or a table of contiguous groups becomes one block at the parent level. It
// returns the table that was emptied by a fold into the parent.
func (s *AddressSpace) mergeStep(ctx *TraversalContext) (pte.PhysAddr, bool, bool) {
	level := ctx.level

	if ctx.isContiguous {
		if level == pte.LevelL1 {
			return 0, false, false
		}

		entries := s.groupStart(ctx, level, pte.EntriesPerTable)
		first := entries[0].Load()
		if !first.IsBlock(level) {
			return 0, false, false
		}

		parentLevel := level + 1
		phys := first.Block(parentLevel)
		template := first.TemplateForMerge()
		for i := 0; i < pte.EntriesPerTable; i += pte.BlocksPerContiguousBlock {
			want := template | pte.Entry(phys+pte.PhysAddr(uint64(i)*level.BlockSize())) | first.TypeBits()
			want = want.WithContiguous(true)
			if !canMergeInto(entries[i].Load(), want, i/pte.BlocksPerContiguousBlock, pte.EntriesPerTable/pte.BlocksPerContiguousBlock) {
				return 0, false, false
			}
		}

		bits := mergedBits(first, entries[pte.EntriesPerTable-1].Load())
		freed := ctx.tables[level]

		s.slot(ctx, parentLevel).Store(pte.NewBlockEntry(parentLevel, phys, template, bits, false))

		ctx.level = parentLevel
		ctx.isContiguous = false
		return freed, true, true
	}

	entries := s.groupStart(ctx, level, pte.BlocksPerContiguousBlock)
	first := entries[0].Load()
	if !first.IsBlock(level) {
		return 0, false, false
	}

	phys := pte.PhysAddr(uint64(first.Block(level)) &^ (level.ContiguousBlockSize() - 1))
	template := first.TemplateForMerge()
	for i := range entries {
		want := template | pte.Entry(phys+pte.PhysAddr(uint64(i)*level.BlockSize())) | first.TypeBits()
		if !canMergeInto(entries[i].Load(), want, i, pte.BlocksPerContiguousBlock) {
			return 0, false, false
		}
	}

	bits := mergedBits(first, entries[pte.BlocksPerContiguousBlock-1].Load())
	for i := range entries {
		entries[i].Store(pte.NewBlockEntry(level, phys+pte.PhysAddr(uint64(i)*level.BlockSize()), template, bits, true))
	}

	ctx.isContiguous = true
	return 0, false, true
}

// foldedSize returns the size of the block the next mergeStep would produce, or zero when the
// mapping under the cursor cannot grow any further
func foldedSize(ctx *TraversalContext) uint64 {
	if !ctx.isContiguous {
		return ctx.level.ContiguousBlockSize()
	}
	if ctx.level == pte.LevelL1 {
		return 0
	}
	return (ctx.level + 1).BlockSize()
}

// mergePagesCtx folds the mapping under the cursor into larger blocks for as long as it can
func (s *AddressSpace) mergePagesCtx(ctx *TraversalContext, pageList *PageList) {
	s.mergePagesWithin(ctx, 0, 0, ^pte.VirtAddr(0), pageList)
}

// mergePagesWithin folds the mapping under the cursor at virt for as long as the folded block
// stays inside [first, last]
func (s *AddressSpace) mergePagesWithin(ctx *TraversalContext, virt, first, last pte.VirtAddr, pageList *PageList) {
	for {
		size := foldedSize(ctx)
		if size == 0 {
			return
		}
		base := virt &^ pte.VirtAddr(size-1)
		if base < first || base+pte.VirtAddr(size-1) > last {
			return
		}

		freed, haveFreed, merged := s.mergeStep(ctx)
		if !merged {
			return
		}

		s.noteUpdated()

		if haveFreed {
			if !s.tables.Close(freed, pte.EntriesPerTable) {
				panic(fmt.Sprintf("merged table %#x is still referenced", freed))
			}
			s.tables.Table(freed).Clear()
			s.freePageTable(pageList, freed)
		}
	}
}

// mergePages merges around the first and last page of [virt, virt+numPages)
func (s *AddressSpace) mergePages(virt pte.VirtAddr, numPages int, pageList *PageList) {
	_, ctx, ok := s.beginTraversal(virt)
	if !ok {
		panic(fmt.Sprintf("merging unmapped address %#x", virt))
	}
	s.mergePagesCtx(&ctx, pageList)

	if numPages > 1 {
		last := virt + pte.VirtAddr(uint64(numPages-1)*pte.PageSize)
		_, ctx, ok = s.beginTraversal(last)
		if !ok {
			panic(fmt.Sprintf("merging unmapped address %#x", last))
		}
		s.mergePagesCtx(&ctx, pageList)
	}
}
