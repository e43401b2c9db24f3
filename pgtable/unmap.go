package pgtable

import (
	"fmt"

	"github.com/mesokern/paging/physmem"
	"github.com/mesokern/paging/pte"
)

// releaseTable drops count references from the table under the cursor at level. When the table
// empties, the parent entry is cleared and the table freed, which in turn drops a reference from
// the parent table.
func (s *AddressSpace) releaseTable(ctx *TraversalContext, level pte.Level, count int, pageList *PageList) {
	if level >= pte.LevelL1 {
		return
	}

	table := ctx.tables[level]
	if !s.tables.IsInTableHeap(table) || !s.tables.Close(table, count) {
		return
	}

	s.slot(ctx, level+1).Store(pte.EmptyEntry)
	s.noteUpdated()
	s.freePageTable(pageList, table)

	s.releaseTable(ctx, level+1, 1, pageList)
}

// unmap clears every mapping in [virt, virt+numPages). A forced unmap tolerates holes and oversized
// blocks and leaves physical references alone; it is used to roll back a failed map.
func (s *AddressSpace) unmap(virt pte.VirtAddr, numPages int, pageList *PageList, force bool, reuse bool) error {
	if !force {
		if err := s.separatePages(virt, numPages, pageList, reuse); err != nil {
			return err
		}
	}

	pagesToClose := physmem.NewPageGroup(s.memory, s.maxPendingCloseBlocks)
	flushPending := func() {
		pagesToClose.Close()
		pagesToClose.Finalize()
	}

	origVirt := virt
	remaining := uint64(numPages) * pte.PageSize
	for remaining > 0 {
		entry, ctx, valid := s.beginTraversal(virt)

		if !valid {
			if !force {
				panic(fmt.Sprintf("unmapping unmapped address %#x", virt))
			}

			skip := remaining
			if size := entry.BlockSize; size != 0 {
				skip = size - uint64(virt)&(size-1)
				if skip > remaining {
					skip = remaining
				}
			}
			virt += pte.VirtAddr(skip)
			remaining -= skip
			continue
		}

		if entry.BlockSize > remaining || uint64(virt)&(entry.BlockSize-1) != 0 {
			if !force {
				panic(fmt.Sprintf("block of %#x bytes at %#x extends past the unmapped range", entry.BlockSize, virt))
			}
			if err := s.separatePagesImpl(&entry, &ctx, virt, boundarySize(uint64(virt), remaining), pageList, reuse); err != nil {
				panic(fmt.Sprintf("separating %#x for a forced unmap: %+v", virt, err))
			}
		}

		count := 1
		if ctx.isContiguous {
			count = pte.BlocksPerContiguousBlock
		}
		for i, group := 0, s.groupStart(&ctx, ctx.level, count); i < count; i++ {
			group[i].Store(pte.EmptyEntry)
		}
		s.arch.DataSynchronizationBarrier()

		s.releaseTable(&ctx, ctx.level, count, pageList)

		if !force && s.memory.IsHeapPhysicalAddress(entry.PhysAddr) {
			blockPages := pagesPer(entry.BlockSize)
			if err := pagesToClose.AddBlock(entry.PhysAddr, blockPages); err != nil {
				s.noteUpdated()
				s.memory.Close(entry.PhysAddr, blockPages)
				flushPending()
			}
		}

		virt += pte.VirtAddr(entry.BlockSize)
		remaining -= entry.BlockSize
	}

	if s.isKernel && numPages == 1 {
		s.noteSingleKernelPageUpdated(origVirt)
	} else {
		s.noteUpdated()
	}

	flushPending()
	return nil
}
