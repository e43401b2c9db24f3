package pgtable

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/mesokern/paging/memutils"
	"github.com/mesokern/paging/pte"
)

// boundarySize returns the largest block size that keeps addr a block boundary, bounded by limit
func boundarySize(addr uint64, limit uint64) uint64 {
	alignment := memutils.Alignment(addr)
	if alignment == 0 || alignment > limit {
		return limit
	}
	return alignment
}

// separatePagesImpl splits the block under the cursor until the block containing virt is no larger
// than size. Splitting a contiguous group only drops its hint; splitting a block needs a new table.
// On failure whatever was split is merged back.
func (s *AddressSpace) separatePagesImpl(entry *TraversalEntry, ctx *TraversalContext, virt pte.VirtAddr, size uint64, pageList *PageList, reuse bool) error {
	for entry.BlockSize > size {
		if ctx.isContiguous {
			group := s.groupStart(ctx, ctx.level, pte.BlocksPerContiguousBlock)
			for i := range group {
				group[i].Store(group[i].Load().SeparateContiguous(i))
			}
		} else {
			if ctx.level == pte.LevelL3 {
				panic(fmt.Sprintf("cannot separate the page at %#x", virt))
			}

			table, ok := s.allocatePageTable(pageList, reuse)
			if !ok {
				s.mergePagesCtx(ctx, pageList)
				return errors.Wrapf(memutils.ErrOutOfResource, "allocating table to separate %#x", virt)
			}

			parent := s.slot(ctx, ctx.level)
			block := parent.Load()
			children := s.tables.Table(table)
			for i := range children {
				children[i].Store(block.SeparateBlock(ctx.level, i))
			}
			s.tables.Open(table, pte.EntriesPerTable)

			s.arch.DataSynchronizationBarrier()
			parent.Store(pte.NewTableEntry(table, s.isKernel, true))

			ctx.level--
			ctx.tables[ctx.level] = table
			ctx.indices[ctx.level] = ctx.level.Index(virt)
		}

		*entry, _ = s.describe(ctx)
		entry.PhysAddr += pte.PhysAddr(uint64(virt) & (entry.BlockSize - 1))

		s.noteUpdated()
	}

	return nil
}

// separatePages makes the first and last page of [virt, virt+numPages) block boundaries so the
// range can be rewritten without touching its neighbours
func (s *AddressSpace) separatePages(virt pte.VirtAddr, numPages int, pageList *PageList, reuse bool) error {
	size := uint64(numPages) * pte.PageSize

	entry, startCtx, ok := s.beginTraversal(virt)
	if !ok {
		panic(fmt.Sprintf("separating unmapped address %#x", virt))
	}
	if err := s.separatePagesImpl(&entry, &startCtx, virt, boundarySize(uint64(virt), size), pageList, reuse); err != nil {
		return err
	}

	if numPages > 1 {
		end := virt + pte.VirtAddr(size)
		last := end - pte.VirtAddr(pte.PageSize)

		entry, endCtx, ok := s.beginTraversal(last)
		if !ok {
			panic(fmt.Sprintf("separating unmapped address %#x", last))
		}
		if err := s.separatePagesImpl(&entry, &endCtx, last, boundarySize(uint64(end), size), pageList, reuse); err != nil {
			s.mergePagesCtx(&startCtx, pageList)
			return err
		}
	}

	return nil
}
