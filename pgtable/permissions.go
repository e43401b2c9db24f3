package pgtable

import (
	"fmt"

	"github.com/mesokern/paging/pte"
)

// mergeBitsFor computes the merge-disable bits of a block at [virt, virt+size) inside the range
// [start, end) being rewritten with directive. Disabling directives only touch the ends of the
// range; enabling directives clear the bits wherever they are found.
func mergeBitsFor(current pte.SoftwareReservedBits, directive pte.DisableMergeAttribute, virt, start, end pte.VirtAddr, size uint64) pte.SoftwareReservedBits {
	bits := current

	if virt == start {
		if directive&pte.DisableMergeAttributeDisableHead != 0 {
			bits |= pte.SoftwareReservedDisableMergeHead
		}
		if directive&pte.DisableMergeAttributeDisableHeadAndBody != 0 {
			bits |= pte.SoftwareReservedDisableMergeHeadAndBody
		}
	}
	if virt+pte.VirtAddr(size) == end && directive&pte.DisableMergeAttributeDisableTail != 0 {
		bits |= pte.SoftwareReservedDisableMergeTail
	}

	if directive&pte.DisableMergeAttributeEnableHeadAndBody != 0 {
		bits &^= pte.SoftwareReservedDisableMergeHead | pte.SoftwareReservedDisableMergeHeadAndBody
	}
	if directive&pte.DisableMergeAttributeEnableTail != 0 {
		bits &^= pte.SoftwareReservedDisableMergeTail
	}
	if directive&pte.DisableMergeAttributeEnableAndMergeHeadBodyTail != 0 {
		bits = pte.SoftwareReservedNone
	}

	return bits
}

// applyEntryTemplate rewrites every block in [virt, virt+numPages) with template. The range must
// already be separated at both ends. When merge is set, any larger aligned block that the rewrite
// completes is folded immediately, as long as the fold covers only entries already rewritten.
func (s *AddressSpace) applyEntryTemplate(virt pte.VirtAddr, numPages int, template pte.Entry, directive pte.DisableMergeAttribute, merge bool, flush bool, pageList *PageList) {
	start := virt
	end := virt + pte.VirtAddr(uint64(numPages)*pte.PageSize)

	for virt < end {
		entry, ctx, ok := s.beginTraversal(virt)
		if !ok {
			panic(fmt.Sprintf("changing permissions of unmapped address %#x", virt))
		}

		size := entry.BlockSize
		if offset := uint64(entry.PhysAddr) & (size - 1); offset != 0 {
			// An earlier fold in this pass already rewrote this block
			virt += pte.VirtAddr(size - offset)
			continue
		}
		if size > uint64(end-virt) {
			panic(fmt.Sprintf("block of %#x bytes at %#x extends past the range", size, virt))
		}

		bits := mergeBitsFor(entry.SoftwareReservedBits, directive, virt, start, end, size)

		if flush && s.memory.IsHeapPhysicalAddress(entry.PhysAddr) {
			s.arch.FlushDataCache(entry.PhysAddr, size)
		}

		if ctx.isContiguous {
			group := s.groupStart(&ctx, ctx.level, pte.BlocksPerContiguousBlock)
			step := ctx.level.BlockSize()
			for i := range group {
				group[i].Store(pte.NewBlockEntry(ctx.level, entry.PhysAddr+pte.PhysAddr(uint64(i)*step), template, bits, true))
				bits &^= pte.SoftwareReservedDisableMergeHead
			}
		} else {
			s.slot(&ctx, ctx.level).Store(pte.NewBlockEntry(ctx.level, entry.PhysAddr, template, bits, false))
		}

		if merge && size != pte.L1BlockSize {
			larger := pte.LargerAlignment(size)
			next := uint64(virt) + size
			if next&(larger-1) == 0 && next-larger >= uint64(start) && next <= uint64(end) {
				s.mergePagesWithin(&ctx, virt, start, pte.VirtAddr(next-1), pageList)
			}
		}

		virt += pte.VirtAddr(size)
	}
}

// changePermissions rewrites the attributes of a mapped range. A refreshed change first makes the
// whole range fault, waits for every core to pass the scheduler, and only then installs the new
// attributes.
func (s *AddressSpace) changePermissions(virt pte.VirtAddr, numPages int, template pte.Entry, directive pte.DisableMergeAttribute, refresh bool, flush bool, pageList *PageList, reuse bool) error {
	if err := s.separatePages(virt, numPages, pageList, reuse); err != nil {
		return err
	}

	if !refresh {
		s.applyEntryTemplate(virt, numPages, template, directive, true, false, pageList)
		s.noteUpdated()
	} else {
		s.applyEntryTemplate(virt, numPages, template.WithMapped(false), directive, false, false, pageList)
		s.noteUpdated()

		s.scheduler.Lock()
		s.scheduler.Unlock()

		s.applyEntryTemplate(virt, numPages, template, pte.DisableMergeAttributeNone, true, flush, pageList)
		s.noteUpdated()
	}

	s.mergePages(virt, numPages, pageList)
	return nil
}
