package pgtable

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/mesokern/paging/memutils"
	"github.com/mesokern/paging/pte"
)

func pagesPer(size uint64) int {
	return int(size / pte.PageSize)
}

func headMergeBits(disableHeadMerge bool) pte.SoftwareReservedBits {
	if disableHeadMerge {
		return pte.SoftwareReservedDisableMergeHead
	}
	return pte.SoftwareReservedNone
}

func assertEmptySlot(slot *pte.Entry, virt pte.VirtAddr) {
	if e := slot.Load(); !e.IsEmpty() {
		panic(fmt.Sprintf("mapping %#x over live entry %#x", virt, uint64(e)))
	}
}

// rollback removes every entry in the range after a failed map. Forced unmapping needs no new
// tables for ranges this address space mapped itself, so failure here is fatal.
func (s *AddressSpace) rollback(virt pte.VirtAddr, numPages int, pageList *PageList) {
	if err := s.unmap(virt, numPages, pageList, true, true); err != nil {
		panic(fmt.Sprintf("rolling back mapping at %#x: %+v", virt, err))
	}
}

// mapContiguous maps a physically contiguous range with the largest blocks the shared alignment
// of virt and phys allows
func (s *AddressSpace) mapContiguous(virt pte.VirtAddr, phys pte.PhysAddr, numPages int, template pte.Entry, disableHeadMerge bool, pageList *PageList, reuse bool) error {
	origVirt, origPhys := virt, phys
	remaining := numPages

	mapPages := func(pages int, size uint64) error {
		err := s.mapBlocks(virt, phys, pages, template, disableHeadMerge && virt == origVirt, size, pageList, reuse)
		if err != nil {
			return err
		}
		remaining -= pages
		virt += pte.VirtAddr(uint64(pages) * pte.PageSize)
		phys += pte.PhysAddr(uint64(pages) * pte.PageSize)
		return nil
	}

	err := func() error {
		if numPages < pagesPer(pte.ContiguousPageSize) {
			return mapPages(numPages, pte.L3BlockSize)
		}

		// Climb while virt and phys agree modulo the alignment, mapping the head fraction below it
		alignment := pte.ContiguousPageSize
		atL1 := false
		for uint64(virt)&(alignment-1) == uint64(phys)&(alignment-1) {
			fraction := pagesPer((alignment - uint64(virt)&(alignment-1)) & (alignment - 1))
			if fraction+pagesPer(alignment) > remaining {
				break
			}

			if fraction > 0 {
				if err := mapPages(fraction, pte.SmallerAlignment(alignment)); err != nil {
					return err
				}
			}

			if alignment == pte.L1BlockSize {
				atL1 = true
				break
			}
			alignment = pte.LargerAlignment(alignment)
		}

		for remaining > 0 {
			if !atL1 {
				alignment = pte.SmallerAlignment(alignment)
			}
			atL1 = false

			if !memutils.IsAligned(uint64(virt), alignment) || !memutils.IsAligned(uint64(phys), alignment) {
				panic(fmt.Sprintf("virtual %#x and physical %#x are not aligned to %#x", virt, phys, alignment))
			}

			pages := remaining &^ (pagesPer(alignment) - 1)
			if pages > 0 {
				if err := mapPages(pages, alignment); err != nil {
					return err
				}
			}
		}
		return nil
	}()
	if err != nil {
		s.rollback(origVirt, numPages, pageList)
		return err
	}

	s.mergePages(origVirt, numPages, pageList)

	if s.memory.IsHeapPhysicalAddress(origPhys) {
		s.memory.Open(origPhys, numPages)
	}
	return nil
}

// mapBlocks maps numPages pages as blocks of exactly pageSize bytes
func (s *AddressSpace) mapBlocks(virt pte.VirtAddr, phys pte.PhysAddr, numPages int, template pte.Entry, disableHeadMerge bool, pageSize uint64, pageList *PageList, reuse bool) error {
	if !memutils.IsAligned(uint64(virt), pageSize) || !memutils.IsAligned(uint64(phys), pageSize) || !memutils.IsAligned(uint64(numPages)*pte.PageSize, pageSize) {
		panic(fmt.Sprintf("cannot map %d pages from %#x to %#x with %#x blocks", numPages, virt, phys, pageSize))
	}

	switch pageSize {
	case pte.L1BlockSize:
		return s.mapL1Blocks(virt, phys, numPages, template, disableHeadMerge)
	case pte.L2ContiguousBlockSize:
		return s.mapL2Blocks(virt, phys, numPages, template, disableHeadMerge, true, pageList, reuse)
	case pte.L2BlockSize:
		return s.mapL2Blocks(virt, phys, numPages, template, disableHeadMerge, false, pageList, reuse)
	case pte.L3ContiguousBlockSize:
		return s.mapL3Blocks(virt, phys, numPages, template, disableHeadMerge, true, pageList, reuse)
	case pte.L3BlockSize:
		return s.mapL3Blocks(virt, phys, numPages, template, disableHeadMerge, false, pageList, reuse)
	}

	panic(fmt.Sprintf("unsupported mapping block size %#x", pageSize))
}

func (s *AddressSpace) mapL1Blocks(virt pte.VirtAddr, phys pte.PhysAddr, numPages int, template pte.Entry, disableHeadMerge bool) error {
	bits := headMergeBits(disableHeadMerge)

	for i := 0; i < numPages; i += pagesPer(pte.L1BlockSize) {
		slot := s.l1Entry(virt)
		assertEmptySlot(slot, virt)
		slot.Store(pte.NewBlockEntry(pte.LevelL1, phys, template, bits, false))

		bits &^= pte.SoftwareReservedDisableMergeHead
		virt += pte.VirtAddr(pte.L1BlockSize)
		phys += pte.PhysAddr(pte.L1BlockSize)
	}

	return nil
}

// l2TableFor returns the L2 table under virt's root slot, allocating one if the slot is empty.
// It reports whether the table was allocated by this call.
func (s *AddressSpace) l2TableFor(virt pte.VirtAddr, pageList *PageList, reuse bool) (pte.PhysAddr, bool, error) {
	l1 := s.l1Entry(virt)
	e := l1.Load()
	if e.IsTable() {
		return e.Address(), false, nil
	}
	assertEmptySlot(l1, virt)

	table, ok := s.allocatePageTable(pageList, reuse)
	if !ok {
		return 0, false, errors.Wrapf(memutils.ErrOutOfResource, "allocating L2 table for %#x", virt)
	}

	s.arch.DataSynchronizationBarrier()
	l1.Store(pte.NewTableEntry(table, s.isKernel, true))
	return table, true, nil
}

func (s *AddressSpace) mapL2Blocks(virt pte.VirtAddr, phys pte.PhysAddr, numPages int, template pte.Entry, disableHeadMerge bool, contiguous bool, pageList *PageList, reuse bool) error {
	bits := headMergeBits(disableHeadMerge)

	var l2Table pte.PhysAddr
	haveL2 := false
	l2OpenCount := 0

	for i := 0; i < numPages; i += pagesPer(pte.L2BlockSize) {
		if !haveL2 {
			table, _, err := s.l2TableFor(virt, pageList, reuse)
			if err != nil {
				return err
			}
			l2Table = table
			haveL2 = true
		}

		slot := s.tables.Table(l2Table).Entry(pte.LevelL2, virt)
		assertEmptySlot(slot, virt)
		slot.Store(pte.NewBlockEntry(pte.LevelL2, phys, template, bits, contiguous))

		bits &^= pte.SoftwareReservedDisableMergeHead
		l2OpenCount++
		virt += pte.VirtAddr(pte.L2BlockSize)
		phys += pte.PhysAddr(pte.L2BlockSize)

		if memutils.IsAligned(uint64(virt), pte.L1BlockSize) {
			s.openTable(l2Table, l2OpenCount)
			haveL2 = false
			l2OpenCount = 0
		}
	}

	if haveL2 {
		s.openTable(l2Table, l2OpenCount)
	}
	return nil
}

func (s *AddressSpace) mapL3Blocks(virt pte.VirtAddr, phys pte.PhysAddr, numPages int, template pte.Entry, disableHeadMerge bool, contiguous bool, pageList *PageList, reuse bool) error {
	bits := headMergeBits(disableHeadMerge)

	var l2Table, l3Table pte.PhysAddr
	haveL2, haveL3 := false, false
	l2OpenCount, l3OpenCount := 0, 0

	for i := 0; i < numPages; i++ {
		if !haveL3 {
			l2Allocated := false
			if !haveL2 {
				table, allocated, err := s.l2TableFor(virt, pageList, reuse)
				if err != nil {
					return err
				}
				l2Table = table
				l2Allocated = allocated
				haveL2 = true
			}

			l2 := s.tables.Table(l2Table).Entry(pte.LevelL2, virt)
			if e := l2.Load(); e.IsTable() {
				l3Table = e.Address()
			} else {
				assertEmptySlot(l2, virt)

				table, ok := s.allocatePageTable(pageList, reuse)
				if !ok {
					if l2Allocated {
						s.l1Entry(virt).Store(pte.EmptyEntry)
						s.noteUpdated()
						s.freePageTable(pageList, l2Table)
					} else {
						s.openTable(l2Table, l2OpenCount)
					}
					return errors.Wrapf(memutils.ErrOutOfResource, "allocating L3 table for %#x", virt)
				}

				s.arch.DataSynchronizationBarrier()
				l2.Store(pte.NewTableEntry(table, s.isKernel, true))
				l2OpenCount++
				l3Table = table
			}
			haveL3 = true
		}

		slot := s.tables.Table(l3Table).Entry(pte.LevelL3, virt)
		assertEmptySlot(slot, virt)
		slot.Store(pte.NewBlockEntry(pte.LevelL3, phys, template, bits, contiguous))

		bits &^= pte.SoftwareReservedDisableMergeHead
		l3OpenCount++
		virt += pte.VirtAddr(pte.L3BlockSize)
		phys += pte.PhysAddr(pte.L3BlockSize)

		if memutils.IsAligned(uint64(virt), pte.L2BlockSize) {
			s.openTable(l3Table, l3OpenCount)
			haveL3 = false
			l3OpenCount = 0

			if memutils.IsAligned(uint64(virt), pte.L1BlockSize) {
				s.openTable(l2Table, l2OpenCount)
				haveL2 = false
				l2OpenCount = 0
			}
		}
	}

	if haveL2 {
		s.openTable(l2Table, l2OpenCount)
	}
	if haveL3 {
		s.openTable(l3Table, l3OpenCount)
	}
	return nil
}
