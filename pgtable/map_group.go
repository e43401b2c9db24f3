package pgtable

import (
	"fmt"

	"github.com/mesokern/paging/physmem"
	"github.com/mesokern/paging/pte"
)

// mapGroup maps a set of physical extents into numPages pages of virtual space. Large ranges pair
// each extent with the best aligned virtual runs available, so extents are not necessarily
// mapped in order. When notFirst is set the group's pages gain one more reference for the new
// mapping; otherwise the references the caller already holds are handed to it.
func (s *AddressSpace) mapGroup(virt pte.VirtAddr, group *physmem.PageGroup, numPages int, template pte.Entry, disableHeadMerge bool, notFirst bool, pageList *PageList, reuse bool) error {
	if group.NumPages() != numPages {
		panic(fmt.Sprintf("page group holds %d pages but %d were requested", group.NumPages(), numPages))
	}

	scoped := physmem.NewScopedPageGroup(group, notFirst)
	defer scoped.Close()

	origVirt := virt

	err := func() error {
		if numPages < pagesPer(pte.ContiguousPageSize) {
			for _, block := range group.Blocks() {
				err := s.mapBlocks(virt, block.Address, block.NumPages, template, disableHeadMerge && virt == origVirt, pte.L3BlockSize, pageList, reuse)
				if err != nil {
					return err
				}
				virt += pte.VirtAddr(block.Size())
			}
			return nil
		}

		virtBlock := NewAlignedMemoryBlock(uint64(virt), numPages, pte.L1BlockSize)
		for _, block := range group.Blocks() {
			physBlock := NewAlignedMemoryBlock(uint64(block.Address), block.NumPages, virtBlock.Alignment())
			virtBlock.SetAlignment(physBlock.Alignment())

			remaining := block.NumPages
			for remaining > 0 {
				physAvailable := physBlock.Available()
				virtAvailable := virtBlock.Available()
				if physAvailable == 0 || virtAvailable == 0 {
					smaller := pte.SmallerAlignment(physBlock.Alignment())
					physBlock.SetAlignment(smaller)
					virtBlock.SetAlignment(smaller)
					continue
				}

				pages := physAvailable
				if virtAvailable < pages {
					pages = virtAvailable
				}

				physChoice, _ := physBlock.FindBlock(pages)
				virtChoice, _ := virtBlock.FindBlock(pages)

				mapVirt := pte.VirtAddr(virtChoice)
				err := s.mapBlocks(mapVirt, pte.PhysAddr(physChoice), pages, template, disableHeadMerge && mapVirt == origVirt, physBlock.Alignment(), pageList, reuse)
				if err != nil {
					return err
				}
				remaining -= pages
			}
		}
		return nil
	}()
	if err != nil {
		s.rollback(origVirt, numPages, pageList)
		return err
	}

	s.mergePages(origVirt, numPages, pageList)
	scoped.CancelClose()
	return nil
}
