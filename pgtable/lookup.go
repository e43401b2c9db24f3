package pgtable

import "github.com/mesokern/paging/pte"

// GetPhysicalAddress translates virt through the paging structure
func (s *AddressSpace) GetPhysicalAddress(virt pte.VirtAddr) (pte.PhysAddr, bool) {
	s.assertLocked()

	entry, _, ok := s.beginTraversal(virt)
	if !ok {
		return 0, false
	}
	return entry.PhysAddr, true
}

// TTBR returns the translation table base register value that activates this address space
func (s *AddressSpace) TTBR() uint64 {
	return uint64(s.asid)<<48 | uint64(s.root)
}
