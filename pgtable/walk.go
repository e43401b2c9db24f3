package pgtable

import "github.com/mesokern/paging/pte"

// forEachEntry visits every slot covering the address space in address order, with valid set for
// block entries. Contiguous groups are visited once.
func (s *AddressSpace) forEachEntry(fn func(virt pte.VirtAddr, entry TraversalEntry, ctx *TraversalContext, valid bool)) {
	virt := s.start
	entry, ctx, valid := s.beginTraversal(virt)

	for entry.BlockSize != 0 && virt < s.end {
		offset := uint64(virt) & (entry.BlockSize - 1)
		fn(virt, entry, &ctx, valid)

		virt += pte.VirtAddr(entry.BlockSize - offset)
		entry, valid = s.continueTraversal(&ctx)
	}
}

// forEachTable visits every intermediate table below the root. L3 tables are visited before the
// L2 table that holds them.
func (s *AddressSpace) forEachTable(fn func(table pte.PhysAddr, level pte.Level)) {
	root := s.rootTable()
	for slot := 0; slot < s.numEntries; slot++ {
		l1 := root[slot].Load()
		if !l1.IsTable() {
			continue
		}

		l2 := l1.Address()
		for i, l2Table := 0, s.tables.Table(l2); i < pte.EntriesPerTable; i++ {
			if e := l2Table[i].Load(); e.IsTable() {
				fn(e.Address(), pte.LevelL3)
			}
		}
		fn(l2, pte.LevelL2)
	}
}
