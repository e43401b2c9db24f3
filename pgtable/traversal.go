package pgtable

import (
	"github.com/mesokern/paging/pte"
)

// TraversalEntry describes the block a traversal is positioned on
type TraversalEntry struct {
	PhysAddr             pte.PhysAddr
	BlockSize            uint64
	SoftwareReservedBits pte.SoftwareReservedBits
}

// TraversalContext is a cursor into the paging structure: the table and slot at every level on the
// path from the root, the level the cursor rests on, and whether that slot is part of a
// contiguous group
type TraversalContext struct {
	tables       [pte.LevelCount]pte.PhysAddr
	indices      [pte.LevelCount]int
	level        pte.Level
	isContiguous bool
}

func (c *TraversalContext) Level() pte.Level {
	return c.level
}

func (c *TraversalContext) IsContiguous() bool {
	return c.isContiguous
}

func blockSize(level pte.Level, contiguous bool) uint64 {
	if contiguous {
		return level.ContiguousBlockSize()
	}
	return level.BlockSize()
}

func (s *AddressSpace) slot(ctx *TraversalContext, level pte.Level) *pte.Entry {
	return &s.tables.Table(ctx.tables[level])[ctx.indices[level]]
}

// groupStart returns the first slot of the aligned run of count entries containing the cursor
func (s *AddressSpace) groupStart(ctx *TraversalContext, level pte.Level, count int) []pte.Entry {
	table := s.tables.Table(ctx.tables[level])
	first := ctx.indices[level] &^ (count - 1)
	return table[first : first+count]
}

func (s *AddressSpace) describe(ctx *TraversalContext) (TraversalEntry, bool) {
	e := s.slot(ctx, ctx.level).Load()
	ctx.isContiguous = e.IsContiguous()
	size := blockSize(ctx.level, ctx.isContiguous)

	return TraversalEntry{
		PhysAddr:             pte.PhysAddr(uint64(e.Address()) &^ (size - 1)),
		BlockSize:            size,
		SoftwareReservedBits: e.SoftwareReservedBits(),
	}, e.IsBlock(ctx.level)
}

// descend follows mapped table entries from the cursor's level down, positioning each new level
// at the slot indexFor returns
func (s *AddressSpace) descend(ctx *TraversalContext, indexFor func(level pte.Level) int) {
	for ctx.level > pte.LevelL3 {
		e := s.slot(ctx, ctx.level).Load()
		if !e.IsMappedTable() {
			return
		}

		child := ctx.level - 1
		ctx.tables[child] = e.Address()
		ctx.indices[child] = indexFor(child)
		ctx.level = child
	}
}

// beginTraversal positions a cursor on the entry that translates virt. It reports whether that
// entry is a block.
func (s *AddressSpace) beginTraversal(virt pte.VirtAddr) (TraversalEntry, TraversalContext, bool) {
	var ctx TraversalContext
	if !s.isInWindow(virt) {
		return TraversalEntry{}, ctx, false
	}

	ctx.level = pte.LevelL1
	ctx.tables[pte.LevelL1] = s.root
	ctx.indices[pte.LevelL1] = s.l1Slot(virt)
	s.descend(&ctx, func(level pte.Level) int { return level.Index(virt) })

	entry, valid := s.describe(&ctx)
	size := entry.BlockSize
	entry.PhysAddr += pte.PhysAddr(uint64(virt) & (size - 1))
	return entry, ctx, valid
}

// continueTraversal advances the cursor past the current entry, or past its whole contiguous
// group, and reports whether the new entry is a block. Once the cursor runs off the end of the
// address space the returned entry is zero.
func (s *AddressSpace) continueTraversal(ctx *TraversalContext) (TraversalEntry, bool) {
	if ctx.isContiguous {
		ctx.indices[ctx.level] = ctx.indices[ctx.level]&^(pte.BlocksPerContiguousBlock-1) + pte.BlocksPerContiguousBlock
	} else {
		ctx.indices[ctx.level]++
	}

	for ctx.level < pte.LevelL1 && ctx.indices[ctx.level] >= pte.EntriesPerTable {
		ctx.level++
		ctx.indices[ctx.level]++
	}

	if ctx.level == pte.LevelL1 && ctx.indices[pte.LevelL1] >= s.numEntries {
		*ctx = TraversalContext{}
		return TraversalEntry{}, false
	}

	s.descend(ctx, func(pte.Level) int { return 0 })
	return s.describe(ctx)
}
