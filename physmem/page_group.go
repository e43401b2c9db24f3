package physmem

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/mesokern/paging/memutils"
	"github.com/mesokern/paging/pte"
	"golang.org/x/exp/slices"
)

// ReferenceCounter is the part of a memory manager a page group needs to hold its pages
type ReferenceCounter interface {
	Open(phys pte.PhysAddr, numPages int)
	Close(phys pte.PhysAddr, numPages int)
}

// Block is a physically contiguous run of pages
type Block struct {
	Address  pte.PhysAddr
	NumPages int
}

func (b Block) Size() uint64 {
	return uint64(b.NumPages) * pte.PageSize
}

func (b Block) End() pte.PhysAddr {
	return b.Address + pte.PhysAddr(b.Size())
}

// PageGroup is an ordered list of physical blocks. Adjacent blocks are coalesced as they are added.
type PageGroup struct {
	counter   ReferenceCounter
	blocks    []Block
	maxBlocks int
}

// NewPageGroup creates an empty group. A maxBlocks of zero leaves the group unbounded.
func NewPageGroup(counter ReferenceCounter, maxBlocks int) *PageGroup {
	return &PageGroup{
		counter:   counter,
		maxBlocks: maxBlocks,
	}
}

// AddBlock appends a run of pages to the group. When the run cannot be coalesced with the last
// block and the group is full, ErrOutOfResource is returned and the group is unchanged.
func (g *PageGroup) AddBlock(phys pte.PhysAddr, numPages int) error {
	if numPages <= 0 {
		panic(fmt.Sprintf("cannot add a block of %d pages", numPages))
	}
	if !memutils.IsAligned(uint64(phys), pte.PageSize) {
		panic(fmt.Sprintf("block address %#x is not page aligned", phys))
	}

	if len(g.blocks) > 0 {
		last := &g.blocks[len(g.blocks)-1]
		if last.End() == phys {
			last.NumPages += numPages
			return nil
		}
	}

	if g.maxBlocks > 0 && len(g.blocks) >= g.maxBlocks {
		return errors.Wrapf(memutils.ErrOutOfResource, "page group already holds %d blocks", len(g.blocks))
	}

	g.blocks = append(g.blocks, Block{Address: phys, NumPages: numPages})
	return nil
}

func (g *PageGroup) Blocks() []Block {
	return g.blocks
}

func (g *PageGroup) BlockCount() int {
	return len(g.blocks)
}

func (g *PageGroup) NumPages() int {
	total := 0
	for _, block := range g.blocks {
		total += block.NumPages
	}
	return total
}

func (g *PageGroup) IsEmpty() bool {
	return len(g.blocks) == 0
}

// Open adds a reference to every page in the group
func (g *PageGroup) Open() {
	for _, block := range g.blocks {
		g.counter.Open(block.Address, block.NumPages)
	}
}

// Close drops a reference from every page in the group
func (g *PageGroup) Close() {
	for _, block := range g.blocks {
		g.counter.Close(block.Address, block.NumPages)
	}
}

// Finalize empties the group without touching any references
func (g *PageGroup) Finalize() {
	g.blocks = g.blocks[:0]
}

// IsEquivalentTo reports whether both groups cover the same pages in the same order, regardless
// of how the runs were split when they were added
func (g *PageGroup) IsEquivalentTo(other *PageGroup) bool {
	return slices.Equal(coalesce(g.blocks), coalesce(other.blocks))
}

func coalesce(blocks []Block) []Block {
	var result []Block
	for _, block := range blocks {
		if len(result) > 0 && result[len(result)-1].End() == block.Address {
			result[len(result)-1].NumPages += block.NumPages
			continue
		}
		result = append(result, block)
	}
	return result
}

// ScopedPageGroup holds a reference on a group's pages until Close, unless CancelClose transfers
// that reference to the caller first
type ScopedPageGroup struct {
	group  *PageGroup
	active bool
}

// NewScopedPageGroup opens the group when open is set. A group whose references already belong to
// the caller, such as freshly allocated pages, is held without opening and never closed.
func NewScopedPageGroup(group *PageGroup, open bool) *ScopedPageGroup {
	if open {
		group.Open()
	}
	return &ScopedPageGroup{group: group, active: open}
}

func (s *ScopedPageGroup) Close() {
	if s.active {
		s.group.Close()
		s.active = false
	}
}

func (s *ScopedPageGroup) CancelClose() {
	s.active = false
}
