package pgtable_test

import (
	"testing"

	"github.com/mesokern/paging/memutils"
	"github.com/mesokern/paging/pgtable"
	"github.com/mesokern/paging/pte"
	"github.com/stretchr/testify/require"
)

func TestMapGroupPairsAlignedRuns(t *testing.T) {
	f := newFixture(t, 16)

	group := f.memory.NewPageGroup()
	require.NoError(t, group.AddBlock(memoryBase+0x20_0000, pte.EntriesPerTable))
	require.NoError(t, group.AddBlock(memoryBase+0x3000, 5))

	virt := pte.VirtAddr(0x4000_0000)
	err := f.space.OperateGroup(f.pageList, virt, 517, group, readWrite, pgtable.OperationTypeMapGroup, false)
	require.NoError(t, err)
	require.NoError(t, f.space.Validate())

	// The 2MiB extent lands on the 2MiB aligned virtual run, the tail on the pages after it
	f.requireTranslates(t, virt, memoryBase+0x20_0000, pte.EntriesPerTable)
	f.requireTranslates(t, virt+pte.VirtAddr(pte.L2BlockSize), memoryBase+0x3000, 5)

	stats := f.stats()
	require.Equal(t, 1+5, stats.BlockCount)
	require.Equal(t, int(pte.L2BlockSize), stats.BlockSizeMax)
	require.Equal(t, 3, f.space.CountPageTables())

	// MapGroup takes one new reference on every page
	for _, block := range group.Blocks() {
		for i := 0; i < block.NumPages; i++ {
			require.Equal(t, 1, f.memory.RefCount(block.Address+pte.PhysAddr(page(i))))
		}
	}
	require.Equal(t, 517, f.memory.UsedPages())

	f.unmapPages(t, virt, 517)
	require.Equal(t, 0, f.memory.UsedPages())
	require.Equal(t, 1, f.space.CountPageTables())
}

func TestMapGroupTranslatesEveryPageOnce(t *testing.T) {
	f := newFixture(t, 16)

	group := f.memory.NewPageGroup()
	require.NoError(t, group.AddBlock(memoryBase+0x5_0000, 40))
	require.NoError(t, group.AddBlock(memoryBase+0x10_1000, 3))
	require.NoError(t, group.AddBlock(memoryBase+0x8_0000, 16))

	virt := pte.VirtAddr(0x10_0000)
	numPages := group.NumPages()
	err := f.space.OperateGroup(f.pageList, virt, numPages, group, readWrite, pgtable.OperationTypeMapGroup, false)
	require.NoError(t, err)
	require.NoError(t, f.space.Validate())

	seen := make(map[pte.PhysAddr]bool, numPages)
	for i := 0; i < numPages; i++ {
		phys, ok := f.space.GetPhysicalAddress(virt + pte.VirtAddr(page(i)))
		require.True(t, ok, "page %d", i)
		require.False(t, seen[phys], "%#x mapped twice", phys)
		seen[phys] = true
	}

	for _, block := range group.Blocks() {
		for i := 0; i < block.NumPages; i++ {
			require.True(t, seen[block.Address+pte.PhysAddr(page(i))])
		}
	}
}

func TestMapFirstGroupKeepsCallerReferences(t *testing.T) {
	f := newFixture(t, 16)

	phys, err := f.memory.AllocateAndOpenContinuous(20, 1)
	require.NoError(t, err)

	group := f.memory.NewPageGroup()
	require.NoError(t, group.AddBlock(phys, 20))

	virt := pte.VirtAddr(0x10_0000)
	err = f.space.OperateGroup(f.pageList, virt, 20, group, readWrite, pgtable.OperationTypeMapFirstGroup, false)
	require.NoError(t, err)
	require.NoError(t, f.space.Validate())

	f.requireTranslates(t, virt, phys, 20)
	require.Equal(t, 1, f.memory.RefCount(phys))
	require.Equal(t, 20, f.memory.UsedPages())

	stats := f.stats()
	require.Equal(t, 1, stats.ContiguousBlockCount)
	require.Equal(t, 1+4, stats.BlockCount)

	f.unmapPages(t, virt, 20)
	require.Equal(t, 0, f.memory.UsedPages())
}

func TestMapGroupSizeMismatchPanics(t *testing.T) {
	f := newFixture(t, 16)

	group := f.memory.NewPageGroup()
	require.NoError(t, group.AddBlock(memoryBase, 20))

	require.Panics(t, func() {
		f.space.OperateGroup(f.pageList, 0x10_0000, 10, group, readWrite, pgtable.OperationTypeMapGroup, false)
	})
	require.Panics(t, func() {
		f.space.OperateGroup(f.pageList, 0x10_0000, 20, group, readWrite, pgtable.OperationTypeMap, false)
	})
	require.Equal(t, 0, f.memory.UsedPages())
}

func TestMapGroupOutOfTablesReleasesReferences(t *testing.T) {
	// Room for the root and one L2 table only
	f := newFixture(t, 2)

	group := f.memory.NewPageGroup()
	require.NoError(t, group.AddBlock(memoryBase, 4))

	err := f.space.OperateGroup(f.pageList, 0x10_0000, 4, group, readWrite, pgtable.OperationTypeMapGroup, false)
	require.ErrorIs(t, err, memutils.ErrOutOfResource)
	require.NoError(t, f.space.Validate())

	require.Equal(t, 0, f.memory.UsedPages())
	_, ok := f.space.GetPhysicalAddress(0x10_0000)
	require.False(t, ok)
}
