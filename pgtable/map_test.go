package pgtable_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/mesokern/paging/memutils"
	"github.com/mesokern/paging/pgtable"
	"github.com/mesokern/paging/pte"
	"github.com/stretchr/testify/require"
)

func TestMapFourPages(t *testing.T) {
	f := newFixture(t, 16)

	f.mapPages(t, 0x1000_0000, memoryBase, 4, readWrite)

	require.Equal(t, 3, f.space.CountPageTables())
	stats := f.stats()
	require.Equal(t, 4, stats.BlockCount)
	require.Equal(t, 0, stats.ContiguousBlockCount)
	require.Equal(t, int(pte.PageSize), stats.BlockSizeMax)

	f.requireTranslates(t, 0x1000_0000, memoryBase, 4)
	_, ok := f.space.GetPhysicalAddress(0x1000_4000)
	require.False(t, ok)

	for i := 0; i < 4; i++ {
		require.Equal(t, 1, f.memory.RefCount(memoryBase+pte.PhysAddr(page(i))))
	}
	require.Equal(t, 4, f.memory.UsedPages())
}

func TestMapSingleL2Block(t *testing.T) {
	f := newFixture(t, 16)

	phys := memoryBase + pte.PhysAddr(pte.L2BlockSize)
	f.mapPages(t, 0x20_0000, phys, pte.EntriesPerTable, readWrite)

	// Root and one L2 table, no L3 table
	require.Equal(t, 2, f.space.CountPageTables())
	stats := f.stats()
	require.Equal(t, 1, stats.BlockCount)
	require.Equal(t, int(pte.L2BlockSize), stats.BlockSizeMin)
	require.Equal(t, int(pte.L2BlockSize), stats.BlockSizeMax)

	got, ok := f.space.GetPhysicalAddress(0x20_0000 + 0x1234)
	require.True(t, ok)
	require.Equal(t, phys+0x1234, got)
	require.Equal(t, pte.EntriesPerTable, f.memory.UsedPages())
}

func TestMapL1Block(t *testing.T) {
	f := newFixture(t, 16)

	// Outside the managed heap, so no references are taken
	phys := pte.PhysAddr(0x1_0000_0000)
	numPages := int(pte.L1BlockSize / pte.PageSize)
	f.mapPages(t, 0x4000_0000, phys, numPages, readWrite)

	require.Equal(t, 1, f.space.CountPageTables())
	stats := f.stats()
	require.Equal(t, 1, stats.BlockCount)
	require.Equal(t, int(pte.L1BlockSize), stats.BlockSizeMax)

	got, ok := f.space.GetPhysicalAddress(0x4000_0000 + 0x1234_5678)
	require.True(t, ok)
	require.Equal(t, phys+0x1234_5678, got)
	require.Equal(t, 0, f.memory.UsedPages())

	f.unmapPages(t, 0x4000_0000, numPages)
	require.Equal(t, 0, f.stats().BlockCount)
}

func TestMapUsesLargestBlocks(t *testing.T) {
	f := newFixture(t, 16)

	// 13 pages up to the first 64KiB boundary, one contiguous group, then 8 pages
	f.mapPages(t, 0x1000_3000, memoryBase+0x3000, 37, readWrite)

	stats := f.stats()
	require.Equal(t, 13+1+8, stats.BlockCount)
	require.Equal(t, 1, stats.ContiguousBlockCount)
	require.Equal(t, int(pte.L3ContiguousBlockSize), stats.BlockSizeMax)
	f.requireTranslates(t, 0x1000_3000, memoryBase+0x3000, 37)
}

func TestMapRoundTrip(t *testing.T) {
	testCases := map[string]struct {
		Virt     pte.VirtAddr
		Phys     pte.PhysAddr
		NumPages int
	}{
		"SinglePage": {
			Virt:     0x1000_0000,
			Phys:     memoryBase,
			NumPages: 1,
		},
		"UnalignedRun": {
			Virt:     0x1000_3000,
			Phys:     memoryBase + 0x3000,
			NumPages: 37,
		},
		"MismatchedAlignment": {
			Virt:     0x1000_5000,
			Phys:     memoryBase + 0x2000,
			NumPages: 100,
		},
		"CrossesL2Boundary": {
			Virt:     0x1F_0000,
			Phys:     memoryBase + 0x1F_0000,
			NumPages: 64,
		},
		"L2BlockWithTails": {
			Virt:     0x1F_F000,
			Phys:     memoryBase + 0x1F_F000,
			NumPages: pte.EntriesPerTable + 2,
		},
		"EightL2Blocks": {
			Virt:     0x200_0000,
			Phys:     memoryBase,
			NumPages: memoryPages,
		},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, 16)

			f.mapPages(t, testCase.Virt, testCase.Phys, testCase.NumPages, readWrite)
			f.requireTranslates(t, testCase.Virt, testCase.Phys, testCase.NumPages)
			require.Equal(t, testCase.NumPages, f.memory.UsedPages())

			f.unmapPages(t, testCase.Virt, testCase.NumPages)
			f.space.FinalizeUpdate(f.pageList)

			require.Equal(t, 0, f.memory.UsedPages())
			require.Equal(t, 1, f.tables.AllocatedCount())
			require.Equal(t, 1, f.space.CountPageTables())
			require.Equal(t, 0, f.stats().BlockCount)
			require.True(t, f.pageList.IsEmpty())
			require.NoError(t, f.tables.Validate())
		})
	}
}

func TestMapOutOfTablesRollsBack(t *testing.T) {
	// Root, one L2 table and one L3 table
	f := newFixture(t, 3)

	err := f.space.Operate(f.pageList, 0x1F_F000, 2, memoryBase, true, readWrite, pgtable.OperationTypeMap, false)
	require.Error(t, err)
	require.True(t, errors.Is(err, memutils.ErrOutOfResource))

	require.Equal(t, 0, f.stats().BlockCount)
	require.Equal(t, 0, f.memory.UsedPages())
	require.Equal(t, 2, f.pageList.Len())
	require.NoError(t, f.space.Validate())

	f.space.FinalizeUpdate(f.pageList)
	require.Equal(t, 1, f.tables.AllocatedCount())
}

func TestMapReusesReleasedTables(t *testing.T) {
	f := newFixture(t, 3)

	err := f.space.Operate(f.pageList, 0x1F_F000, 2, memoryBase, true, readWrite, pgtable.OperationTypeMap, false)
	require.Error(t, err)
	require.Equal(t, 2, f.pageList.Len())

	// The heap is still exhausted, but the tables released by the rollback may be taken back
	err = f.space.Operate(f.pageList, 0x20_0000, 1, memoryBase, true, readWrite, pgtable.OperationTypeMap, true)
	require.NoError(t, err)
	require.True(t, f.pageList.IsEmpty())
	f.requireTranslates(t, 0x20_0000, memoryBase, 1)
	require.NoError(t, f.space.Validate())
}

func TestMapRequiresLock(t *testing.T) {
	f := newFixture(t, 16)
	f.lock.Unlock()
	defer f.lock.Lock()

	require.Panics(t, func() {
		_ = f.space.Operate(f.pageList, 0x1000_0000, 1, memoryBase, true, readWrite, pgtable.OperationTypeMap, false)
	})
}

func TestMapRejectsBadArguments(t *testing.T) {
	f := newFixture(t, 16)

	require.Panics(t, func() {
		_ = f.space.Operate(f.pageList, 0x1000_0800, 1, memoryBase, true, readWrite, pgtable.OperationTypeMap, false)
	})
	require.Panics(t, func() {
		_ = f.space.Operate(f.pageList, 0x1000_0000, 1, memoryBase, false, readWrite, pgtable.OperationTypeMap, false)
	})
	require.Panics(t, func() {
		_ = f.space.Operate(f.pageList, pte.VirtAddr(1)<<39, 1, memoryBase, true, readWrite, pgtable.OperationTypeMap, false)
	})
	require.Panics(t, func() {
		_ = f.space.Operate(f.pageList, 0x1000_0000, 0, memoryBase, true, readWrite, pgtable.OperationTypeMap, false)
	})
}

func TestMapOverLiveEntryPanics(t *testing.T) {
	f := newFixture(t, 16)
	f.mapPages(t, 0x1000_0000, memoryBase, 4, readWrite)

	require.Panics(t, func() {
		_ = f.space.Operate(f.pageList, 0x1000_2000, 1, memoryBase+0x8000, true, readWrite, pgtable.OperationTypeMap, false)
	})
}
