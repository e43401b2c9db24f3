package pgtable_test

import (
	"testing"

	"github.com/mesokern/paging/memutils"
	"github.com/mesokern/paging/pgtable"
	"github.com/mesokern/paging/pte"
	"github.com/stretchr/testify/require"
)

func TestFinalizeReleasesEverything(t *testing.T) {
	f := newFixture(t, 16)
	require.Equal(t, 1, f.registry.InUse())

	f.mapPages(t, 0x0, memoryBase, 4, readWrite)
	f.mapPages(t, 0x20_0000, memoryBase+0x20_0000, pte.EntriesPerTable, readWrite)
	// An alias of the first mapping holds its own references
	f.mapPages(t, 0x40_0000, memoryBase, 4, readWrite)
	f.mapPages(t, 0x4000_0000, 0x1_0000_0000, int(pte.L1BlockSize/pte.PageSize), readWrite)

	require.Equal(t, 2, f.memory.RefCount(memoryBase))
	require.Equal(t, 4+pte.EntriesPerTable, f.memory.UsedPages())
	require.Equal(t, 4, f.tables.AllocatedCount())

	f.space.Finalize()

	require.Equal(t, 0, f.memory.UsedPages())
	require.Equal(t, 0, f.tables.AllocatedCount())
	require.Equal(t, 0, f.registry.InUse())
	require.NoError(t, f.tables.Validate())

	_, ok := f.registry.Root(f.space.ASID())
	require.False(t, ok)
}

func TestFinalizeFlushesReleasedTables(t *testing.T) {
	f := newFixture(t, 16)

	f.mapPages(t, 0x10_0000, memoryBase, 4, readWrite)
	f.unmapPages(t, 0x10_0000, 4)
	require.Equal(t, 2, f.pageList.Len())

	f.space.FinalizeUpdate(f.pageList)
	require.True(t, f.pageList.IsEmpty())
	require.Equal(t, 1, f.tables.AllocatedCount())

	f.space.Finalize()
	require.Equal(t, 0, f.tables.AllocatedCount())
}

func TestFinalizedSpaceRejectsOperations(t *testing.T) {
	f := newFixture(t, 16)
	f.space.Finalize()

	require.Panics(t, func() {
		f.space.Operate(f.pageList, 0x10_0000, 1, memoryBase, true, readWrite, pgtable.OperationTypeMap, false)
	})
	require.Panics(t, f.space.Finalize)
}

func TestFinalizeRequiresLock(t *testing.T) {
	f := newFixture(t, 16)
	f.mapPages(t, 0x10_0000, memoryBase, 4, readWrite)

	f.lock.Unlock()
	require.Panics(t, f.space.Finalize)
	f.lock.Lock()

	require.Equal(t, 1, f.registry.InUse())
	require.Equal(t, 4, f.memory.UsedPages())
	f.requireTranslates(t, 0x10_0000, memoryBase, 4)
}

func TestNewProcessAfterFinalize(t *testing.T) {
	f := newFixture(t, 1)
	id := f.space.ASID()

	// The only table slot is held by the first root
	_, err := pgtable.InitializeForProcess(pgtable.ProcessOptions{
		Width:     pgtable.AddressSpaceWidth36,
		Registry:  f.registry,
		Tables:    f.tables,
		Memory:    f.memory,
		Arch:      f.arch,
		Scheduler: f.scheduler,
		Lock:      f.lock,
	})
	require.ErrorIs(t, err, memutils.ErrOutOfResource)
	require.Equal(t, 1, f.registry.InUse())

	f.space.Finalize()

	space, err := pgtable.InitializeForProcess(pgtable.ProcessOptions{
		Width:     pgtable.AddressSpaceWidth36,
		Registry:  f.registry,
		Tables:    f.tables,
		Memory:    f.memory,
		Arch:      f.arch,
		Scheduler: f.scheduler,
		Lock:      f.lock,
	})
	require.NoError(t, err)
	require.NotEqual(t, id, space.ASID())
	require.Equal(t, 1, f.registry.InUse())
	require.Equal(t, uint64(space.ASID())<<48|uint64(space.Root()), space.TTBR())
	require.Equal(t, uint64(1)<<36, space.Size())
}
