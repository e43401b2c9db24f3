package pgtable_test

import (
	"testing"

	"github.com/mesokern/paging/asid"
	"github.com/mesokern/paging/memutils"
	"github.com/mesokern/paging/pgtable"
	"github.com/mesokern/paging/physmem"
	"github.com/mesokern/paging/pte"
	"github.com/mesokern/paging/sim"
	"github.com/mesokern/paging/tablemgr"
	"github.com/stretchr/testify/require"
)

const (
	tableHeapBase = pte.PhysAddr(0x4000_0000)
	memoryBase    = pte.PhysAddr(0x8000_0000)
	memoryPages   = 4096
)

var readWrite = pte.Properties{Permission: pte.PermissionUserReadWrite}

type fixture struct {
	tables    *tablemgr.Manager
	memory    *physmem.Manager
	registry  *asid.Registry
	arch      *sim.Arch
	scheduler *sim.Scheduler
	lock      *pgtable.Lock
	pageList  *pgtable.PageList
	space     *pgtable.AddressSpace
}

func newFixture(t *testing.T, tablePages int) *fixture {
	tables, err := tablemgr.New(nil, tablemgr.CreateOptions{
		HeapBase:  tableHeapBase,
		HeapPages: tablePages,
	})
	require.NoError(t, err)

	memory, err := physmem.New(nil, physmem.CreateOptions{
		HeapBase:  memoryBase,
		HeapPages: memoryPages,
	})
	require.NoError(t, err)

	recorder := sim.NewRecorder()
	f := &fixture{
		tables:    tables,
		memory:    memory,
		registry:  asid.NewRegistry(nil, asid.CreateOptions{}),
		arch:      sim.NewArch(recorder),
		scheduler: sim.NewScheduler(recorder),
		lock:      &pgtable.Lock{},
		pageList:  &pgtable.PageList{},
	}

	f.space, err = pgtable.InitializeForProcess(pgtable.ProcessOptions{
		Width:     pgtable.AddressSpaceWidth39,
		Registry:  f.registry,
		Tables:    f.tables,
		Memory:    f.memory,
		Arch:      f.arch,
		Scheduler: f.scheduler,
		Lock:      f.lock,
	})
	require.NoError(t, err)

	f.lock.Lock()
	t.Cleanup(f.lock.Unlock)
	return f
}

func (f *fixture) mapPages(t *testing.T, virt pte.VirtAddr, phys pte.PhysAddr, numPages int, props pte.Properties) {
	err := f.space.Operate(f.pageList, virt, numPages, phys, true, props, pgtable.OperationTypeMap, false)
	require.NoError(t, err)
	require.NoError(t, f.space.Validate())
}

func (f *fixture) unmapPages(t *testing.T, virt pte.VirtAddr, numPages int) {
	err := f.space.Operate(f.pageList, virt, numPages, 0, false, pte.Properties{}, pgtable.OperationTypeUnmap, false)
	require.NoError(t, err)
	require.NoError(t, f.space.Validate())
}

func (f *fixture) stats() memutils.DetailedStatistics {
	var stats memutils.DetailedStatistics
	stats.Clear()
	f.space.AddDetailedStatistics(&stats)
	return stats
}

func (f *fixture) requireTranslates(t *testing.T, virt pte.VirtAddr, phys pte.PhysAddr, numPages int) {
	for i := 0; i < numPages; i++ {
		offset := uint64(i) * pte.PageSize
		got, ok := f.space.GetPhysicalAddress(virt + pte.VirtAddr(offset))
		require.True(t, ok, "page %d at %#x is not mapped", i, virt+pte.VirtAddr(offset))
		require.Equal(t, phys+pte.PhysAddr(offset), got, "page %d", i)
	}
}

func page(n int) uint64 {
	return uint64(n) * pte.PageSize
}
