package pgtable

import (
	"context"
	"fmt"

	"github.com/mesokern/paging/pte"
	"golang.org/x/exp/slog"
)

// Finalize tears down a process address space: every mapped heap page loses the reference its
// mapping held, every table is returned to the table manager, and the address-space identifier is
// released. The address space cannot be used afterwards.
func (s *AddressSpace) Finalize() {
	s.assertLocked()
	if s.isKernel {
		panic("the kernel address space cannot be finalized")
	}
	s.assertLive()

	s.noteUpdated()

	// Close each physically contiguous run of mapped pages once
	var runPhys pte.PhysAddr
	runPages := 0
	closeRun := func() {
		if runPages > 0 && s.memory.IsHeapPhysicalAddress(runPhys) {
			s.memory.Close(runPhys, runPages)
		}
		runPages = 0
	}

	closedRuns := 0
	s.forEachEntry(func(virt pte.VirtAddr, entry TraversalEntry, ctx *TraversalContext, valid bool) {
		if !valid {
			closeRun()
			return
		}

		if runPages > 0 && runPhys+pte.PhysAddr(uint64(runPages)*pte.PageSize) == entry.PhysAddr {
			runPages += pagesPer(entry.BlockSize)
			return
		}

		closeRun()
		closedRuns++
		runPhys = entry.PhysAddr
		runPages = pagesPer(entry.BlockSize)
	})
	closeRun()

	freedTables := 0
	liveReferences := 0
	s.forEachTable(func(table pte.PhysAddr, level pte.Level) {
		if count := s.tables.RefCount(table); count > 0 {
			liveReferences += count
			s.tables.Close(table, count)
		}
		s.tables.Table(table).Clear()
		s.tables.Free(table)
		freedTables++
	})

	s.rootTable().Clear()
	s.tables.Free(s.root)

	s.registry.Unregister(s.asid)
	s.registry.Release(s.asid)
	s.finalized = true

	s.logger.LogAttrs(context.Background(), slog.LevelDebug, "AddressSpace::Finalize",
		slog.Int("ASID", int(s.asid)),
		slog.String("Root", fmt.Sprintf("%#x", s.root)),
		slog.Int("ClosedRuns", closedRuns),
		slog.Int("FreedTables", freedTables),
		slog.Int("LiveEntries", liveReferences))
}
