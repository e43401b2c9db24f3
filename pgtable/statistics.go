package pgtable

import (
	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/mesokern/paging/memutils"
	"github.com/mesokern/paging/pte"
)

var _ memutils.Validatable = &AddressSpace{}

// CountPageTables returns the number of tables in the structure, the root included
func (s *AddressSpace) CountPageTables() int {
	count := 1
	s.forEachTable(func(pte.PhysAddr, pte.Level) {
		count++
	})
	return count
}

func (s *AddressSpace) AddStatistics(stats *memutils.Statistics) {
	tables := s.CountPageTables()
	stats.TableCount += tables
	stats.TableBytes += tables * int(pte.TableSize)

	s.forEachEntry(func(virt pte.VirtAddr, entry TraversalEntry, ctx *TraversalContext, valid bool) {
		if valid {
			stats.BlockCount++
			stats.MappedBytes += int(entry.BlockSize)
		}
	})
}

func (s *AddressSpace) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	for i := s.CountPageTables(); i > 0; i-- {
		stats.AddTable(int(pte.TableSize))
	}

	unmapped := uint64(0)
	s.forEachEntry(func(virt pte.VirtAddr, entry TraversalEntry, ctx *TraversalContext, valid bool) {
		if !valid {
			unmapped += entry.BlockSize - uint64(virt)&(entry.BlockSize-1)
			return
		}

		if unmapped > 0 {
			stats.AddUnmappedRange(int(unmapped))
			unmapped = 0
		}
		stats.AddBlock(int(entry.BlockSize), ctx.isContiguous)
	})

	if unmapped > 0 {
		stats.AddUnmappedRange(int(unmapped))
	}
}

// BuildStatsString writes the detailed statistics of the structure as a JSON object
func (s *AddressSpace) BuildStatsString(writer *jwriter.Writer) {
	s.assertLocked()

	var stats memutils.DetailedStatistics
	stats.Clear()
	s.AddDetailedStatistics(&stats)

	obj := writer.Object()
	defer obj.End()

	obj.Name("ASID").Int(int(s.asid))
	obj.Name("TableCount").Int(stats.TableCount)
	obj.Name("TableBytes").Int(stats.TableBytes)
	obj.Name("BlockCount").Int(stats.BlockCount)
	obj.Name("ContiguousBlockCount").Int(stats.ContiguousBlockCount)
	obj.Name("MappedBytes").Int(stats.MappedBytes)
	obj.Name("UnmappedRangeCount").Int(stats.UnmappedRangeCount)

	if stats.BlockCount > 0 {
		sizes := obj.Name("BlockSize").Object()
		sizes.Name("Min").Int(stats.BlockSizeMin)
		sizes.Name("Max").Int(stats.BlockSizeMax)
		sizes.End()
	}
	if stats.UnmappedRangeCount > 0 {
		sizes := obj.Name("UnmappedRangeSize").Object()
		sizes.Name("Min").Int(stats.UnmappedRangeSizeMin)
		sizes.Name("Max").Int(stats.UnmappedRangeSizeMax)
		sizes.End()
	}
}

func (s *AddressSpace) validateTable(table pte.PhysAddr, level pte.Level) error {
	var err error

	entries := s.tables.Table(table)
	live := 0
	for i := 0; i < pte.EntriesPerTable; i++ {
		e := entries[i].Load()
		if e.IsEmpty() {
			continue
		}
		live++

		if e.IsTable() {
			continue
		}
		if !e.IsBlock(level) {
			err = errors.CombineErrors(err, errors.Errorf("%s table %#x slot %d holds malformed entry %#x", level, table, i, uint64(e)))
			continue
		}

		if !e.IsContiguous() || i%pte.BlocksPerContiguousBlock != 0 {
			continue
		}

		first := e.Block(level)
		if uint64(first)&(level.ContiguousBlockSize()-1) != 0 {
			err = errors.CombineErrors(err, errors.Errorf("contiguous group at %s table %#x slot %d starts at unaligned %#x", level, table, i, first))
		}
		for j := 1; j < pte.BlocksPerContiguousBlock; j++ {
			member := entries[i+j].Load()
			want := first + pte.PhysAddr(uint64(j)*level.BlockSize())
			if !member.IsContiguous() || member.Block(level) != want || member.TemplateForMerge() != e.TemplateForMerge() {
				err = errors.CombineErrors(err, errors.Errorf("contiguous group at %s table %#x slot %d is inconsistent at member %d", level, table, i, j))
				break
			}
		}
	}

	if level < pte.LevelL1 && s.tables.IsInTableHeap(table) {
		if refs := s.tables.RefCount(table); refs != live {
			err = errors.CombineErrors(err, errors.Errorf("%s table %#x holds %d references for %d live entries", level, table, refs, live))
		}
	}

	return err
}

// Validate checks every table's reference count against its live entries and every contiguous
// group for consistency
func (s *AddressSpace) Validate() error {
	err := s.validateTable(s.root, pte.LevelL1)
	s.forEachTable(func(table pte.PhysAddr, level pte.Level) {
		err = errors.CombineErrors(err, s.validateTable(table, level))
	})
	return err
}
