package memutils

import "math"

// Statistics summarizes the shape of a paging structure: how many intermediate tables it holds
// and how many block entries map memory through them.
type Statistics struct {
	TableCount  int
	BlockCount  int
	TableBytes  int
	MappedBytes int
}

func (s *Statistics) Clear() {
	s.TableCount = 0
	s.BlockCount = 0
	s.TableBytes = 0
	s.MappedBytes = 0
}

func (s *Statistics) AddStatistics(other *Statistics) {
	s.TableCount += other.TableCount
	s.BlockCount += other.BlockCount
	s.TableBytes += other.TableBytes
	s.MappedBytes += other.MappedBytes
}

type DetailedStatistics struct {
	Statistics
	ContiguousBlockCount int
	UnmappedRangeCount   int
	BlockSizeMin         int
	BlockSizeMax         int
	UnmappedRangeSizeMin int
	UnmappedRangeSizeMax int
}

func (s *DetailedStatistics) Clear() {
	s.Statistics.Clear()
	s.ContiguousBlockCount = 0
	s.UnmappedRangeCount = 0
	s.BlockSizeMin = math.MaxInt
	s.BlockSizeMax = 0
	s.UnmappedRangeSizeMin = math.MaxInt
	s.UnmappedRangeSizeMax = 0
}

func (s *DetailedStatistics) AddTable(size int) {
	s.TableCount++
	s.TableBytes += size
}

func (s *DetailedStatistics) AddUnmappedRange(size int) {
	s.UnmappedRangeCount++

	if size < s.UnmappedRangeSizeMin {
		s.UnmappedRangeSizeMin = size
	}

	if size > s.UnmappedRangeSizeMax {
		s.UnmappedRangeSizeMax = size
	}
}

// AddBlock records one mapping of size bytes. A contiguous group is recorded once, with the size of
// the whole group.
func (s *DetailedStatistics) AddBlock(size int, contiguous bool) {
	s.BlockCount++
	s.MappedBytes += size

	if contiguous {
		s.ContiguousBlockCount++
	}

	if size < s.BlockSizeMin {
		s.BlockSizeMin = size
	}

	if size > s.BlockSizeMax {
		s.BlockSizeMax = size
	}
}

func (s *DetailedStatistics) AddDetailedStatistics(other *DetailedStatistics) {
	s.Statistics.AddStatistics(&other.Statistics)
	s.ContiguousBlockCount += other.ContiguousBlockCount
	s.UnmappedRangeCount += other.UnmappedRangeCount

	if other.UnmappedRangeSizeMin < s.UnmappedRangeSizeMin {
		s.UnmappedRangeSizeMin = other.UnmappedRangeSizeMin
	}

	if other.UnmappedRangeSizeMax > s.UnmappedRangeSizeMax {
		s.UnmappedRangeSizeMax = other.UnmappedRangeSizeMax
	}

	if other.BlockSizeMin < s.BlockSizeMin {
		s.BlockSizeMin = other.BlockSizeMin
	}

	if other.BlockSizeMax > s.BlockSizeMax {
		s.BlockSizeMax = other.BlockSizeMax
	}
}
