package physmem

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/mesokern/paging/internal/utils"
	"github.com/mesokern/paging/memutils"
	"github.com/mesokern/paging/pte"
	"golang.org/x/exp/slog"
)

// Manager reference counts the pages of a physical heap. A page with no references is free.
type Manager struct {
	logger *slog.Logger
	mutex  utils.OptionalMutex

	heapBase       pte.PhysAddr
	heapPages      int
	maxGroupBlocks int

	refCounts *swiss.Map[pte.PhysAddr, int]
}

func (m *Manager) heapEnd() pte.PhysAddr {
	return m.heapBase + pte.PhysAddr(uint64(m.heapPages)*pte.PageSize)
}

// IsHeapPhysicalAddress reports whether phys lies inside the managed heap
func (m *Manager) IsHeapPhysicalAddress(phys pte.PhysAddr) bool {
	return phys >= m.heapBase && phys < m.heapEnd()
}

func (m *Manager) checkRange(phys pte.PhysAddr, numPages int) {
	if !memutils.IsAligned(uint64(phys), pte.PageSize) {
		panic(fmt.Sprintf("physical address %#x is not page aligned", phys))
	}
	end := phys + pte.PhysAddr(uint64(numPages)*pte.PageSize)
	if numPages <= 0 || !m.IsHeapPhysicalAddress(phys) || end > m.heapEnd() {
		panic(fmt.Sprintf("physical range %#x+%d pages is outside the heap", phys, numPages))
	}
}

// Open adds a reference to every page in the range
func (m *Manager) Open(phys pte.PhysAddr, numPages int) {
	m.checkRange(phys, numPages)

	m.mutex.Lock()
	defer m.mutex.Unlock()

	for i := 0; i < numPages; i++ {
		page := phys + pte.PhysAddr(uint64(i)*pte.PageSize)
		count, _ := m.refCounts.Get(page)
		m.refCounts.Put(page, count+1)
	}
}

// Close drops a reference from every page in the range. Pages that reach zero become free.
func (m *Manager) Close(phys pte.PhysAddr, numPages int) {
	m.checkRange(phys, numPages)

	m.mutex.Lock()
	defer m.mutex.Unlock()

	for i := 0; i < numPages; i++ {
		page := phys + pte.PhysAddr(uint64(i)*pte.PageSize)
		count, ok := m.refCounts.Get(page)
		if !ok {
			panic(fmt.Sprintf("closing unreferenced physical page %#x", page))
		}
		if count == 1 {
			m.refCounts.Delete(page)
		} else {
			m.refCounts.Put(page, count-1)
		}
	}
}

// RefCount returns the number of references held on the page containing phys
func (m *Manager) RefCount(phys pte.PhysAddr) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	count, _ := m.refCounts.Get(pte.PhysAddr(memutils.AlignDown(uint64(phys), pte.PageSize)))
	return count
}

// UsedPages returns the number of heap pages holding at least one reference
func (m *Manager) UsedPages() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return m.refCounts.Count()
}

// AllocateAndOpenContinuous finds the first run of numPages free pages whose start is aligned to
// alignPages pages and opens one reference on each of them
func (m *Manager) AllocateAndOpenContinuous(numPages int, alignPages int) (pte.PhysAddr, error) {
	if numPages <= 0 {
		return 0, errors.Errorf("cannot allocate %d pages", numPages)
	}
	if alignPages <= 0 {
		alignPages = 1
	}
	if err := memutils.CheckPow2(alignPages, "alignPages"); err != nil {
		return 0, err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	alignment := uint64(alignPages) * pte.PageSize
	start := pte.PhysAddr(memutils.AlignUp(uint64(m.heapBase), alignment))
	size := pte.PhysAddr(uint64(numPages) * pte.PageSize)

	for candidate := start; candidate+size <= m.heapEnd(); candidate += pte.PhysAddr(alignment) {
		if m.isRangeFree(candidate, numPages) {
			for i := 0; i < numPages; i++ {
				m.refCounts.Put(candidate+pte.PhysAddr(uint64(i)*pte.PageSize), 1)
			}
			return candidate, nil
		}
	}

	m.logger.LogAttrs(context.Background(), slog.LevelWarn, "physical heap exhausted",
		slog.Int("NumPages", numPages),
		slog.Int("AlignPages", alignPages),
		slog.Int("UsedPages", m.refCounts.Count()))
	return 0, errors.Wrapf(memutils.ErrOutOfResource, "no run of %d free pages aligned to %d pages", numPages, alignPages)
}

func (m *Manager) isRangeFree(phys pte.PhysAddr, numPages int) bool {
	for i := 0; i < numPages; i++ {
		if m.refCounts.Has(phys + pte.PhysAddr(uint64(i)*pte.PageSize)) {
			return false
		}
	}
	return true
}

// NewPageGroup creates an empty group bounded by this manager's MaxGroupBlocks
func (m *Manager) NewPageGroup() *PageGroup {
	return NewPageGroup(m, m.maxGroupBlocks)
}

var _ ReferenceCounter = &Manager{}
