package tablemgr

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/mesokern/paging/internal/utils"
	"github.com/mesokern/paging/memutils"
	"github.com/mesokern/paging/pte"
	"golang.org/x/exp/slog"
)

// MaxReferences is the largest reference count a table can hold: one per live child entry
const MaxReferences = pte.EntriesPerTable

// Manager hands out page-sized paging tables from a fixed heap and tracks how many live entries
// each one holds. Tables outside the heap, such as a kernel root supplied at boot, can be adopted
// so that their storage resolves through the same handle, but they are never counted or freed.
type Manager struct {
	logger *slog.Logger
	mutex  utils.OptionalMutex

	heapBase  pte.PhysAddr
	tables    []pte.Table
	refCounts []int
	allocated []bool
	freeSlots []int

	adopted *swiss.Map[pte.PhysAddr, *pte.Table]
}

var _ memutils.Validatable = &Manager{}

func (m *Manager) slot(table pte.PhysAddr) (int, bool) {
	if table < m.heapBase {
		return 0, false
	}
	offset := uint64(table - m.heapBase)
	if offset&(pte.PageSize-1) != 0 {
		return 0, false
	}
	index := offset / pte.PageSize
	if index >= uint64(len(m.tables)) {
		return 0, false
	}
	return int(index), true
}

func (m *Manager) heapSlot(table pte.PhysAddr) int {
	index, ok := m.slot(table)
	if !ok {
		panic(fmt.Sprintf("table %#x is not in the table heap", table))
	}
	if !m.allocated[index] {
		panic(fmt.Sprintf("table %#x is not allocated", table))
	}
	return index
}

// Allocate takes a cleared table from the heap. It reports false when the heap is exhausted.
func (m *Manager) Allocate() (pte.PhysAddr, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if len(m.freeSlots) == 0 {
		m.logger.Debug("TableManager::Allocate heap exhausted", slog.Int("HeapPages", len(m.tables)))
		return 0, false
	}

	index := m.freeSlots[len(m.freeSlots)-1]
	m.freeSlots = m.freeSlots[:len(m.freeSlots)-1]

	m.tables[index].Clear()
	m.refCounts[index] = 0
	m.allocated[index] = true

	return m.heapBase + pte.PhysAddr(uint64(index)*pte.PageSize), true
}

// Free returns an unreferenced table to the heap
func (m *Manager) Free(table pte.PhysAddr) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	index := m.heapSlot(table)
	if m.refCounts[index] != 0 {
		panic(fmt.Sprintf("table %#x freed with %d live references", table, m.refCounts[index]))
	}

	m.allocated[index] = false
	m.freeSlots = append(m.freeSlots, index)
}

// Open adds count references to a heap table
func (m *Manager) Open(table pte.PhysAddr, count int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	index := m.heapSlot(table)
	if count < 0 || m.refCounts[index]+count > MaxReferences {
		panic(fmt.Sprintf("opening %d references on table %#x with %d references overflows", count, table, m.refCounts[index]))
	}
	m.refCounts[index] += count
}

// Close drops count references from a heap table and reports whether none remain
func (m *Manager) Close(table pte.PhysAddr, count int) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	index := m.heapSlot(table)
	if count < 0 || m.refCounts[index] < count {
		panic(fmt.Sprintf("closing %d references on table %#x with %d references underflows", count, table, m.refCounts[index]))
	}
	m.refCounts[index] -= count
	return m.refCounts[index] == 0
}

// IsInTableHeap reports whether table was handed out by this manager
func (m *Manager) IsInTableHeap(table pte.PhysAddr) bool {
	_, ok := m.slot(table)
	return ok
}

func (m *Manager) RefCount(table pte.PhysAddr) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return m.refCounts[m.heapSlot(table)]
}

// Table resolves a table handle to its storage
func (m *Manager) Table(table pte.PhysAddr) *pte.Table {
	if index, ok := m.slot(table); ok {
		return &m.tables[index]
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	storage, ok := m.adopted.Get(table)
	if !ok {
		panic(fmt.Sprintf("table %#x is neither in the table heap nor adopted", table))
	}
	return storage
}

// Adopt registers storage that lives outside the heap under the handle table
func (m *Manager) Adopt(table pte.PhysAddr, storage *pte.Table) error {
	if m.IsInTableHeap(table) {
		return errors.Errorf("cannot adopt table %#x: address lies inside the table heap", table)
	}
	if !memutils.IsAligned(uint64(table), pte.PageSize) {
		return errors.Errorf("cannot adopt table %#x: address is not page aligned", table)
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.adopted.Has(table) {
		return errors.Errorf("table %#x has already been adopted", table)
	}
	m.adopted.Put(table, storage)
	return nil
}

// Release forgets a table previously registered with Adopt
func (m *Manager) Release(table pte.PhysAddr) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if !m.adopted.Delete(table) {
		m.logger.LogAttrs(context.Background(), slog.LevelWarn, "released a table that was never adopted",
			slog.String("Table", fmt.Sprintf("%#x", table)))
	}
}

func (m *Manager) FreeCount() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return len(m.freeSlots)
}

func (m *Manager) AllocatedCount() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return len(m.tables) - len(m.freeSlots)
}

func (m *Manager) Validate() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var err error
	free := 0
	for index := range m.tables {
		if !m.allocated[index] {
			free++
			if m.refCounts[index] != 0 {
				err = errors.CombineErrors(err, errors.Errorf("free table slot %d holds %d references", index, m.refCounts[index]))
			}
			continue
		}
		if m.refCounts[index] > MaxReferences {
			err = errors.CombineErrors(err, errors.Errorf("table slot %d holds %d references", index, m.refCounts[index]))
		}
	}

	if free != len(m.freeSlots) {
		err = errors.CombineErrors(err, errors.Errorf("%d slots are free but the free list holds %d", free, len(m.freeSlots)))
	}

	return err
}

// AddStatistics accumulates the heap's tables into stats
func (m *Manager) AddStatistics(stats *memutils.Statistics) {
	allocated := m.AllocatedCount()
	stats.TableCount += allocated
	stats.TableBytes += allocated * int(pte.PageSize)
}

// BuildStatsString writes a JSON summary of the heap
func (m *Manager) BuildStatsString(writer *jwriter.Writer) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	obj := writer.Object()
	defer obj.End()

	obj.Name("HeapBase").String(fmt.Sprintf("%#x", m.heapBase))
	obj.Name("HeapPages").Int(len(m.tables))
	obj.Name("FreePages").Int(len(m.freeSlots))
	obj.Name("AdoptedTables").Int(m.adopted.Count())

	arr := obj.Name("Tables").Array()
	defer arr.End()

	for index := range m.tables {
		if !m.allocated[index] {
			continue
		}

		tableObj := arr.Object()
		tableObj.Name("Address").String(fmt.Sprintf("%#x", m.heapBase+pte.PhysAddr(uint64(index)*pte.PageSize)))
		tableObj.Name("References").Int(m.refCounts[index])
		tableObj.End()
	}
}
