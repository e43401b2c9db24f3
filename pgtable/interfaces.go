package pgtable

import (
	"github.com/mesokern/paging/pte"
)

//go:generate mockgen -source interfaces.go -destination ./mocks/interfaces.go -package mock_pgtable

// MemoryManager reference counts physical heap pages that are mapped into an address space
type MemoryManager interface {
	Open(phys pte.PhysAddr, numPages int)
	Close(phys pte.PhysAddr, numPages int)
	IsHeapPhysicalAddress(phys pte.PhysAddr) bool
}

// TableManager owns the storage of intermediate paging tables. Every live child entry of a
// heap table holds one reference on it.
type TableManager interface {
	Allocate() (pte.PhysAddr, bool)
	Free(table pte.PhysAddr)
	Open(table pte.PhysAddr, count int)
	Close(table pte.PhysAddr, count int) bool
	IsInTableHeap(table pte.PhysAddr) bool
	RefCount(table pte.PhysAddr) int
	Table(table pte.PhysAddr) *pte.Table
}

// Arch performs the barriers and cache maintenance that make table writes visible to every core
type Arch interface {
	DataSynchronizationBarrier()
	FlushDataCache(phys pte.PhysAddr, size uint64)
	InvalidateEntireTLB()
	InvalidateTLBByASID(asid uint8)
	InvalidateTLBByVA(virt pte.VirtAddr)
}

// Scheduler is acquired and released to wait until every core has passed a scheduling point
type Scheduler interface {
	Lock()
	Unlock()
}

// LockChecker reports whether the caller holds the address space's lock
type LockChecker interface {
	IsLockedByCurrentThread() bool
}
