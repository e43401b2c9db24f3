package pgtable

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/mesokern/paging/asid"
	"github.com/mesokern/paging/internal/utils"
	"github.com/mesokern/paging/memutils"
	"github.com/mesokern/paging/pte"
	"golang.org/x/exp/slog"
)

// AddressSpaceWidth is the number of virtual address bits a process address space spans
type AddressSpaceWidth int

const (
	AddressSpaceWidth32 AddressSpaceWidth = 32
	AddressSpaceWidth36 AddressSpaceWidth = 36
	AddressSpaceWidth39 AddressSpaceWidth = 39
)

var addressSpaceWidthMapping = map[AddressSpaceWidth]string{
	AddressSpaceWidth32: "32Bit",
	AddressSpaceWidth36: "36Bit",
	AddressSpaceWidth39: "39Bit",
}

func (w AddressSpaceWidth) String() string {
	return addressSpaceWidthMapping[w]
}

const defaultMaxPendingCloseBlocks = 16

// ProcessOptions contains the collaborators of a process address space
type ProcessOptions struct {
	Width     AddressSpaceWidth
	Registry  *asid.Registry
	Tables    TableManager
	Memory    MemoryManager
	Arch      Arch
	Scheduler Scheduler
	Lock      LockChecker
	Logger    *slog.Logger

	// MaxPendingCloseBlocks bounds how many physical runs an unmap collects before it must release
	// them early. Zero selects a default of 16.
	MaxPendingCloseBlocks int
}

// KernelOptions contains the collaborators of the kernel address space
type KernelOptions struct {
	// Root is the handle of the kernel's L1 table and RootStorage its contents. The storage is
	// adopted by Tables and never freed.
	Root        pte.PhysAddr
	RootStorage *pte.Table
	Start       pte.VirtAddr
	End         pte.VirtAddr

	Tables    TableManager
	Memory    MemoryManager
	Arch      Arch
	Scheduler Scheduler
	Lock      LockChecker
	Logger    *slog.Logger

	MaxPendingCloseBlocks int
}

type tableAdopter interface {
	Adopt(table pte.PhysAddr, storage *pte.Table) error
}

// AddressSpace is one three-level paging structure: the kernel's, or a process's
type AddressSpace struct {
	logger    *slog.Logger
	tables    TableManager
	memory    MemoryManager
	arch      Arch
	scheduler Scheduler
	lock      LockChecker
	registry  *asid.Registry

	root       pte.PhysAddr
	start      pte.VirtAddr
	end        pte.VirtAddr
	numEntries int
	asid       uint8
	isKernel   bool
	finalized  bool

	maxPendingCloseBlocks int
}

// InitializeForKernel wraps the boot-time kernel L1 table. Its entries cover the top of the
// address space, so [start, end) must lie in the final 512 GiB.
func InitializeForKernel(options KernelOptions) (*AddressSpace, error) {
	if options.RootStorage == nil {
		return nil, errors.New("kernel address space requires root table storage")
	}
	if options.End <= options.Start {
		return nil, errors.Errorf("kernel address space [%#x, %#x) is empty", options.Start, options.End)
	}
	if pte.L0Index(options.Start) != pte.EntriesPerTable-1 || pte.L0Index(options.End-1) != pte.EntriesPerTable-1 {
		return nil, errors.Errorf("kernel address space [%#x, %#x) is outside the upper translation range", options.Start, options.End)
	}

	numEntries := int(memutils.AlignUp(uint64(options.End-options.Start), pte.L1BlockSize) / pte.L1BlockSize)
	if err := memutils.CheckPow2(numEntries, "kernel L1 entry count"); err != nil {
		return nil, err
	}
	if pte.LevelL1.Index(options.Start) < pte.EntriesPerTable-numEntries {
		return nil, errors.Errorf("kernel address space start %#x does not begin in its first L1 slot", options.Start)
	}

	if adopter, ok := options.Tables.(tableAdopter); ok {
		if err := adopter.Adopt(options.Root, options.RootStorage); err != nil {
			return nil, err
		}
	}

	s := &AddressSpace{
		logger:                utils.LoggerOrDiscard(options.Logger),
		tables:                options.Tables,
		memory:                options.Memory,
		arch:                  options.Arch,
		scheduler:             options.Scheduler,
		lock:                  options.Lock,
		root:                  options.Root,
		start:                 options.Start,
		end:                   options.End,
		numEntries:            numEntries,
		asid:                  asid.Kernel,
		isKernel:              true,
		maxPendingCloseBlocks: pendingCloseBlocks(options.MaxPendingCloseBlocks),
	}

	s.logger.Debug("AddressSpace::InitializeForKernel",
		slog.String("Start", fmt.Sprintf("%#x", options.Start)),
		slog.String("End", fmt.Sprintf("%#x", options.End)),
		slog.Int("L1Entries", numEntries))

	return s, nil
}

// InitializeForProcess reserves an address-space identifier and allocates an empty root table
func InitializeForProcess(options ProcessOptions) (*AddressSpace, error) {
	if _, ok := addressSpaceWidthMapping[options.Width]; !ok {
		return nil, errors.Errorf("unsupported address space width %d", options.Width)
	}
	if options.Registry == nil {
		return nil, errors.New("process address space requires an address-space identifier registry")
	}

	logger := utils.LoggerOrDiscard(options.Logger)

	id, err := options.Registry.Reserve()
	if err != nil {
		return nil, err
	}

	root, ok := options.Tables.Allocate()
	if !ok {
		options.Registry.Release(id)
		logger.LogAttrs(context.Background(), slog.LevelWarn, "could not allocate a root table for a new process")
		return nil, errors.Wrap(memutils.ErrOutOfResource, "allocating root table")
	}

	end := pte.VirtAddr(uint64(1) << options.Width)
	s := &AddressSpace{
		logger:                logger,
		tables:                options.Tables,
		memory:                options.Memory,
		arch:                  options.Arch,
		scheduler:             options.Scheduler,
		lock:                  options.Lock,
		registry:              options.Registry,
		root:                  root,
		start:                 0,
		end:                   end,
		numEntries:            int(memutils.AlignUp(uint64(end), pte.L1BlockSize) / pte.L1BlockSize),
		asid:                  id,
		maxPendingCloseBlocks: pendingCloseBlocks(options.MaxPendingCloseBlocks),
	}

	options.Registry.Register(id, root)
	s.noteUpdated()

	logger.Debug("AddressSpace::InitializeForProcess",
		slog.String("Width", options.Width.String()),
		slog.Int("ASID", int(id)),
		slog.String("Root", fmt.Sprintf("%#x", root)))

	return s, nil
}

func pendingCloseBlocks(requested int) int {
	if requested <= 0 {
		return defaultMaxPendingCloseBlocks
	}
	return requested
}

func (s *AddressSpace) IsKernel() bool {
	return s.isKernel
}

func (s *AddressSpace) ASID() uint8 {
	return s.asid
}

func (s *AddressSpace) Root() pte.PhysAddr {
	return s.root
}

func (s *AddressSpace) Start() pte.VirtAddr {
	return s.start
}

func (s *AddressSpace) End() pte.VirtAddr {
	return s.end
}

func (s *AddressSpace) Size() uint64 {
	return uint64(s.end - s.start)
}

// ContainsPages reports whether [virt, virt+numPages pages) lies inside the address space
func (s *AddressSpace) ContainsPages(virt pte.VirtAddr, numPages int) bool {
	size := uint64(numPages) * pte.PageSize
	return numPages > 0 && virt >= s.start && virt < s.end && size <= uint64(s.end-virt)
}

func (s *AddressSpace) assertLocked() {
	if !s.lock.IsLockedByCurrentThread() {
		panic("address space lock is not held by the caller")
	}
}

func (s *AddressSpace) assertLive() {
	if s.finalized {
		panic("address space has been finalized")
	}
}

func (s *AddressSpace) noteUpdated() {
	s.arch.DataSynchronizationBarrier()
	if s.isKernel {
		s.arch.InvalidateEntireTLB()
	} else {
		s.arch.InvalidateTLBByASID(s.asid)
	}
}

func (s *AddressSpace) noteSingleKernelPageUpdated(virt pte.VirtAddr) {
	s.arch.DataSynchronizationBarrier()
	s.arch.InvalidateTLBByVA(virt)
}

// l1Slot returns the root slot for virt. Kernel slots are packed at the bottom of the root.
func (s *AddressSpace) l1Slot(virt pte.VirtAddr) int {
	return pte.LevelL1.Index(virt) & (s.numEntries - 1)
}

// isInWindow reports whether the translation regime of this address space can reach virt
func (s *AddressSpace) isInWindow(virt pte.VirtAddr) bool {
	l0 := pte.L0Index(virt)
	l1 := pte.LevelL1.Index(virt)
	if s.isKernel {
		return l0 == pte.EntriesPerTable-1 && l1 >= pte.EntriesPerTable-s.numEntries
	}
	return l0 == 0 && l1 < s.numEntries
}

func (s *AddressSpace) rootTable() *pte.Table {
	return s.tables.Table(s.root)
}

func (s *AddressSpace) l1Entry(virt pte.VirtAddr) *pte.Entry {
	return &s.rootTable()[s.l1Slot(virt)]
}

// allocatePageTable takes a table from the manager, falling back to tables this operation has
// already released when reuse is permitted
func (s *AddressSpace) allocatePageTable(pageList *PageList, reuse bool) (pte.PhysAddr, bool) {
	table, ok := s.tables.Allocate()
	if !ok {
		if !reuse || pageList == nil {
			return 0, false
		}
		table, ok = pageList.Pop()
		if !ok {
			return 0, false
		}
		s.logger.Debug("AddressSpace::allocatePageTable reusing released table",
			slog.String("Table", fmt.Sprintf("%#x", table)))
	}

	s.tables.Table(table).Clear()
	if s.tables.RefCount(table) != 0 {
		panic(fmt.Sprintf("newly allocated table %#x holds references", table))
	}
	return table, true
}

func (s *AddressSpace) freePageTable(pageList *PageList, table pte.PhysAddr) {
	if !s.tables.IsInTableHeap(table) {
		panic(fmt.Sprintf("freeing table %#x which is not in the table heap", table))
	}
	if count := s.tables.RefCount(table); count != 0 {
		panic(fmt.Sprintf("freeing table %#x with %d references", table, count))
	}
	pageList.Push(table)
}

func (s *AddressSpace) openTable(table pte.PhysAddr, count int) {
	if count > 0 && s.tables.IsInTableHeap(table) {
		s.tables.Open(table, count)
	}
}
