package pgtable

import (
	"fmt"

	"github.com/mesokern/paging/memutils"
	"github.com/mesokern/paging/physmem"
	"github.com/mesokern/paging/pte"
	"github.com/mesokern/paging/tablemgr"
	"golang.org/x/exp/slog"
)

// PageList collects tables released by an operation until FinalizeUpdate returns them to the
// table manager
type PageList = tablemgr.PageList

// OperationType selects what Operate does with a range
type OperationType int

const (
	OperationTypeMap OperationType = iota
	OperationTypeUnmap
	OperationTypeSeparate
	OperationTypeChangePermissions
	OperationTypeChangePermissionsAndRefresh
	OperationTypeChangePermissionsAndRefreshAndFlush
	OperationTypeMapGroup
	OperationTypeMapFirstGroup
)

var operationTypeMapping = map[OperationType]string{
	OperationTypeMap:                                 "Map",
	OperationTypeUnmap:                               "Unmap",
	OperationTypeSeparate:                            "Separate",
	OperationTypeChangePermissions:                   "ChangePermissions",
	OperationTypeChangePermissionsAndRefresh:         "ChangePermissionsAndRefresh",
	OperationTypeChangePermissionsAndRefreshAndFlush: "ChangePermissionsAndRefreshAndFlush",
	OperationTypeMapGroup:                            "MapGroup",
	OperationTypeMapFirstGroup:                       "MapFirstGroup",
}

func (o OperationType) String() string {
	return operationTypeMapping[o]
}

func (s *AddressSpace) checkOperationRange(virt pte.VirtAddr, numPages int) {
	s.assertLocked()
	s.assertLive()

	if numPages <= 0 {
		panic(fmt.Sprintf("operation on %d pages", numPages))
	}
	if !memutils.IsAligned(uint64(virt), pte.PageSize) {
		panic(fmt.Sprintf("operation address %#x is not page aligned", virt))
	}
	if !s.ContainsPages(virt, numPages) {
		panic(fmt.Sprintf("range of %d pages at %#x is outside the address space", numPages, virt))
	}
}

// Operate performs a map, unmap, separate or permission change on [virt, virt+numPages). phys is
// only meaningful for OperationTypeMap, and isPhysValid must be set exactly then. Tables released
// along the way are pushed to pageList; with reuse set the operation may take them back when the
// table heap runs dry.
//
// The only error returned is a wrapped memutils.ErrOutOfResource, after any partial work has been
// undone. Misuse panics.
func (s *AddressSpace) Operate(pageList *PageList, virt pte.VirtAddr, numPages int, phys pte.PhysAddr, isPhysValid bool, props pte.Properties, op OperationType, reuse bool) error {
	s.checkOperationRange(virt, numPages)

	if op == OperationTypeMap {
		if !isPhysValid {
			panic("map requires a physical address")
		}
		if !memutils.IsAligned(uint64(phys), pte.PageSize) {
			panic(fmt.Sprintf("physical address %#x is not page aligned", phys))
		}
	} else if isPhysValid {
		panic(fmt.Sprintf("%s does not take a physical address", op))
	}

	s.logger.Debug("AddressSpace::Operate",
		slog.String("Operation", op.String()),
		slog.String("Address", fmt.Sprintf("%#x", virt)),
		slog.Int("Pages", numPages))

	switch op {
	case OperationTypeUnmap:
		return s.unmap(virt, numPages, pageList, false, reuse)
	case OperationTypeSeparate:
		return s.separatePages(virt, numPages, pageList, reuse)
	}

	template := pte.NewEntryTemplate(props, s.isKernel)

	switch op {
	case OperationTypeMap:
		if props.IO || props.Uncached {
			// Cached aliases of the range must drain before an uncached mapping appears
			s.scheduler.Lock()
			s.scheduler.Unlock()
		}
		disableHead := props.DisableMerge&pte.DisableMergeAttributeDisableHead != 0
		return s.mapContiguous(virt, phys, numPages, template, disableHead, pageList, reuse)
	case OperationTypeChangePermissions:
		return s.changePermissions(virt, numPages, template, props.DisableMerge, false, false, pageList, reuse)
	case OperationTypeChangePermissionsAndRefresh:
		return s.changePermissions(virt, numPages, template, props.DisableMerge, true, false, pageList, reuse)
	case OperationTypeChangePermissionsAndRefreshAndFlush:
		return s.changePermissions(virt, numPages, template, props.DisableMerge, true, true, pageList, reuse)
	}

	panic(fmt.Sprintf("unsupported operation %s", op))
}

// OperateGroup maps every page of group into [virt, virt+numPages). MapFirstGroup hands the
// references the caller holds on freshly allocated pages to the mapping; MapGroup takes new ones.
func (s *AddressSpace) OperateGroup(pageList *PageList, virt pte.VirtAddr, numPages int, group *physmem.PageGroup, props pte.Properties, op OperationType, reuse bool) error {
	s.checkOperationRange(virt, numPages)

	if op != OperationTypeMapGroup && op != OperationTypeMapFirstGroup {
		panic(fmt.Sprintf("unsupported group operation %s", op))
	}

	s.logger.Debug("AddressSpace::OperateGroup",
		slog.String("Operation", op.String()),
		slog.String("Address", fmt.Sprintf("%#x", virt)),
		slog.Int("Pages", numPages),
		slog.Int("Blocks", group.BlockCount()))

	template := pte.NewEntryTemplate(props, s.isKernel)
	disableHead := props.DisableMerge&pte.DisableMergeAttributeDisableHead != 0
	return s.mapGroup(virt, group, numPages, template, disableHead, op != OperationTypeMapFirstGroup, pageList, reuse)
}

// FinalizeUpdate returns every table released by earlier operations to the table manager
func (s *AddressSpace) FinalizeUpdate(pageList *PageList) {
	for {
		table, ok := pageList.Pop()
		if !ok {
			memutils.DebugValidate(s)
			return
		}
		s.tables.Free(table)
	}
}
