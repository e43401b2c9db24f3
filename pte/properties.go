package pte

import (
	"fmt"

	"github.com/vkngwrapper/core/v2/common"
)

// MemoryPermission describes who may access a mapping and how. User permissions imply the
// matching kernel permission.
type MemoryPermission int32

var memoryPermissionMapping = common.NewFlagStringMapping[MemoryPermission]()

func (p MemoryPermission) Register(str string) {
	memoryPermissionMapping.Register(p, str)
}
func (p MemoryPermission) String() string {
	return memoryPermissionMapping.FlagsToString(p)
}

const (
	permissionUserReadBit MemoryPermission = 1 << iota
	permissionUserWriteBit
	PermissionUserExecute
	PermissionKernelRead
	PermissionKernelWrite
	PermissionKernelExecute
	// PermissionNotMapped keeps the mapping in the table but clears the hardware valid bit
	PermissionNotMapped

	PermissionNone MemoryPermission = 0

	PermissionUserRead          = permissionUserReadBit | PermissionKernelRead
	PermissionUserWrite         = permissionUserWriteBit | PermissionKernelWrite
	PermissionKernelReadWrite   = PermissionKernelRead | PermissionKernelWrite
	PermissionUserReadWrite     = PermissionUserRead | PermissionUserWrite
	PermissionUserReadExecute   = PermissionUserRead | PermissionUserExecute
	PermissionKernelReadExecute = PermissionKernelRead | PermissionKernelExecute
)

func init() {
	permissionUserReadBit.Register("UserRead")
	permissionUserWriteBit.Register("UserWrite")
	PermissionUserExecute.Register("UserExecute")
	PermissionKernelRead.Register("KernelRead")
	PermissionKernelWrite.Register("KernelWrite")
	PermissionKernelExecute.Register("KernelExecute")
	PermissionNotMapped.Register("NotMapped")
}

// PageAttribute selects the memory type slot in MAIR_EL1
type PageAttribute int

const (
	PageAttributeDeviceNGnRnE PageAttribute = iota
	PageAttributeDeviceNGnRE
	PageAttributeNormalNotCacheable
	PageAttributeNormal
)

var pageAttributeMapping = map[PageAttribute]string{
	PageAttributeDeviceNGnRnE:       "Device_nGnRnE",
	PageAttributeDeviceNGnRE:        "Device_nGnRE",
	PageAttributeNormalNotCacheable: "NormalNotCacheable",
	PageAttributeNormal:             "Normal",
}

func (a PageAttribute) String() string {
	return pageAttributeMapping[a]
}

type Shareable int

const (
	ShareableNonShareable   Shareable = 0
	ShareableOuterShareable Shareable = 2
	ShareableInnerShareable Shareable = 3
)

var shareableMapping = map[Shareable]string{
	ShareableNonShareable:   "NonShareable",
	ShareableOuterShareable: "OuterShareable",
	ShareableInnerShareable: "InnerShareable",
}

func (s Shareable) String() string {
	return shareableMapping[s]
}

// DisableMergeAttribute adjusts the merge-disable bits of the first and last pages of a range
// when its attributes are rewritten
type DisableMergeAttribute int32

var disableMergeAttributeMapping = common.NewFlagStringMapping[DisableMergeAttribute]()

func (a DisableMergeAttribute) Register(str string) {
	disableMergeAttributeMapping.Register(a, str)
}
func (a DisableMergeAttribute) String() string {
	return disableMergeAttributeMapping.FlagsToString(a)
}

const (
	DisableMergeAttributeDisableHead DisableMergeAttribute = 1 << iota
	DisableMergeAttributeDisableHeadAndBody
	DisableMergeAttributeEnableHeadAndBody
	DisableMergeAttributeDisableTail
	DisableMergeAttributeEnableTail
	DisableMergeAttributeEnableAndMergeHeadBodyTail

	DisableMergeAttributeNone DisableMergeAttribute = 0

	DisableMergeAttributeEnableHeadBodyTail  = DisableMergeAttributeEnableHeadAndBody | DisableMergeAttributeEnableTail
	DisableMergeAttributeDisableHeadBodyTail = DisableMergeAttributeDisableHead | DisableMergeAttributeDisableHeadAndBody | DisableMergeAttributeDisableTail
)

func init() {
	DisableMergeAttributeDisableHead.Register("DisableHead")
	DisableMergeAttributeDisableHeadAndBody.Register("DisableHeadAndBody")
	DisableMergeAttributeEnableHeadAndBody.Register("EnableHeadAndBody")
	DisableMergeAttributeDisableTail.Register("DisableTail")
	DisableMergeAttributeEnableTail.Register("EnableTail")
	DisableMergeAttributeEnableAndMergeHeadBodyTail.Register("EnableAndMergeHeadBodyTail")
}

// Properties are the caller-facing attributes of a mapping
type Properties struct {
	Permission MemoryPermission
	// IO maps device memory
	IO bool
	// Uncached maps normal memory without caching
	Uncached bool
	// DisableMerge controls the merge-disable bits written at the ends of the range
	DisableMerge DisableMergeAttribute
}

// NewEntryTemplate converts properties into the attribute bits shared by every block of a mapping.
// Combinations the hardware cannot express panic: executable device or uncached memory, uncached
// device memory, and any execute permission other than user read-execute.
func NewEntryTemplate(props Properties, isKernel bool) Entry {
	template := entryPrivilegedXN | entryAccessFlag | Entry(ShareableInnerShareable)<<entryShareableShift
	if !isKernel {
		template |= entryNotGlobal
	}

	executable := props.Permission&(PermissionUserExecute|PermissionKernelExecute) != 0

	switch {
	case props.IO:
		if props.Uncached || executable {
			panic(fmt.Sprintf("invalid IO mapping properties: uncached %t, permission %s", props.Uncached, props.Permission))
		}
		template |= Entry(PageAttributeDeviceNGnRnE)<<entryAttrIndexShift | entryUserXN
	case props.Uncached:
		if executable {
			panic(fmt.Sprintf("uncached mapping cannot be executable: %s", props.Permission))
		}
		template |= Entry(PageAttributeNormalNotCacheable) << entryAttrIndexShift
	default:
		template |= Entry(PageAttributeNormal) << entryAttrIndexShift
	}

	if props.Permission != PermissionUserReadExecute {
		if executable {
			panic(fmt.Sprintf("unsupported executable permission: %s", props.Permission))
		}
		template |= entryUserXN
	}

	switch props.Permission & PermissionUserReadWrite {
	case PermissionUserReadWrite:
		template |= entryUserAccessible
	case PermissionUserRead:
		template |= entryUserAccessible | entryReadOnly
	case PermissionKernelReadWrite:
	case PermissionKernelRead:
		template |= entryReadOnly
	default:
		panic(fmt.Sprintf("unsupported access permission: %s", props.Permission))
	}

	return template.WithMapped(props.Permission&PermissionNotMapped == 0)
}

func (e Entry) PageAttribute() PageAttribute {
	return PageAttribute((e & entryAttrIndexMask) >> entryAttrIndexShift)
}

func (e Entry) Shareable() Shareable {
	return Shareable((e & entryShareableMask) >> entryShareableShift)
}

func (e Entry) IsReadOnly() bool {
	return e&entryReadOnly != 0
}

func (e Entry) IsUserAccessible() bool {
	return e&entryUserAccessible != 0
}

func (e Entry) IsUserExecuteNever() bool {
	return e&entryUserXN != 0
}

func (e Entry) IsPrivilegedExecuteNever() bool {
	return e&entryPrivilegedXN != 0
}

func (e Entry) IsGlobal() bool {
	return e&entryNotGlobal == 0
}

func (e Entry) IsAccessed() bool {
	return e&entryAccessFlag != 0
}
