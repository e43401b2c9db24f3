package pte

import "fmt"

// PhysAddr is a physical address. Intermediate tables are also identified by their physical address.
type PhysAddr uint64

// VirtAddr is a virtual address in the kernel or a process address space.
type VirtAddr uint64

const (
	PageBits  = 12
	LevelBits = 9

	PageSize        uint64 = 1 << PageBits
	EntriesPerTable        = 1 << LevelBits
	TableSize       uint64 = EntriesPerTable * 8

	// BlocksPerContiguousBlock is the number of same-level entries grouped under one contiguous hint
	BlocksPerContiguousBlock = 0x10

	L1BlockSize uint64 = 1 << (PageBits + 2*LevelBits)
	L2BlockSize uint64 = 1 << (PageBits + LevelBits)
	L3BlockSize uint64 = PageSize

	L1ContiguousBlockSize = BlocksPerContiguousBlock * L1BlockSize
	L2ContiguousBlockSize = BlocksPerContiguousBlock * L2BlockSize
	L3ContiguousBlockSize = BlocksPerContiguousBlock * L3BlockSize

	// ContiguousPageSize is the smallest block larger than a single page
	ContiguousPageSize = L3ContiguousBlockSize
)

// Level identifies one level of the paging structure. L3 holds page-sized entries and L1 is the root.
type Level int

const (
	LevelL3 Level = iota
	LevelL2
	LevelL1

	LevelCount
)

var levelMapping = map[Level]string{
	LevelL3: "L3",
	LevelL2: "L2",
	LevelL1: "L1",
}

func (l Level) String() string {
	return levelMapping[l]
}

func (l Level) shift() uint64 {
	return uint64(PageBits + LevelBits*int(l))
}

// BlockSize is the number of bytes mapped by a single block entry at this level
func (l Level) BlockSize() uint64 {
	return 1 << l.shift()
}

// ContiguousBlockSize is the number of bytes mapped by a full contiguous group at this level
func (l Level) ContiguousBlockSize() uint64 {
	return BlocksPerContiguousBlock * l.BlockSize()
}

// Index returns the slot that addr occupies in a table of this level
func (l Level) Index(addr VirtAddr) int {
	return int((uint64(addr) >> l.shift()) & (EntriesPerTable - 1))
}

// Offset returns the offset of addr within the block of this level that contains it
func (l Level) Offset(addr VirtAddr) uint64 {
	return uint64(addr) & (l.BlockSize() - 1)
}

// L0Index returns the index addr would occupy in a fourth, unused level above L1. Kernel address
// spaces live at L0 index 511 and process address spaces at L0 index 0.
func L0Index(addr VirtAddr) int {
	return int((uint64(addr) >> (PageBits + 3*LevelBits)) & (EntriesPerTable - 1))
}

// BlockType orders every mapping granularity from smallest to largest
type BlockType int

const (
	BlockTypeL3Block BlockType = iota
	BlockTypeL3ContiguousBlock
	BlockTypeL2Block
	BlockTypeL2ContiguousBlock
	BlockTypeL1Block

	BlockTypeCount
)

var blockSizes = [BlockTypeCount]uint64{
	BlockTypeL3Block:           L3BlockSize,
	BlockTypeL3ContiguousBlock: L3ContiguousBlockSize,
	BlockTypeL2Block:           L2BlockSize,
	BlockTypeL2ContiguousBlock: L2ContiguousBlockSize,
	BlockTypeL1Block:           L1BlockSize,
}

var blockTypeMapping = map[BlockType]string{
	BlockTypeL3Block:           "L3Block",
	BlockTypeL3ContiguousBlock: "L3ContiguousBlock",
	BlockTypeL2Block:           "L2Block",
	BlockTypeL2ContiguousBlock: "L2ContiguousBlock",
	BlockTypeL1Block:           "L1Block",
}

func (t BlockType) String() string {
	return blockTypeMapping[t]
}

func (t BlockType) Size() uint64 {
	return blockSizes[t]
}

// BlockTypeForSize returns the block type whose size is exactly size. Any other size panics.
func BlockTypeForSize(size uint64) BlockType {
	for t := BlockTypeL3Block; t < BlockTypeCount; t++ {
		if blockSizes[t] == size {
			return t
		}
	}

	panic(fmt.Sprintf("%#x is not a block size", size))
}

// SmallerAlignment returns the next block size below alignment
func SmallerAlignment(alignment uint64) uint64 {
	if alignment <= L3BlockSize {
		panic(fmt.Sprintf("there is no alignment smaller than %#x", alignment))
	}
	return (BlockTypeForSize(alignment) - 1).Size()
}

// LargerAlignment returns the next block size above alignment
func LargerAlignment(alignment uint64) uint64 {
	if alignment >= L1BlockSize {
		panic(fmt.Sprintf("there is no alignment larger than %#x", alignment))
	}
	return (BlockTypeForSize(alignment) + 1).Size()
}
