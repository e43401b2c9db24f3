package pte_test

import (
	"testing"

	"github.com/mesokern/paging/pte"
	"github.com/stretchr/testify/require"
)

func userTemplate() pte.Entry {
	return pte.NewEntryTemplate(pte.Properties{Permission: pte.PermissionUserReadWrite}, false)
}

func TestEntryKinds(t *testing.T) {
	template := userTemplate()

	require.True(t, pte.EmptyEntry.IsEmpty())

	table := pte.NewTableEntry(0x4000, false, true)
	require.True(t, table.IsTable())
	require.True(t, table.IsMappedTable())
	require.False(t, table.IsBlock(pte.LevelL2))
	require.Equal(t, pte.PhysAddr(0x4000), table.Address())

	page := pte.NewBlockEntry(pte.LevelL3, 0x5000, template, pte.SoftwareReservedNone, false)
	require.True(t, page.IsBlock(pte.LevelL3))
	require.False(t, page.IsBlock(pte.LevelL2))
	require.False(t, page.IsTable())
	require.True(t, page.IsMapped())

	block := pte.NewBlockEntry(pte.LevelL2, 0x20_0000, template, pte.SoftwareReservedNone, true)
	require.True(t, block.IsBlock(pte.LevelL2))
	require.False(t, block.IsBlock(pte.LevelL3))
	require.True(t, block.IsContiguous())
	require.Equal(t, pte.PhysAddr(0x20_0000), block.Block(pte.LevelL2))
}

func TestNewBlockEntryMisaligned(t *testing.T) {
	require.Panics(t, func() {
		pte.NewBlockEntry(pte.LevelL2, 0x1000, userTemplate(), pte.SoftwareReservedNone, false)
	})
}

func TestSoftwareReservedBits(t *testing.T) {
	bits := pte.SoftwareReservedDisableMergeHead | pte.SoftwareReservedDisableMergeTail
	e := pte.NewBlockEntry(pte.LevelL3, 0x1000, userTemplate(), bits, false)

	require.True(t, e.IsHeadMergeDisabled())
	require.False(t, e.IsHeadAndBodyMergeDisabled())
	require.True(t, e.IsTailMergeDisabled())
	require.Equal(t, bits, e.SoftwareReservedBits())

	cleared := e.WithSoftwareReservedBits(pte.SoftwareReservedNone)
	require.Equal(t, pte.SoftwareReservedNone, cleared.SoftwareReservedBits())
	require.Equal(t, e.Address(), cleared.Address())
}

func TestTemplateForMerge(t *testing.T) {
	template := userTemplate()
	e := pte.NewBlockEntry(pte.LevelL3, 0x7000, template, pte.SoftwareReservedDisableMergeHead, true)

	require.Equal(t, template, e.TemplateForMerge())
	require.True(t, e.IsForMerge(pte.NewBlockEntry(pte.LevelL3, 0x7000, template, pte.SoftwareReservedNone, true)))
	require.False(t, e.IsForMerge(pte.NewBlockEntry(pte.LevelL3, 0x8000, template, pte.SoftwareReservedNone, true)))
	require.False(t, e.IsForMerge(pte.NewBlockEntry(pte.LevelL3, 0x7000, template, pte.SoftwareReservedNone, false)))
}

func TestSeparateBlock(t *testing.T) {
	template := userTemplate()
	bits := pte.SoftwareReservedDisableMergeHead | pte.SoftwareReservedDisableMergeHeadAndBody | pte.SoftwareReservedDisableMergeTail
	block := pte.NewBlockEntry(pte.LevelL2, 0x4020_0000, template, bits, false)

	first := block.SeparateBlock(pte.LevelL2, 0)
	require.True(t, first.IsBlock(pte.LevelL3))
	require.True(t, first.IsContiguous())
	require.Equal(t, pte.PhysAddr(0x4020_0000), first.Address())
	require.Equal(t, pte.SoftwareReservedDisableMergeHead|pte.SoftwareReservedDisableMergeHeadAndBody, first.SoftwareReservedBits())
	require.Equal(t, template, first.TemplateForMerge())

	body := block.SeparateBlock(pte.LevelL2, 3)
	require.Equal(t, pte.SoftwareReservedDisableMergeHeadAndBody, body.SoftwareReservedBits())
	require.Equal(t, pte.PhysAddr(0x4020_3000), body.Address())

	middle := block.SeparateBlock(pte.LevelL2, 100)
	require.Equal(t, pte.SoftwareReservedNone, middle.SoftwareReservedBits())

	last := block.SeparateBlock(pte.LevelL2, pte.EntriesPerTable-1)
	require.Equal(t, pte.SoftwareReservedDisableMergeTail, last.SoftwareReservedBits())

	require.Panics(t, func() {
		first.SeparateBlock(pte.LevelL3, 0)
	})
}

func TestSeparateContiguous(t *testing.T) {
	bits := pte.SoftwareReservedDisableMergeHead | pte.SoftwareReservedDisableMergeTail
	e := pte.NewBlockEntry(pte.LevelL3, 0x10000, userTemplate(), bits, true)

	head := e.SeparateContiguous(0)
	require.False(t, head.IsContiguous())
	require.True(t, head.IsBlock(pte.LevelL3))
	require.Equal(t, pte.SoftwareReservedDisableMergeHead, head.SoftwareReservedBits())

	require.Equal(t, pte.SoftwareReservedNone, e.SeparateContiguous(7).SoftwareReservedBits())
	require.Equal(t, pte.SoftwareReservedDisableMergeTail, e.SeparateContiguous(pte.BlocksPerContiguousBlock-1).SoftwareReservedBits())
}

func TestEntryAtomicAccess(t *testing.T) {
	var table pte.Table
	slot := table.Entry(pte.LevelL3, 0x3000)
	slot.Store(pte.NewTableEntry(0x9000, true, false))

	require.True(t, table[3].Load().IsTable())
	require.False(t, table.IsEmpty())

	table.Clear()
	require.True(t, table.IsEmpty())
}
