package pgtable_test

import (
	"encoding/json"
	"testing"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/mesokern/paging/pte"
	"github.com/stretchr/testify/require"
)

type dumpedRange struct {
	Address       string
	Size          string
	Mapped        bool
	Physical      string
	Blocks        int
	Attribute     string
	Shareable     string
	Present       bool
	ReadOnly      bool
	User          bool
	UserExecute   bool
	KernelExecute bool
	Global        bool
}

type dumpedSpace struct {
	Start  string
	Size   string
	ASID   int
	Kernel bool
	Tables int
	Ranges []dumpedRange
}

func (f *fixture) dump(t *testing.T, start pte.VirtAddr, numPages int) dumpedSpace {
	writer := jwriter.NewWriter()
	f.space.Dump(&writer, start, page(numPages))
	require.NoError(t, writer.Error())

	var out dumpedSpace
	require.NoError(t, json.Unmarshal(writer.Bytes(), &out))
	return out
}

func TestDumpGroupsRuns(t *testing.T) {
	f := newFixture(t, 16)

	f.mapPages(t, 0x1000_0000, memoryBase, 4, readWrite)
	f.mapPages(t, 0x1000_6000, memoryBase+0x1_0000, 2, pte.Properties{Permission: pte.PermissionUserRead})

	out := f.dump(t, 0x1000_0000, 16)
	require.Equal(t, "0x10000000", out.Start)
	require.Equal(t, "0x10000", out.Size)
	require.Equal(t, int(f.space.ASID()), out.ASID)
	require.False(t, out.Kernel)
	require.Equal(t, 3, out.Tables)

	require.Len(t, out.Ranges, 4)

	rw := out.Ranges[0]
	require.Equal(t, "0x10000000", rw.Address)
	require.Equal(t, "0x4000", rw.Size)
	require.True(t, rw.Mapped)
	require.Equal(t, "0x80000000", rw.Physical)
	require.Equal(t, 4, rw.Blocks)
	require.Equal(t, "Normal", rw.Attribute)
	require.Equal(t, "InnerShareable", rw.Shareable)
	require.True(t, rw.Present)
	require.False(t, rw.ReadOnly)
	require.True(t, rw.User)
	require.False(t, rw.UserExecute)
	require.False(t, rw.KernelExecute)
	require.False(t, rw.Global)

	require.Equal(t, dumpedRange{Address: "0x10004000", Size: "0x2000"}, out.Ranges[1])

	ro := out.Ranges[2]
	require.Equal(t, "0x10006000", ro.Address)
	require.Equal(t, "0x80010000", ro.Physical)
	require.Equal(t, 2, ro.Blocks)
	require.True(t, ro.ReadOnly)

	require.Equal(t, dumpedRange{Address: "0x10008000", Size: "0x8000"}, out.Ranges[3])
}

func TestDumpSplitsBlocksAtRangeEdges(t *testing.T) {
	f := newFixture(t, 16)

	f.mapPages(t, 0x20_0000, memoryBase+0x20_0000, pte.EntriesPerTable, readWrite)

	out := f.dump(t, 0x20_1000, 3)
	require.Len(t, out.Ranges, 1)
	require.Equal(t, "0x201000", out.Ranges[0].Address)
	require.Equal(t, "0x3000", out.Ranges[0].Size)
	require.Equal(t, "0x80201000", out.Ranges[0].Physical)
	require.Equal(t, 1, out.Ranges[0].Blocks)
}

func TestBuildStatsString(t *testing.T) {
	f := newFixture(t, 16)

	f.mapPages(t, 0x1000_3000, memoryBase+0x3000, 37, readWrite)

	writer := jwriter.NewWriter()
	f.space.BuildStatsString(&writer)
	require.NoError(t, writer.Error())

	var out struct {
		TableCount           int
		BlockCount           int
		ContiguousBlockCount int
		MappedBytes          int
		BlockSize            struct{ Min, Max int }
	}
	require.NoError(t, json.Unmarshal(writer.Bytes(), &out))
	require.Equal(t, 3, out.TableCount)
	require.Equal(t, 22, out.BlockCount)
	require.Equal(t, 1, out.ContiguousBlockCount)
	require.Equal(t, int(page(37)), out.MappedBytes)
	require.Equal(t, int(pte.PageSize), out.BlockSize.Min)
	require.Equal(t, int(pte.L3ContiguousBlockSize), out.BlockSize.Max)
}
