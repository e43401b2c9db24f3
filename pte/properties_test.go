package pte_test

import (
	"testing"

	"github.com/mesokern/paging/pte"
	"github.com/stretchr/testify/require"
)

func TestEntryTemplateUserReadWrite(t *testing.T) {
	e := pte.NewEntryTemplate(pte.Properties{Permission: pte.PermissionUserReadWrite}, false)

	require.Equal(t, pte.PageAttributeNormal, e.PageAttribute())
	require.Equal(t, pte.ShareableInnerShareable, e.Shareable())
	require.True(t, e.IsUserAccessible())
	require.False(t, e.IsReadOnly())
	require.True(t, e.IsUserExecuteNever())
	require.True(t, e.IsPrivilegedExecuteNever())
	require.False(t, e.IsGlobal())
	require.True(t, e.IsAccessed())
	require.True(t, e.IsMapped())
}

func TestEntryTemplateKernel(t *testing.T) {
	e := pte.NewEntryTemplate(pte.Properties{Permission: pte.PermissionKernelRead}, true)

	require.True(t, e.IsGlobal())
	require.False(t, e.IsUserAccessible())
	require.True(t, e.IsReadOnly())
}

func TestEntryTemplateUserExecute(t *testing.T) {
	e := pte.NewEntryTemplate(pte.Properties{Permission: pte.PermissionUserReadExecute}, false)

	require.False(t, e.IsUserExecuteNever())
	require.True(t, e.IsReadOnly())
	require.True(t, e.IsUserAccessible())
}

func TestEntryTemplateMemoryTypes(t *testing.T) {
	io := pte.NewEntryTemplate(pte.Properties{Permission: pte.PermissionKernelReadWrite, IO: true}, true)
	require.Equal(t, pte.PageAttributeDeviceNGnRnE, io.PageAttribute())
	require.True(t, io.IsUserExecuteNever())

	uncached := pte.NewEntryTemplate(pte.Properties{Permission: pte.PermissionUserRead, Uncached: true}, false)
	require.Equal(t, pte.PageAttributeNormalNotCacheable, uncached.PageAttribute())
}

func TestEntryTemplateNotMapped(t *testing.T) {
	e := pte.NewEntryTemplate(pte.Properties{Permission: pte.PermissionUserReadWrite | pte.PermissionNotMapped}, false)
	require.False(t, e.IsMapped())
}

func TestEntryTemplateInvalid(t *testing.T) {
	require.Panics(t, func() {
		pte.NewEntryTemplate(pte.Properties{Permission: pte.PermissionUserReadExecute, IO: true}, false)
	})
	require.Panics(t, func() {
		pte.NewEntryTemplate(pte.Properties{Permission: pte.PermissionUserRead, IO: true, Uncached: true}, false)
	})
	require.Panics(t, func() {
		pte.NewEntryTemplate(pte.Properties{Permission: pte.PermissionUserReadExecute, Uncached: true}, false)
	})
	require.Panics(t, func() {
		pte.NewEntryTemplate(pte.Properties{Permission: pte.PermissionKernelReadExecute}, true)
	})
	require.Panics(t, func() {
		pte.NewEntryTemplate(pte.Properties{Permission: pte.PermissionNone}, true)
	})
}

func TestPermissionString(t *testing.T) {
	require.Contains(t, pte.PermissionUserRead.String(), "UserRead")
	require.Contains(t, pte.PermissionUserRead.String(), "KernelRead")
	require.Equal(t, "NotMapped", pte.PermissionNotMapped.String())
}
