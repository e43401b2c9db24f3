package sim_test

import (
	"testing"

	"github.com/mesokern/paging/sim"
	"github.com/stretchr/testify/require"
)

func TestArchRecordsInOrder(t *testing.T) {
	arch := sim.NewArch(nil)

	arch.DataSynchronizationBarrier()
	arch.FlushDataCache(0x8000_0000, 0x1000)
	arch.InvalidateTLBByASID(3)
	arch.InvalidateTLBByVA(0x1000)
	arch.InvalidateEntireTLB()

	events := arch.Events()
	require.Len(t, events, 5)
	require.Equal(t, "Barrier", events[0].String())
	require.Equal(t, "FlushDataCache(0x80000000, 0x1000)", events[1].String())
	require.Equal(t, "InvalidateTLBByASID(3)", events[2].String())
	require.Equal(t, "InvalidateTLBByVA(0x1000)", events[3].String())
	require.Equal(t, "InvalidateEntireTLB", events[4].String())
	require.Equal(t, 1, arch.Count(sim.EventBarrier))

	arch.Reset()
	require.Empty(t, arch.Events())
}

func TestSchedulerSharesRecorder(t *testing.T) {
	recorder := sim.NewRecorder()
	arch := sim.NewArch(recorder)
	scheduler := sim.NewScheduler(recorder)

	calls := 0
	scheduler.OnLock = func() {
		require.True(t, scheduler.IsHeld())
		calls++
	}

	arch.DataSynchronizationBarrier()
	scheduler.Lock()
	scheduler.Unlock()

	require.Equal(t, 1, calls)
	require.Equal(t, 1, scheduler.LockCount())
	require.False(t, scheduler.IsHeld())

	kinds := []sim.EventKind{}
	for _, event := range recorder.Events() {
		kinds = append(kinds, event.Kind)
	}
	require.Equal(t, []sim.EventKind{sim.EventBarrier, sim.EventSchedulerLock, sim.EventSchedulerUnlock}, kinds)
}

func TestSchedulerMisuse(t *testing.T) {
	scheduler := sim.NewScheduler(nil)
	require.Panics(t, scheduler.Unlock)

	scheduler.Lock()
	require.Panics(t, scheduler.Lock)
}
