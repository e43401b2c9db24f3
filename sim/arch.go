// Package sim provides software stand-ins for the hardware and scheduler collaborators of an
// address space. They record what was asked of them so that barrier and invalidation ordering
// can be inspected.
package sim

import (
	"fmt"

	"github.com/mesokern/paging/internal/utils"
	"github.com/mesokern/paging/pte"
	"golang.org/x/exp/slices"
)

type EventKind int

const (
	EventBarrier EventKind = iota
	EventFlushDataCache
	EventInvalidateEntireTLB
	EventInvalidateTLBByASID
	EventInvalidateTLBByVA
	EventSchedulerLock
	EventSchedulerUnlock
)

var eventKindMapping = map[EventKind]string{
	EventBarrier:             "Barrier",
	EventFlushDataCache:      "FlushDataCache",
	EventInvalidateEntireTLB: "InvalidateEntireTLB",
	EventInvalidateTLBByASID: "InvalidateTLBByASID",
	EventInvalidateTLBByVA:   "InvalidateTLBByVA",
	EventSchedulerLock:       "SchedulerLock",
	EventSchedulerUnlock:     "SchedulerUnlock",
}

func (k EventKind) String() string {
	return eventKindMapping[k]
}

// Event is one recorded request. Only the fields relevant to Kind are set.
type Event struct {
	Kind EventKind
	Phys pte.PhysAddr
	Virt pte.VirtAddr
	Size uint64
	ASID uint8
}

func (e Event) String() string {
	switch e.Kind {
	case EventFlushDataCache:
		return fmt.Sprintf("%s(%#x, %#x)", e.Kind, e.Phys, e.Size)
	case EventInvalidateTLBByASID:
		return fmt.Sprintf("%s(%d)", e.Kind, e.ASID)
	case EventInvalidateTLBByVA:
		return fmt.Sprintf("%s(%#x)", e.Kind, e.Virt)
	}
	return e.Kind.String()
}

// Recorder is an ordered, shareable event log
type Recorder struct {
	mutex  utils.OptionalMutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{mutex: utils.OptionalMutex{UseMutex: true}}
}

func (r *Recorder) record(e Event) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.events = append(r.events, e)
}

// Events returns a copy of everything recorded since the last Reset
func (r *Recorder) Events() []Event {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return slices.Clone(r.events)
}

func (r *Recorder) Count(kind EventKind) int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	count := 0
	for _, e := range r.events {
		if e.Kind == kind {
			count++
		}
	}
	return count
}

func (r *Recorder) Reset() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.events = r.events[:0]
}

// Arch records barriers, cache maintenance and TLB invalidations instead of performing them
type Arch struct {
	*Recorder
}

// NewArch creates an Arch logging into recorder, or into a fresh recorder when nil
func NewArch(recorder *Recorder) *Arch {
	if recorder == nil {
		recorder = NewRecorder()
	}
	return &Arch{Recorder: recorder}
}

func (a *Arch) DataSynchronizationBarrier() {
	a.record(Event{Kind: EventBarrier})
}

func (a *Arch) FlushDataCache(phys pte.PhysAddr, size uint64) {
	a.record(Event{Kind: EventFlushDataCache, Phys: phys, Size: size})
}

func (a *Arch) InvalidateEntireTLB() {
	a.record(Event{Kind: EventInvalidateEntireTLB})
}

func (a *Arch) InvalidateTLBByASID(asid uint8) {
	a.record(Event{Kind: EventInvalidateTLBByASID, ASID: asid})
}

func (a *Arch) InvalidateTLBByVA(virt pte.VirtAddr) {
	a.record(Event{Kind: EventInvalidateTLBByVA, Virt: virt})
}
