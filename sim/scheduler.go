package sim

import "sync/atomic"

// Scheduler stands in for the global scheduler lock. OnLock runs while the lock is held, which is
// the moment every other core is guaranteed to have passed a scheduling point.
type Scheduler struct {
	recorder *Recorder
	held     atomic.Bool
	locks    atomic.Int32

	OnLock func()
}

// NewScheduler creates a Scheduler logging into recorder, or into a fresh recorder when nil
func NewScheduler(recorder *Recorder) *Scheduler {
	if recorder == nil {
		recorder = NewRecorder()
	}
	return &Scheduler{recorder: recorder}
}

func (s *Scheduler) Lock() {
	if !s.held.CompareAndSwap(false, true) {
		panic("scheduler lock acquired recursively")
	}
	s.locks.Add(1)
	s.recorder.record(Event{Kind: EventSchedulerLock})

	if s.OnLock != nil {
		s.OnLock()
	}
}

func (s *Scheduler) Unlock() {
	if !s.held.CompareAndSwap(true, false) {
		panic("scheduler lock released without being held")
	}
	s.recorder.record(Event{Kind: EventSchedulerUnlock})
}

// LockCount returns how many times the lock has been acquired
func (s *Scheduler) LockCount() int {
	return int(s.locks.Load())
}

func (s *Scheduler) IsHeld() bool {
	return s.held.Load()
}
