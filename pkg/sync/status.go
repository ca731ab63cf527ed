package sync

import (
	goSync "sync"
	"time"
)

// State is the phase a daemon's loop is currently in.
type State string

const (
	StateIdle       State = "idle"
	StateAcquiring  State = "acquiring resources"
	StateWalking    State = "walking"
	StatePersisting State = "persisting"
	StateSleeping   State = "sleeping"
	StateFatal      State = "fatal"
)

// Status is a snapshot of a daemon's progress, displayed by the GUI.
type Status struct {
	State     State
	LastCycle time.Time
	Cycles    int

	// Counts of operations applied over the daemon's lifetime.
	Downloads int
	Deletes   int
	Renames   int
}

// statusTracker records daemon progress behind a lock so the GUI thread can
// read it while the daemon runs.
type statusTracker struct {
	lock   goSync.Mutex
	status Status
}

func newStatusTracker() *statusTracker {
	return &statusTracker{status: Status{State: StateIdle}}
}

func (tracker *statusTracker) setState(state State) {
	tracker.lock.Lock()
	defer tracker.lock.Unlock()
	tracker.status.State = state
}

func (tracker *statusTracker) cycleCompleted(ops []operation) {
	tracker.lock.Lock()
	defer tracker.lock.Unlock()

	tracker.status.Cycles++
	tracker.status.LastCycle = time.Now()
	for _, op := range ops {
		switch op.(type) {
		case downloadOp:
			tracker.status.Downloads++
		case deleteOp:
			tracker.status.Deletes++
		case renameOp:
			tracker.status.Renames++
		}
	}
}

func (tracker *statusTracker) get() Status {
	tracker.lock.Lock()
	defer tracker.lock.Unlock()
	return tracker.status
}
