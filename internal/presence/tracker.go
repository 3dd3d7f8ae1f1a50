package presence

import (
	"sync"
	"time"
)

// Tracker owns one presence record per user and every transition on it.
//
// Locking: the registry map has its own RWMutex; each user record has an
// independent mutex so the decay sweep never serializes against live events
// for other users. No external call is made while a record lock is held;
// change notifications fire after the lock is released.
type Tracker struct {
	mu    sync.RWMutex
	users map[string]*userState

	idleAfter time.Duration
	awayAfter time.Duration

	clock    func() time.Time
	onChange func(Record)
}

// userState is the mutable record behind one user's presence.
// conns is an explicit connection-ID set, not a counter, so a disconnect is
// matched to the exact connection that opened it and reconnect races cannot
// double-decrement.
type userState struct {
	mu sync.Mutex

	conns      map[string]bool
	status     Status
	lastActive time.Time
	manual     bool

	// Call precedence bookkeeping. While inCall, the pre-call override is
	// parked here so call end can restore it instead of resetting. A manual
	// change requested mid-call overwrites the parked values and takes
	// effect when the call ends.
	inCall       bool
	parkedManual bool
	parkedStatus Status
}

func NewTracker(idleAfter, awayAfter time.Duration) *Tracker {
	return &Tracker{
		users:     make(map[string]*userState),
		idleAfter: idleAfter,
		awayAfter: awayAfter,
		clock:     time.Now,
	}
}

// WithClock overrides the time source for deterministic tests.
func (t *Tracker) WithClock(clock func() time.Time) *Tracker {
	t.clock = clock
	return t
}

// OnChange registers the fan-out callback. It is invoked once per observable
// status change, never under a record lock. Must be set before events flow.
func (t *Tracker) OnChange(fn func(Record)) {
	t.onChange = fn
}

func (t *Tracker) state(userID string, create bool) *userState {
	t.mu.RLock()
	st := t.users[userID]
	t.mu.RUnlock()
	if st != nil || !create {
		return st
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if st = t.users[userID]; st == nil {
		st = &userState{conns: make(map[string]bool), status: StatusOffline}
		t.users[userID] = st
	}
	return st
}

func (st *userState) record(userID string) Record {
	return Record{
		UserID:          userID,
		Status:          st.status,
		LastActiveAt:    st.lastActive,
		IsManual:        st.manual,
		OpenConnections: len(st.conns),
	}
}

func (t *Tracker) emit(changed bool, rec Record) {
	if changed && t.onChange != nil {
		t.onChange(rec)
	}
}

// Connect registers one live connection for the user. The first connection
// brings a non-manual, non-call record online.
func (t *Tracker) Connect(userID, connID string) Record {
	st := t.state(userID, true)
	now := t.clock()

	st.mu.Lock()
	st.conns[connID] = true
	st.lastActive = now
	changed := false
	if !st.manual && !st.inCall && st.status != StatusOnline {
		st.status = StatusOnline
		changed = true
	}
	rec := st.record(userID)
	st.mu.Unlock()

	t.emit(changed, rec)
	return rec
}

// Disconnect releases one connection. Only the exact connection that was
// registered counts; unknown IDs are ignored. The last release takes a
// non-manual record offline.
func (t *Tracker) Disconnect(userID, connID string) Record {
	st := t.state(userID, false)
	if st == nil {
		return Record{UserID: userID, Status: StatusOffline}
	}

	st.mu.Lock()
	delete(st.conns, connID)
	changed := false
	if len(st.conns) == 0 && !st.manual && !st.inCall && st.status != StatusOffline {
		st.status = StatusOffline
		changed = true
	}
	rec := st.record(userID)
	st.mu.Unlock()

	t.emit(changed, rec)
	return rec
}

// Activity records an explicit "I am active" signal. Manual overrides and
// call state win: only lastActive moves for them.
func (t *Tracker) Activity(userID string) Record {
	st := t.state(userID, false)
	if st == nil {
		return Record{UserID: userID, Status: StatusOffline}
	}

	st.mu.Lock()
	st.lastActive = t.clock()
	changed := false
	if !st.manual && !st.inCall && len(st.conns) > 0 && st.status != StatusOnline {
		st.status = StatusOnline
		changed = true
	}
	rec := st.record(userID)
	st.mu.Unlock()

	t.emit(changed, rec)
	return rec
}

// SetManual pins an explicit status. Setting online clears the override
// instead of pinning it, so decay resumes. During a call the request is
// parked and applied when the call ends; on_call keeps precedence.
func (t *Tracker) SetManual(userID string, status Status) Record {
	st := t.state(userID, true)
	now := t.clock()

	st.mu.Lock()
	st.lastActive = now
	changed := false
	switch {
	case st.inCall:
		st.parkedStatus = status
		st.parkedManual = status != StatusOnline
	case status == StatusOnline:
		st.manual = false
		if st.status != StatusOnline {
			st.status = StatusOnline
			changed = true
		}
	default:
		st.manual = true
		if st.status != status {
			st.status = status
			changed = true
		}
	}
	rec := st.record(userID)
	st.mu.Unlock()

	t.emit(changed, rec)
	return rec
}

// ClearManual reverts to automatic status computation.
func (t *Tracker) ClearManual(userID string) Record {
	st := t.state(userID, false)
	if st == nil {
		return Record{UserID: userID, Status: StatusOffline}
	}
	now := t.clock()

	st.mu.Lock()
	changed := false
	if st.inCall {
		st.parkedManual = false
	} else if st.manual {
		st.manual = false
		next := t.automaticStatus(st, now)
		if st.status != next {
			st.status = next
			changed = true
		}
	}
	rec := st.record(userID)
	st.mu.Unlock()

	t.emit(changed, rec)
	return rec
}

// CallStarted forces on_call, parking any manual override for restore.
func (t *Tracker) CallStarted(userID string) Record {
	st := t.state(userID, true)
	now := t.clock()

	st.mu.Lock()
	changed := false
	if !st.inCall {
		st.parkedManual = st.manual
		st.parkedStatus = st.status
		st.inCall = true
		st.manual = true // call state is exempt from decay and activity pings
		if st.status != StatusOnCall {
			st.status = StatusOnCall
			changed = true
		}
		st.lastActive = now
	}
	rec := st.record(userID)
	st.mu.Unlock()

	t.emit(changed, rec)
	return rec
}

// CallEnded reverts to the pre-call override if one was pinned (or requested
// mid-call), otherwise to online / offline depending on live connections.
func (t *Tracker) CallEnded(userID string) Record {
	st := t.state(userID, false)
	if st == nil {
		return Record{UserID: userID, Status: StatusOffline}
	}
	now := t.clock()

	st.mu.Lock()
	changed := false
	if st.inCall {
		st.inCall = false
		st.lastActive = now

		next := StatusOnline
		if st.parkedManual {
			st.manual = true
			next = st.parkedStatus
		} else {
			st.manual = false
			if len(st.conns) == 0 {
				next = StatusOffline
			}
		}
		if st.status != next {
			st.status = next
			changed = true
		}
	}
	rec := st.record(userID)
	st.mu.Unlock()

	t.emit(changed, rec)
	return rec
}

// Get returns the current snapshot; unknown users read as offline.
func (t *Tracker) Get(userID string) Record {
	st := t.state(userID, false)
	if st == nil {
		return Record{UserID: userID, Status: StatusOffline}
	}
	st.mu.Lock()
	rec := st.record(userID)
	st.mu.Unlock()
	return rec
}

// automaticStatus computes the decayed status for a non-manual record.
// Callers must hold st.mu.
func (t *Tracker) automaticStatus(st *userState, now time.Time) Status {
	if len(st.conns) == 0 {
		return StatusOffline
	}
	elapsed := now.Sub(st.lastActive)
	switch {
	case elapsed > t.awayAfter:
		return StatusAway
	case elapsed > t.idleAfter:
		return StatusIdle
	default:
		return StatusOnline
	}
}

// Sweep runs one decay pass and returns the number of transitions emitted.
// It snapshots the user set first and locks each record independently, so a
// long sweep never blocks unrelated live events.
func (t *Tracker) Sweep(now time.Time) int {
	t.mu.RLock()
	ids := make([]string, 0, len(t.users))
	for id := range t.users {
		ids = append(ids, id)
	}
	t.mu.RUnlock()

	transitions := 0
	for _, id := range ids {
		st := t.state(id, false)
		if st == nil {
			continue
		}

		st.mu.Lock()
		if st.manual || st.inCall || len(st.conns) == 0 {
			st.mu.Unlock()
			continue
		}
		next := t.automaticStatus(st, now)
		if next == st.status {
			st.mu.Unlock()
			continue
		}
		st.status = next
		rec := st.record(id)
		st.mu.Unlock()

		transitions++
		t.emit(true, rec)
	}
	return transitions
}
