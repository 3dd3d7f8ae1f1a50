package calls

import "sync"

// session is the live aggregate for one call. Its mutex serializes every
// state-mutating operation on the call, which is what makes the terminal
// check-and-transition a single indivisible step.
type session struct {
	mu sync.Mutex

	call         Call
	participants map[string]*Participant
	order        []string // user IDs in creation order, for stable snapshots
}

func (s *session) snapshotLocked() (Call, []Participant) {
	parts := make([]Participant, 0, len(s.order))
	for _, uid := range s.order {
		parts = append(parts, *s.participants[uid])
	}
	return s.call, parts
}

// SessionStore holds every live (and recently terminal) call session in
// memory. It is the authoritative store for the call state machine; terminal
// snapshots are archived separately.
type SessionStore struct {
	mu   sync.RWMutex
	byID map[string]*session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{byID: make(map[string]*session)}
}

func (st *SessionStore) put(s *session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.byID[s.call.ID] = s
}

func (st *SessionStore) get(callID string) *session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.byID[callID]
}

func (st *SessionStore) remove(callID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.byID, callID)
}

// Snapshot returns a consistent copy of one call, if present.
func (st *SessionStore) Snapshot(callID string) (Call, []Participant, bool) {
	s := st.get(callID)
	if s == nil {
		return Call{}, nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	call, parts := s.snapshotLocked()
	return call, parts, true
}
