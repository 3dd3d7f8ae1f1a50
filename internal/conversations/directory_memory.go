package conversations

import (
	"context"
	"sort"
	"sync"
)

// MemoryDirectory is an in-memory Membership implementation for tests and
// local development.
type MemoryDirectory struct {
	mu      sync.RWMutex
	members map[string]map[string]bool // conversation → user set
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{members: make(map[string]map[string]bool)}
}

func (d *MemoryDirectory) AddMember(conversationID, userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.members[conversationID] == nil {
		d.members[conversationID] = make(map[string]bool)
	}
	d.members[conversationID][userID] = true
}

func (d *MemoryDirectory) RemoveMember(conversationID, userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if set, ok := d.members[conversationID]; ok {
		delete(set, userID)
		if len(set) == 0 {
			delete(d.members, conversationID)
		}
	}
}

func (d *MemoryDirectory) IsMember(ctx context.Context, userID, conversationID string) (bool, error) {
	if userID == "" || conversationID == "" {
		return false, ErrInvalidArgument
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.members[conversationID][userID], nil
}

func (d *MemoryDirectory) MemberIDs(ctx context.Context, conversationID string) ([]string, error) {
	if conversationID == "" {
		return nil, ErrInvalidArgument
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	set := d.members[conversationID]
	out := make([]string, 0, len(set))
	for uid := range set {
		out = append(out, uid)
	}
	sort.Strings(out)
	return out, nil
}
