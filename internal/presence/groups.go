package presence

import "sync"

// GroupIndex tracks conversation membership with both forward and reverse
// indexes so a presence change fans out only to the group topics the user is
// actually in.
// Forward: conversation → member set (for snapshot pushes and pruning)
// Reverse: user → conversation set (for O(1) fan-out scoping)
//
// The index is rebuilt lazily from the conversation collaborator whenever a
// connection subscribes to a group's presence.
type GroupIndex struct {
	mu            sync.RWMutex
	conversations map[string]map[string]bool // conversation → users
	users         map[string]map[string]bool // user → conversations
}

func NewGroupIndex() *GroupIndex {
	return &GroupIndex{
		conversations: make(map[string]map[string]bool),
		users:         make(map[string]map[string]bool),
	}
}

func (g *GroupIndex) Add(conversationID, userID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conversations[conversationID] == nil {
		g.conversations[conversationID] = make(map[string]bool)
	}
	g.conversations[conversationID][userID] = true
	if g.users[userID] == nil {
		g.users[userID] = make(map[string]bool)
	}
	g.users[userID][conversationID] = true
}

// Remove detaches one user from one conversation. Called when the
// conversation collaborator reports a membership removal; leaving this stale
// would leak presence to removed members.
func (g *GroupIndex) Remove(conversationID, userID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if members, ok := g.conversations[conversationID]; ok {
		delete(members, userID)
		if len(members) == 0 {
			delete(g.conversations, conversationID)
		}
	}
	if convs, ok := g.users[userID]; ok {
		delete(convs, conversationID)
		if len(convs) == 0 {
			delete(g.users, userID)
		}
	}
}

// ConversationsOf returns the conversations whose presence topics should see
// updates for userID.
func (g *GroupIndex) ConversationsOf(userID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	convs := g.users[userID]
	if len(convs) == 0 {
		return nil
	}
	out := make([]string, 0, len(convs))
	for id := range convs {
		out = append(out, id)
	}
	return out
}

// MembersOf returns the indexed member set of a conversation.
func (g *GroupIndex) MembersOf(conversationID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	members := g.conversations[conversationID]
	if len(members) == 0 {
		return nil
	}
	out := make([]string, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}
