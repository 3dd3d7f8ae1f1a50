package presence

import "fmt"

// Topic names shared with the realtime hub.

func UserTopic(userID string) string {
	return fmt.Sprintf("presence:user:%s", userID)
}

func GroupTopic(conversationID string) string {
	return fmt.Sprintf("presence:conversation:%s", conversationID)
}

const EventPresenceUpdate = "presence_update"

// Publisher is the slice of the fan-out hub the notifier needs.
type Publisher interface {
	Publish(topic, event string, data any)
}

// Notifier resolves the minimal topic set for a presence change: the user's
// direct watchers plus the group topics of conversations the user is in.
type Notifier struct {
	pub    Publisher
	groups *GroupIndex
}

func NewNotifier(pub Publisher, groups *GroupIndex) *Notifier {
	return &Notifier{pub: pub, groups: groups}
}

// PresenceChanged is wired as the tracker's OnChange callback.
func (n *Notifier) PresenceChanged(rec Record) {
	payload := rec.ToUpdate()
	n.pub.Publish(UserTopic(rec.UserID), EventPresenceUpdate, payload)
	for _, convID := range n.groups.ConversationsOf(rec.UserID) {
		n.pub.Publish(GroupTopic(convID), EventPresenceUpdate, payload)
	}
}
