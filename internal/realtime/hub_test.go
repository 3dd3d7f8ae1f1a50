package realtime

import (
	"encoding/json"
	"testing"

	"chat-backend/internal/presence"
)

// testConn builds a Conn whose write loop is never started, so queued frames
// stay readable on the send channel.
func testConn(userID string) *Conn {
	return NewConn(userID, nil, 8)
}

func drainEvents(t *testing.T, c *Conn) []string {
	t.Helper()
	var events []string
	for {
		select {
		case raw := <-c.send:
			var env Envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				t.Fatalf("bad frame: %v", err)
			}
			events = append(events, env.Event)
		default:
			return events
		}
	}
}

func TestHub_PublishExactlyOncePerConnection(t *testing.T) {
	h := NewHub(nil)
	a := testConn("u1")
	b := testConn("u1") // second tab, same user
	c := testConn("u2")
	h.Register(a)
	h.Register(b)
	h.Register(c)

	topic := "conv:42"
	h.Join(a.ID, topic)
	h.Join(b.ID, topic)
	// Joining twice must not double-deliver.
	h.Join(b.ID, topic)

	h.Publish(topic, "presence_update", map[string]string{"userId": "u3"})

	if got := drainEvents(t, a); len(got) != 1 || got[0] != "presence_update" {
		t.Fatalf("conn a: %v", got)
	}
	if got := drainEvents(t, b); len(got) != 1 {
		t.Fatalf("conn b must receive exactly once: %v", got)
	}
	if got := drainEvents(t, c); len(got) != 0 {
		t.Fatalf("unsubscribed conn must receive nothing: %v", got)
	}
}

func TestHub_RegisterAutoJoinsPersonalTopics(t *testing.T) {
	h := NewHub(nil)
	c := testConn("u1")
	h.Register(c)

	h.Publish(UserTopic("u1"), "incoming_call", nil)
	h.Publish(presence.UserTopic("u1"), "presence_update", nil)
	h.Publish(UserTopic("u2"), "incoming_call", nil)

	got := drainEvents(t, c)
	if len(got) != 2 {
		t.Fatalf("expected both personal topics delivered, got %v", got)
	}
}

func TestHub_UnregisterStopsDelivery(t *testing.T) {
	h := NewHub(nil)
	c := testConn("u1")
	h.Register(c)
	h.Join(c.ID, "conv:1")

	h.Unregister(c.ID)
	h.Publish("conv:1", "presence_update", nil)
	h.Publish(UserTopic("u1"), "incoming_call", nil)

	if got := drainEvents(t, c); len(got) != 0 {
		t.Fatalf("unregistered conn must receive nothing: %v", got)
	}
}

func TestHub_LeaveUserPrunesEveryTab(t *testing.T) {
	h := NewHub(nil)
	a := testConn("u1")
	b := testConn("u1")
	other := testConn("u2")
	h.Register(a)
	h.Register(b)
	h.Register(other)

	topic := presence.GroupTopic("conv-9")
	h.Join(a.ID, topic)
	h.Join(b.ID, topic)
	h.Join(other.ID, topic)

	h.LeaveUser("u1", topic)
	h.Publish(topic, "presence_update", nil)

	if got := drainEvents(t, a); len(got) != 0 {
		t.Fatalf("pruned tab a still subscribed: %v", got)
	}
	if got := drainEvents(t, b); len(got) != 0 {
		t.Fatalf("pruned tab b still subscribed: %v", got)
	}
	if got := drainEvents(t, other); len(got) != 1 {
		t.Fatalf("other member lost the topic: %v", got)
	}
}

func TestHub_PublishUsers(t *testing.T) {
	h := NewHub(nil)
	a := testConn("u1")
	b := testConn("u2")
	c := testConn("u3")
	h.Register(a)
	h.Register(b)
	h.Register(c)

	h.PublishUsers([]string{"u1", "u3"}, "missed_call", nil)

	if got := drainEvents(t, a); len(got) != 1 {
		t.Fatalf("u1: %v", got)
	}
	if got := drainEvents(t, b); len(got) != 0 {
		t.Fatalf("u2 was not targeted: %v", got)
	}
	if got := drainEvents(t, c); len(got) != 1 {
		t.Fatalf("u3: %v", got)
	}
}
