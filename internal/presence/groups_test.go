package presence

import (
	"sort"
	"testing"
	"time"
)

func TestGroupIndex_AddRemove(t *testing.T) {
	g := NewGroupIndex()
	g.Add("conv-1", "u1")
	g.Add("conv-1", "u2")
	g.Add("conv-2", "u1")

	convs := g.ConversationsOf("u1")
	sort.Strings(convs)
	if len(convs) != 2 || convs[0] != "conv-1" || convs[1] != "conv-2" {
		t.Fatalf("unexpected conversations for u1: %v", convs)
	}

	g.Remove("conv-1", "u1")
	if convs := g.ConversationsOf("u1"); len(convs) != 1 || convs[0] != "conv-2" {
		t.Fatalf("expected u1 pruned from conv-1: %v", convs)
	}
	if members := g.MembersOf("conv-1"); len(members) != 1 || members[0] != "u2" {
		t.Fatalf("expected only u2 left in conv-1: %v", members)
	}
}

func TestGroupIndex_RemoveLastMemberDropsConversation(t *testing.T) {
	g := NewGroupIndex()
	g.Add("conv-1", "u1")
	g.Remove("conv-1", "u1")
	if got := g.MembersOf("conv-1"); got != nil {
		t.Fatalf("expected empty conversation dropped, got %v", got)
	}
	if got := g.ConversationsOf("u1"); got != nil {
		t.Fatalf("expected empty user entry dropped, got %v", got)
	}
}

func TestGroupIndex_RemoveUnknownNoop(t *testing.T) {
	g := NewGroupIndex()
	g.Remove("conv-x", "nobody")
	if got := g.MembersOf("conv-x"); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

type capturedPublish struct {
	topic string
	event string
}

type fakePublisher struct {
	published []capturedPublish
}

func (f *fakePublisher) Publish(topic, event string, _ any) {
	f.published = append(f.published, capturedPublish{topic: topic, event: event})
}

func TestNotifier_ScopesFanOutToMemberGroups(t *testing.T) {
	pub := &fakePublisher{}
	groups := NewGroupIndex()
	groups.Add("conv-1", "u1")
	groups.Add("conv-2", "u1")
	groups.Add("conv-3", "u2") // u1 is not in conv-3

	n := NewNotifier(pub, groups)
	n.PresenceChanged(Record{UserID: "u1", Status: StatusOnline, LastActiveAt: time.Unix(1700000000, 0).UTC()})

	topics := make(map[string]bool)
	for _, p := range pub.published {
		if p.event != EventPresenceUpdate {
			t.Fatalf("unexpected event %q", p.event)
		}
		topics[p.topic] = true
	}
	if len(pub.published) != 3 {
		t.Fatalf("expected 3 publishes, got %d: %v", len(pub.published), pub.published)
	}
	for _, want := range []string{UserTopic("u1"), GroupTopic("conv-1"), GroupTopic("conv-2")} {
		if !topics[want] {
			t.Fatalf("missing publish to %s", want)
		}
	}
	if topics[GroupTopic("conv-3")] {
		t.Fatalf("presence leaked to a conversation the user is not in")
	}
}
