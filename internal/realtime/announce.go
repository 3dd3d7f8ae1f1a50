package realtime

import "chat-backend/internal/calls"

// Announcer adapts the hub to the call service's notifier port. Ringing and
// missed users are addressed through their personal topics; everything else
// goes to the per-call signaling room.
type Announcer struct {
	hub *Hub
}

func NewAnnouncer(hub *Hub) *Announcer {
	return &Announcer{hub: hub}
}

func (a *Announcer) IncomingCall(userIDs []string, ev calls.IncomingCallEvent) {
	a.hub.PublishUsers(userIDs, EventIncomingCall, ev)
}

func (a *Announcer) CallJoined(ev calls.CallActionEvent) {
	a.hub.Publish(CallTopic(ev.CallID), EventCallJoined, ev)
}

func (a *Announcer) CallRejected(ev calls.CallActionEvent) {
	a.hub.Publish(CallTopic(ev.CallID), EventCallRejected, ev)
}

func (a *Announcer) CallEnded(ev calls.CallEndedEvent) {
	a.hub.Publish(CallTopic(ev.CallID), EventCallEnded, ev)
}

func (a *Announcer) CallCancelled(ev calls.CallEndedEvent) {
	a.hub.Publish(CallTopic(ev.CallID), EventCallCancelled, ev)
}

func (a *Announcer) MissedCall(userIDs []string, ev calls.MissedCallEvent) {
	a.hub.PublishUsers(userIDs, EventMissedCall, ev)
}
