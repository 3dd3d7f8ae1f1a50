package realtime

import "encoding/json"

// Envelope frames every inbound client message.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// outbound is the server-to-client frame. Data is marshalled in place so a
// fan-out can serialize once and reuse the bytes for every recipient.
type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Inbound event names (client → server).
const (
	EventUserActive               = "user_active"
	EventSetManualStatus          = "set_manual_status"
	EventClearManualStatus        = "clear_manual_status"
	EventSubscribePresence        = "subscribe_presence"
	EventSubscribePresenceBulk    = "subscribe_presence_bulk"
	EventSubscribeGroupPresence   = "subscribe_group_presence"
	EventUnsubscribeGroupPresence = "unsubscribe_group_presence"
	EventJoinCallRoom             = "join_call_room"
	EventLeaveCallRoom            = "leave_call_room"
)

// Outbound event names (server → client).
const (
	EventIncomingCall  = "incoming_call"
	EventCallJoined    = "call_joined"
	EventCallRejected  = "call_rejected"
	EventCallEnded     = "call_ended"
	EventCallCancelled = "call_cancelled"
	EventMissedCall    = "missed_call"
	EventError         = "error"
)

// Inbound payloads.

type subscribePresencePayload struct {
	UserID string `json:"userId"`
}

type subscribePresenceBulkPayload struct {
	UserIDs []string `json:"userIds"`
}

type setManualStatusPayload struct {
	Status string `json:"status"`
}

type groupPresencePayload struct {
	ConversationID string `json:"conversationId"`
}

type callRoomPayload struct {
	CallID string `json:"callId"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
